package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const timeFormat = "2006-01-02 15:04:05"

// SQLiteKV persists documents in a SQLite database so that a restarted
// process can serve from its previous downloads.
type SQLiteKV struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteKV opens a SQLite database at the given path and runs migrations.
func NewSQLiteKV(ctx context.Context, dbPath string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteKV{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

func (s *SQLiteKV) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Get implements KV. Expired rows are left in place and overwritten by the
// next Put.
func (s *SQLiteKV) Get(ctx context.Context, id bootstrap.RegistryID) (*Document, error) {
	var (
		doc               = Document{ID: id}
		modified, expires string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, modified, expires FROM registry_files WHERE id = ?`, string(id)).
		Scan(&doc.Body, &modified, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotCached
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	doc.Modified, _ = time.Parse(timeFormat, modified)
	doc.Expires, _ = time.Parse(timeFormat, expires)
	if !doc.Fresh(s.now()) {
		return nil, ErrNotCached
	}
	return &doc, nil
}

// Put implements KV.
func (s *SQLiteKV) Put(ctx context.Context, doc *Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registry_files (id, body, modified, expires, stored_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   body = excluded.body,
		   modified = excluded.modified,
		   expires = excluded.expires,
		   stored_at = excluded.stored_at`,
		string(doc.ID), doc.Body,
		doc.Modified.UTC().Format(timeFormat),
		doc.Expires.UTC().Format(timeFormat),
		s.now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("put %s: %w", doc.ID, err)
	}
	return nil
}
