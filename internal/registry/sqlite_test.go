package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
	"github.com/endharassment/rdap-bootstrap/internal/bootstrap/bootstraptest"
)

func newTestSQLite(t *testing.T, path string) *SQLiteKV {
	t.Helper()
	s, err := NewSQLiteKV(context.Background(), path)
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteKV_PutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, filepath.Join(t.TempDir(), "test.db"))

	if _, err := s.Get(ctx, bootstrap.RegistryIPv6); !errors.Is(err, ErrNotCached) {
		t.Fatalf("got %v, want ErrNotCached", err)
	}

	modified := time.Date(2024, 4, 3, 18, 0, 1, 0, time.UTC)
	doc := &Document{
		ID:       bootstrap.RegistryIPv6,
		Body:     []byte(bootstraptest.IPv6),
		Modified: modified,
		Expires:  time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := s.Put(ctx, doc); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, bootstrap.RegistryIPv6)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Body) != bootstraptest.IPv6 {
		t.Error("body round trip mismatch")
	}
	if !got.Modified.Equal(modified) {
		t.Errorf("Modified = %v, want %v", got.Modified, modified)
	}
	if !got.Expires.Equal(doc.Expires) {
		t.Errorf("Expires = %v, want %v", got.Expires, doc.Expires)
	}
}

func TestSQLiteKV_Upsert(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, filepath.Join(t.TempDir(), "test.db"))
	exp := time.Now().Add(time.Hour)

	s.Put(ctx, &Document{ID: bootstrap.RegistryDNS, Body: []byte("old"), Expires: exp})
	if err := s.Put(ctx, &Document{ID: bootstrap.RegistryDNS, Body: []byte("new"), Expires: exp}); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	got, err := s.Get(ctx, bootstrap.RegistryDNS)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Body) != "new" {
		t.Errorf("got %q, want %q", got.Body, "new")
	}
}

func TestSQLiteKV_Expired(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, filepath.Join(t.TempDir(), "test.db"))

	s.Put(ctx, &Document{ID: bootstrap.RegistryASN, Body: []byte("x"), Expires: time.Now().Add(-time.Minute)})
	if _, err := s.Get(ctx, bootstrap.RegistryASN); !errors.Is(err, ErrNotCached) {
		t.Fatalf("got %v, want ErrNotCached for expired row", err)
	}
}

func TestSQLiteKV_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteKV(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	s.Put(ctx, &Document{ID: bootstrap.RegistryIPv4, Body: []byte("kept"), Expires: time.Now().Add(time.Hour)})
	s.Close()

	// Migrations must be safe to run again.
	s2 := newTestSQLite(t, path)
	got, err := s2.Get(ctx, bootstrap.RegistryIPv4)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got.Body) != "kept" {
		t.Errorf("got %q, want %q", got.Body, "kept")
	}
}
