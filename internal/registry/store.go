package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
	"github.com/endharassment/rdap-bootstrap/internal/metrics"
)

// DefaultFetchTimeout bounds a single upstream download.
const DefaultFetchTimeout = 30 * time.Second

// Store is a read-through cache of registry files. It implements
// bootstrap.Fetcher. Concurrent misses for the same registry share one
// download.
type Store struct {
	kv      KV
	source  Source
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	group singleflight.Group

	mu     sync.Mutex
	parsed map[bootstrap.RegistryID]parsedRegistry
}

// parsedRegistry memoizes the decoded form of the document it came from.
type parsedRegistry struct {
	modified time.Time
	expires  time.Time
	size     int
	value    any
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records cache hits, downloads and download latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewStore creates a store over kv that downloads misses from src.
func NewStore(kv KV, src Source, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		source:  src,
		logger:  slog.Default(),
		timeout: DefaultFetchTimeout,
		parsed:  make(map[bootstrap.RegistryID]parsedRegistry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load returns the cached document for id, downloading and caching it when
// the backend has no fresh copy. A failing backend read is logged and
// treated as a miss.
func (s *Store) Load(ctx context.Context, id bootstrap.RegistryID) (*Document, error) {
	doc, err := s.kv.Get(ctx, id)
	if err == nil {
		s.metrics.ObserveRegistryLoad(string(id), metrics.SourceCache)
		return doc, nil
	}
	if !errors.Is(err, ErrNotCached) {
		s.logger.Warn("registry cache read failed", "registry", id, "error", err)
	}
	return s.download(ctx, id)
}

// Refresh downloads id regardless of what is cached and stores the result.
func (s *Store) Refresh(ctx context.Context, id bootstrap.RegistryID) (*Document, error) {
	return s.download(ctx, id)
}

// Cached returns the backend copy of id without downloading. It returns
// ErrNotCached when there is none.
func (s *Store) Cached(ctx context.Context, id bootstrap.RegistryID) (*Document, error) {
	return s.kv.Get(ctx, id)
}

func (s *Store) download(ctx context.Context, id bootstrap.RegistryID) (*Document, error) {
	v, err, shared := s.group.Do(string(id), func() (any, error) {
		// Waiters share this download, so it must outlive the first caller.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		start := time.Now()
		doc, err := s.source.Download(dctx, id)
		s.metrics.ObserveDownload(string(id), err, time.Since(start))
		if err != nil {
			return nil, err
		}
		if err := s.kv.Put(dctx, doc); err != nil {
			s.logger.Warn("caching registry failed", "registry", id, "error", err)
		}
		s.logger.Info("downloaded bootstrap registry",
			"registry", id,
			"bytes", len(doc.Body),
			"modified", doc.Modified,
			"expires", doc.Expires,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return doc, nil
	})
	if err != nil {
		s.logger.Error("registry download failed", "registry", id, "error", err)
		return nil, fmt.Errorf("download %s registry: %w", id, err)
	}
	if shared {
		s.logger.Debug("registry download shared", "registry", id)
	}
	s.metrics.ObserveRegistryLoad(string(id), metrics.SourceUpstream)
	return v.(*Document), nil
}

// Registry implements bootstrap.Fetcher for the asn, ipv4, ipv6 and dns
// registries.
func (s *Store) Registry(ctx context.Context, id bootstrap.RegistryID) (*bootstrap.Registry, error) {
	if id == bootstrap.RegistryObjectTags {
		return nil, fmt.Errorf("%s is not a service registry", id)
	}
	doc, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeCached(s, doc, bootstrap.DecodeRegistry)
}

// ObjectTags implements bootstrap.Fetcher.
func (s *Store) ObjectTags(ctx context.Context) (*bootstrap.ObjectTagRegistry, error) {
	doc, err := s.Load(ctx, bootstrap.RegistryObjectTags)
	if err != nil {
		return nil, err
	}
	return decodeCached(s, doc, bootstrap.DecodeObjectTags)
}

// decodeCached decodes doc, reusing the previous result while the document
// is unchanged.
func decodeCached[T any](s *Store, doc *Document, decode func([]byte) (*T, error)) (*T, error) {
	s.mu.Lock()
	p, ok := s.parsed[doc.ID]
	s.mu.Unlock()
	if ok && p.modified.Equal(doc.Modified) && p.expires.Equal(doc.Expires) && p.size == len(doc.Body) {
		if v, ok := p.value.(*T); ok {
			return v, nil
		}
	}

	v, err := decode(doc.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s registry: %w", doc.ID, err)
	}
	s.mu.Lock()
	s.parsed[doc.ID] = parsedRegistry{
		modified: doc.Modified,
		expires:  doc.Expires,
		size:     len(doc.Body),
		value:    v,
	}
	s.mu.Unlock()
	return v, nil
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}
