// Package registry keeps the IANA bootstrap registry files in a read-through
// cache. A Store answers from its KV backend while a document is fresh and
// downloads it from a Source otherwise.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
)

// ErrNotCached is returned by KV backends when a registry is absent or its
// document has expired.
var ErrNotCached = errors.New("registry not cached")

// Document is a registry file as downloaded, with its cache metadata.
type Document struct {
	ID   bootstrap.RegistryID
	Body []byte
	// Modified is the upstream Last-Modified time, or the download time when
	// the upstream did not send one.
	Modified time.Time
	// Expires is when the cached copy stops being served.
	Expires time.Time
}

// Fresh reports whether d may still be served at now.
func (d *Document) Fresh(now time.Time) bool {
	return d != nil && now.Before(d.Expires)
}

// KV is the storage backend behind a Store.
type KV interface {
	// Get returns the cached document or ErrNotCached.
	Get(ctx context.Context, id bootstrap.RegistryID) (*Document, error)
	// Put stores doc until doc.Expires, replacing any previous copy.
	Put(ctx context.Context, doc *Document) error
	Close() error
}
