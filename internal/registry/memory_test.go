package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
)

func TestMemoryKV_GetPut(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryKV()

	// Miss on empty cache.
	if _, err := c.Get(ctx, bootstrap.RegistryDNS); !errors.Is(err, ErrNotCached) {
		t.Fatalf("got %v, want ErrNotCached", err)
	}

	doc := &Document{ID: bootstrap.RegistryDNS, Body: []byte(`{}`), Expires: time.Now().Add(time.Hour)}
	if err := c.Put(ctx, doc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := c.Get(ctx, bootstrap.RegistryDNS)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Body) != "{}" {
		t.Errorf("got body %q, want %q", got.Body, "{}")
	}

	// Overwrite.
	doc2 := &Document{ID: bootstrap.RegistryDNS, Body: []byte(`{"version":"1.0"}`), Expires: time.Now().Add(time.Hour)}
	c.Put(ctx, doc2)
	got, _ = c.Get(ctx, bootstrap.RegistryDNS)
	if string(got.Body) != `{"version":"1.0"}` {
		t.Errorf("got body %q after overwrite", got.Body)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMemoryKV_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryKV()
	c.now = func() time.Time { return now }

	c.Put(ctx, &Document{ID: bootstrap.RegistryASN, Expires: now.Add(time.Minute)})
	if _, err := c.Get(ctx, bootstrap.RegistryASN); err != nil {
		t.Fatalf("expected hit before expiry, got %v", err)
	}

	now = now.Add(time.Minute)
	if _, err := c.Get(ctx, bootstrap.RegistryASN); !errors.Is(err, ErrNotCached) {
		t.Fatalf("got %v, want ErrNotCached at expiry", err)
	}
}

func TestMemoryKV_NilReceiver(t *testing.T) {
	var c *MemoryKV
	ctx := context.Background()

	if err := c.Put(ctx, &Document{ID: bootstrap.RegistryIPv4}); err != nil {
		t.Fatalf("Put on nil: %v", err)
	}
	if _, err := c.Get(ctx, bootstrap.RegistryIPv4); !errors.Is(err, ErrNotCached) {
		t.Fatalf("got %v, want ErrNotCached", err)
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}
