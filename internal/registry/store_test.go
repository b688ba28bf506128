package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
	"github.com/endharassment/rdap-bootstrap/internal/bootstrap/bootstraptest"
	"github.com/endharassment/rdap-bootstrap/internal/metrics"
)

type fakeSource struct {
	mu      sync.Mutex
	calls   map[bootstrap.RegistryID]int
	files   map[bootstrap.RegistryID][]byte
	err     error
	expires time.Duration
	release chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:   make(map[bootstrap.RegistryID]int),
		files:   bootstraptest.Files(),
		expires: time.Hour,
	}
}

func (f *fakeSource) Download(ctx context.Context, id bootstrap.RegistryID) (*Document, error) {
	f.mu.Lock()
	f.calls[id]++
	release, err := f.release, f.err
	f.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Document{ID: id, Body: f.files[id], Modified: now, Expires: now.Add(f.expires)}, nil
}

func (f *fakeSource) count(id bootstrap.RegistryID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// countingKV records Get calls on top of a MemoryKV.
type countingKV struct {
	*MemoryKV
	mu     sync.Mutex
	gets   int
	getErr error
}

func (c *countingKV) Get(ctx context.Context, id bootstrap.RegistryID) (*Document, error) {
	c.mu.Lock()
	c.gets++
	err := c.getErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.MemoryKV.Get(ctx, id)
}

func (c *countingKV) getCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets
}

func TestStoreLoadReadThrough(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	m := metrics.New(prometheus.NewRegistry())
	s := NewStore(NewMemoryKV(), src, WithMetrics(m))

	for range 3 {
		doc, err := s.Load(ctx, bootstrap.RegistryDNS)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if string(doc.Body) != bootstraptest.DNS {
			t.Fatal("body mismatch")
		}
	}
	if n := src.count(bootstrap.RegistryDNS); n != 1 {
		t.Errorf("downloads = %d, want 1", n)
	}
	if got := testutil.ToFloat64(m.RegistryLoadsTotal.WithLabelValues("dns", metrics.SourceCache)); got != 2 {
		t.Errorf("cache loads = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RegistryLoadsTotal.WithLabelValues("dns", metrics.SourceUpstream)); got != 1 {
		t.Errorf("upstream loads = %v, want 1", got)
	}
}

func TestStoreExpiredRedownloads(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	src.expires = -time.Second
	s := NewStore(NewMemoryKV(), src)

	s.Load(ctx, bootstrap.RegistryASN)
	s.Load(ctx, bootstrap.RegistryASN)
	if n := src.count(bootstrap.RegistryASN); n != 2 {
		t.Errorf("downloads = %d, want 2", n)
	}
}

func TestStoreSingleFlight(t *testing.T) {
	const callers = 10
	src := newFakeSource()
	src.release = make(chan struct{})
	kv := &countingKV{MemoryKV: NewMemoryKV()}
	s := NewStore(kv, src)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Load(context.Background(), bootstrap.RegistryIPv4)
			errs <- err
		}()
	}

	// Let every caller miss the cache before the download finishes.
	deadline := time.Now().Add(5 * time.Second)
	for kv.getCount() < callers && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if n := src.count(bootstrap.RegistryIPv4); n != 1 {
		t.Errorf("downloads = %d, want 1", n)
	}
}

func TestStoreDownloadError(t *testing.T) {
	src := newFakeSource()
	src.err = errors.New("connection refused")
	s := NewStore(NewMemoryKV(), src)

	_, err := s.Registry(context.Background(), bootstrap.RegistryASN)
	if !errors.Is(err, src.err) {
		t.Fatalf("got %v, want wrapped source error", err)
	}
}

func TestStoreKVErrorFallsBackToDownload(t *testing.T) {
	src := newFakeSource()
	kv := &countingKV{MemoryKV: NewMemoryKV(), getErr: fmt.Errorf("redis: connection pool timeout")}
	s := NewStore(kv, src, WithLogger(slog.Default()))

	if _, err := s.Load(context.Background(), bootstrap.RegistryIPv6); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n := src.count(bootstrap.RegistryIPv6); n != 1 {
		t.Errorf("downloads = %d, want 1", n)
	}
}

func TestStoreRefresh(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	s := NewStore(NewMemoryKV(), src)

	s.Load(ctx, bootstrap.RegistryDNS)
	if _, err := s.Refresh(ctx, bootstrap.RegistryDNS); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n := src.count(bootstrap.RegistryDNS); n != 2 {
		t.Errorf("downloads = %d, want 2", n)
	}
}

func TestStoreFetcher(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryKV(), newFakeSource())

	reg, err := s.Registry(ctx, bootstrap.RegistryIPv4)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if len(reg.Services) != 5 {
		t.Errorf("got %d services, want 5", len(reg.Services))
	}

	// A second call returns the memoized decode.
	again, _ := s.Registry(ctx, bootstrap.RegistryIPv4)
	if again != reg {
		t.Error("expected memoized registry for unchanged document")
	}

	tags, err := s.ObjectTags(ctx)
	if err != nil {
		t.Fatalf("ObjectTags: %v", err)
	}
	if len(tags.Services) != 3 || tags.Services[0].Entries[0] != "ARIN" {
		t.Errorf("unexpected object tags: %+v", tags.Services)
	}

	if _, err := s.Registry(ctx, bootstrap.RegistryObjectTags); err == nil {
		t.Error("expected error loading object tags as a service registry")
	}
}

func TestStoreResolverEndToEnd(t *testing.T) {
	srv := newIANAServer(t, nil)
	s := NewStore(NewMemoryKV(), NewHTTPSource(srv.Client(), srv.URL, nil))
	r := bootstrap.NewResolver(s)

	got, err := r.Redirect(context.Background(), bootstrap.KindAutnum, "272796", "https", false)
	if err != nil {
		t.Fatalf("Redirect: %v", err)
	}
	if want := "https://rdap.lacnic.net/rdap/autnum/272796"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
