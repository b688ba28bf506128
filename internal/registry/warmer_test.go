package registry

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
)

func TestWarmerRefreshesMissingAndStale(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	kv := NewMemoryKV()
	s := NewStore(kv, src)

	now := time.Now()
	// Fresh well past the next tick: left alone.
	kv.Put(ctx, &Document{ID: bootstrap.RegistryASN, Body: []byte(`{}`), Expires: now.Add(48 * time.Hour)})
	// Expires before the next tick: refreshed.
	kv.Put(ctx, &Document{ID: bootstrap.RegistryDNS, Body: []byte(`{}`), Expires: now.Add(time.Minute)})

	w := NewWarmer(s, time.Hour, slog.Default())
	w.warm(ctx)

	tests := []struct {
		id   bootstrap.RegistryID
		want int
	}{
		{bootstrap.RegistryASN, 0},
		{bootstrap.RegistryDNS, 1},
		{bootstrap.RegistryIPv4, 1},
		{bootstrap.RegistryIPv6, 1},
		{bootstrap.RegistryObjectTags, 1},
	}
	for _, tt := range tests {
		if got := src.count(tt.id); got != tt.want {
			t.Errorf("%s downloads = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestWarmerRunStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	s := NewStore(NewMemoryKV(), src)
	w := NewWarmer(s, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// The first pass runs immediately.
	deadline := time.Now().Add(5 * time.Second)
	for src.count(bootstrap.RegistryObjectTags) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if src.count(bootstrap.RegistryASN) != 1 {
		t.Errorf("asn downloads = %d, want 1", src.count(bootstrap.RegistryASN))
	}
}
