package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
)

// Warmer re-downloads registries in the background before their cached
// copies expire, so that queries rarely wait on IANA.
type Warmer struct {
	store        *Store
	registries   []bootstrap.RegistryID
	tickInterval time.Duration
	logger       *slog.Logger
}

// NewWarmer creates a warmer that checks every registry once per interval.
func NewWarmer(s *Store, interval time.Duration, logger *slog.Logger) *Warmer {
	return &Warmer{
		store:        s,
		registries:   bootstrap.Registries,
		tickInterval: interval,
		logger:       logger,
	}
}

// Run starts a ticker loop that calls warm on each tick.
// It blocks until the context is cancelled.
func (w *Warmer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	// Run once immediately on start.
	w.warm(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("registry warmer shutting down")
			return ctx.Err()
		case <-ticker.C:
			w.warm(ctx)
		}
	}
}

// warm refreshes every registry that is missing from the cache or would
// expire before the next tick.
func (w *Warmer) warm(ctx context.Context) {
	deadline := time.Now().Add(w.tickInterval)
	refreshed, failed := 0, 0

	for _, id := range w.registries {
		if ctx.Err() != nil {
			return
		}
		doc, err := w.store.Cached(ctx, id)
		if err != nil && !errors.Is(err, ErrNotCached) {
			w.logger.Warn("reading cached registry", "registry", id, "error", err)
		}
		if err == nil && doc.Fresh(deadline) {
			continue
		}
		if _, err := w.store.Refresh(ctx, id); err != nil {
			failed++
			continue
		}
		refreshed++
	}

	w.logger.Info("registry warm complete",
		"registries_checked", len(w.registries),
		"refreshed", refreshed,
		"failed", failed,
	)
}
