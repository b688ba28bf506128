package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/endharassment/rdap-bootstrap/internal/metrics"
	"github.com/endharassment/rdap-bootstrap/internal/registry"
	"github.com/endharassment/rdap-bootstrap/internal/server"
)

func main() {
	listenAddr := flag.String("listen", envOr("RDAP_LISTEN", ":8080"), "HTTP listen address")
	cacheBackend := flag.String("cache", envOr("RDAP_CACHE", registry.BackendMemory), "registry cache backend: memory, sqlite or redis")
	dbPath := flag.String("db", envOr("RDAP_SQLITE_PATH", "./registries.db"), "SQLite database path")
	redisURL := flag.String("redis", os.Getenv("RDAP_REDIS_URL"), "Redis URL for the redis cache backend")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	kv, err := registry.OpenKV(ctx, registry.KVConfig{
		Backend:    *cacheBackend,
		SQLitePath: *dbPath,
		RedisURL:   *redisURL,
	})
	if err != nil {
		log.Fatalf("Failed to open registry cache: %v", err)
	}

	overrides, err := registry.ParseURLOverrides(os.Getenv("RDAP_BOOTSTRAP_URLS"))
	if err != nil {
		log.Fatalf("Invalid RDAP_BOOTSTRAP_URLS: %v", err)
	}

	m := metrics.NewDefault()
	store := registry.NewStore(kv, registry.NewHTTPSource(nil, os.Getenv("RDAP_BASE_URL"), overrides),
		registry.WithLogger(logger),
		registry.WithMetrics(m),
		registry.WithFetchTimeout(envDuration("RDAP_FETCH_TIMEOUT", registry.DefaultFetchTimeout)),
	)
	defer store.Close()

	cfg := server.Config{
		ListenAddr:      *listenAddr,
		MatchProtocol:   envBool("RDAP_MATCH_PROTOCOL", false),
		CORSOrigins:     server.ParseOrigins(envOr("RDAP_CORS_ORIGINS", "*")),
		RateLimitPerMin: envInt("RDAP_RATE_LIMIT", 0),
		CopyrightHolder: os.Getenv("RDAP_COPYRIGHT_HOLDER"),
		LicenseURL:      os.Getenv("RDAP_LICENSE_URL"),
	}
	srv := server.NewServer(cfg, store, m)
	defer srv.Stop()

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	if interval := envDuration("RDAP_WARM_INTERVAL", 0); interval > 0 {
		warmer := registry.NewWarmer(store, interval, logger)
		g.Go(func() error {
			if err := warmer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Printf("Registry warmer started (every %s)", interval)
	}

	g.Go(func() error {
		log.Printf("Listening on %s (cache: %s)", cfg.ListenAddr, *cacheBackend)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("Invalid %s: %v", key, err)
	}
	return d
}
