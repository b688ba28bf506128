package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
	"github.com/endharassment/rdap-bootstrap/internal/metrics"
	"github.com/endharassment/rdap-bootstrap/internal/registry"
)

// Config holds server configuration.
type Config struct {
	ListenAddr string
	// MatchProtocol restricts redirects to base URLs whose scheme matches
	// the incoming request.
	MatchProtocol bool
	// CORSOrigins lists the origins allowed to call /bootstrap. Empty or
	// "*" allows all.
	CORSOrigins []string
	// RateLimitPerMin is the per-IP budget. Zero disables rate limiting.
	RateLimitPerMin int
	// CopyrightHolder and LicenseURL add a copyright notice to error
	// bodies when CopyrightHolder is set.
	CopyrightHolder string
	LicenseURL      string
}

// RegistryLoader is what the server needs from the registry store: decoded
// registries for matching and raw documents for /help.
type RegistryLoader interface {
	bootstrap.Fetcher
	Load(ctx context.Context, id bootstrap.RegistryID) (*registry.Document, error)
}

// Server is the HTTP front end of the bootstrap service.
type Server struct {
	config   Config
	resolver *bootstrap.Resolver
	loader   RegistryLoader
	metrics  *metrics.Metrics
	logger   *slog.Logger
	rl       *RateLimiter
	router   chi.Router
}

// NewServer creates a new Server. m may be nil.
func NewServer(cfg Config, loader RegistryLoader, m *metrics.Metrics) *Server {
	srv := &Server{
		config:   cfg,
		resolver: bootstrap.NewResolver(loader),
		loader:   loader,
		metrics:  m,
		logger:   slog.Default(),
	}
	if cfg.RateLimitPerMin > 0 {
		rlCfg := DefaultRateLimiterConfig()
		rlCfg.RequestsPerMin = cfg.RateLimitPerMin
		srv.rl = NewRateLimiter(rlCfg)
	}

	srv.router = srv.routes()
	return srv
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(RecoveryMiddleware(s.logger))
	r.Use(MetricsMiddleware(s.metrics))

	r.Get("/healthz", s.HandleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/bootstrap", func(r chi.Router) {
		r.Use(CORSMiddleware(s.config.CORSOrigins))
		if s.rl != nil {
			r.Use(s.rateLimit)
		}

		r.Get("/ip/{prefix}", s.HandleIP)
		r.Get("/ip/{prefix}/{length}", s.HandleIP)
		r.Get("/autnum/{autnum}", s.handleQuery(bootstrap.KindAutnum, "autnum"))
		r.Get("/domain/{domain}", s.handleQuery(bootstrap.KindDomain, "domain"))
		r.Get("/nameserver/{nameserver}", s.handleQuery(bootstrap.KindNameserver, "nameserver"))
		r.Get("/entity/{entity}", s.handleQuery(bootstrap.KindEntity, "entity"))
		r.Get("/help", s.HandleHelp)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "The requested resource is not here.", s.notices(r)...)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "Only GET requests are supported.", s.notices(r)...)
	})

	return r
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Stop cleans up server resources.
func (s *Server) Stop() {
	if s.rl != nil {
		s.rl.Stop()
	}
}

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}
