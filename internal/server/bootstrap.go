package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
	"github.com/endharassment/rdap-bootstrap/internal/metrics"
)

// handleQuery returns a handler redirecting queries of the given kind,
// taking the query from the named route parameter.
func (s *Server) handleQuery(kind bootstrap.Kind, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.redirect(w, r, kind, urlParam(r, param))
	}
}

// HandleIP redirects /ip/{prefix} and /ip/{prefix}/{length}.
func (s *Server) HandleIP(w http.ResponseWriter, r *http.Request) {
	raw := urlParam(r, "prefix")
	if length := urlParam(r, "length"); length != "" {
		raw += "/" + length
	}
	s.redirect(w, r, bootstrap.KindIP, raw)
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, kind bootstrap.Kind, raw string) {
	target, err := s.resolver.Redirect(r.Context(), kind, raw, requestScheme(r), s.config.MatchProtocol)
	if err != nil {
		s.writeResolveError(w, r, kind, err)
		return
	}
	s.metrics.ObserveQuery(string(kind), metrics.OutcomeRedirect)
	http.Redirect(w, r, target, http.StatusFound)
}

// writeResolveError maps resolver errors to RDAP error responses.
func (s *Server) writeResolveError(w http.ResponseWriter, r *http.Request, kind bootstrap.Kind, err error) {
	var (
		ve *bootstrap.ValidationError
		nm *bootstrap.NoMatchError
	)
	switch {
	case errors.As(err, &ve):
		s.metrics.ObserveQuery(string(kind), metrics.OutcomeInvalid)
		writeError(w, http.StatusBadRequest, ve.Message, s.notices(r)...)
	case errors.As(err, &nm):
		s.metrics.ObserveQuery(string(kind), metrics.OutcomeNotFound)
		if nm.Reason == bootstrap.ProtocolMismatch {
			s.logger.Info("no candidate matches request scheme",
				"kind", kind,
				"query", nm.Value,
				"candidates", nm.Candidates,
				"request_id", RequestIDFromContext(r.Context()),
			)
		}
		writeError(w, http.StatusNotFound, nm.Description(), s.notices(r)...)
	default:
		s.metrics.ObserveQuery(string(kind), metrics.OutcomeError)
		s.logger.Error("resolve query",
			"kind", kind,
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "The bootstrap registry is unavailable.", s.notices(r)...)
	}
}

// HandleHelp reports the modification and publication dates of every
// registry. All registries are loaded concurrently; any failure is a 500.
func (s *Server) HandleHelp(w http.ResponseWriter, r *http.Request) {
	registryNotices, err := s.registryNotices(r.Context())
	if err != nil {
		s.logger.Error("help: load registries",
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "The bootstrap registry is unavailable.", s.notices(r)...)
		return
	}

	notices := []Notice{{
		Title:       "RDAP Bootstrap Service",
		Description: []string{"Redirects RDAP queries to the authoritative server listed in the IANA bootstrap registries."},
	}}
	notices = append(notices, registryNotices...)
	notices = append(notices, s.notices(r)...)
	writeRDAP(w, http.StatusOK, HelpResponse{
		RDAPConformance: helpConformance,
		Notices:         notices,
	})
}

func (s *Server) registryNotices(ctx context.Context) ([]Notice, error) {
	notices := make([]Notice, len(bootstrap.Registries))
	g, ctx := errgroup.WithContext(ctx)
	for i, id := range bootstrap.Registries {
		g.Go(func() error {
			doc, err := s.loader.Load(ctx, id)
			if err != nil {
				return fmt.Errorf("load %s: %w", id, err)
			}
			header, err := bootstrap.DecodeHeader(doc.Body)
			if err != nil {
				return fmt.Errorf("decode %s: %w", id, err)
			}
			notices[i] = Notice{
				Title: id.Name() + " Bootstrap File Modified and Published Dates",
				Description: []string{
					doc.Modified.UTC().Format(time.RFC3339),
					header.Publication,
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return notices, nil
}

// notices returns the notices attached to every response for r.
func (s *Server) notices(r *http.Request) []Notice {
	if s.config.CopyrightHolder == "" {
		return nil
	}
	n := Notice{
		Title:       "Copyright Notice",
		Description: []string{"Copyright " + s.config.CopyrightHolder},
	}
	if s.config.LicenseURL != "" {
		n.Links = []Link{{
			Value: requestURL(r),
			Rel:   "license",
			Type:  "text/html",
			Href:  s.config.LicenseURL,
		}}
	}
	return []Notice{n}
}

// requestScheme is the scheme the client used, honoring a reverse proxy's
// X-Forwarded-Proto.
func requestScheme(r *http.Request) string {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func requestURL(r *http.Request) string {
	u := url.URL{
		Scheme:   requestScheme(r),
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}
	return u.String()
}

// urlParam returns a decoded route parameter. chi routes on RawPath when the
// request has one, so only then is the parameter still escaped.
func urlParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}
