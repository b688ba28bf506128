package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
)

const (
	// DefaultExpiry is how long a download is served when the upstream sends
	// no usable Expires header.
	DefaultExpiry = 24 * time.Hour

	// maxBodyBytes is the largest registry file we accept.
	maxBodyBytes = 16 << 20 // 16 MiB

	userAgent = "rdap-bootstrap/1.0 (+https://github.com/endharassment/rdap-bootstrap)"
)

// Source downloads registry files.
type Source interface {
	Download(ctx context.Context, id bootstrap.RegistryID) (*Document, error)
}

// HTTPSource downloads registry files over HTTP, by default from IANA.
type HTTPSource struct {
	client    *http.Client
	baseURL   string
	overrides map[bootstrap.RegistryID]string
	now       func() time.Time
}

// NewHTTPSource creates a source that fetches <baseURL><file name> for each
// registry, or the URL in overrides when one is set. An empty baseURL means
// bootstrap.DefaultBaseURL; a nil client means a client with a 30 second
// timeout.
func NewHTTPSource(client *http.Client, baseURL string, overrides map[bootstrap.RegistryID]string) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = bootstrap.DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &HTTPSource{
		client:    client,
		baseURL:   baseURL,
		overrides: overrides,
		now:       time.Now,
	}
}

// ParseURLOverrides decodes a JSON object mapping registry keys (asn, ipv4,
// ipv6, dns, object_tags) to download URLs. Empty input yields no overrides.
func ParseURLOverrides(s string) (map[bootstrap.RegistryID]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("parse bootstrap URL overrides: %w", err)
	}
	out := make(map[bootstrap.RegistryID]string, len(raw))
	for key, u := range raw {
		id, err := bootstrap.ParseRegistryID(strings.ReplaceAll(key, "_", "-"))
		if err != nil {
			return nil, fmt.Errorf("parse bootstrap URL overrides: %w", err)
		}
		out[id] = u
	}
	return out, nil
}

// URL returns where id is downloaded from.
func (s *HTTPSource) URL(id bootstrap.RegistryID) string {
	if u, ok := s.overrides[id]; ok && u != "" {
		return u
	}
	return s.baseURL + id.Filename()
}

// Download fetches and checks one registry file.
func (s *HTTPSource) Download(ctx context.Context, id bootstrap.RegistryID) (*Document, error) {
	target := s.URL(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", target, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("fetching %s: body exceeds %d bytes", target, maxBodyBytes)
	}
	if err := bootstrap.ValidateDocument(id, body); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}

	now := s.now()
	doc := &Document{
		ID:       id,
		Body:     body,
		Modified: now,
		Expires:  now.Add(DefaultExpiry),
	}
	if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		doc.Modified = t
	}
	if t, err := http.ParseTime(resp.Header.Get("Expires")); err == nil && t.After(now) {
		doc.Expires = t
	}
	return doc, nil
}
