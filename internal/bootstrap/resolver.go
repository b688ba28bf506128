package bootstrap

import (
	"context"
	"errors"
	"fmt"
)

// Fetcher supplies registry snapshots. Implementations may block on a cache
// read or an upstream download; the returned registries must not be
// modified.
type Fetcher interface {
	Registry(ctx context.Context, id RegistryID) (*Registry, error)
	ObjectTags(ctx context.Context) (*ObjectTagRegistry, error)
}

// Resolution is the outcome of matching a valid query.
type Resolution struct {
	Query Query
	// URLs are the candidate base URLs in registry order. Empty when no
	// service applies.
	URLs []string
}

// Resolver validates queries and matches them against registries obtained
// from a Fetcher. It holds no mutable state.
type Resolver struct {
	fetcher Fetcher
}

// NewResolver returns a Resolver backed by f.
func NewResolver(f Fetcher) *Resolver {
	return &Resolver{fetcher: f}
}

// Resolve validates raw and returns the candidate URLs for it. Errors are
// *ValidationError or *LoadError; no match is an empty URL list.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, raw string) (*Resolution, error) {
	q, err := Parse(kind, raw)
	if err != nil {
		return nil, err
	}
	urls, err := r.Match(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Resolution{Query: q, URLs: urls}, nil
}

// Match loads the registry q applies to and runs the matching matcher.
// Entity queries without an object tag never touch the registry.
func (r *Resolver) Match(ctx context.Context, q Query) ([]string, error) {
	if eq, ok := q.(EntityQuery); ok {
		if eq.Tag == "" {
			return nil, nil
		}
		reg, err := r.fetcher.ObjectTags(ctx)
		if err != nil {
			return nil, loadError(RegistryObjectTags, err)
		}
		return MatchEntity(reg, eq), nil
	}

	reg, err := r.fetcher.Registry(ctx, q.Registry())
	if err != nil {
		return nil, loadError(q.Registry(), err)
	}
	switch q := q.(type) {
	case IPQuery:
		return MatchIP(reg, q), nil
	case ASNQuery:
		return MatchASN(reg, q), nil
	case DomainQuery:
		return MatchDomain(reg, q), nil
	default:
		return nil, fmt.Errorf("unsupported query %T", q)
	}
}

// Redirect resolves raw and selects the redirect target for a request made
// over scheme. A valid query without a usable service yields *NoMatchError.
func (r *Resolver) Redirect(ctx context.Context, kind Kind, raw, scheme string, matchProtocol bool) (string, error) {
	res, err := r.Resolve(ctx, kind, raw)
	if err != nil {
		return "", err
	}
	base, err := Select(res.Query, res.URLs, scheme, matchProtocol)
	if err != nil {
		return "", err
	}
	return Target(base, res.Query), nil
}

func loadError(id RegistryID, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{Registry: id, Err: err}
}
