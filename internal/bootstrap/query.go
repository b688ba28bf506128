package bootstrap

import (
	"fmt"
	"net/netip"
	"strings"
)

// Kind is an RDAP query type (RFC 9082 section 3.1).
type Kind string

const (
	KindIP         Kind = "ip"
	KindAutnum     Kind = "autnum"
	KindDomain     Kind = "domain"
	KindNameserver Kind = "nameserver"
	KindEntity     Kind = "entity"
)

// Kinds lists the query types the resolver understands.
var Kinds = []Kind{KindIP, KindAutnum, KindDomain, KindNameserver, KindEntity}

// ParseKind maps a path segment to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown query type %q", s)
}

func (k Kind) noun() string {
	switch k {
	case KindIP:
		return "IP address"
	case KindAutnum:
		return "AS"
	default:
		return string(k)
	}
}

// Query is a validated query. Values are produced only by the Parse
// functions.
type Query interface {
	// Kind is the query type the caller asked for.
	Kind() Kind
	// Registry is the bootstrap registry the query is matched against.
	Registry() RegistryID
	// Value is the query exactly as received.
	Value() string
	// Path is the RDAP path appended to the selected base URL.
	Path() string
}

type queryBase struct {
	kind Kind
	raw  string
}

func (q queryBase) Kind() Kind     { return q.kind }
func (q queryBase) Value() string  { return q.raw }
func (q queryBase) Path() string   { return string(q.kind) + "/" + q.raw }
func (q queryBase) String() string { return q.Path() }

// IPQuery is an IPv4 or IPv6 network. Domain and nameserver queries for
// reverse DNS names are decoded into an IPQuery as well.
type IPQuery struct {
	queryBase
	Prefix netip.Prefix
}

// Registry implements Query.
func (q IPQuery) Registry() RegistryID {
	if q.Prefix.Addr().Is4() {
		return RegistryIPv4
	}
	return RegistryIPv6
}

// ASNQuery is an autonomous system number.
type ASNQuery struct {
	queryBase
	ASN uint32
}

// Registry implements Query.
func (ASNQuery) Registry() RegistryID { return RegistryASN }

// DomainQuery is a forward domain or nameserver name.
type DomainQuery struct {
	queryBase
	// Name is lowercased without a trailing dot.
	Name string
	// Labels are the dot separated labels of Name.
	Labels []string
}

// Registry implements Query.
func (DomainQuery) Registry() RegistryID { return RegistryDNS }

// TopLabel returns the rightmost label.
func (q DomainQuery) TopLabel() string {
	if len(q.Labels) == 0 {
		return ""
	}
	return q.Labels[len(q.Labels)-1]
}

// EntityQuery is an entity handle, optionally carrying an object tag suffix.
type EntityQuery struct {
	queryBase
	// Tag is the text after the last hyphen, empty when there is none.
	Tag string
}

// Registry implements Query.
func (EntityQuery) Registry() RegistryID { return RegistryObjectTags }

// notFoundValue is the value quoted in not-found messages. For IP queries
// this drops the prefix length.
func notFoundValue(q Query) string {
	v := q.Value()
	if q.Kind() == KindIP {
		if i := strings.IndexByte(v, '/'); i >= 0 {
			return v[:i]
		}
	}
	return v
}
