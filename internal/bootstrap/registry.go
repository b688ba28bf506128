package bootstrap

import (
	"encoding/json"
	"fmt"

	rdapbootstrap "github.com/openrdap/rdap/bootstrap"
)

// RegistryID identifies one of the IANA bootstrap registry files.
type RegistryID string

const (
	RegistryASN        RegistryID = "asn"
	RegistryIPv4       RegistryID = "ipv4"
	RegistryIPv6       RegistryID = "ipv6"
	RegistryDNS        RegistryID = "dns"
	RegistryObjectTags RegistryID = "object-tags"
)

// Registries lists every registry in a stable order.
var Registries = []RegistryID{
	RegistryASN,
	RegistryIPv4,
	RegistryIPv6,
	RegistryDNS,
	RegistryObjectTags,
}

// ParseRegistryID accepts a registry id or its file name.
func ParseRegistryID(s string) (RegistryID, error) {
	for _, id := range Registries {
		if s == string(id) || s == id.Filename() {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown bootstrap registry %q", s)
}

func (id RegistryID) registryType() rdapbootstrap.RegistryType {
	switch id {
	case RegistryASN:
		return rdapbootstrap.ASN
	case RegistryIPv4:
		return rdapbootstrap.IPv4
	case RegistryIPv6:
		return rdapbootstrap.IPv6
	default:
		return rdapbootstrap.DNS
	}
}

// Filename returns the file name IANA publishes the registry under. The
// object tag registry (RFC 8521) has no openrdap registry type.
func (id RegistryID) Filename() string {
	if id == RegistryObjectTags {
		return "object-tags.json"
	}
	return id.registryType().Filename()
}

// Name is the human readable label used in help notices.
func (id RegistryID) Name() string {
	switch id {
	case RegistryASN:
		return "AS"
	case RegistryIPv4:
		return "IPv4"
	case RegistryIPv6:
		return "IPv6"
	case RegistryObjectTags:
		return "ObjectTags"
	default:
		return "Domain"
	}
}

// DefaultBaseURL is where IANA publishes the bootstrap files.
const DefaultBaseURL = rdapbootstrap.DefaultBaseURL

// Header carries the top level members shared by all registry files.
type Header struct {
	Version     string `json:"version"`
	Publication string `json:"publication"`
	Description string `json:"description,omitempty"`
}

// Registry is an IP, ASN or DNS bootstrap registry (RFC 9224 section 3).
type Registry struct {
	Header
	Services []Service `json:"services"`
}

// ObjectTagRegistry is the object tag registry (RFC 8521), whose services
// carry a leading contacts array.
type ObjectTagRegistry struct {
	Header
	Services []ObjectTagService `json:"services"`
}

// Service pairs registry entries with the RDAP base URLs serving them. URL
// order is the publisher's preference order.
type Service struct {
	Entries []string
	URLs    []string
}

// ObjectTagService is a Service from the object tag registry.
type ObjectTagService struct {
	Contacts []string
	Entries  []string
	URLs     []string
}

// UnmarshalJSON decodes the positional [entries, urls] form.
func (s *Service) UnmarshalJSON(b []byte) error {
	parts, err := decodeTuple(b, 2)
	if err != nil {
		return err
	}
	s.Entries, s.URLs = parts[0], parts[1]
	return nil
}

// MarshalJSON encodes the positional [entries, urls] form.
func (s Service) MarshalJSON() ([]byte, error) {
	return json.Marshal([][]string{nonNil(s.Entries), nonNil(s.URLs)})
}

// UnmarshalJSON decodes the positional [contacts, entries, urls] form.
func (s *ObjectTagService) UnmarshalJSON(b []byte) error {
	parts, err := decodeTuple(b, 3)
	if err != nil {
		return err
	}
	s.Contacts, s.Entries, s.URLs = parts[0], parts[1], parts[2]
	return nil
}

// MarshalJSON encodes the positional [contacts, entries, urls] form.
func (s ObjectTagService) MarshalJSON() ([]byte, error) {
	return json.Marshal([][]string{nonNil(s.Contacts), nonNil(s.Entries), nonNil(s.URLs)})
}

func decodeTuple(b []byte, n int) ([][]string, error) {
	var parts [][]string
	if err := json.Unmarshal(b, &parts); err != nil {
		return nil, fmt.Errorf("decode service: %w", err)
	}
	if len(parts) != n {
		return nil, fmt.Errorf("decode service: want %d arrays, got %d", n, len(parts))
	}
	return parts, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// DecodeRegistry parses an IP, ASN or DNS registry document.
func DecodeRegistry(body []byte) (*Registry, error) {
	return decode[Registry](body)
}

// DecodeObjectTags parses the object tag registry document.
func DecodeObjectTags(body []byte) (*ObjectTagRegistry, error) {
	return decode[ObjectTagRegistry](body)
}

// DecodeHeader parses only the top level members of any registry document.
func DecodeHeader(body []byte) (*Header, error) {
	return decode[Header](body)
}

// ValidateDocument checks that body is a usable registry file for id: a JSON
// object with a version and a services array whose tuples have the arity of
// that registry.
func ValidateDocument(id RegistryID, body []byte) error {
	var (
		header      Header
		hasServices bool
	)
	if id == RegistryObjectTags {
		reg, err := DecodeObjectTags(body)
		if err != nil {
			return err
		}
		header, hasServices = reg.Header, reg.Services != nil
	} else {
		reg, err := DecodeRegistry(body)
		if err != nil {
			return err
		}
		header, hasServices = reg.Header, reg.Services != nil
	}
	if header.Version == "" {
		return fmt.Errorf("%s registry: missing version", id)
	}
	if !hasServices {
		return fmt.Errorf("%s registry: missing services", id)
	}
	return nil
}

func decode[T any](body []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("parse bootstrap registry: %w", err)
	}
	return v, nil
}
