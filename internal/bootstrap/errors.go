package bootstrap

import "fmt"

// ValidationError reports a syntactically invalid query. It maps to a 400.
type ValidationError struct {
	Kind    Kind
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s query %q: %s", e.Kind, e.Value, e.Message)
}

func invalid(kind Kind, value string) *ValidationError {
	msg := "A valid domain name is required."
	switch kind {
	case KindIP:
		msg = "A valid IPv4 or IPv6 address is required."
	case KindAutnum:
		msg = "A valid AS number is required."
	}
	return &ValidationError{Kind: kind, Value: value, Message: msg}
}

// NoMatchReason tells why no redirect target could be chosen.
type NoMatchReason int

const (
	// NoCandidates means no service in the registry applies to the query.
	NoCandidates NoMatchReason = iota
	// ProtocolMismatch means services applied but none had a usable scheme.
	ProtocolMismatch
)

func (r NoMatchReason) String() string {
	if r == ProtocolMismatch {
		return "protocol mismatch"
	}
	return "no candidates"
}

// NoMatchError reports that a valid query has no redirect target. Both
// reasons map to a 404.
type NoMatchError struct {
	Kind       Kind
	Value      string
	Reason     NoMatchReason
	Candidates []string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no %s service for %q: %s", e.Kind, e.Value, e.Reason)
}

// Description is the client facing not-found text.
func (e *NoMatchError) Description() string {
	return fmt.Sprintf("The %s you are seeking as '%s' is not here.", e.Kind.noun(), e.Value)
}

// LoadError reports that a registry could not be obtained from the store.
type LoadError struct {
	Registry RegistryID
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s registry: %v", e.Registry, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
