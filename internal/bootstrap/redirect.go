package bootstrap

import "strings"

// Select picks the redirect base URL from candidates.
//
// With matchProtocol set, the first URL using the request scheme wins and the
// first URL overall is the fallback. Otherwise https is preferred over http
// and URLs with any other scheme are never chosen.
func Select(q Query, candidates []string, scheme string, matchProtocol bool) (string, error) {
	if len(candidates) == 0 {
		return "", &NoMatchError{Kind: q.Kind(), Value: notFoundValue(q), Reason: NoCandidates}
	}
	if matchProtocol {
		if u, ok := firstWithScheme(candidates, strings.ToLower(scheme)); ok {
			return u, nil
		}
		return candidates[0], nil
	}
	if u, ok := firstWithScheme(candidates, "https"); ok {
		return u, nil
	}
	if u, ok := firstWithScheme(candidates, "http"); ok {
		return u, nil
	}
	return "", &NoMatchError{
		Kind:       q.Kind(),
		Value:      notFoundValue(q),
		Reason:     ProtocolMismatch,
		Candidates: candidates,
	}
}

func firstWithScheme(urls []string, scheme string) (string, bool) {
	prefix := scheme + "://"
	for _, u := range urls {
		if strings.HasPrefix(u, prefix) {
			return u, true
		}
	}
	return "", false
}

// Target joins a base URL and the query path.
func Target(base string, q Query) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + q.Path()
}
