package bootstrap

import (
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// All matchers scan services in registry order and return the URL list of
// the first applicable service. No match is an empty (nil) list.

// MatchDomain matches the top label of q against the DNS registry. The label
// and each shorter '.'-separated trailing substring of it are tried as
// literal entries.
func MatchDomain(reg *Registry, q DomainQuery) []string {
	label := topLabelASCII(q.TopLabel())
	if label == "" {
		return nil
	}
	for _, svc := range reg.Services {
		for idx := 0; ; {
			if slices.Contains(svc.Entries, label[idx:]) {
				return svc.URLs
			}
			next := strings.IndexByte(label[idx:], '.')
			if next < 0 {
				break
			}
			idx += next + 1
		}
	}
	return nil
}

// topLabelASCII converts a U-label to its A-label so that internationalized
// names match the xn-- entries IANA publishes. Labels that do not convert are
// used as given.
func topLabelASCII(label string) string {
	if a, err := idna.Lookup.ToASCII(label); err == nil && a != "" {
		return a
	}
	return label
}

// MatchIP returns the URLs of the first service with an entry containing the
// query network. Entries with a zero length mask never match.
func MatchIP(reg *Registry, q IPQuery) []string {
	query := q.Prefix
	for _, svc := range reg.Services {
		for _, entry := range svc.Entries {
			network, ok := parseEntryPrefix(entry)
			if !ok || network.Bits() == 0 {
				continue
			}
			if network.Addr().Is4() != query.Addr().Is4() {
				continue
			}
			if network.Bits() <= query.Bits() && network.Contains(query.Addr()) {
				return svc.URLs
			}
		}
	}
	return nil
}

// parseEntryPrefix parses a CIDR entry. A bare address is a full length
// prefix.
func parseEntryPrefix(entry string) (netip.Prefix, bool) {
	entry = strings.TrimSpace(entry)
	if p, err := netip.ParsePrefix(entry); err == nil {
		return p.Masked(), true
	}
	if a, err := netip.ParseAddr(entry); err == nil {
		return netip.PrefixFrom(a, a.BitLen()), true
	}
	return netip.Prefix{}, false
}

// MatchASN returns the URLs of the first service whose entries list the AS
// number or an inclusive range containing it.
func MatchASN(reg *Registry, q ASNQuery) []string {
	for _, svc := range reg.Services {
		for _, entry := range svc.Entries {
			lo, hi, ok := parseASNRange(entry)
			if ok && lo <= q.ASN && q.ASN <= hi {
				return svc.URLs
			}
		}
	}
	return nil
}

// parseASNRange parses "64512" or "64512-65534".
func parseASNRange(s string) (uint32, uint32, bool) {
	loText, hiText, isRange := strings.Cut(strings.TrimSpace(s), "-")
	lo, err := strconv.ParseUint(loText, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	if !isRange {
		return uint32(lo), uint32(lo), true
	}
	hi, err := strconv.ParseUint(hiText, 10, 32)
	if err != nil || hi < lo {
		return 0, 0, false
	}
	return uint32(lo), uint32(hi), true
}

// MatchEntity returns the URLs of the first object tag service listing the
// query tag. Comparison is case sensitive.
func MatchEntity(reg *ObjectTagRegistry, q EntityQuery) []string {
	if q.Tag == "" {
		return nil
	}
	for _, svc := range reg.Services {
		if slices.Contains(svc.Entries, q.Tag) {
			return svc.URLs
		}
	}
	return nil
}
