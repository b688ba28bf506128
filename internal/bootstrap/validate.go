package bootstrap

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"
)

var (
	// 1 to 4 octets (0-255) followed by in-addr.arpa.
	reIPv4PTR = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){1,4}in-addr\.arpa$`)
	// 6 to 32 labels of a single hexadecimal digit followed by ip6.arpa.
	reIPv6PTR = regexp.MustCompile(`^(?:[0-9a-f]\.){6,32}ip6\.arpa$`)
	// Dot separated labels of digits, letters (A-labels and U-labels) and hyphens.
	reDomain = regexp.MustCompile(`^[0-9\p{L}-]+(?:\.[0-9\p{L}-]+)*$`)
)

// Parse validates raw as a query of the given kind. IP queries take the
// address and optional prefix length joined by '/'.
func Parse(kind Kind, raw string) (Query, error) {
	switch kind {
	case KindIP:
		return ParseIP(raw)
	case KindAutnum:
		return ParseASN(raw)
	case KindDomain, KindNameserver:
		return ParseDomain(kind, raw)
	case KindEntity:
		return ParseEntity(raw), nil
	default:
		return nil, &ValidationError{Kind: kind, Value: raw, Message: "Unsupported query type."}
	}
}

// ParseIP validates an IPv4 or IPv6 address with an optional prefix length.
// IPv4 addresses may omit trailing octets, which are taken as zero. Without a
// prefix length the query is a single host.
func ParseIP(raw string) (IPQuery, error) {
	text, length, hasLength := strings.Cut(raw, "/")
	text = strings.ToLower(text)

	var (
		addr    netip.Addr
		maxBits int
	)
	if a, ok := parseIPv4(text); ok {
		addr, maxBits = a, 32
	} else if a, err := netip.ParseAddr(text); err == nil && a.Is6() && a.Zone() == "" {
		addr, maxBits = a, 128
	} else {
		return IPQuery{}, invalid(KindIP, raw)
	}

	bits := maxBits
	if hasLength {
		n, ok := parsePrefixLength(length, maxBits)
		if !ok {
			return IPQuery{}, invalid(KindIP, raw)
		}
		bits = n
	}
	return IPQuery{queryBase: queryBase{kind: KindIP, raw: raw}, Prefix: netip.PrefixFrom(addr, bits)}, nil
}

// ParseASN validates a plain decimal 32-bit AS number.
func ParseASN(raw string) (ASNQuery, error) {
	if !allDigits(raw) {
		return ASNQuery{}, invalid(KindAutnum, raw)
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return ASNQuery{}, invalid(KindAutnum, raw)
	}
	return ASNQuery{queryBase: queryBase{kind: KindAutnum, raw: raw}, ASN: uint32(n)}, nil
}

// ParseDomain validates a domain or nameserver name. Reverse DNS names under
// in-addr.arpa and ip6.arpa are decoded into an IPQuery; anything else
// becomes a DomainQuery.
func ParseDomain(kind Kind, raw string) (Query, error) {
	name := strings.ToLower(strings.TrimSuffix(raw, "."))
	base := queryBase{kind: kind, raw: raw}

	switch {
	case strings.HasSuffix(name, ipv4ArpaSuffix):
		if !reIPv4PTR.MatchString(name) {
			return nil, invalid(kind, raw)
		}
		p, err := ResolveIPv4Pointer(name)
		if err != nil {
			return nil, invalid(kind, raw)
		}
		return IPQuery{queryBase: base, Prefix: p.Prefix()}, nil

	case strings.HasSuffix(name, ipv6ArpaSuffix):
		if !reIPv6PTR.MatchString(name) {
			return nil, invalid(kind, raw)
		}
		p, err := ResolveIPv6Pointer(name)
		if err != nil {
			return nil, invalid(kind, raw)
		}
		addr, err := p.Addr()
		if err != nil {
			return nil, invalid(kind, raw)
		}
		return IPQuery{queryBase: base, Prefix: netip.PrefixFrom(addr, 128)}, nil
	}

	if !reDomain.MatchString(name) {
		return nil, invalid(kind, raw)
	}
	return DomainQuery{queryBase: base, Name: name, Labels: strings.Split(name, ".")}, nil
}

// ParseEntity accepts any handle. The object tag is the text after the last
// hyphen; handles without one resolve to no match.
func ParseEntity(raw string) EntityQuery {
	q := EntityQuery{queryBase: queryBase{kind: KindEntity, raw: raw}}
	if i := strings.LastIndexByte(raw, '-'); i >= 0 && i+1 < len(raw) {
		q.Tag = raw[i+1:]
	}
	return q
}

// parseIPv4 accepts 1 to 4 dotted decimal octets and zero fills the rest.
func parseIPv4(s string) (netip.Addr, bool) {
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return netip.Addr{}, false
	}
	var octets [4]byte
	for i, p := range parts {
		v, ok := parseOctet(p)
		if !ok {
			return netip.Addr{}, false
		}
		octets[i] = v
	}
	return netip.AddrFrom4(octets), true
}

// parseOctet accepts 1 to 3 decimal digits with a value up to 255. Leading
// zeros are allowed.
func parseOctet(s string) (byte, bool) {
	if len(s) == 0 || len(s) > 3 || !allDigits(s) {
		return 0, false
	}
	n, _ := strconv.Atoi(s)
	if n > 255 {
		return 0, false
	}
	return byte(n), true
}

// parsePrefixLength accepts 0..maxBits without leading zeros.
func parsePrefixLength(s string, maxBits int) (int, bool) {
	if !allDigits(s) || len(s) > 3 || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	n, _ := strconv.Atoi(s)
	if n > maxBits {
		return 0, false
	}
	return n, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
