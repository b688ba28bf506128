package bootstrap

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"

	"github.com/miekg/dns"
)

const (
	ipv4ArpaSuffix = ".in-addr.arpa"
	ipv6ArpaSuffix = ".ip6.arpa"
)

// IPv4Pointer is a decoded in-addr.arpa name.
type IPv4Pointer struct {
	Address netip.Addr
	// Bits is eight times the number of octets present in the name.
	Bits int
}

// Prefix returns the network the pointer names.
func (p IPv4Pointer) Prefix() netip.Prefix {
	return netip.PrefixFrom(p.Address, p.Bits)
}

// ResolveIPv4Pointer decodes names such as "48.175.192.in-addr.arpa" into
// 192.175.48.0/24. Missing trailing octets are zero.
func ResolveIPv4Pointer(name string) (IPv4Pointer, error) {
	labels := dns.SplitDomainName(name)
	if len(labels) < 3 || len(labels) > 6 {
		return IPv4Pointer{}, fmt.Errorf("ptr %q: want 1 to 4 octet labels", name)
	}
	labels = slices.Clone(labels[:len(labels)-2])
	slices.Reverse(labels)

	var octets [4]byte
	for i, l := range labels {
		v, ok := parseOctet(l)
		if !ok {
			return IPv4Pointer{}, fmt.Errorf("ptr %q: bad octet %q", name, l)
		}
		octets[i] = v
	}
	return IPv4Pointer{Address: netip.AddrFrom4(octets), Bits: 8 * len(labels)}, nil
}

// IPv6Pointer is a decoded ip6.arpa name split into the hextet groups used
// for matching.
type IPv6Pointer struct {
	// Network is the first three hextets joined by ':'.
	Network string
	// Subnet is the fifth hextet, empty when the name is shorter.
	Subnet string
	// Interface holds hextets six to eight. It is decoded for completeness
	// and never used for matching.
	Interface string
}

// Query returns the address text handed to the IPv6 matcher.
func (p IPv6Pointer) Query() string {
	if p.Subnet != "" {
		return p.Network + ":" + p.Subnet + "::"
	}
	return p.Network + "::"
}

// Addr parses Query.
func (p IPv6Pointer) Addr() (netip.Addr, error) {
	return netip.ParseAddr(p.Query())
}

// ResolveIPv6Pointer decodes names such as "0.0.e.0.1.0.0.2.ip6.arpa". The
// nibbles are reversed and grouped into hextets of four; the last hextet may
// be partial.
func ResolveIPv6Pointer(name string) (IPv6Pointer, error) {
	labels := dns.SplitDomainName(name)
	if len(labels) < 3 {
		return IPv6Pointer{}, fmt.Errorf("ptr %q: no nibble labels", name)
	}
	nibbles := slices.Clone(labels[:len(labels)-2])
	slices.Reverse(nibbles)
	for _, n := range nibbles {
		if len(n) != 1 || !isHexDigit(n[0]) {
			return IPv6Pointer{}, fmt.Errorf("ptr %q: bad nibble %q", name, n)
		}
	}

	var hextets []string
	for chunk := range slices.Chunk(nibbles, 4) {
		hextets = append(hextets, strings.Join(chunk, ""))
	}

	p := IPv6Pointer{Network: strings.Join(hextets[:min(3, len(hextets))], ":")}
	if len(hextets) > 4 {
		p.Subnet = hextets[4]
	}
	if len(hextets) > 5 {
		p.Interface = strings.Join(hextets[5:min(8, len(hextets))], ":")
	}
	return p, nil
}

func isHexDigit(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f'
}
