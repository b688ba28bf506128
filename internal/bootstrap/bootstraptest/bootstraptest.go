// Package bootstraptest provides registry fixtures modelled on the IANA
// bootstrap files and an in-memory bootstrap.Fetcher for tests.
package bootstraptest

import (
	"context"
	"fmt"
	"sync"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
)

const DNS = `{
  "description": "RDAP bootstrap file for Domain Name System registrations",
  "publication": "2024-05-01T18:00:01Z",
  "services": [
    [["com"], ["https://rdap.verisign.com/com/v1/"]],
    [["net"], ["https://rdap.verisign.com/net/v1/"]],
    [["foo", "xn--flw351e", "zip"], ["https://www.registry.google/rdap/"]],
    [["org"], ["https://rdap.publicinterestregistry.org/rdap/"]]
  ],
  "version": "1.0"
}`

const IPv4 = `{
  "description": "RDAP bootstrap file for IPv4 address allocations",
  "publication": "2024-04-03T18:00:01Z",
  "services": [
    [["41.0.0.0/8", "102.0.0.0/8", "105.0.0.0/8", "154.0.0.0/8", "196.0.0.0/8", "197.0.0.0/8"],
     ["https://rdap.afrinic.net/rdap/", "http://rdap.afrinic.net/rdap/"]],
    [["1.0.0.0/8", "14.0.0.0/8", "27.0.0.0/8", "36.0.0.0/8"], ["https://rdap.apnic.net/"]],
    [["3.0.0.0/8", "4.0.0.0/8", "7.0.0.0/8", "8.0.0.0/8", "15.0.0.0/8", "192.0.0.0/8"],
     ["http://rdap.arin.net/registry/", "https://rdap.arin.net/registry/"]],
    [["2.0.0.0/8", "5.0.0.0/8", "31.0.0.0/8"], ["https://rdap.db.ripe.net/"]],
    [["177.0.0.0/8", "179.0.0.0/8"], ["https://rdap.lacnic.net/rdap/"]]
  ],
  "version": "1.0"
}`

const IPv6 = `{
  "description": "RDAP bootstrap file for IPv6 address allocations",
  "publication": "2024-04-03T18:00:01Z",
  "services": [
    [["2001:200::/23", "2001:4400::/23", "2001:c00::/23", "2001:e00::/23", "2400::/12"],
     ["https://rdap.apnic.net/"]],
    [["2001:400::/23", "2001:1800::/23", "2600::/12", "2620::/23", "2630::/12"],
     ["https://rdap.arin.net/registry/", "http://rdap.arin.net/registry/"]],
    [["2001:600::/23", "2001:800::/22", "2003::/18", "2a00::/12", "2a10::/12"],
     ["https://rdap.db.ripe.net/"]],
    [["2001:4200::/23", "2c00::/12"],
     ["https://rdap.afrinic.net/rdap/", "http://rdap.afrinic.net/rdap/"]],
    [["2001:1200::/23", "2800::/12"], ["https://rdap.lacnic.net/rdap/"]]
  ],
  "version": "1.0"
}`

const ASN = `{
  "description": "RDAP bootstrap file for 32-bit Autonomous System Number allocations",
  "publication": "2024-04-10T18:00:01Z",
  "services": [
    [["1-1876", "1902-2042", "2044-2046"],
     ["https://rdap.arin.net/registry/", "http://rdap.arin.net/registry/"]],
    [["1877-1901", "2043"], ["https://rdap.db.ripe.net/"]],
    [["4608-4865", "131072-141625"], ["https://rdap.apnic.net/"]],
    [["262144-273820"], ["https://rdap.lacnic.net/rdap/"]],
    [["36864-37887", "327680-329727"], ["https://rdap.afrinic.net/rdap/"]]
  ],
  "version": "1.0"
}`

const ObjectTags = `{
  "description": "RDAP bootstrap file for service provider object tags",
  "publication": "2024-01-22T21:00:02Z",
  "services": [
    [["andy@arin.net"], ["ARIN"],
     ["https://rdap.arin.net/registry/", "http://rdap.arin.net/registry/"]],
    [["helpdesk@apnic.net"], ["APNIC"], ["https://rdap.apnic.net/"]],
    [["bje@ripe.net"], ["RIPE"], ["https://rdap.db.ripe.net/"]]
  ],
  "version": "1.0"
}`

// Files maps each registry to its fixture document.
func Files() map[bootstrap.RegistryID][]byte {
	return map[bootstrap.RegistryID][]byte{
		bootstrap.RegistryDNS:        []byte(DNS),
		bootstrap.RegistryIPv4:       []byte(IPv4),
		bootstrap.RegistryIPv6:       []byte(IPv6),
		bootstrap.RegistryASN:        []byte(ASN),
		bootstrap.RegistryObjectTags: []byte(ObjectTags),
	}
}

// IANAFiles maps the paths data.iana.org publishes the registries under to
// their fixture documents.
func IANAFiles() map[string][]byte {
	return map[string][]byte{
		"/asn.json":         []byte(ASN),
		"/ipv4.json":        []byte(IPv4),
		"/ipv6.json":        []byte(IPv6),
		"/dns.json":         []byte(DNS),
		"/object-tags.json": []byte(ObjectTags),
	}
}

// Fetcher serves the fixture registries and counts lookups per registry.
// Setting Err makes every lookup fail.
type Fetcher struct {
	Err error

	mu    sync.Mutex
	calls map[bootstrap.RegistryID]int
	files map[bootstrap.RegistryID][]byte
}

// NewFetcher returns a Fetcher over Files.
func NewFetcher() *Fetcher {
	return &Fetcher{
		calls: make(map[bootstrap.RegistryID]int),
		files: Files(),
	}
}

// Calls returns how many times id was requested.
func (f *Fetcher) Calls(id bootstrap.RegistryID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *Fetcher) body(id bootstrap.RegistryID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if f.Err != nil {
		return nil, f.Err
	}
	b, ok := f.files[id]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", id)
	}
	return b, nil
}

// Registry implements bootstrap.Fetcher.
func (f *Fetcher) Registry(_ context.Context, id bootstrap.RegistryID) (*bootstrap.Registry, error) {
	b, err := f.body(id)
	if err != nil {
		return nil, err
	}
	return bootstrap.DecodeRegistry(b)
}

// ObjectTags implements bootstrap.Fetcher.
func (f *Fetcher) ObjectTags(_ context.Context) (*bootstrap.ObjectTagRegistry, error) {
	b, err := f.body(bootstrap.RegistryObjectTags)
	if err != nil {
		return nil, err
	}
	return bootstrap.DecodeObjectTags(b)
}
