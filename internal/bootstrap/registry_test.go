package bootstrap_test

import (
	"testing"

	"github.com/endharassment/rdap-bootstrap/internal/bootstrap"
	"github.com/endharassment/rdap-bootstrap/internal/bootstrap/bootstraptest"
)

func TestRegistryFilenames(t *testing.T) {
	tests := []struct {
		id   bootstrap.RegistryID
		want string
	}{
		{bootstrap.RegistryASN, "asn.json"},
		{bootstrap.RegistryIPv4, "ipv4.json"},
		{bootstrap.RegistryIPv6, "ipv6.json"},
		{bootstrap.RegistryDNS, "dns.json"},
		{bootstrap.RegistryObjectTags, "object-tags.json"},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			if got := tt.id.Filename(); got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
			for _, s := range []string{string(tt.id), tt.want} {
				id, err := bootstrap.ParseRegistryID(s)
				if err != nil || id != tt.id {
					t.Errorf("ParseRegistryID(%q) = %q, %v", s, id, err)
				}
			}
		})
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		id      bootstrap.RegistryID
		body    string
		wantErr bool
	}{
		{"dns fixture", bootstrap.RegistryDNS, bootstraptest.DNS, false},
		{"asn fixture", bootstrap.RegistryASN, bootstraptest.ASN, false},
		{"object tags fixture", bootstrap.RegistryObjectTags, bootstraptest.ObjectTags, false},
		{"empty services", bootstrap.RegistryIPv4, `{"version":"1.0","services":[]}`, false},
		{"empty object", bootstrap.RegistryDNS, `{}`, true},
		{"null", bootstrap.RegistryDNS, `null`, true},
		{"bare array", bootstrap.RegistryDNS, `[[["com"]]]`, true},
		{"missing services", bootstrap.RegistryASN, `{"version":"1.0"}`, true},
		{"missing version", bootstrap.RegistryASN, `{"services":[]}`, true},
		{"short service tuple", bootstrap.RegistryDNS, `{"version":"1.0","services":[[["com"]]]}`, true},
		{"object tags with two arrays", bootstrap.RegistryObjectTags, `{"version":"1.0","services":[[["ARIN"],["https://rdap.arin.net/registry/"]]]}`, true},
		{"not json", bootstrap.RegistryIPv6, `<html>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bootstrap.ValidateDocument(tt.id, []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDocument() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
