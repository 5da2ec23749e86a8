package utils

import (
	"testing"
)

func TestCanonicalDNSName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple domain", "example.com", "example.com"},
		{"trailing dot", "example.com.", "example.com"},
		{"multiple trailing dots", "example.com..", "example.com"},
		{"uppercase", "EXAMPLE.COM", "example.com"},
		{"mixed case and whitespace", "  WwW.ExAmPlE.CoM.  ", "www.example.com"},
		{"root", ".", ""},
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"reverse name", "5.0.0.10.IN-ADDR.ARPA.", "5.0.0.10.in-addr.arpa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalDNSName(tt.input); got != tt.expected {
				t.Errorf("CanonicalDNSName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTrimDNSName_PreservesCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Foo.Bar.", "Foo.Bar"},
		{"foo.bar", "foo.bar"},
		{" WwW.eXaMpLe.CoM. ", "WwW.eXaMpLe.CoM"},
		{".", ""},
	}
	for _, tt := range tests {
		if got := TrimDNSName(tt.input); got != tt.expected {
			t.Errorf("TrimDNSName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestGetApexDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple domain", "example.com.", "example.com"},
		{"subdomain", "www.example.com", "example.com"},
		{"deep subdomain", "api.service.example.com", "example.com"},
		{"co.uk", "www.example.co.uk", "example.co.uk"},
		{"github.io", "subdomain.user.github.io", "user.github.io"},
		{"single label fallback", "localhost", "localhost"},
		{"empty", "", ""},
		{"reverse zone", "5.0.0.10.in-addr.arpa.", "10.in-addr.arpa"},
		{"invalid fallback", "invalid..domain", "invalid..domain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetApexDomain(tt.input); got != tt.expected {
				t.Errorf("GetApexDomain(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
