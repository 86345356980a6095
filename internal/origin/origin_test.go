package origin

import "testing"

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		in, normalized, host string
		ok                   bool
	}{
		{"HTTPS://Example.COM:443", "https://example.com", "example.com", true},
		{"http://localhost:5173/", "http://localhost:5173", "localhost:5173", true},
		{"http://[::1]:8080", "http://[::1]:8080", "[::1]:8080", true},
		{"null", "null", "", true},
		{"", "", "", false},
		{"ftp://example.com", "", "", false},
		{"https://example.com/path", "", "", false},
		{"https://example.com?q=1", "", "", false},
		{"https://user@example.com", "", "", false},
		{"https://example.com#frag", "", "", false},
		{"https://example.com:0", "", "", false},
		{"https://example.com:70000", "", "", false},
		{"https://[::1", "", "", false},
	}
	for _, tc := range cases {
		normalized, host, ok := NormalizeHeader(tc.in)
		if ok != tc.ok || normalized != tc.normalized || host != tc.host {
			t.Errorf("NormalizeHeader(%q)=(%q,%q,%v), want (%q,%q,%v)", tc.in, normalized, host, ok, tc.normalized, tc.host, tc.ok)
		}
	}
}

func TestPolicySameHost(t *testing.T) {
	var p *Policy

	if got, ok := p.Allow("https://cams.example.com", "cams.example.com:443"); !ok || got != "https://cams.example.com" {
		t.Fatalf("Allow=(%q,%v), want same-host allowed", got, ok)
	}
	// TLS terminated upstream: browser sees https, gateway sees plain host.
	if _, ok := p.Allow("https://cams.example.com", "cams.example.com"); !ok {
		t.Fatalf("expected scheme-agnostic same-host match")
	}
	if _, ok := p.Allow("https://evil.example.com", "cams.example.com"); ok {
		t.Fatalf("expected cross-host origin to be rejected")
	}
	if _, ok := p.Allow("null", "cams.example.com"); ok {
		t.Fatalf("expected null origin to be rejected by same-host policy")
	}
}

func TestPolicyAllowList(t *testing.T) {
	p := NewPolicy([]string{"http://localhost:5173"})
	if _, ok := p.Allow("http://localhost:5173", "gateway:8080"); !ok {
		t.Fatalf("expected listed origin to be allowed")
	}
	if _, ok := p.Allow("http://gateway:8080", "gateway:8080"); ok {
		t.Fatalf("allow list replaces the same-host default")
	}

	star := NewPolicy([]string{"*"})
	if got, ok := star.Allow("https://anything.example", "gateway"); !ok || got != "https://anything.example" {
		t.Fatalf("Allow=(%q,%v), want wildcard match", got, ok)
	}
}
