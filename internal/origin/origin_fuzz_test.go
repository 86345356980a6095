package origin

import (
	"strings"
	"testing"
)

func FuzzNormalizeHeader(f *testing.F) {
	for _, seed := range []string{
		"https://example.com",
		"http://localhost:5173/",
		"http://[::1]:80",
		"null",
		"https://a:b@c",
		"",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, in string) {
		normalized, host, ok := NormalizeHeader(in)
		if !ok {
			return
		}
		if normalized == "null" {
			return
		}
		if !strings.HasSuffix(normalized, "://"+host) {
			t.Fatalf("normalized=%q does not end with host %q", normalized, host)
		}
		again, againHost, ok := NormalizeHeader(normalized)
		if !ok || again != normalized || againHost != host {
			t.Fatalf("not idempotent: %q -> (%q,%q,%v)", normalized, again, againHost, ok)
		}
	})
}
