// Package origin decides which browser origins may call the gateway.
package origin

import (
	"net/url"
	"strconv"
	"strings"
)

// NormalizeHeader validates a browser Origin header and returns it as
// scheme://host[:port] plus the host[:port] part. Default ports are dropped.
// "null" is accepted and returned unchanged with an empty host.
func NormalizeHeader(header string) (normalized string, host string, ok bool) {
	header = strings.TrimSpace(header)
	switch header {
	case "":
		return "", "", false
	case "null":
		return "null", "", true
	}

	u, err := url.Parse(header)
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host, ok = canonicalHost(u.Host, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// Policy is the set of origins allowed to call the gateway. An empty policy
// allows same-host requests only.
type Policy struct {
	any     bool
	allowed map[string]struct{}
}

// NewPolicy builds a policy from normalized origins or "*".
func NewPolicy(origins []string) *Policy {
	p := &Policy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o == "*" {
			p.any = true
			continue
		}
		p.allowed[o] = struct{}{}
	}
	return p
}

// Allow reports whether a request carrying originHeader to requestHost is
// permitted, and returns the normalized origin to echo back.
func (p *Policy) Allow(originHeader, requestHost string) (string, bool) {
	normalized, host, ok := NormalizeHeader(originHeader)
	if !ok {
		return "", false
	}
	if p != nil && (p.any || len(p.allowed) > 0) {
		if p.any {
			return normalized, true
		}
		_, ok := p.allowed[normalized]
		return normalized, ok
	}

	// Same host:port. The scheme is not compared since TLS is usually
	// terminated in front of the gateway.
	scheme, _, found := strings.Cut(normalized, "://")
	if !found {
		return "", false
	}
	reqHost, ok := canonicalHost(strings.TrimSpace(requestHost), scheme)
	if !ok {
		return "", false
	}
	return normalized, host == reqHost
}

func canonicalHost(authority, scheme string) (string, bool) {
	hostname, port, ok := splitAuthority(strings.ToLower(authority))
	if !ok || hostname == "" {
		return "", false
	}

	var n uint64
	if port != "" {
		var err error
		n, err = strconv.ParseUint(port, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
	}
	if (scheme == "http" && n == 80) || (scheme == "https" && n == 443) {
		n = 0
	}

	if strings.Contains(hostname, ":") {
		hostname = "[" + hostname + "]"
	}
	if n != 0 {
		hostname += ":" + strconv.FormatUint(n, 10)
	}
	return hostname, true
}

// splitAuthority splits host[:port]. IPv6 literals must be bracketed and are
// returned without brackets.
func splitAuthority(authority string) (hostname, port string, ok bool) {
	if rest, found := strings.CutPrefix(authority, "["); found {
		hostname, rest, found = strings.Cut(rest, "]")
		if !found {
			return "", "", false
		}
		if rest == "" {
			return hostname, "", true
		}
		port, found = strings.CutPrefix(rest, ":")
		if !found || port == "" {
			return "", "", false
		}
		return hostname, port, true
	}

	hostname, port, found := strings.Cut(authority, ":")
	if !found {
		return authority, "", authority != ""
	}
	if hostname == "" || port == "" || strings.Contains(port, ":") {
		return "", "", false
	}
	return hostname, port, true
}
