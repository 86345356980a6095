package policy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var ErrSourceDenied = errors.New("source policy: denied")

// DefaultSchemes are the stream source schemes accepted when no explicit list
// is configured.
var DefaultSchemes = []string{"rtsp", "rtsps", "rtmp", "rtmps", "http", "https"}

// SourcePolicy controls which caller-supplied stream sources are accepted.
//
// Evaluation order:
//  1. AllowDirectURLs must be true
//  2. Scheme must be in Schemes
//  3. If AllowHosts or AllowCIDRs is set, the host must match one of them
type SourcePolicy struct {
	AllowDirectURLs bool

	Schemes []string

	// AllowHosts entries match exactly, or as a suffix when written "*.example.com".
	AllowHosts []string
	// AllowCIDRs applies to IP literal hosts.
	AllowCIDRs []*net.IPNet
}

// NewSourcePolicy returns a policy that rejects every direct URL.
func NewSourcePolicy() *SourcePolicy {
	return &SourcePolicy{Schemes: append([]string(nil), DefaultSchemes...)}
}

// Parse builds a policy from comma separated lists. Empty lists leave the
// defaults in place.
func Parse(allowDirectURLs bool, schemes, hosts, cidrs string) (*SourcePolicy, error) {
	p := NewSourcePolicy()
	p.AllowDirectURLs = allowDirectURLs

	if list := splitList(schemes); len(list) > 0 {
		for i, s := range list {
			list[i] = strings.ToLower(s)
		}
		p.Schemes = list
	}
	p.AllowHosts = splitList(hosts)
	for i, h := range p.AllowHosts {
		p.AllowHosts[i] = strings.ToLower(h)
	}

	nets, err := parseCIDRList(cidrs)
	if err != nil {
		return nil, fmt.Errorf("source policy: %w", err)
	}
	p.AllowCIDRs = nets
	return p, nil
}

func (p *SourcePolicy) AllowSource(source string) error {
	if p == nil {
		return errors.New("source policy: nil")
	}
	if !p.AllowDirectURLs {
		return fmt.Errorf("%w: direct stream urls are disabled", ErrSourceDenied)
	}

	u, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("%w: invalid url", ErrSourceDenied)
	}
	scheme := strings.ToLower(u.Scheme)
	if !contains(p.Schemes, scheme) {
		return fmt.Errorf("%w: scheme %q not allowed", ErrSourceDenied, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing host", ErrSourceDenied)
	}

	if len(p.AllowHosts) == 0 && len(p.AllowCIDRs) == 0 {
		return nil
	}
	if p.hostAllowed(host) {
		return nil
	}
	return fmt.Errorf("%w: host %q not allowed", ErrSourceDenied, host)
}

func (p *SourcePolicy) hostAllowed(host string) bool {
	for _, pattern := range p.AllowHosts {
		if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == pattern {
			return true
		}
	}
	if ip := net.ParseIP(host); ip != nil {
		for _, n := range p.AllowCIDRs {
			if n.Contains(ip) {
				return true
			}
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, raw := range strings.Split(v, ",") {
		raw = strings.TrimSpace(raw)
		if raw != "" {
			out = append(out, raw)
		}
	}
	return out
}

func parseCIDRList(v string) ([]*net.IPNet, error) {
	var out []*net.IPNet
	for _, raw := range splitList(v) {
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("parse CIDR %q: %w", raw, err)
		}
		out = append(out, n)
	}
	return out, nil
}
