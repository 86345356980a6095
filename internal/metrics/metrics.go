package metrics

import "sync"

// Event names recorded by the gateway. Negotiation failures are recorded as
// NegotiateFailedPrefix + the relay error kind.
const (
	NegotiateStarted      = "negotiate_started"
	NegotiateOK           = "negotiate_ok"
	NegotiateFailedPrefix = "negotiate_failed_"
	NegotiateCanceled     = "negotiate_canceled"

	RejectedRateLimited   = "rejected_rate_limited"
	RejectedTooManyOffers = "rejected_too_many_in_flight"
	RejectedSourcePolicy  = "rejected_source_policy"
	RejectedUnauthorized  = "rejected_unauthorized"

	LinkCreated = "link_created"
	LinkUsed    = "link_used"
	LinkGone    = "link_gone"
)

// Metrics is a minimal, concurrency-safe counter registry.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
