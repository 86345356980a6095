package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

const eventsMetric = "aero_webrtc_camera_relay_events_total"

// Gauge is a point-in-time value read on every scrape, such as offers in
// flight or live share links.
type Gauge struct {
	Name  string
	Help  string
	Value func() float64
}

var labelEscaper = strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n")

// PrometheusHandler serves m in Prometheus' text exposition format: every
// counter as one family labelled by event, followed by the gauges.
func PrometheusHandler(m *Metrics, gauges ...Gauge) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		writeEvents(w, m.Snapshot())
		for _, g := range gauges {
			if g.Value == nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n", g.Name, g.Help, g.Name, g.Name, g.Value())
		}
	})
}

func writeEvents(w io.Writer, snap map[string]uint64) {
	events := make([]string, 0, len(snap))
	for k := range snap {
		events = append(events, k)
	}
	sort.Strings(events)

	_, _ = fmt.Fprintf(w, "# HELP %s Relay negotiation and gateway events.\n", eventsMetric)
	_, _ = fmt.Fprintf(w, "# TYPE %s counter\n", eventsMetric)
	for _, event := range events {
		_, _ = fmt.Fprintf(w, "%s{event=\"%s\"} %d\n", eventsMetric, labelEscaper.Replace(event), snap[event])
	}
}
