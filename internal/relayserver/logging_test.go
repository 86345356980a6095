package relayserver

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLoggerFactory(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	l := SlogLoggerFactory{Logger: logger}.NewLogger("ice")
	l.Debugf("hidden %d", 1)
	l.Tracef("hidden %d", 2)
	l.Warnf("candidate %s failed", "host")
	l.Error("boom")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug/trace output leaked at info level: %q", out)
	}
	for _, want := range []string{"pion_scope=ice", `msg="candidate host failed"`, "level=WARN", "msg=boom", "level=ERROR"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}
