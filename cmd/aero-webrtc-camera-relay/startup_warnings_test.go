package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/config"
)

type recordedLog struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

type recordingHandler struct {
	mu      *sync.Mutex
	records *[]recordedLog
	attrs   []slog.Attr
	groups  []string
}

func newRecordingLogger() (*slog.Logger, func() []recordedLog) {
	mu := &sync.Mutex{}
	records := &[]recordedLog{}
	logger := slog.New(&recordingHandler{mu: mu, records: records})
	return logger, func() []recordedLog {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedLog(nil), *records...)
	}
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	rec := recordedLog{level: r.Level, msg: r.Message, attrs: map[string]any{}}
	for _, a := range h.attrs {
		rec.attrs[h.key(a.Key)] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[h.key(a.Key)] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &nh
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	nh := *h
	nh.groups = append(append([]string(nil), h.groups...), name)
	return &nh
}

func (h *recordingHandler) key(k string) string {
	if len(h.groups) == 0 {
		return k
	}
	return strings.Join(h.groups, ".") + "." + k
}

func warningCodes(records []recordedLog) map[string]bool {
	codes := map[string]bool{}
	for _, r := range records {
		if r.level != slog.LevelWarn {
			continue
		}
		if code, ok := r.attrs["warning_code"].(string); ok {
			codes[code] = true
		}
	}
	return codes
}

func TestStartupSecurityWarnings(t *testing.T) {
	secure := config.Config{
		Mode:                config.ModeProd,
		AuthMode:            config.AuthModeAPIKey,
		APIKey:              "secret",
		RelayBaseURL:        "https://relay.example.com",
		MaxConcurrentOffers: 8,
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
		code   string
	}{
		{"auth none", func(c *config.Config) { c.AuthMode = config.AuthModeNone }, "auth_mode_none"},
		{"wildcard origin", func(c *config.Config) { c.AllowedOrigins = []string{"*"} }, "allowed_origins_wildcard"},
		{"unrestricted source urls", func(c *config.Config) { c.AllowSourceURLs = true }, "source_urls_unrestricted"},
		{"plaintext relay", func(c *config.Config) { c.RelayBaseURL = "ws://relay.internal:8080" }, "relay_plaintext_in_prod"},
		{"unlimited offers", func(c *config.Config) { c.MaxConcurrentOffers = 0 }, "max_concurrent_offers_unlimited_in_prod"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := secure
			tc.mutate(&cfg)
			logger, records := newRecordingLogger()

			logStartupSecurityWarnings(logger, cfg)

			codes := warningCodes(records())
			if !codes[tc.code] || len(codes) != 1 {
				t.Fatalf("warning codes=%v, want only %q", codes, tc.code)
			}
		})
	}

	t.Run("secure config is quiet", func(t *testing.T) {
		logger, records := newRecordingLogger()
		logStartupSecurityWarnings(logger, secure)
		if codes := warningCodes(records()); len(codes) != 0 {
			t.Fatalf("unexpected warnings %v", codes)
		}
	})

	t.Run("restricted source urls are quiet", func(t *testing.T) {
		cfg := secure
		cfg.AllowSourceURLs = true
		cfg.SourceHosts = "*.cams.example"
		logger, records := newRecordingLogger()
		logStartupSecurityWarnings(logger, cfg)
		if codes := warningCodes(records()); len(codes) != 0 {
			t.Fatalf("unexpected warnings %v", codes)
		}
	})
}
