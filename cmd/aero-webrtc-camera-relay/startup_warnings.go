package main

import (
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/config"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.AuthMode == config.AuthModeNone {
		logger.Warn("startup security warning: AUTH_MODE=none lets anyone open relay sessions through the gateway",
			"warning_code", "auth_mode_none",
			"auth_mode", cfg.AuthMode,
			"mode", cfg.Mode,
		)
	}

	if slices.Contains(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	// Caller-supplied URLs make the relay fetch arbitrary addresses.
	if cfg.AllowSourceURLs && strings.TrimSpace(cfg.SourceHosts) == "" && strings.TrimSpace(cfg.SourceCIDRs) == "" {
		logger.Warn("startup security warning: ALLOW_SOURCE_URLS=true without SOURCE_URL_HOSTS or SOURCE_URL_CIDRS accepts any stream host",
			"warning_code", "source_urls_unrestricted",
			"source_url_schemes", cfg.SourceSchemes,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd {
		switch relayScheme(cfg.RelayBaseURL) {
		case "http", "ws":
			logger.Warn("startup security warning: RELAY_BASE_URL is not TLS while --mode=prod (offers and camera URLs travel in plaintext)",
				"warning_code", "relay_plaintext_in_prod",
				"relay_host", safeURLHost(cfg.RelayBaseURL),
				"mode", cfg.Mode,
			)
		}

		if cfg.MaxConcurrentOffers <= 0 {
			logger.Warn("startup security warning: MAX_CONCURRENT_OFFERS is unset/0 (unlimited) while --mode=prod",
				"warning_code", "max_concurrent_offers_unlimited_in_prod",
				"max_concurrent_offers", cfg.MaxConcurrentOffers,
				"mode", cfg.Mode,
			)
		}
	}
}

func relayScheme(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

func safeURLHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return u.Host
}
