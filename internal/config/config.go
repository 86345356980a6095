package config

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/origin"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/sdprelay"
)

const (
	envVarListenAddr      = "AERO_CAMERA_RELAY_LISTEN_ADDR"
	envVarLogFormat       = "AERO_CAMERA_RELAY_LOG_FORMAT"
	envVarLogLevel        = "AERO_CAMERA_RELAY_LOG_LEVEL"
	envVarShutdownTimeout = "AERO_CAMERA_RELAY_SHUTDOWN_TIMEOUT"
	envVarMode            = "AERO_CAMERA_RELAY_MODE"
	// Comma-separated browser origins allowed to call the gateway. Empty
	// means same host only.
	envVarAllowedOrigins = "ALLOWED_ORIGINS"

	// External relay that performs the WebRTC negotiation.
	envVarRelayBaseURL          = "RELAY_BASE_URL"
	envVarRelayTimeout          = "RELAY_TIMEOUT"
	envVarRelayDialTimeout      = "RELAY_DIAL_TIMEOUT"
	envVarRelayDebug            = "RELAY_DEBUG"
	envVarRelayMaxResponseBytes = "RELAY_MAX_RESPONSE_BYTES"

	// JSON array of {"id","name","source"} objects.
	envVarCamerasJSON = "CAMERAS_JSON"

	envVarAuthMode  = "AUTH_MODE"
	envVarAPIKey    = "API_KEY"
	envVarJWTSecret = "JWT_SECRET"

	// Gateway limits. Each offer opens one outbound relay session.
	envVarMaxConcurrentOffers = "MAX_CONCURRENT_OFFERS"
	envVarMaxOffersPerSecond  = "MAX_OFFERS_PER_SECOND"
	envVarOfferBurst          = "OFFER_BURST"
	envVarMaxOfferBytes       = "MAX_OFFER_BYTES"

	envVarLinkTTL    = "LINK_TTL"
	envVarLinkMaxTTL = "LINK_MAX_TTL"
	envVarLinkUses   = "LINK_USES"

	// Caller-supplied stream URLs (disabled unless ALLOW_SOURCE_URLS=true).
	envVarAllowSourceURLs = "ALLOW_SOURCE_URLS"
	envVarSourceSchemes   = "SOURCE_URL_SCHEMES"
	envVarSourceHosts     = "SOURCE_URL_HOSTS"
	envVarSourceCIDRs     = "SOURCE_URL_CIDRS"

	DefaultListenAddr                 = "127.0.0.1:8080"
	DefaultShutdown                   = 15 * time.Second
	DefaultMode                  Mode = ModeDev
	DefaultRelayTimeout               = sdprelay.DefaultTimeout
	DefaultRelayDialTimeout           = sdprelay.DefaultDialTimeout
	DefaultRelayMaxResponseBytes      = sdprelay.DefaultMaxResponseBytes
	// The reference relay deployment is always dialled with debug=1.
	DefaultRelayDebug = true

	DefaultAuthMode AuthMode = AuthModeNone

	DefaultMaxConcurrentOffers = 32
	DefaultMaxOffersPerSecond  = 10.0
	DefaultOfferBurst          = 20
	DefaultMaxOfferBytes       = int64(64 * 1024)

	DefaultLinkTTL    = 5 * time.Minute
	DefaultLinkMaxTTL = time.Hour
	DefaultLinkUses   = 1
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeAPIKey AuthMode = "api_key"
	AuthModeJWT    AuthMode = "jwt"
)

type CameraConfig struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Source string `json:"source"`
}

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	RelayBaseURL          string
	RelayTimeout          time.Duration
	RelayDialTimeout      time.Duration
	RelayDebug            bool
	RelayMaxResponseBytes int64

	Cameras []CameraConfig

	AuthMode  AuthMode
	APIKey    string
	JWTSecret string

	MaxConcurrentOffers int
	MaxOffersPerSecond  float64
	OfferBurst          int
	MaxOfferBytes       int64

	LinkTTL    time.Duration
	LinkMaxTTL time.Duration
	LinkUses   int

	AllowSourceURLs bool
	SourceSchemes   string
	SourceHosts     string
	SourceCIDRs     string
}

// RelayClientConfig returns the sdprelay client settings derived from c.
func (c Config) RelayClientConfig(logger *slog.Logger) sdprelay.ClientConfig {
	return sdprelay.ClientConfig{
		BaseURL:          c.RelayBaseURL,
		Debug:            c.RelayDebug,
		Timeout:          c.RelayTimeout,
		DialTimeout:      c.RelayDialTimeout,
		MaxResponseBytes: c.RelayMaxResponseBytes,
		Logger:           logger,
	}
}

// Loader binds configuration flags to a FlagSet (for example a cobra
// command's) with environment-derived defaults. Call Load after the FlagSet
// has been parsed.
type Loader struct {
	fs *pflag.FlagSet

	envLogFormatSet bool
	envLogLevelSet  bool

	listenAddr      string
	modeStr         string
	logFormatStr    string
	logLevelStr     string
	shutdownTimeout time.Duration
	allowedOrigins  string

	relayBaseURL          string
	relayTimeout          time.Duration
	relayDialTimeout      time.Duration
	relayDebug            bool
	relayMaxResponseBytes int64

	camerasJSON string
	cameraFlags []string

	authModeStr string
	apiKey      string
	jwtSecret   string

	maxConcurrentOffers int
	maxOffersPerSecond  float64
	offerBurst          int
	maxOfferBytes       int64

	linkTTL    time.Duration
	linkMaxTTL time.Duration
	linkUses   int

	allowSourceURLs bool
	sourceSchemes   string
	sourceHosts     string
	sourceCIDRs     string
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	fs := pflag.NewFlagSet("aero-webrtc-camera-relay", pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	l, err := NewLoader(lookup, fs)
	if err != nil {
		return Config{}, err
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return l.Load()
}

func NewLoader(lookup func(string) (string, bool), fs *pflag.FlagSet) (*Loader, error) {
	l := &Loader{fs: fs}

	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, ok := lookup(envVarLogFormat)
	l.envLogFormatSet = ok && envLogFormat != ""
	logFormatDefault := envLogFormat
	if !l.envLogFormatSet {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, ok := lookup(envVarLogLevel)
	l.envLogLevelSet = ok && envLogLevel != ""
	logLevelDefault := envLogLevel
	if !l.envLogLevelSet {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	var err error
	l.listenAddr = envOrDefault(lookup, envVarListenAddr, DefaultListenAddr)
	if l.shutdownTimeout, err = envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdown); err != nil {
		return nil, err
	}

	l.allowedOrigins = envOrDefault(lookup, envVarAllowedOrigins, "")

	l.relayBaseURL = envOrDefault(lookup, envVarRelayBaseURL, "")
	if l.relayTimeout, err = envDurationOrDefault(lookup, envVarRelayTimeout, DefaultRelayTimeout); err != nil {
		return nil, err
	}
	if l.relayDialTimeout, err = envDurationOrDefault(lookup, envVarRelayDialTimeout, DefaultRelayDialTimeout); err != nil {
		return nil, err
	}
	if l.relayDebug, err = envBoolOrDefault(lookup, envVarRelayDebug, DefaultRelayDebug); err != nil {
		return nil, err
	}
	if l.relayMaxResponseBytes, err = envInt64OrDefault(lookup, envVarRelayMaxResponseBytes, DefaultRelayMaxResponseBytes); err != nil {
		return nil, err
	}

	l.camerasJSON = envOrDefault(lookup, envVarCamerasJSON, "")

	l.authModeStr = envOrDefault(lookup, envVarAuthMode, string(DefaultAuthMode))
	l.apiKey = envOrDefault(lookup, envVarAPIKey, "")
	l.jwtSecret = envOrDefault(lookup, envVarJWTSecret, "")

	if l.maxConcurrentOffers, err = envIntOrDefault(lookup, envVarMaxConcurrentOffers, DefaultMaxConcurrentOffers); err != nil {
		return nil, err
	}
	if l.maxOffersPerSecond, err = envFloatOrDefault(lookup, envVarMaxOffersPerSecond, DefaultMaxOffersPerSecond); err != nil {
		return nil, err
	}
	if l.offerBurst, err = envIntOrDefault(lookup, envVarOfferBurst, DefaultOfferBurst); err != nil {
		return nil, err
	}
	if l.maxOfferBytes, err = envInt64OrDefault(lookup, envVarMaxOfferBytes, DefaultMaxOfferBytes); err != nil {
		return nil, err
	}

	if l.linkTTL, err = envDurationOrDefault(lookup, envVarLinkTTL, DefaultLinkTTL); err != nil {
		return nil, err
	}
	if l.linkMaxTTL, err = envDurationOrDefault(lookup, envVarLinkMaxTTL, DefaultLinkMaxTTL); err != nil {
		return nil, err
	}
	if l.linkUses, err = envIntOrDefault(lookup, envVarLinkUses, DefaultLinkUses); err != nil {
		return nil, err
	}

	if l.allowSourceURLs, err = envBoolOrDefault(lookup, envVarAllowSourceURLs, false); err != nil {
		return nil, err
	}
	l.sourceSchemes = envOrDefault(lookup, envVarSourceSchemes, "")
	l.sourceHosts = envOrDefault(lookup, envVarSourceHosts, "")
	l.sourceCIDRs = envOrDefault(lookup, envVarSourceCIDRs, "")

	fs.StringVar(&l.listenAddr, "listen-addr", l.listenAddr, "HTTP listen address (host:port) (env "+envVarListenAddr+")")
	fs.StringVar(&l.modeStr, "mode", modeDefault, "Run mode: dev or prod (env "+envVarMode+")")
	fs.StringVar(&l.logFormatStr, "log-format", logFormatDefault, "Log format: text or json (env "+envVarLogFormat+")")
	fs.StringVar(&l.logLevelStr, "log-level", logLevelDefault, "Log level: debug, info, warn, error (env "+envVarLogLevel+")")
	fs.DurationVar(&l.shutdownTimeout, "shutdown-timeout", l.shutdownTimeout, "Graceful shutdown timeout (env "+envVarShutdownTimeout+")")

	fs.StringVar(&l.allowedOrigins, "allowed-origins", l.allowedOrigins, "Comma-separated browser origins allowed to call the gateway, or * (env "+envVarAllowedOrigins+")")

	fs.StringVar(&l.relayBaseURL, "relay-base-url", l.relayBaseURL, "Base URL of the WebRTC relay (env "+envVarRelayBaseURL+")")
	fs.DurationVar(&l.relayTimeout, "relay-timeout", l.relayTimeout, "Max time to wait for the relay's answer (env "+envVarRelayTimeout+")")
	fs.DurationVar(&l.relayDialTimeout, "relay-dial-timeout", l.relayDialTimeout, "Max time for the relay WebSocket handshake (env "+envVarRelayDialTimeout+")")
	fs.BoolVar(&l.relayDebug, "relay-debug", l.relayDebug, "Send debug=1 to the relay (env "+envVarRelayDebug+")")
	fs.Int64Var(&l.relayMaxResponseBytes, "relay-max-response-bytes", l.relayMaxResponseBytes, "Max relay response size in bytes (env "+envVarRelayMaxResponseBytes+")")

	fs.StringVar(&l.camerasJSON, "cameras-json", l.camerasJSON, `Cameras as JSON: [{"id":..,"name":..,"source":..}] (env `+envVarCamerasJSON+")")
	fs.StringArrayVar(&l.cameraFlags, "camera", nil, "Camera as id=source; may be repeated")

	fs.StringVar(&l.authModeStr, "auth-mode", l.authModeStr, "Gateway auth mode: none, api_key or jwt (env "+envVarAuthMode+")")
	fs.StringVar(&l.apiKey, "api-key", l.apiKey, "API key for auth-mode=api_key (env "+envVarAPIKey+")")
	fs.StringVar(&l.jwtSecret, "jwt-secret", l.jwtSecret, "HS256 secret for auth-mode=jwt (env "+envVarJWTSecret+")")

	fs.IntVar(&l.maxConcurrentOffers, "max-concurrent-offers", l.maxConcurrentOffers, "Max relay negotiations in flight (0 = unlimited; env "+envVarMaxConcurrentOffers+")")
	fs.Float64Var(&l.maxOffersPerSecond, "max-offers-per-second", l.maxOffersPerSecond, "Max new negotiations per second (0 = unlimited; env "+envVarMaxOffersPerSecond+")")
	fs.IntVar(&l.offerBurst, "offer-burst", l.offerBurst, "Burst size for max-offers-per-second (env "+envVarOfferBurst+")")
	fs.Int64Var(&l.maxOfferBytes, "max-offer-bytes", l.maxOfferBytes, "Max request body size for offer endpoints (env "+envVarMaxOfferBytes+")")

	fs.DurationVar(&l.linkTTL, "link-ttl", l.linkTTL, "Default lifetime of share links (env "+envVarLinkTTL+")")
	fs.DurationVar(&l.linkMaxTTL, "link-max-ttl", l.linkMaxTTL, "Max lifetime a caller may request for a share link (env "+envVarLinkMaxTTL+")")
	fs.IntVar(&l.linkUses, "link-uses", l.linkUses, "Default number of uses of a share link (env "+envVarLinkUses+")")

	fs.BoolVar(&l.allowSourceURLs, "allow-source-urls", l.allowSourceURLs, "Accept caller-supplied stream URLs (env "+envVarAllowSourceURLs+")")
	fs.StringVar(&l.sourceSchemes, "source-url-schemes", l.sourceSchemes, "Comma-separated allowed stream URL schemes (env "+envVarSourceSchemes+")")
	fs.StringVar(&l.sourceHosts, "source-url-hosts", l.sourceHosts, "Comma-separated allowed stream URL hosts, *.suffix allowed (env "+envVarSourceHosts+")")
	fs.StringVar(&l.sourceCIDRs, "source-url-cidrs", l.sourceCIDRs, "Comma-separated allowed CIDRs for IP stream URL hosts (env "+envVarSourceCIDRs+")")

	return l, nil
}

func (l *Loader) Load() (Config, error) {
	mode, err := parseMode(l.modeStr)
	if err != nil {
		return Config{}, err
	}

	logFormatStr := l.logFormatStr
	if !l.envLogFormatSet && !l.fs.Changed("log-format") {
		logFormatStr = defaultLogFormatForMode(string(mode))
	}
	logLevelStr := l.logLevelStr
	if !l.envLogLevelSet && !l.fs.Changed("log-level") {
		logLevelStr = defaultLogLevelForMode(string(mode))
	}

	logFormat, err := ParseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}
	level, err := ParseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}
	authMode, err := parseAuthMode(l.authModeStr)
	if err != nil {
		return Config{}, err
	}

	cameras, err := parseCameras(l.camerasJSON, l.cameraFlags)
	if err != nil {
		return Config{}, err
	}
	allowedOrigins, err := parseAllowedOrigins(l.allowedOrigins)
	if err != nil {
		return Config{}, err
	}

	if l.listenAddr == "" {
		return Config{}, fmt.Errorf("listen address must not be empty")
	}
	if l.shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("shutdown timeout must be > 0")
	}
	if err := validateRelayBaseURL(l.relayBaseURL); err != nil {
		return Config{}, err
	}
	if l.relayTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--relay-timeout must be > 0", envVarRelayTimeout)
	}
	if l.relayDialTimeout <= 0 {
		return Config{}, fmt.Errorf("%s/--relay-dial-timeout must be > 0", envVarRelayDialTimeout)
	}
	if l.relayMaxResponseBytes <= 0 {
		return Config{}, fmt.Errorf("%s/--relay-max-response-bytes must be > 0", envVarRelayMaxResponseBytes)
	}
	if l.maxConcurrentOffers < 0 {
		return Config{}, fmt.Errorf("%s/--max-concurrent-offers must be >= 0", envVarMaxConcurrentOffers)
	}
	if l.maxOffersPerSecond < 0 {
		return Config{}, fmt.Errorf("%s/--max-offers-per-second must be >= 0", envVarMaxOffersPerSecond)
	}
	if l.offerBurst <= 0 {
		return Config{}, fmt.Errorf("%s/--offer-burst must be > 0", envVarOfferBurst)
	}
	if l.maxOfferBytes <= 0 {
		return Config{}, fmt.Errorf("%s/--max-offer-bytes must be > 0", envVarMaxOfferBytes)
	}
	if l.linkTTL <= 0 || l.linkMaxTTL <= 0 {
		return Config{}, fmt.Errorf("%s and %s must be > 0", envVarLinkTTL, envVarLinkMaxTTL)
	}
	if l.linkTTL > l.linkMaxTTL {
		return Config{}, fmt.Errorf("%s/--link-ttl (%v) must not exceed %s/--link-max-ttl (%v)", envVarLinkTTL, l.linkTTL, envVarLinkMaxTTL, l.linkMaxTTL)
	}
	if l.linkUses <= 0 {
		return Config{}, fmt.Errorf("%s/--link-uses must be > 0", envVarLinkUses)
	}

	switch authMode {
	case AuthModeAPIKey:
		if l.apiKey == "" {
			return Config{}, fmt.Errorf("%s is required when %s=%s", envVarAPIKey, envVarAuthMode, AuthModeAPIKey)
		}
	case AuthModeJWT:
		if l.jwtSecret == "" {
			return Config{}, fmt.Errorf("%s is required when %s=%s", envVarJWTSecret, envVarAuthMode, AuthModeJWT)
		}
	}
	if mode == ModeProd && authMode == AuthModeNone {
		return Config{}, fmt.Errorf("%s=%s is not allowed in prod mode", envVarAuthMode, AuthModeNone)
	}

	return Config{
		ListenAddr:      l.listenAddr,
		Mode:            mode,
		LogFormat:       logFormat,
		LogLevel:        level,
		ShutdownTimeout: l.shutdownTimeout,
		AllowedOrigins:  allowedOrigins,

		RelayBaseURL:          strings.TrimSpace(l.relayBaseURL),
		RelayTimeout:          l.relayTimeout,
		RelayDialTimeout:      l.relayDialTimeout,
		RelayDebug:            l.relayDebug,
		RelayMaxResponseBytes: l.relayMaxResponseBytes,

		Cameras: cameras,

		AuthMode:  authMode,
		APIKey:    l.apiKey,
		JWTSecret: l.jwtSecret,

		MaxConcurrentOffers: l.maxConcurrentOffers,
		MaxOffersPerSecond:  l.maxOffersPerSecond,
		OfferBurst:          l.offerBurst,
		MaxOfferBytes:       l.maxOfferBytes,

		LinkTTL:    l.linkTTL,
		LinkMaxTTL: l.linkMaxTTL,
		LinkUses:   l.linkUses,

		AllowSourceURLs: l.allowSourceURLs,
		SourceSchemes:   l.sourceSchemes,
		SourceHosts:     l.sourceHosts,
		SourceCIDRs:     l.sourceCIDRs,
	}, nil
}

func parseAllowedOrigins(raw string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "*" {
			out = append(out, part)
			continue
		}
		normalized, _, ok := origin.NormalizeHeader(part)
		if !ok || normalized == "null" {
			return nil, fmt.Errorf("invalid %s entry %q", envVarAllowedOrigins, part)
		}
		out = append(out, normalized)
	}
	return out, nil
}

func validateRelayBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s/--relay-base-url must be set", envVarRelayBaseURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", envVarRelayBaseURL, raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("invalid %s %q: scheme must be http, https, ws or wss", envVarRelayBaseURL, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s %q: missing host", envVarRelayBaseURL, raw)
	}
	return nil
}

// parseCameras merges the JSON camera list with repeated id=source flags.
func parseCameras(rawJSON string, flags []string) ([]CameraConfig, error) {
	var cameras []CameraConfig
	if strings.TrimSpace(rawJSON) != "" {
		if err := json.Unmarshal([]byte(rawJSON), &cameras); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envVarCamerasJSON, err)
		}
	}
	for _, raw := range flags {
		id, source, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --camera %q (expected id=source)", raw)
		}
		cameras = append(cameras, CameraConfig{ID: strings.TrimSpace(id), Source: strings.TrimSpace(source)})
	}

	seen := make(map[string]struct{}, len(cameras))
	for i, cam := range cameras {
		if cam.ID == "" {
			return nil, fmt.Errorf("camera #%d: id must not be empty", i+1)
		}
		if cam.Source == "" {
			return nil, fmt.Errorf("camera %q: source must not be empty", cam.ID)
		}
		if _, dup := seen[cam.ID]; dup {
			return nil, fmt.Errorf("duplicate camera id %q", cam.ID)
		}
		seen[cam.ID] = struct{}{}
	}
	return cameras, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	return NewLoggerTo(os.Stdout, cfg)
}

// NewLoggerTo is NewLogger writing to w. Commands that print results on
// stdout log to stderr.
func NewLoggerTo(w io.Writer, cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(w, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envInt64OrDefault(lookup func(string) (string, bool), key string, fallback int64) (int64, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envFloatOrDefault(lookup func(string) (string, bool), key string, fallback float64) (float64, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return f, nil
}

func envBoolOrDefault(lookup func(string) (string, bool), key string, fallback bool) (bool, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func ParseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func ParseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func parseAuthMode(raw string) (AuthMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(AuthModeNone):
		return AuthModeNone, nil
	case string(AuthModeAPIKey), "apikey":
		return AuthModeAPIKey, nil
	case string(AuthModeJWT):
		return AuthModeJWT, nil
	default:
		return "", fmt.Errorf("invalid auth mode %q (expected none, api_key or jwt)", raw)
	}
}
