package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/config"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	headerAPIKey        = "X-API-Key"
	headerAuthorization = "Authorization"
	bearerPrefix        = "Bearer "
)

type Verifier interface {
	Verify(credential string) error
}

// NewVerifier returns nil for AuthModeNone.
func NewVerifier(cfg config.Config) (Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeNone:
		return nil, nil
	case config.AuthModeAPIKey:
		v, err := NewAPIKeyVerifier(cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return v, nil
	case config.AuthModeJWT:
		v, err := NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

// CredentialFromRequest extracts the credential for mode. Headers win over
// query parameters.
func CredentialFromRequest(mode config.AuthMode, r *http.Request) (string, error) {
	q := r.URL.Query()
	switch mode {
	case config.AuthModeNone:
		return "", nil
	case config.AuthModeAPIKey:
		if v := strings.TrimSpace(r.Header.Get(headerAPIKey)); v != "" {
			return v, nil
		}
		if v := q.Get("apiKey"); v != "" {
			return v, nil
		}
		return "", ErrMissingCredentials
	case config.AuthModeJWT:
		if h := r.Header.Get(headerAuthorization); len(h) > len(bearerPrefix) && strings.EqualFold(h[:len(bearerPrefix)], bearerPrefix) {
			return strings.TrimSpace(h[len(bearerPrefix):]), nil
		}
		if v := q.Get("token"); v != "" {
			return v, nil
		}
		return "", ErrMissingCredentials
	default:
		return "", fmt.Errorf("unsupported auth mode %q", mode)
	}
}

// Authenticate checks r against v. A nil verifier accepts every request.
func Authenticate(mode config.AuthMode, v Verifier, r *http.Request) error {
	if v == nil {
		return nil
	}
	cred, err := CredentialFromRequest(mode, r)
	if err != nil {
		return err
	}
	return v.Verify(cred)
}
