package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
)

// APIKeyVerifier accepts a single shared key, as sent by home dashboards and
// scripts that request camera offers. Keys are compared as SHA-256 digests so
// the comparison time does not depend on the presented key's length.
type APIKeyVerifier struct {
	digest [sha256.Size]byte
}

func NewAPIKeyVerifier(key string) (*APIKeyVerifier, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("api_key auth requires a non-empty api key")
	}
	return &APIKeyVerifier{digest: sha256.Sum256([]byte(key))}, nil
}

func (v *APIKeyVerifier) Verify(apiKey string) error {
	if apiKey == "" {
		return ErrMissingCredentials
	}
	got := sha256.Sum256([]byte(apiKey))
	if subtle.ConstantTimeCompare(got[:], v.digest[:]) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
