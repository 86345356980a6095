package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// target names what to stream: a registered camera or a direct URL. Exactly
// one is set.
type target struct {
	Camera string `json:"camera,omitempty"`
	URL    string `json:"url,omitempty"`
}

func (t target) validate() error {
	switch {
	case t.Camera != "" && t.URL != "":
		return badRequest("camera and url are mutually exclusive")
	case t.Camera == "" && t.URL == "":
		return badRequest("one of camera or url is required")
	}
	return nil
}

type offerRequest struct {
	target
	SDP string `json:"sdp"`
}

func (r offerRequest) validate() error {
	if err := r.target.validate(); err != nil {
		return err
	}
	if r.SDP == "" {
		return badRequest("sdp is required")
	}
	return nil
}

type linkRequest struct {
	target
	// TTL is a Go duration string such as "90s" or "10m".
	TTL  string `json:"ttl,omitempty"`
	Uses int    `json:"uses,omitempty"`
}

func (r linkRequest) resolve(defaultTTL, maxTTL time.Duration, defaultUses int) (time.Duration, int, error) {
	if err := r.target.validate(); err != nil {
		return 0, 0, err
	}

	ttl := defaultTTL
	if r.TTL != "" {
		d, err := time.ParseDuration(r.TTL)
		if err != nil || d <= 0 {
			return 0, 0, badRequest("invalid ttl %q", r.TTL)
		}
		ttl = d
	}
	if ttl > maxTTL {
		return 0, 0, badRequest("ttl %v exceeds maximum %v", ttl, maxTTL)
	}

	uses := defaultUses
	if r.Uses < 0 {
		return 0, 0, badRequest("uses must be > 0")
	}
	if r.Uses > 0 {
		uses = r.Uses
	}
	return ttl, uses, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, maxBytes int64, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return badRequest("invalid json body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("unexpected data after json body")
	}
	return nil
}

var errBodyTooLarge = errors.New("request body too large")
