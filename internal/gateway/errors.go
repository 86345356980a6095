package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/auth"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/camera"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/links"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/policy"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/ratelimit"
	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/sdprelay"
)

// errorResponse maps err to a status and a message that is safe to show to
// the browser. Relay rejections are passed through verbatim; other relay
// failures only expose their kind since transport errors can carry
// internal addresses.
func errorResponse(err error) (int, string) {
	var relayErr *sdprelay.Error
	if errors.As(err, &relayErr) {
		switch relayErr.Kind {
		case sdprelay.KindRelayRejected:
			return http.StatusBadGateway, relayErr.Message
		case sdprelay.KindTimeout:
			return http.StatusGatewayTimeout, sdprelay.ErrTimeout.Error()
		case sdprelay.KindUnreachable:
			return http.StatusBadGateway, sdprelay.ErrUnreachable.Error()
		case sdprelay.KindConnectionClosed:
			return http.StatusBadGateway, sdprelay.ErrConnectionClosed.Error()
		case sdprelay.KindMalformedResponse:
			return http.StatusBadGateway, sdprelay.ErrMalformedResponse.Error()
		}
	}

	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, sdprelay.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, auth.ErrMissingCredentials), errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, policy.ErrSourceDenied):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, camera.ErrUnknownCamera), errors.Is(err, camera.ErrSourceNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, links.ErrNotFound):
		return http.StatusNotFound, "link not found or expired"
	case errors.Is(err, links.ErrGone):
		return http.StatusGone, "link already used"
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, ratelimit.ErrTooManyInFlight):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "request canceled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := errorResponse(err)
	httpserver.WriteJSON(w, status, map[string]string{"error": msg})
}
