package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wilsonzlin/aero/proxy/webrtc-camera-relay/internal/sdprelay"
)

const webrtcIDSuffix = "-webrtc"

// WebRTCCamera exposes a delegate camera with WebRTC streaming, negotiating
// offers through a relay.
type WebRTCCamera struct {
	delegate   Camera
	negotiator sdprelay.Negotiator
	timeout    time.Duration
}

var _ Camera = (*WebRTCCamera)(nil)

// NewWebRTCCamera wraps delegate. A zero timeout leaves the choice to the
// negotiator.
func NewWebRTCCamera(delegate Camera, negotiator sdprelay.Negotiator, timeout time.Duration) *WebRTCCamera {
	return &WebRTCCamera{
		delegate:   delegate,
		negotiator: negotiator,
		timeout:    timeout,
	}
}

func (c *WebRTCCamera) ID() string { return c.delegate.ID() + webrtcIDSuffix }

func (c *WebRTCCamera) Name() string { return c.delegate.Name() + " WebRTC" }

func (c *WebRTCCamera) SupportsStream() bool { return c.delegate.SupportsStream() }

func (c *WebRTCCamera) StreamType() StreamType { return StreamTypeWebRTC }

func (c *WebRTCCamera) StreamSource(ctx context.Context) (string, error) {
	return c.delegate.StreamSource(ctx)
}

// Delegate returns the wrapped camera.
func (c *WebRTCCamera) Delegate() Camera { return c.delegate }

// HandleOffer resolves the delegate's stream source and negotiates offer with
// the relay. Relay failures keep their sdprelay error kind.
func (c *WebRTCCamera) HandleOffer(ctx context.Context, offer string) (string, error) {
	source, err := c.StreamSource(ctx)
	if err != nil {
		if errors.Is(err, ErrSourceNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: camera %q: %v", ErrSourceNotFound, c.delegate.ID(), err)
	}
	if source == "" {
		return "", fmt.Errorf("%w: camera %q", ErrSourceNotFound, c.delegate.ID())
	}

	answer, err := c.negotiator.Negotiate(ctx, source, offer, c.timeout)
	if err != nil {
		return "", fmt.Errorf("webrtc offer failed for camera %q: %w", c.delegate.ID(), err)
	}
	return answer, nil
}

// WrapAll wraps every camera that can stream and is not already WebRTC.
func WrapAll(cameras []Camera, negotiator sdprelay.Negotiator, timeout time.Duration) []*WebRTCCamera {
	wrapped := make([]*WebRTCCamera, 0, len(cameras))
	for _, cam := range cameras {
		if !cam.SupportsStream() || cam.StreamType() == StreamTypeWebRTC {
			continue
		}
		wrapped = append(wrapped, NewWebRTCCamera(cam, negotiator, timeout))
	}
	return wrapped
}
