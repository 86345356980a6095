// Package camera models the cameras whose streams are handed to the relay and
// the WebRTC wrapper that negotiates offers on their behalf.
package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSourceNotFound is returned when a camera cannot resolve a stream source.
var ErrSourceNotFound = errors.New("camera: stream source not found")

type StreamType string

const (
	StreamTypeHLS    StreamType = "hls"
	StreamTypeWebRTC StreamType = "web_rtc"
)

type Camera interface {
	ID() string
	Name() string
	SupportsStream() bool
	StreamType() StreamType
	// StreamSource returns the media locator the relay should pull from.
	StreamSource(ctx context.Context) (string, error)
}

// Static is a camera whose stream source is fixed by configuration.
type Static struct {
	CameraID   string
	CameraName string
	Source     string
}

var _ Camera = Static{}

func (c Static) ID() string { return c.CameraID }

func (c Static) Name() string {
	if c.CameraName != "" {
		return c.CameraName
	}
	return c.CameraID
}

func (c Static) SupportsStream() bool { return c.Source != "" }

func (c Static) StreamType() StreamType { return StreamTypeHLS }

func (c Static) StreamSource(context.Context) (string, error) {
	if strings.TrimSpace(c.Source) == "" {
		return "", fmt.Errorf("%w: camera %q", ErrSourceNotFound, c.CameraID)
	}
	return c.Source, nil
}
