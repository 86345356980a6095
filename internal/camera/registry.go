package camera

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownCamera = errors.New("camera: unknown camera")

// Registry indexes the WebRTC cameras by ID. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	byID map[string]*WebRTCCamera
	ids  []string
}

func NewRegistry(cameras []*WebRTCCamera) (*Registry, error) {
	r := &Registry{byID: make(map[string]*WebRTCCamera, len(cameras))}
	for _, cam := range cameras {
		id := cam.Delegate().ID()
		if id == "" {
			return nil, errors.New("camera: empty camera id")
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("camera: duplicate camera id %q", id)
		}
		r.byID[id] = cam
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	return r, nil
}

// Lookup accepts either the delegate ID or the wrapped "-webrtc" ID.
func (r *Registry) Lookup(id string) (*WebRTCCamera, error) {
	if r != nil {
		if cam, ok := r.byID[id]; ok {
			return cam, nil
		}
		for _, cam := range r.byID {
			if cam.ID() == id {
				return cam, nil
			}
		}
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownCamera, id)
}

// List returns cameras ordered by ID.
func (r *Registry) List() []*WebRTCCamera {
	if r == nil {
		return nil
	}
	out := make([]*WebRTCCamera, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}
