package relayserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

const DefaultPeerLifetime = 2 * time.Minute

var ErrAnswererClosed = errors.New("relayserver: answerer closed")

type PionConfig struct {
	// API is used to create peer connections. Nil builds one with the default
	// codecs and LoggerFactory.
	API           *webrtc.API
	LoggerFactory logging.LoggerFactory
	ICEServers    []webrtc.ICEServer
	// Lifetime bounds how long an answered peer connection is kept before it
	// is closed.
	Lifetime time.Duration
	Logger   *slog.Logger
}

// PionAnswerer answers offers with a pion PeerConnection. Every video
// m-line the offer receives is answered with a send-only VP8 track; no
// media is written, so it stands in for a real camera bridge in tests.
type PionAnswerer struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer
	lifetime   time.Duration
	log        *slog.Logger

	mu     sync.Mutex
	closed bool
	peers  map[*webrtc.PeerConnection]*time.Timer
}

func NewPionAnswerer(cfg PionConfig) (*PionAnswerer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultPeerLifetime
	}
	api := cfg.API
	if api == nil {
		var err error
		api, err = NewAPI(cfg.LoggerFactory)
		if err != nil {
			return nil, err
		}
	}
	return &PionAnswerer{
		api:        api,
		iceServers: cfg.ICEServers,
		lifetime:   cfg.Lifetime,
		log:        cfg.Logger,
		peers:      make(map[*webrtc.PeerConnection]*time.Timer),
	}, nil
}

// NewAPI builds a pion API with the default codecs. A nil factory keeps
// pion's own logger.
func NewAPI(factory logging.LoggerFactory) (*webrtc.API, error) {
	se := webrtc.SettingEngine{}
	if factory != nil {
		se.LoggerFactory = factory
	}

	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	return webrtc.NewAPI(
		webrtc.WithSettingEngine(se),
		webrtc.WithMediaEngine(mediaEngine),
	), nil
}

func (a *PionAnswerer) Answer(ctx context.Context, source, offer string, debug bool) (string, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return "", ErrAnswererClosed
	}

	pc, err := a.api.NewPeerConnection(webrtc.Configuration{ICEServers: a.iceServers})
	if err != nil {
		return "", fmt.Errorf("create peer connection: %w", err)
	}
	keep := false
	defer func() {
		if !keep {
			_ = pc.Close()
		}
	}()

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer}); err != nil {
		return "", fmt.Errorf("invalid offer: %w", err)
	}

	videoSections := 0
	for _, tr := range pc.GetTransceivers() {
		if tr.Kind() == webrtc.RTPCodecTypeVideo {
			videoSections++
		}
	}
	if videoSections == 0 {
		return "", errors.New("offer has no video media section")
	}
	// AddTrack binds to the transceivers created for the offer's m-lines.
	tracks := 0
	for ; tracks < videoSections; tracks++ {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			fmt.Sprintf("video%d", tracks),
			"camera",
		)
		if err != nil {
			return "", fmt.Errorf("create track: %w", err)
		}
		if _, err := pc.AddTrack(track); err != nil {
			return "", fmt.Errorf("add track: %w", err)
		}
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	local := pc.LocalDescription()
	if local == nil {
		return "", errors.New("missing local description")
	}

	if !a.track(pc) {
		return "", ErrAnswererClosed
	}
	keep = true

	if debug {
		a.log.Debug("answered offer", "source", source, "video_tracks", tracks, "answer_bytes", len(local.SDP))
	}
	return local.SDP, nil
}

func (a *PionAnswerer) track(pc *webrtc.PeerConnection) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.peers[pc] = time.AfterFunc(a.lifetime, func() { a.release(pc) })

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			a.release(pc)
		}
	})
	return true
}

func (a *PionAnswerer) release(pc *webrtc.PeerConnection) {
	a.mu.Lock()
	timer, ok := a.peers[pc]
	delete(a.peers, pc)
	a.mu.Unlock()
	if !ok {
		return
	}
	timer.Stop()
	_ = pc.Close()
}

// Active reports how many answered peer connections are still held.
func (a *PionAnswerer) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.peers)
}

// Close closes every held peer connection. Later Answer calls fail with
// ErrAnswererClosed.
func (a *PionAnswerer) Close() error {
	a.mu.Lock()
	a.closed = true
	peers := a.peers
	a.peers = make(map[*webrtc.PeerConnection]*time.Timer)
	a.mu.Unlock()

	var errs []error
	for pc, timer := range peers {
		timer.Stop()
		if err := pc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
