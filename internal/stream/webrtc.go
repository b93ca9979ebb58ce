package stream

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/zap"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/codystudio/internal/audio"
)

const (
	// PreviewBuffer is about 3 seconds of 20ms frames.
	PreviewBuffer = 150
	opusBitrate   = 128000
)

// WebRTCHandler negotiates a peer connection per listener and sends the
// preview player's output as Opus.
type WebRTCHandler struct {
	log     *zap.SugaredLogger
	frames  *Broadcaster[[]int16]
	mu      sync.Mutex
	peers   map[*webrtc.PeerConnection]struct{}
	newPeer func() (*webrtc.PeerConnection, error)
}

// NewWebRTCHandler creates a WebRTC preview handler fed by frames.
func NewWebRTCHandler(log *zap.SugaredLogger, frames *Broadcaster[[]int16]) *WebRTCHandler {
	return &WebRTCHandler{
		log:    log,
		frames: frames,
		peers:  make(map[*webrtc.PeerConnection]struct{}),
		newPeer: func() (*webrtc.PeerConnection, error) {
			return webrtc.NewPeerConnection(webrtc.Configuration{})
		},
	}
}

// PeerCount returns the number of connected peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil || offer.SDP == "" {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := h.newPeer()
	if err != nil {
		h.log.Errorw("create peer connection", "error", err)
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}
	track, status, err := h.negotiate(pc, offer)
	if err != nil {
		pc.Close()
		h.log.Warnw("webrtc negotiation failed", "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	h.mu.Lock()
	h.peers[pc] = struct{}{}
	h.mu.Unlock()
	h.log.Infow("webrtc peer connected", "peers", h.PeerCount())

	go h.streamToPeer(pc, track)

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			h.removePeer(pc)
			pc.Close()
			h.log.Infow("webrtc peer disconnected", "peers", h.PeerCount())
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// negotiate attaches an Opus track, answers the offer and waits for ICE
// gathering so the answer carries every candidate.
func (h *WebRTCHandler) negotiate(pc *webrtc.PeerConnection, offer webrtc.SessionDescription) (*webrtc.TrackLocalStaticSample, int, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"codystudio-preview",
	)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if _, err := pc.AddTrack(track); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, http.StatusBadRequest, err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	<-gathered
	return track, http.StatusOK, nil
}

func (h *WebRTCHandler) streamToPeer(pc *webrtc.PeerConnection, track *webrtc.TrackLocalStaticSample) {
	listener := h.frames.Subscribe()
	defer h.frames.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		h.log.Errorw("opus encoder", "error", err)
		return
	}
	if err := enc.SetBitrate(opusBitrate); err != nil {
		h.log.Warnw("opus bitrate", "error", err)
	}

	buf := make([]byte, 4000)
	for {
		select {
		case <-listener.Done():
			return
		case frame := <-listener.C:
			n, err := enc.Encode(frame, buf)
			if err != nil {
				h.log.Warnw("opus encode", "error", err)
				continue
			}
			if err := track.WriteSample(media.Sample{Data: buf[:n], Duration: audio.FrameDuration}); err != nil {
				return
			}
		}
		if pc.ConnectionState() == webrtc.PeerConnectionStateClosed {
			return
		}
	}
}

func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) {
	h.mu.Lock()
	delete(h.peers, pc)
	h.mu.Unlock()
}
