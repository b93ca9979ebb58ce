package audio

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// fadeFrames is the length of the de-click ramp applied when a preview starts.
const fadeFrames = 5

// TrackInfo identifies an uploaded or processed track for preview playback.
type TrackInfo struct {
	ID   string
	Name string
	Path string
}

type decodedTrack struct {
	info    TrackInfo
	samples []int16
}

// PCMDecoder turns a file into preview-format PCM. DecodePCM is the default.
type PCMDecoder func(ctx context.Context, path string) ([]int16, error)

// Player plays one preview at a time, emitting PCM frames at real-time rate.
// Loading a new track replaces whatever is playing.
type Player struct {
	log    *zap.SugaredLogger
	decode PCMDecoder

	loadCh  chan TrackInfo
	frameCh chan []int16
	stopCh  chan struct{}

	mu       sync.RWMutex
	current  TrackInfo
	position time.Duration
	duration time.Duration
}

// NewPlayer creates a preview player. A nil decoder selects DecodePCM.
func NewPlayer(log *zap.SugaredLogger, decode PCMDecoder) *Player {
	if decode == nil {
		decode = DecodePCM
	}
	return &Player{
		log:     log,
		decode:  decode,
		loadCh:  make(chan TrackInfo, 1),
		frameCh: make(chan []int16, 100),
		stopCh:  make(chan struct{}, 1),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Player) Frames() <-chan []int16 {
	return p.frameCh
}

// Load queues a track for preview, replacing any pending load.
func (p *Player) Load(t TrackInfo) {
	for {
		select {
		case p.loadCh <- t:
			return
		default:
		}
		select {
		case <-p.loadCh:
		default:
		}
	}
}

// Stop interrupts the current preview.
func (p *Player) Stop() {
	select {
	case p.stopCh <- struct{}{}:
	default:
	}
}

// Status returns current playback info.
func (p *Player) Status() (track TrackInfo, position, duration time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.position, p.duration
}

// Run starts the player. Blocks until ctx is cancelled.
func (p *Player) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	decodedCh := make(chan *decodedTrack, 1)
	go func() {
		defer close(decodedCh)
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-p.loadCh:
				samples, err := p.decode(ctx, t.Path)
				if err != nil {
					p.log.Warnw("preview decode failed", "track", t.ID, "path", t.Path, "error", err)
					continue
				}
				select {
				case decodedCh <- &decodedTrack{info: t, samples: samples}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	var next *decodedTrack
	for {
		dt := next
		next = nil
		if dt == nil {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-decodedCh:
				if !ok {
					return
				}
				dt = d
			}
		}
		next = p.play(ctx, ticker, decodedCh, dt)
		if ctx.Err() != nil {
			return
		}
	}
}

// play streams one decoded track. It returns early with the replacement when a
// new preview finishes decoding mid-track.
func (p *Player) play(ctx context.Context, ticker *time.Ticker, decodedCh <-chan *decodedTrack, dt *decodedTrack) *decodedTrack {
	select {
	case <-p.stopCh: // stale stop from before this track
	default:
	}

	total := len(dt.samples) / FrameSamples
	p.setTrack(dt.info, total)
	defer p.setTrack(TrackInfo{}, 0)
	p.log.Infow("preview started", "track", dt.info.ID, "name", dt.info.Name, "frames", total)

	for i := 0; i < total; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-p.stopCh:
			p.log.Infow("preview stopped", "track", dt.info.ID)
			return nil
		case d, ok := <-decodedCh:
			if ok {
				return d
			}
			return nil
		case <-ticker.C:
		}

		frame := dt.samples[i*FrameSamples : (i+1)*FrameSamples]
		if i < fadeFrames {
			frame = ApplyFade(frame, float64(i+1)/float64(fadeFrames+1))
		}
		select {
		case p.frameCh <- frame:
		case <-ctx.Done():
			return nil
		}
		p.updatePosition(i)
	}
	return nil
}

func (p *Player) setTrack(info TrackInfo, totalFrames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = info
	p.position = 0
	p.duration = time.Duration(totalFrames) * FrameDuration
}

func (p *Player) updatePosition(frameIdx int) {
	p.mu.Lock()
	p.position = time.Duration(frameIdx) * FrameDuration
	p.mu.Unlock()
}
