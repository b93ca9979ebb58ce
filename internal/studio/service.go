package studio

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satindergrewal/codystudio/internal/analysis"
	"github.com/satindergrewal/codystudio/internal/audio"
	"github.com/satindergrewal/codystudio/internal/task"
	"github.com/satindergrewal/codystudio/internal/waveform"
)

// Task kinds.
const (
	KindUpload = "upload"
	KindMaster = "master"
	KindStems  = "stems"
)

// Options configures a Service.
type Options struct {
	UploadDir  string
	Buckets    int           // waveform resolution
	Steps      int           // progress steps for simulated work
	UploadStep time.Duration // delay per upload progress step
	MasterStep time.Duration // delay per mastering progress step
	StemsStep  time.Duration // delay per stem split progress step
	Premium    bool

	// JobRetention is how long a finished job stays visible to Job.
	JobRetention time.Duration
}

// Decoder turns an uploaded file into samples. audio.Decode is the default.
type Decoder func(ctx context.Context, path string) (*audio.Buffer, error)

// Service owns uploaded tracks, processing jobs and the view state of the
// mastering and stems screens.
type Service struct {
	ctx     context.Context
	log     *zap.SugaredLogger
	opts    Options
	decode  Decoder
	publish func(task.Progress)

	mu        sync.RWMutex
	tracks    map[string]*Track
	pending   map[string]task.Handle // track id -> running upload
	active    map[string]string      // view key -> track id of the current upload
	jobs      map[string]task.Handle
	masterJob task.Handle
	mastering MasteringState
	stems     StemsState
}

// NewService creates a service whose tasks live until ctx is done. publish,
// if non-nil, receives every task progress update.
func NewService(ctx context.Context, log *zap.SugaredLogger, opts Options, decode Decoder, publish func(task.Progress)) (*Service, error) {
	if opts.Buckets <= 0 {
		opts.Buckets = waveform.DefaultBuckets
	}
	if opts.Steps <= 0 {
		opts.Steps = 100
	}
	if opts.JobRetention <= 0 {
		opts.JobRetention = 10 * time.Minute
	}
	if decode == nil {
		decode = audio.Decode
	}
	if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Service{
		ctx:     ctx,
		log:     log,
		opts:    opts,
		decode:  decode,
		publish: publish,
		tracks:  make(map[string]*Track),
		pending: make(map[string]task.Handle),
		active:  make(map[string]string),
		jobs:    make(map[string]task.Handle),
		stems:   NewStemsState(),
	}, nil
}

func (s *Service) observe(p task.Progress) {
	if s.publish != nil {
		s.publish(p)
	}
}

func (s *Service) dispatch(v View, a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatchLocked(v, a)
}

// dispatchUpload applies a only while track id is still the screen's current
// upload, so a replaced upload cannot overwrite its successor's progress.
func (s *Service) dispatchUpload(v View, id string, a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[v.Key()] == id {
		s.dispatchLocked(v, a)
	}
}

func (s *Service) dispatchLocked(v View, a Action) {
	switch v.(type) {
	case MasteringView:
		s.mastering = ReduceMastering(s.mastering, a)
	case StemsView:
		s.stems = ReduceStems(s.stems, a)
	}
}

func (s *Service) checkPremium(v View) error {
	if Premium(v) && !s.opts.Premium {
		return ErrPremiumRequired
	}
	return nil
}

// Upload stores the file read from r and starts a task that simulates the
// upload, then decodes the first channel and computes its waveform and
// levels. Any upload still running for the same screen is cancelled. The
// returned id names the track once the task succeeds.
func (s *Service) Upload(v View, name string, r io.Reader) (string, *task.Task[*Track], error) {
	if err := s.checkPremium(v); err != nil {
		return "", nil, err
	}
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return "", nil, fmt.Errorf("%w: file name %q", ErrInvalidInput, name)
	}

	id := uuid.NewString()
	path := filepath.Join(s.opts.UploadDir, id+strings.ToLower(filepath.Ext(name)))
	size, err := writeFile(path, r)
	if err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	if prev, ok := s.active[v.Key()]; ok {
		if h, running := s.pending[prev]; running {
			h.Cancel()
		}
	}
	s.active[v.Key()] = id
	s.dispatchLocked(v, FileSelected{Name: name, TrackID: id})

	t := task.Start(s.ctx, KindUpload, func(ctx context.Context, report func(int)) (*Track, error) {
		return s.ingest(ctx, v, id, name, path, size, report)
	}, task.WithObserver(s.observe))
	s.pending[id] = t
	s.trackLocked(t)
	s.mu.Unlock()

	s.log.Infow("upload started", "track", id, "name", name, "size", size, "job", t.ID())
	return id, t, nil
}

func (s *Service) ingest(ctx context.Context, v View, id, name, path string, size int64, report func(int)) (*Track, error) {
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	err := task.Steps(ctx, s.opts.Steps, s.opts.UploadStep, func(p int) {
		// the last percent is reserved for decoding
		p = min(p, 99)
		report(p)
		s.dispatchUpload(v, id, UploadProgressed{Percent: p})
	})
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	s.dispatchUpload(v, id, UploadFinished{})

	track, err := s.analyze(ctx, id, name, path, size)
	if err != nil {
		s.log.Warnw("waveform generation failed", "track", id, "name", name, "error", err)
		os.Remove(path)
		return nil, err
	}

	s.mu.Lock()
	if _, ok := s.pending[id]; !ok || ctx.Err() != nil {
		// removed or replaced while decoding
		s.mu.Unlock()
		os.Remove(path)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: track %s removed", context.Canceled, id)
	}
	s.tracks[id] = track
	s.mu.Unlock()
	s.dispatchUpload(v, id, WaveformReady{Name: name, TrackID: id, Waveform: track.Waveform})

	s.log.Infow("upload ready", "track", id, "duration", track.Duration, "peak_dbfs", track.Levels.PeakDBFS)
	return track, nil
}

func (s *Service) analyze(ctx context.Context, id, name, path string, size int64) (*Track, error) {
	buf, err := s.decode(ctx, path)
	if err != nil {
		return nil, err
	}
	ch, err := buf.Channel(0)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	summary, err := waveform.Summarize(ch, s.opts.Buckets)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", name, err)
	}
	return &Track{
		ID:         id,
		Name:       name,
		Path:       path,
		Size:       size,
		Duration:   buf.Duration(),
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
		Waveform:   summary,
		Levels:     analysis.Levels(ch),
		UploadedAt: time.Now(),
	}, nil
}

func writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create upload: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("write upload: %w", err)
	}
	return n, nil
}

// Track returns an uploaded track.
func (s *Service) Track(id string) (*Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tracks[id]; ok {
		return t, nil
	}
	if _, ok := s.pending[id]; ok {
		return nil, ErrNotReady
	}
	return nil, fmt.Errorf("%w: track %s", ErrNotFound, id)
}

// Tracks returns all ready tracks, newest first.
func (s *Service) Tracks() []*Track {
	s.mu.RLock()
	out := make([]*Track, 0, len(s.tracks))
	for _, t := range s.tracks {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out
}

// RemoveTrack deletes a track and its file, cancelling its upload if one is
// still running.
func (s *Service) RemoveTrack(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.pending[id]; ok {
		// the upload task removes its own file once it sees the cancellation
		h.Cancel()
		delete(s.pending, id)
		s.clearSelectionLocked(id)
		return nil
	}
	t, ok := s.tracks[id]
	if !ok {
		return fmt.Errorf("%w: track %s", ErrNotFound, id)
	}
	delete(s.tracks, id)
	s.clearSelectionLocked(id)
	if err := os.Remove(t.Path); err != nil && !os.IsNotExist(err) {
		s.log.Warnw("remove upload failed", "track", id, "error", err)
	}
	return nil
}

func (s *Service) clearSelectionLocked(id string) {
	for _, v := range []View{MasteringView{}, StemsView{}} {
		if s.active[v.Key()] == id {
			delete(s.active, v.Key())
			s.dispatchLocked(v, FileCleared{})
		}
	}
}

// Master starts a mastering job for a track with the given preset. The
// mastered track carries the source waveform. Only one mastering job runs at
// a time; ErrBusy is returned while another is in progress.
func (s *Service) Master(trackID, presetID string) (*task.Task[MasteredTrack], error) {
	if err := s.checkPremium(MasteringView{}); err != nil {
		return nil, err
	}
	preset, ok := FindPreset(presetID)
	if !ok {
		return nil, fmt.Errorf("%w: preset %q", ErrNotFound, presetID)
	}
	track, err := s.Track(trackID)
	if err != nil {
		return nil, err
	}

	v := MasteringView{}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.masterJob != nil && !s.masterJob.Snapshot().State.Terminal() {
		return nil, fmt.Errorf("%w: job %s", ErrBusy, s.masterJob.ID())
	}
	s.dispatchLocked(v, PresetSelected{ID: preset.ID})
	s.dispatchLocked(v, MasteringStarted{})

	t := task.Start(s.ctx, KindMaster, func(ctx context.Context, report func(int)) (MasteredTrack, error) {
		err := task.Steps(ctx, s.opts.Steps, s.opts.MasterStep, func(p int) {
			report(p)
			s.dispatch(v, MasteringProgressed{Percent: p})
		})
		if err != nil {
			s.dispatch(v, MasteringStopped{})
			return MasteredTrack{}, err
		}
		mt := MasteredTrack{
			ID:           uuid.NewString(),
			TrackID:      track.ID,
			Name:         "mastered_" + track.Name,
			OriginalFile: track.Name,
			Preset:       preset.Name,
			CreatedAt:    time.Now(),
			Waveform:     track.Waveform,
		}
		s.dispatch(v, Mastered{Track: mt})
		s.log.Infow("mastering finished", "track", track.ID, "preset", preset.ID)
		return mt, nil
	}, task.WithObserver(s.observe))
	s.masterJob = t
	s.trackLocked(t)
	return t, nil
}

// SplitStems starts a stem separation job. The vocal remover produces the
// stems selected in opts; the stem splitter always produces four.
func (s *Service) SplitStems(trackID string, tab StemsTab, opts StemOptions) (*task.Task[ProcessedTrack], error) {
	if err := s.checkPremium(StemsView{}); err != nil {
		return nil, err
	}
	types := SplitterStems
	if tab != TabStemSplitter {
		types = opts.Types()
	}
	if len(types) == 0 {
		return nil, ErrNoStems
	}
	track, err := s.Track(trackID)
	if err != nil {
		return nil, err
	}

	t := task.Start(s.ctx, KindStems, func(ctx context.Context, report func(int)) (ProcessedTrack, error) {
		if err := task.Steps(ctx, s.opts.Steps, s.opts.StemsStep, report); err != nil {
			return ProcessedTrack{}, err
		}
		pt := ProcessedTrack{
			ID:        uuid.NewString(),
			TrackID:   track.ID,
			Name:      track.Name,
			Key:       "B♭maj",
			BPM:       94,
			CreatedAt: time.Now(),
		}
		for i, st := range types {
			pt.Stems = append(pt.Stems, Stem{Type: st, Waveform: stemWaveform(track, i)})
		}
		s.dispatch(StemsView{}, Processed{Track: pt})
		s.log.Infow("stem split finished", "track", track.ID, "stems", len(pt.Stems))
		return pt, nil
	}, task.WithObserver(s.observe))
	s.mu.Lock()
	s.trackLocked(t)
	s.mu.Unlock()
	return t, nil
}

// stemWaveform derives a placeholder stem outline from the source peaks. The
// result is stable for a given track and stem index and never exceeds the
// source.
func stemWaveform(t *Track, idx int) waveform.Summary {
	h := fnv.New64a()
	h.Write([]byte(t.ID))
	r := rand.New(rand.NewPCG(h.Sum64(), uint64(idx)))

	out := make(waveform.Summary, len(t.Waveform))
	for i, v := range t.Waveform {
		out[i] = v * r.Float32()
	}
	return out
}

// trackLocked makes h visible to Job and CancelJob until JobRetention after
// it finishes.
func (s *Service) trackLocked(h task.Handle) {
	s.jobs[h.ID()] = h
	go func() {
		select {
		case <-h.Done():
		case <-s.ctx.Done():
			return
		}
		timer := time.NewTimer(s.opts.JobRetention)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			return
		}
		s.mu.Lock()
		delete(s.jobs, h.ID())
		s.mu.Unlock()
	}()
}

// Job returns the current state of a task started by the service.
func (s *Service) Job(id string) (task.Snapshot, error) {
	s.mu.RLock()
	h, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return task.Snapshot{}, fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	return h.Snapshot(), nil
}

// CancelJob stops a running task.
func (s *Service) CancelJob(id string) error {
	s.mu.RLock()
	h, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: job %s", ErrNotFound, id)
	}
	h.Cancel()
	return nil
}

// ViewState returns the serializable state of a screen. Screens without
// server-side state return nil.
func (s *Service) ViewState(v View) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch v.(type) {
	case MasteringView:
		return s.mastering
	case StemsView:
		return s.stems
	}
	return nil
}

// Premium reports whether premium screens are unlocked.
func (s *Service) Premium() bool {
	return s.opts.Premium
}
