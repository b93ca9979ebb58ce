package studio

import (
	"errors"
	"time"

	"github.com/satindergrewal/codystudio/internal/analysis"
	"github.com/satindergrewal/codystudio/internal/waveform"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrPremiumRequired = errors.New("premium account required")
	ErrNoStems         = errors.New("no stems selected")
	ErrNotReady        = errors.New("track is still uploading")
	ErrInvalidInput    = errors.New("invalid input")
	ErrBusy            = errors.New("a mastering job is already running")
)

// Preset is a mastering style.
type Preset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Presets are the mastering styles offered in the mastering view.
var Presets = []Preset{
	{ID: "crystal-clear", Name: "Crystal Clear"},
	{ID: "deep-impact", Name: "Deep Impact"},
	{ID: "dynamic-air", Name: "Dynamic Air"},
	{ID: "silky-smooth", Name: "Silky Smooth"},
	{ID: "vintage-glue", Name: "Vintage Glue"},
	{ID: "warm-embrace", Name: "Warm Embrace"},
}

// FindPreset looks a preset up by id.
func FindPreset(id string) (Preset, bool) {
	for _, p := range Presets {
		if p.ID == id {
			return p, true
		}
	}
	return Preset{}, false
}

// Track is an uploaded audio file together with its preview data.
type Track struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Path       string           `json:"-"`
	Size       int64            `json:"size"`
	Duration   time.Duration    `json:"duration"`
	SampleRate int              `json:"sample_rate"`
	Channels   int              `json:"channels"`
	Waveform   waveform.Summary `json:"waveform"`
	Levels     analysis.Stats   `json:"levels"`
	UploadedAt time.Time        `json:"uploaded_at"`
}

// MasteredTrack is the output of a mastering job.
type MasteredTrack struct {
	ID           string           `json:"id"`
	TrackID      string           `json:"track_id"`
	Name         string           `json:"name"`
	OriginalFile string           `json:"original_file"`
	Preset       string           `json:"preset"`
	CreatedAt    time.Time        `json:"created_at"`
	Waveform     waveform.Summary `json:"waveform,omitempty"`
}

// StemType names one separated component of a track.
type StemType string

const (
	StemMainVocals    StemType = "main vocals"
	StemBackingVocals StemType = "backing vocals"
	StemInstrumental  StemType = "instrumental"
	StemVocals        StemType = "vocals"
	StemBass          StemType = "bass"
	StemDrums         StemType = "drums"
	StemOther         StemType = "other"
)

// StemOptions selects which stems the vocal remover produces.
type StemOptions struct {
	MainVocals    bool `json:"main_vocals"`
	BackingVocals bool `json:"backing_vocals"`
	Instrumental  bool `json:"instrumental"`
}

// DefaultStemOptions matches the vocal remover's initial toggles.
func DefaultStemOptions() StemOptions {
	return StemOptions{MainVocals: true, Instrumental: true}
}

// Types lists the selected stems in display order.
func (o StemOptions) Types() []StemType {
	var out []StemType
	if o.MainVocals {
		out = append(out, StemMainVocals)
	}
	if o.BackingVocals {
		out = append(out, StemBackingVocals)
	}
	if o.Instrumental {
		out = append(out, StemInstrumental)
	}
	return out
}

// SplitterStems is the fixed four-way split of the stem splitter tab.
var SplitterStems = []StemType{StemVocals, StemDrums, StemBass, StemOther}

// Stem is one separated component with its own waveform.
type Stem struct {
	Type     StemType         `json:"type"`
	Waveform waveform.Summary `json:"waveform"`
}

// ProcessedTrack is the output of a stem split.
type ProcessedTrack struct {
	ID        string    `json:"id"`
	TrackID   string    `json:"track_id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	BPM       int       `json:"bpm"`
	Stems     []Stem    `json:"stems"`
	CreatedAt time.Time `json:"created_at"`
}
