package studio

import (
	"slices"

	"github.com/satindergrewal/codystudio/internal/waveform"
)

// Action is an event applied to a screen's view state by its reducer.
// Reducers ignore actions they do not handle.
type Action interface {
	action()
}

type (
	// FileSelected starts a new upload and discards the previous one.
	FileSelected struct {
		Name    string
		TrackID string
	}
	// UploadProgressed reports upload completion in percent.
	UploadProgressed struct{ Percent int }
	// UploadFinished ends the upload phase; the waveform follows separately.
	UploadFinished struct{}
	// WaveformReady delivers the summary for the upload TrackID of the file
	// called Name.
	WaveformReady struct {
		Name     string
		TrackID  string
		Waveform waveform.Summary
	}
	// FileCleared removes the selected file and its preview.
	FileCleared struct{}

	PresetSelected      struct{ ID string }
	MasteringStarted    struct{}
	MasteringProgressed struct{ Percent int }
	// MasteringStopped ends a mastering job that failed or was cancelled.
	MasteringStopped    struct{}
	Mastered            struct{ Track MasteredTrack }

	TabSelected   struct{ Tab StemsTab }
	OptionToggled struct{ Stem StemType }
	OptionsOpened struct{ Open bool }
	Processed     struct{ Track ProcessedTrack }
)

func (FileSelected) action()        {}
func (UploadProgressed) action()    {}
func (UploadFinished) action()      {}
func (WaveformReady) action()       {}
func (FileCleared) action()         {}
func (PresetSelected) action()      {}
func (MasteringStarted) action()    {}
func (MasteringProgressed) action() {}
func (MasteringStopped) action()    {}
func (Mastered) action()            {}
func (TabSelected) action()         {}
func (OptionToggled) action()       {}
func (OptionsOpened) action()       {}
func (Processed) action()           {}

// Preview is the uploaded file as shown above the action buttons.
type Preview struct {
	Name     string           `json:"name"`
	Waveform waveform.Summary `json:"waveform"`
}

// Upload is the upload/preview portion shared by the mastering and stems
// screens.
type Upload struct {
	SelectedFile string   `json:"selected_file,omitempty"`
	TrackID      string   `json:"track_id,omitempty"`
	Uploading    bool     `json:"uploading"`
	Progress     int      `json:"upload_progress"`
	Preview      *Preview `json:"preview,omitempty"`
}

func (u Upload) reduce(a Action) (Upload, bool) {
	switch a := a.(type) {
	case FileSelected:
		return Upload{SelectedFile: a.Name, TrackID: a.TrackID, Uploading: true}, true
	case UploadProgressed:
		if u.Uploading {
			u.Progress = clampPercent(a.Percent)
		}
		return u, true
	case UploadFinished:
		u.Uploading = false
		return u, true
	case WaveformReady:
		// results for a file that has since been replaced are dropped
		if a.Name == u.SelectedFile && a.TrackID == u.TrackID {
			u.Preview = &Preview{Name: a.Name, Waveform: a.Waveform}
		}
		return u, true
	case FileCleared:
		return Upload{}, true
	}
	return u, false
}

// finished clears the upload once a job on its track completes. Results for
// any other track leave the current selection alone.
func (u Upload) finished(trackID string) Upload {
	if trackID != u.TrackID {
		return u
	}
	return Upload{}
}

// MasteringState is the view state of the mastering screen.
type MasteringState struct {
	Upload
	SelectedPreset    string          `json:"selected_preset,omitempty"`
	Mastering         bool            `json:"mastering"`
	MasteringProgress int             `json:"mastering_progress"`
	Current           []MasteredTrack `json:"current"`
	Previous          []MasteredTrack `json:"previous"`
}

// CanMaster reports whether the master button is enabled.
func (s MasteringState) CanMaster() bool {
	return !s.Mastering && !s.Uploading && s.SelectedFile != "" && s.SelectedPreset != "" && s.Preview != nil
}

// ReduceMastering applies a to s and returns the new state. s is not modified.
func ReduceMastering(s MasteringState, a Action) MasteringState {
	if u, ok := s.Upload.reduce(a); ok {
		s.Upload = u
		switch a.(type) {
		case FileCleared:
			s.SelectedPreset = ""
		case FileSelected:
			// results of the last session move to the history
			if len(s.Current) > 0 {
				s.Previous = append(slices.Clone(s.Current), s.Previous...)
				s.Current = nil
			}
		}
		return s
	}

	switch a := a.(type) {
	case PresetSelected:
		if _, ok := FindPreset(a.ID); ok && !s.Mastering {
			s.SelectedPreset = a.ID
		}
	case MasteringStarted:
		if s.CanMaster() {
			s.Mastering = true
			s.MasteringProgress = 0
		}
	case MasteringProgressed:
		if s.Mastering {
			s.MasteringProgress = clampPercent(a.Percent)
		}
	case MasteringStopped:
		s.Mastering = false
		s.MasteringProgress = 0
	case Mastered:
		s.Current = append([]MasteredTrack{a.Track}, s.Current...)
		if a.Track.TrackID == s.TrackID {
			s.Upload = Upload{}
			s.SelectedPreset = ""
		}
		s.Mastering = false
		s.MasteringProgress = 0
	}
	return s
}

// StemsTab selects between the two stem tools.
type StemsTab string

const (
	TabVocalRemover StemsTab = "vocal-remover"
	TabStemSplitter StemsTab = "stem-splitter"
)

// StemsState is the view state of the stems screen.
type StemsState struct {
	Upload
	Tab         StemsTab         `json:"tab"`
	OptionsOpen bool             `json:"options_open"`
	Options     StemOptions      `json:"options"`
	Processed   []ProcessedTrack `json:"processed"`
}

// NewStemsState returns the initial stems screen.
func NewStemsState() StemsState {
	return StemsState{Tab: TabVocalRemover, Options: DefaultStemOptions()}
}

// ReduceStems applies a to s and returns the new state. s is not modified.
func ReduceStems(s StemsState, a Action) StemsState {
	if u, ok := s.Upload.reduce(a); ok {
		s.Upload = u
		return s
	}

	switch a := a.(type) {
	case TabSelected:
		if a.Tab == TabVocalRemover || a.Tab == TabStemSplitter {
			s.Tab = a.Tab
		}
	case OptionsOpened:
		s.OptionsOpen = a.Open
	case OptionToggled:
		switch a.Stem {
		case StemMainVocals:
			s.Options.MainVocals = !s.Options.MainVocals
		case StemBackingVocals:
			s.Options.BackingVocals = !s.Options.BackingVocals
		case StemInstrumental:
			s.Options.Instrumental = !s.Options.Instrumental
		}
	case Processed:
		s.Processed = slices.Insert(slices.Clone(s.Processed), 0, a.Track)
		s.Upload = s.Upload.finished(a.Track.TrackID)
	}
	return s
}

func clampPercent(p int) int {
	return min(max(p, 0), 100)
}
