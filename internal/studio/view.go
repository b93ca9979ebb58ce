package studio

import "fmt"

// View identifies a dashboard screen. The set is closed: only the types in
// this file implement it.
type View interface {
	// Key is the stable identifier used in URLs and persisted state.
	Key() string
	view()
}

type (
	HomeView           struct{}
	YourPresetsView    struct{}
	PublicPresetsView  struct{}
	ArtistsView        struct{}
	ArtistBlendingView struct{}
	CreateArtistView   struct{}
	SavedLyricsView    struct{}
	BackgroundView     struct{}
	ShareSongsView     struct{}
	MasteringView      struct{}
	StemsView          struct{}
	ImageToLyricsView  struct{}
)

func (HomeView) Key() string           { return "home" }
func (YourPresetsView) Key() string    { return "yourPresets" }
func (PublicPresetsView) Key() string  { return "publicPresets" }
func (ArtistsView) Key() string        { return "artists" }
func (ArtistBlendingView) Key() string { return "artistBlending" }
func (CreateArtistView) Key() string   { return "createArtist" }
func (SavedLyricsView) Key() string    { return "savedLyrics" }
func (BackgroundView) Key() string     { return "background" }
func (ShareSongsView) Key() string     { return "shareSongs" }
func (MasteringView) Key() string      { return "aiMastering" }
func (StemsView) Key() string          { return "aiStems" }
func (ImageToLyricsView) Key() string  { return "imageToLyrics" }

func (HomeView) view()           {}
func (YourPresetsView) view()    {}
func (PublicPresetsView) view()  {}
func (ArtistsView) view()        {}
func (ArtistBlendingView) view() {}
func (CreateArtistView) view()   {}
func (SavedLyricsView) view()    {}
func (BackgroundView) view()     {}
func (ShareSongsView) view()     {}
func (MasteringView) view()      {}
func (StemsView) view()          {}
func (ImageToLyricsView) view()  {}

// Views lists every screen in sidebar order.
var Views = []View{
	HomeView{},
	YourPresetsView{},
	PublicPresetsView{},
	ArtistsView{},
	ArtistBlendingView{},
	CreateArtistView{},
	SavedLyricsView{},
	BackgroundView{},
	ShareSongsView{},
	MasteringView{},
	StemsView{},
	ImageToLyricsView{},
}

// ParseView maps a key back to its View.
func ParseView(key string) (View, error) {
	for _, v := range Views {
		if v.Key() == key {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: view %q", ErrNotFound, key)
}

// Title returns the heading shown for v.
func Title(v View) string {
	switch v.(type) {
	case HomeView:
		return "Lyric Generator"
	case YourPresetsView:
		return "Your Presets"
	case PublicPresetsView:
		return "Public Presets"
	case ArtistsView:
		return "Artists"
	case ArtistBlendingView:
		return "Artist Blending"
	case CreateArtistView:
		return "Create Artist"
	case SavedLyricsView:
		return "Saved Lyrics"
	case BackgroundView:
		return "Background"
	case ShareSongsView:
		return "Share Songs"
	case MasteringView:
		return "AI Mastering"
	case StemsView:
		return "AI Stems"
	case ImageToLyricsView:
		return "Image to Lyrics"
	}
	panic(fmt.Sprintf("studio: unhandled view %T", v))
}

// Premium reports whether v is gated behind a premium account.
func Premium(v View) bool {
	switch v.(type) {
	case MasteringView, StemsView:
		return true
	case HomeView, YourPresetsView, PublicPresetsView, ArtistsView, ArtistBlendingView,
		CreateArtistView, SavedLyricsView, BackgroundView, ShareSongsView, ImageToLyricsView:
		return false
	}
	panic(fmt.Sprintf("studio: unhandled view %T", v))
}
