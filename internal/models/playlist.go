package models

// ItemType identifies the presentational kind of a playlist item.
type ItemType string

// Supported playlist item types.
const (
	ItemTypeImage   ItemType = "image"
	ItemTypeVideo   ItemType = "video"
	ItemTypeWebpage ItemType = "webpage"
	ItemTypeTicker  ItemType = "ticker"
)

// IsValid returns true for a known item type.
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeImage, ItemTypeVideo, ItemTypeWebpage, ItemTypeTicker:
		return true
	default:
		return false
	}
}

// Playlist is the directory document describing an ordered sequence of items
// and playback settings. Item order is playback order and must round-trip
// through the local cache unchanged.
type Playlist struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Items    []PlaylistItem   `json:"items"`
	Settings PlaylistSettings `json:"settings"`
}

// PlaylistItem is a single scheduled piece of content.
type PlaylistItem struct {
	ID       string       `json:"id"`
	Type     ItemType     `json:"type"`
	Name     string       `json:"name"`
	Duration int          `json:"duration"` // seconds
	Content  ItemContent  `json:"content"`
	Settings ItemSettings `json:"settings"`
}

// ItemContent holds the remote addresses for an item.
type ItemContent struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// ItemSettings holds per-item presentation settings.
type ItemSettings struct {
	Transition         string `json:"transition"`
	TransitionDuration int    `json:"transitionDuration"` // seconds
	Scaling            string `json:"scaling"`
	Muted              *bool  `json:"muted,omitempty"`
	Loop               *bool  `json:"loop,omitempty"`
}

// PlaylistSettings holds playlist-wide settings.
type PlaylistSettings struct {
	AutoPlay        bool               `json:"autoPlay"`
	Loop            bool               `json:"loop"`
	DefaultMuted    bool               `json:"defaultMuted"`
	Transition      TransitionSettings `json:"transition"`
	DefaultDuration int                `json:"defaultDuration"`
	Scheduling      SchedulingSettings `json:"scheduling"`
}

// TransitionSettings describes the default transition between items.
type TransitionSettings struct {
	Type     string `json:"type"`
	Duration int    `json:"duration"` // seconds
}

// SchedulingSettings carries playlist-level schedule hints from the directory.
type SchedulingSettings struct {
	Enabled   bool   `json:"enabled"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Priority  int    `json:"priority"`
}

// Validate checks a playlist document for structural errors.
func (p *Playlist) Validate() error {
	if p.ID == "" {
		return ErrPlaylistIDRequired
	}
	for i := range p.Items {
		if err := p.Items[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a playlist item for structural errors.
func (i *PlaylistItem) Validate() error {
	if i.ID == "" {
		return ErrItemIDRequired
	}
	if !i.Type.IsValid() {
		return ErrInvalidItemType
	}
	if i.Duration <= 0 {
		return ErrInvalidDuration
	}
	return nil
}

// TransitionDelaySeconds returns how long the engine should hold in the
// Transitioning state when leaving this item. A transition type of "none"
// (or unset) advances immediately.
func (i *PlaylistItem) TransitionDelaySeconds() int {
	if i.Settings.Transition == "" || i.Settings.Transition == "none" {
		return 0
	}
	if i.Settings.TransitionDuration < 0 {
		return 0
	}
	return i.Settings.TransitionDuration
}
