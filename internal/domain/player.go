package domain

// Descriptor is the canonical "what is playing" record. EpisodeIndex is only
// meaningful together with Source.
type Descriptor struct {
	ContentID     string  `json:"content_id" validate:"required"`
	Source        string  `json:"source" validate:"required"`
	EpisodeIndex  int     `json:"episode_index" validate:"gte=0"`
	CurrentTime   float64 `json:"current_time" validate:"gte=0"`
	IsPlaying     bool    `json:"is_playing"`
	Title         string  `json:"title"`
	ReleaseYear   string  `json:"release_year,omitempty"`
	CanonicalID   string  `json:"canonical_id,omitempty"`
	Poster        string  `json:"poster,omitempty"`
	TotalEpisodes int     `json:"total_episodes,omitempty"`
}

// Identity is the part of a descriptor the throttler keeps as bookkeeping.
type Identity struct {
	ContentID    string `json:"content_id"`
	EpisodeIndex int    `json:"episode_index"`
}

func (d Descriptor) Identity() Identity {
	return Identity{
		ContentID:    d.ContentID,
		EpisodeIndex: d.EpisodeIndex,
	}
}

// WithPlayback returns a copy of d carrying the given position and play state.
func (d Descriptor) WithPlayback(currentTime float64, isPlaying bool) Descriptor {
	d.CurrentTime = currentTime
	d.IsPlaying = isPlaying
	return d
}

// Clone returns a pointer to a copy of d.
func (d Descriptor) Clone() *Descriptor {
	return &d
}
