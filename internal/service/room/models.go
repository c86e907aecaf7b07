package room

import (
	"time"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/repository/room"
)

func stateFromDescriptor(d domain.Descriptor, updatedAt time.Time) room.State {
	return room.State{
		ContentID:     d.ContentID,
		Source:        d.Source,
		EpisodeIndex:  d.EpisodeIndex,
		CurrentTime:   d.CurrentTime,
		IsPlaying:     d.IsPlaying,
		Title:         d.Title,
		ReleaseYear:   d.ReleaseYear,
		CanonicalID:   d.CanonicalID,
		Poster:        d.Poster,
		TotalEpisodes: d.TotalEpisodes,
		UpdatedAt:     updatedAt.UnixMilli(),
	}
}

// descriptorFromState projects the retained state to now: a playing room has
// moved on since it was last written.
func descriptorFromState(st room.State, now time.Time) domain.Descriptor {
	d := domain.Descriptor{
		ContentID:     st.ContentID,
		Source:        st.Source,
		EpisodeIndex:  st.EpisodeIndex,
		CurrentTime:   st.CurrentTime,
		IsPlaying:     st.IsPlaying,
		Title:         st.Title,
		ReleaseYear:   st.ReleaseYear,
		CanonicalID:   st.CanonicalID,
		Poster:        st.Poster,
		TotalEpisodes: st.TotalEpisodes,
	}

	if st.IsPlaying && st.UpdatedAt > 0 {
		if elapsed := now.Sub(time.UnixMilli(st.UpdatedAt)); elapsed > 0 {
			d.CurrentTime += elapsed.Seconds()
		}
	}

	return d
}
