package room

// State is the retained authoritative playback state of a room.
type State struct {
	ContentID     string  `redis:"content_id"`
	Source        string  `redis:"source"`
	EpisodeIndex  int     `redis:"episode_index"`
	CurrentTime   float64 `redis:"current_time"`
	IsPlaying     bool    `redis:"is_playing"`
	Title         string  `redis:"title"`
	ReleaseYear   string  `redis:"release_year"`
	CanonicalID   string  `redis:"canonical_id"`
	Poster        string  `redis:"poster"`
	TotalEpisodes int     `redis:"total_episodes"`
	UpdatedAt     int64   `redis:"updated_at"`
}

type Member struct {
	RoomID   string `redis:"room_id"`
	JoinedAt int64  `redis:"joined_at"`
}

type AddMemberParams struct {
	MemberID string `json:"member_id"`
	RoomID   string `json:"room_id"`
	JoinedAt int64  `json:"joined_at"`
}

type RemoveMemberFromListParams struct {
	MemberID string `json:"member_id"`
	RoomID   string `json:"room_id"`
}

type SetStateParams struct {
	RoomID string `json:"room_id"`
	State  State  `json:"state"`
}

// UpdatePlaybackParams patches the retained state. Nil fields are left as
// they are.
type UpdatePlaybackParams struct {
	RoomID      string   `json:"room_id"`
	CurrentTime *float64 `json:"current_time"`
	IsPlaying   *bool    `json:"is_playing"`
	UpdatedAt   int64    `json:"updated_at"`
}
