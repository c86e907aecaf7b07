package domain

import "fmt"

type Role int

const (
	RoleMember Role = iota
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleMember:
		return "member"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "owner":
		return RoleOwner, nil
	case "member":
		return RoleMember, nil
	default:
		return RoleMember, fmt.Errorf("unknown role %q", s)
	}
}

// Mode is the reconciliation state of a sync session.
type Mode int

const (
	ModeFollowing Mode = iota
	ModeDiverged
	ModePendingSourceConfirm
	ModePendingChangeConfirm
)

func (m Mode) String() string {
	switch m {
	case ModeFollowing:
		return "following"
	case ModeDiverged:
		return "diverged"
	case ModePendingSourceConfirm:
		return "pending_source_confirm"
	case ModePendingChangeConfirm:
		return "pending_change_confirm"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m Mode) Pending() bool {
	return m == ModePendingSourceConfirm || m == ModePendingChangeConfirm
}

type EventType string

const (
	EventUpdate EventType = "update"
	EventPlay   EventType = "play"
	EventPause  EventType = "pause"
	EventSeek   EventType = "seek"
	EventChange EventType = "change"
)

// Event is an inbound room event after decoding. Descriptor is set for update
// and change, Time for seek.
type Event struct {
	Type       EventType
	SenderID   string
	Descriptor *Descriptor
	Time       float64
}

type LocalEvent int

const (
	LocalPlay LocalEvent = iota + 1
	LocalPause
	LocalSeeked
)

func (e LocalEvent) String() string {
	switch e {
	case LocalPlay:
		return "play"
	case LocalPause:
		return "pause"
	case LocalSeeked:
		return "seeked"
	default:
		return fmt.Sprintf("local_event(%d)", int(e))
	}
}
