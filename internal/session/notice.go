package session

import (
	"context"
	"fmt"

	"github.com/sharetube/watchsync/internal/domain"
)

type NoticeKind int

const (
	NoticeCommandDropped NoticeKind = iota + 1
	NoticePlayerRejected
	NoticeNavigationFailed
	NoticePublishFailed
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeCommandDropped:
		return "command_dropped"
	case NoticePlayerRejected:
		return "player_rejected"
	case NoticeNavigationFailed:
		return "navigation_failed"
	case NoticePublishFailed:
		return "publish_failed"
	default:
		return fmt.Sprintf("notice(%d)", int(k))
	}
}

// Notice is a non-fatal failure surfaced to the host. Local playback carries
// on and the session resyncs on the next event.
type Notice struct {
	Kind NoticeKind
	Err  error
}

func (n Notice) Error() string {
	return n.Kind.String() + ": " + n.Err.Error()
}

func (n Notice) Unwrap() error {
	return n.Err
}

func (s *Session) notify(ctx context.Context, kind NoticeKind, err error) {
	s.logger.WarnContext(ctx, "sync notice", "kind", kind.String(), "error", err)
	if s.onNotice != nil {
		s.onNotice(Notice{Kind: kind, Err: err})
	}
}

func (s *Session) publishFailed(ctx context.Context, event domain.EventType, err error) {
	s.notify(ctx, NoticePublishFailed, fmt.Errorf("failed to publish %s: %w", event, err))
}
