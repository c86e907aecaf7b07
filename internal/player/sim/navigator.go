package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/navigation"
	"github.com/sharetube/watchsync/pkg/clock"
)

const DefaultLoadDelay = 300 * time.Millisecond

// Navigator remounts the simulated player on a new target after a load
// delay, then reports the loaded descriptor.
type Navigator struct {
	player    *Player
	clock     clock.Clock
	loadDelay time.Duration
	logger    *slog.Logger
	onLoaded  func(domain.Descriptor)

	pending clock.Timer
}

func NewNavigator(player *Player, c clock.Clock, loadDelay time.Duration, logger *slog.Logger, onLoaded func(domain.Descriptor)) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Navigator{
		player:    player,
		clock:     c,
		loadDelay: loadDelay,
		logger:    logger,
		onLoaded:  onLoaded,
	}
}

// Navigate never fails: the simulated catalogue holds every target. A
// navigation still in flight is superseded.
func (n *Navigator) Navigate(ctx context.Context, target navigation.Target, forceReload bool) error {
	n.logger.InfoContext(ctx, "navigating",
		"content_id", target.ContentID,
		"source", target.Source,
		"episode_index", target.EpisodeIndex,
		"current_time", target.CurrentTime,
		"force_reload", forceReload,
	)

	if n.pending != nil {
		n.pending.Stop()
	}

	n.player.Unload()
	n.pending = n.clock.AfterFunc(n.loadDelay, func() {
		n.player.Load(target.EpisodeIndex, target.CurrentTime)
		if n.onLoaded != nil {
			n.onLoaded(domain.Descriptor{
				ContentID:    target.ContentID,
				Source:       target.Source,
				EpisodeIndex: target.EpisodeIndex,
				CurrentTime:  target.CurrentTime,
				Title:        target.Title,
				ReleaseYear:  target.ReleaseYear,
			})
		}
	})

	return nil
}
