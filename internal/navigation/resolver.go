// Package navigation decides how the local player reaches a remote target.
package navigation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/identity"
)

const DefaultSettleDelay = time.Second

// Target is what a full navigation hands to the navigation collaborator.
type Target struct {
	ContentID    string  `json:"content_id"`
	Source       string  `json:"source"`
	EpisodeIndex int     `json:"episode_index"`
	CurrentTime  float64 `json:"current_time"`
	Title        string  `json:"title"`
	ReleaseYear  string  `json:"release_year,omitempty"`
}

func TargetOf(d domain.Descriptor) Target {
	return Target{
		ContentID:    d.ContentID,
		Source:       d.Source,
		EpisodeIndex: d.EpisodeIndex,
		CurrentTime:  d.CurrentTime,
		Title:        d.Title,
		ReleaseYear:  d.ReleaseYear,
	}
}

type Navigator interface {
	// Navigate resolves target to playable content and remounts the player
	// context.
	Navigate(ctx context.Context, target Target, forceReload bool) error
}

type EpisodeSwitcher interface {
	SwitchEpisode(index int) error
}

type PlanKind int

const (
	PlanInPlace PlanKind = iota + 1
	PlanNavigate
)

func (k PlanKind) String() string {
	switch k {
	case PlanInPlace:
		return "in_place"
	case PlanNavigate:
		return "navigate"
	default:
		return fmt.Sprintf("plan(%d)", int(k))
	}
}

type Plan struct {
	Kind          PlanKind
	SwitchEpisode bool
	Target        domain.Descriptor
}

// Outcome tells the caller whether it still owes the player a seek, and after
// how long.
type Outcome struct {
	Plan        Plan
	SeekPending bool
	SeekTo      float64
	SeekAfter   time.Duration
}

type Resolver struct {
	switcher    EpisodeSwitcher
	navigator   Navigator
	settleDelay time.Duration
	logger      *slog.Logger
}

func NewResolver(switcher EpisodeSwitcher, navigator Navigator, settleDelay time.Duration, logger *slog.Logger) *Resolver {
	if settleDelay <= 0 {
		settleDelay = DefaultSettleDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		switcher:    switcher,
		navigator:   navigator,
		settleDelay: settleDelay,
		logger:      logger,
	}
}

func (r *Resolver) Plan(current, target domain.Descriptor) Plan {
	if identity.SameContentAndSource(current, target) {
		return Plan{
			Kind:          PlanInPlace,
			SwitchEpisode: current.EpisodeIndex != target.EpisodeIndex,
			Target:        target,
		}
	}

	return Plan{
		Kind:   PlanNavigate,
		Target: target,
	}
}

// Resolve carries out the plan for target. On the in-place path the seek is
// left to the caller so it can be applied as a remote command.
func (r *Resolver) Resolve(ctx context.Context, current, target domain.Descriptor) (Outcome, error) {
	plan := r.Plan(current, target)
	r.logger.DebugContext(ctx, "navigation planned",
		"plan", plan.Kind.String(),
		"switch_episode", plan.SwitchEpisode,
		"content_id", target.ContentID,
		"source", target.Source,
		"episode_index", target.EpisodeIndex,
	)

	if plan.Kind == PlanNavigate {
		if err := r.navigator.Navigate(ctx, TargetOf(target), true); err != nil {
			return Outcome{Plan: plan}, fmt.Errorf("failed to navigate: %w", err)
		}

		return Outcome{Plan: plan}, nil
	}

	outcome := Outcome{
		Plan:        plan,
		SeekPending: target.CurrentTime > 0,
		SeekTo:      target.CurrentTime,
	}

	if plan.SwitchEpisode {
		if err := r.switcher.SwitchEpisode(target.EpisodeIndex); err != nil {
			return Outcome{Plan: plan}, fmt.Errorf("failed to switch episode: %w", err)
		}
		outcome.SeekAfter = r.settleDelay
	}

	return outcome, nil
}
