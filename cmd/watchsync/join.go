package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sharetube/watchsync/internal/client"
	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/pkg/clock"
)

const joinHelp = `commands:
  play | pause | seek <seconds> | episode <index>
  confirm | reject | pause-sync | resume | state | quit`

func newJoinCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join <room-id>",
		Short: "Join a room with a simulated player",
		Long: `Join a room and read commands from stdin.

` + joinHelp + `

Example:
  watchsync join movie-night --content-id tt0133093 --source example --title "The Matrix" --year 1999`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd, rootOpts, args[0])
		},
	}

	cmd.Flags().String("content-id", "", "content the local player shows (required)")
	cmd.Flags().String("source", "", "source the content comes from (required)")
	cmd.Flags().String("title", "", "content title")
	cmd.Flags().String("year", "", "release year")
	cmd.Flags().String("canonical-id", "", "source independent content id")
	cmd.Flags().Int("episode", 0, "episode index")
	cmd.Flags().Int("episodes", 1, "number of episodes the source offers")
	cmd.Flags().Float64("duration", 0, "episode length in seconds, 0 for unbounded")
	_ = rootOpts.v.BindPFlags(cmd.Flags())

	return cmd
}

func runJoin(cmd *cobra.Command, opts *rootOptions, roomID string) error {
	v := opts.v

	local := domain.Descriptor{
		ContentID:     v.GetString("content-id"),
		Source:        v.GetString("source"),
		EpisodeIndex:  v.GetInt("episode"),
		Title:         v.GetString("title"),
		ReleaseYear:   v.GetString("year"),
		CanonicalID:   v.GetString("canonical-id"),
		TotalEpisodes: v.GetInt("episodes"),
	}
	if local.ContentID == "" || local.Source == "" {
		return errors.New("--content-id and --source are required")
	}

	logger, err := opts.logger()
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := cmd.OutOrStdout()
	c := client.New(client.Config{
		RelayURL: v.GetString("relay-url"),
		RoomID:   roomID,
		Local:    local,
		Duration: v.GetFloat64("duration"),
	}, clock.New(), out, logger)

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	fmt.Fprintln(out, joinHelp)
	go readCommands(ctx, cancel, c, cmd.InOrStdin(), out)

	return <-runErr
}

func readCommands(ctx context.Context, cancel context.CancelFunc, c *client.Client, in io.Reader, out io.Writer) {
	defer cancel()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		err := c.Exec(ctx, scanner.Text())
		if errors.Is(err, client.ErrQuit) {
			return
		}
		if err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to read input:", err)
	}
}
