package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootOptions holds flags shared by every command.
type rootOptions struct {
	v *viper.Viper
}

func (o *rootOptions) logger() (*slog.Logger, error) {
	level := slog.LevelWarn
	if err := level.UnmarshalText([]byte(strings.ToUpper(o.v.GetString("log-level")))); err != nil {
		return nil, err
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}
	opts.v.SetEnvPrefix("WATCHSYNC")
	opts.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	opts.v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "watchsync",
		Short: "Watch together with a room over a sync relay",
		Long: `watchsync keeps a player in step with everyone else in a room.

Every flag can also be set from the environment with the WATCHSYNC_ prefix,
for example WATCHSYNC_RELAY_URL.`,
	}

	cmd.PersistentFlags().String("relay-url", "ws://localhost:8080", "relay websocket root")
	cmd.PersistentFlags().String("log-level", "warn", "logging level")
	_ = opts.v.BindPFlags(cmd.PersistentFlags())

	cmd.AddCommand(newJoinCommand(opts))

	return cmd
}
