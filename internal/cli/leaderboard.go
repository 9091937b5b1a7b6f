package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewLeaderboardCmd prints the winners or attendees view from the remote store.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var (
		view     string
		puzzleID string
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the winners or attendees leaderboard as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if view != "winners" && view != "attendees" {
				return fmt.Errorf("unknown view %q, want winners or attendees", view)
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := zap.NewNop()
			ctx := cmd.Context()
			b, err := openBackends(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()
			mirror := newMirror(cfg, log)
			defer mirror.Close()

			board := newService(cfg, b, mirror, log).Leaderboard()
			if view == "winners" {
				return printJSON(cmd.OutOrStdout(), board.Winners(ctx, nil, puzzleID))
			}
			return printJSON(cmd.OutOrStdout(), board.Attendees(ctx, nil, puzzleID))
		},
	}
	cmd.Flags().StringVar(&view, "view", "winners", "winners or attendees")
	cmd.Flags().StringVar(&puzzleID, "puzzle", "", "restrict to one puzzle id")
	return cmd
}

// NewRosterCmd prints registrations joined with attempt documents.
func NewRosterCmd(configPath *string) *cobra.Command {
	var puzzleID string
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Print registered attendees joined with their attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			log := zap.NewNop()
			ctx := cmd.Context()
			b, err := openBackends(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()
			mirror := newMirror(cfg, log)
			defer mirror.Close()

			board := newService(cfg, b, mirror, log).Leaderboard()
			return printJSON(cmd.OutOrStdout(), board.Roster(ctx, puzzleID))
		},
	}
	cmd.Flags().StringVar(&puzzleID, "puzzle", "", "restrict attempts to one puzzle id")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
