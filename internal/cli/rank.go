package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/akinrinmade/jara-daily/internal/rank"
)

// RankView is the output of the rank command.
type RankView struct {
	XP         int64     `json:"xp"`
	Rank       rank.Rank `json:"rank"`
	NextRankAt int64     `json:"next_rank_at"`
	Progress   int       `json:"progress"`
}

func (v RankView) Text() string {
	if v.NextRankAt <= v.XP {
		return fmt.Sprintf("%d XP: %s (top rank)\n", v.XP, v.Rank)
	}
	return fmt.Sprintf("%d XP: %s, %d%% of the way to %d XP\n", v.XP, v.Rank, v.Progress, v.NextRankAt)
}

// NewRankCommand creates the rank command.
func NewRankCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rank <xp>",
		Short: "Show the rank for an XP total",
		Long: `Show the rank label, next threshold and progress for an XP total,
using the configured rank ladder.

Example:
  jara rank 120
  jara rank 5000 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			xp, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid xp %q", args[0]), err)
			}
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			ranks, err := cfg.RankTable()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid rank table", err)
			}
			return rootOpts.formatter(cmd).Success(RankView{
				XP:         xp,
				Rank:       ranks.RankFor(xp),
				NextRankAt: ranks.NextRankThreshold(xp),
				Progress:   ranks.Progress(xp),
			})
		},
	}
}
