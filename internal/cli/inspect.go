package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akinrinmade/jara-daily/internal/config"
	"github.com/akinrinmade/jara-daily/internal/identity"
	"github.com/akinrinmade/jara-daily/internal/rank"
	"github.com/akinrinmade/jara-daily/internal/remote"
	"github.com/akinrinmade/jara-daily/internal/store"
)

// ledgerReader is the read side shared by the local store and the remote
// client.
type ledgerReader interface {
	CoinPool(ctx context.Context) (store.CoinPool, error)
	GetProfile(ctx context.Context, userID string) (store.Profile, error)
	Leaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error)
}

// openReader reads from remote_url when configured, otherwise from the
// local database, which must already exist. userID selects the token
// minted for remote profile reads.
func openReader(cfg *config.Config, userID string) (ledgerReader, func(), error) {
	if cfg.RemoteURL != "" {
		var token string
		if userID != "" {
			tokens, err := identity.NewManager(cfg.JWTSecret)
			if err != nil {
				return nil, nil, WrapExitError(ExitCommandError, "jwt_secret is required to read profiles remotely", err)
			}
			if token, err = tokens.Mint(userID, userID); err != nil {
				return nil, nil, WrapExitError(ExitCommandError, "failed to mint token", err)
			}
		}
		c, err := remote.New(cfg.RemoteURL, token)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "invalid remote_url", err)
		}
		return c, func() {}, nil
	}

	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("database not found: %s", cfg.DatabasePath), err)
	}
	ranks, err := cfg.RankTable()
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid rank table", err)
	}
	st, err := store.Open(cfg.DatabasePath, store.WithRankTable(ranks))
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, func() { st.Close() }, nil
}

// readError maps ledger errors onto CLI error output and exit codes.
func readError(f *OutputFormatter, err error) error {
	code := "internal"
	switch {
	case errors.Is(err, store.ErrPoolNotInitialized):
		code = "pool_not_initialized"
	case errors.Is(err, store.ErrProfileNotFound):
		code = "profile_not_found"
	}
	if outErr := f.Error(code, err.Error(), nil); outErr != nil {
		return outErr
	}
	return WrapExitError(ExitFailure, code, err)
}

// PoolView is the output of the pool command.
type PoolView struct {
	store.CoinPool
	Distributed int64 `json:"distributed"`
}

func (v PoolView) Text() string {
	return fmt.Sprintf("Coin pool: %d of %d remaining (%d distributed)\n",
		v.Remaining, v.TotalSupply, v.Distributed)
}

// NewPoolCommand creates the pool command.
func NewPoolCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pool",
		Short: "Show the global Coin pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			r, closeFn, err := openReader(cfg, "")
			if err != nil {
				return err
			}
			defer closeFn()

			f := rootOpts.formatter(cmd)
			pool, err := r.CoinPool(cmd.Context())
			if err != nil {
				return readError(f, err)
			}
			return f.Success(PoolView{CoinPool: pool, Distributed: pool.TotalSupply - pool.Remaining})
		},
	}
}

// ProfileView is the output of the profile command.
type ProfileView struct {
	store.Profile
	NextRankAt int64 `json:"next_rank_at"`
	Progress   int   `json:"progress"`
}

func (v ProfileView) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", v.Username, v.ID)
	fmt.Fprintf(&b, "  Rank:       %s (%d%% to next at %d XP)\n", v.CurrentRank, v.Progress, v.NextRankAt)
	fmt.Fprintf(&b, "  XP:         %d\n", v.XPPoints)
	fmt.Fprintf(&b, "  Coins:      %d\n", v.Coins)
	fmt.Fprintf(&b, "  Streak:     %d days\n", v.StreakDays)
	fmt.Fprintf(&b, "  Posts read: %d\n", v.PostsRead)
	if len(v.SavedPosts) > 0 {
		fmt.Fprintf(&b, "  Saved:      %s\n", strings.Join(v.SavedPosts, ", "))
	}
	return b.String()
}

// NewProfileCommand creates the profile command.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <user-id>",
		Short: "Show a reader's balances and rank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			ranks, err := cfg.RankTable()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid rank table", err)
			}
			r, closeFn, err := openReader(cfg, args[0])
			if err != nil {
				return err
			}
			defer closeFn()

			f := rootOpts.formatter(cmd)
			p, err := r.GetProfile(cmd.Context(), args[0])
			if err != nil {
				return readError(f, err)
			}
			return f.Success(ProfileView{
				Profile:    p,
				NextRankAt: ranks.NextRankThreshold(p.XPPoints),
				Progress:   ranks.Progress(p.XPPoints),
			})
		},
	}
}

// LeaderboardView is the output of the leaderboard command.
type LeaderboardView struct {
	Entries []store.LeaderboardEntry `json:"entries"`
	ranks   *rank.Table
}

func (v LeaderboardView) Text() string {
	if len(v.Entries) == 0 {
		return "No readers yet.\n"
	}
	var b strings.Builder
	for _, e := range v.Entries {
		fmt.Fprintf(&b, "%3d. %-20s %8d XP  %s\n", e.Position, e.Username, e.XPPoints, v.ranks.RankFor(e.XPPoints))
	}
	return b.String()
}

// NewLeaderboardCommand creates the leaderboard command.
func NewLeaderboardCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top readers by XP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			ranks, err := cfg.RankTable()
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid rank table", err)
			}
			if limit <= 0 {
				limit = cfg.LeaderboardLimit
			}
			r, closeFn, err := openReader(cfg, "")
			if err != nil {
				return err
			}
			defer closeFn()

			f := rootOpts.formatter(cmd)
			entries, err := r.Leaderboard(cmd.Context(), limit)
			if err != nil {
				return readError(f, err)
			}
			return f.Success(LeaderboardView{Entries: entries, ranks: ranks})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of readers (default leaderboard_limit)")
	return cmd
}
