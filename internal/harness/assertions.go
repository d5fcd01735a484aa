package harness

import (
	"context"
	"fmt"
	"slices"
)

// evaluateAssertions checks every assertion against the final snapshot and
// the store. Failures are added to r.
func evaluateAssertions(ctx context.Context, h *Harness, s *Scenario, r *Result) {
	for i, a := range s.Assertions {
		if err := evaluate(ctx, h, s, r, a); err != nil {
			r.AddError(fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
}

func evaluate(ctx context.Context, h *Harness, s *Scenario, r *Result, a Assertion) error {
	led := r.Final.Ledger
	switch a.Type {
	case AssertBalance:
		return checkTotals(led.XP, led.Coins, a)

	case AssertProfile:
		if s.User == "" {
			return fmt.Errorf("guests have no profile")
		}
		p, err := h.store.GetProfile(ctx, s.User)
		if err != nil {
			return err
		}
		return checkTotals(p.XPPoints, p.Coins, a)

	case AssertClaim:
		return checkTotals(r.Claim.XP, r.Claim.Coins, a)

	case AssertRank:
		if string(led.Rank) != a.Label {
			return fmt.Errorf("rank = %q, want %q", led.Rank, a.Label)
		}

	case AssertPool:
		pool, err := h.store.CoinPool(ctx)
		if err != nil {
			return err
		}
		if pool.Remaining != *a.Remaining {
			return fmt.Errorf("remaining = %d, want %d", pool.Remaining, *a.Remaining)
		}

	case AssertPostsRead:
		got := led.PostsRead
		if s.User != "" {
			p, err := h.store.GetProfile(ctx, s.User)
			if err != nil {
				return err
			}
			got = p.PostsRead
		}
		if got != *a.Count {
			return fmt.Errorf("posts_read = %d, want %d", got, *a.Count)
		}

	case AssertSavedPosts:
		if !slices.Equal(led.SavedPosts, a.Posts) && (len(led.SavedPosts) != 0 || len(a.Posts) != 0) {
			return fmt.Errorf("saved_posts = %v, want %v", led.SavedPosts, a.Posts)
		}

	case AssertComments:
		if n := len(h.session.Comments(a.ContentID)); n != *a.Count {
			return fmt.Errorf("comments on %s = %d, want %d", a.ContentID, n, *a.Count)
		}

	case AssertTraceCount:
		if n := r.CountOp(a.Op); n != *a.Count {
			return fmt.Errorf("%s steps = %d, want %d", a.Op, n, *a.Count)
		}
	}
	return nil
}

func checkTotals(xp, coins int64, a Assertion) error {
	if a.XP != nil && xp != *a.XP {
		return fmt.Errorf("xp = %d, want %d", xp, *a.XP)
	}
	if a.Coins != nil && coins != *a.Coins {
		return fmt.Errorf("coins = %d, want %d", coins, *a.Coins)
	}
	return nil
}
