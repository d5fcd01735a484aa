package ledger

import (
	"github.com/akinrinmade/jara-daily/internal/rank"
	"github.com/akinrinmade/jara-daily/internal/reward"
	"github.com/akinrinmade/jara-daily/internal/store"
)

// Outcome is what a grant actually credited to the local balances.
type Outcome struct {
	Kind      reward.ActionKind `json:"kind"`
	ContentID string            `json:"content_id,omitempty"`
	Guest     bool              `json:"guest"`
	XP        int               `json:"xp"`
	Coins     int               `json:"coins"`

	// Replayed is set per currency when the backend had already applied
	// the key. A replay credits nothing locally unless this client sent
	// the key earlier and never received the answer.
	XPReplayed    bool `json:"xp_replayed,omitempty"`
	CoinsReplayed bool `json:"coins_replayed,omitempty"`
}

// Credited reports whether any currency moved.
func (o Outcome) Credited() bool {
	return o.XP > 0 || o.Coins > 0
}

// State is a point-in-time copy of the client's view.
type State struct {
	UserID     string    `json:"user_id,omitempty"`
	Guest      bool      `json:"guest"`
	XP         int64     `json:"xp_points"`
	Coins      int64     `json:"coins"`
	Rank       rank.Rank `json:"current_rank"`
	NextRankAt int64     `json:"next_rank_at"`
	Progress   int       `json:"progress"`
	StreakDays int       `json:"streak_days"`
	PostsRead  int       `json:"posts_read"`
	SavedPosts []string  `json:"saved_posts"`

	Pool store.CoinPool `json:"coin_pool"`

	RecentXP    []reward.RewardEvent `json:"recent_xp_events"`
	RecentCoins []reward.RewardEvent `json:"recent_coin_events"`
}

// userState is the mutable per-user record behind State.
type userState struct {
	xp         int64
	coins      int64
	streakDays int
	postsRead  int
	savedPosts []string
}

func (u *userState) isSaved(postID string) bool {
	for _, id := range u.savedPosts {
		if id == postID {
			return true
		}
	}
	return false
}

// toggled returns the saved list with postID flipped. Appends on save,
// preserving existing order.
func (u *userState) toggled(postID string) ([]string, bool) {
	if u.isSaved(postID) {
		out := make([]string, 0, len(u.savedPosts)-1)
		for _, id := range u.savedPosts {
			if id != postID {
				out = append(out, id)
			}
		}
		return out, false
	}
	out := make([]string, len(u.savedPosts), len(u.savedPosts)+1)
	copy(out, u.savedPosts)
	return append(out, postID), true
}
