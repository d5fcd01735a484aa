package store

import "errors"

// Sentinel errors returned by grant and profile operations.
var (
	// ErrPoolExhausted is returned when a Coin grant would drive the pool
	// below zero. Nothing is credited.
	ErrPoolExhausted = errors.New("coin pool exhausted")

	// ErrProfileNotFound is returned for an unknown user id.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrPoolNotInitialized is returned before EnsurePool has run.
	ErrPoolNotInitialized = errors.New("coin pool not initialized")

	// ErrInvalidGrant is returned for malformed grant requests.
	ErrInvalidGrant = errors.New("invalid grant request")
)

// Profile is the durable per-user reward record.
type Profile struct {
	ID          string   `json:"id"`
	Username    string   `json:"username"`
	XPPoints    int64    `json:"xp_points"`
	Coins       int64    `json:"coins"`
	StreakDays  int      `json:"streak_days"`
	PostsRead   int      `json:"posts_read"`
	SavedPosts  []string `json:"saved_posts"`
	CurrentRank string   `json:"current_rank"`
}

// CoinPool is the global Coin supply.
type CoinPool struct {
	Remaining   int64 `json:"remaining"`
	TotalSupply int64 `json:"total_supply"`
}

// EarnRequest asks for a Coin grant against the pool.
type EarnRequest struct {
	UserID         string `json:"user_id"`
	SourceType     string `json:"source_type"`
	BaseReward     int    `json:"base_reward"`
	ContentID      string `json:"content_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
}

// EarnResult reports a Coin grant. Replayed is true when the key had
// already been applied; Credited then repeats the original amount and no
// new Coins moved.
type EarnResult struct {
	Credited int  `json:"credited"`
	Replayed bool `json:"replayed"`
}

// XPRequest asks for an XP grant. SourceType names the action the XP is
// for; the API caps Amount by it.
type XPRequest struct {
	UserID         string `json:"user_id"`
	SourceType     string `json:"source_type,omitempty"`
	Amount         int    `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// XPResult reports an XP grant and the profile totals after it.
type XPResult struct {
	Credited    int    `json:"credited"`
	Replayed    bool   `json:"replayed"`
	XPPoints    int64  `json:"xp_points"`
	CurrentRank string `json:"current_rank"`
}

// LeaderboardEntry is one row of the XP leaderboard.
type LeaderboardEntry struct {
	Position int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	XPPoints int64  `json:"xp_points"`
}

// validSources are the source types earn_coins accepts.
var validSources = map[string]bool{
	"read":    true,
	"like":    true,
	"share":   true,
	"comment": true,
	"post":    true,
}
