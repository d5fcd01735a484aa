// Package guest holds the shadow wallet for unauthenticated sessions.
//
// Nothing here is ever written remotely. The totals exist only to show a
// guest what they would have earned, as a prompt to sign up. After sign-up
// the remote profile is the source of truth and these totals are dropped,
// never added to it.
package guest

import "sync"

// Default clamp bounds for a single guest Coin grant.
const (
	DefaultMinCoins = 1
	DefaultMaxCoins = 5
)

// Claim is what the sign-up prompt shows.
type Claim struct {
	XP    int64 `json:"xp"`
	Coins int64 `json:"coins"`
}

// Ledger accumulates shadow XP and Coins.
//
// Thread-safety: all methods are safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	minCoins int
	maxCoins int
	xp       int64
	coins    int64
}

// New creates a ledger clamping each Coin grant into [minCoins, maxCoins].
// Invalid bounds fall back to the defaults.
func New(minCoins, maxCoins int) *Ledger {
	if minCoins < 0 || maxCoins < minCoins || maxCoins == 0 {
		minCoins, maxCoins = DefaultMinCoins, DefaultMaxCoins
	}
	return &Ledger{minCoins: minCoins, maxCoins: maxCoins}
}

// NewDefault creates a ledger with the [1, 5] clamp.
func NewDefault() *Ledger {
	return New(DefaultMinCoins, DefaultMaxCoins)
}

// Clamp returns amount forced into the ledger's bounds.
func (l *Ledger) Clamp(amount int) int {
	return max(l.minCoins, min(l.maxCoins, amount))
}

// Grant credits a Coin reward and returns the credited amount.
//
// The amount is clamped, not just capped: 0 becomes 1 and 50 becomes 5
// with the default bounds.
func (l *Ledger) Grant(amount int) int {
	credited := l.Clamp(amount)
	l.mu.Lock()
	l.coins += int64(credited)
	l.mu.Unlock()
	return credited
}

// AddXP accrues shadow XP. Non-positive amounts are ignored.
func (l *Ledger) AddXP(amount int) int {
	if amount <= 0 {
		return 0
	}
	l.mu.Lock()
	l.xp += int64(amount)
	l.mu.Unlock()
	return amount
}

// Spend debits shadow Coins. Returns false without debiting when the
// balance is short.
func (l *Ledger) Spend(amount int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount <= 0 || int64(amount) > l.coins {
		return false
	}
	l.coins -= int64(amount)
	return true
}

// Totals returns the current shadow totals.
func (l *Ledger) Totals() Claim {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Claim{XP: l.xp, Coins: l.coins}
}

// Reset discards all shadow totals.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.xp = 0
	l.coins = 0
}
