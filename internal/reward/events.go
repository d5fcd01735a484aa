package reward

import (
	"sync"
	"time"
)

// Currency names which ledger an event belongs to.
type Currency string

const (
	CurrencyXP    Currency = "xp"
	CurrencyCoins Currency = "coins"
)

// DefaultRecentLimit is how many events the toast list keeps.
const DefaultRecentLimit = 5

// RewardEvent is a transient record of one applied grant, shown as a toast
// and never persisted.
type RewardEvent struct {
	ID        string   `json:"id"`
	Currency  Currency `json:"currency"`
	Amount    int      `json:"amount"`
	Reason    string   `json:"reason"`
	Timestamp int64    `json:"timestamp_ms"`
}

// RecentEvents is a bounded list, newest first. Pushing past the limit
// evicts the oldest entry.
//
// Thread-safety: all methods are safe for concurrent use.
type RecentEvents struct {
	mu     sync.Mutex
	limit  int
	events []RewardEvent
}

// NewRecentEvents creates a list holding at most limit events.
// Non-positive limits use DefaultRecentLimit.
func NewRecentEvents(limit int) *RecentEvents {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &RecentEvents{limit: limit}
}

// Push prepends e.
func (r *RecentEvents) Push(e RewardEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append([]RewardEvent{e}, r.events...)
	if len(r.events) > r.limit {
		r.events = r.events[:r.limit]
	}
}

// Dismiss removes the event with id. Reports whether it was present.
func (r *RecentEvents) Dismiss(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.events {
		if e.ID == id {
			r.events = append(r.events[:i], r.events[i+1:]...)
			return true
		}
	}
	return false
}

// List returns a copy, newest first.
func (r *RecentEvents) List() []RewardEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RewardEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of held events.
func (r *RecentEvents) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Clear drops all events.
func (r *RecentEvents) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// NewEvent builds an event stamped at now.
func NewEvent(id string, c Currency, amount int, reason string, now time.Time) RewardEvent {
	return RewardEvent{
		ID:        id,
		Currency:  c,
		Amount:    amount,
		Reason:    reason,
		Timestamp: now.UnixMilli(),
	}
}
