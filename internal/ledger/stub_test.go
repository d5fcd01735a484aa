package ledger

import (
	"context"
	"errors"
	"sync"

	"github.com/akinrinmade/jara-daily/internal/store"
)

// stubBackend is an in-memory Backend that enforces idempotency-key
// uniqueness and the pool floor.
type stubBackend struct {
	mu        sync.Mutex
	pool      store.CoinPool
	profile   store.Profile
	coinKeys  map[string]int
	xpKeys    map[string]int
	earnCalls int
	xpCalls   int

	earnErr  error
	xpErr    error
	poolErr  error
	profErr  error
	saveErr  error
	readErr  error
	zeroCoin bool

	// lostCoinAnswers and lostXPAnswers commit the next grants but
	// answer with errNetwork, as when the response is dropped.
	lostCoinAnswers int
	lostXPAnswers   int

	// onProfile runs after the profile is read and before it is returned.
	onProfile func()
}

func newStubBackend(userID string, remaining int64) *stubBackend {
	return &stubBackend{
		pool:     store.CoinPool{Remaining: remaining, TotalSupply: remaining},
		profile:  store.Profile{ID: userID, SavedPosts: []string{}},
		coinKeys: map[string]int{},
		xpKeys:   map[string]int{},
	}
}

func (b *stubBackend) EarnCoins(_ context.Context, req store.EarnRequest) (store.EarnResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.earnCalls++
	if b.earnErr != nil {
		return store.EarnResult{}, b.earnErr
	}
	if b.zeroCoin {
		return store.EarnResult{}, nil
	}
	if n, ok := b.coinKeys[req.IdempotencyKey]; ok {
		return store.EarnResult{Credited: n, Replayed: true}, nil
	}
	if b.pool.Remaining < int64(req.BaseReward) {
		return store.EarnResult{}, store.ErrPoolExhausted
	}
	b.pool.Remaining -= int64(req.BaseReward)
	b.profile.Coins += int64(req.BaseReward)
	b.coinKeys[req.IdempotencyKey] = req.BaseReward
	if b.lostCoinAnswers > 0 {
		b.lostCoinAnswers--
		return store.EarnResult{}, errNetwork
	}
	return store.EarnResult{Credited: req.BaseReward}, nil
}

func (b *stubBackend) AddXP(_ context.Context, req store.XPRequest) (store.XPResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.xpCalls++
	if b.xpErr != nil {
		return store.XPResult{}, b.xpErr
	}
	if n, ok := b.xpKeys[req.IdempotencyKey]; ok {
		return store.XPResult{Credited: n, Replayed: true, XPPoints: b.profile.XPPoints}, nil
	}
	b.xpKeys[req.IdempotencyKey] = req.Amount
	b.profile.XPPoints += int64(req.Amount)
	if b.lostXPAnswers > 0 {
		b.lostXPAnswers--
		return store.XPResult{}, errNetwork
	}
	return store.XPResult{Credited: req.Amount, XPPoints: b.profile.XPPoints}, nil
}

func (b *stubBackend) GetProfile(_ context.Context, userID string) (store.Profile, error) {
	b.mu.Lock()
	if b.profErr != nil {
		b.mu.Unlock()
		return store.Profile{}, b.profErr
	}
	if userID != b.profile.ID {
		b.mu.Unlock()
		return store.Profile{}, store.ErrProfileNotFound
	}
	p := b.profile
	p.SavedPosts = append([]string{}, b.profile.SavedPosts...)
	hook := b.onProfile
	b.mu.Unlock()

	if hook != nil {
		hook()
	}
	return p, nil
}

func (b *stubBackend) SetSavedPosts(_ context.Context, _ string, postIDs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.profile.SavedPosts = append([]string{}, postIDs...)
	return nil
}

func (b *stubBackend) IncrementPostsRead(_ context.Context, _ string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readErr != nil {
		return 0, b.readErr
	}
	b.profile.PostsRead++
	return b.profile.PostsRead, nil
}

func (b *stubBackend) CoinPool(context.Context) (store.CoinPool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.poolErr != nil {
		return store.CoinPool{}, b.poolErr
	}
	return b.pool, nil
}

var errNetwork = errors.New("network unreachable")
