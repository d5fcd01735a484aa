package ledger

import (
	"context"

	"github.com/akinrinmade/jara-daily/internal/store"
)

// Backend is the durable reward store. *store.Store satisfies it in
// process; remote.Client satisfies it over HTTP.
type Backend interface {
	EarnCoins(ctx context.Context, req store.EarnRequest) (store.EarnResult, error)
	AddXP(ctx context.Context, req store.XPRequest) (store.XPResult, error)
	GetProfile(ctx context.Context, userID string) (store.Profile, error)
	SetSavedPosts(ctx context.Context, userID string, postIDs []string) error
	IncrementPostsRead(ctx context.Context, userID string) (int, error)
	CoinPool(ctx context.Context) (store.CoinPool, error)
}

var _ Backend = (*store.Store)(nil)
