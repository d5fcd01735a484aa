package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinrinmade/jara-daily/internal/metrics"
	"github.com/akinrinmade/jara-daily/internal/reward"
	"github.com/akinrinmade/jara-daily/internal/store"
	"github.com/akinrinmade/jara-daily/internal/testutil"
)

func decision(kind reward.ActionKind, contentID string) reward.Decision {
	return reward.Decision{Kind: kind, ContentID: contentID, Amount: reward.DefaultTable[kind]}
}

func newTestClient(t *testing.T, userID string, b Backend, opts ...Option) (*Client, *testutil.FakeClock) {
	t.Helper()
	clk := testutil.NewFakeClock(time.Time{})
	base := []Option{
		WithClock(clk),
		WithIDGenerator(reward.NewSequenceGenerator("evt")),
		WithInitialPool(store.CoinPool{Remaining: 1000, TotalSupply: 1000}),
	}
	c, err := New(userID, b, append(base, opts...)...)
	require.NoError(t, err)
	return c, clk
}

func TestNew_RequiresBackendForUser(t *testing.T) {
	_, err := New("u1", nil)
	assert.Error(t, err)

	c, err := New("", nil)
	require.NoError(t, err)
	assert.True(t, c.IsGuest())
}

func TestApplyGrant_Guest(t *testing.T) {
	c, _ := newTestClient(t, "", nil)
	ctx := context.Background()

	out, err := c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	require.NoError(t, err)
	assert.True(t, out.Guest)
	assert.Equal(t, 10, out.XP)
	assert.Equal(t, 5, out.Coins)

	// Publish base is 3 Coins; the clamp keeps it within [1,5].
	out, err = c.ApplyGrant(ctx, reward.Decision{Kind: reward.ActionPublish, Amount: reward.Amount{XP: 20, Coins: 50}})
	require.NoError(t, err)
	assert.Equal(t, 5, out.Coins)

	claim := c.Claim()
	assert.Equal(t, int64(30), claim.XP)
	assert.Equal(t, int64(10), claim.Coins)

	s := c.State()
	assert.Equal(t, int64(30), s.XP)
	assert.Equal(t, int64(10), s.Coins)
	assert.Len(t, s.RecentXP, 2)
	assert.Len(t, s.RecentCoins, 2)
	assert.Equal(t, int64(1000), s.Pool.Remaining, "guest grants never touch the pool")
}

func TestApplyGrant_GuestClampsZeroCoins(t *testing.T) {
	c, _ := newTestClient(t, "", nil)

	out, err := c.ApplyGrant(context.Background(), reward.Decision{Kind: reward.ActionRead, Amount: reward.Amount{XP: 10}})
	require.NoError(t, err)
	assert.Equal(t, 10, out.XP)
	assert.Equal(t, 1, out.Coins, "guest coins never fall below the minimum")
	assert.Equal(t, int64(1), c.Claim().Coins)
}

func TestApplyGrant_Authenticated(t *testing.T) {
	b := newStubBackend("u1", 100)
	c, _ := newTestClient(t, "u1", b)

	out, err := c.ApplyGrant(context.Background(), decision(reward.ActionRead, "p1"))
	require.NoError(t, err)
	assert.Equal(t, 10, out.XP)
	assert.Equal(t, 3, out.Coins)

	s := c.State()
	assert.Equal(t, int64(10), s.XP)
	assert.Equal(t, int64(3), s.Coins)
	assert.Equal(t, int64(997), s.Pool.Remaining)
	require.Len(t, s.RecentCoins, 1)
	assert.Equal(t, "Read a post", s.RecentCoins[0].Reason)
	assert.Equal(t, "evt-1", s.RecentXP[0].ID)
}

func TestApplyGrant_IdempotentRetry(t *testing.T) {
	b := newStubBackend("u1", 100)
	c, clk := newTestClient(t, "u1", b)
	ctx := context.Background()

	_, err := c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	require.NoError(t, err)

	clk.Advance(time.Minute)
	out, err := c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	require.NoError(t, err)
	assert.True(t, out.XPReplayed)
	assert.True(t, out.CoinsReplayed)
	assert.False(t, out.Credited())

	s := c.State()
	assert.Equal(t, int64(10), s.XP)
	assert.Equal(t, int64(5), s.Coins)
	assert.Equal(t, int64(5), b.profile.Coins, "backend credited once")
	assert.Equal(t, 2, b.earnCalls)
	assert.Len(t, s.RecentCoins, 1)
}

func TestApplyGrant_RetryAfterLostAnswerCreditsOnce(t *testing.T) {
	b := newStubBackend("u1", 100)
	b.lostCoinAnswers = 1
	c, _ := newTestClient(t, "u1", b)
	ctx := context.Background()

	out, err := c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	var ge *GrantError
	require.ErrorAs(t, err, &ge)
	assert.ErrorIs(t, ge.CoinErr, errNetwork)
	assert.Equal(t, 10, out.XP)
	assert.Equal(t, 0, out.Coins)
	assert.Equal(t, int64(0), c.State().Coins)
	assert.Equal(t, int64(5), b.profile.Coins, "backend committed the grant")

	out, err = c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	require.NoError(t, err)
	assert.True(t, out.CoinsReplayed)
	assert.Equal(t, 5, out.Coins)
	assert.True(t, out.XPReplayed)
	assert.Equal(t, 0, out.XP)

	out, err = c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	require.NoError(t, err)
	assert.False(t, out.Credited())

	s := c.State()
	assert.Equal(t, int64(10), s.XP)
	assert.Equal(t, int64(5), s.Coins)
	assert.Equal(t, int64(995), s.Pool.Remaining)
	assert.Len(t, s.RecentCoins, 1)
}

func TestApplyGrant_LostAnswerSettledByRefresh(t *testing.T) {
	b := newStubBackend("u1", 100)
	b.lostXPAnswers = 1
	c, _ := newTestClient(t, "u1", b)
	ctx := context.Background()

	_, err := c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	require.Error(t, err)
	assert.Equal(t, int64(0), c.State().XP)

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, int64(10), c.State().XP)

	out, err := c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	require.NoError(t, err)
	assert.True(t, out.XPReplayed)
	assert.False(t, out.Credited())
	assert.Equal(t, int64(10), c.State().XP, "refresh already counted it")
}

func TestApplyGrant_NewBucketIsNewKey(t *testing.T) {
	b := newStubBackend("u1", 100)
	c, clk := newTestClient(t, "u1", b)
	ctx := context.Background()

	_, err := c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	require.NoError(t, err)
	clk.Advance(11 * time.Minute)
	out, err := c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	require.NoError(t, err)
	assert.Equal(t, 5, out.Coins)
}

func TestApplyGrant_PoolExhaustedKeepsXP(t *testing.T) {
	b := newStubBackend("u1", 2)
	reg := prometheus.NewRegistry()
	c, _ := newTestClient(t, "u1", b, WithMetrics(metrics.New(reg)))

	out, err := c.ApplyGrant(context.Background(), decision(reward.ActionRead, "p1"))
	require.Error(t, err)
	assert.True(t, IsPoolExhausted(err))

	ge, ok := AsGrantError(err)
	require.True(t, ok)
	assert.NoError(t, ge.XPErr)
	assert.Error(t, ge.CoinErr)
	assert.Equal(t, 10, ge.Outcome.XP)

	assert.Equal(t, 10, out.XP)
	assert.Equal(t, 0, out.Coins)

	s := c.State()
	assert.Equal(t, int64(10), s.XP)
	assert.Equal(t, int64(0), s.Coins)
	assert.Equal(t, int64(1000), s.Pool.Remaining, "mirror untouched without an ack")
	assert.Len(t, s.RecentXP, 1)
	assert.Empty(t, s.RecentCoins)
}

func TestApplyGrant_XPFailureKeepsCoins(t *testing.T) {
	b := newStubBackend("u1", 100)
	b.xpErr = errNetwork
	c, _ := newTestClient(t, "u1", b)

	out, err := c.ApplyGrant(context.Background(), decision(reward.ActionComment, "p1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNetwork))
	assert.False(t, IsPoolExhausted(err))
	assert.Equal(t, 0, out.XP)
	assert.Equal(t, 4, out.Coins)

	s := c.State()
	assert.Equal(t, int64(0), s.XP)
	assert.Equal(t, int64(4), s.Coins)
}

func TestApplyGrant_EmptyCreditIsFailure(t *testing.T) {
	b := newStubBackend("u1", 100)
	b.zeroCoin = true
	c, _ := newTestClient(t, "u1", b)

	_, err := c.ApplyGrant(context.Background(), decision(reward.ActionShare, "p1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCredit))
	assert.Equal(t, int64(0), c.State().Coins)
}

func TestApplyGrant_ZeroAmountIsNoop(t *testing.T) {
	b := newStubBackend("u1", 100)
	c, _ := newTestClient(t, "u1", b)

	out, err := c.ApplyGrant(context.Background(), reward.Decision{Kind: reward.ActionRead})
	require.NoError(t, err)
	assert.False(t, out.Credited())
	assert.Zero(t, b.earnCalls+b.xpCalls)
}

func TestApplyGrant_AfterClose(t *testing.T) {
	c, _ := newTestClient(t, "", nil)
	_, err := c.ApplyGrant(context.Background(), decision(reward.ActionRead, "p1"))
	require.NoError(t, err)

	c.Close()
	c.Close()

	_, err = c.ApplyGrant(context.Background(), decision(reward.ActionRead, "p1"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, c.Claim().XP, "shadow wallet discarded at sign-out")
}

func TestSpendCoins(t *testing.T) {
	b := newStubBackend("u1", 100)
	c, _ := newTestClient(t, "u1", b)
	ctx := context.Background()

	_, err := c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
	require.NoError(t, err)

	err = c.SpendCoins(6, "boost")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, int64(5), c.State().Coins)

	require.NoError(t, c.SpendCoins(5, "boost"))
	assert.Equal(t, int64(0), c.State().Coins)

	assert.ErrorIs(t, c.SpendCoins(0, "nothing"), ErrInvalidAmount)
}

func TestSpendCoins_Guest(t *testing.T) {
	c, _ := newTestClient(t, "", nil)
	assert.ErrorIs(t, c.SpendCoins(1, "tip"), ErrInsufficientBalance)

	_, err := c.ApplyGrant(context.Background(), decision(reward.ActionReaction, "p1"))
	require.NoError(t, err)
	require.NoError(t, c.SpendCoins(2, "tip"))
	assert.Equal(t, int64(0), c.State().Coins)
}

func TestRefresh(t *testing.T) {
	b := newStubBackend("u1", 500)
	b.profile.XPPoints = 150
	b.profile.Coins = 7
	b.profile.PostsRead = 4
	b.profile.SavedPosts = []string{"p9"}
	c, _ := newTestClient(t, "u1", b)

	require.NoError(t, c.Refresh(context.Background()))

	s := c.State()
	assert.Equal(t, int64(150), s.XP)
	assert.Equal(t, int64(7), s.Coins)
	assert.Equal(t, 4, s.PostsRead)
	assert.Equal(t, []string{"p9"}, s.SavedPosts)
	assert.Equal(t, "Learner", string(s.Rank))
	assert.Equal(t, int64(500), s.NextRankAt)
	assert.Equal(t, int64(500), s.Pool.Remaining)
}

func TestRefresh_RacingGrantKeepsLocalCredit(t *testing.T) {
	b := newStubBackend("u1", 100)
	c, _ := newTestClient(t, "u1", b)
	ctx := context.Background()

	b.onProfile = func() {
		b.onProfile = nil
		_, err := c.ApplyGrant(ctx, decision(reward.ActionShare, "p1"))
		assert.NoError(t, err)
	}
	require.NoError(t, c.Refresh(ctx))

	s := c.State()
	assert.Equal(t, int64(10), s.XP, "stale profile must not erase the credit")
	assert.Equal(t, int64(5), s.Coins)

	require.NoError(t, c.Refresh(ctx))
	s = c.State()
	assert.Equal(t, int64(10), s.XP)
	assert.Equal(t, int64(5), s.Coins)
}

func TestRefresh_PartialFailureKeepsPrevious(t *testing.T) {
	b := newStubBackend("u1", 500)
	b.profile.Coins = 7
	b.poolErr = errNetwork
	c, _ := newTestClient(t, "u1", b)

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, errNetwork)

	s := c.State()
	assert.Equal(t, int64(7), s.Coins)
	assert.Equal(t, int64(1000), s.Pool.Remaining)
}

func TestToggleSave(t *testing.T) {
	b := newStubBackend("u1", 0)
	c, _ := newTestClient(t, "u1", b)
	ctx := context.Background()

	saved, err := c.ToggleSave(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, saved)
	saved, err = c.ToggleSave(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, []string{"p1", "p2"}, b.profile.SavedPosts)

	saved, err = c.ToggleSave(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, []string{"p2"}, c.State().SavedPosts)
	assert.Equal(t, []string{"p2"}, b.profile.SavedPosts)
}

func TestToggleSave_RemoteFailureLeavesLocal(t *testing.T) {
	b := newStubBackend("u1", 0)
	b.saveErr = errNetwork
	c, _ := newTestClient(t, "u1", b)

	_, err := c.ToggleSave(context.Background(), "p1")
	assert.ErrorIs(t, err, errNetwork)
	assert.Empty(t, c.State().SavedPosts)
}

func TestMarkRead(t *testing.T) {
	b := newStubBackend("u1", 0)
	c, _ := newTestClient(t, "u1", b)
	ctx := context.Background()

	n, err := c.MarkRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	b.readErr = errNetwork
	_, err = c.MarkRead(ctx)
	assert.ErrorIs(t, err, errNetwork)
	assert.Equal(t, 1, c.State().PostsRead)

	g, _ := newTestClient(t, "", nil)
	n, err = g.MarkRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDismissEvent(t *testing.T) {
	c, _ := newTestClient(t, "", nil)
	_, err := c.ApplyGrant(context.Background(), decision(reward.ActionRead, "p1"))
	require.NoError(t, err)

	s := c.State()
	require.Len(t, s.RecentXP, 1)
	require.Len(t, s.RecentCoins, 1)

	assert.True(t, c.DismissEvent(s.RecentCoins[0].ID))
	assert.True(t, c.DismissEvent(s.RecentXP[0].ID))
	assert.False(t, c.DismissEvent("missing"))
	assert.Empty(t, c.State().RecentXP)
}

func TestClient_WithSQLiteStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.EnsurePool(ctx, 4))
	require.NoError(t, st.EnsureProfile(ctx, "u1", "ada"))

	c, _ := newTestClient(t, "u1", st)
	require.NoError(t, c.Refresh(ctx))

	_, err = c.ApplyGrant(ctx, decision(reward.ActionRead, "p1"))
	require.NoError(t, err)

	// Second read: 3 Coins requested, 1 left.
	out, err := c.ApplyGrant(ctx, decision(reward.ActionRead, "p2"))
	require.Error(t, err)
	assert.True(t, IsPoolExhausted(err))
	assert.Equal(t, 10, out.XP)

	p, err := st.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), p.XPPoints)
	assert.Equal(t, int64(3), p.Coins)

	s := c.State()
	assert.Equal(t, int64(20), s.XP)
	assert.Equal(t, int64(3), s.Coins)
	assert.Equal(t, int64(1), s.Pool.Remaining)
}
