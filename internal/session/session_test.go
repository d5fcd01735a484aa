package session

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/akinrinmade/jara-daily/internal/engagement"
	"github.com/akinrinmade/jara-daily/internal/ledger"
	"github.com/akinrinmade/jara-daily/internal/reward"
	"github.com/akinrinmade/jara-daily/internal/store"
	"github.com/akinrinmade/jara-daily/internal/testutil"
)

type fixture struct {
	session *Session
	store   *store.Store
	clock   *testutil.FakeClock
}

// newFixture builds a session for userID ("" for guest) over a fresh
// SQLite store holding supply Coins.
func newFixture(t *testing.T, userID string, supply int64, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsurePool(ctx, supply))

	clk := testutil.NewFakeClock(time.Time{})
	var backend ledger.Backend
	if userID != "" {
		require.NoError(t, st.EnsureProfile(ctx, userID, userID))
		backend = st
	}
	l, err := ledger.New(userID, backend,
		ledger.WithClock(clk),
		ledger.WithIDGenerator(reward.NewSequenceGenerator("evt")),
	)
	require.NoError(t, err)

	base := []Option{
		WithClock(clk),
		WithIDGenerator(reward.NewSequenceGenerator("id")),
		WithManualTicks(),
	}
	s := New(l, append(base, opts...)...)
	t.Cleanup(s.Close)
	if userID != "" {
		require.NoError(t, s.Refresh(ctx))
	}
	return &fixture{session: s, store: st, clock: clk}
}

var tenMinuteRead = engagement.Content{ID: "post-1", ReadTime: 10 * time.Minute}

func TestSession_ReadVerification(t *testing.T) {
	f := newFixture(t, "u1", 100)
	ctx := context.Background()

	require.NoError(t, f.session.OpenContent(tenMinuteRead))
	_, err := f.session.Scroll(0.85)
	require.NoError(t, err)

	f.clock.Advance(239 * time.Second)
	_, ok, err := f.session.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "239s is below the required dwell")

	f.clock.Advance(time.Second)
	res, ok, err := f.session.Tick(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, res.Outcome.XP)
	assert.Equal(t, 3, res.Outcome.Coins)

	_, ok, err = f.session.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "verification fires once")

	snap := f.session.Snapshot()
	require.NotNil(t, snap.Content)
	assert.True(t, snap.Content.ReadRewarded)
	assert.Equal(t, 1, snap.Ledger.PostsRead)

	p, err := f.store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.PostsRead)
	assert.Equal(t, int64(3), p.Coins)
}

func TestSession_ShallowScrollNeverVerifies(t *testing.T) {
	f := newFixture(t, "u1", 100)
	require.NoError(t, f.session.OpenContent(tenMinuteRead))
	_, err := f.session.Scroll(0.8)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, ok, err := f.session.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_PremiumBlur(t *testing.T) {
	f := newFixture(t, "", 0)
	require.NoError(t, f.session.OpenContent(engagement.Content{ID: "vip", Premium: true}))

	blurred, err := f.session.Scroll(0.5)
	require.NoError(t, err)
	assert.False(t, blurred)
	blurred, err = f.session.Scroll(0.51)
	require.NoError(t, err)
	assert.True(t, blurred)
}

func TestSession_ReactionOneShot(t *testing.T) {
	f := newFixture(t, "u1", 100)
	ctx := context.Background()
	require.NoError(t, f.session.OpenContent(tenMinuteRead))

	grants := 0
	for _, emoji := range []string{"🔥", "❤️", "🔥"} {
		res, err := f.session.React(ctx, emoji)
		require.NoError(t, err)
		if res.Outcome.Credited() {
			grants++
		}
	}
	assert.Equal(t, 1, grants)
	assert.Equal(t, "🔥", f.session.Snapshot().Content.Reaction)

	// Reopening the item starts a fresh view with a fresh latch; the
	// time bucket still dedupes the grant remotely.
	require.NoError(t, f.session.OpenContent(tenMinuteRead))
	res, err := f.session.React(ctx, "👏")
	require.NoError(t, err)
	assert.True(t, res.Outcome.CoinsReplayed)
	assert.False(t, res.Outcome.Credited())
}

func TestSession_ReactRequiresContent(t *testing.T) {
	f := newFixture(t, "", 0)
	_, err := f.session.React(context.Background(), "🔥")
	assert.ErrorIs(t, err, ErrNoContent)

	require.NoError(t, f.session.OpenContent(tenMinuteRead))
	_, err = f.session.React(context.Background(), "🤖")
	assert.Error(t, err)
}

func TestSession_Comment(t *testing.T) {
	f := newFixture(t, "u1", 100)
	ctx := context.Background()

	_, _, err := f.session.Comment(ctx, "post-1", "   ")
	assert.ErrorIs(t, err, ErrEmptyComment)

	short := strings.Repeat("a", 19)
	c, res, err := f.session.Comment(ctx, "post-1", short)
	require.NoError(t, err)
	assert.True(t, res.Rejected())
	assert.False(t, c.Rewarded)

	long := strings.Repeat("b", 20)
	c, res, err = f.session.Comment(ctx, "post-1", long)
	require.NoError(t, err)
	assert.False(t, res.Rejected())
	assert.True(t, c.Rewarded)
	assert.Equal(t, 10, res.Outcome.XP)
	assert.Equal(t, 4, res.Outcome.Coins)

	comments := f.session.Comments("post-1")
	require.Len(t, comments, 2)
	assert.Equal(t, long, comments[0].Text, "newest first")
	assert.Equal(t, "u1", comments[0].AuthorID)
}

func TestSession_Publish(t *testing.T) {
	f := newFixture(t, "u1", 100)
	ctx := context.Background()

	_, res, err := f.session.Publish(ctx, Draft{Title: "t", Body: "body"})
	require.NoError(t, err)
	assert.Equal(t, reward.MsgMissingFields, res.Message)

	_, res, err = f.session.Publish(ctx, Draft{Title: "t", Category: "tech", Body: "<p>" + strings.Repeat("x", 149) + "</p>"})
	require.NoError(t, err)
	assert.Equal(t, reward.MsgPostTooShort, res.Message)
	assert.Empty(t, f.session.Posts())

	post, res, err := f.session.Publish(ctx, Draft{Title: "t", Category: "tech", Body: strings.Repeat("x", 150)})
	require.NoError(t, err)
	assert.False(t, res.Rejected())
	assert.Equal(t, "id-1", post.ID)
	assert.Equal(t, post.ID, res.ContentID)
	assert.Equal(t, 20, res.Outcome.XP)
	assert.Equal(t, 3, res.Outcome.Coins)
	assert.Len(t, f.session.Posts(), 1)
}

func TestSession_PoolExhaustionKeepsXP(t *testing.T) {
	f := newFixture(t, "u1", 2)

	res, err := f.session.Share(context.Background(), "post-1")
	require.Error(t, err)
	assert.True(t, ledger.IsPoolExhausted(err))
	assert.Equal(t, 10, res.Outcome.XP)
	assert.Equal(t, 0, res.Outcome.Coins)

	snap := f.session.Snapshot()
	assert.Equal(t, int64(10), snap.Ledger.XP)
	assert.Equal(t, int64(0), snap.Ledger.Coins)
}

func TestSession_GuestClaimPrompt(t *testing.T) {
	f := newFixture(t, "", 0)
	ctx := context.Background()

	_, show := f.session.ClaimPrompt()
	assert.False(t, show)

	_, err := f.session.Share(ctx, "post-1")
	require.NoError(t, err)

	claim, show := f.session.ClaimPrompt()
	assert.True(t, show)
	assert.Equal(t, int64(10), claim.XP)
	assert.Equal(t, int64(5), claim.Coins)

	require.NoError(t, f.session.Spend(5, "boost"))
	assert.ErrorIs(t, f.session.Spend(1, "boost"), ledger.ErrInsufficientBalance)
}

func TestSession_ToggleSave(t *testing.T) {
	f := newFixture(t, "u1", 0)
	ctx := context.Background()

	saved, err := f.session.ToggleSave(ctx, "post-9")
	require.NoError(t, err)
	assert.True(t, saved)

	p, err := f.store.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"post-9"}, p.SavedPosts)
}

func TestSession_Close(t *testing.T) {
	f := newFixture(t, "", 0)
	ctx := context.Background()
	require.NoError(t, f.session.OpenContent(tenMinuteRead))

	f.session.Close()
	f.session.Close()

	assert.ErrorIs(t, f.session.OpenContent(tenMinuteRead), ErrClosed)
	_, err := f.session.Share(ctx, "post-1")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Nil(t, f.session.Snapshot().Content)
}

func TestSession_BackgroundTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	granted := make(chan Result, 1)
	params := engagement.DefaultParams()
	params.TickInterval = time.Millisecond

	f := newFixture(t, "", 0, WithEngagementParams(params), WithGrantHook(func(r Result) { granted <- r }))
	f.session.manual = false

	require.NoError(t, f.session.OpenContent(tenMinuteRead))
	_, err := f.session.Scroll(0.9)
	require.NoError(t, err)
	f.clock.Advance(240 * time.Second)

	select {
	case r := <-granted:
		assert.Equal(t, reward.ActionRead, r.Kind)
		assert.Equal(t, "post-1", r.ContentID)
	case <-time.After(5 * time.Second):
		t.Fatal("read was not verified in the background")
	}

	f.session.Close()
	f.store.Close()
}

func TestSession_SwitchingContentStopsOldTick(t *testing.T) {
	defer goleak.VerifyNone(t)

	granted := make(chan Result, 4)
	params := engagement.DefaultParams()
	params.TickInterval = time.Millisecond

	f := newFixture(t, "", 0, WithEngagementParams(params), WithGrantHook(func(r Result) { granted <- r }))
	f.session.manual = false

	require.NoError(t, f.session.OpenContent(tenMinuteRead))
	_, err := f.session.Scroll(0.9)
	require.NoError(t, err)

	// Switch before the dwell elapses; the first view must never fire.
	require.NoError(t, f.session.OpenContent(engagement.Content{ID: "post-2", ReadTime: time.Minute}))
	f.clock.Advance(time.Hour)

	select {
	case r := <-granted:
		t.Fatalf("unexpected grant %+v", r)
	case <-time.After(50 * time.Millisecond):
	}

	f.session.CloseContent()
	f.session.Close()
	f.store.Close()
}

// slowEarnBackend holds every Coin grant until release is closed.
type slowEarnBackend struct {
	*store.Store
	entered chan struct{}
	release chan struct{}
}

func (b *slowEarnBackend) EarnCoins(ctx context.Context, req store.EarnRequest) (store.EarnResult, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.Store.EarnCoins(ctx, req)
}

func TestSession_LateReadGrantLandsWithoutTouchingNewView(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "late.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.EnsurePool(ctx, 100))
	require.NoError(t, st.EnsureProfile(ctx, "u1", "u1"))

	backend := &slowEarnBackend{Store: st, entered: make(chan struct{}), release: make(chan struct{})}
	clk := testutil.NewFakeClock(time.Time{})
	l, err := ledger.New("u1", backend, ledger.WithClock(clk))
	require.NoError(t, err)
	s := New(l, WithClock(clk), WithManualTicks())
	t.Cleanup(s.Close)
	require.NoError(t, s.Refresh(ctx))

	require.NoError(t, s.OpenContent(tenMinuteRead))
	_, err = s.Scroll(0.9)
	require.NoError(t, err)
	clk.Advance(240 * time.Second)

	type tickResult struct {
		res Result
		ok  bool
		err error
	}
	done := make(chan tickResult, 1)
	go func() {
		res, ok, err := s.Tick(ctx)
		done <- tickResult{res, ok, err}
	}()

	<-backend.entered
	require.NoError(t, s.OpenContent(engagement.Content{ID: "post-2", ReadTime: 10 * time.Minute}))
	close(backend.release)

	got := <-done
	require.NoError(t, got.err)
	require.True(t, got.ok)
	assert.Equal(t, "post-1", got.res.ContentID)
	assert.Equal(t, 3, got.res.Outcome.Coins)

	snap := s.Snapshot()
	assert.Equal(t, int64(10), snap.Ledger.XP)
	assert.Equal(t, int64(3), snap.Ledger.Coins, "grant lands on the balance")
	require.NotNil(t, snap.Content)
	assert.Equal(t, "post-2", snap.Content.ContentID)
	assert.False(t, snap.Content.ReadRewarded, "new view is not marked rewarded")
	assert.False(t, snap.Content.RewardClaimed)

	_, ok, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "new view starts unverified")
}
