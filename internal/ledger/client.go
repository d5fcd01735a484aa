package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/akinrinmade/jara-daily/internal/clock"
	"github.com/akinrinmade/jara-daily/internal/guest"
	"github.com/akinrinmade/jara-daily/internal/idem"
	"github.com/akinrinmade/jara-daily/internal/metrics"
	"github.com/akinrinmade/jara-daily/internal/rank"
	"github.com/akinrinmade/jara-daily/internal/reward"
	"github.com/akinrinmade/jara-daily/internal/store"
)

// Client is the reward ledger for one identity.
//
// Thread-safety: all methods are safe for concurrent use. Backend calls
// are made without holding the state lock.
type Client struct {
	userID  string
	backend Backend

	guest   *guest.Ledger
	ranks   *rank.Table
	clock   clock.Clock
	ids     reward.IDGenerator
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	closed bool
	user   userState
	pool   store.CoinPool

	// unacked holds keys whose backend call failed without an answer.
	// A later replay of one of them is credited locally.
	unacked map[string]struct{}
	// credits counts local credits; Refresh uses it to detect grants
	// applied while its reads were in flight.
	credits uint64

	// saveMu serializes saved-post read-modify-write cycles.
	saveMu sync.Mutex

	xpEvents   *reward.RecentEvents
	coinEvents *reward.RecentEvents
}

// Option configures a Client.
type Option func(*Client)

// WithGuestLedger sets the shadow wallet used for guests.
func WithGuestLedger(l *guest.Ledger) Option {
	return func(c *Client) {
		if l != nil {
			c.guest = l
		}
	}
}

// WithRankTable sets the rank ladder.
func WithRankTable(t *rank.Table) Option {
	return func(c *Client) {
		if t != nil {
			c.ranks = t
		}
	}
}

// WithClock sets the clock used for event timestamps and key buckets.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithIDGenerator sets the event id generator.
func WithIDGenerator(g reward.IDGenerator) Option {
	return func(c *Client) {
		if g != nil {
			c.ids = g
		}
	}
}

// WithIdempotencyWindow sets the coarse time bucket for idempotency keys.
func WithIdempotencyWindow(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithRecentLimit sets how many events each recent list keeps.
func WithRecentLimit(n int) Option {
	return func(c *Client) {
		c.xpEvents = reward.NewRecentEvents(n)
		c.coinEvents = reward.NewRecentEvents(n)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithInitialPool seeds the local pool mirror before the first Refresh.
func WithInitialPool(p store.CoinPool) Option {
	return func(c *Client) {
		c.pool = p
	}
}

// New creates a client for userID. An empty userID is the guest; a
// signed-in user requires a backend.
func New(userID string, backend Backend, opts ...Option) (*Client, error) {
	if userID != "" && backend == nil {
		return nil, fmt.Errorf("ledger client for %q: backend is required", userID)
	}
	c := &Client{
		userID:     userID,
		backend:    backend,
		guest:      guest.NewDefault(),
		ranks:      rank.Default(),
		clock:      clock.System{},
		ids:        reward.UUIDv7Generator{},
		window:     idem.DefaultWindow,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		xpEvents:   reward.NewRecentEvents(reward.DefaultRecentLimit),
		coinEvents: reward.NewRecentEvents(reward.DefaultRecentLimit),
		user:       userState{savedPosts: []string{}},
		unacked:    map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("user", c.identityLabel())
	return c, nil
}

// UserID returns the signed-in user id, or "" for the guest.
func (c *Client) UserID() string {
	return c.userID
}

// IsGuest reports whether the client is the guest branch.
func (c *Client) IsGuest() bool {
	return c.userID == ""
}

func (c *Client) identityLabel() string {
	if c.IsGuest() {
		return "guest"
	}
	return c.userID
}

// ApplyGrant credits an accepted decision.
//
// Guests are credited locally: XP in full, Coins clamped by the shadow
// wallet whatever the policy amount, zero included. Signed-in users get one backend call per non-zero currency, and
// each currency is credited locally only after the backend acknowledges
// it. A partial failure returns the Outcome together with a *GrantError.
func (c *Client) ApplyGrant(ctx context.Context, d reward.Decision) (Outcome, error) {
	out := Outcome{Kind: d.Kind, ContentID: d.ContentID, Guest: c.IsGuest()}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return out, ErrClosed
	}
	if d.Amount.IsZero() {
		return out, nil
	}

	reason := d.Reason
	if reason == "" {
		reason = d.Kind.Reason()
	}

	if c.IsGuest() {
		out.XP = c.guest.AddXP(d.XP)
		out.Coins = c.guest.Grant(d.Coins)
		c.recordEvents(out, reason)
		return out, nil
	}

	parts := idem.Parts{
		UserID:    c.userID,
		Source:    string(d.Kind),
		ContentID: d.ContentID,
		Bucket:    idem.Bucket(c.clock.Now(), c.window),
	}

	var xpErr, coinErr error
	if d.XP > 0 {
		xpErr = c.grantXP(ctx, d, parts, &out)
	}
	if d.Coins > 0 {
		coinErr = c.grantCoins(ctx, d, parts, &out)
	}

	c.recordEvents(out, reason)

	if xpErr != nil || coinErr != nil {
		return out, &GrantError{Kind: d.Kind, Outcome: out, XPErr: xpErr, CoinErr: coinErr}
	}
	return out, nil
}

func (c *Client) grantXP(ctx context.Context, d reward.Decision, parts idem.Parts, out *Outcome) error {
	key, err := idem.Key(idem.DomainXPGrant, parts)
	if err != nil {
		return err
	}
	res, err := c.backend.AddXP(ctx, store.XPRequest{
		UserID:         c.userID,
		SourceType:     string(d.Kind.Source()),
		Amount:         d.XP,
		IdempotencyKey: key,
	})
	switch {
	case err != nil:
		c.markUnacked(key)
		c.metrics.RemoteFailure(string(reward.CurrencyXP), metrics.ReasonRemote)
		c.logger.Warn("xp grant failed", "kind", d.Kind, "content", d.ContentID, "error", err)
		return fmt.Errorf("add xp: %w", err)
	case res.Replayed:
		out.XPReplayed = true
		c.metrics.GrantReplayed(string(reward.CurrencyXP))
		if res.Credited <= 0 || !c.takeUnacked(key) {
			c.logger.Debug("xp grant replayed", "kind", d.Kind, "content", d.ContentID)
			return nil
		}
		c.logger.Debug("xp grant recovered", "kind", d.Kind, "content", d.ContentID, "credited", res.Credited)
	case res.Credited <= 0:
		c.metrics.RemoteFailure(string(reward.CurrencyXP), metrics.ReasonEmptyCredit)
		c.logger.Warn("xp grant returned no credit", "kind", d.Kind, "content", d.ContentID)
		return ErrEmptyCredit
	}

	c.mu.Lock()
	delete(c.unacked, key)
	c.user.xp += int64(res.Credited)
	c.credits++
	c.mu.Unlock()

	out.XP = res.Credited
	c.metrics.GrantApplied(string(d.Kind), string(reward.CurrencyXP), res.Credited)
	return nil
}

func (c *Client) grantCoins(ctx context.Context, d reward.Decision, parts idem.Parts, out *Outcome) error {
	key, err := idem.Key(idem.DomainCoinGrant, parts)
	if err != nil {
		return err
	}
	res, err := c.backend.EarnCoins(ctx, store.EarnRequest{
		UserID:         c.userID,
		SourceType:     string(d.Kind.Source()),
		BaseReward:     d.Coins,
		ContentID:      d.ContentID,
		IdempotencyKey: key,
	})
	switch {
	case err != nil:
		reason := metrics.ReasonRemote
		if errors.Is(err, store.ErrPoolExhausted) {
			reason = metrics.ReasonPoolExhausted
		}
		if reason == metrics.ReasonRemote {
			c.markUnacked(key)
		}
		c.metrics.RemoteFailure(string(reward.CurrencyCoins), reason)
		c.logger.Warn("coin grant failed", "kind", d.Kind, "content", d.ContentID, "error", err)
		return fmt.Errorf("earn coins: %w", err)
	case res.Replayed:
		out.CoinsReplayed = true
		c.metrics.GrantReplayed(string(reward.CurrencyCoins))
		if res.Credited <= 0 || !c.takeUnacked(key) {
			c.logger.Debug("coin grant replayed", "kind", d.Kind, "content", d.ContentID)
			return nil
		}
		c.logger.Debug("coin grant recovered", "kind", d.Kind, "content", d.ContentID, "credited", res.Credited)
	case res.Credited <= 0:
		c.metrics.RemoteFailure(string(reward.CurrencyCoins), metrics.ReasonEmptyCredit)
		c.logger.Warn("coin grant returned no credit", "kind", d.Kind, "content", d.ContentID)
		return ErrEmptyCredit
	}

	c.mu.Lock()
	delete(c.unacked, key)
	c.user.coins += int64(res.Credited)
	c.credits++
	c.pool.Remaining -= int64(res.Credited)
	if c.pool.Remaining < 0 {
		c.pool.Remaining = 0
	}
	remaining := c.pool.Remaining
	c.mu.Unlock()

	out.Coins = res.Credited
	c.metrics.GrantApplied(string(d.Kind), string(reward.CurrencyCoins), res.Credited)
	c.metrics.PoolRemaining(remaining)
	return nil
}

// markUnacked remembers a key whose grant may have committed remotely
// even though no answer arrived.
func (c *Client) markUnacked(key string) {
	c.mu.Lock()
	c.unacked[key] = struct{}{}
	c.mu.Unlock()
}

// takeUnacked reports whether key was pending an answer and forgets it.
func (c *Client) takeUnacked(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.unacked[key]; !ok {
		return false
	}
	delete(c.unacked, key)
	return true
}

// recordEvents pushes one toast per credited currency.
func (c *Client) recordEvents(out Outcome, reason string) {
	now := c.clock.Now()
	if out.XP > 0 {
		c.xpEvents.Push(reward.NewEvent(c.ids.Generate(), reward.CurrencyXP, out.XP, reason, now))
	}
	if out.Coins > 0 {
		c.coinEvents.Push(reward.NewEvent(c.ids.Generate(), reward.CurrencyCoins, out.Coins, reason, now))
	}
}

// SpendCoins debits the local balance. It fails with
// ErrInsufficientBalance, debiting nothing, when the balance is short.
func (c *Client) SpendCoins(amount int, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("spend %d coins: %w", amount, ErrInvalidAmount)
	}
	if c.IsGuest() {
		if !c.guest.Spend(amount) {
			return fmt.Errorf("spend %d coins: %w", amount, ErrInsufficientBalance)
		}
		c.logger.Debug("coins spent", "amount", amount, "reason", reason)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.user.coins < int64(amount) {
		return fmt.Errorf("spend %d coins: %w", amount, ErrInsufficientBalance)
	}
	c.user.coins -= int64(amount)
	c.logger.Debug("coins spent", "amount", amount, "reason", reason)
	return nil
}

// Refresh reloads the pool and, for signed-in users, the profile. The two
// reads run concurrently and are applied independently: a failed read
// keeps the previous local values. A profile read that raced a local
// credit never lowers XP or Coins below the local balance.
func (c *Client) Refresh(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	c.mu.Lock()
	credits := c.credits
	pending := make([]string, 0, len(c.unacked))
	for key := range c.unacked {
		pending = append(pending, key)
	}
	c.mu.Unlock()

	var (
		g       errgroup.Group
		pool    store.CoinPool
		profile store.Profile
		poolOK  bool
		profOK  bool
	)
	g.Go(func() error {
		p, err := c.backend.CoinPool(ctx)
		if err != nil {
			return fmt.Errorf("refresh pool: %w", err)
		}
		pool, poolOK = p, true
		return nil
	})
	if !c.IsGuest() {
		g.Go(func() error {
			p, err := c.backend.GetProfile(ctx, c.userID)
			if err != nil {
				return fmt.Errorf("refresh profile: %w", err)
			}
			profile, profOK = p, true
			return nil
		})
	}
	err := g.Wait()

	c.mu.Lock()
	if poolOK {
		c.pool = pool
	}
	if profOK {
		next := userState{
			xp:         profile.XPPoints,
			coins:      profile.Coins,
			streakDays: profile.StreakDays,
			postsRead:  profile.PostsRead,
			savedPosts: append([]string{}, profile.SavedPosts...),
		}
		if c.credits != credits {
			next.xp = max(next.xp, c.user.xp)
			next.coins = max(next.coins, c.user.coins)
			next.postsRead = max(next.postsRead, c.user.postsRead)
		}
		// The profile already reflects anything those keys committed.
		for _, key := range pending {
			delete(c.unacked, key)
		}
		c.user = next
	}
	remaining := c.pool.Remaining
	c.mu.Unlock()

	if poolOK {
		c.metrics.PoolRemaining(remaining)
	}
	if err != nil {
		c.logger.Warn("refresh failed", "error", err)
	}
	return err
}

// ToggleSave flips postID in the saved list and returns whether it is now
// saved. For signed-in users the full list is written to the backend first
// and applied locally only on success.
func (c *Client) ToggleSave(ctx context.Context, postID string) (bool, error) {
	if postID == "" {
		return false, fmt.Errorf("toggle save: empty post id")
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	next, saved := c.user.toggled(postID)
	c.mu.Unlock()

	if !c.IsGuest() {
		if err := c.backend.SetSavedPosts(ctx, c.userID, next); err != nil {
			c.logger.Warn("save toggle failed", "post", postID, "error", err)
			return !saved, fmt.Errorf("toggle save %q: %w", postID, err)
		}
	}

	c.mu.Lock()
	c.user.savedPosts = next
	c.mu.Unlock()
	return saved, nil
}

// MarkRead records one more read post and returns the new count. For
// signed-in users the backend increments first and its count is adopted.
func (c *Client) MarkRead(ctx context.Context) (int, error) {
	if c.IsGuest() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.user.postsRead++
		return c.user.postsRead, nil
	}

	n, err := c.backend.IncrementPostsRead(ctx, c.userID)
	if err != nil {
		c.logger.Warn("mark read failed", "error", err)
		return 0, fmt.Errorf("mark read: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n > c.user.postsRead {
		c.user.postsRead = n
	}
	return c.user.postsRead, nil
}

// DismissEvent removes an event from whichever recent list holds it.
func (c *Client) DismissEvent(id string) bool {
	if c.xpEvents.Dismiss(id) {
		return true
	}
	return c.coinEvents.Dismiss(id)
}

// State returns a copy of the client's current view.
func (c *Client) State() State {
	c.mu.Lock()
	xp, coins := c.user.xp, c.user.coins
	s := State{
		UserID:     c.userID,
		Guest:      c.IsGuest(),
		StreakDays: c.user.streakDays,
		PostsRead:  c.user.postsRead,
		SavedPosts: append([]string{}, c.user.savedPosts...),
		Pool:       c.pool,
	}
	c.mu.Unlock()

	if c.IsGuest() {
		totals := c.guest.Totals()
		xp, coins = totals.XP, totals.Coins
	}
	s.XP = xp
	s.Coins = coins
	s.Rank = c.ranks.RankFor(xp)
	s.NextRankAt = c.ranks.NextRankThreshold(xp)
	s.Progress = c.ranks.Progress(xp)
	s.RecentXP = c.xpEvents.List()
	s.RecentCoins = c.coinEvents.List()
	return s
}

// Claim returns the guest shadow totals shown in the sign-up prompt. It is
// zero for signed-in users.
func (c *Client) Claim() guest.Claim {
	if !c.IsGuest() {
		return guest.Claim{}
	}
	return c.guest.Totals()
}

// Close tears the client down at sign-out. Shadow totals and recent events
// are discarded; later grants return ErrClosed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.guest.Reset()
	c.xpEvents.Clear()
	c.coinEvents.Clear()
	c.logger.Debug("ledger client closed")
}
