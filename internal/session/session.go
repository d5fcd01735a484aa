package session

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/akinrinmade/jara-daily/internal/clock"
	"github.com/akinrinmade/jara-daily/internal/engagement"
	"github.com/akinrinmade/jara-daily/internal/guest"
	"github.com/akinrinmade/jara-daily/internal/ledger"
	"github.com/akinrinmade/jara-daily/internal/metrics"
	"github.com/akinrinmade/jara-daily/internal/reward"
)

// view is the per-item state. It is created by OpenContent and discarded
// by CloseContent, the next OpenContent, or Close.
type view struct {
	gen          uint64
	verifier     *engagement.Verifier
	reactions    reward.ReactionState
	readRewarded bool
}

// Session is the reward service for one reader.
//
// Thread-safety: all methods are safe for concurrent use.
type Session struct {
	ledger  *ledger.Client
	policy  *reward.Policy
	clock   clock.Clock
	ids     reward.IDGenerator
	params  engagement.Params
	logger  *slog.Logger
	metrics *metrics.Metrics
	manual  bool
	onGrant func(Result)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	gen      uint64
	view     *view
	comments map[string][]Comment
	posts    []Post
}

// Option configures a Session.
type Option func(*Session)

// WithPolicy sets the reward policy.
func WithPolicy(p *reward.Policy) Option {
	return func(s *Session) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithClock sets the clock for verification and timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator sets the generator for comment and post ids.
func WithIDGenerator(g reward.IDGenerator) Option {
	return func(s *Session) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithEngagementParams sets the read-verification thresholds.
func WithEngagementParams(p engagement.Params) Option {
	return func(s *Session) {
		s.params = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink for policy rejections.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithManualTicks disables the background verification tick. The caller
// drives verification with Tick, which makes replays deterministic.
func WithManualTicks() Option {
	return func(s *Session) {
		s.manual = true
	}
}

// WithGrantHook registers fn to be called after every grant that credited
// something, including reads verified in the background.
func WithGrantHook(fn func(Result)) Option {
	return func(s *Session) {
		s.onGrant = fn
	}
}

// New creates a session backed by l. The session takes ownership of l and
// closes it in Close.
func New(l *ledger.Client, opts ...Option) *Session {
	s := &Session{
		ledger:   l,
		policy:   reward.NewPolicy(),
		clock:    clock.System{},
		ids:      reward.UUIDv7Generator{},
		params:   engagement.DefaultParams(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		comments: map[string][]Comment{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Ledger returns the underlying ledger client.
func (s *Session) Ledger() *ledger.Client {
	return s.ledger
}

// OpenContent starts a view of c, tearing down any open view first.
func (s *Session) OpenContent(c engagement.Content) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	old := s.view
	s.gen++
	v := &view{gen: s.gen, verifier: engagement.NewVerifier(c, s.clock, s.params)}
	s.view = v
	if !s.manual {
		gen := v.gen
		v.verifier.Start(s.ctx, func(snap engagement.Snapshot) {
			if _, err := s.readVerified(s.ctx, gen, snap); err != nil {
				s.logger.Warn("read reward failed", "content", snap.ContentID, "error", err)
			}
		})
	}
	s.mu.Unlock()

	if old != nil {
		old.verifier.Stop()
	}
	s.logger.Debug("content opened", "content", c.ID, "premium", c.Premium)
	return nil
}

// CloseContent tears down the open view, if any. It blocks until the
// view's verification tick has stopped.
func (s *Session) CloseContent() {
	s.mu.Lock()
	v := s.view
	s.view = nil
	s.mu.Unlock()

	if v != nil {
		v.verifier.Stop()
	}
}

// Scroll feeds a scroll-depth sample to the open view and returns whether
// premium content is now blurred.
func (s *Session) Scroll(depth float64) (bool, error) {
	s.mu.Lock()
	v := s.view
	s.mu.Unlock()
	if v == nil {
		return false, ErrNoContent
	}
	return v.verifier.Observe(depth), nil
}

// Tick evaluates the open view's verification now. It is the manual
// counterpart of the background tick; ok is true when this call verified
// the read.
func (s *Session) Tick(ctx context.Context) (res Result, ok bool, err error) {
	s.mu.Lock()
	v := s.view
	s.mu.Unlock()
	if v == nil {
		return Result{}, false, ErrNoContent
	}
	if !v.verifier.Tick() {
		return Result{}, false, nil
	}
	res, err = s.readVerified(ctx, v.gen, v.verifier.Snapshot())
	return res, true, err
}

// readVerified grants the read reward for a verified view.
func (s *Session) readVerified(ctx context.Context, gen uint64, snap engagement.Snapshot) (Result, error) {
	d, res, err := s.decide(reward.ActionRead, reward.Context{
		ContentID:    snap.ContentID,
		ReadVerified: snap.RewardClaimed,
	})
	if err != nil || res != nil {
		return derefResult(res), err
	}

	if _, err := s.ledger.MarkRead(ctx); err != nil {
		s.logger.Warn("posts_read not updated", "content", snap.ContentID, "error", err)
	}
	out, err := s.grant(ctx, d)

	s.mu.Lock()
	if s.view != nil && s.view.gen == gen {
		s.view.readRewarded = out.Outcome.Credited()
	}
	s.mu.Unlock()
	return out, err
}

// React toggles emoji on the open view. Only the first reaction on an item
// earns a reward; clearing or switching never does.
func (s *Session) React(ctx context.Context, emoji string) (Result, error) {
	s.mu.Lock()
	v := s.view
	if v == nil {
		s.mu.Unlock()
		return Result{}, ErrNoContent
	}
	eligible, err := v.reactions.Toggle(emoji)
	active := v.reactions.Active()
	s.mu.Unlock()
	if err != nil {
		return Result{}, err
	}

	contentID := v.verifier.ContentID()
	if active == "" {
		return Result{Kind: reward.ActionReaction, ContentID: contentID}, nil
	}
	d, res, err := s.decide(reward.ActionReaction, reward.Context{ContentID: contentID, FirstReaction: eligible})
	if err != nil || res != nil {
		return derefResult(res), err
	}
	d.Reason = "Reacted " + emoji
	return s.grant(ctx, d)
}

// Share rewards sharing contentID.
func (s *Session) Share(ctx context.Context, contentID string) (Result, error) {
	if err := s.checkOpen(); err != nil {
		return Result{}, err
	}
	d, res, err := s.decide(reward.ActionShare, reward.Context{ContentID: contentID})
	if err != nil || res != nil {
		return derefResult(res), err
	}
	return s.grant(ctx, d)
}

// Comment posts text on contentID, newest first. Blank text is refused.
// Short comments are posted without a reward.
func (s *Session) Comment(ctx context.Context, contentID, text string) (Comment, Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, Result{}, ErrEmptyComment
	}
	if err := s.checkOpen(); err != nil {
		return Comment{}, Result{}, err
	}

	c := Comment{
		ID:        s.ids.Generate(),
		ContentID: contentID,
		AuthorID:  s.ledger.UserID(),
		Text:      text,
		CreatedAt: s.clock.Now().UnixMilli(),
	}

	d, rejected, err := s.decide(reward.ActionComment, reward.Context{ContentID: contentID, CommentText: text})
	var res Result
	switch {
	case err != nil:
		return Comment{}, Result{}, err
	case rejected != nil:
		res = *rejected
	default:
		res, err = s.grant(ctx, d)
		c.Rewarded = res.Outcome.Credited()
	}

	s.mu.Lock()
	s.comments[contentID] = append([]Comment{c}, s.comments[contentID]...)
	s.mu.Unlock()
	return c, res, err
}

// Comments returns the comments on contentID, newest first.
func (s *Session) Comments(contentID string) []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Comment(nil), s.comments[contentID]...)
}

// Publish validates and publishes draft. A rejected draft is not
// published; the returned Result carries the reason.
func (s *Session) Publish(ctx context.Context, draft Draft) (Post, Result, error) {
	if err := s.checkOpen(); err != nil {
		return Post{}, Result{}, err
	}
	d, res, err := s.decide(reward.ActionPublish, reward.Context{
		Title:    draft.Title,
		Body:     draft.Body,
		Category: draft.Category,
	})
	if err != nil || res != nil {
		return Post{}, derefResult(res), err
	}

	p := Post{
		ID:        s.ids.Generate(),
		AuthorID:  s.ledger.UserID(),
		Draft:     draft,
		CreatedAt: s.clock.Now().UnixMilli(),
	}
	s.mu.Lock()
	s.posts = append(s.posts, p)
	s.mu.Unlock()

	d.ContentID = p.ID
	out, err := s.grant(ctx, d)
	return p, out, err
}

// Posts returns the articles published in this session, oldest first.
func (s *Session) Posts() []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Post(nil), s.posts...)
}

// ToggleSave flips postID in the reader's saved list.
func (s *Session) ToggleSave(ctx context.Context, postID string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	return s.ledger.ToggleSave(ctx, postID)
}

// Spend debits Coins from the local balance.
func (s *Session) Spend(amount int, reason string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.ledger.SpendCoins(amount, reason)
}

// Dismiss removes a toast from the recent events.
func (s *Session) Dismiss(eventID string) bool {
	return s.ledger.DismissEvent(eventID)
}

// ClaimPrompt returns the guest's shadow totals and whether the sign-up
// prompt should show them. Signed-in readers never see the prompt.
func (s *Session) ClaimPrompt() (guest.Claim, bool) {
	c := s.ledger.Claim()
	return c, s.ledger.IsGuest() && (c.XP > 0 || c.Coins > 0)
}

// Snapshot returns the ledger state and the open view.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{Ledger: s.ledger.State()}

	s.mu.Lock()
	v := s.view
	var reaction string
	var readRewarded bool
	if v != nil {
		reaction = v.reactions.Active()
		readRewarded = v.readRewarded
	}
	s.mu.Unlock()

	if v != nil {
		snap.Content = &ContentView{
			Snapshot:     v.verifier.Snapshot(),
			Reaction:     reaction,
			ReadRewarded: readRewarded,
		}
	}
	return snap
}

// Refresh reloads balances from the backend.
func (s *Session) Refresh(ctx context.Context) error {
	return s.ledger.Refresh(ctx)
}

// Close ends the session at sign-out: the open view is torn down, pending
// background work is cancelled and the ledger is closed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	v := s.view
	s.view = nil
	s.mu.Unlock()

	if v != nil {
		v.verifier.Stop()
	}
	s.cancel()
	s.ledger.Close()
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// decide runs the policy. A rejection is returned as a non-nil Result with
// a message, not as an error.
func (s *Session) decide(kind reward.ActionKind, c reward.Context) (reward.Decision, *Result, error) {
	d, err := s.policy.Decide(kind, c)
	if err == nil {
		return d, nil, nil
	}
	if rej, ok := reward.AsRejection(err); ok {
		s.metrics.Rejected(string(kind))
		s.logger.Debug("reward rejected", "kind", kind, "content", c.ContentID, "reason", rej.Message)
		return reward.Decision{}, &Result{Kind: kind, ContentID: c.ContentID, Message: rej.Message}, nil
	}
	return reward.Decision{}, nil, err
}

func (s *Session) grant(ctx context.Context, d reward.Decision) (Result, error) {
	out, err := s.ledger.ApplyGrant(ctx, d)
	res := Result{Kind: d.Kind, ContentID: d.ContentID, Outcome: out}
	if out.Credited() && s.onGrant != nil {
		s.onGrant(res)
	}
	return res, err
}

func derefResult(r *Result) Result {
	if r == nil {
		return Result{}
	}
	return *r
}
