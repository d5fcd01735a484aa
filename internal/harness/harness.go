package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/akinrinmade/jara-daily/internal/config"
	"github.com/akinrinmade/jara-daily/internal/ledger"
	"github.com/akinrinmade/jara-daily/internal/reward"
	"github.com/akinrinmade/jara-daily/internal/session"
	"github.com/akinrinmade/jara-daily/internal/store"
	"github.com/akinrinmade/jara-daily/internal/testutil"
)

// Harness runs one scenario against a fresh store and session.
type Harness struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	clock   *testutil.FakeClock
	session *session.Session
}

// Option configures a run.
type Option func(*Harness)

// WithConfig runs scenarios under cfg's reward table, thresholds and rank
// ladder instead of the defaults.
func WithConfig(cfg *config.Config) Option {
	return func(h *Harness) {
		if cfg != nil {
			h.cfg = cfg
		}
	}
}

// WithLogger sets the logger passed to the ledger and session.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// Run executes a scenario and returns the result. Each run uses its own
// in-memory database.
//
// An error is returned only when the run could not be set up; failed
// expectations and assertions are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		cfg:    config.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  testutil.NewFakeClock(testutil.Epoch),
	}
	for _, opt := range opts {
		opt(h)
	}

	ranks, err := h.cfg.RankTable()
	if err != nil {
		return nil, fmt.Errorf("invalid rank table: %w", err)
	}

	st, err := store.Open(":memory:", store.WithRankTable(ranks), store.WithClock(h.clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()
	h.store = st

	ctx := context.Background()
	if err := st.EnsurePool(ctx, scenario.CoinSupply); err != nil {
		return nil, fmt.Errorf("failed to seed coin pool: %w", err)
	}

	var backend ledger.Backend
	if scenario.User != "" {
		if err := st.EnsureProfile(ctx, scenario.User, scenario.User); err != nil {
			return nil, fmt.Errorf("failed to seed profile: %w", err)
		}
		backend = st
	}

	l, err := ledger.New(scenario.User, backend,
		ledger.WithClock(h.clock),
		ledger.WithIDGenerator(reward.NewSequenceGenerator("evt")),
		ledger.WithRankTable(ranks),
		ledger.WithGuestLedger(h.cfg.GuestLedger()),
		ledger.WithIdempotencyWindow(h.cfg.IdempotencyWindow),
		ledger.WithRecentLimit(h.cfg.RecentLimit),
		ledger.WithLogger(h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	h.session = session.New(l,
		session.WithClock(h.clock),
		session.WithIDGenerator(reward.NewSequenceGenerator("id")),
		session.WithPolicy(h.cfg.Policy()),
		session.WithEngagementParams(h.cfg.EngagementParams()),
		session.WithLogger(h.logger),
		session.WithManualTicks(),
	)
	defer h.session.Close()

	if scenario.User != "" {
		if err := h.session.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("initial refresh: %w", err)
		}
	}

	result := NewResult()
	start := h.clock.Now()
	for i, step := range scenario.Steps {
		ev := h.execute(ctx, step)
		ev.Seq = i + 1
		ev.ElapsedMS = h.clock.Now().Sub(start).Milliseconds()
		result.Trace = append(result.Trace, ev)
		checkExpect(result, i, step, ev)
	}

	result.Final = h.session.Snapshot()
	result.Claim = h.session.Ledger().Claim()

	evaluateAssertions(ctx, h, scenario, result)
	return result, nil
}

// execute runs one step. Step errors are recorded on the event, never
// returned: a scenario may expect a step to fail.
func (h *Harness) execute(ctx context.Context, step Step) TraceEvent {
	ev := TraceEvent{Op: step.Op}
	s := h.session

	var err error
	switch step.Op {
	case OpOpen:
		ev.ContentID = step.Content.ID
		err = s.OpenContent(*step.Content)

	case OpScroll:
		var blurred bool
		blurred, err = s.Scroll(step.Depth)
		ev.Detail = strconv.FormatFloat(step.Depth, 'f', 2, 64)
		if blurred {
			ev.Detail += " blurred"
		}

	case OpAdvance:
		h.clock.Advance(step.Duration)
		ev.Detail = step.Duration.String()

	case OpTick:
		var res session.Result
		var verified bool
		res, verified, err = s.Tick(ctx)
		if verified {
			ev.Detail = "verified"
			applyResult(&ev, res)
		} else if err == nil {
			ev.Detail = "pending"
		}

	case OpReact:
		var res session.Result
		res, err = s.React(ctx, step.Emoji)
		ev.Detail = step.Emoji
		applyResult(&ev, res)

	case OpShare:
		var res session.Result
		res, err = s.Share(ctx, step.ContentID)
		applyResult(&ev, res)

	case OpComment:
		var c session.Comment
		var res session.Result
		c, res, err = s.Comment(ctx, step.ContentID, step.Text)
		ev.ContentID = step.ContentID
		ev.Detail = c.ID
		applyResult(&ev, res)

	case OpPublish:
		var p session.Post
		var res session.Result
		p, res, err = s.Publish(ctx, *step.Draft)
		applyResult(&ev, res)
		if p.ID != "" {
			ev.ContentID = p.ID
		}

	case OpSave:
		var saved bool
		saved, err = s.ToggleSave(ctx, step.ContentID)
		ev.ContentID = step.ContentID
		if err == nil {
			ev.Detail = "unsaved"
			if saved {
				ev.Detail = "saved"
			}
		}

	case OpSpend:
		err = s.Spend(step.Amount, step.Reason)
		ev.Detail = fmt.Sprintf("%d %s", step.Amount, step.Reason)

	case OpRefresh:
		err = s.Refresh(ctx)

	case OpCloseContent:
		s.CloseContent()

	case OpSignOut:
		s.Close()
	}

	ev.Error = ErrorCode(err)
	if err != nil {
		h.logger.Debug("step failed", "op", step.Op, "error", err)
	}
	return ev
}

func applyResult(ev *TraceEvent, res session.Result) {
	if res.Kind == "" {
		return
	}
	ev.Kind = string(res.Kind)
	if res.ContentID != "" {
		ev.ContentID = res.ContentID
	}
	ev.XP = res.Outcome.XP
	ev.Coins = res.Outcome.Coins
	ev.Replayed = res.Outcome.XPReplayed || res.Outcome.CoinsReplayed
	ev.Message = res.Message
}

// ErrorCode classifies a step error into a stable code for traces.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case ledger.IsPoolExhausted(err):
		return "pool_exhausted"
	case errors.Is(err, store.ErrPoolNotInitialized):
		return "pool_not_initialized"
	case errors.Is(err, store.ErrProfileNotFound):
		return "profile_not_found"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, session.ErrNoContent):
		return "no_content"
	case errors.Is(err, session.ErrEmptyComment):
		return "empty_comment"
	case errors.Is(err, session.ErrClosed), errors.Is(err, ledger.ErrClosed):
		return "closed"
	default:
		return "error"
	}
}

func checkExpect(r *Result, i int, step Step, ev TraceEvent) {
	exp := step.Expect
	if exp == nil {
		if ev.Error != "" {
			r.AddError(fmt.Sprintf("step %d (%s): unexpected error %q", i, step.Op, ev.Error))
		}
		return
	}
	if ev.Error != exp.Error {
		r.AddError(fmt.Sprintf("step %d (%s): error = %q, want %q", i, step.Op, ev.Error, exp.Error))
	}
	if exp.XP != nil && ev.XP != *exp.XP {
		r.AddError(fmt.Sprintf("step %d (%s): xp = %d, want %d", i, step.Op, ev.XP, *exp.XP))
	}
	if exp.Coins != nil && ev.Coins != *exp.Coins {
		r.AddError(fmt.Sprintf("step %d (%s): coins = %d, want %d", i, step.Op, ev.Coins, *exp.Coins))
	}
	if exp.Replayed != nil && ev.Replayed != *exp.Replayed {
		r.AddError(fmt.Sprintf("step %d (%s): replayed = %t, want %t", i, step.Op, ev.Replayed, *exp.Replayed))
	}
	if exp.Message != "" && ev.Message != exp.Message {
		r.AddError(fmt.Sprintf("step %d (%s): message = %q, want %q", i, step.Op, ev.Message, exp.Message))
	}
	if exp.Detail != "" && ev.Detail != exp.Detail {
		r.AddError(fmt.Sprintf("step %d (%s): detail = %q, want %q", i, step.Op, ev.Detail, exp.Detail))
	}
}
