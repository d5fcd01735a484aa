package engagement

import (
	"context"
	"sync"
	"time"

	"github.com/akinrinmade/jara-daily/internal/clock"
)

// Snapshot is a copy of a session's observable fields.
type Snapshot struct {
	ContentID      string  `json:"content_id"`
	State          State   `json:"state"`
	MaxScrollDepth float64 `json:"max_scroll_depth"`
	RewardClaimed  bool    `json:"reward_claimed"`
	Blurred        bool    `json:"blurred"`
}

// Verifier owns one Session and its periodic tick.
//
// Scroll samples arrive through Observe from the caller's goroutine; the
// tick runs on a goroutine started by Start. Stop cancels the tick and
// waits for the goroutine to exit, so after Stop returns no callback can
// fire for this session.
//
// Thread-safety: all methods are safe for concurrent use. onVerified must
// not call Stop (it runs on the tick goroutine that Stop waits for).
type Verifier struct {
	mu      sync.Mutex
	session *Session
	clock   clock.Clock

	cancel context.CancelFunc
	done   chan struct{}
}

// NewVerifier opens a session for c starting now.
func NewVerifier(c Content, clk clock.Clock, p Params) *Verifier {
	if clk == nil {
		clk = clock.System{}
	}
	if p.TickInterval <= 0 {
		p.TickInterval = DefaultTickInterval
	}
	return &Verifier{
		session: NewSession(c, clk.Now(), p),
		clock:   clk,
	}
}

// ContentID returns the item being verified.
func (v *Verifier) ContentID() string {
	return v.session.ContentID
}

// Observe feeds a scroll sample; returns whether the content is blurred.
func (v *Verifier) Observe(depth float64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session.Observe(depth)
}

// Tick evaluates the session now. Returns true on the single transition to
// Verified.
func (v *Verifier) Tick() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.session.Tick(v.clock.Now())
}

// Snapshot returns a copy of the session state.
func (v *Verifier) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.session
	return Snapshot{
		ContentID:      s.ContentID,
		State:          s.State(),
		MaxScrollDepth: s.MaxScrollDepth,
		RewardClaimed:  s.RewardClaimed,
		Blurred:        s.Blurred,
	}
}

// Start arms the periodic tick. onVerified is called at most once, from the
// tick goroutine, after which the goroutine exits. Calling Start on an
// armed verifier is a no-op.
func (v *Verifier) Start(ctx context.Context, onVerified func(Snapshot)) {
	v.mu.Lock()
	if v.done != nil {
		v.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	v.cancel = cancel
	v.done = done
	interval := v.session.params.TickInterval
	v.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if v.Tick() {
					if onVerified != nil {
						onVerified(v.Snapshot())
					}
					return
				}
			}
		}
	}()
}

// Stop cancels the tick and blocks until its goroutine has exited.
// Safe to call more than once and before Start.
func (v *Verifier) Stop() {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done is closed when the tick goroutine exits; nil before Start.
func (v *Verifier) Done() <-chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.done
}
