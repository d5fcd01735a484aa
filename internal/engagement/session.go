// Package engagement decides when a read is genuine.
//
// A Session is created when a content item is opened and discarded when it
// is closed or replaced. It moves from Viewing to Verified exactly once:
// when the reader has scrolled past the verify depth AND has dwelt for the
// required time. The rewardClaimed latch is a field on the session, so a
// fresh session per item is all it takes to reset it.
package engagement

import "time"

// Defaults for Params.
const (
	DefaultMinDwell     = 20 * time.Second
	DefaultDwellPercent = 40
	DefaultVerifyDepth  = 0.8
	DefaultBlurDepth    = 0.5
	DefaultTickInterval = time.Second
)

// Params tunes verification.
type Params struct {
	// MinDwell is the floor of the dwell requirement.
	MinDwell time.Duration
	// DwellPercent is the share of estimated read time that must be spent.
	DwellPercent int
	// VerifyDepth must be strictly exceeded by the max scroll depth.
	VerifyDepth float64
	// BlurDepth gates premium content once strictly exceeded.
	BlurDepth float64
	// TickInterval is how often the verifier re-checks dwell time.
	TickInterval time.Duration
}

// DefaultParams returns the standard hard-mode parameters.
func DefaultParams() Params {
	return Params{
		MinDwell:     DefaultMinDwell,
		DwellPercent: DefaultDwellPercent,
		VerifyDepth:  DefaultVerifyDepth,
		BlurDepth:    DefaultBlurDepth,
		TickInterval: DefaultTickInterval,
	}
}

// Content is what the verifier needs to know about an item.
type Content struct {
	ID       string        `yaml:"id" json:"id"`
	ReadTime time.Duration `yaml:"read_time" json:"read_time"`
	Premium  bool          `yaml:"premium" json:"premium"`
}

// State of a session.
type State string

const (
	StateViewing  State = "viewing"
	StateVerified State = "verified"
)

// Session is the per-item engagement record.
type Session struct {
	ContentID      string
	Premium        bool
	ReadTime       time.Duration
	MaxScrollDepth float64
	StartedAt      time.Time
	RewardClaimed  bool
	Blurred        bool

	params Params
}

// NewSession starts a Viewing session for c at now.
func NewSession(c Content, now time.Time, p Params) *Session {
	return &Session{
		ContentID: c.ID,
		Premium:   c.Premium,
		ReadTime:  c.ReadTime,
		StartedAt: now,
		params:    p,
	}
}

// RequiredDwell returns max(MinDwell, DwellPercent% of readTime).
// Computed on integer durations so 40% of 10 minutes is exactly 240s.
func RequiredDwell(readTime time.Duration, p Params) time.Duration {
	share := readTime * time.Duration(p.DwellPercent) / 100
	return max(p.MinDwell, share)
}

// RequiredDwell returns the dwell this session needs.
func (s *Session) RequiredDwell() time.Duration {
	return RequiredDwell(s.ReadTime, s.params)
}

// State returns Viewing or Verified.
func (s *Session) State() State {
	if s.RewardClaimed {
		return StateVerified
	}
	return StateViewing
}

// Observe records a scroll sample. Depth is clamped to [0,1] and only ever
// raises MaxScrollDepth. The premium blur gate is a display concern and has
// no effect on verification. Returns whether the content is blurred.
func (s *Session) Observe(depth float64) bool {
	depth = min(1, max(0, depth))
	s.MaxScrollDepth = max(s.MaxScrollDepth, depth)
	if s.Premium && s.MaxScrollDepth > s.params.BlurDepth {
		s.Blurred = true
	}
	return s.Blurred
}

// Verifiable reports whether the verification predicate holds at now.
func (s *Session) Verifiable(now time.Time) bool {
	return s.MaxScrollDepth > s.params.VerifyDepth && now.Sub(s.StartedAt) >= s.RequiredDwell()
}

// Tick evaluates the predicate at now. It returns true exactly once: on the
// transition to Verified. Later ticks are no-ops.
func (s *Session) Tick(now time.Time) bool {
	if s.RewardClaimed {
		return false
	}
	if !s.Verifiable(now) {
		return false
	}
	s.RewardClaimed = true
	return true
}
