package reward

import (
	"errors"
	"fmt"
	"strings"
)

// Amount is the XP and Coin value of one action.
type Amount struct {
	XP    int `yaml:"xp" json:"xp"`
	Coins int `yaml:"coins" json:"coins"`
}

// IsZero reports whether the amount grants nothing.
func (a Amount) IsZero() bool {
	return a.XP <= 0 && a.Coins <= 0
}

// DefaultTable is the base reward per action kind.
var DefaultTable = map[ActionKind]Amount{
	ActionRead:     {XP: 10, Coins: 3},
	ActionReaction: {XP: 5, Coins: 2},
	ActionShare:    {XP: 10, Coins: 5},
	ActionComment:  {XP: 10, Coins: 4},
	ActionPublish:  {XP: 20, Coins: 3},
}

// Default quality thresholds, in characters.
const (
	DefaultPublishMinChars = 150
	DefaultCommentMinChars = 20
)

// Rejection messages shown to the user.
const (
	MsgMissingFields   = "missing fields"
	MsgPostTooShort    = "post too short"
	MsgCommentTooShort = "comment too short to earn rewards"
	MsgRepeatReaction  = "only your first reaction on a post earns rewards"
	MsgReadUnverified  = "keep reading to earn rewards"
	MsgUnknownAction   = "unknown action"
)

// Rejection is a PolicyRejection: the action failed a quality or abuse
// heuristic and earns nothing. It is surfaced as a message, not an error
// condition.
type Rejection struct {
	Kind    ActionKind
	Message string
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Kind, r.Message)
}

// IsRejection returns true if err is, or wraps, a *Rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// AsRejection extracts the *Rejection from err.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	ok := errors.As(err, &r)
	return r, ok
}

// Context is the per-action input to Decide. Only the fields relevant to
// the action kind are read.
type Context struct {
	ContentID string

	// publish
	Title    string
	Body     string
	Category string

	// comment
	CommentText string

	// reaction: true only for the first reaction on the item this session
	FirstReaction bool

	// read: true once the engagement session latched rewardClaimed
	ReadVerified bool
}

// Decision is an accepted grant before it is applied.
type Decision struct {
	Kind      ActionKind
	ContentID string
	Amount
	Reason string
}

// Policy decides rewards from a fixed table and quality thresholds.
type Policy struct {
	table           map[ActionKind]Amount
	publishMinChars int
	commentMinChars int
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithTable replaces the reward table. Kinds missing from t keep their
// default amounts.
func WithTable(t map[ActionKind]Amount) PolicyOption {
	return func(p *Policy) {
		for k, v := range t {
			p.table[k] = v
		}
	}
}

// WithPublishMinChars sets the plain-text length a post needs to earn.
func WithPublishMinChars(n int) PolicyOption {
	return func(p *Policy) {
		p.publishMinChars = n
	}
}

// WithCommentMinChars sets the trimmed length a comment needs to earn.
func WithCommentMinChars(n int) PolicyOption {
	return func(p *Policy) {
		p.commentMinChars = n
	}
}

// NewPolicy creates a policy with the default table and thresholds.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{
		table:           make(map[ActionKind]Amount, len(DefaultTable)),
		publishMinChars: DefaultPublishMinChars,
		commentMinChars: DefaultCommentMinChars,
	}
	for k, v := range DefaultTable {
		p.table[k] = v
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Base returns the table amount for kind.
func (p *Policy) Base(kind ActionKind) Amount {
	return p.table[kind]
}

// Decide returns the reward for an action, or a *Rejection when one of the
// quality or abuse rules fails. Each rule applies to its own kind only.
func (p *Policy) Decide(kind ActionKind, c Context) (Decision, error) {
	if !kind.Valid() {
		return Decision{}, &Rejection{Kind: kind, Message: MsgUnknownAction}
	}

	switch kind {
	case ActionPublish:
		if strings.TrimSpace(c.Title) == "" || strings.TrimSpace(c.Body) == "" || strings.TrimSpace(c.Category) == "" {
			return Decision{}, &Rejection{Kind: kind, Message: MsgMissingFields}
		}
		if PlainTextLength(c.Body) < p.publishMinChars {
			return Decision{}, &Rejection{Kind: kind, Message: MsgPostTooShort}
		}
	case ActionComment:
		if TextLength(strings.TrimSpace(c.CommentText)) < p.commentMinChars {
			return Decision{}, &Rejection{Kind: kind, Message: MsgCommentTooShort}
		}
	case ActionReaction:
		if !c.FirstReaction {
			return Decision{}, &Rejection{Kind: kind, Message: MsgRepeatReaction}
		}
	case ActionRead:
		if !c.ReadVerified {
			return Decision{}, &Rejection{Kind: kind, Message: MsgReadUnverified}
		}
	}

	return Decision{
		Kind:      kind,
		ContentID: c.ContentID,
		Amount:    p.table[kind],
		Reason:    kind.Reason(),
	}, nil
}
