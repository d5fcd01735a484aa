// Package reward decides how much XP and Coin an action is worth.
//
// The policy is a pure, deterministic rules table. It never talks to the
// remote store; applying a decision is the ledger client's job.
//
// Rejections are not failures: a *Rejection carries a user-visible message
// and means "no grant", nothing more.
package reward

import "fmt"

// ActionKind is a rewardable user action.
type ActionKind string

const (
	ActionRead     ActionKind = "read"
	ActionReaction ActionKind = "reaction"
	ActionShare    ActionKind = "share"
	ActionComment  ActionKind = "comment"
	ActionPublish  ActionKind = "publish"
)

// AllActions lists every action kind in table order.
var AllActions = []ActionKind{ActionRead, ActionReaction, ActionShare, ActionComment, ActionPublish}

// SourceType is the source label the remote earn RPC understands.
type SourceType string

const (
	SourceRead    SourceType = "read"
	SourceLike    SourceType = "like"
	SourceShare   SourceType = "share"
	SourceComment SourceType = "comment"
	SourcePost    SourceType = "post"
)

// Source maps an action kind onto its remote source type.
func (k ActionKind) Source() SourceType {
	switch k {
	case ActionRead:
		return SourceRead
	case ActionReaction:
		return SourceLike
	case ActionShare:
		return SourceShare
	case ActionComment:
		return SourceComment
	case ActionPublish:
		return SourcePost
	}
	return SourceType(k)
}

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	for _, a := range AllActions {
		if a == k {
			return true
		}
	}
	return false
}

// ParseActionKind parses a kind name.
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown action kind %q", s)
	}
	return k, nil
}

// ValidSource reports whether s is a source type the remote store accepts.
func ValidSource(s SourceType) bool {
	switch s {
	case SourceRead, SourceLike, SourceShare, SourceComment, SourcePost:
		return true
	}
	return false
}

// ActionForSource maps a remote source type back onto its action kind.
func ActionForSource(s SourceType) (ActionKind, bool) {
	for _, a := range AllActions {
		if a.Source() == s {
			return a, true
		}
	}
	return "", false
}

// Reason returns the default human label shown with a grant.
func (k ActionKind) Reason() string {
	switch k {
	case ActionRead:
		return "Read a post"
	case ActionReaction:
		return "Reacted to a post"
	case ActionShare:
		return "Shared a post"
	case ActionComment:
		return "Commented on a post"
	case ActionPublish:
		return "Published an article"
	}
	return string(k)
}
