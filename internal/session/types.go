package session

import (
	"errors"

	"github.com/akinrinmade/jara-daily/internal/engagement"
	"github.com/akinrinmade/jara-daily/internal/ledger"
	"github.com/akinrinmade/jara-daily/internal/reward"
)

var (
	// ErrNoContent is returned by view operations when nothing is open.
	ErrNoContent = errors.New("no content open")

	// ErrEmptyComment is returned for blank comments; nothing is posted.
	ErrEmptyComment = errors.New("comment is empty")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session closed")
)

// Result reports one rewardable action.
type Result struct {
	Kind      reward.ActionKind `json:"kind"`
	ContentID string            `json:"content_id,omitempty"`
	Outcome   ledger.Outcome    `json:"outcome"`

	// Message is the user-visible reason a policy rejected the reward.
	Message string `json:"message,omitempty"`
}

// Rejected reports whether the policy refused the reward.
func (r Result) Rejected() bool {
	return r.Message != ""
}

// Comment is a posted comment.
type Comment struct {
	ID        string `json:"id"`
	ContentID string `json:"content_id"`
	AuthorID  string `json:"author_id,omitempty"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at_ms"`
	Rewarded  bool   `json:"rewarded"`
}

// Draft is an article about to be published.
type Draft struct {
	Title    string `json:"title" yaml:"title"`
	Body     string `json:"body" yaml:"body"`
	Category string `json:"category" yaml:"category"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
}

// Post is a published article.
type Post struct {
	ID       string `json:"id"`
	AuthorID string `json:"author_id,omitempty"`
	Draft
	CreatedAt int64 `json:"created_at_ms"`
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	Ledger ledger.State `json:"ledger"`

	// Content is nil when no item is open.
	Content *ContentView `json:"content,omitempty"`
}

// ContentView describes the open item.
type ContentView struct {
	engagement.Snapshot
	Reaction     string `json:"reaction,omitempty"`
	ReadRewarded bool   `json:"read_rewarded"`
}
