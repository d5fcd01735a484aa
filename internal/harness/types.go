package harness

import (
	"github.com/akinrinmade/jara-daily/internal/guest"
	"github.com/akinrinmade/jara-daily/internal/session"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq       int    `json:"seq"`
	Op        string `json:"op"`
	ElapsedMS int64  `json:"elapsed_ms"`
	ContentID string `json:"content_id,omitempty"`

	// Kind is set when the step went through the reward policy.
	Kind     string `json:"kind,omitempty"`
	XP       int    `json:"xp"`
	Coins    int    `json:"coins"`
	Replayed bool   `json:"replayed,omitempty"`
	Message  string `json:"message,omitempty"`

	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is false if any expect clause or assertion failed.
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Final is the session snapshot taken after the last step.
	Final session.Snapshot `json:"final"`
	Claim guest.Claim      `json:"claim"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// CountOp returns how many trace events have op.
func (r *Result) CountOp(op string) int {
	n := 0
	for _, e := range r.Trace {
		if e.Op == op {
			n++
		}
	}
	return n
}

// canonicalMap drops empty optional fields so the golden trace only shows
// what a step actually did.
func (e TraceEvent) canonicalMap() map[string]any {
	m := map[string]any{
		"seq":        e.Seq,
		"op":         e.Op,
		"elapsed_ms": e.ElapsedMS,
	}
	if e.ContentID != "" {
		m["content_id"] = e.ContentID
	}
	if e.Kind != "" {
		m["kind"] = e.Kind
		m["xp"] = e.XP
		m["coins"] = e.Coins
	}
	if e.Replayed {
		m["replayed"] = true
	}
	if e.Message != "" {
		m["message"] = e.Message
	}
	if e.Detail != "" {
		m["detail"] = e.Detail
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	return m
}
