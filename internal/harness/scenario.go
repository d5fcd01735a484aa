package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/akinrinmade/jara-daily/internal/engagement"
	"github.com/akinrinmade/jara-daily/internal/session"
)

// Scenario is a scripted reader session.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// User is the signed-in reader. Empty runs the scenario as a guest.
	User string `yaml:"user,omitempty"`

	// CoinSupply seeds the global Coin pool.
	CoinSupply int64 `yaml:"coin_supply"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one reader action.
type Step struct {
	Op string `yaml:"op"`

	Content   *engagement.Content `yaml:"content,omitempty"`
	ContentID string              `yaml:"content_id,omitempty"`
	Depth     float64             `yaml:"depth,omitempty"`
	Duration  time.Duration       `yaml:"duration,omitempty"`
	Emoji     string              `yaml:"emoji,omitempty"`
	Text      string              `yaml:"text,omitempty"`
	Draft     *session.Draft      `yaml:"draft,omitempty"`
	Amount    int                 `yaml:"amount,omitempty"`
	Reason    string              `yaml:"reason,omitempty"`

	// Expect is checked against the step's trace event. Unset fields are
	// not checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match on a step's outcome.
type Expect struct {
	XP       *int   `yaml:"xp,omitempty"`
	Coins    *int   `yaml:"coins,omitempty"`
	Replayed *bool  `yaml:"replayed,omitempty"`
	Message  string `yaml:"message,omitempty"`

	// Error is the error code the step must fail with (see ErrorCode).
	Error string `yaml:"error,omitempty"`

	// Detail matches the trace event detail, e.g. "verified" for a tick.
	Detail string `yaml:"detail,omitempty"`
}

// Step ops.
const (
	OpOpen         = "open"
	OpScroll       = "scroll"
	OpAdvance      = "advance"
	OpTick         = "tick"
	OpReact        = "react"
	OpShare        = "share"
	OpComment      = "comment"
	OpPublish      = "publish"
	OpSave         = "save"
	OpSpend        = "spend"
	OpRefresh      = "refresh"
	OpCloseContent = "close_content"
	OpSignOut      = "sign_out"
)

// Assertion checks final state after all steps ran.
type Assertion struct {
	Type string `yaml:"type"`

	XP        *int64   `yaml:"xp,omitempty"`
	Coins     *int64   `yaml:"coins,omitempty"`
	Label     string   `yaml:"label,omitempty"`
	Remaining *int64   `yaml:"remaining,omitempty"`
	Count     *int     `yaml:"count,omitempty"`
	Posts     []string `yaml:"posts,omitempty"`
	Op        string   `yaml:"op,omitempty"`
	ContentID string   `yaml:"content_id,omitempty"`
}

// Assertion types.
const (
	AssertBalance    = "balance"
	AssertProfile    = "profile"
	AssertRank       = "rank"
	AssertPool       = "pool"
	AssertPostsRead  = "posts_read"
	AssertSavedPosts = "saved_posts"
	AssertClaim      = "claim"
	AssertComments   = "comments"
	AssertTraceCount = "trace_count"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse YAML: empty document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.CoinSupply < 0 {
		return fmt.Errorf("coin_supply must not be negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, st := range s.Steps {
		if err := validateStep(st); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion %d: %w", i, err)
		}
	}
	return nil
}

func validateStep(st Step) error {
	switch st.Op {
	case OpOpen:
		if st.Content == nil || st.Content.ID == "" {
			return fmt.Errorf("open requires content.id")
		}
	case OpScroll:
		if st.Depth < 0 || st.Depth > 1 {
			return fmt.Errorf("scroll depth must be within [0,1]")
		}
	case OpAdvance:
		if st.Duration <= 0 {
			return fmt.Errorf("advance requires a positive duration")
		}
	case OpReact:
		if st.Emoji == "" {
			return fmt.Errorf("react requires emoji")
		}
	case OpShare, OpSave:
		if st.ContentID == "" {
			return fmt.Errorf("%s requires content_id", st.Op)
		}
	case OpComment:
		if st.ContentID == "" {
			return fmt.Errorf("comment requires content_id")
		}
	case OpPublish:
		if st.Draft == nil {
			return fmt.Errorf("publish requires draft")
		}
	case OpSpend:
		if st.Reason == "" {
			return fmt.Errorf("spend requires reason")
		}
	case OpTick, OpRefresh, OpCloseContent, OpSignOut:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertBalance, AssertProfile, AssertClaim:
		if a.XP == nil && a.Coins == nil {
			return fmt.Errorf("%s requires xp or coins", a.Type)
		}
	case AssertRank:
		if a.Label == "" {
			return fmt.Errorf("rank requires label")
		}
	case AssertPool:
		if a.Remaining == nil {
			return fmt.Errorf("pool requires remaining")
		}
	case AssertPostsRead:
		if a.Count == nil {
			return fmt.Errorf("posts_read requires count")
		}
	case AssertSavedPosts:
	case AssertComments:
		if a.ContentID == "" || a.Count == nil {
			return fmt.Errorf("comments requires content_id and count")
		}
	case AssertTraceCount:
		if a.Op == "" || a.Count == nil {
			return fmt.Errorf("trace_count requires op and count")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
