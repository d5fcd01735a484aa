// Package rank maps cumulative XP onto the discrete rank ladder shown on
// profiles and leaderboards.
//
// A Table is immutable after construction. All lookups are pure and total:
// any int64 XP value (including negatives) yields a rank and a threshold.
package rank

import (
	"fmt"
	"sort"
)

// Rank is the display label of a tier.
type Rank string

// Tier is one rung of the ladder.
type Tier struct {
	Threshold int64 `yaml:"threshold" json:"threshold"`
	Label     Rank  `yaml:"label" json:"label"`
}

// DefaultTiers is the built-in ladder, lowest rank first.
var DefaultTiers = []Tier{
	{Threshold: 0, Label: "JJC"},
	{Threshold: 100, Label: "Learner"},
	{Threshold: 500, Label: "Hustler"},
	{Threshold: 1500, Label: "Oga"},
	{Threshold: 5000, Label: "Chairman"},
	{Threshold: 15000, Label: "Odogwu"},
}

// Table is an ordered rank ladder.
type Table struct {
	tiers []Tier
}

// NewTable validates and copies the given tiers.
//
// Tiers must be non-empty, strictly ascending by threshold and carry a label.
// The first tier's threshold is the floor; XP below it still maps to the
// first tier.
func NewTable(tiers []Tier) (*Table, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("rank table: at least one tier required")
	}
	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	for i, t := range cp {
		if t.Label == "" {
			return nil, fmt.Errorf("rank table: tier %d has empty label", i)
		}
		if i > 0 && t.Threshold <= cp[i-1].Threshold {
			return nil, fmt.Errorf("rank table: tier %q threshold %d not above %q (%d)",
				t.Label, t.Threshold, cp[i-1].Label, cp[i-1].Threshold)
		}
	}
	return &Table{tiers: cp}, nil
}

// Default returns a table over DefaultTiers.
func Default() *Table {
	t, err := NewTable(DefaultTiers)
	if err != nil {
		panic(err)
	}
	return t
}

// Tiers returns a copy of the ladder.
func (t *Table) Tiers() []Tier {
	cp := make([]Tier, len(t.tiers))
	copy(cp, t.tiers)
	return cp
}

// index returns the position of the highest tier whose threshold is <= xp,
// or 0 when xp is below every threshold.
func (t *Table) index(xp int64) int {
	// first tier with threshold > xp
	i := sort.Search(len(t.tiers), func(i int) bool {
		return t.tiers[i].Threshold > xp
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// RankFor returns the highest rank whose threshold is <= xp.
func (t *Table) RankFor(xp int64) Rank {
	return t.tiers[t.index(xp)].Label
}

// NextRankThreshold returns the XP at which the next rank is reached.
//
// At the top rank there is nothing left to reach, so the top threshold is
// returned, raised to xp when xp already exceeds it. The result is therefore
// never below xp and "remaining XP" is never negative.
func (t *Table) NextRankThreshold(xp int64) int64 {
	i := t.index(xp)
	if i+1 < len(t.tiers) {
		return t.tiers[i+1].Threshold
	}
	return max(t.tiers[i].Threshold, xp)
}

// Remaining returns NextRankThreshold(xp) - xp.
func (t *Table) Remaining(xp int64) int64 {
	return t.NextRankThreshold(xp) - xp
}

// Progress returns the percentage (0..100) of xp against the next threshold,
// the value rendered on the profile progress bar.
func (t *Table) Progress(xp int64) int {
	if xp <= 0 {
		return 0
	}
	next := t.NextRankThreshold(xp)
	if next <= 0 {
		return 100
	}
	return int(min(100, xp*100/next))
}
