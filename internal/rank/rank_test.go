package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankFor(t *testing.T) {
	tbl := Default()

	tests := []struct {
		xp   int64
		want Rank
	}{
		{-50, "JJC"},
		{0, "JJC"},
		{99, "JJC"},
		{100, "Learner"},
		{499, "Learner"},
		{500, "Hustler"},
		{1500, "Oga"},
		{4999, "Oga"},
		{5000, "Chairman"},
		{15000, "Odogwu"},
		{1_000_000, "Odogwu"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tbl.RankFor(tt.xp), "xp=%d", tt.xp)
	}
}

func TestNextRankThreshold(t *testing.T) {
	tbl := Default()

	assert.Equal(t, int64(100), tbl.NextRankThreshold(0))
	assert.Equal(t, int64(100), tbl.NextRankThreshold(99))
	assert.Equal(t, int64(500), tbl.NextRankThreshold(100))
	assert.Equal(t, int64(15000), tbl.NextRankThreshold(14999))

	// top rank: no further threshold, remaining is zero
	assert.Equal(t, int64(15000), tbl.NextRankThreshold(15000))
	assert.Equal(t, int64(20000), tbl.NextRankThreshold(20000))
	assert.Equal(t, int64(0), tbl.Remaining(20000))
}

func TestRankMonotonicAndThresholdNeverBelowXP(t *testing.T) {
	tbl := Default()
	order := make(map[Rank]int)
	for i, tier := range tbl.Tiers() {
		order[tier.Label] = i
	}

	prev := -1
	for xp := int64(0); xp <= 20000; xp += 7 {
		idx := order[tbl.RankFor(xp)]
		require.GreaterOrEqual(t, idx, prev, "rank decreased at xp=%d", xp)
		prev = idx
		require.GreaterOrEqual(t, tbl.NextRankThreshold(xp), xp, "xp=%d", xp)
	}
}

func TestProgress(t *testing.T) {
	tbl := Default()

	assert.Equal(t, 0, tbl.Progress(0))
	assert.Equal(t, 50, tbl.Progress(50))
	assert.Equal(t, 20, tbl.Progress(100))
	assert.Equal(t, 100, tbl.Progress(15000))
	assert.Equal(t, 100, tbl.Progress(99999))
}

func TestNewTable_Validation(t *testing.T) {
	_, err := NewTable(nil)
	assert.Error(t, err)

	_, err = NewTable([]Tier{{Threshold: 0, Label: ""}})
	assert.Error(t, err)

	_, err = NewTable([]Tier{{Threshold: 10, Label: "A"}, {Threshold: 10, Label: "B"}})
	assert.Error(t, err)

	tbl, err := NewTable([]Tier{{Threshold: 0, Label: "Only"}})
	require.NoError(t, err)
	assert.Equal(t, Rank("Only"), tbl.RankFor(42))
	assert.Equal(t, int64(42), tbl.NextRankThreshold(42))
}

func TestTiers_ReturnsCopy(t *testing.T) {
	tbl := Default()
	tiers := tbl.Tiers()
	tiers[0].Label = "mutated"
	assert.Equal(t, Rank("JJC"), tbl.RankFor(0))
}
