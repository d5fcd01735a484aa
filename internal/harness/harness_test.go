package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinrinmade/jara-daily/internal/config"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_ReportsFailedExpectation(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_expectation
description: "share pays 10 XP, not 99"
user: u1
coin_supply: 100
steps:
  - op: share
    content_id: post-1
    expect: { xp: 99 }
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "xp = 10, want 99")
}

func TestRun_UnexpectedErrorFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: tick_without_content
description: "tick with nothing open"
steps:
  - op: tick
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "no_content", result.Trace[0].Error)
}

func TestRun_FailedAssertion(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_pool
description: "pool assertion off by one"
user: u1
coin_supply: 10
steps:
  - op: share
    content_id: post-1
assertions:
  - type: pool
    remaining: 6
  - type: profile
    coins: 5
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "remaining = 5, want 6")
}

func TestRun_SignOutDiscardsShadowTotals(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: guest_sign_out
description: "signing out drops guest totals and closes the session"
steps:
  - op: share
    content_id: post-1
  - op: sign_out
  - op: share
    content_id: post-2
    expect: { error: closed }
assertions:
  - type: claim
    xp: 0
    coins: 0
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, 10, result.Trace[0].XP)
}

func TestRun_WithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.GuestMaxCoins = 2

	s, err := ParseScenario([]byte(`
name: guest_clamp
description: "configured clamp caps guest coins"
steps:
  - op: share
    content_id: post-1
    expect: { coins: 2 }
`))
	require.NoError(t, err)

	result, err := Run(s, WithConfig(cfg))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SameBucketReplays(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: replay_window
description: "a repeated share replays inside the window and pays again after it"
user: u1
coin_supply: 100
steps:
  - op: share
    content_id: post-1
    expect: { xp: 10, coins: 5 }
  - op: share
    content_id: post-1
    expect: { xp: 0, coins: 0, replayed: true }
  - op: advance
    duration: 10m
  - op: share
    content_id: post-1
    expect: { xp: 10, coins: 5 }
assertions:
  - type: profile
    xp: 20
    coins: 10
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestTraceJSON_OmitsEmptyFields(t *testing.T) {
	r := NewResult()
	r.Trace = append(r.Trace, TraceEvent{Seq: 1, Op: OpRefresh})

	got, err := TraceJSON("x", r)
	require.NoError(t, err)
	assert.Equal(t, `{"scenario_name":"x","trace":[{"elapsed_ms":0,"op":"refresh","seq":1}]}`, string(got))
	assert.False(t, strings.Contains(string(got), "xp"))
}
