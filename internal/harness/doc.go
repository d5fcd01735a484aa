// Package harness replays reader sessions from YAML scenario files.
//
// A scenario drives a real session.Session over a fresh in-memory store.
// The clock only moves on "advance" steps and every id comes from a
// sequence generator, so a scenario always produces the same trace and the
// same idempotency keys.
//
// # Scenario Format
//
//	name: read_and_react
//	description: "A verified read followed by a first reaction"
//	user: u1            # omit for a guest
//	coin_supply: 100
//	steps:
//	  - op: open
//	    content: { id: post-1, read_time: 5m }
//	  - op: scroll
//	    depth: 0.9
//	  - op: advance
//	    duration: 2m
//	  - op: tick
//	    expect: { xp: 10, coins: 3 }
//	  - op: react
//	    emoji: "🔥"
//	assertions:
//	  - type: balance
//	    xp: 15
//	    coins: 5
//	  - type: pool
//	    remaining: 95
//
// # Steps
//
//   - open: open content for reading (starts dwell time)
//   - scroll: record a scroll depth sample
//   - advance: move the clock forward
//   - tick: evaluate read verification now
//   - react, share, comment, publish: rewardable actions
//   - save: toggle a saved post
//   - spend: debit Coins locally
//   - refresh: reload balances from the store
//   - close_content: close the open item
//   - sign_out: tear the session down
//
// # Assertion Types
//
//   - balance: local XP and Coins
//   - profile: XP and Coins as recorded by the store
//   - rank: current rank label
//   - pool: Coins remaining in the store's pool
//   - posts_read: the store's read counter
//   - saved_posts: the local saved list, in order
//   - claim: the guest sign-up prompt totals
//   - comments: number of comments on an item
//   - trace_count: number of steps with a given op
//
// Golden traces live in testdata/golden/{name}.golden; regenerate them
// with:
//
//	go test ./internal/harness -update
package harness
