// Package store provides the SQLite-backed reward store that stands in for
// the managed relational database behind the reward RPCs.
//
// The store owns:
//   - profiles: per-user XP, Coins, streak, read counter, saved posts, rank
//   - coin_pool: the single global Coin supply record (id = 1)
//   - coin_grants / xp_grants: one row per applied grant, keyed by the
//     client's idempotency key
//
// # Guarantees
//
// Idempotency: the idempotency key is the PRIMARY KEY of each grant table.
// A replayed key is answered from the existing row and credits nothing.
//
// Pool floor: Coin grants decrement coin_pool.remaining with a conditional
// UPDATE (remaining >= amount) inside the same transaction that credits the
// user. A grant that would overdraw the pool is rejected with
// ErrPoolExhausted and leaves every balance unchanged. XP grants never touch
// the pool.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - one open connection: SQLite has a single writer
package store
