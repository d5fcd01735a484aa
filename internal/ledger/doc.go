// Package ledger implements the reward ledger client.
//
// A Client is built for one identity: a signed-in user id, or the guest
// (empty id). Guests accrue into a local shadow wallet. Signed-in users
// report every grant to a Backend, and local balances move only after the
// backend acknowledges the credit.
//
// XP and Coins are independent ledgers. Each grant carries a per-currency
// idempotency key derived from (user, action kind, content id, time
// bucket), so a retried action is credited at most once by the backend. A
// Coin failure never rolls back an XP credit and vice versa; both outcomes
// are reported through GrantError.
//
// The Client owns the local mirror of the Coin pool but never decrements
// it speculatively. The backend is the sole arbiter of pool exhaustion.
package ledger
