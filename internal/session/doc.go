// Package session wires the reward components into one object per signed-in
// (or guest) reader.
//
// A Session is constructed when the reader's identity is known and closed
// at sign-out. It owns at most one open content view: opening another item
// tears the previous view down, including its verification tick, before
// the new one starts. Per-item latches (read verification, first reaction)
// live on the view and are discarded with it.
//
// Grants that complete after the view changed still land on the ledger,
// since balances are per user, but never touch the new view.
package session
