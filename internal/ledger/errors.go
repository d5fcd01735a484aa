package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/akinrinmade/jara-daily/internal/reward"
	"github.com/akinrinmade/jara-daily/internal/store"
)

var (
	// ErrInsufficientBalance is returned by SpendCoins when the balance is
	// lower than the requested amount. Nothing is debited.
	ErrInsufficientBalance = errors.New("insufficient coin balance")

	// ErrEmptyCredit is returned when the backend acknowledges a grant
	// without crediting anything.
	ErrEmptyCredit = errors.New("backend returned no credited amount")

	// ErrInvalidAmount is returned for non-positive spend amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("ledger client closed")
)

// GrantError reports a grant where at least one currency failed.
// Outcome still describes whatever was credited.
type GrantError struct {
	Kind    reward.ActionKind
	Outcome Outcome
	XPErr   error
	CoinErr error
}

// Error implements the error interface.
func (e *GrantError) Error() string {
	var parts []string
	if e.XPErr != nil {
		parts = append(parts, fmt.Sprintf("xp: %v", e.XPErr))
	}
	if e.CoinErr != nil {
		parts = append(parts, fmt.Sprintf("coins: %v", e.CoinErr))
	}
	return fmt.Sprintf("%s grant failed: %s", e.Kind, strings.Join(parts, "; "))
}

// Unwrap exposes both currency errors to errors.Is and errors.As.
func (e *GrantError) Unwrap() []error {
	var errs []error
	if e.XPErr != nil {
		errs = append(errs, e.XPErr)
	}
	if e.CoinErr != nil {
		errs = append(errs, e.CoinErr)
	}
	return errs
}

// IsGrantError returns true if err is, or wraps, a *GrantError.
func IsGrantError(err error) bool {
	var ge *GrantError
	return errors.As(err, &ge)
}

// AsGrantError extracts the *GrantError from err.
func AsGrantError(err error) (*GrantError, bool) {
	var ge *GrantError
	ok := errors.As(err, &ge)
	return ge, ok
}

// IsPoolExhausted returns true if err reports an exhausted Coin pool.
func IsPoolExhausted(err error) bool {
	return errors.Is(err, store.ErrPoolExhausted)
}
