package model

import "errors"

// Sentinel errors for every failure class an operation can surface. Handlers
// map these to distinct response codes so callers can tell "retry with more
// funds" apart from "not permitted now". Wrap with fmt.Errorf("%w: ...") to
// add context; never return a bare generic error from an operation.
var (
	// ErrUnauthorized covers missing roles, failed verification-gate checks
	// and verification lookups that themselves errored. A gate failure is
	// never treated as a silent false.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInsufficientFunds is returned when a debit exceeds the available
	// (or locked, for settlement spends) balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidState covers wrong sale type, inactive listings and
	// already-terminal auctions.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrTiming covers the resale cooldown, settling before expiry and
	// bidding after expiry.
	ErrTiming = errors.New("timing violation")
	// ErrLimitExceeded covers listing prices above the anti-manipulation cap
	// and the per-account refund cap.
	ErrLimitExceeded = errors.New("limit exceeded")
	// ErrTransferFailed reports a failed external payout. State is restored
	// before this is returned.
	ErrTransferFailed = errors.New("external transfer failed")
	// ErrOverflow reports a fee/royalty computation that would exceed the
	// sale amount.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrReentrancy rejects a nested call into a protected operation that is
	// already in flight.
	ErrReentrancy = errors.New("reentrant call rejected")
	ErrNotFound   = errors.New("not found")
)
