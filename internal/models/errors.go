package models

import "errors"

var (
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidBar       = errors.New("invalid bar (high < low)")
	ErrInvalidVolume    = errors.New("invalid volume")

	// ErrDuplicateSymbol signals an invariant violation: register_symbol_data
	// was called for a symbol that already exists in the store.
	ErrDuplicateSymbol = errors.New("symbol already registered")

	// ErrSymbolNotFound is returned by internal accessors (coordinator,
	// provisioning) when a symbol is expected to exist but does not.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrSessionInactive is never returned to strategy code (external
	// readers receive nil/empty snapshots instead) but is used internally
	// to short-circuit mutators that require an active session.
	ErrSessionInactive = errors.New("session is not active")

	ErrIntervalNotFound     = errors.New("interval not present for symbol")
	ErrIntervalNotDerivable = errors.New("interval cannot be derived from the chosen base")
	ErrHourlyTokenRejected  = errors.New("hourly interval tokens are rejected, use minutes")
	ErrNoValidBase          = errors.New("no valid base interval exists for the requested set")
)
