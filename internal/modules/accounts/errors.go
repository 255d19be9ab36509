package accounts

import "errors"

// Storage faults. These are surfaced to the caller, never swallowed: the
// boundary decides whether to retry, abort, or show a save/load failure.
var (
	ErrStorageUnavailable = errors.New("account storage unavailable")
	ErrStorageRead        = errors.New("account storage read failed")
	ErrStorageWrite       = errors.New("account storage write failed")
)

// Expected control-flow outcomes. Not faults: they map to user-facing
// messages at the boundary.
var (
	ErrDuplicateAccount   = errors.New("nickname already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidCredentials = errors.New("credentials incorrect")
	ErrValidation         = errors.New("invalid input")
)
