package fault

import "errors"

// Error kinds surfaced by the auction core. Services wrap these with
// fmt.Errorf("...: %w", ...) so callers can discriminate with errors.Is
// while still getting a useful message.
var (
	ErrIllegalStateTransition = errors.New("action not permitted in current auction status")
	ErrInvalidBid             = errors.New("bid must exceed the current price")
	ErrForbidden              = errors.New("forbidden")
	ErrPreconditionFailed     = errors.New("precondition failed")
	ErrEscrowFailure          = errors.New("escrow gateway operation failed")
	ErrLedgerInconsistency    = errors.New("ledger inconsistency")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflicting operation in progress")
)
