package game

import "errors"

// Validation failures are recovered locally: the operation is rejected, room
// state stays untouched, and the error goes back to the requester only.
var (
	ErrNotFound         = errors.New("room not found")
	ErrPermissionDenied = errors.New("only the host may do that")
	ErrInvalidPhase     = errors.New("operation not valid in the current phase")
	ErrExhausted        = errors.New("no unused prompts remain")
	ErrNotReady         = errors.New("round not ready")
)
