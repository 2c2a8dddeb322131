package settlement

import "errors"

var (
	ErrNilState            = errors.New("settlement engine: state not configured")
	ErrInvalidAmount       = errors.New("settlement: amount must be positive")
	ErrSenderFrozen        = errors.New("settlement: sender record frozen")
	ErrReceiverFrozen      = errors.New("settlement: receiver record frozen")
	ErrSystemPaused        = errors.New("settlement: sells suspended while system paused")
	ErrInsufficientBalance = errors.New("settlement: insufficient sender balance")
	ErrUnknownConsumeKind  = errors.New("settlement: unknown consume kind")
	ErrCollectorUnset      = errors.New("settlement: tax collector not configured")
	ErrTreasuryUnset       = errors.New("settlement: treasury not configured")
)
