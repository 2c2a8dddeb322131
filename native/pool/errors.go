package pool

import "errors"

var (
	ErrNilState            = errors.New("pool engine: state not configured")
	ErrNilPool             = errors.New("pool: nil pool")
	ErrUnknownKind         = errors.New("pool: unknown pool kind")
	ErrAlreadyInitialized  = errors.New("pool: already initialized")
	ErrNotInitialized      = errors.New("pool: not initialized")
	ErrAlreadyMinted       = errors.New("pool: allocations already minted")
	ErrLocked              = errors.New("pool: unlock time not reached")
	ErrInvalidAmount       = errors.New("pool: amount must be positive")
	ErrExceedsReleasable   = errors.New("pool: amount exceeds releasable")
	ErrInsufficientBalance = errors.New("pool: insufficient pool balance")
	ErrMultisigRequired    = errors.New("pool: multisig threshold not met")
	ErrTriggerRequired     = errors.New("pool: release trigger not authorized")
)
