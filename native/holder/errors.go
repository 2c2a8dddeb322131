package holder

import "errors"

var (
	ErrNilRecord      = errors.New("holder: nil record")
	ErrInvalidAmount  = errors.New("holder: amount must be non-negative")
	ErrAlreadyFrozen  = errors.New("holder: record already frozen")
	ErrNotFrozen      = errors.New("holder: record not frozen")
	ErrRecordNotFound = errors.New("holder: record not found")
)
