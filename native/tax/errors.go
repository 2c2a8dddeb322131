package tax

import "errors"

var (
	ErrNilPolicy           = errors.New("tax: nil policy")
	ErrInvalidAmount       = errors.New("tax: amount must be positive")
	ErrAmountExceedsSupply = errors.New("tax: amount exceeds total supply")
	ErrRateOutOfRange      = errors.New("tax: rate exceeds maximum")
	ErrAlreadyExempt       = errors.New("tax: address already exempt")
	ErrNotExempt           = errors.New("tax: address not exempt")
	ErrExemptListFull      = errors.New("tax: exempt list full")
)
