package auction

import "errors"

var (
	ErrNilState            = errors.New("auction engine: state not configured")
	ErrNilAuction          = errors.New("auction: nil auction")
	ErrEmptyAssetID        = errors.New("auction: asset id must not be empty")
	ErrInvalidStartPrice   = errors.New("auction: start price must be positive")
	ErrMessageTooLong      = errors.New("auction: message exceeds length limit")
	ErrAlreadyExists       = errors.New("auction: asset already auctioned")
	ErrNotFound            = errors.New("auction: auction not found")
	ErrInsufficientBalance = errors.New("auction: insufficient bidder balance")
	ErrBidderFrozen        = errors.New("auction: bidder record frozen")
	ErrTreasuryUnset       = errors.New("auction: treasury not configured")
)
