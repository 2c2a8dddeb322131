package events

import (
	"math/big"
	"strconv"

	"totchain/core/types"
)

const (
	// TypeTransferSettled is emitted for every completed taxed transfer,
	// including zero-tax exempt transfers.
	TypeTransferSettled = "settlement.transfer"
	// TypeConsumeRecorded is emitted when a holder pays the protocol
	// treasury tax-free.
	TypeConsumeRecorded = "settlement.consume"
	// TypePlatformTransferred is emitted for authority-originated credits.
	TypePlatformTransferred = "settlement.platform_transfer"
)

// TransferSettled captures the full outcome of a taxed transfer.
type TransferSettled struct {
	From      [20]byte
	To        [20]byte
	Amount    *big.Int
	TaxAmount *big.Int
	NetAmount *big.Int
	RateBps   uint32
	Burned    *big.Int
	Exempt    bool
	Timestamp int64
}

func (TransferSettled) EventType() string { return TypeTransferSettled }

// Event renders the settlement outcome with string attributes.
func (e TransferSettled) Event() *types.Event {
	attrs := map[string]string{
		"from":      hexAddress(e.From),
		"to":        hexAddress(e.To),
		"amount":    formatAmount(e.Amount),
		"taxAmount": formatAmount(e.TaxAmount),
		"netAmount": formatAmount(e.NetAmount),
		"rateBps":   strconv.FormatUint(uint64(e.RateBps), 10),
		"burned":    formatAmount(e.Burned),
		"timestamp": formatTimestamp(e.Timestamp),
	}
	if e.Exempt {
		attrs["exempt"] = "true"
	}
	return &types.Event{Type: TypeTransferSettled, Attributes: attrs}
}

// ConsumeRecorded captures a tax-free treasury payment.
type ConsumeRecorded struct {
	User      [20]byte
	Treasury  [20]byte
	Amount    *big.Int
	Kind      uint8
	Timestamp int64
}

func (ConsumeRecorded) EventType() string { return TypeConsumeRecorded }

func (e ConsumeRecorded) Event() *types.Event {
	return &types.Event{Type: TypeConsumeRecorded, Attributes: map[string]string{
		"user":      hexAddress(e.User),
		"treasury":  hexAddress(e.Treasury),
		"amount":    formatAmount(e.Amount),
		"kind":      strconv.FormatUint(uint64(e.Kind), 10),
		"timestamp": formatTimestamp(e.Timestamp),
	}}
}

// PlatformTransferred captures an administrator-originated tax-free credit.
type PlatformTransferred struct {
	Platform  [20]byte
	User      [20]byte
	Amount    *big.Int
	Timestamp int64
}

func (PlatformTransferred) EventType() string { return TypePlatformTransferred }

func (e PlatformTransferred) Event() *types.Event {
	return &types.Event{Type: TypePlatformTransferred, Attributes: map[string]string{
		"platform":  hexAddress(e.Platform),
		"user":      hexAddress(e.User),
		"amount":    formatAmount(e.Amount),
		"timestamp": formatTimestamp(e.Timestamp),
	}}
}
