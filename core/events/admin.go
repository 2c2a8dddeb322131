package events

import (
	"math/big"
	"strconv"

	"totchain/core/types"
)

const (
	TypeTaxPolicyUpdated = "tax.policy_updated"
	TypeTaxExemptAdded   = "tax.exempt_added"
	TypeTaxExemptRemoved = "tax.exempt_removed"
	TypeHolderFrozen     = "holder.frozen"
	TypeHolderUnfrozen   = "holder.unfrozen"
	TypePauseChanged     = "system.pause_changed"
	TypeAuthorityRotated = "system.authority_rotated"
	TypeTreasuryRotated  = "system.treasury_rotated"
	TypeEmergencyMoved   = "system.emergency_withdrawal"
)

// TaxPolicyUpdated is emitted after the versioned policy write path commits.
type TaxPolicyUpdated struct {
	Version   uint64
	BaseBps   uint32
	Alpha     uint64
	Beta      uint64
	GammaBps  uint32
	Timestamp int64
}

func (TaxPolicyUpdated) EventType() string { return TypeTaxPolicyUpdated }

func (e TaxPolicyUpdated) Event() *types.Event {
	return &types.Event{Type: TypeTaxPolicyUpdated, Attributes: map[string]string{
		"version":   strconv.FormatUint(e.Version, 10),
		"baseBps":   strconv.FormatUint(uint64(e.BaseBps), 10),
		"alpha":     strconv.FormatUint(e.Alpha, 10),
		"beta":      strconv.FormatUint(e.Beta, 10),
		"gammaBps":  strconv.FormatUint(uint64(e.GammaBps), 10),
		"timestamp": formatTimestamp(e.Timestamp),
	}}
}

// TaxExemptChanged covers addition and removal of exempt addresses.
type TaxExemptChanged struct {
	Address   [20]byte
	Added     bool
	Timestamp int64
}

func (e TaxExemptChanged) EventType() string {
	if e.Added {
		return TypeTaxExemptAdded
	}
	return TypeTaxExemptRemoved
}

func (e TaxExemptChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"address":   hexAddress(e.Address),
		"timestamp": formatTimestamp(e.Timestamp),
	}}
}

// HolderFreezeChanged covers freeze and unfreeze transitions.
type HolderFreezeChanged struct {
	Address   [20]byte
	Frozen    bool
	Reason    uint8
	Timestamp int64
}

func (e HolderFreezeChanged) EventType() string {
	if e.Frozen {
		return TypeHolderFrozen
	}
	return TypeHolderUnfrozen
}

func (e HolderFreezeChanged) Event() *types.Event {
	attrs := map[string]string{
		"address":   hexAddress(e.Address),
		"timestamp": formatTimestamp(e.Timestamp),
	}
	if e.Frozen {
		attrs["reason"] = strconv.FormatUint(uint64(e.Reason), 10)
	}
	return &types.Event{Type: e.EventType(), Attributes: attrs}
}

// PauseChanged is emitted when the sell-side circuit breaker toggles.
type PauseChanged struct {
	Paused    bool
	Timestamp int64
}

func (PauseChanged) EventType() string { return TypePauseChanged }

func (e PauseChanged) Event() *types.Event {
	return &types.Event{Type: TypePauseChanged, Attributes: map[string]string{
		"paused":    strconv.FormatBool(e.Paused),
		"timestamp": formatTimestamp(e.Timestamp),
	}}
}

// AuthorityRotated records an admin key or treasury rotation.
type AuthorityRotated struct {
	Old       [20]byte
	New       [20]byte
	Treasury  bool
	Timestamp int64
}

func (e AuthorityRotated) EventType() string {
	if e.Treasury {
		return TypeTreasuryRotated
	}
	return TypeAuthorityRotated
}

func (e AuthorityRotated) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"old":       hexAddress(e.Old),
		"new":       hexAddress(e.New),
		"timestamp": formatTimestamp(e.Timestamp),
	}}
}

// EmergencyWithdrawal records a paused-mode recovery move by the authority.
type EmergencyWithdrawal struct {
	From      [20]byte
	To        [20]byte
	Amount    *big.Int
	Timestamp int64
}

func (EmergencyWithdrawal) EventType() string { return TypeEmergencyMoved }

func (e EmergencyWithdrawal) Event() *types.Event {
	return &types.Event{Type: TypeEmergencyMoved, Attributes: map[string]string{
		"from":      hexAddress(e.From),
		"to":        hexAddress(e.To),
		"amount":    formatAmount(e.Amount),
		"timestamp": formatTimestamp(e.Timestamp),
	}}
}
