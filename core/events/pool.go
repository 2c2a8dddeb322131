package events

import (
	"math/big"

	"totchain/core/types"
)

const (
	TypePoolInitialized   = "pool.initialized"
	TypeAllocationsMinted = "pool.allocations_minted"
	TypePoolReleased      = "pool.released"
	TypeAuctionCreated    = "auction.created"
	TypeAuctionSeized     = "auction.seized"
)

// PoolInitialized is emitted when a pool record and its schedule are created.
type PoolInitialized struct {
	Kind       string
	Allocation *big.Int
	UnlockTime int64
	Timestamp  int64
}

func (PoolInitialized) EventType() string { return TypePoolInitialized }

func (e PoolInitialized) Event() *types.Event {
	return &types.Event{Type: TypePoolInitialized, Attributes: map[string]string{
		"kind":       e.Kind,
		"allocation": formatAmount(e.Allocation),
		"unlockTime": formatTimestamp(e.UnlockTime),
		"timestamp":  formatTimestamp(e.Timestamp),
	}}
}

// AllocationsMinted is emitted by the one-time genesis mint.
type AllocationsMinted struct {
	Total     *big.Int
	Timestamp int64
}

func (AllocationsMinted) EventType() string { return TypeAllocationsMinted }

func (e AllocationsMinted) Event() *types.Event {
	return &types.Event{Type: TypeAllocationsMinted, Attributes: map[string]string{
		"total":     formatAmount(e.Total),
		"timestamp": formatTimestamp(e.Timestamp),
	}}
}

// PoolReleased records a successful schedule release.
type PoolReleased struct {
	Kind      string
	To        [20]byte
	Amount    *big.Int
	Released  *big.Int
	Timestamp int64
}

func (PoolReleased) EventType() string { return TypePoolReleased }

func (e PoolReleased) Event() *types.Event {
	return &types.Event{Type: TypePoolReleased, Attributes: map[string]string{
		"kind":      e.Kind,
		"to":        hexAddress(e.To),
		"amount":    formatAmount(e.Amount),
		"released":  formatAmount(e.Released),
		"timestamp": formatTimestamp(e.Timestamp),
	}}
}

// AuctionCreated is emitted when a tokenized asset goes up for seizure.
type AuctionCreated struct {
	AssetID    string
	Owner      [20]byte
	StartPrice *big.Int
	Timestamp  int64
}

func (AuctionCreated) EventType() string { return TypeAuctionCreated }

func (e AuctionCreated) Event() *types.Event {
	return &types.Event{Type: TypeAuctionCreated, Attributes: map[string]string{
		"assetId":    e.AssetID,
		"owner":      hexAddress(e.Owner),
		"startPrice": formatAmount(e.StartPrice),
		"timestamp":  formatTimestamp(e.Timestamp),
	}}
}

// AuctionSeized records a forced ownership transfer and its payout split.
type AuctionSeized struct {
	AssetID   string
	OldOwner  [20]byte
	NewOwner  [20]byte
	NewPrice  *big.Int
	Fee       *big.Int
	Payout    *big.Int
	Timestamp int64
}

func (AuctionSeized) EventType() string { return TypeAuctionSeized }

func (e AuctionSeized) Event() *types.Event {
	return &types.Event{Type: TypeAuctionSeized, Attributes: map[string]string{
		"assetId":   e.AssetID,
		"oldOwner":  hexAddress(e.OldOwner),
		"newOwner":  hexAddress(e.NewOwner),
		"newPrice":  formatAmount(e.NewPrice),
		"fee":       formatAmount(e.Fee),
		"payout":    formatAmount(e.Payout),
		"timestamp": formatTimestamp(e.Timestamp),
	}}
}
