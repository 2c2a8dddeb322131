package auction

import (
	"math/big"
	"time"

	"totchain/core/events"
	"totchain/core/types"
	"totchain/native/holder"
)

type engineState interface {
	AuctionGet(id [32]byte) (*Auction, bool, error)
	AuctionPut(*Auction) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	HolderGet(addr [20]byte) (*holder.Record, bool, error)
	HolderPut(*holder.Record) error
}

// Engine implements the markup-auction pricing mechanism. Seizure payments
// are tax-exempt platform moves: the fee goes to the protocol treasury and
// the payout to the previous owner.
type Engine struct {
	state    engineState
	treasury [20]byte
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine creates an auction engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTreasury configures the address receiving seizure fees.
func (e *Engine) SetTreasury(addr [20]byte) { e.treasury = addr }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// Create opens a new auction for a tokenized asset at the supplied starting
// price. The creator becomes the initial owner.
func (e *Engine) Create(creator [20]byte, assetID string, startPrice *big.Int, message string) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if assetID == "" {
		return nil, ErrEmptyAssetID
	}
	if startPrice == nil || startPrice.Sign() <= 0 {
		return nil, ErrInvalidStartPrice
	}
	if len(message) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}
	id := ID(assetID)
	if _, exists, err := e.state.AuctionGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyExists
	}
	now := e.now()
	a := &Auction{
		AssetID:      assetID,
		Owner:        creator,
		Price:        new(big.Int).Set(startPrice),
		StartPrice:   new(big.Int).Set(startPrice),
		TauntMessage: message,
		CreatedAt:    now,
		LastSeizedAt: now,
	}
	if err := e.state.AuctionPut(a); err != nil {
		return nil, err
	}
	e.emit(events.AuctionCreated{
		AssetID:    assetID,
		Owner:      creator,
		StartPrice: new(big.Int).Set(startPrice),
		Timestamp:  now,
	})
	return a.Clone(), nil
}

// SeizeReceipt summarises a successful seizure.
type SeizeReceipt struct {
	AssetID  string
	OldOwner [20]byte
	NewOwner [20]byte
	NewPrice *big.Int
	Fee      *big.Int
	Payout   *big.Int
}

// Seize forces an ownership transfer by paying exactly the 110% markup over
// the current price. The bidder must not be frozen and must hold the full
// payment; the fee and payout sub-transfers share one payment basis so the
// split is exact. Every check happens before any balance moves.
func (e *Engine) Seize(bidder [20]byte, assetID string, message string) (*SeizeReceipt, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if len(message) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}
	var zero [20]byte
	if e.treasury == zero {
		return nil, ErrTreasuryUnset
	}
	stored, exists, err := e.state.AuctionGet(ID(assetID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	a := stored.Clone()

	bidderRecord, hasRecord, err := e.state.HolderGet(bidder)
	if err != nil {
		return nil, err
	}
	if hasRecord && bidderRecord.Frozen {
		return nil, ErrBidderFrozen
	}

	minRequired, err := a.MinRequired()
	if err != nil {
		return nil, err
	}
	fee, payout := a.Split(minRequired)

	accounts := newAccountCache(e.state)
	bidderAccount, err := accounts.get(bidder)
	if err != nil {
		return nil, err
	}
	if bidderAccount.Balance.Cmp(minRequired) < 0 {
		return nil, ErrInsufficientBalance
	}
	treasuryAccount, err := accounts.get(e.treasury)
	if err != nil {
		return nil, err
	}
	oldOwner := a.Owner
	ownerAccount, err := accounts.get(oldOwner)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var workingRecord *holder.Record
	if hasRecord {
		workingRecord = bidderRecord.Clone()
		if err := workingRecord.RecordConsume(minRequired, now); err != nil {
			return nil, err
		}
	}

	bidderAccount.Balance.Sub(bidderAccount.Balance, minRequired)
	treasuryAccount.Balance.Add(treasuryAccount.Balance, fee)
	ownerAccount.Balance.Add(ownerAccount.Balance, payout)

	a.Owner = bidder
	a.Price = minRequired
	a.TauntMessage = message
	a.LastSeizedAt = now

	if err := accounts.flush(); err != nil {
		return nil, err
	}
	if workingRecord != nil {
		if err := e.state.HolderPut(workingRecord); err != nil {
			return nil, err
		}
	}
	if err := e.state.AuctionPut(a); err != nil {
		return nil, err
	}

	e.emit(events.AuctionSeized{
		AssetID:   assetID,
		OldOwner:  oldOwner,
		NewOwner:  bidder,
		NewPrice:  new(big.Int).Set(minRequired),
		Fee:       new(big.Int).Set(fee),
		Payout:    new(big.Int).Set(payout),
		Timestamp: now,
	})
	return &SeizeReceipt{
		AssetID:  assetID,
		OldOwner: oldOwner,
		NewOwner: bidder,
		NewPrice: minRequired,
		Fee:      fee,
		Payout:   payout,
	}, nil
}

// Get returns the current auction state for an asset.
func (e *Engine) Get(assetID string) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	a, exists, err := e.state.AuctionGet(ID(assetID))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}
