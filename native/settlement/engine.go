package settlement

import (
	"math/big"
	"time"

	"totchain/core/events"
	"totchain/core/types"
	"totchain/native/holder"
	"totchain/native/tax"
)

type engineState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	HolderGet(addr [20]byte) (*holder.Record, bool, error)
	HolderPut(record *holder.Record) error
	TaxPolicy() (*tax.Policy, error)
	PanicMode() (bool, error)
	TotalSupply() (*big.Int, error)
	AddBurned(amount *big.Int) error
	AddTaxCollected(amount *big.Int) error
}

// Engine is the transfer settlement orchestrator. It composes the tax
// calculator, the distribution splitter and the holder ledger into one
// atomic operation per transfer: every check runs against values read at the
// start of the call, and no state is persisted unless every step succeeded.
type Engine struct {
	state     engineState
	collector [20]byte
	treasury  [20]byte
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine creates a settlement engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCollector configures the account receiving the non-burn tax remainder.
func (e *Engine) SetCollector(addr [20]byte) { e.collector = addr }

// SetTreasury configures the protocol treasury receiving consume payments.
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

// Receipt summarises a settled transfer.
type Receipt struct {
	Sender       [20]byte
	Receiver     [20]byte
	Amount       *big.Int
	TaxAmount    *big.Int
	NetAmount    *big.Int
	Burned       *big.Int
	FinalBps     uint32
	Distribution *tax.Distribution
	Exempt       bool
	Timestamp    int64
}

// TransferWithTax settles a taxed transfer between two addresses.
//
// An exempt sender or receiver short-circuits before the freeze and panic
// gates: treasury and liquidity accounts must always be able to move funds,
// so a frozen counterparty can still transfer to or from an exempt address
// for free. Preserved behaviour pending product sign-off.
func (e *Engine) TransferWithTax(sender, receiver [20]byte, amount *big.Int, isSell bool) (*Receipt, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	policy, err := e.state.TaxPolicy()
	if err != nil {
		return nil, err
	}
	now := e.now()

	if policy.IsExempt(sender) || policy.IsExempt(receiver) {
		return e.settleExempt(sender, receiver, amount, now)
	}

	senderRecord, senderHasRecord, err := e.state.HolderGet(sender)
	if err != nil {
		return nil, err
	}
	if senderHasRecord && senderRecord.Frozen {
		return nil, ErrSenderFrozen
	}
	receiverRecord, receiverHasRecord, err := e.state.HolderGet(receiver)
	if err != nil {
		return nil, err
	}
	if receiverHasRecord && receiverRecord.Frozen {
		return nil, ErrReceiverFrozen
	}
	paused, err := e.state.PanicMode()
	if err != nil {
		return nil, err
	}
	if paused && isSell {
		return nil, ErrSystemPaused
	}

	accounts := newAccountCache(e.state)
	senderAccount, err := accounts.get(sender)
	if err != nil {
		return nil, err
	}
	// amount covers both the net transfer and the tax
	if senderAccount.Balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}

	supply, err := e.state.TotalSupply()
	if err != nil {
		return nil, err
	}
	var taxHolder tax.Holder
	if senderHasRecord {
		taxHolder = senderRecord
	}
	calc, err := tax.Calculate(amount, taxHolder, supply, now, false, isSell, policy)
	if err != nil {
		return nil, err
	}

	senderAccount.Balance.Sub(senderAccount.Balance, amount)
	if calc.NetAmount.Sign() > 0 {
		receiverAccount, err := accounts.get(receiver)
		if err != nil {
			return nil, err
		}
		receiverAccount.Balance.Add(receiverAccount.Balance, calc.NetAmount)
	}

	var dist *tax.Distribution
	burned := big.NewInt(0)
	if calc.TaxAmount.Sign() > 0 {
		var zero [20]byte
		if e.collector == zero {
			return nil, ErrCollectorUnset
		}
		dist, err = tax.Split(calc.TaxAmount)
		if err != nil {
			return nil, err
		}
		burned = dist.ToBurn
		// the burn leaves the ledger entirely; remainder = tax - burn by
		// construction, so burn + remainder == tax exactly
		remainder := dist.Remainder()
		if remainder.Sign() > 0 {
			collectorAccount, err := accounts.get(e.collector)
			if err != nil {
				return nil, err
			}
			collectorAccount.Balance.Add(collectorAccount.Balance, remainder)
		}
	}

	var workingSender, workingReceiver *holder.Record
	if isSell && senderHasRecord {
		workingSender = senderRecord.Clone()
		if err := workingSender.RecordSell(amount, calc.TaxAmount, now); err != nil {
			return nil, err
		}
	}
	if receiverHasRecord {
		workingReceiver = receiverRecord.Clone()
		if err := workingReceiver.RecordBuy(calc.NetAmount, big.NewInt(0), now); err != nil {
			return nil, err
		}
	}

	if err := accounts.flush(); err != nil {
		return nil, err
	}
	if workingSender != nil {
		if err := e.state.HolderPut(workingSender); err != nil {
			return nil, err
		}
	}
	if workingReceiver != nil {
		if err := e.state.HolderPut(workingReceiver); err != nil {
			return nil, err
		}
	}
	if burned.Sign() > 0 {
		if err := e.state.AddBurned(burned); err != nil {
			return nil, err
		}
	}
	if calc.TaxAmount.Sign() > 0 {
		if err := e.state.AddTaxCollected(calc.TaxAmount); err != nil {
			return nil, err
		}
	}

	e.emit(events.TransferSettled{
		From:      sender,
		To:        receiver,
		Amount:    new(big.Int).Set(amount),
		TaxAmount: new(big.Int).Set(calc.TaxAmount),
		NetAmount: new(big.Int).Set(calc.NetAmount),
		RateBps:   calc.FinalBps,
		Burned:    new(big.Int).Set(burned),
		Timestamp: now,
	})
	return &Receipt{
		Sender:       sender,
		Receiver:     receiver,
		Amount:       new(big.Int).Set(amount),
		TaxAmount:    calc.TaxAmount,
		NetAmount:    calc.NetAmount,
		Burned:       burned,
		FinalBps:     calc.FinalBps,
		Distribution: dist,
		Timestamp:    now,
	}, nil
}

// settleExempt moves the full amount without touching holder-discount state
// or the freeze/panic gates.
func (e *Engine) settleExempt(sender, receiver [20]byte, amount *big.Int, now int64) (*Receipt, error) {
	accounts := newAccountCache(e.state)
	senderAccount, err := accounts.get(sender)
	if err != nil {
		return nil, err
	}
	if senderAccount.Balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	receiverAccount, err := accounts.get(receiver)
	if err != nil {
		return nil, err
	}
	senderAccount.Balance.Sub(senderAccount.Balance, amount)
	receiverAccount.Balance.Add(receiverAccount.Balance, amount)
	if err := accounts.flush(); err != nil {
		return nil, err
	}
	e.emit(events.TransferSettled{
		From:      sender,
		To:        receiver,
		Amount:    new(big.Int).Set(amount),
		TaxAmount: big.NewInt(0),
		NetAmount: new(big.Int).Set(amount),
		Burned:    big.NewInt(0),
		Exempt:    true,
		Timestamp: now,
	})
	return &Receipt{
		Sender:    sender,
		Receiver:  receiver,
		Amount:    new(big.Int).Set(amount),
		TaxAmount: big.NewInt(0),
		NetAmount: new(big.Int).Set(amount),
		Burned:    big.NewInt(0),
		Exempt:    true,
		Timestamp: now,
	}, nil
}

// Consume settles a tax-free payment to the protocol treasury and updates
// the payer's consumption statistics.
func (e *Engine) Consume(user [20]byte, amount *big.Int, kind ConsumeKind) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !kind.Valid() {
		return ErrUnknownConsumeKind
	}
	var zero [20]byte
	if e.treasury == zero {
		return ErrTreasuryUnset
	}
	record, hasRecord, err := e.state.HolderGet(user)
	if err != nil {
		return err
	}
	if hasRecord && record.Frozen {
		return ErrSenderFrozen
	}
	accounts := newAccountCache(e.state)
	userAccount, err := accounts.get(user)
	if err != nil {
		return err
	}
	if userAccount.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	treasuryAccount, err := accounts.get(e.treasury)
	if err != nil {
		return err
	}
	now := e.now()
	var working *holder.Record
	if hasRecord {
		working = record.Clone()
		if err := working.RecordConsume(amount, now); err != nil {
			return err
		}
	}
	userAccount.Balance.Sub(userAccount.Balance, amount)
	treasuryAccount.Balance.Add(treasuryAccount.Balance, amount)
	if err := accounts.flush(); err != nil {
		return err
	}
	if working != nil {
		if err := e.state.HolderPut(working); err != nil {
			return err
		}
	}
	e.emit(events.ConsumeRecorded{
		User:      user,
		Treasury:  e.treasury,
		Amount:    new(big.Int).Set(amount),
		Kind:      uint8(kind),
		Timestamp: now,
	})
	return nil
}

// PlatformTransfer settles an administrator-originated tax-free credit and
// updates the recipient's buy statistics.
func (e *Engine) PlatformTransfer(platform, user [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	record, hasRecord, err := e.state.HolderGet(user)
	if err != nil {
		return err
	}
	if hasRecord && record.Frozen {
		return ErrReceiverFrozen
	}
	accounts := newAccountCache(e.state)
	platformAccount, err := accounts.get(platform)
	if err != nil {
		return err
	}
	if platformAccount.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	userAccount, err := accounts.get(user)
	if err != nil {
		return err
	}
	now := e.now()
	var working *holder.Record
	if hasRecord {
		working = record.Clone()
		if err := working.RecordBuy(amount, big.NewInt(0), now); err != nil {
			return err
		}
	}
	platformAccount.Balance.Sub(platformAccount.Balance, amount)
	userAccount.Balance.Add(userAccount.Balance, amount)
	if err := accounts.flush(); err != nil {
		return err
	}
	if working != nil {
		if err := e.state.HolderPut(working); err != nil {
			return err
		}
	}
	e.emit(events.PlatformTransferred{
		Platform:  platform,
		User:      user,
		Amount:    new(big.Int).Set(amount),
		Timestamp: now,
	})
	return nil
}

// QuoteTax computes the tax a transfer would incur without mutating state.
func (e *Engine) QuoteTax(sender [20]byte, amount *big.Int, isBuy, isSell bool) (*tax.Calculation, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	policy, err := e.state.TaxPolicy()
	if err != nil {
		return nil, err
	}
	if policy.IsExempt(sender) {
		if amount == nil || amount.Sign() <= 0 {
			return nil, ErrInvalidAmount
		}
		return &tax.Calculation{
			TaxAmount: big.NewInt(0),
			NetAmount: new(big.Int).Set(amount),
		}, nil
	}
	record, hasRecord, err := e.state.HolderGet(sender)
	if err != nil {
		return nil, err
	}
	var taxHolder tax.Holder
	if hasRecord {
		taxHolder = record
	}
	supply, err := e.state.TotalSupply()
	if err != nil {
		return nil, err
	}
	return tax.Calculate(amount, taxHolder, supply, e.now(), isBuy, isSell, policy)
}
