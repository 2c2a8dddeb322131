package pool

import (
	"math/big"
	"time"

	"totchain/core/events"
	"totchain/core/types"
)

type engineState interface {
	PoolGet(kind Kind) (*Pool, bool, error)
	PoolPut(*Pool) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	TotalMinted() (*big.Int, error)
	SetTotalMinted(*big.Int) error
}

// Engine wires the pool schedule logic with external state and event
// emitters.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a pool engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// Init creates the pool record for a kind with its genesis schedule. Gated
// pools start with the 3-of-5 threshold and empty signer slots to be filled
// by governance.
func (e *Engine) Init(kind Kind, balanceAccount [20]byte) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	if _, exists, err := e.state.PoolGet(kind); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyInitialized
	}
	now := e.now()
	unlockTime, vestingStart, vestingPeriod, requiresMultisig, err := ScheduleFor(kind, now)
	if err != nil {
		return nil, err
	}
	p := &Pool{
		Kind:              kind,
		BalanceAccount:    balanceAccount,
		InitialAllocation: kind.Allocation(),
		ReleasedAmount:    big.NewInt(0),
		UnlockTime:        unlockTime,
		VestingStart:      vestingStart,
		VestingPeriod:     vestingPeriod,
		RequiresMultisig:  requiresMultisig,
	}
	if requiresMultisig {
		p.MultisigThreshold = DefaultMultisigThreshold
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	e.emit(events.PoolInitialized{
		Kind:       kind.String(),
		Allocation: p.InitialAllocation,
		UnlockTime: unlockTime,
		Timestamp:  now,
	})
	return p.Clone(), nil
}

// MintAllocations performs the one-time genesis mint, crediting every pool's
// balance account with its allocation. A second call fails.
func (e *Engine) MintAllocations() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	minted, err := e.state.TotalMinted()
	if err != nil {
		return err
	}
	if minted.Sign() != 0 {
		return ErrAlreadyMinted
	}
	pools := make([]*Pool, 0, len(Kinds()))
	for _, kind := range Kinds() {
		p, exists, err := e.state.PoolGet(kind)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotInitialized
		}
		pools = append(pools, p)
	}
	for _, p := range pools {
		account, err := e.state.GetAccount(p.BalanceAccount)
		if err != nil {
			return err
		}
		account = types.EnsureAccount(account)
		account.Balance = new(big.Int).Add(account.Balance, p.InitialAllocation)
		if err := e.state.PutAccount(p.BalanceAccount, account); err != nil {
			return err
		}
	}
	if err := e.state.SetTotalMinted(new(big.Int).Set(TotalSupply)); err != nil {
		return err
	}
	e.emit(events.AllocationsMinted{Total: new(big.Int).Set(TotalSupply), Timestamp: e.now()})
	return nil
}

// ReleaseAuthorization carries the gate evidence collected by the outer
// authorization layer: how many multisig signers approved the release and
// whether the asset-anchor trigger fired.
type ReleaseAuthorization struct {
	Approvals        int
	TriggerSatisfied bool
}

// ReleaseReceipt summarises a successful release.
type ReleaseReceipt struct {
	Kind         Kind
	To           [20]byte
	Amount       *big.Int
	Released     *big.Int
	Inconsistent bool
	Timestamp    int64
}

// Release moves funds out of a pool after re-validating the schedule. The
// releasable amount and the pool balance are both checked against values
// read at the start of this call; nothing is persisted unless every check
// passes.
func (e *Engine) Release(kind Kind, to [20]byte, amount *big.Int, auth ReleaseAuthorization) (*ReleaseReceipt, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	stored, exists, err := e.state.PoolGet(kind)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotInitialized
	}
	p := stored.Clone()
	now := e.now()
	if !p.Unlocked(now) {
		return nil, ErrLocked
	}
	if p.RequiresMultisig && auth.Approvals < int(p.MultisigThreshold) {
		return nil, ErrMultisigRequired
	}
	if p.Kind == KindAssetAnchor && !auth.TriggerSatisfied {
		return nil, ErrTriggerRequired
	}
	releasable, inconsistent, err := p.Releasable(now)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(releasable) > 0 {
		return nil, ErrExceedsReleasable
	}
	accounts := newAccountCache(e.state)
	poolAccount, err := accounts.get(p.BalanceAccount)
	if err != nil {
		return nil, err
	}
	if poolAccount.Balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientBalance
	}
	destAccount, err := accounts.get(to)
	if err != nil {
		return nil, err
	}

	poolAccount.Balance.Sub(poolAccount.Balance, amount)
	destAccount.Balance.Add(destAccount.Balance, amount)
	p.ReleasedAmount = new(big.Int).Add(p.ReleasedAmount, amount)

	if err := accounts.flush(); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(p); err != nil {
		return nil, err
	}
	e.emit(events.PoolReleased{
		Kind:      kind.String(),
		To:        to,
		Amount:    new(big.Int).Set(amount),
		Released:  new(big.Int).Set(p.ReleasedAmount),
		Timestamp: now,
	})
	return &ReleaseReceipt{
		Kind:         kind,
		To:           to,
		Amount:       new(big.Int).Set(amount),
		Released:     new(big.Int).Set(p.ReleasedAmount),
		Inconsistent: inconsistent,
		Timestamp:    now,
	}, nil
}

// Status reports the schedule position of a pool at the engine's clock.
type Status struct {
	Kind         Kind
	Allocation   *big.Int
	Released     *big.Int
	Releasable   *big.Int
	Unlocked     bool
	Inconsistent bool
}

// Status computes the read-only schedule view for a pool.
func (e *Engine) Status(kind Kind) (*Status, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	p, exists, err := e.state.PoolGet(kind)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotInitialized
	}
	now := e.now()
	releasable, inconsistent, err := p.Releasable(now)
	if err != nil {
		return nil, err
	}
	released := p.ReleasedAmount
	if released == nil {
		released = big.NewInt(0)
	}
	return &Status{
		Kind:         p.Kind,
		Allocation:   new(big.Int).Set(p.InitialAllocation),
		Released:     new(big.Int).Set(released),
		Releasable:   releasable,
		Unlocked:     p.Unlocked(now),
		Inconsistent: inconsistent,
	}, nil
}
