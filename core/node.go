package core

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"totchain/core/events"
	"totchain/core/state"
	"totchain/core/types"
	"totchain/native/auction"
	"totchain/native/holder"
	"totchain/native/pool"
	"totchain/native/settlement"
	"totchain/native/tax"
	"totchain/observability"
	"totchain/storage"
)

var (
	ErrUnauthorized   = errors.New("node: caller is not the authority")
	ErrHolderNotFound = errors.New("node: holder record not found")
	ErrGenesisDone    = errors.New("node: genesis already initialized")
	ErrNotPaused      = errors.New("node: emergency withdrawal requires paused system")
)

// Node is the single-writer facade over the settlement engines. Every public
// operation takes the node mutex, so engine calls never observe each other's
// partial writes.
type Node struct {
	mu       sync.Mutex
	state    *state.Manager
	settle   *settlement.Engine
	pools    *pool.Engine
	auctions *auction.Engine
	fanout   *fanout
	metrics  *observability.Metrics
	logger   *slog.Logger
	nowFn    func() int64
}

// NewNode builds a node over a key-value backend and rewires the engines
// from any previously persisted role addresses.
func NewNode(db storage.Database) (*Node, error) {
	manager := state.NewManager(db)
	n := &Node{
		state:    manager,
		settle:   settlement.NewEngine(),
		pools:    pool.NewEngine(),
		auctions: auction.NewEngine(),
		fanout:   &fanout{},
		logger:   slog.Default(),
		nowFn:    func() int64 { return time.Now().Unix() },
	}
	n.settle.SetState(manager)
	n.settle.SetEmitter(n.fanout)
	n.pools.SetState(manager)
	n.pools.SetEmitter(n.fanout)
	n.auctions.SetState(manager)
	n.auctions.SetEmitter(n.fanout)

	if treasury, err := manager.Treasury(); err == nil {
		n.settle.SetTreasury(treasury)
		n.auctions.SetTreasury(treasury)
	} else if !errors.Is(err, state.ErrRoleUnset) {
		return nil, err
	}
	if collector, err := manager.Collector(); err == nil {
		n.settle.SetCollector(collector)
	} else if !errors.Is(err, state.ErrRoleUnset) {
		return nil, err
	}
	return n, nil
}

// SetLogger overrides the structured logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger != nil {
		n.logger = logger
	}
}

// SetMetrics attaches the exported counters. A nil metrics set disables
// recording.
func (n *Node) SetMetrics(metrics *observability.Metrics) { n.metrics = metrics }

// SetNowFunc overrides the time source for the node and all engines.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		return
	}
	n.nowFn = now
	n.settle.SetNowFunc(now)
	n.pools.SetNowFunc(now)
	n.auctions.SetNowFunc(now)
}

// Subscribe registers an additional event sink. Events fan out to every sink
// in subscription order.
func (n *Node) Subscribe(sink events.Emitter) { n.fanout.add(sink) }

func (n *Node) now() int64 { return n.nowFn() }

// Genesis carries the one-time bootstrap parameters.
type Genesis struct {
	Authority    [20]byte
	Treasury     [20]byte
	Collector    [20]byte
	PoolAccounts map[pool.Kind][20]byte
}

// InitGenesis sets the role addresses, installs the default tax policy with
// the system accounts exempted, creates the five pools and performs the
// one-time allocation mint.
func (n *Node) InitGenesis(gen Genesis) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	minted, err := n.state.TotalMinted()
	if err != nil {
		return err
	}
	if minted.Sign() != 0 {
		return ErrGenesisDone
	}
	if err := n.state.SetAuthority(gen.Authority); err != nil {
		return err
	}
	if err := n.state.SetTreasury(gen.Treasury); err != nil {
		return err
	}
	if err := n.state.SetCollector(gen.Collector); err != nil {
		return err
	}

	policy := tax.DefaultPolicy(n.now())
	for _, addr := range []([20]byte){gen.Treasury, gen.Collector} {
		if !policy.IsExempt(addr) {
			if err := policy.AddExempt(addr); err != nil {
				return err
			}
		}
	}
	for _, kind := range pool.Kinds() {
		account, ok := gen.PoolAccounts[kind]
		if !ok {
			return pool.ErrNotInitialized
		}
		if !policy.IsExempt(account) {
			if err := policy.AddExempt(account); err != nil {
				return err
			}
		}
	}
	if err := n.state.SetTaxPolicy(policy); err != nil {
		return err
	}

	for _, kind := range pool.Kinds() {
		if _, err := n.pools.Init(kind, gen.PoolAccounts[kind]); err != nil {
			return err
		}
	}
	if err := n.pools.MintAllocations(); err != nil {
		return err
	}

	n.settle.SetTreasury(gen.Treasury)
	n.settle.SetCollector(gen.Collector)
	n.auctions.SetTreasury(gen.Treasury)
	n.logger.Info("genesis initialized",
		"authority", hexAddr(gen.Authority),
		"treasury", hexAddr(gen.Treasury),
		"collector", hexAddr(gen.Collector))
	return nil
}

// Transfer settles a taxed transfer. The receiver's holder record is
// provisioned on first receipt so holding time starts at the first credit.
func (n *Node) Transfer(sender, receiver [20]byte, amount *big.Int, isSell bool) (*settlement.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.ensureHolder(receiver); err != nil {
		return nil, err
	}
	receipt, err := n.settle.TransferWithTax(sender, receiver, amount, isSell)
	if err != nil {
		n.rejected(err)
		return nil, err
	}
	if n.metrics != nil {
		n.metrics.TransfersSettled.Inc()
		observability.AddAmount(n.metrics.TaxCollected, receipt.TaxAmount)
		observability.AddAmount(n.metrics.TokensBurned, receipt.Burned)
	}
	return receipt, nil
}

// Consume settles a tax-free treasury payment.
func (n *Node) Consume(user [20]byte, amount *big.Int, kind settlement.ConsumeKind) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.settle.Consume(user, amount, kind); err != nil {
		return err
	}
	if n.metrics != nil {
		n.metrics.ConsumePayments.Inc()
	}
	return nil
}

// PlatformTransfer credits a user from the authority's account without tax.
func (n *Node) PlatformTransfer(caller, user [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireAuthority(caller); err != nil {
		return err
	}
	if err := n.ensureHolder(user); err != nil {
		return err
	}
	return n.settle.PlatformTransfer(caller, user, amount)
}

// QuoteTax previews the tax of a hypothetical transfer.
func (n *Node) QuoteTax(sender [20]byte, amount *big.Int, isBuy, isSell bool) (*tax.Calculation, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.settle.QuoteTax(sender, amount, isBuy, isSell)
}

// HolderStats is the read-only holder ledger view.
type HolderStats struct {
	Address       [20]byte
	HoldingDays   uint64
	DiscountBps   uint32
	FirstHoldTime int64
	TotalBought   *big.Int
	TotalSold     *big.Int
	TotalTaxPaid  *big.Int
	TotalConsumed *big.Int
	Frozen        bool
	FreezeReason  uint8
}

// GetHolderStats reports holding time, discount tier and cumulative totals
// for an address.
func (n *Node) GetHolderStats(addr [20]byte) (*HolderStats, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	record, exists, err := n.state.HolderGet(addr)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrHolderNotFound
	}
	days := record.HoldingDays(n.now())
	return &HolderStats{
		Address:       addr,
		HoldingDays:   days,
		DiscountBps:   tax.TierForDays(days).Bps(),
		FirstHoldTime: record.FirstHoldTime,
		TotalBought:   new(big.Int).Set(record.TotalBought),
		TotalSold:     new(big.Int).Set(record.TotalSold),
		TotalTaxPaid:  new(big.Int).Set(record.TotalTaxPaid),
		TotalConsumed: new(big.Int).Set(record.TotalConsumed),
		Frozen:        record.Frozen,
		FreezeReason:  record.FreezeReason,
	}, nil
}

// GetBalance reports the stored balance of an address.
func (n *Node) GetBalance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if account == nil || account.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(account.Balance), nil
}

// SupplyInfo is the aggregate supply view.
type SupplyInfo struct {
	Minted       *big.Int
	Burned       *big.Int
	Circulating  *big.Int
	TaxCollected *big.Int
}

// GetSupply reports the minted, burned and circulating totals.
func (n *Node) GetSupply() (*SupplyInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	minted, err := n.state.TotalMinted()
	if err != nil {
		return nil, err
	}
	burned, err := n.state.TotalBurned()
	if err != nil {
		return nil, err
	}
	circulating, err := n.state.TotalSupply()
	if err != nil {
		return nil, err
	}
	collected, err := n.state.TaxCollected()
	if err != nil {
		return nil, err
	}
	return &SupplyInfo{Minted: minted, Burned: burned, Circulating: circulating, TaxCollected: collected}, nil
}

// PolicyUpdate carries a partial tax policy change; nil fields keep the
// stored value.
type PolicyUpdate struct {
	BaseBps           *uint32
	Alpha             *uint64
	Beta              *uint64
	GammaBps          *uint32
	PanicThresholdBps *uint32
	PanicRateBps      *uint32
	Enabled           *bool
}

// UpdateTaxPolicy applies a partial update through the versioned write path.
func (n *Node) UpdateTaxPolicy(caller [20]byte, update PolicyUpdate) (*tax.Policy, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireAuthority(caller); err != nil {
		return nil, err
	}
	policy, err := n.state.TaxPolicy()
	if err != nil {
		return nil, err
	}
	next := policy.Clone()
	if update.BaseBps != nil {
		next.BaseBps = *update.BaseBps
	}
	if update.Alpha != nil {
		next.Alpha = *update.Alpha
	}
	if update.Beta != nil {
		next.Beta = *update.Beta
	}
	if update.GammaBps != nil {
		next.GammaBps = *update.GammaBps
	}
	if update.PanicThresholdBps != nil {
		next.PanicThresholdBps = *update.PanicThresholdBps
	}
	if update.PanicRateBps != nil {
		next.PanicRateBps = *update.PanicRateBps
	}
	if update.Enabled != nil {
		next.Enabled = *update.Enabled
	}
	now := n.now()
	next.LastUpdated = now
	next.Version = policy.Version + 1
	if err := n.state.SetTaxPolicy(next); err != nil {
		return nil, err
	}
	n.fanout.Emit(events.TaxPolicyUpdated{
		Version:   next.Version,
		BaseBps:   next.BaseBps,
		Alpha:     next.Alpha,
		Beta:      next.Beta,
		GammaBps:  next.GammaBps,
		Timestamp: now,
	})
	return next.Clone(), nil
}

// AddExempt registers an address in the bounded exempt set.
func (n *Node) AddExempt(caller, addr [20]byte) error {
	return n.changeExempt(caller, addr, true)
}

// RemoveExempt deletes an address from the exempt set.
func (n *Node) RemoveExempt(caller, addr [20]byte) error {
	return n.changeExempt(caller, addr, false)
}

func (n *Node) changeExempt(caller, addr [20]byte, add bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireAuthority(caller); err != nil {
		return err
	}
	policy, err := n.state.TaxPolicy()
	if err != nil {
		return err
	}
	next := policy.Clone()
	if add {
		err = next.AddExempt(addr)
	} else {
		err = next.RemoveExempt(addr)
	}
	if err != nil {
		return err
	}
	now := n.now()
	next.LastUpdated = now
	next.Version = policy.Version + 1
	if err := n.state.SetTaxPolicy(next); err != nil {
		return err
	}
	n.fanout.Emit(events.TaxExemptChanged{Address: addr, Added: add, Timestamp: now})
	return nil
}

// FreezeHolder marks a holder record frozen with a reason code.
func (n *Node) FreezeHolder(caller, addr [20]byte, reason uint8) error {
	return n.changeFreeze(caller, addr, true, reason)
}

// UnfreezeHolder clears the frozen flag on a holder record.
func (n *Node) UnfreezeHolder(caller, addr [20]byte) error {
	return n.changeFreeze(caller, addr, false, 0)
}

func (n *Node) changeFreeze(caller, addr [20]byte, freeze bool, reason uint8) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireAuthority(caller); err != nil {
		return err
	}
	record, exists, err := n.state.HolderGet(addr)
	if err != nil {
		return err
	}
	if !exists {
		return ErrHolderNotFound
	}
	working := record.Clone()
	if freeze {
		err = working.Freeze(reason)
	} else {
		err = working.Unfreeze()
	}
	if err != nil {
		return err
	}
	if err := n.state.HolderPut(working); err != nil {
		return err
	}
	n.fanout.Emit(events.HolderFreezeChanged{Address: addr, Frozen: freeze, Reason: reason, Timestamp: n.now()})
	return nil
}

// SetPaused toggles the sell-side circuit breaker.
func (n *Node) SetPaused(caller [20]byte, paused bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireAuthority(caller); err != nil {
		return err
	}
	if err := n.state.SetPanicMode(paused); err != nil {
		return err
	}
	n.fanout.Emit(events.PauseChanged{Paused: paused, Timestamp: n.now()})
	n.logger.Warn("pause state changed", "paused", paused)
	return nil
}

// EmergencyWithdraw moves funds between accounts while the system is paused,
// bypassing tax and freeze checks. It exists for incident recovery only.
func (n *Node) EmergencyWithdraw(caller, from, to [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireAuthority(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return settlement.ErrInvalidAmount
	}
	paused, err := n.state.PanicMode()
	if err != nil {
		return err
	}
	if !paused {
		return ErrNotPaused
	}
	fromAccount, err := n.state.GetAccount(from)
	if err != nil {
		return err
	}
	fromAccount = types.EnsureAccount(fromAccount)
	if fromAccount.Balance.Cmp(amount) < 0 {
		return settlement.ErrInsufficientBalance
	}
	toAccount, err := n.state.GetAccount(to)
	if err != nil {
		return err
	}
	toAccount = types.EnsureAccount(toAccount)
	fromAccount.Balance.Sub(fromAccount.Balance, amount)
	toAccount.Balance.Add(toAccount.Balance, amount)
	if err := n.state.PutAccount(from, fromAccount); err != nil {
		return err
	}
	if err := n.state.PutAccount(to, toAccount); err != nil {
		return err
	}
	now := n.now()
	n.fanout.Emit(events.EmergencyWithdrawal{From: from, To: to, Amount: new(big.Int).Set(amount), Timestamp: now})
	n.logger.Warn("emergency withdrawal", "from", hexAddr(from), "to", hexAddr(to))
	return nil
}

// UpdateAuthority rotates the administrative key.
func (n *Node) UpdateAuthority(caller, next [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireAuthority(caller); err != nil {
		return err
	}
	if err := n.state.SetAuthority(next); err != nil {
		return err
	}
	n.fanout.Emit(events.AuthorityRotated{Old: caller, New: next, Timestamp: n.now()})
	return nil
}

// SetTreasury rotates the protocol treasury and rewires the engines.
func (n *Node) SetTreasury(caller, next [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireAuthority(caller); err != nil {
		return err
	}
	old, err := n.state.Treasury()
	if err != nil && !errors.Is(err, state.ErrRoleUnset) {
		return err
	}
	if err := n.state.SetTreasury(next); err != nil {
		return err
	}
	n.settle.SetTreasury(next)
	n.auctions.SetTreasury(next)
	n.fanout.Emit(events.AuthorityRotated{Old: old, New: next, Treasury: true, Timestamp: n.now()})
	return nil
}

// ReleasePool moves vested funds out of a pool under the caller-supplied
// gate evidence.
func (n *Node) ReleasePool(caller [20]byte, kind pool.Kind, to [20]byte, amount *big.Int, auth pool.ReleaseAuthorization) (*pool.ReleaseReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.requireAuthority(caller); err != nil {
		return nil, err
	}
	receipt, err := n.pools.Release(kind, to, amount, auth)
	if err != nil {
		return nil, err
	}
	if n.metrics != nil {
		n.metrics.PoolReleases.Inc()
	}
	n.noteInconsistency(kind, receipt.Inconsistent)
	return receipt, nil
}

// PoolStatus reports the schedule view of a pool.
func (n *Node) PoolStatus(kind pool.Kind) (*pool.Status, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	status, err := n.pools.Status(kind)
	if err != nil {
		return nil, err
	}
	n.noteInconsistency(kind, status.Inconsistent)
	return status, nil
}

// CreateAuction opens a markup auction for an asset.
func (n *Node) CreateAuction(creator [20]byte, assetID string, startPrice *big.Int, message string) (*auction.Auction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.Create(creator, assetID, startPrice, message)
}

// SeizeAuction forces an ownership transfer at the 110% markup.
func (n *Node) SeizeAuction(bidder [20]byte, assetID string, message string) (*auction.SeizeReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	receipt, err := n.auctions.Seize(bidder, assetID, message)
	if err != nil {
		return nil, err
	}
	if n.metrics != nil {
		n.metrics.AuctionSeizures.Inc()
	}
	return receipt, nil
}

// GetAuction reports the current auction state for an asset.
func (n *Node) GetAuction(assetID string) (*auction.Auction, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.auctions.Get(assetID)
}

func (n *Node) requireAuthority(caller [20]byte) error {
	authority, err := n.state.Authority()
	if errors.Is(err, state.ErrRoleUnset) {
		return ErrUnauthorized
	}
	if err != nil {
		return err
	}
	if caller != authority {
		return ErrUnauthorized
	}
	return nil
}

// ensureHolder provisions an empty holder record so the first credit stamps
// FirstHoldTime. An empty record persisting after a failed settlement is
// harmless: all totals are zero and FirstHoldTime is only set on credit.
func (n *Node) ensureHolder(addr [20]byte) error {
	_, exists, err := n.state.HolderGet(addr)
	if err != nil || exists {
		return err
	}
	return n.state.HolderPut(holder.NewRecord(addr, addr))
}

func (n *Node) noteInconsistency(kind pool.Kind, inconsistent bool) {
	if !inconsistent {
		return
	}
	if n.metrics != nil {
		n.metrics.PoolInconsistencies.Inc()
	}
	n.logger.Warn("pool released amount exceeds vesting entitlement", "pool", kind.String())
}

func (n *Node) rejected(err error) {
	if n.metrics == nil {
		return
	}
	n.metrics.TransfersRejected.WithLabelValues(rejectionReason(err)).Inc()
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, settlement.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, settlement.ErrSenderFrozen), errors.Is(err, settlement.ErrReceiverFrozen):
		return "frozen"
	case errors.Is(err, settlement.ErrSystemPaused):
		return "paused"
	case errors.Is(err, settlement.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, tax.ErrAmountExceedsSupply):
		return "exceeds_supply"
	default:
		return "other"
	}
}

// fanout forwards every emitted event to all subscribed sinks.
type fanout struct {
	mu    sync.RWMutex
	sinks []events.Emitter
}

func (f *fanout) add(sink events.Emitter) {
	if sink == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink)
}

func (f *fanout) Emit(evt events.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, sink := range f.sinks {
		sink.Emit(evt)
	}
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
