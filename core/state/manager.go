package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"totchain/core/types"
	"totchain/native/auction"
	"totchain/native/holder"
	"totchain/native/pool"
	"totchain/native/tax"
	"totchain/storage"
)

// Key prefixes. Every record lives under its own prefix so backends can be
// inspected and migrated per concern.
var (
	accountPrefix = []byte("tot/account/")
	holderPrefix  = []byte("tot/holder/")
	poolPrefix    = []byte("tot/pool/")
	auctionPrefix = []byte("tot/auction/")

	policyKey    = []byte("tot/policy")
	panicKey     = []byte("tot/panic")
	authorityKey = []byte("tot/authority")
	treasuryKey  = []byte("tot/treasury")
	collectorKey = []byte("tot/collector")

	mintedKey       = []byte("tot/supply/minted")
	burnedKey       = []byte("tot/supply/burned")
	taxCollectedKey = []byte("tot/supply/tax_collected")
)

// ErrRoleUnset is returned when a stored role address has never been written.
var ErrRoleUnset = errors.New("state: role address not set")

// Manager persists settlement state in a key-value backend using RLP
// encoding. It performs no locking of its own; the node serialises access.
type Manager struct {
	db storage.Database
}

// NewManager wraps a key-value backend.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func accountKey(addr [20]byte) []byte {
	return append(append([]byte(nil), accountPrefix...), addr[:]...)
}

func holderKey(addr [20]byte) []byte {
	return append(append([]byte(nil), holderPrefix...), addr[:]...)
}

func poolKey(kind pool.Kind) []byte {
	return append(append([]byte(nil), poolPrefix...), byte(kind))
}

func auctionKey(id [32]byte) []byte {
	return append(append([]byte(nil), auctionPrefix...), id[:]...)
}

// RLP cannot encode signed integers, so stored records carry timestamps as
// uint64 and convert at the boundary.

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount loads an account record. A missing account returns nil with no
// error; callers use types.EnsureAccount to materialise a zero account.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	raw, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	account := &types.Account{Nonce: stored.Nonce, Balance: stored.Balance}
	return types.EnsureAccount(account), nil
}

// PutAccount stores an account record.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	account = types.EnsureAccount(account)
	raw, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: account.Balance})
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return m.db.Put(accountKey(addr), raw)
}

type storedHolder struct {
	Owner               [20]byte
	BalanceAccount      [20]byte
	FirstHoldTime       uint64
	LastTransactionTime uint64
	TotalBought         *big.Int
	TotalSold           *big.Int
	TotalTaxPaid        *big.Int
	TotalConsumed       *big.Int
	Frozen              bool
	FreezeReason        uint8
}

// HolderGet loads a holder record, reporting presence separately from errors.
func (m *Manager) HolderGet(addr [20]byte) (*holder.Record, bool, error) {
	raw, err := m.db.Get(holderKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stored storedHolder
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode holder: %w", err)
	}
	return &holder.Record{
		Owner:               stored.Owner,
		BalanceAccount:      stored.BalanceAccount,
		FirstHoldTime:       int64(stored.FirstHoldTime),
		LastTransactionTime: int64(stored.LastTransactionTime),
		TotalBought:         ensureBig(stored.TotalBought),
		TotalSold:           ensureBig(stored.TotalSold),
		TotalTaxPaid:        ensureBig(stored.TotalTaxPaid),
		TotalConsumed:       ensureBig(stored.TotalConsumed),
		Frozen:              stored.Frozen,
		FreezeReason:        stored.FreezeReason,
	}, true, nil
}

// HolderPut stores a holder record keyed by its owner address.
func (m *Manager) HolderPut(record *holder.Record) error {
	if record == nil {
		return holder.ErrNilRecord
	}
	raw, err := rlp.EncodeToBytes(&storedHolder{
		Owner:               record.Owner,
		BalanceAccount:      record.BalanceAccount,
		FirstHoldTime:       clampUnix(record.FirstHoldTime),
		LastTransactionTime: clampUnix(record.LastTransactionTime),
		TotalBought:         ensureBig(record.TotalBought),
		TotalSold:           ensureBig(record.TotalSold),
		TotalTaxPaid:        ensureBig(record.TotalTaxPaid),
		TotalConsumed:       ensureBig(record.TotalConsumed),
		Frozen:              record.Frozen,
		FreezeReason:        record.FreezeReason,
	})
	if err != nil {
		return fmt.Errorf("state: encode holder: %w", err)
	}
	return m.db.Put(holderKey(record.Owner), raw)
}

type storedPolicy struct {
	BaseBps           uint32
	Alpha             uint64
	Beta              uint64
	GammaBps          uint32
	PanicThresholdBps uint32
	PanicRateBps      uint32
	Enabled           bool
	Exempt            [][20]byte
	LastUpdated       uint64
	Version           uint64
}

// TaxPolicy loads the active policy. Before genesis initialisation the
// default policy is returned so read paths never observe a nil policy.
func (m *Manager) TaxPolicy() (*tax.Policy, error) {
	raw, err := m.db.Get(policyKey)
	if errors.Is(err, storage.ErrNotFound) {
		return tax.DefaultPolicy(0), nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedPolicy
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("state: decode tax policy: %w", err)
	}
	return &tax.Policy{
		BaseBps:           stored.BaseBps,
		Alpha:             stored.Alpha,
		Beta:              stored.Beta,
		GammaBps:          stored.GammaBps,
		PanicThresholdBps: stored.PanicThresholdBps,
		PanicRateBps:      stored.PanicRateBps,
		Enabled:           stored.Enabled,
		Exempt:            append([][20]byte{}, stored.Exempt...),
		LastUpdated:       int64(stored.LastUpdated),
		Version:           stored.Version,
	}, nil
}

// SetTaxPolicy validates and stores the policy.
func (m *Manager) SetTaxPolicy(policy *tax.Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	raw, err := rlp.EncodeToBytes(&storedPolicy{
		BaseBps:           policy.BaseBps,
		Alpha:             policy.Alpha,
		Beta:              policy.Beta,
		GammaBps:          policy.GammaBps,
		PanicThresholdBps: policy.PanicThresholdBps,
		PanicRateBps:      policy.PanicRateBps,
		Enabled:           policy.Enabled,
		Exempt:            policy.Exempt,
		LastUpdated:       clampUnix(policy.LastUpdated),
		Version:           policy.Version,
	})
	if err != nil {
		return fmt.Errorf("state: encode tax policy: %w", err)
	}
	return m.db.Put(policyKey, raw)
}

// PanicMode reports whether the sell-side circuit breaker is latched.
func (m *Manager) PanicMode() (bool, error) {
	raw, err := m.db.Get(panicKey)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(raw) == 1 && raw[0] == 1, nil
}

// SetPanicMode latches or clears the circuit breaker.
func (m *Manager) SetPanicMode(paused bool) error {
	value := []byte{0}
	if paused {
		value[0] = 1
	}
	return m.db.Put(panicKey, value)
}

type storedPool struct {
	Kind              uint8
	BalanceAccount    [20]byte
	InitialAllocation *big.Int
	ReleasedAmount    *big.Int
	UnlockTime        uint64
	VestingStart      uint64
	VestingPeriod     uint64
	RequiresMultisig  bool
	MultisigThreshold uint8
	MultisigSigners   [][20]byte
}

// PoolGet loads the schedule record for a pool kind.
func (m *Manager) PoolGet(kind pool.Kind) (*pool.Pool, bool, error) {
	raw, err := m.db.Get(poolKey(kind))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stored storedPool
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode pool: %w", err)
	}
	decoded, err := pool.KindFromByte(stored.Kind)
	if err != nil {
		return nil, false, err
	}
	return &pool.Pool{
		Kind:              decoded,
		BalanceAccount:    stored.BalanceAccount,
		InitialAllocation: ensureBig(stored.InitialAllocation),
		ReleasedAmount:    ensureBig(stored.ReleasedAmount),
		UnlockTime:        int64(stored.UnlockTime),
		VestingStart:      int64(stored.VestingStart),
		VestingPeriod:     int64(stored.VestingPeriod),
		RequiresMultisig:  stored.RequiresMultisig,
		MultisigThreshold: stored.MultisigThreshold,
		MultisigSigners:   append([][20]byte{}, stored.MultisigSigners...),
	}, true, nil
}

// PoolPut stores the schedule record keyed by kind.
func (m *Manager) PoolPut(p *pool.Pool) error {
	if p == nil {
		return pool.ErrNilPool
	}
	raw, err := rlp.EncodeToBytes(&storedPool{
		Kind:              byte(p.Kind),
		BalanceAccount:    p.BalanceAccount,
		InitialAllocation: ensureBig(p.InitialAllocation),
		ReleasedAmount:    ensureBig(p.ReleasedAmount),
		UnlockTime:        clampUnix(p.UnlockTime),
		VestingStart:      clampUnix(p.VestingStart),
		VestingPeriod:     clampUnix(p.VestingPeriod),
		RequiresMultisig:  p.RequiresMultisig,
		MultisigThreshold: p.MultisigThreshold,
		MultisigSigners:   p.MultisigSigners,
	})
	if err != nil {
		return fmt.Errorf("state: encode pool: %w", err)
	}
	return m.db.Put(poolKey(p.Kind), raw)
}

type storedAuction struct {
	AssetID      string
	Owner        [20]byte
	Price        *big.Int
	StartPrice   *big.Int
	TauntMessage string
	CreatedAt    uint64
	LastSeizedAt uint64
}

// AuctionGet loads the auction record stored under the keccak hash of its
// asset identifier.
func (m *Manager) AuctionGet(id [32]byte) (*auction.Auction, bool, error) {
	raw, err := m.db.Get(auctionKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var stored storedAuction
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode auction: %w", err)
	}
	return &auction.Auction{
		AssetID:      stored.AssetID,
		Owner:        stored.Owner,
		Price:        ensureBig(stored.Price),
		StartPrice:   ensureBig(stored.StartPrice),
		TauntMessage: stored.TauntMessage,
		CreatedAt:    int64(stored.CreatedAt),
		LastSeizedAt: int64(stored.LastSeizedAt),
	}, true, nil
}

// AuctionPut stores an auction record keyed by the keccak hash of its asset
// identifier.
func (m *Manager) AuctionPut(a *auction.Auction) error {
	if a == nil {
		return auction.ErrNilAuction
	}
	raw, err := rlp.EncodeToBytes(&storedAuction{
		AssetID:      a.AssetID,
		Owner:        a.Owner,
		Price:        ensureBig(a.Price),
		StartPrice:   ensureBig(a.StartPrice),
		TauntMessage: a.TauntMessage,
		CreatedAt:    clampUnix(a.CreatedAt),
		LastSeizedAt: clampUnix(a.LastSeizedAt),
	})
	if err != nil {
		return fmt.Errorf("state: encode auction: %w", err)
	}
	return m.db.Put(auctionKey(auction.ID(a.AssetID)), raw)
}

// TotalMinted returns the cumulative genesis mint.
func (m *Manager) TotalMinted() (*big.Int, error) {
	return m.counter(mintedKey)
}

// SetTotalMinted records the one-time genesis mint total.
func (m *Manager) SetTotalMinted(total *big.Int) error {
	return m.putCounter(mintedKey, total)
}

// TotalBurned returns the cumulative burn from tax settlement.
func (m *Manager) TotalBurned() (*big.Int, error) {
	return m.counter(burnedKey)
}

// AddBurned increments the cumulative burn.
func (m *Manager) AddBurned(amount *big.Int) error {
	return m.addCounter(burnedKey, amount)
}

// TaxCollected returns the cumulative tax charged across all settlements.
func (m *Manager) TaxCollected() (*big.Int, error) {
	return m.counter(taxCollectedKey)
}

// AddTaxCollected increments the cumulative tax counter.
func (m *Manager) AddTaxCollected(amount *big.Int) error {
	return m.addCounter(taxCollectedKey, amount)
}

// TotalSupply is the circulating supply: everything minted minus everything
// burned.
func (m *Manager) TotalSupply() (*big.Int, error) {
	minted, err := m.counter(mintedKey)
	if err != nil {
		return nil, err
	}
	burned, err := m.counter(burnedKey)
	if err != nil {
		return nil, err
	}
	supply := new(big.Int).Sub(minted, burned)
	if supply.Sign() < 0 {
		supply.SetInt64(0)
	}
	return supply, nil
}

// Authority returns the administrative authority address.
func (m *Manager) Authority() ([20]byte, error) { return m.role(authorityKey) }

// SetAuthority stores the administrative authority address.
func (m *Manager) SetAuthority(addr [20]byte) error { return m.putRole(authorityKey, addr) }

// Treasury returns the protocol treasury address.
func (m *Manager) Treasury() ([20]byte, error) { return m.role(treasuryKey) }

// SetTreasury stores the protocol treasury address.
func (m *Manager) SetTreasury(addr [20]byte) error { return m.putRole(treasuryKey, addr) }

// Collector returns the tax remainder collector address.
func (m *Manager) Collector() ([20]byte, error) { return m.role(collectorKey) }

// SetCollector stores the tax remainder collector address.
func (m *Manager) SetCollector(addr [20]byte) error { return m.putRole(collectorKey, addr) }

func (m *Manager) role(key []byte) ([20]byte, error) {
	var addr [20]byte
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return addr, ErrRoleUnset
	}
	if err != nil {
		return addr, err
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("state: malformed role address under %q", key)
	}
	copy(addr[:], raw)
	return addr, nil
}

func (m *Manager) putRole(key []byte, addr [20]byte) error {
	return m.db.Put(key, append([]byte(nil), addr[:]...))
}

func (m *Manager) counter(key []byte) (*big.Int, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func (m *Manager) putCounter(key []byte, value *big.Int) error {
	return m.db.Put(key, ensureBig(value).Bytes())
}

func (m *Manager) addCounter(key []byte, delta *big.Int) error {
	if delta == nil || delta.Sign() == 0 {
		return nil
	}
	if delta.Sign() < 0 {
		return fmt.Errorf("state: negative counter delta under %q", key)
	}
	current, err := m.counter(key)
	if err != nil {
		return err
	}
	return m.putCounter(key, current.Add(current, delta))
}

func ensureBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func clampUnix(ts int64) uint64 {
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}
