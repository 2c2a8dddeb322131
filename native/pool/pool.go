package pool

import "math/big"

// Kind enumerates the fixed allocation pools created at genesis.
type Kind uint8

const (
	KindVictoryFund Kind = iota
	KindHistoryLP
	KindCyberArmy
	KindGlobalAlliance
	KindAssetAnchor
)

const (
	// VictoryUnlockTime locks the victory fund until 2027-01-01 UTC.
	VictoryUnlockTime int64 = 1_798_761_600
	// LinearVestingPeriod is the 365-day linear release window.
	LinearVestingPeriod int64 = 365 * 24 * 60 * 60
	// MultisigSignerSlots is the signer capacity of gated pools.
	MultisigSignerSlots = 5
	// DefaultMultisigThreshold is the 3-of-5 requirement for gated pools.
	DefaultMultisigThreshold = 3
)

// Genesis allocations in base units (9 decimals). The five pools sum to the
// total supply of 202.7e18.
var (
	AllocationVictoryFund    = mustBig("20270000000000000000")
	AllocationHistoryLP      = mustBig("19490000000000000000")
	AllocationCyberArmy      = mustBig("14500000000000000000")
	AllocationGlobalAlliance = mustBig("7040000000000000000")
	AllocationAssetAnchor    = mustBig("141400000000000000000")
	TotalSupply              = mustBig("202700000000000000000")
)

// Kinds lists every pool kind in mint order.
func Kinds() []Kind {
	return []Kind{KindVictoryFund, KindHistoryLP, KindCyberArmy, KindGlobalAlliance, KindAssetAnchor}
}

// KindFromByte decodes a stored discriminant, rejecting unknown values.
func KindFromByte(b byte) (Kind, error) {
	kind := Kind(b)
	if !kind.Valid() {
		return 0, ErrUnknownKind
	}
	return kind, nil
}

// Valid reports whether the kind is within the supported range.
func (k Kind) Valid() bool {
	switch k {
	case KindVictoryFund, KindHistoryLP, KindCyberArmy, KindGlobalAlliance, KindAssetAnchor:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindVictoryFund:
		return "victory_fund"
	case KindHistoryLP:
		return "history_lp"
	case KindCyberArmy:
		return "cyber_army"
	case KindGlobalAlliance:
		return "global_alliance"
	case KindAssetAnchor:
		return "asset_anchor"
	default:
		return "unknown"
	}
}

// Allocation returns the genesis allocation for the kind.
func (k Kind) Allocation() *big.Int {
	switch k {
	case KindVictoryFund:
		return new(big.Int).Set(AllocationVictoryFund)
	case KindHistoryLP:
		return new(big.Int).Set(AllocationHistoryLP)
	case KindCyberArmy:
		return new(big.Int).Set(AllocationCyberArmy)
	case KindGlobalAlliance:
		return new(big.Int).Set(AllocationGlobalAlliance)
	case KindAssetAnchor:
		return new(big.Int).Set(AllocationAssetAnchor)
	default:
		return big.NewInt(0)
	}
}

// Pool is the per-kind schedule state machine. ReleasedAmount only grows and
// never exceeds InitialAllocation.
type Pool struct {
	Kind              Kind
	BalanceAccount    [20]byte
	InitialAllocation *big.Int
	ReleasedAmount    *big.Int
	UnlockTime        int64
	VestingStart      int64
	VestingPeriod     int64
	RequiresMultisig  bool
	MultisigThreshold uint8
	MultisigSigners   [][20]byte
}

// Clone returns a deep copy of the pool record.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	if p.InitialAllocation != nil {
		clone.InitialAllocation = new(big.Int).Set(p.InitialAllocation)
	}
	if p.ReleasedAmount != nil {
		clone.ReleasedAmount = new(big.Int).Set(p.ReleasedAmount)
	} else {
		clone.ReleasedAmount = big.NewInt(0)
	}
	clone.MultisigSigners = make([][20]byte, len(p.MultisigSigners))
	copy(clone.MultisigSigners, p.MultisigSigners)
	return &clone
}

// Unlocked reports whether the fixed time lock has elapsed. A zero
// UnlockTime means no lock.
func (p *Pool) Unlocked(now int64) bool {
	return p.UnlockTime == 0 || now >= p.UnlockTime
}

// Releasable computes the amount the schedule permits to leave the pool at
// the supplied time. The second return reports a data inconsistency:
// ReleasedAmount exceeding the linear entitlement, which can only come from
// external corruption since release is caller-driven. In that case the
// function returns 0 and the caller should surface a warning metric rather
// than fail.
func (p *Pool) Releasable(now int64) (*big.Int, bool, error) {
	if p == nil {
		return nil, false, ErrNilPool
	}
	if !p.Unlocked(now) {
		return big.NewInt(0), false, nil
	}
	released := p.ReleasedAmount
	if released == nil {
		released = big.NewInt(0)
	}
	remaining := new(big.Int).Sub(p.InitialAllocation, released)
	if remaining.Sign() < 0 {
		return big.NewInt(0), true, nil
	}
	if p.VestingPeriod == 0 {
		return remaining, false, nil
	}
	if now < p.VestingStart {
		return big.NewInt(0), false, nil
	}
	elapsed := now - p.VestingStart
	if elapsed >= p.VestingPeriod {
		return remaining, false, nil
	}
	// linear schedule: entitlement = allocation * elapsed / period
	entitled := new(big.Int).Mul(p.InitialAllocation, big.NewInt(elapsed))
	entitled.Quo(entitled, big.NewInt(p.VestingPeriod))
	if entitled.Cmp(released) < 0 {
		return big.NewInt(0), true, nil
	}
	return entitled.Sub(entitled, released), false, nil
}

// ScheduleFor returns the kind-specific genesis schedule. CyberArmy starts
// its linear vest at initialization time; the other kinds use fixed
// parameters.
func ScheduleFor(kind Kind, now int64) (unlockTime, vestingStart, vestingPeriod int64, requiresMultisig bool, err error) {
	switch kind {
	case KindVictoryFund:
		return VictoryUnlockTime, 0, 0, false, nil
	case KindHistoryLP:
		return 0, 0, 0, false, nil
	case KindCyberArmy:
		return 0, now, LinearVestingPeriod, false, nil
	case KindGlobalAlliance:
		return 0, 0, 0, true, nil
	case KindAssetAnchor:
		return 0, 0, 0, false, nil
	default:
		return 0, 0, 0, false, ErrUnknownKind
	}
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("pool: invalid allocation constant " + s)
	}
	return v
}
