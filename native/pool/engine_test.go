package pool

import (
	"math/big"
	"testing"

	"totchain/core/types"
)

type mockState struct {
	pools    map[Kind]*Pool
	accounts map[[20]byte]*types.Account
	minted   *big.Int
}

func newMockState() *mockState {
	return &mockState{
		pools:    make(map[Kind]*Pool),
		accounts: make(map[[20]byte]*types.Account),
		minted:   big.NewInt(0),
	}
}

func (m *mockState) PoolGet(kind Kind) (*Pool, bool, error) {
	if p, ok := m.pools[kind]; ok {
		return p.Clone(), true, nil
	}
	return nil, false, nil
}

func (m *mockState) PoolPut(p *Pool) error {
	m.pools[p.Kind] = p.Clone()
	return nil
}

func (m *mockState) GetAccount(addr [20]byte) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return nil, nil
}

func (m *mockState) PutAccount(addr [20]byte, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockState) TotalMinted() (*big.Int, error) { return new(big.Int).Set(m.minted), nil }

func (m *mockState) SetTotalMinted(total *big.Int) error {
	m.minted = new(big.Int).Set(total)
	return nil
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Balance
	}
	return big.NewInt(0)
}

func poolAddr(kind Kind) [20]byte {
	var a [20]byte
	a[0] = 0xF0
	a[1] = byte(kind)
	return a
}

func initAll(t *testing.T, engine *Engine) {
	t.Helper()
	for _, kind := range Kinds() {
		if _, err := engine.Init(kind, poolAddr(kind)); err != nil {
			t.Fatalf("init %s: %v", kind, err)
		}
	}
}

func newTestEngine(state *mockState, now int64) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return now })
	return engine
}

func TestInitSchedules(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 1_000)
	initAll(t, engine)

	victory := state.pools[KindVictoryFund]
	if victory.UnlockTime != VictoryUnlockTime {
		t.Fatalf("victory unlock = %d", victory.UnlockTime)
	}
	cyber := state.pools[KindCyberArmy]
	if cyber.VestingStart != 1_000 || cyber.VestingPeriod != LinearVestingPeriod {
		t.Fatalf("cyber army vesting = %d/%d", cyber.VestingStart, cyber.VestingPeriod)
	}
	alliance := state.pools[KindGlobalAlliance]
	if !alliance.RequiresMultisig || alliance.MultisigThreshold != DefaultMultisigThreshold {
		t.Fatal("global alliance must be multisig gated")
	}

	if _, err := engine.Init(KindVictoryFund, poolAddr(KindVictoryFund)); err != ErrAlreadyInitialized {
		t.Fatalf("err = %v, want ErrAlreadyInitialized", err)
	}
	if _, err := engine.Init(Kind(9), poolAddr(0)); err != ErrUnknownKind {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
}

func TestMintAllocationsOnce(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 1_000)
	if err := engine.MintAllocations(); err != ErrNotInitialized {
		t.Fatalf("mint before init: err = %v, want ErrNotInitialized", err)
	}
	initAll(t, engine)
	if err := engine.MintAllocations(); err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	total := big.NewInt(0)
	for _, kind := range Kinds() {
		balance := state.balance(poolAddr(kind))
		if balance.Cmp(kind.Allocation()) != 0 {
			t.Fatalf("%s balance = %s, want %s", kind, balance, kind.Allocation())
		}
		total.Add(total, balance)
	}
	if total.Cmp(TotalSupply) != 0 {
		t.Fatalf("allocations sum to %s, want %s", total, TotalSupply)
	}
	if err := engine.MintAllocations(); err != ErrAlreadyMinted {
		t.Fatalf("second mint: err = %v, want ErrAlreadyMinted", err)
	}
}

func TestLinearVestingReleasable(t *testing.T) {
	start := int64(1_000)
	state := newMockState()
	engine := newTestEngine(state, start)
	initAll(t, engine)

	now := start + 180*24*60*60
	engine.SetNowFunc(func() int64 { return now })
	status, err := engine.Status(KindCyberArmy)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	want := new(big.Int).Mul(AllocationCyberArmy, big.NewInt(180*24*60*60))
	want.Quo(want, big.NewInt(LinearVestingPeriod))
	if status.Releasable.Cmp(want) != 0 {
		t.Fatalf("releasable = %s, want %s", status.Releasable, want)
	}
	// releasable + released never exceeds the allocation
	sum := new(big.Int).Add(status.Releasable, status.Released)
	if sum.Cmp(AllocationCyberArmy) > 0 {
		t.Fatal("releasable + released exceeds allocation")
	}
}

func TestVictoryFundLocked(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 1_000)
	initAll(t, engine)
	if err := engine.MintAllocations(); err != nil {
		t.Fatal(err)
	}
	var dest [20]byte
	dest[0] = 1
	_, err := engine.Release(KindVictoryFund, dest, big.NewInt(1), ReleaseAuthorization{})
	if err != ErrLocked {
		t.Fatalf("err = %v, want ErrLocked", err)
	}

	engine.SetNowFunc(func() int64 { return VictoryUnlockTime })
	if _, err := engine.Release(KindVictoryFund, dest, big.NewInt(1), ReleaseAuthorization{}); err != nil {
		t.Fatalf("release after unlock failed: %v", err)
	}
}

func TestGlobalAllianceMultisigGate(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 1_000)
	initAll(t, engine)
	if err := engine.MintAllocations(); err != nil {
		t.Fatal(err)
	}
	var dest [20]byte
	dest[0] = 1
	_, err := engine.Release(KindGlobalAlliance, dest, big.NewInt(1), ReleaseAuthorization{Approvals: 2})
	if err != ErrMultisigRequired {
		t.Fatalf("err = %v, want ErrMultisigRequired", err)
	}
	if _, err := engine.Release(KindGlobalAlliance, dest, big.NewInt(1), ReleaseAuthorization{Approvals: 3}); err != nil {
		t.Fatalf("release with quorum failed: %v", err)
	}
}

func TestAssetAnchorTriggerGate(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 1_000)
	initAll(t, engine)
	if err := engine.MintAllocations(); err != nil {
		t.Fatal(err)
	}
	var dest [20]byte
	dest[0] = 1
	_, err := engine.Release(KindAssetAnchor, dest, big.NewInt(1), ReleaseAuthorization{})
	if err != ErrTriggerRequired {
		t.Fatalf("err = %v, want ErrTriggerRequired", err)
	}
	if _, err := engine.Release(KindAssetAnchor, dest, big.NewInt(1), ReleaseAuthorization{TriggerSatisfied: true}); err != nil {
		t.Fatalf("triggered release failed: %v", err)
	}
}

func TestReleaseMonotoneAndBounded(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state, 1_000)
	initAll(t, engine)
	if err := engine.MintAllocations(); err != nil {
		t.Fatal(err)
	}
	var dest [20]byte
	dest[0] = 1

	prev := big.NewInt(0)
	for i := 0; i < 3; i++ {
		receipt, err := engine.Release(KindHistoryLP, dest, big.NewInt(1_000), ReleaseAuthorization{})
		if err != nil {
			t.Fatalf("release %d: %v", i, err)
		}
		if receipt.Released.Cmp(prev) <= 0 {
			t.Fatal("released amount must be strictly increasing across releases")
		}
		prev = receipt.Released
	}
	if got := state.balance(dest).Int64(); got != 3_000 {
		t.Fatalf("destination balance = %d, want 3000", got)
	}

	over := new(big.Int).Add(AllocationHistoryLP, big.NewInt(1))
	if _, err := engine.Release(KindHistoryLP, dest, over, ReleaseAuthorization{}); err != ErrExceedsReleasable {
		t.Fatalf("err = %v, want ErrExceedsReleasable", err)
	}
}

func TestReleasableInconsistencyFlag(t *testing.T) {
	p := &Pool{
		Kind:              KindCyberArmy,
		InitialAllocation: big.NewInt(1_000),
		ReleasedAmount:    big.NewInt(900),
		VestingStart:      0,
		VestingPeriod:     1_000,
	}
	// halfway through the vest only 500 is entitled, 900 released
	releasable, inconsistent, err := p.Releasable(500)
	if err != nil {
		t.Fatal(err)
	}
	if !inconsistent {
		t.Fatal("over-released pool must be flagged inconsistent")
	}
	if releasable.Sign() != 0 {
		t.Fatalf("inconsistent pool releasable = %s, want 0", releasable)
	}
}
