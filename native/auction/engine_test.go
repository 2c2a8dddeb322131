package auction

import (
	"math/big"
	"strings"
	"testing"

	"totchain/core/types"
	"totchain/native/holder"
)

type mockState struct {
	auctions map[[32]byte]*Auction
	accounts map[[20]byte]*types.Account
	holders  map[[20]byte]*holder.Record
}

func newMockState() *mockState {
	return &mockState{
		auctions: make(map[[32]byte]*Auction),
		accounts: make(map[[20]byte]*types.Account),
		holders:  make(map[[20]byte]*holder.Record),
	}
}

func (m *mockState) AuctionGet(id [32]byte) (*Auction, bool, error) {
	if a, ok := m.auctions[id]; ok {
		return a.Clone(), true, nil
	}
	return nil, false, nil
}

func (m *mockState) AuctionPut(a *Auction) error {
	m.auctions[ID(a.AssetID)] = a.Clone()
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

func (m *mockState) HolderGet(addr [20]byte) (*holder.Record, bool, error) {
	if record, ok := m.holders[addr]; ok {
		return record.Clone(), true, nil
	}
	return nil, false, nil
}

func (m *mockState) HolderPut(record *holder.Record) error {
	m.holders[record.Owner] = record.Clone()
	return nil
}

func (m *mockState) setBalance(addr [20]byte, amount *big.Int) {
	m.accounts[addr] = &types.Account{Balance: new(big.Int).Set(amount)}
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Balance
	}
	return big.NewInt(0)
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[0] = b
	return a
}

var treasury = addr(0xDD)

func newTestEngine(state *mockState) *Engine {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetTreasury(treasury)
	engine.SetNowFunc(func() int64 { return 5_000 })
	return engine
}

func TestCreateValidation(t *testing.T) {
	engine := newTestEngine(newMockState())
	creator := addr(1)

	if _, err := engine.Create(creator, "", big.NewInt(100), ""); err != ErrEmptyAssetID {
		t.Fatalf("err = %v, want ErrEmptyAssetID", err)
	}
	if _, err := engine.Create(creator, "relic-1", big.NewInt(0), ""); err != ErrInvalidStartPrice {
		t.Fatalf("err = %v, want ErrInvalidStartPrice", err)
	}
	long := strings.Repeat("x", MaxMessageLen+1)
	if _, err := engine.Create(creator, "relic-1", big.NewInt(100), long); err != ErrMessageTooLong {
		t.Fatalf("err = %v, want ErrMessageTooLong", err)
	}
	if _, err := engine.Create(creator, "relic-1", big.NewInt(100), "mine"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := engine.Create(creator, "relic-1", big.NewInt(100), ""); err != ErrAlreadyExists {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestSeizeSplitsPaymentExactly(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner, bidder := addr(1), addr(2)

	if _, err := engine.Create(owner, "relic-1", big.NewInt(1_000_000_000), ""); err != nil {
		t.Fatal(err)
	}
	state.setBalance(bidder, big.NewInt(2_000_000_000))

	receipt, err := engine.Seize(bidder, "relic-1", "taken")
	if err != nil {
		t.Fatalf("seize failed: %v", err)
	}
	if got := receipt.NewPrice.Int64(); got != 1_100_000_000 {
		t.Fatalf("new price = %d, want 1100000000", got)
	}
	if got := receipt.Fee.Int64(); got != 55_000_000 {
		t.Fatalf("fee = %d, want 55000000", got)
	}
	if got := receipt.Payout.Int64(); got != 1_045_000_000 {
		t.Fatalf("payout = %d, want 1045000000", got)
	}
	sum := new(big.Int).Add(receipt.Fee, receipt.Payout)
	if sum.Cmp(receipt.NewPrice) != 0 {
		t.Fatal("fee + payout must equal the payment exactly")
	}
	if got := state.balance(bidder).Int64(); got != 900_000_000 {
		t.Fatalf("bidder balance = %d, want 900000000", got)
	}
	if got := state.balance(treasury).Int64(); got != 55_000_000 {
		t.Fatalf("treasury balance = %d", got)
	}
	if got := state.balance(owner).Int64(); got != 1_045_000_000 {
		t.Fatalf("previous owner payout = %d", got)
	}

	stored := state.auctions[ID("relic-1")]
	if stored.Owner != bidder {
		t.Fatal("ownership must transfer to the bidder")
	}
	if stored.TauntMessage != "taken" {
		t.Fatalf("taunt = %q", stored.TauntMessage)
	}
}

func TestSeizePriceStrictlyEscalates(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := addr(1)

	if _, err := engine.Create(owner, "relic-1", big.NewInt(1_000), ""); err != nil {
		t.Fatal(err)
	}
	prev := big.NewInt(1_000)
	for i := byte(2); i < 7; i++ {
		bidder := addr(i)
		state.setBalance(bidder, big.NewInt(1_000_000))
		receipt, err := engine.Seize(bidder, "relic-1", "")
		if err != nil {
			t.Fatalf("seize %d: %v", i, err)
		}
		// >= 110% with integer floor
		floor := new(big.Int).Mul(prev, big.NewInt(MarkupPct))
		floor.Quo(floor, big.NewInt(100))
		if receipt.NewPrice.Cmp(floor) != 0 {
			t.Fatalf("price = %s, want %s", receipt.NewPrice, floor)
		}
		if receipt.NewPrice.Cmp(prev) <= 0 {
			t.Fatal("price must strictly increase")
		}
		prev = receipt.NewPrice
	}
}

func TestSeizeRejections(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner, bidder := addr(1), addr(2)

	if _, err := engine.Seize(bidder, "missing", ""); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if _, err := engine.Create(owner, "relic-1", big.NewInt(1_000), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Seize(bidder, "relic-1", strings.Repeat("y", MaxMessageLen+1)); err != ErrMessageTooLong {
		t.Fatalf("err = %v, want ErrMessageTooLong", err)
	}
	if _, err := engine.Seize(bidder, "relic-1", ""); err != ErrInsufficientBalance {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	frozen := holder.NewRecord(bidder, bidder)
	if err := frozen.Freeze(1); err != nil {
		t.Fatal(err)
	}
	state.holders[bidder] = frozen
	state.setBalance(bidder, big.NewInt(1_000_000))
	if _, err := engine.Seize(bidder, "relic-1", ""); err != ErrBidderFrozen {
		t.Fatalf("err = %v, want ErrBidderFrozen", err)
	}

	engine.SetTreasury([20]byte{})
	state.holders = make(map[[20]byte]*holder.Record)
	if _, err := engine.Seize(bidder, "relic-1", ""); err != ErrTreasuryUnset {
		t.Fatalf("err = %v, want ErrTreasuryUnset", err)
	}
}

func TestSeizeSelfRepurchaseAliasing(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner := addr(1)

	if _, err := engine.Create(owner, "relic-1", big.NewInt(1_000), ""); err != nil {
		t.Fatal(err)
	}
	state.setBalance(owner, big.NewInt(10_000))

	// owner re-seizes their own asset: pays min required, gets the payout
	// back, loses only the treasury fee
	receipt, err := engine.Seize(owner, "relic-1", "")
	if err != nil {
		t.Fatalf("self seize failed: %v", err)
	}
	want := new(big.Int).Sub(big.NewInt(10_000), receipt.Fee)
	if state.balance(owner).Cmp(want) != 0 {
		t.Fatalf("owner balance = %s, want %s", state.balance(owner), want)
	}
}

func TestSeizeRecordsConsumption(t *testing.T) {
	state := newMockState()
	engine := newTestEngine(state)
	owner, bidder := addr(1), addr(2)

	if _, err := engine.Create(owner, "relic-1", big.NewInt(1_000), ""); err != nil {
		t.Fatal(err)
	}
	state.holders[bidder] = holder.NewRecord(bidder, bidder)
	state.setBalance(bidder, big.NewInt(10_000))

	receipt, err := engine.Seize(bidder, "relic-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if state.holders[bidder].TotalConsumed.Cmp(receipt.NewPrice) != 0 {
		t.Fatalf("TotalConsumed = %s, want %s", state.holders[bidder].TotalConsumed, receipt.NewPrice)
	}
}
