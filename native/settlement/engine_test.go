package settlement

import (
	"math/big"
	"testing"

	"totchain/core/events"
	"totchain/core/types"
	"totchain/native/holder"
	"totchain/native/tax"
)

type mockState struct {
	policy    *tax.Policy
	paused    bool
	supply    *big.Int
	accounts  map[[20]byte]*types.Account
	holders   map[[20]byte]*holder.Record
	burned    *big.Int
	collected *big.Int
}

func newMockState() *mockState {
	return &mockState{
		policy:    tax.DefaultPolicy(0),
		supply:    big.NewInt(1_000_000_000_000),
		accounts:  make(map[[20]byte]*types.Account),
		holders:   make(map[[20]byte]*holder.Record),
		burned:    big.NewInt(0),
		collected: big.NewInt(0),
	}
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

func (m *mockState) TaxPolicy() (*tax.Policy, error) { return m.policy.Clone(), nil }
func (m *mockState) PanicMode() (bool, error)        { return m.paused, nil }
func (m *mockState) TotalSupply() (*big.Int, error)  { return new(big.Int).Set(m.supply), nil }

func (m *mockState) AddBurned(amount *big.Int) error {
	m.burned.Add(m.burned, amount)
	return nil
}

func (m *mockState) AddTaxCollected(amount *big.Int) error {
	m.collected.Add(m.collected, amount)
	return nil
}

func (m *mockState) setBalance(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Balance
	}
	return big.NewInt(0)
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func addr(b byte) [20]byte {
	var a [20]byte
	a[0] = b
	return a
}

func newTestEngine(state *mockState) (*Engine, *captureEmitter) {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetCollector(addr(0xCC))
	engine.SetTreasury(addr(0xDD))
	engine.SetNowFunc(func() int64 { return 1_000_000 })
	emitter := &captureEmitter{}
	engine.SetEmitter(emitter)
	return engine, emitter
}

func TestTransferWithTaxDistributes(t *testing.T) {
	state := newMockState()
	sender, receiver := addr(1), addr(2)
	state.setBalance(sender, 1_000_000)
	state.holders[sender] = holder.NewRecord(sender, sender)
	state.holders[receiver] = holder.NewRecord(receiver, receiver)

	engine, emitter := newTestEngine(state)
	receipt, err := engine.TransferWithTax(sender, receiver, big.NewInt(1_000_000), true)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if got := receipt.TaxAmount.Int64(); got != 20_000 {
		t.Fatalf("tax = %d, want 20000", got)
	}
	if got := receipt.NetAmount.Int64(); got != 980_000 {
		t.Fatalf("net = %d, want 980000", got)
	}
	if got := state.balance(sender).Int64(); got != 0 {
		t.Fatalf("sender balance = %d, want 0", got)
	}
	if got := state.balance(receiver).Int64(); got != 980_000 {
		t.Fatalf("receiver balance = %d, want 980000", got)
	}
	// burn 40% of 20000 leaves the ledger, the rest lands on the collector
	if got := state.balance(addr(0xCC)).Int64(); got != 12_000 {
		t.Fatalf("collector balance = %d, want 12000", got)
	}
	if got := state.burned.Int64(); got != 8_000 {
		t.Fatalf("burned counter = %d, want 8000", got)
	}
	if got := state.collected.Int64(); got != 20_000 {
		t.Fatalf("collected counter = %d, want 20000", got)
	}
	if got := state.holders[sender].TotalSold.Int64(); got != 1_000_000 {
		t.Fatalf("sender TotalSold = %d", got)
	}
	if got := state.holders[sender].TotalTaxPaid.Int64(); got != 20_000 {
		t.Fatalf("sender TotalTaxPaid = %d", got)
	}
	if got := state.holders[receiver].TotalBought.Int64(); got != 980_000 {
		t.Fatalf("receiver TotalBought = %d", got)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected one event, got %d", len(emitter.events))
	}
	if emitter.events[0].EventType() != events.TypeTransferSettled {
		t.Fatalf("unexpected event type %s", emitter.events[0].EventType())
	}
}

func TestTransferConservation(t *testing.T) {
	state := newMockState()
	sender, receiver := addr(1), addr(2)
	state.setBalance(sender, 123_456_789)
	state.holders[sender] = holder.NewRecord(sender, sender)

	engine, _ := newTestEngine(state)
	receipt, err := engine.TransferWithTax(sender, receiver, big.NewInt(123_456_789), true)
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	sum := new(big.Int).Add(receipt.TaxAmount, receipt.NetAmount)
	if sum.Cmp(receipt.Amount) != 0 {
		t.Fatalf("tax %s + net %s != amount %s", receipt.TaxAmount, receipt.NetAmount, receipt.Amount)
	}
	if receipt.Distribution != nil {
		burnPlusRemainder := new(big.Int).Add(receipt.Burned, receipt.Distribution.Remainder())
		if burnPlusRemainder.Cmp(receipt.TaxAmount) != 0 {
			t.Fatalf("burn + remainder != tax")
		}
	}
}

func TestTransferExemptBypassesFreezeAndTax(t *testing.T) {
	state := newMockState()
	sender, receiver := addr(1), addr(2)
	state.setBalance(sender, 500)
	record := holder.NewRecord(sender, sender)
	if err := record.Freeze(1); err != nil {
		t.Fatal(err)
	}
	state.holders[sender] = record
	if err := state.policy.AddExempt(sender); err != nil {
		t.Fatal(err)
	}

	engine, _ := newTestEngine(state)
	receipt, err := engine.TransferWithTax(sender, receiver, big.NewInt(500), true)
	if err != nil {
		t.Fatalf("exempt transfer failed: %v", err)
	}
	if !receipt.Exempt {
		t.Fatal("receipt must flag the exempt path")
	}
	if receipt.TaxAmount.Sign() != 0 {
		t.Fatal("exempt transfers carry no tax")
	}
	if got := state.balance(receiver).Int64(); got != 500 {
		t.Fatalf("receiver balance = %d, want 500", got)
	}
}

func TestTransferFrozenRejected(t *testing.T) {
	state := newMockState()
	sender, receiver := addr(1), addr(2)
	state.setBalance(sender, 1_000)
	frozen := holder.NewRecord(sender, sender)
	if err := frozen.Freeze(1); err != nil {
		t.Fatal(err)
	}
	state.holders[sender] = frozen

	engine, _ := newTestEngine(state)
	if _, err := engine.TransferWithTax(sender, receiver, big.NewInt(100), false); err != ErrSenderFrozen {
		t.Fatalf("err = %v, want ErrSenderFrozen", err)
	}

	state.holders[sender].Frozen = false
	frozenReceiver := holder.NewRecord(receiver, receiver)
	if err := frozenReceiver.Freeze(2); err != nil {
		t.Fatal(err)
	}
	state.holders[receiver] = frozenReceiver
	if _, err := engine.TransferWithTax(sender, receiver, big.NewInt(100), false); err != ErrReceiverFrozen {
		t.Fatalf("err = %v, want ErrReceiverFrozen", err)
	}
	if got := state.balance(sender).Int64(); got != 1_000 {
		t.Fatalf("rejected transfers must not move funds, sender balance = %d", got)
	}
}

func TestTransferPausedBlocksSellsOnly(t *testing.T) {
	state := newMockState()
	sender, receiver := addr(1), addr(2)
	state.setBalance(sender, 1_000)
	state.paused = true

	engine, _ := newTestEngine(state)
	if _, err := engine.TransferWithTax(sender, receiver, big.NewInt(100), true); err != ErrSystemPaused {
		t.Fatalf("err = %v, want ErrSystemPaused", err)
	}
	if _, err := engine.TransferWithTax(sender, receiver, big.NewInt(100), false); err != nil {
		t.Fatalf("non-sell transfer under pause failed: %v", err)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	state := newMockState()
	sender, receiver := addr(1), addr(2)
	state.setBalance(sender, 99)

	engine, _ := newTestEngine(state)
	if _, err := engine.TransferWithTax(sender, receiver, big.NewInt(100), false); err != ErrInsufficientBalance {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestTransferToSelfKeepsAliasedBalance(t *testing.T) {
	state := newMockState()
	sender := addr(1)
	state.setBalance(sender, 1_000_000)

	engine, _ := newTestEngine(state)
	receipt, err := engine.TransferWithTax(sender, sender, big.NewInt(1_000_000), false)
	if err != nil {
		t.Fatalf("self transfer failed: %v", err)
	}
	want := new(big.Int).Sub(big.NewInt(1_000_000), receipt.TaxAmount)
	if state.balance(sender).Cmp(want) != 0 {
		t.Fatalf("self transfer balance = %s, want %s", state.balance(sender), want)
	}
}

func TestTransferRejectsZeroAmount(t *testing.T) {
	engine, _ := newTestEngine(newMockState())
	if _, err := engine.TransferWithTax(addr(1), addr(2), big.NewInt(0), false); err != ErrInvalidAmount {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if _, err := engine.TransferWithTax(addr(1), addr(2), nil, false); err != ErrInvalidAmount {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestConsume(t *testing.T) {
	state := newMockState()
	user := addr(1)
	treasury := addr(0xDD)
	state.setBalance(user, 1_000)
	state.holders[user] = holder.NewRecord(user, user)

	engine, emitter := newTestEngine(state)
	if err := engine.Consume(user, big.NewInt(300), ConsumeMapAction); err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if got := state.balance(user).Int64(); got != 700 {
		t.Fatalf("user balance = %d, want 700", got)
	}
	if got := state.balance(treasury).Int64(); got != 300 {
		t.Fatalf("treasury balance = %d, want 300", got)
	}
	if got := state.holders[user].TotalConsumed.Int64(); got != 300 {
		t.Fatalf("TotalConsumed = %d, want 300", got)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypeConsumeRecorded {
		t.Fatal("expected a consume event")
	}
}

func TestConsumeRejections(t *testing.T) {
	state := newMockState()
	user := addr(1)
	state.setBalance(user, 10)

	engine, _ := newTestEngine(state)
	if err := engine.Consume(user, big.NewInt(5), ConsumeKind(99)); err != ErrUnknownConsumeKind {
		t.Fatalf("err = %v, want ErrUnknownConsumeKind", err)
	}
	if err := engine.Consume(user, big.NewInt(11), ConsumeOther); err != ErrInsufficientBalance {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	frozen := holder.NewRecord(user, user)
	if err := frozen.Freeze(1); err != nil {
		t.Fatal(err)
	}
	state.holders[user] = frozen
	if err := engine.Consume(user, big.NewInt(5), ConsumeOther); err != ErrSenderFrozen {
		t.Fatalf("err = %v, want ErrSenderFrozen", err)
	}
}

func TestPlatformTransfer(t *testing.T) {
	state := newMockState()
	platform, user := addr(0xAA), addr(1)
	state.setBalance(platform, 10_000)
	state.holders[user] = holder.NewRecord(user, user)

	engine, _ := newTestEngine(state)
	if err := engine.PlatformTransfer(platform, user, big.NewInt(2_500)); err != nil {
		t.Fatalf("platform transfer failed: %v", err)
	}
	if got := state.balance(user).Int64(); got != 2_500 {
		t.Fatalf("user balance = %d, want 2500", got)
	}
	if got := state.holders[user].TotalBought.Int64(); got != 2_500 {
		t.Fatalf("TotalBought = %d, want 2500", got)
	}
	if state.holders[user].FirstHoldTime == 0 {
		t.Fatal("platform credit must start the holding clock")
	}
}

func TestQuoteTaxExempt(t *testing.T) {
	state := newMockState()
	sender := addr(1)
	if err := state.policy.AddExempt(sender); err != nil {
		t.Fatal(err)
	}
	engine, _ := newTestEngine(state)
	calc, err := engine.QuoteTax(sender, big.NewInt(1_000), false, true)
	if err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if calc.TaxAmount.Sign() != 0 {
		t.Fatal("exempt quote must be zero tax")
	}
}
