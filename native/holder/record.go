package holder

import "math/big"

// SecondsPerDay converts holding durations into whole days.
const SecondsPerDay = 86_400

// Record tracks per-address holding history and trading statistics. It is
// created on first receipt of the asset and never deleted; the cumulative
// totals are monotonically non-decreasing.
type Record struct {
	Owner               [20]byte
	BalanceAccount      [20]byte
	FirstHoldTime       int64
	LastTransactionTime int64
	TotalBought         *big.Int
	TotalSold           *big.Int
	TotalTaxPaid        *big.Int
	TotalConsumed       *big.Int
	Frozen              bool
	FreezeReason        uint8
}

// NewRecord returns an empty record for an address that is about to receive
// its first credit.
func NewRecord(owner, balanceAccount [20]byte) *Record {
	return &Record{
		Owner:          owner,
		BalanceAccount: balanceAccount,
		TotalBought:    big.NewInt(0),
		TotalSold:      big.NewInt(0),
		TotalTaxPaid:   big.NewInt(0),
		TotalConsumed:  big.NewInt(0),
	}
}

// Clone returns a deep copy so engines can mutate a working copy and persist
// only after every step of an operation has succeeded.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.TotalBought = cloneBig(r.TotalBought)
	clone.TotalSold = cloneBig(r.TotalSold)
	clone.TotalTaxPaid = cloneBig(r.TotalTaxPaid)
	clone.TotalConsumed = cloneBig(r.TotalConsumed)
	return &clone
}

// HoldingDays returns the whole days elapsed since the first credited
// receipt. A record that has never been credited, or a clock behind the
// first hold time, yields zero.
func (r *Record) HoldingDays(now int64) uint64 {
	if r == nil || r.FirstHoldTime == 0 || now <= r.FirstHoldTime {
		return 0
	}
	return uint64(now-r.FirstHoldTime) / SecondsPerDay
}

// RecordBuy credits the buy statistics. FirstHoldTime is set only on the
// first-ever credit and never reset afterwards.
func (r *Record) RecordBuy(amount, taxPaid *big.Int, now int64) error {
	if r == nil {
		return ErrNilRecord
	}
	if err := addChecked(&r.TotalBought, amount); err != nil {
		return err
	}
	if err := addChecked(&r.TotalTaxPaid, taxPaid); err != nil {
		return err
	}
	r.LastTransactionTime = now
	if r.FirstHoldTime == 0 {
		r.FirstHoldTime = now
	}
	return nil
}

// RecordSell credits the sell statistics. It does not touch FirstHoldTime.
func (r *Record) RecordSell(amount, taxPaid *big.Int, now int64) error {
	if r == nil {
		return ErrNilRecord
	}
	if err := addChecked(&r.TotalSold, amount); err != nil {
		return err
	}
	if err := addChecked(&r.TotalTaxPaid, taxPaid); err != nil {
		return err
	}
	r.LastTransactionTime = now
	return nil
}

// RecordConsume credits the consumption statistics used for tax-free
// treasury payments.
func (r *Record) RecordConsume(amount *big.Int, now int64) error {
	if r == nil {
		return ErrNilRecord
	}
	if err := addChecked(&r.TotalConsumed, amount); err != nil {
		return err
	}
	r.LastTransactionTime = now
	return nil
}

// Freeze marks the record frozen. Freezing an already-frozen record is an
// error, not a no-op.
func (r *Record) Freeze(reason uint8) error {
	if r == nil {
		return ErrNilRecord
	}
	if r.Frozen {
		return ErrAlreadyFrozen
	}
	r.Frozen = true
	r.FreezeReason = reason
	return nil
}

// Unfreeze clears the frozen flag. Unfreezing a non-frozen record is an
// error.
func (r *Record) Unfreeze() error {
	if r == nil {
		return ErrNilRecord
	}
	if !r.Frozen {
		return ErrNotFrozen
	}
	r.Frozen = false
	r.FreezeReason = 0
	return nil
}

// addChecked applies a monotone credit to a cumulative statistic. Negative
// deltas are rejected so totals can never decrease.
func addChecked(total **big.Int, delta *big.Int) error {
	if delta == nil {
		return nil
	}
	if delta.Sign() < 0 {
		return ErrInvalidAmount
	}
	if *total == nil {
		*total = big.NewInt(0)
	}
	*total = new(big.Int).Add(*total, delta)
	return nil
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
