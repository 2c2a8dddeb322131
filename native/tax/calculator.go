package tax

import "math/big"

// Holder exposes the holding history the calculator needs from a ledger
// record. A nil Holder means the address has no record yet and receives the
// base rate only.
type Holder interface {
	HoldingDays(now int64) uint64
}

// Calculation is the transient result of a tax quote. It is never persisted.
type Calculation struct {
	BaseBps     uint32
	DiscountBps uint32
	PenaltyBps  uint32
	FinalBps    uint32
	TaxAmount   *big.Int
	NetAmount   *big.Int
}

// DiscountTier names the holding-day bands of the loyalty discount table.
type DiscountTier uint8

const (
	TierNone DiscountTier = iota
	Tier30
	Tier90
	Tier180
	Tier365
)

// TierForDays maps whole holding days onto the discount table.
func TierForDays(days uint64) DiscountTier {
	switch {
	case days >= 365:
		return Tier365
	case days >= 180:
		return Tier180
	case days >= 90:
		return Tier90
	case days >= 30:
		return Tier30
	default:
		return TierNone
	}
}

// Bps returns the tier's discount expressed as a share of the base rate, in
// basis points of the base.
func (t DiscountTier) Bps() uint32 {
	switch t {
	case Tier365:
		return 7_500
	case Tier180:
		return 5_000
	case Tier90:
		return 2_500
	case Tier30:
		return 1_000
	default:
		return 0
	}
}

func (t DiscountTier) String() string {
	switch t {
	case Tier365:
		return "365d+"
	case Tier180:
		return "180d"
	case Tier90:
		return "90d"
	case Tier30:
		return "30d"
	default:
		return "none"
	}
}

// Calculate computes the effective tax for a transfer. It is a pure function:
// no state is read or written beyond the supplied snapshot values. The
// holding discount and whale penalty come from the discrete tier tables; the
// continuous alpha/beta/gamma formulation in the policy documents intent
// only.
func Calculate(amount *big.Int, h Holder, totalSupply *big.Int, now int64, isBuy, isSell bool, policy *Policy) (*Calculation, error) {
	if policy == nil {
		return nil, ErrNilPolicy
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	base := policy.BaseBps

	var discount uint32
	if h != nil {
		tier := TierForDays(h.HoldingDays(now))
		// discount = base * tierShare / 10000, always <= base
		discount = uint32(uint64(base) * uint64(tier.Bps()) / BpsDenominator)
	}

	var penalty uint32
	if isSell {
		p, err := whalePenaltyBps(amount, totalSupply)
		if err != nil {
			return nil, err
		}
		penalty = p
	}

	afterDiscount := saturatingSub(base, discount)
	final := saturatingAdd(afterDiscount, penalty)
	if final > MaxTaxBps {
		final = MaxTaxBps
	}

	taxAmount := shareOf(amount, final)
	netAmount := new(big.Int).Sub(amount, taxAmount)

	return &Calculation{
		BaseBps:     base,
		DiscountBps: discount,
		PenaltyBps:  penalty,
		FinalBps:    final,
		TaxAmount:   taxAmount,
		NetAmount:   netAmount,
	}, nil
}

// whalePenaltyBps maps the sell size, as a fraction of total supply, onto the
// penalty table. A zero or absent supply yields no penalty; an amount larger
// than the supply is rejected rather than truncated.
func whalePenaltyBps(amount, totalSupply *big.Int) (uint32, error) {
	if totalSupply == nil || totalSupply.Sign() == 0 {
		return 0, nil
	}
	if amount.Cmp(totalSupply) > 0 {
		return 0, ErrAmountExceedsSupply
	}
	ratio := new(big.Int).Mul(amount, big.NewInt(BpsDenominator))
	ratio.Quo(ratio, totalSupply)
	ratioBps := ratio.Uint64()
	switch {
	case ratioBps >= 200:
		return 500, nil
	case ratioBps >= 100:
		return 300, nil
	case ratioBps >= 50:
		return 200, nil
	case ratioBps >= 10:
		return 100, nil
	default:
		return 0, nil
	}
}

// shareOf computes amount * bps / 10000 rounding down.
func shareOf(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bps)))
	return share.Quo(share, big.NewInt(BpsDenominator))
}

// Rate composition saturates within bounds by policy; monetary arithmetic
// elsewhere stays checked.
func saturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

func saturatingAdd(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > BpsDenominator {
		return BpsDenominator
	}
	return uint32(sum)
}
