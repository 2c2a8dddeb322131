package tax

import "math/big"

const (
	// BurnShareBps of collected tax is destroyed.
	BurnShareBps = 4_000
	// LiquidityShareBps of collected tax funds the liquidity pool.
	LiquidityShareBps = 3_000
	// CommunityShareBps of collected tax funds community rewards.
	CommunityShareBps = 2_000
	// Marketing receives the remainder after the three fixed shares, so the
	// buckets always sum exactly to the collected tax. Rounding loss favours
	// marketing; this is deliberate policy, not a rounding bug.
)

// Distribution splits a collected tax amount into its destination buckets.
type Distribution struct {
	ToBurn      *big.Int
	ToLiquidity *big.Int
	ToCommunity *big.Int
	ToMarketing *big.Int
}

// Split divides totalTax into burn/liquidity/community/marketing buckets.
// The invariant ToBurn+ToLiquidity+ToCommunity+ToMarketing == totalTax holds
// for every non-negative input.
func Split(totalTax *big.Int) (*Distribution, error) {
	if totalTax == nil || totalTax.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	toBurn := shareOf(totalTax, BurnShareBps)
	toLiquidity := shareOf(totalTax, LiquidityShareBps)
	toCommunity := shareOf(totalTax, CommunityShareBps)

	toMarketing := new(big.Int).Set(totalTax)
	toMarketing.Sub(toMarketing, toBurn)
	toMarketing.Sub(toMarketing, toLiquidity)
	toMarketing.Sub(toMarketing, toCommunity)

	return &Distribution{
		ToBurn:      toBurn,
		ToLiquidity: toLiquidity,
		ToCommunity: toCommunity,
		ToMarketing: toMarketing,
	}, nil
}

// Remainder returns the non-burn portion routed to the collector account.
func (d *Distribution) Remainder() *big.Int {
	if d == nil {
		return big.NewInt(0)
	}
	remainder := big.NewInt(0)
	if d.ToLiquidity != nil {
		remainder.Add(remainder, d.ToLiquidity)
	}
	if d.ToCommunity != nil {
		remainder.Add(remainder, d.ToCommunity)
	}
	if d.ToMarketing != nil {
		remainder.Add(remainder, d.ToMarketing)
	}
	return remainder
}
