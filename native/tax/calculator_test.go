package tax

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubHolder uint64

func (s stubHolder) HoldingDays(int64) uint64 { return uint64(s) }

func testPolicy() *Policy {
	return DefaultPolicy(0)
}

func TestCalculateNewHolderSell(t *testing.T) {
	supply := big.NewInt(1_000_000_000_000)
	calc, err := Calculate(big.NewInt(1_000_000), nil, supply, 0, false, true, testPolicy())
	require.NoError(t, err)
	require.Equal(t, uint32(200), calc.FinalBps)
	require.Equal(t, uint32(0), calc.DiscountBps)
	require.Equal(t, uint32(0), calc.PenaltyBps)
	require.Equal(t, int64(20_000), calc.TaxAmount.Int64())
	require.Equal(t, int64(980_000), calc.NetAmount.Int64())
}

func TestCalculateWhalePenalty(t *testing.T) {
	supply := big.NewInt(1_000_000_000_000)
	// 3% of supply lands in the >=2% band
	calc, err := Calculate(big.NewInt(30_000_000_000), nil, supply, 0, false, true, testPolicy())
	require.NoError(t, err)
	require.Equal(t, uint32(500), calc.PenaltyBps)
	require.Equal(t, uint32(700), calc.FinalBps)
}

func TestCalculateLoyaltyDiscount(t *testing.T) {
	supply := big.NewInt(1_000_000_000_000)
	calc, err := Calculate(big.NewInt(1_000_000), stubHolder(400), supply, 0, false, false, testPolicy())
	require.NoError(t, err)
	require.Equal(t, uint32(150), calc.DiscountBps)
	require.Equal(t, uint32(50), calc.FinalBps)
}

func TestCalculateConservation(t *testing.T) {
	supply := big.NewInt(1_000_000_000_000)
	for _, amount := range []int64{1, 7, 999, 1_000_000, 12_345_678_901} {
		calc, err := Calculate(big.NewInt(amount), stubHolder(91), supply, 0, false, true, testPolicy())
		require.NoError(t, err)
		sum := new(big.Int).Add(calc.TaxAmount, calc.NetAmount)
		require.Zero(t, sum.Cmp(big.NewInt(amount)), "tax + net must equal amount for %d", amount)
	}
}

func TestCalculateFinalWithinBounds(t *testing.T) {
	policy := testPolicy()
	policy.BaseBps = MaxTaxBps
	supply := big.NewInt(100)
	// max base plus the top whale band must still clamp at the cap
	calc, err := Calculate(big.NewInt(100), nil, supply, 0, false, true, policy)
	require.NoError(t, err)
	require.LessOrEqual(t, calc.FinalBps, uint32(MaxTaxBps))
}

func TestCalculateTierMonotonicity(t *testing.T) {
	supply := big.NewInt(1_000_000_000_000)
	prev := uint32(BpsDenominator)
	for _, days := range []uint64{0, 29, 30, 89, 90, 179, 180, 364, 365, 1000} {
		calc, err := Calculate(big.NewInt(1_000_000), stubHolder(days), supply, 0, false, false, testPolicy())
		require.NoError(t, err)
		require.LessOrEqual(t, calc.FinalBps, prev, "rate must not grow with holding days (days=%d)", days)
		prev = calc.FinalBps
	}
}

func TestCalculateAmountExceedsSupply(t *testing.T) {
	supply := big.NewInt(1_000)
	_, err := Calculate(big.NewInt(1_001), nil, supply, 0, false, true, testPolicy())
	require.ErrorIs(t, err, ErrAmountExceedsSupply)
}

func TestCalculateZeroSupplyNoPenalty(t *testing.T) {
	calc, err := Calculate(big.NewInt(1_000_000), nil, big.NewInt(0), 0, false, true, testPolicy())
	require.NoError(t, err)
	require.Equal(t, uint32(0), calc.PenaltyBps)
}

func TestCalculateRejectsInvalidAmount(t *testing.T) {
	supply := big.NewInt(1_000)
	_, err := Calculate(big.NewInt(0), nil, supply, 0, false, false, testPolicy())
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Calculate(nil, nil, supply, 0, false, false, testPolicy())
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Calculate(big.NewInt(10), nil, supply, 0, false, false, nil)
	require.ErrorIs(t, err, ErrNilPolicy)
}

func TestWhalePenaltyBands(t *testing.T) {
	supply := big.NewInt(10_000)
	cases := []struct {
		amount  int64
		penalty uint32
	}{
		{9, 0},     // below 0.1%
		{10, 100},  // 0.1%
		{49, 100},  // just under 0.5%
		{50, 200},  // 0.5%
		{99, 200},  // just under 1%
		{100, 300}, // 1%
		{199, 300}, // just under 2%
		{200, 500}, // 2%
		{10_000, 500},
	}
	for _, tc := range cases {
		penalty, err := whalePenaltyBps(big.NewInt(tc.amount), supply)
		require.NoError(t, err)
		require.Equal(t, tc.penalty, penalty, "amount %d", tc.amount)
	}
}
