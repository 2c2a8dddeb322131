package tax

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitExampleShares(t *testing.T) {
	dist, err := Split(big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, int64(400), dist.ToBurn.Int64())
	require.Equal(t, int64(300), dist.ToLiquidity.Int64())
	require.Equal(t, int64(200), dist.ToCommunity.Int64())
	require.Equal(t, int64(100), dist.ToMarketing.Int64())
}

func TestSplitExactSum(t *testing.T) {
	for _, total := range []int64{0, 1, 3, 7, 999, 1001, 999_983, 123_456_789} {
		dist, err := Split(big.NewInt(total))
		require.NoError(t, err)
		sum := new(big.Int).Add(dist.ToBurn, dist.ToLiquidity)
		sum.Add(sum, dist.ToCommunity)
		sum.Add(sum, dist.ToMarketing)
		require.Zero(t, sum.Cmp(big.NewInt(total)), "buckets must sum to %d", total)
		require.GreaterOrEqual(t, dist.ToMarketing.Sign(), 0)
	}
}

func TestSplitRemainder(t *testing.T) {
	dist, err := Split(big.NewInt(1001))
	require.NoError(t, err)
	want := new(big.Int).Sub(big.NewInt(1001), dist.ToBurn)
	require.Zero(t, dist.Remainder().Cmp(want), "remainder must be total minus burn")
}

func TestSplitRejectsNegative(t *testing.T) {
	_, err := Split(big.NewInt(-1))
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Split(nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
}
