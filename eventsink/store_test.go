package eventsink

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"totchain/core/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.SetNowFunc(func() int64 { return 1_700_000_000 })
	return store
}

func TestEmitAndRecent(t *testing.T) {
	store := openTestStore(t)

	var from, to [20]byte
	from[0], to[0] = 1, 2
	store.Emit(events.TransferSettled{
		From:      from,
		To:        to,
		Amount:    big.NewInt(1_000),
		TaxAmount: big.NewInt(20),
		NetAmount: big.NewInt(980),
		RateBps:   200,
		Burned:    big.NewInt(8),
		Timestamp: 1_700_000_000,
	})
	store.Emit(events.PauseChanged{Paused: true, Timestamp: 1_700_000_001})

	recent, err := store.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	// descending journal order
	require.Equal(t, events.TypePauseChanged, recent[0].Type)
	require.Equal(t, events.TypeTransferSettled, recent[1].Type)
	require.Greater(t, recent[0].Seq, recent[1].Seq)
	require.NotEmpty(t, recent[0].ID)
	require.Equal(t, "1000", recent[1].Attributes["amount"])
	require.Equal(t, "200", recent[1].Attributes["rateBps"])
}

func TestRecentLimit(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 5; i++ {
		store.Emit(events.PauseChanged{Paused: i%2 == 0, Timestamp: int64(i)})
	}
	recent, err := store.Recent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
}

func TestRecentEmpty(t *testing.T) {
	store := openTestStore(t)
	recent, err := store.Recent(10)
	require.NoError(t, err)
	require.Empty(t, recent)
}
