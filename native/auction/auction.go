package auction

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxMessageLen bounds the taunt/bid message.
	MaxMessageLen = 100
	// MarkupPct is the minimum escalation per seizure: each bid must pay
	// 110% of the current price.
	MarkupPct = 110
	// TreasuryFeePct of the seizure payment goes to the protocol treasury;
	// the remainder pays the previous owner.
	TreasuryFeePct = 5
)

// Auction is the per-asset price state machine. The price never decreases;
// every seizure raises it to at least 110% of the previous value. Auctions
// have no end time.
type Auction struct {
	AssetID      string
	Owner        [20]byte
	Price        *big.Int
	StartPrice   *big.Int
	TauntMessage string
	CreatedAt    int64
	LastSeizedAt int64
}

// ID derives the deterministic storage key for an asset identifier.
func ID(assetID string) [32]byte {
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256([]byte(assetID)))
	return id
}

// Clone returns a deep copy of the auction record.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Price != nil {
		clone.Price = new(big.Int).Set(a.Price)
	}
	if a.StartPrice != nil {
		clone.StartPrice = new(big.Int).Set(a.StartPrice)
	}
	return &clone
}

// MinRequired computes the exact payment a seizure must supply: the current
// price marked up by 10%, rounded down.
func (a *Auction) MinRequired() (*big.Int, error) {
	if a == nil {
		return nil, ErrNilAuction
	}
	min := new(big.Int).Mul(a.Price, big.NewInt(MarkupPct))
	return min.Quo(min, big.NewInt(100)), nil
}

// Split divides a seizure payment between the protocol treasury fee and the
// previous owner's payout. fee + payout always equals the payment exactly;
// rounding loss favours the payout.
func (a *Auction) Split(payment *big.Int) (fee, payout *big.Int) {
	fee = new(big.Int).Mul(payment, big.NewInt(TreasuryFeePct))
	fee.Quo(fee, big.NewInt(100))
	payout = new(big.Int).Sub(payment, fee)
	return fee, payout
}
