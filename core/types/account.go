package types

import "math/big"

// Address is a 20-byte account identifier. Callers are expected to have
// validated ownership before an address reaches the settlement core.
type Address = [20]byte

// Account holds the fungible balance tracked by the settlement ledger. The
// nonce counts settled operations originated by the account.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Clone returns a deep copy so callers can mutate the result without
// aliasing the stored account.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	clone := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}

// EnsureAccount normalises a possibly-nil account into a usable value.
func EnsureAccount(a *Account) *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	return a
}
