package auction

import "totchain/core/types"

// accountCache hands out one working copy per address within a single
// operation, so transfers whose endpoints alias (bidder seizing their own
// auction, treasury owning the asset) observe each other's balance changes.
// Nothing is persisted until flush.
type accountCache struct {
	state  engineState
	loaded map[[20]byte]*types.Account
	order  [][20]byte
}

func newAccountCache(state engineState) *accountCache {
	return &accountCache{state: state, loaded: make(map[[20]byte]*types.Account)}
}

func (c *accountCache) get(addr [20]byte) (*types.Account, error) {
	if account, ok := c.loaded[addr]; ok {
		return account, nil
	}
	account, err := c.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	working := types.EnsureAccount(account).Clone()
	c.loaded[addr] = working
	c.order = append(c.order, addr)
	return working, nil
}

func (c *accountCache) flush() error {
	for _, addr := range c.order {
		if err := c.state.PutAccount(addr, c.loaded[addr]); err != nil {
			return err
		}
	}
	return nil
}
