package types

import "math/big"

// Account is the ledger-side record for a market participant. Only components
// instantiated from the account template may receive deposits; the state
// manager tracks that capability separately from the balance record.
type Account struct {
	Nonce      uint64   `json:"nonce"`
	BalanceMKT *big.Int `json:"balanceMKT"`
}

// Clone returns a deep copy of the account so callers can mutate the result
// without affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.BalanceMKT != nil {
		clone.BalanceMKT = new(big.Int).Set(a.BalanceMKT)
	} else {
		clone.BalanceMKT = big.NewInt(0)
	}
	return &clone
}
