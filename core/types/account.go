package types

import "math/big"

// Account is the ledger entry for a single principal. Balances are kept in
// UNIT smallest units (six decimals).
type Account struct {
	Nonce       uint64   `json:"nonce"`
	BalanceUNIT *big.Int `json:"balanceUNIT"`
}
