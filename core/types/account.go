package types

// Account is the ledger record kept for every deployed contract address. The
// nonce is only meaningful for addresses that submit transactions.
type Account struct {
	ClassHash ClassHash `json:"classHash"`
	Nonce     uint64    `json:"nonce"`
}

// Deployed reports whether the record points at declared code.
func (a *Account) Deployed() bool {
	return a != nil && a.ClassHash != (ClassHash{})
}
