package types

import (
	"github.com/ethereum/go-ethereum/common"

	"smartwallet/crypto"
)

// TransactionVersion is the only version accepted by the ledger.
const TransactionVersion uint64 = 1

var (
	invokePrefix        = crypto.ShortString("invoke")
	deployAccountPrefix = crypto.ShortString("deploy_account")
)

// Transaction is an account-originated invocation. Calldata is the flat call
// array handed to the account's execute entry point; Signature is opaque to
// the ledger and interpreted by the account's validate entry point.
type Transaction struct {
	Account   Address `json:"account"`
	Calldata  []Word  `json:"calldata"`
	Nonce     uint64  `json:"nonce"`
	MaxFee    Word    `json:"maxFee"`
	Version   uint64  `json:"version"`
	Signature []Word  `json:"signature"`
}

// NewTransaction builds an unsigned transaction for the calls.
func NewTransaction(account Address, calls []Call, nonce uint64) *Transaction {
	return &Transaction{
		Account:  account,
		Calldata: EncodeCalls(calls),
		Nonce:    nonce,
		Version:  TransactionVersion,
	}
}

// Digest is the domain-separated hash signed by the account's credentials. It
// binds the account address, the calldata, the nonce, the fee and the chain.
func (tx *Transaction) Digest(chainID Word) common.Hash {
	w := crypto.HashElements(
		invokePrefix,
		NewWord(tx.Version),
		AddressWord(tx.Account),
		crypto.HashElements(tx.Calldata...),
		tx.MaxFee,
		chainID,
		NewWord(tx.Nonce),
	)
	return crypto.HashFromWord(w)
}

// DeployAccountTransaction deploys an account that authorizes its own
// creation. Calldata is handed to the class constructor and Signature to its
// validate-deploy entry point.
type DeployAccountTransaction struct {
	ClassHash ClassHash `json:"classHash"`
	Salt      Word      `json:"salt"`
	Calldata  []Word    `json:"calldata"`
	MaxFee    Word      `json:"maxFee"`
	Version   uint64    `json:"version"`
	Signature []Word    `json:"signature"`
}

// Digest is the hash the new account's credentials sign. addr is the address
// the deployment resolves to.
func (tx *DeployAccountTransaction) Digest(chainID Word, addr Address) common.Hash {
	w := crypto.HashElements(
		deployAccountPrefix,
		NewWord(tx.Version),
		AddressWord(addr),
		ClassHashWord(tx.ClassHash),
		tx.Salt,
		crypto.HashElements(tx.Calldata...),
		tx.MaxFee,
		chainID,
	)
	return crypto.HashFromWord(w)
}

// ChainIDWord encodes a chain identifier string as a word.
func ChainIDWord(chainID string) Word {
	return crypto.ShortString(chainID)
}
