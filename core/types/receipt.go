package types

import "github.com/ethereum/go-ethereum/common"

// ReceiptStatus reports whether the batch of an included transaction took
// effect.
type ReceiptStatus uint8

const (
	ReceiptSucceeded ReceiptStatus = iota + 1
	ReceiptReverted
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptSucceeded:
		return "succeeded"
	case ReceiptReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Receipt is produced for every transaction that passed validation.
type Receipt struct {
	TxHash       common.Hash   `json:"txHash"`
	Account      Address       `json:"account"`
	Nonce        uint64        `json:"nonce"`
	Status       ReceiptStatus `json:"status"`
	RevertReason string        `json:"revertReason,omitempty"`
	ReturnData   []Word        `json:"returnData,omitempty"`
	Events       []Event       `json:"events,omitempty"`
	StateRoot    common.Hash   `json:"stateRoot"`
}
