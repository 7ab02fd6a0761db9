// Package contract defines the boundary between the ledger and contract code:
// the Class a contract is an instance of, and the Context through which a
// running entry point reaches storage, other contracts and the host.
package contract

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"smartwallet/core/types"
)

var (
	ErrEntryPointNotFound = errors.New("contract: entry point not found")
	ErrCalldataTooShort   = errors.New("contract: calldata too short")
	ErrInvalidCalldata    = errors.New("contract: calldata value out of range")
	ErrStaticWrite        = errors.New("contract: state change in read-only call")
)

// Class is declared contract code. Instances deployed from the same class
// share behaviour but never storage.
type Class interface {
	Name() string
	Invoke(ctx Context, selector types.Selector, calldata []types.Word) ([]types.Word, error)
}

// Failures is implemented by classes whose entry points fail with a fixed
// set of sentinel errors. The ledger labels failure metrics with them.
type Failures interface {
	Failures() []error
}

// HashOf returns the hash a class is declared under.
func HashOf(c Class) types.ClassHash {
	return types.ClassHashOf(c.Name())
}

// TxInfo describes the transaction being processed. It is zero for direct
// invocations and read-only calls.
type TxInfo struct {
	Account   types.Address
	Hash      common.Hash
	Nonce     uint64
	MaxFee    types.Word
	Version   uint64
	Signature []types.Word
}

// Context is the host interface available to a running entry point.
//
// Storage operations address the storage of Self. LibraryCall runs another
// class's code against that same storage; Call switches to the target's
// storage with Self as the caller.
type Context interface {
	Self() types.Address
	Caller() types.Address
	Now() uint64
	ChainID() types.Word
	TxInfo() TxInfo

	StorageRead(key types.Word) (types.Word, error)
	StorageWrite(key, value types.Word) error

	Call(to types.Address, selector types.Selector, calldata []types.Word) ([]types.Word, error)
	LibraryCall(class types.ClassHash, selector types.Selector, calldata []types.Word) ([]types.Word, error)
	// StaticLibraryCall is LibraryCall with every state change refused.
	StaticLibraryCall(class types.ClassHash, selector types.Selector, calldata []types.Word) ([]types.Word, error)

	// ClassAt returns the class deployed at addr, or the zero hash.
	ClassAt(addr types.Address) (types.ClassHash, error)
	IsDeclared(class types.ClassHash) bool
	// ReplaceClass swaps the class of Self. The running frame keeps executing
	// the old code; later calls dispatch to the new class.
	ReplaceClass(class types.ClassHash) error

	Emit(evt types.Event)
}

// Selectors the ledger invokes on its own.
var (
	ConstructorSelector = types.SelectorFromName("constructor")
	ValidateSelector    = types.SelectorFromName("__validate__")
	ExecuteSelector     = types.SelectorFromName("__execute__")
	// ValidateDeploySelector receives [class_hash, salt, constructor
	// calldata...] when an account is deployed by its own transaction.
	ValidateDeploySelector = types.SelectorFromName("__validate_deploy__")
)
