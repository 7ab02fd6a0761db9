// Package proxy implements the upgradeable proxy class. A proxy owns the
// storage of the account it fronts and runs every entry point it does not
// know itself as a library call into the implementation named by
// ImplementationSlot.
package proxy

import (
	"errors"

	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/crypto"
)

// Name is the declared name of the proxy class.
const Name = "Proxy"

// ImplementationSlot is the storage key holding the implementation class
// hash. Implementations write it to upgrade themselves.
var ImplementationSlot = crypto.TypeHash("proxy_implementation")

var (
	ErrImplementationNotSet  = errors.New("proxy: implementation not set")
	ErrInvalidImplementation = errors.New("proxy: invalid implementation")
)

var GetImplementationSelector = types.SelectorFromName("get_implementation")

// Proxy is the proxy class. It carries no configuration.
type Proxy struct{}

// New returns the proxy class.
func New() *Proxy { return &Proxy{} }

// Name implements contract.Class.
func (*Proxy) Name() string { return Name }

func (*Proxy) Failures() []error {
	return []error{ErrImplementationNotSet, ErrInvalidImplementation}
}

// Invoke implements contract.Class.
func (p *Proxy) Invoke(ctx contract.Context, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	switch selector {
	case contract.ConstructorSelector:
		return p.constructor(ctx, contract.NewReader(calldata))
	case GetImplementationSelector:
		impl, err := implementation(ctx)
		return []types.Word{types.ClassHashWord(impl)}, err
	}
	impl, err := implementation(ctx)
	if err != nil {
		return nil, err
	}
	if impl == (types.ClassHash{}) {
		return nil, ErrImplementationNotSet
	}
	return ctx.LibraryCall(impl, selector, calldata)
}

// constructor stores the implementation and, when initSelector is non-zero,
// runs it on the implementation with calldata as arguments:
// [implementation, init_selector, len, calldata...].
func (p *Proxy) constructor(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	impl := types.ClassHashFromWord(in.Word())
	initSelector := in.Selector()
	calldata := in.Array()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if impl == (types.ClassHash{}) || !ctx.IsDeclared(impl) {
		return nil, ErrInvalidImplementation
	}
	if err := ctx.StorageWrite(ImplementationSlot, types.ClassHashWord(impl)); err != nil {
		return nil, err
	}
	if initSelector == 0 {
		return nil, nil
	}
	if _, err := ctx.LibraryCall(impl, initSelector, calldata); err != nil {
		return nil, err
	}
	return nil, nil
}

func implementation(ctx contract.Context) (types.ClassHash, error) {
	w, err := ctx.StorageRead(ImplementationSlot)
	if err != nil {
		return types.ClassHash{}, err
	}
	return types.ClassHashFromWord(w), nil
}

// ConstructorCalldata builds the proxy constructor arguments.
func ConstructorCalldata(impl types.ClassHash, initSelector types.Selector, calldata []types.Word) []types.Word {
	out := make([]types.Word, 0, 3+len(calldata))
	out = append(out, types.ClassHashWord(impl), initSelector.Word(), types.NewWord(uint64(len(calldata))))
	return append(out, calldata...)
}
