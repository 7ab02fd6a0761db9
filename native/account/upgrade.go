package account

import (
	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/native/proxy"
)

// upgrade switches the account to impl and then runs data, a call array,
// through execute_after_upgrade on the new code. impl must be declared and
// must answer supportsInterface(InterfaceAccount) with true.
func (a *Account) upgrade(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	impl := types.ClassHashFromWord(in.Word())
	data := in.Array()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	if !ctx.IsDeclared(impl) {
		return nil, ErrInvalidImplementation
	}
	ret, err := ctx.StaticLibraryCall(impl, SupportsInterfaceSelector, []types.Word{types.NewWord(uint64(InterfaceAccount))})
	if err != nil || len(ret) != 1 || !ret[0].IsUint64() || ret[0].Uint64() != 1 {
		return nil, ErrInvalidImplementation
	}

	_, proxied, err := a.implementation(ctx)
	if err != nil {
		return nil, err
	}
	if proxied {
		err = ctx.StorageWrite(proxy.ImplementationSlot, types.ClassHashWord(impl))
	} else {
		err = ctx.ReplaceClass(impl)
	}
	if err != nil {
		return nil, err
	}
	ctx.Emit(newAccountUpgradedEvent(impl))
	return ctx.Call(ctx.Self(), ExecuteAfterUpgradeSelector, data)
}
