package account

import (
	"smartwallet/core/contract"
	"smartwallet/core/types"
)

func (a *Account) addPlugin(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	plugin := types.ClassHashFromWord(in.Word())
	if err := in.Err(); err != nil {
		return nil, err
	}
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	if plugin == (types.ClassHash{}) || !ctx.IsDeclared(plugin) {
		return nil, ErrPluginInvalid
	}
	return nil, store{ctx: ctx}.setPlugin(plugin, true)
}

func (a *Account) removePlugin(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	plugin := types.ClassHashFromWord(in.Word())
	if err := in.Err(); err != nil {
		return nil, err
	}
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	st := store{ctx: ctx}
	installed, err := st.isPlugin(plugin)
	if err != nil {
		return nil, err
	}
	if !installed {
		return nil, ErrUnknownPlugin
	}
	return nil, st.setPlugin(plugin, false)
}

func (a *Account) isPlugin(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	plugin := types.ClassHashFromWord(in.Word())
	if err := in.Err(); err != nil {
		return nil, err
	}
	installed, err := store{ctx: ctx}.isPlugin(plugin)
	return []types.Word{types.BoolWord(installed)}, err
}

// usePlugin only marks a batch for plugin validation; executing it does
// nothing.
func (a *Account) usePlugin(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	return nil, onlySelf(ctx)
}

// executeOnPlugin runs a plugin entry point against the account's storage.
func (a *Account) executeOnPlugin(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	plugin, sel, calldata, err := pluginCall(in)
	if err != nil {
		return nil, err
	}
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	if err := requirePlugin(ctx, plugin); err != nil {
		return nil, err
	}
	return ctx.LibraryCall(plugin, sel, calldata)
}

func (a *Account) readOnPlugin(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	plugin, sel, calldata, err := pluginCall(in)
	if err != nil {
		return nil, err
	}
	if err := requirePlugin(ctx, plugin); err != nil {
		return nil, err
	}
	return ctx.StaticLibraryCall(plugin, sel, calldata)
}

func pluginCall(in *contract.Reader) (types.ClassHash, types.Selector, []types.Word, error) {
	plugin := types.ClassHashFromWord(in.Word())
	sel := in.Selector()
	calldata := in.Array()
	return plugin, sel, calldata, in.Err()
}

func requirePlugin(ctx contract.Context, plugin types.ClassHash) error {
	installed, err := store{ctx: ctx}.isPlugin(plugin)
	if err != nil {
		return err
	}
	if !installed {
		return ErrUnknownPlugin
	}
	return nil
}
