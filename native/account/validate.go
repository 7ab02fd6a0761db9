package account

import (
	"smartwallet/core/contract"
	"smartwallet/core/types"
)

// validateTransaction authorizes the transaction in TxInfo. A batch that
// opens with usePlugin on the account itself is handed to that plugin;
// everything else goes through the evaluator with the authority the call
// shape demands.
func (a *Account) validateTransaction(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	if err := onlyProtocol(ctx); err != nil {
		return nil, err
	}
	calldata := in.Rest()
	arr, err := types.DecodeCallArray(calldata)
	if err != nil {
		return nil, err
	}
	tx := ctx.TxInfo()
	self := ctx.Self()

	if len(arr.Entries) > 0 && arr.Entries[0].To == self && arr.Entries[0].Selector == UsePluginSelector {
		return nil, validateWithPlugin(ctx, arr, calldata)
	}

	auth := authorityFull
	if len(arr.Entries) == 1 && arr.Entries[0].To == self {
		sel := arr.Entries[0].Selector
		if sel == ExecuteAfterUpgradeSelector {
			return nil, ErrForbiddenCall
		}
		if override, ok := selfCallAuthority[sel]; ok {
			auth = override
		}
	}
	ev, err := newEvaluator(ctx)
	if err != nil {
		return nil, err
	}
	return nil, ev.check(auth, tx.Hash, tx.Signature)
}

// validateDeploy authorizes a self-deployment against the credentials the
// constructor just stored: [class_hash, salt, constructor calldata...].
// A guardian set at construction must co-sign.
func (a *Account) validateDeploy(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	if err := onlyProtocol(ctx); err != nil {
		return nil, err
	}
	_ = in.Word()
	_ = in.Word()
	if err := in.Err(); err != nil {
		return nil, err
	}
	ev, err := newEvaluator(ctx)
	if err != nil {
		return nil, err
	}
	tx := ctx.TxInfo()
	return nil, ev.check(authorityFull, tx.Hash, tx.Signature)
}

// validateWithPlugin library-calls the plugin named by the first word of the
// bootstrap call. The plugin receives its own data as an array followed by
// the untouched execute calldata.
func validateWithPlugin(ctx contract.Context, arr *types.CallArray, calldata []types.Word) error {
	if arr.Entries[0].DataLen == 0 {
		return ErrUnknownPlugin
	}
	window, err := arr.Window(0, arr.Entries[0].DataLen)
	if err != nil {
		return err
	}
	plugin := types.ClassHashFromWord(window[0])
	installed, err := store{ctx: ctx}.isPlugin(plugin)
	if err != nil {
		return err
	}
	if !installed {
		return ErrUnknownPlugin
	}
	pluginData := window[1:]
	args := make([]types.Word, 0, 1+len(pluginData)+len(calldata))
	args = append(args, types.NewWord(uint64(len(pluginData))))
	args = append(args, pluginData...)
	args = append(args, calldata...)
	_, err = ctx.LibraryCall(plugin, PluginValidateSelector, args)
	return err
}
