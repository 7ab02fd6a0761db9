package account

import (
	"fmt"

	"smartwallet/core/contract"
	"smartwallet/core/types"
)

// Smart multicall argument tags.
const (
	argValue     uint64 = 0
	argReference uint64 = 1
)

// executor runs one decoded batch.
type executor struct {
	ctx          contract.Context
	afterUpgrade bool
}

func (a *Account) executeTransaction(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	if err := onlyProtocol(ctx); err != nil {
		return nil, err
	}
	arr, err := types.DecodeCallArray(in.Rest())
	if err != nil {
		return nil, err
	}
	resp, err := executor{ctx: ctx}.run(arr)
	if err != nil {
		return nil, err
	}
	ctx.Emit(newTransactionExecutedEvent(ctx.TxInfo().Hash, len(resp)))
	return resp, nil
}

// executeAfterUpgrade runs the payload handed over by upgrade. It answers only
// the account itself and refuses every self-call inside the payload.
func (a *Account) executeAfterUpgrade(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	data := in.Rest()
	if len(data) == 0 {
		return []types.Word{types.NewWord(0)}, nil
	}
	arr, err := types.DecodeCallArray(data)
	if err != nil {
		return nil, err
	}
	resp, err := executor{ctx: ctx, afterUpgrade: true}.run(arr)
	if err != nil {
		return nil, err
	}
	return append([]types.Word{types.NewWord(uint64(len(resp)))}, resp...), nil
}

// run executes the batch in order and returns [len_i, result_i...] for every
// call. A leading usePlugin or use_smart_multicall entry is a marker consumed
// by validation and is not executed.
func (e executor) run(arr *types.CallArray) ([]types.Word, error) {
	self := e.ctx.Self()
	start, smart := 0, false
	if len(arr.Entries) > 0 {
		first := arr.Entries[0]
		switch {
		case first.To == self && first.Selector == UsePluginSelector:
			start = 1
		case first.To == (types.Address{}) && first.Selector == UseSmartMulticallSelector:
			start, smart = 1, true
		}
	}
	if err := e.checkSelfCalls(arr, start); err != nil {
		return nil, err
	}

	var resp, results []types.Word
	for i := start; i < len(arr.Entries); i++ {
		entry := arr.Entries[i]
		var (
			calldata []types.Word
			err      error
		)
		if smart {
			calldata, err = resolveArguments(arr, i, results)
		} else {
			calldata, err = arr.Window(i, entry.DataLen)
		}
		if err != nil {
			return nil, &MulticallError{Index: i, Err: err}
		}
		ret, err := e.ctx.Call(entry.To, entry.Selector, calldata)
		if err != nil {
			return nil, &MulticallError{Index: i, Err: err}
		}
		results = append(results, ret...)
		resp = append(resp, types.NewWord(uint64(len(ret))))
		resp = append(resp, ret...)
	}
	return resp, nil
}

// checkSelfCalls rejects calls back into the account unless the batch is a
// single ordinary call. execute_after_upgrade is never reachable from a
// batch, and an upgrade payload may not call the account at all.
func (e executor) checkSelfCalls(arr *types.CallArray, start int) error {
	self := e.ctx.Self()
	batched := len(arr.Entries)-start > 1
	for i := start; i < len(arr.Entries); i++ {
		entry := arr.Entries[i]
		if entry.To != self {
			continue
		}
		if e.afterUpgrade || batched || entry.Selector == ExecuteAfterUpgradeSelector {
			return &MulticallError{Index: i, Err: ErrForbiddenCall}
		}
	}
	return nil
}

// resolveArguments expands the (tag, value) pairs of a smart multicall entry.
// DataLen counts pairs; a reference indexes the flat result words of the
// calls executed so far.
func resolveArguments(arr *types.CallArray, i int, results []types.Word) ([]types.Word, error) {
	n := arr.Entries[i].DataLen
	if n > uint64(len(arr.Calldata))/2 {
		return nil, fmt.Errorf("%w: call %d declares %d arguments", types.ErrMalformedCallArray, i, n)
	}
	pairs, err := arr.Window(i, 2*n)
	if err != nil {
		return nil, err
	}
	args := make([]types.Word, n)
	for j := range args {
		tag, value := pairs[2*j], pairs[2*j+1]
		switch {
		case tag.IsUint64() && tag.Uint64() == argValue:
			args[j] = value
		case tag.IsUint64() && tag.Uint64() == argReference:
			if !value.IsUint64() || value.Uint64() >= uint64(len(results)) {
				return nil, fmt.Errorf("%w: argument %d refers to word %s of %d", ErrInvalidReference, j, value.Dec(), len(results))
			}
			args[j] = results[value.Uint64()]
		default:
			return nil, fmt.Errorf("%w: argument %d tag %s", ErrInvalidArgumentTag, j, tag.Dec())
		}
	}
	return args, nil
}
