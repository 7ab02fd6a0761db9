package account_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"smartwallet/core/types"
	"smartwallet/native/account"
	"smartwallet/native/dapp"
)

func TestMulticallReturnsLengthPrefixedResults(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy(e.signer, nil)

	receipt := e.mustSubmit(acct, []types.Call{
		e.dappCall("set_number", 3),
		e.dappCall("increase_number", 4),
		{To: e.dapp, Selector: types.SelectorFromName("get_number"), Calldata: []types.Word{types.AddressWord(acct)}},
	}, e.signer)
	require.Equal(t, []types.Word{
		types.NewWord(0),
		types.NewWord(1), types.NewWord(7),
		types.NewWord(1), types.NewWord(7),
	}, receipt.ReturnData)
	require.Equal(t, "5", receipt.Events[0].Attributes["response_len"])
}

func TestMulticallFailureAttribution(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy(e.signer, nil)

	tests := []struct {
		name  string
		calls []types.Call
		index int
	}{
		{"second fails", []types.Call{e.dappCall("set_number", 1), e.dappCall("throw_error", 0)}, 1},
		{"first fails", []types.Call{e.dappCall("throw_error", 0), e.dappCall("set_number", 1)}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			receipt, err := e.submit(acct, tc.calls, e.signer)
			require.ErrorIs(t, err, account.ErrMulticallFailed)
			require.ErrorIs(t, err, dapp.ErrThrown)
			var mcErr *account.MulticallError
			require.True(t, errors.As(err, &mcErr))
			require.Equal(t, tc.index, mcErr.Index)
			require.Contains(t, err.Error(), fmt.Sprintf("multicall %d failed", tc.index))
			require.Equal(t, types.ReceiptReverted, receipt.Status)
			require.Equal(t, err.Error(), receipt.RevertReason)
			require.Empty(t, receipt.Events)
			require.Zero(t, e.number(acct))
		})
	}
	require.Equal(t, uint64(2), e.nonce(acct))
}

func TestSelfCallsInBatchAreForbidden(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy(e.signer, nil)

	_, err := e.submit(acct, []types.Call{
		e.dappCall("set_number", 1),
		selfCall(acct, "changeSigner", keyWord(e.wrong)),
	}, e.signer)
	var mcErr *account.MulticallError
	require.True(t, errors.As(err, &mcErr))
	require.Equal(t, 1, mcErr.Index)
	require.ErrorIs(t, err, account.ErrForbiddenCall)
	require.Equal(t, e.signer.Address(), e.address(acct, "getSigner"))
	require.Zero(t, e.number(acct))

	_, err = e.submit(acct, []types.Call{selfCall(acct, "execute_after_upgrade")}, e.signer)
	require.ErrorIs(t, err, account.ErrForbiddenCall)
	require.Equal(t, uint64(1), e.nonce(acct))
}

func TestEmptyBatch(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy(e.signer, nil)
	receipt := e.mustSubmit(acct, nil, e.signer)
	require.Empty(t, receipt.ReturnData)
	require.Equal(t, []string{account.EventTypeTransactionExecuted}, eventTypes(receipt))
}

const (
	tagValue = 0
	tagRef   = 1
)

func smartBatch(calldata []types.Word, entries ...types.CallEntry) []types.Word {
	arr := &types.CallArray{
		Entries:  append([]types.CallEntry{{Selector: account.UseSmartMulticallSelector}}, entries...),
		Calldata: calldata,
	}
	return arr.Encode()
}

func words(vs ...uint64) []types.Word {
	out := make([]types.Word, len(vs))
	for i, v := range vs {
		out[i] = types.NewWord(v)
	}
	return out
}

func TestSmartMulticallAssertion(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy(e.signer, nil)
	entries := []types.CallEntry{
		{To: e.dapp, Selector: types.SelectorFromName("set_number"), DataOffset: 0, DataLen: 1},
		{To: e.dapp, Selector: types.SelectorFromName("get_number"), DataOffset: 2, DataLen: 1},
		{To: e.dapp, Selector: types.SelectorFromName("check_le"), DataOffset: 4, DataLen: 2},
	}
	encode := func(bound uint64) []types.Word {
		args := words(tagValue, 47, tagValue, 0, tagRef, 0, tagValue, bound)
		args[3] = types.AddressWord(acct)
		return smartBatch(args, entries...)
	}

	receipt, err := e.submitCalldata(acct, encode(30), e.signer)
	require.ErrorIs(t, err, dapp.ErrCheckLe)
	var mcErr *account.MulticallError
	require.True(t, errors.As(err, &mcErr))
	require.Equal(t, 3, mcErr.Index)
	require.Equal(t, types.ReceiptReverted, receipt.Status)
	require.Zero(t, e.number(acct))

	receipt, err = e.submitCalldata(acct, encode(50), e.signer)
	require.NoError(t, err)
	require.Equal(t, []string{account.EventTypeTransactionExecuted}, eventTypes(receipt))
	require.Equal(t, uint64(47), e.number(acct))
}

func TestSmartMulticallChainsResults(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy(e.signer, nil)
	entries := []types.CallEntry{
		{To: e.dapp, Selector: types.SelectorFromName("add"), DataOffset: 0, DataLen: 2},
		{To: e.dapp, Selector: types.SelectorFromName("add"), DataOffset: 4, DataLen: 2},
		{To: e.dapp, Selector: types.SelectorFromName("set_number_double"), DataOffset: 8, DataLen: 1},
	}
	calldata := smartBatch(words(
		tagValue, 5, tagValue, 10,
		tagRef, 0, tagValue, 1,
		tagRef, 1,
	), entries...)

	receipt, err := e.submitCalldata(acct, calldata, e.signer)
	require.NoError(t, err)
	require.Equal(t, []types.Word{
		types.NewWord(1), types.NewWord(15),
		types.NewWord(1), types.NewWord(16),
		types.NewWord(0),
	}, receipt.ReturnData)
	require.Equal(t, uint64(32), e.number(acct))
}

func TestEncodeSmartMulticallMatchesWireLayout(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy(e.signer, nil)
	add := types.SelectorFromName("add")
	built := account.EncodeSmartMulticall([]account.SmartCall{
		{To: e.dapp, Selector: add, Args: []account.Arg{account.Value(types.NewWord(5)), account.Value(types.NewWord(10))}},
		{To: e.dapp, Selector: add, Args: []account.Arg{account.Ref(0), account.Value(types.NewWord(1))}},
		{To: e.dapp, Selector: types.SelectorFromName("set_number_double"), Args: []account.Arg{account.Ref(1)}},
	})
	require.Equal(t, smartBatch(words(
		tagValue, 5, tagValue, 10,
		tagRef, 0, tagValue, 1,
		tagRef, 1,
	),
		types.CallEntry{To: e.dapp, Selector: add, DataOffset: 0, DataLen: 2},
		types.CallEntry{To: e.dapp, Selector: add, DataOffset: 4, DataLen: 2},
		types.CallEntry{To: e.dapp, Selector: types.SelectorFromName("set_number_double"), DataOffset: 8, DataLen: 1},
	), built)

	receipt, err := e.submitCalldata(acct, built, e.signer)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptSucceeded, receipt.Status)
	require.Equal(t, uint64(32), e.number(acct))
}

func TestSmartMulticallBadArguments(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy(e.signer, nil)
	add := types.CallEntry{To: e.dapp, Selector: types.SelectorFromName("add"), DataOffset: 0, DataLen: 2}

	_, err := e.submitCalldata(acct, smartBatch(words(tagRef, 0, tagValue, 1), add), e.signer)
	require.ErrorIs(t, err, account.ErrInvalidReference)

	_, err = e.submitCalldata(acct, smartBatch(words(2, 0, tagValue, 1), add), e.signer)
	require.ErrorIs(t, err, account.ErrInvalidArgumentTag)

	add.DataLen = 3
	_, err = e.submitCalldata(acct, smartBatch(words(tagValue, 0, tagValue, 1), add), e.signer)
	require.ErrorIs(t, err, types.ErrMalformedCallArray)
	require.Equal(t, uint64(3), e.nonce(acct))
}
