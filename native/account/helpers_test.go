package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"smartwallet/core"
	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/crypto"
	"smartwallet/native/account"
	"smartwallet/native/dapp"
	"smartwallet/storage"
)

const securityPeriod = 24 * time.Hour

type env struct {
	t       *testing.T
	ledger  *core.Ledger
	now     time.Time
	class   types.ClassHash
	dapp    types.Address
	dappCls types.ClassHash
	salt    uint64

	signer   *crypto.PrivateKey
	guardian *crypto.PrivateKey
	wrong    *crypto.PrivateKey
	backup   *crypto.PrivateKey
}

func newEnv(t *testing.T) *env {
	t.Helper()
	l, err := core.NewLedger(storage.NewMemDB(), "SW_TEST")
	require.NoError(t, err)
	e := &env{t: t, ledger: l, now: time.Unix(1_700_000_000, 0)}
	l.SetNowFunc(func() time.Time { return e.now })

	e.class, err = l.Declare(account.New(account.WithSecurityPeriod(securityPeriod)))
	require.NoError(t, err)
	e.dappCls, err = l.Declare(dapp.New())
	require.NoError(t, err)
	e.dapp, err = l.Deploy(context.Background(), e.dappCls, types.Word{}, nil)
	require.NoError(t, err)

	e.signer, e.guardian, e.wrong, e.backup = newKey(t), newKey(t), newKey(t), newKey(t)
	return e
}

func newKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	k, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return k
}

func (e *env) advance(d time.Duration) { e.now = e.now.Add(d) }

// deploy creates an account initialized with signer and guardian; a nil
// guardian leaves the account signer-only.
func (e *env) deploy(signer, guardian *crypto.PrivateKey) types.Address {
	e.t.Helper()
	return e.deployClass(e.class, signer, guardian)
}

func (e *env) deployClass(class types.ClassHash, signer, guardian *crypto.PrivateKey) types.Address {
	e.t.Helper()
	e.salt++
	addr, err := e.ledger.Deploy(context.Background(), class, types.NewWord(e.salt), []types.Word{keyWord(signer), keyWord(guardian)})
	require.NoError(e.t, err)
	return addr
}

func keyWord(k *crypto.PrivateKey) types.Word {
	if k == nil {
		return types.Word{}
	}
	return types.AddressWord(k.Address())
}

// bundle signs digest with every key in order; a nil key contributes the
// zero pair that selects the guardian backup slot.
func bundle(t *testing.T, digest common.Hash, keys ...*crypto.PrivateKey) []types.Word {
	t.Helper()
	var out []types.Word
	for _, k := range keys {
		if k == nil {
			out = append(out, types.Word{}, types.Word{})
			continue
		}
		sig, err := k.Sign(digest)
		require.NoError(t, err)
		out = append(out, sig.Words()...)
	}
	return out
}

func (e *env) nonce(acct types.Address) uint64 {
	e.t.Helper()
	n, err := e.ledger.Nonce(acct)
	require.NoError(e.t, err)
	return n
}

func (e *env) submitCalldata(acct types.Address, calldata []types.Word, keys ...*crypto.PrivateKey) (*types.Receipt, error) {
	e.t.Helper()
	tx := &types.Transaction{
		Account:  acct,
		Calldata: calldata,
		Nonce:    e.nonce(acct),
		Version:  types.TransactionVersion,
	}
	tx.Signature = bundle(e.t, tx.Digest(e.ledger.ChainID()), keys...)
	return e.ledger.Submit(context.Background(), tx)
}

func (e *env) submit(acct types.Address, calls []types.Call, keys ...*crypto.PrivateKey) (*types.Receipt, error) {
	e.t.Helper()
	return e.submitCalldata(acct, types.EncodeCalls(calls), keys...)
}

func (e *env) mustSubmit(acct types.Address, calls []types.Call, keys ...*crypto.PrivateKey) *types.Receipt {
	e.t.Helper()
	receipt, err := e.submit(acct, calls, keys...)
	require.NoError(e.t, err)
	require.Equal(e.t, types.ReceiptSucceeded, receipt.Status)
	return receipt
}

func (e *env) view(acct types.Address, name string, args ...types.Word) []types.Word {
	e.t.Helper()
	ret, err := e.ledger.Call(acct, types.SelectorFromName(name), args)
	require.NoError(e.t, err)
	return ret
}

func (e *env) address(acct types.Address, name string) types.Address {
	e.t.Helper()
	ret := e.view(acct, name)
	require.Len(e.t, ret, 1)
	addr, ok := types.AddressFromWord(ret[0])
	require.True(e.t, ok)
	return addr
}

func (e *env) number(user types.Address) uint64 {
	e.t.Helper()
	ret := e.view(e.dapp, "get_number", types.AddressWord(user))
	return ret[0].Uint64()
}

func (e *env) escape(acct types.Address) (uint64, account.EscapeKind) {
	e.t.Helper()
	ret := e.view(acct, "getEscape")
	require.Len(e.t, ret, 2)
	return ret[0].Uint64(), account.EscapeKind(ret[1].Uint64())
}

func selfCall(acct types.Address, name string, args ...types.Word) types.Call {
	return types.Call{To: acct, Selector: types.SelectorFromName(name), Calldata: args}
}

func (e *env) dappCall(name string, args ...uint64) types.Call {
	data := make([]types.Word, len(args))
	for i, a := range args {
		data[i] = types.NewWord(a)
	}
	return types.Call{To: e.dapp, Selector: types.SelectorFromName(name), Calldata: data}
}

func eventTypes(receipt *types.Receipt) []string {
	out := make([]string, 0, len(receipt.Events))
	for _, evt := range receipt.Events {
		out = append(out, evt.Type)
	}
	return out
}

var _ contract.Class = (*account.Account)(nil)
