package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"smartwallet/core"
	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/crypto"
	"smartwallet/native/account"
	"smartwallet/native/proxy"
)

func (e *env) deployAccountTx(class types.ClassHash, ctor []types.Word, keys ...*crypto.PrivateKey) (*types.DeployAccountTransaction, types.Address) {
	e.t.Helper()
	e.salt++
	tx := &types.DeployAccountTransaction{
		ClassHash: class,
		Salt:      types.NewWord(e.salt),
		Calldata:  ctor,
		Version:   types.TransactionVersion,
	}
	addr := core.DeployAddress(tx.ClassHash, tx.Salt, tx.Calldata)
	tx.Signature = bundle(e.t, tx.Digest(e.ledger.ChainID(), addr), keys...)
	return tx, addr
}

func TestDeployAccountValidatesItsOwnSignature(t *testing.T) {
	e := newEnv(t)
	ctor := []types.Word{keyWord(e.signer), keyWord(e.guardian)}

	tx, addr := e.deployAccountTx(e.class, ctor, e.signer, e.guardian)
	receipt, err := e.ledger.DeployAccount(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptSucceeded, receipt.Status)
	require.Equal(t, addr, receipt.Account)
	require.Equal(t, []string{account.EventTypeAccountCreated}, eventTypes(receipt))
	require.Equal(t, e.signer.Address(), e.address(addr, "getSigner"))
	require.Equal(t, uint64(1), e.nonce(addr))

	e.mustSubmit(addr, []types.Call{e.dappCall("set_number", 5)}, e.signer, e.guardian)
	require.Equal(t, uint64(5), e.number(addr))

	_, err = e.ledger.DeployAccount(context.Background(), tx)
	require.ErrorIs(t, err, core.ErrAddressOccupied)
}

func TestDeployAccountRejectsBadSignatures(t *testing.T) {
	e := newEnv(t)
	ctor := []types.Word{keyWord(e.signer), keyWord(e.guardian)}
	root := e.ledger.StateRoot()

	tests := []struct {
		name string
		keys []*crypto.PrivateKey
		err  error
	}{
		{"wrong signer", []*crypto.PrivateKey{e.wrong, e.guardian}, account.ErrSignerSignatureInvalid},
		{"wrong guardian", []*crypto.PrivateKey{e.signer, e.wrong}, account.ErrGuardianSignatureInvalid},
		{"signer only", []*crypto.PrivateKey{e.signer}, account.ErrSignatureFormatInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx, addr := e.deployAccountTx(e.class, ctor, tc.keys...)
			_, err := e.ledger.DeployAccount(context.Background(), tx)
			require.ErrorIs(t, err, tc.err)
			class, err := e.ledger.ClassAt(addr)
			require.NoError(t, err)
			require.Equal(t, types.ClassHash{}, class)
		})
	}

	tx, _ := e.deployAccountTx(e.class, ctor, e.signer, e.guardian)
	tx.Version = 0
	_, err := e.ledger.DeployAccount(context.Background(), tx)
	require.ErrorIs(t, err, core.ErrInvalidVersion)
	require.Equal(t, root, e.ledger.StateRoot())
}

func TestDeployAccountThroughProxy(t *testing.T) {
	e := newEnv(t)
	proxyClass, err := e.ledger.Declare(proxy.New())
	require.NoError(t, err)
	ctor := proxy.ConstructorCalldata(e.class, account.InitializeSelector, []types.Word{keyWord(e.signer), {}})

	tx, _ := e.deployAccountTx(proxyClass, ctor, e.wrong)
	_, err = e.ledger.DeployAccount(context.Background(), tx)
	require.ErrorIs(t, err, account.ErrSignerSignatureInvalid)

	tx, addr := e.deployAccountTx(proxyClass, ctor, e.signer)
	_, err = e.ledger.DeployAccount(context.Background(), tx)
	require.NoError(t, err)
	require.Equal(t, e.signer.Address(), e.address(addr, "getSigner"))

	_, err = e.ledger.Invoke(context.Background(), e.signer.Address(), addr, contract.ValidateDeploySelector, []types.Word{{}, {}})
	require.ErrorIs(t, err, account.ErrInvalidCaller)
}
