package session_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartwallet/core"
	"smartwallet/core/types"
	"smartwallet/crypto"
	"smartwallet/crypto/merkle"
	"smartwallet/native/account"
	"smartwallet/native/dapp"
	"smartwallet/native/session"
	"smartwallet/storage"
)

type env struct {
	t        *testing.T
	ledger   *core.Ledger
	now      time.Time
	class    types.ClassHash
	plugin   types.ClassHash
	dapp     types.Address
	signer   *crypto.PrivateKey
	guardian *crypto.PrivateKey
	policy   *session.Policy
	salt     uint64
}

func newEnv(t *testing.T) *env {
	t.Helper()
	l, err := core.NewLedger(storage.NewMemDB(), "SW_TEST")
	require.NoError(t, err)
	e := &env{t: t, ledger: l, now: time.Unix(1_700_000_000, 0)}
	l.SetNowFunc(func() time.Time { return e.now })

	e.class, err = l.Declare(account.New())
	require.NoError(t, err)
	e.plugin, err = l.Declare(session.New())
	require.NoError(t, err)
	dappClass, err := l.Declare(dapp.New())
	require.NoError(t, err)
	e.dapp, err = l.Deploy(context.Background(), dappClass, types.Word{}, nil)
	require.NoError(t, err)

	e.signer, e.guardian = newKey(t), newKey(t)
	e.policy, err = session.BuildPolicy([]session.AllowedCall{
		{Contract: e.dapp, Selector: types.SelectorFromName("set_number")},
		{Contract: e.dapp, Selector: types.SelectorFromName("set_number_double")},
		{Contract: e.dapp, Selector: types.SelectorFromName("set_number_times3")},
	})
	require.NoError(t, err)
	return e
}

func newKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	k, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return k
}

// deploy creates a guarded account with the session plugin installed.
func (e *env) deploy() types.Address {
	e.t.Helper()
	e.salt++
	acct, err := e.ledger.Deploy(context.Background(), e.class, types.NewWord(e.salt),
		[]types.Word{types.AddressWord(e.signer.Address()), types.AddressWord(e.guardian.Address())})
	require.NoError(e.t, err)
	e.submitOwner(acct, types.Call{To: acct, Selector: types.SelectorFromName("addPlugin"), Calldata: []types.Word{types.ClassHashWord(e.plugin)}})
	return acct
}

func (e *env) send(acct types.Address, calls []types.Call, keys ...*crypto.PrivateKey) (*types.Receipt, error) {
	e.t.Helper()
	nonce, err := e.ledger.Nonce(acct)
	require.NoError(e.t, err)
	tx := types.NewTransaction(acct, calls, nonce)
	digest := tx.Digest(e.ledger.ChainID())
	for _, k := range keys {
		sig, err := k.Sign(digest)
		require.NoError(e.t, err)
		tx.Signature = append(tx.Signature, sig.Words()...)
	}
	return e.ledger.Submit(context.Background(), tx)
}

func (e *env) submitOwner(acct types.Address, calls ...types.Call) *types.Receipt {
	e.t.Helper()
	receipt, err := e.send(acct, calls, e.signer, e.guardian)
	require.NoError(e.t, err)
	return receipt
}

func (e *env) session(acct types.Address, key *crypto.PrivateKey, ttl time.Duration) (session.Session, crypto.Signature) {
	e.t.Helper()
	s := session.Session{Key: key.Address(), Expires: uint64(e.now.Add(ttl).Unix()), Root: e.policy.Root}
	token, err := s.Sign(e.signer, e.ledger.ChainID(), acct)
	require.NoError(e.t, err)
	return s, token
}

func (e *env) setNumber(n uint64) types.Call {
	return types.Call{To: e.dapp, Selector: types.SelectorFromName("set_number"), Calldata: []types.Word{types.NewWord(n)}}
}

func (e *env) number(user types.Address) uint64 {
	e.t.Helper()
	ret, err := e.ledger.Call(e.dapp, types.SelectorFromName("get_number"), []types.Word{types.AddressWord(user)})
	require.NoError(e.t, err)
	return ret[0].Uint64()
}

func TestSessionKeyExecutesAllowedCalls(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy()
	key := newKey(t)
	s, token := e.session(acct, key, time.Hour)

	calls, err := e.policy.Batch(acct, e.plugin, s, token, []types.Call{
		e.setNumber(5),
		{To: e.dapp, Selector: types.SelectorFromName("set_number_times3"), Calldata: []types.Word{types.NewWord(7)}},
	})
	require.NoError(t, err)
	receipt, err := e.send(acct, calls, key)
	require.NoError(t, err)
	require.Equal(t, types.ReceiptSucceeded, receipt.Status)
	require.Equal(t, uint64(21), e.number(acct))
}

func TestSessionRejections(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy()
	key := newKey(t)
	s, token := e.session(acct, key, time.Hour)
	allowed := []types.Call{e.setNumber(47)}

	t.Run("transaction signed by another key", func(t *testing.T) {
		calls, err := e.policy.Batch(acct, e.plugin, s, token, allowed)
		require.NoError(t, err)
		_, err = e.send(acct, calls, e.signer)
		require.ErrorIs(t, err, session.ErrSessionSignatureInvalid)
	})

	t.Run("token not from the signer", func(t *testing.T) {
		forged, err := s.Sign(e.guardian, e.ledger.ChainID(), acct)
		require.NoError(t, err)
		calls, err := e.policy.Batch(acct, e.plugin, s, forged, allowed)
		require.NoError(t, err)
		_, err = e.send(acct, calls, key)
		require.ErrorIs(t, err, session.ErrSessionTokenInvalid)
	})

	t.Run("call outside the policy", func(t *testing.T) {
		increase := types.Call{To: e.dapp, Selector: types.SelectorFromName("increase_number"), Calldata: []types.Word{types.NewWord(1)}}
		_, err := e.policy.Batch(acct, e.plugin, s, token, []types.Call{increase})
		require.ErrorIs(t, err, session.ErrCallNotInPolicy)

		proof, err := e.policy.Proof(session.AllowedCall{Contract: e.dapp, Selector: types.SelectorFromName("set_number")})
		require.NoError(t, err)
		calls := []types.Call{session.BootstrapCall(acct, e.plugin, s, token, [][]types.Word{proof}), increase}
		_, err = e.send(acct, calls, key)
		require.ErrorIs(t, err, session.ErrPolicyViolation)
		require.EqualError(t, err, "session: not allowed by policy")
	})

	t.Run("missing proof", func(t *testing.T) {
		calls := []types.Call{session.BootstrapCall(acct, e.plugin, s, token, nil), e.setNumber(1)}
		_, err := e.send(acct, calls, key)
		require.ErrorIs(t, err, session.ErrPolicyViolation)
	})

	t.Run("short proof", func(t *testing.T) {
		proof, err := e.policy.Proof(session.AllowedCall{Contract: e.dapp, Selector: types.SelectorFromName("set_number")})
		require.NoError(t, err)
		calls := []types.Call{session.BootstrapCall(acct, e.plugin, s, token, [][]types.Word{proof}), e.setNumber(1), e.setNumber(2)}
		_, err = e.send(acct, calls, key)
		require.ErrorIs(t, err, session.ErrSessionDataInvalid)
	})

	t.Run("token for another account", func(t *testing.T) {
		other := e.deploy()
		calls, err := e.policy.Batch(other, e.plugin, s, token, allowed)
		require.NoError(t, err)
		_, err = e.send(other, calls, key)
		require.ErrorIs(t, err, session.ErrSessionTokenInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		defer func(now time.Time) { e.now = now }(e.now)
		e.now = e.now.Add(time.Hour + time.Second)
		calls, err := e.policy.Batch(acct, e.plugin, s, token, allowed)
		require.NoError(t, err)
		_, err = e.send(acct, calls, key)
		require.ErrorIs(t, err, session.ErrSessionExpired)
	})

	require.Zero(t, e.number(acct))
	nonce, err := e.ledger.Nonce(acct)
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

func TestRevokedSessionKey(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy()
	other := e.deploy()
	key := newKey(t)
	s, token := e.session(acct, key, time.Hour)

	revoke := types.Call{To: acct, Selector: types.SelectorFromName("executeOnPlugin"), Calldata: []types.Word{
		types.ClassHashWord(e.plugin), session.RevokeSessionKeySelector.Word(), types.NewWord(1), types.AddressWord(key.Address()),
	}}
	receipt := e.submitOwner(acct, revoke)
	require.Equal(t, session.EventTypeSessionKeyRevoked, receipt.Events[0].Type)
	require.Equal(t, key.Address().Hex(), receipt.Events[0].Attributes["session_key"])

	calls, err := e.policy.Batch(acct, e.plugin, s, token, []types.Call{e.setNumber(1)})
	require.NoError(t, err)
	_, err = e.send(acct, calls, key)
	require.ErrorIs(t, err, session.ErrSessionKeyRevoked)

	revoked := func(a types.Address) types.Word {
		ret, err := e.ledger.Call(a, types.SelectorFromName("readOnPlugin"), []types.Word{
			types.ClassHashWord(e.plugin), session.IsRevokedSelector.Word(), types.NewWord(1), types.AddressWord(key.Address()),
		})
		require.NoError(t, err)
		return ret[0]
	}
	require.Equal(t, types.BoolWord(true), revoked(acct))
	require.Equal(t, types.BoolWord(false), revoked(other))

	s2, token2 := e.session(other, key, time.Hour)
	calls, err = e.policy.Batch(other, e.plugin, s2, token2, []types.Call{e.setNumber(3)})
	require.NoError(t, err)
	_, err = e.send(other, calls, key)
	require.NoError(t, err)
	require.Equal(t, uint64(3), e.number(other))
}

func TestRevokeRequiresAccount(t *testing.T) {
	e := newEnv(t)
	acct := e.deploy()
	_, err := e.ledger.Invoke(context.Background(), e.signer.Address(), acct, types.SelectorFromName("executeOnPlugin"), []types.Word{
		types.ClassHashWord(e.plugin), session.RevokeSessionKeySelector.Word(), types.NewWord(1), types.AddressWord(e.signer.Address()),
	})
	require.ErrorIs(t, err, account.ErrOnlySelf)
}

func TestPolicyProofs(t *testing.T) {
	_, err := session.BuildPolicy(nil)
	require.ErrorIs(t, err, session.ErrEmptyPolicy)

	e := newEnv(t)
	require.Equal(t, 2, e.policy.ProofLen())
	for _, c := range e.policy.Calls {
		proof, err := e.policy.Proof(c)
		require.NoError(t, err)
		require.Len(t, proof, e.policy.ProofLen())
		require.True(t, merkle.Verify(session.PolicyLeaf(c.Contract, c.Selector), proof, e.policy.Root))
	}

	single, err := session.BuildPolicy(e.policy.Calls[:1])
	require.NoError(t, err)
	require.Zero(t, single.ProofLen())
	require.Equal(t, session.PolicyLeaf(e.dapp, types.SelectorFromName("set_number")), single.Root)
}

func TestSessionHashIsDomainBound(t *testing.T) {
	s := session.Session{Key: newKey(t).Address(), Expires: 10, Root: types.NewWord(1)}
	acct := newKey(t).Address()
	base := s.Hash(types.ChainIDWord("A"), acct)
	require.NotEqual(t, base, s.Hash(types.ChainIDWord("B"), acct))
	require.NotEqual(t, base, s.Hash(types.ChainIDWord("A"), newKey(t).Address()))
	s.Expires++
	require.NotEqual(t, base, s.Hash(types.ChainIDWord("A"), acct))
}

func TestFailuresShareThePluginPrefix(t *testing.T) {
	for _, err := range session.New().Failures() {
		require.True(t, strings.HasPrefix(err.Error(), "session: "), err.Error())
	}
	require.EqualError(t, session.ErrSessionKeyRevoked, "session: key revoked")
}
