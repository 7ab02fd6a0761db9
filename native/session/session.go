// Package session implements the session-key plugin. A session is a
// temporary key the account signer endorses for a bounded time and for the
// (contract, selector) pairs committed to by a merkle policy root.
package session

import (
	"errors"
	"fmt"

	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/crypto"
	"smartwallet/crypto/merkle"
	"smartwallet/native/account"
)

// Name is the declared name of the plugin class.
const Name = "SessionKeyPlugin"

const EventTypeSessionKeyRevoked = "session_key_revoked"

var (
	ErrSessionExpired          = errors.New("session: expired")
	ErrSessionKeyRevoked       = errors.New("session: key revoked")
	ErrPolicyViolation         = errors.New("session: not allowed by policy")
	ErrSessionTokenInvalid     = errors.New("session: invalid session token")
	ErrSessionSignatureInvalid = errors.New("session: invalid signature")
	ErrSessionDataInvalid      = errors.New("session: malformed session data")
	ErrOnlySelf                = errors.New("session: only self")
)

// Type hashes binding session tokens to their domain.
var (
	DomainTypeHash  = crypto.TypeHash("SmartWalletDomain(chainId:felt)")
	SessionTypeHash = crypto.TypeHash("Session(key:felt,expires:felt,root:merkletree)")
	PolicyTypeHash  = crypto.TypeHash("Policy(contractAddress:felt,selector:selector)")

	messagePrefix = crypto.ShortString("SmartWallet Message")
	varRevoked    = crypto.TypeHash("session_revoked_keys")
)

var (
	RevokeSessionKeySelector = types.SelectorFromName("revoke_session_key")
	IsRevokedSelector        = types.SelectorFromName("is_session_key_revoked")
)

// Plugin is the session-key plugin class. It keeps no state of its own: the
// revocation set lives in the storage of the account running it.
type Plugin struct {
	router *contract.Router
}

// New returns the plugin class.
func New() *Plugin {
	p := &Plugin{router: contract.NewRouter()}
	p.router.Handle("validate", p.validate)
	p.router.Handle("revoke_session_key", p.revokeSessionKey)
	p.router.Handle("is_session_key_revoked", p.isSessionKeyRevoked)
	return p
}

func (p *Plugin) Name() string { return Name }

// Failures lists the sentinel errors of the plugin entry points.
func (p *Plugin) Failures() []error {
	return []error{
		ErrSessionExpired, ErrSessionKeyRevoked, ErrPolicyViolation, ErrSessionTokenInvalid,
		ErrSessionSignatureInvalid, ErrSessionDataInvalid, ErrOnlySelf, ErrEmptyPolicy, ErrCallNotInPolicy,
	}
}

func (p *Plugin) Invoke(ctx contract.Context, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	return p.router.Dispatch(ctx, selector, calldata)
}

// validate receives [len, key, expires, root, proof_len, proofs..., token_r,
// token_s] followed by the execute calldata. The transaction signature must
// be a single pair made by the session key.
func (p *Plugin) validate(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	data := contract.NewReader(in.Array())
	calldata := in.Rest()
	if err := in.Err(); err != nil {
		return nil, err
	}
	sess := Session{
		Key:     data.Address(),
		Expires: data.Uint64(),
		Root:    data.Word(),
	}
	proofLen := data.Uint64()
	rest := data.Rest()
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionDataInvalid, err)
	}
	if len(rest) < 2 {
		return nil, ErrSessionDataInvalid
	}
	proofs, token := rest[:len(rest)-2], crypto.SignatureFromWords(rest[len(rest)-2], rest[len(rest)-1])

	if ctx.Now() > sess.Expires {
		return nil, ErrSessionExpired
	}
	self := ctx.Self()
	ret, err := ctx.Call(self, account.GetSignerSelector, nil)
	if err != nil {
		return nil, err
	}
	if len(ret) != 1 {
		return nil, ErrSessionTokenInvalid
	}
	signer, _ := types.AddressFromWord(ret[0])
	if !crypto.Verify(sess.Hash(ctx.ChainID(), self), signer, token) {
		return nil, ErrSessionTokenInvalid
	}
	revoked, err := isRevoked(ctx, sess.Key)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrSessionKeyRevoked
	}

	calls, err := types.DecodeCalls(calldata)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, ErrSessionDataInvalid
	}
	if err := checkPolicy(sess.Root, calls[1:], proofs, proofLen); err != nil {
		return nil, err
	}

	sig := ctx.TxInfo().Signature
	if len(sig) != 2 || !crypto.Verify(ctx.TxInfo().Hash, sess.Key, crypto.SignatureFromWords(sig[0], sig[1])) {
		return nil, ErrSessionSignatureInvalid
	}
	return nil, nil
}

// checkPolicy requires one proof of proofLen words per call, each resolving
// the call's leaf to root.
func checkPolicy(root types.Word, calls []types.Call, proofs []types.Word, proofLen uint64) error {
	if proofLen > uint64(len(proofs)) || uint64(len(calls))*proofLen != uint64(len(proofs)) {
		return fmt.Errorf("%w: %d proof words for %d calls of %d", ErrSessionDataInvalid, len(proofs), len(calls), proofLen)
	}
	for i, call := range calls {
		proof := proofs[uint64(i)*proofLen : uint64(i+1)*proofLen]
		if !merkle.Verify(PolicyLeaf(call.To, call.Selector), proof, root) {
			return ErrPolicyViolation
		}
	}
	return nil
}

func revokedKey(key types.Address) types.Word {
	return crypto.HashElements(varRevoked, types.AddressWord(key))
}

func isRevoked(ctx contract.Context, key types.Address) (bool, error) {
	w, err := ctx.StorageRead(revokedKey(key))
	if err != nil {
		return false, err
	}
	return !w.IsZero(), nil
}

// revokeSessionKey is reached through executeOnPlugin, so the account is
// both caller and storage owner.
func (p *Plugin) revokeSessionKey(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	key := in.Address()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if ctx.Caller() != ctx.Self() {
		return nil, ErrOnlySelf
	}
	if err := ctx.StorageWrite(revokedKey(key), types.BoolWord(true)); err != nil {
		return nil, err
	}
	ctx.Emit(types.Event{Type: EventTypeSessionKeyRevoked, Attributes: map[string]string{
		"session_key": key.Hex(),
	}})
	return nil, nil
}

func (p *Plugin) isSessionKeyRevoked(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	key := in.Address()
	if err := in.Err(); err != nil {
		return nil, err
	}
	revoked, err := isRevoked(ctx, key)
	return []types.Word{types.BoolWord(revoked)}, err
}
