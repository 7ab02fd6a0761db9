// Package guardian implements a shared guardian service. Every account that
// names a KeyGuardian instance as its guardian registers two keys with it: a
// signing key that co-signs ordinary transactions and an escape key that is
// the only one accepted when the guardian triggers or completes an escape of
// the account's signer.
package guardian

import (
	"errors"

	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/crypto"
)

// Name is the declared name of the guardian class.
const Name = "KeyGuardian"

const (
	EventTypeSigningKeyChanged = "guardian_signing_key_changed"
	EventTypeEscapeKeyChanged  = "guardian_escape_key_changed"
)

var ErrKeyInvalid = errors.New("guardian: key invalid")

var (
	SetSigningKeySelector = types.SelectorFromName("set_signing_key")
	SetEscapeKeySelector  = types.SelectorFromName("set_escape_key")
	GetSigningKeySelector = types.SelectorFromName("get_signing_key")
	GetEscapeKeySelector  = types.SelectorFromName("get_escape_key")
)

var (
	varSigningKey = crypto.TypeHash("guardian_signing_key")
	varEscapeKey  = crypto.TypeHash("guardian_escape_key")
)

// KeyGuardian is the class.
type KeyGuardian struct {
	router *contract.Router
}

// New returns the guardian class.
func New() *KeyGuardian {
	g := &KeyGuardian{router: contract.NewRouter()}
	g.router.Handle("set_signing_key", g.setKey(varSigningKey, EventTypeSigningKeyChanged))
	g.router.Handle("set_escape_key", g.setKey(varEscapeKey, EventTypeEscapeKeyChanged))
	g.router.Handle("get_signing_key", g.getKey(varSigningKey))
	g.router.Handle("get_escape_key", g.getKey(varEscapeKey))
	g.router.Handle("isValidSignature", g.verifyWith(varSigningKey))
	g.router.Handle("is_valid_signature", g.verifyWith(varSigningKey))
	g.router.Handle("isValidEscapeSignature", g.verifyWith(varEscapeKey))
	return g
}

func (g *KeyGuardian) Name() string { return Name }

func (g *KeyGuardian) Failures() []error { return []error{ErrKeyInvalid} }

func (g *KeyGuardian) Invoke(ctx contract.Context, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	return g.router.Dispatch(ctx, selector, calldata)
}

func keyOf(kind types.Word, account types.Address) types.Word {
	return crypto.HashElements(kind, types.AddressWord(account))
}

// setKey stores the caller's key of one kind: [key].
func (g *KeyGuardian) setKey(kind types.Word, eventType string) contract.Handler {
	return func(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
		key := in.Word()
		if err := in.Err(); err != nil {
			return nil, err
		}
		addr, ok := types.AddressFromWord(key)
		if !ok || addr == (types.Address{}) {
			return nil, ErrKeyInvalid
		}
		account := ctx.Caller()
		if err := ctx.StorageWrite(keyOf(kind, account), key); err != nil {
			return nil, err
		}
		ctx.Emit(types.Event{Type: eventType, Attributes: map[string]string{
			"account": account.Hex(),
			"key":     addr.Hex(),
		}})
		return nil, nil
	}
}

// getKey returns the key of one kind registered by an account: [account].
func (g *KeyGuardian) getKey(kind types.Word) contract.Handler {
	return func(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
		account := in.Address()
		if err := in.Err(); err != nil {
			return nil, err
		}
		w, err := ctx.StorageRead(keyOf(kind, account))
		return []types.Word{w}, err
	}
}

// verifyWith answers [1] when sig is an (r, s) pair over hash by the
// calling account's key of one kind: [hash, len, sig...].
func (g *KeyGuardian) verifyWith(kind types.Word) contract.Handler {
	return func(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
		hash := in.Word()
		sig := in.Array()
		if err := in.Err(); err != nil {
			return nil, err
		}
		w, err := ctx.StorageRead(keyOf(kind, ctx.Caller()))
		if err != nil {
			return nil, err
		}
		key, _ := types.AddressFromWord(w)
		if key == (types.Address{}) || len(sig) != 2 {
			return []types.Word{types.BoolWord(false)}, nil
		}
		ok := crypto.Verify(crypto.HashFromWord(hash), key, crypto.SignatureFromWords(sig[0], sig[1]))
		return []types.Word{types.BoolWord(ok)}, nil
	}
}
