package account

import (
	"math"

	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/crypto"
	"smartwallet/native/proxy"
)

func (a *Account) getSigner(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	signer, err := store{ctx: ctx}.signer()
	return []types.Word{types.AddressWord(signer)}, err
}

func (a *Account) getGuardian(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	guardian, err := store{ctx: ctx}.guardian()
	return []types.Word{types.AddressWord(guardian)}, err
}

func (a *Account) getGuardianBackup(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	backup, err := store{ctx: ctx}.guardianBackup()
	return []types.Word{types.AddressWord(backup)}, err
}

func (a *Account) getEscape(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	esc, err := store{ctx: ctx}.escape()
	if err != nil {
		return nil, err
	}
	return []types.Word{types.NewWord(esc.ActiveAt), types.NewWord(uint64(esc.Kind))}, nil
}

func (a *Account) getVersion(contract.Context, *contract.Reader) ([]types.Word, error) {
	return []types.Word{crypto.ShortString(a.version)}, nil
}

func (a *Account) getName(contract.Context, *contract.Reader) ([]types.Word, error) {
	return []types.Word{crypto.ShortString("SmartAccount")}, nil
}

// getImplementation returns the class currently backing the account: the
// proxy's implementation slot when running behind a proxy, the deployed class
// otherwise.
func (a *Account) getImplementation(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	impl, _, err := a.implementation(ctx)
	return []types.Word{types.ClassHashWord(impl)}, err
}

func (a *Account) implementation(ctx contract.Context) (types.ClassHash, bool, error) {
	deployed, err := ctx.ClassAt(ctx.Self())
	if err != nil {
		return types.ClassHash{}, false, err
	}
	if deployed == contract.HashOf(a) {
		return deployed, false, nil
	}
	w, err := ctx.StorageRead(proxy.ImplementationSlot)
	if err != nil {
		return types.ClassHash{}, true, err
	}
	return types.ClassHashFromWord(w), true, nil
}

func (a *Account) supportsInterface(_ contract.Context, in *contract.Reader) ([]types.Word, error) {
	id := in.Word()
	if err := in.Err(); err != nil {
		return nil, err
	}
	supported := false
	if id.IsUint64() && id.Uint64() <= math.MaxUint32 {
		switch uint32(id.Uint64()) {
		case InterfaceERC165, InterfaceAccount, InterfaceAccountOld:
			supported = true
		}
	}
	return []types.Word{types.BoolWord(supported)}, nil
}

// isValidSignature answers whether sig satisfies the full policy for hash.
// A failed policy check is a negative answer, not an error.
func (a *Account) isValidSignature(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	hash := in.Word()
	sig := in.Array()
	if err := in.Err(); err != nil {
		return nil, err
	}
	ev, err := newEvaluator(ctx)
	if err != nil {
		return nil, err
	}
	err = ev.check(authorityFull, crypto.HashFromWord(hash), sig)
	switch {
	case err == nil:
		return []types.Word{types.BoolWord(true)}, nil
	case isAuthFailure(err):
		return []types.Word{types.BoolWord(false)}, nil
	default:
		return nil, err
	}
}
