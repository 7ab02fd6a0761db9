package account

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/crypto"
)

type credentialKind uint8

const (
	credentialNone credentialKind = iota
	credentialKey
	credentialDelegate
)

// credential is a stored guardian or signer reference resolved for one
// validation: either a bare key address or a deployed contract that answers
// isValidSignature on its own terms.
type credential struct {
	kind credentialKind
	addr types.Address
}

func resolveCredential(ctx contract.Context, addr types.Address) (credential, error) {
	if addr == (types.Address{}) {
		return credential{kind: credentialNone}, nil
	}
	class, err := ctx.ClassAt(addr)
	if err != nil {
		return credential{}, err
	}
	if class != (types.ClassHash{}) {
		return credential{kind: credentialDelegate, addr: addr}, nil
	}
	return credential{kind: credentialKey, addr: addr}, nil
}

// wellFormed reports whether sig has the shape this credential consumes.
func (c credential) wellFormed(sig []types.Word) bool {
	switch c.kind {
	case credentialKey:
		return len(sig) == 2
	case credentialDelegate:
		return len(sig) > 0
	default:
		return false
	}
}

// verify reports whether sig is accepted. A delegate that fails the call
// counts as a rejection. Escape authorizations ask the delegate for
// isValidEscapeSignature first, so a guardian contract can keep a separate
// key for escapes; delegates without that entry point answer isValidSignature.
func (c credential) verify(ctx contract.Context, digest common.Hash, sig []types.Word, escape bool) bool {
	switch c.kind {
	case credentialKey:
		if len(sig) != 2 {
			return false
		}
		return crypto.Verify(digest, c.addr, crypto.SignatureFromWords(sig[0], sig[1]))
	case credentialDelegate:
		calldata := make([]types.Word, 0, 2+len(sig))
		calldata = append(calldata, crypto.WordFromHash(digest), types.NewWord(uint64(len(sig))))
		calldata = append(calldata, sig...)
		sel := IsValidSignatureSelector
		if escape {
			sel = IsValidEscapeSignatureSelector
		}
		ret, err := ctx.Call(c.addr, sel, calldata)
		if escape && errors.Is(err, contract.ErrEntryPointNotFound) {
			ret, err = ctx.Call(c.addr, IsValidSignatureSelector, calldata)
		}
		if err != nil {
			return false
		}
		return len(ret) == 1 && ret[0].IsUint64() && ret[0].Uint64() == 1
	default:
		return false
	}
}

// authority names the credential set a check is performed against.
type authority uint8

const (
	authorityFull authority = iota
	authoritySigner
	authorityGuardian
)

// selfCallAuthority maps the single self-call selectors that are validated
// with less than the full policy.
var selfCallAuthority = map[types.Selector]authority{
	selTriggerEscapeGuardian: authoritySigner,
	selEscapeGuardian:        authoritySigner,
	selTriggerEscapeSigner:   authorityGuardian,
	selEscapeSigner:          authorityGuardian,
}

// evaluator checks signature bundles against the account's stored credentials.
type evaluator struct {
	ctx      contract.Context
	signer   types.Address
	guardian credential
	backup   credential
}

func newEvaluator(ctx contract.Context) (*evaluator, error) {
	st := store{ctx: ctx}
	signer, err := st.signer()
	if err != nil {
		return nil, err
	}
	guardianAddr, err := st.guardian()
	if err != nil {
		return nil, err
	}
	backupAddr, err := st.guardianBackup()
	if err != nil {
		return nil, err
	}
	ev := &evaluator{ctx: ctx, signer: signer}
	if ev.guardian, err = resolveCredential(ctx, guardianAddr); err != nil {
		return nil, err
	}
	if ev.backup, err = resolveCredential(ctx, backupAddr); err != nil {
		return nil, err
	}
	return ev, nil
}

func (ev *evaluator) check(auth authority, digest common.Hash, sig []types.Word) error {
	switch auth {
	case authoritySigner:
		if len(sig) != 2 {
			return ErrSignatureFormatInvalid
		}
		return ev.checkSigner(digest, sig)
	case authorityGuardian:
		if ev.guardian.kind == credentialNone {
			return ErrGuardianRequired
		}
		return ev.checkGuardianPart(digest, sig)
	default:
		return ev.checkFull(digest, sig)
	}
}

// checkFull enforces signer alone without a guardian, and signer plus exactly
// one of guardian or backup otherwise. The backup signs behind a zero pair in
// the guardian slot: [signer, 0, 0, backup...].
func (ev *evaluator) checkFull(digest common.Hash, sig []types.Word) error {
	if ev.guardian.kind == credentialNone {
		if len(sig) != 2 {
			return ErrSignatureFormatInvalid
		}
		return ev.checkSigner(digest, sig)
	}
	if len(sig) < 4 {
		return ErrSignatureFormatInvalid
	}
	cred, part, failure := ev.guardianSlot(sig[2:])
	if !cred.wellFormed(part) {
		return ErrSignatureFormatInvalid
	}
	if err := ev.checkSigner(digest, sig[:2]); err != nil {
		return err
	}
	return ev.checkCredential(cred, part, failure, digest, false)
}

// checkGuardianPart authorizes an escape of the signer with the guardian part
// alone.
func (ev *evaluator) checkGuardianPart(digest common.Hash, sig []types.Word) error {
	cred, part, failure := ev.guardianSlot(sig)
	if !cred.wellFormed(part) {
		return ErrSignatureFormatInvalid
	}
	return ev.checkCredential(cred, part, failure, digest, true)
}

// guardianSlot picks the credential the guardian part of a bundle addresses.
func (ev *evaluator) guardianSlot(part []types.Word) (credential, []types.Word, error) {
	if ev.backup.kind != credentialNone && len(part) >= 2 && part[0].IsZero() && part[1].IsZero() {
		return ev.backup, part[2:], ErrGuardianBackupSignatureInvalid
	}
	return ev.guardian, part, ErrGuardianSignatureInvalid
}

func (ev *evaluator) checkSigner(digest common.Hash, sig []types.Word) error {
	if !crypto.Verify(digest, ev.signer, crypto.SignatureFromWords(sig[0], sig[1])) {
		return ErrSignerSignatureInvalid
	}
	return nil
}

func (ev *evaluator) checkCredential(cred credential, part []types.Word, failure error, digest common.Hash, escape bool) error {
	if !cred.verify(ev.ctx, digest, part, escape) {
		return failure
	}
	return nil
}
