package account

import (
	"smartwallet/core/contract"
	"smartwallet/core/types"
)

type escapeTransition uint8

const (
	escapeStart escapeTransition = iota
	escapeRefresh
	escapeOverride
	escapeDenied
)

// escapeGuard[pending][requested] decides whether an escape of the requested
// kind may replace the pending one. Guardian escapes are requested by the
// signer, signer escapes by the guardian; the signer always prevails.
var escapeGuard = [3][3]escapeTransition{
	EscapeNone: {
		EscapeGuardian: escapeStart,
		EscapeSigner:   escapeStart,
	},
	EscapeGuardian: {
		EscapeGuardian: escapeRefresh,
		EscapeSigner:   escapeDenied,
	},
	EscapeSigner: {
		EscapeGuardian: escapeOverride,
		EscapeSigner:   escapeRefresh,
	},
}

func (a *Account) triggerEscape(ctx contract.Context, requested EscapeKind) error {
	if err := onlySelf(ctx); err != nil {
		return err
	}
	st := store{ctx: ctx}
	guardian, err := st.guardian()
	if err != nil {
		return err
	}
	if guardian == (types.Address{}) {
		return ErrGuardianRequired
	}
	pending, err := st.escape()
	if err != nil {
		return err
	}
	if pending.ActiveAt == 0 || pending.Kind > EscapeSigner {
		pending.Kind = EscapeNone
	}
	if escapeGuard[pending.Kind][requested] == escapeDenied {
		return ErrCannotOverrideEscape
	}
	activeAt := ctx.Now() + a.securityPeriod
	if err := st.setEscape(Escape{ActiveAt: activeAt, Kind: requested}); err != nil {
		return err
	}
	ctx.Emit(newEscapeTriggeredEvent(requested, activeAt))
	return nil
}

// finalizeEscape checks that an escape of kind is pending and active, then
// clears the slot.
func finalizeEscape(ctx contract.Context, kind EscapeKind) error {
	st := store{ctx: ctx}
	pending, err := st.escape()
	if err != nil {
		return err
	}
	if pending.Kind != kind || pending.ActiveAt == 0 {
		return ErrNotEscaping
	}
	if ctx.Now() < pending.ActiveAt {
		return ErrEscapeNotActive
	}
	return st.setEscape(Escape{})
}

func (a *Account) triggerEscapeGuardian(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	return nil, a.triggerEscape(ctx, EscapeGuardian)
}

func (a *Account) triggerEscapeSigner(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	return nil, a.triggerEscape(ctx, EscapeSigner)
}

func (a *Account) escapeGuardian(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	newGuardian := in.Address()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	st := store{ctx: ctx}
	if newGuardian == (types.Address{}) {
		backup, err := st.guardianBackup()
		if err != nil {
			return nil, err
		}
		if backup != (types.Address{}) {
			return nil, ErrNewGuardianInvalid
		}
	}
	if err := finalizeEscape(ctx, EscapeGuardian); err != nil {
		return nil, err
	}
	if err := st.setAddress(varGuardian, newGuardian); err != nil {
		return nil, err
	}
	ctx.Emit(newAddressEvent(EventTypeGuardianEscaped, "new_guardian", newGuardian))
	return nil, nil
}

func (a *Account) escapeSigner(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	newSigner := in.Address()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	if newSigner == (types.Address{}) {
		return nil, ErrNewSignerInvalid
	}
	if err := finalizeEscape(ctx, EscapeSigner); err != nil {
		return nil, err
	}
	if err := (store{ctx: ctx}).setAddress(varSigner, newSigner); err != nil {
		return nil, err
	}
	ctx.Emit(newAddressEvent(EventTypeSignerEscaped, "new_signer", newSigner))
	return nil, nil
}

// cancelEscape clears the slot whether or not an escape is pending. It is
// only reachable with the full signer and guardian policy.
func (a *Account) cancelEscape(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	if err := (store{ctx: ctx}).setEscape(Escape{}); err != nil {
		return nil, err
	}
	ctx.Emit(types.Event{Type: EventTypeEscapeCanceled, Attributes: map[string]string{}})
	return nil, nil
}
