package account

import (
	"smartwallet/core/contract"
	"smartwallet/core/types"
)

func (a *Account) changeSigner(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
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
	if err := (store{ctx: ctx}).setAddress(varSigner, newSigner); err != nil {
		return nil, err
	}
	ctx.Emit(newAddressEvent(EventTypeSignerChanged, "new_signer", newSigner))
	return nil, nil
}

func (a *Account) changeGuardian(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
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
	if err := st.setAddress(varGuardian, newGuardian); err != nil {
		return nil, err
	}
	ctx.Emit(newAddressEvent(EventTypeGuardianChanged, "new_guardian", newGuardian))
	return nil, nil
}

func (a *Account) changeGuardianBackup(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	newBackup := in.Address()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	st := store{ctx: ctx}
	guardian, err := st.guardian()
	if err != nil {
		return nil, err
	}
	if guardian == (types.Address{}) {
		return nil, ErrGuardianRequired
	}
	if err := st.setAddress(varGuardianBackup, newBackup); err != nil {
		return nil, err
	}
	ctx.Emit(newAddressEvent(EventTypeGuardianBackupChanged, "new_guardian_backup", newBackup))
	return nil, nil
}
