package account

import (
	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/crypto"
)

// Storage variables, keyed by the hash of their name. Map entries hash the
// variable key with the entry key.
var (
	varSigner         = crypto.TypeHash("account_signer")
	varGuardian       = crypto.TypeHash("account_guardian")
	varGuardianBackup = crypto.TypeHash("account_guardian_backup")
	varEscapeActiveAt = crypto.TypeHash("account_escape_active_at")
	varEscapeKind     = crypto.TypeHash("account_escape_kind")
	varPlugins        = crypto.TypeHash("account_plugins")
)

// EscapeKind identifies the party being escaped.
type EscapeKind uint8

const (
	EscapeNone EscapeKind = iota
	EscapeGuardian
	EscapeSigner
)

func (k EscapeKind) String() string {
	switch k {
	case EscapeNone:
		return "none"
	case EscapeGuardian:
		return "guardian"
	case EscapeSigner:
		return "signer"
	default:
		return "invalid"
	}
}

// Escape is the single pending recovery slot. ActiveAt == 0 means none.
type Escape struct {
	ActiveAt uint64
	Kind     EscapeKind
}

// store reads and writes account variables through the running context.
type store struct {
	ctx contract.Context
}

func (s store) address(key types.Word) (types.Address, error) {
	w, err := s.ctx.StorageRead(key)
	if err != nil {
		return types.Address{}, err
	}
	addr, _ := types.AddressFromWord(w)
	return addr, nil
}

func (s store) setAddress(key types.Word, addr types.Address) error {
	return s.ctx.StorageWrite(key, types.AddressWord(addr))
}

func (s store) signer() (types.Address, error)         { return s.address(varSigner) }
func (s store) guardian() (types.Address, error)       { return s.address(varGuardian) }
func (s store) guardianBackup() (types.Address, error) { return s.address(varGuardianBackup) }

func (s store) escape() (Escape, error) {
	at, err := s.ctx.StorageRead(varEscapeActiveAt)
	if err != nil {
		return Escape{}, err
	}
	kind, err := s.ctx.StorageRead(varEscapeKind)
	if err != nil {
		return Escape{}, err
	}
	return Escape{ActiveAt: at.Uint64(), Kind: EscapeKind(kind.Uint64())}, nil
}

func (s store) setEscape(e Escape) error {
	if err := s.ctx.StorageWrite(varEscapeActiveAt, types.NewWord(e.ActiveAt)); err != nil {
		return err
	}
	return s.ctx.StorageWrite(varEscapeKind, types.NewWord(uint64(e.Kind)))
}

func pluginKey(plugin types.ClassHash) types.Word {
	return crypto.HashElements(varPlugins, types.ClassHashWord(plugin))
}

func (s store) isPlugin(plugin types.ClassHash) (bool, error) {
	w, err := s.ctx.StorageRead(pluginKey(plugin))
	if err != nil {
		return false, err
	}
	return !w.IsZero(), nil
}

func (s store) setPlugin(plugin types.ClassHash, installed bool) error {
	return s.ctx.StorageWrite(pluginKey(plugin), types.BoolWord(installed))
}
