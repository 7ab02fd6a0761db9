// Package account implements the smart wallet class: a signer key with an
// optional guardian and guardian backup, the time-delayed escape protocol,
// atomic call batches, pluggable validation modules and guarded upgrades.
package account

import (
	"time"

	"smartwallet/core/contract"
	"smartwallet/core/types"
)

const (
	// DefaultVersion is reported by getVersion and forms part of the class name.
	DefaultVersion = "0.3.0"
	// DefaultSecurityPeriod is the delay between triggering and finalizing
	// an escape.
	DefaultSecurityPeriod = 7 * 24 * time.Hour

	namePrefix = "SmartAccount@"
)

// Interface identifiers answered by supportsInterface.
const (
	InterfaceERC165     uint32 = 0x01ffc9a7
	InterfaceAccount    uint32 = 0x3943f10f
	InterfaceAccountOld uint32 = 0xf10dbd44
)

// Exported selectors used by other classes and by transaction builders.
var (
	IsValidSignatureSelector    = types.SelectorFromName("isValidSignature")
	SupportsInterfaceSelector   = types.SelectorFromName("supportsInterface")
	GetSignerSelector           = types.SelectorFromName("getSigner")
	UsePluginSelector           = types.SelectorFromName("usePlugin")
	UseSmartMulticallSelector   = types.SelectorFromName("use_smart_multicall")
	ExecuteAfterUpgradeSelector = types.SelectorFromName("execute_after_upgrade")
	InitializeSelector          = types.SelectorFromName("initialize")
)

// IsValidEscapeSignatureSelector is asked of guardian contracts when they
// authorize an escape of the signer.
var IsValidEscapeSignatureSelector = types.SelectorFromName("isValidEscapeSignature")

var (
	selTriggerEscapeGuardian = types.SelectorFromName("triggerEscapeGuardian")
	selTriggerEscapeSigner   = types.SelectorFromName("triggerEscapeSigner")
	selEscapeGuardian        = types.SelectorFromName("escapeGuardian")
	selEscapeSigner          = types.SelectorFromName("escapeSigner")

	// PluginValidateSelector is invoked on a plugin class to validate a
	// transaction bootstrapped with usePlugin.
	PluginValidateSelector = types.SelectorFromName("validate")
)

// Account is the wallet class. Instances are configured once and are safe to
// declare on any number of ledgers.
type Account struct {
	version        string
	securityPeriod uint64
	router         *contract.Router
}

// Option configures an Account class.
type Option func(*Account)

// WithVersion overrides the reported version. Distinct versions are distinct
// classes, which is what upgrades switch between.
func WithVersion(version string) Option {
	return func(a *Account) { a.version = version }
}

// WithSecurityPeriod overrides the escape delay. Sub-second periods round
// down to whole seconds.
func WithSecurityPeriod(period time.Duration) Option {
	return func(a *Account) { a.securityPeriod = uint64(period / time.Second) }
}

// New returns the wallet class.
func New(opts ...Option) *Account {
	a := &Account{
		version:        DefaultVersion,
		securityPeriod: uint64(DefaultSecurityPeriod / time.Second),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.router = a.routes()
	return a
}

// Name implements contract.Class.
func (a *Account) Name() string { return namePrefix + a.version }

// Failures lists the sentinel errors of the account entry points.
func (a *Account) Failures() []error {
	return append([]error(nil), failures...)
}

// Invoke implements contract.Class.
func (a *Account) Invoke(ctx contract.Context, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	return a.router.Dispatch(ctx, selector, calldata)
}

// SecurityPeriod returns the escape delay in seconds.
func (a *Account) SecurityPeriod() uint64 { return a.securityPeriod }

func (a *Account) routes() *contract.Router {
	r := contract.NewRouter()

	r.Handle("constructor", a.constructor)
	r.Handle("initialize", a.initialize)
	r.Handle("__validate__", a.validateTransaction)
	r.Handle("__validate_deploy__", a.validateDeploy)
	r.Handle("__execute__", a.executeTransaction)
	r.Handle("execute", a.executeTransaction)
	r.Handle("execute_after_upgrade", a.executeAfterUpgrade)
	r.Handle("upgrade", a.upgrade)

	r.Handle("getSigner", a.getSigner)
	r.Handle("getGuardian", a.getGuardian)
	r.Handle("getGuardianBackup", a.getGuardianBackup)
	r.Handle("getEscape", a.getEscape)
	r.Handle("getVersion", a.getVersion)
	r.Handle("getName", a.getName)
	r.Handle("getImplementation", a.getImplementation)
	r.Handle("supportsInterface", a.supportsInterface)
	r.Handle("isValidSignature", a.isValidSignature)
	r.Handle("is_valid_signature", a.isValidSignature)

	r.Handle("changeSigner", a.changeSigner)
	r.Handle("changeGuardian", a.changeGuardian)
	r.Handle("changeGuardianBackup", a.changeGuardianBackup)

	r.Handle("triggerEscapeGuardian", a.triggerEscapeGuardian)
	r.Handle("triggerEscapeSigner", a.triggerEscapeSigner)
	r.Handle("escapeGuardian", a.escapeGuardian)
	r.Handle("escapeSigner", a.escapeSigner)
	r.Handle("cancelEscape", a.cancelEscape)

	r.Handle("addPlugin", a.addPlugin)
	r.Handle("removePlugin", a.removePlugin)
	r.Handle("isPlugin", a.isPlugin)
	r.Handle("usePlugin", a.usePlugin)
	r.Handle("executeOnPlugin", a.executeOnPlugin)
	r.Handle("readOnPlugin", a.readOnPlugin)
	return r
}

func (a *Account) constructor(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	args := in.Rest()
	if len(args) == 0 {
		return nil, nil
	}
	return a.initialize(ctx, contract.NewReader(args))
}

func (a *Account) initialize(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	signer := in.Address()
	guardian := in.Address()
	if err := in.Err(); err != nil {
		return nil, err
	}
	st := store{ctx: ctx}
	current, err := st.signer()
	if err != nil {
		return nil, err
	}
	if current != (types.Address{}) {
		return nil, ErrAlreadyInitialized
	}
	if signer == (types.Address{}) {
		return nil, ErrNewSignerInvalid
	}
	if err := st.setAddress(varSigner, signer); err != nil {
		return nil, err
	}
	if err := st.setAddress(varGuardian, guardian); err != nil {
		return nil, err
	}
	ctx.Emit(newAccountCreatedEvent(signer, guardian))
	return nil, nil
}

// onlySelf guards mutators: they are reachable only through the account's
// own validated execute path.
func onlySelf(ctx contract.Context) error {
	if ctx.Caller() != ctx.Self() {
		return ErrOnlySelf
	}
	return nil
}

// onlyProtocol guards the transaction entry points, which only the ledger
// may drive.
func onlyProtocol(ctx contract.Context) error {
	if ctx.Caller() != (types.Address{}) {
		return ErrInvalidCaller
	}
	return nil
}
