package account

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyInitialized             = errors.New("account: already initialized")
	ErrSignatureFormatInvalid         = errors.New("account: signature format invalid")
	ErrSignerSignatureInvalid         = errors.New("account: signer signature invalid")
	ErrGuardianSignatureInvalid       = errors.New("account: guardian signature invalid")
	ErrGuardianBackupSignatureInvalid = errors.New("account: guardian backup signature invalid")
	ErrGuardianRequired               = errors.New("account: guardian required")
	ErrNewSignerInvalid               = errors.New("account: new signer invalid")
	ErrNewGuardianInvalid             = errors.New("account: new guardian invalid")
	ErrNotEscaping                    = errors.New("account: not escaping")
	ErrEscapeNotActive                = errors.New("account: escape not active")
	ErrCannotOverrideEscape           = errors.New("account: cannot override escape")
	ErrPluginInvalid                  = errors.New("account: plugin invalid")
	ErrUnknownPlugin                  = errors.New("account: unknown plugin")
	ErrInvalidImplementation          = errors.New("account: invalid implementation")
	ErrForbiddenCall                  = errors.New("account: forbidden call")
	ErrOnlySelf                       = errors.New("account: only self")
	ErrInvalidCaller                  = errors.New("account: invalid caller")
	ErrMulticallFailed                = errors.New("account: multicall failed")
	ErrInvalidReference               = errors.New("account: invalid multicall reference")
	ErrInvalidArgumentTag             = errors.New("account: invalid multicall argument tag")
)

var failures = []error{
	ErrAlreadyInitialized,
	ErrSignatureFormatInvalid,
	ErrSignerSignatureInvalid,
	ErrGuardianSignatureInvalid,
	ErrGuardianBackupSignatureInvalid,
	ErrGuardianRequired,
	ErrNewSignerInvalid,
	ErrNewGuardianInvalid,
	ErrNotEscaping,
	ErrEscapeNotActive,
	ErrCannotOverrideEscape,
	ErrPluginInvalid,
	ErrUnknownPlugin,
	ErrInvalidImplementation,
	ErrForbiddenCall,
	ErrOnlySelf,
	ErrInvalidCaller,
	ErrMulticallFailed,
	ErrInvalidReference,
	ErrInvalidArgumentTag,
}

// authFailures are the evaluator outcomes that isValidSignature reports as a
// negative verdict instead of an error.
var authFailures = []error{
	ErrSignatureFormatInvalid,
	ErrSignerSignatureInvalid,
	ErrGuardianSignatureInvalid,
	ErrGuardianBackupSignatureInvalid,
	ErrGuardianRequired,
}

func isAuthFailure(err error) bool {
	for _, target := range authFailures {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// MulticallError attributes a batch failure to the call at Index.
type MulticallError struct {
	Index int
	Err   error
}

func (e *MulticallError) Error() string {
	return fmt.Sprintf("multicall %d failed: %v", e.Index, e.Err)
}

func (e *MulticallError) Unwrap() error { return e.Err }

// Is matches ErrMulticallFailed regardless of the index.
func (e *MulticallError) Is(target error) bool {
	return target == ErrMulticallFailed
}
