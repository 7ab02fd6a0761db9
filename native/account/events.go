package account

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"smartwallet/core/types"
)

const (
	EventTypeAccountCreated          = "account_created"
	EventTypeSignerChanged           = "signer_changed"
	EventTypeGuardianChanged         = "guardian_changed"
	EventTypeGuardianBackupChanged   = "guardian_backup_changed"
	EventTypeEscapeGuardianTriggered = "escape_guardian_triggered"
	EventTypeEscapeSignerTriggered   = "escape_signer_triggered"
	EventTypeGuardianEscaped         = "guardian_escaped"
	EventTypeSignerEscaped           = "signer_escaped"
	EventTypeEscapeCanceled          = "escape_canceled"
	EventTypeTransactionExecuted     = "transaction_executed"
	EventTypeAccountUpgraded         = "account_upgraded"
)

func newAddressEvent(eventType, key string, addr types.Address) types.Event {
	return types.Event{Type: eventType, Attributes: map[string]string{key: addr.Hex()}}
}

func newAccountCreatedEvent(signer, guardian types.Address) types.Event {
	return types.Event{Type: EventTypeAccountCreated, Attributes: map[string]string{
		"signer":   signer.Hex(),
		"guardian": guardian.Hex(),
	}}
}

func newEscapeTriggeredEvent(kind EscapeKind, activeAt uint64) types.Event {
	eventType := EventTypeEscapeGuardianTriggered
	if kind == EscapeSigner {
		eventType = EventTypeEscapeSignerTriggered
	}
	return types.Event{Type: eventType, Attributes: map[string]string{
		"active_at": strconv.FormatUint(activeAt, 10),
	}}
}

func newTransactionExecutedEvent(hash common.Hash, responseLen int) types.Event {
	return types.Event{Type: EventTypeTransactionExecuted, Attributes: map[string]string{
		"hash":         hash.Hex(),
		"response_len": strconv.Itoa(responseLen),
	}}
}

func newAccountUpgradedEvent(impl types.ClassHash) types.Event {
	return types.Event{Type: EventTypeAccountUpgraded, Attributes: map[string]string{
		"new_implementation": impl.Hex(),
	}}
}
