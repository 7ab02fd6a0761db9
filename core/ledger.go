package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smartwallet/core/contract"
	"smartwallet/core/events"
	"smartwallet/core/state"
	"smartwallet/core/types"
	"smartwallet/crypto"
	"smartwallet/observability"
	"smartwallet/storage"
	"smartwallet/storage/trie"
)

// MaxCallDepth bounds nested Call/LibraryCall frames.
const MaxCallDepth = 64

var (
	ErrClassNotDeclared  = errors.New("ledger: class not declared")
	ErrClassDeclared     = errors.New("ledger: class already declared")
	ErrAddressOccupied   = errors.New("ledger: address already deployed")
	ErrContractNotFound  = errors.New("ledger: contract not deployed")
	ErrInvalidNonce      = errors.New("ledger: invalid nonce")
	ErrInvalidVersion    = errors.New("ledger: unsupported transaction version")
	ErrZeroCaller        = errors.New("ledger: caller must be non-zero")
	ErrCallDepthExceeded = errors.New("ledger: call depth exceeded")
)

var headRootKey = []byte("ledger/head")

// Ledger hosts contracts and processes account transactions one at a time.
// Every operation is atomic: it either commits all of its state writes or
// rewinds the trie to the last committed root.
//
// Ledger is not safe for concurrent use.
type Ledger struct {
	db      storage.Database
	state   *state.Manager
	classes map[types.ClassHash]contract.Class
	chainID types.Word
	nowFn   func() time.Time
	emitter events.Emitter
	logger  *slog.Logger
	tracer  trace.Tracer
	journal events.Buffer
	reasons []error
}

// coreReasons are the sentinels every ledger reports by name.
var coreReasons = []error{
	ErrClassNotDeclared,
	ErrClassDeclared,
	ErrAddressOccupied,
	ErrContractNotFound,
	ErrInvalidNonce,
	ErrInvalidVersion,
	ErrZeroCaller,
	ErrCallDepthExceeded,
	contract.ErrEntryPointNotFound,
	contract.ErrCalldataTooShort,
	contract.ErrInvalidCalldata,
	contract.ErrStaticWrite,
}

// NewLedger opens the ledger stored in db, resuming from the last committed
// root when one was recorded.
func NewLedger(db storage.Database, chainID string) (*Ledger, error) {
	var root common.Hash
	head, err := db.Get(headRootKey)
	switch {
	case err == nil:
		root = common.BytesToHash(head)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("ledger: load head: %w", err)
	}
	tr, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("ledger: open state: %w", err)
	}
	return &Ledger{
		db:      db,
		state:   state.NewManager(tr),
		classes: make(map[types.ClassHash]contract.Class),
		chainID: types.ChainIDWord(chainID),
		nowFn:   time.Now,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		tracer:  otel.Tracer("smartwallet/core"),
		reasons: append([]error(nil), coreReasons...),
	}, nil
}

// SetNowFunc overrides the clock used for block timestamps. Passing nil
// restores time.Now.
func (l *Ledger) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	l.nowFn = now
}

// SetEmitter configures the sink for committed events. Passing nil resets
// the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// SetLogger configures the transaction logger.
func (l *Ledger) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	l.logger = logger
}

// ChainID returns the chain identifier word bound into transaction digests.
func (l *Ledger) ChainID() types.Word {
	return l.chainID
}

// Now returns the current block timestamp in unix seconds.
func (l *Ledger) Now() uint64 {
	return uint64(l.nowFn().Unix())
}

// StateRoot returns the last committed state root.
func (l *Ledger) StateRoot() common.Hash {
	return l.state.Root()
}

// Declare registers class code under its class hash.
func (l *Ledger) Declare(c contract.Class) (types.ClassHash, error) {
	hash := contract.HashOf(c)
	if _, ok := l.classes[hash]; ok {
		return hash, fmt.Errorf("%w: %s", ErrClassDeclared, c.Name())
	}
	l.classes[hash] = c
	if f, ok := c.(contract.Failures); ok {
		l.reasons = append(l.reasons, f.Failures()...)
	}
	return hash, nil
}

// IsDeclared reports whether class code is registered.
func (l *Ledger) IsDeclared(class types.ClassHash) bool {
	_, ok := l.classes[class]
	return ok
}

// DeployAddress derives the address Deploy assigns for the inputs.
func DeployAddress(class types.ClassHash, salt types.Word, ctor []types.Word) types.Address {
	ctorHash := crypto.HashElements(ctor...)
	saltBytes := salt.Bytes32()
	ctorBytes := ctorHash.Bytes32()
	digest := ethcrypto.Keccak256([]byte("deploy:"), class.Bytes(), saltBytes[:], ctorBytes[:])
	return common.BytesToAddress(digest[12:])
}

// Deploy instantiates a declared class and runs its constructor. Classes
// without a constructor accept only empty constructor calldata.
func (l *Ledger) Deploy(ctx context.Context, class types.ClassHash, salt types.Word, ctor []types.Word) (types.Address, error) {
	_, span := l.tracer.Start(ctx, "ledger.deploy")
	defer span.End()

	if !l.IsDeclared(class) {
		return types.Address{}, l.fail(span, fmt.Errorf("%w: %s", ErrClassNotDeclared, class.Hex()))
	}
	addr := DeployAddress(class, salt, ctor)
	existing, err := l.state.Account(addr)
	if err != nil {
		return types.Address{}, l.fail(span, err)
	}
	if existing.Deployed() {
		return types.Address{}, l.fail(span, fmt.Errorf("%w: %s", ErrAddressOccupied, addr.Hex()))
	}

	l.journal.Reset()
	if err := l.instantiate(addr, class, ctor); err != nil {
		l.rollback()
		return types.Address{}, l.fail(span, err)
	}
	if _, err := l.commit(); err != nil {
		return types.Address{}, l.fail(span, err)
	}
	span.SetAttributes(attribute.String("address", addr.Hex()))
	return addr, nil
}

// instantiate records addr as an instance of class and runs its constructor.
func (l *Ledger) instantiate(addr types.Address, class types.ClassHash, ctor []types.Word) error {
	if err := l.state.PutAccount(addr, &types.Account{ClassHash: class}); err != nil {
		return err
	}
	f := l.newFrame(addr, types.Address{}, class, contract.TxInfo{})
	_, err := f.run(contract.ConstructorSelector, ctor)
	if errors.Is(err, contract.ErrEntryPointNotFound) && len(ctor) == 0 {
		return nil
	}
	return err
}

// DeployAccount deploys an account whose own credentials sign the
// deployment. The constructor runs first so the class can check the
// signature against the credentials it was just given; a rejected
// deployment leaves no trace. The new account's nonce starts at one.
func (l *Ledger) DeployAccount(ctx context.Context, tx *types.DeployAccountTransaction) (*types.Receipt, error) {
	addr := DeployAddress(tx.ClassHash, tx.Salt, tx.Calldata)
	ctx, span := l.tracer.Start(ctx, "ledger.deploy_account", trace.WithAttributes(
		attribute.String("account", addr.Hex()),
		attribute.String("class", tx.ClassHash.Hex()),
	))
	defer span.End()
	metrics := observability.WalletMetrics()

	hash := tx.Digest(l.chainID, addr)
	log := l.logger.With("account", addr.Hex(), "class", tx.ClassHash.Hex(), "tx_hash", hash.Hex())
	reject := func(err error) (*types.Receipt, error) {
		l.rollback()
		metrics.RecordTransaction(observability.OutcomeRejected)
		metrics.RecordValidationFailure(l.errorReason(err))
		log.Warn("account deployment rejected", "reason", err.Error())
		return nil, l.fail(span, err)
	}

	if tx.Version != types.TransactionVersion {
		return reject(fmt.Errorf("%w: %d", ErrInvalidVersion, tx.Version))
	}
	if !l.IsDeclared(tx.ClassHash) {
		return reject(fmt.Errorf("%w: %s", ErrClassNotDeclared, tx.ClassHash.Hex()))
	}
	existing, err := l.state.Account(addr)
	if err != nil {
		return reject(err)
	}
	if existing.Deployed() {
		return reject(fmt.Errorf("%w: %s", ErrAddressOccupied, addr.Hex()))
	}

	l.journal.Reset()
	if err := l.instantiate(addr, tx.ClassHash, tx.Calldata); err != nil {
		return reject(err)
	}

	info := contract.TxInfo{
		Account:   addr,
		Hash:      hash,
		MaxFee:    tx.MaxFee,
		Version:   tx.Version,
		Signature: append([]types.Word(nil), tx.Signature...),
	}
	args := make([]types.Word, 0, 2+len(tx.Calldata))
	args = append(args, types.ClassHashWord(tx.ClassHash), tx.Salt)
	args = append(args, tx.Calldata...)

	_, vspan := l.tracer.Start(ctx, "validate")
	_, err = l.callContract(types.Address{}, addr, contract.ValidateDeploySelector, args, info, true)
	vspan.End()
	if err != nil {
		return reject(err)
	}
	if err := l.bumpNonce(addr); err != nil {
		return reject(err)
	}

	committed := l.journal.Events()
	root, err := l.commit()
	if err != nil {
		return nil, l.fail(span, err)
	}
	receipt := &types.Receipt{
		TxHash:    hash,
		Account:   addr,
		Status:    types.ReceiptSucceeded,
		StateRoot: root,
	}
	for _, evt := range committed {
		if typed, ok := evt.(types.Event); ok {
			receipt.Events = append(receipt.Events, typed)
		}
		metrics.RecordEvent(evt.EventType())
	}
	metrics.RecordTransaction(observability.OutcomeSucceeded)
	log.Info("account deployed", "state_root", root.Hex())
	return receipt, nil
}

// Invoke executes an entry point on behalf of caller and commits its effects.
func (l *Ledger) Invoke(ctx context.Context, caller, to types.Address, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	_, span := l.tracer.Start(ctx, "ledger.invoke", trace.WithAttributes(
		attribute.String("to", to.Hex()),
		attribute.String("selector", selector.String()),
	))
	defer span.End()

	if caller == (types.Address{}) {
		return nil, l.fail(span, ErrZeroCaller)
	}
	l.journal.Reset()
	ret, err := l.callContract(caller, to, selector, calldata, contract.TxInfo{}, false)
	if err != nil {
		l.rollback()
		return nil, l.fail(span, err)
	}
	if _, err := l.commit(); err != nil {
		return nil, l.fail(span, err)
	}
	return ret, nil
}

// Call runs an entry point read-only. State writes are refused and nothing is
// committed.
func (l *Ledger) Call(to types.Address, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	l.journal.Reset()
	defer l.rollback()
	return l.callContract(types.Address{}, to, selector, calldata, contract.TxInfo{}, true)
}

// Submit validates and executes an account transaction.
//
// A transaction that fails validation is rejected without touching state.
// Once validation passes the nonce is consumed: if execution then fails the
// batch is discarded, the nonce increment alone is committed and the returned
// receipt is marked reverted alongside the execution error.
func (l *Ledger) Submit(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.submit", trace.WithAttributes(
		attribute.String("account", tx.Account.Hex()),
		attribute.Int64("nonce", int64(tx.Nonce)),
	))
	defer span.End()
	metrics := observability.WalletMetrics()

	hash := tx.Digest(l.chainID)
	log := l.logger.With("account", tx.Account.Hex(), "nonce", tx.Nonce, "tx_hash", hash.Hex())
	reject := func(err error) (*types.Receipt, error) {
		l.rollback()
		metrics.RecordTransaction(observability.OutcomeRejected)
		metrics.RecordValidationFailure(l.errorReason(err))
		log.Warn("transaction rejected", "reason", err.Error())
		return nil, l.fail(span, err)
	}

	if tx.Version != types.TransactionVersion {
		return reject(fmt.Errorf("%w: %d", ErrInvalidVersion, tx.Version))
	}
	acc, err := l.state.Account(tx.Account)
	if err != nil {
		return reject(err)
	}
	if !acc.Deployed() {
		return reject(fmt.Errorf("%w: %s", ErrContractNotFound, tx.Account.Hex()))
	}
	if tx.Nonce != acc.Nonce {
		return reject(fmt.Errorf("%w: expected %d, got %d", ErrInvalidNonce, acc.Nonce, tx.Nonce))
	}

	info := contract.TxInfo{
		Account:   tx.Account,
		Hash:      hash,
		Nonce:     tx.Nonce,
		MaxFee:    tx.MaxFee,
		Version:   tx.Version,
		Signature: append([]types.Word(nil), tx.Signature...),
	}
	l.journal.Reset()

	_, vspan := l.tracer.Start(ctx, "validate")
	_, err = l.callContract(types.Address{}, tx.Account, contract.ValidateSelector, tx.Calldata, info, true)
	vspan.End()
	if err != nil {
		return reject(err)
	}

	if err := l.bumpNonce(tx.Account); err != nil {
		return reject(err)
	}

	_, espan := l.tracer.Start(ctx, "execute")
	ret, execErr := l.callContract(types.Address{}, tx.Account, contract.ExecuteSelector, tx.Calldata, info, false)
	if execErr != nil {
		espan.RecordError(execErr)
		espan.SetStatus(codes.Error, execErr.Error())
	}
	espan.End()

	receipt := &types.Receipt{TxHash: hash, Account: tx.Account, Nonce: tx.Nonce}
	if execErr != nil {
		l.rollback()
		if err := l.bumpNonce(tx.Account); err != nil {
			l.rollback()
			return nil, l.fail(span, err)
		}
		root, err := l.commit()
		if err != nil {
			return nil, l.fail(span, err)
		}
		receipt.Status = types.ReceiptReverted
		receipt.RevertReason = execErr.Error()
		receipt.StateRoot = root
		metrics.RecordTransaction(observability.OutcomeReverted)
		log.Warn("transaction reverted", "reason", execErr.Error())
		span.SetStatus(codes.Error, execErr.Error())
		return receipt, execErr
	}

	committed := l.journal.Events()
	root, err := l.commit()
	if err != nil {
		return nil, l.fail(span, err)
	}
	receipt.Status = types.ReceiptSucceeded
	receipt.ReturnData = ret
	receipt.StateRoot = root
	for _, evt := range committed {
		if typed, ok := evt.(types.Event); ok {
			receipt.Events = append(receipt.Events, typed)
		}
		metrics.RecordEvent(evt.EventType())
	}
	if arr, err := types.DecodeCallArray(tx.Calldata); err == nil {
		metrics.ObserveBatch(len(arr.Entries))
	}
	metrics.RecordTransaction(observability.OutcomeSucceeded)
	log.Debug("transaction executed", "events", len(committed), "state_root", root.Hex())
	return receipt, nil
}

// Nonce returns the next nonce expected from account.
func (l *Ledger) Nonce(account types.Address) (uint64, error) {
	acc, err := l.state.Account(account)
	if err != nil {
		return 0, err
	}
	if !acc.Deployed() {
		return 0, fmt.Errorf("%w: %s", ErrContractNotFound, account.Hex())
	}
	return acc.Nonce, nil
}

// ClassAt returns the class deployed at addr, or the zero hash.
func (l *Ledger) ClassAt(addr types.Address) (types.ClassHash, error) {
	acc, err := l.state.Account(addr)
	if err != nil || !acc.Deployed() {
		return types.ClassHash{}, err
	}
	return acc.ClassHash, nil
}

// Storage reads a committed storage slot of addr.
func (l *Ledger) Storage(addr types.Address, key types.Word) (types.Word, error) {
	return l.state.StorageRead(addr, key)
}

func (l *Ledger) bumpNonce(addr types.Address) error {
	acc, err := l.state.Account(addr)
	if err != nil {
		return err
	}
	acc.Nonce++
	return l.state.PutAccount(addr, acc)
}

func (l *Ledger) commit() (common.Hash, error) {
	root, err := l.state.Commit()
	if err != nil {
		l.rollback()
		return common.Hash{}, fmt.Errorf("ledger: commit: %w", err)
	}
	if err := l.db.Put(headRootKey, root.Bytes()); err != nil {
		return common.Hash{}, fmt.Errorf("ledger: persist head: %w", err)
	}
	l.journal.Flush(l.emitter)
	return root, nil
}

func (l *Ledger) rollback() {
	l.journal.Reset()
	if err := l.state.Revert(); err != nil {
		l.logger.Error("ledger: state rollback failed", slog.Any("error", err))
	}
}

func (l *Ledger) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// errorReason labels err with the innermost known sentinel in its tree.
// Errors carrying none of them are reported as "other" so dynamic messages
// never become metric labels.
func (l *Ledger) errorReason(err error) string {
	if reason, ok := l.findReason(err); ok {
		return reason
	}
	return "other"
}

func (l *Ledger) findReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	switch x := err.(type) {
	case interface{ Unwrap() error }:
		if reason, ok := l.findReason(x.Unwrap()); ok {
			return reason, true
		}
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if reason, ok := l.findReason(inner); ok {
				return reason, true
			}
		}
	}
	matcher, _ := err.(interface{ Is(error) bool })
	for _, known := range l.reasons {
		if err == known || (matcher != nil && matcher.Is(known)) {
			return known.Error(), true
		}
	}
	return "", false
}
