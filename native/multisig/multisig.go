// Package multisig implements a k-of-n owner set. The same class serves as an
// account plugin, where its state lives in the account's storage, and as a
// standalone guardian contract answering isValidSignature.
package multisig

import (
	"errors"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"smartwallet/core/contract"
	"smartwallet/core/types"
	"smartwallet/crypto"
)

// Name is the declared name of the multisig class.
const Name = "MultisigPlugin"

const (
	EventTypeOwnerAdded       = "owner_added"
	EventTypeOwnerRemoved     = "owner_removed"
	EventTypeThresholdUpdated = "threshold_updated"
)

var (
	ErrAlreadyInitialized = errors.New("multisig: already initialized")
	ErrInvalidThreshold   = errors.New("multisig: invalid threshold")
	ErrOwnerInvalid       = errors.New("multisig: owner invalid")
	ErrNotOwner           = errors.New("multisig: not an owner")
	ErrSignatureCount     = errors.New("multisig: not enough, or too many, signatures")
	ErrDuplicateSigner    = errors.New("multisig: duplicate signer")
	ErrSignatureInvalid   = errors.New("multisig: invalid signature")
	ErrOnlySelf           = errors.New("multisig: only self")
	ErrUpdateNotAllowed   = errors.New("multisig: selector not allowed in signed update")
)

// Entry points, reached through executeOnPlugin and readOnPlugin when the
// class is installed as a plugin.
var (
	InitializeSelector      = types.SelectorFromName("initialize")
	AddOwnersSelector       = types.SelectorFromName("add_owners")
	RemoveOwnersSelector    = types.SelectorFromName("remove_owners")
	ChangeThresholdSelector = types.SelectorFromName("change_threshold")
	GetThresholdSelector    = types.SelectorFromName("get_threshold")
	GetOwnersSelector       = types.SelectorFromName("get_owners")
	IsOwnerSelector         = types.SelectorFromName("is_owner")

	// ExecuteUpdateSelector applies an owner-set change authorized by the
	// owners' threshold signature instead of a self call.
	ExecuteUpdateSelector  = types.SelectorFromName("execute_update")
	GetUpdateNonceSelector = types.SelectorFromName("get_update_nonce")
)

var (
	varThreshold  = crypto.TypeHash("multisig_threshold")
	varOwnerCount = crypto.TypeHash("multisig_owner_count")
	varOwnerAt    = crypto.TypeHash("multisig_owner_at")
	varIsOwner    = crypto.TypeHash("multisig_is_owner")
	varNonce      = crypto.TypeHash("multisig_update_nonce")

	updatePrefix = crypto.ShortString("multisig_update")
)

// Multisig is the class.
type Multisig struct {
	router  *contract.Router
	updates map[types.Selector]contract.Handler
}

// New returns the multisig class.
func New() *Multisig {
	m := &Multisig{router: contract.NewRouter()}
	m.router.Handle("constructor", m.constructor)
	m.router.Handle("initialize", m.initialize)
	m.router.Handle("validate", m.validate)
	m.router.Handle("isValidSignature", m.isValidSignature)
	m.router.Handle("is_valid_signature", m.isValidSignature)
	m.router.Handle("add_owners", m.addOwners)
	m.router.Handle("remove_owners", m.removeOwners)
	m.router.Handle("change_threshold", m.changeThreshold)
	m.router.Handle("get_threshold", m.getThreshold)
	m.router.Handle("get_owners", m.getOwners)
	m.router.Handle("is_owner", m.isOwner)
	m.router.Handle("execute_update", m.executeUpdate)
	m.router.Handle("get_update_nonce", m.getUpdateNonce)
	m.updates = map[types.Selector]contract.Handler{
		AddOwnersSelector:       applyAddOwners,
		RemoveOwnersSelector:    applyRemoveOwners,
		ChangeThresholdSelector: applyChangeThreshold,
	}
	return m
}

func (m *Multisig) Name() string { return Name }

// Failures lists the sentinel errors of the multisig entry points.
func (m *Multisig) Failures() []error {
	return []error{
		ErrAlreadyInitialized, ErrInvalidThreshold, ErrOwnerInvalid, ErrNotOwner,
		ErrSignatureCount, ErrDuplicateSigner, ErrSignatureInvalid, ErrOnlySelf, ErrUpdateNotAllowed,
	}
}

func (m *Multisig) Invoke(ctx contract.Context, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	return m.router.Dispatch(ctx, selector, calldata)
}

// constructor deploys a standalone owner set: [threshold, owners...].
func (m *Multisig) constructor(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	threshold := in.Uint64()
	owners := in.Rest()
	if err := in.Err(); err != nil {
		return nil, err
	}
	return nil, setup(ctx, threshold, owners)
}

// initialize installs the owner set in an account: [threshold, len, owners...].
func (m *Multisig) initialize(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	threshold := in.Uint64()
	owners := in.Array()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	return nil, setup(ctx, threshold, owners)
}

func setup(ctx contract.Context, threshold uint64, owners []types.Word) error {
	st := store{ctx: ctx}
	current, err := st.threshold()
	if err != nil {
		return err
	}
	if current != 0 {
		return ErrAlreadyInitialized
	}
	if err := st.addOwners(owners); err != nil {
		return err
	}
	return st.setThreshold(threshold)
}

func onlySelf(ctx contract.Context) error {
	if ctx.Caller() != ctx.Self() {
		return ErrOnlySelf
	}
	return nil
}

// validate authorizes a plugin transaction with the owners' signatures
// carried in the transaction signature.
func (m *Multisig) validate(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	_ = in.Array()
	if err := in.Err(); err != nil {
		return nil, err
	}
	tx := ctx.TxInfo()
	return nil, store{ctx: ctx}.check(crypto.WordFromHash(tx.Hash), tx.Signature)
}

// isValidSignature answers [1] when sig, a list of (owner, r, s) triples,
// carries exactly threshold distinct owner signatures over hash.
func (m *Multisig) isValidSignature(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	hash := in.Word()
	sig := in.Array()
	if err := in.Err(); err != nil {
		return nil, err
	}
	err := store{ctx: ctx}.check(hash, sig)
	switch {
	case err == nil:
		return []types.Word{types.BoolWord(true)}, nil
	case isSignatureFailure(err):
		return []types.Word{types.BoolWord(false)}, nil
	default:
		return nil, err
	}
}

func isSignatureFailure(err error) bool {
	for _, target := range []error{ErrSignatureCount, ErrDuplicateSigner, ErrNotOwner, ErrSignatureInvalid} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (m *Multisig) addOwners(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	return applyAddOwners(ctx, in)
}

func (m *Multisig) removeOwners(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	return applyRemoveOwners(ctx, in)
}

func (m *Multisig) changeThreshold(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	if err := onlySelf(ctx); err != nil {
		return nil, err
	}
	return applyChangeThreshold(ctx, in)
}

func applyAddOwners(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	threshold := in.Uint64()
	owners := in.Array()
	if err := in.Err(); err != nil {
		return nil, err
	}
	st := store{ctx: ctx}
	if err := st.addOwners(owners); err != nil {
		return nil, err
	}
	return nil, st.setThreshold(threshold)
}

func applyRemoveOwners(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	threshold := in.Uint64()
	owners := in.Array()
	if err := in.Err(); err != nil {
		return nil, err
	}
	st := store{ctx: ctx}
	for _, w := range owners {
		owner, ok := types.AddressFromWord(w)
		if !ok {
			return nil, ErrNotOwner
		}
		if err := st.removeOwner(owner); err != nil {
			return nil, err
		}
	}
	return nil, st.setThreshold(threshold)
}

func applyChangeThreshold(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	threshold := in.Uint64()
	if err := in.Err(); err != nil {
		return nil, err
	}
	return nil, store{ctx: ctx}.setThreshold(threshold)
}

// UpdateDigest is the hash the owners sign to authorize execute_update. The
// update nonce makes every authorization single use.
func UpdateDigest(chainID types.Word, self types.Address, nonce uint64, selector types.Selector, args []types.Word) common.Hash {
	return crypto.HashFromWord(crypto.HashElements(
		updatePrefix,
		chainID,
		types.AddressWord(self),
		types.NewWord(nonce),
		selector.Word(),
		crypto.HashElements(args...),
	))
}

// executeUpdate lets a standalone owner set rotate itself:
// [selector, len, args..., len, (owner, r, s)...].
func (m *Multisig) executeUpdate(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	selWord := in.Word()
	args := in.Array()
	sig := in.Array()
	if err := in.Err(); err != nil {
		return nil, err
	}
	sel, ok := types.SelectorFromWord(selWord)
	if !ok {
		return nil, ErrUpdateNotAllowed
	}
	apply, ok := m.updates[sel]
	if !ok {
		return nil, ErrUpdateNotAllowed
	}
	nonceWord, err := ctx.StorageRead(varNonce)
	if err != nil {
		return nil, err
	}
	nonce := nonceWord.Uint64()
	digest := UpdateDigest(ctx.ChainID(), ctx.Self(), nonce, sel, args)
	if err := (store{ctx: ctx}).check(crypto.WordFromHash(digest), sig); err != nil {
		return nil, err
	}
	if err := ctx.StorageWrite(varNonce, types.NewWord(nonce+1)); err != nil {
		return nil, err
	}
	return apply(ctx, contract.NewReader(args))
}

func (m *Multisig) getUpdateNonce(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	w, err := ctx.StorageRead(varNonce)
	return []types.Word{w}, err
}

func (m *Multisig) getThreshold(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	threshold, err := store{ctx: ctx}.threshold()
	return []types.Word{types.NewWord(threshold)}, err
}

func (m *Multisig) getOwners(ctx contract.Context, _ *contract.Reader) ([]types.Word, error) {
	owners, err := store{ctx: ctx}.owners()
	if err != nil {
		return nil, err
	}
	out := make([]types.Word, 0, 1+len(owners))
	out = append(out, types.NewWord(uint64(len(owners))))
	for _, o := range owners {
		out = append(out, types.AddressWord(o))
	}
	return out, nil
}

func (m *Multisig) isOwner(ctx contract.Context, in *contract.Reader) ([]types.Word, error) {
	owner := in.Address()
	if err := in.Err(); err != nil {
		return nil, err
	}
	ok, err := store{ctx: ctx}.isOwner(owner)
	return []types.Word{types.BoolWord(ok)}, err
}

// store holds the owner set as a count, an index-addressed list and a
// membership flag per owner.
type store struct {
	ctx contract.Context
}

func ownerAtKey(i uint64) types.Word {
	return crypto.HashElements(varOwnerAt, types.NewWord(i))
}

func isOwnerKey(owner types.Address) types.Word {
	return crypto.HashElements(varIsOwner, types.AddressWord(owner))
}

func (s store) threshold() (uint64, error) {
	w, err := s.ctx.StorageRead(varThreshold)
	return w.Uint64(), err
}

func (s store) count() (uint64, error) {
	w, err := s.ctx.StorageRead(varOwnerCount)
	return w.Uint64(), err
}

func (s store) isOwner(owner types.Address) (bool, error) {
	w, err := s.ctx.StorageRead(isOwnerKey(owner))
	return !w.IsZero(), err
}

func (s store) owners() ([]types.Address, error) {
	n, err := s.count()
	if err != nil {
		return nil, err
	}
	out := make([]types.Address, 0, n)
	for i := uint64(0); i < n; i++ {
		w, err := s.ctx.StorageRead(ownerAtKey(i))
		if err != nil {
			return nil, err
		}
		addr, _ := types.AddressFromWord(w)
		out = append(out, addr)
	}
	return out, nil
}

func (s store) setThreshold(threshold uint64) error {
	n, err := s.count()
	if err != nil {
		return err
	}
	if threshold == 0 || threshold > n {
		return ErrInvalidThreshold
	}
	if err := s.ctx.StorageWrite(varThreshold, types.NewWord(threshold)); err != nil {
		return err
	}
	s.ctx.Emit(types.Event{Type: EventTypeThresholdUpdated, Attributes: map[string]string{
		"threshold": strconv.FormatUint(threshold, 10),
	}})
	return nil
}

func (s store) addOwners(owners []types.Word) error {
	n, err := s.count()
	if err != nil {
		return err
	}
	for _, w := range owners {
		owner, ok := types.AddressFromWord(w)
		if !ok || owner == (types.Address{}) {
			return ErrOwnerInvalid
		}
		exists, err := s.isOwner(owner)
		if err != nil {
			return err
		}
		if exists {
			return ErrOwnerInvalid
		}
		if err := s.ctx.StorageWrite(ownerAtKey(n), types.AddressWord(owner)); err != nil {
			return err
		}
		if err := s.ctx.StorageWrite(isOwnerKey(owner), types.BoolWord(true)); err != nil {
			return err
		}
		n++
		s.ctx.Emit(types.Event{Type: EventTypeOwnerAdded, Attributes: map[string]string{"owner": owner.Hex()}})
	}
	return s.ctx.StorageWrite(varOwnerCount, types.NewWord(n))
}

// removeOwner moves the last owner into the removed owner's index.
func (s store) removeOwner(owner types.Address) error {
	owners, err := s.owners()
	if err != nil {
		return err
	}
	idx := -1
	for i, o := range owners {
		if o == owner {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotOwner
	}
	last := uint64(len(owners) - 1)
	if uint64(idx) != last {
		if err := s.ctx.StorageWrite(ownerAtKey(uint64(idx)), types.AddressWord(owners[last])); err != nil {
			return err
		}
	}
	if err := s.ctx.StorageWrite(ownerAtKey(last), types.Word{}); err != nil {
		return err
	}
	if err := s.ctx.StorageWrite(isOwnerKey(owner), types.Word{}); err != nil {
		return err
	}
	if err := s.ctx.StorageWrite(varOwnerCount, types.NewWord(last)); err != nil {
		return err
	}
	s.ctx.Emit(types.Event{Type: EventTypeOwnerRemoved, Attributes: map[string]string{"owner": owner.Hex()}})
	return nil
}

// check verifies a bundle of (owner, r, s) triples against hash.
func (s store) check(hash types.Word, sig []types.Word) error {
	threshold, err := s.threshold()
	if err != nil {
		return err
	}
	if threshold == 0 || uint64(len(sig)) != 3*threshold {
		return ErrSignatureCount
	}
	digest := crypto.HashFromWord(hash)
	seen := make(map[types.Address]struct{}, threshold)
	for i := 0; i < len(sig); i += 3 {
		owner, ok := types.AddressFromWord(sig[i])
		if !ok {
			return ErrNotOwner
		}
		if _, dup := seen[owner]; dup {
			return ErrDuplicateSigner
		}
		seen[owner] = struct{}{}
		isOwner, err := s.isOwner(owner)
		if err != nil {
			return err
		}
		if !isOwner {
			return ErrNotOwner
		}
		if !crypto.Verify(digest, owner, crypto.SignatureFromWords(sig[i+1], sig[i+2])) {
			return ErrSignatureInvalid
		}
	}
	return nil
}

// Signature is one owner's contribution to a bundle.
type Signature struct {
	Owner types.Address
	Sig   crypto.Signature
}

// Bundle flattens owner signatures into (owner, r, s) triples.
func Bundle(sigs ...Signature) []types.Word {
	out := make([]types.Word, 0, 3*len(sigs))
	for _, s := range sigs {
		out = append(out, types.AddressWord(s.Owner), s.Sig.R, s.Sig.S)
	}
	return out
}
