package core

import (
	"fmt"

	"smartwallet/core/contract"
	"smartwallet/core/types"
)

// frame is the execution context of one entry-point invocation.
type frame struct {
	l      *Ledger
	self   types.Address
	caller types.Address
	class  types.ClassHash
	static bool
	depth  int
	tx     contract.TxInfo
}

var _ contract.Context = (*frame)(nil)

func (l *Ledger) newFrame(self, caller types.Address, class types.ClassHash, tx contract.TxInfo) *frame {
	return &frame{l: l, self: self, caller: caller, class: class, tx: tx}
}

// callContract starts a top-level frame on the class deployed at to.
func (l *Ledger) callContract(caller, to types.Address, selector types.Selector, calldata []types.Word, tx contract.TxInfo, static bool) ([]types.Word, error) {
	class, err := l.deployedClass(to)
	if err != nil {
		return nil, err
	}
	f := l.newFrame(to, caller, class, tx)
	f.static = static
	return f.run(selector, calldata)
}

func (l *Ledger) deployedClass(addr types.Address) (types.ClassHash, error) {
	acc, err := l.state.Account(addr)
	if err != nil {
		return types.ClassHash{}, err
	}
	if !acc.Deployed() {
		return types.ClassHash{}, fmt.Errorf("%w: %s", ErrContractNotFound, addr.Hex())
	}
	return acc.ClassHash, nil
}

func (f *frame) run(selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	if f.depth > MaxCallDepth {
		return nil, ErrCallDepthExceeded
	}
	cls, ok := f.l.classes[f.class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotDeclared, f.class.Hex())
	}
	return cls.Invoke(f, selector, calldata)
}

func (f *frame) child(self, caller types.Address, class types.ClassHash, static bool) *frame {
	return &frame{
		l:      f.l,
		self:   self,
		caller: caller,
		class:  class,
		static: f.static || static,
		depth:  f.depth + 1,
		tx:     f.tx,
	}
}

func (f *frame) Self() types.Address   { return f.self }
func (f *frame) Caller() types.Address { return f.caller }
func (f *frame) Now() uint64           { return f.l.Now() }
func (f *frame) ChainID() types.Word   { return f.l.chainID }

func (f *frame) TxInfo() contract.TxInfo {
	info := f.tx
	info.Signature = append([]types.Word(nil), f.tx.Signature...)
	return info
}

func (f *frame) StorageRead(key types.Word) (types.Word, error) {
	return f.l.state.StorageRead(f.self, key)
}

func (f *frame) StorageWrite(key, value types.Word) error {
	if f.static {
		return contract.ErrStaticWrite
	}
	return f.l.state.StorageWrite(f.self, key, value)
}

func (f *frame) Call(to types.Address, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	class, err := f.l.deployedClass(to)
	if err != nil {
		return nil, err
	}
	return f.enter(f.child(to, f.self, class, false), selector, calldata)
}

func (f *frame) LibraryCall(class types.ClassHash, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	if !f.l.IsDeclared(class) {
		return nil, fmt.Errorf("%w: %s", ErrClassNotDeclared, class.Hex())
	}
	return f.enter(f.child(f.self, f.caller, class, false), selector, calldata)
}

func (f *frame) StaticLibraryCall(class types.ClassHash, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	if !f.l.IsDeclared(class) {
		return nil, fmt.Errorf("%w: %s", ErrClassNotDeclared, class.Hex())
	}
	return f.enter(f.child(f.self, f.caller, class, true), selector, calldata)
}

// enter runs a nested frame. A failing frame leaves neither storage writes
// nor events behind, even when the caller recovers from the error.
func (f *frame) enter(child *frame, selector types.Selector, calldata []types.Word) ([]types.Word, error) {
	snap := f.l.state.Snapshot()
	mark := f.l.journal.Checkpoint()
	ret, err := child.run(selector, calldata)
	if err != nil {
		f.l.journal.RevertTo(mark)
		if rerr := f.l.state.RevertToSnapshot(snap); rerr != nil {
			return nil, fmt.Errorf("%w (revert: %v)", err, rerr)
		}
		return nil, err
	}
	return ret, nil
}

func (f *frame) ClassAt(addr types.Address) (types.ClassHash, error) {
	return f.l.ClassAt(addr)
}

func (f *frame) IsDeclared(class types.ClassHash) bool {
	return f.l.IsDeclared(class)
}

func (f *frame) ReplaceClass(class types.ClassHash) error {
	if f.static {
		return contract.ErrStaticWrite
	}
	if !f.l.IsDeclared(class) {
		return fmt.Errorf("%w: %s", ErrClassNotDeclared, class.Hex())
	}
	acc, err := f.l.state.Account(f.self)
	if err != nil {
		return err
	}
	if !acc.Deployed() {
		return fmt.Errorf("%w: %s", ErrContractNotFound, f.self.Hex())
	}
	acc.ClassHash = class
	return f.l.state.PutAccount(f.self, acc)
}

// Emit records evt in the transaction journal. Read-only frames drop events.
func (f *frame) Emit(evt types.Event) {
	if f.static {
		return
	}
	if evt.Address == (types.Address{}) {
		evt.Address = f.self
	}
	f.l.journal.Emit(evt)
}
