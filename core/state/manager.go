package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"smartwallet/core/types"
	"smartwallet/storage/trie"
)

// Manager reads and writes ledger state on top of the trie. Contract storage
// is namespaced by address, so two contracts never observe each other's
// slots.
//
// Every write since the last commit is journalled with the value it
// replaced, so a nested call can be undone without discarding the writes of
// the frames around it.
type Manager struct {
	trie    *trie.Trie
	journal []journalEntry
}

// journalEntry is the raw trie value a key held before a write. A nil prev
// means the key was absent.
type journalEntry struct {
	key  []byte
	prev []byte
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

var (
	accountPrefix = []byte("account:")
	storagePrefix = []byte("storage:")
)

func accountKey(addr types.Address) []byte {
	buf := make([]byte, 0, len(accountPrefix)+common.AddressLength)
	buf = append(buf, accountPrefix...)
	buf = append(buf, addr.Bytes()...)
	return ethcrypto.Keccak256(buf)
}

func storageKey(addr types.Address, key types.Word) []byte {
	slot := key.Bytes32()
	buf := make([]byte, 0, len(storagePrefix)+common.AddressLength+len(slot))
	buf = append(buf, storagePrefix...)
	buf = append(buf, addr.Bytes()...)
	buf = append(buf, slot[:]...)
	return ethcrypto.Keccak256(buf)
}

// Account returns the record stored for addr, or nil when nothing is deployed
// there.
func (m *Manager) Account(addr types.Address) (*types.Account, error) {
	data, err := m.trie.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	acc := new(types.Account)
	if err := rlp.DecodeBytes(data, acc); err != nil {
		return nil, fmt.Errorf("state: decode account %s: %w", addr.Hex(), err)
	}
	return acc, nil
}

// PutAccount writes the record for addr.
func (m *Manager) PutAccount(addr types.Address, acc *types.Account) error {
	encoded, err := rlp.EncodeToBytes(acc)
	if err != nil {
		return err
	}
	return m.put(accountKey(addr), encoded)
}

// StorageRead returns the word stored in slot key of addr. Unwritten slots
// read as zero.
func (m *Manager) StorageRead(addr types.Address, key types.Word) (types.Word, error) {
	data, err := m.trie.Get(storageKey(addr, key))
	if err != nil {
		return types.Word{}, err
	}
	if len(data) == 0 {
		return types.Word{}, nil
	}
	var value uint256.Int
	if err := rlp.DecodeBytes(data, &value); err != nil {
		return types.Word{}, fmt.Errorf("state: decode slot %s of %s: %w", key.Hex(), addr.Hex(), err)
	}
	return value, nil
}

// StorageWrite stores value in slot key of addr. Writing zero clears the slot.
func (m *Manager) StorageWrite(addr types.Address, key, value types.Word) error {
	skey := storageKey(addr, key)
	if value.IsZero() {
		return m.put(skey, nil)
	}
	encoded, err := rlp.EncodeToBytes(&value)
	if err != nil {
		return err
	}
	return m.put(skey, encoded)
}

// put writes value under key, deleting it when value is empty, and journals
// the previous value.
func (m *Manager) put(key, value []byte) error {
	prev, err := m.trie.Get(key)
	if err != nil {
		return err
	}
	if err := m.set(key, value); err != nil {
		return err
	}
	m.journal = append(m.journal, journalEntry{key: key, prev: common.CopyBytes(prev)})
	return nil
}

func (m *Manager) set(key, value []byte) error {
	if len(value) == 0 {
		return m.trie.Delete(key)
	}
	return m.trie.Update(key, value)
}

// Snapshot returns an identifier for the current uncommitted state.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every write made after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) error {
	if id < 0 || id > len(m.journal) {
		return fmt.Errorf("state: snapshot %d out of range [0, %d]", id, len(m.journal))
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if err := m.set(entry.key, entry.prev); err != nil {
			return err
		}
	}
	clear(m.journal[id:])
	m.journal = m.journal[:id]
	return nil
}

// Hash returns the root including uncommitted writes.
func (m *Manager) Hash() common.Hash {
	return m.trie.Hash()
}

// Root returns the last committed root.
func (m *Manager) Root() common.Hash {
	return m.trie.Root()
}

// Commit persists pending writes.
func (m *Manager) Commit() (common.Hash, error) {
	root, err := m.trie.Commit()
	if err != nil {
		return common.Hash{}, err
	}
	m.journal = m.journal[:0]
	return root, nil
}

// Revert discards every write since the last commit.
func (m *Manager) Revert() error {
	m.journal = m.journal[:0]
	return m.trie.Reset(m.trie.Root())
}
