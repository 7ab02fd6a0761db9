package types

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Word is the unit of calldata, storage values and return data.
type Word = uint256.Int

// Address identifies a deployed contract or a signing key.
type Address = common.Address

// ClassHash identifies declared contract code.
type ClassHash = common.Hash

// Selector identifies an entry point on a class.
type Selector uint32

// SelectorFromName derives the selector of an entry point from its name.
func SelectorFromName(name string) Selector {
	h := crypto.Keccak256([]byte(name))
	return Selector(binary.BigEndian.Uint32(h[:4]))
}

// SelectorFromWord narrows a calldata word to a selector.
func SelectorFromWord(w Word) (Selector, bool) {
	if !w.IsUint64() || w.Uint64() > math.MaxUint32 {
		return 0, false
	}
	return Selector(w.Uint64()), true
}

// Word widens the selector into a calldata word.
func (s Selector) Word() Word {
	return *uint256.NewInt(uint64(s))
}

func (s Selector) String() string {
	return fmt.Sprintf("0x%08x", uint32(s))
}

// NewWord returns a word holding v.
func NewWord(v uint64) Word {
	return *uint256.NewInt(v)
}

// BoolWord encodes a boolean result as 0 or 1.
func BoolWord(b bool) Word {
	if b {
		return NewWord(1)
	}
	return Word{}
}

// AddressWord places an address in the low 20 bytes of a word.
func AddressWord(a Address) Word {
	var w Word
	w.SetBytes20(a.Bytes())
	return w
}

// AddressFromWord extracts an address, rejecting words wider than 160 bits.
func AddressFromWord(w Word) (Address, bool) {
	if w.BitLen() > 8*common.AddressLength {
		return Address{}, false
	}
	return common.Address(w.Bytes20()), true
}

// ClassHashWord converts a class hash to a word.
func ClassHashWord(h ClassHash) Word {
	var w Word
	w.SetBytes32(h.Bytes())
	return w
}

// ClassHashFromWord converts a word to a class hash.
func ClassHashFromWord(w Word) ClassHash {
	return common.Hash(w.Bytes32())
}

// ClassHashOf derives the class hash registered for a class name.
func ClassHashOf(name string) ClassHash {
	return crypto.Keccak256Hash([]byte("class:" + name))
}
