package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// HashElements hashes the 32-byte big-endian encoding of every element with
// keccak256. It is the single hash used for transaction digests, storage
// variable keys, typed messages and policy leaves.
func HashElements(elems ...uint256.Int) uint256.Int {
	buf := make([]byte, 0, 32*len(elems))
	for i := range elems {
		b := elems[i].Bytes32()
		buf = append(buf, b[:]...)
	}
	var out uint256.Int
	out.SetBytes32(crypto.Keccak256(buf))
	return out
}

// TypeHash returns keccak256 of a type or name string as a word.
func TypeHash(name string) uint256.Int {
	var out uint256.Int
	out.SetBytes32(crypto.Keccak256([]byte(name)))
	return out
}

// ShortString packs an ASCII string of at most 32 bytes into a word.
func ShortString(s string) uint256.Int {
	var out uint256.Int
	if len(s) > 32 {
		s = s[:32]
	}
	out.SetBytes([]byte(s))
	return out
}

// HashFromWord converts a word to a 32-byte hash.
func HashFromWord(w uint256.Int) common.Hash {
	return common.Hash(w.Bytes32())
}

// WordFromHash converts a 32-byte hash to a word.
func WordFromHash(h common.Hash) uint256.Int {
	var out uint256.Int
	out.SetBytes32(h.Bytes())
	return out
}
