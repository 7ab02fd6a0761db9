// Package merkle builds and verifies the sorted-pair merkle trees used to
// commit session-key call policies. Every function is pure.
package merkle

import (
	"errors"

	"github.com/holiman/uint256"

	"smartwallet/crypto"
)

var ErrIndexOutOfRange = errors.New("merkle: leaf index out of range")

// HashPair hashes two nodes in ascending order so proofs need no direction
// bits.
func HashPair(a, b uint256.Int) uint256.Int {
	if a.Lt(&b) {
		return crypto.HashElements(a, b)
	}
	return crypto.HashElements(b, a)
}

// Root returns the root of the tree over leaves. Odd levels are padded with a
// zero node. A single leaf is its own root and an empty tree has a zero root.
func Root(leaves []uint256.Int) uint256.Int {
	if len(leaves) == 0 {
		return uint256.Int{}
	}
	level := append([]uint256.Int(nil), leaves...)
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0]
}

// Proof returns the sibling path for the leaf at index, bottom up.
func Proof(leaves []uint256.Int, index int) ([]uint256.Int, error) {
	if index < 0 || index >= len(leaves) {
		return nil, ErrIndexOutOfRange
	}
	level := append([]uint256.Int(nil), leaves...)
	var proof []uint256.Int
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, uint256.Int{})
		}
		if index%2 == 0 {
			proof = append(proof, level[index+1])
		} else {
			proof = append(proof, level[index-1])
		}
		level = nextLevel(level)
		index /= 2
	}
	return proof, nil
}

// Verify reports whether proof resolves leaf to root.
func Verify(leaf uint256.Int, proof []uint256.Int, root uint256.Int) bool {
	cur := leaf
	for _, sibling := range proof {
		cur = HashPair(cur, sibling)
	}
	return cur == root
}

func nextLevel(level []uint256.Int) []uint256.Int {
	if len(level)%2 != 0 {
		level = append(level, uint256.Int{})
	}
	next := make([]uint256.Int, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		next = append(next, HashPair(level[i], level[i+1]))
	}
	return next
}
