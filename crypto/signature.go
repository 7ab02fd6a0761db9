package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Signature is a secp256k1 (r, s) pair. The recovery id is not transmitted;
// verification tries both candidates against the expected key address.
type Signature struct {
	R uint256.Int
	S uint256.Int
}

// SignatureFromWords builds a signature from two consecutive words.
func SignatureFromWords(r, s uint256.Int) Signature {
	return Signature{R: r, S: s}
}

// Words flattens the signature into its wire form.
func (s Signature) Words() []uint256.Int {
	return []uint256.Int{s.R, s.S}
}

// IsZero reports whether both halves are zero, the placeholder used to skip a
// slot in a signature bundle.
func (s Signature) IsZero() bool {
	return s.R.IsZero() && s.S.IsZero()
}

// Verify reports whether sig is a valid signature of digest by the key whose
// address is signer. High-s signatures are rejected.
func Verify(digest common.Hash, signer common.Address, sig Signature) bool {
	if signer == (common.Address{}) {
		return false
	}
	r, s := sig.R.ToBig(), sig.S.ToBig()
	raw := make([]byte, 65)
	rb, sb := sig.R.Bytes32(), sig.S.Bytes32()
	copy(raw[:32], rb[:])
	copy(raw[32:64], sb[:])
	for v := byte(0); v < 2; v++ {
		if !crypto.ValidateSignatureValues(v, r, s, true) {
			return false
		}
		raw[64] = v
		pub, err := crypto.SigToPub(digest.Bytes(), raw)
		if err != nil {
			continue
		}
		if crypto.PubkeyToAddress(*pub) == signer {
			return true
		}
	}
	return false
}
