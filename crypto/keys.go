package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part used when rendering addresses for
// operators.
type AddressPrefix string

const (
	AccountPrefix AddressPrefix = "sw"
	KeyPrefix     AddressPrefix = "swkey"
)

// EncodeAddress renders a 20-byte address as bech32 with the supplied prefix.
func EncodeAddress(prefix AddressPrefix, addr common.Address) (string, error) {
	conv, err := bech32.ConvertBits(addr.Bytes(), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(string(prefix), conv)
}

// DecodeAddress parses a bech32 address and returns its prefix and bytes.
func DecodeAddress(addrStr string) (AddressPrefix, common.Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return "", common.Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return "", common.Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != common.AddressLength {
		return "", common.Address{}, fmt.Errorf("address must be %d bytes, got %d", common.AddressLength, len(conv))
	}
	return AddressPrefix(prefix), common.BytesToAddress(conv), nil
}

// --- Key Management ---

// PrivateKey is a secp256k1 signing key. Accounts identify a key by the
// address derived from its public half.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// Address returns the key address stored by accounts as a credential.
func (k *PrivateKey) Address() common.Address {
	return crypto.PubkeyToAddress(k.PrivateKey.PublicKey)
}

// Sign produces an (r, s) pair over the digest.
func (k *PrivateKey) Sign(digest common.Hash) (Signature, error) {
	sig, err := crypto.Sign(digest.Bytes(), k.PrivateKey)
	if err != nil {
		return Signature{}, err
	}
	var out Signature
	out.R.SetBytes(sig[:32])
	out.S.SetBytes(sig[32:64])
	return out, nil
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
