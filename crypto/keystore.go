package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/google/uuid"
)

var (
	errNilKey          = errors.New("crypto: nil private key")
	errEmptyPath       = errors.New("crypto: empty keystore path")
	ErrInvalidKeystore = errors.New("crypto: scrypt N must be a power of two above 1 and P positive")
)

// KeystoreParams are the scrypt cost parameters a keystore is sealed with.
type KeystoreParams struct {
	ScryptN int
	ScryptP int
}

var (
	// StandardKeystore matches the cost geth uses for account keys.
	StandardKeystore = KeystoreParams{ScryptN: keystore.StandardScryptN, ScryptP: keystore.StandardScryptP}
	// LightKeystore trades brute-force resistance for fast unlocking.
	LightKeystore = KeystoreParams{ScryptN: keystore.LightScryptN, ScryptP: keystore.LightScryptP}
)

// Validate rejects parameters scrypt would refuse.
func (p KeystoreParams) Validate() error {
	if p.ScryptN <= 1 || p.ScryptN&(p.ScryptN-1) != 0 || p.ScryptP < 1 {
		return fmt.Errorf("%w: N=%d P=%d", ErrInvalidKeystore, p.ScryptN, p.ScryptP)
	}
	return nil
}

// SaveToKeystore seals key into a v3 keystore file at path. The file is
// written beside its destination and renamed into place, so a reader never
// sees a partial keystore. Missing parent directories are created 0700.
func SaveToKeystore(path string, key *PrivateKey, passphrase string, params KeystoreParams) error {
	if key == nil {
		return errNilKey
	}
	if path == "" {
		return errEmptyPath
	}
	if err := params.Validate(); err != nil {
		return err
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	sealed, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    key.Address(),
		PrivateKey: key.PrivateKey,
	}, passphrase, params.ScryptN, params.ScryptP)
	if err != nil {
		return fmt.Errorf("crypto: seal keystore: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore opens a v3 keystore file. The scrypt parameters are read
// from the file itself.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errEmptyPath
	}
	sealed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(sealed, passphrase)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
