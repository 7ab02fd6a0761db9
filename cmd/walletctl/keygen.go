package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"smartwallet/cmd/internal/passphrase"
	"smartwallet/config"
	"smartwallet/crypto"
)

var errKeystoreExists = errors.New("keystore already exists; pass -force to overwrite")

func runKeygen(args []string) error {
	fs := newFlagSet(keygenCommand)
	configPath := fs.String("config", defaultConfig, "Path to the walletctl config file")
	out := fs.String("out", "", "Keystore output path (defaults to keystore.Path from the config)")
	passEnv := fs.String("pass-env", "", "Environment variable holding the passphrase (defaults to keystore.PassEnv)")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path := *out
	if path == "" {
		path = cfg.Keystore.Path
	}
	env := *passEnv
	if env == "" {
		env = cfg.Keystore.PassEnv
	}
	return keygen(os.Stdout, path, passphrase.NewSource(env), cfg.Keystore.Params(), *force)
}

type secretSource interface {
	Get() (string, error)
}

func keygen(w io.Writer, path string, pass secretSource, params crypto.KeystoreParams, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s: %w", path, errKeystoreExists)
	}
	secret, err := pass.Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	if err := crypto.SaveToKeystore(path, key, secret, params); err != nil {
		return fmt.Errorf("write keystore: %w", err)
	}
	display, err := crypto.EncodeAddress(crypto.KeyPrefix, key.Address())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Keystore: %s\nSigner:   %s\nAddress:  %s\n", path, display, key.Address().Hex())
	return nil
}
