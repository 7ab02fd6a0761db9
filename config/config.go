package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"smartwallet/crypto"
)

const (
	DefaultDataDir        = "./wallet-data"
	DefaultChainID        = "SW_LOCAL"
	DefaultSecurityPeriod = "168h"
	DefaultKeystoreFile   = "signer.keystore"
	DefaultPassEnv        = "SW_KEYSTORE_PASS"
)

type Config struct {
	DataDir        string          `toml:"DataDir"`
	ChainID        string          `toml:"ChainID"`
	SecurityPeriod string          `toml:"SecurityPeriod"`
	Logging        LoggingConfig   `toml:"logging"`
	Telemetry      TelemetryConfig `toml:"telemetry"`
	Keystore       KeystoreConfig  `toml:"keystore"`
}

type LoggingConfig struct {
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

// KeystoreConfig locates the signer keystore. ScryptN and ScryptP set the
// cost keygen seals new keystores with.
type KeystoreConfig struct {
	Path    string `toml:"Path"`
	PassEnv string `toml:"PassEnv"`
	ScryptN int    `toml:"ScryptN"`
	ScryptP int    `toml:"ScryptP"`
}

// Params returns the scrypt parameters for new keystores.
func (k KeystoreConfig) Params() crypto.KeystoreParams {
	return crypto.KeystoreParams{ScryptN: k.ScryptN, ScryptP: k.ScryptP}
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		DataDir:        DefaultDataDir,
		ChainID:        DefaultChainID,
		SecurityPeriod: DefaultSecurityPeriod,
		Logging: LoggingConfig{
			Env:        "dev",
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Keystore: KeystoreConfig{
			PassEnv: DefaultPassEnv,
			ScryptN: crypto.StandardKeystore.ScryptN,
			ScryptP: crypto.StandardKeystore.ScryptP,
		},
	}
}

// Load loads the configuration from the given path. A missing file is
// created with defaults; unknown keys are rejected.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if strings.TrimSpace(cfg.Keystore.Path) == "" {
		cfg.Keystore.Path = defaultKeystorePath(path)
	}
	if strings.TrimSpace(cfg.Keystore.PassEnv) == "" {
		cfg.Keystore.PassEnv = DefaultPassEnv
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// SecurityPeriodDuration parses the configured escape delay.
func (c *Config) SecurityPeriodDuration() (time.Duration, error) {
	return time.ParseDuration(c.SecurityPeriod)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	cfg.Keystore.Path = defaultKeystorePath(path)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), DefaultKeystoreFile)
}
