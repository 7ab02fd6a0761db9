package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartwallet/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, DefaultChainID, cfg.ChainID)
	require.Equal(t, filepath.Join(dir, "nested", DefaultKeystoreFile), cfg.Keystore.Path)
	require.Equal(t, crypto.StandardKeystore, cfg.Keystore.Params())

	period, err := cfg.SecurityPeriodDuration()
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, period)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(written), `ChainID = "SW_LOCAL"`)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `DataDir = "/var/lib/wallet"
ChainID = "SW_TEST"
SecurityPeriod = "36h"

[logging]
Env = "prod"
Level = "debug"
File = "/var/log/wallet.log"
MaxSizeMB = 10

[telemetry]
Endpoint = "collector:4318"
Insecure = true
Headers = "x-api-key=abc"
Traces = true

[keystore]
Path = "/etc/wallet/signer.keystore"
ScryptN = 4096
ScryptP = 6
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/wallet", cfg.DataDir)
	require.Equal(t, "SW_TEST", cfg.ChainID)
	require.Equal(t, "prod", cfg.Logging.Env)
	require.Equal(t, "/var/log/wallet.log", cfg.Logging.File)
	require.Equal(t, 10, cfg.Logging.MaxSizeMB)
	require.Equal(t, 5, cfg.Logging.MaxBackups)
	require.True(t, cfg.Telemetry.Traces)
	require.False(t, cfg.Telemetry.Metrics)
	require.Equal(t, "x-api-key=abc", cfg.Telemetry.Headers)
	require.Equal(t, "/etc/wallet/signer.keystore", cfg.Keystore.Path)
	require.Equal(t, DefaultPassEnv, cfg.Keystore.PassEnv)
	require.Equal(t, crypto.LightKeystore, cfg.Keystore.Params())

	period, err := cfg.SecurityPeriodDuration()
	require.NoError(t, err)
	require.Equal(t, 36*time.Hour, period)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ChainID = \"SW\"\nValidatorKey = \"00\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "ValidatorKey"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		err    error
	}{
		{"defaults", func(*Config) {}, nil},
		{"empty chain id", func(c *Config) { c.ChainID = "  " }, ErrChainIDRequired},
		{"long chain id", func(c *Config) { c.ChainID = strings.Repeat("x", 33) }, ErrChainIDTooLong},
		{"zero period", func(c *Config) { c.SecurityPeriod = "0s" }, ErrInvalidSecurityPeriod},
		{"negative period", func(c *Config) { c.SecurityPeriod = "-1h" }, ErrInvalidSecurityPeriod},
		{"garbage period", func(c *Config) { c.SecurityPeriod = "week" }, ErrInvalidSecurityPeriod},
		{"negative rotation", func(c *Config) { c.Logging.MaxBackups = -1 }, ErrInvalidLogRotation},
		{"light keystore", func(c *Config) { c.Keystore.ScryptN, c.Keystore.ScryptP = 1<<12, 6 }, nil},
		{"scrypt n not a power of two", func(c *Config) { c.Keystore.ScryptN = 1000 }, crypto.ErrInvalidKeystore},
		{"zero scrypt p", func(c *Config) { c.Keystore.ScryptP = 0 }, crypto.ErrInvalidKeystore},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ChainID = \"\"\n"), 0o600))
	_, err := Load(path)
	require.ErrorIs(t, err, ErrChainIDRequired)
}
