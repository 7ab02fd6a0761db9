package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesKeysAndMasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("walletctl", Options{Env: "test", Level: "debug", Output: &buf})

	logger.Debug("keystore opened", "passphrase", "hunter2", "account", "0xabc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "keystore opened", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Contains(t, line, "timestamp")
	require.Equal(t, "walletctl", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["passphrase"])
	require.Equal(t, "0xabc", line["account"])
}

func TestSetupWritesRotatedFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "wallet.log")
	logger := SetupWithOptions("walletctl", Options{Output: &buf, File: path, MaxSizeMB: 1})
	logger.Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"hello"`)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
	require.Equal(t, " ", MaskValue(" "))
	require.Equal(t, []string{"keystore_pass", "passphrase", "private_key", "session_token"}, SensitiveKeys())
}
