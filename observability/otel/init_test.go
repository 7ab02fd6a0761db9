package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" x-api-key = abc ,broken,=nokey, tenant=wallet,")
	require.Equal(t, map[string]string{"x-api-key": "abc", "tenant": "wallet"}, got)
	require.Empty(t, ParseHeaders(""))
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.ErrorIs(t, err, ErrServiceNameRequired)
}

func TestInitWithoutExporters(t *testing.T) {
	cfg := Config{ServiceName: "walletctl", Environment: "test", ChainID: "SW_TEST"}
	require.False(t, cfg.Enabled())

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
