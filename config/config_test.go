package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mailboxchain/crypto"
	"mailboxchain/native/token"
)

func addressString(b [20]byte) string {
	return crypto.MustAddressFromBytes(b[:]).String()
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.RPCAddress)
	require.Equal(t, ":8080", cfg.GatewayAddress)
	require.Equal(t, token.DenomUNIT, cfg.UnitDenom)
	require.NotEmpty(t, cfg.OwnerKey)
	require.FileExists(t, path)

	owner, err := cfg.OwnerAddress()
	require.NoError(t, err)
	require.False(t, owner.IsZero())

	// A second load reads the created file back, keeping the operator key.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.OwnerKey, reloaded.OwnerKey)
}

func TestLoadGeneratesMissingOwnerKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("RPCAddress = \":9999\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.RPCAddress)
	require.Equal(t, ":8080", cfg.GatewayAddress)
	require.Equal(t, token.DenomUNIT, cfg.UnitDenom)
	require.Greater(t, cfg.RateRPS, 0.0)
	require.NotEmpty(t, cfg.OwnerKey)

	// The generated key was written back to the file.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.OwnerKey, reloaded.OwnerKey)
}

func TestGenesisOwnerOverridesOwnerKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)

	derived, err := cfg.OwnerAddress()
	require.NoError(t, err)

	var explicit [20]byte
	explicit[19] = 9
	cfg.GenesisOwner = addressString(explicit)
	owner, err := cfg.OwnerAddress()
	require.NoError(t, err)
	require.NotEqual(t, derived, owner)
	require.Equal(t, explicit, owner.Raw())
}

func TestLoadRejectsUnknownDenom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("UnitDenom = \"DOGE\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMalformedGenesisOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("GenesisOwner = \"nonsense\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMalformedOwnerKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("OwnerKey = \"zz\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
