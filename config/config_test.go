package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.RPCAddress)
	require.Equal(t, "./tot-data", cfg.DataDir)
	require.Equal(t, "tot-local", cfg.NetworkName)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file must be written")

	// second load reads the written file
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, again.RPCAddress)
}

func TestLoadExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
RPCAddress = ":9090"
DataDir = "/var/lib/tot"
AuthorityAddress = "0x0102030405060708090a0b0c0d0e0f1011121314"

[PoolAccounts]
victory_fund = "0x00000000000000000000000000000000000000f0"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.RPCAddress)
	require.Equal(t, "/var/lib/tot", cfg.DataDir)
	require.Equal(t, "tot-local", cfg.NetworkName, "missing fields fall back to defaults")
	require.Equal(t, "0x00000000000000000000000000000000000000f0", cfg.PoolAccounts["victory_fund"])
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	require.Equal(t, byte(0x01), addr[0])
	require.Equal(t, byte(0x14), addr[19])

	// prefix optional
	same, err := ParseAddress("0102030405060708090a0b0c0d0e0f1011121314")
	require.NoError(t, err)
	require.Equal(t, addr, same)

	_, err = ParseAddress("0xdeadbeef")
	require.Error(t, err)
	_, err = ParseAddress("not-hex")
	require.Error(t, err)
}

func TestResolveAdminToken(t *testing.T) {
	cfg := &Config{AdminToken: "  file-token  "}
	require.Equal(t, "file-token", cfg.ResolveAdminToken())

	cfg.AdminToken = ""
	t.Setenv(AdminTokenEnv, "env-token")
	require.Equal(t, "env-token", cfg.ResolveAdminToken())
}
