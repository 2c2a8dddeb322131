package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// AdminTokenEnv is consulted when the config file carries no admin token.
const AdminTokenEnv = "TOT_RPC_ADMIN_TOKEN"

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`

	// Role addresses, 0x-prefixed hex. Used once at genesis; afterwards the
	// stored state is authoritative.
	AuthorityAddress string `toml:"AuthorityAddress"`
	TreasuryAddress  string `toml:"TreasuryAddress"`
	CollectorAddress string `toml:"CollectorAddress"`

	// PoolAccounts maps pool kind names (victory_fund, history_lp,
	// cyber_army, global_alliance, asset_anchor) to their balance accounts.
	// All five must be present to bootstrap genesis from the config file.
	PoolAccounts map[string]string `toml:"PoolAccounts"`

	// AdminToken gates the administrative RPC surface. Leave empty to read
	// it from the TOT_RPC_ADMIN_TOKEN environment variable instead.
	AdminToken string `toml:"AdminToken"`

	// RateLimitPerMinute bounds RPC requests per client IP. Zero disables
	// limiting.
	RateLimitPerMinute int `toml:"RateLimitPerMinute"`

	LogFile       string `toml:"LogFile"`
	LogMaxSizeMB  int    `toml:"LogMaxSizeMB"`
	LogMaxBackups int    `toml:"LogMaxBackups"`
	LogMaxAgeDays int    `toml:"LogMaxAgeDays"`
}

// Load loads the configuration from the given path, writing a default file
// on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "tot-local"
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./tot-data"
	}
	return cfg, nil
}

// ResolveAdminToken returns the configured token, falling back to the
// environment.
func (c *Config) ResolveAdminToken() string {
	if token := strings.TrimSpace(c.AdminToken); token != "" {
		return token
	}
	return strings.TrimSpace(os.Getenv(AdminTokenEnv))
}

// ParseAddress decodes a 0x-prefixed 20-byte hex address.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("config: invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("config: address %q must be 20 bytes", s)
	}
	copy(addr[:], raw)
	return addr, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:         ":8080",
		DataDir:            "./tot-data",
		NetworkName:        "tot-local",
		RateLimitPerMinute: 600,
		LogMaxSizeMB:       100,
		LogMaxBackups:      5,
		LogMaxAgeDays:      30,
	}
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
