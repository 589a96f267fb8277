package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"mailboxchain/crypto"
	"mailboxchain/native/token"
)

// Config holds the daemon settings loaded from the TOML file.
type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	GatewayAddress string `toml:"GatewayAddress"`
	DataDir        string `toml:"DataDir"`
	UnitDenom      string `toml:"UnitDenom"`
	// OwnerKey is the operator's account key in hex. Generated and written
	// back on first load when missing.
	OwnerKey string `toml:"OwnerKey"`
	// GenesisOwner, when set, overrides the OwnerKey-derived address as the
	// owner both modules are initialized with at first boot.
	GenesisOwner string `toml:"GenesisOwner"`
	// RPCToken gates mutating JSON-RPC methods when non-empty.
	RPCToken string  `toml:"RPCToken"`
	Env      string  `toml:"Env"`
	LogFile  string  `toml:"LogFile"`
	RateRPS  float64 `toml:"RateRPS"`
	Burst    int     `toml:"Burst"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists. A missing OwnerKey is generated and persisted so repeat
// boots keep the same operator account.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if strings.TrimSpace(cfg.OwnerKey) == "" {
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.OwnerKey = key.Hex()

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, os.ModePerm)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.GatewayAddress) == "" {
		cfg.GatewayAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./mailbox-data"
	}
	if strings.TrimSpace(cfg.UnitDenom) == "" {
		cfg.UnitDenom = token.DenomUNIT
	}
	if cfg.RateRPS <= 0 {
		cfg.RateRPS = 25
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 50
	}
}

// Validate rejects malformed values before the daemon wires them in.
func (cfg *Config) Validate() error {
	if _, err := token.Normalize(cfg.UnitDenom); err != nil {
		return fmt.Errorf("config: UnitDenom: %w", err)
	}
	if key := strings.TrimSpace(cfg.OwnerKey); key != "" {
		if _, err := crypto.PrivateKeyFromHex(key); err != nil {
			return fmt.Errorf("config: OwnerKey: %w", err)
		}
	}
	if owner := strings.TrimSpace(cfg.GenesisOwner); owner != "" {
		if _, err := crypto.ParseAddress(owner); err != nil {
			return fmt.Errorf("config: GenesisOwner: %w", err)
		}
	}
	return nil
}

// OwnerAddress resolves the owner used for first-boot initialization: the
// explicit GenesisOwner when set, otherwise the OwnerKey-derived account. A
// zero address means no owner is configured.
func (cfg *Config) OwnerAddress() (crypto.Address, error) {
	if owner := strings.TrimSpace(cfg.GenesisOwner); owner != "" {
		return crypto.ParseAddress(owner)
	}
	if key := strings.TrimSpace(cfg.OwnerKey); key != "" {
		parsed, err := crypto.PrivateKeyFromHex(key)
		if err != nil {
			return crypto.Address{}, err
		}
		return parsed.Address(), nil
	}
	return crypto.Address{}, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	cfg := &Config{OwnerKey: key.Hex()}
	applyDefaults(cfg)

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
