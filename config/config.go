package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	Environment    string `toml:"Environment"`

	// EpochGenesis is the unix timestamp of epoch zero; EpochLength is the
	// epoch duration in seconds.
	EpochGenesis int64 `toml:"EpochGenesis"`
	EpochLength  int64 `toml:"EpochLength"`

	MaxBidsPerEpoch uint32 `toml:"MaxBidsPerEpoch"`
	MaxMKTPerEpoch  uint64 `toml:"MaxMKTPerEpoch"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8745"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./market-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.EpochLength <= 0 {
		return nil, fmt.Errorf("config file %s: EpochLength must be positive", path)
	}
	if cfg.EpochGenesis < 0 {
		return nil, fmt.Errorf("config file %s: EpochGenesis must not be negative", path)
	}

	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     ":8745",
		MetricsAddress: ":9464",
		DataDir:        "./market-data",
		Environment:    "local",
		EpochGenesis:   0,
		EpochLength:    600,
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
