// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package config loads inscription tooling configuration from YAML with
// optional environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/BoostyLabs/ordinals/bitcoin"
)

// Duration wraps time.Duration accepting human-readable YAML values like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the wrapped standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ChainAPIConfig defines chain explorer endpoint configuration.
type ChainAPIConfig struct {
	BaseURL string   `yaml:"baseUrl"`
	Timeout Duration `yaml:"timeout"`
}

// TrackerConfig defines tracker configuration.
type TrackerConfig struct {
	ErrorLogSize  int    `yaml:"errorLogSize"`
	ListenAddress string `yaml:"listenAddress"` // status API listen address, disabled when empty.
}

// Config defines the full tooling configuration.
type Config struct {
	Network       bitcoin.Network `yaml:"network"`
	ChainAPI      ChainAPIConfig  `yaml:"chainApi"`
	FeeRate       float64         `yaml:"feeRate"` // sat/vB.
	ChangeAddress string          `yaml:"changeAddress"`
	Tracker       TrackerConfig   `yaml:"tracker"`
}

// defaults returns the configuration used when a field is not set anywhere.
func defaults() Config {
	return Config{
		Network: bitcoin.NetworkMainnet,
		ChainAPI: ChainAPIConfig{
			BaseURL: "https://mempool.space/api",
			Timeout: Duration(30 * time.Second),
		},
		FeeRate: 1,
	}
}

// Load reads configuration in precedence order: defaults, then the YAML file
// at path (skipped when empty), then ORDTX_* environment variables. A .env
// file in the working directory is loaded into the environment first when
// present.
func Load(path string) (*Config, error) {
	// missing .env is not an error, it only supplies optional overrides.
	_ = godotenv.Load()

	config := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err = yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyEnv overrides config fields from ORDTX_* environment variables.
func applyEnv(config *Config) error {
	if value := os.Getenv("ORDTX_NETWORK"); value != "" {
		config.Network = bitcoin.Network(value)
	}
	if value := os.Getenv("ORDTX_CHAIN_API_URL"); value != "" {
		config.ChainAPI.BaseURL = value
	}
	if value := os.Getenv("ORDTX_CHAIN_API_TIMEOUT"); value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("parse ORDTX_CHAIN_API_TIMEOUT: %w", err)
		}
		config.ChainAPI.Timeout = Duration(timeout)
	}
	if value := os.Getenv("ORDTX_FEE_RATE"); value != "" {
		feeRate, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("parse ORDTX_FEE_RATE: %w", err)
		}
		config.FeeRate = feeRate
	}
	if value := os.Getenv("ORDTX_CHANGE_ADDRESS"); value != "" {
		config.ChangeAddress = value
	}

	return nil
}

// validate rejects configurations the builders would refuse anyway, so the
// failure surfaces at startup instead of mid-build.
func validate(config *Config) error {
	switch config.Network {
	case bitcoin.NetworkMainnet, bitcoin.NetworkTestnet, bitcoin.NetworkSignet, bitcoin.NetworkRegtest:
	default:
		return fmt.Errorf("unknown network %q", config.Network)
	}
	if config.FeeRate <= 0 {
		return fmt.Errorf("fee rate must be positive, got %v", config.FeeRate)
	}

	return nil
}
