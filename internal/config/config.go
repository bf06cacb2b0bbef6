// Package config loads CertNode configuration from TOML with sane defaults.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Component version tags. These feed the genesis hash, so changing any of
// them invalidates previously anchored certificates for this deployment.
const (
	Version       = "v1.0.0"
	CDPVersion    = "v1.0.3"
	FrameVersion  = "v3.0.1"
	StrideVersion = "v1.3.0"
	SystemName    = "CertNode"
)

type Config struct {
	Server        ServerConfig        `toml:"server"`
	Vault         VaultConfig         `toml:"vault"`
	Auth          AuthConfig          `toml:"auth"`
	Certification CertificationConfig `toml:"certification"`
	Frame         FrameConfig         `toml:"frame"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type VaultConfig struct {
	Path string `toml:"path"`
}

type AuthConfig struct {
	JWTSecret            string `toml:"jwt_secret"`
	TokenExpiryMin       int    `toml:"token_expiry_min"`
	OperatorPasswordHash string `toml:"operator_password_hash"`
}

type CertificationConfig struct {
	Threshold         float64 `toml:"threshold"`
	MinParagraphWords int     `toml:"min_paragraph_words"`
	MinContentLength  int     `toml:"min_content_length"`
	Operator          string  `toml:"operator"`
	BaseURL           string  `toml:"base_url"`
}

// FrameConfig carries optional per-boundary calibration overrides, keyed by
// boundary type (e.g. "logic_weight"). Nil fields leave the default in place.
type FrameConfig struct {
	Boundaries map[string]BoundaryOverride `toml:"boundaries"`
}

type BoundaryOverride struct {
	Min    *float64 `toml:"min"`
	Max    *float64 `toml:"max"`
	Target *float64 `toml:"target"`
	Weight *float64 `toml:"weight"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Vault: VaultConfig{
			Path: "data/vault.db",
		},
		Auth: AuthConfig{
			JWTSecret:      "change-me-in-production",
			TokenExpiryMin: 1440, // 24h
		},
		Certification: CertificationConfig{
			Threshold:         0.7,
			MinParagraphWords: 50,
			MinContentLength:  100,
			Operator:          "CertNode",
			BaseURL:           "https://certnode.io",
		},
	}
}

// Load reads the config file at path, layered over DefaultConfig.
// A missing file (or empty path) yields the defaults without error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
