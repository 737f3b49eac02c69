// Package config loads the gateway's configuration snapshot (spec.md
// §6 "Configuration (enumerated options)"). Grounded on the teacher's
// config packages (reset/internal/config, sdmconfig/internal/config,
// minter/internal/config): Load(path) (*Config, error), Validate()
// error, yaml.v3 with KnownFields(true), defaults applied before
// validation. Process bootstrap — deciding where the YAML file lives —
// remains an external concern (spec.md §1); this package only supplies
// Load/Validate plus the defaults spec.md §6 names.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full configuration snapshot, captured once at startup
// and passed explicitly to components (spec.md §5 "Global
// configuration state").
type Config struct {
	POS      POSConfig      `yaml:"pos"`
	Bank     BankConfig     `yaml:"bank"`
	Security SecurityConfig `yaml:"security"`
	Terminal TerminalConfig `yaml:"terminal"`
}

type POSConfig struct {
	Port uint16 `yaml:"port"`
}

type BankConfig struct {
	Host           string        `yaml:"host"`
	Port           uint16        `yaml:"port"`
	TimeoutMs      uint32        `yaml:"timeout_ms"`
	MaxConnections uint16        `yaml:"max_connections"`
	Retry          RetryConfig   `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts       uint16  `yaml:"max_attempts"`
	DelayMs           uint32  `yaml:"delay_ms"`
	BackoffMultiplier float32 `yaml:"backoff_multiplier"`
}

type SecurityConfig struct {
	GatewayZonalKey     string     `yaml:"gateway_zonal_key"`
	DefaultTerminalKey  string     `yaml:"default_terminal_key"`
	Pin                 PinConfig  `yaml:"pin"`
	Card                CardConfig `yaml:"card"`
}

type PinConfig struct {
	EnableTransposition bool `yaml:"enable_transposition"`
}

type CardConfig struct {
	EnableValidation bool `yaml:"enable_validation"`
	RejectInvalid    bool `yaml:"reject_invalid"`
}

type TerminalConfig struct {
	AutoCreate      bool   `yaml:"auto_create"`
	EnableKeyChange bool   `yaml:"enable_key_change"`
	KeyLength       int    `yaml:"key_length"`
	KeyExpiryDays   uint32 `yaml:"key_expiry_days"`
}

// Default returns the configuration with every spec.md §6 default
// applied. Load decodes the file over it, so fields the file omits keep
// these values; Load fails when the file cannot be read.
func Default() *Config {
	return &Config{
		POS: POSConfig{Port: 8000},
		Bank: BankConfig{
			Host:           "192.168.1.100",
			Port:           8001,
			TimeoutMs:      30000,
			MaxConnections: 5,
			Retry: RetryConfig{
				MaxAttempts:       3,
				DelayMs:           5000,
				BackoffMultiplier: 2.0,
			},
		},
		Security: SecurityConfig{
			GatewayZonalKey:    "0123456789ABCDEFFEDCBA9876543210",
			DefaultTerminalKey: "FEDCBA98765432100123456789ABCDEF",
			Pin:                PinConfig{EnableTransposition: true},
			Card:               CardConfig{EnableValidation: true, RejectInvalid: true},
		},
		Terminal: TerminalConfig{
			AutoCreate:      true,
			EnableKeyChange: true,
			KeyLength:       2,
			KeyExpiryDays:   365,
		},
	}
}

// Load reads and parses a YAML config file at path, applying spec.md
// §6 defaults for any field the file omits, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants spec.md §6 implies (valid key
// lengths, non-zero ports).
func (c *Config) Validate() error {
	if c.POS.Port == 0 {
		return fmt.Errorf("config: pos.port must be non-zero")
	}
	if c.Bank.Port == 0 {
		return fmt.Errorf("config: bank.port must be non-zero")
	}
	if c.Bank.Host == "" {
		return fmt.Errorf("config: bank.host is required")
	}
	if c.Terminal.KeyLength != 2 && c.Terminal.KeyLength != 3 {
		return fmt.Errorf("config: terminal.key_length must be 2 or 3, got %d", c.Terminal.KeyLength)
	}
	if len(c.Security.GatewayZonalKey) != 32 && len(c.Security.GatewayZonalKey) != 48 {
		return fmt.Errorf("config: security.gateway_zonal_key must be 32 or 48 hex chars")
	}
	if len(c.Security.DefaultTerminalKey) != 32 && len(c.Security.DefaultTerminalKey) != 48 {
		return fmt.Errorf("config: security.default_terminal_key must be 32 or 48 hex chars")
	}
	return nil
}
