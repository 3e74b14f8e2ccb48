// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"carrier-tariff/core/quote"
	"carrier-tariff/internal/errors"
	"carrier-tariff/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Carriers lists the tariffs to load
	Carriers []CarrierConfig `json:"carriers"`

	// Snapshots contains snapshot store configuration
	Snapshots SnapshotConfig `json:"snapshots"`

	// Quote contains quote calculation settings
	Quote QuoteConfig `json:"quote"`

	// Server contains HTTP server settings
	Server ServerConfig `json:"server"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// CarrierConfig points at one carrier's tariff file
type CarrierConfig struct {
	// Name is the carrier key used by the API and CLI (ups, dhl)
	Name string `json:"name"`

	// TablePath is the HCL tariff file
	TablePath string `json:"table_path"`
}

// SnapshotConfig contains snapshot store settings
type SnapshotConfig struct {
	// Directory holds content-hashed tariff snapshots
	Directory string `json:"directory"`
}

// QuoteConfig contains surcharge and weight settings
type QuoteConfig struct {
	// WarRiskPercent is applied to every base rate
	WarRiskPercent string `json:"war_risk_percent"`

	// VolumetricDivisor converts cm³ to volumetric kg
	VolumetricDivisor int `json:"volumetric_divisor"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr                string `json:"addr"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Version: "1.0",
		Snapshots: SnapshotConfig{
			Directory: filepath.Join(homeDir, ".carrier-tariff", "snapshots"),
		},
		Quote: QuoteConfig{
			WarRiskPercent:    "5",
			VolumetricDivisor: 5000,
		},
		Server: ServerConfig{
			Addr:                ":8080",
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 10,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Config("read config "+path, err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Config("decode config "+path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that carrier entries are usable
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, carrier := range c.Carriers {
		name := strings.TrimSpace(carrier.Name)
		if name == "" {
			return errors.Newf(errors.TypeConfig, "carriers[%d]: name is required", i)
		}
		if seen[name] {
			return errors.Newf(errors.TypeConfig, "carriers[%d]: duplicate carrier %q", i, name)
		}
		seen[name] = true
		if carrier.TablePath == "" {
			return errors.Newf(errors.TypeConfig, "carrier %q: table_path is required", name)
		}
	}
	if _, err := c.Quote.Options(); err != nil {
		return err
	}
	return nil
}

// Options converts the quote settings for quote.NewCalculator
func (q QuoteConfig) Options() (quote.Options, error) {
	opts := quote.DefaultOptions()
	if q.WarRiskPercent != "" {
		pct, err := decimal.NewFromString(q.WarRiskPercent)
		if err != nil {
			return opts, errors.Config("quote.war_risk_percent is not a number", err)
		}
		if pct.IsNegative() {
			return opts, errors.Newf(errors.TypeConfig, "quote.war_risk_percent must not be negative, got %s", pct)
		}
		opts.WarRiskPercent = pct
	}
	if q.VolumetricDivisor <= 0 {
		return opts, errors.Newf(errors.TypeConfig, "quote.volumetric_divisor must be positive, got %d", q.VolumetricDivisor)
	}
	opts.VolumetricDivisor = q.VolumetricDivisor
	return opts, nil
}

// ApplyEnv overlays TARIFF_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TARIFF_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TARIFF_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TARIFF_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("TARIFF_SNAPSHOT_DIR"); v != "" {
		c.Snapshots.Directory = v
	}
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
