// Package config loads the dicepoker server configuration from an HCL file,
// then applies environment overrides on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"

	"github.com/lox/dicepoker/internal/game"
	"github.com/lox/dicepoker/internal/table"
)

// Config represents the complete server configuration.
type Config struct {
	Server  ServerSettings  `hcl:"server,block"`
	Oracle  OracleSettings  `hcl:"oracle,block"`
	Storage StorageSettings `hcl:"storage,block"`
	Tables  []TableConfig   `hcl:"table,block"`
}

// ServerSettings contains listener and logging configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// OracleSettings configures randomness requests and the development
// simulator that answers them.
type OracleSettings struct {
	FulfillTimeout string `hcl:"fulfill_timeout,optional"`
	Simulate       bool   `hcl:"simulate,optional"`
	SimulateDelay  string `hcl:"simulate_delay,optional"`
	SimulateSeed   int64  `hcl:"simulate_seed,optional"`
	// DropRate is the fraction of simulated fulfillments answered with no
	// numbers, which forces the fallback path.
	DropRate float64 `hcl:"drop_rate,optional"`
}

// StorageSettings points at the settlement ledger and snapshot cache. An
// empty RedisAddr disables the cache.
type StorageSettings struct {
	SQLitePath    string `hcl:"sqlite_path,optional"`
	RedisAddr     string `hcl:"redis_addr,optional"`
	RedisPassword string `hcl:"redis_password,optional"`
	RedisDB       int    `hcl:"redis_db,optional"`
}

// TableConfig defines a table that is created at startup.
type TableConfig struct {
	Name           string `hcl:"name,label"`
	TiePolicy      string `hcl:"tie_policy,optional"`
	FulfillTimeout string `hcl:"fulfill_timeout,optional"`
}

// Env holds the environment overrides. Unset variables leave the file value
// untouched.
type Env struct {
	Address        string `env:"DICEPOKER_ADDRESS"`
	Port           int    `env:"DICEPOKER_PORT"`
	LogLevel       string `env:"DICEPOKER_LOG_LEVEL"`
	SQLitePath     string `env:"DICEPOKER_SQLITE_PATH"`
	RedisAddr      string `env:"DICEPOKER_REDIS_ADDR"`
	RedisPassword  string `env:"DICEPOKER_REDIS_PASSWORD"`
	FulfillTimeout string `env:"DICEPOKER_FULFILL_TIMEOUT"`
	Simulate       *bool  `env:"DICEPOKER_SIMULATE"`
}

const (
	defaultAddress        = "localhost"
	defaultPort           = 8080
	defaultLogLevel       = "info"
	defaultSQLitePath     = "dicepoker.db"
	defaultFulfillTimeout = "30s"
	defaultSimulateDelay  = "500ms"
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		Tables: []TableConfig{{Name: "main"}},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads filename, falling back to Default when it does not exist.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadEnv reads a .env file when one exists, then returns the overrides
// found in the environment.
func LoadEnv(files ...string) (Env, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load(files...)

	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Apply copies the set overrides into c.
func (c *Config) Apply(e Env) {
	if e.Address != "" {
		c.Server.Address = e.Address
	}
	if e.Port != 0 {
		c.Server.Port = e.Port
	}
	if e.LogLevel != "" {
		c.Server.LogLevel = e.LogLevel
	}
	if e.SQLitePath != "" {
		c.Storage.SQLitePath = e.SQLitePath
	}
	if e.RedisAddr != "" {
		c.Storage.RedisAddr = e.RedisAddr
	}
	if e.RedisPassword != "" {
		c.Storage.RedisPassword = e.RedisPassword
	}
	if e.FulfillTimeout != "" {
		c.Oracle.FulfillTimeout = e.FulfillTimeout
	}
	if e.Simulate != nil {
		c.Oracle.Simulate = *e.Simulate
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaultLogLevel
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = defaultSQLitePath
	}
	if c.Oracle.FulfillTimeout == "" {
		c.Oracle.FulfillTimeout = defaultFulfillTimeout
	}
	if c.Oracle.SimulateDelay == "" {
		c.Oracle.SimulateDelay = defaultSimulateDelay
	}
	for i := range c.Tables {
		if c.Tables[i].TiePolicy == "" {
			c.Tables[i].TiePolicy = game.TieHalt.String()
		}
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Server.LogLevel)
	}

	if _, err := time.ParseDuration(c.Oracle.FulfillTimeout); err != nil {
		return fmt.Errorf("oracle: invalid fulfill_timeout: %w", err)
	}
	if d, err := time.ParseDuration(c.Oracle.SimulateDelay); err != nil || d < 0 {
		return fmt.Errorf("oracle: invalid simulate_delay %q", c.Oracle.SimulateDelay)
	}
	if c.Oracle.DropRate < 0 || c.Oracle.DropRate > 1 {
		return fmt.Errorf("oracle: drop_rate must be between 0 and 1")
	}

	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if t.Name == "" {
			return fmt.Errorf("table name must not be empty")
		}
		if seen[t.Name] {
			return fmt.Errorf("table %s: defined more than once", t.Name)
		}
		seen[t.Name] = true

		if _, err := game.ParseTiePolicy(t.TiePolicy); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		if t.FulfillTimeout != "" {
			if _, err := time.ParseDuration(t.FulfillTimeout); err != nil {
				return fmt.Errorf("table %s: invalid fulfill_timeout: %w", t.Name, err)
			}
		}
	}

	return nil
}

// ServerAddress returns the host:port the server listens on.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// FulfillTimeout returns the default oracle timeout. Call Validate first.
func (c *Config) FulfillTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Oracle.FulfillTimeout)
	return d
}

// SimulateDelay returns how long the simulator waits before answering.
func (c *Config) SimulateDelay() time.Duration {
	d, _ := time.ParseDuration(c.Oracle.SimulateDelay)
	return d
}

// TableConfigs converts the table blocks into table.Config values, inheriting
// the oracle timeout where a table does not set its own. Call Validate first.
func (c *Config) TableConfigs() []table.Config {
	out := make([]table.Config, 0, len(c.Tables))
	for _, t := range c.Tables {
		policy, _ := game.ParseTiePolicy(t.TiePolicy)
		timeout := c.FulfillTimeout()
		if t.FulfillTimeout != "" {
			timeout, _ = time.ParseDuration(t.FulfillTimeout)
		}
		out = append(out, table.Config{
			ID:             t.Name,
			TiePolicy:      policy,
			FulfillTimeout: timeout,
		})
	}
	return out
}
