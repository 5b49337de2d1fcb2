// Package config loads the server configuration from YAML and applies
// environment overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the trading server.
type Config struct {
	Server     Server     `yaml:"server"`
	Database   Database   `yaml:"database"`
	Auth       Auth       `yaml:"auth"`
	Trading    Trading    `yaml:"trading"`
	Settlement Settlement `yaml:"settlement"`
	Logging    Logging    `yaml:"logging"`
	NATS       NATS       `yaml:"nats"`
	Seed       Seed       `yaml:"seed"`
}

type Server struct {
	Port            int           `yaml:"port"`
	MetricsPort     int           `yaml:"metrics_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Database struct {
	Path string `yaml:"path"`
}

// Auth holds the JWT secret and the API key/secret pairs allowed to request tokens.
type Auth struct {
	JWTSecret string         `yaml:"jwt_secret"`
	TokenTTL  time.Duration  `yaml:"token_ttl"`
	Clients   []ClientConfig `yaml:"clients"`
}

type ClientConfig struct {
	APIKey      string   `yaml:"api_key"`
	APISecret   string   `yaml:"api_secret"`
	Permissions []string `yaml:"permissions"`
}

// Trading configures quotes, the pending LIMIT order processor and fees.
// Rates are strings so they are parsed exactly.
type Trading struct {
	QuoteTTL             time.Duration `yaml:"quote_ttl"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	PendingOrderInterval time.Duration `yaml:"pending_order_interval"`
	CommissionRate       string        `yaml:"commission_rate"`
	TaxRate              string        `yaml:"tax_rate"`
	// PriceDriftInterval moves reference prices randomly for demos. Zero disables it.
	PriceDriftInterval   time.Duration `yaml:"price_drift_interval"`
}

// Settlement configures the optional unattended day advance. Zero disables it.
type Settlement struct {
	AutoAdvanceInterval time.Duration `yaml:"auto_advance_interval"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// NATS configures lifecycle event publishing. An empty URL disables it.
type NATS struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type Seed struct {
	Stocks   []SeedStock   `yaml:"stocks"`
	Accounts []SeedAccount `yaml:"accounts"`
}

type SeedStock struct {
	StockID string `yaml:"stock_id"`
	Symbol  string `yaml:"symbol"`
	Name    string `yaml:"name"`
	Price   string `yaml:"price"`
}

type SeedAccount struct {
	AccountID string `yaml:"account_id"`
	ClientID  string `yaml:"client_id"`
	Currency  string `yaml:"currency"`
	Balance   string `yaml:"balance"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:            8080,
			MetricsPort:     9090,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			Path: "klear.db",
		},
		Auth: Auth{
			JWTSecret: "klear-secret-key",
			TokenTTL:  24 * time.Hour,
		},
		Trading: Trading{
			QuoteTTL:             120 * time.Second,
			SweepInterval:        30 * time.Second,
			PendingOrderInterval: 5 * time.Second,
			CommissionRate:       "0.002",
			TaxRate:              "0.05",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		NATS: NATS{
			SubjectPrefix: "orders",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_PORT %q: %w", v, err)
		}
		cfg.Server.MetricsPort = port
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("QUOTE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUOTE_TTL %q: %w", v, err)
		}
		cfg.Trading.QuoteTTL = ttl
	}
	if v := os.Getenv("SETTLEMENT_AUTO_ADVANCE"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SETTLEMENT_AUTO_ADVANCE %q: %w", v, err)
		}
		cfg.Settlement.AutoAdvanceInterval = interval
	}
	return nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port must be between 0 and 65535, got %d", c.Server.MetricsPort)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	for i, client := range c.Auth.Clients {
		if client.APIKey == "" || client.APISecret == "" {
			return fmt.Errorf("auth.clients[%d] needs api_key and api_secret", i)
		}
	}
	if c.Trading.QuoteTTL <= 0 {
		return fmt.Errorf("trading.quote_ttl must be positive")
	}
	if c.Trading.SweepInterval < 0 || c.Trading.PendingOrderInterval <= 0 {
		return fmt.Errorf("trading intervals must be positive")
	}
	if _, _, err := c.FeeRates(); err != nil {
		return err
	}
	if c.Trading.PriceDriftInterval < 0 {
		return fmt.Errorf("trading.price_drift_interval must not be negative")
	}
	if c.Settlement.AutoAdvanceInterval < 0 {
		return fmt.Errorf("settlement.auto_advance_interval must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	for _, s := range c.Seed.Stocks {
		if _, err := decimal.NewFromString(s.Price); err != nil {
			return fmt.Errorf("seed stock %s has invalid price %q", s.StockID, s.Price)
		}
	}
	for _, a := range c.Seed.Accounts {
		if _, err := decimal.NewFromString(a.Balance); err != nil {
			return fmt.Errorf("seed account %s has invalid balance %q", a.AccountID, a.Balance)
		}
	}
	return nil
}

func (c *Config) CommissionRate() (decimal.Decimal, error) {
	return parseRate("trading.commission_rate", c.Trading.CommissionRate)
}

func (c *Config) TaxRate() (decimal.Decimal, error) {
	return parseRate("trading.tax_rate", c.Trading.TaxRate)
}

// FeeRates returns the parsed commission and tax rates.
func (c *Config) FeeRates() (commission, tax decimal.Decimal, err error) {
	commission, err = c.CommissionRate()
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	tax, err = c.TaxRate()
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return commission, tax, nil
}

func parseRate(name, value string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", name, value)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", name)
	}
	return rate, nil
}

// Addr returns the API listen address.
func (s Server) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}
