// Package config loads and saves the run configuration of the backtester.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/risk"
	"github.com/rustyeddy/backtester/sim"
	"github.com/rustyeddy/backtester/strategies"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvLogLevel       = "BACKTESTER_LOG_LEVEL"
)

// Journal types.
const (
	JournalNone   = "none"
	JournalCSV    = "csv"
	JournalSQLite = "sqlite"
)

// Config represents the complete run configuration
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Costs    sim.CostModel  `json:"costs" yaml:"costs"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Notify   NotifyConfig   `json:"notify" yaml:"notify"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
}

// RiskConfig contains sizing limits and the Sharpe risk-free rate
type RiskConfig struct {
	RiskPercent      float64 `json:"risk_percent" yaml:"risk_percent"`
	MaxPositionRatio float64 `json:"max_position_ratio" yaml:"max_position_ratio"`
	MinRR            float64 `json:"min_rr,omitempty" yaml:"min_rr,omitempty"`
	RiskFreeRate     float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
}

type StrategyConfig struct {
	ID     string            `json:"id" yaml:"id"`
	Params strategies.Params `json:"params,omitempty" yaml:"params,omitempty"`
}

// DataConfig points at the bars. Start and End accept any bar CSV time
// layout; zone-less values are KST.
type DataConfig struct {
	CSV       string `json:"csv,omitempty" yaml:"csv,omitempty"`
	Dir       string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Symbol    string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Timeframe string `json:"timeframe" yaml:"timeframe"`
	Start     string `json:"start,omitempty" yaml:"start,omitempty"`
	End       string `json:"end,omitempty" yaml:"end,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	Dir    string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// NotifyConfig enables the Telegram sink. The bot token is read from the
// environment only and is never saved.
type NotifyConfig struct {
	Telegram bool   `json:"telegram" yaml:"telegram"`
	ChatID   string `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
	Token    string `json:"-" yaml:"-"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	JSON  bool   `json:"json" yaml:"json"`
}

// Default returns a configuration that validates as is.
func Default() *Config {
	return &Config{
		Account: AccountConfig{InitialCapital: 10_000_000},
		Costs: sim.CostModel{
			CommissionRate: 0.00015,
			Slippage:       sim.Slippage{Model: sim.SlippagePercent, Value: 0.001},
		},
		Risk: RiskConfig{
			RiskPercent:      0.01,
			MaxPositionRatio: 1.0,
			RiskFreeRate:     0.02,
		},
		Strategy: StrategyConfig{ID: string(strategies.Breakout)},
		Data:     DataConfig{Timeframe: "1d"},
		Journal:  JournalConfig{Type: JournalNone},
		Log:      LogConfig{Level: "info"},
	}
}

// LoadFromFile reads a YAML or JSON file over the defaults and validates the
// result. Keys missing from the file keep their default value.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load is the CLI entry point: the optional .env files, then the config file
// (or the defaults when path is empty), then environment overrides.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := LoadEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads .env files into the process environment without overriding
// variables that are already set. Missing files are skipped.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if errors.Is(err, fs.ErrNotExist) {
			log.WithField("file", f).Debug("no env file")
			continue
		}
		if err != nil {
			return fmt.Errorf("load env %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv copies the recognised environment variables over the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvTelegramToken); v != "" {
		c.Notify.Token = v
	}
	if v := os.Getenv(EnvTelegramChatID); v != "" {
		c.Notify.ChatID = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialCapital <= 0 {
		return fmt.Errorf("account.initial_capital must be positive")
	}
	if err := c.Costs.Validate(); err != nil {
		return fmt.Errorf("costs: %w", err)
	}
	if err := c.policy().Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if c.Risk.RiskFreeRate < 0 || c.Risk.RiskFreeRate >= 1 {
		return fmt.Errorf("risk.risk_free_rate must be in [0, 1)")
	}
	if _, err := strategies.ParseID(c.Strategy.ID); err != nil {
		return fmt.Errorf("strategy.id: %w", err)
	}
	if _, err := c.Timeframe(); err != nil {
		return fmt.Errorf("data.timeframe: %w", err)
	}
	if _, _, err := c.Range(); err != nil {
		return err
	}

	switch c.Journal.Type {
	case "", JournalNone:
	case JournalCSV:
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal.dir required for csv type")
		}
	case JournalSQLite:
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for sqlite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

func (c *Config) policy() risk.Policy {
	return risk.Policy{
		RiskPct:          c.Risk.RiskPercent,
		MaxPositionRatio: c.Risk.MaxPositionRatio,
		MinRR:            c.Risk.MinRR,
	}
}

// Backtest returns the engine configuration.
func (c *Config) Backtest() backtest.Config {
	return backtest.Config{
		InitialCapital: c.Account.InitialCapital,
		Costs:          c.Costs,
		Risk:           c.policy(),
		RiskFreeRate:   c.Risk.RiskFreeRate,
	}
}

// NewStrategy builds the configured strategy variant.
func (c *Config) NewStrategy() (strategies.Strategy, error) {
	return strategies.ByName(c.Strategy.ID, c.Strategy.Params)
}

// Timeframe parses data.timeframe; empty means daily.
func (c *Config) Timeframe() (market.Timeframe, error) {
	if c.Data.Timeframe == "" {
		return market.Daily, nil
	}
	return market.ParseTimeframe(c.Data.Timeframe)
}

// Range parses data.start and data.end. An empty side is the zero time; a
// date-only end includes the whole day.
func (c *Config) Range() (start, end time.Time, err error) {
	if c.Data.Start != "" {
		if start, err = market.ParseTime(c.Data.Start); err != nil {
			return start, end, fmt.Errorf("data.start: %w", err)
		}
	}
	if c.Data.End != "" {
		if end, err = market.ParseRangeEnd(c.Data.End); err != nil {
			return start, end, fmt.Errorf("data.end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return start, end, fmt.Errorf("data.end must be after data.start")
	}
	return start, end, nil
}
