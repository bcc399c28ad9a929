package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/risk"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TRADER_STATE_DIR.
const EnvPrefix = "TRADER_"

// Config represents the complete engine configuration
type Config struct {
	Account     AccountConfig `json:"account" yaml:"account"`
	Engine      EngineConfig  `json:"engine" yaml:"engine"`
	Instruments []string      `json:"instruments" yaml:"instruments"`
	Risk        risk.Policy   `json:"risk" yaml:"risk"`
	State       StateConfig   `json:"state" yaml:"state"`
	Journal     JournalConfig `json:"journal" yaml:"journal"`
	Log         LogConfig     `json:"log" yaml:"log"`
}

// AccountConfig is the starting balance of a fresh ledger.
type AccountConfig struct {
	Currency    string  `json:"currency" yaml:"currency"`
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
}

// EngineConfig contains execution cost and scheduling parameters
type EngineConfig struct {
	CommissionBps     float64    `json:"commission_bps" yaml:"commission_bps"`
	SlippageBps       float64    `json:"slippage_bps" yaml:"slippage_bps"`
	SignalLatencyBars int        `json:"signal_latency_bars" yaml:"signal_latency_bars"`
	QueueSize         int        `json:"queue_size" yaml:"queue_size"` // per instrument
	InitialMode       guard.Mode `json:"initial_mode" yaml:"initial_mode"`
}

// StateConfig locates the JSON state files and bounds the equity history.
type StateConfig struct {
	Dir             string        `json:"dir" yaml:"dir"`
	EquityMaxPoints int           `json:"equity_max_points" yaml:"equity_max_points"`
	EquityMaxAge    time.Duration `json:"equity_max_age" yaml:"equity_max_age"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	FillsFile  string `json:"fills_file,omitempty" yaml:"fills_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

type LogConfig struct {
	Level   string `json:"level" yaml:"level"` // debug, info, warn, error
	Service string `json:"service" yaml:"service"`
}

// Load reads .env if present, then path (or the defaults when path is
// empty), then TRADER_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = parseFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
func LoadFromFile(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// parseFile decodes path over the defaults so omitted keys keep them.
func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if isJSON(path) {
		err = sonic.ConfigStd.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if isJSON(path) {
		data, err = sonic.ConfigStd.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialCash <= 0 {
		return fmt.Errorf("account.initial_cash must be positive")
	}
	if c.Engine.CommissionBps < 0 || c.Engine.SlippageBps < 0 {
		return fmt.Errorf("engine commission_bps and slippage_bps must be >= 0")
	}
	if c.Engine.SignalLatencyBars < 0 {
		return fmt.Errorf("engine.signal_latency_bars must be >= 0")
	}
	if c.Engine.QueueSize <= 0 {
		return fmt.Errorf("engine.queue_size must be positive")
	}
	if !c.Engine.InitialMode.Valid() {
		return fmt.Errorf("engine.initial_mode %q must be live, close_only or locked", c.Engine.InitialMode)
	}
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	if _, err := c.ParseInstruments(); err != nil {
		return err
	}
	if _, err := c.RiskPolicy(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if c.State.Dir == "" {
		return fmt.Errorf("state.dir is required")
	}
	if c.State.EquityMaxPoints < 0 || c.State.EquityMaxAge < 0 {
		return fmt.Errorf("state equity bounds must be >= 0")
	}
	switch c.Journal.Type {
	case "none":
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	case "csv":
		if c.Journal.FillsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal fills_file and equity_file required for CSV type")
		}
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}
	return nil
}

// ParseInstruments returns the configured instruments, rejecting repeats.
func (c *Config) ParseInstruments() ([]market.Instrument, error) {
	seen := make(map[market.Instrument]bool, len(c.Instruments))
	out := make([]market.Instrument, 0, len(c.Instruments))
	for _, s := range c.Instruments {
		inst, err := market.ParseInstrument(s)
		if err != nil {
			return nil, err
		}
		if seen[inst] {
			return nil, fmt.Errorf("instrument %s listed twice", inst)
		}
		seen[inst] = true
		out = append(out, inst)
	}
	return out, nil
}

// RiskPolicy converts the risk section into a validated policy.
func (c *Config) RiskPolicy() (risk.Policy, error) {
	return risk.NewPolicy(c.Risk)
}

// applyEnv overlays TRADER_* variables. lookup is os.LookupEnv outside tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) error {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = f
		}
		return nil
	}

	str("STATE_DIR", &c.State.Dir)
	str("DB_PATH", &c.Journal.DBPath)
	str("JOURNAL", &c.Journal.Type)
	str("LOG_LEVEL", &c.Log.Level)

	var mode string
	str("MODE", &mode)
	if mode != "" {
		m, err := guard.ParseMode(mode)
		if err != nil {
			return fmt.Errorf("invalid %sMODE: %w", EnvPrefix, err)
		}
		c.Engine.InitialMode = m
	}

	if v, ok := lookup(EnvPrefix + "INSTRUMENTS"); ok && v != "" {
		c.Instruments = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Instruments = append(c.Instruments, s)
			}
		}
	}

	if err := float("INITIAL_CASH", &c.Account.InitialCash); err != nil {
		return err
	}
	if err := float("COMMISSION_BPS", &c.Engine.CommissionBps); err != nil {
		return err
	}
	return float("SLIPPAGE_BPS", &c.Engine.SlippageBps)
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Currency:    "USDT",
			InitialCash: 10000,
		},
		Engine: EngineConfig{
			CommissionBps:     10,
			SlippageBps:       5,
			SignalLatencyBars: 1,
			QueueSize:         64,
			InitialMode:       guard.Live,
		},
		Instruments: []string{"binance:BTCUSDT"},
		Risk:        risk.DefaultPolicy(),
		State: StateConfig{
			Dir:             "./state",
			EquityMaxPoints: 50_000,
			EquityMaxAge:    30 * 24 * time.Hour,
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./state/journal.db",
		},
		Log: LogConfig{
			Level:   "info",
			Service: "cryptosim",
		},
	}
}
