package backtest

import (
	"fmt"

	"github.com/rustyeddy/cryptosim/journal"
	"github.com/rustyeddy/cryptosim/market"
	"github.com/rustyeddy/cryptosim/risk"
	"go.uber.org/zap"
)

// Config describes one replay. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	RunID             string            `json:"run_id,omitempty" yaml:"run_id"`
	Instrument        market.Instrument `json:"instrument" yaml:"instrument"`
	InitialCash       float64           `json:"initial_cash" yaml:"initial_cash"`
	CommissionBps     float64           `json:"commission_bps" yaml:"commission_bps"`
	SlippageBps       float64           `json:"slippage_bps" yaml:"slippage_bps"`
	SignalLatencyBars int               `json:"signal_latency_bars" yaml:"signal_latency_bars"`
	Policy            risk.Policy       `json:"policy" yaml:"policy"`
	// PeriodsPerYear annualizes the ratios; 0 infers it from bar spacing.
	PeriodsPerYear float64 `json:"periods_per_year" yaml:"periods_per_year"`
	CloseAtEnd     bool    `json:"close_at_end" yaml:"close_at_end"`
	// Seed drives ID generation so identical inputs give identical output.
	Seed int64 `json:"seed" yaml:"seed"`

	Journal journal.Journal `json:"-" yaml:"-"`
	Logger  *zap.Logger     `json:"-" yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Instrument:        market.Instrument{Venue: "binance", Symbol: "BTCUSDT"},
		InitialCash:       10_000,
		CommissionBps:     10,
		SlippageBps:       5,
		SignalLatencyBars: 1,
		Policy:            risk.DefaultPolicy(),
		CloseAtEnd:        true,
		Seed:              1,
	}
}

func (c Config) validate() error {
	if c.InitialCash <= 0 {
		return fmt.Errorf("initial_cash %v must be positive", c.InitialCash)
	}
	if c.CommissionBps < 0 || c.SlippageBps < 0 {
		return fmt.Errorf("commission_bps and slippage_bps must be >= 0")
	}
	if c.SignalLatencyBars < 0 {
		return fmt.Errorf("signal_latency_bars %d must be >= 0", c.SignalLatencyBars)
	}
	if c.PeriodsPerYear < 0 {
		return fmt.Errorf("periods_per_year %v must be >= 0", c.PeriodsPerYear)
	}
	return nil
}
