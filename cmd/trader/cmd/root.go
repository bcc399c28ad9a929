package cmd

import (
	"strings"

	"github.com/rustyeddy/cryptosim/config"
	"github.com/rustyeddy/cryptosim/journal"
	"github.com/rustyeddy/cryptosim/pkg/logger"
	"github.com/rustyeddy/cryptosim/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Simulated crypto trading and risk engine",
	Long: `Trader replays bars and model signals through a long-only spot
simulator with protective exits, a trading-mode guard and an equity
recorder.

It provides tools for:
  - Backtesting a signal file against historical bars
  - Running the live paper engine with persisted state
  - Switching the trading mode (live, close_only, locked)
  - Inspecting positions, equity and the SQLite journal`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (YAML or JSON)")
	pf.String("state-dir", "", "directory holding ledger.json, mode.json and equity.json")
	pf.String("db", "", "SQLite journal database")
	pf.String("log-level", "", "log level: debug|info|warn|error")

	for _, name := range []string{"config", "state-dir", "db", "log-level"} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
	viper.SetEnvPrefix("TRADER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the config file and lets flags and TRADER_* variables
// bound through viper override it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("state-dir"); v != "" {
		cfg.State.Dir = v
	}
	if v := viper.GetString("db"); v != "" {
		cfg.Journal.Type = "sqlite"
		cfg.Journal.DBPath = v
	}
	if v := viper.GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.Log.Level, cfg.Log.Service)
}

func openRepo(cfg *config.Config) *store.Repository {
	return store.NewRepository(cfg.State.Dir)
}

// openJournal opens the SQLite journal for queries regardless of the
// configured journal type.
func openJournal(cfg *config.Config) (*journal.SQLite, error) {
	path := cfg.Journal.DBPath
	if path == "" {
		path = config.Default().Journal.DBPath
	}
	return journal.NewSQLite(path)
}
