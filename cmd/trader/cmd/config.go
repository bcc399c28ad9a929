package cmd

import (
	"fmt"

	"github.com/rustyeddy/cryptosim/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  trader config init -o trader.yaml
  trader config validate -f trader.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "trader.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  trader live --config %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	p, _ := cfg.RiskPolicy()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Account:     %.2f %s\n", cfg.Account.InitialCash, cfg.Account.Currency)
	fmt.Fprintf(out, "  Instruments: %v\n", cfg.Instruments)
	fmt.Fprintf(out, "  Costs:       commission %.1f bps, slippage %.1f bps, latency %d bars\n",
		cfg.Engine.CommissionBps, cfg.Engine.SlippageBps, cfg.Engine.SignalLatencyBars)
	fmt.Fprintf(out, "  Risk:        stop %.1f%%, take %.1f%%, exposure cap %.0f%%, cooldown %s\n",
		p.StopLossPct*100, p.TakeProfitPct*100, p.MaxExposurePct*100, p.Cooldown)
	fmt.Fprintf(out, "  Journal:     %s\n", cfg.Journal.Type)
	return nil
}
