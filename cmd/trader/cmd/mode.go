package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/cryptosim/config"
	"github.com/rustyeddy/cryptosim/guard"
	"github.com/spf13/cobra"
)

var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Show or change the persisted trading mode",
	Long: `Mode reads or writes mode.json in the state directory.

  live        entries and exits allowed
  close_only  exits only
  locked      nothing new is executed

A running engine picks the change up on its next start.

Examples:
  trader mode get
  trader mode set locked --reason "exchange maintenance"`,
}

var modeGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current mode and recent transitions",
	Args:  cobra.NoArgs,
	RunE:  runModeGet,
}

var modeSetCmd = &cobra.Command{
	Use:   "set <live|close_only|locked>",
	Short: "Change the trading mode",
	Args:  cobra.ExactArgs(1),
	RunE:  runModeSet,
}

var modeReason string

func init() {
	rootCmd.AddCommand(modeCmd)
	modeCmd.AddCommand(modeGetCmd)
	modeCmd.AddCommand(modeSetCmd)

	modeSetCmd.Flags().StringVarP(&modeReason, "reason", "r", "operator", "reason recorded with the transition")
}

// loadGuard rebuilds the guard from mode.json, falling back to the
// configured initial mode.
func loadGuard(cfg *config.Config) (*guard.Guard, error) {
	g, err := guard.New(cfg.Engine.InitialMode, nil)
	if err != nil {
		return nil, err
	}
	rec, ok, err := openRepo(cfg).Mode.Load()
	if err != nil {
		return nil, err
	}
	if ok {
		if err := g.Restore(rec); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func runModeGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	g, err := loadGuard(cfg)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "mode: %s\n", g.Mode())
	trs := g.Transitions()
	if len(trs) > 10 {
		trs = trs[len(trs)-10:]
	}
	for _, tr := range trs {
		fmt.Fprintf(out, "  %s  %s -> %s  %s\n", tr.At.Format(time.RFC3339), tr.From, tr.To, tr.Reason)
	}
	return nil
}

func runModeSet(cmd *cobra.Command, args []string) error {
	mode, err := guard.ParseMode(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	g, err := loadGuard(cfg)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var last guard.Transition
	g.OnChange = func(tr guard.Transition) { last = tr }
	changed, err := g.Set(mode, modeReason, now)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintf(cmd.OutOrStdout(), "mode already %s\n", mode)
		return nil
	}
	if err := openRepo(cfg).Mode.Save(g.Record(now)); err != nil {
		return err
	}

	if cfg.Journal.Type == "sqlite" {
		j, err := openJournal(cfg)
		if err != nil {
			return err
		}
		defer j.Close()
		if err := j.RecordModeChange(last); err != nil {
			return fmt.Errorf("journal mode change: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mode %s -> %s\n", last.From, last.To)
	return nil
}
