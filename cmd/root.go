package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "offmarket",
	Short: "Off-market company enrichment and report generation",
	Long: `Enriches off-market companies from the configured vendor order and
drafts Enhanced and Business Intelligence reports from the merged data.
Runs as an HTTP API (serve) or as one-off commands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
