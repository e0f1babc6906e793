package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spendsense/finance-api/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "finance-api",
	Short: "Resilience layer for the spending tracker's external services",
	Long:  "Serves AI spending summaries with model failover, tiered receipt extraction, and a cached gold/silver/currency rate feed.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
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
