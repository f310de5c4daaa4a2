package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/config"
)

// Exit codes: 0 success, 1 failure threshold exceeded, 2 configuration
// error, 3 external dependency unavailable.
const (
	exitOK = iota
	exitFailureThreshold
	exitConfig
	exitDependency
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "theodore",
	Short: "Company intelligence extraction",
	Long:  "Crawls company websites, selects and extracts relevant pages, aggregates structured company records via LLM providers, and answers similarity queries over a vector store.",
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
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitConfig)
	}
}
