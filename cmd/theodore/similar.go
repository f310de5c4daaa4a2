package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AntoineDubuc/theodore/internal/similarity"
)

var similarMax int

var similarCmd = &cobra.Command{
	Use:   "similar <company-name>",
	Short: "List companies similar to the given one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("similar"); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitConfig)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, true)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitDependency)
		}
		defer a.close()

		engine := similarity.New(similarity.Config{
			MaxResults:    cfg.Similar.MaxResults,
			SurfaceScrape: cfg.Similar.SurfaceScrape,
		}, a.store, a.pool, a.extractor)

		hits, err := engine.FindSimilar(ctx, args[0], similarMax)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitDependency)
		}

		printJSON(hits)
		return nil
	},
}

func init() {
	similarCmd.Flags().IntVar(&similarMax, "max", 0, "maximum number of results (default from config)")
	rootCmd.AddCommand(similarCmd)
}
