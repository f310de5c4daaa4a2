package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/sheet"
)

var (
	batchOutput    string
	batchSheetName string
	batchNoStore   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <input.xlsx>",
	Short: "Research every company listed in a spreadsheet",
	Long:  "Reads {name, website} rows from an xlsx file, analyzes them with bounded concurrency, and writes one result row per company to the output workbook.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("batch"); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitConfig)
		}

		rows, err := sheet.ReadCompanies(args[0], sheet.ReadOptions{SheetName: batchSheetName})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitConfig)
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "no company rows found")
			os.Exit(exitConfig)
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, !batchNoStore)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitDependency)
		}
		defer a.close()

		b := sheet.NewBatch(sheet.BatchConfig{
			MaxConcurrent:    cfg.Batch.MaxConcurrent,
			FailureThreshold: cfg.Batch.FailureThreshold,
		}, a.orchestrator)

		results, summary := b.Run(ctx, rows)

		if a.store != nil {
			for _, r := range results {
				if r.Result.Record != nil {
					saveRecord(ctx, a.store, r.Result.Record)
				}
			}
		}

		if err := sheet.WriteResults(batchOutput, results); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitDependency)
		}
		zap.L().Info("results written", zap.String("path", batchOutput))

		printJSON(summary)
		if summary.ThresholdExceeded {
			os.Exit(exitFailureThreshold)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "results.xlsx", "output workbook path")
	batchCmd.Flags().StringVar(&batchSheetName, "sheet", "", "input sheet name (default first sheet)")
	batchCmd.Flags().BoolVar(&batchNoStore, "no-store", false, "skip persisting records to the vector store")
	rootCmd.AddCommand(batchCmd)
}
