package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AntoineDubuc/theodore/internal/model"
	"github.com/AntoineDubuc/theodore/internal/vectorstore"
)

var researchNoStore bool

var researchCmd = &cobra.Command{
	Use:   "research <company-name> [website]",
	Short: "Research a single company and print the structured record",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("research"); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitConfig)
		}

		name := args[0]
		website := ""
		if len(args) == 2 {
			website = args[1]
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, !researchNoStore)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitDependency)
		}
		defer a.close()

		res := a.orchestrator.Analyze(ctx, name, website)
		if res.Record != nil && a.store != nil {
			saveRecord(ctx, a.store, res.Record)
		}

		printJSON(res)
		if res.Failed() {
			os.Exit(exitFailureThreshold)
		}
		return nil
	},
}

// saveRecord persists a finished record to the vector store. Records without
// an embedding cannot be indexed and are skipped with a warning.
func saveRecord(ctx context.Context, store vectorstore.Store, record *model.CompanyRecord) {
	if len(record.Embedding) == 0 {
		zap.L().Warn("record has no embedding, not stored", zap.String("company", record.Name))
		return
	}
	err := store.Upsert(ctx, vectorstore.Entry{
		ID:          record.ID,
		Name:        record.Name,
		Website:     record.Website,
		Description: record.Text(model.FieldDescription),
		Vector:      record.Embedding,
	})
	if err != nil {
		zap.L().Warn("vector store upsert failed", zap.Error(err))
		return
	}
	zap.L().Info("record stored", zap.String("company", record.Name), zap.String("id", record.ID))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		zap.L().Error("encode output", zap.Error(err))
	}
}

func init() {
	researchCmd.Flags().BoolVar(&researchNoStore, "no-store", false, "skip persisting the record to the vector store")
	rootCmd.AddCommand(researchCmd)
}
