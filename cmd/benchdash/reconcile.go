package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	engine "github.com/ternarybob/benchdash/internal/attributes"
	"github.com/ternarybob/benchdash/internal/interfaces"
	"github.com/ternarybob/benchdash/internal/models"
	"github.com/ternarybob/benchdash/internal/services/results"
	"github.com/ternarybob/benchdash/internal/storage/file"
)

var (
	lookupPath   string
	metadataPath string
	outPath      string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a lookup file against a test metadata file",
	Long: `Reads an attribute lookup and a run's test metadata, reconciles them and prints
the change report. The reconciled lookup is written to --out when given.
A missing lookup file is treated as an empty lookup.`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&lookupPath, "lookup", "", "Attribute lookup JSON file")
	reconcileCmd.Flags().StringVar(&metadataPath, "metadata", "", "Test metadata JSON file")
	reconcileCmd.Flags().StringVar(&outPath, "out", "", "Write the reconciled lookup here (may equal --lookup)")
	reconcileCmd.MarkFlagRequired("metadata")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	old := models.AttributeLookup{}
	if lookupPath != "" {
		raw, err := file.NewLookupFile(logger, lookupPath).Load(ctx)
		switch {
		case errors.Is(err, interfaces.ErrLookupNotFound):
			logger.Warn().Str("path", lookupPath).Msg("Lookup file not found, starting from an empty lookup")
		case err != nil:
			return err
		default:
			if old, err = models.ParseAttributeLookup(raw); err != nil {
				return fmt.Errorf("failed to parse lookup %s: %w", lookupPath, err)
			}
		}
	}

	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to read metadata %s: %w", metadataPath, err)
	}
	tests, err := results.ParseMetadata(data)
	if err != nil {
		return err
	}

	next := engine.Reconcile(old, tests)
	report := engine.Summarize(old, next)

	if outPath != "" {
		out, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode lookup: %w", err)
		}
		if err := file.NewLookupFile(logger, outPath).Save(ctx, out); err != nil {
			return err
		}
		logger.Info().
			Str("path", outPath).
			Int("tests", len(next.MinifiedTests)).
			Msg("Reconciled lookup written")
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
