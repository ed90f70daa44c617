package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tomoki/vault-agent/internal/observability"
)

var traceCmd = &cobra.Command{
	Use:   "trace <run-id>",
	Short: "Show a run with its ordered step trace",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrace,
}

var traceDBURL string

func init() {
	traceCmd.Flags().StringVar(&traceDBURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(traceCmd)
}

func runTrace(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	database, err := connectDB(ctx, traceDBURL)
	if err != nil {
		return err
	}
	defer database.Close()

	trace, err := database.GetRunTrace(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run trace: %w", err)
	}
	if trace == nil {
		return fmt.Errorf("run %s not found", runID)
	}

	observability.NewPrinter(os.Stdout).PrintTrace(trace)
	return nil
}
