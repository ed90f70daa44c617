package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	RunE:  runListRuns,
}

var (
	runsKind  string
	runsLimit int
	runsDBURL string
)

func init() {
	runsCmd.Flags().StringVar(&runsKind, "kind", "", "Filter by run kind (distill, web-scout)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")
	runsCmd.Flags().StringVar(&runsDBURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(runsCmd)
}

func runListRuns(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	database, err := connectDB(ctx, runsDBURL)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListRuns(ctx, runsKind, runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "No runs recorded.")
		return nil
	}

	for _, run := range runs {
		ended := "running"
		if run.EndedAt != nil {
			ended = run.EndedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(os.Stdout, "%s  %-10s %-8s started %s  ended %s\n",
			run.ID, run.Kind, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), ended)
	}

	return nil
}
