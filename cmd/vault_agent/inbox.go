package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tomoki/vault-agent/internal/db"
	"github.com/tomoki/vault-agent/internal/observability"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Review proposed artifacts",
	Long:  "Lists the artifact inbox for a day. Use the approve, reject, and read subcommands to act on individual artifacts.",
	RunE:  runInbox,
}

var inboxApproveCmd = &cobra.Command{
	Use:   "approve <artifact-id>",
	Short: "Approve a proposed artifact, superseding any prior approval for its slot",
	Args:  cobra.ExactArgs(1),
	RunE:  runInboxApprove,
}

var inboxRejectCmd = &cobra.Command{
	Use:   "reject <artifact-id>",
	Short: "Reject a proposed artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runInboxReject,
}

var inboxReadCmd = &cobra.Command{
	Use:   "read <artifact-id>",
	Short: "Mark an artifact as read",
	Args:  cobra.ExactArgs(1),
	RunE:  runInboxRead,
}

var (
	inboxDay    string
	inboxStatus string
	inboxDBURL  string
)

func init() {
	inboxCmd.Flags().StringVar(&inboxDay, "day", "", "Day to list, YYYY-MM-DD (defaults to today)")
	inboxCmd.Flags().StringVar(&inboxStatus, "status", db.ArtifactStatusProposed, "Filter by status (proposed, approved, rejected, superseded)")
	inboxCmd.PersistentFlags().StringVar(&inboxDBURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	inboxCmd.AddCommand(inboxApproveCmd)
	inboxCmd.AddCommand(inboxRejectCmd)
	inboxCmd.AddCommand(inboxReadCmd)
	rootCmd.AddCommand(inboxCmd)
}

func runInbox(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	day := inboxDay
	if day == "" {
		day = db.DayKey(time.Now().UTC())
	} else if _, err := time.Parse("2006-01-02", day); err != nil {
		return fmt.Errorf("invalid day %q: expected YYYY-MM-DD", day)
	}

	database, err := connectDB(ctx, inboxDBURL)
	if err != nil {
		return err
	}
	defer database.Close()

	artifacts, err := database.ListArtifactsByDay(ctx, day, inboxStatus)
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}

	counts, err := database.CountArtifactsByStatus(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to count artifacts: %w", err)
	}

	observability.NewPrinter(os.Stdout).PrintInbox(day, artifacts, counts)
	return nil
}

func runInboxApprove(_ *cobra.Command, args []string) error {
	return inboxAction(args[0], "approved", func(ctx context.Context, database *db.DB, id uuid.UUID) (bool, error) {
		return database.ApproveArtifact(ctx, id)
	})
}

func runInboxReject(_ *cobra.Command, args []string) error {
	return inboxAction(args[0], "rejected", func(ctx context.Context, database *db.DB, id uuid.UUID) (bool, error) {
		return database.RejectArtifact(ctx, id)
	})
}

func runInboxRead(_ *cobra.Command, args []string) error {
	return inboxAction(args[0], "marked read", func(ctx context.Context, database *db.DB, id uuid.UUID) (bool, error) {
		return database.MarkArtifactRead(ctx, id)
	})
}

// inboxAction parses the artifact id, opens the pool, and applies one status
// transition
func inboxAction(rawID, verb string, apply func(context.Context, *db.DB, uuid.UUID) (bool, error)) error {
	ctx := context.Background()

	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid artifact id %q: %w", rawID, err)
	}

	database, err := connectDB(ctx, inboxDBURL)
	if err != nil {
		return err
	}
	defer database.Close()

	changed, err := apply(ctx, database, id)
	if err != nil {
		return fmt.Errorf("failed to update artifact: %w", err)
	}
	if !changed {
		fmt.Fprintf(os.Stdout, "Artifact %s unchanged (not found or not eligible)\n", id)
		return nil
	}

	fmt.Fprintf(os.Stdout, "Artifact %s %s\n", id, verb)
	return nil
}
