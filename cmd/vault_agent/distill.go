package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tomoki/vault-agent/internal/distill"
	"github.com/tomoki/vault-agent/internal/llm"
	"github.com/tomoki/vault-agent/internal/observability"
	"github.com/tomoki/vault-agent/internal/vault"
)

var distillCmd = &cobra.Command{
	Use:   "distill",
	Short: "Distill vault documents into proposed concepts and flashcards",
	Long: `Runs the batch distillation pipeline over a selection of vault documents: each document is distilled into 2-5 concepts, each concept into 1-2 flashcards. All outputs land in the artifact inbox as proposals for review.

Select documents with --ids, --tag, or --recent.`,
	RunE: runDistill,
}

var (
	distillIDs     []string
	distillTag     string
	distillRecent  int
	distillDBURL   string
	distillAPIKey  string
	distillVerbose bool
)

func init() {
	distillCmd.Flags().StringSliceVar(&distillIDs, "ids", nil, "Document UUIDs to distill (comma-separated)")
	distillCmd.Flags().StringVar(&distillTag, "tag", "", "Distill documents carrying this tag")
	distillCmd.Flags().IntVar(&distillRecent, "recent", 0, "Distill the N most recent documents")
	distillCmd.Flags().StringVar(&distillDBURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	distillCmd.Flags().StringVar(&distillAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	distillCmd.Flags().BoolVarP(&distillVerbose, "verbose", "v", false, "Print detailed run output")

	rootCmd.AddCommand(distillCmd)
}

func runDistill(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	if len(distillIDs) == 0 && distillTag == "" && distillRecent == 0 {
		return fmt.Errorf("provide a document selection: --ids, --tag, or --recent")
	}

	ids := make([]uuid.UUID, 0, len(distillIDs))
	for _, raw := range distillIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid document id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}

	apiKey, err := geminiKey(distillAPIKey)
	if err != nil {
		return err
	}

	database, err := connectDB(ctx, distillDBURL)
	if err != nil {
		return err
	}
	defer database.Close()

	client, err := llm.NewClient(ctx, llm.DefaultGeminiConfig(), apiKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer client.Close()

	source := vault.NewPostgresVault(database.Pool())
	orch := distill.New(database, database, source, client)

	result, err := orch.Run(ctx, distill.Options{
		IDs:     ids,
		Tag:     distillTag,
		Recent:  distillRecent,
		Verbose: distillVerbose,
	})
	if err != nil {
		return fmt.Errorf("distillation failed: %w", err)
	}

	if distillVerbose {
		observability.NewPrinter(os.Stdout).PrintDistillResult(result)
	} else {
		fmt.Fprintf(os.Stdout, "Run %s: %d documents, %d concepts, %d flashcards proposed\n",
			result.RunID, result.DocsProcessed, result.ConceptsProposed, result.FlashcardsProposed)
	}

	return nil
}
