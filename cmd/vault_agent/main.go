// Package main provides the entry point for the vault agent CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tomoki/vault-agent/internal/db"
)

var rootCmd = &cobra.Command{
	Use:   "vault_agent",
	Short: "Content pipelines over a personal document vault",
	Long:  "Vault agent distills vault documents into concepts and flashcards, scouts the web for relevant sources, and records traceable runs whose outputs land in a reviewable artifact inbox.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// connectDB resolves the connection URL from the flag value or DATABASE_URL
// and opens a pool
func connectDB(ctx context.Context, databaseURL string) (*db.DB, error) {
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

// geminiKey resolves the Gemini API key from the flag value or environment
func geminiKey(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
}
