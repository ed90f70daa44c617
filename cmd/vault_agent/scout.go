package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomoki/vault-agent/internal/config"
	"github.com/tomoki/vault-agent/internal/llm"
	"github.com/tomoki/vault-agent/internal/observability"
	"github.com/tomoki/vault-agent/internal/scout"
	"github.com/tomoki/vault-agent/internal/vault"
)

var scoutCmd = &cobra.Command{
	Use:   "scout",
	Short: "Search the web for sources relevant to a research goal",
	Long: `Runs the iterative search-refine loop: derive or take a seed query, search, score the results, keep what clears the relevance bar, and refine the queries until quality or a budget is met. Accepted sources land in the artifact inbox as proposals.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runScout,
}

var (
	scoutConfigPath   string
	scoutGoal         string
	scoutQuery        string
	scoutDeriveTag    string
	scoutIterations   int
	scoutQueries      int
	scoutMinQuality   int
	scoutMinRelevance float64
	scoutPerQuery     int
	scoutDomains      []string
	scoutUnattended   bool
	scoutDBURL        string
	scoutAPIKey       string
	scoutSearchKey    string
	scoutSearchCX     string
	scoutVerbose      bool
)

func init() {
	// Config file flag (processed first)
	scoutCmd.Flags().StringVar(&scoutConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	scoutCmd.Flags().StringVarP(&scoutGoal, "goal", "g", "", "Research goal (required)")
	scoutCmd.Flags().StringVarP(&scoutQuery, "query", "q", "", "Explicit seed query (optional, derived from the goal if omitted)")
	scoutCmd.Flags().StringVar(&scoutDeriveTag, "derive-tag", "", "Ground query derivation in vault documents with this tag")
	scoutCmd.Flags().IntVar(&scoutIterations, "max-iterations", 0, "Maximum search-refine iterations")
	scoutCmd.Flags().IntVar(&scoutQueries, "max-queries", 0, "Maximum distinct queries per session")
	scoutCmd.Flags().IntVar(&scoutMinQuality, "min-quality", 0, "Quality results needed to stop early")
	scoutCmd.Flags().Float64Var(&scoutMinRelevance, "min-relevance", 0, "Relevance score threshold for accepting a result")
	scoutCmd.Flags().IntVar(&scoutPerQuery, "results-per-query", 0, "Search results requested per query")
	scoutCmd.Flags().StringSliceVar(&scoutDomains, "allow-domain", nil, "Restrict proposals to these domains (repeatable)")
	scoutCmd.Flags().BoolVar(&scoutUnattended, "unattended", false, "Also write an auto-approved research report")
	scoutCmd.Flags().StringVar(&scoutDBURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	scoutCmd.Flags().StringVar(&scoutAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	scoutCmd.Flags().StringVar(&scoutSearchKey, "search-key", "", "Google Custom Search API key (optional, defaults to SEARCH_API_KEY env var)")
	scoutCmd.Flags().StringVar(&scoutSearchCX, "search-cx", "", "Google Custom Search engine ID (optional, defaults to SEARCH_CX env var)")
	scoutCmd.Flags().BoolVarP(&scoutVerbose, "verbose", "v", false, "Print detailed run output")

	scoutCmd.MarkFlagRequired("goal")

	rootCmd.AddCommand(scoutCmd)
}

func runScout(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if scoutConfigPath != "" {
		loadedCfg, err := config.LoadConfig(scoutConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := loadedCfg.Validate(); err != nil {
			return err
		}

		cfg = *loadedCfg
		if scoutVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", scoutConfigPath)
		}
	}

	// Step 2: Apply CLI overrides (command-line args take priority)
	if cmd.Flags().Changed("max-iterations") {
		cfg.MaxIterations = scoutIterations
	}
	if cmd.Flags().Changed("max-queries") {
		cfg.MaxQueries = scoutQueries
	}
	if cmd.Flags().Changed("min-quality") {
		cfg.MinQualityResults = scoutMinQuality
	}
	if cmd.Flags().Changed("min-relevance") {
		cfg.MinRelevance = scoutMinRelevance
	}
	if cmd.Flags().Changed("results-per-query") {
		cfg.ResultsPerQuery = scoutPerQuery
	}
	if cmd.Flags().Changed("allow-domain") {
		cfg.AllowedDomains = scoutDomains
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = scoutDBURL
	}
	if cmd.Flags().Changed("api-key") {
		cfg.GeminiAPIKey = scoutAPIKey
	}
	if cmd.Flags().Changed("search-key") {
		cfg.SearchAPIKey = scoutSearchKey
	}
	if cmd.Flags().Changed("search-cx") {
		cfg.SearchCX = scoutSearchCX
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = scoutVerbose
	}

	// Step 3: Apply defaults for unset values
	defaults := scout.DefaultOptions(scoutGoal)
	cfg = cfg.MergeWithDefaults(config.Config{
		MaxIterations:     defaults.MaxIterations,
		MaxQueries:        defaults.MaxQueries,
		MinQualityResults: defaults.MinQualityResults,
		MinRelevance:      defaults.MinRelevance,
		ResultsPerQuery:   defaults.ResultsPerQuery,
	})

	// Step 4: Credential handling
	apiKey, err := geminiKey(cfg.GeminiAPIKey)
	if err != nil {
		return err
	}
	if cfg.SearchAPIKey == "" {
		cfg.SearchAPIKey = os.Getenv("SEARCH_API_KEY")
	}
	if cfg.SearchCX == "" {
		cfg.SearchCX = os.Getenv("SEARCH_CX")
	}
	if cfg.SearchAPIKey == "" || cfg.SearchCX == "" {
		return fmt.Errorf("SEARCH_API_KEY and SEARCH_CX (or --search-key and --search-cx) are required")
	}

	database, err := connectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	client, err := llm.NewClient(ctx, llm.DefaultGeminiConfig(), apiKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer client.Close()

	provider, err := scout.NewGoogleProvider(ctx, cfg.SearchAPIKey, cfg.SearchCX)
	if err != nil {
		return fmt.Errorf("failed to create search provider: %w", err)
	}

	source := vault.NewPostgresVault(database.Pool())
	orch := scout.New(database, database, provider, source, source, client)

	result, err := orch.Run(ctx, scout.Options{
		Goal:              scoutGoal,
		Query:             scoutQuery,
		DeriveTag:         scoutDeriveTag,
		MaxIterations:     cfg.MaxIterations,
		MaxQueries:        cfg.MaxQueries,
		MinQualityResults: cfg.MinQualityResults,
		MinRelevance:      cfg.MinRelevance,
		ResultsPerQuery:   cfg.ResultsPerQuery,
		AllowedDomains:    cfg.AllowedDomains,
		Unattended:        scoutUnattended,
		Verbose:           cfg.Verbose,
	})
	if err != nil {
		return fmt.Errorf("scout session failed: %w", err)
	}

	if cfg.Verbose {
		observability.NewPrinter(os.Stdout).PrintScoutResult(result)
	} else {
		fmt.Fprintf(os.Stdout, "Run %s: %d proposals after %d iterations (%s)\n",
			result.RunID, len(result.Proposals), result.Iterations, result.Reason)
	}

	return nil
}
