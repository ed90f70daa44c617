// Package llm - structured.go provides schema-validated structured output.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// InvokeStructured prompts the model for JSON, validates the response against
// a JSON Schema, and decodes it into dst. One corrective retry is attempted
// when the first response fails validation.
func InvokeStructured(ctx context.Context, client Client, tier ModelTier, prompt, schema string, dst any) error {
	raw, err := client.GenerateJSON(ctx, prompt, tier)
	if err != nil {
		return fmt.Errorf("failed to generate structured output: %w", err)
	}

	validationErr := validateAgainstSchema(raw, schema)
	if validationErr != nil {
		retryPrompt := fmt.Sprintf("%s\n\nYour previous response was invalid: %v\nReturn ONLY valid JSON matching the required structure.", prompt, validationErr)
		raw, err = client.GenerateJSON(ctx, retryPrompt, tier)
		if err != nil {
			return fmt.Errorf("failed to generate structured output on retry: %w", err)
		}
		if err := validateAgainstSchema(raw, schema); err != nil {
			return fmt.Errorf("structured output failed schema validation after retry: %w", err)
		}
	}

	if err := json.Unmarshal([]byte(CleanJSONBlock(raw)), dst); err != nil {
		return fmt.Errorf("failed to decode structured output: %w", err)
	}
	return nil
}

// validateAgainstSchema checks a raw JSON response against a JSON Schema
func validateAgainstSchema(raw, schema string) error {
	cleaned := CleanJSONBlock(raw)

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(cleaned),
	)
	if err != nil {
		return fmt.Errorf("failed to validate response: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			msgs = append(msgs, resultErr.String())
		}
		return fmt.Errorf("schema violations: %s", strings.Join(msgs, "; "))
	}
	return nil
}
