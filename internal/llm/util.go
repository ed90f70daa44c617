// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import "strings"

// CleanJSONBlock strips markdown code fences and conversational preamble or
// trailing text from a JSON response. LLMs wrap JSON in ```json blocks and
// chatty framing even when instructed not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	// Handle ```json ... ``` blocks
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip potential language identifier on first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	// Skip any preamble before the first JSON value.
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		objIdx := strings.Index(text, "{")
		arrIdx := strings.Index(text, "[")
		start := objIdx
		if start < 0 || (arrIdx >= 0 && arrIdx < start) {
			start = arrIdx
		}
		if start >= 0 {
			text = text[start:]
		}
	}

	// Cut trailing chatter after the balanced JSON value.
	if strings.HasPrefix(text, "{") {
		if obj := extractJSONObject(text); obj != "" {
			return obj
		}
	}
	if strings.HasPrefix(text, "[") {
		if arr := extractJSONArray(text); arr != "" {
			return arr
		}
	}

	return strings.TrimSpace(text)
}

// extractJSONObject returns the balanced JSON object at the start of text,
// or "" when text does not start with one.
func extractJSONObject(text string) string {
	return extractDelimited(text, '{', '}')
}

// extractJSONArray returns the balanced JSON array at the start of text,
// or "" when text does not start with one.
func extractJSONArray(text string) string {
	return extractDelimited(text, '[', ']')
}

// extractDelimited scans for the matching close delimiter, ignoring
// delimiters inside string literals and escaped quotes.
func extractDelimited(text string, open, close byte) string {
	if len(text) == 0 || text[0] != open {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == open:
			depth++
		case !inString && c == close:
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}
	return ""
}

// EstimateTokens approximates the token count of a text. Four characters per
// token is close enough for run telemetry.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
