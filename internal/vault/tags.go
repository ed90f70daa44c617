package vault

import "strings"

// stopTags are labels too generic to be useful as vault tags
var stopTags = map[string]bool{
	"introduction": true,
	"misc":         true,
	"note":         true,
	"notes":        true,
	"stuff":        true,
	"other":        true,
	"general":      true,
	"todo":         true,
}

// NormalizeTags canonicalizes a candidate tag list: lowercase, trimmed,
// 3 to 40 characters, 1 to 3 words, stop tags dropped, order-preserving
// dedup. Input order is the only ordering signal, so the first occurrence
// wins.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))

	for _, tag := range raw {
		tag = strings.ToLower(strings.TrimSpace(tag))
		tag = strings.Join(strings.Fields(tag), " ")

		if len(tag) < 3 || len(tag) > 40 {
			continue
		}
		if words := strings.Count(tag, " ") + 1; words > 3 {
			continue
		}
		if stopTags[tag] {
			continue
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}

	return out
}
