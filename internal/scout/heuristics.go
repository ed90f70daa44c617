package scout

import (
	"net/url"
	"strings"
)

// reputableDomains raise the heuristic score: primary sources, official
// documentation, and venues with editorial standards.
var reputableDomains = map[string]bool{
	"arxiv.org":             true,
	"acm.org":               true,
	"ieee.org":              true,
	"nature.com":            true,
	"wikipedia.org":         true,
	"github.com":            true,
	"go.dev":                true,
	"developer.mozilla.org": true,
	"docs.python.org":       true,
	"gwern.net":             true,
	"nih.gov":               true,
	"stanford.edu":          true,
	"mit.edu":               true,
}

// lowQualityDomains lower the heuristic score: aggregators, content farms,
// and thin answer sites.
var lowQualityDomains = map[string]bool{
	"pinterest.com":  true,
	"slideshare.net": true,
	"scribd.com":     true,
	"answers.com":    true,
	"ehow.com":       true,
	"wikihow.com":    true,
	"coursehero.com": true,
	"brainly.com":    true,
}

// HeuristicScore computes a deterministic relevance estimate for a result
// from domain reputation and goal keyword overlap. No I/O, no model call.
func HeuristicScore(result SearchResult, goal string) float64 {
	score := 0.5

	domain := Domain(result.URL)
	if matchesDomainSet(domain, reputableDomains) {
		score += 0.25
	}
	if matchesDomainSet(domain, lowQualityDomains) {
		score -= 0.35
	}

	overlap := keywordOverlap(goal, result.Title+" "+result.Snippet)
	if overlap == 0 {
		score -= 0.15
	} else {
		score += 0.25 * overlap
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Unambiguous reports whether a heuristic score is decisive enough to skip
// the model evaluation.
func Unambiguous(score float64) bool {
	return score >= 0.8 || score <= 0.2
}

// Domain extracts the registrable host from a URL, without the www prefix
func Domain(urlStr string) string {
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}

// matchesDomainSet matches a host against a set, including subdomains
func matchesDomainSet(host string, set map[string]bool) bool {
	if host == "" {
		return false
	}
	if set[host] {
		return true
	}
	for domain := range set {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// allowedByDomains reports whether a URL's host matches the allow-list.
// An empty list allows everything.
func allowedByDomains(urlStr string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	host := Domain(urlStr)
	for _, domain := range allowed {
		domain = strings.TrimPrefix(strings.ToLower(domain), "www.")
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// keywordOverlap returns the fraction of significant goal words present in
// the candidate text
func keywordOverlap(goal, text string) float64 {
	keywords := significantWords(goal)
	if len(keywords) == 0 {
		return 0
	}

	text = strings.ToLower(text)
	hits := 0
	for _, word := range keywords {
		if strings.Contains(text, word) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// significantWords tokenizes a goal into lowercase words of 4+ characters
func significantWords(goal string) []string {
	var words []string
	for _, word := range strings.Fields(strings.ToLower(goal)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) >= 4 {
			words = append(words, word)
		}
	}
	return words
}
