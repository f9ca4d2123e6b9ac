package nlp

import (
	"context"
	"strings"

	"newsimpact/internal/domain"
)

// Scorer exposes one method per scoring capability so backends can be
// swapped or chained independently.
type Scorer interface {
	Summarize(ctx context.Context, text string, maxChars int) (string, error)
	ScoreSentiment(ctx context.Context, text string) (domain.Sentiment, error)
	ExtractKeywords(ctx context.Context, text string, k int) ([]domain.Keyword, error)
	ExtractCompanies(ctx context.Context, text string) ([]string, error)
	Model() string
}

// Truncate returns the first n runes of text.
func Truncate(text string, n int) (string, bool) {
	if n <= 0 {
		return text, false
	}
	r := []rune(text)
	if len(r) <= n {
		return text, false
	}
	return string(r[:n]), true
}

func normalizeLabel(label string) domain.SentimentLabel {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive", "bullish", "bull", "4 stars", "5 stars":
		return domain.SentimentPositive
	case "negative", "bearish", "bear", "1 star", "2 stars":
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// dedupeNames keeps the first spelling of each company name, comparing names
// without case, punctuation or corporate suffixes.
func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.Join(domain.NameTokens(n), " ")
		if key == "" {
			key = domain.NormalizeCompanyName(n)
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
