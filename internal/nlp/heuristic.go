package nlp

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"newsimpact/internal/domain"
)

var (
	bullishTerms = []string{
		"surge", "rally", "gain", "rise", "rose", "jump", "soar", "climb", "record",
		"beat", "growth", "profit", "upgrade", "strong", "outperform", "buy", "boost",
		"expand", "recover", "bull", "breakout", "dividend", "order win",
	}
	bearishTerms = []string{
		"fall", "fell", "drop", "decline", "slump", "plunge", "crash", "loss", "miss",
		"downgrade", "weak", "underperform", "sell", "cut", "lawsuit", "probe", "fraud",
		"default", "bear", "layoff", "penalty", "recall", "dropped", "slashed",
	}

	bullishPatterns = termPatterns(bullishTerms)
	bearishPatterns = termPatterns(bearishTerms)

	sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

	companyCues = `Inc|Corp|Corporation|Ltd|Limited|Industries|Motors|Steel|Bank|Group|Holdings|` +
		`Technologies|Pharma|Pharmaceuticals|Energy|Airlines|Airways|Finance|Capital|Systems|Enterprises`
	capitalizedCompany = regexp.MustCompile(`\b(?:[A-Z][A-Za-z&\-]*\s+){1,3}(?:` + companyCues + `)\b`)
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "with": true, "this": true,
	"from": true, "are": true, "was": true, "were": true, "has": true, "have": true,
	"had": true, "its": true, "their": true, "they": true, "will": true, "would": true,
	"could": true, "said": true, "says": true, "into": true, "than": true, "over": true,
	"after": true, "about": true, "also": true, "been": true, "but": true, "not": true,
	"more": true, "most": true, "which": true, "while": true, "who": true, "what": true,
	"when": true, "where": true, "there": true, "these": true, "those": true, "our": true,
	"per": true, "cent": true, "year": true, "years": true, "new": true, "one": true,
	"two": true, "can": true, "all": true, "out": true, "his": true, "her": true,
	"she": true, "him": true, "you": true, "your": true, "may": true, "amid": true,
	"week": true, "day": true, "today": true, "monday": true, "tuesday": true,
	"wednesday": true, "thursday": true, "friday": true, "ltd": true, "inc": true,
	"limited": true, "company": true, "companies": true, "market": true, "shares": true,
}

// Heuristic is a dependency-free Scorer: leading-sentence summaries,
// keyword-count sentiment, term-frequency keywords and name matching for
// companies.
type Heuristic struct {
	known []*regexp.Regexp
}

// NewHeuristic builds a heuristic scorer that also recognizes the given
// company names in any casing.
func NewHeuristic(knownCompanies []string) *Heuristic {
	h := &Heuristic{}
	for _, name := range dedupeNames(knownCompanies) {
		h.known = append(h.known, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(name)+`\b`))
	}
	return h
}

func (h *Heuristic) Model() string { return "heuristic:v1" }

func (h *Heuristic) Summarize(ctx context.Context, text string, maxChars int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text = strings.Join(strings.Fields(text), " ")
	if maxChars <= 0 {
		return text, nil
	}

	sentences := splitSentences(text)
	var b strings.Builder
	for _, s := range sentences {
		n := len([]rune(b.String()))
		add := len([]rune(s))
		if n > 0 {
			add++
		}
		if n+add > maxChars {
			break
		}
		if n > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	if b.Len() == 0 {
		out, _ := Truncate(text, maxChars)
		return out, nil
	}
	return b.String(), nil
}

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *Heuristic) ScoreSentiment(ctx context.Context, text string) (domain.Sentiment, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sentiment{}, err
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return domain.Sentiment{Label: domain.SentimentNeutral, Confidence: 0.25}, nil
	}

	bull := countMatches(lower, bullishPatterns)
	bear := countMatches(lower, bearishPatterns)

	score := clamp(float64(bull-bear)/float64(bull+bear+1), -1, 1)
	confidence := clamp(0.35+0.1*math.Abs(float64(bull-bear)), 0.25, 0.70)

	label := domain.SentimentNeutral
	if score > 0.2 {
		label = domain.SentimentPositive
	} else if score < -0.2 {
		label = domain.SentimentNegative
	}
	return domain.Sentiment{Label: label, Confidence: round4(confidence)}, nil
}

// termPatterns matches each term as a whole word, allowing plural and past
// tense endings ("gains", "surged") but not longer words ("against").
func termPatterns(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `(?:s|es|d|ed)?\b`)
	}
	return out
}

// countMatches counts the distinct terms present in text.
func countMatches(text string, patterns []*regexp.Regexp) int {
	count := 0
	for _, re := range patterns {
		if re.MatchString(text) {
			count++
		}
	}
	return count
}

func (h *Heuristic) ExtractKeywords(ctx context.Context, text string, k int) ([]domain.Keyword, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	counts := make(map[string]int)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(tok)) < 3 || stopwords[tok] || isNumber(tok) {
			continue
		}
		counts[tok]++
	}
	if len(counts) == 0 {
		return nil, nil
	}

	maxCount := 0
	terms := make([]string, 0, len(counts))
	for term, n := range counts {
		terms = append(terms, term)
		if n > maxCount {
			maxCount = n
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > k {
		terms = terms[:k]
	}

	out := make([]domain.Keyword, len(terms))
	for i, term := range terms {
		out[i] = domain.Keyword{Term: term, Score: round4(float64(counts[term]) / float64(maxCount))}
	}
	return out, nil
}

func isNumber(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

type nameHit struct {
	pos  int
	name string
}

func (h *Heuristic) ExtractCompanies(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var hits []nameHit
	for _, re := range h.known {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, nameHit{pos: loc[0], name: text[loc[0]:loc[1]]})
		}
	}
	for _, loc := range capitalizedCompany.FindAllStringIndex(text, -1) {
		name := strings.TrimPrefix(text[loc[0]:loc[1]], "The ")
		hits = append(hits, nameHit{pos: loc[0], name: name})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	names := make([]string, len(hits))
	for i, hit := range hits {
		names[i] = hit.name
	}
	return dedupeNames(names), nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

var _ Scorer = (*Heuristic)(nil)
