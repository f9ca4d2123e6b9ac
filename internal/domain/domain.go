package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"
)

type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// RawArticle is immutable once written. ID is derived from the canonical URL.
type RawArticle struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	PublishedAt time.Time `json:"published_at"`
	Body        string    `json:"body"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
}

type Sentiment struct {
	Label      SentimentLabel `json:"label"`
	Confidence float64        `json:"confidence"`
}

type Keyword struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// EnrichedArticle references its RawArticle by ArticleID. Sentiment is nil
// when sentiment scoring failed; FieldErrors lists every failed field.
type EnrichedArticle struct {
	ArticleID   string       `json:"article_id"`
	Summary     string       `json:"summary"`
	Sentiment   *Sentiment   `json:"sentiment"`
	Keywords    []Keyword    `json:"keywords"`
	Companies   []string     `json:"companies"`
	FieldErrors []FieldError `json:"field_errors,omitempty"`
	Truncated   bool         `json:"truncated,omitempty"`
	Model       string       `json:"model,omitempty"`
	EnrichedAt  time.Time    `json:"enriched_at"`
}

func (e *EnrichedArticle) Partial() bool {
	return len(e.FieldErrors) > 0
}

func (e *EnrichedArticle) FieldFailed(field string) bool {
	for _, fe := range e.FieldErrors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// ArticleResolution is the resolve-stage record. Mappings holds every
// company considered; Symbols holds the accepted subset, deduplicated.
type ArticleResolution struct {
	ArticleID  string           `json:"article_id"`
	Mappings   []SymbolMapping  `json:"mappings"`
	Symbols    []SymbolMapping  `json:"symbols"`
	Filtered   []FilteredSymbol `json:"filtered,omitempty"`
	ResolvedAt time.Time        `json:"resolved_at"`
}

type FilteredSymbol struct {
	CompanyName string `json:"company_name"`
	Reason      string `json:"reason"`
}

// ArticleAnalysis is the analyze-stage record: one verdict per accepted symbol.
type ArticleAnalysis struct {
	ArticleID  string          `json:"article_id"`
	Verdicts   []ImpactVerdict `json:"verdicts"`
	AnalyzedAt time.Time       `json:"analyzed_at"`
}

// ArticleID returns the hex sha256 of the canonical form of rawURL.
func ArticleID(rawURL string) (string, error) {
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalURL lowercases scheme and host, drops the fragment and utm_*
// tracking parameters, sorts the query and trims a trailing slash.
func CanonicalURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrEmptyURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	q := u.Query()
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	keys := make([]string, 0, len(q))
	for key := range q {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var parts []string
	for _, key := range keys {
		values := q[key]
		sort.Strings(values)
		for _, v := range values {
			parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(v))
		}
	}
	u.RawQuery = strings.Join(parts, "&")

	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}
	if u.Path == "/" {
		u.Path = ""
	}
	return u.String(), nil
}
