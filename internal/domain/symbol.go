package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

type ResolutionStatus string

const (
	ResolutionResolved   ResolutionStatus = "resolved"
	ResolutionUnresolved ResolutionStatus = "unresolved"
)

const (
	ReasonAmbiguous     = "ambiguous"
	ReasonNotFound      = "not_found"
	ReasonLowConfidence = "low_confidence"
	ReasonIndex         = "index"
)

// SymbolMapping is a resolver cache entry keyed by the normalized company name.
// Unresolved entries carry ExpiresAt; resolved ones never expire.
type SymbolMapping struct {
	CompanyName string           `json:"company_name"`
	Symbol      string           `json:"symbol,omitempty"`
	Exchange    string           `json:"exchange,omitempty"`
	Status      ResolutionStatus `json:"status"`
	Reason      string           `json:"reason,omitempty"`
	Source      string           `json:"source,omitempty"`
	Confidence  float64          `json:"confidence"`
	ResolvedAt  time.Time        `json:"resolved_at"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
}

func (m SymbolMapping) Resolved() bool {
	return m.Status == ResolutionResolved && m.Symbol != ""
}

func (m SymbolMapping) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// Err returns nil for a resolved mapping and the matching resolution error
// otherwise.
func (m SymbolMapping) Err() error {
	switch {
	case m.Resolved():
		return nil
	case m.Reason == ReasonAmbiguous:
		return fmt.Errorf("%s: %w", m.CompanyName, ErrResolutionAmbiguous)
	default:
		return fmt.Errorf("%s: %w", m.CompanyName, ErrResolutionNotFound)
	}
}

// QuoteSymbol is the symbol in the form price providers expect.
func (m SymbolMapping) QuoteSymbol() string {
	return QuoteSymbol(m.Symbol, m.Exchange)
}

// indexSymbols are market-wide pseudo tickers. They can be resolved but are
// never analyzed as a company.
var indexSymbols = map[string]bool{
	"SPY": true, "DJI": true, "QQQ": true, "NIFTY": true, "SENSEX": true,
}

func IsIndexSymbol(symbol string) bool {
	return indexSymbols[strings.ToUpper(strings.TrimSpace(symbol))]
}

type SymbolCandidate struct {
	Symbol     string  `json:"symbol"`
	Exchange   string  `json:"exchange"`
	Name       string  `json:"name,omitempty"`
	Confidence float64 `json:"confidence"`
}

var exchangeSuffix = map[string]string{
	"NSE":  ".NS",
	"BSE":  ".BO",
	"LSE":  ".L",
	"TSX":  ".TO",
	"HKEX": ".HK",
}

// QuoteSymbol appends the Yahoo-style exchange suffix for non-US markets.
func QuoteSymbol(symbol, exchange string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ""
	}
	suffix, ok := exchangeSuffix[strings.ToUpper(strings.TrimSpace(exchange))]
	if !ok || strings.HasSuffix(symbol, suffix) {
		return symbol
	}
	return symbol + suffix
}

// SplitQuoteSymbol is the inverse of QuoteSymbol: "TATASTEEL.NS" -> ("TATASTEEL", "NSE").
func SplitQuoteSymbol(quote string) (string, string) {
	quote = strings.ToUpper(strings.TrimSpace(quote))
	for exchange, suffix := range exchangeSuffix {
		if strings.HasSuffix(quote, suffix) {
			return strings.TrimSuffix(quote, suffix), exchange
		}
	}
	return quote, ""
}

// NormalizeCompanyName case-folds, maps punctuation other than '&' to spaces
// and collapses whitespace.
func NormalizeCompanyName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '&':
			b.WriteRune(' ')
			b.WriteRune('&')
			b.WriteRune(' ')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var corporateSuffixes = map[string]bool{
	"ltd": true, "limited": true, "inc": true, "incorporated": true,
	"corp": true, "corporation": true, "plc": true, "co": true,
	"company": true, "llc": true, "group": true, "holdings": true,
	"the": true,
}

// NameTokens returns the normalized tokens of a company name with corporate
// suffixes removed.
func NameTokens(name string) []string {
	fields := strings.Fields(NormalizeCompanyName(name))
	out := fields[:0]
	for _, f := range fields {
		if !corporateSuffixes[f] {
			out = append(out, f)
		}
	}
	return out
}

// TokenSimilarity is the Jaccard index of the two names' token sets.
func TokenSimilarity(a, b string) float64 {
	ta, tb := NameTokens(a), NameTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(tb))
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
