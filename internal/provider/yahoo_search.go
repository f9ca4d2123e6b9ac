package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsimpact/internal/domain"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const yahooSearchBaseURL = "https://query2.finance.yahoo.com/v1/finance/search"

// yahooExchanges maps Yahoo exchange codes to the exchange names used in
// symbol mappings.
var yahooExchanges = map[string]string{
	"NSI": "NSE",
	"BSE": "BSE",
	"NMS": "NASDAQ",
	"NGM": "NASDAQ",
	"NCM": "NASDAQ",
	"NYQ": "NYSE",
	"ASE": "NYSE",
	"PCX": "NYSE",
	"LSE": "LSE",
	"TOR": "TSX",
	"HKG": "HKEX",
}

// YahooSearchProvider looks up listed equities by company name.
type YahooSearchProvider struct {
	client  *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	baseURL string
}

func NewYahooSearchProvider(tracer trace.Tracer, ratePerMin int) *YahooSearchProvider {
	return &YahooSearchProvider{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: perMinute(ratePerMin),
		tracer:  tracer,
		baseURL: yahooSearchBaseURL,
	}
}

type yfSearchResponse struct {
	Quotes []struct {
		Symbol    string  `json:"symbol"`
		Exchange  string  `json:"exchange"`
		ShortName string  `json:"shortname"`
		LongName  string  `json:"longname"`
		QuoteType string  `json:"quoteType"`
		Score     float64 `json:"score"`
	} `json:"quotes"`
}

// LookupSymbol returns equity candidates for name. Confidence is the token
// similarity between name and the listed company name.
func (p *YahooSearchProvider) LookupSymbol(ctx context.Context, name string) ([]domain.SymbolCandidate, error) {
	ctx, span := p.tracer.Start(ctx, "yahoo.lookup-symbol")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("q", name)
	q.Set("quotesCount", "8")
	q.Set("newsCount", "0")
	body, err := doGet(ctx, p.client, p.limiter, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp yfSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode yahoo search: %w", err)
	}

	seen := make(map[string]bool)
	var out []domain.SymbolCandidate
	for _, quote := range resp.Quotes {
		if !strings.EqualFold(quote.QuoteType, "EQUITY") {
			continue
		}
		exchange, ok := yahooExchanges[strings.ToUpper(quote.Exchange)]
		if !ok {
			continue
		}
		symbol, _ := domain.SplitQuoteSymbol(quote.Symbol)
		key := symbol + "@" + exchange
		if symbol == "" || seen[key] {
			continue
		}
		seen[key] = true

		listed := quote.LongName
		if listed == "" {
			listed = quote.ShortName
		}
		out = append(out, domain.SymbolCandidate{
			Symbol:     symbol,
			Exchange:   exchange,
			Name:       listed,
			Confidence: domain.TokenSimilarity(name, listed),
		})
	}
	return out, nil
}
