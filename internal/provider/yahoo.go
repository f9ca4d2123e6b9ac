package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"newsimpact/internal/domain"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const yahooChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooChartProvider reads daily closes from the Yahoo Finance chart API.
type YahooChartProvider struct {
	client  *http.Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	baseURL string
}

func NewYahooChartProvider(tracer trace.Tracer, ratePerMin int) *YahooChartProvider {
	return &YahooChartProvider{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: perMinute(ratePerMin),
		tracer:  tracer,
		baseURL: yahooChartBaseURL,
	}
}

type yfChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol   string `json:"symbol"`
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetRecentCloses returns up to days daily closes for quoteSymbol, oldest
// first. Missing closes in the series are skipped.
func (p *YahooChartProvider) GetRecentCloses(ctx context.Context, quoteSymbol string, days int) ([]domain.ClosePoint, error) {
	ctx, span := p.tracer.Start(ctx, "yahoo.get-recent-closes")
	defer span.End()

	if days <= 0 {
		days = 8
	}
	rng := "1mo"
	if days > 15 {
		rng = "3mo"
	}
	endpoint := fmt.Sprintf("%s/%s?range=%s&interval=1d", p.baseURL, url.PathEscape(quoteSymbol), rng)

	body, err := doGet(ctx, p.client, p.limiter, endpoint, nil)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", quoteSymbol, domain.ErrPriceDataUnavailable)
		}
		return nil, err
	}

	var resp yfChartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode yahoo chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s: %w", quoteSymbol, resp.Chart.Error.Description, domain.ErrPriceDataUnavailable)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s: empty chart: %w", quoteSymbol, domain.ErrPriceDataUnavailable)
	}

	result := resp.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	points := make([]domain.ClosePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		points = append(points, domain.ClosePoint{Date: day, Close: *closes[i]})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: no closes: %w", quoteSymbol, domain.ErrPriceDataUnavailable)
	}
	if len(points) > days {
		points = points[len(points)-days:]
	}
	return points, nil
}
