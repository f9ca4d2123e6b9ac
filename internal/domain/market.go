package domain

import "time"

type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendFlat    Trend = "flat"
	TrendUnknown Trend = "unknown"
)

type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNeutral  Impact = "neutral"
	ImpactNegative Impact = "negative"
)

type ClosePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSnapshot holds trailing daily closes, oldest first.
type PriceSnapshot struct {
	Symbol    string       `json:"symbol"`
	Closes    []ClosePoint `json:"closes"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// ChangePct is the percentage change from the earliest to the latest close.
func (s *PriceSnapshot) ChangePct() (float64, bool) {
	if s == nil || len(s.Closes) < 2 {
		return 0, false
	}
	first := s.Closes[0].Close
	last := s.Closes[len(s.Closes)-1].Close
	if first == 0 {
		return 0, false
	}
	return (last - first) / first * 100, true
}

// ImpactVerdict is produced once per (article, symbol) pair.
type ImpactVerdict struct {
	ArticleID        string         `json:"article_id"`
	Symbol           string         `json:"symbol"`
	Exchange         string         `json:"exchange,omitempty"`
	Sentiment        SentimentLabel `json:"sentiment"`
	Confidence       float64        `json:"confidence"`
	PriceTrend       Trend          `json:"price_trend"`
	ChangePct        float64        `json:"change_pct"`
	Impact           Impact         `json:"impact"`
	Score            float64        `json:"score"`
	Strength         string         `json:"strength"`
	PriceDataMissing bool           `json:"price_data_missing"`
	Rationale        string         `json:"rationale"`
	ComputedAt       time.Time      `json:"computed_at"`
}
