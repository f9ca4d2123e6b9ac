package analyzer

import (
	"fmt"
	"math"

	"newsimpact/internal/domain"
)

const (
	sentimentWeight = 0.6
	movementWeight  = 0.4
)

// ClassifyTrend buckets a percentage change. Changes strictly above rising
// are rising, strictly below falling are falling.
func ClassifyTrend(changePct, rising, falling float64) domain.Trend {
	switch {
	case changePct > rising:
		return domain.TrendRising
	case changePct < falling:
		return domain.TrendFalling
	default:
		return domain.TrendFlat
	}
}

// Decide combines sentiment and trend. Aligned signals keep the sentiment,
// opposed signals dampen to neutral, a flat or unknown trend leaves the
// sentiment as is. A nil sentiment is always neutral.
func Decide(sentiment *domain.Sentiment, trend domain.Trend) domain.Impact {
	if sentiment == nil {
		return domain.ImpactNeutral
	}
	switch sentiment.Label {
	case domain.SentimentPositive:
		if trend == domain.TrendFalling {
			return domain.ImpactNeutral
		}
		return domain.ImpactPositive
	case domain.SentimentNegative:
		if trend == domain.TrendRising {
			return domain.ImpactNeutral
		}
		return domain.ImpactNegative
	default:
		return domain.ImpactNeutral
	}
}

// Score is 0.6 times the signed sentiment confidence plus 0.4 times the
// fractional price change clamped to [-1, 1], rounded to four places.
func Score(sentiment *domain.Sentiment, changePct float64, priceMissing bool) float64 {
	s := 0.0
	if sentiment != nil {
		switch sentiment.Label {
		case domain.SentimentPositive:
			s = sentiment.Confidence
		case domain.SentimentNegative:
			s = -sentiment.Confidence
		}
	}
	m := 0.0
	if !priceMissing {
		m = math.Max(-1, math.Min(1, changePct/100))
	}
	return math.Round((sentimentWeight*s+movementWeight*m)*10000) / 10000
}

func Strength(score float64) string {
	switch {
	case score > 0.25:
		return "Strong Bullish"
	case score > 0.05:
		return "Moderate Bullish"
	case score >= -0.05:
		return "Neutral"
	case score >= -0.25:
		return "Moderate Bearish"
	default:
		return "Strong Bearish"
	}
}

func rationale(sentiment *domain.Sentiment, trend domain.Trend, changePct float64, missing bool, impact domain.Impact) string {
	s := "sentiment=unavailable"
	if sentiment != nil {
		s = fmt.Sprintf("sentiment=%s(%.2f)", sentiment.Label, sentiment.Confidence)
	}
	t := fmt.Sprintf("trend=%s(%+.2f%%)", trend, changePct)
	if missing {
		t = "trend=missing price data, sentiment only"
	}
	return fmt.Sprintf("%s %s -> %s", s, t, impact)
}
