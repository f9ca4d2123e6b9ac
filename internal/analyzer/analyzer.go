package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"newsimpact/internal/domain"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

type PriceProvider interface {
	GetRecentCloses(ctx context.Context, quoteSymbol string, days int) ([]domain.ClosePoint, error)
}

type SnapshotCache interface {
	Get(ctx context.Context, key string) (*domain.PriceSnapshot, error)
	Put(ctx context.Context, key string, snap *domain.PriceSnapshot, ttl time.Duration) error
}

type Config struct {
	RisingPct    float64
	FallingPct   float64
	WindowDays   int
	Retries      int
	RetryInitial time.Duration
	SnapshotTTL  time.Duration
}

func DefaultConfig() Config {
	return Config{
		RisingPct:    1,
		FallingPct:   -1,
		WindowDays:   8,
		Retries:      3,
		RetryInitial: time.Second,
		SnapshotTTL:  36 * time.Hour,
	}
}

type Analyzer struct {
	tracer trace.Tracer
	prices PriceProvider
	cache  SnapshotCache
	cfg    Config
	group  singleflight.Group
	now    func() time.Time
}

func New(tracer trace.Tracer, prices PriceProvider, cache SnapshotCache, cfg Config) *Analyzer {
	def := DefaultConfig()
	if cfg.RisingPct == 0 && cfg.FallingPct == 0 {
		cfg.RisingPct, cfg.FallingPct = def.RisingPct, def.FallingPct
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}
	if cfg.Retries <= 0 {
		cfg.Retries = def.Retries
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = def.RetryInitial
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = def.SnapshotTTL
	}
	return &Analyzer{tracer: tracer, prices: prices, cache: cache, cfg: cfg, now: time.Now}
}

// Analyze produces the verdict for one article and symbol. Missing price
// data degrades the verdict to sentiment only; the error is non-nil only
// when ctx ended.
func (a *Analyzer) Analyze(ctx context.Context, article *domain.EnrichedArticle, mapping domain.SymbolMapping) (domain.ImpactVerdict, error) {
	ctx, span := a.tracer.Start(ctx, "analyzer.analyze")
	defer span.End()
	span.SetAttributes(
		attribute.String("article_id", article.ArticleID),
		attribute.String("symbol", mapping.Symbol),
	)

	snap, err := a.Snapshot(ctx, mapping.QuoteSymbol())
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.ImpactVerdict{}, ctxErr
	}
	if err != nil {
		log.Printf("analyzer: price data for %s unavailable: %v", mapping.QuoteSymbol(), err)
	}

	changePct, ok := snap.ChangePct()
	missing := err != nil || !ok
	trend := domain.TrendUnknown
	if !missing {
		trend = ClassifyTrend(changePct, a.cfg.RisingPct, a.cfg.FallingPct)
	} else {
		changePct = 0
	}

	impact := Decide(article.Sentiment, trend)
	score := Score(article.Sentiment, changePct, missing)
	verdict := domain.ImpactVerdict{
		ArticleID:        article.ArticleID,
		Symbol:           mapping.Symbol,
		Exchange:         mapping.Exchange,
		PriceTrend:       trend,
		ChangePct:        round2(changePct),
		Impact:           impact,
		Score:            score,
		Strength:         Strength(score),
		PriceDataMissing: missing,
		Rationale:        rationale(article.Sentiment, trend, changePct, missing, impact),
		ComputedAt:       a.now().UTC(),
	}
	if article.Sentiment != nil {
		verdict.Sentiment = article.Sentiment.Label
		verdict.Confidence = article.Sentiment.Confidence
	}
	return verdict, nil
}

// Snapshot returns the trailing closes for quoteSymbol, reusing the cached
// snapshot for the current UTC day. Concurrent calls for one symbol share a
// single fetch.
func (a *Analyzer) Snapshot(ctx context.Context, quoteSymbol string) (*domain.PriceSnapshot, error) {
	ctx, span := a.tracer.Start(ctx, "analyzer.snapshot")
	defer span.End()

	key := SnapshotKey(quoteSymbol, a.now())
	if snap, err := a.cache.Get(ctx, key); err != nil {
		log.Printf("analyzer: snapshot cache get %s failed: %v", key, err)
	} else if snap != nil {
		return snap, nil
	}

	v, err, _ := a.group.Do(key, func() (any, error) {
		closes, err := a.fetch(ctx, quoteSymbol)
		if err != nil {
			return nil, err
		}
		snap := &domain.PriceSnapshot{Symbol: quoteSymbol, Closes: closes, FetchedAt: a.now().UTC()}
		if err := a.cache.Put(ctx, key, snap, a.cfg.SnapshotTTL); err != nil {
			log.Printf("analyzer: snapshot cache put %s failed: %v", key, err)
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.PriceSnapshot), nil
}

func SnapshotKey(quoteSymbol string, now time.Time) string {
	return "snapshot:" + quoteSymbol + ":" + now.UTC().Format("2006-01-02")
}

func (a *Analyzer) fetch(ctx context.Context, quoteSymbol string) ([]domain.ClosePoint, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.cfg.RetryInitial

	closes, err := backoff.Retry(ctx, func() ([]domain.ClosePoint, error) {
		closes, err := a.prices.GetRecentCloses(ctx, quoteSymbol, a.cfg.WindowDays)
		if errors.Is(err, domain.ErrPriceDataUnavailable) {
			return nil, backoff.Permanent(err)
		}
		return closes, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(a.cfg.Retries)))
	if err != nil {
		return nil, err
	}

	sort.Slice(closes, func(i, j int) bool { return closes[i].Date.Before(closes[j].Date) })
	if len(closes) > a.cfg.WindowDays {
		closes = closes[len(closes)-a.cfg.WindowDays:]
	}
	if len(closes) < 2 {
		return nil, fmt.Errorf("%s: %d closes: %w", quoteSymbol, len(closes), domain.ErrPriceDataUnavailable)
	}
	return closes, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
