package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"newsimpact/internal/analyzer"
	"newsimpact/internal/config"
	"newsimpact/internal/domain"
	"newsimpact/internal/resolver"
	"newsimpact/internal/store"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type noLookup struct{}

func (noLookup) LookupSymbol(ctx context.Context, name string) ([]domain.SymbolCandidate, error) {
	return nil, nil
}

type noPrices struct{}

func (noPrices) GetRecentCloses(ctx context.Context, quoteSymbol string, days int) ([]domain.ClosePoint, error) {
	return nil, nil
}

type fakeRedis struct {
	data map[string]string
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func stubProviders(t *testing.T) {
	t.Helper()
	origLookup, origPrices := newSymbolLookup, newPriceProvider
	t.Cleanup(func() {
		newSymbolLookup, newPriceProvider = origLookup, origPrices
	})
	newSymbolLookup = func(trace.Tracer, int) resolver.Lookup { return noLookup{} }
	newPriceProvider = func(trace.Tracer, int) analyzer.PriceProvider { return noPrices{} }
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		OutputDir:          t.TempDir(),
		RSSFeeds:           []string{"https://feeds.example.com/markets.xml"},
		DefaultMarket:      "NSE",
		UnresolvedTTLHours: 24,
		CollectLookback:    12,
		PriceRatePerMin:    60,
	}
}

func TestBuildInMemory(t *testing.T) {
	stubProviders(t)
	cfg := testConfig(t)

	a, err := Build(context.Background(), cfg, testTracer, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := a.Store.(*store.MemoryStore); !ok {
		t.Fatalf("expected memory store without a pool, got %T", a.Store)
	}
	if len(a.Sources) != 1 || a.Sources[0].Name() != "rss" {
		t.Fatalf("expected rss source only, got %d sources", len(a.Sources))
	}
	if a.Lookback != 12*time.Hour {
		t.Fatalf("expected 12h lookback, got %s", a.Lookback)
	}
	if a.Exporter.Dir() != cfg.OutputDir {
		t.Fatalf("expected exporter dir %s, got %s", cfg.OutputDir, a.Exporter.Dir())
	}

	m, err := a.Resolver.Resolve(context.Background(), "Tata Motors")
	if err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if m.Status != domain.ResolutionResolved || m.Symbol != "TATAMOTORS" {
		t.Fatalf("expected TATAMOTORS from alias table, got %+v", m)
	}
}

func TestBuildAddsNewsAPIWhenKeySet(t *testing.T) {
	stubProviders(t)
	cfg := testConfig(t)
	cfg.NewsAPIKey = "key"
	cfg.NewsAPICountry = "in"
	cfg.NewsAPICategory = "business"

	a, err := Build(context.Background(), cfg, testTracer, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a.Sources) != 2 || a.Sources[0].Name() != "newsapi" {
		t.Fatalf("expected newsapi then rss, got %d sources", len(a.Sources))
	}
}

func TestBuildUsesRedisCaches(t *testing.T) {
	stubProviders(t)
	rc := &fakeRedis{data: map[string]string{}}

	a, err := Build(context.Background(), testConfig(t), testTracer, nil, rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.Resolver.Resolve(context.Background(), "Infosys"); err != nil {
		t.Fatalf("unexpected resolve error: %v", err)
	}
	if _, ok := rc.data["symbol:infosys"]; !ok {
		t.Fatalf("expected mapping cached in redis, got keys %v", rc.data)
	}
}

func TestBuildLoadsAliasFile(t *testing.T) {
	stubProviders(t)
	cfg := testConfig(t)
	cfg.AliasTablePath = filepath.Join(t.TempDir(), "aliases.yaml")
	data := "aliases:\n  - name: Ola Electric\n    symbol: OLAELEC\n    exchange: NSE\n"
	if err := os.WriteFile(cfg.AliasTablePath, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	a, err := Build(context.Background(), cfg, testTracer, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, _ := a.Resolver.Resolve(context.Background(), "Ola Electric")
	if m.Symbol != "OLAELEC" {
		t.Fatalf("expected OLAELEC from alias file, got %+v", m)
	}
}

func TestBuildFailsOnMissingAliasFile(t *testing.T) {
	stubProviders(t)
	cfg := testConfig(t)
	cfg.AliasTablePath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Build(context.Background(), cfg, testTracer, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "load alias table") {
		t.Fatalf("expected alias table error, got %v", err)
	}
}

func TestBuildScorer(t *testing.T) {
	cfg := &config.Config{}
	if got := buildScorer(testTracer, cfg, nil).Model(); got != "heuristic:v1" {
		t.Fatalf("expected heuristic scorer without a key, got %s", got)
	}
	cfg.OpenAIAPIKey = "sk-test"
	cfg.OpenAIModel = "gpt-4o-mini"
	if got := buildScorer(testTracer, cfg, nil).Model(); got != "llm:gpt-4o-mini+heuristic:v1" {
		t.Fatalf("expected llm with heuristic fallback, got %s", got)
	}
}
