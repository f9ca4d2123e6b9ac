package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"newsimpact/internal/analyzer"
	"newsimpact/internal/cache"
	"newsimpact/internal/collector"
	"newsimpact/internal/config"
	"newsimpact/internal/enrich"
	"newsimpact/internal/nlp"
	"newsimpact/internal/pipeline"
	"newsimpact/internal/provider"
	"newsimpact/internal/resolver"
	"newsimpact/internal/store"

	"go.opentelemetry.io/otel/trace"
)

type App struct {
	Store    store.Store
	Resolver *resolver.Resolver
	Analyzer *analyzer.Analyzer
	Exporter *store.Exporter
	Pipeline *pipeline.Orchestrator
	Sources  []collector.Source
	Lookback time.Duration
}

var (
	newSymbolLookup = func(tracer trace.Tracer, ratePerMin int) resolver.Lookup {
		return provider.NewYahooSearchProvider(tracer, ratePerMin)
	}
	newPriceProvider = func(tracer trace.Tracer, ratePerMin int) analyzer.PriceProvider {
		return provider.NewYahooChartProvider(tracer, ratePerMin)
	}
)

// Build wires every component. pool and redis may be nil, in which case the
// article store and the caches are kept in memory.
func Build(ctx context.Context, cfg *config.Config, tracer trace.Tracer, pool store.PgxPool, redis cache.RedisClient) (*App, error) {
	st, err := buildStore(ctx, tracer, pool)
	if err != nil {
		return nil, err
	}

	aliases := resolver.DefaultAliases()
	if cfg.AliasTablePath != "" {
		extra, err := resolver.LoadAliasFile(cfg.AliasTablePath)
		if err != nil {
			return nil, fmt.Errorf("load alias table: %w", err)
		}
		aliases = append(aliases, extra...)
		log.Printf("Loaded %d aliases from %s", len(extra), cfg.AliasTablePath)
	}
	table := resolver.NewAliasTable(aliases)

	var symbolCache resolver.Cache = resolver.NewMemoryCache()
	var snapshotCache analyzer.SnapshotCache = analyzer.NewMemorySnapshotCache()
	if redis != nil {
		symbolCache = cache.NewSymbolCache(tracer, redis)
		snapshotCache = cache.NewSnapshotCache(tracer, redis)
	}

	res := resolver.New(tracer, newSymbolLookup(tracer, cfg.PriceRatePerMin), table, symbolCache, resolver.Config{
		DefaultMarket: cfg.DefaultMarket,
		UnresolvedTTL: time.Duration(cfg.UnresolvedTTLHours) * time.Hour,
	})

	an := analyzer.New(tracer, newPriceProvider(tracer, cfg.PriceRatePerMin), snapshotCache, analyzer.Config{
		RisingPct:  cfg.TrendRisingPct,
		FallingPct: cfg.TrendFallingPct,
		WindowDays: cfg.PriceWindowDays,
	})

	engine := enrich.NewEngine(tracer, buildScorer(tracer, cfg, table.Names()), enrich.Config{
		MaxInputChars: cfg.EnrichMaxInputChars,
		CallTimeout:   time.Duration(cfg.EnrichCallTimeoutSecs) * time.Second,
	})

	var body collector.BodyFetcher
	if cfg.FetchArticleBody {
		body = provider.NewBodyFetcher(tracer, cfg.EnrichMaxInputChars)
	}
	coll := collector.New(tracer, collector.Config{
		MaxPages:    cfg.CollectMaxPages,
		Retries:     cfg.CollectRetries,
		BodyWorkers: cfg.WorkersCollect,
	}, body)

	exporter := store.NewExporter(tracer, cfg.OutputDir)
	sources := buildSources(tracer, cfg)

	orch := pipeline.New(tracer, st, coll, sources, engine, res, an, exporter, pipeline.Config{
		EnrichWorkers:  cfg.WorkersEnrich,
		ResolveWorkers: cfg.WorkersResolve,
		AnalyzeWorkers: cfg.WorkersAnalyze,
		MinConfidence:  cfg.ResolveMinConfidence,
	})

	return &App{
		Store:    st,
		Resolver: res,
		Analyzer: an,
		Exporter: exporter,
		Pipeline: orch,
		Sources:  sources,
		Lookback: time.Duration(cfg.CollectLookback) * time.Hour,
	}, nil
}

func buildStore(ctx context.Context, tracer trace.Tracer, pool store.PgxPool) (store.Store, error) {
	if pool == nil {
		return store.NewMemoryStore(), nil
	}
	pg := store.NewPostgresStore(pool, tracer)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

// buildScorer prefers the LLM when a key is configured and falls back to the
// heuristic scorer per call.
func buildScorer(tracer trace.Tracer, cfg *config.Config, knownCompanies []string) nlp.Scorer {
	heuristic := nlp.NewHeuristic(knownCompanies)
	llm := nlp.NewOpenAIScorer(tracer, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if llm == nil {
		return heuristic
	}
	return nlp.NewFallback(llm, heuristic)
}

func buildSources(tracer trace.Tracer, cfg *config.Config) []collector.Source {
	var sources []collector.Source
	if cfg.NewsAPIKey != "" {
		sources = append(sources, provider.NewNewsAPISource(tracer, cfg.NewsAPIKey, cfg.NewsAPICountry, cfg.NewsAPICategory, cfg.NewsAPIPageSize, provider.DefaultFinanceKeywords))
	}
	if len(cfg.RSSFeeds) > 0 {
		sources = append(sources, provider.NewRSSSource(tracer, cfg.RSSFeeds, provider.DefaultFinanceKeywords, 0))
	}
	return sources
}
