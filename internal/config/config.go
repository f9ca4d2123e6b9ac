package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

var defaultRSSFeeds = []string{
	"https://feeds.reuters.com/reuters/businessNews",
	"https://www.cnbc.com/id/100003114/device/rss/rss.html",
	"https://feeds.marketwatch.com/marketwatch/topstories/",
	"https://finance.yahoo.com/news/rssindex",
}

type Config struct {
	HTTPAddr         string
	APIKey           string
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	OutputDir        string

	NewsAPIKey       string
	NewsAPICountry   string
	NewsAPICategory  string
	NewsAPIPageSize  int
	RSSFeeds         []string
	CollectMaxPages  int
	CollectRetries   int
	CollectLookback  int
	FetchArticleBody bool

	OpenAIAPIKey          string
	OpenAIModel           string
	EnrichMaxInputChars   int
	EnrichCallTimeoutSecs int

	DefaultMarket        string
	AliasTablePath       string
	UnresolvedTTLHours   int
	ResolveMinConfidence float64

	TrendRisingPct  float64
	TrendFallingPct float64
	PriceWindowDays int
	PriceRatePerMin int

	WorkersCollect int
	WorkersEnrich  int
	WorkersResolve int
	WorkersAnalyze int

	PipelineIntervalMins int
}

func Load() *Config {
	cfg := &Config{
		APIKey:           os.Getenv("API_KEY"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		NewsAPIKey:       strings.TrimSpace(os.Getenv("NEWSAPI_KEY")),
		AliasTablePath:   strings.TrimSpace(os.Getenv("ALIAS_TABLE_PATH")),
	}

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, using in-memory article store")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.OutputDir = strings.TrimSpace(os.Getenv("OUTPUT_DIR"))
	if cfg.OutputDir == "" {
		cfg.OutputDir = "data"
	}

	if cfg.NewsAPIKey == "" {
		log.Println("Warning: NEWSAPI_KEY not set, collecting from RSS feeds only")
	}
	cfg.NewsAPICountry = strings.ToLower(strings.TrimSpace(os.Getenv("NEWSAPI_COUNTRY")))
	if cfg.NewsAPICountry == "" {
		cfg.NewsAPICountry = "us"
	}
	cfg.NewsAPICategory = strings.ToLower(strings.TrimSpace(os.Getenv("NEWSAPI_CATEGORY")))
	if cfg.NewsAPICategory == "" {
		cfg.NewsAPICategory = "business"
	}
	cfg.NewsAPIPageSize = positiveInt("NEWSAPI_PAGE_SIZE", 30)

	cfg.RSSFeeds = splitList(os.Getenv("RSS_FEEDS"))
	if len(cfg.RSSFeeds) == 0 {
		cfg.RSSFeeds = append([]string(nil), defaultRSSFeeds...)
	}

	cfg.CollectMaxPages = positiveInt("COLLECT_MAX_PAGES", 5)
	cfg.CollectRetries = positiveInt("COLLECT_RETRY_ATTEMPTS", 3)
	cfg.CollectLookback = positiveInt("COLLECT_LOOKBACK_HOURS", 24)
	cfg.FetchArticleBody = strings.EqualFold(strings.TrimSpace(os.Getenv("FETCH_ARTICLE_BODY")), "true")

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, using heuristic scoring only")
	}
	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	cfg.EnrichMaxInputChars = positiveInt("ENRICH_MAX_INPUT_CHARS", 5000)
	cfg.EnrichCallTimeoutSecs = positiveInt("ENRICH_CALL_TIMEOUT_SECS", 30)

	cfg.DefaultMarket = strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_MARKET")))
	if cfg.DefaultMarket == "" {
		cfg.DefaultMarket = "NSE"
	}
	cfg.UnresolvedTTLHours = positiveInt("UNRESOLVED_TTL_HOURS", 24)

	cfg.ResolveMinConfidence = 0.5
	if v := strings.TrimSpace(os.Getenv("RESOLVE_MIN_CONFIDENCE")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 && n <= 1 {
			cfg.ResolveMinConfidence = n
		}
	}

	cfg.TrendRisingPct = 1.0
	if v := strings.TrimSpace(os.Getenv("TREND_RISING_PCT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 {
			cfg.TrendRisingPct = n
		}
	}
	cfg.TrendFallingPct = -1.0
	if v := strings.TrimSpace(os.Getenv("TREND_FALLING_PCT")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n <= 0 {
			cfg.TrendFallingPct = n
		}
	}
	cfg.PriceWindowDays = positiveInt("PRICE_WINDOW_DAYS", 8)
	cfg.PriceRatePerMin = positiveInt("PRICE_RATE_PER_MIN", 60)

	cfg.WorkersCollect = positiveInt("WORKERS_COLLECT", 4)
	cfg.WorkersEnrich = positiveInt("WORKERS_ENRICH", 4)
	cfg.WorkersResolve = positiveInt("WORKERS_RESOLVE", 4)
	cfg.WorkersAnalyze = positiveInt("WORKERS_ANALYZE", 4)

	cfg.PipelineIntervalMins = positiveInt("PIPELINE_INTERVAL_MINS", 10)

	return cfg
}

func positiveInt(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
