package enrich

import (
	"context"
	"strings"
	"time"

	"newsimpact/internal/domain"
	"newsimpact/internal/nlp"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	MaxInputChars       int
	SummaryMinChars     int
	SummaryInputChars   int
	SummaryMaxChars     int
	SentimentInputChars int
	Keywords            int
	CallTimeout         time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxInputChars:       5000,
		SummaryMinChars:     60,
		SummaryInputChars:   3000,
		SummaryMaxChars:     600,
		SentimentInputChars: 512,
		Keywords:            7,
		CallTimeout:         30 * time.Second,
	}
}

type Engine struct {
	tracer trace.Tracer
	scorer nlp.Scorer
	cfg    Config
	now    func() time.Time
}

func NewEngine(tracer trace.Tracer, scorer nlp.Scorer, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = def.MaxInputChars
	}
	if cfg.SummaryMinChars <= 0 {
		cfg.SummaryMinChars = def.SummaryMinChars
	}
	if cfg.SummaryInputChars <= 0 {
		cfg.SummaryInputChars = def.SummaryInputChars
	}
	if cfg.SummaryMaxChars <= 0 {
		cfg.SummaryMaxChars = def.SummaryMaxChars
	}
	if cfg.SentimentInputChars <= 0 {
		cfg.SentimentInputChars = def.SentimentInputChars
	}
	if cfg.Keywords <= 0 {
		cfg.Keywords = def.Keywords
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	return &Engine{tracer: tracer, scorer: scorer, cfg: cfg, now: time.Now}
}

// Enrich scores one article. A failing scoring call leaves its field empty
// and is listed in FieldErrors; the other fields are still produced. The
// returned error is non-nil only when ctx is done.
func (e *Engine) Enrich(ctx context.Context, raw *domain.RawArticle) (*domain.EnrichedArticle, error) {
	ctx, span := e.tracer.Start(ctx, "enrich.article")
	defer span.End()
	span.SetAttributes(attribute.String("article_id", raw.ID))

	text, truncated := nlp.Truncate(articleText(raw), e.cfg.MaxInputChars)
	out := &domain.EnrichedArticle{
		ArticleID: raw.ID,
		Truncated: truncated,
		Model:     e.scorer.Model(),
	}

	summaryInput := strings.TrimSpace(raw.Body)
	if summaryInput == "" {
		summaryInput = strings.TrimSpace(raw.Title)
	}
	summaryInput, _ = nlp.Truncate(summaryInput, e.cfg.MaxInputChars)
	if len([]rune(summaryInput)) < e.cfg.SummaryMinChars {
		out.Summary = summaryInput
	} else {
		head, _ := nlp.Truncate(summaryInput, e.cfg.SummaryInputChars)
		summary, err := call(ctx, e.cfg.CallTimeout, func(ctx context.Context) (string, error) {
			return e.scorer.Summarize(ctx, head, e.cfg.SummaryMaxChars)
		})
		if err != nil {
			out.FieldErrors = append(out.FieldErrors, fieldError(domain.FieldSummary, err))
		} else {
			out.Summary, _ = nlp.Truncate(summary, e.cfg.SummaryMaxChars)
		}
	}

	head, _ := nlp.Truncate(text, e.cfg.SentimentInputChars)
	sentiment, err := call(ctx, e.cfg.CallTimeout, func(ctx context.Context) (domain.Sentiment, error) {
		return e.scorer.ScoreSentiment(ctx, head)
	})
	if err != nil {
		out.FieldErrors = append(out.FieldErrors, fieldError(domain.FieldSentiment, err))
	} else {
		out.Sentiment = &sentiment
	}

	keywords, err := call(ctx, e.cfg.CallTimeout, func(ctx context.Context) ([]domain.Keyword, error) {
		return e.scorer.ExtractKeywords(ctx, text, e.cfg.Keywords)
	})
	if err != nil {
		out.FieldErrors = append(out.FieldErrors, fieldError(domain.FieldKeywords, err))
	} else {
		if len(keywords) > e.cfg.Keywords {
			keywords = keywords[:e.cfg.Keywords]
		}
		out.Keywords = keywords
	}

	companies, err := call(ctx, e.cfg.CallTimeout, func(ctx context.Context) ([]string, error) {
		return e.scorer.ExtractCompanies(ctx, text)
	})
	if err != nil {
		out.FieldErrors = append(out.FieldErrors, fieldError(domain.FieldCompanies, err))
	} else {
		out.Companies = dedupeCompanies(companies)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if out.Keywords == nil {
		out.Keywords = []domain.Keyword{}
	}
	if out.Companies == nil {
		out.Companies = []string{}
	}
	out.EnrichedAt = e.now().UTC()
	span.SetAttributes(attribute.Int("field_errors", len(out.FieldErrors)))
	return out, nil
}

// articleText joins title and body the way every scoring call sees them.
func articleText(raw *domain.RawArticle) string {
	title := strings.TrimSpace(raw.Title)
	body := strings.TrimSpace(raw.Body)
	switch {
	case body == "":
		return title
	case title == "":
		return body
	default:
		return strings.TrimSuffix(title, ".") + ". " + body
	}
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func fieldError(field string, err error) domain.FieldError {
	return domain.FieldError{Field: field, Message: err.Error()}
}

func dedupeCompanies(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := domain.NormalizeCompanyName(n)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
