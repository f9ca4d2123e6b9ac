package collector

import (
	"context"
	"errors"
	"iter"
	"log"
	"strings"
	"time"

	"newsimpact/internal/domain"
	"newsimpact/internal/provider"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Source is a paginated news source.
type Source interface {
	Name() string
	FetchPage(ctx context.Context, cursor string) (provider.Page, error)
}

// cursorSkipper is implemented by sources that can move past a page that
// failed to load.
type cursorSkipper interface {
	SkipCursor(cursor string) (string, bool)
}

type BodyFetcher interface {
	FetchBody(ctx context.Context, articleURL string) (string, error)
}

type Config struct {
	MaxPages     int
	Retries      int
	RetryInitial time.Duration
	MinBodyChars int
	BodyWorkers  int
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 5
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 500 * time.Millisecond
	}
	if c.MinBodyChars <= 0 {
		c.MinBodyChars = 200
	}
	if c.BodyWorkers <= 0 {
		c.BodyWorkers = 4
	}
	return c
}

// Run holds the counters of one source's collection. It is complete once
// the sequence returned with it has been drained.
type Run struct {
	Source      string
	Fetched     int
	Yielded     int
	Malformed   int
	Old         int
	Duplicates  int
	Filtered    int
	PagesOK     int
	PagesFailed int
	Errors      []domain.CollectionError
}

// Unavailable reports whether every page fetched from the source failed.
func (r *Run) Unavailable() bool {
	return r.PagesOK == 0 && r.PagesFailed > 0
}

type Collector struct {
	tracer trace.Tracer
	cfg    Config
	body   BodyFetcher
	now    func() time.Time
}

// New builds a collector. body may be nil, in which case short bodies are
// kept as the source reported them.
func New(tracer trace.Tracer, cfg Config, body BodyFetcher) *Collector {
	return &Collector{tracer: tracer, cfg: cfg.withDefaults(), body: body, now: time.Now}
}

// Collect returns a lazy sequence of the source's articles published at or
// after since, de-duplicated by id.
func (c *Collector) Collect(ctx context.Context, src Source, since time.Time) (iter.Seq[domain.RawArticle], *Run) {
	run := &Run{Source: src.Name()}
	seq := func(yield func(domain.RawArticle) bool) {
		c.collect(ctx, src, since, newSeenSet(), run, yield)
	}
	return seq, run
}

// CollectAll chains the sources in order. An article reported by more than
// one source, under the same URL or the same title, is yielded once.
func (c *Collector) CollectAll(ctx context.Context, sources []Source, since time.Time) (iter.Seq[domain.RawArticle], []*Run) {
	runs := make([]*Run, len(sources))
	for i, src := range sources {
		runs[i] = &Run{Source: src.Name()}
	}
	seq := func(yield func(domain.RawArticle) bool) {
		seen := newSeenSet()
		for i, src := range sources {
			if !c.collect(ctx, src, since, seen, runs[i], yield) {
				return
			}
		}
	}
	return seq, runs
}

// collect drains one source and reports whether the consumer wants more.
func (c *Collector) collect(ctx context.Context, src Source, since time.Time, seen *seenSet, run *Run, yield func(domain.RawArticle) bool) bool {
	ctx, span := c.tracer.Start(ctx, "collector.collect")
	defer span.End()

	cursor := ""
	for pages := 0; pages < c.cfg.MaxPages; pages++ {
		if ctx.Err() != nil {
			return false
		}

		page, err := c.fetchPage(ctx, src, cursor)
		if err != nil {
			run.PagesFailed++
			run.Errors = append(run.Errors, domain.CollectionError{
				Source: src.Name(),
				Cursor: cursor,
				Kind:   domain.CollectionFetchFailed,
				Err:    err.Error(),
			})
			log.Printf("collector: %s page %q failed: %v", src.Name(), cursor, err)
			if ctx.Err() != nil {
				return false
			}
			skipper, ok := src.(cursorSkipper)
			if !ok {
				return true
			}
			next, ok := skipper.SkipCursor(cursor)
			if !ok {
				return true
			}
			cursor = next
			continue
		}

		run.PagesOK++
		run.Filtered += page.Filtered
		if len(page.Items) == 0 && page.Filtered == 0 {
			return true
		}

		var batch []domain.RawArticle
		for _, item := range page.Items {
			run.Fetched++
			article, err := c.toRaw(src, item)
			if err != nil {
				run.Malformed++
				run.Errors = append(run.Errors, domain.CollectionError{
					Source: src.Name(),
					Cursor: cursor,
					Kind:   domain.CollectionMalformed,
					Err:    err.Error(),
				})
				continue
			}
			if !since.IsZero() && article.PublishedAt.Before(since) {
				run.Old++
				continue
			}
			if !seen.add(article) {
				run.Duplicates++
				continue
			}
			batch = append(batch, article)
		}

		c.fillBodies(ctx, batch)
		for _, article := range batch {
			run.Yielded++
			if !yield(article) {
				return false
			}
		}

		if page.NextCursor == "" {
			return true
		}
		cursor = page.NextCursor
	}
	return true
}

// seenSet tracks the articles already yielded in one collection. Wire
// stories reach several feeds under different URLs, so titles count too.
type seenSet struct {
	ids    map[string]bool
	titles map[string]bool
}

func newSeenSet() *seenSet {
	return &seenSet{ids: make(map[string]bool), titles: make(map[string]bool)}
}

// add records the article and reports whether it was new.
func (s *seenSet) add(article domain.RawArticle) bool {
	title := titleKey(article.Title)
	if s.ids[article.ID] || s.titles[title] {
		return false
	}
	s.ids[article.ID] = true
	s.titles[title] = true
	return true
}

func titleKey(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), " "))
}

func (c *Collector) fetchPage(ctx context.Context, src Source, cursor string) (provider.Page, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInitial

	return backoff.Retry(ctx, func() (provider.Page, error) {
		page, err := src.FetchPage(ctx, cursor)
		if err != nil && !provider.IsTransient(err) {
			return page, backoff.Permanent(err)
		}
		return page, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(c.cfg.Retries)))
}

var (
	errMissingURL   = errors.New("missing url")
	errMissingTitle = errors.New("missing title")
)

func (c *Collector) toRaw(src Source, item provider.SourceItem) (domain.RawArticle, error) {
	if item.Err != nil {
		return domain.RawArticle{}, item.Err
	}
	if strings.TrimSpace(item.URL) == "" {
		return domain.RawArticle{}, errMissingURL
	}
	if strings.TrimSpace(item.Title) == "" {
		return domain.RawArticle{}, errMissingTitle
	}
	id, err := domain.ArticleID(item.URL)
	if err != nil {
		return domain.RawArticle{}, err
	}

	fetchedAt := c.now().UTC()
	published := item.PublishedAt
	if published.IsZero() {
		published = fetchedAt
	}
	source := item.Source
	if source == "" {
		source = src.Name()
	}
	return domain.RawArticle{
		ID:          id,
		URL:         item.URL,
		Title:       item.Title,
		PublishedAt: published.UTC(),
		Body:        item.Body,
		Source:      source,
		FetchedAt:   fetchedAt,
	}, nil
}

// fillBodies fetches the short bodies of one page with at most
// BodyWorkers requests in flight.
func (c *Collector) fillBodies(ctx context.Context, batch []domain.RawArticle) {
	if c.body == nil {
		return
	}
	var g errgroup.Group
	g.SetLimit(c.cfg.BodyWorkers)
	for i := range batch {
		g.Go(func() error {
			c.fillBody(ctx, &batch[i])
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Collector) fillBody(ctx context.Context, article *domain.RawArticle) {
	if c.body == nil || len([]rune(article.Body)) >= c.cfg.MinBodyChars {
		return
	}
	body, err := c.body.FetchBody(ctx, article.URL)
	if err != nil {
		log.Printf("collector: body fetch for %s failed: %v", article.URL, err)
		return
	}
	if len(body) > len(article.Body) {
		article.Body = body
	}
}
