package collector

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"newsimpact/internal/domain"
	"newsimpact/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

var testConfig = Config{MaxPages: 10, Retries: 3, RetryInitial: time.Millisecond}

type fakeSource struct {
	name  string
	pages map[string]provider.Page
	errs  map[string][]error
	calls map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{name: "fake", pages: map[string]provider.Page{}, errs: map[string][]error{}, calls: map[string]int{}}
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) FetchPage(ctx context.Context, cursor string) (provider.Page, error) {
	n := s.calls[cursor]
	s.calls[cursor]++
	if errs := s.errs[cursor]; n < len(errs) && errs[n] != nil {
		return provider.Page{}, errs[n]
	}
	return s.pages[cursor], nil
}

type skippingSource struct {
	*fakeSource
	next map[string]string
}

func (s skippingSource) SkipCursor(cursor string) (string, bool) {
	next, ok := s.next[cursor]
	return next, ok
}

func item(url, title string) provider.SourceItem {
	return provider.SourceItem{URL: url, Title: title, Body: "body", PublishedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func drain(seq func(func(domain.RawArticle) bool)) []domain.RawArticle {
	var out []domain.RawArticle
	for a := range seq {
		out = append(out, a)
	}
	return out
}

func TestCollectPaginatesAndDeduplicates(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = provider.Page{Items: []provider.SourceItem{
		item("https://news.example/a", "A"),
		item("https://news.example/a?utm_source=x", "A again"),
	}, NextCursor: "2"}
	src.pages["2"] = provider.Page{Items: []provider.SourceItem{
		item("https://news.example/b", "B"),
		item("https://NEWS.example/a/", "A third time"),
	}}

	c := New(testTracer, testConfig, nil)
	seq, run := c.Collect(context.Background(), src, time.Time{})
	got := drain(seq)

	if len(got) != 2 {
		t.Fatalf("expected 2 unique articles, got %d", len(got))
	}
	if run.Duplicates != 2 || run.Yielded != 2 || run.PagesOK != 2 {
		t.Fatalf("unexpected run: %+v", run)
	}
	want, _ := domain.ArticleID("https://news.example/a")
	if got[0].ID != want || got[0].Source != "fake" {
		t.Fatalf("unexpected first article: %+v", got[0])
	}
}

func TestCollectIsLazy(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = provider.Page{Items: []provider.SourceItem{item("https://news.example/a", "A")}, NextCursor: "2"}
	src.pages["2"] = provider.Page{Items: []provider.SourceItem{item("https://news.example/b", "B")}}

	c := New(testTracer, testConfig, nil)
	seq, _ := c.Collect(context.Background(), src, time.Time{})
	if src.calls[""] != 0 {
		t.Fatal("expected no fetch before iteration")
	}
	for range seq {
		break
	}
	if src.calls["2"] != 0 {
		t.Fatal("expected second page not to be fetched after early break")
	}
}

func TestCollectEmptyPageStops(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = provider.Page{NextCursor: "2"}
	src.pages["2"] = provider.Page{Items: []provider.SourceItem{item("https://news.example/b", "B")}}

	c := New(testTracer, testConfig, nil)
	seq, run := c.Collect(context.Background(), src, time.Time{})
	got := drain(seq)

	if len(got) != 0 || src.calls["2"] != 0 {
		t.Fatalf("expected collection to stop at the empty page, got %d articles", len(got))
	}
	if len(run.Errors) != 0 || run.Unavailable() {
		t.Fatalf("expected no errors, got %+v", run)
	}
}

func TestCollectRetriesTransientErrors(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = provider.Page{Items: []provider.SourceItem{item("https://news.example/a", "A")}}
	src.errs[""] = []error{
		&provider.HTTPError{StatusCode: http.StatusServiceUnavailable},
		&provider.HTTPError{StatusCode: http.StatusTooManyRequests},
	}

	c := New(testTracer, testConfig, nil)
	seq, run := c.Collect(context.Background(), src, time.Time{})
	got := drain(seq)

	if len(got) != 1 || src.calls[""] != 3 {
		t.Fatalf("expected success on third attempt, got %d articles after %d calls", len(got), src.calls[""])
	}
	if run.PagesFailed != 0 {
		t.Fatalf("unexpected failures: %+v", run)
	}
}

func TestCollectSkipsPageAfterRetriesExhausted(t *testing.T) {
	fake := newFakeSource()
	down := &provider.HTTPError{StatusCode: http.StatusBadGateway}
	fake.errs[""] = []error{down, down, down}
	fake.pages["2"] = provider.Page{Items: []provider.SourceItem{item("https://news.example/b", "B")}}
	src := skippingSource{fakeSource: fake, next: map[string]string{"": "2"}}

	c := New(testTracer, testConfig, nil)
	seq, run := c.Collect(context.Background(), src, time.Time{})
	got := drain(seq)

	if fake.calls[""] != 3 {
		t.Fatalf("expected 3 attempts, got %d", fake.calls[""])
	}
	if len(got) != 1 {
		t.Fatalf("expected the next page to be collected, got %d", len(got))
	}
	if len(run.Errors) != 1 || run.Errors[0].Kind != domain.CollectionFetchFailed || run.Errors[0].Cursor != "" {
		t.Fatalf("expected one fetch error, got %+v", run.Errors)
	}
	if run.Unavailable() {
		t.Fatal("source with a successful page is available")
	}
}

func TestCollectPermanentErrorIsNotRetried(t *testing.T) {
	src := newFakeSource()
	src.errs[""] = []error{&provider.HTTPError{StatusCode: http.StatusUnauthorized}}

	c := New(testTracer, testConfig, nil)
	seq, run := c.Collect(context.Background(), src, time.Time{})
	drain(seq)

	if src.calls[""] != 1 {
		t.Fatalf("expected a single attempt, got %d", src.calls[""])
	}
	if !run.Unavailable() {
		t.Fatalf("expected source to be unavailable: %+v", run)
	}
}

func TestCollectSkipsMalformedAndOldItems(t *testing.T) {
	src := newFakeSource()
	old := item("https://news.example/old", "Old")
	old.PublishedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	src.pages[""] = provider.Page{Items: []provider.SourceItem{
		{Err: errors.New("decode article: bad json")},
		{Title: "no url"},
		{URL: "https://news.example/untitled"},
		{URL: "ftp://news.example/x", Title: "bad scheme"},
		old,
		item("https://news.example/good", "Good"),
	}}

	c := New(testTracer, testConfig, nil)
	seq, run := c.Collect(context.Background(), src, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	got := drain(seq)

	if len(got) != 1 || got[0].Title != "Good" {
		t.Fatalf("expected only the good article, got %+v", got)
	}
	if run.Malformed != 4 || run.Old != 1 {
		t.Fatalf("unexpected counters: %+v", run)
	}
	for _, e := range run.Errors {
		if e.Kind != domain.CollectionMalformed {
			t.Fatalf("unexpected error kind: %+v", e)
		}
	}
}

func TestCollectRespectsMaxPages(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = provider.Page{Items: []provider.SourceItem{item("https://news.example/a", "A")}, NextCursor: "2"}
	src.pages["2"] = provider.Page{Items: []provider.SourceItem{item("https://news.example/b", "B")}, NextCursor: "3"}

	cfg := testConfig
	cfg.MaxPages = 1
	c := New(testTracer, cfg, nil)
	seq, _ := c.Collect(context.Background(), src, time.Time{})
	if got := drain(seq); len(got) != 1 {
		t.Fatalf("expected 1 page worth of articles, got %d", len(got))
	}
}

type fakeBody struct {
	body string
	err  error
	hits atomic.Int32
}

func (f *fakeBody) FetchBody(ctx context.Context, articleURL string) (string, error) {
	f.hits.Add(1)
	return f.body, f.err
}

func TestCollectFillsShortBodies(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = provider.Page{Items: []provider.SourceItem{item("https://news.example/a", "A")}}
	body := &fakeBody{body: "Tata Motors reported record quarterly sales across all segments."}

	c := New(testTracer, testConfig, body)
	seq, _ := c.Collect(context.Background(), src, time.Time{})
	got := drain(seq)

	if body.hits.Load() != 1 || got[0].Body != body.body {
		t.Fatalf("expected fetched body, got %q", got[0].Body)
	}
}

func TestCollectKeepsBodyWhenFetchFails(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = provider.Page{Items: []provider.SourceItem{item("https://news.example/a", "A")}}

	c := New(testTracer, testConfig, &fakeBody{err: errors.New("timeout")})
	seq, _ := c.Collect(context.Background(), src, time.Time{})
	got := drain(seq)

	if len(got) != 1 || got[0].Body != "body" {
		t.Fatalf("expected original body, got %+v", got)
	}
}

func TestCollectAllDeduplicatesAcrossSources(t *testing.T) {
	a := newFakeSource()
	a.name = "a"
	a.pages[""] = provider.Page{Items: []provider.SourceItem{item("https://news.example/x", "X")}}
	b := newFakeSource()
	b.name = "b"
	b.pages[""] = provider.Page{Items: []provider.SourceItem{
		item("https://news.example/x#comments", "X"),
		item("https://news.example/y", "Y"),
	}}

	c := New(testTracer, testConfig, nil)
	seq, runs := c.CollectAll(context.Background(), []Source{a, b}, time.Time{})
	got := drain(seq)

	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	if runs[1].Duplicates != 1 || runs[0].Source != "a" {
		t.Fatalf("unexpected runs: %+v %+v", runs[0], runs[1])
	}
}

func TestCollectAllDropsSyndicatedTitles(t *testing.T) {
	reuters := newFakeSource()
	reuters.name = "reuters"
	reuters.pages[""] = provider.Page{Items: []provider.SourceItem{
		item("https://www.reuters.com/markets/tata-motors-profit", "Tata Motors profit jumps"),
	}}
	yahoo := newFakeSource()
	yahoo.name = "yahoo"
	yahoo.pages[""] = provider.Page{Items: []provider.SourceItem{
		item("https://finance.yahoo.com/news/tata-motors-profit-jumps", "  tata motors   PROFIT jumps"),
		item("https://finance.yahoo.com/news/infosys-guidance", "Infosys raises guidance"),
	}}

	c := New(testTracer, testConfig, nil)
	seq, runs := c.CollectAll(context.Background(), []Source{reuters, yahoo}, time.Time{})
	got := drain(seq)

	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	if got[0].Source != "reuters" || got[1].Title != "Infosys raises guidance" {
		t.Fatalf("unexpected articles: %+v", got)
	}
	if runs[1].Duplicates != 1 || runs[1].Yielded != 1 {
		t.Fatalf("expected the syndicated copy counted as duplicate, got %+v", runs[1])
	}
}

func TestCollectFillsBodiesInPageOrder(t *testing.T) {
	src := newFakeSource()
	src.pages[""] = provider.Page{Items: []provider.SourceItem{
		item("https://news.example/a", "A"),
		item("https://news.example/b", "B"),
		item("https://news.example/c", "C"),
	}}
	body := &fakeBody{body: "Tata Steel expanded capacity at its Kalinganagar plant this quarter."}

	c := New(testTracer, Config{MaxPages: 1, Retries: 1, RetryInitial: time.Millisecond, BodyWorkers: 2}, body)
	seq, run := c.Collect(context.Background(), src, time.Time{})
	got := drain(seq)

	if len(got) != 3 || body.hits.Load() != 3 || run.Yielded != 3 {
		t.Fatalf("expected 3 articles with fetched bodies, got %d (hits=%d)", len(got), body.hits.Load())
	}
	for i, title := range []string{"A", "B", "C"} {
		if got[i].Title != title || got[i].Body != body.body {
			t.Fatalf("article %d: expected %s with body, got %+v", i, title, got[i])
		}
	}
}
