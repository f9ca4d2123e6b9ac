package provider

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// BodyFetcher downloads an article page and extracts its paragraph text.
type BodyFetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	tracer   trace.Tracer
	maxChars int
}

func NewBodyFetcher(tracer trace.Tracer, maxChars int) *BodyFetcher {
	if maxChars <= 0 {
		maxChars = 20000
	}
	return &BodyFetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		limiter:  perMinute(120),
		tracer:   tracer,
		maxChars: maxChars,
	}
}

func (f *BodyFetcher) FetchBody(ctx context.Context, articleURL string) (string, error) {
	ctx, span := f.tracer.Start(ctx, "article-body.fetch")
	defer span.End()

	body, err := doGet(ctx, f.client, f.limiter, articleURL, map[string]string{"Accept": "text/html"})
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, header, footer, aside, form").Remove()

	paragraphs := doc.Find("article p")
	if paragraphs.Length() == 0 {
		paragraphs = doc.Find("p")
	}
	parts := make([]string, 0, paragraphs.Length())
	paragraphs.Each(func(_ int, sel *goquery.Selection) {
		if text := sanitizeText(sel.Text(), 0); text != "" {
			parts = append(parts, text)
		}
	})
	return sanitizeParagraphs(parts, f.maxChars), nil
}

func sanitizeParagraphs(parts []string, maxChars int) string {
	text := strings.Join(parts, "\n\n")
	if r := []rune(text); len(r) > maxChars {
		text = string(r[:maxChars])
	}
	return text
}
