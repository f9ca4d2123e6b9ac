package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// DefaultFinanceKeywords keeps general feeds to market news.
var DefaultFinanceKeywords = []string{
	"stock", "stocks", "share", "shares", "market", "markets", "earnings",
	"revenue", "profit", "investor", "investors", "trading", "nasdaq", "dow",
	"s&p", "sensex", "nifty", "ipo", "merger", "acquisition", "economy",
	"inflation", "fed", "rbi", "dividend", "quarter", "results",
}

// RSSSource reads a fixed list of feeds, one feed per page. The cursor is
// the index of the next feed.
type RSSSource struct {
	client   *http.Client
	limiter  *rate.Limiter
	tracer   trace.Tracer
	parser   *gofeed.Parser
	feeds    []string
	keywords []string
	maxItems int
}

func NewRSSSource(tracer trace.Tracer, feeds, keywords []string, maxItems int) *RSSSource {
	if maxItems <= 0 {
		maxItems = 40
	}
	return &RSSSource{
		client:   &http.Client{Timeout: 20 * time.Second},
		limiter:  perMinute(60),
		tracer:   tracer,
		parser:   gofeed.NewParser(),
		feeds:    feeds,
		keywords: keywords,
		maxItems: maxItems,
	}
}

func (s *RSSSource) Name() string { return "rss" }

func (s *RSSSource) FetchPage(ctx context.Context, cursor string) (Page, error) {
	ctx, span := s.tracer.Start(ctx, "rss.fetch-page")
	defer span.End()

	idx, err := feedIndex(cursor)
	if err != nil {
		return Page{}, err
	}
	if idx >= len(s.feeds) {
		return Page{}, nil
	}

	var out Page
	if idx+1 < len(s.feeds) {
		out.NextCursor = strconv.Itoa(idx + 1)
	}

	feedURL := strings.TrimSpace(s.feeds[idx])
	body, err := doGet(ctx, s.client, s.limiter, feedURL, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml, text/xml",
	})
	if err != nil {
		return out, err
	}
	feed, err := s.parser.ParseString(string(body))
	if err != nil {
		return out, fmt.Errorf("decode feed %s: %w", feedURL, err)
	}

	channel := sanitizeText(feed.Title, 120)
	for i, item := range feed.Items {
		if i >= s.maxItems {
			break
		}
		title := sanitizeText(item.Title, 300)
		text := cleanHTML(item.Description)
		if content := cleanHTML(item.Content); len(content) > len(text) {
			text = content
		}
		if !matchesKeywords(title+" "+text, s.keywords) {
			out.Filtered++
			continue
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}
		var author string
		if item.Author != nil {
			author = sanitizeText(item.Author.Name, 120)
		}
		link := strings.TrimSpace(item.Link)
		if link == "" && strings.HasPrefix(item.GUID, "http") {
			link = strings.TrimSpace(item.GUID)
		}

		out.Items = append(out.Items, SourceItem{
			URL:         link,
			Title:       title,
			Body:        text,
			Author:      author,
			Source:      channel,
			PublishedAt: published,
		})
	}
	return out, nil
}

// SkipCursor moves past a feed that keeps failing.
func (s *RSSSource) SkipCursor(cursor string) (string, bool) {
	idx, err := feedIndex(cursor)
	if err != nil || idx+1 >= len(s.feeds) {
		return "", false
	}
	return strconv.Itoa(idx + 1), true
}

func feedIndex(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	idx, err := strconv.Atoi(cursor)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("invalid feed cursor %q", cursor)
	}
	return idx, nil
}

func matchesKeywords(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// cleanHTML returns the visible text of an HTML fragment.
func cleanHTML(in string) string {
	if strings.TrimSpace(in) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in))
	if err != nil {
		return sanitizeText(in, 0)
	}
	doc.Find("script, style").Remove()
	return sanitizeText(doc.Text(), 0)
}
