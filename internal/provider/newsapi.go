package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const newsAPIBaseURL = "https://newsapi.org/v2"

var truncatedContentRe = regexp.MustCompile(`\s*\[\+\d+ chars\]\s*$`)

// NewsAPISource pages through NewsAPI top headlines. The cursor is the page
// number. Headlines that mention none of the keywords are dropped.
type NewsAPISource struct {
	client   *http.Client
	limiter  *rate.Limiter
	tracer   trace.Tracer
	baseURL  string
	apiKey   string
	country  string
	category string
	pageSize int
	keywords []string
}

func NewNewsAPISource(tracer trace.Tracer, apiKey, country, category string, pageSize int, keywords []string) *NewsAPISource {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 50
	}
	return &NewsAPISource{
		client:   &http.Client{Timeout: 20 * time.Second},
		limiter:  perMinute(30),
		tracer:   tracer,
		baseURL:  newsAPIBaseURL,
		apiKey:   apiKey,
		country:  country,
		category: category,
		pageSize: pageSize,
		keywords: keywords,
	}
}

func (s *NewsAPISource) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status       string            `json:"status"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	TotalResults int               `json:"totalResults"`
	Articles     []json.RawMessage `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

func (s *NewsAPISource) FetchPage(ctx context.Context, cursor string) (Page, error) {
	ctx, span := s.tracer.Start(ctx, "newsapi.fetch-page")
	defer span.End()

	page, err := pageNumber(cursor)
	if err != nil {
		return Page{}, err
	}

	q := url.Values{}
	if s.country != "" {
		q.Set("country", s.country)
	}
	if s.category != "" {
		q.Set("category", s.category)
	}
	q.Set("pageSize", strconv.Itoa(s.pageSize))
	q.Set("page", strconv.Itoa(page))
	endpoint := fmt.Sprintf("%s/top-headlines?%s", s.baseURL, q.Encode())

	body, err := doGet(ctx, s.client, s.limiter, endpoint, map[string]string{"X-Api-Key": s.apiKey})
	if err != nil {
		return Page{}, err
	}

	var resp newsAPIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Page{}, fmt.Errorf("decode newsapi payload: %w", err)
	}
	if resp.Status == "error" {
		return Page{}, fmt.Errorf("newsapi error %s: %s", resp.Code, resp.Message)
	}

	out := Page{Items: make([]SourceItem, 0, len(resp.Articles))}
	for _, raw := range resp.Articles {
		var a newsAPIArticle
		if err := json.Unmarshal(raw, &a); err != nil {
			out.Items = append(out.Items, SourceItem{Source: s.Name(), Err: fmt.Errorf("decode article: %w", err)})
			continue
		}
		title := sanitizeText(a.Title, 300)
		body := newsAPIBody(a.Description, a.Content)
		if !matchesKeywords(title+" "+body, s.keywords) {
			out.Filtered++
			continue
		}
		published, _ := time.Parse(time.RFC3339, strings.TrimSpace(a.PublishedAt))
		out.Items = append(out.Items, SourceItem{
			URL:         strings.TrimSpace(a.URL),
			Title:       title,
			Body:        body,
			Author:      sanitizeText(a.Author, 120),
			Source:      sanitizeText(a.Source.Name, 120),
			PublishedAt: published.UTC(),
		})
	}

	if len(resp.Articles) > 0 && page*s.pageSize < resp.TotalResults {
		out.NextCursor = strconv.Itoa(page + 1)
	}
	return out, nil
}

// SkipCursor returns the page after cursor so a failing page can be skipped.
func (s *NewsAPISource) SkipCursor(cursor string) (string, bool) {
	page, err := pageNumber(cursor)
	if err != nil {
		return "", false
	}
	return strconv.Itoa(page + 1), true
}

func pageNumber(cursor string) (int, error) {
	if cursor == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(cursor)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page cursor %q", cursor)
	}
	return page, nil
}

// newsAPIBody joins description and the truncated content snippet.
func newsAPIBody(description, content string) string {
	description = strings.TrimSpace(description)
	content = strings.TrimSpace(truncatedContentRe.ReplaceAllString(content, ""))
	if content == "" {
		return description
	}
	if description == "" || strings.HasPrefix(content, description) {
		return content
	}
	return description + "\n\n" + content
}
