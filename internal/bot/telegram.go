package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"newsimpact/internal/domain"

	tele "gopkg.in/telebot.v3"
)

const replyTimeout = 15 * time.Second

type ArticleReader interface {
	GetRaw(ctx context.Context, id string) (*domain.RawArticle, error)
	GetEnriched(ctx context.Context, id string) (*domain.EnrichedArticle, error)
	GetAnalysis(ctx context.Context, id string) (*domain.ArticleAnalysis, error)
	ListVerdicts(ctx context.Context, symbol string, limit int) ([]domain.ImpactVerdict, error)
}

type SymbolResolver interface {
	Resolve(ctx context.Context, name string) (domain.SymbolMapping, error)
}

// StartTelegramBot serves read-only lookups over the article store and the
// resolver. It does nothing when TELEGRAM_BOT_TOKEN is unset.
func StartTelegramBot(articles ArticleReader, resolver SymbolResolver) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})
	b.Handle("/resolve", reply(func(ctx context.Context, args []string) string {
		return resolveReply(ctx, resolver, args)
	}))
	b.Handle("/impact", reply(func(ctx context.Context, args []string) string {
		return impactReply(ctx, articles, args)
	}))
	b.Handle("/article", reply(func(ctx context.Context, args []string) string {
		return articleReply(ctx, articles, args)
	}))

	log.Println("Telegram bot started")
	go b.Start()
}

func reply(fn func(ctx context.Context, args []string) string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		return c.Send(fn(ctx, c.Args()))
	}
}

func resolveReply(ctx context.Context, resolver SymbolResolver, args []string) string {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return "Usage: /resolve Tata Motors"
	}
	m, err := resolver.Resolve(ctx, name)
	if err != nil {
		return fmt.Sprintf("Error resolving %s: %v", name, err)
	}
	if !m.Resolved() {
		return fmt.Sprintf("%s: unresolved (%s)", name, m.Reason)
	}
	return fmt.Sprintf("%s\nSymbol: %s\nExchange: %s\nConfidence: %.2f\nSource: %s",
		name, m.Symbol, m.Exchange, m.Confidence, m.Source)
}

func impactReply(ctx context.Context, articles ArticleReader, args []string) string {
	if len(args) == 0 {
		return "Usage: /impact TATAMOTORS"
	}
	symbol := strings.ToUpper(args[0])
	verdicts, err := articles.ListVerdicts(ctx, symbol, 5)
	if err != nil {
		return fmt.Sprintf("Error fetching verdicts for %s: %v", symbol, err)
	}
	if len(verdicts) == 0 {
		return fmt.Sprintf("No verdicts for %s yet", symbol)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s latest impact\n", symbol)
	for _, v := range verdicts {
		fmt.Fprintf(&b, "\n%s %s (score %+.2f)\n%s\narticle %s",
			v.ComputedAt.Format("2006-01-02 15:04"), v.Impact, v.Score, v.Rationale, shortID(v.ArticleID))
	}
	return b.String()
}

func articleReply(ctx context.Context, articles ArticleReader, args []string) string {
	if len(args) == 0 {
		return "Usage: /article <id>"
	}
	id := strings.TrimSpace(args[0])
	raw, err := articles.GetRaw(ctx, id)
	if err != nil {
		return fmt.Sprintf("Error fetching article %s: %v", shortID(id), err)
	}
	if raw == nil {
		return fmt.Sprintf("Unknown article: %s", shortID(id))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s", raw.Title, raw.URL)

	enriched, err := articles.GetEnriched(ctx, id)
	if err != nil {
		return fmt.Sprintf("Error fetching article %s: %v", shortID(id), err)
	}
	if enriched == nil {
		b.WriteString("\n\nNot enriched yet")
		return b.String()
	}
	if enriched.Summary != "" {
		fmt.Fprintf(&b, "\n\n%s", enriched.Summary)
	}
	if enriched.Sentiment != nil {
		fmt.Fprintf(&b, "\nSentiment: %s (%.2f)", enriched.Sentiment.Label, enriched.Sentiment.Confidence)
	} else {
		b.WriteString("\nSentiment: unavailable")
	}
	if len(enriched.Companies) > 0 {
		fmt.Fprintf(&b, "\nCompanies: %s", strings.Join(enriched.Companies, ", "))
	}

	analysis, err := articles.GetAnalysis(ctx, id)
	if err != nil {
		return fmt.Sprintf("Error fetching article %s: %v", shortID(id), err)
	}
	if analysis != nil {
		for _, v := range analysis.Verdicts {
			fmt.Fprintf(&b, "\n%s: %s (%s)", v.Symbol, v.Impact, v.Strength)
		}
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
