package nlp

import (
	"context"
	"log"

	"newsimpact/internal/domain"
)

// Fallback tries each capability on the primary scorer and falls back to
// the secondary when it fails.
type Fallback struct {
	primary   Scorer
	secondary Scorer
}

// NewFallback returns secondary alone when primary is nil.
func NewFallback(primary, secondary Scorer) Scorer {
	if primary == nil {
		return secondary
	}
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) Model() string {
	return f.primary.Model() + "+" + f.secondary.Model()
}

func (f *Fallback) Summarize(ctx context.Context, text string, maxChars int) (string, error) {
	out, err := f.primary.Summarize(ctx, text, maxChars)
	if err == nil || ctx.Err() != nil {
		return out, err
	}
	log.Printf("nlp: %s summarize failed, falling back: %v", f.primary.Model(), err)
	return f.secondary.Summarize(ctx, text, maxChars)
}

func (f *Fallback) ScoreSentiment(ctx context.Context, text string) (domain.Sentiment, error) {
	out, err := f.primary.ScoreSentiment(ctx, text)
	if err == nil || ctx.Err() != nil {
		return out, err
	}
	log.Printf("nlp: %s sentiment failed, falling back: %v", f.primary.Model(), err)
	return f.secondary.ScoreSentiment(ctx, text)
}

func (f *Fallback) ExtractKeywords(ctx context.Context, text string, k int) ([]domain.Keyword, error) {
	out, err := f.primary.ExtractKeywords(ctx, text, k)
	if err == nil || ctx.Err() != nil {
		return out, err
	}
	log.Printf("nlp: %s keywords failed, falling back: %v", f.primary.Model(), err)
	return f.secondary.ExtractKeywords(ctx, text, k)
}

func (f *Fallback) ExtractCompanies(ctx context.Context, text string) ([]string, error) {
	out, err := f.primary.ExtractCompanies(ctx, text)
	if err == nil || ctx.Err() != nil {
		return out, err
	}
	log.Printf("nlp: %s companies failed, falling back: %v", f.primary.Model(), err)
	return f.secondary.ExtractCompanies(ctx, text)
}
