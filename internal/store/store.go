package store

import (
	"context"
	"encoding/json"
	"sort"

	"newsimpact/internal/domain"
)

// Store is the Article Store contract shared by the memory and Postgres
// implementations. Getters return nil, nil for absent records.
type Store interface {
	PutRaw(ctx context.Context, article *domain.RawArticle) error
	PutEnriched(ctx context.Context, article *domain.EnrichedArticle) error
	PutResolution(ctx context.Context, res *domain.ArticleResolution) error
	PutAnalysis(ctx context.Context, analysis *domain.ArticleAnalysis) error

	GetRaw(ctx context.Context, id string) (*domain.RawArticle, error)
	GetEnriched(ctx context.Context, id string) (*domain.EnrichedArticle, error)
	GetResolution(ctx context.Context, id string) (*domain.ArticleResolution, error)
	GetAnalysis(ctx context.Context, id string) (*domain.ArticleAnalysis, error)

	ListPending(ctx context.Context, stage domain.Stage) ([]string, error)
	ListIDs(ctx context.Context, stage domain.Stage) ([]string, error)
	ListEnriched(ctx context.Context) ([]domain.EnrichedArticle, error)
	ListAnalyses(ctx context.Context) ([]domain.ArticleAnalysis, error)
	ListVerdicts(ctx context.Context, symbol string, limit int) ([]domain.ImpactVerdict, error)
}

func encode(stage domain.Stage, id string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, domain.NewStorageError("encode "+string(stage), id, err)
	}
	return data, nil
}

func decode[T any](stage domain.Stage, id string, data []byte) (*T, error) {
	if data == nil {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, domain.NewStorageError("decode "+string(stage), id, err)
	}
	return &out, nil
}

// flattenVerdicts returns verdicts newest first, optionally filtered by symbol.
func flattenVerdicts(analyses []domain.ArticleAnalysis, symbol string, limit int) []domain.ImpactVerdict {
	var out []domain.ImpactVerdict
	for _, a := range analyses {
		for _, v := range a.Verdicts {
			if symbol != "" && v.Symbol != symbol {
				continue
			}
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ComputedAt.Equal(out[j].ComputedAt) {
			return out[i].ComputedAt.After(out[j].ComputedAt)
		}
		if out[i].ArticleID != out[j].ArticleID {
			return out[i].ArticleID < out[j].ArticleID
		}
		return out[i].Symbol < out[j].Symbol
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
