package store

import (
	"context"
	"sort"
	"sync"

	"newsimpact/internal/domain"
)

// MemoryStore keeps encoded records so callers never share mutable state
// with the store. Writes replace a whole record under the write lock.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[domain.Stage]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	records := make(map[domain.Stage]map[string][]byte, len(domain.Stages))
	for _, s := range domain.Stages {
		records[s] = make(map[string][]byte)
	}
	return &MemoryStore{records: records}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) put(ctx context.Context, stage domain.Stage, id string, v any) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("put "+string(stage), id, err)
	}
	data, err := encode(stage, id, v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.records[stage][id] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) get(stage domain.Stage, id string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[stage][id]
}

func (m *MemoryStore) PutRaw(ctx context.Context, article *domain.RawArticle) error {
	return m.put(ctx, domain.StageCollect, article.ID, article)
}

func (m *MemoryStore) PutEnriched(ctx context.Context, article *domain.EnrichedArticle) error {
	return m.put(ctx, domain.StageEnrich, article.ArticleID, article)
}

func (m *MemoryStore) PutResolution(ctx context.Context, res *domain.ArticleResolution) error {
	return m.put(ctx, domain.StageResolve, res.ArticleID, res)
}

func (m *MemoryStore) PutAnalysis(ctx context.Context, analysis *domain.ArticleAnalysis) error {
	return m.put(ctx, domain.StageAnalyze, analysis.ArticleID, analysis)
}

func (m *MemoryStore) GetRaw(ctx context.Context, id string) (*domain.RawArticle, error) {
	return decode[domain.RawArticle](domain.StageCollect, id, m.get(domain.StageCollect, id))
}

func (m *MemoryStore) GetEnriched(ctx context.Context, id string) (*domain.EnrichedArticle, error) {
	return decode[domain.EnrichedArticle](domain.StageEnrich, id, m.get(domain.StageEnrich, id))
}

func (m *MemoryStore) GetResolution(ctx context.Context, id string) (*domain.ArticleResolution, error) {
	return decode[domain.ArticleResolution](domain.StageResolve, id, m.get(domain.StageResolve, id))
}

func (m *MemoryStore) GetAnalysis(ctx context.Context, id string) (*domain.ArticleAnalysis, error) {
	return decode[domain.ArticleAnalysis](domain.StageAnalyze, id, m.get(domain.StageAnalyze, id))
}

func (m *MemoryStore) ListPending(ctx context.Context, stage domain.Stage) ([]string, error) {
	prev, ok := stage.Previous()
	if !ok {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	for id := range m.records[prev] {
		if _, done := m.records[stage][id]; !done {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) ListIDs(ctx context.Context, stage domain.Stage) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.records[stage]))
	for id := range m.records[stage] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) ListEnriched(ctx context.Context) ([]domain.EnrichedArticle, error) {
	return listAll[domain.EnrichedArticle](m, domain.StageEnrich)
}

func (m *MemoryStore) ListAnalyses(ctx context.Context) ([]domain.ArticleAnalysis, error) {
	return listAll[domain.ArticleAnalysis](m, domain.StageAnalyze)
}

func (m *MemoryStore) ListVerdicts(ctx context.Context, symbol string, limit int) ([]domain.ImpactVerdict, error) {
	analyses, err := m.ListAnalyses(ctx)
	if err != nil {
		return nil, err
	}
	return flattenVerdicts(analyses, symbol, limit), nil
}

func listAll[T any](m *MemoryStore, stage domain.Stage) ([]T, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.records[stage]))
	for id := range m.records[stage] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	payloads := make([][]byte, len(ids))
	for i, id := range ids {
		payloads[i] = m.records[stage][id]
	}
	m.mu.RUnlock()

	out := make([]T, 0, len(ids))
	for i, id := range ids {
		rec, err := decode[T](stage, id, payloads[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}
