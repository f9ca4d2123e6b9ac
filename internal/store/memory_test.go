package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"newsimpact/internal/domain"
)

func TestMemoryStoreGetAbsent(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.GetRaw(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent record, got %+v", got)
	}
}

func TestMemoryStoreLatestWriteWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.PutEnriched(ctx, &domain.EnrichedArticle{ArticleID: "a1", Summary: "first"})
	_ = s.PutEnriched(ctx, &domain.EnrichedArticle{ArticleID: "a1", Summary: "second"})

	got, err := s.GetEnriched(ctx, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "second" {
		t.Fatalf("expected latest write, got %q", got.Summary)
	}
	ids, _ := s.ListIDs(ctx, domain.StageEnrich)
	if len(ids) != 1 {
		t.Fatalf("expected one record per article, got %v", ids)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	in := &domain.EnrichedArticle{ArticleID: "a1", Companies: []string{"Tata Motors"}}
	_ = s.PutEnriched(ctx, in)
	in.Companies[0] = "mutated"

	got, _ := s.GetEnriched(ctx, "a1")
	if got.Companies[0] != "Tata Motors" {
		t.Fatalf("stored record was mutated through caller reference: %v", got.Companies)
	}
}

func TestMemoryStoreListPending(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		_ = s.PutRaw(ctx, &domain.RawArticle{ID: id})
	}
	_ = s.PutEnriched(ctx, &domain.EnrichedArticle{ArticleID: "b"})

	pending, err := s.ListPending(ctx, domain.StageEnrich)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(pending, []string{"a", "c"}) {
		t.Fatalf("expected [a c], got %v", pending)
	}

	pending, _ = s.ListPending(ctx, domain.StageResolve)
	if !reflect.DeepEqual(pending, []string{"b"}) {
		t.Fatalf("expected [b], got %v", pending)
	}

	pending, _ = s.ListPending(ctx, domain.StageCollect)
	if len(pending) != 0 {
		t.Fatalf("collect stage has no upstream, got %v", pending)
	}
}

func TestMemoryStoreListVerdicts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	_ = s.PutAnalysis(ctx, &domain.ArticleAnalysis{ArticleID: "a1", Verdicts: []domain.ImpactVerdict{
		{ArticleID: "a1", Symbol: "TATAMOTORS", ComputedAt: base},
		{ArticleID: "a1", Symbol: "TATASTEEL", ComputedAt: base},
	}})
	_ = s.PutAnalysis(ctx, &domain.ArticleAnalysis{ArticleID: "a2", Verdicts: []domain.ImpactVerdict{
		{ArticleID: "a2", Symbol: "TATASTEEL", ComputedAt: base.Add(time.Hour)},
	}})

	all, err := s.ListVerdicts(ctx, "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || all[0].ArticleID != "a2" {
		t.Fatalf("expected newest first, got %+v", all)
	}

	steel, _ := s.ListVerdicts(ctx, "TATASTEEL", 0)
	if len(steel) != 2 {
		t.Fatalf("expected 2 TATASTEEL verdicts, got %d", len(steel))
	}

	limited, _ := s.ListVerdicts(ctx, "", 1)
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestMemoryStoreConcurrentWritesSameKey(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summary := fmt.Sprintf("summary-%d", i)
			_ = s.PutEnriched(ctx, &domain.EnrichedArticle{
				ArticleID: "same",
				Summary:   summary,
				Keywords:  []domain.Keyword{{Term: summary, Score: 1}},
			})
		}(i)
	}
	wg.Wait()

	got, err := s.GetEnriched(ctx, "same")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Keywords) != 1 || got.Keywords[0].Term != got.Summary {
		t.Fatalf("record interleaved two writes: %+v", got)
	}
}

func TestMemoryStorePutHonorsCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.PutRaw(ctx, &domain.RawArticle{ID: "x"})
	if !domain.IsStorageError(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
	got, _ := s.GetRaw(context.Background(), "x")
	if got != nil {
		t.Fatal("cancelled write should not be stored")
	}
}
