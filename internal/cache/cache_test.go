package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"newsimpact/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestSymbolCacheRoundTrip(t *testing.T) {
	fake := newFakeRedis()
	c := NewSymbolCache(testTracer, fake)
	ctx := context.Background()

	got, err := c.Get(ctx, "tata motors")
	if err != nil || got != nil {
		t.Fatalf("expected miss, got %+v err=%v", got, err)
	}

	m := domain.SymbolMapping{CompanyName: "tata motors", Symbol: "TATAMOTORS", Exchange: "NSE", Status: domain.ResolutionResolved}
	if err := c.Put(ctx, "tata motors", m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.ttl["symbol:tata motors"] != 0 {
		t.Fatalf("resolved mappings should not expire, ttl=%v", fake.ttl["symbol:tata motors"])
	}

	got, err = c.Get(ctx, "tata motors")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Symbol != "TATAMOTORS" {
		t.Fatalf("unexpected mapping: %+v", got)
	}

	if err := c.Delete(ctx, "tata motors"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := c.Get(ctx, "tata motors"); got != nil {
		t.Fatal("expected entry to be deleted")
	}
}

func TestSymbolCacheUnresolvedTTL(t *testing.T) {
	fake := newFakeRedis()
	c := NewSymbolCache(testTracer, fake)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	expires := now.Add(6 * time.Hour)
	m := domain.SymbolMapping{CompanyName: "acme widgets", Status: domain.ResolutionUnresolved, Reason: domain.ReasonNotFound, ExpiresAt: &expires}
	if err := c.Put(context.Background(), "acme widgets", m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.ttl["symbol:acme widgets"] != 6*time.Hour {
		t.Fatalf("expected 6h ttl, got %v", fake.ttl["symbol:acme widgets"])
	}
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	fake := newFakeRedis()
	c := NewSnapshotCache(testTracer, fake)
	ctx := context.Background()

	snap := &domain.PriceSnapshot{Symbol: "TATASTEEL.NS", Closes: []domain.ClosePoint{{Close: 140}, {Close: 145}}}
	if err := c.Put(ctx, "snapshot:TATASTEEL.NS:2026-03-02", snap, 36*time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := c.Get(ctx, "snapshot:TATASTEEL.NS:2026-03-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got.Closes) != 2 || got.Closes[1].Close != 145 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if miss, _ := c.Get(ctx, "snapshot:TATASTEEL.NS:2026-03-03"); miss != nil {
		t.Fatal("expected miss for another day")
	}
}

type fakeRedis struct {
	data map[string][]byte
	ttl  map[string]time.Duration
}

var _ RedisClient = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte), ttl: make(map[string]time.Duration)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		bytes, _ := json.Marshal(v)
		f.data[key] = bytes
	}
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			delete(f.ttl, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}
