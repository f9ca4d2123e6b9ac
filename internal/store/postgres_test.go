package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"newsimpact/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestPostgresStorePutUpserts(t *testing.T) {
	pool := &fakePool{}
	s := NewPostgresStore(pool, testTracer)

	err := s.PutEnriched(context.Background(), &domain.EnrichedArticle{ArticleID: "a1", Summary: "s"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execSQL) != 1 || !strings.Contains(pool.execSQL[0], "ON CONFLICT (article_id, stage) DO UPDATE") {
		t.Fatalf("expected upsert statement, got %v", pool.execSQL)
	}
	args := pool.execArgs[0]
	if args[0] != "a1" || args[1] != "enrich" {
		t.Fatalf("unexpected args: %v", args)
	}
	var decoded domain.EnrichedArticle
	if err := json.Unmarshal(args[2].([]byte), &decoded); err != nil || decoded.Summary != "s" {
		t.Fatalf("expected json payload, got %s (%v)", args[2], err)
	}
}

func TestPostgresStorePutWrapsStorageError(t *testing.T) {
	pool := &fakePool{execErr: errors.New("connection reset")}
	s := NewPostgresStore(pool, testTracer)

	err := s.PutRaw(context.Background(), &domain.RawArticle{ID: "a1"})
	if !domain.IsStorageError(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestPostgresStoreGetAbsentReturnsNil(t *testing.T) {
	pool := &fakePool{row: fakeRow{err: pgx.ErrNoRows}}
	s := NewPostgresStore(pool, testTracer)

	got, err := s.GetRaw(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestPostgresStoreGetDecodesPayload(t *testing.T) {
	payload, _ := json.Marshal(domain.RawArticle{ID: "a1", Title: "Tata Motors rallies"})
	pool := &fakePool{row: fakeRow{values: []any{payload}}}
	s := NewPostgresStore(pool, testTracer)

	got, err := s.GetRaw(context.Background(), "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Title != "Tata Motors rallies" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestPostgresStoreListPendingQueriesPreviousStage(t *testing.T) {
	pool := &fakePool{rows: [][]any{{"a"}, {"b"}}}
	s := NewPostgresStore(pool, testTracer)

	ids, err := s.ListPending(context.Background(), domain.StageAnalyze)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if pool.queryArgs[0] != "resolve" || pool.queryArgs[1] != "analyze" {
		t.Fatalf("expected previous/current stage args, got %v", pool.queryArgs)
	}
}

func TestPostgresStoreListVerdictsBySymbol(t *testing.T) {
	payload, _ := json.Marshal(domain.ArticleAnalysis{ArticleID: "a1", Verdicts: []domain.ImpactVerdict{
		{ArticleID: "a1", Symbol: "TATAMOTORS"},
		{ArticleID: "a1", Symbol: "TATASTEEL"},
	}})
	pool := &fakePool{rows: [][]any{{"a1", payload}}}
	s := NewPostgresStore(pool, testTracer)

	verdicts, err := s.ListVerdicts(context.Background(), "TATASTEEL", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(verdicts) != 1 || verdicts[0].Symbol != "TATASTEEL" {
		t.Fatalf("expected filtered verdicts, got %+v", verdicts)
	}
	if !strings.Contains(pool.querySQL, "@>") {
		t.Fatalf("expected jsonb containment filter, got %s", pool.querySQL)
	}
	if pool.queryArgs[1] != `{"verdicts":[{"symbol":"TATASTEEL"}]}` {
		t.Fatalf("unexpected filter arg: %v", pool.queryArgs[1])
	}
}

type fakePool struct {
	execSQL  []string
	execArgs [][]any
	execErr  error

	row fakeRow

	rows      [][]any
	queryErr  error
	querySQL  string
	queryArgs []any
}

var _ PgxPool = (*fakePool)(nil)

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execSQL = append(p.execSQL, sql)
	p.execArgs = append(p.execArgs, args)
	if p.execErr != nil {
		return pgconn.CommandTag{}, p.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (p *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	p.querySQL = sql
	p.queryArgs = args
	if p.queryErr != nil {
		return nil, p.queryErr
	}
	return &fakeRows{rows: p.rows, idx: -1}, nil
}

func (p *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.row
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(dest, r.rows[r.idx])
}

func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return errors.New("scan arity mismatch")
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		default:
			return errors.New("unsupported scan destination")
		}
	}
	return nil
}
