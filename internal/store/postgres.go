package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"newsimpact/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createArticleRecordsTable = `
CREATE TABLE IF NOT EXISTS article_records (
    article_id  TEXT        NOT NULL,
    stage       TEXT        NOT NULL,
    payload     JSONB       NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (article_id, stage)
);

CREATE INDEX IF NOT EXISTS idx_article_records_stage_updated
    ON article_records (stage, updated_at DESC);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool   PgxPool
	tracer trace.Tracer
	now    func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool PgxPool, tracer trace.Tracer) *PostgresStore {
	return &PostgresStore{pool: pool, tracer: tracer, now: time.Now}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "article-store.ensure-schema")
	defer span.End()

	if _, err := s.pool.Exec(ctx, createArticleRecordsTable); err != nil {
		return domain.NewStorageError("ensure schema", "", err)
	}
	return nil
}

// upsert writes the whole record in one statement, so a record is either
// fully replaced or untouched.
func (s *PostgresStore) upsert(ctx context.Context, stage domain.Stage, id string, v any) error {
	ctx, span := s.tracer.Start(ctx, "article-store.put-"+string(stage))
	defer span.End()

	data, err := encode(stage, id, v)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO article_records (article_id, stage, payload, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (article_id, stage) DO UPDATE SET
    payload = EXCLUDED.payload,
    updated_at = EXCLUDED.updated_at`,
		id, string(stage), data, s.now().UTC(),
	)
	if err != nil {
		return domain.NewStorageError("put "+string(stage), id, err)
	}
	return nil
}

func (s *PostgresStore) fetch(ctx context.Context, stage domain.Stage, id string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "article-store.get-"+string(stage))
	defer span.End()

	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM article_records WHERE article_id = $1 AND stage = $2`,
		id, string(stage),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("get "+string(stage), id, err)
	}
	return payload, nil
}

func (s *PostgresStore) PutRaw(ctx context.Context, article *domain.RawArticle) error {
	return s.upsert(ctx, domain.StageCollect, article.ID, article)
}

func (s *PostgresStore) PutEnriched(ctx context.Context, article *domain.EnrichedArticle) error {
	return s.upsert(ctx, domain.StageEnrich, article.ArticleID, article)
}

func (s *PostgresStore) PutResolution(ctx context.Context, res *domain.ArticleResolution) error {
	return s.upsert(ctx, domain.StageResolve, res.ArticleID, res)
}

func (s *PostgresStore) PutAnalysis(ctx context.Context, analysis *domain.ArticleAnalysis) error {
	return s.upsert(ctx, domain.StageAnalyze, analysis.ArticleID, analysis)
}

func (s *PostgresStore) GetRaw(ctx context.Context, id string) (*domain.RawArticle, error) {
	data, err := s.fetch(ctx, domain.StageCollect, id)
	if err != nil {
		return nil, err
	}
	return decode[domain.RawArticle](domain.StageCollect, id, data)
}

func (s *PostgresStore) GetEnriched(ctx context.Context, id string) (*domain.EnrichedArticle, error) {
	data, err := s.fetch(ctx, domain.StageEnrich, id)
	if err != nil {
		return nil, err
	}
	return decode[domain.EnrichedArticle](domain.StageEnrich, id, data)
}

func (s *PostgresStore) GetResolution(ctx context.Context, id string) (*domain.ArticleResolution, error) {
	data, err := s.fetch(ctx, domain.StageResolve, id)
	if err != nil {
		return nil, err
	}
	return decode[domain.ArticleResolution](domain.StageResolve, id, data)
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*domain.ArticleAnalysis, error) {
	data, err := s.fetch(ctx, domain.StageAnalyze, id)
	if err != nil {
		return nil, err
	}
	return decode[domain.ArticleAnalysis](domain.StageAnalyze, id, data)
}

func (s *PostgresStore) ListPending(ctx context.Context, stage domain.Stage) ([]string, error) {
	prev, ok := stage.Previous()
	if !ok {
		return nil, nil
	}
	ctx, span := s.tracer.Start(ctx, "article-store.list-pending")
	defer span.End()

	return s.queryIDs(ctx, "list pending "+string(stage), `
SELECT p.article_id
FROM article_records p
WHERE p.stage = $1
  AND NOT EXISTS (
      SELECT 1 FROM article_records d
      WHERE d.article_id = p.article_id AND d.stage = $2
  )
ORDER BY p.article_id`, string(prev), string(stage))
}

func (s *PostgresStore) ListIDs(ctx context.Context, stage domain.Stage) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "article-store.list-ids")
	defer span.End()

	return s.queryIDs(ctx, "list ids "+string(stage),
		`SELECT article_id FROM article_records WHERE stage = $1 ORDER BY article_id`, string(stage))
}

func (s *PostgresStore) queryIDs(ctx context.Context, op, sql string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, domain.NewStorageError(op, "", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.NewStorageError(op, "", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError(op, "", err)
	}
	return ids, nil
}

func (s *PostgresStore) ListEnriched(ctx context.Context) ([]domain.EnrichedArticle, error) {
	ctx, span := s.tracer.Start(ctx, "article-store.list-enriched")
	defer span.End()
	return queryRecords[domain.EnrichedArticle](ctx, s.pool, domain.StageEnrich,
		`SELECT article_id, payload FROM article_records WHERE stage = $1 ORDER BY article_id`, string(domain.StageEnrich))
}

func (s *PostgresStore) ListAnalyses(ctx context.Context) ([]domain.ArticleAnalysis, error) {
	ctx, span := s.tracer.Start(ctx, "article-store.list-analyses")
	defer span.End()
	return queryRecords[domain.ArticleAnalysis](ctx, s.pool, domain.StageAnalyze,
		`SELECT article_id, payload FROM article_records WHERE stage = $1 ORDER BY article_id`, string(domain.StageAnalyze))
}

func (s *PostgresStore) ListVerdicts(ctx context.Context, symbol string, limit int) ([]domain.ImpactVerdict, error) {
	ctx, span := s.tracer.Start(ctx, "article-store.list-verdicts")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	var (
		analyses []domain.ArticleAnalysis
		err      error
	)
	if symbol == "" {
		analyses, err = queryRecords[domain.ArticleAnalysis](ctx, s.pool, domain.StageAnalyze, `
SELECT article_id, payload FROM article_records
WHERE stage = $1
ORDER BY updated_at DESC
LIMIT $2`, string(domain.StageAnalyze), limit)
	} else {
		filter := `{"verdicts":[{"symbol":"` + jsonEscape(symbol) + `"}]}`
		analyses, err = queryRecords[domain.ArticleAnalysis](ctx, s.pool, domain.StageAnalyze, `
SELECT article_id, payload FROM article_records
WHERE stage = $1 AND payload @> $2::jsonb
ORDER BY updated_at DESC
LIMIT $3`, string(domain.StageAnalyze), filter, limit)
	}
	if err != nil {
		return nil, err
	}
	return flattenVerdicts(analyses, symbol, limit), nil
}

func queryRecords[T any](ctx context.Context, pool PgxPool, stage domain.Stage, sql string, args ...any) ([]T, error) {
	op := "list " + string(stage)
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, domain.NewStorageError(op, "", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, domain.NewStorageError(op, "", err)
		}
		rec, err := decode[T](stage, id, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError(op, "", err)
	}
	return out, nil
}

func jsonEscape(v string) string {
	data, _ := json.Marshal(v)
	return string(data[1 : len(data)-1])
}
