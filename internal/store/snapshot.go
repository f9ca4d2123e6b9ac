package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"newsimpact/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	EnrichedSnapshotFile = "enriched_articles.json"
	VerdictSnapshotFile  = "impact_verdicts.json"
)

type SnapshotSource interface {
	ListEnriched(ctx context.Context) ([]domain.EnrichedArticle, error)
	ListAnalyses(ctx context.Context) ([]domain.ArticleAnalysis, error)
}

type ExportResult struct {
	EnrichedPath string `json:"enriched_path"`
	VerdictsPath string `json:"verdicts_path"`
	Articles     int    `json:"articles"`
	Verdicts     int    `json:"verdicts"`
}

// Exporter rewrites the file snapshots of enriched articles and verdicts,
// both keyed by article id.
type Exporter struct {
	tracer trace.Tracer
	dir    string
}

func NewExporter(tracer trace.Tracer, dir string) *Exporter {
	if dir == "" {
		dir = "data"
	}
	return &Exporter{tracer: tracer, dir: dir}
}

func (e *Exporter) Dir() string { return e.dir }

func (e *Exporter) Export(ctx context.Context, src SnapshotSource) (ExportResult, error) {
	ctx, span := e.tracer.Start(ctx, "snapshot-exporter.export")
	defer span.End()

	var result ExportResult
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return result, domain.NewStorageError("export mkdir", e.dir, err)
	}

	enriched, err := src.ListEnriched(ctx)
	if err != nil {
		return result, err
	}
	byArticle := make(map[string]domain.EnrichedArticle, len(enriched))
	for _, a := range enriched {
		byArticle[a.ArticleID] = a
	}

	analyses, err := src.ListAnalyses(ctx)
	if err != nil {
		return result, err
	}
	verdicts := make(map[string][]domain.ImpactVerdict, len(analyses))
	for _, a := range analyses {
		if a.Verdicts == nil {
			verdicts[a.ArticleID] = []domain.ImpactVerdict{}
			continue
		}
		verdicts[a.ArticleID] = a.Verdicts
		result.Verdicts += len(a.Verdicts)
	}

	result.EnrichedPath = filepath.Join(e.dir, EnrichedSnapshotFile)
	if err := writeJSONAtomic(result.EnrichedPath, byArticle); err != nil {
		return result, domain.NewStorageError("export", result.EnrichedPath, err)
	}
	result.VerdictsPath = filepath.Join(e.dir, VerdictSnapshotFile)
	if err := writeJSONAtomic(result.VerdictsPath, verdicts); err != nil {
		return result, domain.NewStorageError("export", result.VerdictsPath, err)
	}
	result.Articles = len(byArticle)
	return result, nil
}

// writeJSONAtomic writes to a temp file in the same directory and renames it
// over path, so readers never observe a partial file.
func writeJSONAtomic(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
