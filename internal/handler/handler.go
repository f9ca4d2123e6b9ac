package handler

import (
	"context"
	"time"

	"newsimpact/internal/domain"
	"newsimpact/internal/pipeline"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type ArticleReader interface {
	GetRaw(ctx context.Context, id string) (*domain.RawArticle, error)
	GetEnriched(ctx context.Context, id string) (*domain.EnrichedArticle, error)
	GetResolution(ctx context.Context, id string) (*domain.ArticleResolution, error)
	GetAnalysis(ctx context.Context, id string) (*domain.ArticleAnalysis, error)
	ListVerdicts(ctx context.Context, symbol string, limit int) ([]domain.ImpactVerdict, error)
}

type SymbolResolver interface {
	Resolve(ctx context.Context, name string) (domain.SymbolMapping, error)
}

type PipelineRunner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) (domain.RunResult, error)
}

type Handler struct {
	tracer   trace.Tracer
	articles ArticleReader
	resolver SymbolResolver

	runner   PipelineRunner
	lookback time.Duration
	now      func() time.Time
}

func New(tracer trace.Tracer, articles ArticleReader, resolver SymbolResolver) *Handler {
	return &Handler{
		tracer:   tracer,
		articles: articles,
		resolver: resolver,
		lookback: 24 * time.Hour,
		now:      time.Now,
	}
}

// SetPipelineRunner enables POST /api/pipeline/run. lookback is the default
// collection window when the request does not name one.
func (h *Handler) SetPipelineRunner(runner PipelineRunner, lookback time.Duration) {
	h.runner = runner
	if lookback > 0 {
		h.lookback = lookback
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/articles/:id", h.GetArticle)
	api.GET("/verdicts", h.ListVerdicts)
	api.GET("/verdicts/top", h.TopVerdicts)
	api.GET("/symbols/resolve", h.ResolveSymbol)
	api.POST("/pipeline/run", APIKeyAuth(apiKey), h.TriggerPipelineRun)
}
