package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"newsimpact/internal/domain"
	"newsimpact/internal/pipeline"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TriggerPipelineRun godoc
// @Summary      Run the news pipeline once
// @Description  Collects, enriches, resolves and analyzes articles, returning per-stage counts
// @Tags         pipeline
// @Produce      json
// @Security     ApiKeyAuth
// @Param        force  query  bool    false  "Recompute stages that already have output"
// @Param        since  query  string  false  "Collection window as a duration (e.g. 24h)"
// @Success      200  {object}  domain.RunResult
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      500  {object}  domain.RunResult
// @Failure      503  {object}  map[string]string
// @Router       /api/pipeline/run [post]
func (h *Handler) TriggerPipelineRun(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-pipeline-run")
	defer span.End()

	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))
	window := h.lookback
	if raw := c.Query("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since duration: " + raw})
			return
		}
		window = d
	}
	span.SetAttributes(attribute.Bool("force", force), attribute.String("window", window.String()))

	result, err := h.runner.Run(ctx, pipeline.RunOptions{Since: h.now().Add(-window).UTC(), Force: force})
	if errors.Is(err, pipeline.ErrRunInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if domain.IsStorageError(err) {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
