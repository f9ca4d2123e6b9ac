package handler

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"newsimpact/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const topVerdictPool = 500

type articleResponse struct {
	Raw        *domain.RawArticle        `json:"raw"`
	Enriched   *domain.EnrichedArticle   `json:"enriched"`
	Resolution *domain.ArticleResolution `json:"resolution"`
	Analysis   *domain.ArticleAnalysis   `json:"analysis"`
}

// GetArticle godoc
// @Summary      Get every stage record for one article
// @Tags         articles
// @Produce      json
// @Param        id  path  string  true  "Article id"
// @Success      200  {object}  articleResponse
// @Failure      404  {object}  map[string]string
// @Router       /api/articles/{id} [get]
func (h *Handler) GetArticle(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-article")
	defer span.End()

	id := strings.TrimSpace(c.Param("id"))
	span.SetAttributes(attribute.String("article_id", id))

	var resp articleResponse
	var err error
	if resp.Raw, err = h.articles.GetRaw(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if resp.Raw == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found: " + id})
		return
	}
	if resp.Enriched, err = h.articles.GetEnriched(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if resp.Resolution, err = h.articles.GetResolution(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if resp.Analysis, err = h.articles.GetAnalysis(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListVerdicts godoc
// @Summary      List the latest impact verdicts
// @Tags         verdicts
// @Produce      json
// @Param        symbol  query  string  false  "Filter by symbol (e.g. TATAMOTORS)"
// @Param        limit   query  int     false  "Number of verdicts (default 50, max 500)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/verdicts [get]
func (h *Handler) ListVerdicts(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-verdicts")
	defer span.End()

	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	limit := queryInt(c, "limit", 50, 500)
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("limit", limit))

	verdicts, err := h.articles.ListVerdicts(ctx, symbol, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if verdicts == nil {
		verdicts = []domain.ImpactVerdict{}
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "verdicts": verdicts})
}

// TopVerdicts godoc
// @Summary      Most bullish and bearish symbols
// @Description  Ranks the latest verdict per symbol by score
// @Tags         verdicts
// @Produce      json
// @Param        n  query  int  false  "Entries per side (default 10, max 50)"  default(10)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/verdicts/top [get]
func (h *Handler) TopVerdicts(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.top-verdicts")
	defer span.End()

	n := queryInt(c, "n", 10, 50)
	verdicts, err := h.articles.ListVerdicts(ctx, "", topVerdictPool)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	bullish, bearish := rankVerdicts(verdicts, n)
	c.JSON(http.StatusOK, gin.H{"bullish": bullish, "bearish": bearish})
}

// rankVerdicts keeps the newest verdict per symbol and splits them by the
// sign of their score, strongest first.
func rankVerdicts(newestFirst []domain.ImpactVerdict, n int) ([]domain.ImpactVerdict, []domain.ImpactVerdict) {
	seen := make(map[string]bool)
	bullish := []domain.ImpactVerdict{}
	bearish := []domain.ImpactVerdict{}
	for _, v := range newestFirst {
		key := domain.QuoteSymbol(v.Symbol, v.Exchange)
		if seen[key] {
			continue
		}
		seen[key] = true
		switch {
		case v.Score > 0:
			bullish = append(bullish, v)
		case v.Score < 0:
			bearish = append(bearish, v)
		}
	}
	sort.SliceStable(bullish, func(i, j int) bool { return bullish[i].Score > bullish[j].Score })
	sort.SliceStable(bearish, func(i, j int) bool { return bearish[i].Score < bearish[j].Score })
	if len(bullish) > n {
		bullish = bullish[:n]
	}
	if len(bearish) > n {
		bearish = bearish[:n]
	}
	return bullish, bearish
}

func queryInt(c *gin.Context, name string, def, upper int) int {
	if raw := c.Query(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= upper {
			return n
		}
	}
	return def
}
