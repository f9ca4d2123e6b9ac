package handler

import (
	"errors"
	"net/http"
	"strings"

	"newsimpact/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ResolveSymbol godoc
// @Summary      Resolve a company name to a listed symbol
// @Tags         symbols
// @Produce      json
// @Param        name  query  string  true  "Company name (e.g. Tata Motors)"
// @Success      200  {object}  domain.SymbolMapping
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  domain.SymbolMapping
// @Failure      409  {object}  domain.SymbolMapping
// @Failure      503  {object}  map[string]string
// @Router       /api/symbols/resolve [get]
func (h *Handler) ResolveSymbol(c *gin.Context) {
	if h.resolver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "resolver unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.resolve-symbol")
	defer span.End()

	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	span.SetAttributes(attribute.String("company", name))

	mapping, err := h.resolver.Resolve(ctx, name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(resolveStatus(mapping.Err()), mapping)
}

// resolveStatus maps an unresolved mapping to 404, or 409 when several
// listings matched. The body still carries the mapping and its reason.
func resolveStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrResolutionAmbiguous):
		return http.StatusConflict
	default:
		return http.StatusNotFound
	}
}
