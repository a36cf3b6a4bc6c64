package handler

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"moonpulse/internal/response"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AskPath godoc
// @Summary      Answer a crypto market question
// @Description  Extracts the asset, resolves the intent and answers with alerts, a project summary, or a social trend narrative
// @Tags         query
// @Produce      json
// @Param        prompt  path  string  true  "Free-text question (URL encoded)"
// @Success      200  {object}  domain.FinalResponse
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  domain.FinalResponse
// @Failure      502  {object}  domain.FinalResponse
// @Router       /ask/{prompt} [get]
func (h *Handler) AskPath(c *gin.Context) {
	h.answer(c, c.Param("prompt"))
}

// Query godoc
// @Summary      Answer a crypto market question
// @Description  Same as /ask/{prompt} with the question passed as a query parameter
// @Tags         query
// @Produce      json
// @Param        q  query  string  true  "Free-text question"
// @Success      200  {object}  domain.FinalResponse
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  domain.FinalResponse
// @Failure      502  {object}  domain.FinalResponse
// @Router       /api/query [get]
func (h *Handler) Query(c *gin.Context) {
	h.answer(c, c.Query("q"))
}

func (h *Handler) answer(c *gin.Context, text string) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.ask")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query text is required"})
		return
	}
	if utf8.RuneCountInString(text) > maxQueryLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query text is too long"})
		return
	}

	resp := h.asker.Ask(ctx, text)
	status := response.HTTPStatus(resp)
	span.SetAttributes(
		attribute.String("intent", string(resp.Intent)),
		attribute.Int("http.status", status),
	)
	c.JSON(status, resp)
}

// Tools godoc
// @Summary      List upstream tools
// @Description  Returns the tools advertised by the upstream tool manifest
// @Tags         tools
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/tools [get]
func (h *Handler) Tools(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.tools")
	defer span.End()

	if h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tool manifest is disabled"})
		return
	}
	catalog, err := h.catalog.Catalog(ctx)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":    catalog.Name(),
		"version": catalog.Version(),
		"tools":   catalog.Tools(),
	})
}
