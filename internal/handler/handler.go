package handler

import (
	"context"
	"net/http"

	"moonpulse/internal/domain"
	"moonpulse/internal/provider"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

const maxQueryLength = 1000

// Asker answers one free-text query.
type Asker interface {
	Ask(ctx context.Context, text string) domain.FinalResponse
}

// CatalogSource yields the advertised upstream tools.
type CatalogSource interface {
	Catalog(ctx context.Context) (*provider.Catalog, error)
}

type Handler struct {
	tracer  trace.Tracer
	asker   Asker
	catalog CatalogSource
}

// New builds the HTTP handlers; catalog may be nil.
func New(tracer trace.Tracer, asker Asker, catalog CatalogSource) *Handler {
	return &Handler{
		tracer:  tracer,
		asker:   asker,
		catalog: catalog,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/ask/:prompt", h.AskPath)
	r.GET("/api/query", h.Query)
	r.GET("/api/tools", h.Tools)
}

// Health godoc
// @Summary      Health check
// @Description  Returns the health status of the service
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
