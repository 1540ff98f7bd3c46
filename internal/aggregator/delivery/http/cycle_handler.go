package http

import (
	"net/http"

	"golang-news-aggregator/internal/aggregator/service"
	"golang-news-aggregator/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CycleHandler handles HTTP requests for run cycles.
type CycleHandler struct {
	ingestService service.IngestService
	logger        *logger.Logger
}

// NewCycleHandler creates a new CycleHandler.
func NewCycleHandler(ingestService service.IngestService, logger *logger.Logger) *CycleHandler {
	return &CycleHandler{ingestService: ingestService, logger: logger}
}

// RegisterRoutes registers the cycle routes to the Echo group.
func (h *CycleHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.RunCycle)
}

type runCycleRequest struct {
	FeedIDs []uint `json:"feed_ids"`
}

// RunCycle triggers a synchronous fetch cycle. With feed_ids the listed
// feeds are fetched regardless of their schedule; without, all due active
// feeds are fetched.
func (h *CycleHandler) RunCycle(c echo.Context) error {
	var req runCycleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}

	report, err := h.ingestService.RunCycle(c.Request().Context(), req.FeedIDs)
	if err != nil {
		h.logger.Error("Run cycle failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, report)
}
