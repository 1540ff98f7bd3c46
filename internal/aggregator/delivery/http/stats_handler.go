package http

import (
	"net/http"
	"strconv"

	"golang-news-aggregator/internal/aggregator/service"
	"golang-news-aggregator/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StatsHandler handles HTTP requests for aggregate statistics.
type StatsHandler struct {
	adminService service.AdminService
	logger       *logger.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(adminService service.AdminService, logger *logger.Logger) *StatsHandler {
	return &StatsHandler{adminService: adminService, logger: logger}
}

// RegisterRoutes registers the stats routes to the Echo group.
func (h *StatsHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetStats)
	g.GET("/fetch-logs", h.GetFetchLogs)
}

// GetStats returns article status counts, feed counts, and top tags.
func (h *StatsHandler) GetStats(c echo.Context) error {
	stats, err := h.adminService.GetStats(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to build stats", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to build stats"})
	}
	return c.JSON(http.StatusOK, stats)
}

// GetFetchLogs returns the most recent fetch cycle reports.
func (h *StatsHandler) GetFetchLogs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	logs, err := h.adminService.RecentFetchLogs(c.Request().Context(), limit)
	if err != nil {
		h.logger.Error("Failed to load fetch logs", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load fetch logs"})
	}
	return c.JSON(http.StatusOK, logs)
}
