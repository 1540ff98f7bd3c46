package http

import (
	"net/http"
	"strconv"

	"golang-news-aggregator/internal/aggregator/service"
	"golang-news-aggregator/internal/entity"
	"golang-news-aggregator/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FeedHandler handles HTTP requests for feeds.
type FeedHandler struct {
	adminService service.AdminService
	logger       *logger.Logger
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(adminService service.AdminService, logger *logger.Logger) *FeedHandler {
	return &FeedHandler{adminService: adminService, logger: logger}
}

// RegisterRoutes registers the feed routes to the Echo group.
func (h *FeedHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListFeeds)
	g.POST("", h.CreateFeed)
	g.POST("/:id/activate", h.ActivateFeed)
}

// ListFeeds returns all feeds, active and inactive.
func (h *FeedHandler) ListFeeds(c echo.Context) error {
	feeds, err := h.adminService.ListFeeds(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list feeds", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to list feeds"})
	}
	return c.JSON(http.StatusOK, feeds)
}

type createFeedRequest struct {
	Name                 string `json:"name"`
	URL                  string `json:"url"`
	FetchIntervalSeconds int    `json:"fetch_interval_seconds"`
	CronExpression       string `json:"cron_expression"`
	Priority             string `json:"priority"`
}

// CreateFeed registers a new feed. Priority defaults to medium.
func (h *FeedHandler) CreateFeed(c echo.Context) error {
	var req createFeedRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "url is required"})
	}

	priority := entity.FeedPriority(req.Priority)
	switch priority {
	case entity.PriorityHigh, entity.PriorityMedium, entity.PriorityLow:
	case "":
		priority = entity.PriorityMedium
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid priority"})
	}

	feed := &entity.Feed{
		Name:                 req.Name,
		URL:                  req.URL,
		FetchIntervalSeconds: req.FetchIntervalSeconds,
		CronExpression:       req.CronExpression,
		Priority:             priority,
		Active:               true,
	}
	if err := h.adminService.CreateFeed(c.Request().Context(), feed); err != nil {
		h.logger.Error("Failed to create feed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, feed)
}

// ActivateFeed re-enables a feed that was deactivated after repeated fetch
// failures.
func (h *FeedHandler) ActivateFeed(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid feed ID"})
	}

	if err := h.adminService.ReactivateFeed(c.Request().Context(), uint(id)); err != nil {
		h.logger.Error("Failed to reactivate feed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to reactivate feed"})
	}
	return c.NoContent(http.StatusNoContent)
}
