package http

import (
	"errors"
	"net/http"
	"strconv"

	"golang-news-aggregator/internal/aggregator/service"
	"golang-news-aggregator/pkg/logger"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// ArticleHandler handles HTTP requests for articles.
type ArticleHandler struct {
	adminService service.AdminService
	logger       *logger.Logger
}

// NewArticleHandler creates a new ArticleHandler.
func NewArticleHandler(adminService service.AdminService, logger *logger.Logger) *ArticleHandler {
	return &ArticleHandler{adminService: adminService, logger: logger}
}

// RegisterRoutes registers the article routes to the Echo group.
func (h *ArticleHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/:id/requeue", h.RequeueArticle)
}

// RequeueArticle returns a failed article to pending for another round of
// processing. Only failed articles can be requeued.
func (h *ArticleHandler) RequeueArticle(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid article ID"})
	}

	if err := h.adminService.RequeueArticle(c.Request().Context(), uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "Article not found"})
		}
		h.logger.Error("Failed to requeue article", logger.ErrorField(err))
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
