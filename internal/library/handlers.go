package library

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers provides HTTP handlers for library listings.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new library handlers instance.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers library routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/files/:category", h.List)
}

// List returns the saved files in one category.
// GET /api/v1/files/:category
func (h *Handlers) List(c echo.Context) error {
	category := c.Param("category")
	if !ValidCategory(category) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown category")
	}

	entries, err := h.service.List(category)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entries)
}
