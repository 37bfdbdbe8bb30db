package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vidfetch/vidfetch/internal/media"
)

// handleInfo resolves a resource reference into its normalized metadata.
// GET /api/v1/info?ref=<id or URL>
func (s *Server) handleInfo(c echo.Context) error {
	ref := c.QueryParam("ref")
	if ref == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing ref parameter")
	}

	info, err := s.info.Fetch(c.Request().Context(), ref)
	if err != nil {
		if errors.Is(err, media.ErrBadRef) {
			return echo.NewHTTPError(http.StatusBadRequest, "unrecognized resource reference")
		}
		s.logger.Warn().Err(err).Str("ref", ref).Msg("info fetch failed")
		return echo.NewHTTPError(http.StatusBadGateway, "failed to fetch resource metadata")
	}
	return c.JSON(http.StatusOK, info)
}

// handlePlaylistInfo resolves a collection id into its member listing.
// GET /api/v1/playlist/:id
func (s *Server) handlePlaylistInfo(c echo.Context) error {
	id := c.Param("id")

	info, err := s.info.FetchCollection(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, media.ErrBadRef) {
			return echo.NewHTTPError(http.StatusBadRequest, "unrecognized collection reference")
		}
		s.logger.Warn().Err(err).Str("collectionId", id).Msg("collection fetch failed")
		return echo.NewHTTPError(http.StatusBadGateway, "failed to fetch collection metadata")
	}
	return c.JSON(http.StatusOK, info)
}

// handleActiveDownloads lists in-flight downloads for the progress surface.
// GET /api/v1/downloads/active
func (s *Server) handleActiveDownloads(c echo.Context) error {
	return c.JSON(http.StatusOK, s.progress.All())
}
