package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vidfetch/vidfetch/internal/download"
	"github.com/vidfetch/vidfetch/internal/history"
	"github.com/vidfetch/vidfetch/internal/media"
	"github.com/vidfetch/vidfetch/internal/playlist"
)

// downloadBody is the request payload for POST /api/v1/download.
type downloadBody struct {
	download.Request
	Collection   bool     `json:"collection,omitempty"`
	CollectionID string   `json:"collectionId,omitempty"`
	MemberIDs    []string `json:"memberIds,omitempty"`
}

// handleDownload streams the requested artifact to the caller as bytes
// arrive. Failures after the first byte cannot change the HTTP status; the
// caller must treat a truncated body as discardable partial data.
// POST /api/v1/download
func (s *Server) handleDownload(c echo.Context) error {
	var body downloadBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	if body.Collection {
		return s.streamCollection(c, body)
	}
	return s.streamSingle(c, body)
}

func (s *Server) streamSingle(c echo.Context, body downloadBody) error {
	ctx := c.Request().Context()

	info, err := s.info.Fetch(ctx, body.ResourceID)
	if err != nil {
		if errors.Is(err, media.ErrBadRef) {
			return echo.NewHTTPError(http.StatusBadRequest, "unrecognized resource reference")
		}
		return echo.NewHTTPError(http.StatusBadGateway, "failed to fetch resource metadata")
	}

	// Validate before committing to a streaming response so invalid input
	// still gets a clean HTTP status.
	if err := s.engine.Validate(body.Request, info); err != nil {
		return s.downloadError(c, body, err, false)
	}

	variant := findVariant(info, body.FormatID)
	s.history.RecordAsync(history.CreateInput{
		EventType:  history.EventTypeGrabbed,
		ResourceID: body.ResourceID,
		Title:      info.Title,
		FormatID:   body.FormatID,
		Quality:    variant.QualityLabel,
	})

	filename := safeFilename(info.Title, variant.Ext)
	c.Response().Header().Set(echo.HeaderContentType, "application/octet-stream")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", filename))

	sink := &flushWriter{w: c.Response()}
	err = s.engine.Download(ctx, body.Request, info, sink, nil)
	if err != nil {
		return s.downloadError(c, body, err, sink.wrote)
	}

	s.history.RecordAsync(history.CreateInput{
		EventType:  history.EventTypeCompleted,
		ResourceID: body.ResourceID,
		Title:      info.Title,
		FormatID:   body.FormatID,
		Quality:    variant.QualityLabel,
	})
	return nil
}

func (s *Server) streamCollection(c echo.Context, body downloadBody) error {
	ctx := c.Request().Context()

	req := playlist.Request{
		CollectionID: body.CollectionID,
		MemberIDs:    body.MemberIDs,
		FormatID:     body.FormatID,
	}
	// An omitted member list means "everything in the collection".
	if len(req.MemberIDs) == 0 && req.CollectionID != "" {
		info, err := s.info.FetchCollection(ctx, req.CollectionID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, "failed to fetch collection metadata")
		}
		for _, m := range info.Members {
			req.MemberIDs = append(req.MemberIDs, m.ID)
		}
	}

	s.history.RecordAsync(history.CreateInput{
		EventType:  history.EventTypeGrabbed,
		ResourceID: req.CollectionID,
		Title:      req.CollectionID,
		FormatID:   body.FormatID,
	})

	c.Response().Header().Set(echo.HeaderContentType, "application/octet-stream")
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", req.CollectionID+".zip"))

	sink := &flushWriter{w: c.Response()}
	result, err := s.aggregator.Download(ctx, req, sink, nil)
	if err != nil {
		return s.downloadError(c, body, err, sink.wrote)
	}

	s.history.RecordAsync(history.CreateInput{
		EventType:  history.EventTypeCompleted,
		ResourceID: req.CollectionID,
		Title:      result.Filename,
		FormatID:   body.FormatID,
	})
	return nil
}

// downloadError records the failure and maps it onto an HTTP response. Once
// body bytes have been written the status line is gone; the connection is
// simply closed.
func (s *Server) downloadError(c echo.Context, body downloadBody, err error, midStream bool) error {
	resourceID := body.ResourceID
	if body.Collection {
		resourceID = body.CollectionID
	}

	if c.Request().Context().Err() != nil {
		s.logger.Debug().Str("resourceId", resourceID).Msg("download cancelled by caller")
		return nil
	}

	var failure *download.Failure
	if !errors.As(err, &failure) {
		s.logger.Error().Err(err).Str("resourceId", resourceID).Msg("download failed")
		failure = download.NewFailure(download.ReasonFailed, "The download failed. Please try again later.")
	}

	s.history.RecordAsync(history.CreateInput{
		EventType:  history.EventTypeFailed,
		ResourceID: resourceID,
		FormatID:   body.FormatID,
		Error:      failure.Message,
	})

	if midStream {
		s.logger.Warn().Str("resourceId", resourceID).Str("reason", string(failure.Code)).Msg("download failed mid-stream")
		return err
	}
	return echo.NewHTTPError(failureStatus(failure), failure.Message)
}

// flushWriter pushes each chunk to the client immediately so bytes stream
// as the tool produces them.
type flushWriter struct {
	w     *echo.Response
	wrote bool
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if n > 0 {
		f.wrote = true
		f.w.Flush()
	}
	return n, err
}

func findVariant(info *media.ResourceInfo, formatID string) *media.FormatVariant {
	for i := range info.Formats {
		if info.Formats[i].ID == formatID {
			return &info.Formats[i]
		}
	}
	return nil
}

// safeFilename builds a download filename from a resource title.
func safeFilename(title, ext string) string {
	if title == "" {
		title = "download"
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, title)
	if ext == "" {
		return clean
	}
	return clean + "." + ext
}
