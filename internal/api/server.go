// Package api wires the HTTP and websocket boundary: info fetch, download
// streaming, progress push, file listings, and history.
package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/vidfetch/vidfetch/internal/config"
	"github.com/vidfetch/vidfetch/internal/download"
	"github.com/vidfetch/vidfetch/internal/history"
	"github.com/vidfetch/vidfetch/internal/info"
	"github.com/vidfetch/vidfetch/internal/library"
	"github.com/vidfetch/vidfetch/internal/playlist"
	"github.com/vidfetch/vidfetch/internal/progress"
	"github.com/vidfetch/vidfetch/internal/websocket"
)

// Server aggregates the services behind the HTTP surface.
type Server struct {
	echo       *echo.Echo
	cfg        *config.Config
	info       *info.Service
	engine     *download.Engine
	aggregator *playlist.Aggregator
	progress   *progress.Manager
	hub        *websocket.Hub
	history    *history.Service
	library    *library.Service
	logger     zerolog.Logger

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc
}

// NewServer creates the API server and registers all routes.
func NewServer(
	cfg *config.Config,
	infoSvc *info.Service,
	engine *download.Engine,
	aggregator *playlist.Aggregator,
	progressMgr *progress.Manager,
	hub *websocket.Hub,
	historySvc *history.Service,
	librarySvc *library.Service,
	logger zerolog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:       e,
		cfg:        cfg,
		info:       infoSvc,
		engine:     engine,
		aggregator: aggregator,
		progress:   progressMgr,
		hub:        hub,
		history:    historySvc,
		library:    librarySvc,
		logger:     logger.With().Str("component", "api").Logger(),
		cancels:    make(map[string]context.CancelFunc),
	}
	s.registerRoutes()
	hub.SetCommandHandler(s.handleCommand)
	return s
}

// Echo exposes the underlying echo instance for serving and tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) registerRoutes() {
	v1 := s.echo.Group("/api/v1")

	v1.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	v1.GET("/info", s.handleInfo)
	v1.GET("/playlist/:id", s.handlePlaylistInfo)
	v1.POST("/download", s.handleDownload)
	v1.GET("/downloads/active", s.handleActiveDownloads)
	v1.GET("/ws", s.hub.HandleWebSocket)

	history.NewHandlers(s.history).RegisterRoutes(v1)
	library.NewHandlers(s.library).RegisterRoutes(v1)
}

// Start begins listening on the configured address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// failureStatus maps a classified download failure to an HTTP status.
func failureStatus(f *download.Failure) int {
	switch f.Code {
	case download.ReasonInvalidInput:
		return http.StatusBadRequest
	case download.ReasonToolMissing:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
