package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vidfetch/vidfetch/internal/api"
	"github.com/vidfetch/vidfetch/internal/config"
	"github.com/vidfetch/vidfetch/internal/database"
	"github.com/vidfetch/vidfetch/internal/download"
	"github.com/vidfetch/vidfetch/internal/history"
	"github.com/vidfetch/vidfetch/internal/info"
	"github.com/vidfetch/vidfetch/internal/library"
	"github.com/vidfetch/vidfetch/internal/logger"
	mediacache "github.com/vidfetch/vidfetch/internal/media/cache"
	"github.com/vidfetch/vidfetch/internal/playlist"
	"github.com/vidfetch/vidfetch/internal/progress"
	"github.com/vidfetch/vidfetch/internal/runner"
	"github.com/vidfetch/vidfetch/internal/scheduler"
	"github.com/vidfetch/vidfetch/internal/websocket"
)

func main() {
	// Optional .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().Str("version", config.Version).Msg("starting vidfetch")

	acquisition, err := runner.New("yt-dlp", cfg.Tools.AcquisitionPath, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("acquisition tool not found")
	}
	log.Info().Str("path", acquisition.Path()).Msg("resolved acquisition tool")

	archiver, err := runner.New("zip", cfg.Tools.ArchiverPath, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("archiving utility not found")
	}

	db, err := database.New(cfg.History.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	metaCache := mediacache.New(mediacache.Config{
		TTL:      time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		MaxItems: cfg.Cache.MaxItems,
	})

	hub := websocket.NewHub()
	go hub.Run()

	progressMgr := progress.NewManager(hub, log.Logger)
	infoSvc := info.NewService(acquisition, metaCache, log.Logger)
	engine := download.NewEngine(acquisition, cfg.Download, log.Logger)
	aggregator := playlist.NewAggregator(acquisition, archiver, cfg.Download, log.Logger)
	historySvc := history.NewService(db.Conn(), log.Logger)

	librarySvc, err := library.NewService(cfg.Storage.BaseDir, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare storage directories")
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := sched.RegisterTask(scheduler.TaskConfig{
		ID:       "cache-sweep",
		Name:     "Metadata cache sweep",
		Interval: time.Minute,
		Func: func(context.Context) error {
			metaCache.Sweep()
			return nil
		},
	}); err != nil {
		log.Error().Err(err).Msg("failed to register cache sweep")
	}
	if err := sched.RegisterTask(scheduler.TaskConfig{
		ID:       "workdir-janitor",
		Name:     "Stale working directory cleanup",
		Interval: time.Hour,
		Func:     scheduler.StaleWorkdirJanitor(24 * time.Hour),
	}); err != nil {
		log.Error().Err(err).Msg("failed to register workdir janitor")
	}
	sched.Start()
	defer sched.Stop()

	server := api.NewServer(cfg, infoSvc, engine, aggregator, progressMgr, hub, historySvc, librarySvc, log.Logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Echo().Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
