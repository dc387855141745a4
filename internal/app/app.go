// Package app assembles the service: configuration, storage, the timeline
// service, websocket hub, HTTP routes, and lifecycle management.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/showcaselive/showtime/internal/auth"
	"github.com/showcaselive/showtime/internal/handlers"
	"github.com/showcaselive/showtime/internal/logger"
	"github.com/showcaselive/showtime/internal/metrics"
	"github.com/showcaselive/showtime/internal/repository"
	"github.com/showcaselive/showtime/internal/services"
	"github.com/showcaselive/showtime/internal/websocket"
	"github.com/showcaselive/showtime/pkg/mediaprobe"
)

// Config carries the runtime settings, resolved by the caller from flags and
// environment.
type Config struct {
	Port             int
	DBPath           string
	BaseURL          string
	MediaServiceURL  string
	TickInterval     time.Duration
	MaxAdClipMinutes float64
	HTTPLogging      bool
}

// App owns every long-lived component.
type App struct {
	cfg  Config
	log  logger.Logger
	repo *repository.Repository

	hub    *websocket.Hub
	svc    *services.TimelineService
	server *http.Server
}

// New builds the application graph. Nothing starts running until Run.
func New(cfg Config, log logger.Logger) (*App, error) {
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	authSvc, err := auth.NewService(repo, log)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("initializing auth: %w", err)
	}

	probe := mediaprobe.New(cfg.MediaServiceURL)

	// The service and hub reference each other (broadcasts one way, viewer
	// counts the other), so wire the notifier after both exist.
	svc := services.NewTimelineService(repo, probe, log,
		services.WithMaxAdClipMinutes(cfg.MaxAdClipMinutes))
	m := metrics.New(svc.LiveTimelineCount)
	hub := websocket.NewHub(log, m, svc)
	services.WithNotifier(hub)(svc)
	services.WithMetrics(m)(svc)

	h := handlers.New(svc, authSvc, hub, log, cfg.BaseURL,
		handlers.WithHTTPLogging(cfg.HTTPLogging))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h.Routes(m.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &App{
		cfg:    cfg,
		log:    log,
		repo:   repo,
		hub:    hub,
		svc:    svc,
		server: server,
	}, nil
}

// Run starts the hub, the ticker, and the HTTP server, then blocks until ctx
// is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hub.Run(ctx)
	go websocket.RunTicker(ctx, a.svc, a.cfg.TickInterval, a.log)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server listening", "addr", a.server.Addr, "base_url", a.cfg.BaseURL)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server shutdown", "error", err)
	}
	return a.repo.Close()
}
