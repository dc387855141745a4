// Command showtime runs the live showcase timeline service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/showcaselive/showtime/internal/app"
	"github.com/showcaselive/showtime/internal/config"
	"github.com/showcaselive/showtime/internal/logger"
	"github.com/showcaselive/showtime/internal/services"
)

func main() {
	// Optional .env file; flags and real env still win.
	config.Load()

	var (
		port         = flag.Int("port", config.GetEnvInt("SHOWTIME_PORT", 8080), "HTTP listen port")
		dbPath       = flag.String("db", config.GetEnv("SHOWTIME_DB", "showtime.db"), "SQLite database path")
		baseURL      = flag.String("base-url", config.GetEnv("SHOWTIME_BASE_URL", ""), "externally reachable base URL (for QR codes)")
		mediaURL     = flag.String("media-url", config.GetEnv("SHOWTIME_MEDIA_URL", "http://localhost:9090"), "media metadata service base URL")
		tickSeconds  = flag.Int("tick-seconds", config.GetEnvInt("SHOWTIME_TICK_SECONDS", 5), "timeline poll interval in seconds")
		logLevel     = flag.String("log-level", config.GetEnv("SHOWTIME_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
		httpLogging  = flag.Bool("http-logging", config.GetEnvBool("SHOWTIME_HTTP_LOGGING", false), "log every HTTP request")
		maxAdMinutes = flag.Float64("max-ad-clip-minutes", config.GetEnvFloat("SHOWTIME_MAX_AD_CLIP_MINUTES", services.DefaultMaxAdClipMinutes), "cap on a single ad clip's minutes")
	)
	flag.Parse()

	log := logger.New(*logLevel)

	base := *baseURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", *port)
	}

	a, err := app.New(app.Config{
		Port:             *port,
		DBPath:           *dbPath,
		BaseURL:          base,
		MediaServiceURL:  *mediaURL,
		TickInterval:     time.Duration(*tickSeconds) * time.Second,
		MaxAdClipMinutes: *maxAdMinutes,
		HTTPLogging:      *httpLogging,
	}, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
