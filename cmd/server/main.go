package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/signconnect/server/internal/app"
	"github.com/signconnect/server/internal/observability"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		observability.InitLogger("info", false)
		bootLogger := observability.GetLogger()
		bootLogger.Fatal().Err(err).Msg("load config")
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	if cfg.JWTSecret == "" {
		logger.Warn().Msg("JWT_SECRET not set, guest tokens are signed with an empty key")
	}

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
			Release:          cfg.Version,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("sentry init failed")
		} else {
			logger.Info().Msg("sentry initialized")
			defer sentry.Flush(2 * time.Second)
		}
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		if cfg.SentryDSN != "" {
			sentry.CaptureException(err)
			sentry.Flush(2 * time.Second)
		}
		logger.Fatal().Err(err).Msg("init app")
	}

	handler, err := a.Router()
	if err != nil {
		logger.Fatal().Err(err).Msg("build router")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("version", cfg.Version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	_ = a.Close()
}
