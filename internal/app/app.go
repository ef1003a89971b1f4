// Package app assembles the server from its parts: configuration, the
// database pool, the event journal, and the HTTP router.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/signconnect/server/internal/eventlog"
	"github.com/signconnect/server/internal/httpapi"
	"github.com/signconnect/server/internal/jobs"
	"github.com/signconnect/server/internal/store"
)

// App holds the long-lived pieces of the server. The database is optional:
// without DATABASE_URL live sessions still run, but persistence-backed
// endpoints report unavailable and session summaries are not stored.
type App struct {
	cfg       Config
	logger    zerolog.Logger
	db        *pgxpool.Pool
	store     *store.Store
	eventLog  *eventlog.Logger
	retention *jobs.RetentionJob
}

func New(cfg Config, logger zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, running without persistence")
		return a, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	a.db = db
	a.store = store.New(db)
	a.eventLog = eventlog.New(db)

	if cfg.DataRetention > 0 {
		a.retention = jobs.NewRetentionJob(a.store, a.eventLog, logger, cfg.RetentionSweepInterval, cfg.DataRetention)
		a.retention.Start()
	}
	return a, nil
}

func (a *App) Router() (http.Handler, error) {
	return httpapi.NewRouter(httpapi.RouterConfig{
		Version:            a.cfg.Version,
		DeepgramAPIKey:     a.cfg.DeepgramAPIKey,
		GeminiAPIKey:       a.cfg.GeminiAPIKey,
		GeminiModel:        a.cfg.GeminiModel,
		ElevenLabsAPIKey:   a.cfg.ElevenLabsAPIKey,
		STTEndpointingMs:   a.cfg.STTEndpointingMs,
		STTUtteranceEndMs:  a.cfg.STTUtteranceEndMs,
		CoachSystemPrompt:  a.cfg.CoachSystemPrompt,
		TTSVoiceID:         a.cfg.TTSVoiceID,
		TTSStability:       a.cfg.TTSStability,
		TTSSimilarity:      a.cfg.TTSSimilarity,
		SignTemplatesPath:  a.cfg.SignTemplatesPath,
		QuizCountdownTick:  a.cfg.QuizCountdownTick,
		SessionIdleTimeout: a.cfg.SessionIdleTimeout,
		JWTSecret:          a.cfg.JWTSecret,
		JWTExpiry:          a.cfg.JWTExpiry,
		AllowedOrigins:     a.cfg.AllowedOrigins,
		MetricsEnabled:     a.cfg.MetricsEnabled,
		APNsKeyPath:        a.cfg.APNsKeyPath,
		APNsKeyID:          a.cfg.APNsKeyID,
		APNsTeamID:         a.cfg.APNsTeamID,
		APNsBundleID:       a.cfg.APNsBundleID,
		APNsProduction:     a.cfg.APNsProduction,
	}, a.logger, a.store, a.eventLog)
}

func (a *App) Close() error {
	if a.retention != nil {
		a.retention.Stop()
	}
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
