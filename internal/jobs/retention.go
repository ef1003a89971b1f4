// Package jobs runs periodic background maintenance against the database.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/signconnect/server/internal/eventlog"
	"github.com/signconnect/server/internal/store"
)

// RetentionJob prunes aged rows on an interval: session journal events
// past the retention window, and push tokens for learners who have not
// connected within that window. It runs once at startup and then on
// every tick until stopped.
type RetentionJob struct {
	store    *store.Store
	journal  *eventlog.Logger
	logger   zerolog.Logger
	interval time.Duration
	maxAge   time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewRetentionJob creates a retention job. A zero interval defaults to
// one hour.
func NewRetentionJob(s *store.Store, journal *eventlog.Logger, logger zerolog.Logger, interval, maxAge time.Duration) *RetentionJob {
	if interval == 0 {
		interval = time.Hour
	}
	return &RetentionJob{
		store:    s,
		journal:  journal,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background job.
func (j *RetentionJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Info().
		Dur("interval", j.interval).
		Dur("max_age", j.maxAge).
		Msg("retention job started")
}

// Stop gracefully stops the background job.
func (j *RetentionJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info().Msg("retention job stopped")
}

func (j *RetentionJob) run() {
	defer j.wg.Done()

	j.sweep()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stopCh:
			return
		}
	}
}

func (j *RetentionJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-j.maxAge)

	events, err := j.journal.Purge(ctx, cutoff)
	if err != nil {
		j.logger.Error().Err(err).Msg("purge session events")
	} else if events > 0 {
		j.logger.Info().Int64("rows", events).Msg("purged old session events")
	}

	if j.store == nil {
		return
	}
	tokens, err := j.store.DeleteStalePushTokens(ctx, cutoff)
	if err != nil {
		j.logger.Error().Err(err).Msg("purge stale push tokens")
	} else if tokens > 0 {
		j.logger.Info().Int64("rows", tokens).Msg("purged stale push tokens")
	}
}
