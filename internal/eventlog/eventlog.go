package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType represents the type of session event
type EventType string

const (
	EventSessionStarted  EventType = "session_started"
	EventTranscriptFinal EventType = "transcript_final"
	EventIntentParsed    EventType = "intent_parsed"
	EventBargeIn         EventType = "barge_in"
	EventTeachStarted    EventType = "teach_started"
	EventSignMastered    EventType = "sign_mastered"
	EventQuizStarted     EventType = "quiz_started"
	EventQuizGraded      EventType = "quiz_graded"
	EventQuizCompleted   EventType = "quiz_completed"
	EventUpstreamError   EventType = "upstream_error"
	EventSessionEnded    EventType = "session_ended"
)

// Logger provides async event logging to the database
type Logger struct {
	db *pgxpool.Pool
}

// New creates a new event logger
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Log writes an event to the database synchronously
func (l *Logger) Log(ctx context.Context, sessionID string, eventType EventType, data map[string]any) error {
	if l == nil || l.db == nil || sessionID == "" {
		return nil // Silently skip if no DB or session ID
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO session_events (session_id, event_type, event_data)
		VALUES ($1, $2, $3)
	`, sessionID, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller
func (l *Logger) LogAsync(sessionID string, eventType EventType, data map[string]any) {
	if l == nil || l.db == nil || sessionID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, sessionID, eventType, data)
	}()
}

// Purge deletes events older than the cutoff and reports how many rows
// were removed.
func (l *Logger) Purge(ctx context.Context, before time.Time) (int64, error) {
	if l == nil || l.db == nil {
		return 0, nil
	}

	tag, err := l.db.Exec(ctx, `
		DELETE FROM session_events WHERE created_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
