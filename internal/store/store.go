package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Learner represents one person practicing signs. Learners are created
// through the guest auth flow; there is no password or email.
type Learner struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// PracticeSession is the persisted record of one finished WebSocket
// session, written after the connection closes.
type PracticeSession struct {
	ID              string    `json:"id"`
	LearnerID       string    `json:"learner_id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds int       `json:"duration_seconds"`
	SignsMastered   []string  `json:"signs_mastered"`
	QuizCount       int       `json:"quiz_count"`
	AudioInBytes    int64     `json:"audio_in_bytes"`
	TTSChars        int64     `json:"tts_chars"`
	CoachChars      int64     `json:"coach_chars"`
	EstCostCents    int       `json:"est_cost_cents"`
	CreatedAt       time.Time `json:"created_at"`
}

// QuizRecord is one completed quiz. Details maps each quizzed sign to
// its per-try outcomes, stored verbatim as JSON.
type QuizRecord struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	LearnerID string          `json:"learner_id"`
	Passed    int             `json:"passed"`
	Total     int             `json:"total"`
	Score     int             `json:"score"`
	Missed    []string        `json:"missed"`
	Details   json.RawMessage `json:"details"`
	CreatedAt time.Time       `json:"created_at"`
}

// SignMastery is the per-learner running tally for one sign.
type SignMastery struct {
	LearnerID       string    `json:"learner_id"`
	Sign            string    `json:"sign"`
	TimesMastered   int       `json:"times_mastered"`
	TimesMissed     int       `json:"times_missed"`
	LastPracticedAt time.Time `json:"last_practiced_at"`
}

// LearnerStats is the rollup behind the progress endpoint.
type LearnerStats struct {
	TotalSessions        int     `json:"total_sessions"`
	TotalPracticeSeconds int     `json:"total_practice_seconds"`
	TotalQuizzes         int     `json:"total_quizzes"`
	AverageScore         float64 `json:"average_score"`
}

// ============================================================================
// Learner operations
// ============================================================================

// CreateLearner creates a new guest learner and returns it.
func (s *Store) CreateLearner(ctx context.Context, displayName string) (*Learner, error) {
	var l Learner
	err := s.db.QueryRow(ctx, `
		INSERT INTO learners (display_name)
		VALUES ($1)
		RETURNING id, display_name, created_at, last_seen_at
	`, displayName).Scan(&l.ID, &l.DisplayName, &l.CreatedAt, &l.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLearnerByID retrieves a learner by ID.
func (s *Store) GetLearnerByID(ctx context.Context, id string) (*Learner, error) {
	var l Learner
	err := s.db.QueryRow(ctx, `
		SELECT id, display_name, created_at, last_seen_at
		FROM learners
		WHERE id = $1
	`, id).Scan(&l.ID, &l.DisplayName, &l.CreatedAt, &l.LastSeenAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// TouchLearner updates last_seen_at. Called when a session connects.
func (s *Store) TouchLearner(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE learners SET last_seen_at = NOW() WHERE id = $1
	`, id)
	return err
}

// ============================================================================
// Practice session operations
// ============================================================================

// InsertPracticeSession stores the summary of one finished session.
func (s *Store) InsertPracticeSession(ctx context.Context, ps PracticeSession) error {
	signs := ps.SignsMastered
	if signs == nil {
		signs = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO practice_sessions
			(id, learner_id, started_at, ended_at, duration_seconds,
			 signs_mastered, quiz_count, audio_in_bytes, tts_chars, coach_chars, est_cost_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`, ps.ID, ps.LearnerID, ps.StartedAt, ps.EndedAt, ps.DurationSeconds,
		signs, ps.QuizCount, ps.AudioInBytes, ps.TTSChars, ps.CoachChars, ps.EstCostCents)
	return err
}

// ListPracticeSessions returns a learner's sessions, most recent first.
func (s *Store) ListPracticeSessions(ctx context.Context, learnerID string, limit int) ([]PracticeSession, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, learner_id, started_at, ended_at, duration_seconds,
		       signs_mastered, quiz_count, audio_in_bytes, tts_chars, coach_chars,
		       est_cost_cents, created_at
		FROM practice_sessions
		WHERE learner_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`, learnerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []PracticeSession
	for rows.Next() {
		var ps PracticeSession
		if err := rows.Scan(&ps.ID, &ps.LearnerID, &ps.StartedAt, &ps.EndedAt, &ps.DurationSeconds,
			&ps.SignsMastered, &ps.QuizCount, &ps.AudioInBytes, &ps.TTSChars, &ps.CoachChars,
			&ps.EstCostCents, &ps.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, ps)
	}
	return sessions, rows.Err()
}

// ============================================================================
// Quiz record operations
// ============================================================================

// InsertQuizRecord stores one completed quiz.
func (s *Store) InsertQuizRecord(ctx context.Context, qr QuizRecord) error {
	missed := qr.Missed
	if missed == nil {
		missed = []string{}
	}
	details := qr.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO quiz_records (session_id, learner_id, passed, total, score, missed, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, qr.SessionID, qr.LearnerID, qr.Passed, qr.Total, qr.Score, missed, details)
	return err
}

// ListQuizRecords returns a learner's quizzes, most recent first.
func (s *Store) ListQuizRecords(ctx context.Context, learnerID string, limit int) ([]QuizRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, session_id, learner_id, passed, total, score, missed, details, created_at
		FROM quiz_records
		WHERE learner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, learnerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []QuizRecord
	for rows.Next() {
		var qr QuizRecord
		var details []byte
		if err := rows.Scan(&qr.ID, &qr.SessionID, &qr.LearnerID, &qr.Passed, &qr.Total,
			&qr.Score, &qr.Missed, &details, &qr.CreatedAt); err != nil {
			return nil, err
		}
		qr.Details = json.RawMessage(details)
		records = append(records, qr)
	}
	return records, rows.Err()
}

// ============================================================================
// Sign mastery operations
// ============================================================================

// RecordSignMastered bumps the mastered counter for one sign.
func (s *Store) RecordSignMastered(ctx context.Context, learnerID, sign string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sign_mastery (learner_id, sign, times_mastered)
		VALUES ($1, $2, 1)
		ON CONFLICT (learner_id, sign) DO UPDATE SET
			times_mastered = sign_mastery.times_mastered + 1,
			last_practiced_at = NOW()
	`, learnerID, sign)
	return err
}

// RecordSignMissed bumps the missed counter for one sign.
func (s *Store) RecordSignMissed(ctx context.Context, learnerID, sign string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sign_mastery (learner_id, sign, times_missed)
		VALUES ($1, $2, 1)
		ON CONFLICT (learner_id, sign) DO UPDATE SET
			times_missed = sign_mastery.times_missed + 1,
			last_practiced_at = NOW()
	`, learnerID, sign)
	return err
}

// GetSignMastery returns the per-sign tallies for a learner, alphabetical.
func (s *Store) GetSignMastery(ctx context.Context, learnerID string) ([]SignMastery, error) {
	rows, err := s.db.Query(ctx, `
		SELECT learner_id, sign, times_mastered, times_missed, last_practiced_at
		FROM sign_mastery
		WHERE learner_id = $1
		ORDER BY sign ASC
	`, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mastery []SignMastery
	for rows.Next() {
		var m SignMastery
		if err := rows.Scan(&m.LearnerID, &m.Sign, &m.TimesMastered, &m.TimesMissed,
			&m.LastPracticedAt); err != nil {
			return nil, err
		}
		mastery = append(mastery, m)
	}
	return mastery, rows.Err()
}

// GetLearnerStats returns the aggregate numbers for the progress view.
func (s *Store) GetLearnerStats(ctx context.Context, learnerID string) (*LearnerStats, error) {
	var st LearnerStats
	err := s.db.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT COUNT(*) FROM practice_sessions WHERE learner_id = $1), 0),
			COALESCE((SELECT SUM(duration_seconds) FROM practice_sessions WHERE learner_id = $1), 0),
			COALESCE((SELECT COUNT(*) FROM quiz_records WHERE learner_id = $1), 0),
			COALESCE((SELECT AVG(score) FROM quiz_records WHERE learner_id = $1), 0)
	`, learnerID).Scan(&st.TotalSessions, &st.TotalPracticeSeconds, &st.TotalQuizzes, &st.AverageScore)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
