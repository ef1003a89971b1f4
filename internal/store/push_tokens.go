package store

import (
	"context"
	"time"
)

// DevicePushToken represents a push notification token for a device
type DevicePushToken struct {
	ID        string    `json:"id"`
	LearnerID string    `json:"learner_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"` // "ios" or "android"
	CreatedAt time.Time `json:"created_at"`
}

// RegisterPushToken registers or updates a device push token for a learner
func (s *Store) RegisterPushToken(ctx context.Context, learnerID, token, platform string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO device_push_tokens (learner_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (learner_id, token) DO UPDATE SET
			platform = EXCLUDED.platform,
			created_at = NOW()
	`, learnerID, token, platform)
	return err
}

// UnregisterPushToken removes a device push token
func (s *Store) UnregisterPushToken(ctx context.Context, token string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM device_push_tokens WHERE token = $1
	`, token)
	return err
}

// UnregisterLearnerPushTokens removes all push tokens for a learner
func (s *Store) UnregisterLearnerPushTokens(ctx context.Context, learnerID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM device_push_tokens WHERE learner_id = $1
	`, learnerID)
	return err
}

// DeleteStalePushTokens removes tokens belonging to learners not seen
// since the cutoff. Returns the number of rows removed.
func (s *Store) DeleteStalePushTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM device_push_tokens
		WHERE learner_id IN (SELECT id FROM learners WHERE last_seen_at < $1)
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetLearnerPushTokens returns all push tokens for a learner
func (s *Store) GetLearnerPushTokens(ctx context.Context, learnerID string) ([]DevicePushToken, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, learner_id, token, platform, created_at
		FROM device_push_tokens
		WHERE learner_id = $1
	`, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []DevicePushToken
	for rows.Next() {
		var t DevicePushToken
		if err := rows.Scan(&t.ID, &t.LearnerID, &t.Token, &t.Platform, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
