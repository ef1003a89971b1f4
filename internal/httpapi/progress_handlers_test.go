package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/signconnect/server/internal/store"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 20},
		{"limit=5", 5},
		{"limit=100", 100},
		{"limit=500", 100},
		{"limit=0", 20},
		{"limit=-3", 20},
		{"limit=abc", 20},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sessions?"+tt.query, nil)
			if got := parseLimit(req); got != tt.want {
				t.Errorf("parseLimit(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestProgressRequiresAuth(t *testing.T) {
	r := &Router{cfg: RouterConfig{}, logger: zerolog.Nop()}

	for _, handler := range []struct {
		name string
		fn   http.HandlerFunc
	}{
		{"progress", r.handleGetProgress},
		{"sessions", r.handleListSessions},
	} {
		t.Run(handler.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/"+handler.name, nil)
			rec := httptest.NewRecorder()
			handler.fn(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestProgressWithoutStore(t *testing.T) {
	r := &Router{cfg: RouterConfig{}, logger: zerolog.Nop()}

	learner := &AuthLearner{ID: "learner-123"}
	ctx := context.WithValue(context.Background(), learnerContextKey, learner)

	req := httptest.NewRequest(http.MethodGet, "/api/progress", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	r.handleGetProgress(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// Integration tests (require database)
func TestProgressEndpointsIntegration(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	s := store.New(db)
	r := &Router{
		cfg:    RouterConfig{JWTSecret: "test-secret-key", JWTExpiry: time.Hour},
		logger: zerolog.Nop(),
		store:  s,
	}

	learner, err := s.CreateLearner(ctx, "Progress Tester")
	if err != nil {
		t.Fatalf("CreateLearner failed: %v", err)
	}
	defer func() {
		_, _ = db.Exec(ctx, "DELETE FROM learners WHERE id = $1", learner.ID)
	}()

	sessionID := "sess-progress-" + time.Now().Format("20060102150405.000000000")
	started := time.Now().UTC().Add(-10 * time.Minute)
	err = s.InsertPracticeSession(ctx, store.PracticeSession{
		ID:              sessionID,
		LearnerID:       learner.ID,
		StartedAt:       started,
		EndedAt:         started.Add(5 * time.Minute),
		DurationSeconds: 300,
		SignsMastered:   []string{"A", "B"},
		QuizCount:       1,
	})
	if err != nil {
		t.Fatalf("InsertPracticeSession failed: %v", err)
	}

	err = s.InsertQuizRecord(ctx, store.QuizRecord{
		SessionID: sessionID,
		LearnerID: learner.ID,
		Passed:    6,
		Total:     8,
		Score:     75,
		Missed:    []string{"V", "O"},
	})
	if err != nil {
		t.Fatalf("InsertQuizRecord failed: %v", err)
	}

	if err := s.RecordSignMastered(ctx, learner.ID, "A"); err != nil {
		t.Fatalf("RecordSignMastered failed: %v", err)
	}

	authCtx := context.WithValue(ctx, learnerContextKey, &AuthLearner{ID: learner.ID})

	t.Run("progress rollup", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/progress", nil).WithContext(authCtx)
		rec := httptest.NewRecorder()
		r.handleGetProgress(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var resp struct {
			Stats         store.LearnerStats  `json:"stats"`
			Signs         []store.SignMastery `json:"signs"`
			RecentQuizzes []store.QuizRecord  `json:"recent_quizzes"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}

		if resp.Stats.TotalSessions != 1 {
			t.Errorf("total sessions = %d, want 1", resp.Stats.TotalSessions)
		}
		if resp.Stats.TotalQuizzes != 1 {
			t.Errorf("total quizzes = %d, want 1", resp.Stats.TotalQuizzes)
		}
		if resp.Stats.AverageScore != 75 {
			t.Errorf("average score = %v, want 75", resp.Stats.AverageScore)
		}
		if len(resp.Signs) != 1 || resp.Signs[0].Sign != "A" {
			t.Errorf("signs = %+v, want one entry for A", resp.Signs)
		}
		if len(resp.RecentQuizzes) != 1 || resp.RecentQuizzes[0].Score != 75 {
			t.Errorf("recent quizzes = %+v, want one with score 75", resp.RecentQuizzes)
		}
	})

	t.Run("session list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/sessions?limit=5", nil).WithContext(authCtx)
		rec := httptest.NewRecorder()
		r.handleListSessions(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		var resp struct {
			Sessions []store.PracticeSession `json:"sessions"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Sessions) != 1 {
			t.Fatalf("sessions = %d, want 1", len(resp.Sessions))
		}
		if resp.Sessions[0].ID != sessionID {
			t.Errorf("session id = %q, want %q", resp.Sessions[0].ID, sessionID)
		}
		if resp.Sessions[0].DurationSeconds != 300 {
			t.Errorf("duration = %d, want 300", resp.Sessions[0].DurationSeconds)
		}
	})
}
