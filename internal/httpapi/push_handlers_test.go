package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/signconnect/server/internal/store"
)

func TestHandlePushRegister(t *testing.T) {
	r := &Router{
		cfg:    RouterConfig{},
		logger: zerolog.Nop(),
	}

	t.Run("unauthorized without auth", func(t *testing.T) {
		body := `{"token": "device-token", "platform": "ios"}`
		req := httptest.NewRequest(http.MethodPost, "/api/push/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		r.handlePushRegister(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	authCtx := context.WithValue(context.Background(), learnerContextKey, &AuthLearner{ID: "learner-123"})

	t.Run("no store configured", func(t *testing.T) {
		body := `{"token": "device-token", "platform": "ios"}`
		req := httptest.NewRequest(http.MethodPost, "/api/push/register", strings.NewReader(body)).WithContext(authCtx)
		rec := httptest.NewRecorder()

		r.handlePushRegister(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
	})

	withStore := &Router{
		cfg:    RouterConfig{},
		logger: zerolog.Nop(),
		store:  store.New(nil),
	}

	t.Run("invalid request body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/push/register", strings.NewReader("invalid json")).WithContext(authCtx)
		rec := httptest.NewRecorder()

		withStore.handlePushRegister(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		var resp map[string]string
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		if !strings.Contains(resp["error"], "invalid request body") {
			t.Errorf("error = %q, should mention invalid request body", resp["error"])
		}
	})

	t.Run("missing token", func(t *testing.T) {
		body := `{"token": "", "platform": "ios"}`
		req := httptest.NewRequest(http.MethodPost, "/api/push/register", strings.NewReader(body)).WithContext(authCtx)
		rec := httptest.NewRecorder()

		withStore.handlePushRegister(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		var resp map[string]string
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		if !strings.Contains(resp["error"], "token is required") {
			t.Errorf("error = %q, should mention token is required", resp["error"])
		}
	})

	t.Run("invalid platform", func(t *testing.T) {
		body := `{"token": "device-token", "platform": "windows"}`
		req := httptest.NewRequest(http.MethodPost, "/api/push/register", strings.NewReader(body)).WithContext(authCtx)
		rec := httptest.NewRecorder()

		withStore.handlePushRegister(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		var resp map[string]string
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		if !strings.Contains(resp["error"], "platform must be") {
			t.Errorf("error = %q, should mention platform must be ios or android", resp["error"])
		}
	})
}

func TestHandlePushUnregister(t *testing.T) {
	r := &Router{
		cfg:    RouterConfig{},
		logger: zerolog.Nop(),
		store:  store.New(nil),
	}

	t.Run("unauthorized without auth", func(t *testing.T) {
		body := `{"token": "device-token"}`
		req := httptest.NewRequest(http.MethodPost, "/api/push/unregister", strings.NewReader(body))
		rec := httptest.NewRecorder()

		r.handlePushUnregister(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})

	authCtx := context.WithValue(context.Background(), learnerContextKey, &AuthLearner{ID: "learner-123"})

	t.Run("invalid request body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/push/unregister", strings.NewReader("invalid json")).WithContext(authCtx)
		rec := httptest.NewRecorder()

		r.handlePushUnregister(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		body := `{"token": ""}`
		req := httptest.NewRequest(http.MethodPost, "/api/push/unregister", strings.NewReader(body)).WithContext(authCtx)
		rec := httptest.NewRecorder()

		r.handlePushUnregister(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		var resp map[string]string
		_ = json.NewDecoder(rec.Body).Decode(&resp)
		if !strings.Contains(resp["error"], "token is required") {
			t.Errorf("error = %q, should mention token is required", resp["error"])
		}
	})
}

func TestHandlePushTestUnconfigured(t *testing.T) {
	r := &Router{cfg: RouterConfig{}, logger: zerolog.Nop()}

	authCtx := context.WithValue(context.Background(), learnerContextKey, &AuthLearner{ID: "learner-123"})
	body := `{"token": "device-token"}`
	req := httptest.NewRequest(http.MethodPost, "/api/push/test", strings.NewReader(body)).WithContext(authCtx)
	rec := httptest.NewRecorder()

	r.handlePushTest(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

// Integration tests (require database)
func TestPushTokensIntegration(t *testing.T) {
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

	learner, err := s.CreateLearner(ctx, "Push Tester")
	if err != nil {
		t.Fatalf("CreateLearner failed: %v", err)
	}
	defer func() {
		_, _ = db.Exec(ctx, "DELETE FROM learners WHERE id = $1", learner.ID)
	}()

	authCtx := context.WithValue(ctx, learnerContextKey, &AuthLearner{ID: learner.ID})

	t.Run("register and unregister token", func(t *testing.T) {
		body := `{"token": "test-device-token-123", "platform": "ios"}`
		req := httptest.NewRequest(http.MethodPost, "/api/push/register", strings.NewReader(body)).WithContext(authCtx)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		r.handlePushRegister(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("register status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		tokens, err := s.GetLearnerPushTokens(ctx, learner.ID)
		if err != nil {
			t.Fatalf("GetLearnerPushTokens failed: %v", err)
		}
		if len(tokens) != 1 {
			t.Fatalf("expected 1 token, got %d", len(tokens))
		}
		if tokens[0].Token != "test-device-token-123" {
			t.Errorf("token = %q, want %q", tokens[0].Token, "test-device-token-123")
		}
		if tokens[0].Platform != "ios" {
			t.Errorf("platform = %q, want %q", tokens[0].Platform, "ios")
		}

		body = `{"token": "test-device-token-123"}`
		req = httptest.NewRequest(http.MethodPost, "/api/push/unregister", strings.NewReader(body)).WithContext(authCtx)
		req.Header.Set("Content-Type", "application/json")
		rec = httptest.NewRecorder()

		r.handlePushUnregister(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("unregister status = %d, want %d, body: %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		tokens, err = s.GetLearnerPushTokens(ctx, learner.ID)
		if err != nil {
			t.Fatalf("GetLearnerPushTokens failed: %v", err)
		}
		if len(tokens) != 0 {
			t.Errorf("expected 0 tokens after unregister, got %d", len(tokens))
		}
	})
}
