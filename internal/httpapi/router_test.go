package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRouter(t *testing.T, cfg RouterConfig) http.Handler {
	t.Helper()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "test-secret-key"
	}
	if cfg.JWTExpiry == 0 {
		cfg.JWTExpiry = time.Hour
	}
	handler, err := NewRouter(cfg, zerolog.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return handler
}

func TestIndexBanner(t *testing.T) {
	handler := newTestRouter(t, RouterConfig{Version: "1.2.3"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["service"] != "signconnect" {
		t.Errorf("service = %q, want signconnect", body["service"])
	}
	if body["version"] != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", body["version"])
	}

	// The banner route is exact; unknown paths 404.
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHealthzReportsComponents(t *testing.T) {
	handler := newTestRouter(t, RouterConfig{
		DeepgramAPIKey: "dg-key",
		GeminiAPIKey:   "gm-key",
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	want := map[string]string{
		"db":    "disabled",
		"asr":   "configured",
		"coach": "gemini",
		"tts":   "disabled",
	}
	for component, state := range want {
		if body.Components[component] != state {
			t.Errorf("component %s = %q, want %q", component, body.Components[component], state)
		}
	}
}

func TestReadyzWithoutDatabase(t *testing.T) {
	handler := newTestRouter(t, RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestMetricsRoute(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		handler := newTestRouter(t, RouterConfig{MetricsEnabled: true})
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		handler := newTestRouter(t, RouterConfig{})
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}

func TestCORSHeaders(t *testing.T) {
	t.Run("wildcard by default", func(t *testing.T) {
		handler := newTestRouter(t, RouterConfig{})
		req := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("allow-origin = %q, want *", got)
		}
	})

	t.Run("specific origin echoed", func(t *testing.T) {
		handler := newTestRouter(t, RouterConfig{
			AllowedOrigins: []string{"https://app.signconnect.io"},
		})
		req := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
		req.Header.Set("Origin", "https://app.signconnect.io")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.signconnect.io" {
			t.Errorf("allow-origin = %q, want echoed origin", got)
		}
	})

	t.Run("unknown origin gets no header", func(t *testing.T) {
		handler := newTestRouter(t, RouterConfig{
			AllowedOrigins: []string{"https://app.signconnect.io"},
		})
		req := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("allow-origin = %q, want empty", got)
		}
	})
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no restriction", nil, "https://anywhere.example.com", true},
		{"no origin header", []string{"https://app.signconnect.io"}, "", true},
		{"wildcard entry", []string{"*"}, "https://anywhere.example.com", true},
		{"exact match", []string{"https://app.signconnect.io"}, "https://app.signconnect.io", true},
		{"mismatch", []string{"https://app.signconnect.io"}, "https://evil.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Router{cfg: RouterConfig{AllowedOrigins: tt.allowed}}
			if got := r.originAllowed(tt.origin); got != tt.want {
				t.Errorf("originAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
