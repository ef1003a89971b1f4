// Package httpapi exposes the HTTP surface: the session WebSocket, guest
// auth, progress endpoints, push-token registration, and the health and
// metrics probes.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/signconnect/server/internal/coach"
	"github.com/signconnect/server/internal/eventlog"
	"github.com/signconnect/server/internal/notifications"
	"github.com/signconnect/server/internal/pose"
	"github.com/signconnect/server/internal/store"
	"github.com/signconnect/server/internal/tts"
)

type RouterConfig struct {
	Version string

	// Recognition and speech providers
	DeepgramAPIKey   string
	GeminiAPIKey     string
	GeminiModel      string
	ElevenLabsAPIKey string

	// STT settings
	STTEndpointingMs  int // Deepgram endpointing in ms (silence threshold)
	STTUtteranceEndMs int // Hard timeout after last speech, regardless of noise

	// Coaching settings
	CoachSystemPrompt string

	// Voice settings
	TTSVoiceID    string
	TTSStability  float64 // ElevenLabs voice stability; negative means provider default
	TTSSimilarity float64 // ElevenLabs similarity boost; negative means provider default

	// Optional sign template override; empty uses the embedded set
	SignTemplatesPath string

	// Session tuning
	QuizCountdownTick  time.Duration // delay between quiz countdown values
	SessionIdleTimeout time.Duration // close sessions after this much client silence; 0 disables

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// Origins allowed to connect. Empty or "*" allows all.
	AllowedOrigins []string

	MetricsEnabled bool

	// APNs Push Notifications
	APNsKeyPath    string // Path to .p8 key file
	APNsKeyID      string // Key ID from Apple Developer Portal
	APNsTeamID     string // Team ID from Apple Developer Portal
	APNsBundleID   string // App bundle ID (e.g., com.signconnect.app)
	APNsProduction bool   // Use production environment
}

type Router struct {
	cfg        RouterConfig
	logger     zerolog.Logger
	store      *store.Store
	journal    *eventlog.Logger
	apns       *notifications.APNsClient
	classifier *pose.Classifier
	coach      coach.Coach
	tts        tts.Client
	upgrader   websocket.Upgrader
	mux        *http.ServeMux
}

// NewRouter wires the full handler tree. The store and journal may be nil,
// which disables persistence; provider clients are built only for the API
// keys present, and the session engine degrades accordingly.
func NewRouter(cfg RouterConfig, logger zerolog.Logger, s *store.Store, journal *eventlog.Logger) (http.Handler, error) {
	classifier, err := pose.NewClassifier(cfg.SignTemplatesPath)
	if err != nil {
		return nil, fmt.Errorf("load sign templates: %w", err)
	}

	// Initialize APNs client (may be nil if not configured)
	apnsClient, err := notifications.NewAPNsClient(notifications.APNsConfig{
		KeyPath:    cfg.APNsKeyPath,
		KeyID:      cfg.APNsKeyID,
		TeamID:     cfg.APNsTeamID,
		BundleID:   cfg.APNsBundleID,
		Production: cfg.APNsProduction,
	}, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("apns client initialization failed")
	}

	r := &Router{
		cfg:        cfg,
		logger:     logger,
		store:      s,
		journal:    journal,
		apns:       apnsClient,
		classifier: classifier,
		mux:        http.NewServeMux(),
	}

	if cfg.GeminiAPIKey != "" {
		r.coach = coach.NewGeminiCoach(coach.GeminiConfig{
			APIKey:       cfg.GeminiAPIKey,
			Model:        cfg.GeminiModel,
			SystemPrompt: cfg.CoachSystemPrompt,
		})
	} else {
		r.coach = coach.NewRuleCoach()
	}

	if cfg.ElevenLabsAPIKey != "" {
		r.tts = tts.NewElevenLabsClient(tts.ElevenLabsConfig{
			APIKey:     cfg.ElevenLabsAPIKey,
			VoiceID:    cfg.TTSVoiceID,
			Stability:  cfg.TTSStability,
			Similarity: cfg.TTSSimilarity,
		})
	}

	r.upgrader = websocket.Upgrader{
		CheckOrigin: func(req *http.Request) bool {
			return r.originAllowed(req.Header.Get("Origin"))
		},
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux, cfg.AllowedOrigins)), nil
}

func (r *Router) routes() {
	// Service banner and probes
	r.mux.HandleFunc("GET /{$}", r.handleIndex)
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /readyz", r.handleReadyz)
	if r.cfg.MetricsEnabled {
		r.mux.Handle("GET /metrics", promhttp.Handler())
	}

	// Live tutoring session
	r.mux.HandleFunc("GET /ws/session", r.handleSessionWS)

	// Auth endpoints
	r.mux.HandleFunc("POST /api/auth/guest", r.handleGuestAuth)
	r.mux.HandleFunc("GET /api/me", r.withAuth(r.handleGetMe))

	// Progress endpoints (protected)
	r.mux.HandleFunc("GET /api/progress", r.withAuth(r.handleGetProgress))
	r.mux.HandleFunc("GET /api/sessions", r.withAuth(r.handleListSessions))

	// Push notifications (protected)
	r.mux.HandleFunc("POST /api/push/register", r.withAuth(r.handlePushRegister))
	r.mux.HandleFunc("POST /api/push/unregister", r.withAuth(r.handlePushUnregister))
	r.mux.HandleFunc("POST /api/push/test", r.withAuth(r.handlePushTest))
}

func (r *Router) handleIndex(w http.ResponseWriter, _ *http.Request) {
	version := r.cfg.Version
	if version == "" {
		version = "dev"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "signconnect",
		"version": version,
		"status":  "ok",
	})
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	components := map[string]string{
		"db":    "disabled",
		"asr":   "disabled",
		"coach": "rules",
		"tts":   "disabled",
	}
	if r.store != nil {
		components["db"] = "configured"
	}
	if r.cfg.DeepgramAPIKey != "" {
		components["asr"] = "configured"
	}
	if r.cfg.GeminiAPIKey != "" {
		components["coach"] = "gemini"
	}
	if r.cfg.ElevenLabsAPIKey != "" {
		components["tts"] = "configured"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"components": components,
	})
}

func (r *Router) handleReadyz(w http.ResponseWriter, req *http.Request) {
	if r.store != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := r.store.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  "database unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// originAllowed reports whether a browser origin may open the WebSocket.
// Non-browser clients send no Origin header and are always allowed.
func (r *Router) originAllowed(origin string) bool {
	if origin == "" || len(r.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range r.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler, origins []string) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch origin := req.Header.Get("Origin"); {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
