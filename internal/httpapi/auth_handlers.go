package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/signconnect/server/internal/store"
)

// Context key for learner data
type contextKey string

const learnerContextKey contextKey = "learner"

const defaultJWTExpiry = 30 * 24 * time.Hour

// JWTClaims represents the claims in the JWT token
type JWTClaims struct {
	jwt.RegisteredClaims
	LearnerID   string `json:"learner_id"`
	DisplayName string `json:"display_name,omitempty"`
}

// AuthLearner represents the authenticated learner in request context
type AuthLearner struct {
	ID          string
	DisplayName string
}

// withAuth is middleware that requires valid JWT authentication
func (r *Router) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		authHeader := req.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"error": "missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			http.Error(w, `{"error": "invalid authorization format"}`, http.StatusUnauthorized)
			return
		}

		claims, err := r.parseToken(parts[1])
		if err != nil {
			http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
			return
		}

		learner := &AuthLearner{
			ID:          claims.LearnerID,
			DisplayName: claims.DisplayName,
		}
		ctx := context.WithValue(req.Context(), learnerContextKey, learner)
		next.ServeHTTP(w, req.WithContext(ctx))
	}
}

// parseToken validates a JWT and returns its claims. Shared by the auth
// middleware and the WebSocket learner binding.
func (r *Router) parseToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(r.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.LearnerID == "" {
		return nil, fmt.Errorf("token carries no learner")
	}
	return claims, nil
}

// getAuthLearner extracts the authenticated learner from context
func getAuthLearner(ctx context.Context) *AuthLearner {
	learner, _ := ctx.Value(learnerContextKey).(*AuthLearner)
	return learner
}

// generateJWT creates a new JWT token for a learner
func (r *Router) generateJWT(learner *store.Learner) (string, time.Time, error) {
	expiry := r.cfg.JWTExpiry
	if expiry <= 0 {
		expiry = defaultJWTExpiry
	}
	expiresAt := time.Now().Add(expiry)

	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   learner.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		LearnerID:   learner.ID,
		DisplayName: learner.DisplayName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(r.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// handleGuestAuth creates a guest learner and issues its JWT. There is no
// password flow; the token is the learner's only credential.
func (r *Router) handleGuestAuth(w http.ResponseWriter, req *http.Request) {
	if r.store == nil {
		http.Error(w, `{"error": "persistence not configured"}`, http.StatusServiceUnavailable)
		return
	}

	// The body is optional; a bare POST creates an unnamed learner.
	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil && err != io.EOF {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	displayName := strings.TrimSpace(body.DisplayName)
	if len(displayName) > 64 {
		http.Error(w, `{"error": "display name too long"}`, http.StatusBadRequest)
		return
	}

	learner, err := r.store.CreateLearner(req.Context(), displayName)
	if err != nil {
		r.logger.Error().Err(err).Msg("auth: failed to create learner")
		captureError(req, err, "auth: create learner failed")
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	token, expiresAt, err := r.generateJWT(learner)
	if err != nil {
		r.logger.Error().Err(err).Msg("auth: failed to generate JWT")
		http.Error(w, `{"error": "failed to create session"}`, http.StatusInternalServerError)
		return
	}

	r.logger.Info().Str("learner_id", learner.ID).Msg("auth: guest learner created")

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt.Format(time.RFC3339),
		"learner":    learner,
	})
}

// handleGetMe returns the current learner's data
func (r *Router) handleGetMe(w http.ResponseWriter, req *http.Request) {
	authLearner := getAuthLearner(req.Context())
	if authLearner == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}
	if r.store == nil {
		http.Error(w, `{"error": "persistence not configured"}`, http.StatusServiceUnavailable)
		return
	}

	learner, err := r.store.GetLearnerByID(req.Context(), authLearner.ID)
	if err != nil {
		http.Error(w, `{"error": "learner not found"}`, http.StatusNotFound)
		return
	}

	_ = r.store.TouchLearner(req.Context(), learner.ID)

	writeJSON(w, http.StatusOK, map[string]any{"learner": learner})
}
