package httpapi

import (
	"net/http"
	"strconv"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// parseLimit reads the "limit" query parameter, clamped to sane bounds.
func parseLimit(req *http.Request) int {
	raw := req.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultListLimit
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}

// handleGetProgress returns the learner's mastery rollup: aggregate stats,
// the per-sign tally, and recent quiz results.
func (r *Router) handleGetProgress(w http.ResponseWriter, req *http.Request) {
	learner := getAuthLearner(req.Context())
	if learner == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}
	if r.store == nil {
		http.Error(w, `{"error": "persistence not configured"}`, http.StatusServiceUnavailable)
		return
	}

	stats, err := r.store.GetLearnerStats(req.Context(), learner.ID)
	if err != nil {
		r.logger.Error().Err(err).Msg("progress: failed to load stats")
		captureError(req, err, "progress: stats query failed")
		http.Error(w, `{"error": "failed to load progress"}`, http.StatusInternalServerError)
		return
	}

	mastery, err := r.store.GetSignMastery(req.Context(), learner.ID)
	if err != nil {
		r.logger.Error().Err(err).Msg("progress: failed to load sign mastery")
		captureError(req, err, "progress: mastery query failed")
		http.Error(w, `{"error": "failed to load progress"}`, http.StatusInternalServerError)
		return
	}

	quizzes, err := r.store.ListQuizRecords(req.Context(), learner.ID, defaultListLimit)
	if err != nil {
		r.logger.Error().Err(err).Msg("progress: failed to load quiz records")
		captureError(req, err, "progress: quiz query failed")
		http.Error(w, `{"error": "failed to load progress"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stats":          stats,
		"signs":          mastery,
		"recent_quizzes": quizzes,
	})
}

// handleListSessions returns the learner's recent practice sessions.
func (r *Router) handleListSessions(w http.ResponseWriter, req *http.Request) {
	learner := getAuthLearner(req.Context())
	if learner == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}
	if r.store == nil {
		http.Error(w, `{"error": "persistence not configured"}`, http.StatusServiceUnavailable)
		return
	}

	sessions, err := r.store.ListPracticeSessions(req.Context(), learner.ID, parseLimit(req))
	if err != nil {
		r.logger.Error().Err(err).Msg("progress: failed to list sessions")
		captureError(req, err, "progress: session list failed")
		http.Error(w, `{"error": "failed to load sessions"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}
