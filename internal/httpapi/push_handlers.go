package httpapi

import (
	"encoding/json"
	"net/http"
)

// handlePushRegister registers a device push token
func (r *Router) handlePushRegister(w http.ResponseWriter, req *http.Request) {
	learner := getAuthLearner(req.Context())
	if learner == nil {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if r.store == nil {
		http.Error(w, `{"error": "persistence not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if body.Token == "" {
		http.Error(w, `{"error": "token is required"}`, http.StatusBadRequest)
		return
	}

	if body.Platform != "ios" && body.Platform != "android" {
		http.Error(w, `{"error": "platform must be 'ios' or 'android'"}`, http.StatusBadRequest)
		return
	}

	if err := r.store.RegisterPushToken(req.Context(), learner.ID, body.Token, body.Platform); err != nil {
		r.logger.Error().Err(err).Msg("push: failed to register token")
		http.Error(w, `{"error": "failed to register token"}`, http.StatusInternalServerError)
		return
	}

	r.logger.Info().Str("platform", body.Platform).Str("learner_id", learner.ID).Msg("push: token registered")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handlePushUnregister removes a device push token
func (r *Router) handlePushUnregister(w http.ResponseWriter, req *http.Request) {
	learner := getAuthLearner(req.Context())
	if learner == nil {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if r.store == nil {
		http.Error(w, `{"error": "persistence not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if body.Token == "" {
		http.Error(w, `{"error": "token is required"}`, http.StatusBadRequest)
		return
	}

	if err := r.store.UnregisterPushToken(req.Context(), body.Token); err != nil {
		r.logger.Error().Err(err).Msg("push: failed to unregister token")
		http.Error(w, `{"error": "failed to unregister token"}`, http.StatusInternalServerError)
		return
	}

	r.logger.Info().Str("learner_id", learner.ID).Msg("push: token unregistered")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handlePushTest sends a test notification to one of the learner's devices
func (r *Router) handlePushTest(w http.ResponseWriter, req *http.Request) {
	learner := getAuthLearner(req.Context())
	if learner == nil {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}
	if r.apns == nil {
		http.Error(w, `{"error": "push notifications not configured"}`, http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	if body.Token == "" {
		http.Error(w, `{"error": "token is required"}`, http.StatusBadRequest)
		return
	}

	if err := r.apns.SendTestNotification(body.Token, "Test notification from SignConnect"); err != nil {
		r.logger.Error().Err(err).Msg("push: test notification failed")
		http.Error(w, `{"error": "failed to send notification"}`, http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
