package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/signconnect/server/internal/asr"
	"github.com/signconnect/server/internal/costs"
	"github.com/signconnect/server/internal/notifications"
	"github.com/signconnect/server/internal/observability"
	"github.com/signconnect/server/internal/session"
	"github.com/signconnect/server/internal/store"
)

// writeWait bounds a single WebSocket write so a stalled client cannot
// wedge the session loop behind the connection mutex.
const writeWait = 10 * time.Second

// wsSender serializes writes to one WebSocket connection. The session loop
// and its speech worker both send through it.
type wsSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSender) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// handleSessionWS runs one live tutoring session over a WebSocket. The
// optional ?token= query binds the session to a learner so its results
// persist; without it the session is anonymous and leaves no trace.
func (r *Router) handleSessionWS(w http.ResponseWriter, req *http.Request) {
	var learnerID string
	if tok := req.URL.Query().Get("token"); tok != "" {
		claims, err := r.parseToken(tok)
		if err != nil {
			http.Error(w, `{"error": "invalid token"}`, http.StatusUnauthorized)
			return
		}
		learnerID = claims.LearnerID
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn().Err(err).Msg("session_ws: upgrade failed")
		return
	}

	sessionID := observability.NewSessionID()
	logger := r.logger.With().Str("session_id", sessionID).Logger()

	deps := session.Deps{
		Sender:     &wsSender{conn: conn},
		Classifier: r.classifier,
		Coach:      r.coach,
		TTS:        r.tts,
		Metrics:    observability.NewSessionMetrics(sessionID),
		Journal:    r.journal,
		Logger:     logger,
	}
	if r.cfg.DeepgramAPIKey != "" {
		deps.NewASR = r.newRecognizer
	}

	sess := session.New(session.Config{
		SessionID:     sessionID,
		CountdownTick: r.cfg.QuizCountdownTick,
		IdleTimeout:   r.cfg.SessionIdleTimeout,
	}, deps)

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	// Read pump feeds the session loop until the socket drops.
	go func() {
		defer cancel()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info().Msg("session_ws: connection closed")
				} else {
					logger.Warn().Err(err).Msg("session_ws: read error")
				}
				return
			}
			sess.HandleMessage(raw)
		}
	}()

	logger.Info().Str("learner_id", learnerID).Msg("session_ws: session connected")
	sess.Run(ctx)
	conn.Close()

	r.persistSession(sessionID, learnerID, sess.Summary(), logger)
}

// newRecognizer dials a fresh Deepgram stream for one session.
func (r *Router) newRecognizer(ctx context.Context) (asr.Client, error) {
	return asr.NewDeepgramClient(ctx, asr.DeepgramConfig{
		APIKey:         r.cfg.DeepgramAPIKey,
		Language:       "en",
		Model:          "nova-3",
		SampleRate:     16000,
		Encoding:       "linear16",
		Channels:       1,
		Punctuate:      true,
		Interim:        true,
		Endpointing:    r.cfg.STTEndpointingMs,
		UtteranceEndMs: r.cfg.STTUtteranceEndMs,
	})
}

// persistSession writes the finished session and pings the learner's
// devices. It runs on a background context because the request context is
// already cancelled by the time the session loop returns.
func (r *Router) persistSession(sessionID, learnerID string, sum session.Summary, logger zerolog.Logger) {
	sessionCosts := costs.CalculateSessionCosts(costs.SessionMetrics{
		AudioInBytes: sum.AudioInBytes,
		CoachChars:   sum.CoachChars,
		TTSChars:     sum.TTSChars,
	})

	if r.store == nil || learnerID == "" {
		logger.Info().
			Int("cost_cents", sessionCosts.TotalCostCents).
			Int("signs_mastered", len(sum.SignsMastered)).
			Msg("session_ws: anonymous session finished, skipping persistence")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ps := store.PracticeSession{
		ID:              sessionID,
		LearnerID:       learnerID,
		StartedAt:       sum.StartedAt,
		EndedAt:         sum.StartedAt.Add(sum.Duration),
		DurationSeconds: int(sum.Duration.Seconds()),
		SignsMastered:   sum.SignsMastered,
		QuizCount:       len(sum.Quizzes),
		AudioInBytes:    sum.AudioInBytes,
		TTSChars:        sum.TTSChars,
		CoachChars:      sum.CoachChars,
		EstCostCents:    sessionCosts.TotalCostCents,
	}
	if err := r.store.InsertPracticeSession(ctx, ps); err != nil {
		logger.Error().Err(err).Msg("session_ws: failed to persist session")
		return
	}

	for _, quiz := range sum.Quizzes {
		details, _ := json.Marshal(quiz.Details)
		rec := store.QuizRecord{
			SessionID: sessionID,
			LearnerID: learnerID,
			Passed:    quiz.Passed,
			Total:     quiz.Total,
			Score:     quiz.Score,
			Missed:    quiz.Missed,
			Details:   details,
		}
		if err := r.store.InsertQuizRecord(ctx, rec); err != nil {
			logger.Error().Err(err).Msg("session_ws: failed to persist quiz record")
		}
		for _, sign := range quiz.Missed {
			_ = r.store.RecordSignMissed(ctx, learnerID, sign)
		}
	}

	for _, sign := range sum.SignsMastered {
		if err := r.store.RecordSignMastered(ctx, learnerID, sign); err != nil {
			logger.Error().Err(err).Str("sign", sign).Msg("session_ws: failed to record mastery")
		}
	}

	_ = r.store.TouchLearner(ctx, learnerID)

	logger.Info().
		Int("duration_s", ps.DurationSeconds).
		Int("quizzes", ps.QuizCount).
		Int("cost_cents", ps.EstCostCents).
		Strs("signs_mastered", ps.SignsMastered).
		Msg("session_ws: session persisted")

	r.notifyPracticeSummary(ctx, sessionID, learnerID, sum, logger)
}

// notifyPracticeSummary pushes an end-of-session recap to the learner's
// registered iOS devices. Sessions with nothing to report stay quiet.
func (r *Router) notifyPracticeSummary(ctx context.Context, sessionID, learnerID string, sum session.Summary, logger zerolog.Logger) {
	if r.apns == nil {
		return
	}
	if len(sum.SignsMastered) == 0 && len(sum.Quizzes) == 0 {
		return
	}

	tokens, err := r.store.GetLearnerPushTokens(ctx, learnerID)
	if err != nil || len(tokens) == 0 {
		return
	}

	best := 0
	for _, quiz := range sum.Quizzes {
		if quiz.Score > best {
			best = quiz.Score
		}
	}
	summary := notifications.PracticeSummary{
		SessionID:     sessionID,
		SignsMastered: sum.SignsMastered,
		QuizCount:     len(sum.Quizzes),
		BestScore:     best,
		Minutes:       int(sum.Duration.Minutes()),
	}

	for _, token := range tokens {
		if token.Platform != "ios" {
			continue
		}
		if err := r.apns.SendPracticeSummary(token.Token, summary); err != nil {
			logger.Warn().Err(err).Msg("session_ws: practice summary push failed")
		}
	}
}
