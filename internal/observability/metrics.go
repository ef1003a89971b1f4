package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signconnect_active_sessions",
		Help: "Number of active tutoring sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signconnect_sessions_total",
		Help: "Total number of tutoring sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signconnect_session_duration_seconds",
		Help:    "Duration of tutoring sessions in seconds",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	// Pose pipeline metrics
	poseFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signconnect_pose_frames_total",
		Help: "Total hand landmark frames classified",
	})

	poseFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signconnect_pose_frames_dropped_total",
		Help: "Hand landmark frames dropped under backpressure",
	})

	// Speech recognition metrics
	asrResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signconnect_asr_results_total",
		Help: "Total speech recognition results by kind",
	}, []string{"kind"}) // kind: "partial", "final"

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signconnect_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	// Coach metrics
	coachRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signconnect_coach_requests_total",
		Help: "Total coach intent and response requests",
	}, []string{"status"})

	coachLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signconnect_coach_latency_seconds",
		Help:    "Coach request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Speech synthesis metrics
	ttsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signconnect_tts_requests_total",
		Help: "Total speech synthesis requests",
	}, []string{"status"})

	ttsLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signconnect_tts_latency_seconds",
		Help:    "Speech synthesis latency to last chunk in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Teaching metrics
	bargeIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signconnect_barge_ins_total",
		Help: "Times a learner interrupted agent speech",
	})

	signsMastered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signconnect_signs_mastered_total",
		Help: "Signs mastered across all sessions",
	})

	quizzesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signconnect_quizzes_completed_total",
		Help: "Quizzes run to completion",
	})

	quizScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signconnect_quiz_score",
		Help:    "Final quiz scores, 0-100",
		Buckets: []float64{0, 25, 50, 62.5, 75, 87.5, 100},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signconnect_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// Metrics tracks metrics for a single session.
type Metrics struct {
	sessionID      string
	startTime      time.Time
	coachStartTime time.Time
	ttsStartTime   time.Time
	mu             sync.Mutex
}

// NewSessionMetrics creates a metrics tracker for one session.
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session.
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session.
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordPoseFrame counts one classified landmark frame.
func (m *Metrics) RecordPoseFrame() {
	poseFrames.Inc()
}

// RecordPoseFrameDropped counts a frame dropped under backpressure.
func (m *Metrics) RecordPoseFrameDropped() {
	poseFramesDropped.Inc()
}

// RecordAsrResult counts one recognition result of the given kind.
func (m *Metrics) RecordAsrResult(kind string) {
	asrResults.WithLabelValues(kind).Inc()
}

// RecordAudioBytes records audio bytes processed.
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytes.WithLabelValues(direction).Add(float64(bytes))
}

// RecordCoachStart records the start of a coach request.
func (m *Metrics) RecordCoachStart() {
	m.mu.Lock()
	m.coachStartTime = time.Now()
	m.mu.Unlock()
}

// RecordCoachEnd records the end of a coach request.
func (m *Metrics) RecordCoachEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.coachStartTime.IsZero() {
		coachLatency.Observe(time.Since(m.coachStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	coachRequests.WithLabelValues(status).Inc()
}

// RecordTTSStart records the start of a synthesis request.
func (m *Metrics) RecordTTSStart() {
	m.mu.Lock()
	m.ttsStartTime = time.Now()
	m.mu.Unlock()
}

// RecordTTSEnd records the end of a synthesis request.
func (m *Metrics) RecordTTSEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ttsStartTime.IsZero() {
		ttsLatency.Observe(time.Since(m.ttsStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	ttsRequests.WithLabelValues(status).Inc()
}

// RecordBargeIn counts one interruption of agent speech.
func (m *Metrics) RecordBargeIn() {
	bargeIns.Inc()
}

// RecordSignMastered counts one mastered sign.
func (m *Metrics) RecordSignMastered() {
	signsMastered.Inc()
}

// RecordQuizCompleted records a finished quiz and its score.
func (m *Metrics) RecordQuizCompleted(score int) {
	quizzesCompleted.Inc()
	quizScores.Observe(float64(score))
}

// RecordError records an error.
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
