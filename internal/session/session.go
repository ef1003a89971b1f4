// Package session implements the tutoring state machine behind one
// WebSocket connection. A single loop owns every piece of state and
// consumes typed events in arrival order; the recognizer, the coach, the
// synthesizer, and the countdown timers all run in their own goroutines
// and talk to the loop only through the event channel.
package session

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/signconnect/server/internal/asr"
	"github.com/signconnect/server/internal/coach"
	"github.com/signconnect/server/internal/eventlog"
	"github.com/signconnect/server/internal/observability"
	"github.com/signconnect/server/internal/pose"
	"github.com/signconnect/server/internal/protocol"
	"github.com/signconnect/server/internal/tts"
)

// Sender delivers server messages to one client connection in order.
type Sender interface {
	Send(v any) error
}

// Classifier grades one landmark frame at a time.
type Classifier interface {
	Classify(frame pose.Frame) pose.Result
	Hint(features *pose.Features, target string) string
}

// Config carries the tunable parameters of one session. Zero values fall
// back to the production defaults, so callers only set what they change.
type Config struct {
	SessionID string

	// Signs is the teachable vocabulary. Defaults to the supported
	// alphabet subset.
	Signs []string

	MasteryStreak  int           // consecutive confident frames per repetition
	MasteryReps    int           // repetitions needed to master a sign
	QuizLength     int           // signs per quiz
	QuizTries      int           // attempts per quizzed sign
	CountdownFrom  int           // quiz countdown start value
	CountdownTick  time.Duration // delay between countdown values
	ConfidenceGate float64       // minimum confidence that counts
	IdleTimeout    time.Duration // close after this much client silence; 0 disables
	EventBuffer    int           // event queue capacity
	Seed           int64         // quiz sampling seed; 0 means time-based
}

func (c Config) withDefaults() Config {
	if c.SessionID == "" {
		c.SessionID = observability.NewSessionID()
	}
	if len(c.Signs) == 0 {
		c.Signs = pose.AlphabetSigns
	}
	if c.MasteryStreak <= 0 {
		c.MasteryStreak = 5
	}
	if c.MasteryReps <= 0 {
		c.MasteryReps = 3
	}
	if c.QuizLength <= 0 {
		c.QuizLength = 8
	}
	if c.QuizTries <= 0 {
		c.QuizTries = 3
	}
	if c.CountdownFrom <= 0 {
		c.CountdownFrom = 3
	}
	if c.CountdownTick <= 0 {
		c.CountdownTick = time.Second
	}
	if c.ConfidenceGate <= 0 {
		c.ConfidenceGate = 0.8
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
	return c
}

// Deps are the session's collaborators. Sender and Classifier are
// required. A nil Coach falls back to the rule-based one, and a nil TTS
// or NewASR leaves the session text-only, so keyless deployments and
// tests still run.
type Deps struct {
	Sender     Sender
	Classifier Classifier
	Coach      coach.Coach
	TTS        tts.Client
	NewASR     func(ctx context.Context) (asr.Client, error)
	Metrics    *observability.Metrics
	Journal    *eventlog.Logger
	Logger     zerolog.Logger
}

// usage counts what the session consumed, for cost accounting after the
// connection closes. Workers write these from their own goroutines.
type usage struct {
	audioInBytes atomic.Int64
	ttsChars     atomic.Int64
	coachChars   atomic.Int64
}

// Summary describes a finished session for persistence.
type Summary struct {
	SignsMastered []string
	Quizzes       []*protocol.QuizResults
	AudioInBytes  int64
	TTSChars      int64
	CoachChars    int64
	StartedAt     time.Time
	Duration      time.Duration
}

// Session is one learner's live tutoring conversation.
type Session struct {
	id      string
	cfg     Config
	logger  zerolog.Logger
	metrics *observability.Metrics
	journal *eventlog.Logger

	sender     Sender
	classifier Classifier
	coach      coach.Coach
	newASR     func(ctx context.Context) (asr.Client, error)

	ctx    context.Context
	cancel context.CancelFunc
	events chan event

	speaker    *speaker
	transcript Aggregator
	usage      usage

	// Everything below is owned by the loop goroutine.
	started    bool
	captions   bool
	mode       string
	target     string
	progress   int
	streak     int
	counted    bool
	suggestion string
	lastResult pose.Result
	haveResult bool

	quizGen     uint64
	countdown   int
	quizQueue   []string
	quizIndex   int
	quizTry     int
	quizPassed  int
	quizDetails map[string][]bool
	quizResults *protocol.QuizResults

	mastered []string
	weak     []string
	quizzes  []*protocol.QuizResults

	asrClient    asr.Client
	rand         *rand.Rand
	startedAt    time.Time
	lastActivity time.Time
}

// New builds a session in IDLE with captions enabled. Call Run to start
// processing and HandleMessage to feed it.
func New(cfg Config, deps Deps) *Session {
	cfg = cfg.withDefaults()
	if deps.Coach == nil {
		deps.Coach = coach.NewRuleCoach()
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewSessionMetrics(cfg.SessionID)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:         cfg.SessionID,
		cfg:        cfg,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		journal:    deps.Journal,
		sender:     deps.Sender,
		classifier: deps.Classifier,
		coach:      deps.Coach,
		newASR:     deps.NewASR,
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan event, cfg.EventBuffer),
		captions:   true,
		mode:       protocol.ModeIdle,
		countdown:  -1,
		rand:       rand.New(rand.NewSource(seed)),
		startedAt:  time.Now(),
	}
	s.lastActivity = s.startedAt
	s.speaker = &speaker{
		tts:     deps.TTS,
		events:  s.events,
		metrics: deps.Metrics,
		logger:  deps.Logger,
		usage:   &s.usage,
	}
	return s
}

// Run processes events until the parent context or the session itself is
// canceled. It owns all state mutation; nothing else touches the fields.
func (s *Session) Run(ctx context.Context) {
	defer s.teardown()

	go func() {
		select {
		case <-ctx.Done():
			s.cancel()
		case <-s.ctx.Done():
		}
	}()

	s.metrics.RecordSessionStart()
	s.logger.Info().Msg("session: started")
	s.sendUI()
	s.scheduleIdleCheck(s.cfg.IdleTimeout)

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

// Close tears the session down. Safe to call from any goroutine, any
// number of times.
func (s *Session) Close() {
	s.cancel()
}

// Summary reports what happened. Only valid after Run has returned.
func (s *Session) Summary() Summary {
	return Summary{
		SignsMastered: append([]string(nil), s.mastered...),
		Quizzes:       append([]*protocol.QuizResults(nil), s.quizzes...),
		AudioInBytes:  s.usage.audioInBytes.Load(),
		TTSChars:      s.usage.ttsChars.Load(),
		CoachChars:    s.usage.coachChars.Load(),
		StartedAt:     s.startedAt,
		Duration:      time.Since(s.startedAt),
	}
}

// HandleMessage ingests one raw client frame. Decode errors become
// protocol error events so replies stay ordered with everything else the
// loop emits.
func (s *Session) HandleMessage(raw []byte) {
	msg, err := protocol.ParseClientMessage(raw)
	if err != nil {
		s.post(protocolErrorEvent{err: err})
		return
	}

	switch msg.Type {
	case protocol.TypeAudioChunk:
		audio, err := msg.AudioData()
		if err != nil {
			s.post(protocolErrorEvent{err: err})
			return
		}
		s.post(audioChunkEvent{audio: audio})
	case protocol.TypeHandState:
		frame, err := msg.HandState()
		if err != nil {
			s.post(protocolErrorEvent{err: err})
			return
		}
		if !s.tryPost(poseTickEvent{frame: *frame}) {
			s.metrics.RecordPoseFrameDropped()
		}
	case protocol.TypeClientControl:
		s.post(controlEvent{action: msg.Action})
	}
}

// post delivers an event to the loop, blocking while the queue is full.
// Dropped silently once the session is closed.
func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// tryPost delivers an event only if there is queue room. Pose frames use
// it so a stalled loop sheds stale frames instead of building a backlog.
func (s *Session) tryPost(ev event) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

func (s *Session) handleEvent(ev event) {
	switch ev := ev.(type) {
	case poseTickEvent:
		s.handlePoseTick(ev.frame)
	case audioChunkEvent:
		s.handleAudioChunk(ev.audio)
	case controlEvent:
		s.handleControl(ev.action)
	case protocolErrorEvent:
		s.handleProtocolError(ev.err)
	case asrResultEvent:
		s.handleAsrResult(ev.res)
	case asrErrorEvent:
		s.reportUpstream("speech recognition", ev.err)
	case intentEvent:
		s.handleIntent(ev)
	case agentTextEvent:
		s.handleAgentText(ev)
	case agentAudioEvent:
		s.handleAgentAudio(ev)
	case agentErrorEvent:
		s.handleAgentError(ev)
	case agentDoneEvent:
		s.handleAgentDone(ev)
	case countdownEvent:
		s.handleCountdown(ev)
	case idleCheckEvent:
		s.handleIdleCheck()
	}
}

// --- Client input ---

func (s *Session) handlePoseTick(frame pose.Frame) {
	s.touch()
	s.metrics.RecordPoseFrame()

	res := s.classifier.Classify(frame)
	s.lastResult = res
	s.haveResult = true
	s.updateSuggestion(res)

	if s.mode == protocol.ModeTeach {
		s.gradeTeaching(res)
	}
	s.sendUI()
}

// updateSuggestion derives the correction line shown under the video:
// detection problems first, then the mismatch hint against the current
// target. Quiz mode stays silent; hints there would give the answer away.
func (s *Session) updateSuggestion(res pose.Result) {
	if len(res.Issues) > 0 {
		s.suggestion = strings.Join(res.Issues, ", ")
		return
	}
	if s.mode == protocol.ModeTeach && s.target != "" && res.Prediction != s.target {
		s.suggestion = s.classifier.Hint(res.Features, s.target)
		return
	}
	s.suggestion = ""
}

func (s *Session) handleAudioChunk(audio []byte) {
	s.touch()
	if s.asrClient == nil {
		return
	}
	s.usage.audioInBytes.Add(int64(len(audio)))
	s.metrics.RecordAudioBytes("in", int64(len(audio)))
	if err := s.asrClient.StreamAudio(s.ctx, audio); err != nil {
		s.logger.Warn().Err(err).Msg("session: failed to stream audio")
		s.metrics.RecordError("stream_audio", "asr")
	}
}

func (s *Session) handleControl(action string) {
	s.touch()
	switch action {
	case protocol.ActionStart:
		s.handleStart()
	case protocol.ActionStop:
		s.silenceAgent()
		s.stopToIdle()
		s.sendUI()
	case protocol.ActionToggleCaptions:
		s.captions = !s.captions
		s.sendUI()
	}
}

// handleStart brings the pipeline up and greets the learner. Re-sent
// start controls are ignored once everything is running, but a failed
// recognizer connect leaves the control retryable.
func (s *Session) handleStart() {
	if s.started {
		return
	}
	s.started = true
	s.journal.LogAsync(s.id, eventlog.EventSessionStarted, map[string]any{
		"signs": len(s.cfg.Signs),
	})

	if s.newASR != nil && s.asrClient == nil {
		client, err := s.newASR(s.ctx)
		if err != nil {
			s.started = false
			s.reportUpstream("speech recognition", err)
			return
		}
		s.asrClient = client
		go s.pumpASR(client)
	}

	s.speakText(coach.WelcomeText)
	s.sendUI()
}

// pumpASR forwards recognizer output into the event queue until both of
// its channels close.
func (s *Session) pumpASR(client asr.Client) {
	results := client.Results()
	errs := client.Errors()
	for results != nil || errs != nil {
		select {
		case <-s.ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			s.post(asrResultEvent{res: res})
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.post(asrErrorEvent{err: err})
		}
	}
}

func (s *Session) handleProtocolError(err error) {
	s.metrics.RecordError("invalid_input", "protocol")
	s.logger.Debug().Err(err).Msg("session: rejected client message")
	s.sendMsg(protocol.NewError(err.Error(), protocol.CodeInvalidInput))
}

// --- Speech recognition ---

func (s *Session) handleAsrResult(res asr.Result) {
	text := strings.TrimSpace(res.Text)
	if text != "" {
		s.bargeIn()
	}

	switch {
	case res.SpeechFinal:
		if text != "" {
			s.transcript.UserSegment(text)
		}
		utterance := s.transcript.UserUtterance()
		if utterance == "" {
			return
		}
		s.metrics.RecordAsrResult("final")
		s.sendMsg(protocol.NewAsrFinal(utterance))
		s.journal.LogAsync(s.id, eventlog.EventTranscriptFinal, map[string]any{
			"text": utterance,
		})
		s.resolveIntent(utterance)
	case res.SegmentFinal:
		if text == "" {
			return
		}
		s.metrics.RecordAsrResult("partial")
		display := s.transcript.UserSegment(text)
		if s.captions {
			s.sendMsg(protocol.NewAsrPartial(display))
		}
	default:
		if text == "" {
			return
		}
		s.metrics.RecordAsrResult("partial")
		display := s.transcript.UserPartial(text)
		if s.captions {
			s.sendMsg(protocol.NewAsrPartial(display))
		}
	}
}

// resolveIntent asks the coach what the utterance meant. The call leaves
// the loop so a slow model never stalls pose grading; the answer comes
// back as an intentEvent.
func (s *Session) resolveIntent(utterance string) {
	snap := s.snapshot()
	s.metrics.RecordCoachStart()
	go func() {
		intent, err := s.coach.ParseIntent(s.ctx, utterance, snap)
		s.post(intentEvent{utterance: utterance, intent: intent, err: err})
	}()
}

func (s *Session) handleIntent(ev intentEvent) {
	if ev.err != nil {
		s.metrics.RecordCoachEnd(false)
		s.reportUpstream("coach", ev.err)
		return
	}
	s.metrics.RecordCoachEnd(true)
	s.journal.LogAsync(s.id, eventlog.EventIntentParsed, map[string]any{
		"utterance": ev.utterance,
		"intent":    string(ev.intent.Kind),
		"target":    ev.intent.Target,
	})

	applied := s.applyIntent(ev.intent)
	req := coach.Request{
		Utterance: ev.utterance,
		Intent:    ev.intent,
		Snapshot:  s.snapshot(),
		Applied:   applied,
	}
	s.startUtterance(func(ctx context.Context) (<-chan string, error) {
		return s.coach.Respond(ctx, req)
	})
	s.sendUI()
}

// applyIntent mutates session state for the parsed intent and reports
// whether it took effect. Mode switches are refused mid-quiz; the learner
// finishes or says stop.
func (s *Session) applyIntent(in coach.Intent) bool {
	switch in.Kind {
	case coach.IntentTeach:
		if s.mode == protocol.ModeQuiz {
			return false
		}
		if !hasSign(s.cfg.Signs, in.Target) {
			return false
		}
		if s.mode == protocol.ModeTeach && s.target == in.Target {
			// Already on this sign; keep the progress.
			return true
		}
		s.beginTeaching(in.Target)
		return true
	case coach.IntentQuizStart:
		if s.mode == protocol.ModeQuiz {
			return false
		}
		s.beginQuiz()
		return s.mode == protocol.ModeQuiz
	case coach.IntentStop:
		s.stopToIdle()
		return true
	default:
		return true
	}
}

// --- Teaching ---

func (s *Session) beginTeaching(sign string) {
	s.clearQuiz()
	s.mode = protocol.ModeTeach
	s.target = sign
	s.progress = 0
	s.streak = 0
	s.counted = false
	s.suggestion = ""
	s.journal.LogAsync(s.id, eventlog.EventTeachStarted, map[string]any{
		"sign": sign,
	})
}

// gradeTeaching advances the streak counter for one frame. A repetition
// counts once when the streak reaches the threshold, then the hand must
// drop below the confidence gate before the next one can begin.
func (s *Session) gradeTeaching(res pose.Result) {
	confident := res.Confidence >= s.cfg.ConfidenceGate

	if s.counted {
		if !confident {
			s.counted = false
			s.streak = 0
		}
		return
	}

	if confident && res.Prediction == s.target {
		s.streak++
		if s.streak >= s.cfg.MasteryStreak {
			s.counted = true
			s.completeRepetition()
		}
		return
	}
	s.streak = 0
}

func (s *Session) completeRepetition() {
	s.progress++
	if s.progress >= s.cfg.MasteryReps {
		s.masterSign()
		return
	}
	s.speakText(coach.EncouragementText(s.progress, s.cfg.MasteryReps))
}

func (s *Session) masterSign() {
	sign := s.target
	if !hasSign(s.mastered, sign) {
		s.mastered = append(s.mastered, sign)
	}
	s.dropWeak(sign)
	s.metrics.RecordSignMastered()
	s.journal.LogAsync(s.id, eventlog.EventSignMastered, map[string]any{
		"sign": sign,
	})

	next := coach.NextSign(s.snapshot())
	s.mode = protocol.ModeIdle
	s.target = ""
	s.progress = 0
	s.streak = 0
	s.counted = false
	s.suggestion = ""

	s.speakText(coach.MasteryText(sign, next))
}

// --- Quiz ---

func (s *Session) beginQuiz() {
	if len(s.cfg.Signs) == 0 {
		return
	}
	s.clearQuiz()
	s.mode = protocol.ModeQuiz
	s.progress = 0
	s.streak = 0
	s.counted = false
	s.suggestion = ""
	s.quizQueue = s.sampleQuizQueue()
	s.quizDetails = make(map[string][]bool, len(s.quizQueue))
	s.target = s.quizQueue[0]
	s.journal.LogAsync(s.id, eventlog.EventQuizStarted, map[string]any{
		"queue": s.quizQueue,
	})
	s.startCountdown()
}

// sampleQuizQueue picks distinct signs for one quiz: everything the
// learner has missed before, then a shuffled fill from the rest of the
// vocabulary.
func (s *Session) sampleQuizQueue() []string {
	n := s.cfg.QuizLength
	if n > len(s.cfg.Signs) {
		n = len(s.cfg.Signs)
	}

	queue := make([]string, 0, n)
	taken := make(map[string]bool, n)
	for _, sign := range s.weak {
		if len(queue) == n {
			break
		}
		if hasSign(s.cfg.Signs, sign) && !taken[sign] {
			queue = append(queue, sign)
			taken[sign] = true
		}
	}

	rest := make([]string, 0, len(s.cfg.Signs))
	for _, sign := range s.cfg.Signs {
		if !taken[sign] {
			rest = append(rest, sign)
		}
	}
	s.rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	for _, sign := range rest {
		if len(queue) == n {
			break
		}
		queue = append(queue, sign)
	}
	return queue
}

// startCountdown begins a fresh countdown for the current quiz sign.
// Bumping the generation orphans any tick already scheduled.
func (s *Session) startCountdown() {
	s.quizGen++
	s.countdown = s.cfg.CountdownFrom
	s.scheduleCountdownTick(s.quizGen)
}

func (s *Session) scheduleCountdownTick(gen uint64) {
	time.AfterFunc(s.cfg.CountdownTick, func() {
		s.post(countdownEvent{gen: gen})
	})
}

func (s *Session) handleCountdown(ev countdownEvent) {
	if s.mode != protocol.ModeQuiz || ev.gen != s.quizGen || s.countdown <= 0 {
		return
	}
	s.countdown--
	if s.countdown > 0 {
		s.sendUI()
		s.scheduleCountdownTick(ev.gen)
		return
	}
	// Zero is the grading tick: the pose held right now is the answer.
	s.sendUI()
	s.gradeQuizTry()
}

func (s *Session) gradeQuizTry() {
	sign := s.quizQueue[s.quizIndex]
	hit := s.haveResult &&
		s.lastResult.Prediction == sign &&
		s.lastResult.Confidence >= s.cfg.ConfidenceGate

	tries, ok := s.quizDetails[sign]
	if !ok {
		tries = make([]bool, s.cfg.QuizTries)
		s.quizDetails[sign] = tries
	}
	if s.quizTry < len(tries) {
		tries[s.quizTry] = hit
	}
	s.journal.LogAsync(s.id, eventlog.EventQuizGraded, map[string]any{
		"sign":    sign,
		"try":     s.quizTry,
		"correct": hit,
	})

	if hit {
		s.quizPassed++
		s.dropWeak(sign)
		s.advanceQuiz(coach.QuizCorrectText(sign))
		return
	}

	s.quizTry++
	if s.quizTry < s.cfg.QuizTries {
		s.speakText(coach.QuizRetryText(s.cfg.QuizTries - s.quizTry))
		s.startCountdown()
		s.sendUI()
		return
	}
	s.markWeak(sign)
	s.advanceQuiz(coach.QuizRevealText(sign))
}

// advanceQuiz moves to the next queued sign, folding the feedback for the
// finished round into the next prompt so it is spoken as one utterance
// instead of cutting itself off.
func (s *Session) advanceQuiz(feedback string) {
	s.quizIndex++
	s.quizTry = 0
	if s.quizIndex < len(s.quizQueue) {
		s.target = s.quizQueue[s.quizIndex]
		s.speakText(feedback + " " + coach.QuizPromptText(s.target))
		s.startCountdown()
		s.sendUI()
		return
	}
	s.finishQuiz(feedback)
}

func (s *Session) finishQuiz(feedback string) {
	total := len(s.quizQueue)
	score := int(math.Round(float64(s.quizPassed) * 100 / float64(total)))
	missed := make([]string, 0)
	for _, sign := range s.quizQueue {
		if !anyTrue(s.quizDetails[sign]) {
			missed = append(missed, sign)
		}
	}
	results := &protocol.QuizResults{
		Passed:  s.quizPassed,
		Total:   total,
		Score:   score,
		Missed:  missed,
		Details: s.quizDetails,
	}
	s.quizzes = append(s.quizzes, results)
	s.metrics.RecordQuizCompleted(score)
	s.journal.LogAsync(s.id, eventlog.EventQuizCompleted, map[string]any{
		"passed": results.Passed,
		"total":  results.Total,
		"score":  results.Score,
		"missed": results.Missed,
	})

	s.clearQuiz()
	s.mode = protocol.ModeIdle
	s.target = ""
	s.suggestion = ""
	// The summary stays on ui_state through IDLE until the next activity.
	s.quizResults = results

	s.speakText(feedback + " " + coach.QuizSummaryText(coach.QuizSummary{
		Passed: results.Passed,
		Total:  results.Total,
		Score:  results.Score,
		Missed: results.Missed,
	}))
	s.sendUI()
}

// clearQuiz resets quiz bookkeeping and orphans pending countdown ticks.
func (s *Session) clearQuiz() {
	s.quizGen++
	s.countdown = -1
	s.quizQueue = nil
	s.quizIndex = 0
	s.quizTry = 0
	s.quizPassed = 0
	s.quizDetails = nil
	s.quizResults = nil
}

// stopToIdle returns to IDLE and forgets the lesson or quiz in flight.
// Session-long knowledge (mastered and weak signs) survives.
func (s *Session) stopToIdle() {
	s.clearQuiz()
	s.mode = protocol.ModeIdle
	s.target = ""
	s.progress = 0
	s.streak = 0
	s.counted = false
	s.suggestion = ""
}

// --- Agent speech ---

// speakText speaks fixed template text through the streaming path.
func (s *Session) speakText(text string) {
	s.startUtterance(func(context.Context) (<-chan string, error) {
		return coach.TextStream(text), nil
	})
}

// startUtterance replaces whatever the agent is saying. The halt order
// matters: the client must drop queued audio before the first chunk of
// the new speech arrives.
func (s *Session) startUtterance(source textSource) {
	s.silenceAgent()
	s.speaker.speak(s.ctx, source)
}

// silenceAgent halts playback and discards the unfinished utterance.
func (s *Session) silenceAgent() {
	if !s.speaker.live {
		return
	}
	s.sendMsg(protocol.NewTTSStop())
	s.speaker.interrupt()
	s.transcript.AgentReset()
}

// bargeIn halts agent speech because the learner started talking.
func (s *Session) bargeIn() {
	if !s.speaker.live {
		return
	}
	s.silenceAgent()
	s.metrics.RecordBargeIn()
	s.journal.LogAsync(s.id, eventlog.EventBargeIn, nil)
}

func (s *Session) handleAgentText(ev agentTextEvent) {
	if !s.speaker.matches(ev.gen) {
		return
	}
	s.transcript.AgentChunk(ev.chunk)
	s.usage.coachChars.Add(int64(len(ev.chunk)))
	if s.captions {
		s.sendMsg(protocol.NewAgentTextPartial(ev.chunk))
	}
}

func (s *Session) handleAgentAudio(ev agentAudioEvent) {
	if !s.speaker.matches(ev.gen) {
		return
	}
	s.metrics.RecordAudioBytes("out", int64(len(ev.audio)))
	s.sendMsg(protocol.NewTTSAudioChunk(ev.audio))
}

func (s *Session) handleAgentError(ev agentErrorEvent) {
	if !s.speaker.matches(ev.gen) {
		return
	}
	s.reportUpstream(ev.component, ev.err)
}

func (s *Session) handleAgentDone(ev agentDoneEvent) {
	if !s.speaker.finish(ev.gen) {
		return
	}
	if ev.err != nil {
		s.transcript.AgentReset()
		s.reportUpstream("coach", ev.err)
		return
	}
	if text := s.transcript.AgentUtterance(); text != "" {
		s.sendMsg(protocol.NewAgentTextFinal(text))
	}
}

// --- Failures and housekeeping ---

// reportUpstream tells the client a collaborator failed. Mode and
// progress stay exactly as they were; the learner keeps practicing.
func (s *Session) reportUpstream(component string, err error) {
	s.metrics.RecordError("upstream", component)
	s.logger.Error().Err(err).Str("component", component).Msg("session: collaborator failure")
	s.journal.LogAsync(s.id, eventlog.EventUpstreamError, map[string]any{
		"component": component,
		"error":     err.Error(),
	})
	s.sendMsg(protocol.NewError(component+" unavailable", protocol.CodeUpstreamFailure))
}

func (s *Session) touch() {
	s.lastActivity = time.Now()
}

func (s *Session) scheduleIdleCheck(d time.Duration) {
	if s.cfg.IdleTimeout <= 0 {
		return
	}
	time.AfterFunc(d, func() {
		s.post(idleCheckEvent{})
	})
}

func (s *Session) handleIdleCheck() {
	if s.cfg.IdleTimeout <= 0 {
		return
	}
	idle := time.Since(s.lastActivity)
	if idle >= s.cfg.IdleTimeout {
		s.logger.Info().Dur("idle", idle).Msg("session: idle timeout")
		s.cancel()
		return
	}
	s.scheduleIdleCheck(s.cfg.IdleTimeout - idle)
}

func (s *Session) teardown() {
	s.cancel()
	if s.asrClient != nil {
		if err := s.asrClient.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("session: recognizer close failed")
		}
		s.asrClient = nil
	}
	s.speaker.interrupt()
	s.metrics.RecordSessionEnd()
	s.journal.LogAsync(s.id, eventlog.EventSessionEnded, map[string]any{
		"mastered": len(s.mastered),
		"quizzes":  len(s.quizzes),
		"duration": time.Since(s.startedAt).Seconds(),
	})
	s.logger.Info().
		Int("mastered", len(s.mastered)).
		Int("quizzes", len(s.quizzes)).
		Msg("session: closed")
}

// --- Output ---

func (s *Session) sendMsg(v any) {
	if err := s.sender.Send(v); err != nil {
		s.logger.Warn().Err(err).Msg("session: send failed, closing")
		s.cancel()
	}
}

func (s *Session) sendUI() {
	s.sendMsg(s.buildUI())
}

func (s *Session) buildUI() protocol.UIState {
	st := protocol.NewUIState(s.mode)
	st.CaptionsEnabled = s.captions
	st.TargetSign = s.target
	st.Suggestion = s.suggestion
	if s.haveResult {
		st.Prediction = s.lastResult.Prediction
		conf := s.lastResult.Confidence
		st.Confidence = &conf
	}

	switch s.mode {
	case protocol.ModeTeach:
		streak := s.streak
		progress := s.progress
		st.Streak = &streak
		st.TeachingProgress = &progress
	case protocol.ModeQuiz:
		try := s.quizTry
		st.QuizTry = &try
		if s.countdown >= 0 {
			countdown := s.countdown
			st.QuizCountdown = &countdown
		}
	}
	st.QuizResults = s.quizResults
	return st
}

// snapshot copies the state the coach is allowed to see. Slices are
// cloned because the snapshot crosses into the coach goroutine.
func (s *Session) snapshot() coach.Snapshot {
	return coach.Snapshot{
		Mode:             s.mode,
		TargetSign:       s.target,
		TeachingProgress: s.progress,
		ProgressGoal:     s.cfg.MasteryReps,
		MasteredSigns:    append([]string(nil), s.mastered...),
		WeakSigns:        append([]string(nil), s.weak...),
		TeachableSigns:   append([]string(nil), s.cfg.Signs...),
	}
}

// --- Small helpers ---

func (s *Session) markWeak(sign string) {
	s.dropWeak(sign)
	s.weak = append([]string{sign}, s.weak...)
}

func (s *Session) dropWeak(sign string) {
	for i, w := range s.weak {
		if w == sign {
			s.weak = append(s.weak[:i], s.weak[i+1:]...)
			return
		}
	}
}

func hasSign(list []string, sign string) bool {
	for _, s := range list {
		if s == sign {
			return true
		}
	}
	return false
}

func anyTrue(vals []bool) bool {
	for _, v := range vals {
		if v {
			return true
		}
	}
	return false
}
