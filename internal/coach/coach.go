package coach

import "context"

// IntentKind labels what the learner asked for.
type IntentKind string

const (
	IntentTeach     IntentKind = "teach"
	IntentQuizStart IntentKind = "quiz_start"
	IntentStop      IntentKind = "stop"
	IntentQuestion  IntentKind = "question"
	IntentOther     IntentKind = "other"
)

// Intent is the parsed meaning of one finalized utterance.
type Intent struct {
	Kind   IntentKind
	Target string // Uppercase letter for teach intents, empty otherwise.
}

// Snapshot is a read-only view of the session handed to the coach.
// The session builds a fresh one per call, so the coach never sees
// state mutate underneath it.
type Snapshot struct {
	Mode             string   // "IDLE", "TEACH" or "QUIZ"
	TargetSign       string   // Current sign, empty in IDLE
	TeachingProgress int      // Completed repetitions of the current sign
	ProgressGoal     int      // Repetitions needed for mastery
	MasteredSigns    []string // Signs mastered this session
	WeakSigns        []string // Signs missed in quizzes, most recent first
	TeachableSigns   []string // The configured vocabulary
}

// Request carries one finalized utterance to Respond, with the intent
// already parsed and applied to the session. The snapshot reflects the
// post-intent state, so a reply to "quiz me" can name the first sign.
// Applied is false when the session refused the intent, for example a
// teach request landing mid-quiz or a sign outside the vocabulary.
type Request struct {
	Utterance string
	Intent    Intent
	Snapshot  Snapshot
	Applied   bool
}

// QuizSummary describes a finished quiz for the wrap-up response.
type QuizSummary struct {
	Passed int
	Total  int
	Score  int // 0-100
	Missed []string
}

// Coach turns finalized utterances into intents and spoken replies.
type Coach interface {
	// ParseIntent classifies one finalized utterance.
	ParseIntent(ctx context.Context, text string, snap Snapshot) (Intent, error)

	// Respond generates the spoken reply to an utterance.
	// Returns the response text streamed through the channel.
	Respond(ctx context.Context, req Request) (<-chan string, error)
}

// TextStream wraps fixed text in a closed channel so template responses
// flow through the same path as streamed model output.
func TextStream(parts ...string) <-chan string {
	ch := make(chan string, len(parts))
	for _, p := range parts {
		ch <- p
	}
	close(ch)
	return ch
}
