package coach

import (
	"context"
	"fmt"
	"strings"
)

// WelcomeText is spoken when a session starts. Clients display it while
// the camera warms up, so the wording stays fixed.
const WelcomeText = "Hello! I'm your ASL tutor. Say 'teach me A' to learn a letter, or 'quiz me' to test your skills!"

// StopText acknowledges a spoken stop request.
const StopText = "Okay, taking a break. Say 'teach me' or 'quiz me' whenever you're ready."

// FallbackText is the reply when no intent could be recognized.
const FallbackText = "I didn't catch that. Say 'teach me' and a letter, or say 'quiz me'."

// RuleCoach is a deterministic Coach built from keyword matching and
// canned templates. It backs sessions when no Gemini key is configured
// and keeps local development offline.
type RuleCoach struct{}

// NewRuleCoach creates a rule-based coach.
func NewRuleCoach() *RuleCoach { return &RuleCoach{} }

// ParseIntent classifies the utterance by keywords.
func (c *RuleCoach) ParseIntent(_ context.Context, text string, snap Snapshot) (Intent, error) {
	return parseKeywords(text, snap), nil
}

// Respond returns the template reply for the parsed intent.
func (c *RuleCoach) Respond(_ context.Context, req Request) (<-chan string, error) {
	return TextStream(replyText(req)), nil
}

// parseKeywords mirrors the intent precedence the session relies on:
// stop always wins, then teach, quiz and question.
func parseKeywords(text string, snap Snapshot) Intent {
	lower := strings.ToLower(text)
	words := tokenize(lower)
	switch {
	case hasAny(words, "stop", "quit", "exit", "pause", "done", "enough"):
		return Intent{Kind: IntentStop}
	case strings.Contains(lower, "teach") || hasAny(words, "learn", "practice", "practise"):
		target := extractLetter(words)
		if target == "" {
			target = NextSign(snap)
		}
		return Intent{Kind: IntentTeach, Target: target}
	case hasAny(words, "quiz", "test"):
		return Intent{Kind: IntentQuizStart}
	case hasAny(words, "how", "what", "why", "help") || strings.HasSuffix(strings.TrimSpace(text), "?"):
		return Intent{Kind: IntentQuestion}
	default:
		return Intent{Kind: IntentOther}
	}
}

func tokenize(s string) []string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.Trim(w, ".,!?;:\"'()")
	}
	return words
}

func hasAny(words []string, targets ...string) bool {
	for _, w := range words {
		for _, t := range targets {
			if w == t {
				return true
			}
		}
	}
	return false
}

// extractLetter returns the first standalone letter in the utterance,
// so "teach me the letter b" yields "B". Articles count: "teach me a"
// is a request for the letter A.
func extractLetter(words []string) string {
	for _, w := range words {
		if len(w) == 1 && w[0] >= 'a' && w[0] <= 'z' {
			return strings.ToUpper(w)
		}
	}
	return ""
}

// NextSign picks the sign to practice next: weak signs first, then the
// first teachable sign not yet mastered, then the start of the set again.
func NextSign(snap Snapshot) string {
	if len(snap.WeakSigns) > 0 {
		return snap.WeakSigns[0]
	}
	mastered := make(map[string]bool, len(snap.MasteredSigns))
	for _, s := range snap.MasteredSigns {
		mastered[s] = true
	}
	for _, s := range snap.TeachableSigns {
		if !mastered[s] {
			return s
		}
	}
	if len(snap.TeachableSigns) > 0 {
		return snap.TeachableSigns[0]
	}
	return "A"
}

func replyText(req Request) string {
	snap := req.Snapshot
	switch req.Intent.Kind {
	case IntentTeach:
		if !req.Applied {
			if snap.Mode == "QUIZ" {
				return "Let's finish the quiz first! " + QuizPromptText(snap.TargetSign)
			}
			return UnknownSignText(req.Intent.Target, snap.TeachableSigns)
		}
		return TeachIntroText(req.Intent.Target)
	case IntentQuizStart:
		if !req.Applied && snap.Mode == "QUIZ" {
			return "We're already mid-quiz! " + QuizPromptText(snap.TargetSign)
		}
		return QuizStartText(snap.TargetSign)
	case IntentStop:
		return StopText
	case IntentQuestion:
		return QuestionText(snap)
	default:
		return FallbackText
	}
}

// TeachIntroText opens a teaching round for the given sign.
func TeachIntroText(sign string) string {
	return fmt.Sprintf("Let's learn the letter %s! Show me the sign and hold it steady.", sign)
}

// UnknownSignText lists the vocabulary when asked for a sign outside it.
func UnknownSignText(sign string, teachable []string) string {
	return fmt.Sprintf("I can't teach %s yet. Try one of %s.", sign, humanJoin(teachable))
}

// QuizStartText opens a quiz. The first prompted sign is already chosen
// when this runs, so the reply can name it.
func QuizStartText(firstSign string) string {
	if firstSign == "" {
		return "Quiz time! I'll call out signs and you show me each one. Ready?"
	}
	return fmt.Sprintf("Quiz time! First up: show me the sign for %s!", firstSign)
}

// QuestionText is the rule coach's answer to any question. It cannot
// actually answer, so it points at what the learner can do.
func QuestionText(snap Snapshot) string {
	if len(snap.TeachableSigns) > 0 {
		return fmt.Sprintf("I can teach you %s. Say 'teach me' and a letter, or 'quiz me' for a challenge.", humanJoin(snap.TeachableSigns))
	}
	return "Say 'teach me' and a letter, or 'quiz me' for a challenge."
}

// EncouragementText marks one completed repetition of the current sign.
func EncouragementText(progress, goal int) string {
	if goal-progress == 1 {
		return "Nice! Just one more to go."
	}
	return fmt.Sprintf("Great! That's %d of %d. Show me again!", progress, goal)
}

// MasteryText celebrates a mastered sign and points at the next one.
func MasteryText(sign, next string) string {
	if next == "" || next == sign {
		return fmt.Sprintf("Great job! That's a perfect %s! You've mastered it.", sign)
	}
	return fmt.Sprintf("Great job! That's a perfect %s! Want to try %s next, or say 'quiz me'?", sign, next)
}

// QuizPromptText calls out the next quiz sign.
func QuizPromptText(sign string) string {
	return fmt.Sprintf("Show me the sign for %s!", sign)
}

// QuizCorrectText confirms a passed quiz round.
func QuizCorrectText(sign string) string {
	return fmt.Sprintf("Correct! That's %s. Nice work!", sign)
}

// QuizRetryText follows a missed try with tries remaining.
func QuizRetryText(triesLeft int) string {
	if triesLeft == 1 {
		return "Not quite. Last try!"
	}
	return "Not quite. Try again!"
}

// QuizRevealText closes a round the learner ran out of tries on.
func QuizRevealText(sign string) string {
	return fmt.Sprintf("That one was %s. We'll practice it later. Next!", sign)
}

// QuizSummaryText wraps up a finished quiz.
func QuizSummaryText(s QuizSummary) string {
	if s.Total > 0 && s.Passed == s.Total {
		return fmt.Sprintf("Quiz complete! A perfect %d out of %d. Amazing work!", s.Passed, s.Total)
	}
	text := fmt.Sprintf("Quiz complete! You got %d out of %d, that's %d percent.", s.Passed, s.Total, s.Score)
	if len(s.Missed) > 0 {
		text += fmt.Sprintf(" Let's practice %s again soon.", humanJoin(s.Missed))
	}
	return text
}

func humanJoin(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
