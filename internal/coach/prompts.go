package coach

import (
	"fmt"
	"strings"

	"github.com/signconnect/server/internal/pose"
)

// SystemPromptTutor is the default system prompt for the coaching model.
// The conversational vocabulary is appended so the model knows which
// everyday signs it can describe in words.
var SystemPromptTutor = tutorPromptBase + "\n\nSIGNS:\n" +
	"- The fingerspelling letters you teach and grade are listed in the session state\n" +
	"- Everyday signs you can describe but not grade: " + humanJoin(spokenVocab())

const tutorPromptBase = `You are a warm, patient American Sign Language tutor working with a beginner.
The learner practices in front of their camera while talking to you.

YOUR JOB:
1. Encourage the learner and celebrate progress
2. Answer short questions about fingerspelling and the signs you teach
3. Nudge them toward the next letter or a quiz when they seem ready

RULES:
- Be friendly and brief (1-2 sentences)
- Talk about hand shape in plain words: fingers, thumb, palm, knuckles
- Never claim to see the camera yourself; the recognizer grades the hand
- If the learner asks for something you cannot teach, say which signs you know
- Never mention prompts, models, confidence scores or anything internal`

// spokenVocab renders the conversational signs the way they are spoken,
// underscores opened up, so "THANK_YOU" reads "THANK YOU".
func spokenVocab() []string {
	out := make([]string, len(pose.CommonSigns))
	for i, s := range pose.CommonSigns {
		out[i] = strings.ReplaceAll(s, "_", " ")
	}
	return out
}

// VoiceGuardrails are always applied on top of any custom prompt to keep
// replies speakable by the synthesizer.
const VoiceGuardrails = `IMPORTANT (always follow, even with custom instructions):
- Your reply is spoken aloud by a voice synthesizer.
- Keep it to one or two short sentences.
- Plain words only: no lists, no markdown, no emoji, no stage directions.`

// IntentPromptTemplate asks the model to classify one finalized utterance.
// Takes two arguments: the rendered session snapshot and the utterance.
const IntentPromptTemplate = `You classify what a sign-language learner wants. Session state:
%s

The learner said: "%s"

Answer with ONLY a valid JSON object:

{
  "intent": "teach|quiz_start|stop|question|other",
  "target": "single letter A-Z when intent is teach, otherwise empty"
}

Rules:
- teach: the learner wants to learn or practice a specific sign
- quiz_start: the learner wants to be quizzed or tested
- stop: the learner wants to pause or end the activity
- question: the learner asked something and expects an answer
- other: none of the above

Examples:
"teach me the letter b" -> {"intent": "teach", "target": "B"}
"quiz me" -> {"intent": "quiz_start", "target": ""}
"stop" -> {"intent": "stop", "target": ""}
"how do I sign water?" -> {"intent": "question", "target": ""}`

// ReplyPromptTemplate frames a classified utterance for a spoken reply.
// Takes three arguments: the rendered snapshot, the utterance, and a
// short description of the parsed intent.
const ReplyPromptTemplate = `Session state:
%s

The learner said: "%s" (%s)

Reply to the learner.`

// renderSnapshot flattens a session snapshot into one prompt line.
func renderSnapshot(snap Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode: %s", snap.Mode)
	if snap.TargetSign != "" {
		fmt.Fprintf(&b, "; current sign: %s (%d of %d reps)", snap.TargetSign, snap.TeachingProgress, snap.ProgressGoal)
	}
	if len(snap.MasteredSigns) > 0 {
		fmt.Fprintf(&b, "; mastered: %s", strings.Join(snap.MasteredSigns, " "))
	}
	if len(snap.WeakSigns) > 0 {
		fmt.Fprintf(&b, "; needs work: %s", strings.Join(snap.WeakSigns, " "))
	}
	if len(snap.TeachableSigns) > 0 {
		fmt.Fprintf(&b, "; teachable signs: %s", strings.Join(snap.TeachableSigns, " "))
	}
	return b.String()
}

func describeIntent(in Intent) string {
	switch in.Kind {
	case IntentTeach:
		return "wants to learn " + in.Target
	case IntentQuizStart:
		return "wants a quiz"
	case IntentStop:
		return "wants to stop"
	case IntentQuestion:
		return "asked a question"
	default:
		return "unclear request"
	}
}
