// Package protocol defines the WebSocket wire schema spoken with the
// browser client. Tag names, field names, and the ui_state shape are part of
// the client contract and must not drift.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/signconnect/server/internal/pose"
)

// Client -> server message types.
const (
	TypeAudioChunk    = "audio_chunk"
	TypeHandState     = "hand_state"
	TypeClientControl = "client_control"
)

// Server -> client message types.
const (
	TypeAsrPartial       = "asr_partial"
	TypeAsrFinal         = "asr_final"
	TypeAgentTextPartial = "agent_text_partial"
	TypeAgentTextFinal   = "agent_text_final"
	TypeTTSAudioChunk    = "tts_audio_chunk"
	TypeTTSStop          = "tts_stop"
	TypeUIState          = "ui_state"
	TypeError            = "error"
)

// client_control actions.
const (
	ActionStart          = "start"
	ActionStop           = "stop"
	ActionToggleCaptions = "toggle_captions"
)

// Error codes carried on error messages.
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeUpstreamFailure = "UPSTREAM_FAILURE"
)

// Session modes as they appear on the wire.
const (
	ModeIdle  = "IDLE"
	ModeTeach = "TEACH"
	ModeQuiz  = "QUIZ"
)

// ClientMessage is the envelope for messages received from the client.
// Data is raw because its shape depends on Type: a base64 string for
// audio_chunk, a hand-state object for hand_state.
type ClientMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Action    string          `json:"action,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// ParseClientMessage decodes and validates one inbound frame.
func ParseClientMessage(raw []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch msg.Type {
	case TypeAudioChunk, TypeHandState:
		if len(msg.Data) == 0 {
			return nil, fmt.Errorf("%s message without data", msg.Type)
		}
	case TypeClientControl:
		switch msg.Action {
		case ActionStart, ActionStop, ActionToggleCaptions:
		default:
			return nil, fmt.Errorf("unknown control action %q", msg.Action)
		}
	case "":
		return nil, fmt.Errorf("message without type")
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}

// AudioData decodes the base64 PCM16 payload of an audio_chunk message.
func (m *ClientMessage) AudioData() ([]byte, error) {
	var encoded string
	if err := json.Unmarshal(m.Data, &encoded); err != nil {
		return nil, fmt.Errorf("audio_chunk data is not a string: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio: %w", err)
	}
	return audio, nil
}

// HandState decodes the hand_state payload into a pose frame.
func (m *ClientMessage) HandState() (*pose.Frame, error) {
	var frame pose.Frame
	if err := json.Unmarshal(m.Data, &frame); err != nil {
		return nil, fmt.Errorf("hand_state data malformed: %w", err)
	}
	return &frame, nil
}

// TextMessage carries transcript and agent caption text.
type TextMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// AudioMessage carries one base64 chunk of synthesized agent speech.
type AudioMessage struct {
	Type      string `json:"type"`
	Data      string `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// StopMessage tells the client to immediately halt agent audio playback.
type StopMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorMessage reports a protocol or collaborator failure to the client.
type ErrorMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// QuizResults is the immutable summary computed when a quiz completes.
// Details maps each quizzed letter to its three try outcomes; unattempted
// tries stay false.
type QuizResults struct {
	Passed  int               `json:"passed"`
	Total   int               `json:"total"`
	Score   int               `json:"score"`
	Missed  []string          `json:"missed"`
	Details map[string][]bool `json:"details"`
}

// UIState is the session snapshot pushed to the client on every relevant
// transition. Numeric fields are pointers because zero is meaningful for
// them (countdown 0 is the grading tick, try 0 is the first attempt).
type UIState struct {
	Type             string       `json:"type"`
	Mode             string       `json:"mode"`
	TargetSign       string       `json:"targetSign,omitempty"`
	Prediction       string       `json:"prediction,omitempty"`
	Confidence       *float64     `json:"confidence,omitempty"`
	Suggestion       string       `json:"suggestion,omitempty"`
	Streak           *int         `json:"streak,omitempty"`
	TeachingProgress *int         `json:"teachingProgress,omitempty"`
	QuizCountdown    *int         `json:"quizCountdown,omitempty"`
	QuizTry          *int         `json:"quizTry,omitempty"`
	QuizResults      *QuizResults `json:"quizResults,omitempty"`
	CaptionsEnabled  bool         `json:"captionsEnabled"`
	Timestamp        int64        `json:"timestamp"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewAsrPartial builds an interim user transcript message.
func NewAsrPartial(text string) TextMessage {
	return TextMessage{Type: TypeAsrPartial, Text: text, Timestamp: nowMillis()}
}

// NewAsrFinal builds a finalized user transcript message.
func NewAsrFinal(text string) TextMessage {
	return TextMessage{Type: TypeAsrFinal, Text: text, Timestamp: nowMillis()}
}

// NewAgentTextPartial builds an incremental agent caption message.
func NewAgentTextPartial(text string) TextMessage {
	return TextMessage{Type: TypeAgentTextPartial, Text: text, Timestamp: nowMillis()}
}

// NewAgentTextFinal builds the completed agent utterance message.
func NewAgentTextFinal(text string) TextMessage {
	return TextMessage{Type: TypeAgentTextFinal, Text: text, Timestamp: nowMillis()}
}

// NewTTSAudioChunk wraps synthesized audio bytes for delivery.
func NewTTSAudioChunk(audio []byte) AudioMessage {
	return AudioMessage{
		Type:      TypeTTSAudioChunk,
		Data:      base64.StdEncoding.EncodeToString(audio),
		Timestamp: nowMillis(),
	}
}

// NewTTSStop builds the barge-in playback halt message.
func NewTTSStop() StopMessage {
	return StopMessage{Type: TypeTTSStop, Timestamp: nowMillis()}
}

// NewError builds an error message with an optional code.
func NewError(message, code string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message, Code: code, Timestamp: nowMillis()}
}

// NewUIState builds an empty snapshot for the caller to fill; Type and
// Timestamp are set.
func NewUIState(mode string) UIState {
	return UIState{Type: TypeUIState, Mode: mode, Timestamp: nowMillis()}
}
