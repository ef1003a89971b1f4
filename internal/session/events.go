package session

import (
	"github.com/signconnect/server/internal/asr"
	"github.com/signconnect/server/internal/coach"
	"github.com/signconnect/server/internal/pose"
)

// event is the closed set of inputs the session loop consumes. Everything
// that can change session state arrives as one of these, in arrival order,
// on a single channel.
type event interface {
	isEvent()
}

// poseTickEvent carries one decoded hand_state frame.
type poseTickEvent struct {
	frame pose.Frame
}

// audioChunkEvent carries decoded PCM16 microphone audio.
type audioChunkEvent struct {
	audio []byte
}

// controlEvent carries a client_control action.
type controlEvent struct {
	action string
}

// protocolErrorEvent reports a client message that failed to decode.
type protocolErrorEvent struct {
	err error
}

// asrResultEvent carries one transcription update from the recognizer.
type asrResultEvent struct {
	res asr.Result
}

// asrErrorEvent reports a recognizer stream failure.
type asrErrorEvent struct {
	err error
}

// intentEvent delivers the coach's reading of a finalized utterance.
type intentEvent struct {
	utterance string
	intent    coach.Intent
	err       error
}

// Speech worker events. gen names the utterance they belong to; the loop
// drops events whose generation is no longer live.

type agentTextEvent struct {
	gen   uint64
	chunk string
}

type agentAudioEvent struct {
	gen   uint64
	audio []byte
}

type agentErrorEvent struct {
	gen       uint64
	component string
	err       error
}

type agentDoneEvent struct {
	gen uint64
	err error
}

// countdownEvent is one quiz countdown tick. gen guards against ticks
// scheduled before a mode change or a round restart.
type countdownEvent struct {
	gen uint64
}

// idleCheckEvent prompts the loop to evaluate the idle timeout.
type idleCheckEvent struct{}

func (poseTickEvent) isEvent()      {}
func (audioChunkEvent) isEvent()    {}
func (controlEvent) isEvent()       {}
func (protocolErrorEvent) isEvent() {}
func (asrResultEvent) isEvent()     {}
func (asrErrorEvent) isEvent()      {}
func (intentEvent) isEvent()        {}
func (agentTextEvent) isEvent()     {}
func (agentAudioEvent) isEvent()    {}
func (agentErrorEvent) isEvent()    {}
func (agentDoneEvent) isEvent()     {}
func (countdownEvent) isEvent()     {}
func (idleCheckEvent) isEvent()     {}
