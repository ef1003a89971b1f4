package session

import "testing"

func TestAggregatorUserFlow(t *testing.T) {
	var a Aggregator

	if got := a.UserPartial("hel"); got != "hel" {
		t.Errorf("display = %q, want %q", got, "hel")
	}
	if got := a.UserPartial("hello"); got != "hello" {
		t.Errorf("display = %q, partials should replace each other", got)
	}
	if got := a.UserSegment("hello there"); got != "hello there" {
		t.Errorf("display = %q, want %q", got, "hello there")
	}
	if got := a.UserPartial("how"); got != "hello there how" {
		t.Errorf("display = %q, want committed segments plus the partial", got)
	}
	if got := a.UserSegment("how are you"); got != "hello there how are you" {
		t.Errorf("display = %q, want both segments", got)
	}
	if got := a.UserUtterance(); got != "hello there how are you" {
		t.Errorf("utterance = %q, want the full text", got)
	}
	if got := a.UserUtterance(); got != "" {
		t.Errorf("utterance after close = %q, want empty", got)
	}
}

func TestAggregatorSegmentReplacesOpenPartial(t *testing.T) {
	var a Aggregator
	a.UserPartial("uh he")
	if got := a.UserSegment("hello"); got != "hello" {
		t.Errorf("display = %q, the finalized segment should replace the interim guess", got)
	}
}

func TestAggregatorAgentFlow(t *testing.T) {
	var a Aggregator
	a.AgentChunk("Let's learn")
	a.AgentChunk(" the letter B! ")
	if got := a.AgentUtterance(); got != "Let's learn the letter B!" {
		t.Errorf("agent utterance = %q", got)
	}
	if got := a.AgentUtterance(); got != "" {
		t.Errorf("agent utterance after close = %q, want empty", got)
	}
}

func TestAggregatorAgentReset(t *testing.T) {
	var a Aggregator
	a.AgentChunk("Great! That's")
	a.AgentReset()
	if got := a.AgentUtterance(); got != "" {
		t.Errorf("agent utterance after reset = %q, want empty", got)
	}
}

func TestAggregatorDirectionsIndependent(t *testing.T) {
	var a Aggregator
	a.UserPartial("teach me")
	a.AgentChunk("Sure!")
	if got := a.UserUtterance(); got != "teach me" {
		t.Errorf("user utterance = %q, agent text must not leak in", got)
	}
	if got := a.AgentUtterance(); got != "Sure!" {
		t.Errorf("agent utterance = %q, user text must not leak in", got)
	}
}
