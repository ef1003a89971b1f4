package session

import "strings"

// Aggregator keeps the open utterance for each conversation direction.
// User text arrives as replaceable interim segments that harden one by one;
// agent text accumulates chunk by chunk until the utterance completes or is
// interrupted. Closing an utterance resets that direction.
type Aggregator struct {
	partial  string
	segments []string
	agent    strings.Builder
}

// UserPartial replaces the interim text and returns the caption line to
// display: every committed segment plus the current guess.
func (a *Aggregator) UserPartial(text string) string {
	a.partial = text
	return a.display()
}

// UserSegment commits one finalized segment and returns the caption line.
func (a *Aggregator) UserSegment(text string) string {
	a.partial = ""
	a.segments = append(a.segments, text)
	return a.display()
}

// UserUtterance closes the open user utterance and returns its full text.
// The next partial starts a fresh utterance.
func (a *Aggregator) UserUtterance() string {
	text := a.display()
	a.partial = ""
	a.segments = nil
	return text
}

func (a *Aggregator) display() string {
	var sb strings.Builder
	for _, seg := range a.segments {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(seg)
	}
	if a.partial != "" {
		if sb.Len() > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(a.partial)
	}
	return sb.String()
}

// AgentChunk appends streamed agent text to the open agent utterance.
func (a *Aggregator) AgentChunk(chunk string) {
	a.agent.WriteString(chunk)
}

// AgentUtterance closes the agent utterance and returns its full text.
func (a *Aggregator) AgentUtterance() string {
	text := strings.TrimSpace(a.agent.String())
	a.agent.Reset()
	return text
}

// AgentReset discards the open agent utterance after an interruption.
func (a *Aggregator) AgentReset() {
	a.agent.Reset()
}
