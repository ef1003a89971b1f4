package session

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/signconnect/server/internal/observability"
	"github.com/signconnect/server/internal/tts"
)

// textSource produces the text of one agent utterance as a stream of
// chunks. Template speech and coach replies share this shape so both flow
// through the same sentence-by-sentence synthesis path.
type textSource func(ctx context.Context) (<-chan string, error)

// speaker runs one agent utterance at a time: it pulls text from a source,
// cuts it into sentences, synthesizes each one, and posts the resulting
// text and audio back to the session loop tagged with a generation number.
// The fields are owned by the session loop; workers only see their own
// context and generation, so interrupting never races the worker.
type speaker struct {
	tts     tts.Client
	events  chan<- event
	metrics *observability.Metrics
	logger  zerolog.Logger
	usage   *usage

	gen    uint64
	cancel context.CancelFunc
	live   bool
}

// speak starts a new utterance worker. Any previous utterance must have
// been interrupted first.
func (sp *speaker) speak(parent context.Context, source textSource) {
	sp.gen++
	ctx, cancel := context.WithCancel(parent)
	sp.cancel = cancel
	sp.live = true
	go sp.runUtterance(ctx, sp.gen, source)
}

// interrupt cancels the live utterance and bumps the generation so events
// still in flight from the old worker are dropped.
func (sp *speaker) interrupt() {
	if sp.cancel != nil {
		sp.cancel()
		sp.cancel = nil
	}
	sp.live = false
	sp.gen++
}

// matches reports whether a worker event belongs to the live utterance.
func (sp *speaker) matches(gen uint64) bool {
	return sp.live && gen == sp.gen
}

// finish marks the live utterance complete. False means the event was
// stale and the caller should drop it.
func (sp *speaker) finish(gen uint64) bool {
	if !sp.matches(gen) {
		return false
	}
	sp.live = false
	if sp.cancel != nil {
		sp.cancel()
		sp.cancel = nil
	}
	return true
}

// runUtterance streams the source text and speaks it one sentence at a
// time, so the first audio goes out before the full reply is generated.
func (sp *speaker) runUtterance(ctx context.Context, gen uint64, source textSource) {
	textCh, err := source(ctx)
	if err != nil {
		sp.post(ctx, agentDoneEvent{gen: gen, err: err})
		return
	}

	var buffer strings.Builder
	for chunk := range textCh {
		if ctx.Err() != nil {
			return
		}
		if !sp.post(ctx, agentTextEvent{gen: gen, chunk: chunk}) {
			return
		}
		buffer.WriteString(chunk)

		complete, remaining := extractCompleteSentences(buffer.String())
		if complete != "" {
			if !sp.synthesize(ctx, gen, complete) {
				return
			}
			buffer.Reset()
			buffer.WriteString(remaining)
		}
	}

	// Speak whatever trailing text never got closing punctuation.
	if remaining := strings.TrimSpace(buffer.String()); remaining != "" {
		if !sp.synthesize(ctx, gen, remaining) {
			return
		}
	}

	sp.post(ctx, agentDoneEvent{gen: gen})
}

// synthesize speaks one sentence, forwarding audio chunks to the loop.
// Synthesis failures are reported but do not end the utterance; the text
// keeps streaming so captions still work without audio. Returns false
// only when the utterance was canceled.
func (sp *speaker) synthesize(ctx context.Context, gen uint64, text string) bool {
	if sp.tts == nil {
		return true
	}

	sp.metrics.RecordTTSStart()
	sp.usage.ttsChars.Add(int64(len(text)))

	audioCh, err := sp.tts.SynthesizeStream(ctx, text)
	if err != nil {
		sp.metrics.RecordTTSEnd(false)
		if ctx.Err() != nil {
			return false
		}
		sp.logger.Warn().Err(err).Msg("speaker: synthesis failed")
		sp.post(ctx, agentErrorEvent{gen: gen, component: "speech synthesis", err: err})
		return true
	}

	for chunk := range audioCh {
		if ctx.Err() != nil {
			// Drain so the synthesizer can finish and release its stream.
			for range audioCh {
			}
			sp.metrics.RecordTTSEnd(false)
			return false
		}
		if !sp.post(ctx, agentAudioEvent{gen: gen, audio: chunk}) {
			for range audioCh {
			}
			sp.metrics.RecordTTSEnd(false)
			return false
		}
	}

	sp.metrics.RecordTTSEnd(true)
	return true
}

// post delivers a worker event unless the utterance has been abandoned.
func (sp *speaker) post(ctx context.Context, ev event) bool {
	select {
	case sp.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// extractCompleteSentences splits buffered text at the last sentence
// boundary, returning (complete sentences, remaining buffer).
func extractCompleteSentences(buffer string) (string, string) {
	lastBoundary := -1
	for i := len(buffer) - 1; i >= 0; i-- {
		c := buffer[i]
		if c == '.' || c == '!' || c == '?' {
			lastBoundary = i
			break
		}
	}

	if lastBoundary == -1 {
		return "", buffer
	}

	return buffer[:lastBoundary+1], buffer[lastBoundary+1:]
}
