package asr

import "context"

// Result is one transcription update from the recognizer.
type Result struct {
	Text         string  // transcribed text for the current segment
	Confidence   float64 // confidence score (0-1)
	SegmentFinal bool    // this segment's text will not change again
	SpeechFinal  bool    // the speaker paused long enough to end the utterance
}

// Client defines the interface for streaming speech-to-text providers.
type Client interface {
	// StreamAudio sends raw audio to the recognizer. Audio must be in the
	// format the provider was configured with.
	StreamAudio(ctx context.Context, audio []byte) error

	// Results returns a channel that receives transcription updates.
	Results() <-chan Result

	// Errors returns a channel that receives stream errors.
	Errors() <-chan error

	// Close tears down the provider connection and closes both channels.
	Close() error
}
