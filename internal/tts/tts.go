package tts

import "context"

// Client defines the interface for text-to-speech providers.
type Client interface {
	// Synthesize converts text to speech and returns the complete audio.
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// SynthesizeStream converts text to speech and streams audio chunks in
	// generation order. The channel closes when synthesis completes or the
	// context is canceled; canceling the context is how callers abandon an
	// utterance mid-stream.
	SynthesizeStream(ctx context.Context, text string) (<-chan []byte, error)
}
