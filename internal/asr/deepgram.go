package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const deepgramWSURL = "wss://api.deepgram.com/v1/listen"

// DeepgramClient implements Client using Deepgram's realtime streaming API.
type DeepgramClient struct {
	conn      *websocket.Conn
	results   chan Result
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	wg        sync.WaitGroup // waits for readLoop before channels close
}

// DeepgramConfig holds configuration for the Deepgram client.
type DeepgramConfig struct {
	APIKey         string
	Language       string // e.g. "en"
	Model          string // e.g. "nova-3"
	SampleRate     int    // e.g. 16000 for browser microphone capture
	Encoding       string // e.g. "linear16" for PCM16
	Channels       int    // 1 for mono
	Punctuate      bool
	Interim        bool // stream interim hypotheses, needed for live captions
	Endpointing    int  // ms of silence that ends an utterance, 0 for default
	UtteranceEndMs int  // hard timeout after last speech regardless of noise
}

// deepgramResponse is the subset of Deepgram's result message we consume.
type deepgramResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal     bool `json:"is_final"`
	SpeechFinal bool `json:"speech_final"`
}

// NewDeepgramClient dials the realtime endpoint and starts consuming
// results.
func NewDeepgramClient(ctx context.Context, cfg DeepgramConfig) (*DeepgramClient, error) {
	url := fmt.Sprintf("%s?model=%s&language=%s&encoding=%s&sample_rate=%d&channels=%d&punctuate=%t&interim_results=%t",
		deepgramWSURL,
		cfg.Model,
		cfg.Language,
		cfg.Encoding,
		cfg.SampleRate,
		cfg.Channels,
		cfg.Punctuate,
		cfg.Interim,
	)

	if cfg.Endpointing > 0 {
		url += fmt.Sprintf("&endpointing=%d", cfg.Endpointing)
	}
	if cfg.UtteranceEndMs > 0 {
		url += fmt.Sprintf("&utterance_end_ms=%d", cfg.UtteranceEndMs)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Deepgram: %w", err)
	}

	client := &DeepgramClient{
		conn:    conn,
		results: make(chan Result, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}

	client.wg.Add(1)
	go client.readLoop()

	return client, nil
}

// StreamAudio sends raw PCM16 audio to Deepgram.
func (c *DeepgramClient) StreamAudio(ctx context.Context, audio []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return fmt.Errorf("client is closed")
	default:
	}

	return c.conn.WriteMessage(websocket.BinaryMessage, audio)
}

// Results returns the channel for receiving transcription updates.
func (c *DeepgramClient) Results() <-chan Result {
	return c.results
}

// Errors returns the channel for receiving stream errors.
func (c *DeepgramClient) Errors() <-chan error {
	return c.errors
}

// Close signals stream end to Deepgram and tears down the connection.
func (c *DeepgramClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		closeMsg := []byte(`{"type": "CloseStream"}`)
		_ = c.conn.WriteMessage(websocket.TextMessage, closeMsg)
		c.mu.Unlock()

		err = c.conn.Close()

		// Wait for readLoop to finish before closing channels.
		c.wg.Wait()
		close(c.results)
		close(c.errors)
	})
	return err
}

// readLoop reads Deepgram responses and forwards transcription results.
func (c *DeepgramClient) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			case c.errors <- fmt.Errorf("read error: %w", err):
			default:
			}
			return
		}

		var resp deepgramResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			log.Warn().Err(err).Msg("deepgram: failed to parse response")
			continue
		}

		if resp.Type != "Results" {
			continue
		}

		var transcript string
		var confidence float64
		if len(resp.Channel.Alternatives) > 0 {
			alt := resp.Channel.Alternatives[0]
			transcript = alt.Transcript
			confidence = alt.Confidence
		}

		result := Result{
			Text:         transcript,
			Confidence:   confidence,
			SegmentFinal: resp.IsFinal,
			SpeechFinal:  resp.SpeechFinal,
		}

		// Skip empty interim noise but keep empty boundary signals, which
		// still close utterances downstream.
		if result.Text == "" && !result.SegmentFinal && !result.SpeechFinal {
			continue
		}

		select {
		case <-c.done:
			return
		case c.results <- result:
		}
	}
}
