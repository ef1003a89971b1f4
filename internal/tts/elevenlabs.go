package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const elevenLabsAPIURL = "https://api.elevenlabs.io/v1/text-to-speech"

// outputFormat is what the browser client plays back over the WebSocket.
const outputFormat = "mp3_44100_64"

// streamChunkSize is how much encoded audio we forward per message, roughly
// half a second at 64 kbps.
const streamChunkSize = 4096

// ElevenLabsClient implements the Client interface using ElevenLabs' API.
type ElevenLabsClient struct {
	apiKey     string
	voiceID    string
	modelID    string
	stability  float64
	similarity float64
	httpClient *http.Client
}

// ElevenLabsConfig holds configuration for the ElevenLabs client.
type ElevenLabsConfig struct {
	APIKey     string
	VoiceID    string  // ElevenLabs voice ID
	ModelID    string  // e.g. "eleven_flash_v2_5" for low latency
	Stability  float64 // voice stability; negative means use the default
	Similarity float64 // similarity boost; negative means use the default
}

// NewElevenLabsClient creates a new ElevenLabs client. Zero is a valid value
// for the voice settings (maximum expressiveness), so negative values are
// the sentinel for "use the default".
func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = "eleven_flash_v2_5"
	}
	voiceID := cfg.VoiceID
	if voiceID == "" {
		voiceID = "21m00Tcm4TlvDq8ikWAM" // Rachel
	}
	stability := cfg.Stability
	if stability < 0 {
		stability = 0.5
	}
	similarity := cfg.Similarity
	if similarity < 0 {
		similarity = 0.75
	}
	return &ElevenLabsClient{
		apiKey:     cfg.APIKey,
		voiceID:    voiceID,
		modelID:    modelID,
		stability:  stability,
		similarity: similarity,
		httpClient: &http.Client{},
	}
}

// ttsRequest represents an ElevenLabs TTS request.
type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (c *ElevenLabsClient) buildRequest(ctx context.Context, url, text string) (*http.Request, error) {
	req := ttsRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.similarity,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)
	return httpReq, nil
}

// Synthesize converts text to speech and returns the complete MP3 audio.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s?output_format=%s", elevenLabsAPIURL, c.voiceID, outputFormat)

	httpReq, err := c.buildRequest(ctx, url, text)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ElevenLabs API error: %s - %s", resp.Status, string(respBody))
	}

	return io.ReadAll(resp.Body)
}

// SynthesizeStream converts text to speech and streams audio chunks as they
// are produced.
func (c *ElevenLabsClient) SynthesizeStream(ctx context.Context, text string) (<-chan []byte, error) {
	url := fmt.Sprintf("%s/%s/stream?output_format=%s", elevenLabsAPIURL, c.voiceID, outputFormat)

	httpReq, err := c.buildRequest(ctx, url, text)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ElevenLabs API error: %s - %s", resp.Status, string(respBody))
	}

	ch := make(chan []byte, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		buf := make([]byte, streamChunkSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case <-ctx.Done():
					return
				case ch <- chunk:
				}
			}
			if err != nil {
				return
			}
		}
	}()

	return ch, nil
}
