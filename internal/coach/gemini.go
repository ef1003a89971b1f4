package coach

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	geminiAPIURL       = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultGeminiModel = "gemini-2.0-flash"
)

// GeminiCoach implements the Coach interface using the Gemini API.
type GeminiCoach struct {
	apiKey       string
	model        string
	systemPrompt string
	httpClient   *http.Client
}

// GeminiConfig holds configuration for the Gemini coach.
type GeminiConfig struct {
	APIKey       string
	Model        string // e.g., "gemini-2.0-flash"
	SystemPrompt string // Optional custom system prompt
}

// NewGeminiCoach creates a new Gemini-backed coach.
func NewGeminiCoach(cfg GeminiConfig) *GeminiCoach {
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = SystemPromptTutor
	}
	return &GeminiCoach{
		apiKey:       cfg.APIKey,
		model:        model,
		systemPrompt: systemPrompt,
		httpClient:   &http.Client{},
	}
}

// SetSystemPrompt sets a custom system prompt for this coach.
func (c *GeminiCoach) SetSystemPrompt(prompt string) {
	if prompt != "" {
		c.systemPrompt = prompt
	}
}

// GetSystemPrompt returns the current system prompt.
func (c *GeminiCoach) GetSystemPrompt() string {
	return c.systemPrompt
}

func (c *GeminiCoach) systemPromptWithGuardrails() string {
	// Always include guardrails to keep replies speakable.
	return VoiceGuardrails + "\n\n" + c.systemPrompt
}

// geminiRequest represents a Gemini generateContent request.
type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

// geminiResponse represents a Gemini generateContent response. The
// streaming endpoint sends the same shape once per chunk.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ParseIntent classifies the utterance with a structured JSON call.
func (c *GeminiCoach) ParseIntent(ctx context.Context, text string, snap Snapshot) (Intent, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: fmt.Sprintf(IntentPromptTemplate, renderSnapshot(snap), text)}}},
		},
		GenerationConfig: &generationConfig{
			Temperature:      0.1,
			MaxOutputTokens:  120,
			ResponseMIMEType: "application/json",
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Intent{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", geminiAPIURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return Intent{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Intent{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Intent{}, fmt.Errorf("Gemini API error: %s - %s", resp.Status, string(respBody))
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return Intent{}, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 {
		return Intent{}, fmt.Errorf("no candidates in response")
	}

	var sb strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	// Parse JSON from response (handle potential markdown code blocks)
	content := strings.TrimSpace(sb.String())
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var parsed struct {
		Intent string `json:"intent"`
		Target string `json:"target"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Intent{}, fmt.Errorf("failed to parse intent: %w (content: %s)", err, content)
	}

	return normalizeIntent(parsed.Intent, parsed.Target, snap), nil
}

// Respond streams a spoken reply to the classified utterance.
func (c *GeminiCoach) Respond(ctx context.Context, req Request) (<-chan string, error) {
	prompt := fmt.Sprintf(ReplyPromptTemplate, renderSnapshot(req.Snapshot), req.Utterance, describeIntent(req.Intent))

	geminiReq := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: c.systemPromptWithGuardrails()}},
		},
		GenerationConfig: &generationConfig{
			Temperature:     0.6,
			MaxOutputTokens: 120,
		},
	}

	body, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", geminiAPIURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("Gemini API error: %s - %s", resp.Status, string(respBody))
	}

	ch := make(chan string, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()

			// Skip empty lines and non-data lines
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var streamResp geminiResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &streamResp); err != nil {
				continue
			}

			if len(streamResp.Candidates) == 0 {
				continue
			}

			for _, part := range streamResp.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case ch <- part.Text:
				}
			}
		}
	}()

	return ch, nil
}

// normalizeIntent maps the model's JSON fields onto an Intent,
// falling back to other for anything unrecognized.
func normalizeIntent(kind, target string, snap Snapshot) Intent {
	target = strings.ToUpper(strings.TrimSpace(target))
	switch IntentKind(strings.ToLower(strings.TrimSpace(kind))) {
	case IntentTeach:
		if target == "" {
			target = NextSign(snap)
		}
		return Intent{Kind: IntentTeach, Target: target}
	case IntentQuizStart:
		return Intent{Kind: IntentQuizStart}
	case IntentStop:
		return Intent{Kind: IntentStop}
	case IntentQuestion:
		return Intent{Kind: IntentQuestion}
	default:
		return Intent{Kind: IntentOther}
	}
}
