package tts

import (
	"testing"
)

func TestNewElevenLabsClientVoiceSettings(t *testing.T) {
	tests := []struct {
		name           string
		stability      float64
		similarity     float64
		wantStability  float64
		wantSimilarity float64
	}{
		// Negative is the "use default" sentinel since 0.0 is a valid
		// ElevenLabs setting (maximum expressiveness).
		{"defaults via sentinel", -1, -1, 0.5, 0.75},
		{"custom stability only", 0.8, -1, 0.8, 0.75},
		{"custom similarity only", -1, 0.9, 0.5, 0.9},
		{"custom both", 0.3, 0.6, 0.3, 0.6},
		{"zero is a valid value", 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewElevenLabsClient(ElevenLabsConfig{
				APIKey:     "test-key",
				Stability:  tt.stability,
				Similarity: tt.similarity,
			})

			if client.stability != tt.wantStability {
				t.Errorf("stability = %f, want %f", client.stability, tt.wantStability)
			}
			if client.similarity != tt.wantSimilarity {
				t.Errorf("similarity = %f, want %f", client.similarity, tt.wantSimilarity)
			}
		})
	}
}

func TestNewElevenLabsClientDefaultVoiceAndModel(t *testing.T) {
	client := NewElevenLabsClient(ElevenLabsConfig{APIKey: "test-key"})

	if client.voiceID != "21m00Tcm4TlvDq8ikWAM" {
		t.Errorf("voiceID = %q, want the Rachel default", client.voiceID)
	}
	if client.modelID != "eleven_flash_v2_5" {
		t.Errorf("modelID = %q, want eleven_flash_v2_5", client.modelID)
	}
}

func TestNewElevenLabsClientCustomVoiceAndModel(t *testing.T) {
	client := NewElevenLabsClient(ElevenLabsConfig{
		APIKey:  "test-key",
		VoiceID: "custom-voice-id",
		ModelID: "custom-model-id",
	})

	if client.voiceID != "custom-voice-id" {
		t.Errorf("voiceID = %q, want custom-voice-id", client.voiceID)
	}
	if client.modelID != "custom-model-id" {
		t.Errorf("modelID = %q, want custom-model-id", client.modelID)
	}
}
