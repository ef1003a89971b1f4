package costs

import (
	"testing"
)

func TestCalculateSessionCosts(t *testing.T) {
	tests := []struct {
		name    string
		metrics SessionMetrics
		want    SessionCosts
	}{
		{
			name: "typical 5 minute practice",
			metrics: SessionMetrics{
				AudioInBytes: 5 * 60 * 32000, // 5 minutes of PCM16 at 16 kHz
				CoachChars:   2000,           // Coach replies
				TTSChars:     1500,           // Spoken response chars
			},
			// STT: 5 * 0.77 = 3.85 -> 4 cents
			// Coach: (2000/1000)*0.01 = 0.02 -> 0 cents
			// TTS: (1500/1000)*18 = 27 -> 27 cents
			// Total: 4 + 0 + 27 = 31 cents
			want: SessionCosts{
				STTCostCents:   4,
				CoachCostCents: 0,
				TTSCostCents:   27,
				TotalCostCents: 31,
			},
		},
		{
			name: "quick 30 second visit",
			metrics: SessionMetrics{
				AudioInBytes: 30 * 32000,
				CoachChars:   200,
				TTSChars:     200,
			},
			// STT: 0.5 * 0.77 = 0.385 -> 0 cents
			// Coach: tiny -> 0 cents
			// TTS: (200/1000)*18 = 3.6 -> 4 cents
			want: SessionCosts{
				STTCostCents:   0,
				CoachCostCents: 0,
				TTSCostCents:   4,
				TotalCostCents: 4,
			},
		},
		{
			name: "long session with lots of speech",
			metrics: SessionMetrics{
				AudioInBytes: 20 * 60 * 32000, // 20 minutes
				CoachChars:   10000,
				TTSChars:     8000,
			},
			// STT: 20 * 0.77 = 15.4 -> 15 cents
			// Coach: (10000/1000)*0.01 = 0.1 -> 0 cents
			// TTS: (8000/1000)*18 = 144 -> 144 cents
			// Total: 15 + 0 + 144 = 159 cents
			want: SessionCosts{
				STTCostCents:   15,
				CoachCostCents: 0,
				TTSCostCents:   144,
				TotalCostCents: 159,
			},
		},
		{
			name:    "empty session (edge case)",
			metrics: SessionMetrics{},
			want:    SessionCosts{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateSessionCosts(tt.metrics)
			if got.STTCostCents != tt.want.STTCostCents {
				t.Errorf("STTCostCents = %d, want %d", got.STTCostCents, tt.want.STTCostCents)
			}
			if got.CoachCostCents != tt.want.CoachCostCents {
				t.Errorf("CoachCostCents = %d, want %d", got.CoachCostCents, tt.want.CoachCostCents)
			}
			if got.TTSCostCents != tt.want.TTSCostCents {
				t.Errorf("TTSCostCents = %d, want %d", got.TTSCostCents, tt.want.TTSCostCents)
			}
			if got.TotalCostCents != tt.want.TotalCostCents {
				t.Errorf("TotalCostCents = %d, want %d", got.TotalCostCents, tt.want.TotalCostCents)
			}
		})
	}
}

func TestAudioSeconds(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  int
	}{
		{"no audio", 0, 0},
		{"one second", 32000, 1},
		{"partial second truncates", 48000, 1},
		{"five minutes", 5 * 60 * 32000, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AudioSeconds(tt.bytes); got != tt.want {
				t.Errorf("AudioSeconds(%d) = %d, want %d", tt.bytes, got, tt.want)
			}
		})
	}
}
