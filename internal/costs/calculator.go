// Package costs provides cost calculation for API usage.
package costs

import (
	"os"
	"strconv"
)

// Pricing constants (in cents per unit for precision).
// These are based on 2026 market rates and can be overridden via environment variables.
var (
	// DeepgramCentsPerMinute is the cost per minute for Deepgram Nova-3 streaming STT.
	// Default: $0.0077/min = 0.77 cents/min
	DeepgramCentsPerMinute = getEnvFloat("COST_DEEPGRAM_CENTS_PER_MIN", 0.77)

	// GeminiCentsPerThousandChars is the cost per 1K output characters for
	// Gemini Flash, approximated at four characters per token.
	// Default: $0.40/1M tokens = 0.01 cents/1K chars
	GeminiCentsPerThousandChars = getEnvFloat("COST_GEMINI_CENTS_PER_1K_CHARS", 0.01)

	// ElevenLabsCentsPerThousandChars is the cost per 1K characters for ElevenLabs TTS.
	// Default: $0.18/1K chars = 18 cents/1K chars
	ElevenLabsCentsPerThousandChars = getEnvFloat("COST_ELEVENLABS_CENTS_PER_1K_CHARS", 18.0)
)

// pcmBytesPerSecond is the inbound audio rate: 16 kHz mono PCM16.
const pcmBytesPerSecond = 16000 * 2

// SessionMetrics contains the raw usage from a practice session used for
// cost calculation.
type SessionMetrics struct {
	AudioInBytes int64 // PCM16 audio streamed to STT
	CoachChars   int64 // Characters generated by the coach model
	TTSChars     int64 // Characters sent to TTS
}

// SessionCosts contains the calculated costs for a session in cents.
type SessionCosts struct {
	STTCostCents   int
	CoachCostCents int
	TTSCostCents   int
	TotalCostCents int
}

// AudioSeconds converts an inbound PCM16 byte count to whole seconds.
func AudioSeconds(bytes int64) int {
	return int(bytes / pcmBytesPerSecond)
}

// CalculateSessionCosts computes the costs for a session based on usage metrics.
func CalculateSessionCosts(m SessionMetrics) SessionCosts {
	sttMinutes := float64(m.AudioInBytes) / pcmBytesPerSecond / 60.0
	sttCents := sttMinutes * DeepgramCentsPerMinute

	coachCents := (float64(m.CoachChars) / 1000.0) * GeminiCentsPerThousandChars
	ttsCents := (float64(m.TTSChars) / 1000.0) * ElevenLabsCentsPerThousandChars

	// Round to nearest cent (we store as integers)
	costs := SessionCosts{
		STTCostCents:   roundToInt(sttCents),
		CoachCostCents: roundToInt(coachCents),
		TTSCostCents:   roundToInt(ttsCents),
	}
	costs.TotalCostCents = costs.STTCostCents + costs.CoachCostCents + costs.TTSCostCents

	return costs
}

// roundToInt rounds a float to the nearest integer.
func roundToInt(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

// getEnvFloat returns an environment variable as float64, or the default if not set.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
