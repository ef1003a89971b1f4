package app

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting for the server. Values come from the
// environment, with a .env file loaded first when present. Provider keys are
// all optional: a session degrades to text-only coaching when STT or TTS keys
// are missing, and runs without persistence when DATABASE_URL is empty.
type Config struct {
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	Version     string `envconfig:"SERVICE_VERSION" default:"dev"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Speech recognition (Deepgram)
	DeepgramAPIKey    string `envconfig:"DEEPGRAM_API_KEY"`
	STTEndpointingMs  int    `envconfig:"STT_ENDPOINTING_MS" default:"800"`
	STTUtteranceEndMs int    `envconfig:"STT_UTTERANCE_END_MS" default:"1500"`

	// Coaching (Gemini; rule-based fallback when the key is empty)
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY"`
	GeminiModel       string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	CoachSystemPrompt string `envconfig:"COACH_SYSTEM_PROMPT"`

	// Speech synthesis (ElevenLabs). Stability and similarity below zero mean
	// the provider default is used.
	ElevenLabsAPIKey string  `envconfig:"ELEVENLABS_API_KEY"`
	TTSVoiceID       string  `envconfig:"TTS_VOICE_ID"`
	TTSStability     float64 `envconfig:"TTS_STABILITY" default:"-1"`
	TTSSimilarity    float64 `envconfig:"TTS_SIMILARITY" default:"-1"`

	// Sign recognition. Empty path means the embedded alphabet templates.
	SignTemplatesPath string `envconfig:"SIGN_TEMPLATES_PATH"`

	// Session pacing. A zero idle timeout disables idle disconnects.
	QuizCountdownTick  time.Duration `envconfig:"QUIZ_COUNTDOWN_TICK" default:"1s"`
	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"0s"`

	// Retention. Journal events and push tokens for learners idle longer
	// than DATA_RETENTION are pruned; zero disables the sweep.
	DataRetention          time.Duration `envconfig:"DATA_RETENTION" default:"720h"`
	RetentionSweepInterval time.Duration `envconfig:"RETENTION_SWEEP_INTERVAL" default:"1h"`

	// Auth
	JWTSecret string        `envconfig:"JWT_SECRET"`
	JWTExpiry time.Duration `envconfig:"JWT_EXPIRY" default:"720h"`

	// HTTP surface
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
	MetricsEnabled bool     `envconfig:"METRICS_ENABLED" default:"true"`

	// Observability
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
	SentryDSN string `envconfig:"SENTRY_DSN"`

	// Push notifications (APNs). Disabled unless all key fields are set.
	APNsKeyPath    string `envconfig:"APNS_KEY_PATH"`
	APNsKeyID      string `envconfig:"APNS_KEY_ID"`
	APNsTeamID     string `envconfig:"APNS_TEAM_ID"`
	APNsBundleID   string `envconfig:"APNS_BUNDLE_ID"`
	APNsProduction bool   `envconfig:"APNS_PRODUCTION" default:"false"`
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first so local development does not need
// exported variables.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TTSStability > 1 {
		return fmt.Errorf("TTS_STABILITY must be at most 1, got %v", c.TTSStability)
	}
	if c.TTSSimilarity > 1 {
		return fmt.Errorf("TTS_SIMILARITY must be at most 1, got %v", c.TTSSimilarity)
	}
	if c.STTEndpointingMs < 0 {
		return fmt.Errorf("STT_ENDPOINTING_MS must not be negative, got %d", c.STTEndpointingMs)
	}
	if c.STTUtteranceEndMs < 0 {
		return fmt.Errorf("STT_UTTERANCE_END_MS must not be negative, got %d", c.STTUtteranceEndMs)
	}
	if c.QuizCountdownTick <= 0 {
		return fmt.Errorf("QUIZ_COUNTDOWN_TICK must be positive, got %v", c.QuizCountdownTick)
	}
	if c.SessionIdleTimeout < 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative, got %v", c.SessionIdleTimeout)
	}
	if c.DataRetention < 0 {
		return fmt.Errorf("DATA_RETENTION must not be negative, got %v", c.DataRetention)
	}
	if c.RetentionSweepInterval <= 0 {
		return fmt.Errorf("RETENTION_SWEEP_INTERVAL must be positive, got %v", c.RetentionSweepInterval)
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive, got %v", c.JWTExpiry)
	}
	return nil
}
