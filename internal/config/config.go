package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Twilio
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioSMSPhone   string

	// LiveKit
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string
	SIPTrunkID       string
	AgentName        string

	// NATS call event bus
	NatsURL   string
	NatsToken string

	// Reasoning collaborator
	LLMAPIKey      string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration

	// Run settings
	BurstCount   int
	BurstWindow  time.Duration
	PreCallDelay time.Duration
	ResultsDir   string

	// Optional run ledger + API
	DatabaseURL string
	Port        int
	LogLevel    string
}

func Load() Config {
	// A local .env overrides nothing already in the environment.
	_ = godotenv.Load()

	return Config{
		TwilioAccountSID: envStr("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  envStr("TWILIO_AUTH_TOKEN", ""),
		TwilioSMSPhone:   envStr("TWILIO_SMS_PHONE_NUMBER", ""),

		LiveKitURL:       envStr("LIVEKIT_URL", ""),
		LiveKitAPIKey:    envStr("LIVEKIT_API_KEY", ""),
		LiveKitAPISecret: envStr("LIVEKIT_API_SECRET", ""),
		SIPTrunkID:       envStr("SIP_TRUNK_ID", ""),
		AgentName:        envStr("VISH_AGENT_NAME", "vish-agent"),

		NatsURL:   envStr("NATS_URL", "nats://127.0.0.1:4222"),
		NatsToken: envStr("NATS_TOKEN", ""),

		LLMAPIKey:      envStr("BLACKBOX_API_KEY", ""),
		LLMModel:       envStr("VISH_MODEL", "claude-sonnet-4-5-20241022"),
		LLMTemperature: envFloat("VISH_MODEL_TEMPERATURE", 0.3),
		LLMMaxTokens:   envInt("VISH_MODEL_MAX_TOKENS", 1000),
		LLMTimeout:     envDuration("VISH_MODEL_TIMEOUT", 60*time.Second),

		BurstCount:   envInt("VISH_BURST_COUNT", 5),
		BurstWindow:  envDuration("VISH_BURST_WINDOW", 60*time.Second),
		PreCallDelay: envDuration("VISH_PRECALL_DELAY", 10*time.Second),
		ResultsDir:   envStr("VISH_RESULTS_DIR", "results"),

		DatabaseURL: envStr("DATABASE_URL", ""),
		Port:        envInt("VISH_PORT", 8760),
		LogLevel:    envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
