package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Telnyx call control
	TelnyxAPIKey           string
	TelnyxBaseURL          string
	TelnyxPublicKey        string
	TelnyxSignatureMaxSkew time.Duration
	TelnyxRequestTimeout   time.Duration
	TelnyxRetryMaxAttempts int
	TelnyxRetryBaseDelay   time.Duration

	// Bridging
	AgentSIPDomain      string
	BridgeClaimTTL      time.Duration
	BridgeAnswerSettle  time.Duration
	BridgeHangupSettle  time.Duration
	BridgeJobTimeout    time.Duration
	BridgeQueueCapacity int
	FallbackVoice       string
	FallbackLanguage    string
	FallbackMessage     string
	HoldMessage         string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TelnyxAPIKey:           getEnv("TELNYX_API_KEY", ""),
		TelnyxBaseURL:          getEnv("TELNYX_BASE_URL", ""),
		TelnyxPublicKey:        getEnv("TELNYX_PUBLIC_KEY", ""),
		TelnyxSignatureMaxSkew: getEnvAsDuration("TELNYX_SIGNATURE_MAX_SKEW", 5*time.Minute),
		TelnyxRequestTimeout:   getEnvAsDuration("TELNYX_REQUEST_TIMEOUT", 10*time.Second),
		TelnyxRetryMaxAttempts: getEnvAsInt("TELNYX_RETRY_MAX_ATTEMPTS", 2),
		TelnyxRetryBaseDelay:   getEnvAsDuration("TELNYX_RETRY_BASE_DELAY", 250*time.Millisecond),

		AgentSIPDomain:      getEnv("AGENT_SIP_DOMAIN", "sip.agentvoice.ai"),
		BridgeClaimTTL:      getEnvAsDuration("BRIDGE_CLAIM_TTL", time.Hour),
		BridgeAnswerSettle:  getEnvAsDuration("BRIDGE_ANSWER_SETTLE", 2*time.Second),
		BridgeHangupSettle:  getEnvAsDuration("BRIDGE_HANGUP_SETTLE", 6*time.Second),
		BridgeJobTimeout:    getEnvAsDuration("BRIDGE_JOB_TIMEOUT", 60*time.Second),
		BridgeQueueCapacity: getEnvAsInt("BRIDGE_QUEUE_CAPACITY", 64),
		FallbackVoice:       getEnv("FALLBACK_TTS_VOICE", "female"),
		FallbackLanguage:    getEnv("FALLBACK_TTS_LANGUAGE", "en-US"),
		FallbackMessage: getEnv("FALLBACK_MESSAGE",
			"We're sorry, we could not connect your call right now. Please try again later or leave a message after the tone."),
		HoldMessage: getEnv("HOLD_MESSAGE",
			"Thank you for calling. Please hold while we connect you, or call back shortly."),
	}
}

// IsProduction reports whether the service runs with production guarantees.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
