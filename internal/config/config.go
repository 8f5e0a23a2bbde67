package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	OpenAIKey        string
	AIModel          string
	AIBaseURL        string
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int
	RateLimit        string
	JWTSecret        string
	JWTIssuer        string
	JWTTTL           time.Duration
	ServiceID        string
	TokenTTL         time.Duration
	HistoryLimit     int
	PolicyFile       string
	PIIHashSalt      string
	EnableHSTS       bool
	ServerDebugMode  bool
	WorkerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		RateLimit:        getEnv("RATE_LIMIT", "10-S"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", "crm-ai-gateway"),
		JWTTTL:           getEnvDuration("JWT_TTL", time.Hour),
		ServiceID:        getEnv("SERVICE_ID", "crm-ai-gateway"),
		TokenTTL:         getEnvDuration("PII_TOKEN_TTL", 30*24*time.Hour),
		HistoryLimit:     getEnvInt("CONTEXT_HISTORY_LIMIT", 20),
		PolicyFile:       getEnv("SENSITIVE_FIELDS_FILE", ""),
		PIIHashSalt:      getEnv("PII_HASH_SALT", ""),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.HistoryLimit <= 0 {
		return nil, fmt.Errorf("CONTEXT_HISTORY_LIMIT must be positive")
	}

	return cfg, nil
}

// Policy is the sensitive-field policy loaded from a YAML file. When present
// it replaces the built-in sensitive-field set.
type Policy struct {
	SensitiveFields []string `yaml:"sensitive_fields"`
	HashSalt        string   `yaml:"hash_salt"`
}

// LoadPolicy reads the policy file configured via SENSITIVE_FIELDS_FILE.
// Returns nil when no file is configured.
func (c *Config) LoadPolicy() (*Policy, error) {
	if c.PolicyFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(c.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if len(policy.SensitiveFields) == 0 {
		return nil, fmt.Errorf("policy file %s declares no sensitive fields", c.PolicyFile)
	}

	return &policy, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
