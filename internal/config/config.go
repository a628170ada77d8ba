// Package config loads Arrgh configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// LLM extraction service
	LLMProvider     Provider
	LLMModel        string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	LLMTimeout      time.Duration

	// Pipeline tuning
	EntityConfidenceThreshold float64
	FactConfidenceThreshold   float64
	SimilarityThreshold       float64
	MaxEntitiesPerNewsletter  int
	PipelineTimeout           time.Duration
	MaxRetries                int

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over .env values.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "arrgh"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "newsletters"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     Provider(getEnv("ARRGH_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:        getEnv("ARRGH_LLM_MODEL", "llama3"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		AnthropicAPIKey: strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		LLMTimeout:      getEnvDuration("ARRGH_LLM_TIMEOUT", 60*time.Second),

		EntityConfidenceThreshold: getEnvFloat("ARRGH_ENTITY_THRESHOLD", 0.7),
		FactConfidenceThreshold:   getEnvFloat("ARRGH_FACT_THRESHOLD", 0.8),
		SimilarityThreshold:       getEnvFloat("ARRGH_SIMILARITY_THRESHOLD", 0.85),
		MaxEntitiesPerNewsletter:  getEnvInt("ARRGH_MAX_ENTITIES", 100),
		PipelineTimeout:           getEnvDuration("ARRGH_PIPELINE_TIMEOUT", 300*time.Second),
		MaxRetries:                getEnvInt("ARRGH_MAX_RETRIES", 3),

		LogFile:  getEnv("ARRGH_LOG_FILE", "/tmp/arrgh.log"),
		LogLevel: parseLogLevel(getEnv("ARRGH_LOG_LEVEL", "INFO")),
	}
}

// Validate checks configuration combinations that cannot work at runtime.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY required for provider %q", c.LLMProvider)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY required for provider %q", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %q", c.LLMProvider)
	}

	if c.EntityConfidenceThreshold < 0 || c.EntityConfidenceThreshold > 1 {
		return fmt.Errorf("entity confidence threshold out of range: %f", c.EntityConfidenceThreshold)
	}
	if c.FactConfidenceThreshold < 0 || c.FactConfidenceThreshold > 1 {
		return fmt.Errorf("fact confidence threshold out of range: %f", c.FactConfidenceThreshold)
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold out of range: %f", c.SimilarityThreshold)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	// Accept plain seconds for compatibility with older deployments.
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
