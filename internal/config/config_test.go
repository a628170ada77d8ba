package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "ws://localhost:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, ProviderOllama, cfg.LLMProvider)
	assert.Equal(t, 0.7, cfg.EntityConfidenceThreshold)
	assert.Equal(t, 0.8, cfg.FactConfidenceThreshold)
	assert.Equal(t, 0.85, cfg.SimilarityThreshold)
	assert.Equal(t, 100, cfg.MaxEntitiesPerNewsletter)
	assert.Equal(t, 300*time.Second, cfg.PipelineTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ARRGH_ENTITY_THRESHOLD", "0.5")
	t.Setenv("ARRGH_MAX_ENTITIES", "25")
	t.Setenv("ARRGH_PIPELINE_TIMEOUT", "120")
	t.Setenv("ARRGH_LOG_LEVEL", "debug")

	cfg := Load()

	assert.Equal(t, 0.5, cfg.EntityConfidenceThreshold)
	assert.Equal(t, 25, cfg.MaxEntitiesPerNewsletter)
	assert.Equal(t, 120*time.Second, cfg.PipelineTimeout, "plain seconds accepted")
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_DurationString(t *testing.T) {
	t.Setenv("ARRGH_PIPELINE_TIMEOUT", "2m30s")
	cfg := Load()
	assert.Equal(t, 150*time.Second, cfg.PipelineTimeout)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("ARRGH_ENTITY_THRESHOLD", "not-a-number")
	t.Setenv("ARRGH_MAX_ENTITIES", "many")
	t.Setenv("ARRGH_PIPELINE_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 0.7, cfg.EntityConfidenceThreshold)
	assert.Equal(t, 100, cfg.MaxEntitiesPerNewsletter)
	assert.Equal(t, 300*time.Second, cfg.PipelineTimeout)
}

func TestValidate(t *testing.T) {
	base := Load()

	t.Run("ollama needs no key", func(t *testing.T) {
		cfg := base
		cfg.LLMProvider = ProviderOllama
		require.NoError(t, cfg.Validate())
	})

	t.Run("openai requires key", func(t *testing.T) {
		cfg := base
		cfg.LLMProvider = ProviderOpenAI
		cfg.OpenAIAPIKey = ""
		require.Error(t, cfg.Validate())

		cfg.OpenAIAPIKey = "sk-test"
		require.NoError(t, cfg.Validate())
	})

	t.Run("anthropic requires key", func(t *testing.T) {
		cfg := base
		cfg.LLMProvider = ProviderAnthropic
		cfg.AnthropicAPIKey = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := base
		cfg.LLMProvider = Provider("bard")
		require.Error(t, cfg.Validate())
	})

	t.Run("threshold bounds", func(t *testing.T) {
		cfg := base
		cfg.EntityConfidenceThreshold = 1.5
		require.Error(t, cfg.Validate())

		cfg = base
		cfg.SimilarityThreshold = 0
		require.Error(t, cfg.Validate())
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
