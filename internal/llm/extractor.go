// Package llm provides the LLM-backed extraction service using langchaingo.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/arrgh-go/internal/config"
	"github.com/raphaelgruber/arrgh-go/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxContentLength bounds the text sent per extraction call. Longer
// newsletters are truncated; the tail rarely carries new entities.
const maxContentLength = 6000

// parseAttempts is how often a malformed JSON response is re-requested
// before giving up with ErrMalformedOutput.
const parseAttempts = 3

// Extractor calls an LLM to extract candidate entities and facts from
// newsletter text. Safe for concurrent use.
type Extractor struct {
	llm       llms.Model
	modelName string
	logger    *slog.Logger
}

// NewExtractor creates an extractor for the configured provider.
func NewExtractor(cfg config.Config) (*Extractor, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Extractor{
		llm:       model,
		modelName: cfg.LLMModel,
		logger:    slog.Default().With("component", "extractor"),
	}, nil
}

// Model returns the LLM model name.
func (e *Extractor) Model() string {
	return e.modelName
}

const entitySystemPrompt = `You are an expert at extracting structured information from newsletter content.
Extract entities from the text and classify them into these categories:

- Organization: companies, institutions, government bodies
- Person: individuals mentioned in content
- Product: software, hardware, services, models
- Event: conferences, announcements, launches
- Location: geographic locations (cities, countries, regions)
- Topic: subject areas, technologies, fields of study

Rate confidence from 0.0 to 1.0 and include the sentence or phrase where
each entity was mentioned. Return ONLY valid JSON in this shape:

{"entities": [{"name": "...", "type": "Organization", "confidence": 0.95, "context": "..."}]}`

const factSystemPrompt = `You are an expert at extracting relationships between known entities from newsletter content.
Only use entities from the provided list; refer to them by their exact mention text.
Prefer these predicates: WORKS_AT, ANNOUNCED, LOCATED_IN, ACQUIRED, PARTNERED_WITH, LAUNCHED, RELATED_TO.
Include the date or validity window asserted by the text as temporal_context when present.
Rate confidence from 0.0 to 1.0. Return ONLY valid JSON in this shape:

{"facts": [{"subject": "...", "predicate": "ANNOUNCED", "object": "...", "confidence": 0.9, "temporal_context": "Q3 2025"}]}`

// entityPayload mirrors the JSON the model is asked to produce.
type entityPayload struct {
	Entities []struct {
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
		Context    string  `json:"context"`
	} `json:"entities"`
}

type factPayload struct {
	Facts []struct {
		Subject         string  `json:"subject"`
		Predicate       string  `json:"predicate"`
		Object          string  `json:"object"`
		Confidence      float64 `json:"confidence"`
		TemporalContext string  `json:"temporal_context"`
	} `json:"facts"`
}

// ExtractEntities extracts candidate entities from newsletter text.
// Candidates are returned unvalidated; threshold and type checks happen
// in the resolver.
func (e *Extractor) ExtractEntities(ctx context.Context, text string) ([]models.CandidateEntity, error) {
	raw, err := e.generateJSON(ctx, entitySystemPrompt, truncate(text))
	if err != nil {
		return nil, err
	}

	var payload entityPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	candidates := make([]models.CandidateEntity, 0, len(payload.Entities))
	for _, ent := range payload.Entities {
		candidates = append(candidates, models.CandidateEntity{
			Name:           ent.Name,
			Type:           models.EntityType(ent.Type),
			ContextSnippet: ent.Context,
			Confidence:     ent.Confidence,
		})
	}

	e.logger.Debug("entities extracted", "count", len(candidates), "model", e.modelName)
	return candidates, nil
}

// ExtractFacts extracts candidate relational statements between the given
// entity mentions. Subject and object reference mention text, not graph ids.
func (e *Extractor) ExtractFacts(ctx context.Context, text string, entityMentions []string) ([]models.CandidateFact, error) {
	if len(entityMentions) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf("Known entities:\n%s\n\nText:\n%s",
		strings.Join(entityMentions, "\n"), truncate(text))

	raw, err := e.generateJSON(ctx, factSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var payload factPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	candidates := make([]models.CandidateFact, 0, len(payload.Facts))
	for _, f := range payload.Facts {
		candidates = append(candidates, models.CandidateFact{
			SubjectMention:  f.Subject,
			Predicate:       f.Predicate,
			ObjectMention:   f.Object,
			Confidence:      f.Confidence,
			TemporalContext: f.TemporalContext,
		})
	}

	e.logger.Debug("facts extracted", "count", len(candidates), "model", e.modelName)
	return candidates, nil
}

// generateJSON runs a chat completion and returns the JSON body of the
// response. Malformed responses are re-requested a bounded number of times
// since LLM JSON output is occasionally wrapped or truncated.
func (e *Extractor) generateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	var lastErr error
	for attempt := 0; attempt < parseAttempts; attempt++ {
		response, err := e.llm.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			return "", wrapFatalError(fmt.Errorf("generate content: %w", err))
		}
		if len(response.Choices) == 0 {
			lastErr = fmt.Errorf("no response choices")
			continue
		}

		raw := stripCodeFence(response.Choices[0].Content)
		if json.Valid([]byte(raw)) {
			return raw, nil
		}
		lastErr = fmt.Errorf("invalid JSON on attempt %d", attempt+1)
		e.logger.Warn("malformed extraction response, retrying", "attempt", attempt+1)
	}

	return "", fmt.Errorf("%w: %v", ErrMalformedOutput, lastErr)
}

// stripCodeFence unwraps ```json ... ``` fenced responses.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "```json") {
		s = strings.SplitN(s, "```json", 2)[1]
		s = strings.SplitN(s, "```", 2)[0]
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.SplitN(s, "```", 2)[0]
	}
	return strings.TrimSpace(s)
}

func truncate(text string) string {
	if len(text) <= maxContentLength {
		return text
	}
	return text[:maxContentLength] + "..."
}
