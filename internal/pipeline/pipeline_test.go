package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/arrgh-go/internal/config"
	"github.com/raphaelgruber/arrgh-go/internal/llm"
	"github.com/raphaelgruber/arrgh-go/internal/metrics"
	"github.com/raphaelgruber/arrgh-go/internal/models"
)

func testConfig() config.Config {
	return config.Config{
		EntityConfidenceThreshold: 0.7,
		FactConfidenceThreshold:   0.8,
		SimilarityThreshold:       0.85,
		MaxEntitiesPerNewsletter:  100,
		PipelineTimeout:           30 * time.Second,
		MaxRetries:                2,
	}
}

func testPipeline(store *fakeStore, extractor *fakeExtractor, cfg config.Config) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, extractor, cfg, metrics.NewCollector(), logger)
}

func testNewsletter() models.Newsletter {
	return models.Newsletter{
		ID:           "tldr_2026_08_12",
		Subject:      "TLDR AI",
		Sender:       "dan@tldr.tech",
		ReceivedDate: time.Date(2026, 8, 12, 9, 0, 0, 0, time.UTC),
	}
}

func TestProcessNewsletter_Success(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.95, ContextSnippet: "OpenAI announced"},
			{Name: "Sam Altman", Type: models.TypePerson, Confidence: 0.9},
		},
		facts: []models.CandidateFact{
			{SubjectMention: "Sam Altman", Predicate: "WORKS_AT", ObjectMention: "OpenAI", Confidence: 0.9},
		},
	}

	p := testPipeline(store, extractor, testConfig())
	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "OpenAI announced a new model. Sam Altman commented.")
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 2, result.EntitiesNew)
	assert.Equal(t, 0, result.EntitiesUpdated)
	assert.Equal(t, 1, result.FactsNew)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.EntitySummary[models.TypeOrganization])
	assert.Equal(t, 1, result.EntitySummary[models.TypePerson])
	assert.NotEmpty(t, result.TextSummary)
	assert.True(t, store.newsletters["tldr_2026_08_12"])
	assert.Len(t, store.mentions, 2)
}

func TestProcessNewsletter_Reprocessing_Idempotent(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.95},
		},
		facts: []models.CandidateFact{
			{SubjectMention: "OpenAI", Predicate: "ANNOUNCED", ObjectMention: "OpenAI", Confidence: 0.9},
		},
	}
	p := testPipeline(store, extractor, testConfig())

	first, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "OpenAI announced.")
	require.NoError(t, err)
	assert.Equal(t, 1, first.EntitiesNew)
	assert.Equal(t, 1, first.FactsNew)

	second, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "OpenAI announced.")
	require.NoError(t, err)

	assert.Equal(t, 0, second.EntitiesNew)
	assert.Equal(t, 1, second.EntitiesUpdated)
	assert.Equal(t, 0, second.FactsNew, "same fact from same newsletter must not duplicate")
	assert.Len(t, store.entities, 1, "reprocessing must not create duplicate nodes")
	assert.Len(t, store.facts, 1)
}

func TestProcessNewsletter_AliasAccumulation(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.9},
		},
	}
	p := testPipeline(store, extractor, testConfig())

	_, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "OpenAI shipped.")
	require.NoError(t, err)

	// Same organization under a spaced variant resolves to the existing
	// node via fuzzy match and records the variant as an alias.
	extractor.entities = []models.CandidateEntity{
		{Name: "Open AI", Type: models.TypeOrganization, Confidence: 0.85},
	}
	second := testNewsletter()
	second.ID = "tldr_2026_08_13"
	result, err := p.ProcessNewsletter(context.Background(), second, "Open AI shipped again.")
	require.NoError(t, err)

	assert.Equal(t, 0, result.EntitiesNew)
	assert.Equal(t, 1, result.EntitiesUpdated)
	require.Len(t, store.entities, 1)
	for _, e := range store.entities {
		assert.Equal(t, "OpenAI", e.CanonicalName)
		assert.Contains(t, e.AliasKeys, "open ai")
		assert.Equal(t, 0.9, e.Confidence, "confidence never decreases")
	}
}

func TestProcessNewsletter_ConfidenceDominance(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.75},
		},
	}
	p := testPipeline(store, extractor, testConfig())

	_, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	extractor.entities[0].Confidence = 0.95
	second := testNewsletter()
	second.ID = "n2"
	_, err = p.ProcessNewsletter(context.Background(), second, "body")
	require.NoError(t, err)

	for _, e := range store.entities {
		assert.Equal(t, 0.95, e.Confidence)
	}
}

func TestProcessNewsletter_ThresholdSkips(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.71},
			{Name: "Maybe Corp", Type: models.TypeOrganization, Confidence: 0.65},
			{Name: "", Type: models.TypeOrganization, Confidence: 0.9},
			{Name: "Mystery", Type: models.EntityType("Alien"), Confidence: 0.9},
		},
		facts: []models.CandidateFact{
			{SubjectMention: "OpenAI", Predicate: "ANNOUNCED", ObjectMention: "OpenAI", Confidence: 0.79},
		},
	}
	p := testPipeline(store, extractor, testConfig())

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	assert.Equal(t, 1, result.EntitiesNew)
	assert.Equal(t, 3, result.EntitiesSkipped)
	assert.Equal(t, 0, result.FactsNew, "fact below 0.8 threshold is skipped")
	assert.Equal(t, 1, result.FactsSkipped)
	assert.Len(t, store.entities, 1)
}

func TestProcessNewsletter_ClampedConfidenceWarns(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 1.7},
		},
	}
	p := testPipeline(store, extractor, testConfig())

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	// Out-of-range confidence is clamped and reported, not rejected.
	assert.Equal(t, 1, result.EntitiesNew)
	assert.Equal(t, models.StatusPartial, result.Status)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "clamped")
	for _, e := range store.entities {
		assert.Equal(t, 1.0, e.Confidence)
	}
}

func TestProcessNewsletter_DanglingFactSkipped(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.9},
		},
		facts: []models.CandidateFact{
			{SubjectMention: "OpenAI", Predicate: "ACQUIRED", ObjectMention: "Ghost Startup", Confidence: 0.9},
		},
	}
	p := testPipeline(store, extractor, testConfig())

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	assert.Equal(t, 0, result.FactsNew)
	assert.Equal(t, 1, result.FactsSkipped)
	assert.Empty(t, store.facts, "fact must never reference an unresolved entity")
}

func TestProcessNewsletter_FactStageFailure_Partial(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.9},
		},
		factErr: llm.ErrMalformedOutput,
	}
	p := testPipeline(store, extractor, testConfig())

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	// Entity work is committed; a broken fact stage degrades instead of
	// discarding it.
	assert.Equal(t, models.StatusPartial, result.Status)
	assert.Equal(t, 1, result.EntitiesNew)
	assert.Equal(t, 0, result.FactsNew)
	assert.NotEmpty(t, result.Errors)
	assert.Len(t, store.entities, 1)
}

func TestProcessNewsletter_FatalAPIError_Failed(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{entityErr: llm.ErrFatalAPI}
	p := testPipeline(store, extractor, testConfig())

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.NotEmpty(t, result.Errors)
	assert.Equal(t, 1, extractor.entityCalls, "fatal errors must not be retried")
	assert.Empty(t, store.entities)
}

func TestProcessNewsletter_FatalDuringFacts_PartialNotFailed(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.9},
		},
		factErr: llm.ErrFatalAPI,
	}
	p := testPipeline(store, extractor, testConfig())

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	// The run aborts, but entities already persisted make it partial.
	assert.Equal(t, models.StatusPartial, result.Status)
	assert.Equal(t, 1, result.EntitiesNew)
	assert.Len(t, store.entities, 1)
}

func TestProcessNewsletter_TransientRetrySucceeds(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entityFailures: 2,
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.9},
		},
	}
	p := testPipeline(store, extractor, testConfig())

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 3, extractor.entityCalls)
	assert.Equal(t, 1, result.EntitiesNew)
}

func TestProcessNewsletter_EmptyBody_Failed(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{}
	p := testPipeline(store, extractor, testConfig())

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "   \n  ")
	require.NoError(t, err)

	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, 0, extractor.entityCalls)
	assert.Empty(t, store.newsletters)
}

func TestProcessNewsletter_MissingID_Error(t *testing.T) {
	p := testPipeline(newFakeStore(), &fakeExtractor{}, testConfig())

	_, err := p.ProcessNewsletter(context.Background(), models.Newsletter{}, "body")
	require.Error(t, err)
}

func TestProcessNewsletter_EntityCap(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEntitiesPerNewsletter = 2

	candidates := []models.CandidateEntity{
		{Name: "Alpha", Type: models.TypeOrganization, Confidence: 0.95},
		{Name: "Bravo", Type: models.TypeOrganization, Confidence: 0.9},
		{Name: "Charlie", Type: models.TypeOrganization, Confidence: 0.85},
		{Name: "Delta", Type: models.TypeOrganization, Confidence: 0.8},
	}
	store := newFakeStore()
	p := testPipeline(store, &fakeExtractor{entities: candidates}, cfg)

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	assert.Equal(t, 2, result.EntitiesNew)
	assert.Equal(t, 2, result.EntitiesSkipped)
	assert.Equal(t, models.StatusPartial, result.Status)
	// Highest-confidence candidates survive the cap.
	_, hasAlpha := store.entities["Organization_alpha"]
	_, hasBravo := store.entities["Organization_bravo"]
	assert.True(t, hasAlpha)
	assert.True(t, hasBravo)
}

func TestProcessNewsletter_NoEntities_SkipsFactExtraction(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{}
	p := testPipeline(store, extractor, testConfig())

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "nothing of note here")
	require.NoError(t, err)

	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, 0, extractor.factCalls)
}

func TestProcessNewsletter_Timeout_Partial(t *testing.T) {
	cfg := testConfig()
	cfg.PipelineTimeout = time.Nanosecond

	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.9},
		},
	}
	p := testPipeline(store, extractor, cfg)

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	// Deadline before any persistence: nothing committed, run failed.
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.NotEmpty(t, result.Errors)
}

func TestProcessNewsletter_PredicateNormalized(t *testing.T) {
	store := newFakeStore()
	extractor := &fakeExtractor{
		entities: []models.CandidateEntity{
			{Name: "OpenAI", Type: models.TypeOrganization, Confidence: 0.9},
			{Name: "Anthropic", Type: models.TypeOrganization, Confidence: 0.9},
		},
		facts: []models.CandidateFact{
			{SubjectMention: "OpenAI", Predicate: " partnered_with ", ObjectMention: "Anthropic", Confidence: 0.9},
		},
	}
	p := testPipeline(store, extractor, testConfig())

	result, err := p.ProcessNewsletter(context.Background(), testNewsletter(), "body")
	require.NoError(t, err)

	assert.Equal(t, 1, result.FactsNew)
	assert.True(t, store.facts["Organization_openai|PARTNERED_WITH|Organization_anthropic|tldr_2026_08_12"],
		"predicate is upper-cased and trimmed")
}
