package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/arrgh-go/internal/models"
)

func testResolver(store *fakeStore) *EntityResolver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEntityResolver(store, 0.7, 0.85, logger)
}

func seedEntity(t *testing.T, store *fakeStore, typ models.EntityType, name string) {
	t.Helper()
	_, _, err := store.FindOrCreateEntity(context.Background(), typ, name, NameKey(name), 0.9)
	require.NoError(t, err)
}

func TestEntityResolver_ExactMatch(t *testing.T) {
	store := newFakeStore()
	seedEntity(t, store, models.TypeOrganization, "OpenAI")

	res, err := testResolver(store).Resolve(context.Background(), models.CandidateEntity{
		Name: "openai", Type: models.TypeOrganization, Confidence: 0.8,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Entity)
	assert.False(t, res.Entity.Created)
	assert.Equal(t, "OpenAI", res.Entity.CanonicalName)
	assert.Len(t, store.entities, 1)
}

func TestEntityResolver_FuzzyPicksMostSimilar(t *testing.T) {
	store := newFakeStore()
	seedEntity(t, store, models.TypeOrganization, "Anthropic")
	seedEntity(t, store, models.TypeOrganization, "Anthropos Labs")

	res, err := testResolver(store).Resolve(context.Background(), models.CandidateEntity{
		Name: "Antropic", Type: models.TypeOrganization, Confidence: 0.9,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Entity)
	assert.False(t, res.Entity.Created)
	assert.Equal(t, "Anthropic", res.Entity.CanonicalName)
}

func TestEntityResolver_BelowSimilarityCreatesNew(t *testing.T) {
	store := newFakeStore()
	seedEntity(t, store, models.TypeOrganization, "OpenAI")

	res, err := testResolver(store).Resolve(context.Background(), models.CandidateEntity{
		Name: "Microsoft", Type: models.TypeOrganization, Confidence: 0.9,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Entity)
	assert.True(t, res.Entity.Created)
	assert.Len(t, store.entities, 2)
}

func TestEntityResolver_TypeScopesMatching(t *testing.T) {
	store := newFakeStore()
	seedEntity(t, store, models.TypeOrganization, "Mercury")

	// Same surface form, different type: a new node, never a cross-type merge.
	res, err := testResolver(store).Resolve(context.Background(), models.CandidateEntity{
		Name: "Mercury", Type: models.TypeTopic, Confidence: 0.9,
	})
	require.NoError(t, err)

	require.NotNil(t, res.Entity)
	assert.True(t, res.Entity.Created)
	assert.Len(t, store.entities, 2)
}

func TestEntityResolver_SuffixVariantsShareIdentity(t *testing.T) {
	store := newFakeStore()

	first, err := testResolver(store).Resolve(context.Background(), models.CandidateEntity{
		Name: "Acme Inc.", Type: models.TypeOrganization, Confidence: 0.9,
	})
	require.NoError(t, err)
	require.True(t, first.Entity.Created)

	second, err := testResolver(store).Resolve(context.Background(), models.CandidateEntity{
		Name: "Acme", Type: models.TypeOrganization, Confidence: 0.8,
	})
	require.NoError(t, err)

	assert.False(t, second.Entity.Created)
	assert.Equal(t, first.Entity.ID, second.Entity.ID)
	assert.Len(t, store.entities, 1)
}
