package pipeline

import (
	"context"

	"github.com/raphaelgruber/arrgh-go/internal/models"
)

// GraphStore is the narrow transactional interface the pipeline requires
// from the graph database. Cross-run mutual exclusion for entity identity
// lives entirely behind FindOrCreateEntity; the pipeline never does
// check-then-write across two round trips.
type GraphStore interface {
	// FindOrCreateEntity atomically finds or creates the entity for
	// (typ, nameKey) as a single transactional unit. The bool reports
	// whether the node was created by this call.
	FindOrCreateEntity(ctx context.Context, typ models.EntityType, canonicalName, nameKey string, confidence float64) (*models.Entity, bool, error)

	// MatchEntity returns the entity of typ whose canonical or alias key
	// equals key, or nil.
	MatchEntity(ctx context.Context, typ models.EntityType, key string) (*models.Entity, error)

	// EntitiesByType lists entities of one type for fuzzy comparison.
	EntitiesByType(ctx context.Context, typ models.EntityType, limit int) ([]models.Entity, error)

	// UpdateEntity records a new mention: optional alias append,
	// dominance-rule confidence update, last_updated bump.
	UpdateEntity(ctx context.Context, id string, alias, aliasKey *string, confidence float64) (*models.Entity, error)

	// CreateNewsletter upserts the provenance node for a run's newsletter.
	CreateNewsletter(ctx context.Context, n models.Newsletter, contentLength int) error

	// CreateFactIfAbsent writes a fact edge keyed by
	// (subject, predicate, object, source). False means already recorded.
	CreateFactIfAbsent(ctx context.Context, subjectID, predicate, objectID, sourceNewsletterID string, confidence float64, temporalContext *string) (bool, error)

	// LinkMention links an entity to the newsletter it was mentioned in.
	LinkMention(ctx context.Context, entityID, newsletterID, contextSnippet string, confidence float64) error

	// Retryable reports whether a store error is transient.
	Retryable(err error) bool
}

// Extractor is the LLM-backed extraction capability. Both calls block on
// a remote service; they are the pipeline's only suspension points besides
// graph writes.
type Extractor interface {
	ExtractEntities(ctx context.Context, text string) ([]models.CandidateEntity, error)
	ExtractFacts(ctx context.Context, text string, entityMentions []string) ([]models.CandidateFact, error)
}
