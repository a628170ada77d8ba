package db

import (
	"context"

	"github.com/raphaelgruber/arrgh-go/internal/models"
)

// The methods below give Client a store-shaped surface without leaking the
// Query naming into callers. They are thin on purpose; all SurrealQL lives
// in queries.go.

func (c *Client) FindOrCreateEntity(ctx context.Context, typ models.EntityType, canonicalName, nameKey string, confidence float64) (*models.Entity, bool, error) {
	return c.QueryFindOrCreateEntity(ctx, typ, canonicalName, nameKey, confidence)
}

func (c *Client) MatchEntity(ctx context.Context, typ models.EntityType, key string) (*models.Entity, error) {
	return c.QueryMatchEntity(ctx, typ, key)
}

func (c *Client) EntitiesByType(ctx context.Context, typ models.EntityType, limit int) ([]models.Entity, error) {
	return c.QueryEntitiesByType(ctx, typ, limit)
}

func (c *Client) UpdateEntity(ctx context.Context, id string, alias, aliasKey *string, confidence float64) (*models.Entity, error) {
	return c.QueryUpdateEntity(ctx, id, alias, aliasKey, confidence)
}

func (c *Client) CreateNewsletter(ctx context.Context, n models.Newsletter, contentLength int) error {
	return c.QueryCreateNewsletter(ctx, n, contentLength)
}

func (c *Client) CreateFactIfAbsent(ctx context.Context, subjectID, predicate, objectID, sourceNewsletterID string, confidence float64, temporalContext *string) (bool, error) {
	return c.QueryCreateFactIfAbsent(ctx, subjectID, predicate, objectID, sourceNewsletterID, confidence, temporalContext)
}

func (c *Client) LinkMention(ctx context.Context, entityID, newsletterID, contextSnippet string, confidence float64) error {
	return c.QueryLinkMention(ctx, entityID, newsletterID, contextSnippet, confidence)
}

func (c *Client) Retryable(err error) bool {
	return IsRetryable(err)
}
