// Package db provides SurrealDB query functions for graph operations.
package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/raphaelgruber/arrgh-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// EntitySlug derives the deterministic record id for an entity identity.
// Identical (type, nameKey) pairs always map to the same record, which is
// what makes the record-level UPSERT an atomic find-or-create.
func EntitySlug(typ models.EntityType, nameKey string) string {
	key := slugUnsafe.ReplaceAllString(strings.ToLower(string(typ))+"_"+nameKey, "_")
	return strings.Trim(key, "_")
}

// QueryFindOrCreateEntity creates the entity for (typ, nameKey) if it does
// not exist, or bumps the existing one. Issued as a single UPSERT on the
// deterministic record id, so two concurrent runs submitting the same new
// identity converge on one node; the loser of the race observes
// created=false.
func (c *Client) QueryFindOrCreateEntity(
	ctx context.Context,
	typ models.EntityType,
	canonicalName string,
	nameKey string,
	confidence float64,
) (*models.Entity, bool, error) {
	sql := `
		UPSERT type::record("entity", $id) SET
			type = $type,
			canonical_name = canonical_name ?? $name,
			name_key = $key,
			aliases = aliases ?? [],
			alias_keys = alias_keys ?? [],
			confidence = math::max(confidence ?? 0.0, $confidence),
			mention_count = (mention_count ?? 0) + 1,
			first_seen = first_seen ?? time::now(),
			last_updated = time::now()
		RETURN AFTER
	`

	results, err := surrealdb.Query[[]models.Entity](ctx, c.db, sql, map[string]any{
		"id":         EntitySlug(typ, nameKey),
		"type":       string(typ),
		"name":       canonicalName,
		"key":        nameKey,
		"confidence": confidence,
	})
	if err != nil {
		return nil, false, fmt.Errorf("find or create entity: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, false, fmt.Errorf("find or create entity: no result returned")
	}

	entity := (*results)[0].Result[0]
	return &entity, entity.MentionCount == 1, nil
}

// QueryMatchEntity returns the entity of the given type whose canonical
// name key or any alias key equals key. Returns nil when nothing matches.
func (c *Client) QueryMatchEntity(ctx context.Context, typ models.EntityType, key string) (*models.Entity, error) {
	results, err := surrealdb.Query[[]models.Entity](ctx, c.db, `
		SELECT * FROM entity
		WHERE type = $type AND (name_key = $key OR alias_keys CONTAINS $key)
		LIMIT 1
	`, map[string]any{"type": string(typ), "key": key})
	if err != nil {
		return nil, fmt.Errorf("match entity: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// QueryEntitiesByType lists entities of one type for in-memory fuzzy
// comparison. Most recently updated first so active entities are always
// inside the limit window.
func (c *Client) QueryEntitiesByType(ctx context.Context, typ models.EntityType, limit int) ([]models.Entity, error) {
	results, err := surrealdb.Query[[]models.Entity](ctx, c.db, `
		SELECT * FROM entity WHERE type = $type ORDER BY last_updated DESC LIMIT $limit
	`, map[string]any{"type": string(typ), "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("entities by type: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Entity{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryUpdateEntity records a new mention of an existing entity: appends
// the alias (display form plus normalized key) when unseen, raises
// confidence under the dominance rule (never decreases), and bumps
// mention_count and last_updated.
func (c *Client) QueryUpdateEntity(
	ctx context.Context,
	id string,
	alias *string,
	aliasKey *string,
	confidence float64,
) (*models.Entity, error) {
	aliases := []string{}
	aliasKeys := []string{}
	if alias != nil {
		aliases = append(aliases, *alias)
	}
	if aliasKey != nil {
		aliasKeys = append(aliasKeys, *aliasKey)
	}

	sql := `
		UPDATE type::record("entity", $id) SET
			aliases = array::union(aliases, $aliases),
			alias_keys = array::union(alias_keys, $alias_keys),
			confidence = math::max(confidence, $confidence),
			mention_count += 1,
			last_updated = time::now()
		RETURN AFTER
	`

	results, err := surrealdb.Query[[]models.Entity](ctx, c.db, sql, map[string]any{
		"id":         id,
		"aliases":    aliases,
		"alias_keys": aliasKeys,
		"confidence": confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("update entity: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("update entity %s: %w", id, ErrNotFound)
	}
	return &(*results)[0].Result[0], nil
}

// QueryCreateNewsletter upserts the provenance node for a processed
// newsletter. Reprocessing the same newsletter id is idempotent.
func (c *Client) QueryCreateNewsletter(ctx context.Context, n models.Newsletter, contentLength int) error {
	sql := `
		UPSERT type::record("newsletter", $id) SET
			subject = $subject,
			sender = $sender,
			received_date = <datetime>$received,
			content_length = $length,
			processed_at = time::now()
	`

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":       n.ID,
		"subject":  n.Subject,
		"sender":   n.Sender,
		"received": n.ReceivedDate.UTC().Format(time.RFC3339),
		"length":   contentLength,
	})
	if err != nil {
		return fmt.Errorf("create newsletter: %w", wrapQueryError(err))
	}
	return nil
}

// QueryCreateFactIfAbsent writes a directed fact edge keyed by
// (subject, predicate, object, source newsletter). Returns created=false
// when the identical tuple was already recorded.
func (c *Client) QueryCreateFactIfAbsent(
	ctx context.Context,
	subjectID string,
	predicate string,
	objectID string,
	sourceNewsletterID string,
	confidence float64,
	temporalContext *string,
) (bool, error) {
	sql := `
		RELATE type::record("entity", $subject)->fact->type::record("entity", $object) SET
			predicate = $predicate,
			confidence = $confidence,
			source_newsletter = $source,
			temporal_context = $temporal,
			observed_at = time::now()
	`

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"subject":   subjectID,
		"object":    objectID,
		"predicate": predicate,
		"confidence": confidence,
		"source":    sourceNewsletterID,
		"temporal":  temporalContext,
	})
	if err != nil {
		wrapped := wrapQueryError(err)
		if errors.Is(wrapped, ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("create fact: %w", wrapped)
	}
	return true, nil
}

// QueryLinkMention records that an entity was mentioned in a newsletter,
// carrying the context snippet. Duplicate links are ignored.
func (c *Client) QueryLinkMention(
	ctx context.Context,
	entityID string,
	newsletterID string,
	contextSnippet string,
	confidence float64,
) error {
	sql := `
		RELATE type::record("entity", $entity)->mentioned_in->type::record("newsletter", $newsletter) SET
			context = $context,
			confidence = $confidence
	`

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"entity":     entityID,
		"newsletter": newsletterID,
		"context":    contextSnippet,
		"confidence": confidence,
	})
	if err != nil {
		wrapped := wrapQueryError(err)
		if errors.Is(wrapped, ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("link mention: %w", wrapped)
	}
	return nil
}

// QueryGetEntity retrieves an entity by record id. Returns nil if not found.
func (c *Client) QueryGetEntity(ctx context.Context, id string) (*models.Entity, error) {
	results, err := surrealdb.Query[[]models.Entity](ctx, c.db, `
		SELECT * FROM type::record("entity", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

type typeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type tableCount struct {
	Count int `json:"count"`
}

// QueryGraphStats returns node and relationship counts for the whole graph.
func (c *Client) QueryGraphStats(ctx context.Context) (*models.GraphStats, error) {
	stats := &models.GraphStats{Entities: map[models.EntityType]int{}}

	typeResults, err := surrealdb.Query[[]typeCount](ctx, c.db, `
		SELECT type, count() AS count FROM entity GROUP BY type
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("graph stats: %w", wrapQueryError(err))
	}
	if typeResults != nil && len(*typeResults) > 0 {
		for _, tc := range (*typeResults)[0].Result {
			stats.Entities[models.EntityType(tc.Type)] = tc.Count
			stats.TotalEntities += tc.Count
		}
	}

	for table, dst := range map[string]*int{
		"newsletter":   &stats.Newsletters,
		"fact":         &stats.Facts,
		"mentioned_in": &stats.Mentions,
	} {
		results, err := surrealdb.Query[[]tableCount](ctx, c.db,
			fmt.Sprintf("SELECT count() AS count FROM %s GROUP ALL", table), nil)
		if err != nil {
			return nil, fmt.Errorf("graph stats %s: %w", table, wrapQueryError(err))
		}
		if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
			*dst = (*results)[0].Result[0].Count
		}
	}

	return stats, nil
}
