package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/arrgh-go/internal/models"
)

// fuzzyScanLimit bounds how many stored entities of one type are pulled
// into memory for similarity comparison.
const fuzzyScanLimit = 500

// EntityResolver maps candidate entity mentions onto canonical graph
// nodes. Matching runs in three tiers: exact canonical key, alias key,
// then fuzzy similarity against stored entities of the same type. A
// mention that matches nothing becomes a new node through the store's
// atomic find-or-create.
type EntityResolver struct {
	store               GraphStore
	confidenceThreshold float64
	similarityThreshold float64
	logger              *slog.Logger
}

func NewEntityResolver(store GraphStore, confidenceThreshold, similarityThreshold float64, logger *slog.Logger) *EntityResolver {
	return &EntityResolver{
		store:               store,
		confidenceThreshold: confidenceThreshold,
		similarityThreshold: similarityThreshold,
		logger:              logger,
	}
}

// Resolution is the outcome of resolving one candidate mention.
type Resolution struct {
	Entity   *models.ResolvedEntity
	Skipped  bool
	Reason   string
	Warnings []string
}

// Resolve maps one candidate mention to a graph entity. Data-quality
// problems never return an error: the candidate is skipped with a reason,
// and the run continues. Errors are reserved for store failures.
func (r *EntityResolver) Resolve(ctx context.Context, candidate models.CandidateEntity) (Resolution, error) {
	var warnings []string

	if candidate.Name == "" {
		return Resolution{Skipped: true, Reason: "missing entity name"}, nil
	}
	if !models.ValidEntityType(candidate.Type) {
		return Resolution{Skipped: true, Reason: fmt.Sprintf("unknown entity type %q for %q", candidate.Type, candidate.Name)}, nil
	}

	confidence := candidate.Confidence
	if confidence < 0 || confidence > 1 {
		warnings = append(warnings, fmt.Sprintf("confidence %.2f for %q out of range, clamped", confidence, candidate.Name))
		confidence = clamp01(confidence)
	}
	if confidence < r.confidenceThreshold {
		return Resolution{
			Skipped:  true,
			Reason:   fmt.Sprintf("confidence %.2f below threshold %.2f for %q", confidence, r.confidenceThreshold, candidate.Name),
			Warnings: warnings,
		}, nil
	}

	key := NameKey(candidate.Name)
	if key == "" {
		return Resolution{Skipped: true, Reason: fmt.Sprintf("name %q normalizes to empty key", candidate.Name), Warnings: warnings}, nil
	}

	match, err := r.store.MatchEntity(ctx, candidate.Type, key)
	if err != nil {
		return Resolution{}, fmt.Errorf("match %q: %w", candidate.Name, err)
	}
	if match == nil {
		match, err = r.fuzzyMatch(ctx, candidate.Type, key)
		if err != nil {
			return Resolution{}, fmt.Errorf("fuzzy match %q: %w", candidate.Name, err)
		}
	}

	if match != nil {
		resolved, err := r.attach(ctx, match, candidate.Name, key, confidence)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Entity: resolved, Warnings: warnings}, nil
	}

	entity, created, err := r.store.FindOrCreateEntity(ctx, candidate.Type, candidate.Name, key, confidence)
	if err != nil {
		return Resolution{}, fmt.Errorf("create %q: %w", candidate.Name, err)
	}

	r.logger.Debug("entity resolved",
		slog.String("name", candidate.Name),
		slog.String("type", string(candidate.Type)),
		slog.Bool("created", created))

	return Resolution{
		Entity: &models.ResolvedEntity{
			ID:            models.MustRecordIDString(entity.ID),
			Type:          entity.Type,
			CanonicalName: entity.CanonicalName,
			Mention:       candidate.Name,
			Confidence:    entity.Confidence,
			Created:       created,
		},
		Warnings: warnings,
	}, nil
}

// fuzzyMatch scans stored entities of the same type and returns the most
// similar one at or above the similarity threshold, or nil.
func (r *EntityResolver) fuzzyMatch(ctx context.Context, typ models.EntityType, key string) (*models.Entity, error) {
	entities, err := r.store.EntitiesByType(ctx, typ, fuzzyScanLimit)
	if err != nil {
		return nil, err
	}

	var best *models.Entity
	bestScore := r.similarityThreshold
	for i := range entities {
		score := Similarity(key, entities[i].NameKey)
		for _, aliasKey := range entities[i].AliasKeys {
			if s := Similarity(key, aliasKey); s > score {
				score = s
			}
		}
		if score >= bestScore {
			best = &entities[i]
			bestScore = score
		}
	}
	return best, nil
}

// attach records a mention on an existing entity. The mention text is
// appended as an alias when its key differs from the canonical key, and
// confidence follows the dominance rule.
func (r *EntityResolver) attach(ctx context.Context, match *models.Entity, mention, key string, confidence float64) (*models.ResolvedEntity, error) {
	id := models.MustRecordIDString(match.ID)

	var alias, aliasKey *string
	if key != match.NameKey {
		alias, aliasKey = &mention, &key
	}

	updated, err := r.store.UpdateEntity(ctx, id, alias, aliasKey, confidence)
	if err != nil {
		return nil, fmt.Errorf("update %q: %w", match.CanonicalName, err)
	}

	r.logger.Debug("entity matched",
		slog.String("mention", mention),
		slog.String("canonical", updated.CanonicalName),
		slog.String("type", string(updated.Type)))

	return &models.ResolvedEntity{
		ID:            id,
		Type:          updated.Type,
		CanonicalName: updated.CanonicalName,
		Mention:       mention,
		Confidence:    updated.Confidence,
		Created:       false,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
