package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/arrgh-go/internal/models"
)

// FactResolver turns candidate facts into graph edges. Subject and object
// mentions must resolve through the run's entity index; a fact may never
// create or reference an entity the entity stage did not resolve.
type FactResolver struct {
	store               GraphStore
	confidenceThreshold float64
	logger              *slog.Logger
}

func NewFactResolver(store GraphStore, confidenceThreshold float64, logger *slog.Logger) *FactResolver {
	return &FactResolver{store: store, confidenceThreshold: confidenceThreshold, logger: logger}
}

// Resolve writes one candidate fact to the graph, or skips it with a
// reason. As with entities, data-quality problems skip rather than fail;
// only store errors surface as errors.
func (r *FactResolver) Resolve(ctx context.Context, candidate models.CandidateFact, index *entityIndex, sourceNewsletterID string) (Resolution, *models.ResolvedFact, error) {
	var warnings []string

	if candidate.SubjectMention == "" || candidate.ObjectMention == "" || candidate.Predicate == "" {
		return Resolution{Skipped: true, Reason: "fact missing subject, predicate or object"}, nil, nil
	}

	confidence := candidate.Confidence
	if confidence < 0 || confidence > 1 {
		warnings = append(warnings, fmt.Sprintf("confidence %.2f for fact %q out of range, clamped", confidence, candidate.Predicate))
		confidence = clamp01(confidence)
	}
	if confidence < r.confidenceThreshold {
		return Resolution{
			Skipped:  true,
			Reason:   fmt.Sprintf("confidence %.2f below threshold %.2f for fact %s", confidence, r.confidenceThreshold, describeFact(candidate)),
			Warnings: warnings,
		}, nil, nil
	}

	subject := index.lookup(candidate.SubjectMention)
	if subject == nil {
		return Resolution{
			Skipped:  true,
			Reason:   fmt.Sprintf("subject %q of fact %s did not resolve to an entity", candidate.SubjectMention, describeFact(candidate)),
			Warnings: warnings,
		}, nil, nil
	}
	object := index.lookup(candidate.ObjectMention)
	if object == nil {
		return Resolution{
			Skipped:  true,
			Reason:   fmt.Sprintf("object %q of fact %s did not resolve to an entity", candidate.ObjectMention, describeFact(candidate)),
			Warnings: warnings,
		}, nil, nil
	}

	predicate := strings.ToUpper(strings.TrimSpace(candidate.Predicate))

	var temporal *string
	if candidate.TemporalContext != "" {
		temporal = &candidate.TemporalContext
	}

	created, err := r.store.CreateFactIfAbsent(ctx, subject.ID, predicate, object.ID, sourceNewsletterID, confidence, temporal)
	if err != nil {
		return Resolution{}, nil, fmt.Errorf("persist fact %s: %w", describeFact(candidate), err)
	}

	r.logger.Debug("fact resolved",
		slog.String("subject", subject.CanonicalName),
		slog.String("predicate", predicate),
		slog.String("object", object.CanonicalName),
		slog.Bool("created", created))

	return Resolution{Warnings: warnings}, &models.ResolvedFact{
		SubjectID:       subject.ID,
		Predicate:       predicate,
		ObjectID:        object.ID,
		Confidence:      confidence,
		TemporalContext: candidate.TemporalContext,
		Created:         created,
	}, nil
}

func describeFact(f models.CandidateFact) string {
	return fmt.Sprintf("(%s)-[%s]->(%s)", f.SubjectMention, f.Predicate, f.ObjectMention)
}
