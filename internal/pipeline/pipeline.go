// Package pipeline implements the newsletter processing state machine:
// normalization, LLM extraction, entity and fact resolution against the
// knowledge graph, and run summarization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/raphaelgruber/arrgh-go/internal/config"
	"github.com/raphaelgruber/arrgh-go/internal/llm"
	"github.com/raphaelgruber/arrgh-go/internal/metrics"
	"github.com/raphaelgruber/arrgh-go/internal/models"
)

// abortError marks errors that terminate the run. Everything else recorded
// during a stage degrades the run to partial at worst.
type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

func abort(format string, args ...any) error {
	return &abortError{err: fmt.Errorf(format, args...)}
}

// Pipeline runs newsletters through extraction and resolution. One
// Pipeline is safe for concurrent use; all per-run state lives in the
// ProcessingContext.
type Pipeline struct {
	store     GraphStore
	extractor Extractor
	entities  *EntityResolver
	facts     *FactResolver
	cfg       config.Config
	metrics   *metrics.Collector
	logger    *slog.Logger
}

func New(store GraphStore, extractor Extractor, cfg config.Config, collector *metrics.Collector, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		extractor: extractor,
		entities:  NewEntityResolver(store, cfg.EntityConfidenceThreshold, cfg.SimilarityThreshold, logger),
		facts:     NewFactResolver(store, cfg.FactConfidenceThreshold, logger),
		cfg:       cfg,
		metrics:   collector,
		logger:    logger,
	}
}

// ProcessNewsletter runs one newsletter through the full pipeline and
// returns the run outcome. The result is always non-nil; failures are
// reported through its Status and Errors, never through the error return,
// which is reserved for programming mistakes like an empty newsletter id.
func (p *Pipeline) ProcessNewsletter(ctx context.Context, newsletter models.Newsletter, text string) (*models.RunResult, error) {
	if newsletter.ID == "" {
		return nil, errors.New("newsletter id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PipelineTimeout)
	defer cancel()

	pc := newProcessingContext(text, newsletter)
	runID := uuid.New().String()[:8] // Short ID for convenience
	logger := p.logger.With(
		slog.String("newsletter", newsletter.ID),
		slog.String("run", runID))
	start := time.Now()

	stages := []struct {
		name string
		next State
		run  func(context.Context, *ProcessingContext, *slog.Logger) error
	}{
		{metrics.OpNormalize, StateNormalized, p.normalize},
		{metrics.OpExtractEntities, StateEntitiesExtracted, p.extractEntities},
		{metrics.OpResolveEntities, StateEntitiesResolved, p.resolveEntities},
		{metrics.OpExtractFacts, StateFactsExtracted, p.extractFacts},
		{metrics.OpResolveFacts, StateFactsResolved, p.resolveFacts},
		{metrics.OpSummarize, StateSummarized, p.summarize},
	}

	var aborted *abortError
	for _, stage := range stages {
		stageStart := time.Now()
		err := stage.run(ctx, pc, logger)
		p.metrics.RecordTiming(stage.name, time.Since(stageStart))

		if err != nil {
			p.metrics.RecordFailure(stage.name)
			if errors.As(err, &aborted) {
				pc.AddError("%s: %s", stage.name, aborted.err)
				pc.state = StateFailed
				logger.Error("pipeline aborted",
					slog.String("stage", stage.name),
					slog.Any("error", aborted.err))
				break
			}
			// Degraded stage: record and keep going.
			pc.AddError("%s: %s", stage.name, err)
			logger.Warn("stage degraded",
				slog.String("stage", stage.name),
				slog.Any("error", err))
		}
		pc.state = stage.next
	}
	if pc.state == StateSummarized {
		pc.state = StateDone
	}

	result := p.buildResult(pc, time.Since(start))
	p.metrics.RecordTiming(metrics.OpNewsletter, result.ProcessingTime)

	logger.Info("newsletter processed",
		slog.String("status", string(result.Status)),
		slog.Int("entities_new", result.EntitiesNew),
		slog.Int("entities_updated", result.EntitiesUpdated),
		slog.Int("facts_new", result.FactsNew),
		slog.Int("errors", len(result.Errors)),
		slog.Duration("took", result.ProcessingTime))

	return result, nil
}

// normalize trims and validates the input text. An empty newsletter body
// is a fatal input problem, not a degraded run.
func (p *Pipeline) normalize(_ context.Context, pc *ProcessingContext, _ *slog.Logger) error {
	pc.Text = strings.TrimSpace(pc.Text)
	if pc.Text == "" {
		return abort("newsletter body is empty")
	}
	return nil
}

func (p *Pipeline) extractEntities(ctx context.Context, pc *ProcessingContext, logger *slog.Logger) error {
	var candidates []models.CandidateEntity
	err := p.withRetry(ctx, llm.IsTransient, func() error {
		var err error
		candidates, err = p.extractor.ExtractEntities(ctx, pc.Text)
		return err
	})
	if err != nil {
		// Without entities nothing downstream can run.
		return abort("entity extraction: %w", err)
	}

	pc.Candidates = candidates
	logger.Debug("entities extracted", slog.Int("count", len(candidates)))
	return nil
}

func (p *Pipeline) resolveEntities(ctx context.Context, pc *ProcessingContext, logger *slog.Logger) error {
	// Provenance node first so mention links have a target. Persisting it
	// is at-least-once: reprocessing upserts the same record.
	err := p.withRetry(ctx, p.store.Retryable, func() error {
		return p.store.CreateNewsletter(ctx, pc.Newsletter, len(pc.Text))
	})
	if err != nil {
		return abort("persist newsletter: %w", err)
	}

	candidates := pc.Candidates
	if limit := p.cfg.MaxEntitiesPerNewsletter; limit > 0 && len(candidates) > limit {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Confidence > candidates[j].Confidence
		})
		pc.AddError("resolve_entities: %d candidates exceed cap %d, lowest-confidence %d dropped",
			len(candidates), limit, len(candidates)-limit)
		pc.EntitiesSkipped += len(candidates) - limit
		candidates = candidates[:limit]
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return abort("entity resolution interrupted: %w", err)
		}

		var res Resolution
		err := p.withRetry(ctx, p.store.Retryable, func() error {
			var err error
			res, err = p.entities.Resolve(ctx, candidate)
			return err
		})
		if err != nil {
			pc.AddError("resolve_entities: %q: %s", candidate.Name, err)
			pc.EntitiesSkipped++
			continue
		}
		for _, warning := range res.Warnings {
			pc.AddError("resolve_entities: %s", warning)
		}
		if res.Skipped {
			logger.Debug("entity skipped", slog.String("reason", res.Reason))
			pc.EntitiesSkipped++
			continue
		}

		pc.Resolved = append(pc.Resolved, *res.Entity)
		pc.index.add(res.Entity)
		if res.Entity.Created {
			pc.EntitiesNew++
		} else {
			pc.EntitiesUpdated++
		}

		if err := p.withRetry(ctx, p.store.Retryable, func() error {
			return p.store.LinkMention(ctx, res.Entity.ID, pc.Newsletter.ID, candidate.ContextSnippet, res.Entity.Confidence)
		}); err != nil {
			pc.AddError("resolve_entities: link mention %q: %s", candidate.Name, err)
		}
	}

	return nil
}

func (p *Pipeline) extractFacts(ctx context.Context, pc *ProcessingContext, logger *slog.Logger) error {
	if len(pc.Resolved) == 0 {
		logger.Debug("no resolved entities, skipping fact extraction")
		return nil
	}

	mentions := make([]string, 0, len(pc.Resolved))
	for _, re := range pc.Resolved {
		mentions = append(mentions, re.Mention)
	}

	var candidates []models.CandidateFact
	err := p.withRetry(ctx, llm.IsTransient, func() error {
		var err error
		candidates, err = p.extractor.ExtractFacts(ctx, pc.Text, mentions)
		return err
	})
	if err != nil {
		if errors.Is(err, llm.ErrFatalAPI) {
			return abort("fact extraction: %w", err)
		}
		// Entities are already committed; a failed fact stage degrades
		// the run instead of discarding that work.
		return fmt.Errorf("fact extraction skipped: %w", err)
	}

	pc.CandidateFacts = candidates
	logger.Debug("facts extracted", slog.Int("count", len(candidates)))
	return nil
}

func (p *Pipeline) resolveFacts(ctx context.Context, pc *ProcessingContext, logger *slog.Logger) error {
	for _, candidate := range pc.CandidateFacts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("fact resolution interrupted: %w", err)
		}

		var res Resolution
		var fact *models.ResolvedFact
		err := p.withRetry(ctx, p.store.Retryable, func() error {
			var err error
			res, fact, err = p.facts.Resolve(ctx, candidate, pc.index, pc.Newsletter.ID)
			return err
		})
		if err != nil {
			pc.AddError("resolve_facts: %s: %s", describeFact(candidate), err)
			pc.FactsSkipped++
			continue
		}
		for _, warning := range res.Warnings {
			pc.AddError("resolve_facts: %s", warning)
		}
		if res.Skipped {
			logger.Debug("fact skipped", slog.String("reason", res.Reason))
			pc.FactsSkipped++
			continue
		}

		pc.ResolvedFacts = append(pc.ResolvedFacts, *fact)
		if fact.Created {
			pc.FactsNew++
		}
	}

	return nil
}

// summarize is pure: it derives per-type counts from the processing
// context without touching the store or the extractor.
func (p *Pipeline) summarize(_ context.Context, pc *ProcessingContext, _ *slog.Logger) error {
	pc.Summary = entitySummary(pc)
	return nil
}

func entitySummary(pc *ProcessingContext) map[models.EntityType]int {
	summary := make(map[models.EntityType]int)
	for _, re := range pc.Resolved {
		summary[re.Type]++
	}
	return summary
}

func (p *Pipeline) buildResult(pc *ProcessingContext, took time.Duration) *models.RunResult {
	summary := pc.Summary
	if summary == nil {
		// Aborted before the summarize stage.
		summary = entitySummary(pc)
	}

	result := &models.RunResult{
		NewsletterID:    pc.Newsletter.ID,
		EntitiesNew:     pc.EntitiesNew,
		EntitiesUpdated: pc.EntitiesUpdated,
		EntitiesSkipped: pc.EntitiesSkipped,
		FactsNew:        pc.FactsNew,
		FactsSkipped:    pc.FactsSkipped,
		EntitySummary:   summary,
		Errors:          pc.Errors(),
		ProcessingTime:  took,
	}

	persisted := pc.EntitiesNew + pc.EntitiesUpdated + pc.FactsNew
	switch {
	case pc.State() == StateFailed && persisted == 0:
		result.Status = models.StatusFailed
	case pc.State() == StateFailed || len(result.Errors) > 0:
		result.Status = models.StatusPartial
	default:
		result.Status = models.StatusSuccess
	}

	result.TextSummary = formatSummary(result, pc)
	return result
}

func formatSummary(result *models.RunResult, pc *ProcessingContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed newsletter %s (%s): %d entities (%d new, %d updated, %d skipped), %d new facts (%d skipped) in %.1fs",
		pc.Newsletter.ID, result.Status,
		result.EntitiesNew+result.EntitiesUpdated, result.EntitiesNew, result.EntitiesUpdated, result.EntitiesSkipped,
		result.FactsNew, result.FactsSkipped,
		result.ProcessingTime.Seconds())

	var parts []string
	for _, typ := range models.EntityTypes {
		if n := result.EntitySummary[typ]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", typ, n))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, ", "))
	}
	return b.String()
}

// withRetry retries transient failures with exponential backoff, up to the
// configured attempt limit or until the run context expires. retryable
// classifies errors for the call site; permanent errors return immediately.
func (p *Pipeline) withRetry(ctx context.Context, retryable func(error) bool, fn func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.cfg.MaxRetries)),
		ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}
