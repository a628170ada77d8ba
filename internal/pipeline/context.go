package pipeline

import (
	"fmt"
	"time"

	"github.com/raphaelgruber/arrgh-go/internal/models"
)

// State identifies a position in the pipeline's linear state machine.
type State string

const (
	StateStart             State = "start"
	StateNormalized        State = "normalized"
	StateEntitiesExtracted State = "entities_extracted"
	StateEntitiesResolved  State = "entities_resolved"
	StateFactsExtracted    State = "facts_extracted"
	StateFactsResolved     State = "facts_resolved"
	StateSummarized        State = "summarized"
	StateDone              State = "done"
	// StateFailed is absorbing: reachable from any stage on a
	// non-retryable error, never left.
	StateFailed State = "failed"
)

// ProcessingContext is the per-run working state threaded through pipeline
// stages. It is owned exclusively by one run and never shared.
type ProcessingContext struct {
	Newsletter models.Newsletter
	Text       string

	Candidates     []models.CandidateEntity
	Resolved       []models.ResolvedEntity
	CandidateFacts []models.CandidateFact
	ResolvedFacts  []models.ResolvedFact

	Summary map[models.EntityType]int

	EntitiesNew     int
	EntitiesUpdated int
	EntitiesSkipped int
	FactsNew        int
	FactsSkipped    int

	state   State
	index   *entityIndex
	errors  []string
	started time.Time
}

func newProcessingContext(text string, newsletter models.Newsletter) *ProcessingContext {
	return &ProcessingContext{
		Newsletter: newsletter,
		Text:       text,
		state:      StateStart,
		index:      newEntityIndex(),
		started:    time.Now(),
	}
}

// AddError accumulates a stage-local error. Errors never propagate past
// the orchestrator; they only shape the final RunResult.
func (pc *ProcessingContext) AddError(format string, args ...any) {
	pc.errors = append(pc.errors, fmt.Sprintf(format, args...))
}

// Errors returns the accumulated error list.
func (pc *ProcessingContext) Errors() []string {
	return pc.errors
}

// State returns the current pipeline state.
func (pc *ProcessingContext) State() State {
	return pc.state
}

// Elapsed returns the wall-clock time since the run started.
func (pc *ProcessingContext) Elapsed() time.Duration {
	return time.Since(pc.started)
}

// entityIndex maps mention text (by normalized key) to the entities
// resolved earlier in the same run. Facts may only reference entities in
// this index, never arbitrary graph nodes.
type entityIndex struct {
	byKey map[string]*models.ResolvedEntity
}

func newEntityIndex() *entityIndex {
	return &entityIndex{byKey: make(map[string]*models.ResolvedEntity)}
}

// add registers a resolved entity under its mention and canonical name keys.
func (ix *entityIndex) add(re *models.ResolvedEntity) {
	for _, name := range []string{re.Mention, re.CanonicalName} {
		if key := NameKey(name); key != "" {
			if _, exists := ix.byKey[key]; !exists {
				ix.byKey[key] = re
			}
		}
	}
}

// lookup finds the resolved entity for a mention, or nil.
func (ix *entityIndex) lookup(mention string) *models.ResolvedEntity {
	return ix.byKey[NameKey(mention)]
}

func (ix *entityIndex) size() int {
	return len(ix.byKey)
}
