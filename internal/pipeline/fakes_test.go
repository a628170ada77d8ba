package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/arrgh-go/internal/models"
)

// fakeStore is an in-memory GraphStore with the same identity semantics as
// the SurrealDB schema: one entity per (type, name key), one fact per
// (subject, predicate, object, source).
type fakeStore struct {
	mu          sync.Mutex
	entities    map[string]*models.Entity
	facts       map[string]bool
	newsletters map[string]bool
	mentions    map[string]bool

	failWith  error
	retryable bool
	calls     map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities:    make(map[string]*models.Entity),
		facts:       make(map[string]bool),
		newsletters: make(map[string]bool),
		mentions:    make(map[string]bool),
		calls:       make(map[string]int),
	}
}

func (s *fakeStore) record(op string) error {
	s.calls[op]++
	return s.failWith
}

func (s *fakeStore) FindOrCreateEntity(_ context.Context, typ models.EntityType, canonicalName, nameKey string, confidence float64) (*models.Entity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("find_or_create"); err != nil {
		return nil, false, err
	}

	id := fmt.Sprintf("%s_%s", typ, nameKey)
	if existing, ok := s.entities[id]; ok {
		existing.MentionCount++
		if confidence > existing.Confidence {
			existing.Confidence = confidence
		}
		copied := *existing
		return &copied, false, nil
	}

	entity := &models.Entity{
		ID:            surrealmodels.NewRecordID("entity", id),
		Type:          typ,
		CanonicalName: canonicalName,
		NameKey:       nameKey,
		Confidence:    confidence,
		MentionCount:  1,
		FirstSeen:     time.Now(),
		LastUpdated:   time.Now(),
	}
	s.entities[id] = entity
	copied := *entity
	return &copied, true, nil
}

func (s *fakeStore) MatchEntity(_ context.Context, typ models.EntityType, key string) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("match"); err != nil {
		return nil, err
	}

	for _, e := range s.entities {
		if e.Type != typ {
			continue
		}
		if e.NameKey == key {
			copied := *e
			return &copied, nil
		}
		for _, ak := range e.AliasKeys {
			if ak == key {
				copied := *e
				return &copied, nil
			}
		}
	}
	return nil, nil
}

func (s *fakeStore) EntitiesByType(_ context.Context, typ models.EntityType, _ int) ([]models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("by_type"); err != nil {
		return nil, err
	}

	var out []models.Entity
	for _, e := range s.entities {
		if e.Type == typ {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateEntity(_ context.Context, id string, alias, aliasKey *string, confidence float64) (*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("update"); err != nil {
		return nil, err
	}

	e, ok := s.entities[id]
	if !ok {
		return nil, errors.New("entity not found")
	}
	if alias != nil && !contains(e.Aliases, *alias) {
		e.Aliases = append(e.Aliases, *alias)
	}
	if aliasKey != nil && !contains(e.AliasKeys, *aliasKey) {
		e.AliasKeys = append(e.AliasKeys, *aliasKey)
	}
	if confidence > e.Confidence {
		e.Confidence = confidence
	}
	e.MentionCount++
	e.LastUpdated = time.Now()
	copied := *e
	return &copied, nil
}

func (s *fakeStore) CreateNewsletter(_ context.Context, n models.Newsletter, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("newsletter"); err != nil {
		return err
	}
	s.newsletters[n.ID] = true
	return nil
}

func (s *fakeStore) CreateFactIfAbsent(_ context.Context, subjectID, predicate, objectID, sourceNewsletterID string, _ float64, _ *string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("fact"); err != nil {
		return false, err
	}

	key := fmt.Sprintf("%s|%s|%s|%s", subjectID, predicate, objectID, sourceNewsletterID)
	if s.facts[key] {
		return false, nil
	}
	s.facts[key] = true
	return true, nil
}

func (s *fakeStore) LinkMention(_ context.Context, entityID, newsletterID, _ string, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("mention"); err != nil {
		return err
	}
	s.mentions[entityID+"|"+newsletterID] = true
	return nil
}

func (s *fakeStore) Retryable(_ error) bool {
	return s.retryable
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// fakeExtractor returns canned candidates, optionally failing a number of
// times first.
type fakeExtractor struct {
	entities []models.CandidateEntity
	facts    []models.CandidateFact

	entityErr      error
	factErr        error
	entityFailures int
	factFailures   int

	entityCalls int
	factCalls   int
}

func (f *fakeExtractor) ExtractEntities(_ context.Context, _ string) ([]models.CandidateEntity, error) {
	f.entityCalls++
	if f.entityFailures > 0 {
		f.entityFailures--
		return nil, errors.New("connection reset")
	}
	if f.entityErr != nil {
		return nil, f.entityErr
	}
	return f.entities, nil
}

func (f *fakeExtractor) ExtractFacts(_ context.Context, _ string, mentions []string) ([]models.CandidateFact, error) {
	f.factCalls++
	if len(mentions) == 0 {
		return nil, nil
	}
	if f.factFailures > 0 {
		f.factFailures--
		return nil, errors.New("connection reset")
	}
	if f.factErr != nil {
		return nil, f.factErr
	}
	return f.facts, nil
}
