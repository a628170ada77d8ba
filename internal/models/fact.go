package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Fact represents a directed, typed relationship between two resolved
// entities with temporal and provenance metadata. One fact record exists
// per (subject, predicate, object, source newsletter) tuple.
type Fact struct {
	ID surrealmodels.RecordID `json:"id"`

	In  surrealmodels.RecordID `json:"in"`  // Subject entity
	Out surrealmodels.RecordID `json:"out"` // Object entity

	Predicate        string    `json:"predicate"`
	TemporalContext  *string   `json:"temporal_context,omitempty"`
	Confidence       float64   `json:"confidence"`
	SourceNewsletter string    `json:"source_newsletter"`
	ObservedAt       time.Time `json:"observed_at"`
}

// CandidateFact is an unvalidated relational statement from the extraction
// service. Subject and object reference entities by their original mention
// text, never by graph id.
type CandidateFact struct {
	SubjectMention  string  `json:"subject"`
	Predicate       string  `json:"predicate"`
	ObjectMention   string  `json:"object"`
	Confidence      float64 `json:"confidence"`
	TemporalContext string  `json:"temporal_context,omitempty"`
}

// ResolvedFact is a fact whose subject and object resolved to graph
// entities within the same pipeline run.
type ResolvedFact struct {
	SubjectID       string
	Predicate       string
	ObjectID        string
	Confidence      float64
	TemporalContext string
	Created         bool
}
