// Package models defines data structures for the Arrgh newsletter knowledge graph.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// EntityType classifies a canonical entity node. The set is closed;
// extending it requires a coordinated schema change in the graph store.
type EntityType string

const (
	TypeOrganization EntityType = "Organization"
	TypePerson       EntityType = "Person"
	TypeProduct      EntityType = "Product"
	TypeEvent        EntityType = "Event"
	TypeLocation     EntityType = "Location"
	TypeTopic        EntityType = "Topic"
)

// EntityTypes lists all supported entity types in display order.
var EntityTypes = []EntityType{
	TypeOrganization,
	TypePerson,
	TypeProduct,
	TypeEvent,
	TypeLocation,
	TypeTopic,
}

// ValidEntityType reports whether t is one of the supported types.
func ValidEntityType(t EntityType) bool {
	switch t {
	case TypeOrganization, TypePerson, TypeProduct, TypeEvent, TypeLocation, TypeTopic:
		return true
	}
	return false
}

// Entity represents a canonical entity node in the knowledge graph.
type Entity struct {
	ID            surrealmodels.RecordID `json:"id"`
	Type          EntityType             `json:"type"`
	CanonicalName string                 `json:"canonical_name"`
	NameKey       string                 `json:"name_key"`
	Aliases       []string               `json:"aliases"`
	AliasKeys     []string               `json:"alias_keys"`
	Confidence    float64                `json:"confidence"`
	MentionCount  int                    `json:"mention_count"`
	FirstSeen     time.Time              `json:"first_seen"`
	LastUpdated   time.Time              `json:"last_updated"`
}

// CandidateEntity is an unvalidated entity mention as produced by the
// extraction service. It references the real world by name, not by graph id.
type CandidateEntity struct {
	Name           string     `json:"name"`
	Type           EntityType `json:"type"`
	ContextSnippet string     `json:"context"`
	Confidence     float64    `json:"confidence"`
}

// ResolvedEntity maps a candidate mention to exactly one graph entity.
type ResolvedEntity struct {
	ID            string
	Type          EntityType
	CanonicalName string
	Mention       string
	Confidence    float64
	Created       bool
}
