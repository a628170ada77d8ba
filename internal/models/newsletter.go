package models

import "time"

// Newsletter holds the metadata of one processed newsletter. The pipeline
// consumes already-normalized plain text; HTML cleanup happens upstream.
type Newsletter struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	Sender       string    `json:"sender"`
	ReceivedDate time.Time `json:"received_date"`
}

// RunStatus is the terminal outcome of a pipeline run.
type RunStatus string

const (
	// StatusSuccess means every extracted item was persisted without errors.
	StatusSuccess RunStatus = "success"
	// StatusPartial means some items were persisted but the error list is
	// non-empty (per-item skips, stage warnings).
	StatusPartial RunStatus = "partial"
	// StatusFailed means the run aborted before completing; work already
	// committed is not rolled back.
	StatusFailed RunStatus = "failed"
)

// RunResult is the only contract exposed to callers of the pipeline.
// Stage errors never escape past it.
type RunResult struct {
	Status          RunStatus          `json:"status"`
	NewsletterID    string             `json:"newsletter_id"`
	EntitiesNew     int                `json:"entities_new"`
	EntitiesUpdated int                `json:"entities_updated"`
	EntitiesSkipped int                `json:"entities_skipped"`
	FactsNew        int                `json:"facts_new"`
	FactsSkipped    int                `json:"facts_skipped"`
	EntitySummary   map[EntityType]int `json:"entity_summary"`
	TextSummary     string             `json:"text_summary"`
	Errors          []string           `json:"errors"`
	ProcessingTime  time.Duration      `json:"processing_time"`
}

// GraphStats reports node and relationship counts for the whole graph.
type GraphStats struct {
	Entities      map[EntityType]int `json:"entities"`
	Newsletters   int                `json:"newsletters"`
	Facts         int                `json:"facts"`
	Mentions      int                `json:"mentions"`
	TotalEntities int                `json:"total_entities"`
}
