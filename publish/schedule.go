// Package publish provides deferred publication: the scheduled publication
// store, the scheduling service, and the batch publisher job that promotes
// due schedules to published content.
package publish

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledPublication records one pending or resolved intent to publish a
// content record at a future instant. It references the content but does not
// own its lifetime.
type ScheduledPublication struct {
	ID          string     `json:"id"`
	ContentID   string     `json:"content_id"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Status      string     `json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Status constants for scheduled publications
const (
	StatusPending   = "pending"   // Waiting for its scheduled instant
	StatusPublished = "published" // Promoted by the publisher job
	StatusFailed    = "failed"    // Publication attempt failed; requires operator action
)

// NewScheduledPublication creates a pending schedule for a content record.
func NewScheduledPublication(contentID string, at time.Time) *ScheduledPublication {
	now := time.Now().UTC()
	return &ScheduledPublication{
		ID:          uuid.NewString(),
		ContentID:   contentID,
		ScheduledAt: at.UTC(),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
