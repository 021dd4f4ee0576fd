// Package content defines the content record, its publication lifecycle
// state machine, and its SQLite-backed store.
package content

import (
	"time"

	"github.com/google/uuid"
)

// Type enumerates the kinds of content an author can create.
type Type string

const (
	TypePost     Type = "post"
	TypeCarousel Type = "carousel"
	TypeVideo    Type = "video"
	TypeStory    Type = "story"
)

// ValidType reports whether t is a known content type.
func ValidType(t Type) bool {
	switch t {
	case TypePost, TypeCarousel, TypeVideo, TypeStory:
		return true
	}
	return false
}

// Content is one author-created item with a publication lifecycle.
//
// ScheduledAt is non-nil iff exactly one pending ScheduledPublication exists
// for this content (maintained by the publish.Scheduler, not the store).
// PublishedAt is non-nil iff status is published, and once set never changes.
type Content struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Type            Type       `json:"type"`
	Media           []string   `json:"media,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	Status          Status     `json:"status"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	ViewCount       int        `json:"view_count"`
	EngagementScore float64    `json:"engagement_score"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// New creates a draft content record with a fresh ID.
func New(title, description string, contentType Type) *Content {
	now := time.Now().UTC()
	return &Content{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Type:        contentType,
		Status:      StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
