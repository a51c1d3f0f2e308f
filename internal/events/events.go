// Package events publishes and consumes bookmark change events over Kafka.
//
// Every bookmark toggle produces one Event keyed by paper id. Other instances
// consume the topic and apply remote changes to their local bookmark set, so a
// fleet sharing a topic converges on the same bookmarks.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of change an Event describes.
type Type string

const (
	TypeBookmarkAdded   Type = "bookmark.added"
	TypeBookmarkRemoved Type = "bookmark.removed"
)

// Event is the JSON payload written to the bookmark topic.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	PaperID    string    `json:"paper_id"`
	OccurredAt time.Time `json:"occurred_at"`
	// Source is the instance that produced the event.
	Source string `json:"source"`
}

// NewBookmarkEvent builds the event for a toggle that left paperID bookmarked
// (added) or not.
func NewBookmarkEvent(paperID string, added bool, source string) Event {
	t := TypeBookmarkRemoved
	if added {
		t = TypeBookmarkAdded
	}
	return Event{
		ID:         uuid.New(),
		Type:       t,
		PaperID:    paperID,
		OccurredAt: time.Now().UTC(),
		Source:     source,
	}
}

// Added reports whether the event marks the paper as bookmarked.
func (e Event) Added() bool {
	return e.Type == TypeBookmarkAdded
}
