package calls

import (
	"time"

	"github.com/google/uuid"

	"github.com/relaymind/voicegate/internal/telnyx"
)

// Status is the lifecycle state of a call record. Status only moves forward
// along initiated → answered → completed; duplicate or out-of-order events
// can never regress it.
type Status string

const (
	StatusUnknown   Status = "unknown"
	StatusInitiated Status = "initiated"
	StatusAnswered  Status = "answered"
	StatusCompleted Status = "completed"
)

// Rank orders statuses along the call lifecycle.
func (s Status) Rank() int {
	switch s {
	case StatusInitiated:
		return 1
	case StatusAnswered:
		return 2
	case StatusCompleted:
		return 3
	default:
		return 0
	}
}

// StatusForEvent maps a normalized event kind to its target record status.
func StatusForEvent(kind telnyx.EventKind) Status {
	switch kind {
	case telnyx.EventInitiated:
		return StatusInitiated
	case telnyx.EventAnswered:
		return StatusAnswered
	case telnyx.EventEnded, telnyx.EventHangup:
		return StatusCompleted
	default:
		return StatusUnknown
	}
}

// Record is the persistent call record, one per provider call id.
type Record struct {
	ID              uuid.UUID
	BusinessID      *uuid.UUID
	CallID          string
	CustomerPhone   string
	Status          Status
	DurationSeconds *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
