// Package compliance keeps the immutable audit trail of inbound webhooks.
package compliance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaymind/voicegate/pkg/logging"
)

// AuditEvent is one received webhook delivery, stored verbatim.
type AuditEvent struct {
	ID         string    `json:"id"`
	Channel    string    `json:"channel"`
	EventKind  string    `json:"event_kind"`
	Path       string    `json:"path"`
	RawBody    []byte    `json:"raw_body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Recorder appends audit events to the webhook_audit_events table.
type Recorder struct {
	db      *sql.DB
	timeout time.Duration
	logger  *logging.Logger
}

// NewRecorder creates a Recorder. A nil db disables auditing entirely, which
// is only acceptable in tests and local development.
func NewRecorder(db *sql.DB, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{db: db, timeout: 5 * time.Second, logger: logger.Named("audit")}
}

// Record inserts one audit row.
func (r *Recorder) Record(ctx context.Context, event AuditEvent) error {
	if r.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO webhook_audit_events (id, channel, event_kind, path, raw_body, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.Channel,
		event.EventKind,
		event.Path,
		event.RawBody,
		event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: record audit event: %w", err)
	}
	return nil
}

// RecordAsync writes the event in a detached goroutine with its own timeout.
// The webhook response never waits on the audit trail; failures are logged
// and dropped.
func (r *Recorder) RecordAsync(event AuditEvent) {
	if r == nil || r.db == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.Record(ctx, event); err != nil {
			r.logger.Error("audit write failed",
				"channel", event.Channel,
				"event_kind", event.EventKind,
				"error", err,
			)
		}
	}()
}
