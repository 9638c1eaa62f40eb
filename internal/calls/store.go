package calls

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists call records. This subsystem is the sole writer of the
// call_records table; tenant tables are never touched here.
type Store struct {
	db rowQuerier
}

// NewStore creates a Store over a pgx pool or compatible querier.
func NewStore(db rowQuerier) *Store {
	if db == nil {
		panic("calls: querier required")
	}
	return &Store{db: db}
}

// The forward-only rule lives in SQL so near-simultaneous duplicate
// deliveries race safely inside a single atomic statement instead of a
// read-then-write in Go. array_position gives each status its lifecycle
// rank; a lower-ranked incoming status leaves the row unchanged.
const upsertQuery = `
	INSERT INTO call_records (id, call_id, business_id, customer_phone, status, duration_seconds, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	ON CONFLICT (call_id) DO UPDATE SET
		status = CASE
			WHEN array_position(ARRAY['unknown','initiated','answered','completed'], EXCLUDED.status)
			   > array_position(ARRAY['unknown','initiated','answered','completed'], call_records.status)
			THEN EXCLUDED.status
			ELSE call_records.status
		END,
		duration_seconds = CASE
			WHEN EXCLUDED.status = 'completed' AND EXCLUDED.duration_seconds IS NOT NULL
			THEN EXCLUDED.duration_seconds
			ELSE call_records.duration_seconds
		END,
		business_id = COALESCE(call_records.business_id, EXCLUDED.business_id),
		updated_at = now()
	RETURNING id, business_id, call_id, customer_phone, status, duration_seconds, created_at, updated_at`

// UpsertParams carries the fields derived from a single call event.
type UpsertParams struct {
	CallID          string
	BusinessID      *uuid.UUID
	CustomerPhone   string
	Status          Status
	DurationSeconds *int
}

// Upsert creates the record on first sight of a call id and applies the
// forward-only update otherwise, returning the resulting row.
func (s *Store) Upsert(ctx context.Context, p UpsertParams) (Record, error) {
	if p.CallID == "" {
		return Record{}, fmt.Errorf("calls: call id required")
	}
	var rec Record
	err := s.db.QueryRow(ctx, upsertQuery,
		uuid.New(), p.CallID, p.BusinessID, p.CustomerPhone, string(p.Status), p.DurationSeconds,
	).Scan(&rec.ID, &rec.BusinessID, &rec.CallID, &rec.CustomerPhone, &rec.Status, &rec.DurationSeconds, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("calls: upsert record for %s: %w", p.CallID, err)
	}
	return rec, nil
}

// Get fetches a record by provider call id.
func (s *Store) Get(ctx context.Context, callID string) (Record, error) {
	const query = `
		SELECT id, business_id, call_id, customer_phone, status, duration_seconds, created_at, updated_at
		FROM call_records
		WHERE call_id = $1`
	var rec Record
	err := s.db.QueryRow(ctx, query, callID).
		Scan(&rec.ID, &rec.BusinessID, &rec.CallID, &rec.CustomerPhone, &rec.Status, &rec.DurationSeconds, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("calls: get record for %s: %w", callID, err)
	}
	return rec, nil
}
