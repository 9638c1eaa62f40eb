package calls

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/relaymind/voicegate/internal/telnyx"
	"github.com/relaymind/voicegate/internal/tenant"
	"github.com/relaymind/voicegate/pkg/logging"
)

// businessResolver is the slice of the tenant resolver the reconciler needs.
type businessResolver interface {
	Resolve(ctx context.Context, dialed string) (tenant.Binding, error)
}

type recordUpserter interface {
	Upsert(ctx context.Context, p UpsertParams) (Record, error)
}

// Reconciler maintains the idempotent call record for every webhook event.
// It runs synchronously on the webhook path but its failures never reach the
// webhook response: the provider cannot fix a database error by retrying a
// structurally valid delivery.
type Reconciler struct {
	store    recordUpserter
	resolver businessResolver
	logger   *logging.Logger
}

// NewReconciler creates a Reconciler. The resolver is optional; without it
// records are kept with a null business id until a later backfill.
func NewReconciler(store recordUpserter, resolver businessResolver, logger *logging.Logger) *Reconciler {
	if store == nil {
		panic("calls: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{store: store, resolver: resolver, logger: logger.Named("reconciler")}
}

// Reconcile applies one normalized event to the call record. Records are
// created on first sight of a call id whatever the event kind, so an
// out-of-order first delivery still leaves a durable trace; the forward-only
// status rule in the store makes reordering and duplication harmless.
func (r *Reconciler) Reconcile(ctx context.Context, evt telnyx.Event) (Record, error) {
	if evt.CallControlID == "" {
		return Record{}, errors.New("calls: event missing call control id")
	}

	params := UpsertParams{
		CallID:        evt.CallControlID,
		CustomerPhone: evt.From,
		Status:        StatusForEvent(evt.Kind),
	}
	if evt.Terminal() && evt.DurationSeconds > 0 {
		d := evt.DurationSeconds
		params.DurationSeconds = &d
	}
	if id := r.lookupBusiness(ctx, evt.To); id != nil {
		params.BusinessID = id
	}

	rec, err := r.store.Upsert(ctx, params)
	if err != nil {
		return Record{}, fmt.Errorf("calls: reconcile %s: %w", evt.CallControlID, err)
	}
	return rec, nil
}

// lookupBusiness is best-effort: a miss or malformed number is expected and
// leaves the business id for later backfill.
func (r *Reconciler) lookupBusiness(ctx context.Context, dialed string) *uuid.UUID {
	if r.resolver == nil || dialed == "" {
		return nil
	}
	binding, err := r.resolver.Resolve(ctx, dialed)
	if err != nil {
		if !errors.Is(err, tenant.ErrNotFound) {
			r.logger.Warn("business lookup failed during reconcile", "dialed", dialed, "error", err)
		}
		return nil
	}
	id := binding.BusinessID
	return &id
}
