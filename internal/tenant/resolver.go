package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relaymind/voicegate/pkg/logging"
)

// ErrNotFound indicates no tenant owns the dialed number. It is a terminal
// outcome for the call, not a retryable failure.
var ErrNotFound = errors.New("tenant: no business owns this number")

// Binding is the routing information for a dialed number.
type Binding struct {
	BusinessID      uuid.UUID
	BusinessName    string
	AgentID         string
	EscalationPhone string
}

// HasAgent reports whether the business is usable for bridging. A phone
// match without an agent is a valid state; the escalation fallback applies.
func (b Binding) HasAgent() bool {
	return b.AgentID != ""
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Resolver maps a dialed number to the owning business and its voice agent.
// Three tables may independently hold the truth; they are consulted in fixed
// priority order and the first hit wins. The order matters: during number
// migrations the same number can transiently appear in more than one table.
type Resolver struct {
	db     rowQuerier
	logger *logging.Logger
}

// NewResolver creates a Resolver over a pgx pool or compatible querier.
func NewResolver(db rowQuerier, logger *logging.Logger) *Resolver {
	if db == nil {
		panic("tenant: querier required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{db: db, logger: logger.Named("tenant")}
}

const (
	businessPhoneQuery = `
		SELECT id, name, COALESCE(agent_id, ''), COALESCE(escalation_phone, '')
		FROM businesses
		WHERE phone = $1 OR secondary_phone = $1
		LIMIT 1`

	tollFreeQuery = `
		SELECT b.id, b.name, COALESCE(b.agent_id, ''), COALESCE(b.escalation_phone, '')
		FROM toll_free_numbers t
		JOIN businesses b ON b.id = t.business_id
		WHERE t.phone_number = $1 AND t.status = 'assigned'
		LIMIT 1`

	agentBindingQuery = `
		SELECT b.id, b.name, COALESCE(a.agent_id, b.agent_id, ''), COALESCE(b.escalation_phone, '')
		FROM agent_bindings a
		JOIN businesses b ON b.id = a.business_id
		WHERE a.phone_number = $1 AND a.active
		LIMIT 1`
)

// Resolve normalizes the dialed number and tries the three lookup paths in
// priority order: direct business phone fields, assigned toll-free
// inventory, then active agent bindings. Malformed input resolves to
// ErrNotFound immediately.
func (r *Resolver) Resolve(ctx context.Context, dialed string) (Binding, error) {
	number, err := NormalizeE164(dialed)
	if err != nil {
		r.logger.Warn("unresolvable dialed number", "dialed", dialed, "error", err)
		return Binding{}, ErrNotFound
	}

	for _, path := range []struct {
		name  string
		query string
	}{
		{"business_phone", businessPhoneQuery},
		{"toll_free", tollFreeQuery},
		{"agent_binding", agentBindingQuery},
	} {
		binding, err := r.lookup(ctx, path.query, number)
		if err == nil {
			r.logger.Debug("tenant resolved", "path", path.name, "business_id", binding.BusinessID)
			return binding, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Binding{}, fmt.Errorf("tenant: %s lookup for %s: %w", path.name, number, err)
		}
	}
	return Binding{}, ErrNotFound
}

func (r *Resolver) lookup(ctx context.Context, query, number string) (Binding, error) {
	var b Binding
	err := r.db.QueryRow(ctx, query, number).Scan(&b.BusinessID, &b.BusinessName, &b.AgentID, &b.EscalationPhone)
	if err != nil {
		return Binding{}, err
	}
	return b, nil
}
