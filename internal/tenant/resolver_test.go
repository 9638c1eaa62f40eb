package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/relaymind/voicegate/pkg/logging"
)

func bindingRows(id uuid.UUID, name, agentID, escalation string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "agent_id", "escalation_phone"}).
		AddRow(id, name, agentID, escalation)
}

func TestResolveBusinessPhoneHit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	bizID := uuid.New()
	mock.ExpectQuery("FROM businesses").
		WithArgs("+18005551234").
		WillReturnRows(bindingRows(bizID, "Bright Smiles", "agent_1", "+18005559999"))

	resolver := NewResolver(mock, logging.Default())
	binding, err := resolver.Resolve(context.Background(), "(800) 555-1234")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if binding.BusinessID != bizID || binding.AgentID != "agent_1" {
		t.Fatalf("unexpected binding %+v", binding)
	}
	if !binding.HasAgent() {
		t.Fatal("expected agent binding")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResolvePrecedenceBusinessBeforeTollFree(t *testing.T) {
	// The number is present in both the business table and the toll-free
	// inventory; the direct business match must win and the toll-free query
	// must never run.
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	bizID := uuid.New()
	mock.ExpectQuery("FROM businesses").
		WithArgs("+18005551234").
		WillReturnRows(bindingRows(bizID, "Direct Match", "agent_direct", ""))

	resolver := NewResolver(mock, logging.Default())
	binding, err := resolver.Resolve(context.Background(), "+18005551234")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if binding.AgentID != "agent_direct" {
		t.Fatalf("expected path-1 result, got %+v", binding)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("toll-free path must not have been queried: %v", err)
	}
}

func TestResolveFallsThroughToTollFree(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	bizID := uuid.New()
	mock.ExpectQuery("FROM businesses").
		WithArgs("+18005551234").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM toll_free_numbers").
		WithArgs("+18005551234").
		WillReturnRows(bindingRows(bizID, "Toll Free Co", "agent_tf", ""))

	resolver := NewResolver(mock, logging.Default())
	binding, err := resolver.Resolve(context.Background(), "+18005551234")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if binding.AgentID != "agent_tf" {
		t.Fatalf("expected toll-free result, got %+v", binding)
	}
}

func TestResolveFallsThroughToAgentBinding(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	bizID := uuid.New()
	mock.ExpectQuery("FROM businesses").
		WithArgs("+18005551234").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM toll_free_numbers").
		WithArgs("+18005551234").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM agent_bindings").
		WithArgs("+18005551234").
		WillReturnRows(bindingRows(bizID, "Bound Co", "agent_b", "+18005550000"))

	resolver := NewResolver(mock, logging.Default())
	binding, err := resolver.Resolve(context.Background(), "+18005551234")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if binding.AgentID != "agent_b" || binding.EscalationPhone != "+18005550000" {
		t.Fatalf("unexpected binding %+v", binding)
	}
}

func TestResolveNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	for _, q := range []string{"FROM businesses", "FROM toll_free_numbers", "FROM agent_bindings"} {
		mock.ExpectQuery(q).WithArgs("+18005551234").WillReturnError(pgx.ErrNoRows)
	}

	resolver := NewResolver(mock, logging.Default())
	if _, err := resolver.Resolve(context.Background(), "+18005551234"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveMalformedNumberIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	resolver := NewResolver(mock, logging.Default())
	if _, err := resolver.Resolve(context.Background(), "bogus"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed input, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no query must run for malformed input: %v", err)
	}
}

func TestResolveSurfacesQueryErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("FROM businesses").
		WithArgs("+18005551234").
		WillReturnError(errors.New("connection refused"))

	resolver := NewResolver(mock, logging.Default())
	if _, err := resolver.Resolve(context.Background(), "+18005551234"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}
