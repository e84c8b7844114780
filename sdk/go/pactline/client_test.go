package pactline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ppiankov/pactline/internal/audit"
)

const (
	providerDID = "did:conn:provider-a"
	consumerDID = "did:conn:consumer-b"
)

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func requireBlocked(t *testing.T, err error) *BlockedError {
	t.Helper()
	if err == nil {
		t.Fatal("expected access to be blocked, got nil error")
	}
	var be *BlockedError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BlockedError, got %T: %v", err, err)
	}
	return be
}

func request(usage float64, extra map[string]Value) CreateRequest {
	constraints := map[string]Value{
		"usageCount":  Number(usage),
		"environment": Text("TEE"),
	}
	for k, v := range extra {
		constraints[k] = v
	}
	return CreateRequest{CreateParams: CreateParams{
		Name:             "Sales data access",
		ProductRef:       "urn:product:sales-2026",
		Role:             Provider,
		SignatoryDID:     providerDID,
		CounterpartyName: "Consumer B",
		CounterpartyDID:  consumerDID,
		Terms:            Terms{Actions: []string{"use"}, Constraints: constraints},
		Modes:            map[string]Mode{"consumerConnectorId": Injected},
		Ranges:           map[string]*Bounds{"usageCount": Range(100, 5000)},
	}}
}

// activate creates, submits and countersigns a contract.
func activate(t *testing.T, c *Client, req CreateRequest) Contract {
	t.Helper()
	ctx := context.Background()
	k, err := c.Create(ctx, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if k, err = c.Submit(ctx, k.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	k, err = c.AcceptAndSign(ctx, k.ID, SigningProof{Party: Counterparty, SignerDID: consumerDID})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if k.Status != Active {
		t.Fatalf("expected Active, got %s", k.Status)
	}
	return k
}

func TestNewDefault(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New() with defaults should succeed: %v", err)
	}
	defer c.Close()
	if c.svc.Catalog().Len() == 0 {
		t.Fatal("expected the built-in catalog")
	}
}

func TestNewBadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	writeFile(t, path, "constraints: [")
	if _, err := New(WithCatalog(path)); err == nil {
		t.Fatal("expected error for a malformed catalog")
	}
}

func TestNewBadStore(t *testing.T) {
	if _, err := New(WithStore("cassandra", "")); err == nil {
		t.Fatal("expected error for an unknown store driver")
	}
}

func TestNegotiateWithCounterProposal(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	k, err := c.Create(ctx, request(1000, nil))
	if err != nil {
		t.Fatal(err)
	}
	k, err = c.Submit(ctx, k.ID)
	if err != nil {
		t.Fatal(err)
	}

	terms := k.Slot(Counterparty).Clone()
	terms.Constraints["usageCount"] = Number(9000)
	_, err = c.Propose(ctx, k.ID, Proposal{Proposer: Counterparty, BaseVersion: k.Version, Terms: terms})
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindOutOfBounds || e.Hint != "5000" {
		t.Fatalf("expected OutOfBounds with hint 5000, got %v", err)
	}

	terms.Constraints["usageCount"] = Number(2500)
	k, err = c.Propose(ctx, k.ID, Proposal{Proposer: Counterparty, BaseVersion: k.Version, Terms: terms, Comment: "more calls"})
	if err != nil {
		t.Fatal(err)
	}

	diff, err := c.Diff(ctx, k.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(diff.Changes) != 1 || diff.Changes[0].Key != "usageCount" {
		t.Fatalf("expected one usageCount change, got %+v", diff.Changes)
	}

	k, err = c.AcceptAndSign(ctx, k.ID, SigningProof{Party: Me, SignerDID: providerDID})
	if err != nil {
		t.Fatal(err)
	}
	if k.ExecutionStats == nil || k.ExecutionStats.RemainingCalls != 2500 {
		t.Fatalf("expected 2500 remaining calls, got %+v", k.ExecutionStats)
	}

	hist, err := c.History(ctx, k.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 || hist[1].Comment != "more calls" {
		t.Fatalf("unexpected history: %+v", hist)
	}

	list, err := c.List(ctx, Filter{Status: Active})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != k.ID {
		t.Fatalf("expected the active contract in the list, got %d", len(list))
	}

	if k, err = c.Revoke(ctx, k.ID, "breach"); err != nil || k.Status != Revoked {
		t.Fatalf("revoke: %v (status %s)", err, k.Status)
	}
}

func TestTerminateBeforeSigning(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	k, err := c.Create(ctx, request(1000, nil))
	if err != nil {
		t.Fatal(err)
	}
	k, _ = c.Submit(ctx, k.ID)
	k, err = c.Terminate(ctx, k.ID, "walked away")
	if err != nil {
		t.Fatal(err)
	}
	if k.Status != Terminated || k.ClosedReason != "walked away" {
		t.Fatalf("unexpected close: %s %q", k.Status, k.ClosedReason)
	}
	if _, err := c.Get(ctx, "missing"); !errors.Is(err, &Error{Kind: KindNotFound}) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestAuditLogWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	c, err := New(WithAuditLog(path), WithStore("file", t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	activate(t, c, request(100, nil))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	res := audit.Verify(path)
	if !res.Valid {
		t.Fatalf("audit chain invalid: %s", res.Error)
	}
}
