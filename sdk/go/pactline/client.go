package pactline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/pactline/internal/alert"
	"github.com/ppiankov/pactline/internal/audit"
	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/negotiation"
	"github.com/ppiankov/pactline/internal/odrl"
	"github.com/ppiankov/pactline/internal/store"
)

// Client runs the negotiation engine in-process.
type Client struct {
	svc    *negotiation.Service
	store  store.Store
	log    *audit.Log
	alerts *alert.Dispatcher
}

// New creates a Client. With no options it uses the built-in catalog, an
// in-memory store and no audit log.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	cat := catalog.Default()
	if cfg.catalogPath != "" {
		loaded, err := catalog.Load(cfg.catalogPath)
		if err != nil {
			return nil, fmt.Errorf("pactline: failed to load catalog: %w", err)
		}
		cat = loaded
	}

	policies, err := odrl.LoadDir(cfg.policyDir)
	if err != nil {
		return nil, fmt.Errorf("pactline: failed to load policies: %w", err)
	}

	st, err := store.Open(context.Background(), cfg.storeDriver, cfg.storeDSN)
	if err != nil {
		return nil, fmt.Errorf("pactline: failed to open store: %w", err)
	}

	c := &Client{store: st, alerts: alert.NewDispatcher(cfg.alerts, cfg.logger)}
	var rec audit.Recorder
	if cfg.auditPath != "" {
		c.log, err = audit.Open(cfg.auditPath)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("pactline: failed to open audit log: %w", err)
		}
		rec = c.log
	}

	c.svc, err = negotiation.New(negotiation.Options{
		Catalog:  cat,
		Store:    st,
		Policies: policies,
		Audit:    rec,
		Alerts:   c.alerts,
		Logger:   cfg.logger,
		Now:      cfg.now,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("pactline: %w", err)
	}
	return c, nil
}

// Close waits for pending webhooks and releases the store and audit log.
func (c *Client) Close() error {
	if c.alerts != nil {
		c.alerts.Wait()
	}
	var errs []error
	if c.log != nil {
		errs = append(errs, c.log.Close())
	}
	errs = append(errs, c.store.Close())
	return errors.Join(errs...)
}

// Create stores a new Draft contract.
func (c *Client) Create(ctx context.Context, req CreateRequest) (Contract, error) {
	return c.svc.CreateContract(ctx, req)
}

// Submit publishes a Draft as version 1.
func (c *Client) Submit(ctx context.Context, id string) (Contract, error) {
	return c.svc.SubmitDraft(ctx, id)
}

// Propose records a counter-proposal against p.BaseVersion.
func (c *Client) Propose(ctx context.Context, id string, p Proposal) (Contract, error) {
	return c.svc.Propose(ctx, id, p)
}

// AcceptAndSign accepts the latest proposal and activates the contract.
func (c *Client) AcceptAndSign(ctx context.Context, id string, proof SigningProof) (Contract, error) {
	return c.svc.AcceptAndSign(ctx, id, proof)
}

// Get returns one contract.
func (c *Client) Get(ctx context.Context, id string) (Contract, error) {
	return c.svc.GetContract(ctx, id)
}

// List returns contracts matching f.
func (c *Client) List(ctx context.Context, f Filter) ([]Contract, error) {
	return c.svc.ListContracts(ctx, f)
}

// History returns the accepted proposals, oldest first.
func (c *Client) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	return c.svc.GetHistory(ctx, id)
}

// Diff compares the counterparty's position with ours.
func (c *Client) Diff(ctx context.Context, id string) (*Diff, error) {
	return c.svc.GetDiff(ctx, id)
}

// RecordUsage meters one access without wrapping a function.
func (c *Client) RecordUsage(ctx context.Context, id string, rc RuntimeContext) (UsageResult, error) {
	return c.svc.RecordUsage(ctx, id, rc)
}

// Terminate abandons a contract that has not been signed.
func (c *Client) Terminate(ctx context.Context, id, reason string) (Contract, error) {
	return c.svc.Terminate(ctx, id, reason)
}

// Revoke ends an Active contract.
func (c *Client) Revoke(ctx context.Context, id, reason string) (Contract, error) {
	return c.svc.Revoke(ctx, id, reason)
}
