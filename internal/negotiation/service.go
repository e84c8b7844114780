// Package negotiation owns contract state. It loads a contract from the
// store, applies one pure transition, writes it back under an optimistic
// revision, and records the outcome in the audit log. Mutations of one
// contract are serialised; different contracts proceed in parallel.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/pactline/internal/alert"
	"github.com/ppiankov/pactline/internal/audit"
	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/odrl"
	"github.com/ppiankov/pactline/internal/ratelimit"
	"github.com/ppiankov/pactline/internal/store"
	"github.com/ppiankov/pactline/internal/termdiff"
)

// Options wires a Service. Catalog and Store are required.
type Options struct {
	Catalog  *catalog.Catalog
	Store    store.Store
	Policies *odrl.Registry
	Audit    audit.Recorder
	Alerts   *alert.Dispatcher
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service is the serialised contract API shared by every transport.
type Service struct {
	cat      *catalog.Catalog
	store    store.Store
	policies *odrl.Registry
	audit    audit.Recorder
	alerts   *alert.Dispatcher
	logger   *slog.Logger
	now      func() time.Time
	limiter  *ratelimit.Registry
	locks    *keyedMutex
}

// New validates opts and returns a Service.
func New(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		return nil, errors.New("negotiation: catalog is required")
	}
	if opts.Store == nil {
		return nil, errors.New("negotiation: store is required")
	}
	s := &Service{
		cat:      opts.Catalog,
		store:    opts.Store,
		policies: opts.Policies,
		audit:    opts.Audit,
		alerts:   opts.Alerts,
		logger:   opts.Logger,
		now:      opts.Now,
		limiter:  ratelimit.NewRegistry(),
		locks:    newKeyedMutex(),
	}
	if s.policies == nil {
		s.policies = odrl.NewRegistry()
	}
	if s.audit == nil {
		s.audit = audit.Discard
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Catalog returns the catalog the service validates against.
func (s *Service) Catalog() *catalog.Catalog { return s.cat }

// Policies returns the published policy registry.
func (s *Service) Policies() *odrl.Registry { return s.policies }

// CreateRequest describes a new contract. When PolicyUID or PolicyTarget is
// set, terms, modes and ranges are seeded from that published policy and
// the corresponding fields of Params are replaced.
type CreateRequest struct {
	contract.CreateParams
	PolicyUID    string `json:"policyUid,omitempty"`
	PolicyTarget string `json:"policyTarget,omitempty"`
}

// CreateContract validates and stores a new Draft.
func (s *Service) CreateContract(ctx context.Context, req CreateRequest) (contract.Contract, error) {
	params := req.CreateParams
	if req.PolicyUID != "" || req.PolicyTarget != "" {
		var (
			p   odrl.Policy
			err error
		)
		if req.PolicyUID != "" {
			p, err = s.policies.Get(req.PolicyUID)
		} else {
			p, err = s.policies.Resolve(req.PolicyTarget)
		}
		if err != nil {
			return contract.Contract{}, err
		}
		seed, err := contract.TermsFromPolicy(s.cat, p)
		if err != nil {
			return contract.Contract{}, err
		}
		params = seed.Apply(params)
	}

	c, err := contract.Create(s.cat, params, s.now())
	if err != nil {
		s.logger.Warn("contract create rejected", "product", params.ProductRef, "error", err)
		return contract.Contract{}, err
	}
	created, err := s.store.Create(ctx, c)
	if err != nil {
		return contract.Contract{}, err
	}
	s.record(ctx, created, audit.EventCreated, string(model.Me), nil, nil)
	s.logger.Info("contract created", "contract", created.ID, "product", created.ProductRef,
		"keys", len(created.Schedule))
	return created, nil
}

// SubmitDraft opens negotiation on a Draft.
func (s *Service) SubmitDraft(ctx context.Context, id string) (contract.Contract, error) {
	return s.mutate(ctx, id, audit.EventSubmitted, string(model.Me), func(c contract.Contract, now time.Time) (contract.Contract, error) {
		return contract.Submit(c, now)
	})
}

// Propose records a counter-offer. Rejections are audited and alerted.
func (s *Service) Propose(ctx context.Context, id string, p contract.Proposal) (contract.Contract, error) {
	return s.mutate(ctx, id, audit.EventProposed, string(p.Proposer), func(c contract.Contract, now time.Time) (contract.Contract, error) {
		return contract.Propose(s.cat, c, p, now)
	})
}

// AcceptAndSign accepts the latest proposal and activates the contract.
func (s *Service) AcceptAndSign(ctx context.Context, id string, proof contract.SigningProof) (contract.Contract, error) {
	return s.mutate(ctx, id, audit.EventActivated, string(proof.Party), func(c contract.Contract, now time.Time) (contract.Contract, error) {
		return contract.AcceptAndSign(s.cat, c, proof, now)
	})
}

// Terminate abandons a contract under negotiation.
func (s *Service) Terminate(ctx context.Context, id, reason string) (contract.Contract, error) {
	c, err := s.mutate(ctx, id, audit.EventTerminated, "", func(c contract.Contract, now time.Time) (contract.Contract, error) {
		return contract.Terminate(c, reason, now)
	})
	if err == nil {
		s.limiter.Forget(id)
	}
	return c, err
}

// Revoke ends an Active contract.
func (s *Service) Revoke(ctx context.Context, id, reason string) (contract.Contract, error) {
	c, err := s.mutate(ctx, id, audit.EventRevoked, "", func(c contract.Contract, now time.Time) (contract.Contract, error) {
		return contract.Revoke(c, reason, now)
	})
	if err == nil {
		s.limiter.Forget(id)
	}
	return c, err
}

// GetContract returns the stored contract.
func (s *Service) GetContract(ctx context.Context, id string) (contract.Contract, error) {
	return s.store.Get(ctx, id)
}

// ListContracts returns stored contracts in creation order.
func (s *Service) ListContracts(ctx context.Context, f store.Filter) ([]contract.Contract, error) {
	return s.store.List(ctx, f)
}

// GetHistory returns the append-only proposal history.
func (s *Service) GetHistory(ctx context.Context, id string) ([]contract.HistoryEntry, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.History, nil
}

// GetDiff compares the counterparty position with mine.
func (s *Service) GetDiff(ctx context.Context, id string) (*termdiff.Result, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.Diff(), nil
}

type transition func(c contract.Contract, now time.Time) (contract.Contract, error)

// mutate runs fn under the contract lock and persists the result.
func (s *Service) mutate(ctx context.Context, id, event, actor string, fn transition) (contract.Contract, error) {
	if err := ctx.Err(); err != nil {
		return contract.Contract{}, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return contract.Contract{}, err
	}
	next, err := fn(cur, s.now())
	if err != nil {
		s.reject(ctx, cur, event, actor, err)
		return contract.Contract{}, err
	}
	saved, err := s.store.Update(ctx, next, cur.Revision)
	if err != nil {
		return contract.Contract{}, fmt.Errorf("save contract %s: %w", id, err)
	}
	s.record(ctx, saved, event, actor, nil, nil)
	s.notify(saved, event, actor, nil)
	s.logger.Info("contract "+event, "contract", id, "version", saved.Version, "status", saved.Status)
	return saved, nil
}

func (s *Service) reject(ctx context.Context, c contract.Contract, event, actor string, err error) {
	rejected := event
	switch event {
	case audit.EventProposed:
		rejected = audit.EventProposalRejected
	case audit.EventUsage:
		rejected = audit.EventUsageRejected
	}
	s.record(ctx, c, rejected, actor, err, nil)
	s.notify(c, rejected, actor, err)
	s.logger.Warn("contract "+event+" rejected", "contract", c.ID, "version", c.Version, "error", err)
}

// record appends an audit entry. Audit failures are logged, not returned:
// the transition has already been persisted.
func (s *Service) record(ctx context.Context, c contract.Contract, event, actor string, cause error, facts []audit.Fact) {
	e := audit.Entry{
		Timestamp:  s.now().UTC().Format(audit.TimestampFormat),
		RequestID:  RequestID(ctx),
		ContractID: c.ID,
		Event:      event,
		Actor:      actor,
		Version:    c.Version,
		Status:     string(c.Status),
		Outcome:    audit.OutcomeOK,
		Injected:   facts,
	}
	if c.Signature != nil && event == audit.EventActivated {
		e.SignatureHash = c.Signature.Hash
	}
	if cause != nil {
		e.Outcome = audit.OutcomeRejected
		e.Reason = cause.Error()
		if me, ok := model.AsError(cause); ok {
			e.ErrorKind = string(me.Kind)
		}
	}
	if err := s.audit.Record(e); err != nil {
		s.logger.Error("audit record failed", "contract", c.ID, "event", event, "error", err)
	}
}

// notify maps audit events onto alert events.
func (s *Service) notify(c contract.Contract, event, actor string, cause error) {
	var name string
	if cause == nil {
		switch event {
		case audit.EventActivated:
			name = alert.EventActivated
		case audit.EventTerminated:
			name = alert.EventTerminated
		case audit.EventRevoked:
			name = alert.EventRevoked
		}
	} else {
		switch {
		case event == audit.EventProposalRejected:
			name = alert.EventProposalRejected
		case event == audit.EventUsageRejected && model.HasKind(cause, model.KindQuotaExhausted):
			name = alert.EventQuotaExhausted
		case event == audit.EventUsageRejected && model.HasKind(cause, model.KindRateLimited):
			name = alert.EventRateLimited
		}
	}
	if name == "" {
		return
	}
	ev := alert.Event{
		Timestamp:    s.now().UTC().Format(audit.TimestampFormat),
		Event:        name,
		ContractID:   c.ID,
		ContractName: c.Name,
		ProductRef:   c.ProductRef,
		Actor:        actor,
		Version:      c.Version,
		Status:       string(c.Status),
		Reason:       c.ClosedReason,
	}
	if cause != nil {
		ev.Reason = cause.Error()
		if me, ok := model.AsError(cause); ok {
			ev.Kind = string(me.Kind)
		}
	}
	s.alerts.Dispatch(ev)
}
