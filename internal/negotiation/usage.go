package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/pactline/internal/audit"
	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/inject"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/ratelimit"
)

// UsageResult is returned by RecordUsage.
type UsageResult struct {
	Allowed        bool             `json:"allowed"`
	RemainingCalls int64            `json:"remainingCalls"`
	TotalCalls     int64            `json:"totalCalls"`
	Injected       []inject.Binding `json:"injected"`
}

// RecordUsage meters one access against an Active contract. Injected terms
// are bound from rc first, then the quota and the frequency limit apply.
func (s *Service) RecordUsage(ctx context.Context, id string, rc inject.RuntimeContext) (UsageResult, error) {
	if err := ctx.Err(); err != nil {
		return UsageResult{}, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return UsageResult{}, err
	}
	now := s.now()

	next, bindings, release, err := s.meter(cur, rc, now)
	facts := toFacts(bindings)
	if err != nil {
		s.record(ctx, cur, audit.EventUsageRejected, "", err, facts)
		s.notify(cur, audit.EventUsageRejected, "", err)
		s.logger.Warn("usage rejected", "contract", id, "error", err)
		return usageOf(cur, false, bindings), err
	}

	saved, err := s.store.Update(ctx, next, cur.Revision)
	if err != nil {
		release()
		return UsageResult{}, fmt.Errorf("save contract %s: %w", id, err)
	}
	s.record(ctx, saved, audit.EventUsage, "", nil, facts)
	s.logger.Debug("usage recorded", "contract", id, "remaining", saved.ExecutionStats.RemainingCalls)
	return usageOf(saved, true, bindings), nil
}

// meter runs the usage checks in order: injected facts, quota, then the
// frequency limit. The rate token is only taken once the quota has room;
// release returns it if the caller cannot persist the result.
func (s *Service) meter(c contract.Contract, rc inject.RuntimeContext, now time.Time) (contract.Contract, []inject.Binding, func(), error) {
	if c.Status != contract.Active || c.Agreement == nil {
		return c, nil, nil, model.Errorf(model.KindIllegalTransition,
			"cannot record usage on contract %s in status %s", c.ID, c.Status)
	}
	bindings, err := inject.Bind(s.cat, c.Modes(), rc)
	if err != nil {
		return c, nil, nil, err
	}
	next, err := contract.RecordUsage(c, now)
	if err != nil {
		return c, bindings, nil, err
	}
	freq, err := ratelimit.FromTerms(*c.Agreement)
	if err != nil {
		return c, bindings, nil, err
	}
	release, err := s.limiter.Reserve(c.ID, freq, now)
	if err != nil {
		return c, bindings, nil, err
	}
	return next, bindings, release, nil
}

func usageOf(c contract.Contract, allowed bool, bindings []inject.Binding) UsageResult {
	r := UsageResult{Allowed: allowed, Injected: bindings}
	if r.Injected == nil {
		r.Injected = []inject.Binding{}
	}
	if c.ExecutionStats != nil {
		r.RemainingCalls = c.ExecutionStats.RemainingCalls
		r.TotalCalls = c.ExecutionStats.TotalCalls
	}
	return r
}

func toFacts(bindings []inject.Binding) []audit.Fact {
	if len(bindings) == 0 {
		return nil
	}
	facts := make([]audit.Fact, len(bindings))
	for i, b := range bindings {
		facts[i] = audit.Fact{Key: b.Key, Source: b.Source, Value: b.Value}
	}
	return facts
}
