package contract

import (
	"errors"
	"fmt"

	"github.com/ppiankov/pactline/internal/model"
)

// Verify checks the structural invariants of c: contiguous history
// versions, version equal to history length, and each slot matching the
// latest snapshot its party authored.
func Verify(c Contract) error {
	var errs []error
	for i, h := range c.History {
		if h.Version != i+1 {
			errs = append(errs, fmt.Errorf("history[%d] has version %d, want %d", i, h.Version, i+1))
		}
	}
	if c.Version != len(c.History) {
		errs = append(errs, fmt.Errorf("version %d does not match history length %d", c.Version, len(c.History)))
	}

	if h, ok := lastBy(c, model.Me); ok && !c.MyPolicy.Equal(h.PolicySnapshot) {
		errs = append(errs, fmt.Errorf("my slot differs from version %d", h.Version))
	}
	if h, ok := lastBy(c, model.Counterparty); ok {
		if c.CounterpartyProvisional {
			errs = append(errs, errors.New("counterparty slot marked provisional after a counterparty proposal"))
		}
		if !c.CounterpartyPolicy.Equal(h.PolicySnapshot) {
			errs = append(errs, fmt.Errorf("counterparty slot differs from version %d", h.Version))
		}
	} else if len(c.History) > 0 {
		if !c.CounterpartyProvisional {
			errs = append(errs, errors.New("counterparty slot is not provisional but counterparty never proposed"))
		}
		if !c.CounterpartyPolicy.Equal(c.History[0].PolicySnapshot) {
			errs = append(errs, errors.New("provisional counterparty slot differs from the initial offer"))
		}
	}

	switch c.Status {
	case Active, Revoked:
		if c.Agreement == nil || c.Signature == nil || c.ExecutionStats == nil {
			errs = append(errs, fmt.Errorf("%s contract lacks agreement, signature or metering state", c.Status))
		}
	case Draft:
		if len(c.History) != 0 {
			errs = append(errs, errors.New("draft contract has history"))
		}
	}
	if c.ExecutionStats != nil && (c.ExecutionStats.RemainingCalls < 0 || c.ExecutionStats.TotalCalls < 0) {
		errs = append(errs, errors.New("negative execution stats"))
	}
	return errors.Join(errs...)
}

func lastBy(c Contract, p model.Party) (HistoryEntry, bool) {
	for i := len(c.History) - 1; i >= 0; i-- {
		if c.History[i].Proposer == p {
			return c.History[i], true
		}
	}
	return HistoryEntry{}, false
}
