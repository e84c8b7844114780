package contract

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/termdiff"
	"github.com/ppiankov/pactline/internal/validate"
)

// Default history comments.
const (
	CommentInitialOffer = "Initial offer"
	CommentUpdate       = "Update negotiable terms"
)

// CreateParams describes a new contract. Modes and Ranges override the
// catalog default mode per key; a key scheduled only through Modes may
// carry no value when its mode is Injected.
type CreateParams struct {
	ID               string
	Name             string
	Description      string
	ProductRef       string
	PolicyRef        string
	Role             model.Role
	SignatoryDID     string
	CounterpartyName string
	CounterpartyDID  string
	Terms            model.Terms
	Modes            map[string]catalog.Mode
	Ranges           map[string]*catalog.Bounds
}

// Create builds a Draft contract at version 0 with an empty history. The
// schedule is fixed here and never changes afterwards.
func Create(cat *catalog.Catalog, p CreateParams, now time.Time) (Contract, error) {
	col := validate.NewCollector(cat)
	if strings.TrimSpace(p.ProductRef) == "" {
		col.Add("productRef", model.FieldError(model.KindInvalidArgument, "productRef", "product reference is required", ""))
	}
	if p.Role != model.Consumer && p.Role != model.Provider {
		col.Add("role", model.FieldError(model.KindInvalidArgument, "role", "role must be Consumer or Provider", ""))
	}
	if p.SignatoryDID == "" {
		col.Add("signatoryDid", model.FieldError(model.KindInvalidArgument, "signatoryDid", "signatory DID is required", ""))
	}
	if p.CounterpartyDID == "" {
		col.Add("counterpartyDid", model.FieldError(model.KindInvalidArgument, "counterpartyDid", "counterparty DID is required", ""))
	}
	if len(p.Terms.Actions) == 0 {
		col.Add("actions", model.FieldError(model.KindInvalidArgument, "actions", "at least one action is required", ""))
	}

	keys := make(map[string]struct{})
	for k, v := range p.Terms.Constraints {
		if !v.IsZero() {
			keys[k] = struct{}{}
		}
	}
	for k := range p.Modes {
		keys[k] = struct{}{}
	}
	for k := range p.Ranges {
		keys[k] = struct{}{}
	}

	schedule := make(map[string]TermRule, len(keys))
	terms := model.Terms{Actions: append([]string(nil), p.Terms.Actions...), Constraints: map[string]model.Value{}}
	for k := range keys {
		def, err := cat.Lookup(k)
		if err != nil {
			col.Add(k, model.FieldError(model.KindNotFound, k, "unknown constraint key", ""))
			continue
		}
		mode := def.DefaultMode
		if m, ok := p.Modes[k]; ok {
			mode = m
		}
		rng := p.Ranges[k]
		if rng != nil && mode != catalog.Negotiable {
			col.Add(k, model.FieldError(model.KindInvalidArgument, k, "negotiation range only applies to Negotiable terms", ""))
			continue
		}
		if rng != nil && rng.Min != nil && rng.Max != nil && *rng.Min > *rng.Max {
			col.Add(k, model.FieldError(model.KindInvalidArgument, k, "negotiation range min exceeds max", ""))
			continue
		}
		v := p.Terms.Get(k)
		if mode != catalog.Injected && v.IsZero() {
			col.Add(k, model.FieldError(model.KindOutOfBounds, k, "value is required", ""))
			continue
		}
		col.Check(k, mode, v, rng)
		schedule[k] = TermRule{Mode: mode, Range: rng.Clone()}
		if mode != catalog.Injected {
			terms.Constraints[k] = v.Clone()
		}
	}
	if err := col.Err(); err != nil {
		return Contract{}, err
	}

	id := p.ID
	if id == "" {
		id = "ctr-" + uuid.New().String()
	}
	ts := now.UTC()
	return Contract{
		ID:               id,
		Name:             p.Name,
		Description:      p.Description,
		ProductRef:       p.ProductRef,
		PolicyRef:        p.PolicyRef,
		Role:             p.Role,
		SignatoryDID:     p.SignatoryDID,
		CounterpartyName: p.CounterpartyName,
		CounterpartyDID:  p.CounterpartyDID,
		Status:           Draft,
		Schedule:         schedule,
		MyPolicy:         terms,
		History:          []HistoryEntry{},
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}, nil
}

// Submit opens negotiation: history version 1 is my draft, and the
// counterparty slot is seeded with a provisional copy of it.
func Submit(c Contract, now time.Time) (Contract, error) {
	if c.Status != Draft {
		return c, illegal(c, "submit")
	}
	out := c.Clone()
	ts := now.UTC()
	snapshot := out.MyPolicy.Clone()
	out.History = append(out.History, HistoryEntry{
		Version:        1,
		Proposer:       model.Me,
		Timestamp:      ts,
		Comment:        CommentInitialOffer,
		PolicySnapshot: snapshot,
		Changes:        termdiff.Diff(out.Modes(), model.Terms{}, snapshot),
	})
	out.Version = 1
	out.CounterpartyPolicy = snapshot.Clone()
	out.CounterpartyProvisional = true
	out.Status = Negotiating
	out.UpdatedAt = ts
	return out, nil
}

// Terminate abandons a contract that is still being negotiated or awaits
// signature.
func Terminate(c Contract, reason string, now time.Time) (Contract, error) {
	if c.Status != Negotiating && c.Status != PendingSignature {
		return c, illegal(c, "terminate")
	}
	return closeWith(c, Terminated, reason, now), nil
}

// Revoke ends an Active contract. Metering stops.
func Revoke(c Contract, reason string, now time.Time) (Contract, error) {
	if c.Status != Active {
		return c, illegal(c, "revoke")
	}
	return closeWith(c, Revoked, reason, now), nil
}

func closeWith(c Contract, status Status, reason string, now time.Time) Contract {
	out := c.Clone()
	out.Status = status
	out.ClosedReason = reason
	out.UpdatedAt = now.UTC()
	return out
}
