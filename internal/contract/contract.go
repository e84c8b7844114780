// Package contract implements the negotiation state machine as pure
// functions: each transition takes a Contract value and returns a new one,
// leaving the input untouched on both success and failure.
package contract

import (
	"time"

	"github.com/ppiankov/pactline/internal/budget"
	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/signing"
	"github.com/ppiankov/pactline/internal/termdiff"
)

// Status is a contract lifecycle state.
type Status string

const (
	Draft            Status = "Draft"
	Negotiating      Status = "Negotiating"
	PendingSignature Status = "PendingSignature"
	Active           Status = "Active"
	Terminated       Status = "Terminated"
	Revoked          Status = "Revoked"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == Terminated || s == Revoked
}

// TermRule fixes how one key may be negotiated for the life of a contract.
type TermRule struct {
	Mode  catalog.Mode    `json:"mode"`
	Range *catalog.Bounds `json:"range,omitempty"`
}

// HistoryEntry records one accepted proposal.
type HistoryEntry struct {
	Version        int               `json:"version"`
	Proposer       model.Party       `json:"proposer"`
	Timestamp      time.Time         `json:"timestamp"`
	Comment        string            `json:"comment"`
	PolicySnapshot model.Terms       `json:"policySnapshot"`
	Changes        []termdiff.Change `json:"changes,omitempty"`
}

// Contract is the negotiation unit between two parties.
type Contract struct {
	ID                      string                 `json:"id"`
	Name                    string                 `json:"name"`
	Description             string                 `json:"description,omitempty"`
	ProductRef              string                 `json:"productRef"`
	PolicyRef               string                 `json:"policyRef,omitempty"`
	Role                    model.Role             `json:"role"`
	SignatoryDID            string                 `json:"signatoryDid"`
	CounterpartyName        string                 `json:"counterpartyName"`
	CounterpartyDID         string                 `json:"counterpartyDid"`
	Status                  Status                 `json:"status"`
	Version                 int                    `json:"version"`
	Revision                int64                  `json:"revision"`
	Schedule                map[string]TermRule    `json:"schedule"`
	MyPolicy                model.Terms            `json:"myPolicy"`
	CounterpartyPolicy      model.Terms            `json:"counterpartyPolicy"`
	CounterpartyProvisional bool                   `json:"counterpartyProvisional"`
	History                 []HistoryEntry         `json:"history"`
	Agreement               *model.Terms           `json:"agreement,omitempty"`
	Signature               *signing.Signature     `json:"signature,omitempty"`
	ExecutionStats          *budget.ExecutionStats `json:"executionStats,omitempty"`
	CreatedAt               time.Time              `json:"createdAt"`
	UpdatedAt               time.Time              `json:"updatedAt"`
	ClosedReason            string                 `json:"closedReason,omitempty"`
}

// Clone returns a deep copy of c.
func (c Contract) Clone() Contract {
	out := c
	if c.Schedule != nil {
		out.Schedule = make(map[string]TermRule, len(c.Schedule))
		for k, r := range c.Schedule {
			out.Schedule[k] = TermRule{Mode: r.Mode, Range: r.Range.Clone()}
		}
	}
	out.MyPolicy = c.MyPolicy.Clone()
	out.CounterpartyPolicy = c.CounterpartyPolicy.Clone()
	if c.History != nil {
		out.History = make([]HistoryEntry, len(c.History))
		for i, h := range c.History {
			h.PolicySnapshot = h.PolicySnapshot.Clone()
			h.Changes = append([]termdiff.Change(nil), h.Changes...)
			out.History[i] = h
		}
	}
	if c.Agreement != nil {
		a := c.Agreement.Clone()
		out.Agreement = &a
	}
	if c.Signature != nil {
		s := *c.Signature
		out.Signature = &s
	}
	if c.ExecutionStats != nil {
		s := c.ExecutionStats.Clone()
		out.ExecutionStats = &s
	}
	return out
}

// Modes returns the schedule's key → mode map.
func (c Contract) Modes() map[string]catalog.Mode {
	out := make(map[string]catalog.Mode, len(c.Schedule))
	for k, r := range c.Schedule {
		out[k] = r.Mode
	}
	return out
}

// Latest returns the snapshot of the most recent history entry.
func (c Contract) Latest() (HistoryEntry, bool) {
	if len(c.History) == 0 {
		return HistoryEntry{}, false
	}
	return c.History[len(c.History)-1], true
}

// Slot returns the terms currently held by party.
func (c Contract) Slot(p model.Party) model.Terms {
	if p == model.Counterparty {
		return c.CounterpartyPolicy
	}
	return c.MyPolicy
}

// Identity returns the immutable DID of party.
func (c Contract) Identity(p model.Party) string {
	if p == model.Counterparty {
		return c.CounterpartyDID
	}
	return c.SignatoryDID
}

// Diff compares the counterparty's position with mine. While the
// counterparty slot still holds the submit-time seed the base is empty, so
// every negotiable value shows as new.
func (c Contract) Diff() *termdiff.Result {
	base := c.CounterpartyPolicy
	if c.CounterpartyProvisional {
		base = model.Terms{}
	}
	r := termdiff.Compare(c.Modes(), base, c.MyPolicy)
	r.Base, r.Candidate = string(model.Counterparty), string(model.Me)
	return r
}

func (c Contract) originTerms() model.Terms {
	if len(c.History) > 0 {
		return c.History[0].PolicySnapshot
	}
	return c.MyPolicy
}

func illegal(c Contract, op string) error {
	return model.Errorf(model.KindIllegalTransition, "cannot %s contract %s in status %s", op, c.ID, c.Status)
}
