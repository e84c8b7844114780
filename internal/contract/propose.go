package contract

import (
	"time"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/termdiff"
	"github.com/ppiankov/pactline/internal/validate"
)

// Proposal is one party's full counter-offer against a known version.
type Proposal struct {
	Proposer    model.Party `json:"proposer"`
	BaseVersion int         `json:"baseVersion"`
	Terms       model.Terms `json:"terms"`
	Comment     string      `json:"comment,omitempty"`
}

// Propose validates p against the schedule and, on success, records it as
// the next version. Every failing key is reported together. On error the
// input contract is returned unchanged.
func Propose(cat *catalog.Catalog, c Contract, p Proposal, now time.Time) (Contract, error) {
	if c.Status != Negotiating {
		return c, illegal(c, "propose on")
	}
	if p.Proposer != model.Me && p.Proposer != model.Counterparty {
		return c, model.Errorf(model.KindInvalidArgument, "unknown proposer %q", p.Proposer)
	}
	if p.BaseVersion != c.Version {
		return c, model.Errorf(model.KindVersionConflict,
			"proposal is based on version %d but contract %s is at version %d", p.BaseVersion, c.ID, c.Version)
	}
	if err := CheckTerms(cat, c, p.Terms); err != nil {
		return c, err
	}

	out := c.Clone()
	ts := now.UTC()
	snapshot := p.Terms.Clone()
	prev, _ := c.Latest()
	comment := p.Comment
	if comment == "" {
		comment = CommentUpdate
	}
	out.Version = c.Version + 1
	out.History = append(out.History, HistoryEntry{
		Version:        out.Version,
		Proposer:       p.Proposer,
		Timestamp:      ts,
		Comment:        comment,
		PolicySnapshot: snapshot,
		Changes:        termdiff.Diff(c.Modes(), prev.PolicySnapshot, snapshot),
	})
	if p.Proposer == model.Counterparty {
		out.CounterpartyPolicy = snapshot.Clone()
		out.CounterpartyProvisional = false
	} else {
		out.MyPolicy = snapshot.Clone()
	}
	out.UpdatedAt = ts
	return out, nil
}

// CheckTerms validates a full set of terms against the contract schedule:
// Locked keys keep the originator's value, Injected keys stay empty,
// Negotiable keys respect their ranges, and no key is added or dropped.
func CheckTerms(cat *catalog.Catalog, c Contract, t model.Terms) error {
	col := validate.NewCollector(cat)
	if len(t.Actions) == 0 {
		col.Add("actions", model.FieldError(model.KindInvalidArgument, "actions", "at least one action is required", ""))
	}
	origin := c.originTerms()

	for _, k := range t.Keys() {
		if _, scheduled := c.Schedule[k]; scheduled {
			continue
		}
		if _, err := cat.Lookup(k); err != nil {
			col.Add(k, model.FieldError(model.KindNotFound, k, "unknown constraint key", ""))
			continue
		}
		col.Add(k, model.FieldError(model.KindLockedFieldMutation, k, "term is not part of the negotiated schedule", ""))
	}

	for k, rule := range c.Schedule {
		v := t.Get(k)
		switch rule.Mode {
		case catalog.Injected:
			col.Check(k, rule.Mode, v, nil)
		case catalog.Locked:
			want := origin.Get(k)
			if !v.Equal(want) {
				col.Add(k, model.FieldError(model.KindLockedFieldMutation, k, "locked term cannot be changed", want.String()))
			}
			if !v.IsZero() {
				col.Check(k, rule.Mode, v, nil)
			}
		case catalog.Negotiable:
			if v.IsZero() {
				col.Add(k, model.FieldError(model.KindOutOfBounds, k, "negotiable term cannot be removed", ""))
				continue
			}
			col.Check(k, rule.Mode, v, rule.Range)
		}
	}
	return col.Err()
}
