package termdiff

import (
	"sort"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
)

// Change is a negotiable constraint whose value differs between two terms.
type Change struct {
	Key     string      `json:"key"`
	From    model.Value `json:"from"`
	To      model.Value `json:"to"`
	Comment string      `json:"comment,omitempty"` // "added", "removed", "raised", "lowered", "changed"
}

// ActionChange is an action present on only one side.
type ActionChange struct {
	Type   string `json:"type"` // "added", "removed"
	Action string `json:"action"`
}

// Result bundles constraint and action changes between two terms.
type Result struct {
	Base          string         `json:"base"`
	Candidate     string         `json:"candidate"`
	Changes       []Change       `json:"changes"`
	ActionChanges []ActionChange `json:"action_changes"`
	HasChanges    bool           `json:"has_changes"`
}

// Diff lists the Negotiable keys whose values differ, sorted by key.
// Locked and Injected keys are never reported, and keys absent from modes
// count as not negotiable.
func Diff(modes map[string]catalog.Mode, base, candidate model.Terms) []Change {
	keys := make(map[string]struct{})
	for _, k := range base.Keys() {
		keys[k] = struct{}{}
	}
	for _, k := range candidate.Keys() {
		keys[k] = struct{}{}
	}

	var out []Change
	for k := range keys {
		if modes[k] != catalog.Negotiable {
			continue
		}
		from, to := base.Get(k), candidate.Get(k)
		if from.Equal(to) {
			continue
		}
		out = append(out, Change{Key: k, From: from, To: to, Comment: comment(from, to)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// DiffActions reports actions added or removed, in candidate then base order.
func DiffActions(base, candidate []string) []ActionChange {
	inBase := make(map[string]bool, len(base))
	for _, a := range base {
		inBase[a] = true
	}
	inCand := make(map[string]bool, len(candidate))
	for _, a := range candidate {
		inCand[a] = true
	}

	var out []ActionChange
	for _, a := range candidate {
		if !inBase[a] {
			out = append(out, ActionChange{Type: "added", Action: a})
		}
	}
	for _, a := range base {
		if !inCand[a] {
			out = append(out, ActionChange{Type: "removed", Action: a})
		}
	}
	return out
}

// Compare runs Diff and DiffActions.
func Compare(modes map[string]catalog.Mode, base, candidate model.Terms) *Result {
	r := &Result{
		Changes:       Diff(modes, base, candidate),
		ActionChanges: DiffActions(base.Actions, candidate.Actions),
	}
	r.HasChanges = len(r.Changes) > 0 || len(r.ActionChanges) > 0
	return r
}

// CatalogModes maps every catalog key to its default mode. Used when terms
// are compared outside a contract schedule.
func CatalogModes(cat *catalog.Catalog) map[string]catalog.Mode {
	out := make(map[string]catalog.Mode, cat.Len())
	for _, d := range cat.Definitions() {
		out[d.Key] = d.DefaultMode
	}
	return out
}

func comment(from, to model.Value) string {
	switch {
	case from.IsZero():
		return "added"
	case to.IsZero():
		return "removed"
	}
	a, okA := from.Float()
	b, okB := to.Float()
	if okA && okB {
		if b > a {
			return "raised"
		}
		return "lowered"
	}
	return "changed"
}
