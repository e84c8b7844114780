package contract

import (
	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/odrl"
)

// Seed carries the terms and schedule derived from a published policy.
type Seed struct {
	PolicyRef string
	Terms     model.Terms
	Modes     map[string]catalog.Mode
	Ranges    map[string]*catalog.Bounds
}

// Apply copies the seed into p.
func (s Seed) Apply(p CreateParams) CreateParams {
	p.PolicyRef = s.PolicyRef
	p.Terms = s.Terms.Clone()
	p.Modes = s.Modes
	p.Ranges = s.Ranges
	return p
}

// TermsFromPolicy reads the first permission of a published policy. Modes
// and ranges come from the constraint snapshots, not the current catalog;
// the catalog is only used to reject keys it no longer knows.
func TermsFromPolicy(cat *catalog.Catalog, p odrl.Policy) (Seed, error) {
	if !p.Published() {
		return Seed{}, model.Errorf(model.KindIllegalTransition, "policy %s is not published", p.UID)
	}
	if len(p.Permission) == 0 {
		return Seed{}, model.Errorf(model.KindInvalidArgument, "policy %s has no permission", p.UID)
	}
	perm := p.Permission[0]
	s := Seed{
		PolicyRef: p.UID + "@" + p.Version,
		Terms:     model.Terms{Actions: []string{perm.Action}, Constraints: map[string]model.Value{}},
		Modes:     map[string]catalog.Mode{},
		Ranges:    map[string]*catalog.Bounds{},
	}
	for _, c := range perm.Constraint {
		if _, err := cat.Lookup(c.LeftOperand); err != nil {
			return Seed{}, err
		}
		if c.Mode != "" {
			s.Modes[c.LeftOperand] = c.Mode
		}
		if c.Mode != catalog.Injected {
			s.Terms.Constraints[c.LeftOperand] = c.RightOperand.Clone()
		}
		if c.Mode == catalog.Negotiable && c.NegotiationOptions != nil {
			s.Ranges[c.LeftOperand] = c.NegotiationOptions.Clone()
		}
	}
	return s, nil
}
