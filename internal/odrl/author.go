package odrl

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/validate"
)

// DefaultPriority is assigned to new drafts.
const DefaultPriority = 10

// NewDraft returns an unpublished policy with a fresh uid, version v1.0 and
// one empty "use" permission.
func NewDraft(name string, now time.Time) Policy {
	return Policy{
		Context:   Context,
		Type:      TypeSet,
		UID:       "pol-" + uuid.New().String(),
		Profile:   Profile,
		Name:      name,
		Status:    StatusDisabled,
		Priority:  DefaultPriority,
		Version:   "v1.0",
		CreatedAt: now.UTC(),
		Permission: []Permission{
			{Action: "use", Constraint: []Constraint{}},
		},
	}
}

// ConstraintUpdate carries the fields to change. Nil fields are left alone.
type ConstraintUpdate struct {
	Operator *Operator
	Value    *model.Value
	Mode     *catalog.Mode
	Range    *catalog.Bounds
	Comment  *string
}

// AddOrUpdateConstraint adds key to the first permission or updates it in
// place. New constraints start from the catalog default mode with operator
// eq and take a snapshot of the catalog dimension. p is not modified.
func AddOrUpdateConstraint(cat *catalog.Catalog, p Policy, key string, u ConstraintUpdate) (Policy, error) {
	if err := editable(p); err != nil {
		return p, err
	}
	def, err := cat.Lookup(key)
	if err != nil {
		return p, err
	}

	out := p.Clone()
	if len(out.Permission) == 0 {
		out.Permission = []Permission{{Action: "use", Constraint: []Constraint{}}}
	}
	perm := &out.Permission[0]

	idx := -1
	for i, c := range perm.Constraint {
		if c.LeftOperand == key {
			idx = i
			break
		}
	}
	var c Constraint
	if idx >= 0 {
		c = perm.Constraint[idx]
	} else {
		c = Constraint{LeftOperand: key, Operator: Eq, Mode: def.DefaultMode, Dimension: def.Dimension}
	}

	if u.Mode != nil {
		c.Mode = *u.Mode
	}
	if u.Operator != nil {
		op, err := ParseOperator(string(*u.Operator))
		if err != nil {
			return p, err
		}
		c.Operator = op
	}
	if u.Value != nil {
		c.RightOperand = u.Value.Clone()
	}
	if u.Range != nil {
		c.NegotiationOptions = u.Range.Clone()
	}
	if u.Comment != nil {
		c.Comment = *u.Comment
	}

	if c.Mode == catalog.Injected {
		if u.Value != nil && !u.Value.IsZero() {
			return p, model.FieldError(model.KindLockedFieldMutation, key,
				"injected value is supplied at runtime and cannot be authored", "")
		}
		c.Operator = ""
		c.RightOperand = model.Value{}
	} else if c.Operator == "" {
		c.Operator = Eq
	}
	if c.Mode != catalog.Negotiable {
		if u.Range != nil {
			return p, model.FieldError(model.KindInvalidArgument, key,
				"negotiation range only applies to Negotiable constraints", "")
		}
		c.NegotiationOptions = nil
	}
	if r := c.NegotiationOptions; r != nil && r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return p, model.FieldError(model.KindInvalidArgument, key,
			fmt.Sprintf("negotiation range min %v > max %v", *r.Min, *r.Max), "")
	}
	if errs := validate.Check(def, c.Mode, c.RightOperand, c.NegotiationOptions); len(errs) > 0 {
		return p, model.FromFields(model.FieldErrors{key: errs})
	}

	if idx >= 0 {
		perm.Constraint[idx] = c
	} else {
		perm.Constraint = append(perm.Constraint, c)
	}
	return out, nil
}

// RemoveConstraint drops key from the first permission. Removing an absent
// key returns NotFound.
func RemoveConstraint(p Policy, key string) (Policy, error) {
	if err := editable(p); err != nil {
		return p, err
	}
	if _, ok := p.Constraint(key); !ok {
		return p, model.FieldError(model.KindNotFound, key, "constraint not present in policy", "")
	}
	out := p.Clone()
	perm := &out.Permission[0]
	kept := perm.Constraint[:0]
	for _, c := range perm.Constraint {
		if c.LeftOperand != key {
			kept = append(kept, c)
		}
	}
	perm.Constraint = kept
	return out, nil
}

// AddDuty attaches an obligation to the first permission. Duty refinements
// are free-form operands; only their operators are checked.
func AddDuty(p Policy, d Duty) (Policy, error) {
	if err := editable(p); err != nil {
		return p, err
	}
	if d.Action == "" {
		return p, model.Errorf(model.KindInvalidArgument, "duty action is required")
	}
	refined := cloneConstraints(d.Constraint)
	for i := range refined {
		op, err := ParseOperator(string(refined[i].Operator))
		if err != nil {
			return p, err
		}
		refined[i].Operator = op
	}
	out := p.Clone()
	if len(out.Permission) == 0 {
		out.Permission = []Permission{{Action: "use", Constraint: []Constraint{}}}
	}
	out.Permission[0].Duty = append(out.Permission[0].Duty, Duty{Action: d.Action, Target: d.Target, Constraint: refined})
	return out, nil
}

// Publish freezes p and marks it Active. Every authored constraint must
// carry a valid value.
func Publish(cat *catalog.Catalog, p Policy, now time.Time) (Policy, error) {
	if err := editable(p); err != nil {
		return p, err
	}
	col := validate.NewCollector(cat)
	for _, perm := range p.Permission {
		for _, c := range perm.Constraint {
			if c.Mode != catalog.Injected && c.RightOperand.IsZero() {
				col.Add(c.LeftOperand, model.FieldError(model.KindOutOfBounds, c.LeftOperand, "value is required before publishing", ""))
				continue
			}
			col.Check(c.LeftOperand, c.Mode, c.RightOperand, c.NegotiationOptions)
		}
	}
	if err := col.Err(); err != nil {
		return p, err
	}
	out := p.Clone()
	t := now.UTC()
	out.PublishedAt = &t
	out.Status = StatusActive
	return out, nil
}

// Revise starts a new draft from a published policy: new uid, bumped minor
// version, derivedFrom set to the old uid. The old policy is untouched.
func Revise(p Policy, now time.Time) (Policy, error) {
	if !p.Published() {
		return p, model.Errorf(model.KindIllegalTransition, "policy %s is still a draft; edit it directly", p.UID)
	}
	next, err := BumpVersion(p.Version)
	if err != nil {
		return p, err
	}
	out := p.Clone()
	out.UID = "pol-" + uuid.New().String()
	out.DerivedFrom = p.UID
	out.Version = next
	out.Status = StatusDisabled
	out.CreatedAt = now.UTC()
	out.PublishedAt = nil
	return out, nil
}

// BumpVersion increments the minor component of a "vMAJOR.MINOR" version.
func BumpVersion(version string) (string, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return "", model.Errorf(model.KindInvalidArgument, "invalid policy version %q: %v", version, err)
	}
	next := v.IncMinor()
	return fmt.Sprintf("v%d.%d", next.Major(), next.Minor()), nil
}

func editable(p Policy) error {
	if p.Published() {
		return model.Errorf(model.KindIllegalTransition, "policy %s %s is published and cannot be edited; revise it", p.UID, p.Version)
	}
	return nil
}
