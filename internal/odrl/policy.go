// Package odrl models ODRL-style usage policies: permissions carrying
// constraints and duties, authored against the constraint catalog and
// frozen once published.
package odrl

import (
	"time"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
)

// Context is the JSON-LD context written into every exported policy.
const Context = "http://www.w3.org/ns/odrl.jsonld"

// Profile identifies the pactline ODRL profile.
const Profile = "https://pactline.dev/odrl/profile/v1"

// Status is the lifecycle status of a policy.
type Status string

const (
	StatusActive   Status = "Active"
	StatusDisabled Status = "Disabled"
)

// Type is the ODRL policy subclass.
type Type string

const (
	TypeSet       Type = "Set"
	TypeOffer     Type = "Offer"
	TypeAgreement Type = "Agreement"
)

// Constraint is a catalog key instantiated inside a permission or duty.
// Dimension is a snapshot taken when the constraint was added.
type Constraint struct {
	LeftOperand        string            `json:"leftOperand"`
	Operator           Operator          `json:"operator,omitempty"`
	RightOperand       model.Value       `json:"rightOperand,omitzero"`
	Mode               catalog.Mode      `json:"mode,omitempty"`
	Dimension          catalog.Dimension `json:"dimension,omitempty"`
	NegotiationOptions *catalog.Bounds   `json:"negotiationOptions,omitempty"`
	Comment            string            `json:"comment,omitempty"`
}

// Duty is an obligation attached to a permission.
type Duty struct {
	Action     string       `json:"action"`
	Target     string       `json:"target,omitempty"`
	Constraint []Constraint `json:"constraint,omitempty"`
}

// Permission grants an action on a target under constraints and duties.
type Permission struct {
	Action     string       `json:"action"`
	Target     string       `json:"target,omitempty"`
	Constraint []Constraint `json:"constraint"`
	Duty       []Duty       `json:"duty,omitempty"`
}

// Policy is a named, versioned bundle of permissions.
type Policy struct {
	Context     string       `json:"@context"`
	Type        Type         `json:"@type"`
	UID         string       `json:"uid"`
	Profile     string       `json:"profile,omitempty"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	Status      Status       `json:"status"`
	Priority    int          `json:"priority"`
	Version     string       `json:"version"`
	CreatedAt   time.Time    `json:"createdAt,omitzero"`
	PublishedAt *time.Time   `json:"publishedAt,omitempty"`
	DerivedFrom string       `json:"derivedFrom,omitempty"`
	Permission  []Permission `json:"permission"`
}

// Published reports whether p has been frozen.
func (p Policy) Published() bool { return p.PublishedAt != nil }

// Clone returns a deep copy of p.
func (p Policy) Clone() Policy {
	out := p
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		out.PublishedAt = &t
	}
	out.Permission = make([]Permission, len(p.Permission))
	for i, perm := range p.Permission {
		out.Permission[i] = perm.clone()
	}
	return out
}

// Constraint returns the constraint for key in the first permission.
func (p Policy) Constraint(key string) (Constraint, bool) {
	if len(p.Permission) == 0 {
		return Constraint{}, false
	}
	for _, c := range p.Permission[0].Constraint {
		if c.LeftOperand == key {
			return c.clone(), true
		}
	}
	return Constraint{}, false
}

func (perm Permission) clone() Permission {
	out := perm
	out.Constraint = cloneConstraints(perm.Constraint)
	if perm.Duty != nil {
		out.Duty = make([]Duty, len(perm.Duty))
		for i, d := range perm.Duty {
			out.Duty[i] = Duty{Action: d.Action, Target: d.Target, Constraint: cloneConstraints(d.Constraint)}
		}
	}
	return out
}

func (c Constraint) clone() Constraint {
	out := c
	out.RightOperand = c.RightOperand.Clone()
	out.NegotiationOptions = c.NegotiationOptions.Clone()
	return out
}

func cloneConstraints(in []Constraint) []Constraint {
	if in == nil {
		return nil
	}
	out := make([]Constraint, len(in))
	for i, c := range in {
		out[i] = c.clone()
	}
	return out
}
