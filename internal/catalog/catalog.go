package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ppiankov/pactline/internal/model"
)

// Mode classifies how a constraint value is decided.
type Mode string

const (
	Locked     Mode = "Locked"
	Negotiable Mode = "Negotiable"
	Injected   Mode = "Injected"
)

// ParseMode accepts one of the three mode names.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Locked, Negotiable, Injected:
		return Mode(s), nil
	default:
		return "", model.Errorf(model.KindInvalidArgument, "unknown mode %q", s)
	}
}

// Dimension is the presentation grouping of a constraint.
type Dimension string

const (
	Time          Dimension = "Time"
	Location      Dimension = "Location"
	Subject       Dimension = "Subject"
	Object        Dimension = "Object"
	Communication Dimension = "Communication"
	Storage       Dimension = "Storage"
)

// Dimensions lists every dimension in display order.
var Dimensions = []Dimension{Time, Location, Subject, Object, Communication, Storage}

// ValueKind is the expected shape of a constraint's right operand.
type ValueKind string

const (
	KindText   ValueKind = "text"
	KindNumber ValueKind = "number"
	KindDate   ValueKind = "date"
	KindEnum   ValueKind = "enum"
	KindList   ValueKind = "list"
)

// Text formats a text-kind key may require.
const (
	FormatFrequency = "frequency"
)

var knownFormats = map[string]bool{FormatFrequency: true}

// Runtime facts an Injected key can be bound to.
const (
	FactConnectorDID    = "connector_did"
	FactSourceIP        = "source_ip"
	FactCertFingerprint = "cert_fingerprint"
	FactRole            = "role"
)

var knownFacts = map[string]bool{
	FactConnectorDID:    true,
	FactSourceIP:        true,
	FactCertFingerprint: true,
	FactRole:            true,
}

// Bounds is an inclusive numeric interval. Either end may be open.
type Bounds struct {
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Range builds closed bounds [min, max].
func Range(min, max float64) *Bounds {
	return &Bounds{Min: &min, Max: &max}
}

// Clone returns a deep copy, or nil.
func (b *Bounds) Clone() *Bounds {
	if b == nil {
		return nil
	}
	out := &Bounds{}
	if b.Min != nil {
		v := *b.Min
		out.Min = &v
	}
	if b.Max != nil {
		v := *b.Max
		out.Max = &v
	}
	return out
}

// Narrow intersects b with r. Either may be nil.
func (b *Bounds) Narrow(r *Bounds) *Bounds {
	if b == nil {
		return r.Clone()
	}
	out := b.Clone()
	if r == nil {
		return out
	}
	if r.Min != nil && (out.Min == nil || *r.Min > *out.Min) {
		v := *r.Min
		out.Min = &v
	}
	if r.Max != nil && (out.Max == nil || *r.Max < *out.Max) {
		v := *r.Max
		out.Max = &v
	}
	return out
}

// Definition describes one constraint key.
type Definition struct {
	Key          string    `yaml:"key" json:"key"`
	Label        string    `yaml:"label,omitempty" json:"label,omitempty"`
	Description  string    `yaml:"description,omitempty" json:"description,omitempty"`
	Dimension    Dimension `yaml:"dimension" json:"dimension"`
	AllowedModes []Mode    `yaml:"allowed_modes" json:"allowedModes"`
	DefaultMode  Mode      `yaml:"default_mode" json:"defaultMode"`
	Kind         ValueKind `yaml:"kind" json:"kind"`
	Options      []string  `yaml:"options,omitempty" json:"options,omitempty"`
	Bounds       *Bounds   `yaml:"bounds,omitempty" json:"bounds,omitempty"`
	Integer      bool      `yaml:"integer,omitempty" json:"integer,omitempty"`
	Format       string    `yaml:"format,omitempty" json:"format,omitempty"`
	Required     bool      `yaml:"required,omitempty" json:"required,omitempty"`
	InjectFrom   string    `yaml:"inject_from,omitempty" json:"injectFrom,omitempty"`
}

// Allows reports whether mode is in the allowed set.
func (d Definition) Allows(mode Mode) bool {
	for _, m := range d.AllowedModes {
		if m == mode {
			return true
		}
	}
	return false
}

func (d Definition) clone() Definition {
	out := d
	out.AllowedModes = append([]Mode(nil), d.AllowedModes...)
	out.Options = append([]string(nil), d.Options...)
	out.Bounds = d.Bounds.Clone()
	return out
}

func (d Definition) check() error {
	var errs []error
	if d.Key == "" {
		return errors.New("definition with empty key")
	}
	if len(d.AllowedModes) == 0 {
		errs = append(errs, fmt.Errorf("%s: allowed_modes is empty", d.Key))
	}
	for _, m := range d.AllowedModes {
		if _, err := ParseMode(string(m)); err != nil {
			errs = append(errs, fmt.Errorf("%s: unknown mode %q", d.Key, m))
		}
	}
	if !d.Allows(d.DefaultMode) {
		errs = append(errs, fmt.Errorf("%s: default_mode %q not in allowed_modes", d.Key, d.DefaultMode))
	}
	if !validDimension(d.Dimension) {
		errs = append(errs, fmt.Errorf("%s: unknown dimension %q", d.Key, d.Dimension))
	}
	switch d.Kind {
	case KindText, KindNumber, KindDate, KindList:
	case KindEnum:
		if len(d.Options) == 0 {
			errs = append(errs, fmt.Errorf("%s: enum kind needs options", d.Key))
		}
	default:
		errs = append(errs, fmt.Errorf("%s: unknown kind %q", d.Key, d.Kind))
	}
	if d.Bounds != nil {
		if d.Kind != KindNumber {
			errs = append(errs, fmt.Errorf("%s: bounds only apply to number kind", d.Key))
		}
		if d.Bounds.Min != nil && d.Bounds.Max != nil && *d.Bounds.Min > *d.Bounds.Max {
			errs = append(errs, fmt.Errorf("%s: bounds min %v > max %v", d.Key, *d.Bounds.Min, *d.Bounds.Max))
		}
	}
	if d.Integer && d.Kind != KindNumber {
		errs = append(errs, fmt.Errorf("%s: integer only applies to number kind", d.Key))
	}
	if d.Format != "" {
		if d.Kind != KindText {
			errs = append(errs, fmt.Errorf("%s: format only applies to text kind", d.Key))
		}
		if !knownFormats[d.Format] {
			errs = append(errs, fmt.Errorf("%s: unknown format %q", d.Key, d.Format))
		}
	}
	injectable := d.Allows(Injected)
	switch {
	case injectable && d.InjectFrom == "":
		errs = append(errs, fmt.Errorf("%s: Injected mode needs inject_from", d.Key))
	case !injectable && d.InjectFrom != "":
		errs = append(errs, fmt.Errorf("%s: inject_from set but Injected mode not allowed", d.Key))
	case d.InjectFrom != "" && !knownFacts[d.InjectFrom]:
		errs = append(errs, fmt.Errorf("%s: unknown runtime fact %q", d.Key, d.InjectFrom))
	}
	return errors.Join(errs...)
}

func validDimension(d Dimension) bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// Catalog is the immutable registry of constraint definitions.
// It is safe for concurrent use.
type Catalog struct {
	defs  map[string]Definition
	order []string
}

// New validates defs and builds a Catalog. Any invariant violation is
// returned; callers treat it as fatal.
func New(defs []Definition) (*Catalog, error) {
	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	var errs []error
	for _, d := range defs {
		if err := d.check(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.defs[d.Key]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate key", d.Key))
			continue
		}
		c.defs[d.Key] = d.clone()
		c.order = append(c.order, d.Key)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// Lookup returns the definition for key or a NotFound error.
func (c *Catalog) Lookup(key string) (Definition, error) {
	d, ok := c.defs[key]
	if !ok {
		return Definition{}, model.FieldError(model.KindNotFound, key, "unknown constraint key", "")
	}
	return d.clone(), nil
}

// Keys returns every key, sorted.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.order))
	copy(keys, c.order)
	sort.Strings(keys)
	return keys
}

// Definitions returns every definition in declaration order.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.defs[k].clone())
	}
	return out
}

// ByDimension groups definitions by dimension in declaration order.
func (c *Catalog) ByDimension() map[Dimension][]Definition {
	out := make(map[Dimension][]Definition)
	for _, k := range c.order {
		d := c.defs[k]
		out[d.Dimension] = append(out[d.Dimension], d.clone())
	}
	return out
}

// Len returns the number of definitions.
func (c *Catalog) Len() int { return len(c.order) }
