package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Shape is the encoded form of a Value.
type Shape int

const (
	ShapeNone Shape = iota
	ShapeText
	ShapeNumber
	ShapeList
)

func (s Shape) String() string {
	switch s {
	case ShapeText:
		return "text"
	case ShapeNumber:
		return "number"
	case ShapeList:
		return "list"
	default:
		return "none"
	}
}

// Value is a constraint right operand: text, number or list of strings.
// Dates and enum members are carried as text. The zero Value is "unset".
type Value struct {
	shape Shape
	text  string
	num   float64
	list  []string
}

// Text returns a text Value.
func Text(s string) Value { return Value{shape: ShapeText, text: s} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{shape: ShapeNumber, num: n} }

// List returns a list Value.
func List(items ...string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{shape: ShapeList, list: cp}
}

// Shape reports how the value is encoded.
func (v Value) Shape() Shape { return v.shape }

// IsZero reports whether the value is unset.
func (v Value) IsZero() bool { return v.shape == ShapeNone }

// Float returns the numeric reading of v. Text that parses as a number
// counts as numeric.
func (v Value) Float() (float64, bool) {
	switch v.shape {
	case ShapeNumber:
		return v.num, true
	case ShapeText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int returns the value as a whole number when it is one and fits an
// int64.
func (v Value) Int() (int64, bool) {
	f, ok := v.Float()
	if !ok || f != math.Trunc(f) || f >= maxInt64Float || f < -maxInt64Float {
		return 0, false
	}
	return int64(f), true
}

// maxInt64Float is 2^63, the first float64 above math.MaxInt64.
const maxInt64Float = float64(1 << 63)

// Items returns the list reading of v. Text is split on commas.
func (v Value) Items() []string {
	switch v.shape {
	case ShapeList:
		cp := make([]string, len(v.list))
		copy(cp, v.list)
		return cp
	case ShapeText:
		var out []string
		for _, part := range strings.Split(v.text, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	case ShapeNumber:
		return []string{v.String()}
	default:
		return nil
	}
}

// String renders v for display and comparison.
func (v Value) String() string {
	switch v.shape {
	case ShapeText:
		return v.text
	case ShapeNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ShapeList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

// Equal compares by value: numbers numerically, lists element-wise,
// everything else by its text form.
func (v Value) Equal(o Value) bool {
	if v.shape == ShapeNone || o.shape == ShapeNone {
		return v.shape == o.shape
	}
	if v.shape == ShapeList || o.shape == ShapeList {
		a, b := v.Items(), o.Items()
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if a[i] != b[i] {
				return false
			}
		}
		return true
	}
	if a, ok := v.Float(); ok {
		if b, ok := o.Float(); ok {
			return a == b
		}
	}
	return v.String() == o.String()
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	if v.shape == ShapeList {
		return List(v.list...)
	}
	return v
}

func (v Value) native() any {
	switch v.shape {
	case ShapeText:
		return v.text
	case ShapeNumber:
		return v.num
	case ShapeList:
		cp := make([]string, len(v.list))
		copy(cp, v.list)
		return cp
	default:
		return nil
	}
}

// MarshalJSON encodes v as a JSON string, number, array or null.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.native())
}

// UnmarshalJSON accepts strings, numbers, booleans, string arrays and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := fromNative(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML encodes v as a YAML scalar or sequence.
func (v Value) MarshalYAML() (any, error) {
	return v.native(), nil
}

// UnmarshalYAML keeps numeric scalars numeric and everything else as text.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!null":
			*v = Value{}
		case "!!int", "!!float":
			f, err := strconv.ParseFloat(node.Value, 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
			}
			*v = Number(f)
		default:
			*v = Text(node.Value)
		}
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(node.Content))
		for _, c := range node.Content {
			if c.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list items must be scalars", c.Line)
			}
			items = append(items, c.Value)
		}
		*v = List(items...)
		return nil
	default:
		return fmt.Errorf("line %d: unsupported value", node.Line)
	}
}

func fromNative(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return Text(t), nil
	case float64:
		return Number(t), nil
	case bool:
		return Text(strconv.FormatBool(t)), nil
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			switch it := item.(type) {
			case string:
				items = append(items, it)
			case float64:
				items = append(items, strconv.FormatFloat(it, 'f', -1, 64))
			default:
				return Value{}, fmt.Errorf("unsupported list item %T", item)
			}
		}
		return List(items...), nil
	default:
		return Value{}, fmt.Errorf("unsupported value %T", raw)
	}
}
