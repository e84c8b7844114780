package model

import "sort"

// Terms is the simplified {actions, constraints} pair held by each contract
// slot and each history snapshot.
type Terms struct {
	Actions     []string         `json:"actions" yaml:"actions"`
	Constraints map[string]Value `json:"constraints" yaml:"constraints"`
}

// Clone returns a deep copy of t.
func (t Terms) Clone() Terms {
	out := Terms{Constraints: make(map[string]Value, len(t.Constraints))}
	if t.Actions != nil {
		out.Actions = make([]string, len(t.Actions))
		copy(out.Actions, t.Actions)
	}
	for k, v := range t.Constraints {
		out.Constraints[k] = v.Clone()
	}
	return out
}

// Equal reports value-level equality. Action order is significant;
// unset constraint values are treated as absent.
func (t Terms) Equal(o Terms) bool {
	if len(t.Actions) != len(o.Actions) {
		return false
	}
	for i := range t.Actions {
		if t.Actions[i] != o.Actions[i] {
			return false
		}
	}
	a, b := t.present(), o.present()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// Get returns the value for key, or the zero Value.
func (t Terms) Get(key string) Value {
	return t.Constraints[key]
}

// Keys returns the constraint keys that carry a value, sorted.
func (t Terms) Keys() []string {
	keys := make([]string, 0, len(t.Constraints))
	for k, v := range t.Constraints {
		if !v.IsZero() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (t Terms) present() map[string]Value {
	out := make(map[string]Value, len(t.Constraints))
	for k, v := range t.Constraints {
		if !v.IsZero() {
			out[k] = v
		}
	}
	return out
}
