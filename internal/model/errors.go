package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies negotiation and validation failures.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindInvalidMode         Kind = "invalid_mode"
	KindOutOfBounds         Kind = "out_of_bounds"
	KindLockedFieldMutation Kind = "locked_field_mutation"
	KindVersionConflict     Kind = "version_conflict"
	KindIllegalTransition   Kind = "illegal_transition"
	KindQuotaExhausted      Kind = "quota_exhausted"
	KindRateLimited         Kind = "rate_limited"
	KindInvalidArgument     Kind = "invalid_argument"
)

// Sentinels for errors.Is matching. Only Kind is compared.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidMode         = &Error{Kind: KindInvalidMode}
	ErrOutOfBounds         = &Error{Kind: KindOutOfBounds}
	ErrLockedFieldMutation = &Error{Kind: KindLockedFieldMutation}
	ErrVersionConflict     = &Error{Kind: KindVersionConflict}
	ErrIllegalTransition   = &Error{Kind: KindIllegalTransition}
	ErrQuotaExhausted      = &Error{Kind: KindQuotaExhausted}
	ErrRateLimited         = &Error{Kind: KindRateLimited}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
)

// FieldErrors maps a constraint key to every error raised for it.
type FieldErrors map[string][]*Error

// Add appends err under key.
func (fe FieldErrors) Add(key string, err *Error) {
	fe[key] = append(fe[key], err)
}

// Keys returns the keys with errors in sorted order.
func (fe FieldErrors) Keys() []string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the total number of errors across all keys.
func (fe FieldErrors) Len() int {
	n := 0
	for _, errs := range fe {
		n += len(errs)
	}
	return n
}

// Error is the typed failure returned by every engine operation.
// Fields is populated when several constraint keys failed at once; in that
// case Kind, Key and Hint mirror the first failure in key order.
type Error struct {
	Kind   Kind        `json:"kind"`
	Key    string      `json:"key,omitempty"`
	Reason string      `json:"reason"`
	Hint   string      `json:"hint,omitempty"`
	Fields FieldErrors `json:"fields,omitempty"`
}

// Errorf builds an Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// FieldError builds a key-scoped Error with an optional bound hint.
func FieldError(kind Kind, key, reason, hint string) *Error {
	return &Error{Kind: kind, Key: key, Reason: reason, Hint: hint}
}

// FromFields folds a FieldErrors map into one Error, or nil when empty.
func FromFields(fe FieldErrors) *Error {
	if fe.Len() == 0 {
		return nil
	}
	keys := fe.Keys()
	first := fe[keys[0]][0]
	reason := first.Reason
	if n := fe.Len(); n > 1 {
		reason = fmt.Sprintf("%s (and %d more)", reason, n-1)
	}
	return &Error{
		Kind:   first.Kind,
		Key:    first.Key,
		Reason: reason,
		Hint:   first.Hint,
		Fields: fe,
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Key != "" {
		b.WriteString(" [")
		b.WriteString(e.Key)
		b.WriteString("]")
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Hint != "" && len(e.Fields) == 0 {
		b.WriteString(" (hint: ")
		b.WriteString(e.Hint)
		b.WriteString(")")
	}
	return b.String()
}

// Is matches on Kind, including any kind carried in Fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	for _, errs := range e.Fields {
		for _, fe := range errs {
			if fe.Kind == t.Kind {
				return true
			}
		}
	}
	return false
}

// HasKind reports whether err carries the given kind anywhere in its chain.
func HasKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

// AsError extracts the typed Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
