// Package validate decides whether a constraint value is acceptable for a
// catalog key in a given mode. Every function is pure over the immutable
// catalog and safe to call concurrently.
package validate

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/ratelimit"
)

// Date layouts accepted for date-kind values.
var dateLayouts = []string{"2006-01-02", time.RFC3339}

// Check runs every rule for def and returns all failures. rng is the
// originator's negotiation range and only applies in Negotiable mode.
func Check(def catalog.Definition, mode catalog.Mode, v model.Value, rng *catalog.Bounds) []*model.Error {
	key := def.Key
	if !def.Allows(mode) {
		return []*model.Error{model.FieldError(model.KindInvalidMode, key,
			"mode "+string(mode)+" not allowed", joinModes(def.AllowedModes))}
	}
	if mode == catalog.Injected {
		if !v.IsZero() {
			return []*model.Error{model.FieldError(model.KindLockedFieldMutation, key,
				"injected value is supplied at runtime and cannot be authored", "")}
		}
		return nil
	}
	if v.IsZero() {
		if def.Required {
			return []*model.Error{model.FieldError(model.KindOutOfBounds, key, "value is required", "")}
		}
		return nil
	}

	var errs []*model.Error
	switch def.Kind {
	case catalog.KindNumber:
		n, ok := v.Float()
		if !ok {
			return []*model.Error{model.FieldError(model.KindOutOfBounds, key,
				"not a number: "+strconv.Quote(v.String()), "")}
		}
		if def.Integer {
			if _, whole := v.Int(); !whole {
				errs = append(errs, model.FieldError(model.KindOutOfBounds, key,
					"not a whole number: "+strconv.Quote(v.String()), "integer"))
			}
		}
		bounds := def.Bounds
		if mode == catalog.Negotiable {
			bounds = bounds.Narrow(rng)
		}
		if bounds != nil {
			if bounds.Min != nil && n < *bounds.Min {
				errs = append(errs, model.FieldError(model.KindOutOfBounds, key,
					"below minimum", formatFloat(*bounds.Min)))
			}
			if bounds.Max != nil && n > *bounds.Max {
				errs = append(errs, model.FieldError(model.KindOutOfBounds, key,
					"exceeds provider-set ceiling", formatFloat(*bounds.Max)))
			}
		}
	case catalog.KindDate:
		if _, ok := ParseDate(v.String()); !ok {
			errs = append(errs, model.FieldError(model.KindOutOfBounds, key,
				"not a date: "+strconv.Quote(v.String()), "YYYY-MM-DD"))
		}
	case catalog.KindEnum:
		if !contains(def.Options, v.String()) {
			errs = append(errs, model.FieldError(model.KindOutOfBounds, key,
				strconv.Quote(v.String())+" is not an allowed option", strings.Join(def.Options, "|")))
		}
	case catalog.KindText:
		if err := checkFormat(def.Format, v.String()); err != nil {
			errs = append(errs, model.FieldError(model.KindOutOfBounds, key, err.Error(), formatHint(def.Format)))
		}
	case catalog.KindList:
		if len(v.Items()) == 0 {
			errs = append(errs, model.FieldError(model.KindOutOfBounds, key, "list is empty", ""))
		}
	}
	return errs
}

// Validate looks key up in cat and checks v against it. Multiple failures
// for the key are folded into one error carrying Fields.
func Validate(cat *catalog.Catalog, key string, mode catalog.Mode, v model.Value) error {
	def, err := cat.Lookup(key)
	if err != nil {
		return err
	}
	errs := Check(def, mode, v, nil)
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	fe := model.FieldErrors{key: errs}
	return model.FromFields(fe)
}

// ParseDate accepts YYYY-MM-DD or RFC 3339.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// checkFormat applies the grammar named by a text key's format.
func checkFormat(format, s string) error {
	switch format {
	case catalog.FormatFrequency:
		_, err := ratelimit.ParseFrequency(s)
		if e, ok := model.AsError(err); ok {
			return errors.New(e.Reason)
		}
		return err
	default:
		return nil
	}
}

func formatHint(format string) string {
	if format == catalog.FormatFrequency {
		return "N/unit (s, min, hour, day)"
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func joinModes(modes []catalog.Mode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, "|")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
