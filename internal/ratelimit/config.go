package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/pactline/internal/model"
)

// FrequencyKey is the agreed constraint that sets the call rate.
const FrequencyKey = "frequency"

// Frequency is an agreed call rate such as 100 per minute.
type Frequency struct {
	Count int
	Per   time.Duration
}

// IsZero reports whether no rate is set.
func (f Frequency) IsZero() bool { return f.Count <= 0 || f.Per <= 0 }

func (f Frequency) String() string {
	if f.IsZero() {
		return "unlimited"
	}
	return fmt.Sprintf("%d/%s", f.Count, f.Per)
}

var units = map[string]time.Duration{
	"s":      time.Second,
	"sec":    time.Second,
	"second": time.Second,
	"m":      time.Minute,
	"min":    time.Minute,
	"minute": time.Minute,
	"h":      time.Hour,
	"hour":   time.Hour,
	"d":      24 * time.Hour,
	"day":    24 * time.Hour,
}

// ParseFrequency parses "N/unit" where unit is s, min, hour or day.
func ParseFrequency(s string) (Frequency, error) {
	count, unit, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Frequency{}, model.Errorf(model.KindInvalidArgument, "frequency %q: want N/unit", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return Frequency{}, model.Errorf(model.KindInvalidArgument, "frequency %q: count must be a positive integer", s)
	}
	per, ok := units[strings.ToLower(strings.TrimSuffix(strings.TrimSpace(unit), "s"))]
	if !ok {
		per, ok = units[strings.ToLower(strings.TrimSpace(unit))]
	}
	if !ok {
		return Frequency{}, model.Errorf(model.KindInvalidArgument, "frequency %q: unknown unit %q", s, unit)
	}
	return Frequency{Count: n, Per: per}, nil
}

// FromTerms reads the frequency constraint from agreed terms. Absent means
// no limit.
func FromTerms(t model.Terms) (Frequency, error) {
	v := t.Get(FrequencyKey)
	if v.IsZero() {
		return Frequency{}, nil
	}
	return ParseFrequency(v.String())
}
