package validate

import (
	"errors"
	"testing"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
)

func mustLookup(t *testing.T, key string) catalog.Definition {
	t.Helper()
	d, err := catalog.Default().Lookup(key)
	if err != nil {
		t.Fatalf("lookup %s: %v", key, err)
	}
	return d
}

func TestCheckModeNotAllowed(t *testing.T) {
	def := mustLookup(t, "environment")
	errs := Check(def, catalog.Negotiable, model.Text("TEE"), nil)
	if len(errs) != 1 || errs[0].Kind != model.KindInvalidMode {
		t.Fatalf("expected single InvalidMode, got %v", errs)
	}
	if errs[0].Hint != "Locked" {
		t.Errorf("expected hint listing allowed modes, got %q", errs[0].Hint)
	}
}

func TestCheckInjectedRejectsAuthoredValue(t *testing.T) {
	def := mustLookup(t, "consumerConnectorId")
	errs := Check(def, catalog.Injected, model.Text("did:conn:me"), nil)
	if len(errs) != 1 || errs[0].Kind != model.KindLockedFieldMutation {
		t.Fatalf("expected LockedFieldMutation, got %v", errs)
	}
	if errs := Check(def, catalog.Injected, model.Value{}, nil); len(errs) != 0 {
		t.Errorf("expected empty injected value to pass, got %v", errs)
	}
}

func TestCheckNumericBounds(t *testing.T) {
	def := mustLookup(t, "usageCount")
	tests := []struct {
		value    float64
		wantHint string
	}{
		{0, "1"},
		{1, ""},
		{2500, ""},
		{5000, ""},
		{6000, "5000"},
	}
	for _, tt := range tests {
		errs := Check(def, catalog.Negotiable, model.Number(tt.value), nil)
		if tt.wantHint == "" {
			if len(errs) != 0 {
				t.Errorf("value %v: expected pass, got %v", tt.value, errs)
			}
			continue
		}
		if len(errs) != 1 || errs[0].Kind != model.KindOutOfBounds || errs[0].Hint != tt.wantHint {
			t.Errorf("value %v: expected OutOfBounds hint %s, got %v", tt.value, tt.wantHint, errs)
		}
	}
}

func TestCheckNegotiationRangeNarrowsCatalog(t *testing.T) {
	def := mustLookup(t, "usageCount")
	rng := catalog.Range(100, 6000)
	errs := Check(def, catalog.Negotiable, model.Number(50), rng)
	if len(errs) != 1 || errs[0].Hint != "100" || errs[0].Reason != "below minimum" {
		t.Errorf("expected below minimum hint 100, got %v", errs)
	}
	errs = Check(def, catalog.Negotiable, model.Number(5500), rng)
	if len(errs) != 1 || errs[0].Hint != "5000" {
		t.Errorf("expected catalog ceiling 5000 to win, got %v", errs)
	}
}

func TestCheckBothBoundsReportIndependently(t *testing.T) {
	def := catalog.Definition{
		Key: "window", Kind: catalog.KindNumber,
		AllowedModes: []catalog.Mode{catalog.Negotiable}, DefaultMode: catalog.Negotiable,
		Bounds: catalog.Range(10, 20),
	}
	// An inverted range makes both checks fire for the same value.
	errs := Check(def, catalog.Negotiable, model.Number(15), catalog.Range(16, 14))
	if len(errs) != 2 {
		t.Fatalf("expected two independent errors, got %v", errs)
	}
}

func TestCheckKindMismatch(t *testing.T) {
	tests := []struct {
		key   string
		value model.Value
	}{
		{"usageCount", model.Text("lots")},
		{"validUntil", model.Text("next tuesday")},
		{"environment", model.Text("Mainframe")},
		{"ipWhitelist", model.List()},
	}
	for _, tt := range tests {
		mode := mustLookup(t, tt.key).DefaultMode
		errs := Check(mustLookup(t, tt.key), mode, tt.value, nil)
		if len(errs) != 1 || errs[0].Kind != model.KindOutOfBounds {
			t.Errorf("%s=%v: expected OutOfBounds, got %v", tt.key, tt.value, errs)
		}
	}
}

func TestCheckEnumHintListsOptions(t *testing.T) {
	errs := Check(mustLookup(t, "environment"), catalog.Locked, model.Text("Cloud"), nil)
	if len(errs) != 1 || errs[0].Hint != "None|TEE|Sandbox|PrivacyCompute" {
		t.Errorf("unexpected enum error %v", errs)
	}
}

func TestCheckDates(t *testing.T) {
	def := mustLookup(t, "validFrom")
	for _, s := range []string{"2026-01-01", "2026-01-01T09:00:00Z"} {
		if errs := Check(def, catalog.Negotiable, model.Text(s), nil); len(errs) != 0 {
			t.Errorf("%s: expected valid date, got %v", s, errs)
		}
	}
}

func TestCheckRequired(t *testing.T) {
	def := catalog.Definition{
		Key: "purpose", Kind: catalog.KindText, Required: true,
		AllowedModes: []catalog.Mode{catalog.Locked}, DefaultMode: catalog.Locked,
	}
	errs := Check(def, catalog.Locked, model.Value{}, nil)
	if len(errs) != 1 || errs[0].Kind != model.KindOutOfBounds {
		t.Errorf("expected required error, got %v", errs)
	}
}

func TestValidateUnknownKey(t *testing.T) {
	err := Validate(catalog.Default(), "colour", catalog.Locked, model.Text("red"))
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(catalog.Default(), "usageCount", catalog.Negotiable, model.Number(1000)); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestCollectorAccumulatesAcrossKeys(t *testing.T) {
	c := NewCollector(catalog.Default())
	c.Check("usageCount", catalog.Negotiable, model.Number(6000), nil)
	c.Check("environment", catalog.Locked, model.Text("Cloud"), nil)
	c.Check("validFrom", catalog.Negotiable, model.Text("2026-01-01"), nil)
	c.Check("colour", catalog.Locked, model.Text("red"), nil)

	if got := len(c.Fields()); got != 3 {
		t.Fatalf("expected 3 failing keys, got %d: %v", got, c.Fields())
	}
	err := c.Err()
	if !errors.Is(err, model.ErrOutOfBounds) || !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected aggregated kinds, got %v", err)
	}
}

func TestCollectorEmptyIsNil(t *testing.T) {
	c := NewCollector(catalog.Default())
	c.Check("usageCount", catalog.Negotiable, model.Number(10), nil)
	if err := c.Err(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestCheckWholeNumberQuotas(t *testing.T) {
	tests := []struct {
		key   string
		value model.Value
		ok    bool
	}{
		{"usageCount", model.Number(2000), true},
		{"usageCount", model.Text("2000"), true},
		{"usageCount", model.Number(2000.5), false},
		{"usageCount", model.Text("12.25"), false},
		{"count", model.Number(1_000_000), true},
		{"count", model.Number(catalog.MaxQuota), true},
		{"count", model.Number(1e19), false},
		{"count", model.Number(0.5), false},
	}
	for _, tt := range tests {
		errs := Check(mustLookup(t, tt.key), catalog.Locked, tt.value, nil)
		if tt.ok {
			if len(errs) != 0 {
				t.Errorf("%s=%s: expected pass, got %v", tt.key, tt.value, errs)
			}
			continue
		}
		if len(errs) == 0 {
			t.Errorf("%s=%s: expected rejection", tt.key, tt.value)
		}
		for _, e := range errs {
			if e.Kind != model.KindOutOfBounds {
				t.Errorf("%s=%s: expected OutOfBounds, got %v", tt.key, tt.value, e)
			}
		}
	}
}

func TestCheckFrequencyFormat(t *testing.T) {
	def := mustLookup(t, "frequency")
	for _, s := range []string{"100/min", "10/s", "1000/hour", "5000/day"} {
		if errs := Check(def, catalog.Locked, model.Text(s), nil); len(errs) != 0 {
			t.Errorf("%q: expected pass, got %v", s, errs)
		}
	}
	for _, s := range []string{"lots", "0/min", "10/fortnight", "ten/s"} {
		errs := Check(def, catalog.Negotiable, model.Text(s), nil)
		if len(errs) != 1 || errs[0].Kind != model.KindOutOfBounds || errs[0].Hint == "" {
			t.Errorf("%q: expected OutOfBounds with hint, got %v", s, errs)
		}
	}
}
