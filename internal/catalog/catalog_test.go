package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/pactline/internal/model"
)

func TestDefaultCatalogIsConsistent(t *testing.T) {
	c := Default()
	if c.Len() != 27 {
		t.Errorf("expected 27 built-in keys, got %d", c.Len())
	}
	for _, key := range []string{"count", "frequency", "usageCount", "environment", "consumerConnectorId", "storageDuration"} {
		if _, err := c.Lookup(key); err != nil {
			t.Errorf("expected %s in built-in catalog: %v", key, err)
		}
	}
}

func TestLookupUnknownKey(t *testing.T) {
	_, err := Default().Lookup("colour")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	c := Default()
	d, _ := c.Lookup("environment")
	d.Options[0] = "mutated"
	again, _ := c.Lookup("environment")
	if again.Options[0] != "None" {
		t.Errorf("catalog mutated through Lookup: %v", again.Options)
	}
}

func TestUsageCountBounds(t *testing.T) {
	d, err := Default().Lookup("usageCount")
	if err != nil {
		t.Fatal(err)
	}
	if d.DefaultMode != Negotiable || d.Kind != KindNumber {
		t.Errorf("unexpected usageCount definition: %+v", d)
	}
	if *d.Bounds.Min != 1 || *d.Bounds.Max != 5000 {
		t.Errorf("expected bounds 1-5000, got %v-%v", *d.Bounds.Min, *d.Bounds.Max)
	}
}

func TestQuotaKeysAreWholeAndCapped(t *testing.T) {
	c := Default()
	for _, key := range []string{"usageCount", "count"} {
		d, _ := c.Lookup(key)
		if !d.Integer || d.Bounds == nil || d.Bounds.Max == nil || *d.Bounds.Max > MaxQuota {
			t.Errorf("%s: expected a capped whole-number quota, got %+v", key, d)
		}
	}
	if d, _ := c.Lookup("frequency"); d.Format != FormatFrequency {
		t.Errorf("expected frequency to carry its format, got %q", d.Format)
	}
}

func TestByDimensionGroupsEveryKey(t *testing.T) {
	c := Default()
	groups := c.ByDimension()
	total := 0
	for _, dim := range Dimensions {
		for _, d := range groups[dim] {
			if d.Dimension != dim {
				t.Errorf("%s grouped under %s", d.Key, dim)
			}
			total++
		}
	}
	if total != c.Len() {
		t.Errorf("grouped %d definitions, catalog has %d", total, c.Len())
	}
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want string
	}{
		{"empty modes", Definition{Key: "a", Dimension: Time, Kind: KindText, DefaultMode: Locked}, "allowed_modes is empty"},
		{"default outside allowed", Definition{Key: "a", Dimension: Time, Kind: KindText, AllowedModes: []Mode{Locked}, DefaultMode: Negotiable}, "default_mode"},
		{"enum without options", Definition{Key: "a", Dimension: Time, Kind: KindEnum, AllowedModes: []Mode{Locked}, DefaultMode: Locked}, "needs options"},
		{"bounds on text", Definition{Key: "a", Dimension: Time, Kind: KindText, AllowedModes: []Mode{Locked}, DefaultMode: Locked, Bounds: Range(1, 2)}, "number kind only"},
		{"inverted bounds", Definition{Key: "a", Dimension: Time, Kind: KindNumber, AllowedModes: []Mode{Negotiable}, DefaultMode: Negotiable, Bounds: Range(5, 1)}, "min 5 > max 1"},
		{"injected without source", Definition{Key: "a", Dimension: Subject, Kind: KindText, AllowedModes: []Mode{Injected}, DefaultMode: Injected}, "needs inject_from"},
		{"unknown fact", Definition{Key: "a", Dimension: Subject, Kind: KindText, AllowedModes: []Mode{Injected}, DefaultMode: Injected, InjectFrom: "hostname"}, "unknown runtime fact"},
		{"unknown dimension", Definition{Key: "a", Dimension: "Mood", Kind: KindText, AllowedModes: []Mode{Locked}, DefaultMode: Locked}, "unknown dimension"},
		{"integer on text", Definition{Key: "a", Dimension: Time, Kind: KindText, AllowedModes: []Mode{Locked}, DefaultMode: Locked, Integer: true}, "integer only applies"},
		{"format on number", Definition{Key: "a", Dimension: Time, Kind: KindNumber, AllowedModes: []Mode{Locked}, DefaultMode: Locked, Format: FormatFrequency}, "format only applies"},
		{"unknown format", Definition{Key: "a", Dimension: Time, Kind: KindText, AllowedModes: []Mode{Locked}, DefaultMode: Locked, Format: "cron"}, "unknown format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]Definition{tt.def})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestNewRejectsDuplicateKeys(t *testing.T) {
	d := Definition{Key: "a", Dimension: Time, Kind: KindText, AllowedModes: []Mode{Locked}, DefaultMode: Locked}
	_, err := New([]Definition{d, d})
	if err == nil || !strings.Contains(err.Error(), "duplicate key") {
		t.Errorf("expected duplicate key error, got %v", err)
	}
}

func TestBoundsNarrow(t *testing.T) {
	got := Range(1, 5000).Narrow(Range(100, 6000))
	if *got.Min != 100 || *got.Max != 5000 {
		t.Errorf("expected [100, 5000], got [%v, %v]", *got.Min, *got.Max)
	}
	var none *Bounds
	if n := none.Narrow(nil); n != nil {
		t.Errorf("expected nil, got %+v", n)
	}
}

func TestLoadWithHashMissingFile(t *testing.T) {
	c, hash, err := LoadWithHash("/nonexistent/catalog.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if c.Len() != Default().Len() {
		t.Error("expected built-in catalog")
	}
	if hash != HashBytes(nil) {
		t.Errorf("expected empty-input hash, got %s", hash)
	}
}

func TestLoadOverridesBuiltinByKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	src := `definitions:
  - key: usageCount
    dimension: Time
    allowed_modes: [Negotiable]
    default_mode: Negotiable
    kind: number
    bounds: {min: 10, max: 100}
  - key: region
    dimension: Location
    allowed_modes: [Locked]
    default_mode: Locked
    kind: enum
    options: [eu, us]
`
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	c, hash, err := LoadWithHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(hash, "sha256:") || hash == HashBytes(nil) {
		t.Errorf("unexpected hash %s", hash)
	}
	d, _ := c.Lookup("usageCount")
	if *d.Bounds.Max != 100 {
		t.Errorf("expected override max 100, got %v", *d.Bounds.Max)
	}
	if _, err := c.Lookup("region"); err != nil {
		t.Errorf("expected appended key: %v", err)
	}
	if c.Len() != Default().Len()+1 {
		t.Errorf("expected %d keys, got %d", Default().Len()+1, c.Len())
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("definitions: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestDefaultYAMLRoundTrips(t *testing.T) {
	c, err := Parse([]byte(DefaultYAML()))
	if err != nil {
		t.Fatalf("built-in YAML does not load: %v", err)
	}
	if c.Len() != Default().Len() {
		t.Errorf("expected %d keys, got %d", Default().Len(), c.Len())
	}
	d, _ := c.Lookup("sourceIp")
	if d.InjectFrom != FactSourceIP {
		t.Errorf("inject_from lost in YAML: %+v", d)
	}
	if d, _ := c.Lookup("count"); !d.Integer || *d.Bounds.Max != MaxQuota {
		t.Errorf("integer flag or ceiling lost in YAML: %+v", d)
	}
	if d, _ := c.Lookup("frequency"); d.Format != FormatFrequency {
		t.Errorf("format lost in YAML: %+v", d)
	}
}
