package odrl

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func valuePtr(v model.Value) *model.Value { return &v }
func modePtr(m catalog.Mode) *catalog.Mode { return &m }
func opPtr(o Operator) *Operator       { return &o }

// draftWithTerms builds a draft with one constraint per mode.
func draftWithTerms(t *testing.T) Policy {
	t.Helper()
	cat := catalog.Default()
	p := NewDraft("sales data", t0)
	var err error
	p, err = AddOrUpdateConstraint(cat, p, "usageCount", ConstraintUpdate{
		Value: valuePtr(model.Number(1000)),
		Range: catalog.Range(100, 5000),
	})
	if err != nil {
		t.Fatalf("usageCount: %v", err)
	}
	p, err = AddOrUpdateConstraint(cat, p, "environment", ConstraintUpdate{Value: valuePtr(model.Text("TEE"))})
	if err != nil {
		t.Fatalf("environment: %v", err)
	}
	p, err = AddOrUpdateConstraint(cat, p, "consumerConnectorId", ConstraintUpdate{})
	if err != nil {
		t.Fatalf("consumerConnectorId: %v", err)
	}
	p, err = AddDuty(p, Duty{Action: "anonymize", Constraint: []Constraint{
		{LeftOperand: "algorithm", Operator: Eq, RightOperand: model.Text("masking")},
	}})
	if err != nil {
		t.Fatalf("duty: %v", err)
	}
	return p
}

func TestNewDraftDefaults(t *testing.T) {
	p := NewDraft("x", t0)
	if !strings.HasPrefix(p.UID, "pol-") {
		t.Errorf("unexpected uid %s", p.UID)
	}
	if p.Status != StatusDisabled || p.Version != "v1.0" || p.Published() {
		t.Errorf("unexpected draft %+v", p)
	}
	if len(p.Permission) != 1 || p.Permission[0].Action != "use" {
		t.Errorf("expected one use permission, got %+v", p.Permission)
	}
	if NewDraft("x", t0).UID == p.UID {
		t.Error("expected unique uids")
	}
}

func TestAddConstraintSnapshotsCatalog(t *testing.T) {
	p := draftWithTerms(t)
	c, ok := p.Constraint("usageCount")
	if !ok {
		t.Fatal("usageCount missing")
	}
	if c.Mode != catalog.Negotiable || c.Dimension != catalog.Time || c.Operator != Eq {
		t.Errorf("unexpected constraint %+v", c)
	}
	inj, _ := p.Constraint("consumerConnectorId")
	if inj.Operator != "" || !inj.RightOperand.IsZero() || inj.Mode != catalog.Injected {
		t.Errorf("injected constraint carries authored data: %+v", inj)
	}
}

func TestAddConstraintDoesNotMutateInput(t *testing.T) {
	cat := catalog.Default()
	p := draftWithTerms(t)
	before, _ := Marshal(p)
	if _, err := AddOrUpdateConstraint(cat, p, "usageCount", ConstraintUpdate{Value: valuePtr(model.Number(42))}); err == nil {
		t.Fatal("expected value below range to fail")
	}
	if _, err := AddOrUpdateConstraint(cat, p, "usageCount", ConstraintUpdate{Value: valuePtr(model.Number(200))}); err != nil {
		t.Fatal(err)
	}
	after, _ := Marshal(p)
	if string(before) != string(after) {
		t.Error("input policy was modified")
	}
}

func TestAddConstraintRejections(t *testing.T) {
	cat := catalog.Default()
	p := NewDraft("x", t0)
	tests := []struct {
		name string
		key  string
		u    ConstraintUpdate
		kind model.Kind
	}{
		{"unknown key", "colour", ConstraintUpdate{}, model.KindNotFound},
		{"mode not allowed", "environment", ConstraintUpdate{Mode: modePtr(catalog.Negotiable)}, model.KindInvalidMode},
		{"injected value", "sourceIp", ConstraintUpdate{Value: valuePtr(model.Text("10.0.0.1"))}, model.KindLockedFieldMutation},
		{"range on locked", "environment", ConstraintUpdate{Range: catalog.Range(1, 2)}, model.KindInvalidArgument},
		{"bad operator", "environment", ConstraintUpdate{Operator: opPtr("approx")}, model.KindInvalidArgument},
		{"enum option", "environment", ConstraintUpdate{Value: valuePtr(model.Text("Cloud"))}, model.KindOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AddOrUpdateConstraint(cat, p, tt.key, tt.u)
			if !model.HasKind(err, tt.kind) {
				t.Errorf("expected %s, got %v", tt.kind, err)
			}
		})
	}
}

func TestLegacyOperatorNormalised(t *testing.T) {
	p, err := AddOrUpdateConstraint(catalog.Default(), NewDraft("x", t0), "count",
		ConstraintUpdate{Operator: opPtr("lteq"), Value: valuePtr(model.Number(10))})
	if err != nil {
		t.Fatal(err)
	}
	c, _ := p.Constraint("count")
	if c.Operator != Lte {
		t.Errorf("expected lte, got %s", c.Operator)
	}
}

func TestRemoveConstraint(t *testing.T) {
	p := draftWithTerms(t)
	out, err := RemoveConstraint(p, "environment")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out.Constraint("environment"); ok {
		t.Error("constraint not removed")
	}
	if _, ok := p.Constraint("environment"); !ok {
		t.Error("input policy was modified")
	}
	if _, err := RemoveConstraint(out, "environment"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestPublishFreezesPolicy(t *testing.T) {
	cat := catalog.Default()
	p, err := Publish(cat, draftWithTerms(t), t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != StatusActive || !p.Published() {
		t.Fatalf("unexpected published policy %+v", p)
	}
	if _, err := AddOrUpdateConstraint(cat, p, "usageCount", ConstraintUpdate{Value: valuePtr(model.Number(200))}); !errors.Is(err, model.ErrIllegalTransition) {
		t.Errorf("expected IllegalTransition on edit, got %v", err)
	}
	if _, err := RemoveConstraint(p, "usageCount"); !errors.Is(err, model.ErrIllegalTransition) {
		t.Errorf("expected IllegalTransition on remove, got %v", err)
	}
	if _, err := Publish(cat, p, t0); !errors.Is(err, model.ErrIllegalTransition) {
		t.Errorf("expected IllegalTransition on republish, got %v", err)
	}
}

func TestPublishRequiresValues(t *testing.T) {
	cat := catalog.Default()
	p, _ := AddOrUpdateConstraint(cat, NewDraft("x", t0), "validUntil", ConstraintUpdate{})
	_, err := Publish(cat, p, t0)
	if !errors.Is(err, model.ErrOutOfBounds) {
		t.Errorf("expected OutOfBounds for missing value, got %v", err)
	}
}

func TestReviseBumpsVersion(t *testing.T) {
	cat := catalog.Default()
	pub, _ := Publish(cat, draftWithTerms(t), t0)
	next, err := Revise(pub, t0.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if next.Version != "v1.1" || next.DerivedFrom != pub.UID || next.UID == pub.UID {
		t.Errorf("unexpected revision %+v", next)
	}
	if next.Published() || next.Status != StatusDisabled {
		t.Error("revision should be an unpublished draft")
	}
	if _, err := Revise(next, t0); !errors.Is(err, model.ErrIllegalTransition) {
		t.Errorf("expected IllegalTransition revising a draft, got %v", err)
	}
}

func TestBumpVersion(t *testing.T) {
	tests := map[string]string{"v1.0": "v1.1", "v1.9": "v1.10", "2.3": "v2.4", "v3": "v3.1"}
	for in, want := range tests {
		got, err := BumpVersion(in)
		if err != nil || got != want {
			t.Errorf("BumpVersion(%s) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := BumpVersion("latest"); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

func TestMarshalParseRoundTrip(t *testing.T) {
	p, err := Publish(catalog.Default(), draftWithTerms(t), t0.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	data, err := Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, data)
	}
	if !reflect.DeepEqual(p, back) {
		t.Errorf("round trip lost data:\nwant %+v\ngot  %+v", p, back)
	}
	again, _ := Marshal(back)
	if string(again) != string(data) {
		t.Error("re-marshal differs")
	}
}

func TestParseNormalisesLegacyOperators(t *testing.T) {
	doc := `{"@context":"http://www.w3.org/ns/odrl.jsonld","@type":"Set","uid":"POL-001",
"status":"Active","priority":10,"version":"v1.0",
"permission":[{"action":"use","constraint":[{"leftOperand":"count","operator":"gteq","rightOperand":5,"mode":"Locked"}]}]}`
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if op := p.Permission[0].Constraint[0].Operator; op != Gte {
		t.Errorf("expected gte, got %s", op)
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := map[string]string{
		"missing uid":  `{"@context":"x","@type":"Set","status":"Active","version":"v1.0","permission":[]}`,
		"bad status":   `{"@context":"x","@type":"Set","uid":"a","status":"Live","version":"v1.0","permission":[]}`,
		"bad operator": `{"@context":"x","@type":"Set","uid":"a","status":"Active","version":"v1.0","permission":[{"action":"use","constraint":[{"leftOperand":"count","operator":"about"}]}]}`,
		"not json":     `{"uid":`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, model.ErrInvalidArgument) {
				t.Errorf("expected InvalidArgument, got %v", err)
			}
		})
	}
}

func published(uid string, priority int, created time.Time, target string) Policy {
	pub := created
	return Policy{
		Context: Context, Type: TypeSet, UID: uid, Status: StatusActive,
		Priority: priority, Version: "v1.0", CreatedAt: created, PublishedAt: &pub,
		Permission: []Permission{{Action: "use", Target: target, Constraint: []Constraint{}}},
	}
}

func TestResolvePriorityThenRecencyThenUID(t *testing.T) {
	r := NewRegistry()
	for _, p := range []Policy{
		published("pol-a", 10, t0, "urn:data:sales"),
		published("pol-b", 20, t0, "urn:data:*"),
		published("pol-c", 20, t0.Add(time.Hour), "urn:data:sales"),
		published("pol-d", 20, t0.Add(time.Hour), "urn:data:sales"),
		published("pol-e", 99, t0, "urn:data:hr"),
	} {
		if err := r.Put(p); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.Resolve("urn:data:sales")
	if err != nil {
		t.Fatal(err)
	}
	if got.UID != "pol-d" {
		t.Errorf("expected pol-d (priority 20, newest, greatest uid), got %s", got.UID)
	}

	got, _ = r.Resolve("urn:data:finance")
	if got.UID != "pol-b" {
		t.Errorf("expected wildcard pol-b, got %s", got.UID)
	}
	if _, err := r.Resolve("urn:other"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestResolveSkipsDisabled(t *testing.T) {
	r := NewRegistry()
	hi := published("pol-hi", 50, t0, "")
	hi.Status = StatusDisabled
	_ = r.Put(hi)
	_ = r.Put(published("pol-lo", 1, t0, ""))
	got, err := r.Resolve("anything")
	if err != nil || got.UID != "pol-lo" {
		t.Errorf("expected pol-lo, got %v %v", got.UID, err)
	}
}

func TestRegistryPutRefusesDraftsAndConflicts(t *testing.T) {
	r := NewRegistry()
	if err := r.Put(NewDraft("x", t0)); !errors.Is(err, model.ErrIllegalTransition) {
		t.Errorf("expected IllegalTransition for draft, got %v", err)
	}
	p := published("pol-x", 1, t0, "")
	if err := r.Put(p); err != nil {
		t.Fatal(err)
	}
	if err := r.Put(p); err != nil {
		t.Errorf("identical re-put should succeed: %v", err)
	}
	p.Priority = 2
	if err := r.Put(p); !errors.Is(err, model.ErrIllegalTransition) {
		t.Errorf("expected IllegalTransition for changed content, got %v", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	data, _ := Marshal(published("pol-file", 5, t0, "urn:data:sales"))
	if err := os.WriteFile(filepath.Join(dir, "sales.json"), data, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.List()) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(r.List()))
	}
	if _, err := r.Get("pol-file"); err != nil {
		t.Error(err)
	}
	empty, err := LoadDir(filepath.Join(dir, "missing"))
	if err != nil || len(empty.List()) != 0 {
		t.Errorf("expected empty registry for missing dir, got %v", err)
	}
}
