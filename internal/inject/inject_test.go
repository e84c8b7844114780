package inject

import (
	"testing"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
)

func TestBindResolvesInjectedKeys(t *testing.T) {
	cat := catalog.Default()
	modes := map[string]catalog.Mode{
		"usageCount":          catalog.Negotiable,
		"consumerConnectorId": catalog.Injected,
		"sourceIp":            catalog.Injected,
	}
	rc := RuntimeContext{ConnectorDID: "did:conn:consumer-b", SourceIP: "10.1.2.3"}

	got, err := Bind(cat, modes, rc)
	if err != nil {
		t.Fatal(err)
	}
	want := []Binding{
		{Key: "consumerConnectorId", Source: catalog.FactConnectorDID, Value: "did:conn:consumer-b"},
		{Key: "sourceIp", Source: catalog.FactSourceIP, Value: "10.1.2.3"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d bindings, got %+v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("binding %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBindFailsClosedOnMissingFact(t *testing.T) {
	cat := catalog.Default()
	modes := map[string]catalog.Mode{
		"consumerConnectorId": catalog.Injected,
		"certFingerprint":     catalog.Injected,
	}
	_, err := Bind(cat, modes, RuntimeContext{})
	e, ok := model.AsError(err)
	if !ok || e.Kind != model.KindInvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
	if len(e.Fields) != 2 {
		t.Errorf("expected both keys reported, got %v", e.Fields.Keys())
	}
}

func TestBindNoInjectedKeys(t *testing.T) {
	got, err := Bind(catalog.Default(), map[string]catalog.Mode{"usageCount": catalog.Negotiable}, RuntimeContext{})
	if err != nil || len(got) != 0 {
		t.Errorf("expected no bindings, got %+v %v", got, err)
	}
}

func TestFactLookup(t *testing.T) {
	rc := RuntimeContext{ConnectorDID: "a", SourceIP: "b", CertFingerprint: "c", Role: "d"}
	for name, want := range map[string]string{
		catalog.FactConnectorDID:    "a",
		catalog.FactSourceIP:        "b",
		catalog.FactCertFingerprint: "c",
		catalog.FactRole:            "d",
		"unknown":                   "",
	} {
		if got := rc.Fact(name); got != want {
			t.Errorf("Fact(%q) = %q, want %q", name, got, want)
		}
	}
}
