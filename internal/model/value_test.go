package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestValueEqualNumericForms(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{Number(2000), Number(2000.0), true},
		{Number(2000), Text("2000"), true},
		{Text("2000"), Text("2000.0"), true},
		{Number(2000), Number(2001), false},
		{Text("TEE"), Text("TEE"), true},
		{Text("TEE"), Text("Sandbox"), false},
		{List("a", "b"), List("a", "b"), true},
		{List("a", "b"), Text("a, b"), true},
		{List("a", "b"), List("b", "a"), false},
		{Value{}, Value{}, true},
		{Value{}, Text(""), false},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestValueJSONReserializedIsEqual(t *testing.T) {
	for _, v := range []Value{Number(1500), Text("2026-01-01"), List("10.0.0.1", "10.0.0.2")} {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %v: %v", v, err)
		}
		var back Value
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if !back.Equal(v) || back.Shape() != v.Shape() {
			t.Errorf("round trip of %v produced %v", v, back)
		}
	}
}

func TestValueJSONNull(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte("null"), &v); err != nil {
		t.Fatal(err)
	}
	if !v.IsZero() {
		t.Errorf("expected zero value, got %v", v)
	}
	data, _ := json.Marshal(Value{})
	if string(data) != "null" {
		t.Errorf("expected null, got %s", data)
	}
}

func TestValueJSONRejectsObjects(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`{"a":1}`), &v); err == nil {
		t.Error("expected error for object value")
	}
}

func TestValueYAMLKeepsNumbers(t *testing.T) {
	var doc struct {
		Count Value `yaml:"count"`
		Env   Value `yaml:"env"`
		IPs   Value `yaml:"ips"`
	}
	src := "count: 1000\nenv: TEE\nips: [10.0.0.1, 10.0.0.2]\n"
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Count.Shape() != ShapeNumber {
		t.Errorf("count shape = %s, want number", doc.Count.Shape())
	}
	if n, ok := doc.Count.Int(); !ok || n != 1000 {
		t.Errorf("count = %v", doc.Count)
	}
	if doc.Env.String() != "TEE" {
		t.Errorf("env = %q", doc.Env.String())
	}
	if got := doc.IPs.Items(); len(got) != 2 || got[1] != "10.0.0.2" {
		t.Errorf("ips = %v", got)
	}
}

func TestValueIntRejectsFractions(t *testing.T) {
	if _, ok := Number(1.5).Int(); ok {
		t.Error("expected 1.5 to not be a whole number")
	}
	if _, ok := Text("abc").Int(); ok {
		t.Error("expected text to not be numeric")
	}
}

func TestValueIntRejectsOutOfRange(t *testing.T) {
	for _, f := range []float64{1e19, -1e19, 1 << 63} {
		if n, ok := Number(f).Int(); ok {
			t.Errorf("expected %g to be rejected, got %d", f, n)
		}
	}
	if n, ok := Number(1 << 53).Int(); !ok || n != 1<<53 {
		t.Errorf("expected 2^53 to convert exactly, got %d %v", n, ok)
	}
	if n, ok := Number(-1 << 62).Int(); !ok || n != -1<<62 {
		t.Errorf("expected -2^62 to convert, got %d %v", n, ok)
	}
}

func TestTermsCloneIsDeep(t *testing.T) {
	orig := Terms{
		Actions:     []string{"use"},
		Constraints: map[string]Value{"ipWhitelist": List("10.0.0.1")},
	}
	cp := orig.Clone()
	cp.Actions[0] = "read"
	cp.Constraints["usageCount"] = Number(5)
	if orig.Actions[0] != "use" {
		t.Error("clone shares actions")
	}
	if _, ok := orig.Constraints["usageCount"]; ok {
		t.Error("clone shares constraint map")
	}
	if !orig.Equal(orig.Clone()) {
		t.Error("clone not equal to original")
	}
}

func TestTermsEqualIgnoresUnsetValues(t *testing.T) {
	a := Terms{Actions: []string{"use"}, Constraints: map[string]Value{"usageCount": Number(10)}}
	b := Terms{Actions: []string{"use"}, Constraints: map[string]Value{"usageCount": Text("10"), "sourceIp": {}}}
	if !a.Equal(b) {
		t.Error("expected terms to be equal")
	}
	b.Actions = []string{"read"}
	if a.Equal(b) {
		t.Error("expected different actions to differ")
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := FieldError(KindOutOfBounds, "usageCount", "exceeds provider-set ceiling", "5000")
	if !errors.Is(err, ErrOutOfBounds) {
		t.Error("expected errors.Is to match OutOfBounds")
	}
	if errors.Is(err, ErrInvalidMode) {
		t.Error("unexpected InvalidMode match")
	}
	wrapped := fmt.Errorf("propose: %w", err)
	if !HasKind(wrapped, KindOutOfBounds) {
		t.Error("expected HasKind through wrapping")
	}
	if e, ok := AsError(wrapped); !ok || e.Hint != "5000" {
		t.Errorf("AsError = %v, %v", e, ok)
	}
}

func TestFromFieldsAggregates(t *testing.T) {
	if FromFields(FieldErrors{}) != nil {
		t.Error("expected nil for empty field errors")
	}
	fe := FieldErrors{}
	fe.Add("validUntil", FieldError(KindOutOfBounds, "validUntil", "not a date", ""))
	fe.Add("environment", FieldError(KindLockedFieldMutation, "environment", "locked", ""))
	err := FromFields(fe)
	if err.Key != "environment" {
		t.Errorf("expected first key in sorted order, got %s", err.Key)
	}
	if !errors.Is(err, ErrOutOfBounds) || !errors.Is(err, ErrLockedFieldMutation) {
		t.Error("expected both kinds to match")
	}
	if fe.Len() != 2 {
		t.Errorf("expected 2 errors, got %d", fe.Len())
	}
}

func TestParsePartyAndRole(t *testing.T) {
	if p, err := ParseParty("Counterparty"); err != nil || p.Other() != Me {
		t.Errorf("ParseParty = %v, %v", p, err)
	}
	if _, err := ParseParty("them"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
	if _, err := ParseRole("Broker"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}
