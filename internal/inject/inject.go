// Package inject binds Injected contract terms to runtime facts supplied by
// the trusted caller of an access request.
package inject

import (
	"sort"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
)

// RuntimeContext carries the facts known about the caller at access time.
type RuntimeContext struct {
	ConnectorDID    string `json:"connectorDid,omitempty"`
	SourceIP        string `json:"sourceIp,omitempty"`
	CertFingerprint string `json:"certFingerprint,omitempty"`
	Role            string `json:"role,omitempty"`
}

// Fact returns the named runtime fact, or "" when absent or unknown.
func (rc RuntimeContext) Fact(name string) string {
	switch name {
	case catalog.FactConnectorDID:
		return rc.ConnectorDID
	case catalog.FactSourceIP:
		return rc.SourceIP
	case catalog.FactCertFingerprint:
		return rc.CertFingerprint
	case catalog.FactRole:
		return rc.Role
	default:
		return ""
	}
}

// Binding is one resolved Injected key.
type Binding struct {
	Key    string `json:"key"`
	Source string `json:"source"`
	Value  string `json:"value"`
}

// Bind resolves every key in modes whose mode is Injected, in key order.
// A missing fact fails closed; every missing key is reported.
func Bind(cat *catalog.Catalog, modes map[string]catalog.Mode, rc RuntimeContext) ([]Binding, error) {
	keys := make([]string, 0, len(modes))
	for k, m := range modes {
		if m == catalog.Injected {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	fe := model.FieldErrors{}
	out := make([]Binding, 0, len(keys))
	for _, k := range keys {
		def, err := cat.Lookup(k)
		if err != nil {
			fe.Add(k, model.FieldError(model.KindNotFound, k, "unknown constraint key", ""))
			continue
		}
		v := rc.Fact(def.InjectFrom)
		if v == "" {
			fe.Add(k, model.FieldError(model.KindInvalidArgument, k,
				"runtime fact "+def.InjectFrom+" is required", def.InjectFrom))
			continue
		}
		out = append(out, Binding{Key: k, Source: def.InjectFrom, Value: v})
	}
	if err := model.FromFields(fe); err != nil {
		return nil, err
	}
	return out, nil
}
