package odrl

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ppiankov/pactline/internal/model"
)

//go:embed policy.schema.json
var policySchemaJSON string

const policySchemaURL = "https://pactline.dev/schemas/policy.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func policySchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(policySchemaURL, bytes.NewReader([]byte(policySchemaJSON))); err != nil {
			schemaErr = fmt.Errorf("failed to load policy schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(policySchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile policy schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Marshal renders p as the exported policy document.
func Marshal(p Policy) ([]byte, error) {
	out := p.Clone()
	for i := range out.Permission {
		if out.Permission[i].Constraint == nil {
			out.Permission[i].Constraint = []Constraint{}
		}
	}
	if out.Permission == nil {
		out.Permission = []Permission{}
	}
	return json.MarshalIndent(out, "", "  ")
}

// Parse validates data against the policy schema and decodes it. Legacy
// operator spellings are normalised.
func Parse(data []byte) (Policy, error) {
	s, err := policySchema()
	if err != nil {
		return Policy{}, err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Policy{}, model.Errorf(model.KindInvalidArgument, "policy is not valid JSON: %v", err)
	}
	if err := s.Validate(doc); err != nil {
		return Policy{}, model.Errorf(model.KindInvalidArgument, "policy does not match schema: %v", err)
	}

	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, model.Errorf(model.KindInvalidArgument, "failed to decode policy: %v", err)
	}
	for i := range p.Permission {
		if err := normaliseOperators(p.Permission[i].Constraint); err != nil {
			return Policy{}, err
		}
		for j := range p.Permission[i].Duty {
			if err := normaliseOperators(p.Permission[i].Duty[j].Constraint); err != nil {
				return Policy{}, err
			}
		}
	}
	return p, nil
}

func normaliseOperators(cs []Constraint) error {
	for i := range cs {
		if cs[i].Operator == "" {
			continue
		}
		op, err := ParseOperator(string(cs[i].Operator))
		if err != nil {
			return err
		}
		cs[i].Operator = op
	}
	return nil
}
