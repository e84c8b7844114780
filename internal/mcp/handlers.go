package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/inject"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/negotiation"
	"github.com/ppiankov/pactline/internal/store"
	"github.com/ppiankov/pactline/internal/termdiff"
	"github.com/ppiankov/pactline/internal/validate"
)

// --- Input/Output types ---

// ToolError describes a rejected operation. The contract is unchanged.
type ToolError struct {
	Kind    string              `json:"kind"`
	Message string              `json:"message"`
	Key     string              `json:"key,omitempty"`
	Hint    string              `json:"hint,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// CatalogInput optionally narrows the listing to one dimension.
type CatalogInput struct {
	Dimension string `json:"dimension,omitempty" jsonschema:"Time, Location, Subject, Object, Communication or Storage"`
}

// CatalogEntry is one catalog key.
type CatalogEntry struct {
	Key          string   `json:"key"`
	Label        string   `json:"label"`
	Dimension    string   `json:"dimension"`
	AllowedModes []string `json:"allowed_modes"`
	DefaultMode  string   `json:"default_mode"`
	Kind         string   `json:"kind"`
	Options      []string `json:"options,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
	InjectFrom   string   `json:"inject_from,omitempty"`
}

// CatalogOutput lists catalog keys in catalog order.
type CatalogOutput struct {
	Definitions []CatalogEntry `json:"definitions"`
}

// ValidateInput is a single key/mode/value to check.
type ValidateInput struct {
	Key   string `json:"key" jsonschema:"catalog key, e.g. usageCount"`
	Mode  string `json:"mode,omitempty" jsonschema:"Locked, Negotiable or Injected; defaults to the catalog default"`
	Value any    `json:"value,omitempty" jsonschema:"proposed value: string, number or list of strings"`
}

// ValidateOutput reports whether the value passes.
type ValidateOutput struct {
	Valid bool       `json:"valid"`
	Error *ToolError `json:"error,omitempty"`
}

// TermsInput is the {actions, constraints} pair of a position.
type TermsInput struct {
	Actions     []string       `json:"actions" jsonschema:"permitted actions, e.g. use"`
	Constraints map[string]any `json:"constraints,omitempty" jsonschema:"catalog key to value"`
}

// RangeInput bounds a negotiable numeric term.
type RangeInput struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// CreateInput defines parameters for pactline_create_contract.
type CreateInput struct {
	Name             string                `json:"name"`
	Description      string                `json:"description,omitempty"`
	ProductRef       string                `json:"product_ref" jsonschema:"data product the contract governs"`
	Role             string                `json:"role" jsonschema:"Consumer or Provider"`
	SignatoryDID     string                `json:"signatory_did"`
	CounterpartyName string                `json:"counterparty_name,omitempty"`
	CounterpartyDID  string                `json:"counterparty_did"`
	Terms            TermsInput            `json:"terms,omitempty"`
	Modes            map[string]string     `json:"modes,omitempty" jsonschema:"per-key mode overrides"`
	Ranges           map[string]RangeInput `json:"ranges,omitempty" jsonschema:"negotiation bounds for Negotiable numeric keys"`
	PolicyUID        string                `json:"policy_uid,omitempty" jsonschema:"seed terms from this published policy"`
	PolicyTarget     string                `json:"policy_target,omitempty" jsonschema:"seed terms from the policy governing this target"`
}

// ContractInput addresses one contract.
type ContractInput struct {
	ID string `json:"id" jsonschema:"contract id"`
}

// ContractOutput carries the contract after the operation.
type ContractOutput struct {
	Contract map[string]any `json:"contract,omitempty"`
	Error    *ToolError     `json:"error,omitempty"`
}

// ProposeInput defines parameters for pactline_propose.
type ProposeInput struct {
	ID          string     `json:"id"`
	Proposer    string     `json:"proposer,omitempty" jsonschema:"Me or Counterparty; defaults to the configured party"`
	BaseVersion int        `json:"base_version" jsonschema:"the version the proposal was made against"`
	Terms       TermsInput `json:"terms"`
	Comment     string     `json:"comment,omitempty"`
}

// SignInput defines parameters for pactline_sign.
type SignInput struct {
	ID        string `json:"id"`
	Party     string `json:"party,omitempty" jsonschema:"Me or Counterparty; defaults to the configured party"`
	SignerDID string `json:"signer_did" jsonschema:"must match the party's DID fixed at creation"`
}

// ListInput filters pactline_list_contracts.
type ListInput struct {
	Status     string `json:"status,omitempty"`
	ProductRef string `json:"product_ref,omitempty"`
}

// ContractSummary is one row of a listing.
type ContractSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ProductRef string `json:"product_ref"`
	Status     string `json:"status"`
	Version    int    `json:"version"`
	UpdatedAt  string `json:"updated_at"`
}

// ListOutput lists contracts in creation order.
type ListOutput struct {
	Contracts []ContractSummary `json:"contracts"`
}

// HistoryOutput carries the version history.
type HistoryOutput struct {
	History []map[string]any `json:"history,omitempty"`
	Error   *ToolError       `json:"error,omitempty"`
}

// DiffOutput carries the structured diff and its text rendering.
type DiffOutput struct {
	Diff  map[string]any `json:"diff,omitempty"`
	Text  string         `json:"text,omitempty"`
	Error *ToolError     `json:"error,omitempty"`
}

// UsageInput carries the runtime facts of one access.
type UsageInput struct {
	ID              string `json:"id"`
	ConnectorDID    string `json:"connector_did,omitempty"`
	SourceIP        string `json:"source_ip,omitempty"`
	CertFingerprint string `json:"cert_fingerprint,omitempty"`
	Role            string `json:"role,omitempty"`
}

// Binding is one injected term.
type Binding struct {
	Key    string `json:"key"`
	Source string `json:"source"`
	Value  string `json:"value"`
}

// UsageOutput reports the metering result.
type UsageOutput struct {
	Allowed        bool       `json:"allowed"`
	RemainingCalls int64      `json:"remaining_calls"`
	TotalCalls     int64      `json:"total_calls"`
	Injected       []Binding  `json:"injected,omitempty"`
	Error          *ToolError `json:"error,omitempty"`
}

// CloseInput ends a contract.
type CloseInput struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
	Revoke bool   `json:"revoke,omitempty" jsonschema:"revoke an Active contract instead of terminating a negotiation"`
}

// --- Handlers ---

func (s *Server) handleCatalog(ctx context.Context, req *mcpsdk.CallToolRequest, input CatalogInput) (*mcpsdk.CallToolResult, CatalogOutput, error) {
	out := CatalogOutput{Definitions: []CatalogEntry{}}
	for _, d := range s.svc.Catalog().Definitions() {
		if input.Dimension != "" && string(d.Dimension) != input.Dimension {
			continue
		}
		e := CatalogEntry{
			Key:         d.Key,
			Label:       d.Label,
			Dimension:   string(d.Dimension),
			DefaultMode: string(d.DefaultMode),
			Kind:        string(d.Kind),
			Options:     d.Options,
			InjectFrom:  d.InjectFrom,
		}
		for _, m := range d.AllowedModes {
			e.AllowedModes = append(e.AllowedModes, string(m))
		}
		if d.Bounds != nil {
			e.Min, e.Max = d.Bounds.Min, d.Bounds.Max
		}
		out.Definitions = append(out.Definitions, e)
	}
	return nil, out, nil
}

func (s *Server) handleValidate(ctx context.Context, req *mcpsdk.CallToolRequest, input ValidateInput) (*mcpsdk.CallToolResult, ValidateOutput, error) {
	def, err := s.svc.Catalog().Lookup(input.Key)
	if err != nil {
		res, te, err := reject(err)
		return res, ValidateOutput{Error: te}, err
	}
	mode := def.DefaultMode
	if input.Mode != "" {
		if mode, err = catalog.ParseMode(input.Mode); err != nil {
			res, te, err := reject(err)
			return res, ValidateOutput{Error: te}, err
		}
	}
	v, err := valueOf(input.Key, input.Value)
	if err != nil {
		res, te, err := reject(err)
		return res, ValidateOutput{Error: te}, err
	}
	if err := validate.Validate(s.svc.Catalog(), input.Key, mode, v); err != nil {
		res, te, err := reject(err)
		return res, ValidateOutput{Error: te}, err
	}
	return nil, ValidateOutput{Valid: true}, nil
}

func (s *Server) handleCreate(ctx context.Context, req *mcpsdk.CallToolRequest, input CreateInput) (*mcpsdk.CallToolResult, ContractOutput, error) {
	params, err := input.request()
	if err != nil {
		return contractResult(contract.Contract{}, err)
	}
	return contractResult(s.svc.CreateContract(ctx, params))
}

func (s *Server) handleSubmit(ctx context.Context, req *mcpsdk.CallToolRequest, input ContractInput) (*mcpsdk.CallToolResult, ContractOutput, error) {
	return contractResult(s.svc.SubmitDraft(ctx, input.ID))
}

func (s *Server) handlePropose(ctx context.Context, req *mcpsdk.CallToolRequest, input ProposeInput) (*mcpsdk.CallToolResult, ContractOutput, error) {
	party, err := s.party(input.Proposer)
	if err != nil {
		return contractResult(contract.Contract{}, err)
	}
	terms, err := input.Terms.terms()
	if err != nil {
		return contractResult(contract.Contract{}, err)
	}
	return contractResult(s.svc.Propose(ctx, input.ID, contract.Proposal{
		Proposer:    party,
		BaseVersion: input.BaseVersion,
		Terms:       terms,
		Comment:     input.Comment,
	}))
}

func (s *Server) handleSign(ctx context.Context, req *mcpsdk.CallToolRequest, input SignInput) (*mcpsdk.CallToolResult, ContractOutput, error) {
	party, err := s.party(input.Party)
	if err != nil {
		return contractResult(contract.Contract{}, err)
	}
	return contractResult(s.svc.AcceptAndSign(ctx, input.ID, contract.SigningProof{Party: party, SignerDID: input.SignerDID}))
}

func (s *Server) handleGet(ctx context.Context, req *mcpsdk.CallToolRequest, input ContractInput) (*mcpsdk.CallToolResult, ContractOutput, error) {
	return contractResult(s.svc.GetContract(ctx, input.ID))
}

func (s *Server) handleList(ctx context.Context, req *mcpsdk.CallToolRequest, input ListInput) (*mcpsdk.CallToolResult, ListOutput, error) {
	list, err := s.svc.ListContracts(ctx, store.Filter{Status: contract.Status(input.Status), ProductRef: input.ProductRef})
	if err != nil {
		return nil, ListOutput{}, err
	}
	out := ListOutput{Contracts: make([]ContractSummary, len(list))}
	for i, c := range list {
		out.Contracts[i] = ContractSummary{
			ID:         c.ID,
			Name:       c.Name,
			ProductRef: c.ProductRef,
			Status:     string(c.Status),
			Version:    c.Version,
			UpdatedAt:  c.UpdatedAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

func (s *Server) handleHistory(ctx context.Context, req *mcpsdk.CallToolRequest, input ContractInput) (*mcpsdk.CallToolResult, HistoryOutput, error) {
	entries, err := s.svc.GetHistory(ctx, input.ID)
	if err != nil {
		res, te, err := reject(err)
		return res, HistoryOutput{Error: te}, err
	}
	out := HistoryOutput{History: make([]map[string]any, 0, len(entries))}
	for _, h := range entries {
		m, err := toMap(h)
		if err != nil {
			return nil, HistoryOutput{}, err
		}
		out.History = append(out.History, m)
	}
	return nil, out, nil
}

func (s *Server) handleDiff(ctx context.Context, req *mcpsdk.CallToolRequest, input ContractInput) (*mcpsdk.CallToolResult, DiffOutput, error) {
	d, err := s.svc.GetDiff(ctx, input.ID)
	if err != nil {
		res, te, err := reject(err)
		return res, DiffOutput{Error: te}, err
	}
	m, err := toMap(d)
	if err != nil {
		return nil, DiffOutput{}, err
	}
	return nil, DiffOutput{Diff: m, Text: termdiff.FormatText(d)}, nil
}

func (s *Server) handleUsage(ctx context.Context, req *mcpsdk.CallToolRequest, input UsageInput) (*mcpsdk.CallToolResult, UsageOutput, error) {
	r, err := s.svc.RecordUsage(ctx, input.ID, inject.RuntimeContext{
		ConnectorDID:    input.ConnectorDID,
		SourceIP:        input.SourceIP,
		CertFingerprint: input.CertFingerprint,
		Role:            input.Role,
	})
	out := usageOutput(r)
	if err != nil {
		res, te, err := reject(err)
		out.Error = te
		return res, out, err
	}
	return nil, out, nil
}

func (s *Server) handleClose(ctx context.Context, req *mcpsdk.CallToolRequest, input CloseInput) (*mcpsdk.CallToolResult, ContractOutput, error) {
	if input.Revoke {
		return contractResult(s.svc.Revoke(ctx, input.ID, input.Reason))
	}
	return contractResult(s.svc.Terminate(ctx, input.ID, input.Reason))
}

// --- Helpers ---

func (s *Server) party(p string) (model.Party, error) {
	if p == "" {
		p = s.cfg.Party
	}
	return model.ParseParty(p)
}

// reject turns engine errors into an error result. Anything else is a tool
// failure returned as err.
func reject(err error) (*mcpsdk.CallToolResult, *ToolError, error) {
	me, ok := model.AsError(err)
	if !ok {
		return nil, nil, err
	}
	te := &ToolError{Kind: string(me.Kind), Message: me.Reason, Key: me.Key, Hint: me.Hint}
	if len(me.Fields) > 0 {
		te.Fields = make(map[string][]string, len(me.Fields))
		for k, errs := range me.Fields {
			for _, fe := range errs {
				te.Fields[k] = append(te.Fields[k], fe.Reason)
			}
		}
	}
	return &mcpsdk.CallToolResult{IsError: true}, te, nil
}

func contractResult(c contract.Contract, err error) (*mcpsdk.CallToolResult, ContractOutput, error) {
	if err != nil {
		res, te, err := reject(err)
		return res, ContractOutput{Error: te}, err
	}
	m, err := toMap(c)
	if err != nil {
		return nil, ContractOutput{}, err
	}
	return nil, ContractOutput{Contract: m}, nil
}

func usageOutput(r negotiation.UsageResult) UsageOutput {
	out := UsageOutput{Allowed: r.Allowed, RemainingCalls: r.RemainingCalls, TotalCalls: r.TotalCalls}
	for _, b := range r.Injected {
		out.Injected = append(out.Injected, Binding{Key: b.Key, Source: b.Source, Value: b.Value})
	}
	return out
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func valueOf(key string, raw any) (model.Value, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return model.Value{}, model.Errorf(model.KindInvalidArgument, "constraint %s: %v", key, err)
	}
	var v model.Value
	if err := json.Unmarshal(b, &v); err != nil {
		return model.Value{}, model.Errorf(model.KindInvalidArgument, "constraint %s: %v", key, err)
	}
	return v, nil
}

func (t TermsInput) terms() (model.Terms, error) {
	out := model.Terms{Actions: t.Actions, Constraints: make(map[string]model.Value, len(t.Constraints))}
	for k, raw := range t.Constraints {
		v, err := valueOf(k, raw)
		if err != nil {
			return model.Terms{}, err
		}
		out.Constraints[k] = v
	}
	return out, nil
}

func (in CreateInput) request() (negotiation.CreateRequest, error) {
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return negotiation.CreateRequest{}, err
	}
	terms, err := in.Terms.terms()
	if err != nil {
		return negotiation.CreateRequest{}, err
	}
	req := negotiation.CreateRequest{
		CreateParams: contract.CreateParams{
			Name:             in.Name,
			Description:      in.Description,
			ProductRef:       in.ProductRef,
			Role:             role,
			SignatoryDID:     in.SignatoryDID,
			CounterpartyName: in.CounterpartyName,
			CounterpartyDID:  in.CounterpartyDID,
			Terms:            terms,
		},
		PolicyUID:    in.PolicyUID,
		PolicyTarget: in.PolicyTarget,
	}
	if len(in.Modes) > 0 {
		req.Modes = make(map[string]catalog.Mode, len(in.Modes))
		for k, m := range in.Modes {
			mode, err := catalog.ParseMode(m)
			if err != nil {
				return negotiation.CreateRequest{}, fmt.Errorf("mode of %s: %w", k, err)
			}
			req.Modes[k] = mode
		}
	}
	if len(in.Ranges) > 0 {
		req.Ranges = make(map[string]*catalog.Bounds, len(in.Ranges))
		for k, r := range in.Ranges {
			req.Ranges[k] = &catalog.Bounds{Min: r.Min, Max: r.Max}
		}
	}
	return req, nil
}
