package pactlinev1

import (
	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/inject"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/negotiation"
	"github.com/ppiankov/pactline/internal/store"
)

// CreateContractRequest describes a new Draft. PolicyUID or PolicyTarget
// seed terms from a published policy instead of Terms/Modes/Ranges.
type CreateContractRequest struct {
	ID               string                     `json:"id,omitempty"`
	Name             string                     `json:"name"`
	Description      string                     `json:"description,omitempty"`
	ProductRef       string                     `json:"productRef"`
	Role             model.Role                 `json:"role"`
	SignatoryDID     string                     `json:"signatoryDid"`
	CounterpartyName string                     `json:"counterpartyName,omitempty"`
	CounterpartyDID  string                     `json:"counterpartyDid"`
	Terms            model.Terms                `json:"terms"`
	Modes            map[string]catalog.Mode    `json:"modes,omitempty"`
	Ranges           map[string]*catalog.Bounds `json:"ranges,omitempty"`
	PolicyUID        string                     `json:"policyUid,omitempty"`
	PolicyTarget     string                     `json:"policyTarget,omitempty"`
}

// Request converts the message for the service.
func (r *CreateContractRequest) Request() negotiation.CreateRequest {
	return negotiation.CreateRequest{
		CreateParams: contract.CreateParams{
			ID:               r.ID,
			Name:             r.Name,
			Description:      r.Description,
			ProductRef:       r.ProductRef,
			Role:             r.Role,
			SignatoryDID:     r.SignatoryDID,
			CounterpartyName: r.CounterpartyName,
			CounterpartyDID:  r.CounterpartyDID,
			Terms:            r.Terms,
			Modes:            r.Modes,
			Ranges:           r.Ranges,
		},
		PolicyUID:    r.PolicyUID,
		PolicyTarget: r.PolicyTarget,
	}
}

// ContractRequest addresses one contract.
type ContractRequest struct {
	ID string `json:"id"`
}

// ProposeRequest carries a counter-offer against BaseVersion.
type ProposeRequest struct {
	ID          string      `json:"id"`
	Proposer    model.Party `json:"proposer"`
	BaseVersion int         `json:"baseVersion"`
	Terms       model.Terms `json:"terms"`
	Comment     string      `json:"comment,omitempty"`
}

// Proposal converts the message for the service.
func (r *ProposeRequest) Proposal() contract.Proposal {
	return contract.Proposal{
		Proposer:    r.Proposer,
		BaseVersion: r.BaseVersion,
		Terms:       r.Terms,
		Comment:     r.Comment,
	}
}

// SignRequest accepts the latest proposal and signs it.
type SignRequest struct {
	ID        string      `json:"id"`
	Party     model.Party `json:"party"`
	SignerDID string      `json:"signerDid"`
}

// Proof converts the message for the service.
func (r *SignRequest) Proof() contract.SigningProof {
	return contract.SigningProof{Party: r.Party, SignerDID: r.SignerDID}
}

// ListContractsRequest filters stored contracts. Empty fields match all.
type ListContractsRequest struct {
	Status     contract.Status `json:"status,omitempty"`
	ProductRef string          `json:"productRef,omitempty"`
}

// Filter converts the message for the store.
func (r *ListContractsRequest) Filter() store.Filter {
	return store.Filter{Status: r.Status, ProductRef: r.ProductRef}
}

// ListContractsResponse holds contracts in creation order.
type ListContractsResponse struct {
	Contracts []contract.Contract `json:"contracts"`
}

// HistoryResponse holds the proposal history, oldest first.
type HistoryResponse struct {
	History []contract.HistoryEntry `json:"history"`
}

// UsageRequest meters one access. The runtime facts bind Injected terms.
type UsageRequest struct {
	ID              string `json:"id"`
	ConnectorDID    string `json:"connectorDid,omitempty"`
	SourceIP        string `json:"sourceIp,omitempty"`
	CertFingerprint string `json:"certFingerprint,omitempty"`
	Role            string `json:"role,omitempty"`
}

// RuntimeContext converts the message for the binder.
func (r *UsageRequest) RuntimeContext() inject.RuntimeContext {
	return inject.RuntimeContext{
		ConnectorDID:    r.ConnectorDID,
		SourceIP:        r.SourceIP,
		CertFingerprint: r.CertFingerprint,
		Role:            r.Role,
	}
}

// CloseRequest terminates or revokes a contract.
type CloseRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}
