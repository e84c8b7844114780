package pactline

import (
	"fmt"

	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/inject"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/negotiation"
	"github.com/ppiankov/pactline/internal/store"
	"github.com/ppiankov/pactline/internal/termdiff"
)

type (
	Contract       = contract.Contract
	Status         = contract.Status
	HistoryEntry   = contract.HistoryEntry
	Proposal       = contract.Proposal
	SigningProof   = contract.SigningProof
	CreateParams   = contract.CreateParams
	CreateRequest  = negotiation.CreateRequest
	UsageResult    = negotiation.UsageResult
	RuntimeContext = inject.RuntimeContext
	Binding        = inject.Binding
	Filter         = store.Filter
	Diff           = termdiff.Result
	Terms          = model.Terms
	Value          = model.Value
	Party          = model.Party
	Role           = model.Role
	Mode           = catalog.Mode
	Bounds         = catalog.Bounds
	Error          = model.Error
	Kind           = model.Kind
)

const (
	Me           = model.Me
	Counterparty = model.Counterparty
	Consumer     = model.Consumer
	Provider     = model.Provider

	Locked     = catalog.Locked
	Negotiable = catalog.Negotiable
	Injected   = catalog.Injected

	Draft            = contract.Draft
	Negotiating      = contract.Negotiating
	PendingSignature = contract.PendingSignature
	Active           = contract.Active
	Terminated       = contract.Terminated
	Revoked          = contract.Revoked

	KindNotFound            = model.KindNotFound
	KindInvalidMode         = model.KindInvalidMode
	KindOutOfBounds         = model.KindOutOfBounds
	KindLockedFieldMutation = model.KindLockedFieldMutation
	KindVersionConflict     = model.KindVersionConflict
	KindIllegalTransition   = model.KindIllegalTransition
	KindQuotaExhausted      = model.KindQuotaExhausted
	KindRateLimited         = model.KindRateLimited
	KindInvalidArgument     = model.KindInvalidArgument
)

// Value and bounds constructors.
var (
	Text   = model.Text
	Number = model.Number
	List   = model.List
	Range  = catalog.Range
)

// BlockedError is returned when metering refuses an access. The wrapped
// function is not called.
type BlockedError struct {
	ContractID string
	Kind       Kind
	Reason     string
	Key        string
	Err        error
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("pactline blocked (%s): %s", e.Kind, e.Reason)
}

func (e *BlockedError) Unwrap() error { return e.Err }

// blocked converts a typed engine error into a BlockedError. Untyped
// errors pass through unchanged.
func blocked(contractID string, err error) error {
	me, ok := model.AsError(err)
	if !ok {
		return err
	}
	return &BlockedError{
		ContractID: contractID,
		Kind:       me.Kind,
		Reason:     me.Reason,
		Key:        me.Key,
		Err:        err,
	}
}
