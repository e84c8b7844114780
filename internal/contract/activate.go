package contract

import (
	"time"

	"github.com/ppiankov/pactline/internal/budget"
	"github.com/ppiankov/pactline/internal/catalog"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/signing"
)

// SigningProof identifies who signs. SignerDID must match the party's DID
// recorded at creation.
type SigningProof struct {
	Party     model.Party `json:"party"`
	SignerDID string      `json:"signerDid"`
}

// Accept moves a Negotiating contract to PendingSignature. The latest
// snapshot is revalidated and cannot be accepted by its own proposer.
func Accept(cat *catalog.Catalog, c Contract, party model.Party, now time.Time) (Contract, error) {
	if c.Status != Negotiating {
		return c, illegal(c, "accept")
	}
	latest, ok := c.Latest()
	if !ok {
		return c, illegal(c, "accept")
	}
	if latest.Proposer == party {
		return c, model.Errorf(model.KindIllegalTransition,
			"version %d was proposed by %s and must be accepted by the other party", latest.Version, party)
	}
	if err := CheckTerms(cat, c, latest.PolicySnapshot); err != nil {
		return c, err
	}
	out := c.Clone()
	out.Status = PendingSignature
	out.UpdatedAt = now.UTC()
	return out, nil
}

// Sign activates a PendingSignature contract: the latest snapshot becomes
// the frozen agreement, the signature is stamped and metering starts from
// the agreed quota.
func Sign(c Contract, proof SigningProof, now time.Time) (Contract, error) {
	if c.Status != PendingSignature {
		return c, illegal(c, "sign")
	}
	if c.Signature != nil {
		return c, model.Errorf(model.KindIllegalTransition, "contract %s is already signed", c.ID)
	}
	if want := c.Identity(proof.Party); want == "" || proof.SignerDID != want {
		return c, model.Errorf(model.KindInvalidArgument,
			"signer %q does not match the %s identity of contract %s", proof.SignerDID, proof.Party, c.ID)
	}
	latest, _ := c.Latest()
	agreement := latest.PolicySnapshot.Clone()

	sig, err := signing.Stamp(signing.Payload{
		ContractID: c.ID,
		ProductRef: c.ProductRef,
		Version:    c.Version,
		Terms:      agreement,
	}, proof.SignerDID, now)
	if err != nil {
		return c, err
	}

	out := c.Clone()
	stats := budget.Init(budget.LimitFromTerms(agreement))
	out.Agreement = &agreement
	out.Signature = &sig
	out.ExecutionStats = &stats
	out.Status = Active
	out.UpdatedAt = now.UTC()
	return out, nil
}

// AcceptAndSign composes Accept and Sign into one step. Calling it on an
// Active contract is an IllegalTransition.
func AcceptAndSign(cat *catalog.Catalog, c Contract, proof SigningProof, now time.Time) (Contract, error) {
	if c.Status == Active || c.Signature != nil {
		return c, model.Errorf(model.KindIllegalTransition, "contract %s is already active", c.ID)
	}
	accepted, err := Accept(cat, c, proof.Party, now)
	if err != nil {
		return c, err
	}
	signed, err := Sign(accepted, proof, now)
	if err != nil {
		return c, err
	}
	return signed, nil
}

// RecordUsage meters one call against an Active contract.
func RecordUsage(c Contract, now time.Time) (Contract, error) {
	if c.Status != Active || c.ExecutionStats == nil {
		return c, illegal(c, "record usage on")
	}
	stats, err := budget.Consume(*c.ExecutionStats, now)
	if err != nil {
		return c, err
	}
	out := c.Clone()
	out.ExecutionStats = &stats
	out.UpdatedAt = now.UTC()
	return out, nil
}

// VerifySignature recomputes the signature hash over the agreement.
func VerifySignature(c Contract) error {
	if c.Signature == nil || c.Agreement == nil {
		return model.Errorf(model.KindIllegalTransition, "contract %s is not signed", c.ID)
	}
	return signing.Verify(signing.Payload{
		ContractID: c.ID,
		ProductRef: c.ProductRef,
		Version:    c.Version,
		Terms:      *c.Agreement,
	}, *c.Signature)
}
