// Package signing stamps the hash placeholder that binds an activated
// contract to its agreed terms. The hash is SHA-256 over the RFC 8785
// canonical JSON of the payload; no private key is involved.
package signing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/ppiankov/pactline/internal/model"
)

// Payload is the signed content of a contract.
type Payload struct {
	ContractID string      `json:"contractId"`
	ProductRef string      `json:"productRef"`
	Version    int         `json:"version"`
	Terms      model.Terms `json:"terms"`
}

// Signature is the single signature artifact of an Active contract.
type Signature struct {
	Hash      string    `json:"hash"`
	SignerDID string    `json:"signerDid"`
	Timestamp time.Time `json:"timestamp"`
}

// Canonical returns the RFC 8785 form of v's JSON encoding.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// Digest returns "sha256:<hex>" over the canonical payload.
func Digest(p Payload) (string, error) {
	data, err := Canonical(p)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:]), nil
}

// Stamp produces the signature for p.
func Stamp(p Payload, signerDID string, now time.Time) (Signature, error) {
	if signerDID == "" {
		return Signature{}, model.Errorf(model.KindInvalidArgument, "signer DID is required")
	}
	hash, err := Digest(p)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Hash: hash, SignerDID: signerDID, Timestamp: now.UTC()}, nil
}

// Verify recomputes the digest of p and compares it with sig.
func Verify(p Payload, sig Signature) error {
	hash, err := Digest(p)
	if err != nil {
		return err
	}
	if hash != sig.Hash {
		return model.Errorf(model.KindInvalidArgument, "signature hash mismatch: have %s, computed %s", sig.Hash, hash)
	}
	return nil
}
