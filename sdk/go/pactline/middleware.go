package pactline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/ppiankov/pactline/internal/model"
)

// ConnectorHeader carries the caller's connector DID.
const ConnectorHeader = "X-Connector-DID"

// ContractFunc picks the contract that governs a request. An empty result
// lets the request through unmetered.
type ContractFunc func(r *http.Request) string

// FixedContract meters every request against id.
func FixedContract(id string) ContractFunc {
	return func(*http.Request) string { return id }
}

// Middleware records one usage per request before passing it on. Quota and
// rate-limit refusals receive 429, every other refusal 403, both with a
// JSON body.
func (c *Client) Middleware(contractOf ContractFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := contractOf(r)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}
			res, err := c.svc.RecordUsage(r.Context(), id, runtimeFromRequest(r))
			if err != nil {
				writeBlocked(w, blocked(id, err))
				return
			}
			w.Header().Set("X-Remaining-Calls", strconv.FormatInt(res.RemainingCalls, 10))
			next.ServeHTTP(w, r)
		})
	}
}

func writeBlocked(w http.ResponseWriter, err error) {
	status := http.StatusForbidden
	body := map[string]any{"blocked": true, "reason": err.Error()}
	if be, ok := err.(*BlockedError); ok {
		body["contract_id"] = be.ContractID
		body["kind"] = string(be.Kind)
		body["reason"] = be.Reason
		if be.Key != "" {
			body["key"] = be.Key
		}
		if be.Kind == model.KindQuotaExhausted || be.Kind == model.KindRateLimited {
			status = http.StatusTooManyRequests
		}
	} else {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// runtimeFromRequest maps an HTTP request to the facts injected terms bind.
func runtimeFromRequest(r *http.Request) RuntimeContext {
	rc := RuntimeContext{ConnectorDID: r.Header.Get(ConnectorHeader)}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		rc.SourceIP = host
	} else {
		rc.SourceIP = r.RemoteAddr
	}
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		sum := sha256.Sum256(r.TLS.PeerCertificates[0].Raw)
		rc.CertFingerprint = hex.EncodeToString(sum[:])
	}
	return rc
}
