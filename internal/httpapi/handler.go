// Package httpapi serves the negotiation service as JSON over HTTP under /v1.
package httpapi

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	pb "github.com/ppiankov/pactline/api/pactline/v1"
	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/model"
	"github.com/ppiankov/pactline/internal/negotiation"
	"github.com/ppiankov/pactline/internal/store"
)

// Handler routes /v1 requests to a negotiation.Service.
type Handler struct {
	svc    *negotiation.Service
	logger *slog.Logger
	router chi.Router
}

// New builds the router.
func New(svc *negotiation.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/v1", func(api chi.Router) {
		api.Get("/catalog", h.catalog)
		api.Get("/policies", h.listPolicies)
		api.Get("/policies/{uid}", h.getPolicy)

		api.Post("/contracts", h.createContract)
		api.Get("/contracts", h.listContracts)
		api.Route("/contracts/{id}", func(c chi.Router) {
			c.Get("/", h.getContract)
			c.Post("/submit", h.submit)
			c.Post("/proposals", h.propose)
			c.Post("/sign", h.sign)
			c.Get("/history", h.history)
			c.Get("/diff", h.diff)
			c.Post("/usage", h.usage)
			c.Post("/terminate", h.terminate)
			c.Post("/revoke", h.revoke)
		})
	})
	h.router = r
	return h
}

// NewServer wraps h in an http.Server for addr.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) catalog(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, http.StatusOK, "definitions", h.svc.Catalog().Definitions())
}

func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	h.ok(w, r, http.StatusOK, "policies", h.svc.Policies().List())
}

func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Policies().Get(chi.URLParam(r, "uid"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, "policy", p)
}

func (h *Handler) createContract(w http.ResponseWriter, r *http.Request) {
	var req pb.CreateContractRequest
	if err := readJSON(w, r, &req); err != nil {
		badJSON(w, r, err)
		return
	}
	c, err := h.svc.CreateContract(r.Context(), req.Request())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusCreated, "contract", c)
}

func (h *Handler) listContracts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.svc.ListContracts(r.Context(), store.Filter{
		Status:     contract.Status(q.Get("status")),
		ProductRef: q.Get("productRef"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if list == nil {
		list = []contract.Contract{}
	}
	h.ok(w, r, http.StatusOK, "contracts", list)
}

func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	h.contractReply(w, r)(h.svc.GetContract(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.contractReply(w, r)(h.svc.SubmitDraft(r.Context(), chi.URLParam(r, "id")))
}

func (h *Handler) propose(w http.ResponseWriter, r *http.Request) {
	var req pb.ProposeRequest
	if err := readJSON(w, r, &req); err != nil {
		badJSON(w, r, err)
		return
	}
	if _, err := model.ParseParty(string(req.Proposer)); err != nil {
		h.fail(w, r, err)
		return
	}
	h.contractReply(w, r)(h.svc.Propose(r.Context(), chi.URLParam(r, "id"), req.Proposal()))
}

func (h *Handler) sign(w http.ResponseWriter, r *http.Request) {
	var req pb.SignRequest
	if err := readJSON(w, r, &req); err != nil {
		badJSON(w, r, err)
		return
	}
	h.contractReply(w, r)(h.svc.AcceptAndSign(r.Context(), chi.URLParam(r, "id"), req.Proof()))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.GetHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, "history", entries)
}

func (h *Handler) diff(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.GetDiff(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, "diff", d)
}

// usage meters one call. An empty body is allowed; the caller's address
// fills sourceIp when the body leaves it out.
func (h *Handler) usage(w http.ResponseWriter, r *http.Request) {
	var req pb.UsageRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			badJSON(w, r, err)
			return
		}
	}
	rc := req.RuntimeContext()
	if rc.SourceIP == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			rc.SourceIP = host
		}
	}
	res, err := h.svc.RecordUsage(r.Context(), chi.URLParam(r, "id"), rc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, r, http.StatusOK, "usage", res)
}

func (h *Handler) terminate(w http.ResponseWriter, r *http.Request) {
	req, ok := closeRequest(w, r)
	if !ok {
		return
	}
	h.contractReply(w, r)(h.svc.Terminate(r.Context(), chi.URLParam(r, "id"), req.Reason))
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	req, ok := closeRequest(w, r)
	if !ok {
		return
	}
	h.contractReply(w, r)(h.svc.Revoke(r.Context(), chi.URLParam(r, "id"), req.Reason))
}

func closeRequest(w http.ResponseWriter, r *http.Request) (pb.CloseRequest, bool) {
	var req pb.CloseRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if err := readJSON(w, r, &req); err != nil {
		badJSON(w, r, err)
		return req, false
	}
	return req, true
}

func (h *Handler) contractReply(w http.ResponseWriter, r *http.Request) func(contract.Contract, error) {
	return func(c contract.Contract, err error) {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, r, http.StatusOK, "contract", c)
	}
}
