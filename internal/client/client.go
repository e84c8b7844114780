// Package client talks to a pactline gRPC server.
package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	pb "github.com/ppiankov/pactline/api/pactline/v1"
	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/inject"
	"github.com/ppiankov/pactline/internal/negotiation"
	"github.com/ppiankov/pactline/internal/store"
	"github.com/ppiankov/pactline/internal/termdiff"
)

// DefaultTimeout bounds calls whose context carries no deadline.
const DefaultTimeout = 5 * time.Second

// Client connects to a pactline negotiation server. Errors carrying an
// engine error kind are returned as *model.Error.
type Client struct {
	conn    *grpc.ClientConn
	client  *pb.NegotiationClient
	Timeout time.Duration
}

// New creates a gRPC client for addr. The connection is established lazily
// on the first call.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to negotiation server: %w", err)
	}
	return &Client{
		conn:    conn,
		client:  pb.NewNegotiationClient(conn),
		Timeout: DefaultTimeout,
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// WithRequestID tags outgoing calls made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "x-request-id", id)
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func call[Req, Resp any](c *Client, ctx context.Context, fn func(context.Context, *Req, ...grpc.CallOption) (*Resp, error), req *Req) (*Resp, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()
	resp, err := fn(ctx, req)
	if err != nil {
		return nil, pb.FromStatus(err)
	}
	return resp, nil
}

// CreateContract creates a Draft.
func (c *Client) CreateContract(ctx context.Context, req *pb.CreateContractRequest) (*contract.Contract, error) {
	return call(c, ctx, c.client.CreateContract, req)
}

// SubmitDraft opens negotiation.
func (c *Client) SubmitDraft(ctx context.Context, id string) (*contract.Contract, error) {
	return call(c, ctx, c.client.SubmitDraft, &pb.ContractRequest{ID: id})
}

// Propose sends a counter-offer.
func (c *Client) Propose(ctx context.Context, id string, p contract.Proposal) (*contract.Contract, error) {
	return call(c, ctx, c.client.Propose, &pb.ProposeRequest{
		ID:          id,
		Proposer:    p.Proposer,
		BaseVersion: p.BaseVersion,
		Terms:       p.Terms,
		Comment:     p.Comment,
	})
}

// AcceptAndSign accepts the latest proposal and activates the contract.
func (c *Client) AcceptAndSign(ctx context.Context, id string, proof contract.SigningProof) (*contract.Contract, error) {
	return call(c, ctx, c.client.AcceptAndSign, &pb.SignRequest{ID: id, Party: proof.Party, SignerDID: proof.SignerDID})
}

// GetContract fetches one contract.
func (c *Client) GetContract(ctx context.Context, id string) (*contract.Contract, error) {
	return call(c, ctx, c.client.GetContract, &pb.ContractRequest{ID: id})
}

// ListContracts returns contracts matching f.
func (c *Client) ListContracts(ctx context.Context, f store.Filter) ([]contract.Contract, error) {
	resp, err := call(c, ctx, c.client.ListContracts, &pb.ListContractsRequest{Status: f.Status, ProductRef: f.ProductRef})
	if err != nil {
		return nil, err
	}
	return resp.Contracts, nil
}

// GetHistory returns the proposal history.
func (c *Client) GetHistory(ctx context.Context, id string) ([]contract.HistoryEntry, error) {
	resp, err := call(c, ctx, c.client.GetHistory, &pb.ContractRequest{ID: id})
	if err != nil {
		return nil, err
	}
	return resp.History, nil
}

// GetDiff compares the counterparty position with mine.
func (c *Client) GetDiff(ctx context.Context, id string) (*termdiff.Result, error) {
	return call(c, ctx, c.client.GetDiff, &pb.ContractRequest{ID: id})
}

// RecordUsage meters one access.
func (c *Client) RecordUsage(ctx context.Context, id string, rc inject.RuntimeContext) (*negotiation.UsageResult, error) {
	return call(c, ctx, c.client.RecordUsage, &pb.UsageRequest{
		ID:              id,
		ConnectorDID:    rc.ConnectorDID,
		SourceIP:        rc.SourceIP,
		CertFingerprint: rc.CertFingerprint,
		Role:            rc.Role,
	})
}

// Terminate abandons a contract under negotiation.
func (c *Client) Terminate(ctx context.Context, id, reason string) (*contract.Contract, error) {
	return call(c, ctx, c.client.Terminate, &pb.CloseRequest{ID: id, Reason: reason})
}

// Revoke ends an Active contract.
func (c *Client) Revoke(ctx context.Context, id, reason string) (*contract.Contract, error) {
	return call(c, ctx, c.client.Revoke, &pb.CloseRequest{ID: id, Reason: reason})
}
