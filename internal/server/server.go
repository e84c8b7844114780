// Package server exposes the negotiation service over gRPC.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	pb "github.com/ppiankov/pactline/api/pactline/v1"
	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/negotiation"
	"github.com/ppiankov/pactline/internal/termdiff"
)

// RequestIDHeader is the metadata key carrying the caller's request id.
const RequestIDHeader = "x-request-id"

// Config holds gRPC server configuration.
type Config struct {
	Addr string
}

var _ pb.NegotiationServer = (*Server)(nil)

// Server implements pactline.v1.Negotiation on top of a negotiation.Service.
type Server struct {
	svc    *negotiation.Service
	logger *slog.Logger
	cfg    Config

	grpcServer *grpc.Server
}

// New registers the service on a fresh gRPC server.
func New(cfg Config, svc *negotiation.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{svc: svc, logger: logger, cfg: cfg}
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(s.requestID, s.logCalls))
	pb.RegisterNegotiationServer(s.grpcServer, s)
	return s
}

// Serve listens on the configured address. Blocks until stopped.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeOn(lis)
}

// ServeOn serves on an existing listener.
func (s *Server) ServeOn(lis net.Listener) error {
	s.logger.Info("grpc server listening", "addr", lis.Addr().String())
	return s.grpcServer.Serve(lis)
}

// GracefulStop drains in-flight calls and stops the server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}

// Shutdown stops gracefully, forcing a stop once ctx is done.
func (s *Server) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
}

func (s *Server) CreateContract(ctx context.Context, req *pb.CreateContractRequest) (*contract.Contract, error) {
	c, err := s.svc.CreateContract(ctx, req.Request())
	return reply(&c, err)
}

func (s *Server) SubmitDraft(ctx context.Context, req *pb.ContractRequest) (*contract.Contract, error) {
	c, err := s.svc.SubmitDraft(ctx, req.ID)
	return reply(&c, err)
}

func (s *Server) Propose(ctx context.Context, req *pb.ProposeRequest) (*contract.Contract, error) {
	c, err := s.svc.Propose(ctx, req.ID, req.Proposal())
	return reply(&c, err)
}

func (s *Server) AcceptAndSign(ctx context.Context, req *pb.SignRequest) (*contract.Contract, error) {
	c, err := s.svc.AcceptAndSign(ctx, req.ID, req.Proof())
	return reply(&c, err)
}

func (s *Server) GetContract(ctx context.Context, req *pb.ContractRequest) (*contract.Contract, error) {
	c, err := s.svc.GetContract(ctx, req.ID)
	return reply(&c, err)
}

func (s *Server) ListContracts(ctx context.Context, req *pb.ListContractsRequest) (*pb.ListContractsResponse, error) {
	list, err := s.svc.ListContracts(ctx, req.Filter())
	if list == nil {
		list = []contract.Contract{}
	}
	return reply(&pb.ListContractsResponse{Contracts: list}, err)
}

func (s *Server) GetHistory(ctx context.Context, req *pb.ContractRequest) (*pb.HistoryResponse, error) {
	h, err := s.svc.GetHistory(ctx, req.ID)
	return reply(&pb.HistoryResponse{History: h}, err)
}

func (s *Server) GetDiff(ctx context.Context, req *pb.ContractRequest) (*termdiff.Result, error) {
	return reply(s.svc.GetDiff(ctx, req.ID))
}

// RecordUsage fills a missing source address from the transport peer.
func (s *Server) RecordUsage(ctx context.Context, req *pb.UsageRequest) (*negotiation.UsageResult, error) {
	rc := req.RuntimeContext()
	if rc.SourceIP == "" {
		rc.SourceIP = peerIP(ctx)
	}
	r, err := s.svc.RecordUsage(ctx, req.ID, rc)
	if err != nil {
		return nil, pb.ToStatus(err)
	}
	return &r, nil
}

func (s *Server) Terminate(ctx context.Context, req *pb.CloseRequest) (*contract.Contract, error) {
	c, err := s.svc.Terminate(ctx, req.ID, req.Reason)
	return reply(&c, err)
}

func (s *Server) Revoke(ctx context.Context, req *pb.CloseRequest) (*contract.Contract, error) {
	c, err := s.svc.Revoke(ctx, req.ID, req.Reason)
	return reply(&c, err)
}

func reply[T any](v *T, err error) (*T, error) {
	if err != nil {
		return nil, pb.ToStatus(err)
	}
	return v, nil
}

// requestID propagates the caller's x-request-id, or assigns one.
func (s *Server) requestID(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(RequestIDHeader); len(v) > 0 {
			id = v[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, id))
	return handler(negotiation.WithRequestID(ctx, id), req)
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	attrs := []any{"method", info.FullMethod, "request_id", negotiation.RequestID(ctx), "duration", time.Since(start)}
	if err != nil {
		s.logger.Debug("grpc call failed", append(attrs, "error", err)...)
	} else {
		s.logger.Debug("grpc call", attrs...)
	}
	return resp, err
}

func peerIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		return p.Addr.String()
	}
	return host
}
