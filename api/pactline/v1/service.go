package pactlinev1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/ppiankov/pactline/internal/contract"
	"github.com/ppiankov/pactline/internal/negotiation"
	"github.com/ppiankov/pactline/internal/termdiff"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pactline.v1.Negotiation"

// FullMethod returns "/pactline.v1.Negotiation/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// NegotiationServer is the server API for the Negotiation service.
type NegotiationServer interface {
	CreateContract(context.Context, *CreateContractRequest) (*contract.Contract, error)
	SubmitDraft(context.Context, *ContractRequest) (*contract.Contract, error)
	Propose(context.Context, *ProposeRequest) (*contract.Contract, error)
	AcceptAndSign(context.Context, *SignRequest) (*contract.Contract, error)
	GetContract(context.Context, *ContractRequest) (*contract.Contract, error)
	ListContracts(context.Context, *ListContractsRequest) (*ListContractsResponse, error)
	GetHistory(context.Context, *ContractRequest) (*HistoryResponse, error)
	GetDiff(context.Context, *ContractRequest) (*termdiff.Result, error)
	RecordUsage(context.Context, *UsageRequest) (*negotiation.UsageResult, error)
	Terminate(context.Context, *CloseRequest) (*contract.Contract, error)
	Revoke(context.Context, *CloseRequest) (*contract.Contract, error)
}

// RegisterNegotiationServer registers srv on s.
func RegisterNegotiationServer(s grpc.ServiceRegistrar, srv NegotiationServer) {
	s.RegisterService(&Negotiation_ServiceDesc, srv)
}

// Negotiation_ServiceDesc describes the service for grpc.ServiceRegistrar.
var Negotiation_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NegotiationServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateContract", NegotiationServer.CreateContract),
		unary("SubmitDraft", NegotiationServer.SubmitDraft),
		unary("Propose", NegotiationServer.Propose),
		unary("AcceptAndSign", NegotiationServer.AcceptAndSign),
		unary("GetContract", NegotiationServer.GetContract),
		unary("ListContracts", NegotiationServer.ListContracts),
		unary("GetHistory", NegotiationServer.GetHistory),
		unary("GetDiff", NegotiationServer.GetDiff),
		unary("RecordUsage", NegotiationServer.RecordUsage),
		unary("Terminate", NegotiationServer.Terminate),
		unary("Revoke", NegotiationServer.Revoke),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pactline/v1/negotiation",
}

func unary[Req, Resp any](name string, call func(NegotiationServer, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(NegotiationServer), ctx, req.(*Req))
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// NegotiationClient is the client API for the Negotiation service. Every
// call uses the JSON codec.
type NegotiationClient struct {
	cc grpc.ClientConnInterface
}

// NewNegotiationClient wraps cc.
func NewNegotiationClient(cc grpc.ClientConnInterface) *NegotiationClient {
	return &NegotiationClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *NegotiationClient) CreateContract(ctx context.Context, in *CreateContractRequest, opts ...grpc.CallOption) (*contract.Contract, error) {
	return invoke[contract.Contract](ctx, c.cc, "CreateContract", in, opts)
}

func (c *NegotiationClient) SubmitDraft(ctx context.Context, in *ContractRequest, opts ...grpc.CallOption) (*contract.Contract, error) {
	return invoke[contract.Contract](ctx, c.cc, "SubmitDraft", in, opts)
}

func (c *NegotiationClient) Propose(ctx context.Context, in *ProposeRequest, opts ...grpc.CallOption) (*contract.Contract, error) {
	return invoke[contract.Contract](ctx, c.cc, "Propose", in, opts)
}

func (c *NegotiationClient) AcceptAndSign(ctx context.Context, in *SignRequest, opts ...grpc.CallOption) (*contract.Contract, error) {
	return invoke[contract.Contract](ctx, c.cc, "AcceptAndSign", in, opts)
}

func (c *NegotiationClient) GetContract(ctx context.Context, in *ContractRequest, opts ...grpc.CallOption) (*contract.Contract, error) {
	return invoke[contract.Contract](ctx, c.cc, "GetContract", in, opts)
}

func (c *NegotiationClient) ListContracts(ctx context.Context, in *ListContractsRequest, opts ...grpc.CallOption) (*ListContractsResponse, error) {
	return invoke[ListContractsResponse](ctx, c.cc, "ListContracts", in, opts)
}

func (c *NegotiationClient) GetHistory(ctx context.Context, in *ContractRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryResponse](ctx, c.cc, "GetHistory", in, opts)
}

func (c *NegotiationClient) GetDiff(ctx context.Context, in *ContractRequest, opts ...grpc.CallOption) (*termdiff.Result, error) {
	return invoke[termdiff.Result](ctx, c.cc, "GetDiff", in, opts)
}

func (c *NegotiationClient) RecordUsage(ctx context.Context, in *UsageRequest, opts ...grpc.CallOption) (*negotiation.UsageResult, error) {
	return invoke[negotiation.UsageResult](ctx, c.cc, "RecordUsage", in, opts)
}

func (c *NegotiationClient) Terminate(ctx context.Context, in *CloseRequest, opts ...grpc.CallOption) (*contract.Contract, error) {
	return invoke[contract.Contract](ctx, c.cc, "Terminate", in, opts)
}

func (c *NegotiationClient) Revoke(ctx context.Context, in *CloseRequest, opts ...grpc.CallOption) (*contract.Contract, error) {
	return invoke[contract.Contract](ctx, c.cc, "Revoke", in, opts)
}
