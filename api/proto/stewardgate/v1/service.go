// Package stewardgatev1 defines the stewardgate.v1.GateService wire
// contract. Every RPC carries a google.protobuf.Struct in both directions;
// the typed request and response structs in this package are encoded into
// that Struct as JSON objects.
package stewardgatev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "stewardgate.v1.GateService"

// RPC method names.
const (
	MethodRequestRecognition    = "RequestRecognition"
	MethodCheckpoint            = "Checkpoint"
	MethodAuditLog              = "AuditLog"
	MethodRevoke                = "Revoke"
	MethodEscalateQuarantine    = "EscalateQuarantine"
	MethodSetDeceptionLevel     = "SetDeceptionLevel"
	MethodApprove               = "Approve"
	MethodEngageDefenseProtocol = "EngageDefenseProtocol"
	MethodDestroyOrDisseminate  = "DestroyOrDisseminate"
	MethodListIdentities        = "ListIdentities"
	MethodRequestReview         = "RequestReview"
	MethodResolveReview         = "ResolveReview"
	MethodListReviews           = "ListReviews"
)

// FullMethod returns "/stewardgate.v1.GateService/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// GateServiceServer is the server API for GateService.
type GateServiceServer interface {
	RequestRecognition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Checkpoint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AuditLog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Revoke(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EscalateQuarantine(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetDeceptionLevel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Approve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EngageDefenseProtocol(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DestroyOrDisseminate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListIdentities(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestReview(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveReview(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListReviews(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(GateServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GateServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(GateServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// GateServiceDesc describes GateService for grpc.Server.RegisterService.
var GateServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GateServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRequestRecognition, GateServiceServer.RequestRecognition),
		unary(MethodCheckpoint, GateServiceServer.Checkpoint),
		unary(MethodAuditLog, GateServiceServer.AuditLog),
		unary(MethodRevoke, GateServiceServer.Revoke),
		unary(MethodEscalateQuarantine, GateServiceServer.EscalateQuarantine),
		unary(MethodSetDeceptionLevel, GateServiceServer.SetDeceptionLevel),
		unary(MethodApprove, GateServiceServer.Approve),
		unary(MethodEngageDefenseProtocol, GateServiceServer.EngageDefenseProtocol),
		unary(MethodDestroyOrDisseminate, GateServiceServer.DestroyOrDisseminate),
		unary(MethodListIdentities, GateServiceServer.ListIdentities),
		unary(MethodRequestReview, GateServiceServer.RequestReview),
		unary(MethodResolveReview, GateServiceServer.ResolveReview),
		unary(MethodListReviews, GateServiceServer.ListReviews),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stewardgate/v1/gate.proto",
}

// RegisterGateServiceServer registers srv on s.
func RegisterGateServiceServer(s grpc.ServiceRegistrar, srv GateServiceServer) {
	s.RegisterService(&GateServiceDesc, srv)
}

// GateServiceClient invokes GateService methods with typed messages.
type GateServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGateServiceClient wraps a client connection.
func NewGateServiceClient(cc grpc.ClientConnInterface) *GateServiceClient {
	return &GateServiceClient{cc: cc}
}

// Call encodes req, invokes method and decodes the reply into resp.
// resp may be nil when the reply carries nothing of interest.
func (c *GateServiceClient) Call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return Decode(out, resp)
}
