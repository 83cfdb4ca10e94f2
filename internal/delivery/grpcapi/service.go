package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The service carries its messages as google.protobuf.Struct, so it needs no
// generated stubs.
const ServiceName = "mpesa.v1.TransactionService"

type TransactionServiceServer interface {
	Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Reverse(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ReconcileCallback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetTransaction(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv TransactionServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

var TransactionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransactionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: unary("Submit", TransactionServiceServer.Submit)},
		{MethodName: "Reverse", Handler: unary("Reverse", TransactionServiceServer.Reverse)},
		{MethodName: "ReconcileCallback", Handler: unary("ReconcileCallback", TransactionServiceServer.ReconcileCallback)},
		{MethodName: "GetTransaction", Handler: unary("GetTransaction", TransactionServiceServer.GetTransaction)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mpesa/v1/transaction.proto",
}

func RegisterTransactionServiceServer(s grpc.ServiceRegistrar, srv TransactionServiceServer) {
	s.RegisterService(&TransactionServiceDesc, srv)
}

// FullMethod returns the invoke path of a TransactionService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary(method string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TransactionServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TransactionServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
