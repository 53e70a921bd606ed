package grpcsubstrate

import (
	"context"

	"github.com/dledger/dlnode/internal/record"
	"github.com/dledger/dlnode/internal/wire"
	"google.golang.org/grpc"
)

// substrateServer is the server-side contract the hand-rolled
// grpc.ServiceDesc below dispatches to, standing in for a generated
// pb.go interface since this substrate carries no protobuf schema
// (see codec.go).
type substrateServer interface {
	Fetch(context.Context, *FetchRequest) (*FetchResponse, error)
	Notify(context.Context, *InterestRequest) (*InterestResponse, error)
	Sync(context.Context, *InterestRequest) (*InterestResponse, error)
}

const (
	fetchMethod  = "/dlnode.Substrate/Fetch"
	notifyMethod = "/dlnode.Substrate/Notify"
	syncMethod   = "/dlnode.Substrate/Sync"
)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "dlnode.Substrate",
	HandlerType: (*substrateServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Fetch", Handler: fetchHandler},
		{MethodName: "Notify", Handler: notifyHandler},
		{MethodName: "Sync", Handler: syncHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "grpcsubstrate.proto",
}

func fetchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(FetchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(substrateServer).Fetch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fetchMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(substrateServer).Fetch(ctx, req.(*FetchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func notifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InterestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(substrateServer).Notify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: notifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(substrateServer).Notify(ctx, req.(*InterestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func syncHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InterestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(substrateServer).Sync(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: syncMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(substrateServer).Sync(ctx, req.(*InterestRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// rpcServer adapts a transport.Handler-style dispatch function to the
// substrateServer contract, so the same local handler answers all
// three RPCs regardless of which peer called.
type rpcServer struct {
	dispatch func(ctx context.Context, name string) (*record.Record, bool)
}

func (r *rpcServer) Fetch(ctx context.Context, req *FetchRequest) (*FetchResponse, error) {
	rec, ok := r.dispatch(ctx, req.Name)
	if !ok || rec == nil {
		return &FetchResponse{Found: false}, nil
	}
	blob, err := wire.EncodeRecord(rec)
	if err != nil {
		return nil, err
	}
	return &FetchResponse{Found: true, Blob: blob}, nil
}

func (r *rpcServer) Notify(ctx context.Context, req *InterestRequest) (*InterestResponse, error) {
	r.dispatch(ctx, req.Name)
	return &InterestResponse{}, nil
}

func (r *rpcServer) Sync(ctx context.Context, req *InterestRequest) (*InterestResponse, error) {
	r.dispatch(ctx, req.Name)
	return &InterestResponse{}, nil
}
