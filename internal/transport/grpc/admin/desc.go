// Package admingrpc contains the operator-facing gRPC transport.
package admingrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "ha.failover.v1.AdminService"

// RPC method names.
const (
	methodStatus          = "Status"
	methodDisabledReasons = "DisabledReasons"
	methodInProgress      = "InProgress"
	methodEvent           = "Event"
	methodForceMaster     = "ForceMaster"
	methodBecomePassive   = "BecomePassive"
	methodSetupHA         = "SetupHA"
	methodSyncToPeer      = "SyncToPeer"
	methodSyncFromPeer    = "SyncFromPeer"
	methodGetConfig       = "GetConfig"
	methodUpdateConfig    = "UpdateConfig"
	methodControl         = "Control"
	methodUpgradePending  = "UpgradePending"
	methodListJobs        = "ListJobs"
	methodLastTransition  = "LastTransition"
	methodMismatchDisks   = "MismatchDisks"
	methodWatchEvents     = "WatchEvents"
)

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

type adminServer interface {
	adminService()
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*adminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodStatus, newEmpty, (*Server).Status),
		unary(methodDisabledReasons, newEmpty, (*Server).DisabledReasons),
		unary(methodInProgress, newEmpty, (*Server).InProgress),
		unary(methodEvent, newStruct, (*Server).Event),
		unary(methodForceMaster, newEmpty, (*Server).ForceMaster),
		unary(methodBecomePassive, newEmpty, (*Server).BecomePassive),
		unary(methodSetupHA, newEmpty, (*Server).SetupHA),
		unary(methodSyncToPeer, newBool, (*Server).SyncToPeer),
		unary(methodSyncFromPeer, newEmpty, (*Server).SyncFromPeer),
		unary(methodGetConfig, newEmpty, (*Server).GetConfig),
		unary(methodUpdateConfig, newStruct, (*Server).UpdateConfig),
		unary(methodControl, newStruct, (*Server).Control),
		unary(methodUpgradePending, newEmpty, (*Server).UpgradePending),
		unary(methodListJobs, newEmpty, (*Server).ListJobs),
		unary(methodLastTransition, newEmpty, (*Server).LastTransition),
		unary(methodMismatchDisks, newEmpty, (*Server).MismatchDisks),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    methodWatchEvents,
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := newList()
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(*Server).WatchEvents(in, stream)
			},
		},
	},
	Metadata: "ha/failover/v1/admin.proto",
}

// RegisterServer registers srv on r.
func RegisterServer(r grpc.ServiceRegistrar, srv *Server) {
	r.RegisterService(&serviceDesc, srv)
}

func unary[Req, Resp proto.Message](name string, newReq func() Req, call func(*Server, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(Req))
			})
		},
	}
}

