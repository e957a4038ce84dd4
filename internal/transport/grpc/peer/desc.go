// Package peergrpc contains the controller-to-controller gRPC transport.
//
// The service is declared by hand over protobuf well-known types, so no
// generated code is needed on either side.
package peergrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "ha.failover.v1.PeerService"

// RPC method names.
const (
	methodPing              = "Ping"
	methodStatus            = "Status"
	methodSystemReady       = "SystemReady"
	methodImportedPools     = "ImportedPools"
	methodLicensed          = "Licensed"
	methodVRRPStates        = "VRRPStates"
	methodDisks             = "Disks"
	methodVersion           = "Version"
	methodPutEncryptionKeys = "PutEncryptionKeys"
	methodPutKMIPKeys       = "PutKMIPKeys"
	methodReceiveFile       = "ReceiveFile"
	methodActivateDatabase  = "ActivateDatabase"
	methodCacheFileSetup    = "CacheFileSetup"
	methodServiceControl    = "ServiceControl"
	methodSyncKeysToRemote  = "SyncKeysToRemote"
	methodSyncToPeer        = "SyncToPeer"
	methodForceMaster       = "ForceMaster"
	methodReboot            = "Reboot"
)

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

// peerServer marks the types accepted by RegisterServer.
type peerServer interface {
	peerService()
}

// serviceDesc lists every peer RPC. Each handler decodes its request message
// and dispatches to the matching *Server method.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*peerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(methodPing, newEmpty, (*Server).Ping),
		unary(methodStatus, newEmpty, (*Server).Status),
		unary(methodSystemReady, newEmpty, (*Server).SystemReady),
		unary(methodImportedPools, newEmpty, (*Server).ImportedPools),
		unary(methodLicensed, newEmpty, (*Server).Licensed),
		unary(methodVRRPStates, newEmpty, (*Server).VRRPStates),
		unary(methodDisks, newEmpty, (*Server).Disks),
		unary(methodVersion, newEmpty, (*Server).Version),
		unary(methodPutEncryptionKeys, newStruct, (*Server).PutEncryptionKeys),
		unary(methodPutKMIPKeys, newStruct, (*Server).PutKMIPKeys),
		unary(methodReceiveFile, newStruct, (*Server).ReceiveFile),
		unary(methodActivateDatabase, newEmpty, (*Server).ActivateDatabase),
		unary(methodCacheFileSetup, newString, (*Server).CacheFileSetup),
		unary(methodServiceControl, newStruct, (*Server).ServiceControl),
		unary(methodSyncKeysToRemote, newEmpty, (*Server).SyncKeysToRemote),
		unary(methodSyncToPeer, newBool, (*Server).SyncToPeer),
		unary(methodForceMaster, newEmpty, (*Server).ForceMaster),
		unary(methodReboot, newDuration, (*Server).Reboot),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ha/failover/v1/peer.proto",
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
