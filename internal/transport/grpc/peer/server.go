package peergrpc

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/i-melnichenko/ha-failover/internal/failover"
)

// Handler is the subset of *failover.Service answering peer calls.
// *failover.Service satisfies this interface.
type Handler interface {
	Status(ctx context.Context) (failover.Status, error)
	SystemReady(ctx context.Context) (bool, error)
	ImportedPools(ctx context.Context) ([]string, error)
	Licensed(ctx context.Context) (bool, error)
	VRRPStates(ctx context.Context) (map[string]failover.VRRPState, error)
	LocalDisks(ctx context.Context) ([]string, error)
	Version() string
	ReplaceEncryptionKeys(keys map[string]string)
	PutKMIPKeys(ctx context.Context, keys map[string]string) error
	ReceiveFile(ctx context.Context, chunk failover.FileChunk) error
	ActivateDatabase(ctx context.Context) error
	CacheFileSetup(ctx context.Context, mode failover.CacheFileMode) error
	ServiceControl(ctx context.Context, verb, service string) error
	SyncKeysToRemote(ctx context.Context) error
	SyncToPeer(ctx context.Context, reboot bool) error
	ForceMaster(ctx context.Context) (bool, error)
	Reboot(ctx context.Context, delay time.Duration) error
}

// Server serves the peer RPCs by delegating to a Handler.
type Server struct {
	handler Handler
	tracer  oteltrace.Tracer
}

// NewServer creates a peer gRPC server adapter for the provided handler.
func NewServer(handler Handler, tracer oteltrace.Tracer) *Server {
	return &Server{handler: handler, tracer: tracer}
}

func (*Server) peerService() {}

// Ping answers liveness checks.
func (s *Server) Ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	_, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.Ping")
	defer span.End()
	return &emptypb.Empty{}, nil
}

// Status returns this node's failover status.
func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	ctx, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.Status")
	defer span.End()

	st, err := s.handler.Status(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	span.SetAttributes(attribute.String("failover.status", string(st)))
	return wrapperspb.String(string(st)), nil
}

// SystemReady reports whether this node finished booting.
func (s *Server) SystemReady(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	ctx, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.SystemReady")
	defer span.End()

	ready, err := s.handler.SystemReady(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return wrapperspb.Bool(ready), nil
}

// ImportedPools lists pools imported on this node.
func (s *Server) ImportedPools(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	ctx, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.ImportedPools")
	defer span.End()

	pools, err := s.handler.ImportedPools(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	span.SetAttributes(attribute.Int("failover.pools", len(pools)))
	return stringsToPB(pools), nil
}

// Licensed reports whether this node holds an HA license.
func (s *Server) Licensed(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	ctx, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.Licensed")
	defer span.End()

	ok, err := s.handler.Licensed(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

// VRRPStates returns this node's VRRP role per interface.
func (s *Server) VRRPStates(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.VRRPStates")
	defer span.End()

	states, err := s.handler.VRRPStates(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return vrrpStatesToPB(states), nil
}

// Disks returns this node's non-boot disk identities.
func (s *Server) Disks(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	ctx, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.Disks")
	defer span.End()

	disks, err := s.handler.LocalDisks(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return stringsToPB(disks), nil
}

// Version returns the installed software version.
func (s *Server) Version(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	_, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.Version")
	defer span.End()
	return wrapperspb.String(s.handler.Version()), nil
}

// PutEncryptionKeys replaces the local key cache with the pushed set.
func (s *Server) PutEncryptionKeys(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	_, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.PutEncryptionKeys",
		oteltrace.WithAttributes(attribute.Int("failover.keys", len(req.GetFields()))))
	defer span.End()

	s.handler.ReplaceEncryptionKeys(stringMapFromPB(req))
	return &emptypb.Empty{}, nil
}

// PutKMIPKeys installs KMIP-managed keys.
func (s *Server) PutKMIPKeys(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	ctx, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.PutKMIPKeys")
	defer span.End()

	if err := s.handler.PutKMIPKeys(ctx, stringMapFromPB(req)); err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ReceiveFile writes one pushed file chunk.
func (s *Server) ReceiveFile(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	ctx, span := s.tracer.Start(extractTraceContext(ctx), "peergrpc.server.ReceiveFile")
	defer span.End()

	chunk, err := fileChunkFromPB(req)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	span.SetAttributes(
		attribute.String("failover.file.path", chunk.Path),
		attribute.Int("failover.file.bytes", len(chunk.Data)),
		attribute.Bool("failover.file.append", chunk.Append),
	)
	if err := s.handler.ReceiveFile(ctx, chunk); err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// ActivateDatabase installs the staged configuration database.
func (s *Server) ActivateDatabase(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return s.empty(ctx, "peergrpc.server.ActivateDatabase", s.handler.ActivateDatabase)
}

// CacheFileSetup prepares the local pool cache-file.
func (s *Server) CacheFileSetup(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return s.empty(ctx, "peergrpc.server.CacheFileSetup", func(ctx context.Context) error {
		return s.handler.CacheFileSetup(ctx, failover.CacheFileMode(req.GetValue()))
	})
}

// ServiceControl starts, stops or restarts a local service.
func (s *Server) ServiceControl(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	verb, service := serviceControlFromPB(req)
	return s.empty(ctx, "peergrpc.server.ServiceControl", func(ctx context.Context) error {
		return s.handler.ServiceControl(ctx, verb, service)
	})
}

// SyncKeysToRemote pushes this node's keys back to the caller.
func (s *Server) SyncKeysToRemote(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return s.empty(ctx, "peergrpc.server.SyncKeysToRemote", s.handler.SyncKeysToRemote)
}

// SyncToPeer pushes this node's database and files back to the caller.
func (s *Server) SyncToPeer(ctx context.Context, req *wrapperspb.BoolValue) (*emptypb.Empty, error) {
	return s.empty(ctx, "peergrpc.server.SyncToPeer", func(ctx context.Context) error {
		return s.handler.SyncToPeer(ctx, req.GetValue())
	})
}

// ForceMaster makes this node MASTER.
func (s *Server) ForceMaster(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return s.empty(ctx, "peergrpc.server.ForceMaster", func(ctx context.Context) error {
		_, err := s.handler.ForceMaster(ctx)
		return err
	})
}

// Reboot schedules a reboot of this node.
func (s *Server) Reboot(ctx context.Context, req *durationpb.Duration) (*emptypb.Empty, error) {
	return s.empty(ctx, "peergrpc.server.Reboot", func(ctx context.Context) error {
		return s.handler.Reboot(ctx, durationFromPB(req))
	})
}

func (s *Server) empty(ctx context.Context, name string, fn func(context.Context) error) (*emptypb.Empty, error) {
	ctx, span := s.tracer.Start(extractTraceContext(ctx), name)
	defer span.End()

	if err := fn(ctx); err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func toGRPCStatus(err error) error {
	switch {
	case errors.Is(err, failover.ErrInvalidArgument), errors.Is(err, failover.ErrPathNotAllowed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, failover.ErrNotLicensed), errors.Is(err, failover.ErrNotMaster),
		errors.Is(err, failover.ErrManualNode), errors.Is(err, failover.ErrNoCriticalInterfaces):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

