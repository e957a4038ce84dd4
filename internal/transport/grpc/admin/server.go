package admingrpc

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/job"
	"github.com/i-melnichenko/ha-failover/internal/notify"
)

// Handler is the subset of *failover.Service exposed to operators.
// *failover.Service satisfies this interface.
type Handler interface {
	Status(ctx context.Context) (failover.Status, error)
	DisabledReasons(ctx context.Context) (failover.Reasons, error)
	InProgress() bool
	Event(ctx context.Context, ifname string, kind failover.EventKind) (*job.Job, error)
	ForceMaster(ctx context.Context) (bool, error)
	BecomePassive(ctx context.Context) error
	SetupHA(ctx context.Context) (bool, error)
	SyncToPeer(ctx context.Context, reboot bool) error
	SyncFromPeer(ctx context.Context) error
	Config(ctx context.Context) (failover.Config, error)
	UpdateConfig(ctx context.Context, patch failover.ConfigPatch) (failover.Config, error)
	Control(ctx context.Context, action failover.ControlAction, active *bool) (bool, error)
	UpgradePending(ctx context.Context) (bool, error)
	LastTransition() (failover.TransitionRecord, bool)
	MismatchDisks(ctx context.Context) (failover.DiskMismatch, error)
	Jobs() *job.Runner
}

// Subscriber streams notifications. *notify.Bus satisfies this interface.
type Subscriber interface {
	Subscribe(topics ...string) (<-chan notify.Event, func())
}

// Server serves the admin RPCs.
type Server struct {
	handler Handler
	events  Subscriber
	tracer  oteltrace.Tracer
}

// NewServer creates an admin gRPC server adapter.
func NewServer(handler Handler, events Subscriber, tracer oteltrace.Tracer) *Server {
	return &Server{handler: handler, events: events, tracer: tracer}
}

func (*Server) adminService() {}

// Status returns the node-level failover status.
func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	ctx, span := s.tracer.Start(ctx, "admingrpc.server.Status")
	defer span.End()

	st, err := s.handler.Status(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return wrapperspb.String(string(st)), nil
}

// DisabledReasons returns the sorted reasons failover is inoperative.
func (s *Server) DisabledReasons(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	ctx, span := s.tracer.Start(ctx, "admingrpc.server.DisabledReasons")
	defer span.End()

	reasons, err := s.handler.DisabledReasons(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	sorted := reasons.Sorted()
	out := make([]string, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, string(r))
	}
	span.SetAttributes(attribute.Int("failover.reasons", len(out)))
	return stringsToPB(out), nil
}

func (s *Server) InProgress(_ context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.handler.InProgress()), nil
}

// Event injects a link-state event as if VRRP had delivered it.
func (s *Server) Event(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	ifname, kind := eventFromPB(req)
	ctx, span := s.tracer.Start(ctx, "admingrpc.server.Event", oteltrace.WithAttributes(
		attribute.String("failover.interface", ifname),
		attribute.String("failover.event", string(kind)),
	))
	defer span.End()

	j, err := s.handler.Event(ctx, ifname, kind)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return wrapperspb.String(j.ID()), nil
}

func (s *Server) ForceMaster(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	ctx, span := s.tracer.Start(ctx, "admingrpc.server.ForceMaster")
	defer span.End()

	ok, err := s.handler.ForceMaster(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) BecomePassive(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return s.empty(ctx, "admingrpc.server.BecomePassive", s.handler.BecomePassive)
}

func (s *Server) SetupHA(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	ctx, span := s.tracer.Start(ctx, "admingrpc.server.SetupHA")
	defer span.End()

	ok, err := s.handler.SetupHA(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) SyncToPeer(ctx context.Context, req *wrapperspb.BoolValue) (*emptypb.Empty, error) {
	return s.empty(ctx, "admingrpc.server.SyncToPeer", func(ctx context.Context) error {
		return s.handler.SyncToPeer(ctx, req.GetValue())
	})
}

func (s *Server) SyncFromPeer(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return s.empty(ctx, "admingrpc.server.SyncFromPeer", s.handler.SyncFromPeer)
}

func (s *Server) GetConfig(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "admingrpc.server.GetConfig")
	defer span.End()

	cfg, err := s.handler.Config(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return configToPB(cfg), nil
}

// UpdateConfig applies a partial configuration update.
func (s *Server) UpdateConfig(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "admingrpc.server.UpdateConfig")
	defer span.End()

	cfg, err := s.handler.UpdateConfig(ctx, patchFromPB(req))
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return configToPB(cfg), nil
}

// Control enables or disables failover.
func (s *Server) Control(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	action, active := controlFromPB(req)
	ctx, span := s.tracer.Start(ctx, "admingrpc.server.Control", oteltrace.WithAttributes(
		attribute.String("failover.action", string(action)),
	))
	defer span.End()

	changed, err := s.handler.Control(ctx, action, active)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return wrapperspb.Bool(changed), nil
}

func (s *Server) UpgradePending(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	ctx, span := s.tracer.Start(ctx, "admingrpc.server.UpgradePending")
	defer span.End()

	pending, err := s.handler.UpgradePending(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return wrapperspb.Bool(pending), nil
}

// ListJobs returns the retained jobs, oldest first.
func (s *Server) ListJobs(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return jobsToPB(s.handler.Jobs().List()), nil
}

func (s *Server) LastTransition(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return transitionToPB(s.handler.LastTransition()), nil
}

func (s *Server) MismatchDisks(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ctx, span := s.tracer.Start(ctx, "admingrpc.server.MismatchDisks")
	defer span.End()

	m, err := s.handler.MismatchDisks(ctx)
	if err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return mismatchToPB(m), nil
}

// WatchEvents streams notifications on the requested topics until the
// client goes away. An empty topic list subscribes to everything.
func (s *Server) WatchEvents(req *structpb.ListValue, stream grpc.ServerStream) error {
	events, cancel := s.events.Subscribe(stringsFromPB(req)...)
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(notificationToPB(ev)); err != nil {
				return err
			}
		}
	}
}

func (s *Server) empty(ctx context.Context, spanName string, call func(context.Context) error) (*emptypb.Empty, error) {
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	if err := call(ctx); err != nil {
		recordSpanError(span, err)
		return nil, toGRPCStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func toGRPCStatus(err error) error {
	switch {
	case errors.Is(err, failover.ErrIgnoreEvent):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, failover.ErrInvalidArgument):
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

func recordSpanError(span oteltrace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}
