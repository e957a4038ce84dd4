package admingrpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/job"
	"github.com/i-melnichenko/ha-failover/internal/notify"
)

// Client calls the admin service of one controller.
type Client struct {
	conn   *grpc.ClientConn
	target string
}

// Dial returns a client for target. The connection is established lazily.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, target: target}, nil
}

// Target returns the address the client was dialed with.
func (c *Client) Target() string { return c.target }

// Close closes the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) Status(ctx context.Context) (failover.Status, error) {
	out := &wrapperspb.StringValue{}
	if err := c.invoke(ctx, methodStatus, newEmpty(), out); err != nil {
		return "", err
	}
	return failover.Status(out.GetValue()), nil
}

func (c *Client) DisabledReasons(ctx context.Context) ([]failover.Reason, error) {
	out := newList()
	if err := c.invoke(ctx, methodDisabledReasons, newEmpty(), out); err != nil {
		return nil, err
	}
	values := stringsFromPB(out)
	reasons := make([]failover.Reason, 0, len(values))
	for _, v := range values {
		reasons = append(reasons, failover.Reason(v))
	}
	return reasons, nil
}

func (c *Client) InProgress(ctx context.Context) (bool, error) {
	return c.bool(ctx, methodInProgress, newEmpty())
}

// Event injects a link-state event and returns the transition job id.
func (c *Client) Event(ctx context.Context, ifname string, kind failover.EventKind) (string, error) {
	out := &wrapperspb.StringValue{}
	if err := c.invoke(ctx, methodEvent, eventToPB(ifname, kind), out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

func (c *Client) ForceMaster(ctx context.Context) (bool, error) {
	return c.bool(ctx, methodForceMaster, newEmpty())
}

func (c *Client) BecomePassive(ctx context.Context) error {
	return c.invoke(ctx, methodBecomePassive, newEmpty(), newEmpty())
}

// SetupHA pairs the node with a peer that still reports SINGLE.
func (c *Client) SetupHA(ctx context.Context) (bool, error) {
	return c.bool(ctx, methodSetupHA, newEmpty())
}

func (c *Client) SyncToPeer(ctx context.Context, reboot bool) error {
	return c.invoke(ctx, methodSyncToPeer, wrapperspb.Bool(reboot), newEmpty())
}

func (c *Client) SyncFromPeer(ctx context.Context) error {
	return c.invoke(ctx, methodSyncFromPeer, newEmpty(), newEmpty())
}

func (c *Client) Config(ctx context.Context) (failover.Config, error) {
	out := newStruct()
	if err := c.invoke(ctx, methodGetConfig, newEmpty(), out); err != nil {
		return failover.Config{}, err
	}
	return configFromPB(out), nil
}

func (c *Client) UpdateConfig(ctx context.Context, patch failover.ConfigPatch) (failover.Config, error) {
	out := newStruct()
	if err := c.invoke(ctx, methodUpdateConfig, patchToPB(patch), out); err != nil {
		return failover.Config{}, err
	}
	return configFromPB(out), nil
}

func (c *Client) Control(ctx context.Context, action failover.ControlAction, active *bool) (bool, error) {
	return c.bool(ctx, methodControl, controlToPB(action, active))
}

func (c *Client) UpgradePending(ctx context.Context) (bool, error) {
	return c.bool(ctx, methodUpgradePending, newEmpty())
}

func (c *Client) Jobs(ctx context.Context) ([]job.Snapshot, error) {
	out := newStruct()
	if err := c.invoke(ctx, methodListJobs, newEmpty(), out); err != nil {
		return nil, err
	}
	return jobsFromPB(out), nil
}

func (c *Client) LastTransition(ctx context.Context) (failover.TransitionRecord, bool, error) {
	out := newStruct()
	if err := c.invoke(ctx, methodLastTransition, newEmpty(), out); err != nil {
		return failover.TransitionRecord{}, false, err
	}
	rec, ok := transitionFromPB(out)
	return rec, ok, nil
}

func (c *Client) MismatchDisks(ctx context.Context) (failover.DiskMismatch, error) {
	out := newStruct()
	if err := c.invoke(ctx, methodMismatchDisks, newEmpty(), out); err != nil {
		return failover.DiskMismatch{}, err
	}
	return mismatchFromPB(out), nil
}

// WatchEvents calls fn for each notification on topics until ctx is done,
// the server closes the stream or fn returns an error.
func (c *Client) WatchEvents(ctx context.Context, topics []string, fn func(notify.Event) error) error {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], fullMethod(methodWatchEvents))
	if err != nil {
		return fmt.Errorf("admin %s: %w", methodWatchEvents, err)
	}
	if err := stream.SendMsg(stringsToPB(topics)); err != nil {
		return fmt.Errorf("admin %s: %w", methodWatchEvents, err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("admin %s: %w", methodWatchEvents, err)
	}

	for {
		msg := &structpb.Struct{}
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("admin %s: %w", methodWatchEvents, err)
		}
		if err := fn(notificationFromPB(msg)); err != nil {
			return err
		}
	}
}

func (c *Client) bool(ctx context.Context, method string, in proto.Message) (bool, error) {
	out := newBool()
	if err := c.invoke(ctx, method, in, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out proto.Message) error {
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return fmt.Errorf("admin %s: %w", method, err)
	}
	return nil
}
