package peergrpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/i-melnichenko/ha-failover/internal/failover"
)

// Client implements failover.Peer over a gRPC connection.
type Client struct {
	conn    *grpc.ClientConn
	target  string
	nodeID  string
	tracer  oteltrace.Tracer
	metrics Metrics
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTracer traces every outgoing call.
func WithTracer(t oteltrace.Tracer) ClientOption {
	return func(c *Client) { c.tracer = t }
}

// WithMetrics records call latency and status codes under nodeID.
func WithMetrics(nodeID string, m Metrics) ClientOption {
	return func(c *Client) {
		c.nodeID = nodeID
		c.metrics = m
	}
}

// Dial connects to the peer controller and returns a Client.
// The connection is established lazily on the first RPC call.
func Dial(target string, dialOpts []grpc.DialOption, opts ...ClientOption) (*Client, error) {
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:    conn,
		target:  target,
		tracer:  noop.NewTracerProvider().Tracer("peergrpc"),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the underlying gRPC connection to the peer.
func (c *Client) Close() error {
	return c.conn.Close()
}

var _ failover.Peer = (*Client)(nil)

// Ping checks that the peer answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.invoke(ctx, methodPing, newEmpty(), newEmpty())
}

// Status returns the peer's failover status.
func (c *Client) Status(ctx context.Context) (failover.Status, error) {
	out := newString()
	if err := c.invoke(ctx, methodStatus, newEmpty(), out); err != nil {
		return "", err
	}
	return failover.Status(out.GetValue()), nil
}

// SystemReady reports whether the peer finished booting.
func (c *Client) SystemReady(ctx context.Context) (bool, error) {
	out := newBool()
	if err := c.invoke(ctx, methodSystemReady, newEmpty(), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// ImportedPools lists pools imported on the peer.
func (c *Client) ImportedPools(ctx context.Context) ([]string, error) {
	out := newList()
	if err := c.invoke(ctx, methodImportedPools, newEmpty(), out); err != nil {
		return nil, err
	}
	return stringsFromPB(out), nil
}

// Licensed reports whether the peer holds an HA license.
func (c *Client) Licensed(ctx context.Context) (bool, error) {
	out := newBool()
	if err := c.invoke(ctx, methodLicensed, newEmpty(), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// VRRPStates returns the peer's VRRP role per interface.
func (c *Client) VRRPStates(ctx context.Context) (map[string]failover.VRRPState, error) {
	out := newStruct()
	if err := c.invoke(ctx, methodVRRPStates, newEmpty(), out); err != nil {
		return nil, err
	}
	return vrrpStatesFromPB(out), nil
}

// Disks returns the peer's non-boot disk identities.
func (c *Client) Disks(ctx context.Context) ([]string, error) {
	out := newList()
	if err := c.invoke(ctx, methodDisks, newEmpty(), out); err != nil {
		return nil, err
	}
	return stringsFromPB(out), nil
}

// Version returns the peer's software version.
func (c *Client) Version(ctx context.Context) (string, error) {
	out := newString()
	if err := c.invoke(ctx, methodVersion, newEmpty(), out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// PutEncryptionKeys replaces the peer's key cache.
func (c *Client) PutEncryptionKeys(ctx context.Context, keys map[string]string) error {
	return c.invoke(ctx, methodPutEncryptionKeys, stringMapToPB(keys), newEmpty(),
		attribute.Int("failover.keys", len(keys)))
}

// PutKMIPKeys installs KMIP-managed keys on the peer.
func (c *Client) PutKMIPKeys(ctx context.Context, keys map[string]string) error {
	return c.invoke(ctx, methodPutKMIPKeys, stringMapToPB(keys), newEmpty(),
		attribute.Int("failover.keys", len(keys)))
}

// ReceiveFile pushes one file chunk to the peer.
func (c *Client) ReceiveFile(ctx context.Context, chunk failover.FileChunk) error {
	return c.invoke(ctx, methodReceiveFile, fileChunkToPB(chunk), newEmpty(),
		attribute.String("failover.file.path", chunk.Path),
		attribute.Int("failover.file.bytes", len(chunk.Data)),
	)
}

// ActivateDatabase asks the peer to install the staged database.
func (c *Client) ActivateDatabase(ctx context.Context) error {
	return c.invoke(ctx, methodActivateDatabase, newEmpty(), newEmpty())
}

// CacheFileSetup prepares the peer's pool cache-file.
func (c *Client) CacheFileSetup(ctx context.Context, mode failover.CacheFileMode) error {
	return c.invoke(ctx, methodCacheFileSetup, wrapperspb.String(string(mode)), newEmpty())
}

// ServiceControl runs a service verb on the peer.
func (c *Client) ServiceControl(ctx context.Context, verb, service string) error {
	return c.invoke(ctx, methodServiceControl, serviceControlToPB(verb, service), newEmpty(),
		attribute.String("failover.service", service))
}

// SyncKeysToRemote asks the peer to push its keys here.
func (c *Client) SyncKeysToRemote(ctx context.Context) error {
	return c.invoke(ctx, methodSyncKeysToRemote, newEmpty(), newEmpty())
}

// SyncToPeer asks the peer to push its database and files here.
func (c *Client) SyncToPeer(ctx context.Context, reboot bool) error {
	return c.invoke(ctx, methodSyncToPeer, wrapperspb.Bool(reboot), newEmpty())
}

// ForceMaster asks the peer to become MASTER.
func (c *Client) ForceMaster(ctx context.Context) error {
	return c.invoke(ctx, methodForceMaster, newEmpty(), newEmpty())
}

// Reboot asks the peer to reboot after delay.
func (c *Client) Reboot(ctx context.Context, delay time.Duration) error {
	return c.invoke(ctx, methodReboot, durationpb.New(delay), newEmpty())
}

func (c *Client) invoke(ctx context.Context, method string, in, out proto.Message, attrs ...attribute.KeyValue) error {
	attrs = append(attrs, attribute.String("failover.peer.target", c.target))
	ctx, span := c.tracer.Start(ctx, "peergrpc.client."+method, oteltrace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := c.conn.Invoke(injectTraceContext(ctx), fullMethod(method), in, out)
	c.metrics.ObservePeerRPC(c.nodeID, method, status.Code(err).String(), time.Since(start))
	if err != nil {
		recordSpanError(span, err)
		return fmt.Errorf("peer %s: %w", method, err)
	}
	return nil
}
