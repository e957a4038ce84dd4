// Package main implements the failover daemon running on each controller.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	apppkg "github.com/i-melnichenko/ha-failover/internal/app"
	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/fenced"
	"github.com/i-melnichenko/ha-failover/internal/host"
	"github.com/i-melnichenko/ha-failover/internal/ingress"
	"github.com/i-melnichenko/ha-failover/internal/job"
	"github.com/i-melnichenko/ha-failover/internal/notify"
	"github.com/i-melnichenko/ha-failover/internal/observability/metrics"
	"github.com/i-melnichenko/ha-failover/internal/store"
	"github.com/i-melnichenko/ha-failover/internal/sysexec"
	admingrpc "github.com/i-melnichenko/ha-failover/internal/transport/grpc/admin"
	peergrpc "github.com/i-melnichenko/ha-failover/internal/transport/grpc/peer"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "node: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := apppkg.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	slog.SetDefault(newLogger(cfg.LogLevel))
	logger := slog.Default()

	hf, err := apppkg.LoadHostFile(cfg.HostFile)
	if err != nil {
		return err
	}
	keyDir := filepath.Join(cfg.DataDir, "keys")
	if err := os.MkdirAll(keyDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	var failoverMetrics failover.Metrics
	peerOpts := []peergrpc.ClientOption{peergrpc.WithTracer(otel.Tracer("ha-failover/peer-client"))}
	if cfg.MetricsAddr != "" {
		m, err := metrics.NewPrometheus(nil)
		if err != nil {
			return err
		}
		failoverMetrics = m
		peerOpts = append(peerOpts, peergrpc.WithMetrics(cfg.NodeID, m))
	}

	peer, err := peergrpc.Dial(
		cfg.PeerAddr,
		[]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		peerOpts...,
	)
	if err != nil {
		return err
	}
	defer func() { _ = peer.Close() }()

	runner := sysexec.OSRunner{}
	bus := notify.NewBus(logger)
	tracker := ingress.NewTracker(hf.InitialVRRPStates())
	sentinel := store.NewSentinel(cfg.SentinelPath)

	kmip := store.NewKMIPStore(cfg.DataDir, hf.KMIP)

	allow := make([]string, 0, len(hf.Interfaces))
	for _, iface := range hf.Interfaces {
		if iface.Internal {
			allow = append(allow, iface.Name)
		}
	}

	opts := failover.DefaultOptions()
	opts.NodeID = cfg.NodeID
	opts.ExportTimeout = cfg.ExportTimeout
	opts.PeerTimeout = cfg.PeerTimeout
	opts.StatusTTL = cfg.StatusTTL
	opts.DatabasePath = hf.Database
	opts.CacheFilePath = hf.CacheFile
	opts.SyncFiles = hf.SyncFiles
	opts.ReceiveAllowList = hf.ReceiveAllowList
	if hf.AltRoot != "" {
		opts.AltRoot = hf.AltRoot
	}
	if len(hf.Services.Critical) > 0 {
		opts.CriticalServices = hf.Services.Critical
	}
	opts.Services = hf.Services.Restart

	svc, err := failover.New(failover.Deps{
		Logger:  logger,
		Tracer:  otel.Tracer("ha-failover/failover"),
		Metrics: failoverMetrics,
		Jobs:    job.NewRunner(logger),
		Config:  store.NewConfigStore(cfg.DataDir, failover.Config{MasterNode: failover.NodeA}),
		Flags:   store.NewFlagStore(cfg.DataDir),
		Storage: host.NewZFS(host.ZFSOptions{
			Pools:     hf.Pools,
			BootPool:  hf.BootPool,
			CacheFile: hf.CacheFile,
			KeyDir:    keyDir,
		}, runner, logger),
		Fencer:     fenced.New(fenced.Options{Binary: cfg.FencedPath}, runner, logger),
		Services:   host.NewSystemd(hf.Services.Units, runner),
		Firewall:   host.NewNFTables(allow, runner),
		Interfaces: host.NewInterfaces(hf.Interfaces, tracker),
		System: host.NewSystem(host.SystemOptions{
			HooksDir:  hf.HooksDir,
			ReadyFile: hf.ReadyFile,
			Version:   hf.Version,
		}, runner, logger),
		Disks:    host.NewDisks(hf.BootPool, runner),
		Rebooter: host.NewSysrq(""),
		Sentinel: sentinel,
		Alerts:   host.NewAlerts(logger, bus),
		KMIP:     kmip,
		Identity: host.NewIdentity(hf.Node, hf.LicenseFile),
		Peer:     peer,
		Notifier: bus,
	}, opts)
	if err != nil {
		return err
	}

	app, err := apppkg.New(
		cfg,
		logger,
		svc,
		peergrpc.NewServer(svc, otel.Tracer("ha-failover/peer-server")),
		admingrpc.NewServer(svc, bus, otel.Tracer("ha-failover/admin-server")),
		ingress.NewReader(cfg.NotifyFIFO, svc, tracker, bus, logger),
		sentinel,
	)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return app.Run(ctx)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
