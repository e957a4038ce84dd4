// Package app wires the failover service, its host adapters and the gRPC
// transports together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/i-melnichenko/ha-failover/internal/failover"
	"github.com/i-melnichenko/ha-failover/internal/ingress"
	admingrpc "github.com/i-melnichenko/ha-failover/internal/transport/grpc/admin"
	peergrpc "github.com/i-melnichenko/ha-failover/internal/transport/grpc/peer"
)

const (
	shutdownTimeout     = 10 * time.Second
	gracefulStopTimeout = 5 * time.Second
)

// Logger is the logging interface required by App.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Sentinel reports and clears the unclean-shutdown marker left by an
// emergency reboot.
type Sentinel interface {
	MarkedAt() (time.Time, bool, error)
	Clear() error
}

// App runs the failover daemon until shutdown.
// All dependencies are injected; App does not create transport connections.
type App struct {
	config   Config
	logger   Logger
	failover *failover.Service
	peerSrv  *peergrpc.Server
	adminSrv *admingrpc.Server
	ingress  *ingress.Reader
	sentinel Sentinel
}

// New validates dependencies and constructs a runnable application.
func New(
	cfg Config,
	logger Logger,
	svc *failover.Service,
	peerSrv *peergrpc.Server,
	adminSrv *admingrpc.Server,
	reader *ingress.Reader,
	sentinel Sentinel,
) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, fmt.Errorf("app: nil logger")
	}
	if svc == nil {
		return nil, fmt.Errorf("app: nil failover service")
	}
	if peerSrv == nil {
		return nil, fmt.Errorf("app: nil peer server")
	}
	if adminSrv == nil {
		return nil, fmt.Errorf("app: nil admin server")
	}
	if reader == nil {
		return nil, fmt.Errorf("app: nil ingress reader")
	}
	return &App{
		config:   cfg,
		logger:   logger,
		failover: svc,
		peerSrv:  peerSrv,
		adminSrv: adminSrv,
		ingress:  reader,
		sentinel: sentinel,
	}, nil
}

// Run starts the gRPC server, the notify reader and the background loops and
// blocks until shutdown or a fatal error.
func (a *App) Run(ctx context.Context) error {
	shutdownTracing, err := a.initTracing(ctx)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), gracefulStopTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			a.logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a.checkSentinel()

	lis, err := net.Listen("tcp", a.config.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", a.config.GRPCAddr, err)
	}
	defer func() { _ = lis.Close() }()

	a.logger.Info(
		"node started",
		"node_id", a.config.NodeID,
		"grpc_addr", a.config.GRPCAddr,
		"peer_addr", a.config.PeerAddr,
		"notify_fifo", a.config.NotifyFIFO,
	)

	return a.serve(ctx, lis)
}

// serve registers gRPC services, starts goroutines, and blocks until ctx is
// canceled or one of them fails.
func (a *App) serve(ctx context.Context, lis net.Listener) error {
	metricsSrv, metricsLis, err := a.metricsServer()
	if err != nil {
		return err
	}
	pprofSrv, pprofLis, err := a.pprofServer()
	if err != nil {
		if metricsLis != nil {
			_ = metricsLis.Close()
		}
		return err
	}

	server := grpc.NewServer()
	peergrpc.RegisterServer(server, a.peerSrv)
	admingrpc.RegisterServer(server, a.adminSrv)
	reflection.Register(server)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Serve(lis); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	serveHTTP(g, metricsSrv, metricsLis, "metrics")
	serveHTTP(g, pprofSrv, pprofLis, "pprof")

	g.Go(func() error {
		if err := a.ingress.Run(gctx); err != nil {
			return fmt.Errorf("notify reader: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.failover.OnSystemReady(gctx); err != nil && gctx.Err() == nil {
			a.logger.Warn("system ready hook failed", "error", err)
		}
		if ok, err := a.failover.SetupHA(gctx); err != nil && gctx.Err() == nil {
			a.logger.Warn("HA setup failed", "error", err)
		} else if ok {
			a.logger.Info("paired with standby controller")
		}
		return nil
	})
	g.Go(func() error {
		a.pollReasons(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.shutdown()
		stopGRPC(server)
		shutdownHTTPServer(metricsSrv, a.logger, "metrics server")
		shutdownHTTPServer(pprofSrv, a.logger, "pprof server")
		return nil
	})

	return g.Wait()
}

// pollReasons recomputes the disabled reasons so that changes are announced
// and exported even when nobody asks.
func (a *App) pollReasons(ctx context.Context) {
	if a.config.ReasonsPoll <= 0 {
		return
	}
	ticker := time.NewTicker(a.config.ReasonsPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := a.failover.DisabledReasons(ctx); err != nil && ctx.Err() == nil {
			a.logger.Debug("disabled reasons poll failed", "error", err)
		}
	}
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.config.StopFencedOnShutdown {
		a.failover.OnShutdown(ctx)
	}
	if err := a.failover.Wait(ctx); err != nil {
		a.logger.Warn("background failover work still running at shutdown", "error", err)
	}
}

func (a *App) checkSentinel() {
	if a.sentinel == nil {
		return
	}
	at, ok, err := a.sentinel.MarkedAt()
	if err != nil {
		a.logger.Warn("read shutdown sentinel failed", "error", err)
		return
	}
	if !ok {
		return
	}
	a.logger.Warn("previous shutdown was an intentional emergency reboot", "marked_at", at)
	if err := a.sentinel.Clear(); err != nil {
		a.logger.Warn("clear shutdown sentinel failed", "error", err)
	}
}

// stopGRPC drains in-flight RPCs and force-closes the server when streams do
// not finish in time.
func stopGRPC(server *grpc.Server) {
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(gracefulStopTimeout):
		server.Stop()
	}
}

func serveHTTP(g *errgroup.Group, srv *http.Server, lis net.Listener, name string) {
	if srv == nil {
		return
	}
	g.Go(func() error {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s serve: %w", name, err)
		}
		return nil
	})
}
