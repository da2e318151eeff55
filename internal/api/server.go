// Package api hosts the basket listeners: the JSON HTTP API and a gRPC
// endpoint carrying the standard health service.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"basket/internal/config"
)

// shutdownGrace bounds how long in-flight requests may run after shutdown
// starts.
const shutdownGrace = 10 * time.Second

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	httpAddr string
	grpcAddr string
	httpSrv  *http.Server
	grpcSrv  *grpc.Server
	health   *health.Server
	log      *slog.Logger
}

// NewServer creates a Server serving handler on the configured HTTP port and
// the health service on the gRPC port.
func NewServer(cfg *config.Config, handler http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "api")
	grpcSrv, hs := newGRPCServer(log)
	return &Server{
		httpAddr: net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.Port)),
		grpcAddr: net.JoinHostPort(cfg.Server.Host, fmt.Sprint(cfg.Server.GRPCPort)),
		httpSrv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			// Backtests may take up to the engine timeout.
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		grpcSrv: grpcSrv,
		health:  hs,
		log:     log,
	}
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpAddr, err)
	}
	grpcLn, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		httpLn.Close()
		return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
	}
	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve runs both servers on the given listeners until ctx is cancelled,
// then shuts them down gracefully.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	s.SetServing(true)

	g.Go(func() error {
		s.log.Info("http listening", "addr", httpLn.Addr().String())
		if err := s.httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.log.Info("grpc listening", "addr", grpcLn.Addr().String())
		if err := s.grpcSrv.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown marks the service NOT_SERVING and stops both servers, waiting
// for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	s.SetServing(false)
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcSrv.GracefulStop()
		close(stopped)
	}()

	err := s.httpSrv.Shutdown(ctx)
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcSrv.Stop()
	}
	return err
}

// SetServing flips the health status reported for BacktestService.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(BacktestService, status)
}
