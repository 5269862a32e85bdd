// Package grpcserver exposes the standard grpc.health.v1.Health service for
// the jobs service.
//
// Each dependency (store, cache) is probed and reported under its own
// service name; the overall status ("") and ServiceName are SERVING only
// when every probe passes.
package grpcserver

import (
	"context"
	"net"
	"sort"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"jobmate/jobs-service/internal/logging"
)

// ServiceName is the aggregate service reported by the health server.
const ServiceName = "jobmate.jobs"

// Probe checks one dependency.
type Probe func(ctx context.Context) error

// Server wraps a grpc.Server carrying the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	probes map[string]Probe
	log    *logging.Logger
}

// NewServer registers the health service. probes is keyed by dependency
// name, e.g. "store" and "cache"; each is reported as ServiceName + "." + key.
func NewServer(probes map[string]Probe, log *logging.Logger) *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	// NOT_SERVING until the first Check.
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		grpc:   gs,
		health: hs,
		probes: probes,
		log:    log.With("component", "grpc"),
	}
}

// Check runs every probe once and updates the reported statuses. It returns
// true when all probes passed.
func (s *Server) Check(ctx context.Context) bool {
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	healthy := true
	for _, name := range names {
		st := healthpb.HealthCheckResponse_SERVING
		if err := s.probes[name](ctx); err != nil {
			s.log.Warn("health probe failed", "dependency", name, "err", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
			healthy = false
		}
		s.health.SetServingStatus(ServiceName+"."+name, st)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	s.health.SetServingStatus(ServiceName, overall)
	return healthy
}

// Watch re-runs Check every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			s.Check(probeCtx)
			cancel()
		}
	}
}

// Serve blocks accepting connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks everything NOT_SERVING and drains open RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
