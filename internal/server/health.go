// Package server provides the gRPC server of the paper sharing service. It
// serves the standard grpc.health.v1 protocol, reporting SERVING while the
// database is reachable.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/helixir/paper-sharing-service/internal/database"
	"github.com/helixir/paper-sharing-service/internal/observability"
)

// ServiceName is the health service name reported alongside the overall
// ("") status.
const ServiceName = "papershare.v1.PaperSharingService"

// DefaultCheckInterval is how often database health is probed.
const DefaultCheckInterval = 10 * time.Second

// HealthChecker reports database health.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// HealthServer keeps the grpc.health.v1 status in step with database health.
type HealthServer struct {
	health   *health.Server
	db       HealthChecker
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	serving bool
}

// NewHealthServer creates a health server. It reports NOT_SERVING until the
// first successful probe.
func NewHealthServer(db HealthChecker, interval time.Duration, logger zerolog.Logger) *HealthServer {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	h := &HealthServer{
		health:   health.NewServer(),
		db:       db,
		interval: interval,
		logger:   observability.WithComponent(logger, "grpc-health"),
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register adds the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Probe checks the database once and updates the serving status.
func (h *HealthServer) Probe(ctx context.Context) bool {
	status := h.db.Health(ctx)
	healthy := status.Healthy()

	h.mu.Lock()
	defer h.mu.Unlock()
	if healthy != h.serving {
		if healthy {
			h.logger.Info().Msg("database healthy, serving")
		} else {
			h.logger.Warn().Str("error", status.Error).Msg("database unhealthy, not serving")
		}
	}
	h.serving = healthy
	if healthy {
		h.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return healthy
}

// Run probes the database every interval until ctx is done, then marks the
// service NOT_SERVING for the rest of shutdown.
func (h *HealthServer) Run(ctx context.Context) {
	h.Probe(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}

func (h *HealthServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

// NewGRPCServer creates a gRPC server with keepalive and size limits, the
// health service and reflection registered.
func NewGRPCServer(h *HealthServer) *grpc.Server {
	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.MaxSendMsgSize(4*1024*1024),
		grpc.MaxConcurrentStreams(100),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Minute,
			Time:                  5 * time.Minute,
			Timeout:               1 * time.Minute,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Minute,
			PermitWithoutStream: true,
		}),
	)
	h.Register(s)
	reflection.Register(s)
	return s
}
