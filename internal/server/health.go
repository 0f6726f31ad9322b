package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultCheckInterval is how often health checks run when none is given.
const DefaultCheckInterval = 10 * time.Second

// Check probes one dependency; a nil error means serving.
type Check func(ctx context.Context) error

// HealthService serves the standard grpc.health.v1 service. The overall
// status ("") is SERVING while every registered check passes; each check is
// also reported under its own service name.
type HealthService struct {
	addr     string
	interval time.Duration
	logger   *zap.Logger
	server   *grpc.Server
	health   *health.Server

	mu     sync.Mutex
	lis    net.Listener
	checks map[string]Check
	done   chan struct{}
	once   sync.Once
}

// NewHealthService creates a HealthService listening on addr once started.
//
// Precondition: addr must be a valid listen address; logger must be non-nil.
// interval <= 0 uses DefaultCheckInterval.
func NewHealthService(addr string, interval time.Duration, logger *zap.Logger) *HealthService {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	h := &HealthService{
		addr:     addr,
		interval: interval,
		logger:   logger,
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		checks:   make(map[string]Check),
		done:     make(chan struct{}),
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	return h
}

// AddCheck registers a dependency probe under name.
//
// Precondition: name must be non-empty and check non-nil; called before Start.
func (h *HealthService) AddCheck(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
	h.health.SetServingStatus(name, healthpb.HealthCheckResponse_UNKNOWN)
}

// RunChecks runs every check once and publishes the statuses.
//
// Postcondition: Returns true when every check passed.
func (h *HealthService) RunChecks(ctx context.Context) bool {
	h.mu.Lock()
	checks := make(map[string]Check, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.Unlock()

	healthy := true
	for name, c := range checks {
		status := healthpb.HealthCheckResponse_SERVING
		if err := c(ctx); err != nil {
			healthy = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			h.logger.Warn("health check failing", zap.String("check", name), zap.Error(err))
		}
		h.health.SetServingStatus(name, status)
	}
	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", overall)
	return healthy
}

// Start listens on the configured address, runs the checks once, and
// serves until Stop.
func (h *HealthService) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	h.RunChecks(context.Background())
	h.mu.Lock()
	h.lis = lis
	h.mu.Unlock()
	go h.poll()

	h.logger.Info("health service listening", zap.String("addr", lis.Addr().String()))
	if err := h.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serving health: %w", err)
	}
	return nil
}

func (h *HealthService) poll() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), h.interval)
			h.RunChecks(ctx)
			cancel()
		}
	}
}

// Stop marks every service NOT_SERVING and stops the gRPC server.
func (h *HealthService) Stop() {
	h.once.Do(func() {
		close(h.done)
		h.health.Shutdown()
		h.server.GracefulStop()
	})
}

// Addr returns the listener address, or nil before Start has listened.
func (h *HealthService) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lis == nil {
		return nil
	}
	return h.lis.Addr()
}
