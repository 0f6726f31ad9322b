package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// shutdownTimeout bounds a graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// HTTPService serves an http.Handler, typically the Prometheus exposition
// handler mounted at /metrics.
type HTTPService struct {
	addr   string
	srv    *http.Server
	logger *zap.Logger

	mu  sync.Mutex
	lis net.Listener
}

// NewMetricsService creates an HTTPService exposing handler at /metrics.
//
// Precondition: handler and logger must be non-nil.
func NewMetricsService(addr string, handler http.Handler, logger *zap.Logger) *HTTPService {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	return &HTTPService{
		addr:   addr,
		logger: logger,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start listens on the configured address and serves until Stop.
func (s *HTTPService) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()

	s.logger.Info("metrics service listening", zap.String("addr", lis.Addr().String()))
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting up to shutdownTimeout for requests.
func (s *HTTPService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("metrics shutdown", zap.Error(err))
	}
}

// Addr returns the listener address, or nil before Start has listened.
func (s *HTTPService) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}
