package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsServer serves /metrics and /healthz over HTTP.
type MetricsServer struct {
	logger *zap.Logger
	srv    *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewMetricsServer builds a server for addr exposing the given gatherer. A nil
// gatherer exposes the default registry.
//
// Precondition: addr must be non-empty; logger must be non-nil.
func NewMetricsServer(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) *MetricsServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &MetricsServer{
		logger: logger,
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the router, for tests and embedding.
func (m *MetricsServer) Handler() http.Handler { return m.srv.Handler }

// Addr returns the bound address once Start is listening, else the configured one.
func (m *MetricsServer) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.srv.Addr
}

// Start listens and serves until Stop is called.
func (m *MetricsServer) Start() error {
	lis, err := net.Listen("tcp", m.srv.Addr)
	if err != nil {
		return fmt.Errorf("observability: listening on %s: %w", m.srv.Addr, err)
	}
	m.mu.Lock()
	m.listener = lis
	m.mu.Unlock()
	m.logger.Info("metrics endpoint listening", zap.String("addr", lis.Addr().String()))
	if err := m.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("observability: serving metrics: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight scrapes.
func (m *MetricsServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics shutdown", zap.Error(err))
	}
}
