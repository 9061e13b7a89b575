// internal/monitoring/server.go
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/valpere/listingharvest/internal/utils"
)

// Server exposes /metrics and /health while a run is in progress.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     utils.Logger
}

// NewRouter builds the routes served by the monitoring server. /health
// answers 503 when a critical check fails.
func NewRouter(metrics *MetricsManager, health *HealthManager) *mux.Router {
	if health == nil {
		health = NewHealthManager(0)
	}
	router := mux.NewRouter()
	router.Handle("/metrics", metrics.MetricsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		report := health.CheckAll(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if report.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	}).Methods(http.MethodGet)
	return router
}

// StartServer listens on addr and serves in the background. The returned
// server must be shut down by the caller.
func StartServer(addr string, metrics *MetricsManager, health *HealthManager, logger utils.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		httpServer: &http.Server{
			Handler:           NewRouter(metrics, health),
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		logger:   logger,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("monitoring server stopped: %v", err)
		}
	}()
	logger.Infof("monitoring server listening on %s", ln.Addr())
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
