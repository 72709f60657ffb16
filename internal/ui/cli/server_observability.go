package cli

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	domainerrors "callctx/internal/core/errors"
	"callctx/internal/shared/util"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports a dependency as down by returning an error.
type HealthCheck func(ctx context.Context) error

type HealthStatus struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

type ObservabilityServer struct {
	addr   string
	checks map[string]HealthCheck
	server *http.Server
	bound  string
}

func NewObservabilityServer(addr string, checks map[string]HealthCheck) *ObservabilityServer {
	return &ObservabilityServer{addr: addr, checks: checks}
}

func (s *ObservabilityServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

func (s *ObservabilityServer) check(ctx context.Context) HealthStatus {
	status := HealthStatus{Status: "up", Version: versionString}
	if len(s.checks) == 0 {
		return status
	}
	status.Checks = make(map[string]string, len(s.checks))
	for _, name := range util.SortedStringKeys(s.checks) {
		if err := s.checks[name](ctx); err != nil {
			status.Status = "down"
			status.Checks[name] = err.Error()
			continue
		}
		status.Checks[name] = "up"
	}
	return status
}

// Start binds the listener and serves in the background.
func (s *ObservabilityServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return domainerrors.AddContext(domainerrors.Wrap(err, domainerrors.CodeUnavailable, "listen for metrics"), "addr", s.addr)
	}
	s.bound = ln.Addr().String()
	s.server = &http.Server{Handler: s.handler()}

	slog.Info("observability server starting", "addr", s.bound)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("observability server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *ObservabilityServer) Addr() string {
	return s.bound
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
