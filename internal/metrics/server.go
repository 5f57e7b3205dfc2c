package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves /metrics and /healthz over HTTP.
type Server struct {
	srv      *http.Server
	listener net.Listener
	logger   *zap.Logger
}

// Handler returns the mux served by Server.
func Handler(c *Collector) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
	return mux
}

// NewServer binds addr. Use port 0 to pick a free one.
func NewServer(addr string, c *Collector, logger *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics: %w", err)
	}
	return &Server{
		srv:      &http.Server{Handler: Handler(c), ReadHeaderTimeout: 5 * time.Second},
		listener: ln,
		logger:   logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Start serves until Stop. Blocks.
func (s *Server) Start() error {
	s.logger.Info("metrics server starting", zap.String("addr", s.Addr()))
	if err := s.srv.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("metrics server stopping")
	_ = s.srv.Shutdown(ctx)
}
