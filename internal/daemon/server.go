package daemon

import (
	"context"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/batterydied/chatter/internal/api"
	"github.com/batterydied/chatter/internal/chatterv1"
	"github.com/batterydied/chatter/internal/config"
	"github.com/batterydied/chatter/internal/profile"
)

// Server manages the gRPC server lifecycle for a profile daemon.
type Server struct {
	grpcServer *grpc.Server
	listeners  []net.Listener
	socketPath string
	logger     *zap.Logger
}

// Services bundles the gRPC service implementations.
type Services struct {
	Users         *api.UserService
	Relations     *api.RelationService
	Conversations *api.ConversationService
	Messages      *api.MessageService
	Sync          *api.SyncService
}

// NewServer creates a gRPC server bound to the profile's Unix domain socket,
// plus cfg.ListenAddr over TCP when set.
func NewServer(p Params, cfg *config.Config, logger *zap.Logger, svcs Services) (*Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = profile.SocketPath(p.Profile)
	}

	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	unixLn, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	// Set socket permissions to 0600.
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = unixLn.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	listeners := []net.Listener{unixLn}

	if cfg.ListenAddr != "" {
		tcpLn, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			_ = unixLn.Close()
			return nil, fmt.Errorf("listen tcp: %w", err)
		}
		listeners = append(listeners, tcpLn)
	}

	srv := grpc.NewServer()
	chatterv1.RegisterUserServiceServer(srv, svcs.Users)
	chatterv1.RegisterRelationServiceServer(srv, svcs.Relations)
	chatterv1.RegisterConversationServiceServer(srv, svcs.Conversations)
	chatterv1.RegisterMessageServiceServer(srv, svcs.Messages)
	chatterv1.RegisterSyncServiceServer(srv, svcs.Sync)

	return &Server{
		grpcServer: srv,
		listeners:  listeners,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// SocketPath returns the Unix socket the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Addrs returns every bound address.
func (s *Server) Addrs() []string {
	out := make([]string, 0, len(s.listeners))
	for _, ln := range s.listeners {
		out = append(out, ln.Addr().String())
	}
	return out
}

// Start serves every listener in the background.
func (s *Server) Start() {
	for _, ln := range s.listeners {
		s.logger.Info("gRPC server starting", zap.String("network", ln.Addr().Network()), zap.String("addr", ln.Addr().String()))
		go func(ln net.Listener) {
			if err := s.grpcServer.Serve(ln); err != nil {
				s.logger.Error("gRPC server error", zap.Error(err))
			}
		}(ln)
	}
}

// Stop drains in-flight calls until ctx expires, then closes whatever is
// still open, and removes the socket file.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("graceful stop timed out, closing open streams")
		s.grpcServer.Stop()
		<-done
	}
	_ = os.Remove(s.socketPath)
}
