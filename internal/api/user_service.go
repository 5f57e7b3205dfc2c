package api

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/batterydied/chatter/internal/chatterv1"
	"github.com/batterydied/chatter/internal/logging"
	"github.com/batterydied/chatter/internal/presence"
	"github.com/batterydied/chatter/internal/user"
)

// UserService implements chatter.v1.UserService.
type UserService struct {
	users   *user.Directory
	tracker *presence.Tracker
	limiter *presence.Limiter
	logger  *zap.Logger
}

// NewUserService creates a user service. limiter may be nil to accept every heartbeat.
func NewUserService(users *user.Directory, tracker *presence.Tracker, limiter *presence.Limiter, logger *zap.Logger) *UserService {
	return &UserService{users: users, tracker: tracker, limiter: limiter, logger: logging.OrNop(logger)}
}

func (s *UserService) CreateUser(ctx context.Context, req *chatterv1.CreateUserRequest) (*chatterv1.User, error) {
	u, err := s.users.Create(ctx, req.Username, req.Email)
	if err != nil {
		return nil, toStatus(err)
	}
	return userToWire(u), nil
}

func (s *UserService) GetUser(ctx context.Context, req *chatterv1.GetUserRequest) (*chatterv1.User, error) {
	u, err := s.users.Get(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return userToWire(u), nil
}

func (s *UserService) UpdateProfile(ctx context.Context, req *chatterv1.UpdateProfileRequest) (*chatterv1.User, error) {
	u, err := s.users.UpdateProfile(ctx, req.UserID, user.Profile{
		Username:    req.Username,
		Email:       req.Email,
		PfpFilePath: req.PfpFilePath,
		Theme:       req.Theme,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return userToWire(u), nil
}

func (s *UserService) MarkRequestsSeen(ctx context.Context, req *chatterv1.MarkRequestsSeenRequest) (*chatterv1.User, error) {
	u, err := s.users.MarkRequestsSeen(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return userToWire(u), nil
}

func (s *UserService) DeleteUser(ctx context.Context, req *chatterv1.DeleteUserRequest) (*chatterv1.Empty, error) {
	if err := s.users.Delete(ctx, req.UserID); err != nil {
		return nil, toStatus(err)
	}
	if s.limiter != nil {
		s.limiter.Forget(req.UserID)
	}
	return &chatterv1.Empty{}, nil
}

// SetPresence records a heartbeat or an explicit offline signal. Online
// heartbeats are rate limited per user; offline signals never are.
func (s *UserService) SetPresence(ctx context.Context, req *chatterv1.SetPresenceRequest) (*chatterv1.Empty, error) {
	if req.Online && s.limiter != nil && !s.limiter.Allow(req.UserID) {
		return nil, grpcstatus.Errorf(codes.ResourceExhausted, "too many heartbeats for user %s", req.UserID)
	}
	if err := s.tracker.SetSession(ctx, req.UserID, req.SessionID, req.Online); err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.Empty{}, nil
}

func (s *UserService) Connect(req *chatterv1.ConnectRequest, stream grpc.ServerStreamingServer[chatterv1.ConnectEvent]) error {
	if req.UserID == "" {
		return required("userId")
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ctx := stream.Context()
	disarm, err := s.tracker.Arm(ctx, req.UserID, sessionID)
	if err != nil {
		return toStatus(err)
	}
	defer func() { _ = disarm.Fire() }()

	s.logger.Info("session connected", zap.String("user", req.UserID), zap.String("session", sessionID))
	if err := stream.Send(&chatterv1.ConnectEvent{
		SessionID: sessionID,
		Kind:      chatterv1.ConnectOnline,
		UserID:    req.UserID,
		Online:    true,
	}); err != nil {
		return err
	}
	<-ctx.Done()
	s.logger.Info("session disconnected", zap.String("user", req.UserID), zap.String("session", sessionID))
	return nil
}
