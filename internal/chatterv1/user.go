package chatterv1

import (
	"context"

	"google.golang.org/grpc"
)

const userService = "UserService"

// UserServiceServer provisions users and carries their presence sessions.
type UserServiceServer interface {
	CreateUser(context.Context, *CreateUserRequest) (*User, error)
	GetUser(context.Context, *GetUserRequest) (*User, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*User, error)
	MarkRequestsSeen(context.Context, *MarkRequestsSeenRequest) (*User, error)
	DeleteUser(context.Context, *DeleteUserRequest) (*Empty, error)
	SetPresence(context.Context, *SetPresenceRequest) (*Empty, error)
	// Connect keeps a session online for as long as the stream is open.
	Connect(*ConnectRequest, grpc.ServerStreamingServer[ConnectEvent]) error
}

var UserService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: pkg + userService,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(userService, "CreateUser", UserServiceServer.CreateUser),
		unary(userService, "GetUser", UserServiceServer.GetUser),
		unary(userService, "UpdateProfile", UserServiceServer.UpdateProfile),
		unary(userService, "MarkRequestsSeen", UserServiceServer.MarkRequestsSeen),
		unary(userService, "DeleteUser", UserServiceServer.DeleteUser),
		unary(userService, "SetPresence", UserServiceServer.SetPresence),
	},
	Streams: []grpc.StreamDesc{
		serverStream("Connect", UserServiceServer.Connect),
	},
	Metadata: "chatter/v1/user",
}

func RegisterUserServiceServer(s grpc.ServiceRegistrar, srv UserServiceServer) {
	s.RegisterService(&UserService_ServiceDesc, srv)
}

// UserServiceClient calls UserService.
type UserServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewUserServiceClient(cc grpc.ClientConnInterface) *UserServiceClient {
	return &UserServiceClient{cc: cc}
}

func (c *UserServiceClient) CreateUser(ctx context.Context, in *CreateUserRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, userService, "CreateUser", in, opts)
}

func (c *UserServiceClient) GetUser(ctx context.Context, in *GetUserRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, userService, "GetUser", in, opts)
}

func (c *UserServiceClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, userService, "UpdateProfile", in, opts)
}

func (c *UserServiceClient) MarkRequestsSeen(ctx context.Context, in *MarkRequestsSeenRequest, opts ...grpc.CallOption) (*User, error) {
	return invoke[User](ctx, c.cc, userService, "MarkRequestsSeen", in, opts)
}

func (c *UserServiceClient) DeleteUser(ctx context.Context, in *DeleteUserRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, userService, "DeleteUser", in, opts)
}

func (c *UserServiceClient) SetPresence(ctx context.Context, in *SetPresenceRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, userService, "SetPresence", in, opts)
}

func (c *UserServiceClient) Connect(ctx context.Context, in *ConnectRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ConnectEvent], error) {
	return openStream[ConnectRequest, ConnectEvent](ctx, c.cc, &UserService_ServiceDesc, "Connect", in, opts)
}
