package chatterv1

import (
	"context"

	"google.golang.org/grpc"
)

const syncService = "SyncService"

// SyncServiceServer streams live views. Each stream ends when the client
// cancels or the view closes.
type SyncServiceServer interface {
	WatchFriends(*WatchRequest, grpc.ServerStreamingServer[ViewUpdate]) error
	WatchRequests(*WatchRequest, grpc.ServerStreamingServer[ViewUpdate]) error
	WatchContacts(*WatchRequest, grpc.ServerStreamingServer[ViewUpdate]) error
	WatchConversations(*WatchRequest, grpc.ServerStreamingServer[ViewUpdate]) error
	WatchMessages(*WatchRequest, grpc.ServerStreamingServer[ViewUpdate]) error
}

var SyncService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: pkg + syncService,
	HandlerType: (*SyncServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		serverStream("WatchFriends", SyncServiceServer.WatchFriends),
		serverStream("WatchRequests", SyncServiceServer.WatchRequests),
		serverStream("WatchContacts", SyncServiceServer.WatchContacts),
		serverStream("WatchConversations", SyncServiceServer.WatchConversations),
		serverStream("WatchMessages", SyncServiceServer.WatchMessages),
	},
	Metadata: "chatter/v1/sync",
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncService_ServiceDesc, srv)
}

// SyncServiceClient calls SyncService.
type SyncServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncServiceClient(cc grpc.ClientConnInterface) *SyncServiceClient {
	return &SyncServiceClient{cc: cc}
}

func (c *SyncServiceClient) watch(ctx context.Context, method string, in *WatchRequest, opts []grpc.CallOption) (grpc.ServerStreamingClient[ViewUpdate], error) {
	return openStream[WatchRequest, ViewUpdate](ctx, c.cc, &SyncService_ServiceDesc, method, in, opts)
}

func (c *SyncServiceClient) WatchFriends(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ViewUpdate], error) {
	return c.watch(ctx, "WatchFriends", in, opts)
}

func (c *SyncServiceClient) WatchRequests(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ViewUpdate], error) {
	return c.watch(ctx, "WatchRequests", in, opts)
}

func (c *SyncServiceClient) WatchContacts(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ViewUpdate], error) {
	return c.watch(ctx, "WatchContacts", in, opts)
}

func (c *SyncServiceClient) WatchConversations(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ViewUpdate], error) {
	return c.watch(ctx, "WatchConversations", in, opts)
}

func (c *SyncServiceClient) WatchMessages(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ViewUpdate], error) {
	return c.watch(ctx, "WatchMessages", in, opts)
}
