package chatterv1

import (
	"context"

	"google.golang.org/grpc"
)

const relationService = "RelationService"

// RelationServiceServer drives the friend request state machine.
type RelationServiceServer interface {
	SendRequest(context.Context, *SendRequestRequest) (*RelationResponse, error)
	AcceptRequest(context.Context, *EdgeRequest) (*RelationsResponse, error)
	DeclineRequest(context.Context, *EdgeRequest) (*Empty, error)
	Unfriend(context.Context, *PairRequest) (*Empty, error)
	Block(context.Context, *PairRequest) (*RelationResponse, error)
	Unblock(context.Context, *PairRequest) (*Empty, error)
	ListRelations(context.Context, *ListRelationsRequest) (*RelationsResponse, error)
}

var RelationService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: pkg + relationService,
	HandlerType: (*RelationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(relationService, "SendRequest", RelationServiceServer.SendRequest),
		unary(relationService, "AcceptRequest", RelationServiceServer.AcceptRequest),
		unary(relationService, "DeclineRequest", RelationServiceServer.DeclineRequest),
		unary(relationService, "Unfriend", RelationServiceServer.Unfriend),
		unary(relationService, "Block", RelationServiceServer.Block),
		unary(relationService, "Unblock", RelationServiceServer.Unblock),
		unary(relationService, "ListRelations", RelationServiceServer.ListRelations),
	},
	Metadata: "chatter/v1/relation",
}

func RegisterRelationServiceServer(s grpc.ServiceRegistrar, srv RelationServiceServer) {
	s.RegisterService(&RelationService_ServiceDesc, srv)
}

// RelationServiceClient calls RelationService.
type RelationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRelationServiceClient(cc grpc.ClientConnInterface) *RelationServiceClient {
	return &RelationServiceClient{cc: cc}
}

func (c *RelationServiceClient) SendRequest(ctx context.Context, in *SendRequestRequest, opts ...grpc.CallOption) (*RelationResponse, error) {
	return invoke[RelationResponse](ctx, c.cc, relationService, "SendRequest", in, opts)
}

func (c *RelationServiceClient) AcceptRequest(ctx context.Context, in *EdgeRequest, opts ...grpc.CallOption) (*RelationsResponse, error) {
	return invoke[RelationsResponse](ctx, c.cc, relationService, "AcceptRequest", in, opts)
}

func (c *RelationServiceClient) DeclineRequest(ctx context.Context, in *EdgeRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, relationService, "DeclineRequest", in, opts)
}

func (c *RelationServiceClient) Unfriend(ctx context.Context, in *PairRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, relationService, "Unfriend", in, opts)
}

func (c *RelationServiceClient) Block(ctx context.Context, in *PairRequest, opts ...grpc.CallOption) (*RelationResponse, error) {
	return invoke[RelationResponse](ctx, c.cc, relationService, "Block", in, opts)
}

func (c *RelationServiceClient) Unblock(ctx context.Context, in *PairRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, relationService, "Unblock", in, opts)
}

func (c *RelationServiceClient) ListRelations(ctx context.Context, in *ListRelationsRequest, opts ...grpc.CallOption) (*RelationsResponse, error) {
	return invoke[RelationsResponse](ctx, c.cc, relationService, "ListRelations", in, opts)
}
