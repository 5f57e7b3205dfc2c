package chatterv1

import (
	"context"

	"google.golang.org/grpc"
)

const conversationService = "ConversationService"

// ConversationServiceServer manages conversations and per-member flags.
type ConversationServiceServer interface {
	ResolveDirect(context.Context, *ResolveDirectRequest) (*ConversationResponse, error)
	CreateGroup(context.Context, *CreateGroupRequest) (*ConversationResponse, error)
	GetConversation(context.Context, *GetConversationRequest) (*ConversationResponse, error)
	UpdateConversation(context.Context, *UpdateConversationRequest) (*ConversationResponse, error)
	DeleteConversation(context.Context, *DeleteConversationRequest) (*Empty, error)
	ListConversations(context.Context, *ListConversationsRequest) (*ConversationsResponse, error)
	HideConversation(context.Context, *MemberFlagRequest) (*ConversationResponse, error)
	UnhideConversation(context.Context, *MemberFlagRequest) (*ConversationResponse, error)
	// MuteConversation mutes when Set is true and unmutes otherwise.
	MuteConversation(context.Context, *MemberFlagRequest) (*ConversationResponse, error)
}

var ConversationService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: pkg + conversationService,
	HandlerType: (*ConversationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(conversationService, "ResolveDirect", ConversationServiceServer.ResolveDirect),
		unary(conversationService, "CreateGroup", ConversationServiceServer.CreateGroup),
		unary(conversationService, "GetConversation", ConversationServiceServer.GetConversation),
		unary(conversationService, "UpdateConversation", ConversationServiceServer.UpdateConversation),
		unary(conversationService, "DeleteConversation", ConversationServiceServer.DeleteConversation),
		unary(conversationService, "ListConversations", ConversationServiceServer.ListConversations),
		unary(conversationService, "HideConversation", ConversationServiceServer.HideConversation),
		unary(conversationService, "UnhideConversation", ConversationServiceServer.UnhideConversation),
		unary(conversationService, "MuteConversation", ConversationServiceServer.MuteConversation),
	},
	Metadata: "chatter/v1/conversation",
}

func RegisterConversationServiceServer(s grpc.ServiceRegistrar, srv ConversationServiceServer) {
	s.RegisterService(&ConversationService_ServiceDesc, srv)
}

// ConversationServiceClient calls ConversationService.
type ConversationServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewConversationServiceClient(cc grpc.ClientConnInterface) *ConversationServiceClient {
	return &ConversationServiceClient{cc: cc}
}

func (c *ConversationServiceClient) ResolveDirect(ctx context.Context, in *ResolveDirectRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, conversationService, "ResolveDirect", in, opts)
}

func (c *ConversationServiceClient) CreateGroup(ctx context.Context, in *CreateGroupRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, conversationService, "CreateGroup", in, opts)
}

func (c *ConversationServiceClient) GetConversation(ctx context.Context, in *GetConversationRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, conversationService, "GetConversation", in, opts)
}

func (c *ConversationServiceClient) UpdateConversation(ctx context.Context, in *UpdateConversationRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, conversationService, "UpdateConversation", in, opts)
}

func (c *ConversationServiceClient) DeleteConversation(ctx context.Context, in *DeleteConversationRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, conversationService, "DeleteConversation", in, opts)
}

func (c *ConversationServiceClient) ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (*ConversationsResponse, error) {
	return invoke[ConversationsResponse](ctx, c.cc, conversationService, "ListConversations", in, opts)
}

func (c *ConversationServiceClient) HideConversation(ctx context.Context, in *MemberFlagRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, conversationService, "HideConversation", in, opts)
}

func (c *ConversationServiceClient) UnhideConversation(ctx context.Context, in *MemberFlagRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, conversationService, "UnhideConversation", in, opts)
}

func (c *ConversationServiceClient) MuteConversation(ctx context.Context, in *MemberFlagRequest, opts ...grpc.CallOption) (*ConversationResponse, error) {
	return invoke[ConversationResponse](ctx, c.cc, conversationService, "MuteConversation", in, opts)
}
