package chatterv1

import (
	"context"

	"google.golang.org/grpc"
)

const messageService = "MessageService"

// MessageServiceServer appends to and reads conversation logs.
type MessageServiceServer interface {
	SendMessage(context.Context, *SendMessageRequest) (*MessageResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*MessagesResponse, error)
	GetMessage(context.Context, *GetMessageRequest) (*MessageResponse, error)
	EditMessage(context.Context, *EditMessageRequest) (*MessageResponse, error)
	DeleteMessage(context.Context, *DeleteMessageRequest) (*Empty, error)
}

var MessageService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: pkg + messageService,
	HandlerType: (*MessageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(messageService, "SendMessage", MessageServiceServer.SendMessage),
		unary(messageService, "ListMessages", MessageServiceServer.ListMessages),
		unary(messageService, "GetMessage", MessageServiceServer.GetMessage),
		unary(messageService, "EditMessage", MessageServiceServer.EditMessage),
		unary(messageService, "DeleteMessage", MessageServiceServer.DeleteMessage),
	},
	Metadata: "chatter/v1/message",
}

func RegisterMessageServiceServer(s grpc.ServiceRegistrar, srv MessageServiceServer) {
	s.RegisterService(&MessageService_ServiceDesc, srv)
}

// MessageServiceClient calls MessageService.
type MessageServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMessageServiceClient(cc grpc.ClientConnInterface) *MessageServiceClient {
	return &MessageServiceClient{cc: cc}
}

func (c *MessageServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, messageService, "SendMessage", in, opts)
}

func (c *MessageServiceClient) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c.cc, messageService, "ListMessages", in, opts)
}

func (c *MessageServiceClient) GetMessage(ctx context.Context, in *GetMessageRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, messageService, "GetMessage", in, opts)
}

func (c *MessageServiceClient) EditMessage(ctx context.Context, in *EditMessageRequest, opts ...grpc.CallOption) (*MessageResponse, error) {
	return invoke[MessageResponse](ctx, c.cc, messageService, "EditMessage", in, opts)
}

func (c *MessageServiceClient) DeleteMessage(ctx context.Context, in *DeleteMessageRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, messageService, "DeleteMessage", in, opts)
}
