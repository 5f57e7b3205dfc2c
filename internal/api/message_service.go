package api

import (
	"context"

	"github.com/batterydied/chatter/internal/chatterv1"
	"github.com/batterydied/chatter/internal/message"
	"github.com/batterydied/chatter/internal/store"
)

// defaultPageSize applies when ListMessages is called without a limit.
const defaultPageSize = 50

// MessageService implements chatter.v1.MessageService.
type MessageService struct {
	stream *message.Stream
}

// NewMessageService creates a message service backed by the stream.
func NewMessageService(stream *message.Stream) *MessageService {
	return &MessageService{stream: stream}
}

func (s *MessageService) SendMessage(ctx context.Context, req *chatterv1.SendMessageRequest) (*chatterv1.MessageResponse, error) {
	if req.SenderID == "" {
		return nil, required("senderId")
	}
	m, err := s.stream.Append(ctx, req.ConversationID, req.SenderID, message.Payload{
		Type:     store.MessageType(req.Type),
		Text:     req.Text,
		FileURL:  req.FileURL,
		FileName: req.FileName,
		FileSize: req.FileSize,
		ReplyTo:  req.ReplyTo,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.MessageResponse{Message: messageToWire(m)}, nil
}

func (s *MessageService) ListMessages(ctx context.Context, req *chatterv1.ListMessagesRequest) (*chatterv1.MessagesResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	msgs, err := s.stream.List(ctx, req.ConversationID, req.Cursor, limit)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &chatterv1.MessagesResponse{Messages: make([]*chatterv1.Message, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageToWire(m))
	}
	if len(msgs) == limit {
		resp.NextCursor = msgs[len(msgs)-1].CreatedAt
	}
	return resp, nil
}

func (s *MessageService) GetMessage(ctx context.Context, req *chatterv1.GetMessageRequest) (*chatterv1.MessageResponse, error) {
	m, err := s.stream.Get(ctx, req.MessageID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.MessageResponse{Message: messageToWire(m)}, nil
}

func (s *MessageService) EditMessage(ctx context.Context, req *chatterv1.EditMessageRequest) (*chatterv1.MessageResponse, error) {
	if req.EditorID == "" {
		return nil, required("editorId")
	}
	m, err := s.stream.Edit(ctx, req.MessageID, req.EditorID, req.Text)
	if err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.MessageResponse{Message: messageToWire(m)}, nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, req *chatterv1.DeleteMessageRequest) (*chatterv1.Empty, error) {
	if req.RequesterID == "" {
		return nil, required("requesterId")
	}
	if err := s.stream.Delete(ctx, req.MessageID, req.RequesterID); err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.Empty{}, nil
}
