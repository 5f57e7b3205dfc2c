package api

import (
	"context"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/batterydied/chatter/internal/chatterv1"
	"github.com/batterydied/chatter/internal/conversation"
	"github.com/batterydied/chatter/internal/relation"
	"github.com/batterydied/chatter/internal/store"
)

// ConversationService implements chatter.v1.ConversationService.
type ConversationService struct {
	convs *conversation.Directory
	graph *relation.Graph
}

// NewConversationService creates a conversation service. The graph keeps
// blocked pairs from opening a direct conversation.
func NewConversationService(convs *conversation.Directory, graph *relation.Graph) *ConversationService {
	return &ConversationService{convs: convs, graph: graph}
}

func wrapConversation(c *store.Conversation, err error) (*chatterv1.ConversationResponse, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.ConversationResponse{Conversation: conversationToWire(c)}, nil
}

func (s *ConversationService) ResolveDirect(ctx context.Context, req *chatterv1.ResolveDirectRequest) (*chatterv1.ConversationResponse, error) {
	blocked, err := s.graph.IsBlocked(ctx, req.Requester, req.Peer)
	if err != nil {
		return nil, toStatus(err)
	}
	if blocked {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "users %s and %s have a block between them", req.Requester, req.Peer)
	}
	return wrapConversation(s.convs.ResolveDirect(ctx, req.Requester, req.Peer))
}

func (s *ConversationService) CreateGroup(ctx context.Context, req *chatterv1.CreateGroupRequest) (*chatterv1.ConversationResponse, error) {
	return wrapConversation(s.convs.CreateGroup(ctx, req.Creator, req.Name, req.Participants))
}

func (s *ConversationService) GetConversation(ctx context.Context, req *chatterv1.GetConversationRequest) (*chatterv1.ConversationResponse, error) {
	return wrapConversation(s.convs.Get(ctx, req.ConversationID))
}

func (s *ConversationService) UpdateConversation(ctx context.Context, req *chatterv1.UpdateConversationRequest) (*chatterv1.ConversationResponse, error) {
	return wrapConversation(s.convs.Update(ctx, req.ConversationID, conversation.Details{
		Name:        req.Name,
		PfpFilePath: req.PfpFilePath,
	}))
}

// DeleteConversation may only be called by a participant.
func (s *ConversationService) DeleteConversation(ctx context.Context, req *chatterv1.DeleteConversationRequest) (*chatterv1.Empty, error) {
	if req.Actor == "" {
		return nil, required("actor")
	}
	conv, err := s.convs.Get(ctx, req.ConversationID)
	if err != nil {
		return nil, toStatus(err)
	}
	if !conv.HasParticipant(req.Actor) {
		return nil, denied("user %s is not a participant of %s", req.Actor, conv.ID)
	}
	if err := s.convs.Delete(ctx, req.ConversationID); err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.Empty{}, nil
}

func (s *ConversationService) ListConversations(ctx context.Context, req *chatterv1.ListConversationsRequest) (*chatterv1.ConversationsResponse, error) {
	if req.UserID == "" {
		return nil, required("userId")
	}
	list := s.convs.ListVisible
	if req.IncludeHidden {
		list = s.convs.ListForUser
	}
	convs, err := list(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]*chatterv1.Conversation, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationToWire(c))
	}
	return &chatterv1.ConversationsResponse{Conversations: out}, nil
}

func (s *ConversationService) HideConversation(ctx context.Context, req *chatterv1.MemberFlagRequest) (*chatterv1.ConversationResponse, error) {
	return wrapConversation(s.convs.Hide(ctx, req.ConversationID, req.UserID))
}

func (s *ConversationService) UnhideConversation(ctx context.Context, req *chatterv1.MemberFlagRequest) (*chatterv1.ConversationResponse, error) {
	return wrapConversation(s.convs.Unhide(ctx, req.ConversationID, req.UserID))
}

func (s *ConversationService) MuteConversation(ctx context.Context, req *chatterv1.MemberFlagRequest) (*chatterv1.ConversationResponse, error) {
	if req.Set {
		return wrapConversation(s.convs.Mute(ctx, req.ConversationID, req.UserID))
	}
	return wrapConversation(s.convs.Unmute(ctx, req.ConversationID, req.UserID))
}
