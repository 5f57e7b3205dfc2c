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
	"github.com/batterydied/chatter/internal/store"
	intsync "github.com/batterydied/chatter/internal/sync"
)

// SyncService implements chatter.v1.SyncService on top of the sync engine.
type SyncService struct {
	engine *intsync.Engine
	logger *zap.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(engine *intsync.Engine, logger *zap.Logger) *SyncService {
	return &SyncService{engine: engine, logger: logging.OrNop(logger)}
}

type viewStream = grpc.ServerStreamingServer[chatterv1.ViewUpdate]

func (s *SyncService) WatchFriends(req *chatterv1.WatchRequest, stream viewStream) error {
	if req.UserID == "" {
		return required("userId")
	}
	h, err := s.engine.Friends(stream.Context(), req.UserID)
	if err != nil {
		return toStatus(err)
	}
	return forward(s.logger, stream, h, func(out *chatterv1.ViewUpdate, u intsync.Update[intsync.Contact, intsync.FriendsSummary]) {
		out.Contacts = contacts(u.Items)
		if u.Aggregate != nil {
			out.Summary = &chatterv1.Summary{Online: u.Aggregate.Online}
		}
	})
}

func (s *SyncService) WatchRequests(req *chatterv1.WatchRequest, stream viewStream) error {
	if req.UserID == "" {
		return required("userId")
	}
	h, err := s.engine.Requests(stream.Context(), req.UserID)
	if err != nil {
		return toStatus(err)
	}
	return forward(s.logger, stream, h, func(out *chatterv1.ViewUpdate, u intsync.Update[intsync.Contact, intsync.RequestsSummary]) {
		out.Contacts = contacts(u.Items)
		if u.Aggregate != nil {
			unread := u.Aggregate.Unread
			out.Summary = &chatterv1.Summary{Unread: &unread}
		}
	})
}

// WatchContacts streams the outgoing requests or the block list of a user.
func (s *SyncService) WatchContacts(req *chatterv1.WatchRequest, stream viewStream) error {
	if req.UserID == "" {
		return required("userId")
	}
	open := s.engine.Outgoing
	switch req.Kind {
	case intsync.KindOutgoing, "":
	case intsync.KindBlocked:
		open = s.engine.Blocked
	default:
		return grpcstatus.Errorf(codes.InvalidArgument, "unknown contacts view %q", req.Kind)
	}
	h, err := open(stream.Context(), req.UserID)
	if err != nil {
		return toStatus(err)
	}
	return forward(s.logger, stream, h, func(out *chatterv1.ViewUpdate, u intsync.Update[intsync.Contact, intsync.None]) {
		out.Contacts = contacts(u.Items)
	})
}

func (s *SyncService) WatchConversations(req *chatterv1.WatchRequest, stream viewStream) error {
	if req.UserID == "" {
		return required("userId")
	}
	h, err := s.engine.Conversations(stream.Context(), req.UserID)
	if err != nil {
		return toStatus(err)
	}
	return forward(s.logger, stream, h, func(out *chatterv1.ViewUpdate, u intsync.Update[intsync.ConversationEntry, intsync.ConversationsSummary]) {
		for _, it := range u.Items {
			out.Conversations = append(out.Conversations, entryToWire(it.Value))
		}
		if u.Aggregate != nil {
			out.Summary = &chatterv1.Summary{Order: u.Aggregate.Order}
		}
	})
}

func (s *SyncService) WatchMessages(req *chatterv1.WatchRequest, stream viewStream) error {
	if req.ConversationID == "" {
		return required("conversationId")
	}
	h, err := s.engine.Messages(stream.Context(), req.ConversationID)
	if err != nil {
		return toStatus(err)
	}
	return forward(s.logger, stream, h, func(out *chatterv1.ViewUpdate, u intsync.Update[*store.Message, intsync.MessagesSummary]) {
		for _, it := range u.Items {
			out.Messages = append(out.Messages, messageToWire(it.Value))
		}
		if u.Aggregate != nil {
			count := u.Aggregate.Count
			out.Summary = &chatterv1.Summary{Count: &count}
		}
	})
}

func contacts(items []intsync.Item[intsync.Contact]) []*chatterv1.Contact {
	var out []*chatterv1.Contact
	for _, it := range items {
		out = append(out, contactToWire(it.Value))
	}
	return out
}

// forward relays view updates to the stream until the client goes away or
// the view stops. The handle is always closed on return.
func forward[V, A any](logger *zap.Logger, stream viewStream, h *intsync.Handle[V, A], fill func(*chatterv1.ViewUpdate, intsync.Update[V, A])) error {
	defer h.Close()
	ctx := stream.Context()
	logger.Debug("view stream opened", zap.String("view", h.View()))
	for {
		select {
		case <-ctx.Done():
			logger.Debug("view stream closed by client", zap.String("view", h.View()))
			return nil
		case u, ok := <-h.Updates():
			if !ok {
				return viewClosed(ctx, h.View())
			}
			out := &chatterv1.ViewUpdate{
				EventID:  uuid.NewString(),
				View:     u.View,
				Snapshot: u.Snapshot,
				Status:   string(u.Status),
				Warning:  u.Warning,
				Removed:  u.Removed,
			}
			fill(out, u)
			if err := stream.Send(out); err != nil {
				return err
			}
		}
	}
}

func viewClosed(ctx context.Context, view string) error {
	if ctx.Err() != nil {
		return nil
	}
	return grpcstatus.Errorf(codes.Unavailable, "view %s closed", view)
}
