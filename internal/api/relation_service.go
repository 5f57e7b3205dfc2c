package api

import (
	"context"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/batterydied/chatter/internal/chatterv1"
	"github.com/batterydied/chatter/internal/relation"
	"github.com/batterydied/chatter/internal/store"
)

// RelationService implements chatter.v1.RelationService.
type RelationService struct {
	graph *relation.Graph
}

// NewRelationService creates a relation service.
func NewRelationService(graph *relation.Graph) *RelationService {
	return &RelationService{graph: graph}
}

func (s *RelationService) SendRequest(ctx context.Context, req *chatterv1.SendRequestRequest) (*chatterv1.RelationResponse, error) {
	r, err := s.graph.SendRequest(ctx, req.From, req.To)
	if err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.RelationResponse{Relation: relationToWire(r)}, nil
}

// pending loads a pending edge for an authorization check. Anything else is
// left for the graph to reject.
func (s *RelationService) pending(ctx context.Context, req *chatterv1.EdgeRequest) (*store.Relation, error) {
	if req.Actor == "" {
		return nil, required("actor")
	}
	r, err := s.graph.Get(ctx, req.EdgeID)
	if err != nil {
		return nil, toStatus(err)
	}
	return r, nil
}

// AcceptRequest may only be called by the recipient.
func (s *RelationService) AcceptRequest(ctx context.Context, req *chatterv1.EdgeRequest) (*chatterv1.RelationsResponse, error) {
	r, err := s.pending(ctx, req)
	if err != nil {
		return nil, err
	}
	if r.To != req.Actor {
		return nil, denied("only the recipient can accept request %s", r.ID)
	}
	edges, err := s.graph.AcceptRequest(ctx, req.EdgeID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.RelationsResponse{Relations: relationsToWire(edges)}, nil
}

// DeclineRequest may be called by either end, which lets the sender cancel.
func (s *RelationService) DeclineRequest(ctx context.Context, req *chatterv1.EdgeRequest) (*chatterv1.Empty, error) {
	r, err := s.pending(ctx, req)
	if err != nil {
		return nil, err
	}
	if r.To != req.Actor && r.From != req.Actor {
		return nil, denied("user %s is not part of request %s", req.Actor, r.ID)
	}
	if err := s.graph.DeclineRequest(ctx, req.EdgeID); err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.Empty{}, nil
}

func (s *RelationService) Unfriend(ctx context.Context, req *chatterv1.PairRequest) (*chatterv1.Empty, error) {
	if err := s.graph.Unfriend(ctx, req.Actor, req.Target); err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.Empty{}, nil
}

func (s *RelationService) Block(ctx context.Context, req *chatterv1.PairRequest) (*chatterv1.RelationResponse, error) {
	r, err := s.graph.Block(ctx, req.Actor, req.Target)
	if err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.RelationResponse{Relation: relationToWire(r)}, nil
}

func (s *RelationService) Unblock(ctx context.Context, req *chatterv1.PairRequest) (*chatterv1.Empty, error) {
	if err := s.graph.Unblock(ctx, req.Actor, req.Target); err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.Empty{}, nil
}

func (s *RelationService) ListRelations(ctx context.Context, req *chatterv1.ListRelationsRequest) (*chatterv1.RelationsResponse, error) {
	if req.UserID == "" {
		return nil, required("userId")
	}
	var (
		rs  []*store.Relation
		err error
	)
	switch req.Kind {
	case chatterv1.RelationsFriends, "":
		rs, err = s.graph.Friends(ctx, req.UserID)
	case chatterv1.RelationsSent:
		rs, err = s.graph.PendingSent(ctx, req.UserID)
	case chatterv1.RelationsReceived:
		rs, err = s.graph.PendingReceived(ctx, req.UserID)
	case chatterv1.RelationsBlocked:
		rs, err = s.graph.BlockedBy(ctx, req.UserID)
	default:
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "unknown relation kind %q", req.Kind)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &chatterv1.RelationsResponse{Relations: relationsToWire(rs)}, nil
}
