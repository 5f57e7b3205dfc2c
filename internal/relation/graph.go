// Package relation implements the relation edge state machine between users.
//
// Edges are directed. A friendship is two symmetric friend edges, a pending
// request and a block are single edges. Every transition runs as one store
// batch, so readers never observe a half-applied state.
package relation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/store"
)

// Graph manages relation edges.
type Graph struct {
	db  *store.DB
	log *zap.Logger
}

// New creates a relation graph backed by db.
func New(db *store.DB, log *zap.Logger) *Graph {
	if log == nil {
		log = zap.NewNop()
	}
	return &Graph{db: db, log: log}
}

func newEdge(tx *store.Tx, from, to string, status store.RelationStatus) *store.Relation {
	return &store.Relation{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Status:    status,
		CreatedAt: tx.Now(),
	}
}

func requireUsers(ctx context.Context, tx *store.Tx, op string, ids ...string) error {
	for _, id := range ids {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.NotFound(op, "user %s", id)
		}
	}
	return nil
}

// SendRequest creates a pending edge from→to. It fails if any edge already
// exists between the pair, in either direction.
func (g *Graph) SendRequest(ctx context.Context, from, to string) (*store.Relation, error) {
	const op = "send request"
	if from == "" || to == "" {
		return nil, apperr.Validation(op, "both user ids are required")
	}
	if from == to {
		return nil, apperr.InvalidOperation(op, "cannot send a request to yourself")
	}

	var edge *store.Relation
	err := g.db.Write(ctx, op, func(tx *store.Tx) error {
		if err := requireUsers(ctx, tx, op, from, to); err != nil {
			return err
		}
		existing, err := tx.RelationsBetween(ctx, from, to)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return apperr.InvalidOperation(op, "relation already exists (%s)", existing[0].Status)
		}
		edge = newEdge(tx, from, to, store.StatusPending)
		return tx.InsertRelation(ctx, edge)
	})
	if err != nil {
		return nil, err
	}
	g.log.Debug("friend request sent", zap.String("edge", edge.ID), zap.String("from", from), zap.String("to", to))
	return edge, nil
}

func pendingEdge(ctx context.Context, tx *store.Tx, op, edgeID string) (*store.Relation, error) {
	edge, err := tx.GetRelation(ctx, edgeID)
	if err != nil {
		return nil, err
	}
	if edge == nil || edge.Status != store.StatusPending {
		return nil, apperr.NotFound(op, "pending request %s", edgeID)
	}
	return edge, nil
}

// AcceptRequest replaces a pending edge with two friend edges.
func (g *Graph) AcceptRequest(ctx context.Context, edgeID string) ([]*store.Relation, error) {
	const op = "accept request"
	var friends []*store.Relation
	err := g.db.Write(ctx, op, func(tx *store.Tx) error {
		edge, err := pendingEdge(ctx, tx, op, edgeID)
		if err != nil {
			return err
		}
		if err := tx.DeleteRelation(ctx, edge); err != nil {
			return err
		}
		friends = []*store.Relation{
			newEdge(tx, edge.From, edge.To, store.StatusFriend),
			newEdge(tx, edge.To, edge.From, store.StatusFriend),
		}
		for _, f := range friends {
			if err := tx.InsertRelation(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	g.log.Debug("friend request accepted", zap.String("edge", edgeID))
	return friends, nil
}

// DeclineRequest removes a pending edge. It serves both the recipient
// declining and the sender withdrawing.
func (g *Graph) DeclineRequest(ctx context.Context, edgeID string) error {
	const op = "decline request"
	return g.db.Write(ctx, op, func(tx *store.Tx) error {
		edge, err := pendingEdge(ctx, tx, op, edgeID)
		if err != nil {
			return err
		}
		return tx.DeleteRelation(ctx, edge)
	})
}

// Unfriend removes both friend edges between a and b. If either is missing
// nothing is deleted.
func (g *Graph) Unfriend(ctx context.Context, a, b string) error {
	const op = "unfriend"
	return g.db.Write(ctx, op, func(tx *store.Tx) error {
		edges, err := tx.RelationsBetween(ctx, a, b)
		if err != nil {
			return err
		}
		var ab, ba *store.Relation
		for _, e := range edges {
			if e.Status != store.StatusFriend {
				continue
			}
			if e.From == a {
				ab = e
			} else {
				ba = e
			}
		}
		if ab == nil || ba == nil {
			return apperr.NotFound(op, "friendship between %s and %s", a, b)
		}
		if err := tx.DeleteRelation(ctx, ab); err != nil {
			return err
		}
		return tx.DeleteRelation(ctx, ba)
	})
}

// Block removes every edge between blocker and target and creates a
// blocked edge blocker→target, in one batch.
func (g *Graph) Block(ctx context.Context, blocker, target string) (*store.Relation, error) {
	const op = "block"
	if blocker == "" || target == "" {
		return nil, apperr.Validation(op, "both user ids are required")
	}
	if blocker == target {
		return nil, apperr.InvalidOperation(op, "cannot block yourself")
	}

	var edge *store.Relation
	err := g.db.Write(ctx, op, func(tx *store.Tx) error {
		if err := requireUsers(ctx, tx, op, blocker, target); err != nil {
			return err
		}
		existing, err := tx.RelationsBetween(ctx, blocker, target)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.From == blocker && e.Status == store.StatusBlocked {
				// Already blocked; keep the original edge.
				edge = e
				continue
			}
			if err := tx.DeleteRelation(ctx, e); err != nil {
				return err
			}
		}
		if edge != nil {
			return nil
		}
		edge = newEdge(tx, blocker, target, store.StatusBlocked)
		return tx.InsertRelation(ctx, edge)
	})
	if err != nil {
		return nil, err
	}
	g.log.Debug("user blocked", zap.String("blocker", blocker), zap.String("target", target))
	return edge, nil
}

// Unblock removes the blocked edge blocker→target. It is a no-op when none exists.
func (g *Graph) Unblock(ctx context.Context, blocker, target string) error {
	return g.db.Write(ctx, "unblock", func(tx *store.Tx) error {
		edges, err := tx.RelationsBetween(ctx, blocker, target)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if e.From == blocker && e.Status == store.StatusBlocked {
				return tx.DeleteRelation(ctx, e)
			}
		}
		return nil
	})
}

// Get returns an edge by id.
func (g *Graph) Get(ctx context.Context, edgeID string) (*store.Relation, error) {
	edge, err := g.db.GetRelation(ctx, edgeID)
	if err != nil {
		return nil, err
	}
	if edge == nil {
		return nil, apperr.NotFound("get relation", "edge %s", edgeID)
	}
	return edge, nil
}

// Between returns every edge between a and b.
func (g *Graph) Between(ctx context.Context, a, b string) ([]*store.Relation, error) {
	return g.db.RelationsBetween(ctx, a, b)
}

// IsBlocked reports whether either user blocked the other.
func (g *Graph) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	edges, err := g.db.RelationsBetween(ctx, a, b)
	if err != nil {
		return false, err
	}
	for _, e := range edges {
		if e.Status == store.StatusBlocked {
			return true, nil
		}
	}
	return false, nil
}

// PendingSent returns requests userID sent that are still pending.
func (g *Graph) PendingSent(ctx context.Context, userID string) ([]*store.Relation, error) {
	return g.db.RelationsFrom(ctx, userID, store.StatusPending)
}

// PendingReceived returns requests addressed to userID that are still pending.
func (g *Graph) PendingReceived(ctx context.Context, userID string) ([]*store.Relation, error) {
	return g.db.RelationsTo(ctx, userID, store.StatusPending)
}

// Friends returns the friend edges leaving userID.
func (g *Graph) Friends(ctx context.Context, userID string) ([]*store.Relation, error) {
	return g.db.RelationsFrom(ctx, userID, store.StatusFriend)
}

// BlockedBy returns the blocked edges userID created.
func (g *Graph) BlockedBy(ctx context.Context, userID string) ([]*store.Relation, error) {
	return g.db.RelationsFrom(ctx, userID, store.StatusBlocked)
}
