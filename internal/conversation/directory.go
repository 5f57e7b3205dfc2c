// Package conversation manages conversation membership, visibility and mute
// state, and the canonical identity of direct conversations.
package conversation

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/store"
)

// DirectKeySep joins the sorted participant ids of a direct conversation.
const DirectKeySep = ":"

// DirectKey returns the canonical identity of the direct conversation
// between a and b. It does not depend on argument order.
func DirectKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, DirectKeySep)
}

// Visible reports whether conv appears in userID's conversation list.
func Visible(conv *store.Conversation, userID string) bool {
	return conv.HasParticipant(userID) && !conv.IsHiddenFor(userID)
}

// Directory manages conversation documents.
type Directory struct {
	db  *store.DB
	log *zap.Logger
}

// New creates a conversation directory backed by db.
func New(db *store.DB, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{db: db, log: log}
}

// ResolveDirect returns the direct conversation between requester and peer,
// creating it if needed. If requester had hidden it, it becomes visible again.
func (d *Directory) ResolveDirect(ctx context.Context, requester, peer string) (*store.Conversation, error) {
	const op = "resolve direct"
	if requester == "" || peer == "" {
		return nil, apperr.Validation(op, "both user ids are required")
	}
	if requester == peer {
		return nil, apperr.InvalidOperation(op, "cannot open a conversation with yourself")
	}
	key := DirectKey(requester, peer)

	var conv *store.Conversation
	write := func() error {
		return d.db.Write(ctx, op, func(tx *store.Tx) error {
			existing, err := tx.ConversationByDirectID(ctx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				conv = existing
				if !existing.IsHiddenFor(requester) {
					return nil
				}
				existing.HiddenBy = without(existing.HiddenBy, requester)
				return tx.UpdateConversation(ctx, existing)
			}

			for _, id := range []string{requester, peer} {
				u, err := tx.GetUser(ctx, id)
				if err != nil {
					return err
				}
				if u == nil {
					return apperr.NotFound(op, "user %s", id)
				}
			}
			edges, err := tx.RelationsBetween(ctx, requester, peer)
			if err != nil {
				return err
			}
			for _, e := range edges {
				if e.Status == store.StatusBlocked {
					return apperr.InvalidOperation(op, "users have blocked each other")
				}
			}

			now := tx.Now()
			conv = &store.Conversation{
				ID:                   uuid.NewString(),
				Participants:         []string{requester, peer},
				HiddenBy:             []string{},
				MutedBy:              []string{},
				DirectConversationID: key,
				LastMessageTime:      now,
				CreatedAt:            now,
			}
			return tx.InsertConversation(ctx, conv)
		})
	}

	err := write()
	if apperr.IsConflict(err) {
		// Another writer created it between our read and insert; the retry
		// finds the winner.
		d.log.Debug("direct conversation race lost", zap.String("key", key))
		err = write()
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// CreateGroup creates a named group conversation. The creator is always a
// participant; at least two distinct participants are required.
func (d *Directory) CreateGroup(ctx context.Context, creator, name string, participants []string) (*store.Conversation, error) {
	const op = "create group"
	if creator == "" {
		return nil, apperr.Validation(op, "creator is required")
	}
	members := []string{creator}
	for _, p := range participants {
		if p != "" && !slices.Contains(members, p) {
			members = append(members, p)
		}
	}
	if len(members) < 2 {
		return nil, apperr.Validation(op, "a group needs at least two participants")
	}

	var conv *store.Conversation
	err := d.db.Write(ctx, op, func(tx *store.Tx) error {
		for _, id := range members {
			u, err := tx.GetUser(ctx, id)
			if err != nil {
				return err
			}
			if u == nil {
				return apperr.NotFound(op, "user %s", id)
			}
		}
		now := tx.Now()
		conv = &store.Conversation{
			ID:              uuid.NewString(),
			Name:            strings.TrimSpace(name),
			Participants:    members,
			HiddenBy:        []string{},
			MutedBy:         []string{},
			LastMessageTime: now,
			CreatedAt:       now,
		}
		return tx.InsertConversation(ctx, conv)
	})
	if err != nil {
		return nil, err
	}
	d.log.Info("group created", zap.String("conversation", conv.ID), zap.Int("participants", len(members)))
	return conv, nil
}

// Get returns a conversation by id.
func (d *Directory) Get(ctx context.Context, id string) (*store.Conversation, error) {
	conv, err := d.db.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperr.NotFound("get conversation", "conversation %s", id)
	}
	return conv, nil
}

// Details carries the editable fields of a conversation. Nil fields are left unchanged.
type Details struct {
	Name        *string
	PfpFilePath *string
}

// Update edits the conversation name or picture.
func (d *Directory) Update(ctx context.Context, id string, det Details) (*store.Conversation, error) {
	return d.modify(ctx, "update conversation", id, func(c *store.Conversation) (bool, error) {
		if det.Name != nil {
			c.Name = strings.TrimSpace(*det.Name)
		}
		if det.PfpFilePath != nil {
			c.PfpFilePath = *det.PfpFilePath
		}
		return true, nil
	})
}

// Delete removes a conversation and all of its messages in one batch.
func (d *Directory) Delete(ctx context.Context, id string) error {
	const op = "delete conversation"
	err := d.db.Write(ctx, op, func(tx *store.Tx) error {
		conv, err := tx.GetConversation(ctx, id)
		if err != nil {
			return err
		}
		if conv == nil {
			return apperr.NotFound(op, "conversation %s", id)
		}
		return tx.DeleteConversation(ctx, conv)
	})
	if err != nil {
		return err
	}
	d.log.Info("conversation deleted", zap.String("conversation", id))
	return nil
}

// Hide removes the conversation from userID's visible list.
func (d *Directory) Hide(ctx context.Context, id, userID string) (*store.Conversation, error) {
	return d.memberFlag(ctx, "hide conversation", id, userID, func(c *store.Conversation) *[]string { return &c.HiddenBy }, true)
}

// Unhide restores the conversation in userID's visible list.
func (d *Directory) Unhide(ctx context.Context, id, userID string) (*store.Conversation, error) {
	return d.memberFlag(ctx, "unhide conversation", id, userID, func(c *store.Conversation) *[]string { return &c.HiddenBy }, false)
}

// Mute silences notifications of the conversation for userID.
func (d *Directory) Mute(ctx context.Context, id, userID string) (*store.Conversation, error) {
	return d.memberFlag(ctx, "mute conversation", id, userID, func(c *store.Conversation) *[]string { return &c.MutedBy }, true)
}

// Unmute reverses Mute.
func (d *Directory) Unmute(ctx context.Context, id, userID string) (*store.Conversation, error) {
	return d.memberFlag(ctx, "unmute conversation", id, userID, func(c *store.Conversation) *[]string { return &c.MutedBy }, false)
}

func (d *Directory) memberFlag(ctx context.Context, op, id, userID string, field func(*store.Conversation) *[]string, set bool) (*store.Conversation, error) {
	return d.modify(ctx, op, id, func(c *store.Conversation) (bool, error) {
		if !c.HasParticipant(userID) {
			return false, apperr.InvalidOperation(op, "%s is not a participant", userID)
		}
		list := field(c)
		has := slices.Contains(*list, userID)
		switch {
		case set && !has:
			*list = append(*list, userID)
		case !set && has:
			*list = without(*list, userID)
		default:
			return false, nil
		}
		return true, nil
	})
}

// Touch sets lastMessageTime to the current server time.
func (d *Directory) Touch(ctx context.Context, id string) (*store.Conversation, error) {
	return d.TouchAt(ctx, id, d.db.Now())
}

// TouchAt advances lastMessageTime to at. It never moves it backwards.
func (d *Directory) TouchAt(ctx context.Context, id string, at int64) (*store.Conversation, error) {
	const op = "touch conversation"
	var conv *store.Conversation
	err := d.db.Write(ctx, op, func(tx *store.Tx) error {
		var err error
		conv, _, err = tx.AdvanceLastMessageTime(ctx, id, at)
		if err != nil {
			return err
		}
		if conv == nil {
			return apperr.NotFound(op, "conversation %s", id)
		}
		return tx.ClearPendingTouch(ctx, id, at)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListForUser returns every conversation userID participates in, most
// recent activity first. Hidden conversations are included; callers filter
// with Visible.
func (d *Directory) ListForUser(ctx context.Context, userID string) ([]*store.Conversation, error) {
	return d.db.ConversationsOf(ctx, userID)
}

// ListVisible returns the conversations shown in userID's list.
func (d *Directory) ListVisible(ctx context.Context, userID string) ([]*store.Conversation, error) {
	all, err := d.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if Visible(c, userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *Directory) modify(ctx context.Context, op, id string, fn func(c *store.Conversation) (bool, error)) (*store.Conversation, error) {
	var conv *store.Conversation
	err := d.db.Write(ctx, op, func(tx *store.Tx) error {
		var err error
		conv, err = tx.GetConversation(ctx, id)
		if err != nil {
			return err
		}
		if conv == nil {
			return apperr.NotFound(op, "conversation %s", id)
		}
		changed, err := fn(conv)
		if err != nil || !changed {
			return err
		}
		return tx.UpdateConversation(ctx, conv)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
