// Package message maintains the ordered message log of each conversation.
package message

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/store"
)

// Toucher advances a conversation's lastMessageTime.
type Toucher interface {
	TouchAt(ctx context.Context, conversationID string, at int64) (*store.Conversation, error)
}

// Payload is the client-supplied content of a new message.
type Payload struct {
	Type     store.MessageType
	Text     string
	FileURL  string
	FileName string
	FileSize int64
	ReplyTo  string
}

// Validate checks that the payload is well formed for its type.
func (p *Payload) Validate() error {
	const op = "validate message"
	if p.Type == "" {
		p.Type = store.MessageText
	}
	switch p.Type {
	case store.MessageText:
		if strings.TrimSpace(p.Text) == "" {
			return apperr.Validation(op, "text message requires text")
		}
	case store.MessageImage, store.MessageFile, store.MessageVideo:
		if p.FileURL == "" {
			return apperr.Validation(op, "%s message requires a file url", p.Type)
		}
		if p.FileSize < 0 {
			return apperr.Validation(op, "file size cannot be negative")
		}
	default:
		return apperr.Validation(op, "unknown message type %q", p.Type)
	}
	return nil
}

// Stream appends, edits and lists messages.
type Stream struct {
	db      *store.DB
	toucher Toucher
	log     *zap.Logger
}

// New creates a message stream. toucher is called after every append.
func New(db *store.DB, toucher Toucher, log *zap.Logger) *Stream {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stream{db: db, toucher: toucher, log: log}
}

// Append adds a message to the conversation. The message and a pending
// touch are committed together; the conversation touch follows and, if it
// fails, is left for repair without failing the append.
func (s *Stream) Append(ctx context.Context, conversationID, senderID string, p Payload) (*store.Message, error) {
	const op = "append message"
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var msg *store.Message
	err := s.db.Write(ctx, op, func(tx *store.Tx) error {
		conv, err := tx.GetConversation(ctx, conversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return apperr.NotFound(op, "conversation %s", conversationID)
		}
		if !conv.HasParticipant(senderID) {
			return apperr.InvalidOperation(op, "%s is not a participant", senderID)
		}
		if p.ReplyTo != "" {
			parent, err := tx.GetMessage(ctx, p.ReplyTo)
			if err != nil {
				return err
			}
			if parent == nil || parent.ConversationID != conversationID {
				return apperr.Validation(op, "reply target %s is not in this conversation", p.ReplyTo)
			}
		}

		msg = &store.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			SenderID:       senderID,
			Type:           p.Type,
			Text:           p.Text,
			FileURL:        p.FileURL,
			FileName:       p.FileName,
			FileSize:       p.FileSize,
			ReplyTo:        p.ReplyTo,
			CreatedAt:      tx.Now(),
		}
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return err
		}
		return tx.PutPendingTouch(ctx, conversationID, msg.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.toucher.TouchAt(ctx, conversationID, msg.CreatedAt); err != nil {
		s.log.Warn("conversation touch deferred to repair",
			zap.String("conversation", conversationID),
			zap.String("message", msg.ID),
			zap.Error(err),
		)
	}
	return msg, nil
}

// Get returns a message by id.
func (s *Stream) Get(ctx context.Context, messageID string) (*store.Message, error) {
	m, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.NotFound("get message", "message %s", messageID)
	}
	return m, nil
}

// Edit replaces the text of a text message. An empty editorID skips the
// sender check. createdAt and therefore the position in the log never change.
func (s *Stream) Edit(ctx context.Context, messageID, editorID, text string) (*store.Message, error) {
	const op = "edit message"
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation(op, "text cannot be empty")
	}

	var msg *store.Message
	err := s.db.Write(ctx, op, func(tx *store.Tx) error {
		var err error
		msg, err = tx.GetMessage(ctx, messageID)
		if err != nil {
			return err
		}
		if msg == nil {
			return apperr.NotFound(op, "message %s", messageID)
		}
		if msg.Type != store.MessageText {
			return apperr.InvalidOperation(op, "cannot edit a %s message", msg.Type)
		}
		if editorID != "" && editorID != msg.SenderID {
			return apperr.InvalidOperation(op, "only the sender may edit")
		}
		msg.Text = text
		msg.UpdatedAt = tx.Now()
		return tx.UpdateMessageText(ctx, msg)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Delete removes a message permanently. An empty requesterID skips the
// sender check.
func (s *Stream) Delete(ctx context.Context, messageID, requesterID string) error {
	const op = "delete message"
	return s.db.Write(ctx, op, func(tx *store.Tx) error {
		msg, err := tx.GetMessage(ctx, messageID)
		if err != nil {
			return err
		}
		if msg == nil {
			return apperr.NotFound(op, "message %s", messageID)
		}
		if requesterID != "" && requesterID != msg.SenderID {
			return apperr.InvalidOperation(op, "only the sender may delete")
		}
		return tx.DeleteMessage(ctx, msg)
	})
}

// DeleteAll removes every message of a conversation in one batch and
// returns how many were removed.
func (s *Stream) DeleteAll(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.Write(ctx, "delete all messages", func(tx *store.Tx) error {
		var err error
		n, err = tx.DeleteMessagesIn(ctx, conversationID)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("conversation cleared", zap.String("conversation", conversationID), zap.Int("messages", n))
	return n, nil
}

// List returns messages created after cursor in ascending creation order.
// A zero cursor starts from the beginning; limit <= 0 returns everything.
func (s *Stream) List(ctx context.Context, conversationID string, cursor int64, limit int) ([]*store.Message, error) {
	conv, err := s.db.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, apperr.NotFound("list messages", "conversation %s", conversationID)
	}
	return s.db.ListMessages(ctx, conversationID, cursor, limit)
}
