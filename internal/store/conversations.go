package store

import (
	"context"
	"encoding/json"
	"fmt"
)

const conversationColumns = `id, name, participants, hidden_by, muted_by, direct_conversation_id, last_message_time, pfp_file_path, created_at`

func scanConversation(s scanner) (*Conversation, error) {
	var c Conversation
	var participants, hiddenBy, mutedBy string
	if err := s.Scan(&c.ID, &c.Name, &participants, &hiddenBy, &mutedBy, &c.DirectConversationID, &c.LastMessageTime, &c.PfpFilePath, &c.CreatedAt); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{{participants, &c.Participants}, {hiddenBy, &c.HiddenBy}, {mutedBy, &c.MutedBy}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decode conversation %q: %w", c.ID, err)
		}
		if *f.dst == nil {
			*f.dst = []string{}
		}
	}
	return &c, nil
}

func encodeIDs(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}

func getConversation(ctx context.Context, q queryer, id string) (*Conversation, error) {
	c, err := queryDoc(ctx, q, scanConversation, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id)
	return c, classify("get conversation", err)
}

func conversationByDirectID(ctx context.Context, q queryer, key string) (*Conversation, error) {
	c, err := queryDoc(ctx, q, scanConversation, `SELECT `+conversationColumns+` FROM conversations WHERE direct_conversation_id = ?`, key)
	return c, classify("get direct conversation", err)
}

// GetConversation returns a conversation by id, or nil if missing.
func (db *DB) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return getConversation(ctx, db.DB, id)
}

// GetConversation returns a conversation by id within the batch, or nil if missing.
func (tx *Tx) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	return getConversation(ctx, tx.tx, id)
}

// ConversationByDirectID returns the conversation holding a direct key, or nil.
func (db *DB) ConversationByDirectID(ctx context.Context, key string) (*Conversation, error) {
	return conversationByDirectID(ctx, db.DB, key)
}

// ConversationByDirectID returns the conversation holding a direct key within the batch, or nil.
func (tx *Tx) ConversationByDirectID(ctx context.Context, key string) (*Conversation, error) {
	return conversationByDirectID(ctx, tx.tx, key)
}

// ConversationsOf returns every conversation userID participates in,
// most recently active first.
func (db *DB) ConversationsOf(ctx context.Context, userID string) ([]*Conversation, error) {
	cs, err := queryDocs(ctx, db.DB, scanConversation, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE EXISTS (SELECT 1 FROM json_each(conversations.participants) WHERE json_each.value = ?)
		ORDER BY last_message_time DESC, created_at DESC, id`, userID)
	return cs, classify("conversations of", err)
}

// InsertConversation creates a conversation document.
func (tx *Tx) InsertConversation(ctx context.Context, c *Conversation) error {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO conversations (id, name, participants, hidden_by, muted_by, direct_conversation_id, last_message_time, pfp_file_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, encodeIDs(c.Participants), encodeIDs(c.HiddenBy), encodeIDs(c.MutedBy),
		c.DirectConversationID, c.LastMessageTime, c.PfpFilePath, c.CreatedAt)
	if err != nil {
		return classify("insert conversation", err)
	}
	tx.record(Added, c)
	return nil
}

// UpdateConversation overwrites the mutable fields of a conversation.
// lastMessageTime never moves backwards.
func (tx *Tx) UpdateConversation(ctx context.Context, c *Conversation) error {
	_, err := tx.tx.ExecContext(ctx, `
		UPDATE conversations SET
			name = ?, participants = ?, hidden_by = ?, muted_by = ?,
			last_message_time = MAX(last_message_time, ?), pfp_file_path = ?
		WHERE id = ?`,
		c.Name, encodeIDs(c.Participants), encodeIDs(c.HiddenBy), encodeIDs(c.MutedBy),
		c.LastMessageTime, c.PfpFilePath, c.ID)
	if err != nil {
		return classify("update conversation", err)
	}
	stored, err := getConversation(ctx, tx.tx, c.ID)
	if err != nil {
		return err
	}
	if stored != nil {
		*c = *stored
	}
	tx.record(Modified, c)
	return nil
}

// AdvanceLastMessageTime moves lastMessageTime forward to at. It reports
// whether the document changed and returns the stored conversation.
func (tx *Tx) AdvanceLastMessageTime(ctx context.Context, id string, at int64) (*Conversation, bool, error) {
	res, err := tx.tx.ExecContext(ctx, `
		UPDATE conversations SET last_message_time = ?
		WHERE id = ? AND last_message_time < ?`, at, id, at)
	if err != nil {
		return nil, false, classify("touch conversation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, classify("touch conversation", err)
	}
	c, err := getConversation(ctx, tx.tx, id)
	if err != nil || c == nil {
		return c, false, err
	}
	if n > 0 {
		tx.record(Modified, c)
	}
	return c, n > 0, nil
}

// DeleteConversation removes a conversation together with its messages and
// pending touch, recording a removal for each.
func (tx *Tx) DeleteConversation(ctx context.Context, c *Conversation) error {
	if _, err := tx.DeleteMessagesIn(ctx, c.ID); err != nil {
		return err
	}
	if err := tx.DeletePendingTouch(ctx, c.ID); err != nil {
		return err
	}
	if _, err := tx.tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, c.ID); err != nil {
		return classify("delete conversation", err)
	}
	tx.record(Removed, c)
	return nil
}
