package store

import "context"

const messageColumns = `id, conversation_id, sender_id, type, text, file_url, file_name, file_size, reply_to, created_at, updated_at`

func scanMessage(s scanner) (*Message, error) {
	var m Message
	if err := s.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Type, &m.Text, &m.FileURL, &m.FileName, &m.FileSize, &m.ReplyTo, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func getMessage(ctx context.Context, q queryer, id string) (*Message, error) {
	m, err := queryDoc(ctx, q, scanMessage, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	return m, classify("get message", err)
}

func messagesIn(ctx context.Context, q queryer, conversationID string, after int64, limit int) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = ? AND created_at > ?
		ORDER BY created_at ASC, id ASC`
	args := []any{conversationID, after}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	ms, err := queryDocs(ctx, q, scanMessage, query, args...)
	return ms, classify("list messages", err)
}

// GetMessage returns a message by id, or nil if missing.
func (db *DB) GetMessage(ctx context.Context, id string) (*Message, error) {
	return getMessage(ctx, db.DB, id)
}

// GetMessage returns a message by id within the batch, or nil if missing.
func (tx *Tx) GetMessage(ctx context.Context, id string) (*Message, error) {
	return getMessage(ctx, tx.tx, id)
}

// ListMessages returns messages of a conversation created after the cursor,
// oldest first, using keyset pagination by timestamp. limit <= 0 loads the
// whole remaining log.
func (db *DB) ListMessages(ctx context.Context, conversationID string, after int64, limit int) ([]*Message, error) {
	return messagesIn(ctx, db.DB, conversationID, after, limit)
}

// MessageCount returns the number of messages in a conversation.
func (db *DB) MessageCount(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&count)
	return count, classify("count messages", err)
}

// InsertMessage creates a message document.
func (tx *Tx) InsertMessage(ctx context.Context, m *Message) error {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, type, text, file_url, file_name, file_size, reply_to, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.SenderID, m.Type, m.Text, m.FileURL, m.FileName, m.FileSize, m.ReplyTo, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return classify("insert message", err)
	}
	tx.record(Added, m)
	return nil
}

// UpdateMessageText overwrites the text body and edit timestamp of a message.
func (tx *Tx) UpdateMessageText(ctx context.Context, m *Message) error {
	_, err := tx.tx.ExecContext(ctx, `UPDATE messages SET text = ?, updated_at = ? WHERE id = ?`, m.Text, m.UpdatedAt, m.ID)
	if err != nil {
		return classify("update message", err)
	}
	tx.record(Modified, m)
	return nil
}

// DeleteMessage removes a message.
func (tx *Tx) DeleteMessage(ctx context.Context, m *Message) error {
	if _, err := tx.tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, m.ID); err != nil {
		return classify("delete message", err)
	}
	tx.record(Removed, m)
	return nil
}

// DeleteMessagesIn removes every message of a conversation and returns how many were removed.
func (tx *Tx) DeleteMessagesIn(ctx context.Context, conversationID string) (int, error) {
	ms, err := messagesIn(ctx, tx.tx, conversationID, -1, 0)
	if err != nil {
		return 0, err
	}
	if _, err := tx.tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return 0, classify("delete messages", err)
	}
	for _, m := range ms {
		tx.record(Removed, m)
	}
	return len(ms), nil
}
