package store

import "context"

func scanPendingTouch(s scanner) (*PendingTouch, error) {
	var p PendingTouch
	if err := s.Scan(&p.ConversationID, &p.At, &p.Attempts, &p.LastError, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// PendingTouches returns queued touches, oldest first.
func (db *DB) PendingTouches(ctx context.Context, limit int) ([]*PendingTouch, error) {
	if limit <= 0 {
		limit = 100
	}
	ps, err := queryDocs(ctx, db.DB, scanPendingTouch, `
		SELECT conversation_id, at, attempts, last_error, created_at
		FROM pending_touches ORDER BY created_at ASC LIMIT ?`, limit)
	return ps, classify("pending touches", err)
}

// PutPendingTouch queues a touch of conversationID to at. An existing entry
// keeps the later of the two timestamps.
func (tx *Tx) PutPendingTouch(ctx context.Context, conversationID string, at int64) error {
	now := tx.Now()
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO pending_touches (conversation_id, at, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET at = MAX(pending_touches.at, excluded.at)`,
		conversationID, at, now)
	if err != nil {
		return classify("queue touch", err)
	}
	tx.record(Added, &PendingTouch{ConversationID: conversationID, At: at, CreatedAt: now})
	return nil
}

// ClearPendingTouch removes the queued touch if it does not ask for a later time than at.
func (tx *Tx) ClearPendingTouch(ctx context.Context, conversationID string, at int64) error {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM pending_touches WHERE conversation_id = ? AND at <= ?`, conversationID, at)
	if err != nil {
		return classify("clear touch", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		tx.record(Removed, &PendingTouch{ConversationID: conversationID, At: at})
	}
	return nil
}

// DeletePendingTouch removes the queued touch unconditionally.
func (tx *Tx) DeletePendingTouch(ctx context.Context, conversationID string) error {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM pending_touches WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return classify("delete touch", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		tx.record(Removed, &PendingTouch{ConversationID: conversationID})
	}
	return nil
}

// MarkTouchFailed records a failed drain attempt.
func (tx *Tx) MarkTouchFailed(ctx context.Context, conversationID, errMsg string) error {
	_, err := tx.tx.ExecContext(ctx, `
		UPDATE pending_touches SET attempts = attempts + 1, last_error = ?
		WHERE conversation_id = ?`, errMsg, conversationID)
	return classify("mark touch failed", err)
}
