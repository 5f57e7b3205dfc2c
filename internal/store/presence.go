package store

import "context"

const sessionColumns = `user_id, session_id, state, last_changed`

func scanSession(s scanner) (*PresenceSession, error) {
	var p PresenceSession
	if err := s.Scan(&p.UserID, &p.SessionID, &p.State, &p.LastChanged); err != nil {
		return nil, err
	}
	return &p, nil
}

func sessionsOf(ctx context.Context, q queryer, userID string) ([]*PresenceSession, error) {
	ss, err := queryDocs(ctx, q, scanSession, `
		SELECT `+sessionColumns+` FROM presence_sessions
		WHERE user_id = ? ORDER BY session_id`, userID)
	return ss, classify("sessions of", err)
}

// SessionsOf returns every presence session of a user.
func (db *DB) SessionsOf(ctx context.Context, userID string) ([]*PresenceSession, error) {
	return sessionsOf(ctx, db.DB, userID)
}

// SessionsOf returns every presence session of a user within the batch.
func (tx *Tx) SessionsOf(ctx context.Context, userID string) ([]*PresenceSession, error) {
	return sessionsOf(ctx, tx.tx, userID)
}

// OnlineSessions returns sessions currently online whose last change is at or before cutoff.
// A zero cutoff returns all online sessions.
func (db *DB) OnlineSessions(ctx context.Context, cutoff int64) ([]*PresenceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM presence_sessions WHERE state = 'online'`
	var args []any
	if cutoff > 0 {
		query += ` AND last_changed <= ?`
		args = append(args, cutoff)
	}
	ss, err := queryDocs(ctx, db.DB, scanSession, query+` ORDER BY user_id, session_id`, args...)
	return ss, classify("online sessions", err)
}

// AllSessions returns every presence session.
func (db *DB) AllSessions(ctx context.Context) ([]*PresenceSession, error) {
	ss, err := queryDocs(ctx, db.DB, scanSession, `SELECT `+sessionColumns+` FROM presence_sessions ORDER BY user_id, session_id`)
	return ss, classify("all sessions", err)
}

// PutSession upserts a presence session.
func (tx *Tx) PutSession(ctx context.Context, s *PresenceSession) error {
	var existed bool
	err := tx.tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM presence_sessions WHERE user_id = ? AND session_id = ?)`,
		s.UserID, s.SessionID).Scan(&existed)
	if err != nil {
		return classify("put session", err)
	}
	_, err = tx.tx.ExecContext(ctx, `
		INSERT INTO presence_sessions (user_id, session_id, state, last_changed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, session_id) DO UPDATE SET
			state = excluded.state,
			last_changed = excluded.last_changed`,
		s.UserID, s.SessionID, s.State, s.LastChanged)
	if err != nil {
		return classify("put session", err)
	}
	if existed {
		tx.record(Modified, s)
	} else {
		tx.record(Added, s)
	}
	return nil
}

// DeleteSessionsOf removes every presence session of a user.
func (tx *Tx) DeleteSessionsOf(ctx context.Context, userID string) error {
	ss, err := sessionsOf(ctx, tx.tx, userID)
	if err != nil {
		return err
	}
	if _, err := tx.tx.ExecContext(ctx, `DELETE FROM presence_sessions WHERE user_id = ?`, userID); err != nil {
		return classify("delete sessions", err)
	}
	for _, s := range ss {
		tx.record(Removed, s)
	}
	return nil
}
