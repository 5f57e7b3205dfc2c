package store

import "context"

const userColumns = `id, username, email, is_online, pfp_file_path, last_seen_request, theme, created_at`

func scanUser(s scanner) (*User, error) {
	var u User
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.IsOnline, &u.PfpFilePath, &u.LastSeenRequest, &u.Theme, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func getUser(ctx context.Context, q queryer, id string) (*User, error) {
	u, err := queryDoc(ctx, q, scanUser, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return u, classify("get user", err)
}

// GetUser returns a user by id, or nil if missing.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	return getUser(ctx, db.DB, id)
}

// GetUser returns a user by id within the batch, or nil if missing.
func (tx *Tx) GetUser(ctx context.Context, id string) (*User, error) {
	return getUser(ctx, tx.tx, id)
}

// GetUserByUsername returns a user by username, or nil if missing.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u, err := queryDoc(ctx, db.DB, scanUser, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return u, classify("get user by username", err)
}

// InsertUser creates a user document.
func (tx *Tx) InsertUser(ctx context.Context, u *User) error {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, is_online, pfp_file_path, last_seen_request, theme, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.IsOnline, u.PfpFilePath, u.LastSeenRequest, u.Theme, u.CreatedAt)
	if err != nil {
		return classify("insert user", err)
	}
	tx.record(Added, u)
	return nil
}

// UpdateUser overwrites the mutable fields of a user document.
func (tx *Tx) UpdateUser(ctx context.Context, u *User) error {
	_, err := tx.tx.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, is_online = ?, pfp_file_path = ?, last_seen_request = ?, theme = ?
		WHERE id = ?`,
		u.Username, u.Email, u.IsOnline, u.PfpFilePath, u.LastSeenRequest, u.Theme, u.ID)
	if err != nil {
		return classify("update user", err)
	}
	tx.record(Modified, u)
	return nil
}

// DeleteUser removes a user document.
func (tx *Tx) DeleteUser(ctx context.Context, u *User) error {
	if _, err := tx.tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, u.ID); err != nil {
		return classify("delete user", err)
	}
	tx.record(Removed, u)
	return nil
}

// OnlineUserIDs returns the ids of users currently flagged online.
func (db *DB) OnlineUserIDs(ctx context.Context) ([]string, error) {
	ids, err := queryDocs(ctx, db.DB, func(s scanner) (string, error) {
		var id string
		err := s.Scan(&id)
		return id, err
	}, `SELECT id FROM users WHERE is_online = 1 ORDER BY id`)
	return ids, classify("online users", err)
}
