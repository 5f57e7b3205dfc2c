package store

import "context"

const relationColumns = `id, from_id, to_id, status, created_at`

func scanRelation(s scanner) (*Relation, error) {
	var r Relation
	if err := s.Scan(&r.ID, &r.From, &r.To, &r.Status, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func getRelation(ctx context.Context, q queryer, id string) (*Relation, error) {
	r, err := queryDoc(ctx, q, scanRelation, `SELECT `+relationColumns+` FROM relations WHERE id = ?`, id)
	return r, classify("get relation", err)
}

func relationsBetween(ctx context.Context, q queryer, a, b string) ([]*Relation, error) {
	rs, err := queryDocs(ctx, q, scanRelation, `
		SELECT `+relationColumns+` FROM relations
		WHERE (from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)
		ORDER BY created_at`, a, b, b, a)
	return rs, classify("relations between", err)
}

// GetRelation returns an edge by id, or nil if missing.
func (db *DB) GetRelation(ctx context.Context, id string) (*Relation, error) {
	return getRelation(ctx, db.DB, id)
}

// GetRelation returns an edge by id within the batch, or nil if missing.
func (tx *Tx) GetRelation(ctx context.Context, id string) (*Relation, error) {
	return getRelation(ctx, tx.tx, id)
}

// RelationsBetween returns every edge between a and b in either direction.
func (db *DB) RelationsBetween(ctx context.Context, a, b string) ([]*Relation, error) {
	return relationsBetween(ctx, db.DB, a, b)
}

// RelationsBetween returns every edge between a and b within the batch.
func (tx *Tx) RelationsBetween(ctx context.Context, a, b string) ([]*Relation, error) {
	return relationsBetween(ctx, tx.tx, a, b)
}

// RelationsFrom returns edges whose from end is userID with the given status.
func (db *DB) RelationsFrom(ctx context.Context, userID string, status RelationStatus) ([]*Relation, error) {
	rs, err := queryDocs(ctx, db.DB, scanRelation, `
		SELECT `+relationColumns+` FROM relations
		WHERE from_id = ? AND status = ?
		ORDER BY created_at`, userID, status)
	return rs, classify("relations from", err)
}

// RelationsTo returns edges whose to end is userID with the given status.
func (db *DB) RelationsTo(ctx context.Context, userID string, status RelationStatus) ([]*Relation, error) {
	rs, err := queryDocs(ctx, db.DB, scanRelation, `
		SELECT `+relationColumns+` FROM relations
		WHERE to_id = ? AND status = ?
		ORDER BY created_at`, userID, status)
	return rs, classify("relations to", err)
}

func relationsTouching(ctx context.Context, q queryer, userID string) ([]*Relation, error) {
	rs, err := queryDocs(ctx, q, scanRelation, `
		SELECT `+relationColumns+` FROM relations
		WHERE from_id = ? OR to_id = ?`, userID, userID)
	return rs, classify("relations touching", err)
}

// InsertRelation creates an edge.
func (tx *Tx) InsertRelation(ctx context.Context, r *Relation) error {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO relations (id, from_id, to_id, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.From, r.To, r.Status, r.CreatedAt)
	if err != nil {
		return classify("insert relation", err)
	}
	tx.record(Added, r)
	return nil
}

// DeleteRelation removes an edge.
func (tx *Tx) DeleteRelation(ctx context.Context, r *Relation) error {
	if _, err := tx.tx.ExecContext(ctx, `DELETE FROM relations WHERE id = ?`, r.ID); err != nil {
		return classify("delete relation", err)
	}
	tx.record(Removed, r)
	return nil
}

// DeleteRelationsOf removes every edge touching userID.
func (tx *Tx) DeleteRelationsOf(ctx context.Context, userID string) error {
	rs, err := relationsTouching(ctx, tx.tx, userID)
	if err != nil {
		return err
	}
	for _, r := range rs {
		if err := tx.DeleteRelation(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
