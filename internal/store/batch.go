package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/batterydied/chatter/internal/bus"
)

type scanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is an atomic multi-document write batch. Changes recorded on it are
// published as one Batch per collection after commit.
type Tx struct {
	tx      *sql.Tx
	db      *DB
	order   []Collection
	changes map[Collection][]Change
}

// Write runs fn inside a transaction. Writers are serialized, so the order
// batches are published in matches commit order.
func (db *DB) Write(ctx context.Context, op string, fn func(tx *Tx) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	sqlTx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classify(op, err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	tx := &Tx{tx: sqlTx, db: db, changes: make(map[Collection][]Change)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify(op, err)
	}
	db.publish(tx)
	return nil
}

// Now returns a server timestamp; see DB.Now.
func (tx *Tx) Now() int64 { return tx.db.Now() }

func (tx *Tx) record(t ChangeType, doc Document) {
	c := doc.Collection()
	if _, ok := tx.changes[c]; !ok {
		tx.order = append(tx.order, c)
	}
	tx.changes[c] = append(tx.changes[c], Change{Type: t, Doc: doc})
}

func (db *DB) publish(tx *Tx) {
	if db.bus == nil {
		return
	}
	now := time.Now()
	for _, c := range tx.order {
		db.bus.Publish(bus.Event{
			Kind:      EventKind(c),
			Timestamp: now,
			Payload:   Batch{Collection: c, Changes: tx.changes[c]},
		})
	}
}

// EventKind is the bus event kind committed changes of c are published under.
func EventKind(c Collection) string {
	return bus.StorePrefix + string(c)
}

func queryDocs[T any](ctx context.Context, q queryer, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func queryDoc[T any](ctx context.Context, q queryer, scan func(scanner) (*T, error), query string, args ...any) (*T, error) {
	v, err := scan(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}
