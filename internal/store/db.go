package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/batterydied/chatter/internal/bus"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database that backs the document collections.
type DB struct {
	*sql.DB

	bus     *bus.Bus
	writeMu sync.Mutex
	clock   *clock
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
// Committed changes are published on b; b may be nil.
func Open(path string, b *bus.Bus) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, bus: b, clock: newClock(time.Now)}, nil
}

// Bus returns the bus changes are published on.
func (db *DB) Bus() *bus.Bus { return db.bus }

// Now returns a server timestamp in Unix milliseconds, strictly greater than any
// timestamp previously handed out by this store.
func (db *DB) Now() int64 { return db.clock.next() }

// observeClock advances the clock past the newest persisted timestamp so a
// restarted daemon never assigns a timestamp older than stored data.
func (db *DB) observeClock(ctx context.Context) error {
	var latest int64
	err := db.QueryRowContext(ctx, `
		SELECT MAX(
			(SELECT COALESCE(MAX(created_at), 0) FROM messages),
			(SELECT COALESCE(MAX(last_message_time), 0) FROM conversations),
			(SELECT COALESCE(MAX(created_at), 0) FROM relations)
		)`).Scan(&latest)
	if err != nil {
		return err
	}
	db.clock.observe(latest)
	return nil
}

type clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func newClock(now func() time.Time) *clock {
	return &clock{now: now}
}

func (c *clock) next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}

func (c *clock) observe(ts int64) {
	c.mu.Lock()
	if ts > c.last {
		c.last = ts
	}
	c.mu.Unlock()
}
