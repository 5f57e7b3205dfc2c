package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/bus"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, bus.New())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustWrite(t *testing.T, db *DB, fn func(tx *Tx) error) {
	t.Helper()
	if err := db.Write(context.Background(), "test", fn); err != nil {
		t.Fatal(err)
	}
}

func seedUsers(t *testing.T, db *DB, ids ...string) {
	t.Helper()
	mustWrite(t, db, func(tx *Tx) error {
		for _, id := range ids {
			if err := tx.InsertUser(context.Background(), &User{ID: id, Username: id, CreatedAt: tx.Now()}); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + pending touches)", result.Version)
	}
}

func TestMigrateSchemaHasRequiredColumns(t *testing.T) {
	db := testDB(t)

	requiredOps := []struct {
		desc  string
		query string
		args  []any
	}{
		{"insert user", "INSERT INTO users (id, username, email, is_online, pfp_file_path, last_seen_request, theme, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", []any{"u1", "alice", "a@x", false, "", 0, "dark", 1}},
		{"insert relation", "INSERT INTO relations (id, from_id, to_id, status, created_at) VALUES (?, ?, ?, ?, ?)", []any{"r1", "u1", "u1", "pending", 1}},
		{"insert conversation", "INSERT INTO conversations (id, name, participants, hidden_by, muted_by, direct_conversation_id, last_message_time, pfp_file_path, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", []any{"c1", "", `["u1"]`, "[]", "[]", "", 0, "", 1}},
		{"insert message", "INSERT INTO messages (id, conversation_id, sender_id, type, text, created_at) VALUES (?, ?, ?, ?, ?, ?)", []any{"m1", "c1", "u1", "text", "hi", 1}},
		{"insert session", "INSERT INTO presence_sessions (user_id, session_id, state, last_changed) VALUES (?, ?, ?, ?)", []any{"u1", "s1", "online", 1}},
		{"insert pending touch", "INSERT INTO pending_touches (conversation_id, at, created_at) VALUES (?, ?, ?)", []any{"c1", 1, 1}},
	}

	for _, op := range requiredOps {
		t.Run(op.desc, func(t *testing.T) {
			if _, err := db.Exec(op.query, op.args...); err != nil {
				t.Fatalf("%s failed: %v", op.desc, err)
			}
		})
	}
}

func TestClockIsStrictlyMonotonic(t *testing.T) {
	fixed := time.UnixMilli(1000)
	c := newClock(func() time.Time { return fixed })
	a, b, d := c.next(), c.next(), c.next()
	if !(a < b && b < d) {
		t.Errorf("timestamps %d, %d, %d not strictly increasing", a, b, d)
	}

	c.observe(5000)
	if got := c.next(); got != 5001 {
		t.Errorf("next after observe(5000) = %d, want 5001", got)
	}
}

func TestUserRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustWrite(t, db, func(tx *Tx) error {
		return tx.InsertUser(ctx, &User{ID: "u1", Username: "alice", Email: "a@x", Theme: "dark", CreatedAt: 10})
	})

	u, err := db.GetUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.Username != "alice" || u.Theme != "dark" {
		t.Fatalf("got %+v, want alice/dark", u)
	}

	missing, err := db.GetUser(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing user, got %+v", missing)
	}
}

func TestRelationPairIsUnique(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedUsers(t, db, "a", "b")

	mustWrite(t, db, func(tx *Tx) error {
		return tx.InsertRelation(ctx, &Relation{ID: "r1", From: "a", To: "b", Status: StatusPending, CreatedAt: 1})
	})
	err := db.Write(ctx, "dup", func(tx *Tx) error {
		return tx.InsertRelation(ctx, &Relation{ID: "r2", From: "a", To: "b", Status: StatusFriend, CreatedAt: 2})
	})
	if !apperr.IsConflict(err) {
		t.Fatalf("duplicate edge error = %v, want conflict", err)
	}

	rs, err := db.RelationsBetween(ctx, "b", "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 1 || rs[0].ID != "r1" {
		t.Errorf("RelationsBetween = %+v, want only r1", rs)
	}
}

func TestDirectConversationIDIsUnique(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	insert := func(id string) error {
		return db.Write(ctx, "insert", func(tx *Tx) error {
			return tx.InsertConversation(ctx, &Conversation{ID: id, Participants: []string{"a", "b"}, DirectConversationID: "a:b", CreatedAt: tx.Now()})
		})
	}
	if err := insert("c1"); err != nil {
		t.Fatal(err)
	}
	if err := insert("c2"); !apperr.IsConflict(err) {
		t.Fatalf("second direct conversation error = %v, want conflict", err)
	}

	// Group conversations share the empty key freely.
	for _, id := range []string{"g1", "g2"} {
		mustWrite(t, db, func(tx *Tx) error {
			return tx.InsertConversation(ctx, &Conversation{ID: id, Participants: []string{"a", "b", "c"}, CreatedAt: tx.Now()})
		})
	}
}

func TestConversationsOfOrdersByLastMessageTime(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	mustWrite(t, db, func(tx *Tx) error {
		for _, c := range []*Conversation{
			{ID: "old", Participants: []string{"a", "b"}, LastMessageTime: 100, CreatedAt: 1},
			{ID: "new", Participants: []string{"a", "c"}, LastMessageTime: 300, CreatedAt: 2},
			{ID: "other", Participants: []string{"b", "c"}, LastMessageTime: 500, CreatedAt: 3},
		} {
			if err := tx.InsertConversation(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})

	cs, err := db.ConversationsOf(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(cs) != 2 || cs[0].ID != "new" || cs[1].ID != "old" {
		t.Fatalf("ConversationsOf(a) = %v, want [new old]", ids(cs))
	}
	if cs[0].HiddenBy == nil || len(cs[0].HiddenBy) != 0 {
		t.Errorf("HiddenBy = %#v, want empty non-nil slice", cs[0].HiddenBy)
	}
}

func TestAdvanceLastMessageTimeNeverMovesBack(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustWrite(t, db, func(tx *Tx) error {
		return tx.InsertConversation(ctx, &Conversation{ID: "c", Participants: []string{"a", "b"}, LastMessageTime: 500, CreatedAt: 1})
	})

	var changed bool
	mustWrite(t, db, func(tx *Tx) error {
		var err error
		_, changed, err = tx.AdvanceLastMessageTime(ctx, "c", 400)
		return err
	})
	if changed {
		t.Error("advancing to an older time reported a change")
	}
	mustWrite(t, db, func(tx *Tx) error {
		var err error
		_, changed, err = tx.AdvanceLastMessageTime(ctx, "c", 600)
		return err
	})
	c, _ := db.GetConversation(ctx, "c")
	if !changed || c.LastMessageTime != 600 {
		t.Errorf("lastMessageTime = %d (changed=%v), want 600", c.LastMessageTime, changed)
	}
}

func TestMessagesKeysetPagination(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustWrite(t, db, func(tx *Tx) error {
		if err := tx.InsertConversation(ctx, &Conversation{ID: "c", Participants: []string{"a", "b"}, CreatedAt: 1}); err != nil {
			return err
		}
		for i, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
			if err := tx.InsertMessage(ctx, &Message{ID: id, ConversationID: "c", SenderID: "a", Type: MessageText, Text: id, CreatedAt: int64(100 + i)}); err != nil {
				return err
			}
		}
		return nil
	})

	page1, err := db.ListMessages(ctx, "c", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 2 || page1[0].ID != "m1" || page1[1].ID != "m2" {
		t.Fatalf("page1 = %v, want [m1 m2]", msgIDs(page1))
	}
	rest, err := db.ListMessages(ctx, "c", page1[1].CreatedAt, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 3 || rest[0].ID != "m3" || rest[2].ID != "m5" {
		t.Fatalf("rest = %v, want [m3 m4 m5]", msgIDs(rest))
	}
}

func TestDeleteConversationCascades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustWrite(t, db, func(tx *Tx) error {
		if err := tx.InsertConversation(ctx, &Conversation{ID: "c", Participants: []string{"a", "b"}, CreatedAt: 1}); err != nil {
			return err
		}
		if err := tx.InsertMessage(ctx, &Message{ID: "m1", ConversationID: "c", SenderID: "a", Type: MessageText, Text: "x", CreatedAt: 2}); err != nil {
			return err
		}
		return tx.PutPendingTouch(ctx, "c", 2)
	})

	sub := db.Bus().Subscribe(EventKind(Messages), 4)
	defer sub.Close()

	mustWrite(t, db, func(tx *Tx) error {
		c, err := tx.GetConversation(ctx, "c")
		if err != nil {
			return err
		}
		return tx.DeleteConversation(ctx, c)
	})

	if n, _ := db.MessageCount(ctx, "c"); n != 0 {
		t.Errorf("messages left after delete = %d, want 0", n)
	}
	pending, _ := db.PendingTouches(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("pending touches left = %d, want 0", len(pending))
	}
	evt := <-sub.C()
	b := evt.Payload.(Batch)
	if len(b.Changes) != 1 || b.Changes[0].Type != Removed {
		t.Errorf("message batch = %+v, want one removal", b)
	}
}

func TestWritePublishesOneBatchPerCollection(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedUsers(t, db, "a", "b")

	sub := db.Bus().Subscribe(EventKind(Relations), 4)
	defer sub.Close()

	mustWrite(t, db, func(tx *Tx) error {
		if err := tx.InsertRelation(ctx, &Relation{ID: "ab", From: "a", To: "b", Status: StatusFriend}); err != nil {
			return err
		}
		return tx.InsertRelation(ctx, &Relation{ID: "ba", From: "b", To: "a", Status: StatusFriend})
	})

	select {
	case evt := <-sub.C():
		b := evt.Payload.(Batch)
		if len(b.Changes) != 2 {
			t.Errorf("batch has %d changes, want 2", len(b.Changes))
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for batch")
	}
}

func TestFailedWritePublishesNothing(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedUsers(t, db, "a", "b")

	sub := db.Bus().Subscribe(EventKind(Relations), 4)
	defer sub.Close()

	boom := errors.New("boom")
	err := db.Write(ctx, "fail", func(tx *Tx) error {
		if err := tx.InsertRelation(ctx, &Relation{ID: "ab", From: "a", To: "b", Status: StatusPending}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Write error = %v, want boom", err)
	}
	if r, _ := db.GetRelation(ctx, "ab"); r != nil {
		t.Error("rolled back edge is visible")
	}
	select {
	case evt := <-sub.C():
		t.Errorf("unexpected event after rollback: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchDeliversSnapshotThenChanges(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedUsers(t, db, "a", "b", "c")
	mustWrite(t, db, func(tx *Tx) error {
		return tx.InsertRelation(ctx, &Relation{ID: "ab", From: "a", To: "b", Status: StatusFriend})
	})

	w, err := db.Watch(ctx, RelationsFromQuery("a", StatusFriend))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	snap := nextBatch(t, w)
	if !snap.Snapshot || len(snap.Changes) != 1 || snap.Changes[0].Doc.DocID() != "ab" {
		t.Fatalf("snapshot = %+v, want [ab]", snap)
	}

	// Edges not matching the query are filtered out.
	mustWrite(t, db, func(tx *Tx) error {
		if err := tx.InsertRelation(ctx, &Relation{ID: "ca", From: "c", To: "a", Status: StatusPending}); err != nil {
			return err
		}
		return tx.InsertRelation(ctx, &Relation{ID: "ac", From: "a", To: "c", Status: StatusFriend})
	})
	b := nextBatch(t, w)
	if len(b.Changes) != 1 || b.Changes[0].Type != Added || b.Changes[0].Doc.DocID() != "ac" {
		t.Fatalf("batch = %+v, want added ac", b)
	}

	mustWrite(t, db, func(tx *Tx) error {
		r, _ := tx.GetRelation(ctx, "ab")
		return tx.DeleteRelation(ctx, r)
	})
	b = nextBatch(t, w)
	if len(b.Changes) != 1 || b.Changes[0].Type != Removed || b.Changes[0].Doc.DocID() != "ab" {
		t.Fatalf("batch = %+v, want removed ab", b)
	}
}

func TestWatchTurnsNoLongerMatchingIntoRemoval(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mustWrite(t, db, func(tx *Tx) error {
		return tx.InsertConversation(ctx, &Conversation{ID: "c", Participants: []string{"a", "b", "c"}, CreatedAt: 1})
	})

	w, err := db.Watch(ctx, ConversationsOfQuery("c"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	nextBatch(t, w)

	mustWrite(t, db, func(tx *Tx) error {
		conv, _ := tx.GetConversation(ctx, "c")
		conv.Participants = []string{"a", "b"}
		return tx.UpdateConversation(ctx, conv)
	})
	b := nextBatch(t, w)
	if len(b.Changes) != 1 || b.Changes[0].Type != Removed {
		t.Fatalf("batch = %+v, want removal once c leaves participants", b)
	}
}

func TestWatchResyncDiffsAgainstKnownSet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedUsers(t, db, "a", "b", "c")
	mustWrite(t, db, func(tx *Tx) error {
		return tx.InsertRelation(ctx, &Relation{ID: "ab", From: "a", To: "b", Status: StatusFriend})
	})

	w := &Watch{query: RelationsFromQuery("a", StatusFriend)}
	known := map[string]Document{
		"gone": &Relation{ID: "gone", From: "a", To: "x", Status: StatusFriend},
	}
	out, err := w.resync(ctx, db, known)
	if err != nil {
		t.Fatal(err)
	}
	var added, removed int
	for _, c := range out.Changes {
		switch c.Type {
		case Added:
			added++
		case Removed:
			removed++
		}
	}
	if added != 1 || removed != 1 {
		t.Errorf("resync added=%d removed=%d, want 1 and 1", added, removed)
	}
	if _, ok := known["ab"]; !ok || len(known) != 1 {
		t.Errorf("known after resync = %v, want only ab", known)
	}
}

func TestWatchConvergesAfterOverflow(t *testing.T) {
	old := ResyncInterval
	ResyncInterval = 20 * time.Millisecond
	t.Cleanup(func() { ResyncInterval = old })

	db := testDB(t)
	ctx := context.Background()
	seedUsers(t, db, "u")

	w, err := db.Watch(ctx, UserQuery("u"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	nextBatch(t, w) // snapshot

	// Nobody reads while these commit, so the subscription overflows and
	// older events stay queued behind the drop.
	const n = 1500
	for i := 0; i < n; i++ {
		mustWrite(t, db, func(tx *Tx) error {
			u, err := tx.GetUser(ctx, "u")
			if err != nil {
				return err
			}
			u.Theme = fmt.Sprintf("t%d", i)
			return tx.UpdateUser(ctx, u)
		})
	}
	want := fmt.Sprintf("t%d", n-1)

	var theme string
	deadline := time.After(5 * time.Second)
	quiet := time.NewTimer(time.Hour)
	defer quiet.Stop()
	for {
		select {
		case b, ok := <-w.C():
			if !ok {
				t.Fatal("watch closed")
			}
			for _, c := range b.Changes {
				if u, ok := c.Doc.(*User); ok {
					theme = u.Theme
				}
			}
			if theme == want {
				quiet.Reset(200 * time.Millisecond)
			} else {
				quiet.Reset(time.Hour)
			}
		case <-quiet.C:
			return
		case <-deadline:
			t.Fatalf("watch settled on %q, store holds %q", theme, want)
		}
	}
}

func nextBatch(t *testing.T, w *Watch) Batch {
	t.Helper()
	select {
	case b, ok := <-w.C():
		if !ok {
			t.Fatal("watch closed")
		}
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for watch batch")
	}
	return Batch{}
}

func ids(cs []*Conversation) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func msgIDs(ms []*Message) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
