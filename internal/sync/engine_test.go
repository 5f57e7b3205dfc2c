package sync

import (
	"context"
	"errors"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/bus"
	"github.com/batterydied/chatter/internal/status"
	"github.com/batterydied/chatter/internal/store"
)

func testDB(t *testing.T, users ...string) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path, bus.New())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		for _, id := range users {
			if err := tx.InsertUser(ctx, &store.User{ID: id, Username: "user-" + id, CreatedAt: tx.Now()}); err != nil {
				return err
			}
		}
		return nil
	})
	return db
}

func testEngine(t *testing.T, db *store.DB) *Engine {
	t.Helper()
	e := NewEngine(db, db.Bus(), nil, Options{
		RetryAttempts:   1,
		RetryBaseDelay:  time.Millisecond,
		RecoverInterval: 20 * time.Millisecond,
	})
	t.Cleanup(e.Stop)
	return e
}

func write(t *testing.T, db *store.DB, fn func(ctx context.Context, tx *store.Tx) error) {
	t.Helper()
	ctx := context.Background()
	if err := db.Write(ctx, "test", func(tx *store.Tx) error { return fn(ctx, tx) }); err != nil {
		t.Fatal(err)
	}
}

func befriend(t *testing.T, db *store.DB, a, b string) {
	t.Helper()
	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		if err := tx.InsertRelation(ctx, &store.Relation{ID: a + b, From: a, To: b, Status: store.StatusFriend, CreatedAt: tx.Now()}); err != nil {
			return err
		}
		return tx.InsertRelation(ctx, &store.Relation{ID: b + a, From: b, To: a, Status: store.StatusFriend, CreatedAt: tx.Now()})
	})
}

func setOnline(t *testing.T, db *store.DB, id string, online bool) {
	t.Helper()
	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		u.IsOnline = online
		return tx.UpdateUser(ctx, u)
	})
}

func next[V, A any](t *testing.T, h *Handle[V, A]) Update[V, A] {
	t.Helper()
	select {
	case u, ok := <-h.Updates():
		if !ok {
			t.Fatal("view closed")
		}
		return u
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for update on %s", h.View())
	}
	return Update[V, A]{}
}

func expectQuiet[V, A any](t *testing.T, h *Handle[V, A]) {
	t.Helper()
	select {
	case u := <-h.Updates():
		t.Fatalf("unexpected update on %s: %+v", h.View(), u)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFriendsSnapshotAndPresence(t *testing.T) {
	db := testDB(t, "A", "B", "C")
	befriend(t, db, "A", "B")
	befriend(t, db, "A", "C")
	setOnline(t, db, "C", true)
	e := testEngine(t, db)

	h, err := e.Friends(context.Background(), "A")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	snap := next(t, h)
	if !snap.Snapshot || len(snap.Items) != 2 {
		t.Fatalf("snapshot = %+v, want 2 friends", snap)
	}
	if snap.Aggregate == nil || len(snap.Aggregate.Online) != 1 || snap.Aggregate.Online[0] != "C" {
		t.Fatalf("aggregate = %+v, want online [C]", snap.Aggregate)
	}
	if snap.Status != status.Live {
		t.Errorf("snapshot status = %q, want LIVE", snap.Status)
	}

	setOnline(t, db, "B", true)
	u := next(t, h)
	if len(u.Items) != 1 || u.Items[0].ID != "AB" || !u.Items[0].Value.User.IsOnline {
		t.Fatalf("update = %+v, want B online", u)
	}
	if u.Aggregate == nil || len(u.Aggregate.Online) != 2 {
		t.Errorf("aggregate = %+v, want two online", u.Aggregate)
	}
}

func TestFriendsAggregateOnlyEmittedWhenChanged(t *testing.T) {
	db := testDB(t, "A", "B")
	befriend(t, db, "A", "B")
	e := testEngine(t, db)

	h, err := e.Friends(context.Background(), "A")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	next(t, h)

	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		u, _ := tx.GetUser(ctx, "B")
		u.Theme = "dark"
		return tx.UpdateUser(ctx, u)
	})
	u := next(t, h)
	if len(u.Items) != 1 || u.Items[0].Value.User.Theme != "dark" {
		t.Fatalf("update = %+v, want B's new theme", u)
	}
	if u.Aggregate != nil {
		t.Errorf("aggregate re-emitted without change: %+v", u.Aggregate)
	}
}

func TestUnfriendTearsDownSecondaryWatch(t *testing.T) {
	db := testDB(t, "A", "B")
	befriend(t, db, "A", "B")
	e := testEngine(t, db)

	h, err := e.Friends(context.Background(), "A")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	next(t, h)

	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		for _, id := range []string{"AB", "BA"} {
			r, _ := tx.GetRelation(ctx, id)
			if err := tx.DeleteRelation(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	u := next(t, h)
	if len(u.Removed) != 1 || u.Removed[0] != "AB" {
		t.Fatalf("update = %+v, want AB removed", u)
	}

	// B's profile no longer feeds this view.
	setOnline(t, db, "B", true)
	expectQuiet(t, h)
}

func TestRequestsUnreadFollowsLastSeen(t *testing.T) {
	db := testDB(t, "A", "B", "C")
	e := testEngine(t, db)
	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		return tx.InsertRelation(ctx, &store.Relation{ID: "BA", From: "B", To: "A", Status: store.StatusPending, CreatedAt: tx.Now()})
	})

	h, err := e.Requests(context.Background(), "A")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	snap := next(t, h)
	if len(snap.Items) != 1 || snap.Aggregate == nil || snap.Aggregate.Unread != 1 {
		t.Fatalf("snapshot = %+v, want one unread request", snap)
	}

	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		u, _ := tx.GetUser(ctx, "A")
		u.LastSeenRequest = tx.Now()
		return tx.UpdateUser(ctx, u)
	})
	u := next(t, h)
	if u.Aggregate == nil || u.Aggregate.Unread != 0 || len(u.Items) != 0 {
		t.Fatalf("update = %+v, want unread 0 and no item changes", u)
	}

	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		return tx.InsertRelation(ctx, &store.Relation{ID: "CA", From: "C", To: "A", Status: store.StatusPending, CreatedAt: tx.Now()})
	})
	u = next(t, h)
	if len(u.Items) != 1 || u.Items[0].Value.User.ID != "C" || u.Aggregate == nil || u.Aggregate.Unread != 1 {
		t.Fatalf("update = %+v, want C's request unread", u)
	}
}

func TestOutgoingAndBlocked(t *testing.T) {
	db := testDB(t, "A", "B", "C")
	e := testEngine(t, db)
	ctx := context.Background()

	out, err := e.Outgoing(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	blocked, err := e.Blocked(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	defer blocked.Close()
	if s := next(t, out); len(s.Items) != 0 || s.Aggregate != nil {
		t.Fatalf("outgoing snapshot = %+v, want empty without aggregate", s)
	}
	next(t, blocked)

	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		if err := tx.InsertRelation(ctx, &store.Relation{ID: "AB", From: "A", To: "B", Status: store.StatusPending, CreatedAt: tx.Now()}); err != nil {
			return err
		}
		return tx.InsertRelation(ctx, &store.Relation{ID: "AC", From: "A", To: "C", Status: store.StatusBlocked, CreatedAt: tx.Now()})
	})
	if u := next(t, out); len(u.Items) != 1 || u.Items[0].Value.User.ID != "B" {
		t.Errorf("outgoing update = %+v, want B", u)
	}
	if u := next(t, blocked); len(u.Items) != 1 || u.Items[0].Value.Status != store.StatusBlocked {
		t.Errorf("blocked update = %+v, want C blocked", u)
	}
}

func TestConversationsHideAndOrder(t *testing.T) {
	db := testDB(t, "A", "B", "C")
	e := testEngine(t, db)
	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		if err := tx.InsertConversation(ctx, &store.Conversation{ID: "ab", Participants: []string{"A", "B"}, DirectConversationID: "A:B", LastMessageTime: 100, CreatedAt: 1}); err != nil {
			return err
		}
		return tx.InsertConversation(ctx, &store.Conversation{ID: "grp", Name: "team", Participants: []string{"A", "B", "C"}, LastMessageTime: 200, CreatedAt: 2})
	})

	h, err := e.Conversations(context.Background(), "A")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	snap := next(t, h)
	if len(snap.Items) != 2 {
		t.Fatalf("snapshot items = %d, want 2", len(snap.Items))
	}
	names := map[string]string{}
	for _, it := range snap.Items {
		names[it.ID] = it.Value.DisplayName
	}
	if names["ab"] != "user-B" || names["grp"] != "team" {
		t.Errorf("display names = %v", names)
	}
	if got := snap.Aggregate.Order; len(got) != 2 || got[0] != "grp" || got[1] != "ab" {
		t.Errorf("order = %v, want [grp ab]", got)
	}

	// Hiding removes it from the view.
	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		c, _ := tx.GetConversation(ctx, "grp")
		c.HiddenBy = []string{"A"}
		return tx.UpdateConversation(ctx, c)
	})
	u := next(t, h)
	if len(u.Removed) != 1 || u.Removed[0] != "grp" {
		t.Fatalf("update = %+v, want grp removed", u)
	}

	// New activity reorders.
	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		_, _, err := tx.AdvanceLastMessageTime(ctx, "ab", 500)
		return err
	})
	u = next(t, h)
	if len(u.Items) != 1 || u.Items[0].Value.Conversation.LastMessageTime != 500 {
		t.Errorf("update = %+v, want ab touched", u)
	}
}

func TestConversationLabelFollowsParticipantRename(t *testing.T) {
	db := testDB(t, "A", "B")
	e := testEngine(t, db)
	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		return tx.InsertConversation(ctx, &store.Conversation{ID: "ab", Participants: []string{"A", "B"}, DirectConversationID: "A:B", LastMessageTime: 1, CreatedAt: 1})
	})

	h, err := e.Conversations(context.Background(), "A")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if snap := next(t, h); len(snap.Items) != 1 || snap.Items[0].Value.DisplayName != "user-B" {
		t.Fatalf("snapshot = %+v", snap)
	}

	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		u, err := tx.GetUser(ctx, "B")
		if err != nil {
			return err
		}
		u.Username = "bee"
		return tx.UpdateUser(ctx, u)
	})
	u := next(t, h)
	if len(u.Items) != 1 || u.Items[0].Value.DisplayName != "bee" {
		t.Errorf("update = %+v, want label bee", u)
	}

	// Profile changes that leave the label alone emit nothing.
	setOnline(t, db, "B", true)
	expectQuiet(t, h)
}

func TestMessagesView(t *testing.T) {
	db := testDB(t, "A", "B")
	e := testEngine(t, db)
	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		return tx.InsertConversation(ctx, &store.Conversation{ID: "c", Participants: []string{"A", "B"}, CreatedAt: tx.Now()})
	})

	h, err := e.Messages(context.Background(), "c")
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if snap := next(t, h); snap.Aggregate == nil || snap.Aggregate.Count != 0 {
		t.Fatalf("snapshot = %+v, want count 0", snap)
	}

	write(t, db, func(ctx context.Context, tx *store.Tx) error {
		return tx.InsertMessage(ctx, &store.Message{ID: "m1", ConversationID: "c", SenderID: "A", Type: store.MessageText, Text: "hi", CreatedAt: tx.Now()})
	})
	u := next(t, h)
	if len(u.Items) != 1 || u.Items[0].Value.Text != "hi" || u.Aggregate.Count != 1 {
		t.Errorf("update = %+v, want m1", u)
	}
}

func TestTransientFailureDegradesThenRecovers(t *testing.T) {
	db := testDB(t, "A", "B")
	befriend(t, db, "A", "B")
	e := testEngine(t, db)

	var mu gosync.Mutex
	failures := 3 // more than one attempt plus one retry
	h, err := open(context.Background(), e, "test", Spec[string, None]{
		Name:    "flaky",
		Primary: store.RelationsFromQuery("A", store.StatusFriend),
		Materialize: func(_ context.Context, doc store.Document) (string, bool, error) {
			mu.Lock()
			defer mu.Unlock()
			if failures > 0 {
				failures--
				return "", false, apperr.Transient("fetch", errors.New("database is locked"))
			}
			return doc.(*store.Relation).To, true, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	snap := next(t, h)
	if len(snap.Items) != 0 || snap.Status != status.Degraded || snap.Warning == "" {
		t.Fatalf("snapshot = %+v, want degraded with warning and no items", snap)
	}

	u := next(t, h)
	if u.Status != status.Live || len(u.Items) != 1 || u.Items[0].Value != "B" {
		t.Fatalf("recovery update = %+v, want live with B", u)
	}
}

func TestSoftFailureExcludesEntityOnly(t *testing.T) {
	db := testDB(t, "A", "B", "C")
	befriend(t, db, "A", "B")
	befriend(t, db, "A", "C")
	e := testEngine(t, db)

	h, err := open(context.Background(), e, "test", Spec[string, None]{
		Name:    "picky",
		Primary: store.RelationsFromQuery("A", store.StatusFriend),
		Materialize: func(_ context.Context, doc store.Document) (string, bool, error) {
			r := doc.(*store.Relation)
			if r.To == "B" {
				return "", false, errors.New("profile unreadable")
			}
			return r.To, true, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	snap := next(t, h)
	if len(snap.Items) != 1 || snap.Items[0].Value != "C" {
		t.Fatalf("snapshot = %+v, want only C", snap)
	}
	if snap.Status != status.Live {
		t.Errorf("status = %q, want LIVE for non-transient failure", snap.Status)
	}
}

func TestCloseReleasesView(t *testing.T) {
	db := testDB(t, "A")
	e := testEngine(t, db)
	sub := db.Bus().Subscribe(status.EventKind, 10)
	defer sub.Close()

	h, err := e.Friends(context.Background(), "A")
	if err != nil {
		t.Fatal(err)
	}
	next(t, h)
	if e.OpenViews() != 1 || e.OpenViewsByKind()[KindFriends] != 1 {
		t.Fatalf("open views = %d, want 1", e.OpenViews())
	}

	h.Close()
	h.Close()
	if _, ok := <-h.Updates(); ok {
		t.Error("updates channel still open after Close")
	}
	if h.Status() != status.Closed {
		t.Errorf("status = %s, want CLOSED", h.Status())
	}
	if e.OpenViews() != 0 {
		t.Errorf("open views after close = %d, want 0", e.OpenViews())
	}

	var states []status.State
	for len(states) < 2 {
		select {
		case evt := <-sub.C():
			states = append(states, evt.Payload.(status.StatusChange).To)
		case <-time.After(time.Second):
			t.Fatalf("status events = %v, want LIVE then CLOSED", states)
		}
	}
	if states[0] != status.Live || states[1] != status.Closed {
		t.Errorf("status events = %v, want [LIVE CLOSED]", states)
	}
}

func TestEngineStopClosesAllViews(t *testing.T) {
	db := testDB(t, "A")
	e := NewEngine(db, db.Bus(), nil, Options{})
	ctx := context.Background()

	f, err := e.Friends(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	c, err := e.Conversations(ctx, "A")
	if err != nil {
		t.Fatal(err)
	}
	e.Stop()

	for _, ch := range []func() bool{
		func() bool { _, ok := <-f.Updates(); return ok },
		func() bool { _, ok := <-c.Updates(); return ok },
	} {
		// Drain the snapshot if it was buffered before the close.
		for ch() {
		}
	}
	if e.OpenViews() != 0 {
		t.Errorf("open views after Stop = %d, want 0", e.OpenViews())
	}
}

func TestOpenFailsWithoutBus(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	e := NewEngine(db, nil, nil, Options{})
	if _, err := e.Friends(context.Background(), "A"); err == nil {
		t.Fatal("expected establishment failure")
	}
	if e.OpenViews() != 0 {
		t.Errorf("open views = %d, want 0", e.OpenViews())
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	var calls int
	permanent := errors.New("nope")
	err := retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("retry = %v after %d calls, want permanent error after 1", err, calls)
	}

	calls = 0
	err = retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return apperr.Transient("op", errors.New("busy"))
	})
	if !apperr.IsTransient(err) || calls != 3 {
		t.Errorf("retry = %v after %d calls, want transient after 3", err, calls)
	}
}
