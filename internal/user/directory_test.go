package user

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/bus"
	"github.com/batterydied/chatter/internal/store"
)

func testDirectory(t *testing.T) (*Directory, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"), bus.New())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, nil), db
}

func TestCreateAndGet(t *testing.T) {
	d, _ := testDirectory(t)
	ctx := context.Background()

	u, err := d.Create(ctx, "  alice ", "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.ID == "" || u.Username != "alice" || u.Theme != DefaultTheme || u.IsOnline {
		t.Fatalf("created user = %+v", u)
	}

	got, err := d.Get(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("email = %q, want alice@example.com", got.Email)
	}
}

func TestCreateValidation(t *testing.T) {
	d, _ := testDirectory(t)
	ctx := context.Background()

	if _, err := d.Create(ctx, "   ", ""); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("empty username error = %v, want validation", err)
	}
	if _, err := d.Create(ctx, "bob", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Create(ctx, "bob", ""); !apperr.IsConflict(err) {
		t.Errorf("duplicate username error = %v, want conflict", err)
	}
}

func TestGetMissing(t *testing.T) {
	d, _ := testDirectory(t)
	if _, err := d.Get(context.Background(), "nope"); !apperr.IsNotFound(err) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestUpdateProfileOnlyTouchesGivenFields(t *testing.T) {
	d, _ := testDirectory(t)
	ctx := context.Background()
	u, _ := d.Create(ctx, "alice", "a@x")

	theme := "dark"
	pfp := "avatars/alice.png"
	got, err := d.UpdateProfile(ctx, u.ID, Profile{Theme: &theme, PfpFilePath: &pfp})
	if err != nil {
		t.Fatal(err)
	}
	if got.Theme != "dark" || got.PfpFilePath != pfp || got.Username != "alice" || got.Email != "a@x" {
		t.Errorf("updated user = %+v", got)
	}

	empty := ""
	if _, err := d.UpdateProfile(ctx, u.ID, Profile{Username: &empty}); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("empty username update error = %v, want validation", err)
	}
	if _, err := d.UpdateProfile(ctx, "nope", Profile{Theme: &theme}); !apperr.IsNotFound(err) {
		t.Errorf("update missing user error = %v, want not found", err)
	}
}

func TestMarkRequestsSeenAdvancesWatermark(t *testing.T) {
	d, _ := testDirectory(t)
	ctx := context.Background()
	u, _ := d.Create(ctx, "alice", "")

	first, err := d.MarkRequestsSeen(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := d.MarkRequestsSeen(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.LastSeenRequest <= u.CreatedAt || second.LastSeenRequest <= first.LastSeenRequest {
		t.Errorf("watermarks %d, %d not increasing past createdAt %d", first.LastSeenRequest, second.LastSeenRequest, u.CreatedAt)
	}
}

func TestDeleteCascades(t *testing.T) {
	d, db := testDirectory(t)
	ctx := context.Background()
	a, _ := d.Create(ctx, "alice", "")
	b, _ := d.Create(ctx, "bob", "")

	err := db.Write(ctx, "seed", func(tx *store.Tx) error {
		if err := tx.InsertRelation(ctx, &store.Relation{ID: "ab", From: a.ID, To: b.ID, Status: store.StatusFriend}); err != nil {
			return err
		}
		if err := tx.InsertRelation(ctx, &store.Relation{ID: "ba", From: b.ID, To: a.ID, Status: store.StatusFriend}); err != nil {
			return err
		}
		return tx.PutSession(ctx, &store.PresenceSession{UserID: a.ID, SessionID: "s1", State: store.SessionOnline, LastChanged: tx.Now()})
	})
	if err != nil {
		t.Fatal(err)
	}

	sub := db.Bus().Subscribe(store.EventKind(store.Relations), 4)
	defer sub.Close()

	if err := d.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete(ctx, a.ID); !apperr.IsNotFound(err) {
		t.Errorf("second delete error = %v, want not found", err)
	}

	if edges, _ := db.RelationsBetween(ctx, a.ID, b.ID); len(edges) != 0 {
		t.Errorf("edges left = %d, want 0", len(edges))
	}
	if ss, _ := db.SessionsOf(ctx, a.ID); len(ss) != 0 {
		t.Errorf("sessions left = %d, want 0", len(ss))
	}
	evt := <-sub.C()
	if b := evt.Payload.(store.Batch); len(b.Changes) != 2 {
		t.Errorf("relation removals published = %d, want 2", len(b.Changes))
	}
}
