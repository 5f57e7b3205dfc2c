package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/batterydied/chatter/internal/apperr"
	"github.com/batterydied/chatter/internal/bus"
	"github.com/batterydied/chatter/internal/chatterv1"
	"github.com/batterydied/chatter/internal/conversation"
	"github.com/batterydied/chatter/internal/message"
	"github.com/batterydied/chatter/internal/presence"
	"github.com/batterydied/chatter/internal/relation"
	"github.com/batterydied/chatter/internal/store"
	intsync "github.com/batterydied/chatter/internal/sync"
	"github.com/batterydied/chatter/internal/user"
)

type clients struct {
	db       *store.DB
	users    *chatterv1.UserServiceClient
	relation *chatterv1.RelationServiceClient
	convs    *chatterv1.ConversationServiceClient
	messages *chatterv1.MessageServiceClient
	sync     *chatterv1.SyncServiceClient
}

func testServer(t *testing.T, limiter *presence.Limiter) *clients {
	t.Helper()
	return testServerWith(t, limiter, presence.Options{})
}

func testServerWith(t *testing.T, limiter *presence.Limiter, opts presence.Options) *clients {
	t.Helper()
	log := zap.NewNop()
	db, err := store.Open(filepath.Join(t.TempDir(), "api.db"), bus.New())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	tracker := presence.NewTracker(db, log, opts)
	if err := tracker.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	engine := intsync.NewEngine(db, db.Bus(), log, intsync.Options{})
	convs := conversation.New(db, log)
	graph := relation.New(db, log)

	srv := grpc.NewServer()
	chatterv1.RegisterUserServiceServer(srv, NewUserService(user.New(db, log), tracker, limiter, log))
	chatterv1.RegisterRelationServiceServer(srv, NewRelationService(graph))
	chatterv1.RegisterConversationServiceServer(srv, NewConversationService(convs, graph))
	chatterv1.RegisterMessageServiceServer(srv, NewMessageService(message.New(db, convs, log)))
	chatterv1.RegisterSyncServiceServer(srv, NewSyncService(engine, log))

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
		engine.Stop()
		tracker.Stop()
		_ = db.Close()
	})

	return &clients{
		db:       db,
		users:    chatterv1.NewUserServiceClient(conn),
		relation: chatterv1.NewRelationServiceClient(conn),
		convs:    chatterv1.NewConversationServiceClient(conn),
		messages: chatterv1.NewMessageServiceClient(conn),
		sync:     chatterv1.NewSyncServiceClient(conn),
	}
}

func (c *clients) createUser(t *testing.T, name string) string {
	t.Helper()
	u, err := c.users.CreateUser(context.Background(), &chatterv1.CreateUserRequest{Username: name, Email: name + "@example.com"})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", name, err)
	}
	return u.ID
}

func wantCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := grpcstatus.Code(err); got != want {
		t.Fatalf("code = %v (%v), want %v", got, err, want)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{apperr.Validation("op", "bad"), codes.InvalidArgument},
		{apperr.NotFound("op", "gone"), codes.NotFound},
		{apperr.InvalidOperation("op", "no"), codes.FailedPrecondition},
		{apperr.Conflict("op", errors.New("dup")), codes.AlreadyExists},
		{apperr.Transient("op", errors.New("busy")), codes.Unavailable},
		{fmt.Errorf("wrapped: %w", apperr.NotFound("op", "gone")), codes.NotFound},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		if got := codeOf(tt.err); got != tt.want {
			t.Errorf("codeOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
	if toStatus(nil) != nil {
		t.Error("toStatus(nil) should be nil")
	}
}

func TestUserLifecycle(t *testing.T) {
	c := testServer(t, nil)
	ctx := context.Background()
	id := c.createUser(t, "ann")

	theme := "dark"
	u, err := c.users.UpdateProfile(ctx, &chatterv1.UpdateProfileRequest{UserID: id, Theme: &theme})
	if err != nil {
		t.Fatal(err)
	}
	if u.Theme != "dark" || u.Username != "ann" {
		t.Errorf("profile = %+v", u)
	}

	seen, err := c.users.MarkRequestsSeen(ctx, &chatterv1.MarkRequestsSeenRequest{UserID: id})
	if err != nil {
		t.Fatal(err)
	}
	if seen.LastSeenRequest == 0 {
		t.Error("lastSeenRequest not advanced")
	}

	_, err = c.users.CreateUser(ctx, &chatterv1.CreateUserRequest{Username: "  "})
	wantCode(t, err, codes.InvalidArgument)

	if _, err := c.users.DeleteUser(ctx, &chatterv1.DeleteUserRequest{UserID: id}); err != nil {
		t.Fatal(err)
	}
	_, err = c.users.GetUser(ctx, &chatterv1.GetUserRequest{UserID: id})
	wantCode(t, err, codes.NotFound)
}

func TestAcceptRequiresRecipient(t *testing.T) {
	c := testServer(t, nil)
	ctx := context.Background()
	a, b := c.createUser(t, "a"), c.createUser(t, "b")

	sent, err := c.relation.SendRequest(ctx, &chatterv1.SendRequestRequest{From: a, To: b})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.relation.AcceptRequest(ctx, &chatterv1.EdgeRequest{Actor: a, EdgeID: sent.Relation.ID})
	wantCode(t, err, codes.PermissionDenied)

	_, err = c.relation.SendRequest(ctx, &chatterv1.SendRequestRequest{From: a, To: b})
	wantCode(t, err, codes.FailedPrecondition)

	accepted, err := c.relation.AcceptRequest(ctx, &chatterv1.EdgeRequest{Actor: b, EdgeID: sent.Relation.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted.Relations) != 2 {
		t.Fatalf("accept returned %d edges, want 2", len(accepted.Relations))
	}

	friends, err := c.relation.ListRelations(ctx, &chatterv1.ListRelationsRequest{UserID: a, Kind: chatterv1.RelationsFriends})
	if err != nil {
		t.Fatal(err)
	}
	if len(friends.Relations) != 1 || friends.Relations[0].To != b {
		t.Errorf("friends of a = %+v", friends.Relations)
	}

	_, err = c.relation.ListRelations(ctx, &chatterv1.ListRelationsRequest{UserID: a, Kind: "enemies"})
	wantCode(t, err, codes.InvalidArgument)
}

func TestDeclineByEitherEnd(t *testing.T) {
	c := testServer(t, nil)
	ctx := context.Background()
	a, b, outsider := c.createUser(t, "a"), c.createUser(t, "b"), c.createUser(t, "x")

	sent, err := c.relation.SendRequest(ctx, &chatterv1.SendRequestRequest{From: a, To: b})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.relation.DeclineRequest(ctx, &chatterv1.EdgeRequest{Actor: outsider, EdgeID: sent.Relation.ID})
	wantCode(t, err, codes.PermissionDenied)

	if _, err := c.relation.DeclineRequest(ctx, &chatterv1.EdgeRequest{Actor: a, EdgeID: sent.Relation.ID}); err != nil {
		t.Fatalf("sender cancel error = %v", err)
	}
	_, err = c.relation.DeclineRequest(ctx, &chatterv1.EdgeRequest{Actor: b, EdgeID: sent.Relation.ID})
	wantCode(t, err, codes.NotFound)
}

func TestConversationAndMessages(t *testing.T) {
	c := testServer(t, nil)
	ctx := context.Background()
	a, b := c.createUser(t, "a"), c.createUser(t, "b")

	first, err := c.convs.ResolveDirect(ctx, &chatterv1.ResolveDirectRequest{Requester: a, Peer: b})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.convs.ResolveDirect(ctx, &chatterv1.ResolveDirectRequest{Requester: b, Peer: a})
	if err != nil {
		t.Fatal(err)
	}
	if first.Conversation.ID != second.Conversation.ID {
		t.Fatalf("direct conversation not canonical: %s vs %s", first.Conversation.ID, second.Conversation.ID)
	}
	convID := first.Conversation.ID

	var ids []string
	for i := 0; i < 3; i++ {
		m, err := c.messages.SendMessage(ctx, &chatterv1.SendMessageRequest{
			ConversationID: convID, SenderID: a, Type: "text", Text: fmt.Sprintf("m%d", i),
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.Message.ID)
	}

	page, err := c.messages.ListMessages(ctx, &chatterv1.ListMessagesRequest{ConversationID: convID, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Messages) != 2 || page.NextCursor == 0 {
		t.Fatalf("first page = %d messages, cursor %d", len(page.Messages), page.NextCursor)
	}
	rest, err := c.messages.ListMessages(ctx, &chatterv1.ListMessagesRequest{ConversationID: convID, Cursor: page.NextCursor, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(rest.Messages) != 1 || rest.Messages[0].ID != ids[2] || rest.NextCursor != 0 {
		t.Fatalf("second page = %+v", rest)
	}

	_, err = c.messages.EditMessage(ctx, &chatterv1.EditMessageRequest{MessageID: ids[0], EditorID: b, Text: "x"})
	wantCode(t, err, codes.FailedPrecondition)
	_, err = c.messages.EditMessage(ctx, &chatterv1.EditMessageRequest{MessageID: ids[0], Text: "x"})
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.messages.SendMessage(ctx, &chatterv1.SendMessageRequest{ConversationID: convID, SenderID: a, Type: "text"})
	wantCode(t, err, codes.InvalidArgument)

	got, err := c.convs.GetConversation(ctx, &chatterv1.GetConversationRequest{ConversationID: convID})
	if err != nil {
		t.Fatal(err)
	}
	if got.Conversation.LastMessageTime != rest.Messages[0].CreatedAt {
		t.Errorf("lastMessageTime = %d, want %d", got.Conversation.LastMessageTime, rest.Messages[0].CreatedAt)
	}

	outsider := c.createUser(t, "x")
	_, err = c.convs.DeleteConversation(ctx, &chatterv1.DeleteConversationRequest{ConversationID: convID, Actor: outsider})
	wantCode(t, err, codes.PermissionDenied)
	if _, err := c.convs.DeleteConversation(ctx, &chatterv1.DeleteConversationRequest{ConversationID: convID, Actor: a}); err != nil {
		t.Fatal(err)
	}
	_, err = c.messages.GetMessage(ctx, &chatterv1.GetMessageRequest{MessageID: ids[0]})
	wantCode(t, err, codes.NotFound)
}

func TestBlockedPairCannotResolveDirect(t *testing.T) {
	c := testServer(t, nil)
	ctx := context.Background()
	a, b := c.createUser(t, "a"), c.createUser(t, "b")

	if _, err := c.relation.Block(ctx, &chatterv1.PairRequest{Actor: b, Target: a}); err != nil {
		t.Fatal(err)
	}
	_, err := c.convs.ResolveDirect(ctx, &chatterv1.ResolveDirectRequest{Requester: a, Peer: b})
	wantCode(t, err, codes.FailedPrecondition)

	if _, err := c.relation.Unblock(ctx, &chatterv1.PairRequest{Actor: b, Target: a}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.convs.ResolveDirect(ctx, &chatterv1.ResolveDirectRequest{Requester: a, Peer: b}); err != nil {
		t.Fatalf("ResolveDirect after unblock error = %v", err)
	}
}

func TestHideIsPerUser(t *testing.T) {
	c := testServer(t, nil)
	ctx := context.Background()
	a, b := c.createUser(t, "a"), c.createUser(t, "b")

	conv, err := c.convs.ResolveDirect(ctx, &chatterv1.ResolveDirectRequest{Requester: a, Peer: b})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.convs.HideConversation(ctx, &chatterv1.MemberFlagRequest{ConversationID: conv.Conversation.ID, UserID: a}); err != nil {
		t.Fatal(err)
	}

	listA, err := c.convs.ListConversations(ctx, &chatterv1.ListConversationsRequest{UserID: a})
	if err != nil {
		t.Fatal(err)
	}
	listB, err := c.convs.ListConversations(ctx, &chatterv1.ListConversationsRequest{UserID: b})
	if err != nil {
		t.Fatal(err)
	}
	if len(listA.Conversations) != 0 || len(listB.Conversations) != 1 {
		t.Errorf("visible a=%d b=%d, want 0 and 1", len(listA.Conversations), len(listB.Conversations))
	}
	all, err := c.convs.ListConversations(ctx, &chatterv1.ListConversationsRequest{UserID: a, IncludeHidden: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Conversations) != 1 {
		t.Errorf("with hidden = %d, want 1", len(all.Conversations))
	}

	muted, err := c.convs.MuteConversation(ctx, &chatterv1.MemberFlagRequest{ConversationID: conv.Conversation.ID, UserID: b, Set: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(muted.Conversation.MutedBy) != 1 || muted.Conversation.MutedBy[0] != b {
		t.Errorf("mutedBy = %v", muted.Conversation.MutedBy)
	}
}

func TestSetPresenceRateLimited(t *testing.T) {
	c := testServer(t, presence.NewLimiter(0.001, 1))
	ctx := context.Background()
	a := c.createUser(t, "a")

	req := &chatterv1.SetPresenceRequest{UserID: a, SessionID: "s1", Online: true}
	if _, err := c.users.SetPresence(ctx, req); err != nil {
		t.Fatal(err)
	}
	_, err := c.users.SetPresence(ctx, req)
	wantCode(t, err, codes.ResourceExhausted)

	req.Online = false
	if _, err := c.users.SetPresence(ctx, req); err != nil {
		t.Fatalf("offline signal was limited: %v", err)
	}
}

func waitOnline(t *testing.T, c *clients, userID string, want bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		u, err := c.users.GetUser(context.Background(), &chatterv1.GetUserRequest{UserID: userID})
		if err != nil {
			t.Fatal(err)
		}
		if u.IsOnline == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("isOnline never became %v", want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConnectKeepsSessionOnline(t *testing.T) {
	c := testServerWith(t, nil, presence.Options{SessionTTL: 100 * time.Millisecond, SweepInterval: 20 * time.Millisecond})
	a := c.createUser(t, "a")

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := c.users.Connect(ctx, &chatterv1.ConnectRequest{UserID: a})
	if err != nil {
		t.Fatal(err)
	}
	evt, err := stream.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if evt.Kind != chatterv1.ConnectOnline || evt.SessionID == "" {
		t.Fatalf("first event = %+v", evt)
	}
	waitOnline(t, c, a, true)

	// The stream outlives the session TTL without heartbeats.
	time.Sleep(400 * time.Millisecond)
	u, err := c.users.GetUser(context.Background(), &chatterv1.GetUserRequest{UserID: a})
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsOnline {
		t.Fatal("connected user was swept offline")
	}

	cancel()
	waitOnline(t, c, a, false)
}

func TestConnectUnknownUser(t *testing.T) {
	c := testServer(t, nil)
	stream, err := c.users.Connect(context.Background(), &chatterv1.ConnectRequest{UserID: "ghost"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = stream.Recv()
	wantCode(t, err, codes.NotFound)
}

func TestWatchFriendsStream(t *testing.T) {
	c := testServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, b := c.createUser(t, "a"), c.createUser(t, "b")

	sent, err := c.relation.SendRequest(ctx, &chatterv1.SendRequestRequest{From: a, To: b})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.relation.AcceptRequest(ctx, &chatterv1.EdgeRequest{Actor: b, EdgeID: sent.Relation.ID}); err != nil {
		t.Fatal(err)
	}

	stream, err := c.sync.WatchFriends(ctx, &chatterv1.WatchRequest{UserID: a})
	if err != nil {
		t.Fatal(err)
	}
	first, err := stream.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if !first.Snapshot || len(first.Contacts) != 1 || first.Contacts[0].User.ID != b {
		t.Fatalf("snapshot = %+v", first)
	}
	if first.EventID == "" {
		t.Error("missing event id")
	}

	if _, err := c.relation.Unfriend(ctx, &chatterv1.PairRequest{Actor: a, Target: b}); err != nil {
		t.Fatal(err)
	}
	for {
		u, err := stream.Recv()
		if err != nil {
			t.Fatal(err)
		}
		if len(u.Removed) > 0 {
			break
		}
	}
}

func TestWatchValidation(t *testing.T) {
	c := testServer(t, nil)
	stream, err := c.sync.WatchMessages(context.Background(), &chatterv1.WatchRequest{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = stream.Recv()
	wantCode(t, err, codes.InvalidArgument)

	contacts, err := c.sync.WatchContacts(context.Background(), &chatterv1.WatchRequest{UserID: "u", Kind: "nope"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = contacts.Recv()
	wantCode(t, err, codes.InvalidArgument)
}
