package sync

import (
	"context"
	"sort"
	"strings"

	"github.com/batterydied/chatter/internal/store"
)

// View kinds, used for naming and accounting.
const (
	KindFriends       = "friends"
	KindRequests      = "requests"
	KindOutgoing      = "outgoing"
	KindBlocked       = "blocked"
	KindConversations = "conversations"
	KindMessages      = "messages"
)

// Contact is a relation edge seen from one end, with the other user's profile.
type Contact struct {
	EdgeID string               `json:"edgeId"`
	Status store.RelationStatus `json:"status"`
	Since  int64                `json:"since"`
	User   *store.User          `json:"user"`
}

// FriendsSummary lists the friends currently online, sorted by id.
type FriendsSummary struct {
	Online []string `json:"online"`
}

// RequestsSummary counts requests newer than the user's lastSeenRequest.
type RequestsSummary struct {
	Unread int `json:"unread"`
}

// ConversationEntry is a conversation as shown in one user's list.
type ConversationEntry struct {
	Conversation *store.Conversation `json:"conversation"`
	DisplayName  string              `json:"displayName"`
	Muted        bool                `json:"muted"`
}

// ConversationsSummary is the visible list order, most recent first.
type ConversationsSummary struct {
	Order []string `json:"order"`
}

// MessagesSummary describes the message log.
type MessagesSummary struct {
	Count int `json:"count"`
}

// None is the aggregate of views without one.
type None struct{}

type (
	FriendsHandle       = Handle[Contact, FriendsSummary]
	RequestsHandle      = Handle[Contact, RequestsSummary]
	ContactsHandle      = Handle[Contact, None]
	ConversationsHandle = Handle[ConversationEntry, ConversationsSummary]
	MessagesHandle      = Handle[*store.Message, MessagesSummary]
)

func viewName(kind, id string) string { return kind + ":" + id }

// contact resolves the counterpart profile of an edge. A missing profile
// excludes the edge.
func (e *Engine) contact(self string) func(ctx context.Context, doc store.Document) (Contact, bool, error) {
	return func(ctx context.Context, doc store.Document) (Contact, bool, error) {
		r, ok := doc.(*store.Relation)
		if !ok {
			return Contact{}, false, nil
		}
		u, err := e.db.GetUser(ctx, r.Counterpart(self))
		if err != nil || u == nil {
			return Contact{}, false, err
		}
		return Contact{EdgeID: r.ID, Status: r.Status, Since: r.CreatedAt, User: u}, true, nil
	}
}

// Friends follows userID's friends with live profiles. The aggregate is
// the set of online friends.
func (e *Engine) Friends(ctx context.Context, userID string) (*FriendsHandle, error) {
	return open(ctx, e, KindFriends, Spec[Contact, FriendsSummary]{
		Name:        viewName(KindFriends, userID),
		Primary:     store.RelationsFromQuery(userID, store.StatusFriend),
		Materialize: e.contact(userID),
		Secondary: func(doc store.Document) (store.Query, bool) {
			r, ok := doc.(*store.Relation)
			if !ok {
				return store.Query{}, false
			}
			return store.UserQuery(r.Counterpart(userID)), true
		},
		Aggregate: func(values map[string]Contact) FriendsSummary {
			online := []string{}
			for _, c := range values {
				if c.User.IsOnline {
					online = append(online, c.User.ID)
				}
			}
			sort.Strings(online)
			return FriendsSummary{Online: online}
		},
	})
}

// Requests follows friend requests addressed to userID. The aggregate is
// the unread count, which also moves when the user marks requests seen.
func (e *Engine) Requests(ctx context.Context, userID string) (*RequestsHandle, error) {
	var lastSeen int64
	self := store.UserQuery(userID)
	return open(ctx, e, KindRequests, Spec[Contact, RequestsSummary]{
		Name:        viewName(KindRequests, userID),
		Primary:     store.RelationsToQuery(userID, store.StatusPending),
		Materialize: e.contact(userID),
		Context:     &self,
		OnContext: func(c store.Change) {
			u, ok := c.Doc.(*store.User)
			if !ok {
				return
			}
			if c.Type == store.Removed {
				lastSeen = 0
				return
			}
			lastSeen = u.LastSeenRequest
		},
		Aggregate: func(values map[string]Contact) RequestsSummary {
			var n int
			for _, c := range values {
				if c.Since > lastSeen {
					n++
				}
			}
			return RequestsSummary{Unread: n}
		},
	})
}

// Outgoing follows requests userID sent that are still pending.
func (e *Engine) Outgoing(ctx context.Context, userID string) (*ContactsHandle, error) {
	return open(ctx, e, KindOutgoing, Spec[Contact, None]{
		Name:        viewName(KindOutgoing, userID),
		Primary:     store.RelationsFromQuery(userID, store.StatusPending),
		Materialize: e.contact(userID),
	})
}

// Blocked follows the users userID blocked.
func (e *Engine) Blocked(ctx context.Context, userID string) (*ContactsHandle, error) {
	return open(ctx, e, KindBlocked, Spec[Contact, None]{
		Name:        viewName(KindBlocked, userID),
		Primary:     store.RelationsFromQuery(userID, store.StatusBlocked),
		Materialize: e.contact(userID),
	})
}

// Conversations follows userID's visible conversations. Hidden ones are
// excluded; unnamed ones are labelled with the other participants' current
// names.
func (e *Engine) Conversations(ctx context.Context, userID string) (*ConversationsHandle, error) {
	return open(ctx, e, KindConversations, Spec[ConversationEntry, ConversationsSummary]{
		Name:    viewName(KindConversations, userID),
		Primary: store.ConversationsOfQuery(userID),
		Materialize: func(ctx context.Context, doc store.Document) (ConversationEntry, bool, error) {
			c, ok := doc.(*store.Conversation)
			if !ok || c.IsHiddenFor(userID) {
				return ConversationEntry{}, false, nil
			}
			name, err := e.displayName(ctx, c, userID)
			if err != nil {
				return ConversationEntry{}, false, err
			}
			return ConversationEntry{Conversation: c, DisplayName: name, Muted: c.IsMutedFor(userID)}, true, nil
		},
		// Unnamed conversations are labelled from participant profiles, so
		// a rename re-materializes them.
		Secondary: func(doc store.Document) (store.Query, bool) {
			c, ok := doc.(*store.Conversation)
			if !ok || c.Name != "" {
				return store.Query{}, false
			}
			var others []string
			for _, id := range c.Participants {
				if id != userID {
					others = append(others, id)
				}
			}
			return store.UsersQuery(others), len(others) > 0
		},
		Aggregate: func(values map[string]ConversationEntry) ConversationsSummary {
			entries := make([]*store.Conversation, 0, len(values))
			for _, v := range values {
				entries = append(entries, v.Conversation)
			}
			sort.Slice(entries, func(i, j int) bool {
				a, b := entries[i], entries[j]
				if a.LastMessageTime != b.LastMessageTime {
					return a.LastMessageTime > b.LastMessageTime
				}
				if a.CreatedAt != b.CreatedAt {
					return a.CreatedAt > b.CreatedAt
				}
				return a.ID < b.ID
			})
			order := make([]string, len(entries))
			for i, c := range entries {
				order[i] = c.ID
			}
			return ConversationsSummary{Order: order}
		},
	})
}

func (e *Engine) displayName(ctx context.Context, c *store.Conversation, viewer string) (string, error) {
	if c.Name != "" {
		return c.Name, nil
	}
	var names []string
	for _, id := range c.Participants {
		if id == viewer {
			continue
		}
		u, err := e.db.GetUser(ctx, id)
		if err != nil {
			return "", err
		}
		if u != nil {
			names = append(names, u.Username)
		}
	}
	return strings.Join(names, ", "), nil
}

// Messages follows the message log of a conversation.
func (e *Engine) Messages(ctx context.Context, conversationID string) (*MessagesHandle, error) {
	return open(ctx, e, KindMessages, Spec[*store.Message, MessagesSummary]{
		Name:    viewName(KindMessages, conversationID),
		Primary: store.MessagesInQuery(conversationID),
		Materialize: func(_ context.Context, doc store.Document) (*store.Message, bool, error) {
			m, ok := doc.(*store.Message)
			return m, ok, nil
		},
		Aggregate: func(values map[string]*store.Message) MessagesSummary {
			return MessagesSummary{Count: len(values)}
		},
	})
}
