package store

import (
	"context"
	"fmt"
)

// Query selects the documents of one collection a watch follows. Match must
// agree with Fetch: a document is in the result set iff Match returns true.
type Query struct {
	Collection Collection
	Name       string
	Match      func(Document) bool
	Fetch      func(ctx context.Context, db *DB) ([]Document, error)
}

func docs[T Document](xs []T) []Document {
	out := make([]Document, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// RelationsFromQuery follows edges leaving userID with the given status.
func RelationsFromQuery(userID string, status RelationStatus) Query {
	return Query{
		Collection: Relations,
		Name:       fmt.Sprintf("relations from %s (%s)", userID, status),
		Match: func(d Document) bool {
			r, ok := d.(*Relation)
			return ok && r.From == userID && r.Status == status
		},
		Fetch: func(ctx context.Context, db *DB) ([]Document, error) {
			rs, err := db.RelationsFrom(ctx, userID, status)
			return docs(rs), err
		},
	}
}

// RelationsToQuery follows edges arriving at userID with the given status.
func RelationsToQuery(userID string, status RelationStatus) Query {
	return Query{
		Collection: Relations,
		Name:       fmt.Sprintf("relations to %s (%s)", userID, status),
		Match: func(d Document) bool {
			r, ok := d.(*Relation)
			return ok && r.To == userID && r.Status == status
		},
		Fetch: func(ctx context.Context, db *DB) ([]Document, error) {
			rs, err := db.RelationsTo(ctx, userID, status)
			return docs(rs), err
		},
	}
}

// UserQuery follows a single user document.
func UserQuery(userID string) Query {
	return Query{
		Collection: Users,
		Name:       "user " + userID,
		Match: func(d Document) bool {
			u, ok := d.(*User)
			return ok && u.ID == userID
		},
		Fetch: func(ctx context.Context, db *DB) ([]Document, error) {
			u, err := db.GetUser(ctx, userID)
			if err != nil || u == nil {
				return nil, err
			}
			return []Document{u}, nil
		},
	}
}

// UsersQuery follows the user documents of ids.
func UsersQuery(ids []string) Query {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return Query{
		Collection: Users,
		Name:       fmt.Sprintf("users %v", ids),
		Match: func(d Document) bool {
			u, ok := d.(*User)
			return ok && set[u.ID]
		},
		Fetch: func(ctx context.Context, db *DB) ([]Document, error) {
			var out []Document
			for id := range set {
				u, err := db.GetUser(ctx, id)
				if err != nil {
					return nil, err
				}
				if u != nil {
					out = append(out, u)
				}
			}
			return out, nil
		},
	}
}

// ConversationsOfQuery follows conversations userID participates in.
func ConversationsOfQuery(userID string) Query {
	return Query{
		Collection: Conversations,
		Name:       "conversations of " + userID,
		Match: func(d Document) bool {
			c, ok := d.(*Conversation)
			return ok && c.HasParticipant(userID)
		},
		Fetch: func(ctx context.Context, db *DB) ([]Document, error) {
			cs, err := db.ConversationsOf(ctx, userID)
			return docs(cs), err
		},
	}
}

// MessagesInQuery follows the message log of a conversation.
func MessagesInQuery(conversationID string) Query {
	return Query{
		Collection: Messages,
		Name:       "messages in " + conversationID,
		Match: func(d Document) bool {
			m, ok := d.(*Message)
			return ok && m.ConversationID == conversationID
		},
		Fetch: func(ctx context.Context, db *DB) ([]Document, error) {
			ms, err := db.ListMessages(ctx, conversationID, -1, 0)
			return docs(ms), err
		},
	}
}

// SessionsQuery follows every presence session.
func SessionsQuery() Query {
	return Query{
		Collection: PresenceSessions,
		Name:       "presence sessions",
		Match: func(d Document) bool {
			_, ok := d.(*PresenceSession)
			return ok
		},
		Fetch: func(ctx context.Context, db *DB) ([]Document, error) {
			ss, err := db.AllSessions(ctx)
			return docs(ss), err
		},
	}
}
