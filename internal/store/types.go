package store

import "slices"

// Collection names a document collection.
type Collection string

const (
	Users            Collection = "users"
	Relations        Collection = "relations"
	Conversations    Collection = "conversations"
	Messages         Collection = "messages"
	PresenceSessions Collection = "presence_sessions"
	PendingTouches   Collection = "pending_touches"
)

// Document is a record stored in a collection.
type Document interface {
	DocID() string
	Collection() Collection
}

// User is a user profile document.
type User struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	IsOnline        bool   `json:"isOnline"`
	PfpFilePath     string `json:"pfpFilePath"`
	LastSeenRequest int64  `json:"lastSeenRequest"`
	Theme           string `json:"theme"`
	CreatedAt       int64  `json:"createdAt"`
}

func (u *User) DocID() string          { return u.ID }
func (u *User) Collection() Collection { return Users }

// RelationStatus is the status of a directed relation edge.
type RelationStatus string

const (
	StatusPending RelationStatus = "pending"
	StatusFriend  RelationStatus = "friend"
	StatusBlocked RelationStatus = "blocked"
)

// Relation is a directed relation edge.
type Relation struct {
	ID        string         `json:"id"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Status    RelationStatus `json:"status"`
	CreatedAt int64          `json:"createdAt"`
}

func (r *Relation) DocID() string          { return r.ID }
func (r *Relation) Collection() Collection { return Relations }

// Counterpart returns the other end of the edge as seen from userID.
func (r *Relation) Counterpart(userID string) string {
	if r.From == userID {
		return r.To
	}
	return r.From
}

// Conversation is a direct or group conversation document.
type Conversation struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Participants         []string `json:"participants"`
	HiddenBy             []string `json:"hiddenBy"`
	MutedBy              []string `json:"mutedBy"`
	DirectConversationID string   `json:"directConversationId"`
	LastMessageTime      int64    `json:"lastMessageTime"`
	PfpFilePath          string   `json:"pfpFilePath"`
	CreatedAt            int64    `json:"createdAt"`
}

func (c *Conversation) DocID() string          { return c.ID }
func (c *Conversation) Collection() Collection { return Conversations }

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.Participants, userID)
}

// IsHiddenFor reports whether userID archived the conversation.
func (c *Conversation) IsHiddenFor(userID string) bool {
	return slices.Contains(c.HiddenBy, userID)
}

// IsMutedFor reports whether userID muted the conversation.
func (c *Conversation) IsMutedFor(userID string) bool {
	return slices.Contains(c.MutedBy, userID)
}

// IsDirect reports whether this is a 1:1 conversation.
func (c *Conversation) IsDirect() bool { return c.DirectConversationID != "" }

// MessageType is the payload kind of a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
	MessageVideo MessageType = "video"
)

// Message is a message document owned by a conversation.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	Type           MessageType `json:"type"`
	Text           string      `json:"text,omitempty"`
	FileURL        string      `json:"fileUrl,omitempty"`
	FileName       string      `json:"fileName,omitempty"`
	FileSize       int64       `json:"fileSize,omitempty"`
	ReplyTo        string      `json:"replyTo,omitempty"`
	CreatedAt      int64       `json:"createdAt"`
	UpdatedAt      int64       `json:"updatedAt,omitempty"`
}

func (m *Message) DocID() string          { return m.ID }
func (m *Message) Collection() Collection { return Messages }

// SessionState is the state of a presence session.
type SessionState string

const (
	SessionOnline  SessionState = "online"
	SessionOffline SessionState = "offline"
)

// PresenceSession is one connection of a user.
type PresenceSession struct {
	UserID      string       `json:"userId"`
	SessionID   string       `json:"sessionId"`
	State       SessionState `json:"state"`
	LastChanged int64        `json:"lastChanged"`
}

func (s *PresenceSession) DocID() string          { return s.UserID + "/" + s.SessionID }
func (s *PresenceSession) Collection() Collection { return PresenceSessions }

// PendingTouch records a conversation whose lastMessageTime still has to advance to At.
type PendingTouch struct {
	ConversationID string `json:"conversationId"`
	At             int64  `json:"at"`
	Attempts       int    `json:"attempts"`
	LastError      string `json:"lastError"`
	CreatedAt      int64  `json:"createdAt"`
}

func (p *PendingTouch) DocID() string          { return p.ConversationID }
func (p *PendingTouch) Collection() Collection { return PendingTouches }

// ChangeType is the kind of a document change.
type ChangeType string

const (
	Added    ChangeType = "added"
	Modified ChangeType = "modified"
	Removed  ChangeType = "removed"
)

// Change is one document-level change. For Removed, Doc is the last known value.
type Change struct {
	Type ChangeType
	Doc  Document
}

// Batch is the set of changes one commit (or one watch delivery) produced for a collection.
type Batch struct {
	Collection Collection
	Changes    []Change
	// Snapshot marks the initial delivery of a watch.
	Snapshot bool
}
