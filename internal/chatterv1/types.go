package chatterv1

// User is a user profile.
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

// Relation is a directed relation edge.
type Relation struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
}

// Conversation is a direct or group conversation.
type Conversation struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Participants         []string `json:"participants"`
	HiddenBy             []string `json:"hiddenBy"`
	MutedBy              []string `json:"mutedBy"`
	DirectConversationID string   `json:"directConversationId,omitempty"`
	LastMessageTime      int64    `json:"lastMessageTime"`
	PfpFilePath          string   `json:"pfpFilePath"`
	CreatedAt            int64    `json:"createdAt"`
}

// Message is one message of a conversation.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Type           string `json:"type"`
	Text           string `json:"text,omitempty"`
	FileURL        string `json:"fileUrl,omitempty"`
	FileName       string `json:"fileName,omitempty"`
	FileSize       int64  `json:"fileSize,omitempty"`
	ReplyTo        string `json:"replyTo,omitempty"`
	CreatedAt      int64  `json:"createdAt"`
	UpdatedAt      int64  `json:"updatedAt,omitempty"`
}

// Empty is the response of calls that return nothing.
type Empty struct{}

// --- UserService

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type GetUserRequest struct {
	UserID string `json:"userId"`
}

// UpdateProfileRequest changes only the fields that are set.
type UpdateProfileRequest struct {
	UserID      string  `json:"userId"`
	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	PfpFilePath *string `json:"pfpFilePath,omitempty"`
	Theme       *string `json:"theme,omitempty"`
}

type MarkRequestsSeenRequest struct {
	UserID string `json:"userId"`
}

type DeleteUserRequest struct {
	UserID string `json:"userId"`
}

type SetPresenceRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Online    bool   `json:"online"`
}

type ConnectRequest struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

// ConnectEvent is streamed while a Connect call is open. The first event
// confirms the session is online.
type ConnectEvent struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
	UserID    string `json:"userId,omitempty"`
	Online    bool   `json:"online,omitempty"`
}

// ConnectEvent kind sent once the session is online.
const (
	ConnectOnline = "online"
)

// --- RelationService

type SendRequestRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// EdgeRequest acts on a pending edge. Actor must be an endpoint allowed to
// perform the action.
type EdgeRequest struct {
	Actor  string `json:"actor"`
	EdgeID string `json:"edgeId"`
}

type PairRequest struct {
	Actor  string `json:"actor"`
	Target string `json:"target"`
}

type RelationResponse struct {
	Relation *Relation `json:"relation"`
}

type RelationsResponse struct {
	Relations []*Relation `json:"relations"`
}

// ListRelations kinds.
const (
	RelationsFriends  = "friends"
	RelationsSent     = "sent"
	RelationsReceived = "received"
	RelationsBlocked  = "blocked"
)

type ListRelationsRequest struct {
	UserID string `json:"userId"`
	Kind   string `json:"kind"`
}

// --- ConversationService

type ResolveDirectRequest struct {
	Requester string `json:"requester"`
	Peer      string `json:"peer"`
}

type CreateGroupRequest struct {
	Creator      string   `json:"creator"`
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

type GetConversationRequest struct {
	ConversationID string `json:"conversationId"`
}

type UpdateConversationRequest struct {
	ConversationID string  `json:"conversationId"`
	Name           *string `json:"name,omitempty"`
	PfpFilePath    *string `json:"pfpFilePath,omitempty"`
}

type DeleteConversationRequest struct {
	ConversationID string `json:"conversationId"`
	Actor          string `json:"actor"`
}

type ListConversationsRequest struct {
	UserID string `json:"userId"`
	// IncludeHidden also returns conversations the user archived.
	IncludeHidden bool `json:"includeHidden"`
}

// MemberFlagRequest hides, unhides, mutes or unmutes a conversation for UserID.
type MemberFlagRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Set            bool   `json:"set"`
}

type ConversationResponse struct {
	Conversation *Conversation `json:"conversation"`
}

type ConversationsResponse struct {
	Conversations []*Conversation `json:"conversations"`
}

// --- MessageService

type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Type           string `json:"type"`
	Text           string `json:"text,omitempty"`
	FileURL        string `json:"fileUrl,omitempty"`
	FileName       string `json:"fileName,omitempty"`
	FileSize       int64  `json:"fileSize,omitempty"`
	ReplyTo        string `json:"replyTo,omitempty"`
}

type GetMessageRequest struct {
	MessageID string `json:"messageId"`
}

type EditMessageRequest struct {
	MessageID string `json:"messageId"`
	EditorID  string `json:"editorId"`
	Text      string `json:"text"`
}

type DeleteMessageRequest struct {
	MessageID   string `json:"messageId"`
	RequesterID string `json:"requesterId"`
}

// ListMessagesRequest pages through a conversation oldest first, starting
// after the createdAt Cursor.
type ListMessagesRequest struct {
	ConversationID string `json:"conversationId"`
	Cursor         int64  `json:"cursor"`
	Limit          int    `json:"limit"`
}

type MessageResponse struct {
	Message *Message `json:"message"`
}

type MessagesResponse struct {
	Messages   []*Message `json:"messages"`
	NextCursor int64      `json:"nextCursor,omitempty"`
}

// --- SyncService

type WatchRequest struct {
	// UserID selects the user whose view is watched. WatchMessages uses
	// ConversationID instead.
	UserID         string `json:"userId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	// Kind picks the contacts view for WatchContacts: "outgoing" or "blocked".
	Kind string `json:"kind,omitempty"`
}

// Contact is a relation edge seen from one end.
type Contact struct {
	EdgeID string `json:"edgeId"`
	Status string `json:"status"`
	Since  int64  `json:"since"`
	User   *User  `json:"user"`
}

// ConversationEntry is a conversation as listed for one user.
type ConversationEntry struct {
	Conversation *Conversation `json:"conversation"`
	DisplayName  string        `json:"displayName"`
	Muted        bool          `json:"muted"`
}

// Summary carries the aggregate of a view; only the field of the view's
// kind is set.
type Summary struct {
	Online []string `json:"online,omitempty"`
	Unread *int     `json:"unread,omitempty"`
	Order  []string `json:"order,omitempty"`
	Count  *int     `json:"count,omitempty"`
}

// ViewUpdate is one delivery of a live view.
type ViewUpdate struct {
	EventID       string               `json:"eventId"`
	View          string               `json:"view"`
	Snapshot      bool                 `json:"snapshot,omitempty"`
	Status        string               `json:"status,omitempty"`
	Warning       string               `json:"warning,omitempty"`
	Removed       []string             `json:"removed,omitempty"`
	Contacts      []*Contact           `json:"contacts,omitempty"`
	Conversations []*ConversationEntry `json:"conversations,omitempty"`
	Messages      []*Message           `json:"messages,omitempty"`
	Summary       *Summary             `json:"summary,omitempty"`
}
