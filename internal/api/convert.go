package api

import (
	"github.com/batterydied/chatter/internal/chatterv1"
	"github.com/batterydied/chatter/internal/store"
	intsync "github.com/batterydied/chatter/internal/sync"
)

func userToWire(u *store.User) *chatterv1.User {
	if u == nil {
		return nil
	}
	return &chatterv1.User{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		IsOnline:        u.IsOnline,
		PfpFilePath:     u.PfpFilePath,
		LastSeenRequest: u.LastSeenRequest,
		Theme:           u.Theme,
		CreatedAt:       u.CreatedAt,
	}
}

func relationToWire(r *store.Relation) *chatterv1.Relation {
	return &chatterv1.Relation{
		ID:        r.ID,
		From:      r.From,
		To:        r.To,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
	}
}

func relationsToWire(rs []*store.Relation) []*chatterv1.Relation {
	out := make([]*chatterv1.Relation, 0, len(rs))
	for _, r := range rs {
		out = append(out, relationToWire(r))
	}
	return out
}

func conversationToWire(c *store.Conversation) *chatterv1.Conversation {
	if c == nil {
		return nil
	}
	return &chatterv1.Conversation{
		ID:                   c.ID,
		Name:                 c.Name,
		Participants:         c.Participants,
		HiddenBy:             c.HiddenBy,
		MutedBy:              c.MutedBy,
		DirectConversationID: c.DirectConversationID,
		LastMessageTime:      c.LastMessageTime,
		PfpFilePath:          c.PfpFilePath,
		CreatedAt:            c.CreatedAt,
	}
}

func messageToWire(m *store.Message) *chatterv1.Message {
	return &chatterv1.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Type:           string(m.Type),
		Text:           m.Text,
		FileURL:        m.FileURL,
		FileName:       m.FileName,
		FileSize:       m.FileSize,
		ReplyTo:        m.ReplyTo,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func contactToWire(c intsync.Contact) *chatterv1.Contact {
	return &chatterv1.Contact{
		EdgeID: c.EdgeID,
		Status: string(c.Status),
		Since:  c.Since,
		User:   userToWire(c.User),
	}
}

func entryToWire(e intsync.ConversationEntry) *chatterv1.ConversationEntry {
	return &chatterv1.ConversationEntry{
		Conversation: conversationToWire(e.Conversation),
		DisplayName:  e.DisplayName,
		Muted:        e.Muted,
	}
}
