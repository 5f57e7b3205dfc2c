package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/batterydied/chatter/internal/chatterv1"
)

func newMessageCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{Use: "msg", Short: "Send and read messages"}

	send := &cobra.Command{
		Use:   "send <conversation-id> <sender-id> [text...]",
		Short: "Append a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &chatterv1.SendMessageRequest{
				ConversationID: args[0],
				SenderID:       args[1],
				Text:           strings.Join(args[2:], " "),
			}
			req.Type, _ = cmd.Flags().GetString("type")
			req.FileURL, _ = cmd.Flags().GetString("file-url")
			req.FileName, _ = cmd.Flags().GetString("file-name")
			req.FileSize, _ = cmd.Flags().GetInt64("file-size")
			req.ReplyTo, _ = cmd.Flags().GetString("reply-to")
			return call(cmd, s, func(ctx context.Context) (*chatterv1.MessageResponse, error) {
				return s.client.Messages.SendMessage(ctx, req)
			})
		},
	}
	send.Flags().String("type", "text", "text, image, file or video")
	send.Flags().String("file-url", "", "attachment URL")
	send.Flags().String("file-name", "", "attachment name")
	send.Flags().Int64("file-size", 0, "attachment size in bytes")
	send.Flags().String("reply-to", "", "id of the message replied to")

	list := &cobra.Command{
		Use:   "list <conversation-id>",
		Short: "Page through a conversation, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cursor, _ := cmd.Flags().GetInt64("cursor")
			limit, _ := cmd.Flags().GetInt("limit")
			return call(cmd, s, func(ctx context.Context) (*chatterv1.MessagesResponse, error) {
				return s.client.Messages.ListMessages(ctx, &chatterv1.ListMessagesRequest{
					ConversationID: args[0], Cursor: cursor, Limit: limit,
				})
			})
		},
	}
	list.Flags().Int64("cursor", 0, "return messages created after this timestamp")
	list.Flags().Int("limit", 50, "page size")

	get := &cobra.Command{
		Use:   "get <message-id>",
		Short: "Show a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.MessageResponse, error) {
				return s.client.Messages.GetMessage(ctx, &chatterv1.GetMessageRequest{MessageID: args[0]})
			})
		},
	}

	edit := &cobra.Command{
		Use:   "edit <message-id> <editor-id> <text...>",
		Short: "Replace the text of your message",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.MessageResponse, error) {
				return s.client.Messages.EditMessage(ctx, &chatterv1.EditMessageRequest{
					MessageID: args[0], EditorID: args[1], Text: strings.Join(args[2:], " "),
				})
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <message-id> <requester-id>",
		Short: "Delete your message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.Empty, error) {
				return s.client.Messages.DeleteMessage(ctx, &chatterv1.DeleteMessageRequest{MessageID: args[0], RequesterID: args[1]})
			})
		},
	}

	cmd.AddCommand(send, list, get, edit, del)
	return cmd
}
