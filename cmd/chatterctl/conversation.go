package main

import (
	"context"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/batterydied/chatter/internal/chatterv1"
)

func newConversationCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{Use: "conv", Short: "Manage conversations"}

	direct := &cobra.Command{
		Use:   "direct <requester> <peer>",
		Short: "Open the direct conversation between two users",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.ConversationResponse, error) {
				return s.client.Conversation.ResolveDirect(ctx, &chatterv1.ResolveDirectRequest{Requester: args[0], Peer: args[1]})
			})
		},
	}

	group := &cobra.Command{
		Use:   "group <creator> <name> <participant>...",
		Short: "Create a group conversation",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.ConversationResponse, error) {
				return s.client.Conversation.CreateGroup(ctx, &chatterv1.CreateGroupRequest{
					Creator: args[0], Name: args[1], Participants: args[2:],
				})
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <conversation-id>",
		Short: "Show a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.ConversationResponse, error) {
				return s.client.Conversation.GetConversation(ctx, &chatterv1.GetConversationRequest{ConversationID: args[0]})
			})
		},
	}

	update := &cobra.Command{
		Use:   "update <conversation-id>",
		Short: "Rename a conversation or change its picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &chatterv1.UpdateConversationRequest{
				ConversationID: args[0],
				Name:           changed(cmd, "name"),
				PfpFilePath:    changed(cmd, "pfp"),
			}
			return call(cmd, s, func(ctx context.Context) (*chatterv1.ConversationResponse, error) {
				return s.client.Conversation.UpdateConversation(ctx, req)
			})
		},
	}
	update.Flags().String("name", "", "new name")
	update.Flags().String("pfp", "", "picture path")

	del := &cobra.Command{
		Use:   "delete <actor> <conversation-id>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.Empty, error) {
				return s.client.Conversation.DeleteConversation(ctx, &chatterv1.DeleteConversationRequest{Actor: args[0], ConversationID: args[1]})
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's conversations, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return call(cmd, s, func(ctx context.Context) (*chatterv1.ConversationsResponse, error) {
				return s.client.Conversation.ListConversations(ctx, &chatterv1.ListConversationsRequest{UserID: args[0], IncludeHidden: all})
			})
		},
	}
	list.Flags().Bool("all", false, "include hidden conversations")

	cmd.AddCommand(direct, group, get, update, del, list,
		flagCmd(s, "hide", "Hide a conversation for a user", hideConversation, true),
		flagCmd(s, "unhide", "Show a hidden conversation again", unhideConversation, false),
		flagCmd(s, "mute", "Mute a conversation for a user", muteConversation, true),
		flagCmd(s, "unmute", "Unmute a conversation for a user", muteConversation, false),
	)
	return cmd
}

type flagRPC func(c *chatterv1.ConversationServiceClient, ctx context.Context, in *chatterv1.MemberFlagRequest, opts ...grpc.CallOption) (*chatterv1.ConversationResponse, error)

var (
	hideConversation   flagRPC = (*chatterv1.ConversationServiceClient).HideConversation
	unhideConversation flagRPC = (*chatterv1.ConversationServiceClient).UnhideConversation
	muteConversation   flagRPC = (*chatterv1.ConversationServiceClient).MuteConversation
)

func flagCmd(s *session, use, short string, rpc flagRPC, set bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <conversation-id> <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.ConversationResponse, error) {
				return rpc(s.client.Conversation, ctx, &chatterv1.MemberFlagRequest{
					ConversationID: args[0], UserID: args[1], Set: set,
				})
			})
		},
	}
}
