package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/batterydied/chatter/internal/chatterv1"
)

func newRelationCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{Use: "relation", Aliases: []string{"rel"}, Short: "Manage friend requests and blocks"}

	request := &cobra.Command{
		Use:   "request <from> <to>",
		Short: "Send a friend request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.RelationResponse, error) {
				return s.client.Relations.SendRequest(ctx, &chatterv1.SendRequestRequest{From: args[0], To: args[1]})
			})
		},
	}

	accept := &cobra.Command{
		Use:   "accept <actor> <edge-id>",
		Short: "Accept a request addressed to actor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.RelationsResponse, error) {
				return s.client.Relations.AcceptRequest(ctx, &chatterv1.EdgeRequest{Actor: args[0], EdgeID: args[1]})
			})
		},
	}

	decline := &cobra.Command{
		Use:   "decline <actor> <edge-id>",
		Short: "Decline or withdraw a request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.Empty, error) {
				return s.client.Relations.DeclineRequest(ctx, &chatterv1.EdgeRequest{Actor: args[0], EdgeID: args[1]})
			})
		},
	}

	unfriend := &cobra.Command{
		Use:   "unfriend <actor> <target>",
		Short: "Remove a friendship",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.Empty, error) {
				return s.client.Relations.Unfriend(ctx, &chatterv1.PairRequest{Actor: args[0], Target: args[1]})
			})
		},
	}

	block := &cobra.Command{
		Use:   "block <actor> <target>",
		Short: "Block a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.RelationResponse, error) {
				return s.client.Relations.Block(ctx, &chatterv1.PairRequest{Actor: args[0], Target: args[1]})
			})
		},
	}

	unblock := &cobra.Command{
		Use:   "unblock <actor> <target>",
		Short: "Lift a block",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.Empty, error) {
				return s.client.Relations.Unblock(ctx, &chatterv1.PairRequest{Actor: args[0], Target: args[1]})
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List relations of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			return call(cmd, s, func(ctx context.Context) (*chatterv1.RelationsResponse, error) {
				return s.client.Relations.ListRelations(ctx, &chatterv1.ListRelationsRequest{UserID: args[0], Kind: kind})
			})
		},
	}
	list.Flags().String("kind", chatterv1.RelationsFriends, "friends, sent, received or blocked")

	cmd.AddCommand(request, accept, decline, unfriend, block, unblock, list)
	return cmd
}
