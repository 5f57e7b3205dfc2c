package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/batterydied/chatter/internal/chatterv1"
)

type watchRPC func(c *chatterv1.SyncServiceClient, ctx context.Context, in *chatterv1.WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[chatterv1.ViewUpdate], error)

func newWatchCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{Use: "watch", Short: "Follow a live view until interrupted"}

	view := func(use, arg, short string, rpc watchRPC, req func(id string) *chatterv1.WatchRequest) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <" + arg + ">",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return s.follow(cmd, rpc, req(args[0]))
			},
		}
	}
	forUser := func(kind string) func(string) *chatterv1.WatchRequest {
		return func(id string) *chatterv1.WatchRequest { return &chatterv1.WatchRequest{UserID: id, Kind: kind} }
	}

	cmd.AddCommand(
		view("friends", "user-id", "Friends with live presence", (*chatterv1.SyncServiceClient).WatchFriends, forUser("")),
		view("requests", "user-id", "Incoming requests and the unread count", (*chatterv1.SyncServiceClient).WatchRequests, forUser("")),
		view("outgoing", "user-id", "Requests the user sent", (*chatterv1.SyncServiceClient).WatchContacts, forUser("outgoing")),
		view("blocked", "user-id", "Users the user blocked", (*chatterv1.SyncServiceClient).WatchContacts, forUser("blocked")),
		view("conversations", "user-id", "Visible conversations, most recent first", (*chatterv1.SyncServiceClient).WatchConversations, forUser("")),
		view("messages", "conversation-id", "Messages of a conversation", (*chatterv1.SyncServiceClient).WatchMessages,
			func(id string) *chatterv1.WatchRequest { return &chatterv1.WatchRequest{ConversationID: id} }),
	)
	return cmd
}

// follow prints every update of the stream. Cancellation ends it quietly.
func (s *session) follow(cmd *cobra.Command, rpc watchRPC, req *chatterv1.WatchRequest) error {
	stream, err := rpc(s.client.Sync, cmd.Context(), req)
	if err != nil {
		return describe(err)
	}
	for {
		u, err := stream.Recv()
		if errors.Is(err, io.EOF) || grpcstatus.Code(err) == codes.Canceled {
			return nil
		}
		if err != nil {
			return describe(err)
		}
		if err := s.print(cmd, u); err != nil {
			return err
		}
	}
}
