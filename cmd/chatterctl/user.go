package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/batterydied/chatter/internal/chatterv1"
)

func newUserCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}

	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			return call(cmd, s, func(ctx context.Context) (*chatterv1.User, error) {
				return s.client.Users.CreateUser(ctx, &chatterv1.CreateUserRequest{Username: args[0], Email: email})
			})
		},
	}
	create.Flags().String("email", "", "email address")

	get := &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.User, error) {
				return s.client.Users.GetUser(ctx, &chatterv1.GetUserRequest{UserID: args[0]})
			})
		},
	}

	update := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Update profile fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &chatterv1.UpdateProfileRequest{UserID: args[0]}
			req.Username = changed(cmd, "username")
			req.Email = changed(cmd, "email")
			req.PfpFilePath = changed(cmd, "pfp")
			req.Theme = changed(cmd, "theme")
			return call(cmd, s, func(ctx context.Context) (*chatterv1.User, error) {
				return s.client.Users.UpdateProfile(ctx, req)
			})
		},
	}
	update.Flags().String("username", "", "new username")
	update.Flags().String("email", "", "new email")
	update.Flags().String("pfp", "", "profile picture path")
	update.Flags().String("theme", "", "UI theme")

	seen := &cobra.Command{
		Use:   "seen <user-id>",
		Short: "Mark incoming requests as seen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.User, error) {
				return s.client.Users.MarkRequestsSeen(ctx, &chatterv1.MarkRequestsSeenRequest{UserID: args[0]})
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user with their relations and sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, s, func(ctx context.Context) (*chatterv1.Empty, error) {
				return s.client.Users.DeleteUser(ctx, &chatterv1.DeleteUserRequest{UserID: args[0]})
			})
		},
	}

	cmd.AddCommand(create, get, update, seen, del)
	return cmd
}

// changed returns the flag value only when the flag was given.
func changed(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func newPresenceCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{Use: "presence", Short: "Drive presence sessions"}

	set := &cobra.Command{
		Use:   "set <user-id> <session-id> <online|offline>",
		Short: "Record one session state",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var online bool
			switch args[2] {
			case "online":
				online = true
			case "offline":
			default:
				return fmt.Errorf("state must be online or offline, got %q", args[2])
			}
			return call(cmd, s, func(ctx context.Context) (*chatterv1.Empty, error) {
				return s.client.Users.SetPresence(ctx, &chatterv1.SetPresenceRequest{
					UserID: args[0], SessionID: args[1], Online: online,
				})
			})
		},
	}

	connect := &cobra.Command{
		Use:   "connect <user-id>",
		Short: "Hold a session online until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, _ := cmd.Flags().GetString("session")
			stream, err := s.client.Users.Connect(cmd.Context(), &chatterv1.ConnectRequest{UserID: args[0], SessionID: sessionID})
			if err != nil {
				return describe(err)
			}
			for {
				evt, err := stream.Recv()
				if err == io.EOF {
					return nil
				}
				if err != nil {
					return describe(err)
				}
				if err := s.print(cmd, evt); err != nil {
					return err
				}
			}
		},
	}
	connect.Flags().String("session", "", "session id (random when empty)")

	cmd.AddCommand(set, connect)
	return cmd
}
