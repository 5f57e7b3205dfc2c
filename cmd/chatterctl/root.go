package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/batterydied/chatter/internal/client"
	"github.com/batterydied/chatter/internal/profile"
)

const appName = "chatterctl"

// session is the state shared by every subcommand.
type session struct {
	client  *client.Client
	compact bool
	timeout time.Duration
}

func newRootCmd(version string) *cobra.Command {
	s := &session{}
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Control a chatter daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				name, _ := cmd.Flags().GetString("profile")
				name = profile.Resolve(name)
				if err := profile.ValidateName(name); err != nil {
					return err
				}
				addr = profile.SocketPath(name)
			}
			c, err := client.New(addr)
			if err != nil {
				return fmt.Errorf("cannot connect to daemon at %s: %w", addr, err)
			}
			s.client = c
			s.compact, _ = cmd.Flags().GetBool("compact")
			s.timeout, _ = cmd.Flags().GetDuration("timeout")
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if s.client == nil {
				return nil
			}
			return s.client.Close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(appName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("profile", "", "profile name (overrides config default)")
	cmd.PersistentFlags().String("addr", "", "daemon address: socket path or host:port (overrides --profile)")
	cmd.PersistentFlags().Bool("compact", false, "print one JSON document per line")
	cmd.PersistentFlags().Duration("timeout", 10*time.Second, "timeout for unary calls")

	cmd.AddCommand(
		newUserCmd(s),
		newPresenceCmd(s),
		newRelationCmd(s),
		newConversationCmd(s),
		newMessageCmd(s),
		newWatchCmd(s),
	)
	return cmd
}

// call runs a unary RPC under the configured timeout and prints its result.
func call[T any](cmd *cobra.Command, s *session, fn func(ctx context.Context) (T, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), s.timeout)
	defer cancel()
	res, err := fn(ctx)
	if err != nil {
		return describe(err)
	}
	return s.print(cmd, res)
}

func (s *session) print(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if !s.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// describe strips the transport wrapping from a status error.
func describe(err error) error {
	if st, ok := grpcstatus.FromError(err); ok {
		return fmt.Errorf("%s: %s", st.Code(), st.Message())
	}
	return err
}
