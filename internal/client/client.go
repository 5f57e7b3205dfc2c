// Package client dials a chatter daemon.
package client

import (
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/batterydied/chatter/internal/chatterv1"
)

// Client wraps a gRPC connection to the daemon with typed service clients.
type Client struct {
	conn         *grpc.ClientConn
	Users        *chatterv1.UserServiceClient
	Relations    *chatterv1.RelationServiceClient
	Conversation *chatterv1.ConversationServiceClient
	Messages     *chatterv1.MessageServiceClient
	Sync         *chatterv1.SyncServiceClient
}

// Target turns a socket path or host:port into a dial target.
func Target(addr string) string {
	if strings.Contains(addr, "/") && !strings.Contains(addr, "://") {
		return "unix://" + addr
	}
	return addr
}

// New dials addr, a Unix socket path or a TCP host:port.
func New(addr string) (*Client, error) {
	conn, err := grpc.NewClient(
		Target(addr),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(chatterv1.CallOption()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	return &Client{
		conn:         conn,
		Users:        chatterv1.NewUserServiceClient(conn),
		Relations:    chatterv1.NewRelationServiceClient(conn),
		Conversation: chatterv1.NewConversationServiceClient(conn),
		Messages:     chatterv1.NewMessageServiceClient(conn),
		Sync:         chatterv1.NewSyncServiceClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
