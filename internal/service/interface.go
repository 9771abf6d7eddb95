package service

import (
	"context"

	"github.com/driftchat/relay/internal/hub"
)

// RelayService routes inbound connection events: it mutates the session
// registry and message store and decides which connections receive which
// outbound events.
type RelayService interface {
	HandleAuth(ctx context.Context, client *hub.Client, token string) error
	HandleRoomMessage(ctx context.Context, client *hub.Client, text string) error
	HandlePrivateMessage(ctx context.Context, client *hub.Client, recipient, text string) error
	HandleHistoryRequest(ctx context.Context, client *hub.Client, counterpart string) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
}
