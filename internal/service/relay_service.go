package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftchat/relay/internal/audit"
	"github.com/driftchat/relay/internal/auth"
	"github.com/driftchat/relay/internal/domain"
	"github.com/driftchat/relay/internal/hub"
	"github.com/driftchat/relay/internal/presence"
	"github.com/driftchat/relay/internal/store"
	"github.com/driftchat/relay/pkg/log"
)

type relayService struct {
	hub         *hub.Hub
	store       store.MessageStore
	verifier    auth.Verifier
	broadcaster *presence.Broadcaster

	// roomReplayLimit bounds the room-history window replayed on handshake.
	roomReplayLimit int

	// roomMu makes append-then-fan-out a single critical section per room
	// message, so delivery order to every observer matches store order.
	roomMu sync.Mutex
}

func NewRelayService(
	h *hub.Hub,
	msgStore store.MessageStore,
	verifier auth.Verifier,
	broadcaster *presence.Broadcaster,
	roomReplayLimit int,
) RelayService {
	return &relayService{
		hub:             h,
		store:           msgStore,
		verifier:        verifier,
		broadcaster:     broadcaster,
		roomReplayLimit: roomReplayLimit,
	}
}

// HandleAuth completes the connection handshake: it verifies the credential
// token, binds the identity, registers the connection, announces presence on
// an offline-to-online transition, and finishes with a room-history replay to
// the new connection.
func (s *relayService) HandleAuth(ctx context.Context, c *hub.Client, token string) error {
	identity, err := s.verifier.Verify(ctx, token)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionAuthFailed, "", err.Error(), "handshake rejected")
		c.SendMessage(&domain.AuthResultMessage{
			Type:    domain.MsgTypeAuthResult,
			Success: false,
			Message: "authentication failed",
		})
		c.Close()
		return fmt.Errorf("credential verification failed: %w", err)
	}

	c.Session.Bind(*identity)

	outcome, err := s.hub.Register(c)
	if err != nil {
		switch err {
		case hub.ErrNameInUse:
			// Handshake-level rejection: the name belongs to another online
			// user, so this connection never joins the registry.
			audit.LogWithDetail(ctx, audit.ActionAuthFailed, identity.UserID, "display name in use", "handshake rejected")
			c.SendMessage(&domain.AuthResultMessage{
				Type:    domain.MsgTypeAuthResult,
				Success: false,
				Message: "display name already in use",
			})
			c.Close()
		case hub.ErrNameMismatch:
			// The user is online under another name; registering this
			// connection would desync the name index from what it sends as.
			audit.LogWithDetail(ctx, audit.ActionAuthFailed, identity.UserID, "display name mismatch", "handshake rejected")
			c.SendMessage(&domain.AuthResultMessage{
				Type:    domain.MsgTypeAuthResult,
				Success: false,
				Message: "display name does not match active session",
			})
			c.Close()
		default:
			// Defensive fault; the operation is rejected but the connection
			// survives.
			l := log.Ctx(ctx)
			l.Error().Err(err).Str(log.FieldConnID, c.ID).Msg("registration rejected")
		}
		return fmt.Errorf("registration failed: %w", err)
	}

	audit.Log(ctx, audit.ActionAuth, identity.UserID, "connection authenticated")

	c.SendMessage(&domain.AuthResultMessage{
		Type:        domain.MsgTypeAuthResult,
		Success:     true,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
	})

	if outcome.IsNewUser {
		s.broadcaster.Announce(s.hub.OnlineDisplayNames())
	}

	// History replay is the final step of the handshake, sent to every new
	// connection even when the user was already online elsewhere.
	recent, err := s.store.RecentRoomMessages(ctx, s.roomReplayLimit)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("room history replay failed")
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeStoreUnavailable, "room history unavailable"))
		return nil
	}

	history := &domain.RoomHistoryMessage{
		Type:     domain.MsgTypeRoomHistory,
		Messages: make([]domain.RoomMessageOut, len(recent)),
	}
	for i := range recent {
		history.Messages[i] = domain.RoomMessagePayload(&recent[i])
	}
	return c.SendMessage(history)
}

// HandleRoomMessage appends a room message and broadcasts it to every
// registered connection. Append and fan-out form one critical section, so two
// concurrent sends can never reach observers in an order inconsistent with
// store order.
func (s *relayService) HandleRoomMessage(ctx context.Context, c *hub.Client, text string) error {
	msg := &domain.RoomMessage{
		MessageID: uuid.New().String(),
		Sender:    c.Session.DisplayName(),
		Text:      text,
	}

	s.roomMu.Lock()
	msg.Timestamp = time.Now().UTC()
	if err := s.store.AppendRoomMessage(ctx, msg); err != nil {
		s.roomMu.Unlock()
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("room message append failed")
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeStoreUnavailable, "message could not be delivered"))
		return err
	}

	out := domain.RoomMessagePayload(msg)
	for _, client := range s.hub.Clients() {
		client.SendMessage(&out)
	}
	s.roomMu.Unlock()

	return nil
}

// HandlePrivateMessage persists a private message and delivers it live to
// every connection registered under the recipient's display name, echoing it
// back to the originating connection. An offline recipient is not an error:
// the message is stored and surfaces on the next history request.
func (s *relayService) HandlePrivateMessage(ctx context.Context, c *hub.Client, recipient, text string) error {
	recipient = domain.NormalizeDisplayName(recipient)

	msg := &domain.PrivateMessage{
		MessageID: uuid.New().String(),
		Sender:    c.Session.DisplayName(),
		Recipient: recipient,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}

	if err := s.store.AppendPrivateMessage(ctx, msg); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("private message append failed")
		c.SendMessage(domain.NewErrorMessage(domain.ErrCodeStoreUnavailable, "message could not be delivered"))
		return err
	}

	out := domain.PrivateMessagePayload(msg)
	for _, target := range s.hub.ClientsForDisplayName(recipient) {
		if target.ID == c.ID {
			continue // the echo below covers the originating connection
		}
		target.SendMessage(&out)
	}
	c.SendMessage(&out)

	return nil
}

// HandleHistoryRequest returns the private conversation between the requester
// and the counterpart, to the requesting connection only.
func (s *relayService) HandleHistoryRequest(ctx context.Context, c *hub.Client, counterpart string) error {
	counterpart = domain.NormalizeDisplayName(counterpart)
	requester := c.Session.DisplayName()

	messages, err := s.store.PrivateMessagesBetween(ctx, requester, counterpart)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("private history fetch failed")
		return c.SendMessage(domain.NewErrorMessage(domain.ErrCodeStoreUnavailable, "history unavailable"))
	}

	// Stores return entries in insertion order; a stable sort keeps that
	// order for equal timestamps.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	history := &domain.PrivateHistoryMessage{
		Type:        domain.MsgTypePrivateHistory,
		Counterpart: counterpart,
		Messages:    make([]domain.PrivateMessageOut, len(messages)),
	}
	for i := range messages {
		history.Messages[i] = domain.PrivateMessagePayload(&messages[i])
	}
	return c.SendMessage(history)
}

// HandleDisconnect removes the connection from the registry and announces
// presence when the user's last connection went away.
func (s *relayService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	outcome := s.hub.Unregister(c)
	if outcome.UserWentOffline {
		if identity, ok := c.Session.Identity(); ok {
			audit.Log(ctx, audit.ActionDisconnect, identity.UserID, "user went offline")
		}
		s.broadcaster.Announce(s.hub.OnlineDisplayNames())
	}
	return nil
}
