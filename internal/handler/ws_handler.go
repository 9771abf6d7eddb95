package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/driftchat/relay/internal/config"
	"github.com/driftchat/relay/internal/domain"
	"github.com/driftchat/relay/internal/hub"
	"github.com/driftchat/relay/internal/service"
	"github.com/driftchat/relay/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	service service.RelayService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(svc service.RelayService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		service: svc,
		wsCfg:   wsCfg,
	}
}

// HandleWebSocket upgrades the request and runs the connection's pumps. The
// connection joins the session registry only after a successful authenticate
// event.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), conn, h.wsCfg)

	go client.WritePump()
	go h.readLoop(client)
}

func (h *WSHandler) readLoop(client *hub.Client) {
	// Disconnect handling runs before this goroutine exits, so the registry
	// never lags a closed transport.
	defer func() {
		h.service.HandleDisconnect(context.Background(), client)
		client.Close()
	}()

	client.ReadPump(h.handleMessage)
}

// handleMessage dispatches one inbound event. Malformed payloads and unknown
// event kinds are dropped with a log entry; a bad message never terminates an
// otherwise-healthy connection.
func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	l := log.L()
	ctx := context.Background()

	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		l.Warn().Str(log.FieldConnID, client.ID).Err(err).Msg("malformed event dropped")
		return
	}

	switch base.Type {
	case domain.MsgTypeAuthenticate:
		var msg domain.AuthenticateMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Token == "" {
			l.Warn().Str(log.FieldConnID, client.ID).Msg("malformed authenticate event dropped")
			return
		}
		if err := h.service.HandleAuth(ctx, client, msg.Token); err != nil {
			l.Warn().Str(log.FieldConnID, client.ID).Err(err).Msg("handshake failed")
		}

	case domain.MsgTypeRoomMessage:
		var msg domain.RoomMessageIn
		if err := json.Unmarshal(message, &msg); err != nil || msg.Text == "" {
			l.Warn().Str(log.FieldConnID, client.ID).Msg("malformed room_message event dropped")
			return
		}
		if err := h.service.HandleRoomMessage(ctx, client, msg.Text); err != nil {
			l.Error().Str(log.FieldConnID, client.ID).Err(err).Msg("room message failed")
		}

	case domain.MsgTypePrivateMessage:
		var msg domain.PrivateMessageIn
		if err := json.Unmarshal(message, &msg); err != nil || msg.Recipient == "" || msg.Text == "" {
			l.Warn().Str(log.FieldConnID, client.ID).Msg("malformed private_message event dropped")
			return
		}
		if err := h.service.HandlePrivateMessage(ctx, client, msg.Recipient, msg.Text); err != nil {
			l.Error().Str(log.FieldConnID, client.ID).Err(err).Msg("private message failed")
		}

	case domain.MsgTypeHistoryRequest:
		var msg domain.HistoryRequestMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Counterpart == "" {
			l.Warn().Str(log.FieldConnID, client.ID).Msg("malformed history_request event dropped")
			return
		}
		if err := h.service.HandleHistoryRequest(ctx, client, msg.Counterpart); err != nil {
			l.Error().Str(log.FieldConnID, client.ID).Err(err).Msg("history request failed")
		}

	case domain.MsgTypePing:
		client.SendMessage(&domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		l.Warn().Str(log.FieldConnID, client.ID).Str("kind", base.Type).Msg("unknown event kind ignored")
	}
}
