package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/driftchat/relay/internal/audit"
	"github.com/driftchat/relay/internal/domain"
	"github.com/driftchat/relay/internal/hub"
	"github.com/driftchat/relay/internal/store"
	"github.com/driftchat/relay/pkg/response"
)

// HTTPHandler serves the read-only inspection endpoints and the admin reset.
type HTTPHandler struct {
	hub             *hub.Hub
	store           store.MessageStore
	roomReplayLimit int
}

func NewHTTPHandler(h *hub.Hub, msgStore store.MessageStore, roomReplayLimit int) *HTTPHandler {
	return &HTTPHandler{
		hub:             h,
		store:           msgStore,
		roomReplayLimit: roomReplayLimit,
	}
}

func (h *HTTPHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status": "ok",
		"online": h.hub.OnlineUserCount(),
	})
}

// Online returns the display names of currently registered users in the
// order they came online.
func (h *HTTPHandler) Online(c *gin.Context) {
	response.Success(c, gin.H{
		"online": h.hub.OnlineDisplayNames(),
	})
}

// RoomHistory returns the most recent room messages, oldest first.
func (h *HTTPHandler) RoomHistory(c *gin.Context) {
	limit := h.roomReplayLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.BadRequest(c, "invalid limit")
			return
		}
		// Zero means unbounded in the store contract; the API always serves
		// a bounded window.
		if parsed > 0 {
			limit = parsed
		}
	}

	messages, err := h.store.RecentRoomMessages(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, "history unavailable")
		return
	}

	payloads := make([]domain.RoomMessageOut, 0, len(messages))
	for i := range messages {
		payloads = append(payloads, domain.RoomMessagePayload(&messages[i]))
	}
	response.Success(c, gin.H{
		"messages": payloads,
	})
}

// AdminGate vets reset callers with a shared bearer token. An empty
// configured token disables the endpoint entirely.
func AdminGate(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.NotFound(c, "not found")
			c.Abort()
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+token {
			response.Unauthorized(c, "invalid admin token")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminReset disconnects every session and empties the registry. Callers are
// vetted by AdminGate before this runs.
func (h *HTTPHandler) AdminReset(c *gin.Context) {
	closed := h.hub.Reset()
	audit.LogWithDetail(c.Request.Context(), audit.ActionAdminReset, "", "connections_closed="+strconv.Itoa(closed), "registry reset")
	response.Success(c, gin.H{
		"connections_closed": closed,
	})
}
