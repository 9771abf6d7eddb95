package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driftchat/relay/internal/config"
	"github.com/driftchat/relay/internal/domain"
	"github.com/driftchat/relay/internal/hub"
	"github.com/driftchat/relay/internal/store"
	"github.com/driftchat/relay/pkg/response"
)

func setupRouter(t *testing.T, adminToken string) (*gin.Engine, *hub.Hub, store.MessageStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := hub.NewHub()
	s := store.NewMemoryStore()
	handler := NewHTTPHandler(h, s, 50)

	router := gin.New()
	router.GET("/health", handler.Health)
	router.GET("/api/v1/online", handler.Online)
	router.GET("/api/v1/history/room", handler.RoomHistory)
	router.POST("/api/v1/admin/reset", AdminGate(adminToken), handler.AdminReset)
	return router, h, s
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, headers map[string]string) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var body response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response body: %v", err)
	}
	return w, body
}

func registerUser(t *testing.T, h *hub.Hub, connID, userID, name string) {
	t.Helper()
	c := hub.NewClient(connID, nil, config.WebSocketConfig{})
	c.Session.Bind(domain.Identity{UserID: userID, DisplayName: name})
	if _, err := h.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, h, _ := setupRouter(t, "")
	registerUser(t, h, "conn-1", "u1", "alice")

	w, body := doRequest(t, router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !body.Success {
		t.Errorf("health = %d %+v, want 200 success", w.Code, body)
	}
}

func TestOnlineEndpoint(t *testing.T) {
	router, h, _ := setupRouter(t, "")
	registerUser(t, h, "conn-1", "u1", "alice")
	registerUser(t, h, "conn-2", "u2", "bob")

	w, body := doRequest(t, router, http.MethodGet, "/api/v1/online", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	data := body.Data.(map[string]interface{})
	online := data["online"].([]interface{})
	if len(online) != 2 || online[0] != "alice" || online[1] != "bob" {
		t.Errorf("online = %v, want [alice bob]", online)
	}
}

func TestRoomHistoryEndpoint(t *testing.T) {
	router, _, s := setupRouter(t, "")
	for _, text := range []string{"one", "two", "three"} {
		s.AppendRoomMessage(context.Background(), &domain.RoomMessage{
			MessageID: text,
			Sender:    "alice",
			Text:      text,
			Timestamp: time.Now().UTC(),
		})
	}

	t.Run("default window", func(t *testing.T) {
		w, body := doRequest(t, router, http.MethodGet, "/api/v1/history/room", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		data := body.Data.(map[string]interface{})
		if got := len(data["messages"].([]interface{})); got != 3 {
			t.Errorf("got %d messages, want 3", got)
		}
	})

	t.Run("explicit limit", func(t *testing.T) {
		w, body := doRequest(t, router, http.MethodGet, "/api/v1/history/room?limit=2", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		data := body.Data.(map[string]interface{})
		messages := data["messages"].([]interface{})
		if len(messages) != 2 {
			t.Fatalf("got %d messages, want 2", len(messages))
		}
		first := messages[0].(map[string]interface{})
		if first["text"] != "two" {
			t.Errorf("first message = %v, want the window tail starting at two", first["text"])
		}
	})

	t.Run("zero limit keeps the default window", func(t *testing.T) {
		narrow := gin.New()
		narrow.GET("/api/v1/history/room", NewHTTPHandler(hub.NewHub(), s, 2).RoomHistory)

		w, body := doRequest(t, narrow, http.MethodGet, "/api/v1/history/room?limit=0", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		data := body.Data.(map[string]interface{})
		if got := len(data["messages"].([]interface{})); got != 2 {
			t.Errorf("got %d messages, want the 2-entry default window", got)
		}
	})

	t.Run("bad limit", func(t *testing.T) {
		w, _ := doRequest(t, router, http.MethodGet, "/api/v1/history/room?limit=nope", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}

func TestAdminResetEndpoint(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		router, h, _ := setupRouter(t, "hunter2")
		registerUser(t, h, "conn-1", "u1", "alice")

		w, body := doRequest(t, router, http.MethodPost, "/api/v1/admin/reset", map[string]string{
			"Authorization": "Bearer hunter2",
		})
		if w.Code != http.StatusOK || !body.Success {
			t.Fatalf("reset = %d %+v, want 200 success", w.Code, body)
		}
		if got := h.OnlineUserCount(); got != 0 {
			t.Errorf("OnlineUserCount after reset = %d, want 0", got)
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		router, h, _ := setupRouter(t, "hunter2")
		registerUser(t, h, "conn-1", "u1", "alice")

		w, _ := doRequest(t, router, http.MethodPost, "/api/v1/admin/reset", map[string]string{
			"Authorization": "Bearer wrong",
		})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", w.Code)
		}
		if got := h.OnlineUserCount(); got != 1 {
			t.Errorf("OnlineUserCount = %d, registry should be untouched", got)
		}
	})

	t.Run("disabled when no token configured", func(t *testing.T) {
		router, _, _ := setupRouter(t, "")

		w, _ := doRequest(t, router, http.MethodPost, "/api/v1/admin/reset", map[string]string{
			"Authorization": "Bearer anything",
		})
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}
