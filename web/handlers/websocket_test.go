package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/parleyhq/parley/pkg/types"
	"github.com/parleyhq/parley/web/handlers"
)

func TestWebSocketHub_ValidatesOrigin(t *testing.T) {
	hub := handlers.NewWebSocketHub("http://localhost:8080")
	defer hub.Stop()

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://evil.com")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	w := httptest.NewRecorder()
	hub.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Forbidden")
}

func TestWebSocketHub_BroadcastsMessageEvent(t *testing.T) {
	hub := handlers.NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	received := make(chan []byte, 1)
	mockClient := &handlers.MockClient{SendChan: received}

	hub.Register(mockClient)

	// Give the hub time to register the client
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(handlers.NewMessageEvent(&types.ChatMessage{
		ID: "m1", SessionID: "s1", Content: "hello there",
	}))

	select {
	case msg := <-received:
		assert.Contains(t, string(msg), "message.created")
		assert.Contains(t, string(msg), "hello there")
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for broadcast event")
	}
}
