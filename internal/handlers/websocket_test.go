package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
	"github.com/ternarybob/benchdash/internal/interfaces"
	"github.com/ternarybob/benchdash/internal/services/events"
)

func wsConfig(ws common.WebSocketConfig) *common.Config {
	config := common.NewDefaultConfig()
	config.WebSocket = ws
	return config
}

func dialWebSocket(t *testing.T, handler *WebSocketHandler) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var status WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&status))
	require.Equal(t, "status", status.Type)

	require.Eventually(t, func() bool { return handler.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) (WSMessage, error) {
	t.Helper()
	var msg WSMessage
	conn.SetReadDeadline(time.Now().Add(timeout))
	err := conn.ReadJSON(&msg)
	return msg, err
}

func TestWebSocket_StatusCarriesInstanceID(t *testing.T) {
	handler := NewWebSocketHandler(nil, arbor.NewLogger(), wsConfig(common.WebSocketConfig{}))

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Type    string       `json:"type"`
		Payload StatusUpdate `json:"payload"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "status", msg.Type)
	assert.Equal(t, handler.serverInstanceID, msg.Payload.ServerInstanceID)
	assert.NotEmpty(t, msg.Payload.ServerInstanceID)
}

func TestWebSocket_ForwardsEvents(t *testing.T) {
	eventService := events.NewService(arbor.NewLogger())
	defer eventService.Close()

	handler := NewWebSocketHandler(eventService, arbor.NewLogger(), wsConfig(common.WebSocketConfig{}))
	conn := dialWebSocket(t, handler)

	require.NoError(t, eventService.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventAttributesSaved,
		Payload: map[string]interface{}{"run_id": "run-1"},
	}))

	msg, err := readMessage(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, string(interfaces.EventAttributesSaved), msg.Type)
	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "run-1", payload["run_id"])
}

func TestWebSocket_AllowedEventsWhitelist(t *testing.T) {
	eventService := events.NewService(arbor.NewLogger())
	defer eventService.Close()

	handler := NewWebSocketHandler(eventService, arbor.NewLogger(), wsConfig(common.WebSocketConfig{
		AllowedEvents: []string{string(interfaces.EventRunUploaded)},
	}))
	conn := dialWebSocket(t, handler)

	ctx := context.Background()
	require.NoError(t, eventService.PublishSync(ctx, interfaces.Event{Type: interfaces.EventAttributesReconciled}))
	require.NoError(t, eventService.PublishSync(ctx, interfaces.Event{Type: interfaces.EventRunUploaded}))

	msg, err := readMessage(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, string(interfaces.EventRunUploaded), msg.Type)
}

func TestWebSocket_ThrottlesPerEventType(t *testing.T) {
	handler := NewWebSocketHandler(nil, arbor.NewLogger(), wsConfig(common.WebSocketConfig{ThrottleInterval: "1h"}))

	assert.True(t, handler.allow(interfaces.EventRunUploaded))
	assert.False(t, handler.allow(interfaces.EventRunUploaded))
	assert.True(t, handler.allow(interfaces.EventAttributesSaved))

	unthrottled := NewWebSocketHandler(nil, arbor.NewLogger(), wsConfig(common.WebSocketConfig{}))
	for i := 0; i < 5; i++ {
		assert.True(t, unthrottled.allow(interfaces.EventRunUploaded))
	}
}

func TestWebSocket_BroadcastFanOut(t *testing.T) {
	handler := NewWebSocketHandler(nil, arbor.NewLogger(), wsConfig(common.WebSocketConfig{}))

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	const numSubscribers = 4
	conns := make([]*websocket.Conn, numSubscribers)
	for i := range conns {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()
		_, err = readMessage(t, conn, 2*time.Second) // status
		require.NoError(t, err)
		conns[i] = conn
	}
	require.Eventually(t, func() bool { return handler.ClientCount() == numSubscribers }, time.Second, 10*time.Millisecond)

	handler.Broadcast(WSMessage{Type: "ping", Payload: map[string]interface{}{"n": 1}})

	var wg sync.WaitGroup
	received := make([]string, numSubscribers)
	for i, conn := range conns {
		wg.Add(1)
		go func(i int, conn *websocket.Conn) {
			defer wg.Done()
			var msg WSMessage
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if err := conn.ReadJSON(&msg); err == nil {
				received[i] = msg.Type
			}
		}(i, conn)
	}
	wg.Wait()

	for i := range received {
		assert.Equal(t, "ping", received[i], "subscriber %d", i)
	}
}

func TestWebSocket_SubscribeTwiceDeliversOnce(t *testing.T) {
	eventService := events.NewService(arbor.NewLogger())
	defer eventService.Close()

	handler := NewWebSocketHandler(eventService, arbor.NewLogger(), wsConfig(common.WebSocketConfig{}))
	handler.SubscribeToEvents()
	conn := dialWebSocket(t, handler)

	require.NoError(t, eventService.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventAttributesSaved}))

	msg, err := readMessage(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, string(interfaces.EventAttributesSaved), msg.Type)

	_, err = readMessage(t, conn, 200*time.Millisecond)
	assert.Error(t, err, "one event should produce one frame")
}

func TestWebSocket_ProductionRejectsCrossOrigin(t *testing.T) {
	config := wsConfig(common.WebSocketConfig{})
	config.Environment = "production"
	handler := NewWebSocketHandler(nil, arbor.NewLogger(), config)

	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://elsewhere.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {server.URL}})
	require.NoError(t, err)
	conn.Close()
}

func TestSameOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://bench.local:8085/ws", nil)
	assert.True(t, SameOrigin(req))

	req.Header.Set("Origin", "http://BENCH.local:8085")
	assert.True(t, SameOrigin(req))

	req.Header.Set("Origin", "http://other.local:8085")
	assert.False(t, SameOrigin(req))
}
