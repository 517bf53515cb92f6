package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
	"github.com/ternarybob/benchdash/internal/interfaces"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Storage.Badger.InMemory = true
	config.WebSocket.ThrottleInterval = ""

	application, err := New(config, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })
	return application
}

func TestApp_WebSocketReceivesEachEventOnce(t *testing.T) {
	application := newTestApp(t)

	server := httptest.NewServer(http.HandlerFunc(application.WSHandler.HandleWebSocket))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Type string `json:"type"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "status", msg.Type)
	require.Eventually(t, func() bool { return application.WSHandler.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, application.EventService.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventAttributesSaved,
		Payload: map[string]interface{}{"run_id": "run-1"},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, string(interfaces.EventAttributesSaved), msg.Type)

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	assert.Error(t, conn.ReadJSON(&msg), "a single event must reach the client once")
}
