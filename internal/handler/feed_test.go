package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/attaboy/muteregistry/internal/infra"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedServer(t *testing.T, allowedOrigin string) (*httptest.Server, *infra.WSHub) {
	t.Helper()
	hub := infra.NewWSHub(noopLogger())
	fh := NewFeedHandler(hub, "moderation", allowedOrigin, noopLogger())
	srv := httptest.NewServer(http.HandlerFunc(fh.Connect))
	t.Cleanup(srv.Close)
	return srv, hub
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestFeed_DeliversHubEvents(t *testing.T) {
	srv, hub := newFeedServer(t, "*")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish("moderation", "moderation.restriction.added", map[string]string{"value": "10.0.0.1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg infra.WSMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "moderation.restriction.added", msg.Event)
	assert.Equal(t, "10.0.0.1", msg.Data.(map[string]interface{})["value"])
}

func TestFeed_ClientCloseLeavesRoom(t *testing.T) {
	srv, hub := newFeedServer(t, "*")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFeed_HubShutdownClosesClients(t *testing.T) {
	srv, hub := newFeedServer(t, "*")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Shutdown(context.Background())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure),
		"unexpected error: %v", err)
}

func TestFeed_RejectsForeignOrigin(t *testing.T) {
	srv, _ := newFeedServer(t, "https://mod.example.com")

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://mod.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	conn.Close()
}
