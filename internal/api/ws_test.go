package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpnav/internal/model"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	return c
}

func TestWSSubscribeReceivesRunEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()
	c := dialWS(t, srv)

	require.NoError(t, c.WriteJSON(wsMessage{Type: "connection_init"}))
	var ack wsMessage
	require.NoError(t, c.ReadJSON(&ack))
	assert.Equal(t, "connection_ack", ack.Type)

	require.NoError(t, c.WriteJSON(wsMessage{Type: "ping"}))
	var pong wsMessage
	require.NoError(t, c.ReadJSON(&pong))
	assert.Equal(t, "pong", pong.Type)

	require.NoError(t, c.WriteJSON(wsMessage{Type: "subscribe", ID: "1"}))
	// the server registers the subscription before reading the next frame;
	// a second ping round trip guarantees it is in place
	require.NoError(t, c.WriteJSON(wsMessage{Type: "ping"}))
	require.NoError(t, c.ReadJSON(&pong))

	resp, err := http.Post(srv.URL+"/v1/solve", "text/plain", strings.NewReader(readInstance(t, "scenario.txt")))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var types []string
	for len(types) < 2 {
		var msg wsMessage
		require.NoError(t, c.ReadJSON(&msg))
		if msg.Type != "next" {
			continue
		}
		assert.Equal(t, "1", msg.ID)
		var evt model.Event
		require.NoError(t, json.Unmarshal(msg.Payload, &evt))
		types = append(types, evt.Type)
	}
	assert.Equal(t, []string{EventRoutePlanned, EventRunCompleted}, types)

	require.NoError(t, c.WriteJSON(wsMessage{Type: "complete", ID: "1"}))
	for {
		var msg wsMessage
		require.NoError(t, c.ReadJSON(&msg))
		if msg.Type == "complete" {
			assert.Equal(t, "1", msg.ID)
			break
		}
	}
}

func TestWSSubscribeRequiresID(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()
	c := dialWS(t, srv)

	require.NoError(t, c.WriteJSON(wsMessage{Type: "subscribe"}))
	var msg wsMessage
	require.NoError(t, c.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
}
