package server

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	return conn
}

// The upgrade must succeed through the full middleware chain, not just
// against the bare handler.
func TestWebSocketQuery(t *testing.T) {
	conn := dialWS(t, newTestServer(&mockIngestion{}, &mockRetrieval{}))

	require.NoError(t, conn.WriteJSON(Message{Type: "query", Content: "Is it true?"}))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "status", msg.Type)

	var streamed strings.Builder
	for {
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type != "stream" {
			break
		}
		streamed.WriteString(msg.Content)
	}

	require.Equal(t, "answer", msg.Type)
	assert.Equal(t, "According to Chunk 1, yes.", msg.Content)
	assert.Contains(t, streamed.String(), "According to Chunk 1")
	require.NotNil(t, msg.Data)

	result, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "test-model", result["model_used"])
	assert.NotEmpty(t, result["sources"])
}

func TestWebSocketRejectsInvalidQuery(t *testing.T) {
	conn := dialWS(t, newTestServer(&mockIngestion{}, &mockRetrieval{}))

	require.NoError(t, conn.WriteJSON(Message{Type: "query", Content: "   "}))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Content, "question must not be empty")
}

func TestWebSocketUnsupportedMessageType(t *testing.T) {
	conn := dialWS(t, newTestServer(&mockIngestion{}, &mockRetrieval{}))

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Content, "unsupported message type")
}
