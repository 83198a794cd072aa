package prowl

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialTestStream upgrades against the given handler and returns the
// client-side wsStream.
func dialTestStream(t *testing.T, handler http.HandlerFunc) *wsStream {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err)

	stream := newWSStream(conn)
	t.Cleanup(func() { stream.Close() })
	return stream
}

func TestWSStream_QuietWindowsDoNotCorruptConnection(t *testing.T) {
	release := make(chan struct{})
	stream := dialTestStream(t, func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"document"}`))
		time.Sleep(100 * time.Millisecond)
	})

	// Two elapsed windows on a silent connection, both timeouts.
	for i := 0; i < 2; i++ {
		_, err := stream.ReadMessage(time.Now().Add(30 * time.Millisecond))
		require.Error(t, err)
		assert.True(t, isTimeout(err), "elapsed window must read as a timeout")
	}

	// The connection is still healthy: the next frame arrives intact.
	close(release)
	data, err := stream.ReadMessage(time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"document"}`, string(data))
}

func TestWSStream_ServerCloseIsNotATimeout(t *testing.T) {
	stream := dialTestStream(t, func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	})

	deadline := time.Now().Add(time.Second)
	for {
		_, err := stream.ReadMessage(deadline)
		if err == nil {
			continue // close may race a buffered frame
		}
		assert.False(t, isTimeout(err), "a dropped stream must not read as a quiet window")
		return
	}
}

func TestWSStream_CloseIsRepeatable(t *testing.T) {
	stream := dialTestStream(t, func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(100 * time.Millisecond)
	})

	stream.Close()
	stream.Close()

	_, err := stream.ReadMessage(time.Now().Add(50 * time.Millisecond))
	assert.Error(t, err)
}
