package prowl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/prowl/pkg/models"
)

// handshakeTimeout bounds the websocket dial; a service that cannot accept
// the stream quickly is handled by the polling fallback instead.
const handshakeTimeout = 15 * time.Second

var errStreamClosed = errors.New("stream closed")

// readWindowError reports an elapsed read window. It satisfies net.Error
// so the session treats it as the quiet period, not a stream failure.
type readWindowError struct{}

func (readWindowError) Error() string   { return "read window elapsed" }
func (readWindowError) Timeout() bool   { return true }
func (readWindowError) Temporary() bool { return true }

type wsFrame struct {
	data []byte
	err  error
}

// wsStream adapts a gorilla websocket connection to the streamConn
// interface the session consumes. Gorilla read errors are permanent, so
// the connection is read by a dedicated goroutine feeding a frame channel;
// an elapsed read window only abandons the channel wait and never touches
// the connection's read state.
type wsStream struct {
	conn      *websocket.Conn
	frames    chan wsFrame
	done      chan struct{}
	closeOnce sync.Once
}

func newWSStream(conn *websocket.Conn) *wsStream {
	s := &wsStream{
		conn:   conn,
		frames: make(chan wsFrame),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// readLoop pumps frames from the connection until a read error or Close.
// The terminal error is delivered as the last frame before the channel
// closes.
func (s *wsStream) readLoop() {
	defer close(s.frames)
	for {
		_, data, err := s.conn.ReadMessage()
		select {
		case s.frames <- wsFrame{data: data, err: err}:
		case <-s.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *wsStream) ReadMessage(deadline time.Time) ([]byte, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case frame, ok := <-s.frames:
		if !ok {
			return nil, errStreamClosed
		}
		return frame.data, frame.err
	case <-timer.C:
		return nil, readWindowError{}
	}
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}

// newStreamDialer builds the production dialer: the streaming endpoint
// shares the status endpoint's path, served over ws(s) with the same
// bearer credential.
func newStreamDialer(baseURL, apiKey string) streamDialer {
	return func(ctx context.Context, jobID string, kind models.WatchKind) (streamConn, error) {
		prefix, err := kind.PathPrefix()
		if err != nil {
			return nil, err
		}

		wsURL := fmt.Sprintf("%s/v1/%s/%s", httpToWS(baseURL), prefix, jobID)

		header := http.Header{}
		header.Set("Authorization", "Bearer "+apiKey)

		dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
		conn, resp, err := dialer.DialContext(ctx, wsURL, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open stream: %w", err)
		}

		return newWSStream(conn), nil
	}
}

func httpToWS(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://")
	}
	return baseURL
}
