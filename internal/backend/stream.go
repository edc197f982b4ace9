// stream.go — websocket chunk stream reader.
package backend

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/comppolicylab/pingpong-sub002/internal/chunk"
	apperrors "github.com/comppolicylab/pingpong-sub002/pkg/errors"
)

const (
	readIdleTimeout = 90 * time.Second
	closeGraceWait  = time.Second
)

// wsStream adapts one websocket connection into a chunk.Stream. The server
// closes the socket after the terminal chunk; a normal close surfaces as
// io.EOF.
type wsStream struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

func newWSStream(conn *websocket.Conn) *wsStream {
	_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
		return nil
	})
	return &wsStream{conn: conn}
}

// Recv reads and decodes the next frame. The idle deadline resets on every
// frame so a stalled provider eventually errors instead of hanging forever.
func (s *wsStream) Recv() (chunk.Chunk, error) {
	_ = s.conn.SetReadDeadline(time.Now().Add(readIdleTimeout))
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return chunk.Chunk{}, io.EOF
		}
		return chunk.Chunk{}, apperrors.Wrap(err, "Stream.Recv", "read frame")
	}
	c, err := chunk.Decode(data)
	if err != nil {
		return chunk.Chunk{}, apperrors.Wrap(err, "Stream.Recv", "decode frame")
	}
	return c, nil
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once.
func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(closeGraceWait)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
