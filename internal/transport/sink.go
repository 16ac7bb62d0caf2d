package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Sink receives serialized events from the instrumented side. Emit must be
// safe for use from event callbacks; implementations serialize their own
// writes.
type Sink interface {
	Emit(kind string, payload any) error
	Close() error
}

// LineSink writes one JSON envelope per line (NDJSON). Used for file capture
// and tests.
type LineSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineSink(w io.Writer) *LineSink { return &LineSink{w: w} }

func (s *LineSink) Emit(kind string, payload any) error {
	data, err := Marshal(kind, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	_, err = s.w.Write([]byte{'\n'})
	return err
}

func (s *LineSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WSSink ships envelopes to the observer over a WebSocket connection, one
// text message per event.
type WSSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// DialWS connects to the observer's ingest endpoint.
func DialWS(ctx context.Context, url string) (*WSSink, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &WSSink{conn: conn}, nil
}

// NewWSSink wraps an already-established connection (used by tests).
func NewWSSink(conn *websocket.Conn) *WSSink { return &WSSink{conn: conn} }

func (s *WSSink) Emit(kind string, payload any) error {
	data, err := Marshal(kind, payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *WSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}
