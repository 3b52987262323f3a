package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Transport is one live duplex message channel to the remote endpoint.
// ReadMessage blocks until a frame arrives or the channel fails; a
// failed channel stays failed, the Client dials a fresh one.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// DialFunc opens one Transport. The Client owns exactly one at a time.
type DialFunc func(ctx context.Context, cfg Config) (Transport, error)

// wsTransport adapts a gorilla websocket connection. Writes are
// serialized; gorilla allows one concurrent writer only.
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialWebSocket is the default DialFunc.
func DialWebSocket(ctx context.Context, cfg Config) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.DialTimeout}
	header := http.Header{}
	if cfg.AuthToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}
	conn, _, err := dialer.DialContext(ctx, cfg.URL(), header)
	if err != nil {
		return nil, err
	}
	return &wsTransport{conn: conn}, nil
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return t.conn.Close()
}
