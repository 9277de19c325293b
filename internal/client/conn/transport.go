package conn

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// timeout for a single frame write when the caller's context has no deadline.
	writeWait = 10 * time.Second

	// the server pings every 54s; a silent minute means the link is gone.
	pongWait = 60 * time.Second

	// maximum allowed size (in bytes) of a frame from the server.
	maxMessageSize = 64 << 10
)

// CloseSessionReplaced is the close code the server sends when another connection
// took over this user's session.
const CloseSessionReplaced = 4001

// ErrSessionReplaced is returned by ReadMessage when the server closed the connection
// because the same user connected elsewhere. The Manager does not retry after it.
var ErrSessionReplaced = errors.New("session replaced by another connection")

// Transport is one live connection to the server.
type Transport interface {
	// ReadMessage blocks until the next frame arrives or the connection fails.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one frame. It is safe for concurrent use.
	WriteMessage(ctx context.Context, data []byte) error

	// Close tears the connection down and unblocks ReadMessage.
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

// WebSocketDialer dials the coordination server over gorilla/websocket.
type WebSocketDialer struct {
	URL    string
	Header http.Header
}

// Dial opens a WebSocket connection to d.URL.
func (d *WebSocketDialer) Dial(ctx context.Context) (Transport, error) {
	wsConn, resp, err := websocket.DefaultDialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", d.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}

	wsConn.SetReadLimit(maxMessageSize)
	if err := wsConn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		wsConn.Close()
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	wsConn.SetPingHandler(func(data string) error {
		if err := wsConn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return err
		}
		err := wsConn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	return &wsTransport{conn: wsConn}, nil
}

type wsTransport struct {
	conn *websocket.Conn

	// gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, CloseSessionReplaced) {
				return nil, ErrSessionReplaced
			}
			return nil, err
		}
		if msgType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) WriteMessage(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()

	return t.conn.Close()
}
