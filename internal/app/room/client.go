/*
Package room contains the coordination server: live rooms, their members and pending
requests, and the WebSocket clients that drive them.

This file defines the Client struct, representing an active WebSocket connection. It manages the
connection's lifecycle, its message loops (ReadPump and WritePump), and the session it speaks for.
*/
package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"listentogether/internal/pkg/auth/jwt"
	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/logx"
	"listentogether/internal/pkg/randx"
	"listentogether/internal/protocol"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// size of the outbound queue per connection.
	sendBuffer = 256

	// WsCloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that the session was replaced by a new connection.
	WsCloseCodeSessionKicked = 4001

	// TokenRefreshWindow defines how much time before the token expires we should attempt to refresh it.
	TokenRefreshWindow = 2 * time.Minute

	// CreateRoomRate and CreateRoomBurst limit how fast one connection may open rooms.
	CreateRoomRate  = 0.2
	CreateRoomBurst = 3
)

// Client struct represents an active WebSocket connection and the user session it speaks for.
type Client struct {
	manager *Manager

	// underlying WebSocket connection object; nil in tests.
	conn *websocket.Conn

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// createLimiter throttles CREATE_ROOM requests.
	createLimiter *rate.Limiter

	// mu protects the fields below.
	mu sync.Mutex

	// userID is bound by the HELLO handshake.
	userID string

	// tokenExpiry records the expiration time of the current session token.
	tokenExpiry time.Time

	// room is the room this connection is a member of; pending is the room it applied to.
	room    *Room
	pending *Room

	closed     bool
	kicked     bool
	kickReason string

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance for an upgraded connection.
func NewClient(manager *Manager, wsConn *websocket.Conn, remoteIP string) *Client {
	clientLogger := logx.Logger().With().
		Str("conn_id", randx.MessageID()).
		Str("remote_ip", remoteIP).
		Logger()

	return &Client{
		manager:       manager,
		conn:          wsConn,
		send:          make(chan []byte, sendBuffer),
		createLimiter: rate.NewLimiter(rate.Limit(CreateRoomRate), CreateRoomBurst),
		logger:        clientLogger,
	}
}

// UserID returns the user bound by HELLO, or "" before the handshake.
func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Room returns the room this connection is a member of, or nil.
func (c *Client) Room() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// PendingRoom returns the room this connection is waiting to join, or nil.
func (c *Client) PendingRoom() *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Client) bind(userID string, tokenExpiry time.Time) {
	c.mu.Lock()
	c.userID = userID
	c.tokenExpiry = tokenExpiry
	c.mu.Unlock()
}

func (c *Client) setRoom(r *Room) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

// clearRoom forgets r if it is still this connection's room.
func (c *Client) clearRoom(r *Room) {
	c.mu.Lock()
	if c.room == r {
		c.room = nil
	}
	c.mu.Unlock()
}

func (c *Client) setPending(r *Room) {
	c.mu.Lock()
	c.pending = r
	c.mu.Unlock()
}

// clearPending forgets r if it is still the room this connection is waiting on.
func (c *Client) clearPending(r *Room) {
	c.mu.Lock()
	if c.pending == r {
		c.pending = nil
	}
	c.mu.Unlock()
}

// ReadPump handles reading messages from the WebSocket connection.
// It handles heartbeats (Pong), message parsing, and performs cleanup upon connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInbound(messageBytes)
	}
}

// cleanupOnDisconnect releases everything the connection held: the session binding,
// a pending join request, and the room membership (which enters its reconnect grace period).
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")
	c.disconnected()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

func (c *Client) disconnected() {
	if c.UserID() != "" {
		c.manager.unbindClient(c)
	}
	if r := c.PendingRoom(); r != nil {
		r.cancelJoin(c.UserID(), c)
	}
	if r := c.Room(); r != nil {
		r.detach(c)
	}
	c.closeSend()
}

// WritePump handles writing messages from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}

			c.checkAndRefreshToken()
		}
	}
}

// writeQueuedMessage handles messages pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")

		c.mu.Lock()
		if c.kicked {
			closeMessage = websocket.FormatCloseMessage(WsCloseCodeSessionKicked, c.kickReason)
		}
		c.mu.Unlock()

		if err := c.conn.WriteMessage(websocket.CloseMessage, closeMessage); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// checkAndRefreshToken pushes a fresh session token when the current one is close to expiry.
func (c *Client) checkAndRefreshToken() {
	c.mu.Lock()
	userID, expiry := c.userID, c.tokenExpiry
	c.mu.Unlock()

	if userID == "" || time.Now().Before(expiry.Add(-TokenRefreshWindow)) {
		return
	}

	c.logger.Info().
		Time("current_expiry", expiry).
		Dur("refresh_window", TokenRefreshWindow).
		Msg("Session token is nearing expiry, attempting refresh.")

	token, newExpiry, err := c.issueToken(userID)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to generate new token. Aborting refresh.")
		return
	}

	c.sendMessage(protocol.TypeSessionToken, "", protocol.SessionTokenPayload{Token: token})

	c.mu.Lock()
	c.tokenExpiry = newExpiry
	c.mu.Unlock()
}

// issueToken signs a session token for userID.
func (c *Client) issueToken(userID string) (string, time.Time, error) {
	return jwt.IssueSession(userID, c.manager.opts.JWTSecret, jwt.SessionExpiration)
}

// sendMessage builds a frame and queues it for the client.
func (c *Client) sendMessage(msgType protocol.MessageType, roomCode string, payload any) {
	frame, err := protocol.Encode(msgType, roomCode, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("msg_type", string(msgType)).Msg("Error marshaling frame for client")
		return
	}
	c.queue(frame)
}

// queue attempts to put a frame on the send channel without blocking.
func (c *Client) queue(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- frame:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
	}
}

// SendError reports a failed request to the client as an ERROR frame.
func (c *Client) SendError(err error, request protocol.MessageType) {
	var code int
	var message string

	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		code = customErr.Code
		message = customErr.Message
	} else {
		code = errs.ErrUnknown
		message = fmt.Sprintf("Internal server error: %v", err)
	}

	c.sendMessage(protocol.TypeError, "", protocol.ErrorPayload{
		Code:    code,
		Message: message,
		Request: request,
	})
}

// closeSend closes the outbound queue; WritePump then closes the connection.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Kick ends the connection with close code 4001, signalling that the session was
// replaced by a newer connection.
func (c *Client) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Closing replaced connection.")

	c.mu.Lock()
	c.kicked = true
	c.kickReason = reason
	c.mu.Unlock()

	c.closeSend()
}
