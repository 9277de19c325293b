/*
Package coordinator is the client-side session layer of Listen Together.

A Coordinator owns the local view of the room (its RoomState, the host's pending join
requests and suggestions), validates commands before they reach the wire, turns server
notifications into one-shot Events, and reconciles all of it with the state of the
underlying connection.
*/
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"listentogether/internal/client/conn"
	"listentogether/internal/configs"
	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/logx"
	"listentogether/internal/pkg/observable"
	"listentogether/internal/pkg/randx"
	"listentogether/internal/protocol"
)

const (
	// ReasonInvalidRoomCode is reported for a code that fails local validation.
	ReasonInvalidRoomCode = "invalid room code"

	// ReasonMembershipLost is reported when the server no longer holds our room after a reconnect.
	ReasonMembershipLost = "membership lost"

	// reasonWithdrawn rejects a join that the caller abandoned by leaving.
	reasonWithdrawn = "withdrawn"

	// cleanupTimeout bounds best-effort frames sent after the caller's context is done.
	cleanupTimeout = 5 * time.Second
)

// Playback receives tracks the host accepted.
type Playback interface {
	Enqueue(ctx context.Context, track protocol.TrackInfo) error
}

// Connection is the part of conn.Manager the Coordinator drives.
type Connection interface {
	State() conn.State
	Subscribe(fn func(conn.State)) (unsubscribe func())
	SetHandler(h conn.Handler)
	SetHello(fn conn.HelloFunc)
	Connect()
	Disconnect()
	ForceReconnect()
	Send(ctx context.Context, data []byte) error
}

// Options configures a Coordinator.
type Options struct {
	// UserID identifies this device for the whole session. A random ID is used when empty.
	UserID string

	// Playback receives approved suggestions. Optional.
	Playback Playback
}

type outcome struct {
	state protocol.RoomState
	err   error
}

// waiter is an outstanding CREATE_ROOM or JOIN_ROOM request.
type waiter struct {
	kind protocol.MessageType
	ch   chan outcome
}

// Coordinator is the session layer on top of one Connection.
//
// Inbound frames are applied on the connection's reader goroutine; commands may be
// called from any goroutine. Observable listeners run synchronously and must not call
// Coordinator commands or Connection methods from inside the callback.
type Coordinator struct {
	conn     Connection
	playback Playback
	userID   string

	// mu guards the session state below.
	mu          sync.Mutex
	token       string
	room        *protocol.RoomState
	joins       []protocol.JoinRequestPayload
	suggestions []protocol.SuggestionReceivedPayload
	wait        *waiter

	roomDirty        bool
	joinsDirty       bool
	suggestionsDirty bool

	// pubMu is taken before mu is released so views are published in mutation order.
	pubMu           sync.Mutex
	roomView        *observable.Value[*protocol.RoomState]
	joinsView       *observable.Value[[]protocol.JoinRequestPayload]
	suggestionsView *observable.Value[[]protocol.SuggestionReceivedPayload]

	events      *bus
	unsubscribe func()

	logger zerolog.Logger
}

// New attaches a Coordinator to connection. The Coordinator installs the connection's
// frame handler and handshake builder.
func New(connection Connection, opts Options) *Coordinator {
	userID := opts.UserID
	if userID == "" {
		userID = randx.UserID()
	}

	c := &Coordinator{
		conn:            connection,
		playback:        opts.Playback,
		userID:          userID,
		roomView:        observable.NewValue[*protocol.RoomState](nil),
		joinsView:       observable.NewValue[[]protocol.JoinRequestPayload](nil),
		suggestionsView: observable.NewValue[[]protocol.SuggestionReceivedPayload](nil),
		events:          newBus(),
		logger:          logx.Component("SessionCoordinator").With().Str("client_id", userID).Logger(),
	}

	connection.SetHello(c.hello)
	connection.SetHandler(c.handle)
	c.unsubscribe = connection.Subscribe(c.onConnectionState)

	return c
}

// NewFromConfig builds a Coordinator over a WebSocket connection to cfg.ServerURL.
// Call Connect to start the session.
func NewFromConfig(cfg configs.ClientConfig, opts Options) *Coordinator {
	return New(conn.NewWebSocketManager(cfg), opts)
}

// NewFromEnv is NewFromConfig with the client policy read from the environment
// (see configs.LoadClientConfig).
func NewFromEnv(opts Options) (*Coordinator, error) {
	cfg, err := configs.LoadClientConfig()
	if err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}
	return NewFromConfig(cfg, opts), nil
}

// UserID returns the stable ID this device uses on the wire.
func (c *Coordinator) UserID() string {
	return c.userID
}

// Token returns the latest session token issued by the server, or "".
func (c *Coordinator) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Room returns the current room state and whether we are in a room.
func (c *Coordinator) Room() (protocol.RoomState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.room == nil {
		return protocol.RoomState{}, false
	}
	return c.room.Clone(), true
}

// IsHost reports whether this device currently hosts its room.
func (c *Coordinator) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room != nil && c.room.IsHost(c.userID)
}

// PendingJoinRequests returns the join requests awaiting this host, oldest first.
func (c *Coordinator) PendingJoinRequests() []protocol.JoinRequestPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.JoinRequestPayload(nil), c.joins...)
}

// PendingSuggestions returns the suggestions awaiting this host, oldest first.
func (c *Coordinator) PendingSuggestions() []protocol.SuggestionReceivedPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.SuggestionReceivedPayload(nil), c.suggestions...)
}

// SubscribeRoom delivers the current room state (nil when not in a room) and every change.
func (c *Coordinator) SubscribeRoom(fn func(*protocol.RoomState)) (unsubscribe func()) {
	return c.roomView.Subscribe(fn)
}

// SubscribePendingJoinRequests delivers the pending join requests and every change.
func (c *Coordinator) SubscribePendingJoinRequests(fn func([]protocol.JoinRequestPayload)) (unsubscribe func()) {
	return c.joinsView.Subscribe(fn)
}

// SubscribePendingSuggestions delivers the pending suggestions and every change.
func (c *Coordinator) SubscribePendingSuggestions(fn func([]protocol.SuggestionReceivedPayload)) (unsubscribe func()) {
	return c.suggestionsView.Subscribe(fn)
}

// ConnectionState returns the state of the underlying connection.
func (c *Coordinator) ConnectionState() conn.State {
	return c.conn.State()
}

// SubscribeConnection delivers connection state changes.
func (c *Coordinator) SubscribeConnection(fn func(conn.State)) (unsubscribe func()) {
	return c.conn.Subscribe(fn)
}

// Events returns a channel of events emitted from now on, in emission order.
// Call cancel to stop receiving; the channel is then closed.
func (c *Coordinator) Events() (events <-chan Event, cancel func()) {
	return c.events.subscribe()
}

// Close detaches from the connection and ends every event subscription.
func (c *Coordinator) Close() {
	c.unsubscribe()
	c.events.close()
}

// Connect opens the connection.
func (c *Coordinator) Connect() {
	c.conn.Connect()
}

// ForceReconnect redials now, keeping the room membership for resumption.
func (c *Coordinator) ForceReconnect() {
	c.conn.ForceReconnect()
}

// Disconnect leaves the current room and closes the connection. Room and pending
// state are dropped once the connection reports DISCONNECTED.
func (c *Coordinator) Disconnect(ctx context.Context) {
	c.mu.Lock()
	busy := c.room != nil || c.wait != nil
	c.mu.Unlock()

	if busy && c.conn.State() == conn.Connected {
		if err := c.send(ctx, protocol.TypeLeaveRoom, nil); err != nil {
			c.logger.Debug().Err(err).Msg("LEAVE_ROOM before disconnect failed.")
		}
	}
	c.conn.Disconnect()
}

// CreateRoom opens a room hosted by this device and waits for the server to confirm it.
func (c *Coordinator) CreateRoom(ctx context.Context, username string) (protocol.RoomState, error) {
	name, ok := protocol.CleanUsername(username)
	if !ok {
		return protocol.RoomState{}, errs.NewError(errs.ErrInvalidUsername)
	}

	w, err := c.begin(protocol.TypeCreateRoom)
	if err != nil {
		return protocol.RoomState{}, err
	}

	if err := c.send(ctx, protocol.TypeCreateRoom, protocol.CreateRoomPayload{Username: name}); err != nil {
		c.abandon(w)
		return protocol.RoomState{}, err
	}

	state, _, err := c.await(ctx, w)
	return state, err
}

// JoinRoom asks the host of code to admit this device and blocks until the request
// is approved, rejected or ctx is done. A malformed code is rejected locally.
// Cancelling ctx withdraws the request.
func (c *Coordinator) JoinRoom(ctx context.Context, code, username string) (protocol.RoomState, error) {
	code = randx.NormalizeRoomCode(code)
	if !randx.IsValidRoomCode(code) {
		c.events.publish(Event{Type: JoinRejected, RoomCode: code, Reason: ReasonInvalidRoomCode})
		return protocol.RoomState{}, errs.NewError(errs.ErrInvalidRoomCode)
	}

	name, ok := protocol.CleanUsername(username)
	if !ok {
		return protocol.RoomState{}, errs.NewError(errs.ErrInvalidUsername)
	}

	w, err := c.begin(protocol.TypeJoinRoom)
	if err != nil {
		return protocol.RoomState{}, err
	}

	if err := c.send(ctx, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomCode: code, Username: name}); err != nil {
		c.abandon(w)
		return protocol.RoomState{}, err
	}

	state, abandoned, err := c.await(ctx, w)
	if abandoned {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if sendErr := c.send(cleanupCtx, protocol.TypeCancelJoin, nil); sendErr != nil {
			c.logger.Debug().Err(sendErr).Msg("CANCEL_JOIN failed.")
		}
	}
	return state, err
}

// ApproveJoin admits a pending applicant. The applicant joins the local room at once;
// the next ROOM_STATE confirms it.
func (c *Coordinator) ApproveJoin(ctx context.Context, userID string) error {
	return c.resolveJoin(ctx, userID, true, protocol.TypeApproveJoin, protocol.TargetPayload{UserID: userID})
}

// RejectJoin turns a pending applicant away with reason.
func (c *Coordinator) RejectJoin(ctx context.Context, userID, reason string) error {
	return c.resolveJoin(ctx, userID, false, protocol.TypeRejectJoin, protocol.TargetPayload{UserID: userID, Reason: reason})
}

// resolveJoin takes userID out of the pending set and sends the decision. The pending
// set is the only gate, so resolving the same request twice fails with ErrStaleRequest
// and sends nothing. A decision that cannot be sent puts the request back.
func (c *Coordinator) resolveJoin(ctx context.Context, userID string, admit bool, msgType protocol.MessageType, payload any) error {
	c.mu.Lock()
	if err := c.requireHostLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.conn.State() != conn.Connected {
		c.mu.Unlock()
		return errs.NewError(errs.ErrNotConnected)
	}
	req, ok := c.takeJoinLocked(userID)
	if !ok {
		c.mu.Unlock()
		return errs.NewError(errs.ErrStaleRequest)
	}
	added := admit && c.addMemberLocked(req)
	c.publishAndUnlock()

	if err := c.send(ctx, msgType, payload); err != nil {
		c.mu.Lock()
		if added && c.room != nil {
			c.setRoomLocked(c.room.Without(userID))
		}
		if c.room != nil && c.room.IsHost(c.userID) && !c.room.HasUser(userID) {
			c.joins = append(c.joins, req)
			c.joinsDirty = true
		}
		c.publishAndUnlock()
		return err
	}
	return nil
}

// addMemberLocked puts an admitted applicant into the local room.
func (c *Coordinator) addMemberLocked(req protocol.JoinRequestPayload) bool {
	if c.room == nil || c.room.HasUser(req.UserID) {
		return false
	}
	c.setRoomLocked(c.room.WithUser(protocol.UserInfo{
		UserID:      req.UserID,
		Username:    req.Username,
		IsConnected: true,
	}))
	return true
}

// KickUser removes a member. Kicking yourself does nothing; the server ignores
// a kick of someone who is not in the room.
func (c *Coordinator) KickUser(ctx context.Context, userID, reason string) error {
	c.mu.Lock()
	err := c.requireHostLocked()
	c.mu.Unlock()
	if err != nil || userID == c.userID {
		return err
	}

	return c.send(ctx, protocol.TypeKickUser, protocol.TargetPayload{UserID: userID, Reason: reason})
}

// BlockUser adds username to this host's block list. Present members are not removed.
func (c *Coordinator) BlockUser(ctx context.Context, username string) error {
	name, ok := protocol.CleanUsername(username)
	if !ok {
		return errs.NewError(errs.ErrInvalidUsername)
	}

	c.mu.Lock()
	err := c.requireHostLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	return c.send(ctx, protocol.TypeBlockUser, protocol.UsernamePayload{Username: name})
}

// UnblockUser removes username from this device's block list. No room is needed.
func (c *Coordinator) UnblockUser(ctx context.Context, username string) error {
	name, ok := protocol.CleanUsername(username)
	if !ok {
		return errs.NewError(errs.ErrInvalidUsername)
	}
	return c.send(ctx, protocol.TypeUnblockUser, protocol.UsernamePayload{Username: name})
}

// TransferHost hands the host role to a connected member. The server answers a
// target that is not a connected member with an ErrInvalidTarget ServerError event.
func (c *Coordinator) TransferHost(ctx context.Context, userID string) error {
	c.mu.Lock()
	err := c.requireHostLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if userID == "" || userID == c.userID {
		return errs.NewError(errs.ErrInvalidTarget)
	}

	return c.send(ctx, protocol.TypeTransferHost, protocol.TargetPayload{UserID: userID})
}

// SuggestTrack proposes a track to the host. Hosts play tracks directly and cannot suggest.
func (c *Coordinator) SuggestTrack(ctx context.Context, track protocol.TrackInfo) error {
	c.mu.Lock()
	inRoom := c.room != nil
	isHost := inRoom && c.room.IsHost(c.userID)
	c.mu.Unlock()

	if !inRoom {
		return errs.NewError(errs.ErrNotInRoom)
	}
	if isHost || track.ID == "" || track.Title == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	return c.send(ctx, protocol.TypeSuggestTrack, protocol.SuggestTrackPayload{Track: track})
}

// ApproveSuggestion accepts a pending suggestion and hands its track to Playback.
// A suggestion that is no longer pending is ignored.
func (c *Coordinator) ApproveSuggestion(ctx context.Context, suggestionID string) error {
	s, ok, err := c.resolveSuggestion(suggestionID)
	if err != nil || !ok {
		return err
	}

	if err := c.send(ctx, protocol.TypeApproveSuggestion, protocol.SuggestionTargetPayload{SuggestionID: suggestionID}); err != nil {
		c.restoreSuggestion(s)
		return err
	}

	if c.playback == nil {
		return nil
	}
	if err := c.playback.Enqueue(ctx, s.TrackInfo); err != nil {
		return fmt.Errorf("enqueue approved track %s: %w", s.TrackInfo.ID, err)
	}
	return nil
}

// RejectSuggestion declines a pending suggestion. A suggestion that is no longer
// pending is ignored.
func (c *Coordinator) RejectSuggestion(ctx context.Context, suggestionID, reason string) error {
	s, ok, err := c.resolveSuggestion(suggestionID)
	if err != nil || !ok {
		return err
	}

	if err := c.send(ctx, protocol.TypeRejectSuggestion, protocol.SuggestionTargetPayload{SuggestionID: suggestionID, Reason: reason}); err != nil {
		c.restoreSuggestion(s)
		return err
	}
	return nil
}

// restoreSuggestion puts back a suggestion whose decision could not be sent.
func (c *Coordinator) restoreSuggestion(s protocol.SuggestionReceivedPayload) {
	c.mu.Lock()
	if c.room != nil && c.room.IsHost(c.userID) {
		if _, dup := c.findSuggestionLocked(s.SuggestionID); !dup {
			c.suggestions = append(c.suggestions, s)
			c.suggestionsDirty = true
		}
	}
	c.publishAndUnlock()
}

func (c *Coordinator) resolveSuggestion(id string) (protocol.SuggestionReceivedPayload, bool, error) {
	c.mu.Lock()
	if err := c.requireHostLocked(); err != nil {
		c.mu.Unlock()
		return protocol.SuggestionReceivedPayload{}, false, err
	}
	if c.conn.State() != conn.Connected {
		c.mu.Unlock()
		return protocol.SuggestionReceivedPayload{}, false, errs.NewError(errs.ErrNotConnected)
	}

	s, ok := c.removeSuggestionLocked(id)
	if !ok {
		c.mu.Unlock()
		c.logger.Debug().Str("suggestion_id", id).Msg("Suggestion no longer pending.")
		return s, false, nil
	}
	c.publishAndUnlock()
	return s, true, nil
}

// LeaveRoom leaves the current room, or withdraws an outstanding join request.
// It does nothing when neither exists.
func (c *Coordinator) LeaveRoom(ctx context.Context) error {
	c.mu.Lock()
	if c.room == nil && c.wait == nil {
		c.mu.Unlock()
		return nil
	}
	c.clearRoomLocked()
	c.failWaitLocked(errs.NewError(errs.ErrJoinRejected, reasonWithdrawn))
	c.publishAndUnlock()

	if c.conn.State() != conn.Connected {
		return nil
	}
	return c.send(ctx, protocol.TypeLeaveRoom, nil)
}

// begin registers the single outstanding room request.
func (c *Coordinator) begin(kind protocol.MessageType) (*waiter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn.State() != conn.Connected {
		return nil, errs.NewError(errs.ErrNotConnected)
	}
	if c.room != nil {
		return nil, errs.NewError(errs.ErrAlreadyInRoom)
	}
	if c.wait != nil {
		return nil, errs.NewError(errs.ErrRequestInFlight)
	}

	w := &waiter{kind: kind, ch: make(chan outcome, 1)}
	c.wait = w
	return w, nil
}

// abandon forgets w if it is still outstanding and reports whether it was.
func (c *Coordinator) abandon(w *waiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wait != w {
		return false
	}
	c.wait = nil
	return true
}

// await blocks until w is resolved or ctx is done. abandoned reports that ctx won.
func (c *Coordinator) await(ctx context.Context, w *waiter) (state protocol.RoomState, abandoned bool, err error) {
	select {
	case o := <-w.ch:
		return o.state, false, o.err
	case <-ctx.Done():
		if c.abandon(w) {
			return protocol.RoomState{}, true, ctx.Err()
		}
		// resolved concurrently; the outcome is already buffered
		o := <-w.ch
		return o.state, false, o.err
	}
}

func (c *Coordinator) resolveLocked(kind protocol.MessageType, o outcome) bool {
	if c.wait == nil || c.wait.kind != kind {
		return false
	}
	c.wait.ch <- o
	c.wait = nil
	return true
}

func (c *Coordinator) failWaitLocked(err error) {
	if c.wait != nil {
		c.wait.ch <- outcome{err: err}
		c.wait = nil
	}
}

func (c *Coordinator) requireHostLocked() error {
	if c.room == nil {
		return errs.NewError(errs.ErrNotInRoom)
	}
	if !c.room.IsHost(c.userID) {
		return errs.NewError(errs.ErrPermissionDenied)
	}
	return nil
}

func (c *Coordinator) send(ctx context.Context, msgType protocol.MessageType, payload any) error {
	if c.conn.State() != conn.Connected {
		return errs.NewError(errs.ErrNotConnected)
	}

	frame, err := protocol.Encode(msgType, "", payload)
	if err != nil {
		return err
	}
	return c.conn.Send(ctx, frame)
}

func (c *Coordinator) hello() ([]byte, error) {
	c.mu.Lock()
	payload := protocol.HelloPayload{
		UserID: c.userID,
		Token:  c.token,
		Resume: c.room != nil,
	}
	c.mu.Unlock()

	return protocol.Encode(protocol.TypeHello, "", payload)
}

// onConnectionState reconciles session state with the connection. An outstanding
// request cannot survive a lost transport; the room itself survives until the
// connection is given up.
func (c *Coordinator) onConnectionState(s conn.State) {
	c.mu.Lock()

	switch s {
	case conn.Connecting, conn.Reconnecting:
		c.failWaitLocked(errs.NewError(errs.ErrConnectionFailure))

	case conn.Disconnected:
		c.failWaitLocked(errs.NewError(errs.ErrNotConnected))
		c.clearRoomLocked()

	case conn.Error:
		c.failWaitLocked(errs.NewError(errs.ErrConnectionExhausted))
		c.clearRoomLocked()
	}

	c.publishAndUnlock()
}

func (c *Coordinator) clearRoomLocked() {
	if c.room != nil {
		c.room = nil
		c.roomDirty = true
	}
	c.clearPendingLocked()
}

func (c *Coordinator) clearPendingLocked() {
	if len(c.joins) > 0 {
		c.joins = nil
		c.joinsDirty = true
	}
	if len(c.suggestions) > 0 {
		c.suggestions = nil
		c.suggestionsDirty = true
	}
}

func (c *Coordinator) setRoomLocked(state protocol.RoomState) {
	s := state.Clone()
	c.room = &s
	c.roomDirty = true
}

func (c *Coordinator) removeJoinLocked(userID string) bool {
	_, ok := c.takeJoinLocked(userID)
	return ok
}

func (c *Coordinator) takeJoinLocked(userID string) (protocol.JoinRequestPayload, bool) {
	for i, j := range c.joins {
		if j.UserID == userID {
			c.joins = append(c.joins[:i:i], c.joins[i+1:]...)
			c.joinsDirty = true
			return j, true
		}
	}
	return protocol.JoinRequestPayload{}, false
}

func (c *Coordinator) findSuggestionLocked(id string) (protocol.SuggestionReceivedPayload, bool) {
	for _, s := range c.suggestions {
		if s.SuggestionID == id {
			return s, true
		}
	}
	return protocol.SuggestionReceivedPayload{}, false
}

func (c *Coordinator) removeSuggestionLocked(id string) (protocol.SuggestionReceivedPayload, bool) {
	for i, s := range c.suggestions {
		if s.SuggestionID == id {
			c.suggestions = append(c.suggestions[:i:i], c.suggestions[i+1:]...)
			c.suggestionsDirty = true
			return s, true
		}
	}
	return protocol.SuggestionReceivedPayload{}, false
}

// publishAndUnlock releases mu and publishes every view that changed while it was held.
func (c *Coordinator) publishAndUnlock() {
	roomDirty, joinsDirty, suggestionsDirty := c.roomDirty, c.joinsDirty, c.suggestionsDirty
	c.roomDirty, c.joinsDirty, c.suggestionsDirty = false, false, false

	var room *protocol.RoomState
	if c.room != nil {
		s := c.room.Clone()
		room = &s
	}
	joins := append([]protocol.JoinRequestPayload(nil), c.joins...)
	suggestions := append([]protocol.SuggestionReceivedPayload(nil), c.suggestions...)

	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()

	if roomDirty {
		c.roomView.Set(room)
	}
	if joinsDirty {
		c.joinsView.Set(joins)
	}
	if suggestionsDirty {
		c.suggestionsView.Set(suggestions)
	}
}
