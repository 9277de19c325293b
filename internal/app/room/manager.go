/*
Package room contains the coordination server: live rooms, their members and pending
requests, and the WebSocket clients that drive them.

This file defines the Manager struct, which serves as the central registry of the server.
It creates, tracks, retrieves and cleans up every active Room, tracks which connection
currently speaks for each user ID, and remembers which room holds each user's membership
so a reconnecting client can resume it.
*/
package room

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"listentogether/internal/app/moderation"
	"listentogether/internal/configs"
	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/logx"
	"listentogether/internal/pkg/randx"
)

const (
	// DefaultPendingTTL bounds how long a join request or suggestion may wait for the host.
	DefaultPendingTTL = 2 * time.Minute

	// DefaultReconnectGrace is how long a dropped member keeps its place in a room.
	DefaultReconnectGrace = 30 * time.Second

	// maxCodeAttempts bounds retries when a generated room code collides.
	maxCodeAttempts = 5
)

// Options tunes a Manager.
type Options struct {
	// PendingTTL is the lifetime of a pending join request or suggestion.
	PendingTTL time.Duration

	// ReconnectGrace is how long a disconnected member is held before it is treated as having left.
	ReconnectGrace time.Duration

	// JWTSecret signs session tokens.
	JWTSecret string

	// CodeGenerator produces room codes. Defaults to randx.RoomCode.
	CodeGenerator func() (string, error)
}

// OptionsFromConfig maps the server configuration onto Options.
func OptionsFromConfig(cfg *configs.AppConfig) Options {
	return Options{
		PendingTTL:     cfg.PendingTTL,
		ReconnectGrace: cfg.ReconnectGrace,
		JWTSecret:      cfg.JWTSecret,
	}
}

// Manager struct is responsible for coordinating and managing all active rooms.
type Manager struct {
	// rooms stores a map of all Room instances, keyed by room code.
	rooms map[string]*Room

	// clients maps a user ID to the connection currently speaking for it.
	clients map[string]*Client

	// mu protects rooms, clients and shuttingDown.
	mu sync.RWMutex

	// shuttingDown is set once Shutdown starts; no room is created after that.
	shuttingDown bool

	// memberships maps a user ID to the room holding its membership, connected or not.
	memberships map[string]*Room

	// memberMu protects memberships. It is taken after a Room's lock, never before.
	memberMu sync.Mutex

	// store is the block list consulted on every join.
	store moderation.Store

	opts Options

	// the channel used by Rooms to notify the Manager to clean up and remove them.
	cleanup chan string

	// wg is used to wait for the runCleanupLoop goroutine to finish during shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewManager constructs and returns a new Manager instance.
func NewManager(store moderation.Store, opts Options) *Manager {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = DefaultPendingTTL
	}
	if opts.ReconnectGrace <= 0 {
		opts.ReconnectGrace = DefaultReconnectGrace
	}
	if opts.CodeGenerator == nil {
		opts.CodeGenerator = randx.RoomCode
	}

	m := &Manager{
		rooms:       make(map[string]*Room),
		clients:     make(map[string]*Client),
		memberships: make(map[string]*Room),
		store:       store,
		opts:        opts,
		cleanup:     make(chan string, 16),
		logger:      logx.Component("RoomManager"),
	}

	m.wg.Add(1)
	go m.runCleanupLoop()

	return m
}

// runCleanupLoop removes rooms whose Run loop has finished.
func (m *Manager) runCleanupLoop() {
	defer m.wg.Done()

	m.logger.Info().Msg("Cleanup loop started.")

	for code := range m.cleanup {
		m.deleteRoom(code)
	}

	m.logger.Info().Msg("Cleanup loop stopped.")
}

func (m *Manager) deleteRoom(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[code]; ok {
		delete(m.rooms, code)
		m.logger.Info().Str("room_code", code).Msg("Room successfully removed.")
	}
}

// CreateRoom opens a new room hosted by host and starts its Run loop.
func (m *Manager) CreateRoom(host *Client, username string) (*Room, *errs.CustomError) {
	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return nil, errs.NewError(errs.ErrServerShuttingDown)
	}

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == maxCodeAttempts {
			m.mu.Unlock()
			m.logger.Error().Msg("Could not find a free room code.")
			return nil, errs.NewError(errs.ErrRoomCodeExists)
		}

		generated, err := m.opts.CodeGenerator()
		if err != nil {
			m.mu.Unlock()
			return nil, errs.NewError(errs.ErrUnknown, err)
		}
		if _, taken := m.rooms[generated]; !taken {
			code = generated
			break
		}
	}

	r := newRoom(code, m)
	m.rooms[code] = r
	m.mu.Unlock()

	r.addHost(host, username)

	go r.Run()

	m.logger.Info().Str("room_code", code).Str("host_id", host.userID).Msg("New Room created and started.")
	return r, nil
}

// GetRoom retrieves a Room by its code, or nil.
func (m *Manager) GetRoom(code string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[code]
}

// RoomCount returns the number of live rooms.
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// bindClient makes c the connection speaking for userID and returns the one it replaced.
func (m *Manager) bindClient(userID string, c *Client) *Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous := m.clients[userID]
	m.clients[userID] = c
	return previous
}

// hasLiveClient reports whether some connection currently speaks for userID.
func (m *Manager) hasLiveClient(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.clients[userID]
	return ok
}

// unbindClient forgets c if it still speaks for its user.
func (m *Manager) unbindClient(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.clients[c.userID]; ok && current == c {
		delete(m.clients, c.userID)
	}
}

func (m *Manager) setMembership(userID string, r *Room) {
	m.memberMu.Lock()
	defer m.memberMu.Unlock()

	if r == nil {
		delete(m.memberships, userID)
		return
	}
	m.memberships[userID] = r
}

// clearMembership removes userID's membership only if r still holds it.
func (m *Manager) clearMembership(userID string, r *Room) {
	m.memberMu.Lock()
	defer m.memberMu.Unlock()

	if m.memberships[userID] == r {
		delete(m.memberships, userID)
	}
}

// membership returns the room holding userID's membership, or nil.
func (m *Manager) membership(userID string) *Room {
	m.memberMu.Lock()
	defer m.memberMu.Unlock()
	return m.memberships[userID]
}

// Shutdown closes every room, stops the cleanup loop and waits for it to exit.
// Calls after the first return immediately.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return
	}
	m.shuttingDown = true

	m.logger.Info().Msg("Shutting down Manager...")

	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		r.Close("server shutting down")
	}
	for _, c := range clients {
		c.closeSend()
	}

	// rooms notify the cleanup loop as their Run loops exit
	for _, r := range rooms {
		<-r.done
	}

	close(m.cleanup)
	m.wg.Wait()

	m.logger.Info().Msg("Manager shutdown complete.")
}
