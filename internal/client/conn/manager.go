package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"listentogether/internal/configs"
	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/logx"
	"listentogether/internal/pkg/observable"
	"listentogether/internal/protocol"
)

// backoffJitterPercent spreads reconnect attempts of many clients after a server restart.
const backoffJitterPercent = 10

// Handler receives every inbound frame, one at a time, in read order.
type Handler func(protocol.Message)

// HelloFunc builds the first frame written on every new transport, before the
// connection is reported as Connected.
type HelloFunc func() ([]byte, error)

// Manager owns the single logical connection to the coordination server.
//
// State changes are published through an observable.Value in the order they happen.
// Listeners run on the goroutine that caused the transition and must not call
// Connect, Disconnect or ForceReconnect synchronously.
type Manager struct {
	dialer Dialer
	cfg    configs.ClientConfig

	state   *observable.Value[State]
	current atomic.Int32

	// mu guards the fields below and orders transitions.
	mu       sync.Mutex
	gen      uint64
	attempts int
	cancel   context.CancelFunc
	handler  Handler
	hello    HelloFunc

	// pubMu is taken before mu is released so publications keep transition order.
	pubMu sync.Mutex

	live atomic.Pointer[session]

	logger zerolog.Logger
}

type session struct {
	t Transport
}

// NewManager creates a Manager in the Disconnected state.
func NewManager(dialer Dialer, cfg configs.ClientConfig) *Manager {
	defaults := configs.DefaultClientConfig()
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = defaults.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &Manager{
		dialer: dialer,
		cfg:    cfg,
		state:  observable.NewValue(Disconnected),
		logger: logx.Component("ConnectionManager"),
	}
}

// NewWebSocketManager creates a Manager that dials cfg.ServerURL over WebSocket.
func NewWebSocketManager(cfg configs.ClientConfig) *Manager {
	if cfg.ServerURL == "" {
		cfg.ServerURL = configs.DefaultClientConfig().ServerURL
	}
	return NewManager(&WebSocketDialer{URL: cfg.ServerURL}, cfg)
}

// State returns the current connection state without blocking.
func (m *Manager) State() State {
	return State(m.current.Load())
}

// Subscribe delivers the current state to fn and then every transition.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	return m.state.Subscribe(fn)
}

// Attempts returns the number of failed reconnect attempts in the current retry cycle.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// SetHandler installs the inbound frame handler used by transports opened afterwards.
func (m *Manager) SetHandler(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// SetHello installs the handshake frame builder.
func (m *Manager) SetHello(fn HelloFunc) {
	m.mu.Lock()
	m.hello = fn
	m.mu.Unlock()
}

// Connect starts connecting from Disconnected or Error. It is a no-op otherwise.
func (m *Manager) Connect() {
	m.mu.Lock()
	if s := m.State(); s != Disconnected && s != Error {
		m.mu.Unlock()
		m.logger.Debug().Str("state", s.String()).Msg("Connect ignored.")
		return
	}

	m.stopLocked()
	m.startLocked()
	m.setAndUnlock(Connecting)
}

// ForceReconnect resets the attempt counter and dials immediately, dropping the
// current transport or backoff timer. It is a no-op while Connecting.
func (m *Manager) ForceReconnect() {
	m.mu.Lock()
	if m.State() == Connecting {
		m.mu.Unlock()
		m.logger.Debug().Msg("ForceReconnect ignored while connecting.")
		return
	}

	m.stopLocked()
	m.startLocked()
	m.setAndUnlock(Connecting)
}

// Disconnect closes the transport and cancels any retry loop.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.State() == Disconnected {
		m.mu.Unlock()
		return
	}

	m.stopLocked()
	m.gen++
	m.attempts = 0
	m.setAndUnlock(Disconnected)
}

// Send writes one frame on the live transport. It fails with ErrConnectionFailure
// unless the state is Connected. A write error closes the transport, which starts
// the reconnect loop.
func (m *Manager) Send(ctx context.Context, data []byte) error {
	s := m.live.Load()
	if s == nil || m.State() != Connected {
		return errs.NewError(errs.ErrConnectionFailure)
	}

	if err := s.t.WriteMessage(ctx, data); err != nil {
		m.logger.Warn().Err(err).Msg("Write failed. Closing transport.")
		_ = s.t.Close()
		return fmt.Errorf("send: %v: %w", err, errs.NewError(errs.ErrConnectionFailure))
	}
	return nil
}

// startLocked begins a new generation with a fresh attempt counter.
func (m *Manager) startLocked() {
	m.gen++
	m.attempts = 0

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	go m.run(ctx, m.gen)
}

// stopLocked cancels the running generation and closes its transport.
func (m *Manager) stopLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if s := m.live.Swap(nil); s != nil {
		if err := s.t.Close(); err != nil {
			m.logger.Debug().Err(err).Msg("Transport close error.")
		}
	}
}

// setAndUnlock records next, releases mu and publishes next.
func (m *Manager) setAndUnlock(next State) {
	m.current.Store(int32(next))

	m.pubMu.Lock()
	m.mu.Unlock()
	defer m.pubMu.Unlock()

	m.logger.Info().Str("state", next.String()).Msg("Connection state changed.")
	m.state.Set(next)
}

// transition moves to next if gen is still current. before runs under mu.
func (m *Manager) transition(gen uint64, next State, before func()) bool {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return false
	}
	if before != nil {
		before()
	}
	m.setAndUnlock(next)
	return true
}

// failedAttempt records a failed dial. A failed first dial moves Connecting to
// Reconnecting; later failures only count against the budget.
func (m *Manager) failedAttempt(gen uint64) bool {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return false
	}
	if m.State() == Connecting {
		m.setAndUnlock(Reconnecting)
		return true
	}
	m.attempts++
	m.mu.Unlock()
	return true
}

func (m *Manager) newBackoff() retry.Backoff {
	b := retry.NewExponential(m.cfg.BaseBackoff)
	b = retry.WithJitterPercent(backoffJitterPercent, b)
	b = retry.WithCappedDuration(m.cfg.MaxBackoff, b)
	return retry.WithMaxRetries(uint64(m.cfg.MaxRetries), b)
}

// run is the connection loop of one generation.
func (m *Manager) run(ctx context.Context, gen uint64) {
	backoff := m.newBackoff()

	for {
		t, err := m.dial(ctx)
		if err == nil {
			s := &session{t: t}
			if !m.transition(gen, Connected, func() {
				m.attempts = 0
				m.live.Store(s)
			}) {
				_ = t.Close()
				return
			}

			err = m.readLoop(t)
			m.live.CompareAndSwap(s, nil)
			_ = t.Close()

			if ctx.Err() != nil {
				return
			}

			if errors.Is(err, ErrSessionReplaced) {
				m.logger.Warn().Msg("Session taken over by another connection. Not reconnecting.")
				m.transition(gen, Error, nil)
				return
			}

			m.logger.Warn().Err(err).Msg("Connection lost. Reconnecting.")
			if !m.transition(gen, Reconnecting, nil) {
				return
			}
			backoff = m.newBackoff()
		} else {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn().Err(err).Msg("Dial failed.")
			if !m.failedAttempt(gen) {
				return
			}
		}

		delay, stop := backoff.Next()
		if stop {
			m.logger.Warn().Int("max_retries", m.cfg.MaxRetries).Msg("Reconnect budget exhausted.")
			m.transition(gen, Error, nil)
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// dial opens a transport and writes the handshake frame on it.
func (m *Manager) dial(ctx context.Context) (Transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	defer cancel()

	t, err := m.dialer.Dial(dialCtx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	hello := m.hello
	m.mu.Unlock()

	if hello == nil {
		return t, nil
	}

	frame, err := hello()
	if err == nil {
		err = t.WriteMessage(dialCtx, frame)
	}
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	return t, nil
}

// readLoop hands every frame to the handler until the transport fails.
func (m *Manager) readLoop(t Transport) error {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()

	for {
		data, err := t.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			m.logger.Warn().Err(err).Msg("Dropping undecodable frame.")
			continue
		}

		if handler != nil {
			handler(msg)
		}
	}
}
