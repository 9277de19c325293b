package coordinator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"listentogether/internal/app/moderation"
	"listentogether/internal/app/room"
	"listentogether/internal/client/conn"
	"listentogether/internal/configs"
	"listentogether/internal/pkg/errs"
	"listentogether/internal/protocol"
)

// startServer runs the coordination server behind httptest and returns its room
// manager and WebSocket URL.
func startServer(t *testing.T) (*room.Manager, string) {
	t.Helper()

	m := room.NewManager(moderation.NewMemoryStore(), room.Options{JWTSecret: "scenario-secret"})
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := room.NewClient(m, ws, r.RemoteAddr)
		go client.WritePump()
		client.ReadPump()
	}))

	t.Cleanup(func() {
		srv.Close()
		m.Shutdown()
	})

	return m, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type peer struct {
	*Coordinator
	events    <-chan Event
	connected atomic.Int32
}

func newPeer(t *testing.T, url, userID string, playback Playback) *peer {
	t.Helper()

	c := NewFromConfig(configs.ClientConfig{
		ServerURL:   url,
		MaxRetries:  3,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  50 * time.Millisecond,
		DialTimeout: 2 * time.Second,
	}, Options{UserID: userID, Playback: playback})
	events, cancel := c.Events()

	p := &peer{Coordinator: c, events: events}
	unsubscribe := c.SubscribeConnection(func(s conn.State) {
		if s == conn.Connected {
			p.connected.Add(1)
		}
	})

	t.Cleanup(func() {
		ctx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		c.Disconnect(ctx)
		unsubscribe()
		cancel()
		c.Close()
	})

	c.Connect()
	eventually(t, "welcome", func() bool { return c.Token() != "" })
	return p
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// expect returns the next event of the given type, skipping others.
func (p *peer) expect(t *testing.T, eventType EventType) Event {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-p.events:
			if !ok {
				t.Fatalf("event stream closed while waiting for %s", eventType)
			}
			if e.Type == eventType {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", eventType)
		}
	}
}

// admit runs a full join of guest into host's room.
func admit(t *testing.T, host, guest *peer, code, username string) protocol.RoomState {
	t.Helper()

	type result struct {
		state protocol.RoomState
		err   error
	}
	done := make(chan result, 1)
	go func() {
		state, err := guest.JoinRoom(context.Background(), code, username)
		done <- result{state, err}
	}()

	eventually(t, "join request at host", func() bool {
		for _, r := range host.PendingJoinRequests() {
			if r.UserID == guest.UserID() {
				return true
			}
		}
		return false
	})
	if err := host.ApproveJoin(context.Background(), guest.UserID()); err != nil {
		t.Fatalf("ApproveJoin: %v", err)
	}

	r := <-done
	if r.err != nil {
		t.Fatalf("JoinRoom: %v", r.err)
	}
	return r.state
}

func roomSize(p *peer) int {
	s, ok := p.Room()
	if !ok {
		return 0
	}
	return len(s.Users)
}

// Create, request, approve: both sides converge on a two-member room.
func TestScenario_CreateJoinApprove(t *testing.T) {
	_, url := startServer(t)
	host := newPeer(t, url, "host-id", nil)
	guest := newPeer(t, url, "guest-id", nil)

	created, err := host.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if e := host.expect(t, RoomCreated); e.RoomCode != created.RoomCode {
		t.Errorf("unexpected RoomCreated %+v", e)
	}
	if !host.IsHost() {
		t.Fatal("creator must host the room")
	}

	state := admit(t, host, guest, strings.ToLower(created.RoomCode), "Bob")
	if len(state.Users) != 2 || !state.IsHost("host-id") {
		t.Errorf("unexpected joined state %+v", state)
	}
	guest.expect(t, JoinApproved)

	joined := host.expect(t, UserJoined)
	if joined.User.UserID != "guest-id" || joined.User.Username != "Bob" {
		t.Errorf("unexpected UserJoined %+v", joined)
	}
	eventually(t, "host sees two members", func() bool { return roomSize(host) == 2 })

	if err := host.ApproveJoin(context.Background(), "guest-id"); !errors.Is(err, errs.NewError(errs.ErrStaleRequest)) {
		t.Errorf("second approval should be stale, got %v", err)
	}
	if err := guest.ApproveJoin(context.Background(), "host-id"); !errors.Is(err, errs.NewError(errs.ErrPermissionDenied)) {
		t.Errorf("guest approval should be denied, got %v", err)
	}
}

// A malformed code never leaves the device; an unknown one is rejected by the server.
func TestScenario_InvalidCode(t *testing.T) {
	_, url := startServer(t)
	guest := newPeer(t, url, "guest-id", nil)

	if _, err := guest.JoinRoom(context.Background(), "abc", "Bob"); !errors.Is(err, errs.NewError(errs.ErrInvalidRoomCode)) {
		t.Errorf("expected ErrInvalidRoomCode, got %v", err)
	}
	if e := guest.expect(t, JoinRejected); !strings.Contains(e.Reason, "invalid") {
		t.Errorf("unexpected reason %q", e.Reason)
	}

	if _, err := guest.JoinRoom(context.Background(), "ZZZZZZZZ", "Bob"); !errors.Is(err, errs.NewError(errs.ErrJoinRejected)) {
		t.Errorf("expected ErrJoinRejected, got %v", err)
	}
	if e := guest.expect(t, JoinRejected); !strings.Contains(e.Reason, "invalid") {
		t.Errorf("unexpected reason %q", e.Reason)
	}
}

// A suggestion travels guest -> host, and the approval reaches playback and the submitter.
func TestScenario_SuggestionApproved(t *testing.T) {
	_, url := startServer(t)
	playback := &recordingPlayback{}
	host := newPeer(t, url, "host-id", playback)
	guest := newPeer(t, url, "guest-id", nil)

	created, err := host.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}
	admit(t, host, guest, created.RoomCode, "Bob")

	track := protocol.TrackInfo{ID: "yt:42", Title: "Answer", Artist: "Deep Thought", DurationMs: 42000}
	if err := guest.SuggestTrack(context.Background(), track); err != nil {
		t.Fatal(err)
	}
	if err := host.SuggestTrack(context.Background(), track); !errors.Is(err, errs.NewError(errs.ErrInvalidParams)) {
		t.Errorf("host suggestion should be refused, got %v", err)
	}

	eventually(t, "suggestion at host", func() bool { return len(host.PendingSuggestions()) == 1 })
	s := host.PendingSuggestions()[0]
	if s.FromUserID != "guest-id" || s.TrackInfo != track {
		t.Errorf("unexpected suggestion %+v", s)
	}

	if err := host.ApproveSuggestion(context.Background(), s.SuggestionID); err != nil {
		t.Fatal(err)
	}

	approved := guest.expect(t, SuggestionApproved)
	if approved.SuggestionID != s.SuggestionID || approved.Track != track {
		t.Errorf("unexpected SuggestionApproved %+v", approved)
	}
	if got := playback.queued(); len(got) != 1 || got[0] != track {
		t.Errorf("unexpected playback queue %+v", got)
	}
}

// Block then kick: the guest is removed and can never become pending again.
func TestScenario_BlockAndKick(t *testing.T) {
	m, url := startServer(t)
	host := newPeer(t, url, "host-id", nil)
	guest := newPeer(t, url, "guest-id", nil)

	created, err := host.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}
	admit(t, host, guest, created.RoomCode, "Bob")

	if err := host.BlockUser(context.Background(), "Bob"); err != nil {
		t.Fatal(err)
	}
	if err := host.KickUser(context.Background(), "guest-id", "Removed by host"); err != nil {
		t.Fatal(err)
	}

	kicked := guest.expect(t, UserKicked)
	if kicked.UserID != "guest-id" || kicked.Reason != "Removed by host" {
		t.Errorf("unexpected UserKicked %+v", kicked)
	}
	if _, ok := guest.Room(); ok {
		t.Error("kicked guest still holds the room")
	}
	eventually(t, "host sees one member", func() bool { return roomSize(host) == 1 })

	_, err = guest.JoinRoom(context.Background(), created.RoomCode, "bob")
	if !errors.Is(err, errs.NewError(errs.ErrJoinRejected)) {
		t.Fatalf("expected ErrJoinRejected, got %v", err)
	}
	if n := m.GetRoom(created.RoomCode).PendingJoinCount(); n != 0 {
		t.Errorf("blocked user became pending on the server (%d)", n)
	}
	if n := len(host.PendingJoinRequests()); n != 0 {
		t.Errorf("blocked user reached the host (%d)", n)
	}
}

// Host commands issued the moment ApproveJoin returns reach the new member.
func TestScenario_ActOnJustAdmittedMember(t *testing.T) {
	_, url := startServer(t)
	host := newPeer(t, url, "host-id", nil)
	guest := newPeer(t, url, "guest-id", nil)
	third := newPeer(t, url, "third-id", nil)

	created, err := host.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}

	admit(t, host, guest, created.RoomCode, "Bob")
	if err := host.TransferHost(context.Background(), "guest-id"); err != nil {
		t.Fatalf("TransferHost right after approval: %v", err)
	}
	if e := guest.expect(t, HostTransferred); e.NewHostID != "guest-id" {
		t.Errorf("unexpected HostTransferred %+v", e)
	}

	admit(t, guest, third, created.RoomCode, "Carol")
	if err := guest.KickUser(context.Background(), "third-id", "Removed by host"); err != nil {
		t.Fatalf("KickUser right after approval: %v", err)
	}
	if e := third.expect(t, UserKicked); e.UserID != "third-id" {
		t.Errorf("unexpected UserKicked %+v", e)
	}
}

func TestScenario_TransferAndLeave(t *testing.T) {
	_, url := startServer(t)
	host := newPeer(t, url, "host-id", nil)
	guest := newPeer(t, url, "guest-id", nil)
	third := newPeer(t, url, "third-id", nil)

	created, err := host.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}
	admit(t, host, guest, created.RoomCode, "Bob")
	admit(t, host, third, created.RoomCode, "Carol")

	if err := host.TransferHost(context.Background(), "guest-id"); err != nil {
		t.Fatal(err)
	}
	for _, p := range []*peer{host, guest, third} {
		e := p.expect(t, HostTransferred)
		if e.PreviousHostID != "host-id" || e.NewHostID != "guest-id" {
			t.Errorf("unexpected HostTransferred %+v", e)
		}
	}
	if host.IsHost() || !guest.IsHost() {
		t.Fatal("host role did not move")
	}
	if _, ok := host.Room(); !ok {
		t.Error("previous host must stay in the room")
	}

	if err := guest.LeaveRoom(context.Background()); err != nil {
		t.Fatal(err)
	}
	if e := third.expect(t, HostTransferred); e.NewHostID != "host-id" {
		t.Errorf("expected the longest-present member to take over, got %+v", e)
	}
	eventually(t, "successor is host", host.IsHost)

	if err := host.LeaveRoom(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "last member is host", third.IsHost)

	if err := third.LeaveRoom(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := third.LeaveRoom(context.Background()); err != nil {
		t.Errorf("leaving twice should be a no-op, got %v", err)
	}
}

func TestScenario_CancelledJoinIsWithdrawn(t *testing.T) {
	m, url := startServer(t)
	host := newPeer(t, url, "host-id", nil)
	guest := newPeer(t, url, "guest-id", nil)

	created, err := host.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := guest.JoinRoom(ctx, created.RoomCode, "Bob")
		done <- err
	}()

	eventually(t, "join request at host", func() bool { return len(host.PendingJoinRequests()) == 1 })
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	eventually(t, "request withdrawn at host", func() bool { return len(host.PendingJoinRequests()) == 0 })
	eventually(t, "request withdrawn on server", func() bool {
		return m.GetRoom(created.RoomCode).PendingJoinCount() == 0
	})
}

// A forced reconnect resumes the membership instead of dropping it.
func TestScenario_ReconnectResumesRoom(t *testing.T) {
	_, url := startServer(t)
	host := newPeer(t, url, "host-id", nil)
	guest := newPeer(t, url, "guest-id", nil)

	created, err := host.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}
	admit(t, host, guest, created.RoomCode, "Bob")

	guest.ForceReconnect()
	eventually(t, "second connection", func() bool { return guest.connected.Load() >= 2 })

	eventually(t, "guest connected in host view", func() bool {
		s, ok := host.Room()
		if !ok {
			return false
		}
		u, ok := s.User("guest-id")
		return ok && u.IsConnected
	})
	if s, ok := guest.Room(); !ok || s.RoomCode != created.RoomCode {
		t.Errorf("guest lost its room across reconnect: %+v", s)
	}

	host.ForceReconnect()
	eventually(t, "host reconnected", func() bool { return host.connected.Load() >= 2 })
	eventually(t, "host still hosting", host.IsHost)
}

// Disconnect leaves the room and drops local state.
func TestScenario_DisconnectLeaves(t *testing.T) {
	_, url := startServer(t)
	host := newPeer(t, url, "host-id", nil)
	guest := newPeer(t, url, "guest-id", nil)

	created, err := host.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}
	admit(t, host, guest, created.RoomCode, "Bob")

	guest.Disconnect(context.Background())

	if guest.ConnectionState() != conn.Disconnected {
		t.Errorf("expected DISCONNECTED, got %s", guest.ConnectionState())
	}
	if _, ok := guest.Room(); ok {
		t.Error("room kept after disconnect")
	}
	if left := host.expect(t, UserLeft); left.User.UserID != "guest-id" {
		t.Errorf("unexpected UserLeft %+v", left)
	}
}

func TestNewFromEnvConnectsToConfiguredServer(t *testing.T) {
	_, url := startServer(t)
	t.Setenv("LT_SERVER_URL", url)
	t.Setenv("LT_BASE_BACKOFF", "10ms")
	t.Setenv("LT_MAX_BACKOFF", "50ms")

	c, err := NewFromEnv(Options{UserID: "env-id"})
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	t.Cleanup(func() {
		ctx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		c.Disconnect(ctx)
		c.Close()
	})

	c.Connect()
	eventually(t, "welcome", func() bool { return c.Token() != "" })
	if c.ConnectionState() != conn.Connected {
		t.Errorf("state = %s, want CONNECTED", c.ConnectionState())
	}

	t.Setenv("LT_MAX_RETRIES", "-1")
	if _, err := NewFromEnv(Options{}); err == nil {
		t.Error("expected an error for an invalid LT_MAX_RETRIES")
	}
}
