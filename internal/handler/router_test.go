package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"listentogether/internal/app/moderation"
	"listentogether/internal/app/room"
	"listentogether/internal/configs"
	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/resp"
	"listentogether/internal/protocol"
)

const testSecret = "router-secret"

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &configs.AppConfig{
		Environment: "development",
		InviteHost:  "listen.example.com",
		JWTSecret:   testSecret,
	}
	store := moderation.NewMemoryStore()
	manager := room.NewManager(store, room.Options{JWTSecret: testSecret})

	srv := httptest.NewServer(Router(&AppDeps{Manager: manager, Config: cfg, Store: store}))
	t.Cleanup(func() {
		srv.Close()
		manager.Shutdown()
	})

	return &testServer{Server: srv}
}

// dial opens a session for userID and returns the socket and its session token.
func (s *testServer) dial(t *testing.T, userID string) (*websocket.Conn, string) {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })

	write(t, ws, protocol.TypeHello, protocol.HelloPayload{UserID: userID})

	var welcome protocol.WelcomePayload
	if err := read(t, ws, protocol.TypeWelcome).DecodePayload(&welcome); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	return ws, welcome.Token
}

func write(t *testing.T, ws *websocket.Conn, msgType protocol.MessageType, payload any) {
	t.Helper()
	data, err := protocol.Encode(msgType, "", payload)
	if err != nil {
		t.Fatalf("encode %s: %v", msgType, err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// read returns the next frame of the wanted type, skipping others.
func read(t *testing.T, ws *websocket.Conn, want protocol.MessageType) protocol.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if msg.Type == want {
			return msg
		}
	}
}

func (s *testServer) call(t *testing.T, method, path, token, body string, data any) resp.JSONResponse {
	t.Helper()

	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	out := resp.JSONResponse{Data: data}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	var data struct {
		Status string `json:"status"`
		Rooms  int    `json:"rooms"`
	}
	out := s.call(t, http.MethodGet, "/health", "", "", &data)
	if out.Code != 0 || data.Status != "ok" || data.Rooms != 0 {
		t.Errorf("unexpected health response %+v / %+v", out, data)
	}
}

func TestRoomStatusAndInvite(t *testing.T) {
	s := newTestServer(t)

	host, _ := s.dial(t, "host-id")
	write(t, host, protocol.TypeCreateRoom, protocol.CreateRoomPayload{Username: "Alice"})

	var created protocol.RoomCreatedPayload
	if err := read(t, host, protocol.TypeRoomCreated).DecodePayload(&created); err != nil {
		t.Fatalf("decode ROOM_CREATED: %v", err)
	}

	var status RoomStatus
	out := s.call(t, http.MethodGet, "/api/rooms/"+strings.ToLower(created.RoomCode), "", "", &status)
	if out.Code != 0 {
		t.Fatalf("status lookup failed: %+v", out)
	}
	if status.RoomCode != created.RoomCode || status.Members != 1 || status.Connected != 1 {
		t.Errorf("unexpected status %+v", status)
	}
	want, _ := protocol.InviteLink("listen.example.com", created.RoomCode)
	if status.InviteLink != want {
		t.Errorf("invite link = %q, want %q", status.InviteLink, want)
	}

	var viaInvite RoomStatus
	s.call(t, http.MethodGet, protocol.InvitePath+"?code="+created.RoomCode, "", "", &viaInvite)
	if viaInvite.RoomCode != created.RoomCode {
		t.Errorf("invite resolved to %+v", viaInvite)
	}
}

func TestRoomStatusErrors(t *testing.T) {
	s := newTestServer(t)

	if out := s.call(t, http.MethodGet, "/api/rooms/bad!", "", "", nil); out.Code != errs.ErrInvalidRoomCode {
		t.Errorf("malformed code: got code %d", out.Code)
	}
	if out := s.call(t, http.MethodGet, "/api/rooms/AB3DE9F1", "", "", nil); out.Code != errs.ErrRoomNotFound {
		t.Errorf("unknown room: got code %d", out.Code)
	}
}

func TestBlockEndpointsRequireSession(t *testing.T) {
	s := newTestServer(t)

	if out := s.call(t, http.MethodGet, "/api/blocks", "", "", nil); out.Code != errs.ErrUnauthorized {
		t.Errorf("list without token: got code %d", out.Code)
	}
	if out := s.call(t, http.MethodPost, "/api/blocks", "not-a-token", `{"username":"bob"}`, nil); out.Code != errs.ErrUnauthorized {
		t.Errorf("block with bad token: got code %d", out.Code)
	}
}

func TestBlockListManagement(t *testing.T) {
	s := newTestServer(t)

	host, token := s.dial(t, "host-id")
	write(t, host, protocol.TypeCreateRoom, protocol.CreateRoomPayload{Username: "Alice"})

	var created protocol.RoomCreatedPayload
	if err := read(t, host, protocol.TypeRoomCreated).DecodePayload(&created); err != nil {
		t.Fatalf("decode ROOM_CREATED: %v", err)
	}

	if out := s.call(t, http.MethodPost, "/api/blocks", token, `{"username":"  Mallory "}`, nil); out.Code != 0 {
		t.Fatalf("block failed: %+v", out)
	}
	if out := s.call(t, http.MethodPost, "/api/blocks", token, `{"username":"   "}`, nil); out.Code != errs.ErrInvalidUsername {
		t.Errorf("blank username: got code %d", out.Code)
	}

	var list struct {
		Blocks []moderation.BlockEntry `json:"blocks"`
	}
	s.call(t, http.MethodGet, "/api/blocks", token, "", &list)
	if len(list.Blocks) != 1 || list.Blocks[0].Username != "mallory" || list.Blocks[0].BlockedBy != "host-id" {
		t.Fatalf("unexpected block list %+v", list.Blocks)
	}

	guest, _ := s.dial(t, "mallory-id")
	write(t, guest, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomCode: created.RoomCode, Username: "MALLORY"})

	var rejected protocol.JoinRejectedPayload
	if err := read(t, guest, protocol.TypeJoinRejected).DecodePayload(&rejected); err != nil {
		t.Fatalf("decode JOIN_REJECTED: %v", err)
	}
	if rejected.Reason != errs.NewError(errs.ErrUserBlocked).Message {
		t.Errorf("reason = %q", rejected.Reason)
	}

	if out := s.call(t, http.MethodDelete, "/api/blocks/mallory", token, "", nil); out.Code != 0 {
		t.Fatalf("unblock failed: %+v", out)
	}
	list.Blocks = nil
	s.call(t, http.MethodGet, "/api/blocks", token, "", &list)
	if len(list.Blocks) != 0 {
		t.Errorf("block list not empty after unblock: %+v", list.Blocks)
	}

	write(t, guest, protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomCode: created.RoomCode, Username: "Mallory"})
	read(t, host, protocol.TypeJoinRequest)
}
