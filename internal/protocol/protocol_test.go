package protocol

import (
	"strings"
	"testing"
)

func TestInviteLink(t *testing.T) {
	link, err := InviteLink("listen.example.com", "ab3de9f1")
	if err != nil {
		t.Fatalf("InviteLink failed: %v", err)
	}
	if link != "https://listen.example.com/listen?code=AB3DE9F1" {
		t.Errorf("unexpected link %q", link)
	}

	code, err := ParseInviteLink(link)
	if err != nil {
		t.Fatalf("ParseInviteLink failed: %v", err)
	}
	if code != "AB3DE9F1" {
		t.Errorf("expected AB3DE9F1, got %q", code)
	}

	if _, err := InviteLink("listen.example.com", "nope"); err == nil {
		t.Error("expected error for malformed code")
	}
	if _, err := ParseInviteLink("https://listen.example.com/other?code=AB3DE9F1"); err == nil {
		t.Error("expected error for wrong path")
	}
}

func TestRoomStateValidate(t *testing.T) {
	good := RoomState{
		RoomCode: "AB3DE9F1",
		HostID:   "alice-id",
		Users: []UserInfo{
			{UserID: "alice-id", Username: "Alice", IsHost: true, IsConnected: true},
			{UserID: "bob-id", Username: "Bob", IsConnected: true},
		},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid state, got %v", err)
	}

	transferred := good.WithHost("bob-id")
	if err := transferred.Validate(); err != nil {
		t.Fatalf("expected valid state after transfer, got %v", err)
	}
	if good.Users[0].IsHost != true {
		t.Error("WithHost must not mutate the receiver")
	}

	noHost := good.Clone()
	noHost.Users[0].IsHost = false
	if err := noHost.Validate(); err == nil {
		t.Error("expected error for zero hosts")
	}

	twoHosts := good.Clone()
	twoHosts.Users[1].IsHost = true
	if err := twoHosts.Validate(); err == nil {
		t.Error("expected error for two hosts")
	}
}

func TestMessageRoundTrip(t *testing.T) {
	frame, err := Encode(TypeJoinRoom, "", JoinRoomPayload{RoomCode: "AB3DE9F1", Username: "Bob"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	msg, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if msg.Type != TypeJoinRoom || msg.ID == "" || msg.Timestamp == 0 {
		t.Errorf("unexpected envelope %+v", msg)
	}

	var p JoinRoomPayload
	if err := msg.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if p.Username != "Bob" {
		t.Errorf("expected Bob, got %q", p.Username)
	}

	if _, err := Decode([]byte(`{"payload":{}}`)); err == nil || !strings.Contains(err.Error(), "missing type") {
		t.Errorf("expected missing type error, got %v", err)
	}
}

func TestRoomStateWithUserAndWithout(t *testing.T) {
	s := RoomState{RoomCode: "AB3DE9F1", HostID: "h", Users: []UserInfo{{UserID: "h", Username: "Alice", IsHost: true, IsConnected: true}}}

	added := s.WithUser(UserInfo{UserID: "g", Username: "Bob", IsHost: true, IsConnected: true})
	if len(s.Users) != 1 {
		t.Fatal("WithUser modified the receiver")
	}
	if err := added.Validate(); err != nil {
		t.Fatalf("WithUser broke the host invariant: %v", err)
	}
	if u, ok := added.User("g"); !ok || u.IsHost || u.Username != "Bob" {
		t.Errorf("unexpected added member %+v", u)
	}

	renamed := added.WithUser(UserInfo{UserID: "g", Username: "Bobby"})
	if len(renamed.Users) != 2 {
		t.Errorf("WithUser duplicated an existing member: %+v", renamed.Users)
	}

	removed := added.Without("g")
	if removed.HasUser("g") || len(removed.Users) != 1 || !added.HasUser("g") {
		t.Errorf("unexpected Without result %+v (source %+v)", removed.Users, added.Users)
	}
}
