package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxUsernameLength caps display names, in characters.
const MaxUsernameLength = 32

// CleanUsername trims a display name and reports whether it is usable:
// non-blank and at most MaxUsernameLength characters.
func CleanUsername(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxUsernameLength {
		return name, false
	}
	return name, true
}

// UserInfo is one member of a room.
type UserInfo struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	IsHost      bool   `json:"isHost"`
	IsConnected bool   `json:"isConnected"`
}

// RoomState is the replicated, host-authoritative view of a room.
// Users are kept in join order and are unique by UserID.
type RoomState struct {
	RoomCode string     `json:"roomCode"`
	HostID   string     `json:"hostId"`
	Users    []UserInfo `json:"users"`
}

// User looks up a member by ID.
func (s RoomState) User(userID string) (UserInfo, bool) {
	for _, u := range s.Users {
		if u.UserID == userID {
			return u, true
		}
	}
	return UserInfo{}, false
}

// HasUser reports whether userID is a member.
func (s RoomState) HasUser(userID string) bool {
	_, ok := s.User(userID)
	return ok
}

// IsHost reports whether userID is the current host.
func (s RoomState) IsHost(userID string) bool {
	return userID != "" && s.HostID == userID
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s RoomState) Clone() RoomState {
	out := s
	out.Users = append([]UserInfo(nil), s.Users...)
	return out
}

// WithHost returns a copy where newHostID holds the host role and every other member does not.
func (s RoomState) WithHost(newHostID string) RoomState {
	out := s.Clone()
	out.HostID = newHostID
	for i := range out.Users {
		out.Users[i].IsHost = out.Users[i].UserID == newHostID
	}
	return out
}

// WithUser returns a copy with u appended, or replacing the member with the same ID.
func (s RoomState) WithUser(u UserInfo) RoomState {
	out := s.Clone()
	u.IsHost = u.UserID == out.HostID
	for i := range out.Users {
		if out.Users[i].UserID == u.UserID {
			out.Users[i] = u
			return out
		}
	}
	out.Users = append(out.Users, u)
	return out
}

// Without returns a copy with userID removed.
func (s RoomState) Without(userID string) RoomState {
	out := s.Clone()
	out.Users = out.Users[:0]
	for _, u := range s.Users {
		if u.UserID != userID {
			out.Users = append(out.Users, u)
		}
	}
	return out
}

// Validate checks the single-host invariant: exactly one member has IsHost set
// and that member's ID equals HostID. User IDs must be unique.
func (s RoomState) Validate() error {
	hosts := 0
	seen := make(map[string]struct{}, len(s.Users))

	for _, u := range s.Users {
		if _, dup := seen[u.UserID]; dup {
			return fmt.Errorf("room %s: duplicate user %s", s.RoomCode, u.UserID)
		}
		seen[u.UserID] = struct{}{}

		if u.IsHost {
			hosts++
			if u.UserID != s.HostID {
				return fmt.Errorf("room %s: user %s flagged host but hostId is %s", s.RoomCode, u.UserID, s.HostID)
			}
		}
	}

	if hosts != 1 {
		return fmt.Errorf("room %s: expected exactly one host, found %d", s.RoomCode, hosts)
	}
	return nil
}
