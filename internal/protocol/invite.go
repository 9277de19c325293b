package protocol

import (
	"fmt"
	"net/url"

	"listentogether/internal/pkg/randx"
)

// InvitePath is the deep-link path consumed by the app's navigation.
const InvitePath = "/listen"

// InviteLink renders https://<host>/listen?code=<ROOMCODE> for a room code.
// The code is normalized first; an invalid code is an error.
func InviteLink(host, roomCode string) (string, error) {
	code := randx.NormalizeRoomCode(roomCode)
	if !randx.IsValidRoomCode(code) {
		return "", fmt.Errorf("invite link: invalid room code %q", roomCode)
	}
	if host == "" {
		return "", fmt.Errorf("invite link: empty host")
	}

	u := url.URL{
		Scheme:   "https",
		Host:     host,
		Path:     InvitePath,
		RawQuery: url.Values{"code": []string{code}}.Encode(),
	}
	return u.String(), nil
}

// ParseInviteLink extracts the canonical room code from an invite link.
func ParseInviteLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("invite link: %w", err)
	}
	if u.Path != InvitePath {
		return "", fmt.Errorf("invite link: unexpected path %q", u.Path)
	}

	code := randx.NormalizeRoomCode(u.Query().Get("code"))
	if !randx.IsValidRoomCode(code) {
		return "", fmt.Errorf("invite link: invalid room code %q", u.Query().Get("code"))
	}
	return code, nil
}
