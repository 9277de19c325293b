/*
Package handler provides HTTP handler functions for room status checks and invite link resolution.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/logx"
	"listentogether/internal/pkg/randx"
	"listentogether/internal/pkg/resp"
	"listentogether/internal/protocol"
)

// RoomStatus is the public view of a live room. Member names are not exposed.
type RoomStatus struct {
	RoomCode   string `json:"roomCode"`
	Members    int    `json:"members"`
	Connected  int    `json:"connected"`
	InviteLink string `json:"inviteLink"`
}

// HandleRoomStatus reports whether the room named by the {code} URL parameter is live.
func HandleRoomStatus(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondRoomStatus(w, r, deps, chi.URLParam(r, "code"))
	}
}

// HandleInvite resolves an invite link (/listen?code=<ROOMCODE>) to the room's status.
func HandleInvite(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondRoomStatus(w, r, deps, r.URL.Query().Get("code"))
	}
}

func respondRoomStatus(w http.ResponseWriter, r *http.Request, deps *AppDeps, rawCode string) {
	code := randx.NormalizeRoomCode(rawCode)
	if !randx.IsValidRoomCode(code) {
		resp.RespondError(w, r, errs.NewError(errs.ErrInvalidRoomCode))
		return
	}

	room := deps.Manager.GetRoom(code)
	if room == nil || room.IsClosed() {
		resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
		return
	}

	link, err := protocol.InviteLink(deps.Config.InviteHost, code)
	if err != nil {
		logx.Error(err, "Failed to build invite link", "room_code", code)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return
	}

	state := room.Snapshot()
	status := RoomStatus{
		RoomCode:   code,
		Members:    len(state.Users),
		InviteLink: link,
	}
	for _, u := range state.Users {
		if u.IsConnected {
			status.Connected++
		}
	}

	resp.RespondSuccess(w, r, status)
}
