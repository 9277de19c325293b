/*
Package handler provides HTTP handler functions for managing the caller's block list.

Every handler here runs behind jwt.RequireSession: the session token issued in WELCOME
identifies the host whose list is read or changed.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"listentogether/internal/app/moderation"
	"listentogether/internal/pkg/auth/jwt"
	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/logx"
	"listentogether/internal/pkg/req"
	"listentogether/internal/pkg/resp"
	"listentogether/internal/protocol"
)

type BlockUserInput struct {
	Username string `json:"username"`
}

// HandleListBlocks returns the caller's block list, oldest first.
func HandleListBlocks(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		entries, err := deps.Store.List(r.Context(), identity.ID)
		if err != nil {
			logx.Error(err, "Failed to list blocks", "client_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreFailure))
			return
		}
		if entries == nil {
			entries = []moderation.BlockEntry{}
		}

		resp.RespondSuccess(w, r, map[string]any{
			"blocks": entries,
		})
	}
}

// HandleBlockUser adds a username to the caller's block list.
func HandleBlockUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		var input BlockUserInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		username, ok := protocol.CleanUsername(input.Username)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		if err := deps.Store.Block(r.Context(), identity.ID, username); err != nil {
			logx.Error(err, "Failed to store block", "client_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreFailure))
			return
		}

		logx.Info("User blocked via API", "client_id", identity.ID)
		resp.RespondSuccess(w, r, map[string]any{
			"username": moderation.NormalizeUsername(username),
		})
	}
}

// HandleUnblockUser removes the {username} URL parameter from the caller's block list.
func HandleUnblockUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)

		username, ok := protocol.CleanUsername(chi.URLParam(r, "username"))
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		if err := deps.Store.Unblock(r.Context(), identity.ID, username); err != nil {
			logx.Error(err, "Failed to remove block", "client_id", identity.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrStoreFailure))
			return
		}

		resp.RespondSuccess(w, r, nil)
	}
}
