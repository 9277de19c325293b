/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, upgrading
the HTTP connection to WebSocket, and initiating the client lifecycle. The session itself
(identity, room membership) is established by the HELLO frame that follows the upgrade.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"listentogether/internal/app/room"
	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/limiter"
	"listentogether/internal/pkg/logx"
	"listentogether/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := room.NewClient(deps.Manager, conn, ip)

		go client.WritePump()

		logx.Debug("WebSocket connection established, awaiting HELLO")

		client.ReadPump()
	}
}
