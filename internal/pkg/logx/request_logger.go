/*
Package logx provides a structured logging wrapper based on zerolog.

This file contains the HTTP request logging middleware. Client addresses are
anonymized before they reach the log.
*/
package logx

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// quietPaths are logged at Debug level only.
var quietPaths = map[string]struct{}{
	"/health": {},
}

// anonymizeIP keeps the network part of an address: the first three octets of IPv4,
// the first 64 bits of IPv6.
func anonymizeIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}

	ip := net.ParseIP(addr)
	switch {
	case ip == nil:
		return "unknown_ip"
	case ip.IsLoopback():
		return "127.0.0.1"
	case ip.To4() != nil:
		return ip.Mask(net.CIDRMask(24, 32)).String()
	default:
		return ip.Mask(net.CIDRMask(64, 128)).String()
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// RequestLogger returns middleware that attaches a request-scoped logger to the context
// and logs each request on completion. WebSocket upgrades are logged when the session
// ends, with its duration.
func RequestLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := Logger().With().
				Str("component", "http").
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_ip", anonymizeIP(r.RemoteAddr)).
				Str("request_method", r.Method).
				Str("request_uri", r.RequestURI).
				Logger()

			r = r.WithContext(logger.WithContext(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			next.ServeHTTP(ww, r)

			// A hijacked upgrade never writes a status through ww.
			if isWebSocketUpgrade(r) && ww.Status() == 0 {
				logger.Info().Dur("session", time.Since(start)).Msg("WebSocket session ended")
				return
			}

			levelFor(&logger, r, ww.Status()).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Msg("Request completed")
		})
	}
}

func levelFor(logger *zerolog.Logger, r *http.Request, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return logger.Error()
	case status >= 400:
		return logger.Warn()
	}
	if _, ok := quietPaths[r.URL.Path]; ok {
		return logger.Debug()
	}
	return logger.Info()
}
