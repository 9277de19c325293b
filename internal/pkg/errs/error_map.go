/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses, ERROR frames and client-side error reporting.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnsupportedMessage:   {Code: ErrUnsupportedMessage, Message: "Unsupported message type."},

	// 2xxx: Room, Join and Suggestion Workflow Errors
	ErrInvalidRoomCode: {Code: ErrInvalidRoomCode, Message: "invalid room code"},
	ErrRoomCodeExists:  {Code: ErrRoomCodeExists, Message: "Room code already exists."},
	ErrRoomNotFound:    {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrAlreadyInRoom:   {Code: ErrAlreadyInRoom, Message: "You are already in a room."},
	ErrNotInRoom:       {Code: ErrNotInRoom, Message: "You are not in a room."},
	ErrRequestInFlight: {Code: ErrRequestInFlight, Message: "A room request is already in progress."},
	ErrJoinRejected:    {Code: ErrJoinRejected, Message: "Join request denied: %s"},
	ErrUserBlocked:     {Code: ErrUserBlocked, Message: "blocked by host"},
	ErrStaleRequest:    {Code: ErrStaleRequest, Message: "Request is no longer pending."},
	ErrInvalidTarget:   {Code: ErrInvalidTarget, Message: "Target user is not a connected room member."},
	ErrInvalidUsername: {Code: ErrInvalidUsername, Message: "Invalid username."},

	// 3xxx: User, Session, and Security Errors
	ErrPermissionDenied:  {Code: ErrPermissionDenied, Message: "Only the host can do that.", Status: http.StatusForbidden},
	ErrHandshakeRequired: {Code: ErrHandshakeRequired, Message: "Session handshake required."},
	ErrSessionKicked:     {Code: ErrSessionKicked, Message: "You were signed in on another device."},
	ErrUnauthorized:      {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	// 4xxx: Connection Errors
	ErrConnectionFailure:   {Code: ErrConnectionFailure, Message: "Connection failed."},
	ErrConnectionExhausted: {Code: ErrConnectionExhausted, Message: "Unable to reconnect. Tap reconnect to try again."},
	ErrNotConnected:        {Code: ErrNotConnected, Message: "Not connected."},

	// 5xxx: Internal System Errors
	ErrUnknown:            {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreFailure:       {Code: ErrStoreFailure, Message: "Moderation service unavailable.", Status: http.StatusServiceUnavailable},
	ErrServerShuttingDown: {Code: ErrServerShuttingDown, Message: "Server is shutting down.", Status: http.StatusServiceUnavailable},
}
