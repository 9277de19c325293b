/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally (server and client library) and on the wire in ERROR frames.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrUnsupportedMessage indicates that a WebSocket frame carried an unknown message type.
	ErrUnsupportedMessage = 1008
)

// 2xxx: Room, Join and Suggestion Workflow Errors
const (
	// ErrInvalidRoomCode indicates a room code that fails local format validation.
	ErrInvalidRoomCode = 2101

	// ErrRoomCodeExists indicates that a generated room code collided with an active room.
	ErrRoomCodeExists = 2102

	// ErrRoomNotFound indicates that the room code does not belong to an active room.
	ErrRoomNotFound = 2103

	// ErrAlreadyInRoom indicates the caller is already a member of a room.
	ErrAlreadyInRoom = 2104

	// ErrNotInRoom indicates the operation requires room membership.
	ErrNotInRoom = 2105

	// ErrRequestInFlight indicates a create or join request is already awaiting its answer.
	ErrRequestInFlight = 2106

	// ErrJoinRejected indicates the host (or a block entry) denied a join request.
	ErrJoinRejected = 2110

	// ErrUserBlocked indicates the applicant is on the host's block list.
	ErrUserBlocked = 2111

	// ErrStaleRequest indicates the join request or suggestion is no longer pending.
	ErrStaleRequest = 2120

	// ErrInvalidTarget indicates the target user is not a valid subject for the operation.
	ErrInvalidTarget = 2121

	// ErrInvalidUsername indicates a blank or oversized username.
	ErrInvalidUsername = 2130
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrPermissionDenied indicates a non-host attempted a host-only operation.
	ErrPermissionDenied = 3001

	// ErrHandshakeRequired indicates a frame arrived before the HELLO handshake.
	ErrHandshakeRequired = 3002

	// ErrSessionKicked indicates that the current client connection has been terminated.
	ErrSessionKicked = 3004

	// ErrUnauthorized indicates a missing or invalid session token.
	ErrUnauthorized = 3005
)

// 4xxx: Connection Errors (client library)
const (
	// ErrConnectionFailure indicates a transport-level failure.
	ErrConnectionFailure = 4001

	// ErrConnectionExhausted indicates the reconnect budget has been used up.
	ErrConnectionExhausted = 4002

	// ErrNotConnected indicates an operation that requires a CONNECTED transport.
	ErrNotConnected = 4003
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStoreFailure indicates the moderation store could not be read or written.
	ErrStoreFailure = 5001

	// ErrServerShuttingDown indicates the server no longer accepts new rooms.
	ErrServerShuttingDown = 5002
)
