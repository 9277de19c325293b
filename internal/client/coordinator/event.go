package coordinator

import "listentogether/internal/protocol"

// EventType discriminates an Event.
type EventType string

const (
	RoomCreated        EventType = "ROOM_CREATED"
	JoinApproved       EventType = "JOIN_APPROVED"
	JoinRejected       EventType = "JOIN_REJECTED"
	UserKicked         EventType = "USER_KICKED"
	HostTransferred    EventType = "HOST_TRANSFERRED"
	SuggestionApproved EventType = "SUGGESTION_APPROVED"
	SuggestionRejected EventType = "SUGGESTION_REJECTED"
	RoomClosed         EventType = "ROOM_CLOSED"
	UserJoined         EventType = "USER_JOINED"
	UserLeft           EventType = "USER_LEFT"
	ServerError        EventType = "SERVER_ERROR"
)

// Event is a one-shot notification. Only the fields belonging to Type are set:
//
//	RoomCreated, JoinApproved   RoomCode
//	JoinRejected                RoomCode, Reason
//	UserKicked                  UserID, Reason
//	HostTransferred             PreviousHostID, NewHostID
//	SuggestionApproved          SuggestionID, Track
//	SuggestionRejected          SuggestionID, Reason
//	RoomClosed                  RoomCode, Reason
//	UserJoined, UserLeft        User
//	ServerError                 Code, Message, Request
type Event struct {
	Type EventType

	RoomCode string
	Reason   string
	UserID   string

	PreviousHostID string
	NewHostID      string

	SuggestionID string
	Track        protocol.TrackInfo

	User protocol.UserInfo

	Code    int
	Message string
	Request protocol.MessageType
}
