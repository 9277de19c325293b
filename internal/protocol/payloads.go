package protocol

// HelloPayload opens a session. Token is the last session token received, if any.
// With Resume set, a valid token for the same UserID re-attaches the connection to the
// room membership the server is still holding; without it, held membership is given up.
type HelloPayload struct {
	UserID string `json:"userId"`
	Token  string `json:"token,omitempty"`
	Resume bool   `json:"resume,omitempty"`
}

// WelcomePayload answers HELLO.
type WelcomePayload struct {
	UserID  string `json:"userId"`
	Token   string `json:"token"`
	Resumed bool   `json:"resumed"`
}

// SessionTokenPayload carries a refreshed session token.
type SessionTokenPayload struct {
	Token string `json:"token"`
}

// CreateRoomPayload requests a new room hosted by the sender.
type CreateRoomPayload struct {
	Username string `json:"username"`
}

// RoomCreatedPayload confirms a new room to its host.
type RoomCreatedPayload struct {
	RoomCode string    `json:"roomCode"`
	State    RoomState `json:"state"`
}

// JoinRoomPayload asks to join a room.
type JoinRoomPayload struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

// JoinRequestPayload is a pending applicant, delivered to the host.
type JoinRequestPayload struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	RequestedAt int64  `json:"requestedAt"`
}

// TargetPayload names the subject of a moderation or join decision.
type TargetPayload struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

// UsernamePayload carries a username for block/unblock.
type UsernamePayload struct {
	Username string `json:"username"`
}

// JoinApprovedPayload admits the applicant and hands over the current room state.
type JoinApprovedPayload struct {
	RoomCode string    `json:"roomCode"`
	State    RoomState `json:"state"`
}

// JoinRejectedPayload denies a join attempt.
type JoinRejectedPayload struct {
	RoomCode string `json:"roomCode,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// UserEventPayload reports a membership change.
type UserEventPayload struct {
	User UserInfo `json:"user"`
}

// UserKickedPayload tells a member they were removed by the host.
type UserKickedPayload struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

// HostTransferredPayload announces a change of host.
type HostTransferredPayload struct {
	PreviousHostID string `json:"previousHostId"`
	NewHostID      string `json:"newHostId"`
}

// TrackInfo is an opaque reference to a playable track.
type TrackInfo struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist,omitempty"`
	Album        string `json:"album,omitempty"`
	DurationMs   int64  `json:"durationMs,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// SuggestTrackPayload proposes a track to the host.
type SuggestTrackPayload struct {
	Track TrackInfo `json:"track"`
}

// SuggestionReceivedPayload is a pending suggestion, delivered to the host.
type SuggestionReceivedPayload struct {
	SuggestionID string    `json:"suggestionId"`
	FromUserID   string    `json:"fromUserId"`
	FromUsername string    `json:"fromUsername"`
	TrackInfo    TrackInfo `json:"trackInfo"`
	SuggestedAt  int64     `json:"suggestedAt"`
}

// SuggestionTargetPayload names a suggestion for a host decision or cancellation.
type SuggestionTargetPayload struct {
	SuggestionID string `json:"suggestionId"`
	Reason       string `json:"reason,omitempty"`
}

// SuggestionApprovedPayload tells the submitter their track was accepted.
type SuggestionApprovedPayload struct {
	SuggestionID string    `json:"suggestionId"`
	Track        TrackInfo `json:"track"`
}

// RoomClosedPayload announces that the room no longer exists.
type RoomClosedPayload struct {
	RoomCode string `json:"roomCode"`
	Reason   string `json:"reason,omitempty"`
}

// ErrorPayload reports a rejected request.
type ErrorPayload struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Request MessageType `json:"request,omitempty"`
}
