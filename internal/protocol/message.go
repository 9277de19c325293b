/*
Package protocol defines the Listen Together wire contract shared by the coordination
server and the client library: the message envelope, message types and their payloads,
and the replicated room state model.
*/
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"listentogether/internal/pkg/randx"
)

// MessageType discriminates the payload carried by a Message.
type MessageType string

// Client -> server requests.
const (
	TypeHello             MessageType = "HELLO"
	TypeCreateRoom        MessageType = "CREATE_ROOM"
	TypeJoinRoom          MessageType = "JOIN_ROOM"
	TypeCancelJoin        MessageType = "CANCEL_JOIN"
	TypeApproveJoin       MessageType = "APPROVE_JOIN"
	TypeRejectJoin        MessageType = "REJECT_JOIN"
	TypeKickUser          MessageType = "KICK_USER"
	TypeBlockUser         MessageType = "BLOCK_USER"
	TypeUnblockUser       MessageType = "UNBLOCK_USER"
	TypeTransferHost      MessageType = "TRANSFER_HOST"
	TypeSuggestTrack      MessageType = "SUGGEST_TRACK"
	TypeApproveSuggestion MessageType = "APPROVE_SUGGESTION"
	TypeRejectSuggestion  MessageType = "REJECT_SUGGESTION"
	TypeLeaveRoom         MessageType = "LEAVE_ROOM"
)

// Server -> client notifications.
const (
	TypeWelcome              MessageType = "WELCOME"
	TypeSessionToken         MessageType = "SESSION_TOKEN"
	TypeRoomCreated          MessageType = "ROOM_CREATED"
	TypeRoomState            MessageType = "ROOM_STATE"
	TypeJoinRequest          MessageType = "JOIN_REQUEST"
	TypeJoinRequestCancelled MessageType = "JOIN_REQUEST_CANCELLED"
	TypeJoinApproved         MessageType = "JOIN_APPROVED"
	TypeJoinRejected         MessageType = "JOIN_REJECTED"
	TypeUserJoined           MessageType = "USER_JOINED"
	TypeUserLeft             MessageType = "USER_LEFT"
	TypeUserKicked           MessageType = "USER_KICKED"
	TypeHostTransferred      MessageType = "HOST_TRANSFERRED"
	TypeSuggestionReceived   MessageType = "SUGGESTION_RECEIVED"
	TypeSuggestionCancelled  MessageType = "SUGGESTION_CANCELLED"
	TypeSuggestionApproved   MessageType = "SUGGESTION_APPROVED"
	TypeSuggestionRejected   MessageType = "SUGGESTION_REJECTED"
	TypeRoomClosed           MessageType = "ROOM_CLOSED"
	TypeError                MessageType = "ERROR"
)

// Message is the envelope of every frame exchanged over the connection.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	RoomCode  string          `json:"roomCode,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage builds a Message with a fresh ID and timestamp, marshaling payload into it.
// A nil payload produces a frame without a payload field.
func NewMessage(msgType MessageType, roomCode string, payload any) (Message, error) {
	msg := Message{
		ID:        randx.MessageID(),
		Type:      msgType,
		RoomCode:  roomCode,
		Timestamp: time.Now().UnixMilli(),
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		msg.Payload = raw
	}

	return msg, nil
}

// Encode builds a message and returns its JSON frame.
func Encode(msgType MessageType, roomCode string, payload any) ([]byte, error) {
	msg, err := NewMessage(msgType, roomCode, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

// Decode parses a raw frame into a Message envelope.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("decode frame: missing type")
	}
	return msg, nil
}

// DecodePayload unmarshals the message payload into dst.
func (m Message) DecodePayload(dst any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", m.Type, err)
	}
	return nil
}
