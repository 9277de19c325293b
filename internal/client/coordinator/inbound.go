package coordinator

import (
	"context"

	"listentogether/internal/pkg/errs"
	"listentogether/internal/protocol"
)

// handle applies one server frame. It runs on the connection's reader goroutine,
// so frames are applied in the order the server sent them.
func (c *Coordinator) handle(msg protocol.Message) {
	var err error

	switch msg.Type {
	case protocol.TypeWelcome:
		var p protocol.WelcomePayload
		if err = msg.DecodePayload(&p); err == nil {
			c.onWelcome(p)
		}
	case protocol.TypeSessionToken:
		var p protocol.SessionTokenPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.mu.Lock()
			c.token = p.Token
			c.mu.Unlock()
		}
	case protocol.TypeRoomCreated:
		var p protocol.RoomCreatedPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.onRoomCreated(p)
		}
	case protocol.TypeRoomState:
		var p protocol.RoomState
		if err = msg.DecodePayload(&p); err == nil {
			c.onRoomState(p)
		}
	case protocol.TypeJoinRequest:
		var p protocol.JoinRequestPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.onJoinRequest(p)
		}
	case protocol.TypeJoinRequestCancelled:
		var p protocol.TargetPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.mu.Lock()
			c.removeJoinLocked(p.UserID)
			c.publishAndUnlock()
		}
	case protocol.TypeJoinApproved:
		var p protocol.JoinApprovedPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.onJoinApproved(p)
		}
	case protocol.TypeJoinRejected:
		var p protocol.JoinRejectedPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.onJoinRejected(p)
		}
	case protocol.TypeUserJoined:
		var p protocol.UserEventPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.events.publish(Event{Type: UserJoined, User: p.User})
		}
	case protocol.TypeUserLeft:
		var p protocol.UserEventPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.events.publish(Event{Type: UserLeft, User: p.User})
		}
	case protocol.TypeUserKicked:
		var p protocol.UserKickedPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.onUserKicked(p)
		}
	case protocol.TypeHostTransferred:
		var p protocol.HostTransferredPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.onHostTransferred(p)
		}
	case protocol.TypeSuggestionReceived:
		var p protocol.SuggestionReceivedPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.onSuggestionReceived(p)
		}
	case protocol.TypeSuggestionCancelled:
		var p protocol.SuggestionTargetPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.mu.Lock()
			c.removeSuggestionLocked(p.SuggestionID)
			c.publishAndUnlock()
		}
	case protocol.TypeSuggestionApproved:
		var p protocol.SuggestionApprovedPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.events.publish(Event{Type: SuggestionApproved, SuggestionID: p.SuggestionID, Track: p.Track})
		}
	case protocol.TypeSuggestionRejected:
		var p protocol.SuggestionTargetPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.events.publish(Event{Type: SuggestionRejected, SuggestionID: p.SuggestionID, Reason: p.Reason})
		}
	case protocol.TypeRoomClosed:
		var p protocol.RoomClosedPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.onRoomClosed(p)
		}
	case protocol.TypeError:
		var p protocol.ErrorPayload
		if err = msg.DecodePayload(&p); err == nil {
			c.onError(p)
		}
	default:
		c.logger.Debug().Str("msg_type", string(msg.Type)).Msg("Ignoring unknown frame.")
	}

	if err != nil {
		c.logger.Warn().Err(err).Str("msg_type", string(msg.Type)).Msg("Dropping malformed frame.")
	}
}

// onWelcome records the session token. A resumed host gets its pending requests
// replayed right after, so the local copies are dropped first. A session that was
// not resumed means the server no longer holds our room.
func (c *Coordinator) onWelcome(p protocol.WelcomePayload) {
	c.mu.Lock()
	c.token = p.Token

	if p.Resumed {
		c.clearPendingLocked()
	} else if c.room != nil {
		code := c.room.RoomCode
		c.clearRoomLocked()
		c.events.publish(Event{Type: RoomClosed, RoomCode: code, Reason: ReasonMembershipLost})
		c.logger.Warn().Str("room_code", code).Msg("Room membership was not resumed.")
	}

	c.publishAndUnlock()
}

func (c *Coordinator) onRoomCreated(p protocol.RoomCreatedPayload) {
	c.mu.Lock()
	if c.wait == nil || c.wait.kind != protocol.TypeCreateRoom {
		c.mu.Unlock()
		c.leaveUnwanted(p.RoomCode)
		return
	}

	c.setRoomLocked(p.State)
	c.clearPendingLocked()
	c.events.publish(Event{Type: RoomCreated, RoomCode: p.RoomCode})
	c.resolveLocked(protocol.TypeCreateRoom, outcome{state: p.State.Clone()})
	c.publishAndUnlock()

	c.logger.Info().Str("room_code", p.RoomCode).Msg("Room created.")
}

func (c *Coordinator) onJoinApproved(p protocol.JoinApprovedPayload) {
	c.mu.Lock()
	if c.wait == nil || c.wait.kind != protocol.TypeJoinRoom {
		c.mu.Unlock()
		c.leaveUnwanted(p.RoomCode)
		return
	}

	c.setRoomLocked(p.State)
	c.clearPendingLocked()
	c.events.publish(Event{Type: JoinApproved, RoomCode: p.RoomCode})
	c.resolveLocked(protocol.TypeJoinRoom, outcome{state: p.State.Clone()})
	c.publishAndUnlock()

	c.logger.Info().Str("room_code", p.RoomCode).Msg("Joined room.")
}

// leaveUnwanted leaves a room the server admitted us to after the request was abandoned.
func (c *Coordinator) leaveUnwanted(code string) {
	c.logger.Info().Str("room_code", code).Msg("Admitted after the request was abandoned. Leaving.")

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := c.send(ctx, protocol.TypeLeaveRoom, nil); err != nil {
		c.logger.Debug().Err(err).Msg("LEAVE_ROOM failed.")
	}
}

func (c *Coordinator) onJoinRejected(p protocol.JoinRejectedPayload) {
	c.mu.Lock()
	c.events.publish(Event{Type: JoinRejected, RoomCode: p.RoomCode, Reason: p.Reason})
	c.resolveLocked(protocol.TypeJoinRoom, outcome{err: errs.NewError(errs.ErrJoinRejected, p.Reason)})
	c.mu.Unlock()
}

func (c *Coordinator) onRoomState(s protocol.RoomState) {
	c.mu.Lock()
	if c.room == nil || c.room.RoomCode != s.RoomCode {
		c.mu.Unlock()
		return
	}

	c.setRoomLocked(s)
	if !s.IsHost(c.userID) {
		c.clearPendingLocked()
	}
	c.publishAndUnlock()
}

func (c *Coordinator) onJoinRequest(p protocol.JoinRequestPayload) {
	c.mu.Lock()
	if c.room == nil || !c.room.IsHost(c.userID) || c.room.HasUser(p.UserID) {
		c.mu.Unlock()
		return
	}

	c.removeJoinLocked(p.UserID)
	c.joins = append(c.joins, p)
	c.joinsDirty = true
	c.publishAndUnlock()
}

func (c *Coordinator) onSuggestionReceived(p protocol.SuggestionReceivedPayload) {
	c.mu.Lock()
	if c.room == nil || !c.room.IsHost(c.userID) {
		c.mu.Unlock()
		return
	}

	c.removeSuggestionLocked(p.SuggestionID)
	c.suggestions = append(c.suggestions, p)
	c.suggestionsDirty = true
	c.publishAndUnlock()
}

func (c *Coordinator) onUserKicked(p protocol.UserKickedPayload) {
	c.mu.Lock()
	if p.UserID == c.userID {
		c.clearRoomLocked()
		c.logger.Info().Str("reason", p.Reason).Msg("Kicked from room.")
	}
	c.events.publish(Event{Type: UserKicked, UserID: p.UserID, Reason: p.Reason})
	c.publishAndUnlock()
}

func (c *Coordinator) onHostTransferred(p protocol.HostTransferredPayload) {
	c.mu.Lock()
	if c.room != nil {
		c.setRoomLocked(c.room.WithHost(p.NewHostID))
		if p.NewHostID != c.userID {
			c.clearPendingLocked()
		}
	}
	c.events.publish(Event{Type: HostTransferred, PreviousHostID: p.PreviousHostID, NewHostID: p.NewHostID})
	c.publishAndUnlock()
}

func (c *Coordinator) onRoomClosed(p protocol.RoomClosedPayload) {
	c.mu.Lock()
	if c.room != nil && (p.RoomCode == "" || c.room.RoomCode == p.RoomCode) {
		c.clearRoomLocked()
	}
	c.events.publish(Event{Type: RoomClosed, RoomCode: p.RoomCode, Reason: p.Reason})
	c.publishAndUnlock()
}

// onError surfaces a rejected request. Failures of CREATE_ROOM and JOIN_ROOM also
// resolve the caller waiting on them.
func (c *Coordinator) onError(p protocol.ErrorPayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events.publish(Event{Type: ServerError, Code: p.Code, Message: p.Message, Request: p.Request})

	switch p.Request {
	case protocol.TypeCreateRoom, protocol.TypeJoinRoom:
		c.resolveLocked(p.Request, outcome{err: errs.FromWire(p.Code, p.Message)})
	}

	c.logger.Warn().Int("code", p.Code).Str("request", string(p.Request)).Str("message", p.Message).Msg("Server rejected request.")
}
