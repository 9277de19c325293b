package room

import (
	"context"

	"listentogether/internal/pkg/auth/jwt"
	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/randx"
	"listentogether/internal/protocol"
)

// processInbound decodes one frame and routes it. Frames other than HELLO are refused
// until the handshake has bound a user.
func (c *Client) processInbound(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid frame")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat), "")
		return
	}

	if msg.Type == protocol.TypeHello {
		c.handleHello(msg)
		return
	}

	userID := c.UserID()
	if userID == "" {
		c.SendError(errs.NewError(errs.ErrHandshakeRequired), msg.Type)
		return
	}

	var customErr *errs.CustomError

	switch msg.Type {
	case protocol.TypeCreateRoom:
		customErr = c.handleCreateRoom(msg)
	case protocol.TypeJoinRoom:
		customErr = c.handleJoinRoom(msg)
	case protocol.TypeCancelJoin:
		if r := c.PendingRoom(); r != nil {
			r.cancelJoin(userID, c)
		}
	case protocol.TypeLeaveRoom:
		if r := c.Room(); r != nil {
			r.leave(userID)
		} else if r := c.PendingRoom(); r != nil {
			r.cancelJoin(userID, c)
		}
	case protocol.TypeUnblockUser:
		customErr = c.handleUnblock(msg)
	case protocol.TypeApproveJoin, protocol.TypeRejectJoin, protocol.TypeKickUser,
		protocol.TypeBlockUser, protocol.TypeTransferHost, protocol.TypeSuggestTrack,
		protocol.TypeApproveSuggestion, protocol.TypeRejectSuggestion:
		customErr = c.handleRoomRequest(msg)
	default:
		c.logger.Warn().Str("msg_type", string(msg.Type)).Msg("Client sent unsupported message type")
		customErr = errs.NewError(errs.ErrUnsupportedMessage)
	}

	if customErr != nil {
		c.SendError(customErr, msg.Type)
	}
}

// handleHello binds the connection to a user ID. A valid session token for the same ID
// lets the connection take over from an older one and, with Resume set, re-attach to the
// membership the server is still holding.
func (c *Client) handleHello(msg protocol.Message) {
	if c.UserID() != "" {
		c.SendError(errs.NewError(errs.ErrInvalidParams), msg.Type)
		return
	}

	var hello protocol.HelloPayload
	if err := msg.DecodePayload(&hello); err != nil || !randx.IsValidUserID(hello.UserID) {
		c.SendError(errs.NewError(errs.ErrInvalidParams), msg.Type)
		c.closeSend()
		return
	}

	authenticated := jwt.Owns(hello.Token, c.manager.opts.JWTSecret, hello.UserID)

	held := c.manager.membership(hello.UserID)
	if !authenticated && (held != nil || c.manager.hasLiveClient(hello.UserID)) {
		c.logger.Warn().Str("client_id", hello.UserID).Msg("HELLO rejected: user ID in use and no valid token.")
		c.SendError(errs.NewError(errs.ErrUnauthorized), msg.Type)
		c.closeSend()
		return
	}

	token, expiry, err := c.issueToken(hello.UserID)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to issue session token.")
		c.SendError(errs.NewError(errs.ErrUnknown, err), msg.Type)
		c.closeSend()
		return
	}

	c.bind(hello.UserID, expiry)
	if previous := c.manager.bindClient(hello.UserID, c); previous != nil && previous != c {
		previous.Kick("Session replaced by new connection.")
	}

	c.logger.Info().Str("client_id", hello.UserID).Bool("resume", hello.Resume).Msg("Session bound.")

	welcome := func(resumed bool) {
		c.sendMessage(protocol.TypeWelcome, "", protocol.WelcomePayload{
			UserID:  hello.UserID,
			Token:   token,
			Resumed: resumed,
		})
	}

	if held != nil {
		if hello.Resume && held.reattach(c, func() { welcome(true) }) {
			return
		}
		if hello.Resume {
			c.manager.clearMembership(hello.UserID, held)
		} else {
			held.leave(hello.UserID)
		}
	}

	welcome(false)
}

func (c *Client) handleCreateRoom(msg protocol.Message) *errs.CustomError {
	var p protocol.CreateRoomPayload
	if err := msg.DecodePayload(&p); err != nil {
		return errs.NewError(errs.ErrInvalidParams)
	}

	username, ok := protocol.CleanUsername(p.Username)
	if !ok {
		return errs.NewError(errs.ErrInvalidUsername)
	}
	if c.Room() != nil {
		return errs.NewError(errs.ErrAlreadyInRoom)
	}
	if c.PendingRoom() != nil {
		return errs.NewError(errs.ErrRequestInFlight)
	}
	if !c.createLimiter.Allow() {
		return errs.NewError(errs.ErrRateLimitExceeded)
	}

	_, customErr := c.manager.CreateRoom(c, username)
	return customErr
}

func (c *Client) handleJoinRoom(msg protocol.Message) *errs.CustomError {
	var p protocol.JoinRoomPayload
	if err := msg.DecodePayload(&p); err != nil {
		return errs.NewError(errs.ErrInvalidParams)
	}

	username, ok := protocol.CleanUsername(p.Username)
	if !ok {
		return errs.NewError(errs.ErrInvalidUsername)
	}

	code := randx.NormalizeRoomCode(p.RoomCode)
	rejectInvalid := func() *errs.CustomError {
		c.sendMessage(protocol.TypeJoinRejected, code, protocol.JoinRejectedPayload{RoomCode: code, Reason: ReasonInvalidRoomCode})
		return nil
	}

	if !randx.IsValidRoomCode(code) {
		return rejectInvalid()
	}
	if c.Room() != nil {
		return errs.NewError(errs.ErrAlreadyInRoom)
	}

	r := c.manager.GetRoom(code)
	if r == nil {
		return rejectInvalid()
	}
	if pending := c.PendingRoom(); pending != nil && pending != r {
		return errs.NewError(errs.ErrRequestInFlight)
	}

	return r.requestJoin(c, username)
}

func (c *Client) handleUnblock(msg protocol.Message) *errs.CustomError {
	var p protocol.UsernamePayload
	if err := msg.DecodePayload(&p); err != nil || p.Username == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := c.manager.store.Unblock(ctx, c.UserID(), p.Username); err != nil {
		c.logger.Error().Err(err).Msg("Failed to remove block.")
		return errs.NewError(errs.ErrStoreFailure)
	}
	return nil
}

// handleRoomRequest routes requests that act on the sender's current room.
func (c *Client) handleRoomRequest(msg protocol.Message) *errs.CustomError {
	r := c.Room()
	if r == nil {
		return errs.NewError(errs.ErrNotInRoom)
	}
	userID := c.UserID()

	switch msg.Type {
	case protocol.TypeApproveJoin, protocol.TypeRejectJoin, protocol.TypeKickUser, protocol.TypeTransferHost:
		var p protocol.TargetPayload
		if err := msg.DecodePayload(&p); err != nil || p.UserID == "" {
			return errs.NewError(errs.ErrInvalidParams)
		}
		switch msg.Type {
		case protocol.TypeApproveJoin:
			return r.approveJoin(userID, p.UserID)
		case protocol.TypeRejectJoin:
			return r.rejectJoin(userID, p.UserID, p.Reason)
		case protocol.TypeKickUser:
			return r.kick(userID, p.UserID, p.Reason)
		default:
			return r.transferHost(userID, p.UserID)
		}

	case protocol.TypeBlockUser:
		var p protocol.UsernamePayload
		if err := msg.DecodePayload(&p); err != nil {
			return errs.NewError(errs.ErrInvalidParams)
		}
		if _, ok := protocol.CleanUsername(p.Username); !ok {
			return errs.NewError(errs.ErrInvalidUsername)
		}
		return r.block(userID, p.Username)

	case protocol.TypeSuggestTrack:
		var p protocol.SuggestTrackPayload
		if err := msg.DecodePayload(&p); err != nil {
			return errs.NewError(errs.ErrInvalidParams)
		}
		return r.suggest(userID, p.Track)

	case protocol.TypeApproveSuggestion, protocol.TypeRejectSuggestion:
		var p protocol.SuggestionTargetPayload
		if err := msg.DecodePayload(&p); err != nil || p.SuggestionID == "" {
			return errs.NewError(errs.ErrInvalidParams)
		}
		if msg.Type == protocol.TypeApproveSuggestion {
			return r.approveSuggestion(userID, p.SuggestionID)
		}
		return r.rejectSuggestion(userID, p.SuggestionID, p.Reason)
	}

	return errs.NewError(errs.ErrUnsupportedMessage)
}
