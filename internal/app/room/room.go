/*
Package room contains the coordination server: live rooms, their members and pending
requests, and the WebSocket clients that drive them.

This file defines the Room struct, the authority for one listening session. Every
mutation (membership, host role, pending join requests and suggestions) happens under
the room lock, so concurrent requests are applied in a single total order.
*/
package room

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"listentogether/internal/app/moderation"
	"listentogether/internal/pkg/errs"
	"listentogether/internal/pkg/logx"
	"listentogether/internal/pkg/randx"
	"listentogether/internal/protocol"
)

const (
	// store calls made on behalf of a single frame.
	storeTimeout = 5 * time.Second

	// bounds of the pending-expiry scan interval.
	minExpiryInterval = 10 * time.Millisecond
	maxExpiryInterval = 5 * time.Second
)

// Rejection and cancellation reasons sent to clients.
const (
	ReasonInvalidRoomCode = "invalid room code"
	ReasonRejectedByHost  = "rejected by host"
	ReasonJoinExpired     = "join request expired"
	ReasonSuggestionExp   = "suggestion expired"
	ReasonRoomClosed      = "room closed"
	ReasonHostLeft        = "host left"
	ReasonWithdrawn       = "withdrawn"
	ReasonSubmitterLeft   = "submitter left"
)

type member struct {
	info   protocol.UserInfo
	client *Client
	grace  *time.Timer
}

type pendingJoin struct {
	userID      string
	username    string
	client      *Client
	requestedAt time.Time
}

type pendingSuggestion struct {
	payload   protocol.SuggestionReceivedPayload
	createdAt time.Time
}

// Room struct represents a single, active listening session.
type Room struct {
	// Code is the 8-character room code.
	Code string

	manager *Manager

	// mu protects every field below.
	mu sync.Mutex

	hostID  string
	members map[string]*member

	// order keeps member IDs in join order; the host successor is the earliest connected one.
	order []string

	joins       map[string]*pendingJoin
	suggestions map[string]*pendingSuggestion

	// authorities holds every user ID that has held the host role in this room.
	// Their block lists all apply to new applicants.
	authorities map[string]struct{}

	// blockEpoch advances whenever a block is stored or a new identity gains authority.
	// An applicant checked against an older epoch is checked again.
	blockEpoch uint64

	closed   bool
	stopChan chan struct{}
	done     chan struct{}

	logger zerolog.Logger
}

func newRoom(code string, m *Manager) *Room {
	return &Room{
		Code:        code,
		manager:     m,
		members:     make(map[string]*member),
		joins:       make(map[string]*pendingJoin),
		suggestions: make(map[string]*pendingSuggestion),
		authorities: make(map[string]struct{}),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logx.Logger().With().Str("room_code", code).Logger(),
	}
}

// Run drives pending-request expiry until the room closes, then asks the Manager to forget it.
func (r *Room) Run() {
	ticker := time.NewTicker(expiryInterval(r.manager.opts.PendingTTL))

	defer func() {
		ticker.Stop()
		r.logger.Info().Msg("Room Run loop finished. Notifying Manager for cleanup.")
		r.manager.cleanup <- r.Code
		close(r.done)
	}()

	for {
		select {
		case now := <-ticker.C:
			r.expirePending(now)

		case <-r.stopChan:
			return
		}
	}
}

func expiryInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < minExpiryInterval {
		return minExpiryInterval
	}
	if interval > maxExpiryInterval {
		return maxExpiryInterval
	}
	return interval
}

// Close ends the room for everyone.
func (r *Room) Close(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked(reason)
}

// Snapshot returns the current room state.
func (r *Room) Snapshot() protocol.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

// IsClosed reports whether the room has ended.
func (r *Room) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// PendingJoinCount returns the number of applicants awaiting the host.
func (r *Room) PendingJoinCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.joins)
}

// PendingSuggestionCount returns the number of suggestions awaiting the host.
func (r *Room) PendingSuggestionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.suggestions)
}

// addHost installs the creating client as the first member and host.
func (r *Room) addHost(c *Client, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := c.UserID()
	r.hostID = userID
	r.authorities[userID] = struct{}{}
	r.addMemberLocked(userID, username, c)

	c.sendMessage(protocol.TypeRoomCreated, r.Code, protocol.RoomCreatedPayload{
		RoomCode: r.Code,
		State:    r.stateLocked(),
	})
}

// requestJoin registers c as an applicant unless the username is blocked by any
// identity that has hosted this room. A repeated request from the same user is absorbed.
func (r *Room) requestJoin(c *Client, username string) *errs.CustomError {
	userID := c.UserID()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		c.sendMessage(protocol.TypeJoinRejected, r.Code, protocol.JoinRejectedPayload{RoomCode: r.Code, Reason: ReasonInvalidRoomCode})
		return nil
	}
	if _, ok := r.members[userID]; ok {
		r.mu.Unlock()
		return errs.NewError(errs.ErrAlreadyInRoom)
	}

	for {
		hostIDs := r.authorityIDsLocked()
		epoch := r.blockEpoch
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		blocked, err := r.manager.store.IsBlocked(ctx, username, hostIDs...)
		cancel()
		if err != nil {
			r.logger.Error().Err(err).Str("client_id", userID).Msg("Block list lookup failed.")
			return errs.NewError(errs.ErrStoreFailure)
		}
		if blocked {
			r.logger.Info().Str("client_id", userID).Str("username", username).Msg("Join rejected: user is blocked.")
			c.sendMessage(protocol.TypeJoinRejected, r.Code, protocol.JoinRejectedPayload{
				RoomCode: r.Code,
				Reason:   errs.NewError(errs.ErrUserBlocked).Message,
			})
			return nil
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			c.sendMessage(protocol.TypeJoinRejected, r.Code, protocol.JoinRejectedPayload{RoomCode: r.Code, Reason: ReasonInvalidRoomCode})
			return nil
		}
		if _, ok := r.members[userID]; ok {
			r.mu.Unlock()
			return errs.NewError(errs.ErrAlreadyInRoom)
		}
		if r.blockEpoch == epoch {
			break
		}
	}
	defer r.mu.Unlock()

	if existing, ok := r.joins[userID]; ok {
		if existing.client != c {
			existing.client.clearPending(r)
		}
		existing.client = c
		existing.username = username
		c.setPending(r)
		r.logger.Debug().Str("client_id", userID).Msg("Duplicate join request absorbed.")
		return nil
	}

	pj := &pendingJoin{userID: userID, username: username, client: c, requestedAt: time.Now()}
	r.joins[userID] = pj
	c.setPending(r)

	r.logger.Info().Str("client_id", userID).Int("pending", len(r.joins)).Msg("Join request pending.")

	if host := r.hostClientLocked(); host != nil {
		host.sendMessage(protocol.TypeJoinRequest, r.Code, joinRequestPayload(pj))
	}
	return nil
}

// cancelJoin withdraws userID's request. With c set, only a request made by that
// connection is withdrawn.
func (r *Room) cancelJoin(userID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pj, ok := r.joins[userID]
	if !ok || (c != nil && pj.client != c) {
		return
	}

	delete(r.joins, userID)
	pj.client.clearPending(r)
	r.notifyHostLocked(protocol.TypeJoinRequestCancelled, protocol.TargetPayload{UserID: userID, Reason: ReasonWithdrawn})

	r.logger.Info().Str("client_id", userID).Msg("Join request withdrawn.")
}

// approveJoin admits a pending applicant. Approving a request that is no longer
// pending changes nothing.
func (r *Room) approveJoin(callerID, targetID string) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID != r.hostID {
		return errs.NewError(errs.ErrPermissionDenied)
	}

	pj, ok := r.joins[targetID]
	if !ok {
		r.logger.Debug().Str("client_id", targetID).Msg("Approve ignored: request not pending.")
		return nil
	}
	delete(r.joins, targetID)

	pj.client.clearPending(r)
	m := r.addMemberLocked(targetID, pj.username, pj.client)
	state := r.stateLocked()

	pj.client.sendMessage(protocol.TypeJoinApproved, r.Code, protocol.JoinApprovedPayload{RoomCode: r.Code, State: state})
	r.broadcastLocked(protocol.TypeUserJoined, protocol.UserEventPayload{User: r.userInfoLocked(m)}, targetID)
	r.broadcastLocked(protocol.TypeRoomState, state, targetID)

	r.logger.Info().Str("client_id", targetID).Int("total_users", len(r.members)).Msg("Join request approved.")
	return nil
}

// rejectJoin denies a pending applicant.
func (r *Room) rejectJoin(callerID, targetID, reason string) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID != r.hostID {
		return errs.NewError(errs.ErrPermissionDenied)
	}

	pj, ok := r.joins[targetID]
	if !ok {
		r.logger.Debug().Str("client_id", targetID).Msg("Reject ignored: request not pending.")
		return nil
	}
	delete(r.joins, targetID)

	if reason == "" {
		reason = ReasonRejectedByHost
	}
	pj.client.clearPending(r)
	pj.client.sendMessage(protocol.TypeJoinRejected, r.Code, protocol.JoinRejectedPayload{RoomCode: r.Code, Reason: reason})

	r.logger.Info().Str("client_id", targetID).Str("reason", reason).Msg("Join request rejected.")
	return nil
}

// kick removes a guest. Kicking yourself or a non-member does nothing.
// The block list is not touched.
func (r *Room) kick(callerID, targetID, reason string) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID != r.hostID {
		return errs.NewError(errs.ErrPermissionDenied)
	}
	if targetID == callerID {
		return nil
	}
	if _, ok := r.members[targetID]; !ok {
		return nil
	}

	r.broadcastLocked(protocol.TypeUserKicked, protocol.UserKickedPayload{UserID: targetID, Reason: reason}, "")
	r.dropMemberLocked(targetID)
	r.broadcastLocked(protocol.TypeRoomState, r.stateLocked(), "")

	r.logger.Info().Str("client_id", targetID).Str("reason", reason).Msg("Member kicked.")
	return nil
}

// block records username on the caller's block list. Present members stay; a matching
// pending applicant is turned away.
func (r *Room) block(callerID, username string) *errs.CustomError {
	r.mu.Lock()
	isHost := callerID == r.hostID
	r.mu.Unlock()

	if !isHost {
		return errs.NewError(errs.ErrPermissionDenied)
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	err := r.manager.store.Block(ctx, callerID, username)
	cancel()
	if err != nil {
		r.logger.Error().Err(err).Str("username", username).Msg("Failed to store block.")
		return errs.NewError(errs.ErrStoreFailure)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.blockEpoch++
	key := moderation.NormalizeUsername(username)
	for userID, pj := range r.joins {
		if moderation.NormalizeUsername(pj.username) != key {
			continue
		}
		delete(r.joins, userID)
		pj.client.clearPending(r)
		pj.client.sendMessage(protocol.TypeJoinRejected, r.Code, protocol.JoinRejectedPayload{
			RoomCode: r.Code,
			Reason:   errs.NewError(errs.ErrUserBlocked).Message,
		})
		r.notifyHostLocked(protocol.TypeJoinRequestCancelled, protocol.TargetPayload{UserID: userID, Reason: ReasonRejectedByHost})
	}

	r.logger.Info().Str("blocked_by", callerID).Str("username", key).Msg("User blocked.")
	return nil
}

// transferHost hands the host role to a connected member.
func (r *Room) transferHost(callerID, targetID string) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID != r.hostID {
		return errs.NewError(errs.ErrPermissionDenied)
	}

	target, ok := r.members[targetID]
	if !ok || targetID == callerID || target.client == nil {
		return errs.NewError(errs.ErrInvalidTarget)
	}

	r.setHostLocked(targetID)
	r.broadcastLocked(protocol.TypeRoomState, r.stateLocked(), "")
	return nil
}

// suggest records a guest's track proposal and forwards it to the host.
func (r *Room) suggest(fromID string, track protocol.TrackInfo) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fromID]
	if !ok {
		return errs.NewError(errs.ErrNotInRoom)
	}
	if fromID == r.hostID || track.ID == "" || track.Title == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	now := time.Now()
	ps := &pendingSuggestion{
		payload: protocol.SuggestionReceivedPayload{
			SuggestionID: randx.SuggestionID(),
			FromUserID:   fromID,
			FromUsername: m.info.Username,
			TrackInfo:    track,
			SuggestedAt:  now.UnixMilli(),
		},
		createdAt: now,
	}
	r.suggestions[ps.payload.SuggestionID] = ps
	r.notifyHostLocked(protocol.TypeSuggestionReceived, ps.payload)

	r.logger.Info().Str("suggestion_id", ps.payload.SuggestionID).Str("client_id", fromID).Msg("Suggestion pending.")
	return nil
}

// approveSuggestion accepts a pending suggestion and tells its submitter.
func (r *Room) approveSuggestion(callerID, suggestionID string) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID != r.hostID {
		return errs.NewError(errs.ErrPermissionDenied)
	}

	ps, ok := r.suggestions[suggestionID]
	if !ok {
		r.logger.Debug().Str("suggestion_id", suggestionID).Msg("Approve ignored: suggestion not pending.")
		return nil
	}
	delete(r.suggestions, suggestionID)

	r.sendToMemberLocked(ps.payload.FromUserID, protocol.TypeSuggestionApproved, protocol.SuggestionApprovedPayload{
		SuggestionID: suggestionID,
		Track:        ps.payload.TrackInfo,
	})
	return nil
}

// rejectSuggestion declines a pending suggestion and tells its submitter.
func (r *Room) rejectSuggestion(callerID, suggestionID, reason string) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callerID != r.hostID {
		return errs.NewError(errs.ErrPermissionDenied)
	}

	ps, ok := r.suggestions[suggestionID]
	if !ok {
		r.logger.Debug().Str("suggestion_id", suggestionID).Msg("Reject ignored: suggestion not pending.")
		return nil
	}
	delete(r.suggestions, suggestionID)

	if reason == "" {
		reason = ReasonRejectedByHost
	}
	r.sendToMemberLocked(ps.payload.FromUserID, protocol.TypeSuggestionRejected, protocol.SuggestionTargetPayload{
		SuggestionID: suggestionID,
		Reason:       reason,
	})
	return nil
}

// leave removes userID from the room, applying host succession when the host leaves.
func (r *Room) leave(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(userID)
}

func (r *Room) leaveLocked(userID string) {
	m, ok := r.members[userID]
	if !ok {
		return
	}

	r.dropMemberLocked(userID)
	if r.closed {
		return
	}

	left := r.userInfoLocked(m)
	left.IsConnected = false
	r.broadcastLocked(protocol.TypeUserLeft, protocol.UserEventPayload{User: left}, "")
	r.broadcastLocked(protocol.TypeRoomState, r.stateLocked(), "")

	r.logger.Info().Str("client_id", userID).Int("total_users", len(r.members)).Msg("Member left room.")
}

// detach marks c's member as disconnected and holds its place for the reconnect grace period.
func (r *Room) detach(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := c.UserID()
	m, ok := r.members[userID]
	if !ok || m.client != c {
		return
	}

	m.client = nil
	m.info.IsConnected = false
	m.grace = time.AfterFunc(r.manager.opts.ReconnectGrace, func() { r.graceExpired(userID, m) })

	r.broadcastLocked(protocol.TypeRoomState, r.stateLocked(), "")
	r.logger.Info().Str("client_id", userID).Dur("grace", r.manager.opts.ReconnectGrace).Msg("Member disconnected. Holding membership.")
}

func (r *Room) graceExpired(userID string, m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.members[userID]; !ok || current != m || m.client != nil {
		return
	}

	r.logger.Info().Str("client_id", userID).Msg("Reconnect grace expired.")
	r.leaveLocked(userID)
}

// reattach binds c to its held membership. beforeState runs under the room lock
// before any state frame is queued for c.
func (r *Room) reattach(c *Client, beforeState func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	userID := c.UserID()
	m, ok := r.members[userID]
	if !ok {
		return false
	}

	if m.grace != nil {
		m.grace.Stop()
		m.grace = nil
	}
	if m.client != nil && m.client != c {
		m.client.clearRoom(r)
	}
	m.client = c
	m.info.IsConnected = true
	c.setRoom(r)

	if beforeState != nil {
		beforeState()
	}

	r.broadcastLocked(protocol.TypeRoomState, r.stateLocked(), "")
	if userID == r.hostID {
		r.resendPendingLocked(c)
	}

	r.logger.Info().Str("client_id", userID).Msg("Member resumed.")
	return true
}

// expirePending drops join requests and suggestions older than the pending TTL.
func (r *Room) expirePending(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ttl := r.manager.opts.PendingTTL

	for userID, pj := range r.joins {
		if now.Sub(pj.requestedAt) < ttl {
			continue
		}
		delete(r.joins, userID)
		pj.client.clearPending(r)
		pj.client.sendMessage(protocol.TypeJoinRejected, r.Code, protocol.JoinRejectedPayload{RoomCode: r.Code, Reason: ReasonJoinExpired})
		r.notifyHostLocked(protocol.TypeJoinRequestCancelled, protocol.TargetPayload{UserID: userID, Reason: ReasonJoinExpired})
		r.logger.Info().Str("client_id", userID).Msg("Join request expired.")
	}

	for id, ps := range r.suggestions {
		if now.Sub(ps.createdAt) < ttl {
			continue
		}
		delete(r.suggestions, id)
		r.sendToMemberLocked(ps.payload.FromUserID, protocol.TypeSuggestionRejected, protocol.SuggestionTargetPayload{SuggestionID: id, Reason: ReasonSuggestionExp})
		r.notifyHostLocked(protocol.TypeSuggestionCancelled, protocol.SuggestionTargetPayload{SuggestionID: id, Reason: ReasonSuggestionExp})
		r.logger.Info().Str("suggestion_id", id).Msg("Suggestion expired.")
	}
}

func (r *Room) addMemberLocked(userID, username string, c *Client) *member {
	m := &member{
		info: protocol.UserInfo{
			UserID:      userID,
			Username:    username,
			IsConnected: c != nil,
		},
		client: c,
	}
	r.members[userID] = m
	r.order = append(r.order, userID)

	r.manager.setMembership(userID, r)
	if c != nil {
		c.setRoom(r)
	}
	return m
}

// dropMemberLocked removes userID and hands the host role on if needed.
// When no connected successor exists the room closes.
func (r *Room) dropMemberLocked(userID string) {
	m, ok := r.members[userID]
	if !ok {
		return
	}

	delete(r.members, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if m.grace != nil {
		m.grace.Stop()
	}
	r.manager.clearMembership(userID, r)
	if m.client != nil {
		m.client.clearRoom(r)
	}

	for id, ps := range r.suggestions {
		if ps.payload.FromUserID == userID {
			delete(r.suggestions, id)
			r.notifyHostLocked(protocol.TypeSuggestionCancelled, protocol.SuggestionTargetPayload{SuggestionID: id, Reason: ReasonSubmitterLeft})
		}
	}

	if userID != r.hostID {
		return
	}

	for _, id := range r.order {
		if r.members[id].client != nil {
			r.setHostLocked(id)
			return
		}
	}

	r.closeLocked(ReasonHostLeft)
}

// setHostLocked moves the host role to newHostID and announces it.
func (r *Room) setHostLocked(newHostID string) {
	previous := r.hostID
	r.hostID = newHostID
	if _, ok := r.authorities[newHostID]; !ok {
		r.authorities[newHostID] = struct{}{}
		r.blockEpoch++
	}

	r.broadcastLocked(protocol.TypeHostTransferred, protocol.HostTransferredPayload{
		PreviousHostID: previous,
		NewHostID:      newHostID,
	}, "")

	if host := r.hostClientLocked(); host != nil {
		r.resendPendingLocked(host)
	}

	r.logger.Info().Str("previous_host", previous).Str("new_host", newHostID).Msg("Host transferred.")
}

func (r *Room) closeLocked(reason string) {
	if r.closed {
		return
	}
	r.closed = true

	for userID, m := range r.members {
		if m.grace != nil {
			m.grace.Stop()
		}
		if m.client != nil {
			m.client.sendMessage(protocol.TypeRoomClosed, r.Code, protocol.RoomClosedPayload{RoomCode: r.Code, Reason: reason})
			m.client.clearRoom(r)
		}
		r.manager.clearMembership(userID, r)
	}

	for _, pj := range r.joins {
		pj.client.clearPending(r)
		pj.client.sendMessage(protocol.TypeJoinRejected, r.Code, protocol.JoinRejectedPayload{RoomCode: r.Code, Reason: ReasonRoomClosed})
	}

	r.members = make(map[string]*member)
	r.order = nil
	r.joins = make(map[string]*pendingJoin)
	r.suggestions = make(map[string]*pendingSuggestion)

	close(r.stopChan)
	r.logger.Info().Str("reason", reason).Msg("Room closed.")
}

func (r *Room) stateLocked() protocol.RoomState {
	state := protocol.RoomState{
		RoomCode: r.Code,
		HostID:   r.hostID,
		Users:    make([]protocol.UserInfo, 0, len(r.order)),
	}
	for _, id := range r.order {
		state.Users = append(state.Users, r.userInfoLocked(r.members[id]))
	}
	return state
}

func (r *Room) userInfoLocked(m *member) protocol.UserInfo {
	info := m.info
	info.IsHost = info.UserID == r.hostID
	return info
}

func (r *Room) authorityIDsLocked() []string {
	ids := make([]string, 0, len(r.authorities))
	for id := range r.authorities {
		ids = append(ids, id)
	}
	return ids
}

func (r *Room) hostClientLocked() *Client {
	if m, ok := r.members[r.hostID]; ok {
		return m.client
	}
	return nil
}

func (r *Room) notifyHostLocked(msgType protocol.MessageType, payload any) {
	if host := r.hostClientLocked(); host != nil {
		host.sendMessage(msgType, r.Code, payload)
	}
}

func (r *Room) sendToMemberLocked(userID string, msgType protocol.MessageType, payload any) {
	if m, ok := r.members[userID]; ok && m.client != nil {
		m.client.sendMessage(msgType, r.Code, payload)
	}
}

// broadcastLocked queues a frame for every connected member except the one named by except.
func (r *Room) broadcastLocked(msgType protocol.MessageType, payload any, except string) {
	frame, err := protocol.Encode(msgType, r.Code, payload)
	if err != nil {
		r.logger.Error().Err(err).Str("msg_type", string(msgType)).Msg("Failed to build broadcast frame.")
		return
	}

	for _, id := range r.order {
		if id == except {
			continue
		}
		if m := r.members[id]; m.client != nil {
			m.client.queue(frame)
		}
	}
}

// resendPendingLocked replays every pending join request and suggestion to the host, oldest first.
func (r *Room) resendPendingLocked(host *Client) {
	joins := make([]*pendingJoin, 0, len(r.joins))
	for _, pj := range r.joins {
		joins = append(joins, pj)
	}
	sort.Slice(joins, func(i, j int) bool { return joins[i].requestedAt.Before(joins[j].requestedAt) })
	for _, pj := range joins {
		host.sendMessage(protocol.TypeJoinRequest, r.Code, joinRequestPayload(pj))
	}

	suggestions := make([]*pendingSuggestion, 0, len(r.suggestions))
	for _, ps := range r.suggestions {
		suggestions = append(suggestions, ps)
	}
	sort.Slice(suggestions, func(i, j int) bool { return suggestions[i].createdAt.Before(suggestions[j].createdAt) })
	for _, ps := range suggestions {
		host.sendMessage(protocol.TypeSuggestionReceived, r.Code, ps.payload)
	}
}

func joinRequestPayload(pj *pendingJoin) protocol.JoinRequestPayload {
	return protocol.JoinRequestPayload{
		UserID:      pj.userID,
		Username:    pj.username,
		RequestedAt: pj.requestedAt.UnixMilli(),
	}
}
