package hub

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/event"
)

// Connect runs the post-authentication half of the connection state
// machine: resolve the authorized room set, join each room, mark presence
// and notify peers. Authorization and store queries complete before any
// registry mutation. Room resolution failing entirely degrades to an empty
// room set rather than rejecting the connection; individual join failures
// are logged and skipped so the user keeps as much connectivity as possible.
func (h *Hub) Connect(ctx context.Context, connID domain.ConnID, user domain.User, sender Sender) error {
	rooms, err := h.resolver.AuthorizedRooms(ctx, user.ID)
	if err != nil {
		log.Warn().Err(err).Str("module", "hub").Str("user", string(user.ID)).
			Msg("room resolution failed, connecting with no rooms")
		rooms = nil
	}

	if err := h.reg.Register(connID, user.ID); err != nil {
		return err
	}
	h.mu.Lock()
	h.senders[connID] = sender
	h.users[connID] = user
	h.mu.Unlock()

	joined := 0
	for _, room := range rooms {
		if err := h.reg.JoinRoom(connID, room); err != nil {
			log.Warn().Err(err).Str("module", "hub").Str("conn", string(connID)).
				Str("room", string(room)).Msg("join failed, skipping")
			continue
		}
		joined++
	}
	log.Info().Str("module", "hub").Str("conn", string(connID)).
		Str("user", string(user.ID)).Int("rooms", joined).Msg("connected")

	if first := h.presence.ConnectionOpened(user.ID); first {
		h.Dispatch(event.Event{
			Type:  event.UserStatusChanged,
			Rooms: workspaceRooms(rooms),
			Payload: event.StatusPayload{
				UserID: user.ID,
				Status: domain.StatusOnline,
			},
		})
	}
	return nil
}

// Disconnect releases everything the connection held. It runs on graceful
// close, abrupt transport drop and forced release alike; cleanup is
// unconditional and must not depend on a close handshake.
func (h *Hub) Disconnect(connID domain.ConnID, reason string) {
	// Release is the single arbiter between racing disconnects (transport
	// close vs a forced release): exactly one caller gets the room set and
	// runs the presence and call cleanup. Maps are deleted only by the
	// winner, so its user lookup cannot miss.
	rooms, err := h.reg.Release(connID)
	if err != nil {
		return
	}
	h.mu.Lock()
	user, known := h.users[connID]
	delete(h.senders, connID)
	delete(h.users, connID)
	h.mu.Unlock()

	log.Info().Str("module", "hub").Str("conn", string(connID)).
		Str("reason", reason).Int("rooms", len(rooms)).Msg("disconnected")
	if !known {
		return
	}

	h.calls.connClosed(connID, user, h)

	if last := h.presence.ConnectionClosed(user.ID); last {
		h.Dispatch(event.Event{
			Type:  event.UserStatusChanged,
			Rooms: workspaceRooms(rooms),
			Payload: event.StatusPayload{
				UserID: user.ID,
				Status: domain.StatusOffline,
			},
		})
	}
}

// HandleJoinRoom serves a mid-session join request. Authorization is
// re-validated against the store every time; a revoked membership is caught
// here even if the connect-time set allowed the room. Rejections are
// explicit error events, never silent.
func (h *Hub) HandleJoinRoom(ctx context.Context, connID domain.ConnID, rawRoom string) {
	room, err := domain.ParseRoom(rawRoom)
	if err != nil {
		h.sendError(connID, event.CodeBadPayload, "malformed room id")
		return
	}
	user, ok := h.user(connID)
	if !ok {
		return
	}
	if !h.resolver.IsAuthorized(ctx, user.ID, room) {
		h.sendError(connID, event.CodeUnauthorized, "can't join that conversation")
		return
	}
	if err := h.reg.JoinRoom(connID, room); err != nil {
		log.Error().Err(err).Str("module", "hub").Str("conn", string(connID)).
			Str("room", string(room)).Msg("join after authorization")
		h.scheduleRelease(connID)
		return
	}
	h.sendTo(connID, joinAck(room.Kind()), roomAck(room))
	log.Info().Str("module", "hub").Str("user", string(user.ID)).
		Str("room", string(room)).Msg("joined room")
}

// HandleLeaveRoom leaves a single room; leaving a room never joined is a
// no-op that still gets its acknowledgement.
func (h *Hub) HandleLeaveRoom(connID domain.ConnID, rawRoom string) {
	room, err := domain.ParseRoom(rawRoom)
	if err != nil {
		h.sendError(connID, event.CodeBadPayload, "malformed room id")
		return
	}
	if err := h.reg.LeaveRoom(connID, room); err != nil {
		return
	}
	h.sendTo(connID, leaveAck(room.Kind()), roomAck(room))
}

func joinAck(kind domain.RoomKind) event.Type {
	switch kind {
	case domain.RoomChannel:
		return event.ChannelJoined
	case domain.RoomDirect:
		return event.DMJoined
	default:
		return event.RoomJoined
	}
}

func leaveAck(kind domain.RoomKind) event.Type {
	switch kind {
	case domain.RoomChannel:
		return event.ChannelLeft
	case domain.RoomDirect:
		return event.DMLeft
	default:
		return event.RoomLeft
	}
}

func roomAck(room domain.RoomID) event.RoomAckPayload {
	switch room.Kind() {
	case domain.RoomChannel:
		return event.RoomAckPayload{ChannelID: room.Suffix()}
	case domain.RoomDirect:
		return event.RoomAckPayload{DMID: room.Suffix()}
	default:
		return event.RoomAckPayload{}
	}
}

// HandleTyping relays a typing indicator to the named channel or dm room,
// excluding the typist's own connection. The connection must currently be
// joined to the room; typing carries no authorization of its own.
func (h *Hub) HandleTyping(connID domain.ConnID, start bool, req event.TypingRequest) {
	user, ok := h.user(connID)
	if !ok {
		return
	}
	var room domain.RoomID
	if req.ChannelID != "" {
		room = domain.ChannelRoom(req.ChannelID)
	} else {
		room = domain.DirectRoom(req.DMID)
	}
	if !h.reg.InRoom(connID, room) {
		h.sendError(connID, event.CodeUnauthorized, "not in that conversation")
		return
	}
	t := event.UserStoppedTyping
	if start {
		t = event.UserTyping
	}
	h.Dispatch(event.Event{
		Type:    t,
		Rooms:   []domain.RoomID{room},
		Exclude: connID,
		Payload: event.TypingPayload{
			UserID:    user.ID,
			Username:  user.Username,
			ChannelID: req.ChannelID,
			DMID:      req.DMID,
		},
	})
}

// HandleStatus applies an explicit presence update and broadcasts it to
// every workspace room the user is in. The user's own connections are not
// excluded; clients use the echo as confirmation.
func (h *Hub) HandleStatus(connID domain.ConnID, req event.UpdateStatusRequest) {
	user, ok := h.user(connID)
	if !ok {
		return
	}
	status := domain.PresenceStatus(req.Status)
	if err := h.presence.SetStatus(user.ID, status, req.CustomStatus); err != nil {
		h.sendError(connID, event.CodeInvalidStatus, "invalid status")
		return
	}
	h.Dispatch(event.Event{
		Type:  event.UserStatusChanged,
		Rooms: workspaceRooms(h.reg.RoomsForUser(user.ID)),
		Payload: event.StatusPayload{
			UserID:       user.ID,
			Status:       status,
			CustomStatus: req.CustomStatus,
		},
	})
}
