package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/event"
)

var ErrCallNotFound = errors.New("call not found")

// callSession is relay bookkeeping only: who is in the call, so signaling
// can be scoped and the session destroyed when the last participant leaves.
// Media semantics live entirely in the clients.
type callSession struct {
	id           domain.CallID
	channelID    string
	kind         domain.CallKind
	startedBy    domain.UserID
	participants map[domain.UserID]domain.ConnID
}

func (s *callSession) info() domain.CallInfo {
	participants := make([]domain.UserID, 0, len(s.participants))
	for userID := range s.participants {
		participants = append(participants, userID)
	}
	return domain.CallInfo{
		ID:           s.id,
		ChannelID:    s.channelID,
		Kind:         s.kind,
		StartedBy:    s.startedBy,
		Participants: participants,
	}
}

type callManager struct {
	mu       sync.Mutex
	sessions map[domain.CallID]*callSession
}

func newCallManager() *callManager {
	return &callManager{sessions: make(map[domain.CallID]*callSession)}
}

func (m *callManager) create(channelID string, kind domain.CallKind, startedBy domain.UserID, connID domain.ConnID) domain.CallInfo {
	s := &callSession{
		id:           domain.CallID(uuid.NewString()),
		channelID:    channelID,
		kind:         kind,
		startedBy:    startedBy,
		participants: map[domain.UserID]domain.ConnID{startedBy: connID},
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.id] = s
	return s.info()
}

func (m *callManager) join(callID domain.CallID, userID domain.UserID, connID domain.ConnID) (domain.CallInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	if !ok {
		return domain.CallInfo{}, ErrCallNotFound
	}
	s.participants[userID] = connID
	return s.info(), nil
}

// leave removes the participant and reports whether the session was
// destroyed because it became empty.
func (m *callManager) leave(callID domain.CallID, userID domain.UserID) (removed, destroyed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	if !ok {
		return false, false
	}
	if _, in := s.participants[userID]; !in {
		return false, false
	}
	delete(s.participants, userID)
	if len(s.participants) == 0 {
		delete(m.sessions, callID)
		return true, true
	}
	return true, false
}

func (m *callManager) channelOf(callID domain.CallID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	if !ok {
		return "", false
	}
	return s.channelID, true
}

func (m *callManager) isParticipant(userID domain.UserID, callID domain.CallID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[callID]
	if !ok {
		return false
	}
	_, in := s.participants[userID]
	return in
}

// dropConn removes the user from every call they had joined through this
// connection and returns those call ids, for the disconnect path to notify.
func (m *callManager) dropConn(connID domain.ConnID, userID domain.UserID) []domain.CallID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CallID
	for callID, s := range m.sessions {
		if s.participants[userID] != connID {
			continue
		}
		delete(s.participants, userID)
		out = append(out, callID)
		if len(s.participants) == 0 {
			delete(m.sessions, callID)
		}
	}
	return out
}

// connClosed notifies remaining participants of calls the closing
// connection was in. The registry has already released the connection, so
// the departed socket is not a fan-out target.
func (m *callManager) connClosed(connID domain.ConnID, user domain.User, h *Hub) {
	for _, callID := range m.dropConn(connID, user.ID) {
		h.Dispatch(event.Event{
			Type:  event.UserLeftCall,
			Rooms: []domain.RoomID{domain.CallRoom(string(callID))},
			Payload: event.CallMemberPayload{
				CallID:   callID,
				UserID:   user.ID,
				Username: user.Username,
			},
		})
	}
}

// HandleCallStart creates a CallSession, joins the initiator to the call
// room and announces the call to the channel room. The other channel
// members have not joined the call room yet, which is why the announcement
// targets the channel.
func (h *Hub) HandleCallStart(ctx context.Context, connID domain.ConnID, req event.CallStartRequest) {
	user, ok := h.user(connID)
	if !ok {
		return
	}
	kind := domain.CallKind(req.Kind)
	if !kind.Valid() {
		h.sendError(connID, event.CodeBadPayload, domain.ErrInvalidCallKind.Error())
		return
	}
	channelRoom := domain.ChannelRoom(req.ChannelID)
	if !h.resolver.IsAuthorized(ctx, user.ID, channelRoom) {
		h.sendError(connID, event.CodeUnauthorized, "access denied to channel")
		return
	}

	info := h.calls.create(req.ChannelID, kind, user.ID, connID)
	if err := h.reg.JoinRoom(connID, domain.CallRoom(string(info.ID))); err != nil {
		log.Error().Err(err).Str("module", "hub").Str("conn", string(connID)).Msg("join call room")
		h.calls.leave(info.ID, user.ID)
		h.scheduleRelease(connID)
		return
	}

	h.Dispatch(event.Event{
		Type:    event.CallStarted,
		Rooms:   []domain.RoomID{channelRoom},
		Exclude: connID,
		Payload: event.CallStartedPayload{Call: info, StartedBy: user},
	})
	h.sendTo(connID, event.CallCreated, event.CallCreatedPayload{Call: info})
	log.Info().Str("module", "hub").Str("user", string(user.ID)).
		Str("call", string(info.ID)).Str("channel", req.ChannelID).Msg("call started")
}

// HandleCallJoin re-validates authorization against the call's channel
// before admitting the user to the call room.
func (h *Hub) HandleCallJoin(ctx context.Context, connID domain.ConnID, req event.CallJoinRequest) {
	user, ok := h.user(connID)
	if !ok {
		return
	}
	callID := domain.CallID(req.CallID)
	channelID, ok := h.calls.channelOf(callID)
	if !ok {
		h.sendError(connID, event.CodeCallNotFound, "call not found or not active")
		return
	}
	if !h.resolver.IsAuthorized(ctx, user.ID, domain.ChannelRoom(channelID)) {
		h.sendError(connID, event.CodeUnauthorized, "access denied to call")
		return
	}
	if _, err := h.calls.join(callID, user.ID, connID); err != nil {
		h.sendError(connID, event.CodeCallNotFound, "call not found or not active")
		return
	}
	if err := h.reg.JoinRoom(connID, domain.CallRoom(req.CallID)); err != nil {
		h.calls.leave(callID, user.ID)
		h.scheduleRelease(connID)
		return
	}

	h.Dispatch(event.Event{
		Type:    event.UserJoinedCall,
		Rooms:   []domain.RoomID{domain.CallRoom(req.CallID)},
		Exclude: connID,
		Payload: event.CallMemberPayload{
			CallID:   callID,
			UserID:   user.ID,
			Username: user.Username,
			Avatar:   user.Avatar,
		},
	})
	h.sendTo(connID, event.CallJoined, event.CallAckPayload{CallID: callID})
	log.Info().Str("module", "hub").Str("user", string(user.ID)).
		Str("call", req.CallID).Msg("joined call")
}

func (h *Hub) HandleCallLeave(connID domain.ConnID, req event.CallLeaveRequest) {
	user, ok := h.user(connID)
	if !ok {
		return
	}
	callID := domain.CallID(req.CallID)
	removed, _ := h.calls.leave(callID, user.ID)
	_ = h.reg.LeaveRoom(connID, domain.CallRoom(req.CallID))
	if removed {
		h.Dispatch(event.Event{
			Type:    event.UserLeftCall,
			Rooms:   []domain.RoomID{domain.CallRoom(req.CallID)},
			Exclude: connID,
			Payload: event.CallMemberPayload{
				CallID:   callID,
				UserID:   user.ID,
				Username: user.Username,
			},
		})
	}
	h.sendTo(connID, event.CallLeft, event.CallAckPayload{CallID: callID})
}

// HandleSignal relays an opaque negotiation payload to the call room. The
// blob is forwarded untouched; every other participant receives it and
// filters on the target-user hint client-side.
func (h *Hub) HandleSignal(connID domain.ConnID, t event.Type, req event.SignalRequest) {
	user, ok := h.user(connID)
	if !ok {
		return
	}
	callID := domain.CallID(req.CallID)
	if !h.calls.isParticipant(user.ID, callID) {
		h.sendError(connID, event.CodeUnauthorized, "not in that call")
		return
	}
	h.Dispatch(event.Event{
		Type:    t,
		Rooms:   []domain.RoomID{domain.CallRoom(req.CallID)},
		Exclude: connID,
		Payload: event.SignalPayload{
			CallID:       callID,
			FromUserID:   user.ID,
			TargetUserID: domain.UserID(req.TargetUserID),
			Signal:       req.Signal,
		},
	})
}
