// Package hub orchestrates the realtime core: connection lifecycle,
// room fan-out and call signaling. It mutates the session registry only
// after authorization has completed and never holds registry state while
// writing to a transport.
package hub

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/event"
	"github.com/huddlehq/huddle/internal/membership"
	"github.com/huddlehq/huddle/internal/presence"
	"github.com/huddlehq/huddle/internal/registry"
)

// Sender is one connection's transport endpoint. TrySend must not block:
// a full buffer is a delivery failure, not a stall.
type Sender interface {
	TrySend(data []byte) error
	Close()
}

type Hub struct {
	reg      *registry.Registry
	resolver *membership.Resolver
	presence *presence.Tracker
	calls    *callManager

	mu      sync.RWMutex
	senders map[domain.ConnID]Sender
	users   map[domain.ConnID]domain.User
}

func New(reg *registry.Registry, resolver *membership.Resolver, tracker *presence.Tracker) *Hub {
	h := &Hub{
		reg:      reg,
		resolver: resolver,
		presence: tracker,
		calls:    newCallManager(),
		senders:  make(map[domain.ConnID]Sender),
		users:    make(map[domain.ConnID]domain.User),
	}
	resolver.BindCallRoster(h)
	return h
}

// IsParticipant implements membership.CallRoster for call-room
// authorization checks.
func (h *Hub) IsParticipant(userID domain.UserID, callID domain.CallID) bool {
	return h.calls.isParticipant(userID, callID)
}

func (h *Hub) sender(connID domain.ConnID) (Sender, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.senders[connID]
	return s, ok
}

func (h *Hub) user(connID domain.ConnID) (domain.User, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	u, ok := h.users[connID]
	return u, ok
}

// sendTo pushes one event to one connection. A failed send schedules the
// connection for release; it never affects anyone else.
func (h *Hub) sendTo(connID domain.ConnID, t event.Type, payload any) {
	frame, err := event.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("event", string(t)).Msg("encode")
		return
	}
	s, ok := h.sender(connID)
	if !ok {
		return
	}
	if err := s.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "hub").Str("conn", string(connID)).
			Str("event", string(t)).Msg("delivery failed, scheduling release")
		h.scheduleRelease(connID)
	}
}

func (h *Hub) sendError(connID domain.ConnID, code, message string) {
	h.sendTo(connID, event.Error, event.ErrorPayload{Code: code, Message: message})
}

// scheduleRelease tears a dead connection down off the caller's path, so
// fan-out to the remaining targets continues unaffected.
func (h *Hub) scheduleRelease(connID domain.ConnID) {
	go func() {
		if s, ok := h.sender(connID); ok {
			s.Close()
		}
		h.Disconnect(connID, "delivery failure")
	}()
}

// workspaceRooms filters a room set down to the workspace rooms, the scope
// of presence broadcasts.
func workspaceRooms(rooms []domain.RoomID) []domain.RoomID {
	out := rooms[:0:0]
	for _, room := range rooms {
		if room.Kind() == domain.RoomWorkspace {
			out = append(out, room)
		}
	}
	return out
}
