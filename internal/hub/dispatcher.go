package hub

import (
	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/event"
)

// Delivery pairs a target connection with the frame it should receive.
type Delivery struct {
	Conn  domain.ConnID
	Frame []byte
}

// Route computes the deliveries for an event given a membership snapshot.
// It is pure: no locks, no transport, which keeps fan-out logic testable
// without a live socket. Targets joined through several of the event's
// rooms are delivered to once.
func Route(evt event.Event, frame []byte, inRoom func(domain.RoomID) []domain.ConnID) []Delivery {
	seen := make(map[domain.ConnID]struct{})
	var out []Delivery
	for _, room := range evt.Rooms {
		for _, connID := range inRoom(room) {
			if connID == evt.Exclude {
				continue
			}
			if _, dup := seen[connID]; dup {
				continue
			}
			seen[connID] = struct{}{}
			out = append(out, Delivery{Conn: connID, Frame: frame})
		}
	}
	return out
}

// Dispatch fans an event out to every connection currently joined to its
// target rooms, except the excluded originator. The triggering write has
// already committed before Dispatch runs; delivery is best-effort
// notification, never part of the transaction. The membership snapshot is
// taken first and the registry is not held during transport writes.
func (h *Hub) Dispatch(evt event.Event) {
	frame, err := event.Encode(evt.Type, evt.Payload)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("event", string(evt.Type)).Msg("encode")
		return
	}

	deliveries := Route(evt, frame, h.reg.ConnectionsInRoom)
	sent := 0
	for _, d := range deliveries {
		s, ok := h.sender(d.Conn)
		if !ok {
			continue
		}
		if err := s.TrySend(d.Frame); err != nil {
			log.Warn().Err(err).Str("module", "hub").Str("conn", string(d.Conn)).
				Str("event", string(evt.Type)).Msg("delivery failed, scheduling release")
			h.scheduleRelease(d.Conn)
			continue
		}
		sent++
	}
	log.Debug().Str("module", "hub").Str("event", string(evt.Type)).
		Int("targets", len(deliveries)).Int("sent", sent).Msg("dispatched")
}
