// Package event defines the wire contract between the gateway and its
// clients: the envelope, the event type tags, and the payloads carried by
// server-pushed events and client control messages.
package event

import (
	"encoding/json"

	"github.com/huddlehq/huddle/internal/domain"
)

type Type string

// Server-pushed events.
const (
	MessageCreated Type = "message_created"
	MessageUpdated Type = "message_updated"
	MessageDeleted Type = "message_deleted"

	ReactionAdded   Type = "reaction_added"
	ReactionRemoved Type = "reaction_removed"

	UserTyping        Type = "user_typing"
	UserStoppedTyping Type = "user_stopped_typing"

	UserStatusChanged Type = "user_status_changed"

	CallStarted    Type = "call_started"
	UserJoinedCall Type = "user_joined_call"
	UserLeftCall   Type = "user_left_call"

	WebRTCOffer        Type = "webrtc_offer"
	WebRTCAnswer       Type = "webrtc_answer"
	WebRTCICECandidate Type = "webrtc_ice_candidate"

	// Per-connection acknowledgements.
	ChannelJoined Type = "channel_joined"
	ChannelLeft   Type = "channel_left"
	DMJoined      Type = "dm_joined"
	DMLeft        Type = "dm_left"
	RoomJoined    Type = "room_joined"
	RoomLeft      Type = "room_left"
	CallCreated   Type = "call_created"
	CallJoined    Type = "call_joined"
	CallLeft      Type = "call_left"
	Error         Type = "error"
	Pong          Type = "pong"
)

// Client control messages.
const (
	Auth         Type = "auth"
	JoinRoom     Type = "join_room"
	LeaveRoom    Type = "leave_room"
	TypingStart  Type = "typing_start"
	TypingStop   Type = "typing_stop"
	UpdateStatus Type = "update_status"
	CallStart    Type = "call_start"
	CallJoin     Type = "call_join"
	CallLeave    Type = "call_leave"
	Ping         Type = "ping"
)

// Envelope is the single frame format in both directions:
// a type tag plus an opaque payload.
type Envelope struct {
	Event   Type            `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is a routed domain event handed to the dispatcher after the
// originating write committed. Rooms is usually a single target; presence
// changes fan out to every workspace room the user belongs to. Exclude, when
// set, names the originating connection which must not receive the event.
type Event struct {
	Type    Type
	Rooms   []domain.RoomID
	Exclude domain.ConnID
	Payload any
}

// Encode marshals an envelope for transport. Payload marshalling errors are
// programming errors (payload structs are all marshalable), surfaced to the
// caller rather than swallowed.
func Encode(t Type, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: t, Payload: raw})
}
