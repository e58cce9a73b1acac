package event

import (
	"encoding/json"

	"github.com/huddlehq/huddle/internal/domain"
)

// Payloads of server-pushed events. Field names follow the client contract.

type TypingPayload struct {
	UserID    domain.UserID `json:"userId"`
	Username  string        `json:"username"`
	ChannelID string        `json:"channelId,omitempty"`
	DMID      string        `json:"dmId,omitempty"`
}

type StatusPayload struct {
	UserID       domain.UserID         `json:"userId"`
	Status       domain.PresenceStatus `json:"status"`
	CustomStatus string                `json:"customStatus,omitempty"`
}

type RoomAckPayload struct {
	ChannelID string `json:"channelId,omitempty"`
	DMID      string `json:"dmId,omitempty"`
}

type CallStartedPayload struct {
	Call      domain.CallInfo `json:"call"`
	StartedBy domain.User     `json:"startedBy"`
}

type CallCreatedPayload struct {
	Call domain.CallInfo `json:"call"`
}

type CallMemberPayload struct {
	CallID   domain.CallID `json:"callId"`
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
	Avatar   string        `json:"avatar,omitempty"`
}

type CallAckPayload struct {
	CallID domain.CallID `json:"callId"`
}

// SignalPayload relays an opaque negotiation blob to a call room. The blob is
// never inspected; TargetUserID is a hint for clients to filter on.
type SignalPayload struct {
	CallID       domain.CallID   `json:"callId"`
	FromUserID   domain.UserID   `json:"fromUserId"`
	TargetUserID domain.UserID   `json:"targetUserId"`
	Signal       json.RawMessage `json:"signal"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried by ErrorPayload.
const (
	CodeUnauthorized  = "unauthorized"
	CodeBadPayload    = "bad_payload"
	CodeUnknownEvent  = "unknown_event"
	CodeCallNotFound  = "call_not_found"
	CodeInvalidStatus = "invalid_status"
)
