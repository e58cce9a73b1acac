package event

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
)

// Control messages clients send over an established connection. Each is
// decoded from the envelope payload and validated before it reaches the hub.

var validate = validator.New()

var ErrBadPayload = errors.New("bad control payload")

type AuthRequest struct {
	Token string `json:"token" validate:"required"`
}

type JoinRoomRequest struct {
	Room string `json:"room" validate:"required"`
}

type LeaveRoomRequest struct {
	Room string `json:"room" validate:"required"`
}

// TypingRequest names either a channel or a dm thread, never both.
type TypingRequest struct {
	ChannelID string `json:"channelId,omitempty"`
	DMID      string `json:"dmId,omitempty"`
}

func (r TypingRequest) check() error {
	if (r.ChannelID == "") == (r.DMID == "") {
		return ErrBadPayload
	}
	return nil
}

type UpdateStatusRequest struct {
	Status       string `json:"status" validate:"required,oneof=ONLINE AWAY DO_NOT_DISTURB OFFLINE"`
	CustomStatus string `json:"customStatus,omitempty" validate:"max=128"`
}

type CallStartRequest struct {
	ChannelID string `json:"channelId" validate:"required"`
	Kind      string `json:"type" validate:"required,oneof=VOICE VIDEO"`
}

type CallJoinRequest struct {
	CallID string `json:"callId" validate:"required"`
}

type CallLeaveRequest struct {
	CallID string `json:"callId" validate:"required"`
}

type SignalRequest struct {
	CallID       string          `json:"callId" validate:"required"`
	TargetUserID string          `json:"targetUserId" validate:"required"`
	Signal       json.RawMessage `json:"signal" validate:"required"`
}

// DecodeControl unmarshals and validates a control payload in place.
func DecodeControl(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Join(ErrBadPayload, err)
	}
	if err := validate.Struct(dst); err != nil {
		return errors.Join(ErrBadPayload, err)
	}
	if t, ok := dst.(*TypingRequest); ok {
		return t.check()
	}
	return nil
}
