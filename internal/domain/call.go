package domain

import "errors"

type (
	CallID   string
	CallKind string
)

const (
	CallVoice CallKind = "VOICE"
	CallVideo CallKind = "VIDEO"
)

var ErrInvalidCallKind = errors.New("invalid call kind")

func (k CallKind) Valid() bool {
	return k == CallVoice || k == CallVideo
}

// CallInfo is a read-only view of an active call for wire payloads.
type CallInfo struct {
	ID           CallID   `json:"id"`
	ChannelID    string   `json:"channelId"`
	Kind         CallKind `json:"type"`
	StartedBy    UserID   `json:"startedById"`
	Participants []UserID `json:"participants"`
}
