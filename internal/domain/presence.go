package domain

import "errors"

type PresenceStatus string

const (
	StatusOnline       PresenceStatus = "ONLINE"
	StatusAway         PresenceStatus = "AWAY"
	StatusDoNotDisturb PresenceStatus = "DO_NOT_DISTURB"
	StatusOffline      PresenceStatus = "OFFLINE"
)

var ErrInvalidStatus = errors.New("invalid presence status")

func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusDoNotDisturb, StatusOffline:
		return true
	}
	return false
}

// Presence is a user-level indicator, distinct from any single connection's
// liveness. A user with several live connections stays ONLINE until the
// last one closes.
type Presence struct {
	UserID       UserID         `json:"userId"`
	Status       PresenceStatus `json:"status"`
	CustomStatus string         `json:"customStatus,omitempty"`
}
