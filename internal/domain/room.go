package domain

import (
	"errors"
	"strings"
)

type RoomKind string

const (
	RoomWorkspace RoomKind = "workspace"
	RoomChannel   RoomKind = "channel"
	RoomDirect    RoomKind = "dm"
	RoomCall      RoomKind = "call"
)

var ErrBadRoomID = errors.New("malformed room id")

// RoomID is a namespaced broadcast-group identifier: "workspace:<id>",
// "channel:<id>", "dm:<id>" or "call:<id>". Outside its kind prefix the id
// is opaque; membership is never inferred from the id itself.
type RoomID string

func WorkspaceRoom(id string) RoomID { return RoomID(string(RoomWorkspace) + ":" + id) }
func ChannelRoom(id string) RoomID   { return RoomID(string(RoomChannel) + ":" + id) }
func DirectRoom(id string) RoomID    { return RoomID(string(RoomDirect) + ":" + id) }
func CallRoom(id string) RoomID      { return RoomID(string(RoomCall) + ":" + id) }

func (r RoomID) Kind() RoomKind {
	kind, _, _ := strings.Cut(string(r), ":")
	return RoomKind(kind)
}

// Suffix returns the domain identifier behind the kind prefix.
func (r RoomID) Suffix() string {
	_, suffix, _ := strings.Cut(string(r), ":")
	return suffix
}

// ParseRoom rejects ids whose kind is unknown or whose suffix is empty.
func ParseRoom(raw string) (RoomID, error) {
	kind, suffix, found := strings.Cut(raw, ":")
	if !found || suffix == "" {
		return "", ErrBadRoomID
	}
	switch RoomKind(kind) {
	case RoomWorkspace, RoomChannel, RoomDirect, RoomCall:
		return RoomID(raw), nil
	default:
		return "", ErrBadRoomID
	}
}
