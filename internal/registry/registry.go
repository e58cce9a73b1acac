// Package registry tracks, per connected socket, the authenticated identity
// and the set of rooms it has joined. It owns no business data, performs no
// I/O, and is the single shared mutable structure of the gateway.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/domain"
)

var (
	ErrDuplicateConnection = errors.New("connection id already registered")
	ErrUnknownConnection   = errors.New("connection id not registered")
)

type connEntry struct {
	user      domain.UserID
	rooms     map[domain.RoomID]struct{}
	createdAt time.Time
}

// Registry is a bidirectional index: connection -> rooms and room ->
// connections. The two maps are kept mutually consistent under one lock;
// every mutation updates both sides atomically. Reads return snapshots that
// callers must tolerate going stale immediately.
type Registry struct {
	mu     sync.RWMutex
	conns  map[domain.ConnID]*connEntry
	rooms  map[domain.RoomID]map[domain.ConnID]struct{}
	byUser map[domain.UserID]map[domain.ConnID]struct{}
}

func New() *Registry {
	return &Registry{
		conns:  make(map[domain.ConnID]*connEntry),
		rooms:  make(map[domain.RoomID]map[domain.ConnID]struct{}),
		byUser: make(map[domain.UserID]map[domain.ConnID]struct{}),
	}
}

// Register creates a connection record with an empty room set.
func (r *Registry) Register(connID domain.ConnID, userID domain.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateConnection, connID)
	}
	r.conns[connID] = &connEntry{
		user:      userID,
		rooms:     make(map[domain.RoomID]struct{}),
		createdAt: time.Now(),
	}
	if _, ok := r.byUser[userID]; !ok {
		r.byUser[userID] = make(map[domain.ConnID]struct{})
	}
	r.byUser[userID][connID] = struct{}{}
	log.Debug().Str("module", "registry").Str("conn", string(connID)).Str("user", string(userID)).Msg("registered")
	return nil
}

// JoinRoom is idempotent: joining a room twice is a no-op.
func (r *Registry) JoinRoom(connID domain.ConnID, room domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}
	if _, joined := entry.rooms[room]; joined {
		return nil
	}
	entry.rooms[room] = struct{}{}
	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = make(map[domain.ConnID]struct{})
	}
	r.rooms[room][connID] = struct{}{}
	return nil
}

// LeaveRoom is the idempotent inverse of JoinRoom.
func (r *Registry) LeaveRoom(connID domain.ConnID, room domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}
	if _, joined := entry.rooms[room]; !joined {
		return nil
	}
	delete(entry.rooms, room)
	r.dropFromRoom(connID, room)
	return nil
}

// Release atomically removes the connection from every room it had joined
// and deletes its record. It returns the rooms the connection had been in,
// which the lifecycle manager needs to scope the offline broadcast.
func (r *Registry) Release(connID domain.ConnID) ([]domain.RoomID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.conns[connID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}
	rooms := make([]domain.RoomID, 0, len(entry.rooms))
	for room := range entry.rooms {
		rooms = append(rooms, room)
		r.dropFromRoom(connID, room)
	}
	delete(r.conns, connID)
	if set, ok := r.byUser[entry.user]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byUser, entry.user)
		}
	}
	log.Debug().Str("module", "registry").Str("conn", string(connID)).Int("rooms", len(rooms)).Msg("released")
	return rooms, nil
}

// dropFromRoom removes one side of the index. Caller holds the write lock
// and has already removed (or is removing) the connection-side entry. A room
// set missing the connection here means the bidirectional invariant was
// already broken, which is unrecoverable shared-state corruption.
func (r *Registry) dropFromRoom(connID domain.ConnID, room domain.RoomID) {
	set, ok := r.rooms[room]
	if !ok {
		panic(fmt.Sprintf("registry index corrupt: room %s unknown while releasing %s", room, connID))
	}
	if _, ok := set[connID]; !ok {
		panic(fmt.Sprintf("registry index corrupt: %s missing from room %s", connID, room))
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.rooms, room)
	}
}

// ConnectionsInRoom returns a snapshot of the connections joined to a room.
func (r *Registry) ConnectionsInRoom(room domain.RoomID) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.rooms[room]
	if !ok {
		return nil
	}
	out := make([]domain.ConnID, 0, len(set))
	for connID := range set {
		out = append(out, connID)
	}
	return out
}

// RoomsForUser returns the union of rooms across all of the user's live
// connections; used to scope presence-change broadcasts.
func (r *Registry) RoomsForUser(userID domain.UserID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[domain.RoomID]struct{})
	for connID := range r.byUser[userID] {
		if entry, ok := r.conns[connID]; ok {
			for room := range entry.rooms {
				seen[room] = struct{}{}
			}
		}
	}
	out := make([]domain.RoomID, 0, len(seen))
	for room := range seen {
		out = append(out, room)
	}
	return out
}

// InRoom reports whether a connection is currently joined to a room.
func (r *Registry) InRoom(connID domain.ConnID, room domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[connID]
	if !ok {
		return false
	}
	_, joined := entry.rooms[room]
	return joined
}

// UserOf attributes a connection to its authenticated user.
func (r *Registry) UserOf(connID domain.ConnID) (domain.UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	return entry.user, true
}

// ConnectionCount reports how many live connections a user has.
func (r *Registry) ConnectionCount(userID domain.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// RoomOccupancy is a read-only view for the HTTP surface.
type RoomOccupancy struct {
	Room        domain.RoomID `json:"room"`
	Connections int           `json:"connections"`
}

func (r *Registry) Occupancy() []RoomOccupancy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RoomOccupancy, 0, len(r.rooms))
	for room, set := range r.rooms {
		out = append(out, RoomOccupancy{Room: room, Connections: len(set)})
	}
	return out
}
