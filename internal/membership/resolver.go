// Package membership computes the authoritative set of rooms a user may
// join. It queries an external read-only store and keeps no mutable state
// of its own. Every lookup fails closed: a store error or a missing
// membership record both mean "not authorized".
package membership

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/huddlehq/huddle/internal/domain"
)

var ErrStoreUnavailable = errors.New("membership store unavailable")

// Store is the boundary to the relational layer that owns users,
// workspaces, channels and dm threads. The gateway never writes to it.
type Store interface {
	WorkspacesForUser(ctx context.Context, userID domain.UserID) ([]string, error)
	// ChannelsForUser lists the channels of one workspace visible to the
	// user: all public channels plus private channels the user is a member of.
	ChannelsForUser(ctx context.Context, userID domain.UserID, workspaceID string) ([]string, error)
	DirectThreadsForUser(ctx context.Context, userID domain.UserID) ([]string, error)
	IsWorkspaceMember(ctx context.Context, userID domain.UserID, workspaceID string) (bool, error)
	IsChannelMember(ctx context.Context, userID domain.UserID, channelID string) (bool, error)
	IsDirectParticipant(ctx context.Context, userID domain.UserID, dmID string) (bool, error)
}

// CallRoster answers whether a user currently participates in an active
// call. Call rooms are not store-backed; the live call bookkeeping owns them.
type CallRoster interface {
	IsParticipant(userID domain.UserID, callID domain.CallID) bool
}

type Resolver struct {
	store Store
	calls CallRoster
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// BindCallRoster wires the live call bookkeeping in after construction; the
// roster is part of the hub, which itself depends on the resolver.
func (r *Resolver) BindCallRoster(roster CallRoster) {
	r.calls = roster
}

// AuthorizedRooms computes the full set of rooms the user may join at
// connect time: one workspace room per membership, one channel room per
// visible channel, one dm room per thread. A failed per-workspace channel
// listing is logged and skipped so the user still gets the rest.
func (r *Resolver) AuthorizedRooms(ctx context.Context, userID domain.UserID) ([]domain.RoomID, error) {
	workspaces, err := r.store.WorkspacesForUser(ctx, userID)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	rooms := lo.Map(workspaces, func(id string, _ int) domain.RoomID {
		return domain.WorkspaceRoom(id)
	})
	for _, wsID := range workspaces {
		channels, err := r.store.ChannelsForUser(ctx, userID, wsID)
		if err != nil {
			log.Warn().Err(err).Str("module", "membership").Str("user", string(userID)).
				Str("workspace", wsID).Msg("channel listing failed, skipping workspace channels")
			continue
		}
		for _, chID := range channels {
			rooms = append(rooms, domain.ChannelRoom(chID))
		}
	}

	threads, err := r.store.DirectThreadsForUser(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("module", "membership").Str("user", string(userID)).
			Msg("dm listing failed, skipping dm rooms")
	} else {
		for _, dmID := range threads {
			rooms = append(rooms, domain.DirectRoom(dmID))
		}
	}
	return lo.Uniq(rooms), nil
}

// IsAuthorized re-validates a single room against the store (or, for call
// rooms, against the live participant roster). Any error answers false.
func (r *Resolver) IsAuthorized(ctx context.Context, userID domain.UserID, room domain.RoomID) bool {
	var (
		ok  bool
		err error
	)
	switch room.Kind() {
	case domain.RoomWorkspace:
		ok, err = r.store.IsWorkspaceMember(ctx, userID, room.Suffix())
	case domain.RoomChannel:
		ok, err = r.store.IsChannelMember(ctx, userID, room.Suffix())
	case domain.RoomDirect:
		ok, err = r.store.IsDirectParticipant(ctx, userID, room.Suffix())
	case domain.RoomCall:
		if r.calls == nil {
			return false
		}
		return r.calls.IsParticipant(userID, domain.CallID(room.Suffix()))
	default:
		return false
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "membership").Str("user", string(userID)).
			Str("room", string(room)).Msg("authorization lookup failed, denying")
		return false
	}
	return ok
}
