package membership

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/domain"
)

type fakeStore struct {
	workspaces map[domain.UserID][]string
	channels   map[string][]string
	dms        map[domain.UserID][]string
	chMembers  map[string]map[domain.UserID]bool
	err        error
}

func (s *fakeStore) WorkspacesForUser(_ context.Context, userID domain.UserID) ([]string, error) {
	return s.workspaces[userID], s.err
}

func (s *fakeStore) ChannelsForUser(_ context.Context, _ domain.UserID, workspaceID string) ([]string, error) {
	return s.channels[workspaceID], s.err
}

func (s *fakeStore) DirectThreadsForUser(_ context.Context, userID domain.UserID) ([]string, error) {
	return s.dms[userID], s.err
}

func (s *fakeStore) IsWorkspaceMember(_ context.Context, userID domain.UserID, workspaceID string) (bool, error) {
	for _, id := range s.workspaces[userID] {
		if id == workspaceID {
			return true, s.err
		}
	}
	return false, s.err
}

func (s *fakeStore) IsChannelMember(_ context.Context, userID domain.UserID, channelID string) (bool, error) {
	return s.chMembers[channelID][userID], s.err
}

func (s *fakeStore) IsDirectParticipant(_ context.Context, userID domain.UserID, dmID string) (bool, error) {
	for _, id := range s.dms[userID] {
		if id == dmID {
			return true, s.err
		}
	}
	return false, s.err
}

type fakeRoster struct {
	participants map[domain.CallID][]domain.UserID
}

func (r *fakeRoster) IsParticipant(userID domain.UserID, callID domain.CallID) bool {
	for _, id := range r.participants[callID] {
		if id == userID {
			return true
		}
	}
	return false
}

func TestResolver_AuthorizedRooms(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{
		workspaces: map[domain.UserID][]string{"u1": {"1", "2"}},
		channels:   map[string][]string{"1": {"10", "11"}, "2": {"20"}},
		dms:        map[domain.UserID][]string{"u1": {"7"}},
	}
	r := NewResolver(store)

	rooms, err := r.AuthorizedRooms(context.Background(), "u1")
	req.NoError(err)
	req.ElementsMatch([]domain.RoomID{
		domain.WorkspaceRoom("1"),
		domain.WorkspaceRoom("2"),
		domain.ChannelRoom("10"),
		domain.ChannelRoom("11"),
		domain.ChannelRoom("20"),
		domain.DirectRoom("7"),
	}, rooms)
}

func TestResolver_AuthorizedRooms_Store_Error(t *testing.T) {
	req := require.New(t)
	r := NewResolver(&fakeStore{err: errors.New("connection refused")})

	_, err := r.AuthorizedRooms(context.Background(), "u1")
	req.ErrorIs(err, ErrStoreUnavailable)
}

// Fail closed: a store error or an absent membership record both answer
// "not authorized", never "authorized by default".
func TestResolver_IsAuthorized_Fails_Closed(t *testing.T) {
	req := require.New(t)
	store := &fakeStore{
		workspaces: map[domain.UserID][]string{"u1": {"1"}},
		chMembers:  map[string]map[domain.UserID]bool{"10": {"u1": true}},
		dms:        map[domain.UserID][]string{"u1": {"7"}},
	}
	r := NewResolver(store)
	ctx := context.Background()

	req.True(r.IsAuthorized(ctx, "u1", domain.WorkspaceRoom("1")))
	req.True(r.IsAuthorized(ctx, "u1", domain.ChannelRoom("10")))
	req.True(r.IsAuthorized(ctx, "u1", domain.DirectRoom("7")))

	req.False(r.IsAuthorized(ctx, "u1", domain.ChannelRoom("99")))
	req.False(r.IsAuthorized(ctx, "u2", domain.ChannelRoom("10")))
	req.False(r.IsAuthorized(ctx, "u1", domain.RoomID("bogus:room")))

	store.err = errors.New("connection refused")
	req.False(r.IsAuthorized(ctx, "u1", domain.ChannelRoom("10")))
	req.False(r.IsAuthorized(ctx, "u1", domain.WorkspaceRoom("1")))
}

func TestResolver_Call_Rooms_Use_Roster(t *testing.T) {
	req := require.New(t)
	r := NewResolver(&fakeStore{})
	ctx := context.Background()

	// No roster bound yet: deny.
	req.False(r.IsAuthorized(ctx, "u1", domain.CallRoom("c1")))

	r.BindCallRoster(&fakeRoster{participants: map[domain.CallID][]domain.UserID{"c1": {"u1"}}})
	req.True(r.IsAuthorized(ctx, "u1", domain.CallRoom("c1")))
	req.False(r.IsAuthorized(ctx, "u2", domain.CallRoom("c1")))
}
