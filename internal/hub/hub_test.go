package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/event"
	"github.com/huddlehq/huddle/internal/membership"
	"github.com/huddlehq/huddle/internal/presence"
	"github.com/huddlehq/huddle/internal/registry"
)

// fakeSender records delivered frames; flipping fail simulates a dead or
// backpressured transport.
type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func (s *fakeSender) TrySend(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("buffer full")
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *fakeSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSender) envelopes(t *testing.T) []event.Envelope {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Envelope, 0, len(s.frames))
	for _, frame := range s.frames {
		var env event.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		out = append(out, env)
	}
	return out
}

func (s *fakeSender) types(t *testing.T) []event.Type {
	t.Helper()
	envs := s.envelopes(t)
	out := make([]event.Type, 0, len(envs))
	for _, env := range envs {
		out = append(out, env.Event)
	}
	return out
}

// last returns the most recent event of the given type, decoded into dst.
func (s *fakeSender) last(t *testing.T, typ event.Type, dst any) bool {
	t.Helper()
	envs := s.envelopes(t)
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Event == typ {
			require.NoError(t, json.Unmarshal(envs[i].Payload, dst))
			return true
		}
	}
	return false
}

func (s *fakeSender) count(t *testing.T, typ event.Type) int {
	t.Helper()
	n := 0
	for _, env := range s.envelopes(t) {
		if env.Event == typ {
			n++
		}
	}
	return n
}

// fakeStore is an in-memory membership Store.
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

// twoUserStore is a workspace with one channel, both users members.
func twoUserStore() *fakeStore {
	return &fakeStore{
		workspaces: map[domain.UserID][]string{"alice": {"1"}, "bob": {"1"}},
		channels:   map[string][]string{"1": {"10"}},
		chMembers: map[string]map[domain.UserID]bool{
			"10": {"alice": true, "bob": true},
		},
	}
}

func newTestHub(store membership.Store) (*Hub, *registry.Registry) {
	reg := registry.New()
	h := New(reg, membership.NewResolver(store), presence.NewTracker())
	return h, reg
}

func connect(t *testing.T, h *Hub, connID domain.ConnID, user domain.User) *fakeSender {
	t.Helper()
	sender := &fakeSender{}
	require.NoError(t, h.Connect(context.Background(), connID, user, sender))
	return sender
}

var (
	alice = domain.User{ID: "alice", Username: "alice"}
	bob   = domain.User{ID: "bob", Username: "bob"}
)
