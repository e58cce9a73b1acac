// Package presence keeps the user-level online indicator. Presence is
// derived from connection counting: a user goes ONLINE with their first live
// connection and OFFLINE only when the count reaches zero, so extra tabs and
// devices never cause spurious flips. The flip on last disconnect is
// immediate; there is no reconnect grace period.
package presence

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/domain"
)

type Tracker struct {
	mu     sync.Mutex
	counts map[domain.UserID]int
	states map[domain.UserID]domain.Presence
}

func NewTracker() *Tracker {
	return &Tracker{
		counts: make(map[domain.UserID]int),
		states: make(map[domain.UserID]domain.Presence),
	}
}

// ConnectionOpened increments the user's connection count and reports
// whether this was the first live connection, which is when the user
// transitions to ONLINE.
func (t *Tracker) ConnectionOpened(userID domain.UserID) (first bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[userID]++
	if t.counts[userID] == 1 {
		t.states[userID] = domain.Presence{UserID: userID, Status: domain.StatusOnline}
		return true
	}
	return false
}

// ConnectionClosed decrements the count and reports whether the user's last
// connection just closed, flipping them OFFLINE exactly once.
func (t *Tracker) ConnectionClosed(userID domain.UserID) (last bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.counts[userID]
	if !ok {
		log.Warn().Str("module", "presence").Str("user", string(userID)).Msg("close without open")
		return false
	}
	if n > 1 {
		t.counts[userID] = n - 1
		return false
	}
	delete(t.counts, userID)
	delete(t.states, userID)
	return true
}

// SetStatus applies an explicit client status change. An empty custom status
// clears the previous one.
func (t *Tracker) SetStatus(userID domain.UserID, status domain.PresenceStatus, custom string) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[userID] = domain.Presence{UserID: userID, Status: status, CustomStatus: custom}
	return nil
}

// Get returns the user's current presence; users with no live connection
// are OFFLINE.
func (t *Tracker) Get(userID domain.UserID) domain.Presence {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.states[userID]; ok {
		return p
	}
	return domain.Presence{UserID: userID, Status: domain.StatusOffline}
}
