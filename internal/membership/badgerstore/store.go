// Package badgerstore is the shipped implementation of the membership
// Store boundary, backed by BadgerDB. The gateway reads it; writes happen
// through the seeding helpers the CRUD layer calls after committing its own
// transaction.
//
// Key layout:
//
//	user:ws:<userID>:<wsID>    workspace membership marker
//	user:ch:<userID>:<chID>    explicit channel membership marker
//	user:dm:<userID>:<dmID>    dm thread participation marker
//	chan:ws:<wsID>:<chID>      channel listing per workspace, value = visibility
//	chan:<chID>                channel meta, value = <wsID>:<visibility>
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/huddlehq/huddle/internal/domain"
)

const (
	VisibilityPublic  = "PUBLIC"
	VisibilityPrivate = "PRIVATE"
)

var ErrUnknownChannel = errors.New("unknown channel")

type Store struct {
	db  *badger.DB
	log zerolog.Logger
}

func New(db *badger.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("module", "membership.badger").Logger()}
}

// Open opens (or creates) the database at path with badger's logger muted in
// favor of ours.
func Open(path string, log zerolog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open membership store: %w", err)
	}
	s := New(db, log)
	s.log.Debug().Str("path", path).Msg("membership store opened")
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) WorkspacesForUser(_ context.Context, userID domain.UserID) ([]string, error) {
	return s.scanSuffixes(fmt.Sprintf("user:ws:%s:", userID))
}

func (s *Store) ChannelsForUser(ctx context.Context, userID domain.UserID, workspaceID string) ([]string, error) {
	var out []string
	prefix := []byte(fmt.Sprintf("chan:ws:%s:", workspaceID))
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			chID := strings.TrimPrefix(string(item.Key()), string(prefix))
			visibility, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if string(visibility) == VisibilityPublic {
				out = append(out, chID)
				continue
			}
			member, err := exists(txn, memberKey("ch", userID, chID))
			if err != nil {
				return err
			}
			if member {
				out = append(out, chID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("channels for user: %w", err)
	}
	return out, nil
}

func (s *Store) DirectThreadsForUser(_ context.Context, userID domain.UserID) ([]string, error) {
	return s.scanSuffixes(fmt.Sprintf("user:dm:%s:", userID))
}

func (s *Store) IsWorkspaceMember(_ context.Context, userID domain.UserID, workspaceID string) (bool, error) {
	return s.has(memberKey("ws", userID, workspaceID))
}

// IsChannelMember answers true for explicit members and, for public
// channels, for any member of the owning workspace.
func (s *Store) IsChannelMember(ctx context.Context, userID domain.UserID, channelID string) (bool, error) {
	member, err := s.has(memberKey("ch", userID, channelID))
	if err != nil || member {
		return member, err
	}
	var meta []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("chan:" + channelID))
		if err != nil {
			return err
		}
		meta, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, ErrUnknownChannel
	}
	if err != nil {
		return false, err
	}
	workspaceID, visibility, _ := strings.Cut(string(meta), ":")
	if visibility != VisibilityPublic {
		return false, nil
	}
	return s.IsWorkspaceMember(ctx, userID, workspaceID)
}

func (s *Store) IsDirectParticipant(_ context.Context, userID domain.UserID, dmID string) (bool, error) {
	return s.has(memberKey("dm", userID, dmID))
}

// Seeding helpers, invoked by the CRUD layer after its own commit.

func (s *Store) AddWorkspaceMember(userID domain.UserID, workspaceID string) error {
	return s.set(memberKey("ws", userID, workspaceID), nil)
}

func (s *Store) AddChannel(workspaceID, channelID, visibility string) error {
	if visibility != VisibilityPublic && visibility != VisibilityPrivate {
		return fmt.Errorf("bad channel visibility %q", visibility)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(fmt.Sprintf("chan:ws:%s:%s", workspaceID, channelID)), []byte(visibility)); err != nil {
			return err
		}
		return txn.Set([]byte("chan:"+channelID), []byte(workspaceID+":"+visibility))
	})
}

func (s *Store) AddChannelMember(userID domain.UserID, channelID string) error {
	return s.set(memberKey("ch", userID, channelID), nil)
}

func (s *Store) AddDirectThread(dmID string, participants ...domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, userID := range participants {
			if err := txn.Set([]byte(memberKey("dm", userID, dmID)), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func memberKey(kind string, userID domain.UserID, id string) string {
	return fmt.Sprintf("user:%s:%s:%s", kind, userID, id)
}

func (s *Store) set(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (s *Store) has(key string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		found, err = exists(txn, key)
		return err
	})
	return found, err
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// scanSuffixes collects the trailing key segment for every key under prefix.
func (s *Store) scanSuffixes(prefix string) ([]string, error) {
	var out []string
	p := []byte(prefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			out = append(out, strings.TrimPrefix(string(it.Item().Key()), prefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	return out, nil
}
