package session

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
)

const defaultCleanupInterval = 10 * time.Minute

// Store keeps sessions in memory. Sessions not touched for idleTTL are evicted;
// an evicted session reads back as idle. A zero idleTTL disables eviction.
//
// Store is safe for concurrent use, but callers must serialize events of the
// same user: Get/Put is a read-modify-write without locking across calls.
type Store struct {
	items *cache.Cache
}

func NewStore(idleTTL time.Duration) *Store {
	if idleTTL <= 0 {
		return &Store{items: cache.New(cache.NoExpiration, 0)}
	}

	cleanup := defaultCleanupInterval
	if idleTTL < cleanup {
		cleanup = idleTTL
	}

	return &Store{items: cache.New(idleTTL, cleanup)}
}

// Get returns the session of userID, or a new idle one.
func (s *Store) Get(userID int64) Session {
	if v, ok := s.items.Get(key(userID)); ok {
		return v.(Session)
	}
	return New(userID)
}

// Put stores sess and restarts its idle timer.
func (s *Store) Put(sess Session) {
	s.items.SetDefault(key(sess.UserID), sess)
}

// Reset drops whatever the user had in progress.
func (s *Store) Reset(userID int64) {
	s.items.Delete(key(userID))
}

func (s *Store) Len() int {
	return s.items.ItemCount()
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
