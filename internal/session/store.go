package session

import (
	"time"

	"github.com/google/uuid"

	"fintrack/internal/cache"
)

// Store keeps sessions in memory, evicting idle ones after the TTL.
type Store struct {
	sessions *cache.LRUCache[*Session]
}

func NewStore(maxSessions int, ttl time.Duration) *Store {
	return &Store{sessions: cache.NewLRUCache[*Session](maxSessions, ttl)}
}

// Create starts an uninitialized session with a random id.
func (st *Store) Create() *Session {
	s := New(uuid.NewString())
	st.sessions.Set(s.ID(), s)
	return s
}

// Get returns a live session and extends its lifetime.
func (st *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	s, ok := st.sessions.Get(id)
	if ok {
		st.sessions.Touch(id)
	}
	return s, ok
}

func (st *Store) Delete(id string) {
	st.sessions.Delete(id)
}

func (st *Store) Len() int {
	return st.sessions.Size()
}

// Cleaner exposes the backing cache for periodic expiry.
func (st *Store) Cleaner() cache.Cleaner {
	return st.sessions
}
