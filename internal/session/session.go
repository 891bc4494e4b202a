// Package session holds the signed-in state of one browser or terminal
// session. State changes only through the identity callbacks Begin, Resolve
// and Clear, and listeners observe every change.
package session

import (
	"errors"
	"sync"
	"time"

	"fintrack/internal/identity"
)

// Status is the lifecycle position of a session.
type Status int

const (
	StatusUninitialized Status = iota
	StatusResolving
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusResolving:
		return "resolving"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// ErrNotAuthenticated is returned when a credential is requested from a
// session without a signed-in user.
var ErrNotAuthenticated = errors.New("not signed in")

// State is an immutable snapshot of a session.
type State struct {
	Status Status
	User   identity.User
}

// Authenticated reports whether the snapshot carries a user.
func (st State) Authenticated() bool {
	return st.Status == StatusAuthenticated
}

// Notice is a transient message shown once to the user.
type Notice struct {
	Kind    string
	Message string
}

const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

type Session struct {
	id string

	mu        sync.RWMutex
	status    Status
	user      identity.User
	notices   []Notice
	listeners map[int]func(State)
	nextID    int
	values    map[string]string
}

func New(id string) *Session {
	return &Session{
		id:        id,
		listeners: make(map[int]func(State)),
		values:    make(map[string]string),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Begin marks the session as waiting for the identity provider.
func (s *Session) Begin() {
	s.transition(StatusResolving, identity.User{})
}

// Resolve applies the provider's answer: a user authenticates the session,
// nil leaves it anonymous.
func (s *Session) Resolve(u *identity.User) {
	if u == nil {
		s.transition(StatusAnonymous, identity.User{})
		return
	}
	s.transition(StatusAuthenticated, *u)
}

// Clear signs the user out locally.
func (s *Session) Clear() {
	s.transition(StatusAnonymous, identity.User{})
}

func (s *Session) transition(status Status, u identity.User) {
	s.mu.Lock()
	s.status = status
	s.user = u
	st := State{Status: status, User: u}
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Status: s.status, User: s.user}
}

// Credential returns the bearer token of the signed-in user.
func (s *Session) Credential() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusAuthenticated || s.user.IDToken == "" {
		return "", ErrNotAuthenticated
	}
	return s.user.IDToken, nil
}

// NeedsRefresh reports whether the credential expires within margin.
func (s *Session) NeedsRefresh(now time.Time, margin time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status == StatusAuthenticated && s.user.Expired(now.Add(margin))
}

// Subscribe registers fn for every later state change and returns a function
// that removes it.
func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) AddNotice(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, Notice{Kind: kind, Message: message})
}

// PopNotices returns and clears pending notices.
func (s *Session) PopNotices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.notices
	s.notices = nil
	return n
}

// SetValue stores a small per-session value such as an OAuth state.
func (s *Session) SetValue(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// TakeValue returns and deletes a stored value.
func (s *Session) TakeValue(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	delete(s.values, key)
	return v, ok
}
