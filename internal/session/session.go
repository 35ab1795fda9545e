package session

import (
	"sync"

	"sentinel-guard/internal/model"
)

// Session owns the bearer token and the logged in user. It is the only
// place the token is read from or cleared.
type Session struct {
	mu    sync.RWMutex
	token string
	user  *model.UserInfo
	hooks []func()
	store Store
}

// Store persists a session between process runs.
type Store interface {
	Load() (string, *model.UserInfo, error)
	Save(token string, user *model.UserInfo) error
	Clear() error
}

func New() *Session {
	return &Session{}
}

// NewWithStore restores any saved token from store and persists later changes to it.
func NewWithStore(store Store) (*Session, error) {
	s := &Session{store: store}
	token, user, err := store.Load()
	if err != nil {
		return s, err
	}
	s.token = token
	s.user = user
	return s, nil
}

func (s *Session) Set(token string, user *model.UserInfo) error {
	s.mu.Lock()
	s.token = token
	s.user = user
	store := s.store
	s.mu.Unlock()

	if store != nil {
		return store.Save(token, user)
	}
	return nil
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) User() *model.UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// OnInvalidate registers a hook run after the session is cleared.
func (s *Session) OnInvalidate(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Invalidate clears token and user info and runs the registered hooks.
func (s *Session) Invalidate() error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	hooks := make([]func(), len(s.hooks))
	copy(hooks, s.hooks)
	store := s.store
	s.mu.Unlock()

	var err error
	if store != nil {
		err = store.Clear()
	}
	for _, hook := range hooks {
		hook()
	}
	return err
}
