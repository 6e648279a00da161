package services

import (
	"sync"

	"github.com/LovationAdmin/finance-tracker/models"
)

// Session is the authorization context of one signed-in client. It is created
// by AuthService and handed to every component that reads or writes user data.
type Session struct {
	id string

	mu       sync.RWMutex
	user     *models.User
	watchers observers[*models.User]
}

func NewSession(id string, user *models.User) *Session {
	s := &Session{id: id}
	if user != nil {
		u := *user
		s.user = &u
	}
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Current returns a copy of the signed-in user, or nil after sign-out.
func (s *Session) Current() *models.User {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// UserID returns "" when nobody is signed in.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// update replaces the user record, e.g. after a profile change. Ignored once cleared.
func (s *Session) update(user models.User) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}
	s.user = &user
	s.mu.Unlock()
	s.watchers.emit(s.Current())
}

// Watch registers fn for identity changes; a nil user means signed out.
func (s *Session) Watch(fn func(*models.User)) func() {
	return s.watchers.add(fn)
}

// Clear signs the session out and notifies watchers once.
func (s *Session) Clear() {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return
	}
	s.user = nil
	s.mu.Unlock()
	s.watchers.emit(nil)
}
