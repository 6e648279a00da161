package services

import (
	"testing"

	"github.com/LovationAdmin/finance-tracker/models"
)

func TestSessionClearNotifiesOnce(t *testing.T) {
	s := testSession("u1")

	var calls []*models.User
	s.Watch(func(u *models.User) { calls = append(calls, u) })

	s.Clear()
	s.Clear()

	if len(calls) != 1 || calls[0] != nil {
		t.Fatalf("watchers got %v, want a single nil", calls)
	}
	if s.UserID() != "" || s.Current() != nil {
		t.Error("session still has a user after Clear")
	}
}

func TestSessionWatchUnregister(t *testing.T) {
	s := testSession("u1")

	called := false
	stop := s.Watch(func(*models.User) { called = true })
	stop()
	s.Clear()

	if called {
		t.Error("unregistered watcher was called")
	}
}

func TestSessionCurrentIsACopy(t *testing.T) {
	s := testSession("u1")
	u := s.Current()
	u.DisplayName = "changed"

	if s.Current().DisplayName == "changed" {
		t.Error("Current leaked internal state")
	}
}

func TestSessionUpdateAfterClearIgnored(t *testing.T) {
	s := testSession("u1")
	s.Clear()
	s.update(models.User{ID: "u1"})

	if s.Current() != nil {
		t.Error("update revived a cleared session")
	}
}

func TestNilSessionUserID(t *testing.T) {
	var s *Session
	if s.UserID() != "" {
		t.Error("nil session has a user id")
	}
}
