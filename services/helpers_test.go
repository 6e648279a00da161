package services

import (
	"testing"
	"time"

	"github.com/LovationAdmin/finance-tracker/models"
)

// eventually polls cond until it holds or a second has passed.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func testSession(uid string) *Session {
	return NewSession("sess-"+uid, &models.User{ID: uid, Email: uid + "@example.com", DisplayName: "Ada Lovelace"})
}
