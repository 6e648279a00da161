package views

import (
	"context"
	"testing"
	"time"

	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
)

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

func session(name string) *services.Session {
	return services.NewSession("s1", &models.User{ID: "u1", Email: "ada@example.com", DisplayName: name})
}

func openDashboard(t *testing.T, st store.Store, s *services.Session) *Dashboard {
	t.Helper()
	d := NewDashboard(st, s)
	if err := d.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}
