package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/finance-tracker/handlers"
	"github.com/LovationAdmin/finance-tracker/middleware"
	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/routes"
	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
)

type testServer struct {
	router *gin.Engine
	store  *store.MemoryStore
	auth   *services.AuthService
	ws     *handlers.WSHandler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	auth := services.NewAuthService(st, services.AuthConfig{JWTSecret: "test-secret"})
	ws := handlers.NewWSHandler(st)
	ws.ConfirmTimeout = 2 * time.Second

	r := gin.New()
	routes.Setup(r, auth, st, ws, middleware.AuthMiddleware(auth))

	t.Cleanup(func() {
		_ = ws.M.Close()
		_ = st.Close()
	})
	return &testServer{router: r, store: st, auth: auth, ws: ws}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// signup registers an account and returns its token and user id.
func (s *testServer) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"email":    email,
		"password": "secret123",
		"name":     "Ada Lovelace",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", w.Code, w.Body)
	}
	var resp models.AuthResponse
	decode(t, w, &resp)
	return resp.Token, resp.User.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body, err)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
