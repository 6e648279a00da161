package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	clock := time.Now()
	rl.now = func() time.Time { return clock }

	r := gin.New()
	r.Use(rl.handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	clock = clock.Add(2 * time.Minute)
	rl.cleanup()
	if len(rl.requests) != 0 {
		t.Error("cleanup kept expired clients")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("after window code = %d", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	st := store.NewMemoryStore()
	defer st.Close()
	auth := services.NewAuthService(st, services.AuthConfig{JWTSecret: "test"})
	resp, err := auth.SignUp(context.Background(), "ada@example.com", "secret1", "Ada Lovelace")
	if err != nil {
		t.Fatal(err)
	}

	r := gin.New()
	r.GET("/me", AuthMiddleware(auth), func(c *gin.Context) {
		if GetSession(c) == nil {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, GetUserID(c))
	})

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"no token", "", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized},
		{"header", "Bearer " + resp.Token, "", http.StatusOK},
		{"query", "", "?token=" + resp.Token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Fatalf("code = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && w.Body.String() != resp.User.ID {
				t.Errorf("user id = %q", w.Body.String())
			}
		})
	}
}
