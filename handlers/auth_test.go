package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSignupLoginLogout(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "ada@example.com")

	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"email": "ADA@example.com", "password": "secret123", "name": "Ada",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"email": "bob@example.com", "password": "123", "name": "Bob",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("weak password status = %d, want 400", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "ada@example.com", "password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "ada@example.com", "password": "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)

	if w := s.do(t, http.MethodGet, "/api/v1/user/profile", resp.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("profile status = %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/v1/auth/logout", resp.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("logout status = %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/user/profile", resp.Token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("profile after logout status = %d, want 401", w.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/preferences", "/api/v1/transactions", "/api/v1/summary"} {
		if w := s.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, w.Code)
		}
	}
	if w := s.do(t, http.MethodGet, "/api/v1/preferences", "not-a-token", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", w.Code)
	}
}

func TestUserProfileAndExport(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ada@example.com")

	w := s.do(t, http.MethodPut, "/api/v1/user/profile", token, gin.H{"display_name": "Countess"})
	if w.Code != http.StatusOK {
		t.Fatalf("update profile status = %d, body %s", w.Code, w.Body)
	}

	w = s.do(t, http.MethodPost, "/api/v1/transactions", token, gin.H{
		"kind": "income", "amount": "5000", "date": "2025-01-03", "category": "Salary",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body)
	}

	w = s.do(t, http.MethodGet, "/api/v1/user/export", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd == "" {
		t.Error("export has no Content-Disposition header")
	}
	var export struct {
		User struct {
			DisplayName string `json:"display_name"`
		} `json:"user"`
		Preferences struct {
			Currency    string `json:"currency"`
			DisplayName string `json:"displayName"`
		} `json:"preferences"`
		Transactions []map[string]any `json:"transactions"`
	}
	decode(t, w, &export)
	if export.User.DisplayName != "Countess" || export.Preferences.DisplayName != "Countess" {
		t.Errorf("export names = %q / %q", export.User.DisplayName, export.Preferences.DisplayName)
	}
	if export.Preferences.Currency != "TRY" || len(export.Transactions) != 1 {
		t.Errorf("export = %+v", export)
	}
}

func TestChangePasswordAndDeleteAccount(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.signup(t, "ada@example.com")

	w := s.do(t, http.MethodPost, "/api/v1/user/password", token, gin.H{
		"current_password": "wrong", "new_password": "another123",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong current password status = %d, want 401", w.Code)
	}
	w = s.do(t, http.MethodPost, "/api/v1/user/password", token, gin.H{
		"current_password": "secret123", "new_password": "another123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("change password status = %d, body %s", w.Code, w.Body)
	}

	w = s.do(t, http.MethodDelete, "/api/v1/user/account", token, gin.H{"password": "another123"})
	if w.Code != http.StatusOK {
		t.Fatalf("delete account status = %d, body %s", w.Code, w.Body)
	}
	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "ada@example.com", "password": "another123",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("login after delete status = %d, want 401", w.Code)
	}
}

func TestAuthRequestValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
		body gin.H
	}{
		{"signup bad email", "/api/v1/auth/signup", gin.H{"email": "not-an-email", "password": "secret123", "name": "Ada"}},
		{"signup short password", "/api/v1/auth/signup", gin.H{"email": "ada@example.com", "password": "12345", "name": "Ada"}},
		{"signup missing name", "/api/v1/auth/signup", gin.H{"email": "ada@example.com", "password": "secret123"}},
		{"login bad email", "/api/v1/auth/login", gin.H{"email": "ada", "password": "secret123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(t, http.MethodPost, tt.path, "", tt.body); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body %s", w.Code, w.Body)
			}
		})
	}

	token, _ := s.signup(t, "ada@example.com")
	w := s.do(t, http.MethodPost, "/api/v1/user/password", token, gin.H{
		"current_password": "secret123", "new_password": "123",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("short new password status = %d, want 400", w.Code)
	}
}
