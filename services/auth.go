package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/store"
	"github.com/LovationAdmin/finance-tracker/utils"
)

const (
	AccountsCollection = "accounts"
	SessionsCollection = "sessions"
)

// Auth error codes, stable across the API.
const (
	CodeInvalidCredential = "auth/invalid-credential"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeWeakPassword      = "auth/weak-password"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeInvalidName       = "auth/invalid-name"
	CodeTOTPRequired      = "auth/totp-required"
	CodeInvalidTOTP       = "auth/invalid-totp"
)

type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *AuthError) Unwrap() error { return e.Err }

func authErr(code string) error {
	return &AuthError{Code: code}
}

// AuthCode returns the code of an AuthError in err's chain, or "".
func AuthCode(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

type AuthOp int

const (
	OpSignIn AuthOp = iota
	OpSignUp
	OpTwoFactor
)

var authMessages = map[string]string{
	CodeInvalidCredential: "Email or password is incorrect.",
	CodeTooManyRequests:   "Too many attempts. Please wait and try again.",
	CodeEmailInUse:        "This email is already in use.",
	CodeWeakPassword:      "Password is too weak (at least 6 characters).",
	CodeInvalidEmail:      "Email format is invalid.",
	CodeInvalidName:       "Please enter your full name.",
	CodeTOTPRequired:      "Two-factor code required.",
	CodeInvalidTOTP:       "Invalid two-factor code.",
}

// AuthMessage maps err to the user-facing message for op.
func AuthMessage(err error, op AuthOp) string {
	if msg, ok := authMessages[AuthCode(err)]; ok {
		return msg
	}
	switch op {
	case OpSignUp:
		return "Registration failed."
	case OpTwoFactor:
		return "Two-factor update failed."
	default:
		return "An error occurred while signing in."
	}
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	EncryptionKey string
	MaxAttempts   int
	Window        time.Duration
}

// AuthService is the identity provider: accounts, sign-in sessions and the
// optional TOTP second factor. Live sessions are shared by every request and
// websocket that presents a token for them.
type AuthService struct {
	st  store.Store
	cfg AuthConfig
	now func() time.Time

	signupMu sync.Mutex

	mu       sync.Mutex
	failures map[string]*failureWindow
	sessions map[string]*Session
}

type failureWindow struct {
	count     int
	resetTime time.Time
}

func NewAuthService(st store.Store, cfg AuthConfig) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &AuthService{
		st:       st,
		cfg:      cfg,
		now:      time.Now,
		failures: make(map[string]*failureWindow),
		sessions: make(map[string]*Session),
	}
}

type account struct {
	ID            string
	Email         string
	PasswordHash  string
	DisplayName   string
	TOTPSecret    string
	TOTPEncrypted bool
	TOTPEnabled   bool
	CreatedAt     int64
}

func accountFromDocument(doc store.Document) account {
	a := account{
		ID:           doc.ID,
		Email:        doc.String("email"),
		PasswordHash: doc.String("passwordHash"),
		DisplayName:  doc.String("displayName"),
		TOTPSecret:   doc.String("totpSecret"),
	}
	a.TOTPEncrypted, _ = doc.Data["totpEncrypted"].(bool)
	a.TOTPEnabled, _ = doc.Data["totpEnabled"].(bool)
	a.CreatedAt = int64Value(doc.Data["createdAt"])
	return a
}

func (a account) user() models.User {
	return models.User{
		ID:          a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		TOTPEnabled: a.TOTPEnabled,
		CreatedAt:   time.UnixMilli(a.CreatedAt).UTC(),
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", authErr(CodeInvalidEmail)
	}
	return email, nil
}

// SignUp creates the account, sets its display name and opens a session.
func (a *AuthService) SignUp(ctx context.Context, email, password, displayName string) (*models.AuthResponse, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if len([]rune(displayName)) < 2 {
		return nil, authErr(CodeInvalidName)
	}
	hash, err := utils.HashPassword(password)
	if errors.Is(err, utils.ErrPasswordTooShort) {
		return nil, authErr(CodeWeakPassword)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	a.signupMu.Lock()
	defer a.signupMu.Unlock()

	if _, err := a.findByEmail(ctx, email); err == nil {
		utils.LogAuthAction("Signup", email, false)
		return nil, authErr(CodeEmailInUse)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	acc := account{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		CreatedAt:    a.now().UnixMilli(),
	}
	id, err := a.st.Add(ctx, AccountsCollection, map[string]any{
		"email":        acc.Email,
		"passwordHash": acc.PasswordHash,
		"displayName":  acc.DisplayName,
		"totpEnabled":  false,
		"createdAt":    acc.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	acc.ID = id

	utils.LogAuthAction("Signup", email, true)
	return a.openSession(ctx, acc)
}

// SignIn checks the credentials and, when enabled, the TOTP code.
func (a *AuthService) SignIn(ctx context.Context, email, password, totpCode string) (*models.AuthResponse, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if a.limited(key) {
		utils.LogAuthAction("Login", key, false)
		return nil, authErr(CodeTooManyRequests)
	}

	acc, err := a.findByEmail(ctx, key)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !utils.CheckPassword(password, acc.PasswordHash)) {
		a.recordFailure(key)
		utils.LogAuthAction("Login", key, false)
		return nil, authErr(CodeInvalidCredential)
	}
	if err != nil {
		return nil, err
	}

	if acc.TOTPEnabled {
		if strings.TrimSpace(totpCode) == "" {
			return nil, authErr(CodeTOTPRequired)
		}
		secret, err := a.totpSecret(acc)
		if err != nil {
			return nil, err
		}
		if !utils.VerifyTOTP(secret, strings.TrimSpace(totpCode)) {
			a.recordFailure(key)
			utils.LogAuthAction("Login 2FA", key, false)
			return nil, authErr(CodeInvalidTOTP)
		}
	}

	a.clearFailures(key)
	utils.LogAuthAction("Login", key, true)
	return a.openSession(ctx, acc)
}

func (a *AuthService) openSession(ctx context.Context, acc account) (*models.AuthResponse, error) {
	sid := uuid.New().String()
	token, expiresAt, err := utils.GenerateAccessToken(acc.ID, acc.Email, sid, a.cfg.JWTSecret, a.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	if err := a.st.Set(ctx, SessionsCollection, sid, map[string]any{
		"uid":       acc.ID,
		"expiresAt": expiresAt.UnixMilli(),
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.AuthResponse{Token: token, ExpiresAt: expiresAt, User: acc.user()}, nil
}

// Authenticate resolves a bearer token to its live Session.
func (a *AuthService) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := utils.ParseAccessToken(token, a.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	doc, err := a.st.Get(ctx, SessionsCollection, claims.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		a.dropSession(claims.SessionID)
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if doc.String("uid") != claims.UserID || int64Value(doc.Data["expiresAt"]) < a.now().UnixMilli() {
		_ = a.st.Delete(ctx, SessionsCollection, claims.SessionID)
		a.dropSession(claims.SessionID)
		return nil, ErrSessionExpired
	}

	acc, err := a.account(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	user := acc.user()

	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[claims.SessionID]; ok && s.UserID() != "" {
		return s, nil
	}
	s := NewSession(claims.SessionID, &user)
	a.sessions[claims.SessionID] = s
	return s, nil
}

// SignOut ends the session everywhere it is in use.
func (a *AuthService) SignOut(ctx context.Context, sessionID string) error {
	err := a.st.Delete(ctx, SessionsCollection, sessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	a.dropSession(sessionID)
	return nil
}

func (a *AuthService) dropSession(sessionID string) {
	a.mu.Lock()
	s, ok := a.sessions[sessionID]
	delete(a.sessions, sessionID)
	a.mu.Unlock()
	if ok {
		s.Clear()
	}
}

// UpdateDisplayName changes the account name and the name stored with the
// preferences, then refreshes the live sessions of the user.
func (a *AuthService) UpdateDisplayName(ctx context.Context, session *Session, name string) (*models.User, error) {
	uid := session.UserID()
	if uid == "" {
		return nil, ErrNotAuthenticated
	}
	name = strings.TrimSpace(name)
	if len([]rune(name)) < 2 {
		return nil, authErr(CodeInvalidName)
	}

	if err := a.st.Merge(ctx, AccountsCollection, uid, map[string]any{"displayName": name}); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if err := a.st.Merge(ctx, UsersCollection, uid, map[string]any{"displayName": name}); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	acc, err := a.account(ctx, uid)
	if err != nil {
		return nil, err
	}
	user := acc.user()
	a.refreshSessions(user)
	return &user, nil
}

func (a *AuthService) refreshSessions(user models.User) {
	a.mu.Lock()
	var live []*Session
	for _, s := range a.sessions {
		if s.UserID() == user.ID {
			live = append(live, s)
		}
	}
	a.mu.Unlock()
	for _, s := range live {
		s.update(user)
	}
}

// SetupTOTP generates and stores a new, not yet enabled, TOTP secret.
func (a *AuthService) SetupTOTP(ctx context.Context, session *Session) (*models.TOTPSetupResponse, error) {
	user := session.Current()
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	secret, url, err := utils.GenerateTOTPSecret(user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	stored, encrypted := secret, false
	if a.cfg.EncryptionKey != "" {
		if stored, err = utils.Encrypt(a.cfg.EncryptionKey, []byte(secret)); err != nil {
			return nil, fmt.Errorf("failed to encrypt TOTP secret: %w", err)
		}
		encrypted = true
	} else {
		utils.SafeWarn("DATA_ENCRYPTION_KEY not set, storing TOTP secret unencrypted")
	}

	if err := a.st.Merge(ctx, AccountsCollection, user.ID, map[string]any{
		"totpSecret":    stored,
		"totpEncrypted": encrypted,
		"totpEnabled":   false,
	}); err != nil {
		return nil, fmt.Errorf("failed to save TOTP secret: %w", err)
	}
	return &models.TOTPSetupResponse{Secret: secret, URL: url}, nil
}

// EnableTOTP turns the second factor on once code matches the pending secret.
func (a *AuthService) EnableTOTP(ctx context.Context, session *Session, code string) error {
	acc, err := a.sessionAccount(ctx, session)
	if err != nil {
		return err
	}
	if acc.TOTPSecret == "" {
		return validationErr("totp", "Run 2FA setup first")
	}
	secret, err := a.totpSecret(acc)
	if err != nil {
		return err
	}
	if !utils.VerifyTOTP(secret, code) {
		return authErr(CodeInvalidTOTP)
	}
	if err := a.st.Merge(ctx, AccountsCollection, acc.ID, map[string]any{"totpEnabled": true}); err != nil {
		return fmt.Errorf("failed to enable 2FA: %w", err)
	}
	acc.TOTPEnabled = true
	a.refreshSessions(acc.user())
	utils.LogAuthAction("2FA enabled", acc.Email, true)
	return nil
}

// DisableTOTP needs both the password and a current code.
func (a *AuthService) DisableTOTP(ctx context.Context, session *Session, password, code string) error {
	acc, err := a.sessionAccount(ctx, session)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(password, acc.PasswordHash) {
		return authErr(CodeInvalidCredential)
	}
	if !acc.TOTPEnabled {
		return nil
	}
	secret, err := a.totpSecret(acc)
	if err != nil {
		return err
	}
	if !utils.VerifyTOTP(secret, code) {
		return authErr(CodeInvalidTOTP)
	}
	if err := a.st.Merge(ctx, AccountsCollection, acc.ID, map[string]any{
		"totpEnabled":   false,
		"totpSecret":    "",
		"totpEncrypted": false,
	}); err != nil {
		return fmt.Errorf("failed to disable 2FA: %w", err)
	}
	acc.TOTPEnabled = false
	a.refreshSessions(acc.user())
	utils.LogAuthAction("2FA disabled", acc.Email, true)
	return nil
}

func (a *AuthService) sessionAccount(ctx context.Context, session *Session) (account, error) {
	uid := session.UserID()
	if uid == "" {
		return account{}, ErrNotAuthenticated
	}
	return a.account(ctx, uid)
}

func (a *AuthService) totpSecret(acc account) (string, error) {
	if !acc.TOTPEncrypted {
		return acc.TOTPSecret, nil
	}
	plain, err := utils.Decrypt(a.cfg.EncryptionKey, acc.TOTPSecret)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}
	return string(plain), nil
}

func (a *AuthService) account(ctx context.Context, id string) (account, error) {
	doc, err := a.st.Get(ctx, AccountsCollection, id)
	if err != nil {
		return account{}, fmt.Errorf("failed to load account: %w", err)
	}
	return accountFromDocument(*doc), nil
}

func (a *AuthService) findByEmail(ctx context.Context, email string) (account, error) {
	docs, err := a.st.Query(ctx, store.Query{
		Collection: AccountsCollection,
		Where:      []store.Filter{{Field: "email", Value: email}},
	})
	if err != nil {
		return account{}, fmt.Errorf("failed to look up account: %w", err)
	}
	if len(docs) == 0 {
		return account{}, store.ErrNotFound
	}
	return accountFromDocument(docs[0]), nil
}

// limited reports whether email has used up its failed attempts in the current window.
func (a *AuthService) limited(email string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	w, ok := a.failures[email]
	if !ok {
		return false
	}
	if a.now().After(w.resetTime) {
		delete(a.failures, email)
		return false
	}
	return w.count >= a.cfg.MaxAttempts
}

func (a *AuthService) recordFailure(email string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	w, ok := a.failures[email]
	if !ok || now.After(w.resetTime) {
		a.failures[email] = &failureWindow{count: 1, resetTime: now.Add(a.cfg.Window)}
		return
	}
	w.count++
}

func (a *AuthService) clearFailures(email string) {
	a.mu.Lock()
	delete(a.failures, email)
	a.mu.Unlock()
}

func int64Value(v any) int64 {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, _ := n.Float64()
		return int64(f)
	case float64:
		return int64(n)
	case int64:
		return n
	}
	return 0
}

// ChangePassword replaces the password after checking the current one.
func (a *AuthService) ChangePassword(ctx context.Context, session *Session, current, next string) error {
	acc, err := a.sessionAccount(ctx, session)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(current, acc.PasswordHash) {
		return authErr(CodeInvalidCredential)
	}
	hash, err := utils.HashPassword(next)
	if errors.Is(err, utils.ErrPasswordTooShort) {
		return authErr(CodeWeakPassword)
	}
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := a.st.Merge(ctx, AccountsCollection, acc.ID, map[string]any{"passwordHash": hash}); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	utils.LogAuthAction("Password changed", acc.Email, true)
	return nil
}

// DeleteAccount removes the account with its preferences, transactions and
// sessions, then signs out every live session of the user.
func (a *AuthService) DeleteAccount(ctx context.Context, session *Session, password string) error {
	acc, err := a.sessionAccount(ctx, session)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(password, acc.PasswordHash) {
		return authErr(CodeInvalidCredential)
	}

	owned := func(collection string) ([]store.Document, error) {
		return a.st.Query(ctx, store.Query{
			Collection: collection,
			Where:      []store.Filter{{Field: "uid", Value: acc.ID}},
		})
	}
	for _, collection := range []string{TransactionsCollection, SessionsCollection} {
		docs, err := owned(collection)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", collection, err)
		}
		for _, d := range docs {
			if err := a.st.Delete(ctx, collection, d.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("failed to delete from %s: %w", collection, err)
			}
		}
	}
	for _, collection := range []string{UsersCollection, AccountsCollection} {
		if err := a.st.Delete(ctx, collection, acc.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to delete from %s: %w", collection, err)
		}
	}

	a.mu.Lock()
	var live []*Session
	for id, s := range a.sessions {
		if s.UserID() == acc.ID {
			live = append(live, s)
			delete(a.sessions, id)
		}
	}
	a.mu.Unlock()
	for _, s := range live {
		s.Clear()
	}

	utils.LogAuthAction("Account deleted", acc.Email, true)
	return nil
}
