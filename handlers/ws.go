package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/olahol/melody"

	"github.com/LovationAdmin/finance-tracker/middleware"
	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
	"github.com/LovationAdmin/finance-tracker/utils"
	"github.com/LovationAdmin/finance-tracker/views"
)

const (
	viewDashboard = "dashboard"
	viewSettings  = "settings"

	connKey = "conn"
)

// WSHandler serves the live pages: every connection owns one view controller
// and receives its full state after each change.
type WSHandler struct {
	M              *melody.Melody
	Store          store.Store
	ConfirmTimeout time.Duration
}

func NewWSHandler(st store.Store) *WSHandler {
	m := melody.New()
	m.Config.MaxMessageSize = 64 * 1024

	// Keep-Alive Configuration
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	h := &WSHandler{M: m, Store: st, ConfirmTimeout: 30 * time.Second}

	m.HandleConnect(h.connect)
	m.HandleMessage(h.message)
	m.HandleDisconnect(func(s *melody.Session) {
		if lc := connOf(s); lc != nil {
			lc.close()
			utils.LogWebSocket("Disconnected", lc.session.UserID(), lc.view)
		}
	})
	m.HandleError(func(s *melody.Session, err error) {
		log.Printf("❌ WebSocket Error: %v", err)
	})

	return h
}

// HandleWS upgrades /ws/:view for an authenticated session.
func (h *WSHandler) HandleWS(c *gin.Context) {
	view := c.Param("view")
	if view != viewDashboard && view != viewSettings {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown view"})
		return
	}
	session := middleware.GetSession(c)
	if session.UserID() == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	keys := map[string]any{"view": view, "session": session}
	if err := h.M.HandleRequestWithKeys(c.Writer, c.Request, keys); err != nil {
		log.Printf("❌ Failed to upgrade websocket: %v", err)
	}
}

// liveView is what both page controllers share.
type liveView interface {
	OnChange(fn func())
	Open(ctx context.Context) error
	Close()
}

type liveConn struct {
	ws      *melody.Session
	session *services.Session
	view    string
	page    liveView
	timeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	unwatch func()

	mu      sync.Mutex
	pending map[string]chan bool
}

func connOf(s *melody.Session) *liveConn {
	v, ok := s.Get(connKey)
	if !ok {
		return nil
	}
	lc, _ := v.(*liveConn)
	return lc
}

func (h *WSHandler) connect(s *melody.Session) {
	view, _ := s.Get("view")
	sv, _ := s.Get("session")
	session, _ := sv.(*services.Session)

	ctx, cancel := context.WithCancel(context.Background())
	lc := &liveConn{
		ws:      s,
		session: session,
		timeout: h.ConfirmTimeout,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]chan bool),
	}
	lc.view, _ = view.(string)
	if lc.view == viewSettings {
		lc.page = views.NewSettings(h.Store, session)
	} else {
		lc.page = views.NewDashboard(h.Store, session)
	}
	s.Set(connKey, lc)

	lc.page.OnChange(lc.pushState)
	if err := lc.page.Open(ctx); err != nil {
		lc.sendError(err)
		_ = s.Close()
		return
	}
	lc.unwatch = session.Watch(func(u *models.User) {
		if u == nil {
			lc.send(frame{Type: "error", Error: "Signed out"})
			_ = s.Close()
		}
	})
	utils.LogWebSocket("Connected", session.UserID(), lc.view)
	lc.pushState()
}

func (lc *liveConn) close() {
	lc.cancel()
	lc.page.Close()
	if lc.unwatch != nil {
		lc.unwatch()
	}
}

// frame is a server to client message.
type frame struct {
	Type   string `json:"type"`
	State  any    `json:"state,omitempty"`
	ID     string `json:"id,omitempty"`
	Prompt string `json:"prompt,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (lc *liveConn) send(f frame) {
	msg, err := json.Marshal(f)
	if err != nil {
		utils.SafeError("Failed to encode %s frame: %v", f.Type, err)
		return
	}
	if err := lc.ws.Write(msg); err != nil {
		utils.SafeDebug("Dropped %s frame: %v", f.Type, err)
	}
}

func (lc *liveConn) sendError(err error) {
	_, msg := statusFor(err, services.OpSignIn, "Request failed")
	if !services.IsValidation(err) {
		utils.SafeWarn("WebSocket action failed: %v", err)
	}
	lc.send(frame{Type: "error", Error: msg})
}

func (lc *liveConn) pushState() {
	switch page := lc.page.(type) {
	case *views.Dashboard:
		lc.send(frame{Type: "state", State: page.State()})
	case *views.Settings:
		lc.send(frame{Type: "state", State: page.State()})
	}
}

// Confirm sends a confirm prompt and waits for the matching answer. No
// answer within the timeout counts as a decline.
func (lc *liveConn) Confirm(ctx context.Context, prompt string) (bool, error) {
	id := uuid.NewString()
	answer := make(chan bool, 1)

	lc.mu.Lock()
	lc.pending[id] = answer
	lc.mu.Unlock()
	defer func() {
		lc.mu.Lock()
		delete(lc.pending, id)
		lc.mu.Unlock()
	}()

	lc.send(frame{Type: "confirm", ID: id, Prompt: prompt})

	timer := time.NewTimer(lc.timeout)
	defer timer.Stop()
	select {
	case ok := <-answer:
		return ok, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (lc *liveConn) answer(id string, ok bool) {
	lc.mu.Lock()
	ch := lc.pending[id]
	lc.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- ok:
	default:
	}
}

// clientMessage is a client to server action. Which fields apply depends on Type.
type clientMessage struct {
	Type   string                   `json:"type"`
	Value  string                   `json:"value,omitempty"`
	Field  string                   `json:"field,omitempty"`
	Kind   models.Kind              `json:"kind,omitempty"`
	Name   string                   `json:"name,omitempty"`
	ID     string                   `json:"id,omitempty"`
	Answer bool                     `json:"answer,omitempty"`
	Patch  *models.PreferencesPatch `json:"patch,omitempty"`
}

func (h *WSHandler) message(s *melody.Session, raw []byte) {
	lc := connOf(s)
	if lc == nil {
		return
	}
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		lc.send(frame{Type: "error", Error: "Malformed message"})
		return
	}

	if msg.Type == "confirm" {
		lc.answer(msg.ID, msg.Answer)
		return
	}

	var err error
	switch page := lc.page.(type) {
	case *views.Dashboard:
		err = lc.dashboard(page, msg)
	case *views.Settings:
		err = lc.settings(page, msg)
	}
	if err != nil {
		lc.sendError(err)
	}
}

func unknownAction(t string) error {
	return &services.ValidationError{Field: "type", Message: "Unknown action " + t}
}

func (lc *liveConn) dashboard(d *views.Dashboard, msg clientMessage) error {
	switch msg.Type {
	case "setPage":
		return d.SetPage(views.Page(msg.Value))
	case "setTab":
		return d.SetTab(services.Tab(msg.Value))
	case "setQuery":
		d.SetQuery(msg.Value)
	case "setMonth":
		return d.SetMonth(msg.Value)
	case "setKind":
		return d.SetKind(models.Kind(msg.Value))
	case "setField":
		return d.SetField(msg.Field, msg.Value)
	case "submit":
		// Runs off the read loop so the form can report busy to a second submit.
		go func() {
			if _, err := d.Submit(lc.ctx); err != nil {
				lc.sendError(err)
			}
		}()
	case "remove":
		// The confirm answer arrives on the read loop, so wait elsewhere.
		go func() {
			if _, err := d.Remove(lc.ctx, msg.ID, lc); err != nil && lc.ctx.Err() == nil {
				lc.sendError(err)
			}
		}()
	case "setPref":
		if msg.Patch == nil {
			return nil
		}
		return d.SetPref(lc.ctx, *msg.Patch)
	default:
		return unknownAction(msg.Type)
	}
	return nil
}

func (lc *liveConn) settings(s *views.Settings, msg clientMessage) error {
	switch msg.Type {
	case "setInput":
		return s.SetInput(msg.Kind, msg.Value)
	case "addCategory":
		return s.AddCategory(lc.ctx, msg.Kind)
	case "removeCategory":
		return s.RemoveCategory(lc.ctx, msg.Kind, msg.Name)
	case "toggleAdvancedFilters":
		return s.ToggleAdvancedFilters(lc.ctx)
	case "setPref":
		if msg.Patch == nil {
			return nil
		}
		return s.SetPref(lc.ctx, *msg.Patch)
	default:
		return unknownAction(msg.Type)
	}
}
