package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/store"
	"github.com/LovationAdmin/finance-tracker/utils"
)

const UsersCollection = "users"

// ThemeSwitch applies the display mode for a theme change.
type ThemeSwitch func(light bool)

// PreferencesStore keeps the signed-in user's preferences in sync with the
// users collection. The published value is always the defaults with the
// stored fields merged on top.
type PreferencesStore struct {
	st      store.Store
	session *Session
	theme   ThemeSwitch
	now     func() time.Time

	mu        sync.RWMutex
	prefs     models.Preferences
	ready     bool
	err       error
	lastTheme string
	unsub     store.Unsubscribe
	unwatch   func()

	readyCh   chan struct{}
	readyOnce sync.Once
	watchers  observers[models.Preferences]
}

func NewPreferencesStore(st store.Store, session *Session) *PreferencesStore {
	return &PreferencesStore{
		st:      st,
		session: session,
		theme:   utils.SetLightTheme,
		now:     time.Now,
		prefs:   models.DefaultPreferences(),
		readyCh: make(chan struct{}),
	}
}

// SetThemeSwitch replaces the theme side effect. Call before Load.
func (p *PreferencesStore) SetThemeSwitch(fn ThemeSwitch) {
	p.theme = fn
}

// Load subscribes to the user's preference record and waits for the first
// published value. A missing record is created from the defaults.
func (p *PreferencesStore) Load(ctx context.Context) error {
	user := p.session.Current()
	if user == nil {
		utils.SafeWarn("Preferences load without an authenticated user")
		return ErrNotAuthenticated
	}

	firstErr := make(chan error, 1)
	unsub, err := p.st.SubscribeDoc(ctx, UsersCollection, user.ID,
		func(doc *store.Document) { p.onSnapshot(ctx, user, doc) },
		func(err error) {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			select {
			case firstErr <- err:
			default:
			}
		})
	if err != nil {
		return fmt.Errorf("failed to subscribe to preferences: %w", err)
	}

	unwatch := p.session.Watch(func(u *models.User) {
		if u == nil {
			p.Close()
		}
	})
	p.mu.Lock()
	p.unsub = unsub
	p.unwatch = unwatch
	p.mu.Unlock()
	if p.session.UserID() == "" {
		p.Close()
		return ErrNotAuthenticated
	}

	select {
	case <-p.readyCh:
		return nil
	case err := <-firstErr:
		p.Close()
		return err
	case <-ctx.Done():
		p.Close()
		return ctx.Err()
	}
}

func (p *PreferencesStore) onSnapshot(ctx context.Context, user *models.User, doc *store.Document) {
	if doc == nil {
		initial := models.DefaultPreferences()
		initial.DisplayName = user.DisplayName
		initial.CreatedAt = p.now().UnixMilli()
		if err := p.st.Set(ctx, UsersCollection, user.ID, initial.Document()); err != nil {
			utils.SafeError("Failed to create preferences for %s: %v", utils.MaskID(user.ID), err)
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
		} else {
			utils.LogPreferencesAction("Created defaults", user.ID)
		}
		p.publish(initial)
		return
	}
	p.publish(models.MergePreferences(models.DefaultPreferences(), doc.Data))
}

func (p *PreferencesStore) publish(prefs models.Preferences) {
	p.mu.Lock()
	p.prefs = prefs
	p.ready = true
	themeChanged := prefs.Theme != p.lastTheme
	p.lastTheme = prefs.Theme
	p.mu.Unlock()

	if themeChanged && p.theme != nil {
		p.theme(prefs.Theme == models.ThemeLight)
	}
	p.readyOnce.Do(func() { close(p.readyCh) })
	p.watchers.emit(prefs.Clone())
}

// Prefs returns a copy of the latest published value.
func (p *PreferencesStore) Prefs() models.Preferences {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prefs.Clone()
}

func (p *PreferencesStore) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ready
}

// Err returns the last subscription or create error.
func (p *PreferencesStore) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

func (p *PreferencesStore) Watch(fn func(models.Preferences)) func() {
	return p.watchers.add(fn)
}

// SetPref sends patch as a merge write. The local value only changes when the
// subscription delivers the stored result.
func (p *PreferencesStore) SetPref(ctx context.Context, patch models.PreferencesPatch) error {
	uid := p.session.UserID()
	if uid == "" {
		utils.SafeWarn("Preferences write without an authenticated user")
		return ErrNotAuthenticated
	}
	return writePreferences(ctx, p.st, uid, patch)
}

// EffectiveMonth resolves the default month at call time: the explicit
// YYYY-MM preference, or the current month when set to auto.
func (p *PreferencesStore) EffectiveMonth() string {
	return EffectiveMonth(p.Prefs(), p.now())
}

func EffectiveMonth(prefs models.Preferences, now time.Time) string {
	if prefs.DefaultMonth == "" || prefs.DefaultMonth == models.MonthAuto {
		return now.Format("2006-01")
	}
	return prefs.DefaultMonth
}

func (p *PreferencesStore) CategoriesFor(kind models.Kind) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.prefs.Categories.For(kind))
}

// AddCategory appends name to kind's list. Blank or duplicate names are ignored.
func (p *PreferencesStore) AddCategory(ctx context.Context, kind models.Kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	if !kind.Valid() {
		return validationErr("kind", "must be income or expense")
	}
	_, err := EditCategories(ctx, p.st, p.session, func(c models.Categories) (models.Categories, bool) {
		return c.Add(kind, name)
	})
	return err
}

func (p *PreferencesStore) RemoveCategory(ctx context.Context, kind models.Kind, name string) error {
	if !kind.Valid() {
		return validationErr("kind", "must be income or expense")
	}
	_, err := EditCategories(ctx, p.st, p.session, func(c models.Categories) (models.Categories, bool) {
		return c.Remove(kind, name)
	})
	return err
}

// Close ends the subscription. Safe to call more than once.
func (p *PreferencesStore) Close() {
	p.mu.Lock()
	unsub, unwatch := p.unsub, p.unwatch
	p.unsub, p.unwatch = nil, nil
	p.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if unwatch != nil {
		unwatch()
	}
}

// FetchPreferences is the one-shot counterpart of Load used by request
// handlers: it reads the record once, creating it from the defaults when missing.
func FetchPreferences(ctx context.Context, st store.Store, user *models.User) (models.Preferences, error) {
	if user == nil {
		return models.Preferences{}, ErrNotAuthenticated
	}

	doc, err := st.Get(ctx, UsersCollection, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		initial := models.DefaultPreferences()
		initial.DisplayName = user.DisplayName
		initial.CreatedAt = time.Now().UnixMilli()
		if err := st.Set(ctx, UsersCollection, user.ID, initial.Document()); err != nil {
			return models.Preferences{}, fmt.Errorf("failed to create preferences: %w", err)
		}
		utils.LogPreferencesAction("Created defaults", user.ID)
		return initial, nil
	}
	if err != nil {
		return models.Preferences{}, fmt.Errorf("failed to read preferences: %w", err)
	}
	return models.MergePreferences(models.DefaultPreferences(), doc.Data), nil
}

// UpdatePreferences validates and merges patch into the user's record.
func UpdatePreferences(ctx context.Context, st store.Store, session *Session, patch models.PreferencesPatch) error {
	uid := session.UserID()
	if uid == "" {
		utils.SafeWarn("Preferences write without an authenticated user")
		return ErrNotAuthenticated
	}
	return writePreferences(ctx, st, uid, patch)
}

func writePreferences(ctx context.Context, st store.Store, uid string, patch models.PreferencesPatch) error {
	if err := patch.Validate(); err != nil {
		return validationErr("preferences", err.Error())
	}
	if patch.Empty() {
		return nil
	}
	if err := st.Merge(ctx, UsersCollection, uid, patch.Fields()); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	utils.LogPreferencesAction("Updated", uid)
	return nil
}

// EditCategories applies edit to the category lists as currently stored and
// returns the result. The read and the write happen under the store's
// document lock, so concurrent edits never overwrite one another. An edit
// that changes nothing writes nothing.
func EditCategories(ctx context.Context, st store.Store, session *Session, edit func(models.Categories) (models.Categories, bool)) (models.Categories, error) {
	uid := session.UserID()
	if uid == "" {
		utils.SafeWarn("Category edit without an authenticated user")
		return models.Categories{}, ErrNotAuthenticated
	}

	var (
		result  models.Categories
		changed bool
	)
	err := st.Update(ctx, UsersCollection, uid, func(data map[string]any) (map[string]any, error) {
		if data == nil {
			return nil, store.ErrNotFound
		}
		result, changed = edit(models.MergePreferences(models.DefaultPreferences(), data).Categories)
		if !changed {
			return nil, nil
		}
		return models.PreferencesPatch{Categories: &result}.Fields(), nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Categories{}, err
		}
		return models.Categories{}, fmt.Errorf("failed to update categories: %w", err)
	}
	if changed {
		utils.LogPreferencesAction("Updated categories", uid)
	}
	return result, nil
}
