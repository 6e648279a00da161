package views

import (
	"context"
	"sync"

	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
)

type SettingsState struct {
	Ready       bool               `json:"ready"`
	Preferences models.Preferences `json:"preferences"`
	Currencies  []string           `json:"currencies"`
	NewExpense  string             `json:"newExpense"`
	NewIncome   string             `json:"newIncome"`
	LightMode   bool               `json:"lightMode"`
}

// Settings edits the preferences record.
type Settings struct {
	session *services.Session
	prefs   *services.PreferencesStore

	mu         sync.Mutex
	newExpense string
	newIncome  string
	onChange   func()
	stops      []func()

	closeOnce sync.Once
}

func NewSettings(st store.Store, session *services.Session) *Settings {
	return &Settings{
		session: session,
		prefs:   services.NewPreferencesStore(st, session),
	}
}

func (s *Settings) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Settings) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Settings) Open(ctx context.Context) error {
	if err := s.prefs.Load(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.stops = append(s.stops,
		s.prefs.Watch(func(models.Preferences) { s.notify() }),
		s.session.Watch(func(u *models.User) {
			if u == nil {
				s.Close()
			}
		}),
	)
	s.mu.Unlock()
	return nil
}

// SetInput updates the pending new-category text for kind.
func (s *Settings) SetInput(kind models.Kind, value string) error {
	s.mu.Lock()
	switch kind {
	case models.KindExpense:
		s.newExpense = value
	case models.KindIncome:
		s.newIncome = value
	default:
		s.mu.Unlock()
		return &services.ValidationError{Field: "kind", Message: "Kind must be income or expense"}
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// AddCategory adds the pending input of kind and clears it.
func (s *Settings) AddCategory(ctx context.Context, kind models.Kind) error {
	s.mu.Lock()
	value := s.newExpense
	if kind == models.KindIncome {
		value = s.newIncome
	}
	s.mu.Unlock()

	if err := s.prefs.AddCategory(ctx, kind, value); err != nil {
		return err
	}

	s.mu.Lock()
	if kind == models.KindIncome {
		s.newIncome = ""
	} else {
		s.newExpense = ""
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Settings) RemoveCategory(ctx context.Context, kind models.Kind, name string) error {
	return s.prefs.RemoveCategory(ctx, kind, name)
}

func (s *Settings) SetPref(ctx context.Context, patch models.PreferencesPatch) error {
	return s.prefs.SetPref(ctx, patch)
}

// ToggleAdvancedFilters flips the advanced filter visibility.
func (s *Settings) ToggleAdvancedFilters(ctx context.Context) error {
	next := !s.prefs.Prefs().ShowAdvancedFilters
	return s.prefs.SetPref(ctx, models.PreferencesPatch{ShowAdvancedFilters: &next})
}

func (s *Settings) State() SettingsState {
	prefs := s.prefs.Prefs()
	s.mu.Lock()
	defer s.mu.Unlock()
	return SettingsState{
		Ready:       s.prefs.Ready(),
		Preferences: prefs,
		Currencies:  models.Currencies,
		NewExpense:  s.newExpense,
		NewIncome:   s.newIncome,
		LightMode:   prefs.Theme == models.ThemeLight,
	}
}

func (s *Settings) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		stops := s.stops
		s.stops = nil
		s.mu.Unlock()
		for _, stop := range stops {
			stop()
		}
		s.prefs.Close()
	})
}
