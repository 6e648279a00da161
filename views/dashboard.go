// Package views holds the per-page controllers: local UI state wired to the
// preferences store and the transaction feed of one session.
package views

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/LovationAdmin/finance-tracker/models"
	"github.com/LovationAdmin/finance-tracker/services"
	"github.com/LovationAdmin/finance-tracker/store"
)

const defaultTitle = "Finance Tracker"

type Page string

const (
	PageOverview Page = "overview"
	PageCharts   Page = "charts"
	PageTable    Page = "table"
)

func (p Page) Valid() bool {
	return p == PageOverview || p == PageCharts || p == PageTable
}

// Form is the new-transaction entry form.
type Form struct {
	Kind     models.Kind `json:"kind"`
	Amount   string      `json:"amount"`
	Date     string      `json:"date"`
	Category string      `json:"category"`
	Note     string      `json:"note"`
}

type DashboardState struct {
	Title string       `json:"title"`
	Ready bool         `json:"ready"`
	Page  Page         `json:"page"`
	Tab   services.Tab `json:"tab"`
	Query string       `json:"query"`
	Month string       `json:"month"`
	Form  Form         `json:"form"`
	Busy  bool         `json:"busy"`

	// Categories offered by the form for its current kind.
	FormCategories []string `json:"formCategories"`

	Totals            services.Totals          `json:"totals"`
	Items             []models.Transaction     `json:"items"`
	Daily             []services.DailyRow      `json:"daily"`
	ExpenseByCategory []services.CategoryTotal `json:"expenseByCategory"`
	IncomeByCategory  []services.CategoryTotal `json:"incomeByCategory"`

	Preferences models.Preferences `json:"preferences"`
	LightMode   bool               `json:"lightMode"`
	Error       string             `json:"error,omitempty"`
}

// Dashboard is the main page: entry form, totals, charts and the table.
type Dashboard struct {
	session *services.Session
	prefs   *services.PreferencesStore
	feed    *services.TransactionFeed

	mu       sync.Mutex
	page     Page
	tab      services.Tab
	query    string
	month    string
	monthSet bool
	form     Form
	busy     bool
	onChange func()
	stops    []func()

	closeOnce sync.Once
}

func NewDashboard(st store.Store, session *services.Session) *Dashboard {
	return newDashboard(session, services.NewPreferencesStore(st, session), services.NewTransactionFeed(st, session), time.Now)
}

func newDashboard(session *services.Session, prefs *services.PreferencesStore, feed *services.TransactionFeed, now func() time.Time) *Dashboard {
	return &Dashboard{
		session: session,
		prefs:   prefs,
		feed:    feed,
		page:    PageOverview,
		tab:     services.TabAll,
		month:   now().Format("2006-01"),
		form: Form{
			Kind: models.KindExpense,
			Date: now().Format("2006-01-02"),
		},
	}
}

// Preferences exposes the page's preference store.
func (d *Dashboard) Preferences() *services.PreferencesStore {
	return d.prefs
}

// OnChange sets the callback run after every state change, local or remote.
// Set it before Open.
func (d *Dashboard) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

func (d *Dashboard) notify() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Open starts both subscriptions. They live until Close, ctx ends, or the
// session signs out.
func (d *Dashboard) Open(ctx context.Context) error {
	if err := d.prefs.Load(ctx); err != nil {
		return err
	}
	if err := d.feed.Start(ctx); err != nil {
		d.prefs.Close()
		return err
	}

	d.mu.Lock()
	if !d.monthSet {
		d.month = d.prefs.EffectiveMonth()
	}
	d.syncCategoryLocked()
	d.stops = append(d.stops,
		d.prefs.Watch(func(models.Preferences) { d.notify() }),
		d.feed.Watch(func([]models.Transaction) { d.notify() }),
		d.feed.OnError(func(error) { d.notify() }),
		d.session.Watch(func(u *models.User) {
			if u == nil {
				d.Close()
			}
		}),
	)
	d.mu.Unlock()
	return nil
}

// syncCategoryLocked keeps the form category within the list of the form kind.
func (d *Dashboard) syncCategoryLocked() {
	list := d.prefs.CategoriesFor(d.form.Kind)
	if slices.Contains(list, d.form.Category) {
		return
	}
	d.form.Category = ""
	if len(list) > 0 {
		d.form.Category = list[0]
	}
}

func (d *Dashboard) SetPage(p Page) error {
	if !p.Valid() {
		return &services.ValidationError{Field: "page", Message: "unknown page"}
	}
	d.mu.Lock()
	d.page = p
	d.mu.Unlock()
	d.notify()
	return nil
}

func (d *Dashboard) SetTab(t services.Tab) error {
	if !t.Valid() {
		return &services.ValidationError{Field: "tab", Message: "unknown tab"}
	}
	d.mu.Lock()
	d.tab = t
	d.mu.Unlock()
	d.notify()
	return nil
}

func (d *Dashboard) SetQuery(q string) {
	d.mu.Lock()
	d.query = q
	d.mu.Unlock()
	d.notify()
}

func (d *Dashboard) SetMonth(month string) error {
	if !models.ValidMonth(month) {
		return &services.ValidationError{Field: "month", Message: "Month must be YYYY-MM"}
	}
	d.mu.Lock()
	d.month = month
	d.monthSet = true
	d.mu.Unlock()
	d.notify()
	return nil
}

// SetKind switches the form between income and expense.
func (d *Dashboard) SetKind(kind models.Kind) error {
	if !kind.Valid() {
		return &services.ValidationError{Field: "kind", Message: "Kind must be income or expense"}
	}
	d.mu.Lock()
	d.form.Kind = kind
	d.syncCategoryLocked()
	d.mu.Unlock()
	d.notify()
	return nil
}

// SetField updates one text field of the form.
func (d *Dashboard) SetField(name, value string) error {
	d.mu.Lock()
	switch name {
	case "amount":
		d.form.Amount = value
	case "date":
		d.form.Date = value
	case "category":
		d.form.Category = value
	case "note":
		d.form.Note = value
	case "kind":
		d.mu.Unlock()
		return d.SetKind(models.Kind(value))
	default:
		d.mu.Unlock()
		return &services.ValidationError{Field: name, Message: "unknown form field"}
	}
	d.mu.Unlock()
	d.notify()
	return nil
}

// Submit creates a transaction from the form. Only one submission runs at a
// time; on success the amount and note are cleared.
func (d *Dashboard) Submit(ctx context.Context) (string, error) {
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return "", services.ErrBusy
	}
	d.busy = true
	form := d.form
	d.mu.Unlock()
	d.notify()

	id, err := d.feed.Create(ctx, models.TransactionInput{
		Kind:     form.Kind,
		Amount:   form.Amount,
		Date:     form.Date,
		Category: form.Category,
		Note:     form.Note,
	})

	d.mu.Lock()
	if err == nil {
		d.form.Amount = ""
		d.form.Note = ""
	}
	d.busy = false
	d.mu.Unlock()
	d.notify()
	return id, err
}

func (d *Dashboard) Remove(ctx context.Context, id string, c services.Confirmer) (bool, error) {
	return d.feed.Remove(ctx, id, c)
}

func (d *Dashboard) SetPref(ctx context.Context, patch models.PreferencesPatch) error {
	return d.prefs.SetPref(ctx, patch)
}

// State computes the full page state from the latest snapshots.
func (d *Dashboard) State() DashboardState {
	prefs := d.prefs.Prefs()
	items := d.feed.Items()

	d.mu.Lock()
	s := DashboardState{
		Ready: d.prefs.Ready(),
		Page:  d.page,
		Tab:   d.tab,
		Query: d.query,
		Month: d.month,
		Form:  d.form,
		Busy:  d.busy,
	}
	d.mu.Unlock()

	s.Title = defaultTitle
	if u := d.session.Current(); u != nil {
		if name := strings.TrimSpace(u.DisplayName); name != "" {
			s.Title = "Hello, " + name
		}
	}

	summary := services.Summarize(items, s.Month)
	s.Totals = summary.Totals
	s.Daily = summary.Daily
	s.ExpenseByCategory = summary.ExpenseByCategory
	s.IncomeByCategory = summary.IncomeByCategory
	s.Items = services.VisibleItems(items, s.Tab, s.Query)
	s.FormCategories = prefs.Categories.For(s.Form.Kind)

	s.Preferences = prefs
	s.LightMode = prefs.Theme == models.ThemeLight
	if err := d.feed.Err(); err != nil {
		s.Error = err.Error()
	}
	return s
}

// Close tears down both subscriptions. Safe to call more than once.
func (d *Dashboard) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		stops := d.stops
		d.stops = nil
		d.mu.Unlock()
		for _, stop := range stops {
			stop()
		}
		d.prefs.Close()
		d.feed.Close()
	})
}
