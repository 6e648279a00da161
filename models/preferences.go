package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"

	DensityComfortable = "comfortable"
	DensityCompact     = "compact"

	MonthAuto = "auto"
)

var (
	Currencies   = []string{"TRY", "USD", "EUR"}
	monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// ValidMonth reports whether s is a YYYY-MM month.
func ValidMonth(s string) bool {
	return monthPattern.MatchString(s)
}

type Categories struct {
	Expense []string `json:"expense"`
	Income  []string `json:"income"`
}

// For returns the category list configured for kind.
func (c Categories) For(kind Kind) []string {
	if kind == KindIncome {
		return c.Income
	}
	return c.Expense
}

// Add returns a copy with name appended to kind's list. ok is false when the
// trimmed name is blank or already listed.
func (c Categories) Add(kind Kind, name string) (Categories, bool) {
	name = strings.TrimSpace(name)
	if name == "" || slices.Contains(c.For(kind), name) {
		return c, false
	}
	out := c.clone()
	out.set(kind, append(out.For(kind), name))
	return out, true
}

// Remove returns a copy without name in kind's list.
func (c Categories) Remove(kind Kind, name string) (Categories, bool) {
	if !slices.Contains(c.For(kind), name) {
		return c, false
	}
	out := c.clone()
	out.set(kind, slices.DeleteFunc(out.For(kind), func(s string) bool { return s == name }))
	return out, true
}

func (c *Categories) set(kind Kind, list []string) {
	if kind == KindIncome {
		c.Income = list
		return
	}
	c.Expense = list
}

func (c Categories) clone() Categories {
	return Categories{Expense: slices.Clone(c.Expense), Income: slices.Clone(c.Income)}
}

// Preferences is the per-user settings record stored in the users collection.
type Preferences struct {
	Theme               string     `json:"theme"`
	Accent              string     `json:"accent"`
	Currency            string     `json:"currency"`
	DefaultMonth        string     `json:"defaultMonth"`
	ShowAdvancedFilters bool       `json:"showAdvancedFilters"`
	Density             string     `json:"density"`
	Categories          Categories `json:"categories"`

	DisplayName string `json:"displayName,omitempty"`
	CreatedAt   int64  `json:"createdAt,omitempty"`
}

func (p Preferences) Clone() Preferences {
	p.Categories = p.Categories.clone()
	return p
}

// DefaultPreferences returns a fresh copy of the hard-coded defaults.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:               ThemeDark,
		Accent:              "emerald",
		Currency:            "TRY",
		DefaultMonth:        MonthAuto,
		ShowAdvancedFilters: false,
		Density:             DensityComfortable,
		Categories: Categories{
			Expense: []string{"Market", "Transport", "Bills", "Rent", "Entertainment", "Health", "Other"},
			Income:  []string{"Salary", "Bonus", "Pension", "Rental Income", "Freelance", "Scholarship", "Other"},
		},
	}
}

// MergePreferences overlays the fields present in remote on top of defaults.
// Fields missing remotely, null, or of the wrong type keep their default, and
// the two category lists backfill independently. defaults is not modified.
func MergePreferences(defaults Preferences, remote map[string]any) Preferences {
	merged := defaults.Clone()
	if len(remote) == 0 {
		return merged
	}

	raw, err := json.Marshal(dropNulls(remote))
	if err != nil {
		return merged
	}
	// On a type mismatch Unmarshal skips that field and still applies the rest.
	_ = json.Unmarshal(raw, &merged)
	return merged
}

// dropNulls removes null members so they cannot clear a default list.
func dropNulls(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case nil:
		case map[string]any:
			out[k] = dropNulls(t)
		default:
			out[k] = v
		}
	}
	return out
}

// Document returns the stored representation of p.
func (p Preferences) Document() map[string]any {
	raw, _ := json.Marshal(p)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return out
}

// PreferencesPatch is a partial update: nil fields are left untouched.
type PreferencesPatch struct {
	Theme               *string     `json:"theme,omitempty" binding:"omitempty,oneof=dark light"`
	Accent              *string     `json:"accent,omitempty"`
	Currency            *string     `json:"currency,omitempty" binding:"omitempty,oneof=TRY USD EUR"`
	DefaultMonth        *string     `json:"defaultMonth,omitempty"`
	ShowAdvancedFilters *bool       `json:"showAdvancedFilters,omitempty"`
	Density             *string     `json:"density,omitempty" binding:"omitempty,oneof=comfortable compact"`
	Categories          *Categories `json:"categories,omitempty"`
}

// Fields returns the patch as a document fragment holding only the set fields.
func (p PreferencesPatch) Fields() map[string]any {
	out := map[string]any{}
	if p.Theme != nil {
		out["theme"] = *p.Theme
	}
	if p.Accent != nil {
		out["accent"] = *p.Accent
	}
	if p.Currency != nil {
		out["currency"] = *p.Currency
	}
	if p.DefaultMonth != nil {
		out["defaultMonth"] = *p.DefaultMonth
	}
	if p.ShowAdvancedFilters != nil {
		out["showAdvancedFilters"] = *p.ShowAdvancedFilters
	}
	if p.Density != nil {
		out["density"] = *p.Density
	}
	if p.Categories != nil {
		out["categories"] = map[string]any{
			"expense": nonNil(p.Categories.Expense),
			"income":  nonNil(p.Categories.Income),
		}
	}
	return out
}

func (p PreferencesPatch) Empty() bool {
	return len(p.Fields()) == 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Validate checks the set fields of the patch.
func (p PreferencesPatch) Validate() error {
	if p.Theme != nil && *p.Theme != ThemeDark && *p.Theme != ThemeLight {
		return fmt.Errorf("invalid theme %q", *p.Theme)
	}
	if p.Density != nil && *p.Density != DensityComfortable && *p.Density != DensityCompact {
		return fmt.Errorf("invalid density %q", *p.Density)
	}
	if p.Currency != nil && !slices.Contains(Currencies, *p.Currency) {
		return fmt.Errorf("unsupported currency %q", *p.Currency)
	}
	if p.Accent != nil && strings.TrimSpace(*p.Accent) == "" {
		return fmt.Errorf("accent must not be empty")
	}
	if p.DefaultMonth != nil && *p.DefaultMonth != MonthAuto && !ValidMonth(*p.DefaultMonth) {
		return fmt.Errorf("defaultMonth must be %q or YYYY-MM", MonthAuto)
	}
	return nil
}
