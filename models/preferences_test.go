package models

import (
	"encoding/json"
	"reflect"
	"slices"
	"testing"
)

func TestMergePreferencesBackfillsMissingFields(t *testing.T) {
	remote := map[string]any{
		"theme":    "light",
		"currency": "USD",
	}

	got := MergePreferences(DefaultPreferences(), remote)

	if got.Density != DensityComfortable {
		t.Errorf("Density = %q, want default %q", got.Density, DensityComfortable)
	}
	if got.Theme != ThemeLight || got.Currency != "USD" {
		t.Errorf("remote fields not applied: %+v", got)
	}
	if !reflect.DeepEqual(got.Categories, DefaultPreferences().Categories) {
		t.Errorf("Categories = %+v, want defaults", got.Categories)
	}
}

func TestMergePreferencesFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		remote map[string]any
		check  func(t *testing.T, p Preferences)
	}{
		{
			name:   "wrong type keeps default",
			remote: map[string]any{"density": 42, "theme": "light"},
			check: func(t *testing.T, p Preferences) {
				if p.Density != DensityComfortable {
					t.Errorf("Density = %q", p.Density)
				}
				if p.Theme != ThemeLight {
					t.Errorf("Theme = %q, other fields must still apply", p.Theme)
				}
			},
		},
		{
			name:   "null keeps default list",
			remote: map[string]any{"categories": map[string]any{"expense": nil, "income": []any{"Salary"}}},
			check: func(t *testing.T, p Preferences) {
				if len(p.Categories.Expense) != len(DefaultPreferences().Categories.Expense) {
					t.Errorf("Expense = %v", p.Categories.Expense)
				}
				if !reflect.DeepEqual(p.Categories.Income, []string{"Salary"}) {
					t.Errorf("Income = %v", p.Categories.Income)
				}
			},
		},
		{
			name:   "stored number types",
			remote: map[string]any{"createdAt": json.Number("1735689600000"), "showAdvancedFilters": true},
			check: func(t *testing.T, p Preferences) {
				if p.CreatedAt != 1735689600000 || !p.ShowAdvancedFilters {
					t.Errorf("got %+v", p)
				}
			},
		},
		{
			name:   "empty remote",
			remote: nil,
			check: func(t *testing.T, p Preferences) {
				if !reflect.DeepEqual(p, DefaultPreferences()) {
					t.Errorf("got %+v", p)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, MergePreferences(DefaultPreferences(), tt.remote))
		})
	}
}

func TestMergePreferencesDoesNotMutateDefaults(t *testing.T) {
	defaults := DefaultPreferences()
	first := defaults.Categories.Expense[0]

	MergePreferences(defaults, map[string]any{
		"categories": map[string]any{"expense": []any{"Changed", "Twice"}},
	})

	if defaults.Categories.Expense[0] != first {
		t.Errorf("defaults mutated: %v", defaults.Categories.Expense)
	}
}

func TestPreferencesPatchFields(t *testing.T) {
	compact := DensityCompact
	patch := PreferencesPatch{Density: &compact}

	fields := patch.Fields()
	if len(fields) != 1 || fields["density"] != "compact" {
		t.Errorf("Fields() = %#v", fields)
	}
	if patch.Empty() {
		t.Error("patch reported empty")
	}
	if !(PreferencesPatch{}).Empty() {
		t.Error("zero patch not empty")
	}
}

func TestValidMonth(t *testing.T) {
	for s, want := range map[string]bool{
		"2025-01": true,
		"2025-12": true,
		"2025-13": false,
		"2025-1":  false,
		"auto":    false,
		"":        false,
	} {
		if got := ValidMonth(s); got != want {
			t.Errorf("ValidMonth(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestPreferencesPatchValidate(t *testing.T) {
	str := func(s string) *string { return &s }
	tests := []struct {
		name    string
		patch   PreferencesPatch
		wantErr bool
	}{
		{"empty", PreferencesPatch{}, false},
		{"light theme", PreferencesPatch{Theme: str("light")}, false},
		{"bad theme", PreferencesPatch{Theme: str("blue")}, true},
		{"bad density", PreferencesPatch{Density: str("tiny")}, true},
		{"currency", PreferencesPatch{Currency: str("EUR")}, false},
		{"bad currency", PreferencesPatch{Currency: str("GBP")}, true},
		{"blank accent", PreferencesPatch{Accent: str("  ")}, true},
		{"auto month", PreferencesPatch{DefaultMonth: str("auto")}, false},
		{"explicit month", PreferencesPatch{DefaultMonth: str("2024-11")}, false},
		{"bad month", PreferencesPatch{DefaultMonth: str("November")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCategoriesAddRemove(t *testing.T) {
	base := DefaultPreferences().Categories

	added, ok := base.Add(KindExpense, "  Pets ")
	if !ok || added.Expense[len(added.Expense)-1] != "Pets" {
		t.Fatalf("Add = %v, %v", added.Expense, ok)
	}
	if len(base.Expense) != len(added.Expense)-1 {
		t.Error("Add modified the receiver")
	}
	if _, ok := added.Add(KindExpense, "Pets"); ok {
		t.Error("duplicate accepted")
	}
	if _, ok := added.Add(KindIncome, "   "); ok {
		t.Error("blank name accepted")
	}

	removed, ok := added.Remove(KindIncome, "Bonus")
	if !ok || slices.Contains(removed.Income, "Bonus") {
		t.Fatalf("Remove = %v, %v", removed.Income, ok)
	}
	if !slices.Contains(added.Income, "Bonus") {
		t.Error("Remove modified the receiver")
	}
	if _, ok := removed.Remove(KindIncome, "Bonus"); ok {
		t.Error("removing a missing name reported a change")
	}
}
