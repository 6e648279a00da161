package store

import (
	"reflect"
	"testing"
)

func TestMergePatch(t *testing.T) {
	tests := []struct {
		name  string
		dst   map[string]any
		patch map[string]any
		want  map[string]any
	}{
		{
			name:  "adds missing fields",
			dst:   map[string]any{"theme": "dark"},
			patch: map[string]any{"density": "compact"},
			want:  map[string]any{"theme": "dark", "density": "compact"},
		},
		{
			name:  "replaces scalars",
			dst:   map[string]any{"theme": "dark", "currency": "TRY"},
			patch: map[string]any{"theme": "light"},
			want:  map[string]any{"theme": "light", "currency": "TRY"},
		},
		{
			name: "merges nested objects",
			dst: map[string]any{"categories": map[string]any{
				"expense": []any{"Market"},
				"income":  []any{"Salary"},
			}},
			patch: map[string]any{"categories": map[string]any{"expense": []any{"Rent"}}},
			want: map[string]any{"categories": map[string]any{
				"expense": []any{"Rent"},
				"income":  []any{"Salary"},
			}},
		},
		{
			name:  "replaces arrays",
			dst:   map[string]any{"tags": []any{"a", "b"}},
			patch: map[string]any{"tags": []any{"c"}},
			want:  map[string]any{"tags": []any{"c"}},
		},
		{
			name:  "nil destination",
			dst:   nil,
			patch: map[string]any{"theme": "light"},
			want:  map[string]any{"theme": "light"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergePatch(tt.dst, tt.patch)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MergePatch() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMergePatchDoesNotMutateInputs(t *testing.T) {
	dst := map[string]any{"categories": map[string]any{"expense": []any{"Market"}}}
	patch := map[string]any{"categories": map[string]any{"income": []any{"Salary"}}}

	merged := MergePatch(dst, patch)
	merged["categories"].(map[string]any)["expense"].([]any)[0] = "changed"

	if got := dst["categories"].(map[string]any)["expense"].([]any)[0]; got != "Market" {
		t.Errorf("destination was mutated: %v", got)
	}
	if _, ok := dst["categories"].(map[string]any)["income"]; ok {
		t.Error("patch leaked into destination")
	}
}
