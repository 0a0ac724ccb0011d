package catalog

import (
	"reflect"
	"testing"
)

func testIngredients() []Ingredient {
	return []Ingredient{
		{ID: "gin", Name: "Gin", Category: CategorySpirit, LegacyCodes: []string{"17"}},
		{ID: "lime-juice", Name: "Lime Juice", Category: CategoryCitrus, LegacyCodes: []string{"42"}},
		{ID: "simple-syrup", Name: "Simple Syrup", Category: CategorySyrup},
		{ID: "ice", Name: "Ice", Category: CategoryOther, IsStaple: true},
	}
}

func TestIsCanonicalID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"gin", true},
		{"lime-juice", true},
		{"angostura-bitters-2", true},
		{"42", false}, // 純數字是歷史代碼
		{"Lime Juice", false},
		{"-gin", false},
		{"gin-", false},
		{"gin--tonic", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsCanonicalID(tt.id); got != tt.want {
			t.Errorf("IsCanonicalID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	idx := BuildCanonicalIndex(testIngredients())

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"canonical passes through", "gin", "gin"},
		{"name lookup", "Lime Juice", "lime-juice"},
		{"name lookup is case insensitive", "lime juice", "lime-juice"},
		{"name with surrounding whitespace", "  Simple Syrup  ", "simple-syrup"},
		{"legacy numeric code", "42", "lime-juice"},
		{"prefixed legacy code", "ing-42", "lime-juice"},
		{"unknown id preserved", "mystery-cordial", "mystery-cordial"},
		{"unknown numeric preserved", "999", "999"},
		{"empty input dropped", "", ""},
		{"whitespace only dropped", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := idx.Resolve(tt.raw); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	idx := BuildCanonicalIndex(testIngredients())

	inputs := []string{"gin", "Lime Juice", "42", "ing-42", "mystery-cordial", "999"}
	for _, raw := range inputs {
		once := idx.Resolve(raw)
		twice := idx.Resolve(once)
		if once != twice {
			t.Errorf("Resolve not idempotent for %q: first %q, second %q", raw, once, twice)
		}
	}
}

func TestResolveMany(t *testing.T) {
	idx := BuildCanonicalIndex(testIngredients())

	t.Run("deduplicates while preserving order", func(t *testing.T) {
		got := idx.ResolveMany([]string{"42", "Lime Juice", "gin", "lime-juice"})
		want := []string{"lime-juice", "gin"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ResolveMany = %v, want %v", got, want)
		}
	})

	t.Run("drops empty inputs", func(t *testing.T) {
		got := idx.ResolveMany([]string{"", "  ", "gin"})
		want := []string{"gin"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("ResolveMany = %v, want %v", got, want)
		}
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		if got := idx.ResolveMany(nil); len(got) != 0 {
			t.Errorf("ResolveMany(nil) = %v, want empty", got)
		}
	})
}

func TestBuildCanonicalIndexEmptyCatalog(t *testing.T) {
	idx := BuildCanonicalIndex(nil)

	// 空目錄時解析退化為原樣保留
	if got := idx.Resolve("gin"); got != "gin" {
		t.Errorf("Resolve(gin) on empty index = %q, want gin", got)
	}
	if got := idx.Resolve("Lime Juice"); got != "Lime Juice" {
		t.Errorf("Resolve on empty index = %q, want literal input", got)
	}
}
