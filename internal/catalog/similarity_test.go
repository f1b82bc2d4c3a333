package catalog

import (
	"math"
	"testing"

	"nutrition-core/internal/macros"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Chicken Breast":    "chicken breast",
		"  chicken breast ": "chicken breast",
		"CHICKEN   BREAST":  "chicken breast",
		"":                  "",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNameSimilarity(t *testing.T) {
	t.Run("Reflexive", func(t *testing.T) {
		for _, s := range []string{"", "Rice", "Chicken Breast", "a"} {
			if got := NameSimilarity(s, s); got != 1.0 {
				t.Errorf("NameSimilarity(%q, %q) = %v, want 1.0", s, s, got)
			}
		}
	})

	t.Run("CaseAndWhitespaceInsensitive", func(t *testing.T) {
		if got := NameSimilarity("Chicken Breast", " chicken  breast "); got != 1.0 {
			t.Errorf("Expected 1.0 for case/whitespace variants, got %v", got)
		}
	})

	t.Run("SingleEdit", func(t *testing.T) {
		// "rice" vs "ricf": 1 edit over max length 4.
		got := NameSimilarity("rice", "ricf")
		if math.Abs(got-0.75) > 1e-9 {
			t.Errorf("Expected 0.75, got %v", got)
		}
	})

	t.Run("Disjoint", func(t *testing.T) {
		if got := NameSimilarity("abc", "xyz"); got != 0 {
			t.Errorf("Expected 0 for fully distinct names, got %v", got)
		}
	})
}

func TestMacroSimilarity(t *testing.T) {
	t.Run("Reflexive", func(t *testing.T) {
		m := macros.Macros{Calories: 165, Protein: 31, Carbs: 0, Fats: 3.6}
		if got := MacroSimilarity(m, m); got != 1.0 {
			t.Errorf("MacroSimilarity(m, m) = %v, want 1.0", got)
		}
	})

	t.Run("BothZero", func(t *testing.T) {
		if got := MacroSimilarity(macros.Macros{}, macros.Macros{}); got != 1.0 {
			t.Errorf("Expected 1.0 for two zero profiles, got %v", got)
		}
	})

	t.Run("WithinTolerance", func(t *testing.T) {
		a := macros.Macros{Calories: 100, Protein: 10, Carbs: 10, Fats: 10}
		b := macros.Macros{Calories: 110, Protein: 11, Carbs: 11, Fats: 11}
		if got := MacroSimilarity(a, b); got != 1.0 {
			t.Errorf("Expected 1.0 for differences within 15%%, got %v", got)
		}
	})

	t.Run("BeyondTolerance", func(t *testing.T) {
		a := macros.Macros{Calories: 100, Protein: 10, Carbs: 10, Fats: 10}
		b := macros.Macros{Calories: 200, Protein: 20, Carbs: 20, Fats: 20}
		// Every field differs by 50%: each scores 0.5.
		got := MacroSimilarity(a, b)
		if math.Abs(got-0.5) > 1e-9 {
			t.Errorf("Expected 0.5, got %v", got)
		}
	})
}

func TestCombinedScore(t *testing.T) {
	got := CombinedScore(1.0, 0.5)
	want := 0.6*1.0 + 0.4*0.5
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestMacroBreakdown(t *testing.T) {
	// 31g protein, 0g carbs, 3.6g fats: 124 + 0 + 32.4 kcal.
	p, c, f := MacroBreakdown(macros.Macros{Protein: 31, Carbs: 0, Fats: 3.6})
	if math.Abs(p-79.28) > 0.01 {
		t.Errorf("Expected protein pct ~79.28, got %v", p)
	}
	if c != 0 {
		t.Errorf("Expected carbs pct 0, got %v", c)
	}
	if math.Abs(f-20.72) > 0.01 {
		t.Errorf("Expected fats pct ~20.72, got %v", f)
	}

	t.Run("ZeroMacros", func(t *testing.T) {
		p, c, f := MacroBreakdown(macros.Macros{})
		if p != 0 || c != 0 || f != 0 {
			t.Errorf("Expected all zero, got %v/%v/%v", p, c, f)
		}
	})
}

func TestClassifyMainMacro(t *testing.T) {
	cases := []struct {
		p, c, f float64
		want    MainMacro
	}{
		{79, 0, 21, MainMacroProtein},
		{10, 75, 15, MainMacroCarbs},
		{5, 15, 80, MainMacroFats},
		{33, 34, 33, MainMacroBalanced},
	}
	for _, tc := range cases {
		if got := ClassifyMainMacro(tc.p, tc.c, tc.f); got != tc.want {
			t.Errorf("ClassifyMainMacro(%v, %v, %v) = %s, want %s", tc.p, tc.c, tc.f, got, tc.want)
		}
	}
}
