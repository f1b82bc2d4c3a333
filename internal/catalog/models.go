package catalog

import (
	"time"

	"nutrition-core/internal/macros"
)

// MainMacro classifies which macro dominates a food's calorie content.
type MainMacro string

const (
	MainMacroProtein  MainMacro = "protein"
	MainMacroCarbs    MainMacro = "carbs"
	MainMacroFats     MainMacro = "fats"
	MainMacroBalanced MainMacro = "balanced"
)

// FoodItem is a catalog food record. Macros are per standard serving (100g
// unless the unit says otherwise).
type FoodItem struct {
	ID             string
	Name           string
	NormalizedName string
	Description    string
	BrandID        string
	Macros         macros.Macros
	ProteinPct     float64
	CarbsPct       float64
	FatsPct        float64
	MainMacro      MainMacro
	CreatedAt      time.Time
}

// Brand groups catalog foods by producer.
type Brand struct {
	ID             string
	Name           string
	NormalizedName string
}

// Translation is a per-locale name/description row for a food item.
type Translation struct {
	FoodItemID  string
	Locale      string
	Name        string
	Description string
}

// Candidate is a food extracted from a plan that needs a catalog resolution.
type Candidate struct {
	Name        string
	Description string
	Brand       string
	Unit        string
	Macros      macros.Macros
}

// ResultStatus describes the outcome of a single match-or-create decision.
type ResultStatus string

const (
	StatusExisting ResultStatus = "existing"
	StatusCreated  ResultStatus = "created"
	StatusMatched  ResultStatus = "matched"
	StatusError    ResultStatus = "error"
)

// MatchType describes how an existing record was accepted.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
	MatchNone  MatchType = "none"
)

// CreationResult records one match/create decision. It is never persisted;
// it only wires resolved catalog ids back into the plan tree.
type CreationResult struct {
	ID         string
	Name       string
	Existed    bool
	Status     ResultStatus
	MatchType  MatchType
	Confidence int
	Err        string
}

// MacroBreakdown computes each macro's share of total calories as a
// percentage clamped to [0, 100], using the Atwater factors.
func MacroBreakdown(m macros.Macros) (proteinPct, carbsPct, fatsPct float64) {
	total := macros.CaloriesFromMacros(m.Protein, m.Carbs, m.Fats)
	if total == 0 {
		return 0, 0, 0
	}
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 100 {
			return 100
		}
		return macros.Round2(v)
	}
	proteinPct = clamp(macros.CaloriesPerGramProtein * m.Protein / total * 100)
	carbsPct = clamp(macros.CaloriesPerGramCarbs * m.Carbs / total * 100)
	fatsPct = clamp(macros.CaloriesPerGramFats * m.Fats / total * 100)
	return proteinPct, carbsPct, fatsPct
}

// balancedSpreadPoints is the maximum spread between the largest and smallest
// macro share for a food to count as balanced.
const balancedSpreadPoints = 10.0

// ClassifyMainMacro returns the dominant macro of a breakdown, or balanced
// when all three shares sit within balancedSpreadPoints of each other.
func ClassifyMainMacro(proteinPct, carbsPct, fatsPct float64) MainMacro {
	min, max := proteinPct, proteinPct
	for _, v := range []float64{carbsPct, fatsPct} {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max-min <= balancedSpreadPoints {
		return MainMacroBalanced
	}
	switch max {
	case proteinPct:
		return MainMacroProtein
	case carbsPct:
		return MainMacroCarbs
	default:
		return MainMacroFats
	}
}
