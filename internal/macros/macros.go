package macros

import "math"

// Atwater energy factors (kcal per gram).
const (
	CaloriesPerGramProtein = 4.0
	CaloriesPerGramCarbs   = 4.0
	CaloriesPerGramFats    = 9.0
)

// AtwaterTolerancePercent is the allowed deviation between declared calories
// and calories derived from the macro breakdown.
const AtwaterTolerancePercent = 15.0

// Macros holds the nutritional quantities for a food, meal, day, or plan target.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
	Fiber    float64 `json:"fiber,omitempty"`
}

// Round2 rounds a value to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Normalize clamps every field to be non-negative and rounds it to 2 decimal
// places. Normalize is idempotent.
func Normalize(m Macros) Macros {
	return Macros{
		Calories: Round2(math.Max(0, m.Calories)),
		Protein:  Round2(math.Max(0, m.Protein)),
		Carbs:    Round2(math.Max(0, m.Carbs)),
		Fats:     Round2(math.Max(0, m.Fats)),
		Fiber:    Round2(math.Max(0, m.Fiber)),
	}
}

// Sum adds a collection of macros field by field and normalizes the result.
func Sum(items []Macros) Macros {
	var total Macros
	for _, m := range items {
		total.Calories += m.Calories
		total.Protein += m.Protein
		total.Carbs += m.Carbs
		total.Fats += m.Fats
		total.Fiber += m.Fiber
	}
	return Normalize(total)
}

// Average returns the per-item mean of a collection of macros. An empty
// collection averages to zero macros.
func Average(items []Macros) Macros {
	if len(items) == 0 {
		return Macros{}
	}
	total := Sum(items)
	n := float64(len(items))
	return Macros{
		Calories: Round2(total.Calories / n),
		Protein:  Round2(total.Protein / n),
		Carbs:    Round2(total.Carbs / n),
		Fats:     Round2(total.Fats / n),
		Fiber:    Round2(total.Fiber / n),
	}
}

// Scale multiplies every field by factor and normalizes the result.
func Scale(m Macros, factor float64) Macros {
	return Normalize(Macros{
		Calories: m.Calories * factor,
		Protein:  m.Protein * factor,
		Carbs:    m.Carbs * factor,
		Fats:     m.Fats * factor,
		Fiber:    m.Fiber * factor,
	})
}

// CaloriesFromMacros derives calories from the macro breakdown using the
// Atwater factors.
func CaloriesFromMacros(protein, carbs, fats float64) float64 {
	return Round2(CaloriesPerGramProtein*protein + CaloriesPerGramCarbs*carbs + CaloriesPerGramFats*fats)
}

// ConsistentWithAtwater reports whether the declared calories agree with the
// calories derived from protein/carbs/fats within tolerancePercent.
func ConsistentWithAtwater(m Macros, tolerancePercent float64) bool {
	derived := CaloriesFromMacros(m.Protein, m.Carbs, m.Fats)
	if derived == 0 {
		return m.Calories == 0
	}
	diff := math.Abs(m.Calories-derived) / derived * 100
	return diff <= tolerancePercent
}

// IsZero reports whether every field of m is zero.
func (m Macros) IsZero() bool {
	return m.Calories == 0 && m.Protein == 0 && m.Carbs == 0 && m.Fats == 0 && m.Fiber == 0
}
