package plan

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the hard-failure paths of normalization.
var (
	ErrMissingUserID = errors.New("plan normalization requires a userId")
	ErrMissingGoals  = errors.New("plan normalization requires non-empty goals")
	ErrInvalidPlan   = errors.New("plan failed validation")
)

// Validate checks the full set of plan rules and returns every violation
// found, or nil when the plan is valid. It never mutates the plan.
func Validate(p *Plan) []string {
	var issues []string

	if p.UserID == "" {
		issues = append(issues, "userId must not be empty")
	}
	if len(p.Goals) == 0 {
		issues = append(issues, "goals must be a non-empty list")
	}
	for i, g := range p.Goals {
		if strings.TrimSpace(g) == "" {
			issues = append(issues, fmt.Sprintf("goals[%d] must not be blank", i))
		}
	}
	if len(p.Weeks) == 0 {
		issues = append(issues, "weeks must be a non-empty list")
	}
	if !ValidStatus(p.Status) {
		issues = append(issues, fmt.Sprintf("status %q is not a valid plan status", p.Status))
	}
	if p.Version < 1 {
		issues = append(issues, "version must be >= 1")
	}
	if hasNegative(p.TargetMacros.Calories, p.TargetMacros.Protein, p.TargetMacros.Carbs, p.TargetMacros.Fats, p.TargetMacros.Fiber) {
		issues = append(issues, "targetMacros fields must be non-negative")
	}

	seenWeeks := make(map[int]bool)
	expectedDay := 1
	for wi, w := range p.Weeks {
		if w.WeekNumber < 1 {
			issues = append(issues, fmt.Sprintf("weeks[%d] weekNumber must be >= 1", wi))
		}
		if seenWeeks[w.WeekNumber] {
			issues = append(issues, fmt.Sprintf("weekNumber %d appears more than once", w.WeekNumber))
		}
		seenWeeks[w.WeekNumber] = true

		for di, d := range w.Days {
			if d.DayNumber != expectedDay {
				issues = append(issues, fmt.Sprintf(
					"weeks[%d].days[%d] dayNumber %d breaks the contiguous sequence (expected %d)", wi, di, d.DayNumber, expectedDay))
			}
			expectedDay++

			for mi, m := range d.Meals {
				for fi, f := range m.Foods {
					if f.Quantity < 0 {
						issues = append(issues, fmt.Sprintf(
							"weeks[%d].days[%d].meals[%d].foods[%d] quantity must be non-negative", wi, di, mi, fi))
					}
					if hasNegative(f.Macros.Calories, f.Macros.Protein, f.Macros.Carbs, f.Macros.Fats, f.Macros.Fiber) {
						issues = append(issues, fmt.Sprintf(
							"weeks[%d].days[%d].meals[%d].foods[%d] macros must be non-negative", wi, di, mi, fi))
					}
				}
			}
		}
	}

	return issues
}

// ValidationError turns a list of violations into a single descriptive error
// wrapping ErrInvalidPlan.
func ValidationError(issues []string) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(issues, "; "))
}

func hasNegative(values ...float64) bool {
	for _, v := range values {
		if v < 0 {
			return true
		}
	}
	return false
}

// Structural guards: loose shape checks over decoded JSON maps, used as the
// second acceptance tier when a strict decode rejects a payload fragment.

// IsFood reports whether v looks like a food entry: a map carrying a name
// under any known alias, or a quantity, or a macros object.
func IsFood(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := firstString(m, nameAliases); ok {
		return true
	}
	if _, ok := firstNumber(m, quantityAliases); ok {
		return true
	}
	_, ok = firstMap(m, macrosAliases)
	return ok
}

// IsMeal reports whether v looks like a meal: a map with a foods list or a
// name plus meal type.
func IsMeal(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := m["foods"].([]any); ok {
		return true
	}
	_, hasName := firstString(m, nameAliases)
	_, hasType := firstString(m, mealTypeAliases)
	return hasName && hasType
}

// IsDay reports whether v looks like a day: a map with a meals list or a day
// number under any alias.
func IsDay(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := m["meals"].([]any); ok {
		return true
	}
	_, ok = firstNumber(m, dayNumberAliases)
	return ok
}

// IsWeek reports whether v looks like a week: a map with a days list or a
// week number under any alias.
func IsWeek(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	if _, ok := m["days"].([]any); ok {
		return true
	}
	_, ok = firstNumber(m, weekNumberAliases)
	return ok
}
