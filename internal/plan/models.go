package plan

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"nutrition-core/internal/macros"
)

// Status represents the lifecycle state of a nutrition plan.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusArchived  Status = "ARCHIVED"
)

// ValidStatus reports whether s is a known plan status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusActive, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// MealType classifies a meal within a day.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Food is a single line item in a meal, referencing a catalog food item.
type Food struct {
	ID             string         `json:"id"`
	FoodItemID     string         `json:"foodItemId"`
	Name           string         `json:"name"`
	Quantity       float64        `json:"quantity"`
	Unit           string         `json:"unit"`
	Macros         macros.Macros  `json:"macros"`
	ActualQuantity *float64       `json:"actualQuantity,omitempty"`
	ActualMacros   *macros.Macros `json:"actualMacros,omitempty"`
}

// Meal is an ordered list of foods with a derived macro total.
type Meal struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Type        MealType      `json:"type"`
	Foods       []Food        `json:"foods"`
	TotalMacros macros.Macros `json:"totalMacros"`
}

// Day is an ordered list of meals. DayNumber is 1-based and contiguous across
// the whole plan, not per week.
type Day struct {
	ID          string        `json:"id"`
	DayNumber   int           `json:"dayNumber"`
	Meals       []Meal        `json:"meals"`
	TotalMacros macros.Macros `json:"totalMacros"`
}

// Week is an ordered list of days with the derived average of their totals.
type Week struct {
	ID                  string        `json:"id"`
	WeekNumber          int           `json:"weekNumber"`
	Days                []Day         `json:"days"`
	WeeklyAverageMacros macros.Macros `json:"weeklyAverageMacros"`
}

// Plan is the root nutrition-plan aggregate.
type Plan struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Name             string          `json:"name"`
	Goals            []string        `json:"goals"`
	Weeks            []Week          `json:"weeks"`
	TargetMacros     macros.Macros   `json:"targetMacros"`
	UserProfile      json.RawMessage `json:"userProfile,omitempty"`
	PersonalizedPlan json.RawMessage `json:"personalizedPlan,omitempty"`
	Adaptations      json.RawMessage `json:"adaptations,omitempty"`
	Status           Status          `json:"status"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// DefaultGoal is the goal assigned to empty plans created from scratch.
// Normalization of external payloads never falls back to it; see NormalizePlan.
const DefaultGoal = "MAINTENANCE"

// NewEmptyPlan creates a blank DRAFT plan for a user with the default goal.
func NewEmptyPlan(userID string) *Plan {
	now := time.Now().UTC()
	return &Plan{
		ID:        uuid.NewString(),
		UserID:    userID,
		Goals:     []string{DefaultGoal},
		Weeks:     []Week{{ID: uuid.NewString(), WeekNumber: 1, Days: []Day{}}},
		Status:    StatusDraft,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RecalculateFoodMacros scales a food's macros linearly from oldQuantity to
// newQuantity. When either quantity is zero the original macros are returned
// unchanged to avoid dividing by zero.
func RecalculateFoodMacros(f Food, oldQuantity, newQuantity float64) macros.Macros {
	if oldQuantity == 0 || newQuantity == 0 {
		return f.Macros
	}
	return macros.Scale(f.Macros, newQuantity/oldQuantity)
}

// RecomputeAggregates recalculates every derived macro total in the plan
// bottom-up: meal totals from foods, day totals from meals, week averages
// from day totals.
func RecomputeAggregates(p *Plan) {
	for wi := range p.Weeks {
		week := &p.Weeks[wi]
		dayTotals := make([]macros.Macros, 0, len(week.Days))
		for di := range week.Days {
			day := &week.Days[di]
			mealTotals := make([]macros.Macros, 0, len(day.Meals))
			for mi := range day.Meals {
				meal := &day.Meals[mi]
				foodMacros := make([]macros.Macros, 0, len(meal.Foods))
				for _, f := range meal.Foods {
					foodMacros = append(foodMacros, f.Macros)
				}
				meal.TotalMacros = macros.Sum(foodMacros)
				mealTotals = append(mealTotals, meal.TotalMacros)
			}
			day.TotalMacros = macros.Sum(mealTotals)
			dayTotals = append(dayTotals, day.TotalMacros)
		}
		week.WeeklyAverageMacros = macros.Average(dayTotals)
	}
}

// TotalDays returns the number of days across all weeks.
func (p *Plan) TotalDays() int {
	n := 0
	for _, w := range p.Weeks {
		n += len(w.Days)
	}
	return n
}

// EachFood walks every food in the plan in order, calling fn with pointers so
// callers can mutate entries in place. Iteration stops if fn returns false.
func (p *Plan) EachFood(fn func(week *Week, day *Day, meal *Meal, food *Food) bool) {
	for wi := range p.Weeks {
		week := &p.Weeks[wi]
		for di := range week.Days {
			day := &week.Days[di]
			for mi := range day.Meals {
				meal := &day.Meals[mi]
				for fi := range meal.Foods {
					if !fn(week, day, meal, &meal.Foods[fi]) {
						return
					}
				}
			}
		}
	}
}
