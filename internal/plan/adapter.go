package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"nutrition-core/internal/macros"
)

// The stored representation keeps only source-of-truth fields: derived
// aggregates (meal/day totals, weekly averages) are stripped on write and
// recomputed on read. Every numeric field decodes through flexFloat because
// older stored rows and imported documents carry numbers as strings.

type storedFood struct {
	ID             string        `json:"id"`
	FoodItemID     string        `json:"foodItemId"`
	Name           string        `json:"name"`
	Quantity       flexFloat     `json:"quantity"`
	Unit           string        `json:"unit"`
	Macros         storedMacros  `json:"macros"`
	ActualQuantity *flexFloat    `json:"actualQuantity,omitempty"`
	ActualMacros   *storedMacros `json:"actualMacros,omitempty"`
}

type storedMacros struct {
	Calories flexFloat `json:"calories"`
	Protein  flexFloat `json:"protein"`
	Carbs    flexFloat `json:"carbs"`
	Fats     flexFloat `json:"fats"`
	Fiber    flexFloat `json:"fiber,omitempty"`
}

type storedMeal struct {
	ID    string       `json:"id,omitempty"`
	Name  string       `json:"name"`
	Type  string       `json:"type"`
	Foods []storedFood `json:"foods"`
}

type storedDay struct {
	ID        string       `json:"id,omitempty"`
	DayNumber int          `json:"dayNumber"`
	Meals     []storedMeal `json:"meals"`
}

type storedWeek struct {
	ID         string      `json:"id,omitempty"`
	WeekNumber int         `json:"weekNumber"`
	Days       []storedDay `json:"days"`
}

// StoredPlan is the JSON-column shape of a plan.
type StoredPlan struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Name             string          `json:"name,omitempty"`
	Goals            []string        `json:"goals"`
	Weeks            []storedWeek    `json:"weeks"`
	TargetMacros     storedMacros    `json:"targetMacros"`
	UserProfile      json.RawMessage `json:"userProfile,omitempty"`
	PersonalizedPlan json.RawMessage `json:"personalizedPlan,omitempty"`
	Adaptations      json.RawMessage `json:"adaptations,omitempty"`
	Status           string          `json:"status"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// flexFloat decodes JSON numbers and numeric strings alike.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("value %q is not numeric: %w", data, err)
	}
	*f = flexFloat(v)
	return nil
}

// PreparePlanForStorage converts a normalized plan into its JSON-column shape,
// dropping derived aggregates.
func PreparePlanForStorage(p *Plan) *StoredPlan {
	sp := &StoredPlan{
		ID:               p.ID,
		UserID:           p.UserID,
		Name:             p.Name,
		Goals:            p.Goals,
		TargetMacros:     toStoredMacros(p.TargetMacros),
		UserProfile:      p.UserProfile,
		PersonalizedPlan: p.PersonalizedPlan,
		Adaptations:      p.Adaptations,
		Status:           string(p.Status),
		Version:          p.Version,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	for _, w := range p.Weeks {
		sw := storedWeek{ID: w.ID, WeekNumber: w.WeekNumber}
		for _, d := range w.Days {
			sd := storedDay{ID: d.ID, DayNumber: d.DayNumber}
			for _, m := range d.Meals {
				sm := storedMeal{ID: m.ID, Name: m.Name, Type: string(m.Type)}
				for _, f := range m.Foods {
					sf := storedFood{
						ID:         f.ID,
						FoodItemID: f.FoodItemID,
						Name:       f.Name,
						Quantity:   flexFloat(f.Quantity),
						Unit:       f.Unit,
						Macros:     toStoredMacros(f.Macros),
					}
					if f.ActualQuantity != nil {
						aq := flexFloat(*f.ActualQuantity)
						sf.ActualQuantity = &aq
					}
					if f.ActualMacros != nil {
						am := toStoredMacros(*f.ActualMacros)
						sf.ActualMacros = &am
					}
					sm.Foods = append(sm.Foods, sf)
				}
				sd.Meals = append(sd.Meals, sm)
			}
			sw.Days = append(sw.Days, sd)
		}
		sp.Weeks = append(sp.Weeks, sw)
	}
	return sp
}

// PlanFromStored reconstructs a complete plan from its JSON-column shape,
// regenerating any ids absent from rows that predate id generation and
// recomputing every derived aggregate.
func PlanFromStored(sp *StoredPlan) *Plan {
	p := &Plan{
		ID:               orGenerated(sp.ID),
		UserID:           sp.UserID,
		Name:             sp.Name,
		Goals:            sp.Goals,
		TargetMacros:     fromStoredMacros(sp.TargetMacros),
		UserProfile:      sp.UserProfile,
		PersonalizedPlan: sp.PersonalizedPlan,
		Adaptations:      sp.Adaptations,
		Status:           Status(sp.Status),
		Version:          sp.Version,
		CreatedAt:        sp.CreatedAt,
		UpdatedAt:        sp.UpdatedAt,
	}
	if !ValidStatus(p.Status) {
		p.Status = StatusDraft
	}
	if p.Version < 1 {
		p.Version = 1
	}
	for _, sw := range sp.Weeks {
		w := Week{ID: orGenerated(sw.ID), WeekNumber: sw.WeekNumber}
		for _, sd := range sw.Days {
			d := Day{ID: orGenerated(sd.ID), DayNumber: sd.DayNumber}
			for _, sm := range sd.Meals {
				m := Meal{ID: orGenerated(sm.ID), Name: sm.Name, Type: MealType(sm.Type)}
				for _, sf := range sm.Foods {
					f := Food{
						ID:         orGenerated(sf.ID),
						FoodItemID: sf.FoodItemID,
						Name:       sf.Name,
						Quantity:   float64(sf.Quantity),
						Unit:       sf.Unit,
						Macros:     fromStoredMacros(sf.Macros),
					}
					if sf.ActualQuantity != nil {
						aq := float64(*sf.ActualQuantity)
						f.ActualQuantity = &aq
					}
					if sf.ActualMacros != nil {
						am := fromStoredMacros(*sf.ActualMacros)
						f.ActualMacros = &am
					}
					m.Foods = append(m.Foods, f)
				}
				d.Meals = append(d.Meals, m)
			}
			w.Days = append(w.Days, d)
		}
		p.Weeks = append(p.Weeks, w)
	}
	RecomputeAggregates(p)
	return p
}

// MarshalStoredPlan serializes a plan to its JSON-column bytes.
func MarshalStoredPlan(p *Plan) ([]byte, error) {
	data, err := json.Marshal(PreparePlanForStorage(p))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan %s for storage: %w", p.ID, err)
	}
	return data, nil
}

// UnmarshalStoredPlan deserializes JSON-column bytes into a complete plan.
func UnmarshalStoredPlan(data []byte) (*Plan, error) {
	var sp StoredPlan
	if err := json.Unmarshal(data, &sp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored plan: %w", err)
	}
	return PlanFromStored(&sp), nil
}

func toStoredMacros(m macros.Macros) storedMacros {
	return storedMacros{
		Calories: flexFloat(m.Calories),
		Protein:  flexFloat(m.Protein),
		Carbs:    flexFloat(m.Carbs),
		Fats:     flexFloat(m.Fats),
		Fiber:    flexFloat(m.Fiber),
	}
}

func fromStoredMacros(m storedMacros) macros.Macros {
	return macros.Normalize(macros.Macros{
		Calories: float64(m.Calories),
		Protein:  float64(m.Protein),
		Carbs:    float64(m.Carbs),
		Fats:     float64(m.Fats),
		Fiber:    float64(m.Fiber),
	})
}

func orGenerated(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
