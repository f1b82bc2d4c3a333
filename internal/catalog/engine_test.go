package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"

	"nutrition-core/internal/macros"
	"nutrition-core/internal/plan"
)

// fakeStore is an in-memory Store keyed by normalized name.
type fakeStore struct {
	mu      sync.Mutex
	items   map[string]*FoodItem
	failOn  map[string]error
	created int
}

func newFakeStore(items ...FoodItem) *fakeStore {
	s := &fakeStore{items: make(map[string]*FoodItem), failOn: make(map[string]error)}
	for i := range items {
		item := items[i]
		if item.NormalizedName == "" {
			item.NormalizedName = NormalizeName(item.Name)
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		s.items[item.NormalizedName] = &item
	}
	return s
}

func (s *fakeStore) FindByNormalizedName(_ context.Context, normalizedName string) (*FoodItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[normalizedName]; err != nil {
		return nil, err
	}
	if item, ok := s.items[normalizedName]; ok {
		copied := *item
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*FoodItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			copied := *item
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Search(_ context.Context, _ string, limit int) ([]FoodItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []FoodItem
	for _, item := range s.items {
		if len(out) == limit {
			break
		}
		out = append(out, *item)
	}
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, c Candidate, _ []string) (*FoodItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := NormalizeName(c.Name)
	if err := s.failOn[key]; err != nil {
		return nil, err
	}
	if existing, ok := s.items[key]; ok {
		copied := *existing
		return &copied, nil
	}
	item := &FoodItem{ID: uuid.NewString(), Name: c.Name, NormalizedName: key, Macros: c.Macros}
	s.items[key] = item
	s.created++
	copied := *item
	return &copied, nil
}

func TestDedupCandidates(t *testing.T) {
	t.Run("CaseAndWhitespaceVariantsCollapse", func(t *testing.T) {
		got := DedupCandidates([]Candidate{
			{Name: "Chicken Breast"},
			{Name: "chicken breast "},
		})
		if len(got) != 1 {
			t.Fatalf("Expected 1 candidate after dedup, got %d", len(got))
		}
	})

	t.Run("RicherDescriptionWins", func(t *testing.T) {
		got := DedupCandidates([]Candidate{
			{Name: "Oats"},
			{Name: "oats", Description: "Rolled oats"},
		})
		if len(got) != 1 {
			t.Fatalf("Expected 1 candidate, got %d", len(got))
		}
		if got[0].Description != "Rolled oats" {
			t.Errorf("Expected the described duplicate kept, got %+v", got[0])
		}
	})

	t.Run("EmptyNamesDropped", func(t *testing.T) {
		got := DedupCandidates([]Candidate{{Name: "  "}, {Name: "Rice"}})
		if len(got) != 1 || got[0].Name != "Rice" {
			t.Errorf("Expected only 'Rice', got %+v", got)
		}
	})
}

func TestBatchProcessFoods(t *testing.T) {
	ctx := context.Background()

	t.Run("ExactMatch", func(t *testing.T) {
		store := newFakeStore(FoodItem{Name: "Chicken Breast"})
		engine := NewEngine(store, nil, 0, nil)

		result := engine.BatchProcessFoods(ctx, []Candidate{{Name: "chicken breast"}})
		if len(result.Results) != 1 {
			t.Fatalf("Expected 1 result, got %d", len(result.Results))
		}
		res := result.Results[0]
		if res.Status != StatusExisting || res.MatchType != MatchExact || res.Confidence != 100 {
			t.Errorf("Expected exact existing match with confidence 100, got %+v", res)
		}
		if result.Stats.Existing != 1 {
			t.Errorf("Expected Existing stat 1, got %+v", result.Stats)
		}
	})

	t.Run("FuzzyMatchNearDuplicate", func(t *testing.T) {
		existing := FoodItem{
			Name:   "Chicken Breasts",
			Macros: macros.Macros{Calories: 165, Protein: 31, Carbs: 0, Fats: 3.6},
		}
		store := newFakeStore(existing)
		engine := NewEngine(store, nil, 0, nil)

		// Name similarity > 0.9 and macros within 10%: must match, not create.
		result := engine.BatchProcessFoods(ctx, []Candidate{{
			Name:   "Chicken Breast",
			Macros: macros.Macros{Calories: 160, Protein: 30, Carbs: 0, Fats: 3.5},
		}})
		res := result.Results[0]
		if res.Status != StatusMatched || res.MatchType != MatchFuzzy {
			t.Fatalf("Expected fuzzy match, got %+v", res)
		}
		if res.Confidence < 85 || res.Confidence > 100 {
			t.Errorf("Expected confidence in [85, 100], got %d", res.Confidence)
		}
		if store.created != 0 {
			t.Errorf("Expected no creation for a close match, got %d", store.created)
		}
	})

	t.Run("CreatesWhenNoCloseMatch", func(t *testing.T) {
		store := newFakeStore(FoodItem{Name: "Salmon Fillet", Macros: macros.Macros{Calories: 208, Protein: 20, Fats: 13}})
		engine := NewEngine(store, nil, 0, nil)

		result := engine.BatchProcessFoods(ctx, []Candidate{{
			Name:   "Brown Rice",
			Macros: macros.Macros{Calories: 111, Protein: 2.6, Carbs: 23, Fats: 0.9},
		}})
		res := result.Results[0]
		if res.Status != StatusCreated || res.MatchType != MatchNone {
			t.Fatalf("Expected creation, got %+v", res)
		}
		if store.created != 1 {
			t.Errorf("Expected 1 created item, got %d", store.created)
		}
	})

	t.Run("FailuresAreIsolated", func(t *testing.T) {
		store := newFakeStore(FoodItem{Name: "Rice"})
		store.failOn[NormalizeName("Broken Food")] = fmt.Errorf("database exploded")
		engine := NewEngine(store, nil, 2, nil)

		result := engine.BatchProcessFoods(ctx, []Candidate{
			{Name: "Rice"},
			{Name: "Broken Food"},
			{Name: "New Food", Macros: macros.Macros{Calories: 50, Carbs: 12}},
		})

		if result.Stats.Errors != 1 {
			t.Fatalf("Expected 1 error, got %+v", result.Stats)
		}
		if msg := result.Errors["Broken Food"]; msg != "database exploded" {
			t.Errorf("Expected error keyed by food name, got %q", msg)
		}
		if result.Stats.Existing != 1 || result.Stats.Created != 1 {
			t.Errorf("Expected siblings unaffected by the failure, got %+v", result.Stats)
		}
	})
}

func buildTestPlan(t *testing.T, foodNames ...string) *plan.Plan {
	t.Helper()
	foods := make([]plan.Food, 0, len(foodNames))
	for _, name := range foodNames {
		foods = append(foods, plan.Food{
			ID:         uuid.NewString(),
			FoodItemID: "placeholder-" + name,
			Name:       name,
			Quantity:   100,
			Unit:       "g",
		})
	}
	return &plan.Plan{
		ID:     uuid.NewString(),
		UserID: "u1",
		Goals:  []string{"MAINTENANCE"},
		Weeks: []plan.Week{{
			ID: uuid.NewString(), WeekNumber: 1,
			Days: []plan.Day{{
				ID: uuid.NewString(), DayNumber: 1,
				Meals: []plan.Meal{{ID: uuid.NewString(), Name: "Lunch", Type: plan.MealLunch, Foods: foods}},
			}},
		}},
		Status:  plan.StatusDraft,
		Version: 1,
	}
}

func TestProcessNutritionPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("RewritesResolvedIDs", func(t *testing.T) {
		existing := FoodItem{ID: "cat-rice", Name: "Rice"}
		store := newFakeStore(existing)
		engine := NewEngine(store, nil, 0, nil)
		p := buildTestPlan(t, "Rice", "Quinoa")

		result := engine.ProcessNutritionPlan(ctx, p)

		if got := p.Weeks[0].Days[0].Meals[0].Foods[0].FoodItemID; got != "cat-rice" {
			t.Errorf("Expected rice rewritten to cat-rice, got %s", got)
		}
		quinoaID := p.Weeks[0].Days[0].Meals[0].Foods[1].FoodItemID
		if quinoaID == "placeholder-Quinoa" {
			t.Error("Expected quinoa rewritten to a created catalog id")
		}
		if result.Stats.Unresolved != 0 {
			t.Errorf("Expected no unresolved foods, got %d", result.Stats.Unresolved)
		}
	})

	// A food whose resolution failed keeps its prior id; the count surfaces
	// the degradation to the caller instead of hiding it.
	t.Run("UnresolvedFoodsKeepPriorIDAndAreCounted", func(t *testing.T) {
		store := newFakeStore()
		store.failOn[NormalizeName("Mystery Food")] = fmt.Errorf("search unavailable")
		engine := NewEngine(store, nil, 0, nil)
		p := buildTestPlan(t, "Mystery Food")

		result := engine.ProcessNutritionPlan(ctx, p)

		if got := p.Weeks[0].Days[0].Meals[0].Foods[0].FoodItemID; got != "placeholder-Mystery Food" {
			t.Errorf("Expected prior id preserved, got %s", got)
		}
		if result.Stats.Unresolved != 1 {
			t.Errorf("Expected 1 unresolved food, got %d", result.Stats.Unresolved)
		}
		if result.Stats.Errors != 1 {
			t.Errorf("Expected 1 error, got %d", result.Stats.Errors)
		}
	})

	t.Run("EmptyNamesSkipped", func(t *testing.T) {
		store := newFakeStore()
		engine := NewEngine(store, nil, 0, nil)
		p := buildTestPlan(t, "")

		result := engine.ProcessNutritionPlan(ctx, p)
		if len(result.Results) != 0 {
			t.Errorf("Expected no candidates for empty-name foods, got %d", len(result.Results))
		}
		if result.Stats.Unresolved != 0 {
			t.Errorf("Expected skipped foods not counted unresolved, got %d", result.Stats.Unresolved)
		}
	})
}

func TestValidatePlanFoods(t *testing.T) {
	ctx := context.Background()
	existing := FoodItem{ID: "cat-rice", Name: "Rice"}
	store := newFakeStore(existing)
	engine := NewEngine(store, nil, 0, nil)

	p := buildTestPlan(t, "Rice", "Ghost Food")
	p.Weeks[0].Days[0].Meals[0].Foods[0].FoodItemID = "cat-rice"
	p.Weeks[0].Days[0].Meals[0].Foods[1].FoodItemID = "dangling-id"

	missing, err := engine.ValidatePlanFoods(ctx, p)
	if err != nil {
		t.Fatalf("ValidatePlanFoods failed: %v", err)
	}
	if len(missing) != 1 {
		t.Fatalf("Expected 1 missing food, got %d", len(missing))
	}
	if missing[0].Name != "Ghost Food" || missing[0].MealName != "Lunch" || missing[0].DayNumber != 1 {
		t.Errorf("Unexpected missing food report: %+v", missing[0])
	}
}
