package catalog

import (
	"context"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"nutrition-core/internal/plan"
)

// searchLimit caps how many catalog candidates the fuzzy pass scores.
const searchLimit = 10

// DefaultConcurrency bounds how many candidates resolve at once when the
// caller does not configure a limit.
const DefaultConcurrency = 8

// Stats aggregates the outcomes of a batch resolution.
type Stats struct {
	Existing   int
	Matched    int
	Created    int
	Errors     int
	Unresolved int
}

// BatchResult holds the per-candidate outcomes of a batch resolution.
// Resolved maps normalized candidate names to catalog ids; Errors maps food
// names to the failure message for candidates that could not be resolved.
type BatchResult struct {
	Results  []CreationResult
	Resolved map[string]string
	Errors   map[string]string
	Stats    Stats
}

// MissingFood identifies a plan food whose catalog reference is absent or
// dangling, for caller-driven remediation.
type MissingFood struct {
	ID        string
	Name      string
	MealName  string
	DayNumber int
}

// Engine resolves plan foods against the catalog, fuzzy-matching close
// records and creating the rest.
type Engine struct {
	store       Store
	logger      *slog.Logger
	locales     []string
	concurrency int
}

// NewEngine creates an Engine. locales lists the translation locales new
// records are created with; a nil logger discards warnings.
func NewEngine(store Store, locales []string, concurrency int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if len(locales) == 0 {
		locales = []string{"en"}
	}
	return &Engine{store: store, logger: logger, locales: locales, concurrency: concurrency}
}

// DedupCandidates collapses candidates sharing a normalized name, keeping the
// first seen unless a later duplicate carries a description and the kept one
// does not. Candidates with empty names are dropped. Input order of the
// surviving entries is preserved.
func DedupCandidates(candidates []Candidate) []Candidate {
	index := make(map[string]int)
	deduped := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		key := NormalizeName(c.Name)
		if key == "" {
			continue
		}
		if i, seen := index[key]; seen {
			if deduped[i].Description == "" && c.Description != "" {
				deduped[i] = c
			}
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, c)
	}
	return deduped
}

// BatchProcessFoods resolves every candidate concurrently, bounded by the
// engine's concurrency limit. One candidate's failure never aborts or blocks
// the others; failures land in the result's Errors map keyed by food name.
func (e *Engine) BatchProcessFoods(ctx context.Context, candidates []Candidate) *BatchResult {
	candidates = DedupCandidates(candidates)

	results := make([]CreationResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			res, err := e.resolveCandidate(gctx, c)
			if err != nil {
				res = CreationResult{
					Name:      c.Name,
					Status:    StatusError,
					MatchType: MatchNone,
					Err:       err.Error(),
				}
				e.logger.Warn("food resolution failed", "name", c.Name, "error", err)
			}
			results[i] = res
			// Errors are captured per item; returning nil keeps the
			// group from cancelling sibling resolutions.
			return nil
		})
	}
	_ = g.Wait()

	out := &BatchResult{
		Results:  results,
		Resolved: make(map[string]string),
		Errors:   make(map[string]string),
	}
	for _, res := range results {
		switch res.Status {
		case StatusExisting:
			out.Stats.Existing++
		case StatusMatched:
			out.Stats.Matched++
		case StatusCreated:
			out.Stats.Created++
		case StatusError:
			out.Stats.Errors++
			out.Errors[res.Name] = res.Err
			continue
		}
		out.Resolved[NormalizeName(res.Name)] = res.ID
	}
	return out
}

// resolveCandidate maps one candidate to a catalog id: exact normalized-name
// match first, then fuzzy search scored by combined name+macro similarity,
// then creation.
func (e *Engine) resolveCandidate(ctx context.Context, c Candidate) (CreationResult, error) {
	normalized := NormalizeName(c.Name)

	exact, err := e.store.FindByNormalizedName(ctx, normalized)
	if err != nil {
		return CreationResult{}, err
	}
	if exact != nil {
		return CreationResult{
			ID:         exact.ID,
			Name:       c.Name,
			Existed:    true,
			Status:     StatusExisting,
			MatchType:  MatchExact,
			Confidence: 100,
		}, nil
	}

	matches, err := e.store.Search(ctx, c.Name, searchLimit)
	if err != nil {
		return CreationResult{}, err
	}
	var best *FoodItem
	var bestScore float64
	for i, item := range matches {
		score := CombinedScore(NameSimilarity(c.Name, item.Name), MacroSimilarity(c.Macros, item.Macros))
		if score > bestScore {
			best = &matches[i]
			bestScore = score
		}
	}
	if best != nil && bestScore >= CloseMatchThreshold {
		return CreationResult{
			ID:         best.ID,
			Name:       c.Name,
			Existed:    true,
			Status:     StatusMatched,
			MatchType:  MatchFuzzy,
			Confidence: int(math.Round(bestScore * 100)),
		}, nil
	}

	created, err := e.store.Create(ctx, c, e.locales)
	if err != nil {
		return CreationResult{}, err
	}
	return CreationResult{
		ID:         created.ID,
		Name:       c.Name,
		Status:     StatusCreated,
		MatchType:  MatchNone,
		Confidence: 100,
	}, nil
}

// ProcessNutritionPlan resolves every food in the plan against the catalog
// and rewrites each food's FoodItemID with the resolved id. Foods whose
// normalized name has no resolution entry keep their prior (possibly
// placeholder) id and are counted in Stats.Unresolved.
func (e *Engine) ProcessNutritionPlan(ctx context.Context, p *plan.Plan) *BatchResult {
	var candidates []Candidate
	p.EachFood(func(_ *plan.Week, _ *plan.Day, _ *plan.Meal, f *plan.Food) bool {
		if NormalizeName(f.Name) == "" {
			return true
		}
		candidates = append(candidates, Candidate{
			Name:   f.Name,
			Unit:   f.Unit,
			Macros: f.Macros,
		})
		return true
	})

	result := e.BatchProcessFoods(ctx, candidates)

	p.EachFood(func(_ *plan.Week, _ *plan.Day, _ *plan.Meal, f *plan.Food) bool {
		key := NormalizeName(f.Name)
		if key == "" {
			return true
		}
		if id, ok := result.Resolved[key]; ok {
			f.FoodItemID = id
		} else {
			result.Stats.Unresolved++
			e.logger.Warn("food left unresolved, keeping prior catalog reference",
				"name", f.Name, "foodItemId", f.FoodItemID)
		}
		return true
	})
	return result
}

// ValidatePlanFoods walks the plan and reports every food whose catalog
// reference is missing or does not resolve. The plan is not mutated.
func (e *Engine) ValidatePlanFoods(ctx context.Context, p *plan.Plan) ([]MissingFood, error) {
	// Dangling references are often repeated across days; check each id once.
	known := make(map[string]bool)
	var missing []MissingFood
	var walkErr error

	p.EachFood(func(_ *plan.Week, day *plan.Day, meal *plan.Meal, f *plan.Food) bool {
		if f.FoodItemID != "" {
			resolved, checked := known[f.FoodItemID]
			if !checked {
				item, err := e.store.FindByID(ctx, f.FoodItemID)
				if err != nil {
					walkErr = err
					return false
				}
				resolved = item != nil
				known[f.FoodItemID] = resolved
			}
			if resolved {
				return true
			}
		}
		missing = append(missing, MissingFood{
			ID:        f.ID,
			Name:      f.Name,
			MealName:  meal.Name,
			DayNumber: day.DayNumber,
		})
		return true
	})

	if walkErr != nil {
		return nil, walkErr
	}
	return missing, nil
}
