package plan

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"nutrition-core/internal/macros"
)

// Field alias tables. AI-generation versions have drifted over time, so each
// logical field accepts its historical key names in priority order.
var (
	foodItemIDAliases = []string{"foodItemId", "itemId", "food_item_id", "food_id", "id"}
	nameAliases       = []string{"name", "foodName", "food_name", "title"}
	quantityAliases   = []string{"quantity", "qty", "amount"}
	unitAliases       = []string{"unit", "serving_unit", "measure"}
	macrosAliases     = []string{"macros", "totalMacros", "nutrition", "nutrients"}
	mealTypeAliases   = []string{"type", "mealType", "meal_type"}
	dayNumberAliases  = []string{"dayNumber", "day_number", "day"}
	weekNumberAliases = []string{"weekNumber", "week_number", "week"}

	caloriesAliases = []string{"calories", "kcal", "energy"}
	proteinAliases  = []string{"protein", "proteins"}
	carbsAliases    = []string{"carbs", "carbohydrates"}
	fatsAliases     = []string{"fats", "fat"}
	fiberAliases    = []string{"fiber", "fibre"}

	targetMacrosAliases = []string{"targetMacros", "target_macros", "targets"}
)

// Normalizer transforms untyped plan payloads into validated Plans.
// Data-quality warnings go to the injected logger; a nil logger discards them.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer. Pass nil to silence warnings.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Normalizer{logger: logger}
}

// NormalizePlan coerces a raw payload (AI output, imported document, or a
// partially-shaped stored row) into a fully-typed Plan, using base for
// defaults. base must supply the owning UserID. Goals must come from either
// the payload or base; everything else defaults silently.
//
// Each level of the tree is accepted through three tiers: strict decode,
// structural guard, then a manual rebuild using the field alias tables.
// The result is validated once more before being returned; a validation
// failure reports every violation and returns no partial plan.
func (n *Normalizer) NormalizePlan(raw any, base *Plan) (*Plan, error) {
	if base == nil || base.UserID == "" {
		return nil, ErrMissingUserID
	}

	m, err := toMap(raw)
	if err != nil {
		return nil, fmt.Errorf("plan payload is not an object: %w", err)
	}

	goals, err := n.resolveGoals(m, base)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		ID:        firstStringOr(m, []string{"id", "planId", "plan_id"}, base.ID),
		UserID:    base.UserID,
		Name:      firstStringOr(m, []string{"name", "planName", "plan_name"}, base.Name),
		Goals:     goals,
		Status:    base.Status,
		Version:   base.Version,
		CreatedAt: base.CreatedAt,
		UpdatedAt: base.UpdatedAt,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if s, ok := firstString(m, []string{"status"}); ok && ValidStatus(Status(s)) {
		p.Status = Status(s)
	}
	if !ValidStatus(p.Status) {
		p.Status = StatusDraft
	}
	if v, ok := firstNumber(m, []string{"version"}); ok && v >= 1 {
		p.Version = int(v)
	}
	if p.Version < 1 {
		p.Version = 1
	}

	p.UserProfile = rawMessageOr(m, "userProfile", base.UserProfile)
	p.PersonalizedPlan = rawMessageOr(m, "personalizedPlan", base.PersonalizedPlan)
	p.Adaptations = rawMessageOr(m, "adaptations", base.Adaptations)

	p.Weeks = n.normalizeWeeks(m["weeks"])
	n.renumberDays(p)
	n.reconcileAggregates(p)

	if tm, ok := firstMap(m, targetMacrosAliases); ok {
		p.TargetMacros = normalizeMacrosMap(tm)
	} else if !base.TargetMacros.IsZero() {
		p.TargetMacros = macros.Normalize(base.TargetMacros)
	} else {
		p.TargetMacros = defaultTargetMacros(p)
	}

	if issues := Validate(p); len(issues) > 0 {
		return nil, ValidationError(issues)
	}
	return p, nil
}

// resolveGoals extracts goals from the payload or base. Unlike every other
// field, goals have no silent default: a payload without goals and a base
// without goals is a hard error.
func (n *Normalizer) resolveGoals(m map[string]any, base *Plan) ([]string, error) {
	var goals []string

	switch v := m["goals"].(type) {
	case []any:
		for _, g := range v {
			if s, ok := g.(string); ok && strings.TrimSpace(s) != "" {
				goals = append(goals, strings.TrimSpace(s))
			}
		}
	case string:
		if strings.TrimSpace(v) != "" {
			goals = []string{strings.TrimSpace(v)}
		}
	case map[string]any:
		if s, ok := v["goal"].(string); ok && strings.TrimSpace(s) != "" {
			goals = []string{strings.TrimSpace(s)}
		}
	}
	if len(goals) == 0 {
		if s, ok := m["goal"].(string); ok && strings.TrimSpace(s) != "" {
			goals = []string{strings.TrimSpace(s)}
		}
	}
	if len(goals) == 0 {
		goals = append(goals, base.Goals...)
	}
	if len(goals) == 0 {
		return nil, ErrMissingGoals
	}
	return goals, nil
}

func (n *Normalizer) normalizeWeeks(raw any) []Week {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	weeks := make([]Week, 0, len(list))
	for i, item := range list {
		week, ok := n.normalizeWeek(item, i)
		if !ok {
			n.logger.Warn("dropping unrecognizable week entry", "position", i)
			continue
		}
		weeks = append(weeks, week)
	}
	return weeks
}

func (n *Normalizer) normalizeWeek(raw any, pos int) (Week, bool) {
	var strict Week
	if decodeStrict(raw, &strict) && strict.WeekNumber >= 1 && len(strict.Days) > 0 {
		n.repairWeek(&strict)
		return strict, true
	}

	m, ok := raw.(map[string]any)
	if !ok || !IsWeek(raw) {
		return Week{}, false
	}

	week := Week{ID: uuid.NewString(), WeekNumber: pos + 1}
	if num, ok := firstNumber(m, weekNumberAliases); ok && num >= 1 {
		week.WeekNumber = int(num)
	}
	if days, ok := m["days"].([]any); ok {
		for i, d := range days {
			day, ok := n.normalizeDay(d, i)
			if !ok {
				n.logger.Warn("dropping unrecognizable day entry", "week", week.WeekNumber, "position", i)
				continue
			}
			week.Days = append(week.Days, day)
		}
	}
	if wa, ok := firstMap(m, []string{"weeklyAverageMacros", "weekly_average_macros", "averageMacros"}); ok {
		week.WeeklyAverageMacros = normalizeMacrosMap(wa)
	}
	return week, true
}

func (n *Normalizer) normalizeDay(raw any, pos int) (Day, bool) {
	var strict Day
	if decodeStrict(raw, &strict) && strict.DayNumber >= 1 && strict.Meals != nil {
		n.repairDay(&strict)
		return strict, true
	}

	m, ok := raw.(map[string]any)
	if !ok || !IsDay(raw) {
		return Day{}, false
	}

	day := Day{ID: uuid.NewString(), DayNumber: pos + 1}
	if num, ok := firstNumber(m, dayNumberAliases); ok && num >= 1 {
		day.DayNumber = int(num)
	}
	if meals, ok := m["meals"].([]any); ok {
		for i, ml := range meals {
			meal, ok := n.normalizeMeal(ml, i)
			if !ok {
				n.logger.Warn("dropping unrecognizable meal entry", "day", day.DayNumber, "position", i)
				continue
			}
			day.Meals = append(day.Meals, meal)
		}
	}
	if tm, ok := firstMap(m, []string{"totalMacros", "total_macros"}); ok {
		day.TotalMacros = normalizeMacrosMap(tm)
	}
	return day, true
}

func (n *Normalizer) normalizeMeal(raw any, pos int) (Meal, bool) {
	var strict Meal
	if decodeStrict(raw, &strict) && strict.Name != "" && strict.Foods != nil {
		n.repairMeal(&strict)
		return strict, true
	}

	m, ok := raw.(map[string]any)
	if !ok || !IsMeal(raw) {
		return Meal{}, false
	}

	meal := Meal{ID: uuid.NewString(), Type: MealSnack}
	meal.Name = firstStringOr(m, nameAliases, fmt.Sprintf("Meal %d", pos+1))
	if t, ok := firstString(m, mealTypeAliases); ok {
		switch MealType(strings.ToLower(strings.TrimSpace(t))) {
		case MealBreakfast:
			meal.Type = MealBreakfast
		case MealLunch:
			meal.Type = MealLunch
		case MealDinner:
			meal.Type = MealDinner
		}
	}
	if foods, ok := m["foods"].([]any); ok {
		for i, f := range foods {
			food, ok := n.normalizeFood(f, i)
			if !ok {
				n.logger.Warn("dropping unrecognizable food entry", "meal", meal.Name, "position", i)
				continue
			}
			meal.Foods = append(meal.Foods, food)
		}
	}
	if tm, ok := firstMap(m, []string{"totalMacros", "total_macros"}); ok {
		meal.TotalMacros = normalizeMacrosMap(tm)
	}
	return meal, true
}

func (n *Normalizer) normalizeFood(raw any, pos int) (Food, bool) {
	var strict Food
	if decodeStrict(raw, &strict) && strict.Name != "" && strict.FoodItemID != "" {
		n.repairFoodIDs(&strict, pos)
		return strict, true
	}

	m, ok := raw.(map[string]any)
	if !ok || !IsFood(raw) {
		return Food{}, false
	}

	food := Food{ID: uuid.NewString()}
	food.Name = firstStringOr(m, nameAliases, "")
	if q, ok := firstNumber(m, quantityAliases); ok && q >= 0 {
		food.Quantity = q
	}
	food.Unit = firstStringOr(m, unitAliases, "g")
	if mm, ok := firstMap(m, macrosAliases); ok {
		food.Macros = normalizeMacrosMap(mm)
	}
	if id, ok := firstID(m, foodItemIDAliases); ok {
		food.FoodItemID = id
	}
	n.repairFoodIDs(&food, pos)
	return food, true
}

// The repair helpers backfill ids and normalize macros on strictly-decoded
// fragments. A missing catalog reference is a data-quality problem worth
// logging even on the strict path.

func (n *Normalizer) repairWeek(w *Week) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	for i := range w.Days {
		n.repairDay(&w.Days[i])
	}
	w.WeeklyAverageMacros = macros.Normalize(w.WeeklyAverageMacros)
}

func (n *Normalizer) repairDay(d *Day) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	for i := range d.Meals {
		n.repairMeal(&d.Meals[i])
	}
	d.TotalMacros = macros.Normalize(d.TotalMacros)
}

func (n *Normalizer) repairMeal(m *Meal) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Type == "" {
		m.Type = MealSnack
	}
	for i := range m.Foods {
		n.repairFoodIDs(&m.Foods[i], i)
	}
	m.TotalMacros = macros.Normalize(m.TotalMacros)
}

func (n *Normalizer) repairFoodIDs(f *Food, pos int) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.FoodItemID == "" {
		f.FoodItemID = "food-" + uuid.NewString()
		n.logger.Warn("food entry has no catalog reference, generated placeholder id",
			"name", f.Name, "position", pos, "foodItemId", f.FoodItemID)
	}
	f.Macros = macros.Normalize(f.Macros)
	if !macros.ConsistentWithAtwater(f.Macros, macros.AtwaterTolerancePercent) {
		n.logger.Warn("food calories disagree with Atwater-derived value",
			"name", f.Name, "calories", f.Macros.Calories,
			"derived", macros.CaloriesFromMacros(f.Macros.Protein, f.Macros.Carbs, f.Macros.Fats))
	}
}

// renumberDays rewrites day numbers into a single contiguous 1-based sequence
// across the flattened plan whenever the payload's numbering does not already
// form one. Per-week restarts (1..7, 1..7) are a common AI output shape.
func (n *Normalizer) renumberDays(p *Plan) {
	expected := 1
	contiguous := true
	for _, w := range p.Weeks {
		for _, d := range w.Days {
			if d.DayNumber != expected {
				contiguous = false
			}
			expected++
		}
	}
	if contiguous {
		return
	}

	num := 1
	for wi := range p.Weeks {
		for di := range p.Weeks[wi].Days {
			p.Weeks[wi].Days[di].DayNumber = num
			num++
		}
	}
	n.logger.Warn("day numbers were not contiguous across the plan, renumbered", "totalDays", num-1)
}

// reconcileAggregates ensures every derived total agrees with its children,
// recomputing any aggregate that is absent or drifted beyond rounding.
func (n *Normalizer) reconcileAggregates(p *Plan) {
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
				computed := macros.Sum(foodMacros)
				if !macrosAgree(meal.TotalMacros, computed) {
					if !meal.TotalMacros.IsZero() {
						n.logger.Warn("meal total disagreed with food sum, recomputed", "meal", meal.Name)
					}
					meal.TotalMacros = computed
				}
				mealTotals = append(mealTotals, meal.TotalMacros)
			}
			computed := macros.Sum(mealTotals)
			if !macrosAgree(day.TotalMacros, computed) {
				if !day.TotalMacros.IsZero() {
					n.logger.Warn("day total disagreed with meal sum, recomputed", "day", day.DayNumber)
				}
				day.TotalMacros = computed
			}
			dayTotals = append(dayTotals, day.TotalMacros)
		}
		computed := macros.Average(dayTotals)
		if !macrosAgree(week.WeeklyAverageMacros, computed) {
			if !week.WeeklyAverageMacros.IsZero() {
				n.logger.Warn("weekly average disagreed with day totals, recomputed", "week", week.WeekNumber)
			}
			week.WeeklyAverageMacros = computed
		}
	}
}

// defaultTargetMacros derives a target from the plan's own content when
// neither payload nor base supplies one: the average of all day totals.
func defaultTargetMacros(p *Plan) macros.Macros {
	var dayTotals []macros.Macros
	for _, w := range p.Weeks {
		for _, d := range w.Days {
			dayTotals = append(dayTotals, d.TotalMacros)
		}
	}
	return macros.Average(dayTotals)
}

func macrosAgree(a, b macros.Macros) bool {
	const eps = 0.01
	return math.Abs(a.Calories-b.Calories) <= eps &&
		math.Abs(a.Protein-b.Protein) <= eps &&
		math.Abs(a.Carbs-b.Carbs) <= eps &&
		math.Abs(a.Fats-b.Fats) <= eps &&
		math.Abs(a.Fiber-b.Fiber) <= eps
}

// toMap coerces any payload shape (struct, map, json.RawMessage) into a
// generic map through a JSON round-trip.
func toMap(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case json.RawMessage:
		var m map[string]any
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, err
		}
		return m, nil
	case []byte:
		var m map[string]any
		if err := json.Unmarshal(v, &m); err != nil {
			return nil, err
		}
		return m, nil
	case nil:
		return map[string]any{}, nil
	default:
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
}

// decodeStrict re-marshals a payload fragment and decodes it into dst with
// unknown fields rejected. This is the first acceptance tier; alias keys or
// extra keys push the fragment down to the guard + manual rebuild tiers.
func decodeStrict(raw any, dst any) bool {
	data, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	return dec.Decode(dst) == nil
}

func firstString(m map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func firstStringOr(m map[string]any, keys []string, fallback string) string {
	if s, ok := firstString(m, keys); ok {
		return s
	}
	return fallback
}

// firstID is firstString extended to tolerate numeric ids.
func firstID(m map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		}
	}
	return "", false
}

// firstNumber tolerates numeric strings, a common artifact of upstream
// serialization.
func firstNumber(m map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func firstMap(m map[string]any, keys []string) (map[string]any, bool) {
	for _, k := range keys {
		if mm, ok := m[k].(map[string]any); ok {
			return mm, true
		}
	}
	return nil, false
}

func normalizeMacrosMap(m map[string]any) macros.Macros {
	var out macros.Macros
	if v, ok := firstNumber(m, caloriesAliases); ok {
		out.Calories = v
	}
	if v, ok := firstNumber(m, proteinAliases); ok {
		out.Protein = v
	}
	if v, ok := firstNumber(m, carbsAliases); ok {
		out.Carbs = v
	}
	if v, ok := firstNumber(m, fatsAliases); ok {
		out.Fats = v
	}
	if v, ok := firstNumber(m, fiberAliases); ok {
		out.Fiber = v
	}
	return macros.Normalize(out)
}

func rawMessageOr(m map[string]any, key string, fallback json.RawMessage) json.RawMessage {
	v, ok := m[key]
	if !ok || v == nil {
		return fallback
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return data
}
