package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nutrition-core/internal/macros"
	"nutrition-core/internal/plan"
)

// Template is a reusable plan skeleton: the week/day/meal/food tree and
// targets of a plan with every user-specific field stripped.
type Template struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Goals        []string      `json:"goals"`
	Weeks        []plan.Week   `json:"weeks"`
	TargetMacros macros.Macros `json:"targetMacros"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Service saves plans as templates and instantiates fresh plans from them.
type Service struct {
	db *sql.DB
}

// NewService creates a template Service.
func NewService(d *sql.DB) *Service {
	return &Service{db: d}
}

// SaveFromPlan stores the plan's tree as a named template. User identity,
// status, version, adaptation history, and profile data are not retained.
func (s *Service) SaveFromPlan(ctx context.Context, p *plan.Plan, name string) (*Template, error) {
	if name == "" {
		name = p.Name
	}
	if name == "" {
		return nil, fmt.Errorf("template name must not be empty")
	}

	tpl := &Template{
		ID:           uuid.NewString(),
		Name:         name,
		Goals:        p.Goals,
		Weeks:        p.Weeks,
		TargetMacros: p.TargetMacros,
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template %q: %w", name, err)
	}

	const query = `INSERT INTO plan_templates (id, name, data, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, tpl.ID, tpl.Name, string(data), tpl.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert template %q: %w", name, err)
	}
	return tpl, nil
}

// Get retrieves a template by id. Returns (nil, nil) when no template exists.
func (s *Service) Get(ctx context.Context, id string) (*Template, error) {
	const query = `SELECT data FROM plan_templates WHERE id = ?`

	var data string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get template %s: %w", id, err)
	}

	var tpl Template
	if err := json.Unmarshal([]byte(data), &tpl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %s: %w", id, err)
	}
	return &tpl, nil
}

// List retrieves all templates, newest first.
func (s *Service) List(ctx context.Context) ([]Template, error) {
	const query = `SELECT data FROM plan_templates ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan template row: %w", err)
		}
		var tpl Template
		if err := json.Unmarshal([]byte(data), &tpl); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// Instantiate builds a fresh DRAFT plan for a user from a template: new ids
// throughout the tree, version 1, current timestamps.
func (s *Service) Instantiate(ctx context.Context, templateID, userID string) (*plan.Plan, error) {
	if userID == "" {
		return nil, plan.ErrMissingUserID
	}

	tpl, err := s.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %s not found", templateID)
	}

	now := time.Now().UTC()
	p := &plan.Plan{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         tpl.Name,
		Goals:        tpl.Goals,
		Weeks:        cloneWeeks(tpl.Weeks),
		TargetMacros: tpl.TargetMacros,
		Status:       plan.StatusDraft,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	plan.RecomputeAggregates(p)

	if issues := plan.Validate(p); len(issues) > 0 {
		return nil, plan.ValidationError(issues)
	}
	return p, nil
}

func cloneWeeks(weeks []plan.Week) []plan.Week {
	out := make([]plan.Week, len(weeks))
	for wi, w := range weeks {
		nw := w
		nw.ID = uuid.NewString()
		nw.Days = make([]plan.Day, len(w.Days))
		for di, d := range w.Days {
			nd := d
			nd.ID = uuid.NewString()
			nd.Meals = make([]plan.Meal, len(d.Meals))
			for mi, m := range d.Meals {
				nm := m
				nm.ID = uuid.NewString()
				nm.Foods = make([]plan.Food, len(m.Foods))
				for fi, f := range m.Foods {
					nf := f
					nf.ID = uuid.NewString()
					nm.Foods[fi] = nf
				}
				nd.Meals[mi] = nm
			}
			nw.Days[di] = nd
		}
		out[wi] = nw
	}
	return out
}
