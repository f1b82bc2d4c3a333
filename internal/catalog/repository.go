package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"nutrition-core/internal/macros"
)

// Store is the catalog storage contract the matching engine depends on.
type Store interface {
	FindByNormalizedName(ctx context.Context, normalizedName string) (*FoodItem, error)
	FindByID(ctx context.Context, id string) (*FoodItem, error)
	Search(ctx context.Context, name string, limit int) ([]FoodItem, error)
	Create(ctx context.Context, c Candidate, locales []string) (*FoodItem, error)
}

// Repository is the SQLite-backed catalog store.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new catalog Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

const foodItemColumns = `id, name, normalized_name, description, brand_id,
	calories, protein, carbs, fats, fiber,
	protein_pct, carbs_pct, fats_pct, main_macro, created_at`

// FindByNormalizedName retrieves a food item by its normalized name.
// Returns (nil, nil) when no item exists.
func (r *Repository) FindByNormalizedName(ctx context.Context, normalizedName string) (*FoodItem, error) {
	query := `SELECT ` + foodItemColumns + ` FROM food_items WHERE normalized_name = ?`
	item, err := scanFoodItem(r.db.QueryRowContext(ctx, query, normalizedName))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find food item by name %q: %w", normalizedName, err)
	}
	return item, nil
}

// FindByID retrieves a food item by id. Returns (nil, nil) when no item exists.
func (r *Repository) FindByID(ctx context.Context, id string) (*FoodItem, error) {
	query := `SELECT ` + foodItemColumns + ` FROM food_items WHERE id = ?`
	item, err := scanFoodItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find food item %s: %w", id, err)
	}
	return item, nil
}

// Search returns up to limit candidate items whose normalized name contains
// any token of the query name. Ranking is left to the caller's similarity
// scoring.
func (r *Repository) Search(ctx context.Context, name string, limit int) ([]FoodItem, error) {
	tokens := strings.Fields(NormalizeName(name))
	if len(tokens) == 0 {
		return nil, nil
	}

	conditions := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)+1)
	for _, tok := range tokens {
		conditions = append(conditions, "normalized_name LIKE ?")
		args = append(args, "%"+tok+"%")
	}
	args = append(args, limit)

	query := `SELECT ` + foodItemColumns + ` FROM food_items WHERE ` +
		strings.Join(conditions, " OR ") + ` LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search food items for %q: %w", name, err)
	}
	defer rows.Close()

	var items []FoodItem
	for rows.Next() {
		item, err := scanFoodItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan food item row: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Create inserts a new food item with its brand and per-locale translation
// rows. When a concurrent writer wins the race on the normalized-name unique
// constraint, the now-existing record is fetched and returned instead of the
// error.
func (r *Repository) Create(ctx context.Context, c Candidate, locales []string) (*FoodItem, error) {
	normalized := NormalizeName(c.Name)
	if normalized == "" {
		return nil, fmt.Errorf("cannot create food item with empty name")
	}

	item, err := r.create(ctx, c, normalized, locales)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := r.FindByNormalizedName(ctx, normalized)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to recover from uniqueness violation for %q: %w", c.Name, lookupErr)
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return item, nil
}

func (r *Repository) create(ctx context.Context, c Candidate, normalized string, locales []string) (*FoodItem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	brandID, err := resolveBrand(ctx, tx, c.Brand)
	if err != nil {
		return nil, err
	}

	m := macros.Normalize(c.Macros)
	proteinPct, carbsPct, fatsPct := MacroBreakdown(m)
	item := &FoodItem{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(c.Name),
		NormalizedName: normalized,
		Description:    c.Description,
		BrandID:        brandID,
		Macros:         m,
		ProteinPct:     proteinPct,
		CarbsPct:       carbsPct,
		FatsPct:        fatsPct,
		MainMacro:      ClassifyMainMacro(proteinPct, carbsPct, fatsPct),
		CreatedAt:      time.Now().UTC(),
	}

	const insertItem = `
		INSERT INTO food_items (id, name, normalized_name, description, brand_id,
			calories, protein, carbs, fats, fiber,
			protein_pct, carbs_pct, fats_pct, main_macro, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, insertItem,
		item.ID, item.Name, item.NormalizedName, item.Description, nullable(item.BrandID),
		item.Macros.Calories, item.Macros.Protein, item.Macros.Carbs, item.Macros.Fats, item.Macros.Fiber,
		item.ProteinPct, item.CarbsPct, item.FatsPct, string(item.MainMacro), item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert food item %q: %w", c.Name, err)
	}

	// No actual translation happens here: every supported locale gets the
	// source name and description until a translation pipeline fills them in.
	const insertTranslation = `
		INSERT INTO food_translations (food_item_id, locale, name, description)
		VALUES (?, ?, ?, ?)
	`
	for _, locale := range locales {
		if _, err := tx.ExecContext(ctx, insertTranslation, item.ID, locale, item.Name, item.Description); err != nil {
			return nil, fmt.Errorf("failed to insert %s translation for %q: %w", locale, c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit food item %q: %w", c.Name, err)
	}
	return item, nil
}

// resolveBrand finds or creates a brand row by normalized name. An empty
// brand name resolves to no brand.
func resolveBrand(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	normalized := NormalizeName(name)
	if normalized == "" {
		return "", nil
	}

	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM brands WHERE normalized_name = ?`, normalized).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to look up brand %q: %w", name, err)
	}

	id = uuid.NewString()
	_, err = tx.ExecContext(ctx, `INSERT INTO brands (id, name, normalized_name) VALUES (?, ?, ?)`,
		id, strings.TrimSpace(name), normalized)
	if err != nil {
		return "", fmt.Errorf("failed to create brand %q: %w", name, err)
	}
	return id, nil
}

// Translations returns the per-locale rows for a food item.
func (r *Repository) Translations(ctx context.Context, foodItemID string) ([]Translation, error) {
	const query = `SELECT food_item_id, locale, name, description FROM food_translations WHERE food_item_id = ? ORDER BY locale`

	rows, err := r.db.QueryContext(ctx, query, foodItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations for %s: %w", foodItemID, err)
	}
	defer rows.Close()

	var translations []Translation
	for rows.Next() {
		var t Translation
		if err := rows.Scan(&t.FoodItemID, &t.Locale, &t.Name, &t.Description); err != nil {
			return nil, fmt.Errorf("failed to scan translation row: %w", err)
		}
		translations = append(translations, t)
	}
	return translations, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFoodItem(row rowScanner) (*FoodItem, error) {
	var item FoodItem
	var brandID sql.NullString
	var mainMacro string
	err := row.Scan(&item.ID, &item.Name, &item.NormalizedName, &item.Description, &brandID,
		&item.Macros.Calories, &item.Macros.Protein, &item.Macros.Carbs, &item.Macros.Fats, &item.Macros.Fiber,
		&item.ProteinPct, &item.CarbsPct, &item.FatsPct, &mainMacro, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.BrandID = brandID.String
	item.MainMacro = MainMacro(mainMacro)
	return &item, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
