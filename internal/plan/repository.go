package plan

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository is a database-backed repository for nutrition plans. The plan
// tree is stored as a JSON column; id, user, status and version are lifted
// into columns for filtering.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new plan Repository.
func NewRepository(d *sql.DB) *Repository {
	return &Repository{db: d}
}

// Save inserts a plan or replaces an existing row with the same id.
func (r *Repository) Save(ctx context.Context, p *Plan) error {
	p.UpdatedAt = time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	data, err := MarshalStoredPlan(p)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO nutrition_plans (id, user_id, status, version, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			version = excluded.version,
			data = excluded.data,
			updated_at = excluded.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.UserID, string(p.Status), p.Version, string(data), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save plan %s: %w", p.ID, err)
	}
	return nil
}

// Get retrieves a plan by id. Returns (nil, nil) when no plan exists.
func (r *Repository) Get(ctx context.Context, id string) (*Plan, error) {
	const query = `SELECT data FROM nutrition_plans WHERE id = ?`

	var data string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get plan %s: %w", id, err)
	}
	return UnmarshalStoredPlan([]byte(data))
}

// ListByUser retrieves all plans owned by a user, most recently updated first.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]*Plan, error) {
	const query = `SELECT data FROM nutrition_plans WHERE user_id = ? ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans for user %s: %w", userID, err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		p, err := UnmarshalStoredPlan([]byte(data))
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// UpdateStatus transitions a plan's lifecycle status. Activating a plan
// archives any other ACTIVE plan of the same user so at most one is active.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid plan status %q", status)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if status == StatusActive {
		const demote = `
			UPDATE nutrition_plans
			SET status = ?, data = json_set(data, '$.status', ?), updated_at = ?
			WHERE status = ? AND user_id = (SELECT user_id FROM nutrition_plans WHERE id = ?) AND id != ?
		`
		if _, err := tx.ExecContext(ctx, demote, string(StatusArchived), string(StatusArchived), time.Now().UTC(), string(StatusActive), id, id); err != nil {
			return fmt.Errorf("failed to archive previously active plans: %w", err)
		}
	}

	const query = `
		UPDATE nutrition_plans
		SET status = ?, data = json_set(data, '$.status', ?), updated_at = ?
		WHERE id = ?
	`
	res, err := tx.ExecContext(ctx, query, string(status), string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update status of plan %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("plan %s not found", id)
	}
	return tx.Commit()
}

// Delete removes a plan by id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM nutrition_plans WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete plan %s: %w", id, err)
	}
	return nil
}
