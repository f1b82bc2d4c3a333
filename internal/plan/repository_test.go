package plan

import (
	"context"
	"path/filepath"
	"testing"

	"nutrition-core/internal/database"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.SQL)
}

func TestRepositorySaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	p := sampleNormalizedPlan(t)

	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected plan, got nil")
	}
	if got.UserID != "u1" {
		t.Errorf("Expected userId 'u1', got '%s'", got.UserID)
	}
	if got.Weeks[0].Days[0].Meals[0].TotalMacros.Calories != 130 {
		t.Errorf("Expected recomputed meal total 130, got %v", got.Weeks[0].Days[0].Meals[0].TotalMacros.Calories)
	}
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.Get(context.Background(), "no-such-plan")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing plan, got %+v", got)
	}
}

func TestRepositoryListByUser(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	p1 := sampleNormalizedPlan(t)
	p2 := sampleNormalizedPlan(t)
	other := sampleNormalizedPlan(t)
	other.UserID = "u2"

	for _, p := range []*Plan{p1, p2, other} {
		if err := repo.Save(ctx, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	plans, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(plans) != 2 {
		t.Errorf("Expected 2 plans for u1, got %d", len(plans))
	}
}

func TestRepositoryUpdateStatusArchivesPreviousActive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	p1 := sampleNormalizedPlan(t)
	p2 := sampleNormalizedPlan(t)
	if err := repo.Save(ctx, p1); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Save(ctx, p2); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := repo.UpdateStatus(ctx, p1.ID, StatusActive); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if err := repo.UpdateStatus(ctx, p2.ID, StatusActive); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	got1, err := repo.Get(ctx, p1.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got2, err := repo.Get(ctx, p2.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got1.Status != StatusArchived {
		t.Errorf("Expected first plan archived after second activation, got %s", got1.Status)
	}
	if got2.Status != StatusActive {
		t.Errorf("Expected second plan active, got %s", got2.Status)
	}
}

func TestRepositoryUpdateStatusValidation(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if err := repo.UpdateStatus(ctx, "any", "NONSENSE"); err == nil {
		t.Error("Expected error for invalid status")
	}
	if err := repo.UpdateStatus(ctx, "missing", StatusCompleted); err == nil {
		t.Error("Expected error for missing plan")
	}
}

func TestRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	p := sampleNormalizedPlan(t)

	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	got, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Error("Expected plan gone after delete")
	}
}
