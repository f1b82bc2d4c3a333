package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"nutrition-core/internal/catalog"
	"nutrition-core/internal/config"
	"nutrition-core/internal/database"
	"nutrition-core/internal/plan"
)

func main() {
	ctx := context.Background()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	var logger *slog.Logger
	if cfg.VerboseDataWarnings {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	planRepo := plan.NewRepository(db.SQL)
	catalogRepo := catalog.NewRepository(db.SQL)
	engine := catalog.NewEngine(catalogRepo, cfg.SupportedLocales, cfg.FoodMatchConcurrency, logger)
	normalizer := plan.NewNormalizer(logger)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		if err := runImport(ctx, os.Args[2:], normalizer, engine, planRepo); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
	case "validate":
		if err := runValidate(ctx, os.Args[2:], engine, planRepo); err != nil {
			log.Fatalf("Validation failed: %v", err)
		}
	case "list":
		if err := runList(ctx, os.Args[2:], planRepo); err != nil {
			log.Fatalf("List failed: %v", err)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

// runImport normalizes a raw plan payload, resolves its foods against the
// catalog, and persists the result.
func runImport(ctx context.Context, args []string, normalizer *plan.Normalizer, engine *catalog.Engine, repo *plan.Repository) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	userID := fs.String("user", "", "owning user id (required)")
	input := fs.String("input", "-", "payload JSON file, or - for stdin")
	dryRun := fs.Bool("dry-run", false, "normalize and resolve without persisting")
	fs.Parse(args)

	if *userID == "" {
		return fmt.Errorf("-user is required")
	}

	payload, err := readPayload(*input)
	if err != nil {
		return err
	}

	base := &plan.Plan{UserID: *userID}
	p, err := normalizer.NormalizePlan(payload, base)
	if err != nil {
		return fmt.Errorf("failed to normalize plan payload: %w", err)
	}

	result := engine.ProcessNutritionPlan(ctx, p)
	fmt.Printf("Food resolution: %d existing, %d matched, %d created, %d errors, %d unresolved\n",
		result.Stats.Existing, result.Stats.Matched, result.Stats.Created, result.Stats.Errors, result.Stats.Unresolved)
	for name, msg := range result.Errors {
		fmt.Printf("  %s: %s\n", name, msg)
	}

	if *dryRun {
		fmt.Printf("Dry run, plan %s not saved.\n", p.ID)
		return nil
	}
	if err := repo.Save(ctx, p); err != nil {
		return err
	}
	fmt.Printf("Saved plan %s (%d weeks, %d days).\n", p.ID, len(p.Weeks), p.TotalDays())
	return nil
}

// runValidate reports foods with missing or dangling catalog references for
// a stored plan.
func runValidate(ctx context.Context, args []string, engine *catalog.Engine, repo *plan.Repository) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	planID := fs.String("plan", "", "plan id (required)")
	fs.Parse(args)

	if *planID == "" {
		return fmt.Errorf("-plan is required")
	}

	p, err := repo.Get(ctx, *planID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("plan %s not found", *planID)
	}

	missing, err := engine.ValidatePlanFoods(ctx, p)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		fmt.Println("All foods resolve against the catalog.")
		return nil
	}
	fmt.Printf("%d foods need attention:\n", len(missing))
	for _, m := range missing {
		fmt.Printf("  day %d, %s: %s (id %s)\n", m.DayNumber, m.MealName, m.Name, m.ID)
	}
	return nil
}

func runList(ctx context.Context, args []string, repo *plan.Repository) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	userID := fs.String("user", "", "owning user id (required)")
	fs.Parse(args)

	if *userID == "" {
		return fmt.Errorf("-user is required")
	}

	plans, err := repo.ListByUser(ctx, *userID)
	if err != nil {
		return err
	}
	for _, p := range plans {
		fmt.Printf("%s  %-9s v%d  %d weeks  %s\n", p.ID, p.Status, p.Version, len(p.Weeks), p.Name)
	}
	return nil
}

func readPayload(path string) (json.RawMessage, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return json.RawMessage(data), nil
}

func printUsage() {
	fmt.Println("Usage: nutrition-import <command> [flags]")
	fmt.Println("Commands:")
	fmt.Println("  import   -user <id> [-input file] [-dry-run]   normalize and save a plan payload")
	fmt.Println("  validate -plan <id>                            check catalog references of a stored plan")
	fmt.Println("  list     -user <id>                            list a user's plans")
}
