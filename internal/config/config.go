package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string

	// Locales new catalog records are created with.
	SupportedLocales []string

	// Concurrency limit for batch food resolution.
	FoodMatchConcurrency int

	// When true, data-quality warnings from normalization are logged.
	VerboseDataWarnings bool
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	dbPath := os.Getenv("NUTRITION_DB_PATH")
	if dbPath == "" {
		return nil, fmt.Errorf("NUTRITION_DB_PATH environment variable not set")
	}

	locales := []string{"en"}
	if raw := os.Getenv("NUTRITION_LOCALES"); raw != "" {
		locales = locales[:0]
		for _, l := range strings.Split(raw, ",") {
			if l = strings.TrimSpace(l); l != "" {
				locales = append(locales, l)
			}
		}
		if len(locales) == 0 {
			return nil, fmt.Errorf("NUTRITION_LOCALES is set but contains no locales")
		}
	}

	concurrency := 8
	if raw := os.Getenv("NUTRITION_MATCH_CONCURRENCY"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("NUTRITION_MATCH_CONCURRENCY must be a positive integer, got %q", raw)
		}
		concurrency = n
	}

	verbose := os.Getenv("NUTRITION_VERBOSE_WARNINGS") == "true"

	return &Config{
		DatabasePath:         dbPath,
		SupportedLocales:     locales,
		FoodMatchConcurrency: concurrency,
		VerboseDataWarnings:  verbose,
	}, nil
}
