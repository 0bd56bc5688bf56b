package serviceinterfaces

import (
	"context"

	"miniappctl/internal/models"
)

// RegistryService defines manifest registration in the miniapp registry
type RegistryService interface {
	// Sync upserts one registry row per app and supported network
	Sync(ctx context.Context, appsDir string, report models.Reporter) (models.RegistrySyncSummary, error)

	// CategorySummary returns registered row counts per category, largest first
	CategorySummary(ctx context.Context) ([]models.CategoryCount, error)
}

// RegistryStore persists registry rows
type RegistryStore interface {
	// Upsert inserts or updates rec and reports whether a new row was inserted
	Upsert(ctx context.Context, rec *models.MiniappStat) (bool, error)

	// CategoryCounts groups registered rows by category
	CategoryCounts(ctx context.Context) ([]models.CategoryCount, error)
}
