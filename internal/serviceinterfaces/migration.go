package serviceinterfaces

import (
	"context"

	"miniappctl/internal/models"
)

// ChainWarningMigrator defines the template migration to the shared ChainWarning component
type ChainWarningMigrator interface {
	// MigrateAll rewrites the page source of each listed app in order
	MigrateAll(ctx context.Context, appsDir string, apps []string, report models.Reporter) (models.Summary, error)
}
