// Package serviceinterfaces defines service interfaces for dependency injection and testing.
package serviceinterfaces

import (
	"context"

	"miniappctl/internal/models"
)

// ManifestService defines the neo-manifest.json maintenance operations
type ManifestService interface {
	// NormalizeAll normalizes the manifest of every app directory under appsDir
	NormalizeAll(ctx context.Context, appsDir string, opts models.NormalizeOptions, report models.Reporter) (models.Summary, error)

	// CreateAll writes a defaults-only manifest for each listed app that lacks one
	CreateAll(ctx context.Context, appsDir string, apps []string, opts models.CreateOptions, report models.Reporter) (models.Summary, error)

	// ValidateAll checks every manifest under appsDir and reports the problems found
	ValidateAll(ctx context.Context, appsDir string, report models.Reporter) (models.Summary, error)
}
