package commands

import (
	"miniappctl/internal/config"
	"miniappctl/internal/console"
	"miniappctl/internal/models"
	"miniappctl/internal/observability"
	"miniappctl/internal/services"
	contextutils "miniappctl/internal/utils"

	"github.com/spf13/cobra"
)

// ManifestCommands returns the neo-manifest.json maintenance commands
func ManifestCommands(cfg *config.Config, svc services.ManifestServiceInterface, logger *observability.Logger, p *console.Printer) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Manifest maintenance commands",
		Long: `Manifest maintenance commands.

Available commands:
  normalize - Rewrite every neo-manifest.json into the selected schema
  create    - Write default manifests for apps that have none
  validate  - Check every manifest against the schema and field rules`,
	}

	manifestCmd.AddCommand(normalizeCmd(cfg, svc, logger, p))
	manifestCmd.AddCommand(createCmd(cfg, svc, logger, p))
	manifestCmd.AddCommand(validateCmd(cfg, svc, logger, p))

	return manifestCmd
}

func normalizeCmd(cfg *config.Config, svc services.ManifestServiceInterface, logger *observability.Logger, p *console.Printer) *cobra.Command {
	var schema string
	var opts models.NormalizeOptions

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize every neo-manifest.json",
		Long: `Normalize every neo-manifest.json under the apps directory.

Existing values are kept, missing fields are filled from defaults and the
result is written back only when it differs from the file on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var err error
			if opts.Schema, err = parseSchema(schema); err != nil {
				return err
			}
			if err := parseTimestamp("updated-at", opts.UpdatedAt); err != nil {
				return err
			}

			logger.Info(ctx, "Normalizing manifests", map[string]interface{}{
				"apps_dir": cfg.AppsDir, "schema": schema, "create_missing": opts.CreateMissing, "validate": opts.Validate,
			})
			p.Heading("Updating all %s files...", cfg.Manifest.FileName)

			summary, err := svc.NormalizeAll(ctx, cfg.AppsDir, opts, printItems(p))
			if err != nil {
				logger.Error(ctx, "Manifest normalization failed", err, map[string]interface{}{"apps_dir": cfg.AppsDir})
				return err
			}
			p.Summary(summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&schema, "schema", cfg.Manifest.SchemaVersion, "Manifest schema to write (v1, v2 or v3)")
	cmd.Flags().BoolVar(&opts.CreateMissing, "create-missing", false, "Create manifests for app directories that have none")
	cmd.Flags().BoolVar(&opts.Validate, "validate", false, "Validate each normalized manifest and skip writing invalid ones")
	cmd.Flags().StringVar(&opts.UpdatedAt, "updated-at", "", "Override the updatedAt timestamp (RFC 3339)")

	return cmd
}

func createCmd(cfg *config.Config, svc services.ManifestServiceInterface, logger *observability.Logger, p *console.Printer) *cobra.Command {
	var schema string
	var opts models.CreateOptions

	cmd := &cobra.Command{
		Use:   "create [app...]",
		Short: "Create default manifests for apps that have none",
		Long: `Create a defaults-only neo-manifest.json for each named app.

Without arguments the configured app list is used. The category is derived
from keywords in the app name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var err error
			if opts.Schema, err = parseSchema(schema); err != nil {
				return err
			}

			apps := appsOrDefault(args, cfg.Manifest.CreateApps)
			logger.Info(ctx, "Creating manifests", map[string]interface{}{"apps": len(apps), "force": opts.Force})
			p.Heading("Creating %s for missing apps...", cfg.Manifest.FileName)

			summary, err := svc.CreateAll(ctx, cfg.AppsDir, apps, opts, printItems(p))
			if err != nil {
				logger.Error(ctx, "Manifest creation failed", err)
				return err
			}
			p.Summary(summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&schema, "schema", cfg.Manifest.SchemaVersion, "Manifest schema to write (v1, v2 or v3)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite existing manifests")

	return cmd
}

func validateCmd(cfg *config.Config, svc services.ManifestServiceInterface, logger *observability.Logger, p *console.Printer) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate every neo-manifest.json",
		Long:  `Validate every neo-manifest.json against the manifest schema and field rules. Exits non-zero when any manifest is invalid.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p.Heading("Validating %s files in %s...", cfg.Manifest.FileName, cfg.AppsDir)

			summary, err := svc.ValidateAll(ctx, cfg.AppsDir, printItems(p))
			if err != nil {
				logger.Error(ctx, "Manifest validation failed", err, map[string]interface{}{"apps_dir": cfg.AppsDir})
				return err
			}
			p.Summary(summary)

			if bad := summary.Invalid + summary.Failed; bad > 0 {
				return contextutils.NewCodedErrorf(contextutils.ErrValidationFailed, nil, "%d manifests did not validate", bad)
			}
			return nil
		},
	}
}
