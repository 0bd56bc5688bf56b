package commands

import (
	"miniappctl/internal/config"
	"miniappctl/internal/console"
	"miniappctl/internal/observability"
	"miniappctl/internal/services"
	contextutils "miniappctl/internal/utils"

	"github.com/spf13/cobra"
)

// MigrateCommands returns the page source migration commands
func MigrateCommands(cfg *config.Config, migrator services.ChainWarningMigratorInterface, logger *observability.Logger, p *console.Printer) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Miniapp source migrations",
		Long: `Miniapp source migrations.

Available commands:
  chain-warning - Replace inline chain checks with the ChainWarning component`,
	}

	migrateCmd.AddCommand(chainWarningCmd(cfg, migrator, logger, p))

	return migrateCmd
}

func chainWarningCmd(cfg *config.Config, migrator services.ChainWarningMigratorInterface, logger *observability.Logger, p *console.Printer) *cobra.Command {
	return &cobra.Command{
		Use:   "chain-warning [app...]",
		Short: "Migrate pages to the shared ChainWarning component",
		Long: `Rewrite each app's index page to use the shared ChainWarning component.

Without arguments the configured app list is used. Pages that are already
migrated are left untouched. Exits non-zero when any page failed to migrate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			apps := appsOrDefault(args, cfg.Migrate.UniqueApps())

			logger.Info(ctx, "Starting chain warning migration", map[string]interface{}{"apps": len(apps), "target": cfg.Migrate.TargetPath})
			p.Heading("Starting batch migration of %d miniapps...", len(apps))

			summary, err := migrator.MigrateAll(ctx, cfg.AppsDir, apps, printItems(p))
			if err != nil {
				logger.Error(ctx, "Chain warning migration aborted", err)
				return err
			}
			p.MigrationReport(summary, len(apps))

			if summary.Failed > 0 {
				return contextutils.NewCodedErrorf(contextutils.ErrMigrationFailed, nil, "%d miniapps failed to migrate", summary.Failed)
			}
			return nil
		},
	}
}
