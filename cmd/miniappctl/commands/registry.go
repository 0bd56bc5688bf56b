package commands

import (
	"context"

	"miniappctl/internal/config"
	"miniappctl/internal/console"
	"miniappctl/internal/observability"
	"miniappctl/internal/services"
	contextutils "miniappctl/internal/utils"

	"github.com/spf13/cobra"
)

// RegistryOpener connects to the registry database. The returned func closes the connection.
type RegistryOpener func(ctx context.Context) (services.RegistryServiceInterface, func() error, error)

// RegistryCommands returns the miniapp registry commands
func RegistryCommands(cfg *config.Config, open RegistryOpener, logger *observability.Logger, p *console.Printer) *cobra.Command {
	registryCmd := &cobra.Command{
		Use:   "registry",
		Short: "Miniapp registry commands",
		Long: `Miniapp registry commands.

Available commands:
  sync    - Upsert every manifest into the registry, one row per network
  summary - Show registered apps per category`,
	}

	registryCmd.AddCommand(syncCmd(cfg, open, logger, p))
	registryCmd.AddCommand(summaryCmd(open, logger, p))

	return registryCmd
}

func syncCmd(cfg *config.Config, open RegistryOpener, logger *observability.Logger, p *console.Printer) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync manifests into the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, closeFn, err := open(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to connect to registry database", err)
				return err
			}
			defer closeRegistry(ctx, closeFn, logger)

			p.Heading("Syncing miniapps from %s to the registry...", cfg.AppsDir)
			summary, err := svc.Sync(ctx, cfg.AppsDir, printItems(p))
			if err != nil {
				logger.Error(ctx, "Registry sync failed", err, map[string]interface{}{"apps_dir": cfg.AppsDir})
				return err
			}
			p.RegistryReport(summary)

			if summary.Failed > 0 {
				return contextutils.NewCodedErrorf(contextutils.ErrDatabaseQuery, nil, "%d registry rows failed to sync", summary.Failed)
			}
			return nil
		},
	}
}

func summaryCmd(open RegistryOpener, logger *observability.Logger, p *console.Printer) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show registered apps per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, closeFn, err := open(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to connect to registry database", err)
				return err
			}
			defer closeRegistry(ctx, closeFn, logger)

			counts, err := svc.CategorySummary(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to summarize registry", err)
				return err
			}
			p.CategoryTable(counts)
			return nil
		},
	}
}

func closeRegistry(ctx context.Context, closeFn func() error, logger *observability.Logger) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		logger.Warn(ctx, "Failed to close registry database", map[string]interface{}{"error": err.Error()})
	}
}
