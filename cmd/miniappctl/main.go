// Package main provides the miniappctl command line tool for maintaining
// miniapp manifests, page sources and the miniapp registry.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"miniappctl/cmd/miniappctl/commands"
	"miniappctl/internal/config"
	"miniappctl/internal/console"
	"miniappctl/internal/di"
	"miniappctl/internal/observability"
	"miniappctl/internal/services"
	contextutils "miniappctl/internal/utils"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx := contextutils.WithRunID(context.Background(), uuid.NewString())

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	// The level is needed before cobra parses flags, so --verbose is read up front
	level := cfg.LogLevel
	if verboseRequested(args) {
		level = config.VerboseLogLevel
	}

	tp, mp, logger, err := observability.SetupObservabilityWithLevel(&cfg.OpenTelemetry, config.ServiceName, observability.ParseLevel(level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		return 1
	}
	defer func() {
		if err := observability.Shutdown(context.Background(), tp, mp, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shut down observability: %v\n", err)
		}
	}()

	container := di.NewServiceContainer(cfg, logger)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err)
		return 1
	}
	manifestService, err := container.GetManifestService()
	if err != nil {
		logger.Error(ctx, "Failed to get manifest service", err)
		return 1
	}
	migrationService, err := container.GetMigrationService()
	if err != nil {
		logger.Error(ctx, "Failed to get migration service", err)
		return 1
	}

	// Only the registry commands need a database connection
	openRegistry := func(ctx context.Context) (services.RegistryServiceInterface, func() error, error) {
		svc, err := container.GetRegistryService(ctx)
		if err != nil {
			return nil, nil, err
		}
		return svc, func() error { return container.Shutdown(ctx) }, nil
	}

	printer := console.New(os.Stdout)

	rootCmd := &cobra.Command{
		Use:   "miniappctl",
		Short: "Miniapp maintenance tool",
		Long: `Miniapp maintenance tool

Normalizes and validates neo-manifest.json files, migrates miniapp pages to
the shared ChainWarning component and syncs manifests into the miniapp registry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}
	rootCmd.SetArgs(args)
	rootCmd.PersistentFlags().StringVar(&cfg.AppsDir, "apps-dir", cfg.AppsDir, "Directory holding one subdirectory per miniapp")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")

	rootCmd.AddCommand(commands.ManifestCommands(cfg, manifestService, logger, printer))
	rootCmd.AddCommand(commands.MigrateCommands(cfg, migrationService, logger, printer))
	rootCmd.AddCommand(commands.RegistryCommands(cfg, openRegistry, logger, printer))
	rootCmd.AddCommand(commands.VersionCommand(os.Stdout))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// verboseRequested reports whether -v or --verbose appears before any "--"
func verboseRequested(args []string) bool {
	for _, arg := range args {
		switch {
		case arg == "--":
			return false
		case arg == "-v", arg == "--verbose", strings.HasPrefix(arg, "--verbose=") && arg != "--verbose=false":
			return true
		}
	}
	return false
}
