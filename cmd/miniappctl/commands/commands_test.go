package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"miniappctl/internal/config"
	"miniappctl/internal/console"
	"miniappctl/internal/models"
	"miniappctl/internal/observability"
	"miniappctl/internal/services"
	contextutils "miniappctl/internal/utils"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeManifestService struct {
	normalizeOpts models.NormalizeOptions
	createApps    []string
	createOpts    models.CreateOptions
	results       []models.ItemResult
	summary       models.Summary
	err           error
}

func (f *fakeManifestService) NormalizeAll(_ context.Context, _ string, opts models.NormalizeOptions, report models.Reporter) (models.Summary, error) {
	f.normalizeOpts = opts
	return f.run(report)
}

func (f *fakeManifestService) CreateAll(_ context.Context, _ string, apps []string, opts models.CreateOptions, report models.Reporter) (models.Summary, error) {
	f.createApps = apps
	f.createOpts = opts
	return f.run(report)
}

func (f *fakeManifestService) ValidateAll(_ context.Context, _ string, report models.Reporter) (models.Summary, error) {
	return f.run(report)
}

func (f *fakeManifestService) run(report models.Reporter) (models.Summary, error) {
	for _, res := range f.results {
		report(res)
	}
	return f.summary, f.err
}

type fakeMigrator struct {
	apps    []string
	summary models.Summary
}

func (f *fakeMigrator) MigrateAll(_ context.Context, _ string, apps []string, _ models.Reporter) (models.Summary, error) {
	f.apps = apps
	return f.summary, nil
}

type fakeRegistryService struct {
	summary models.RegistrySyncSummary
	counts  []models.CategoryCount
}

func (f *fakeRegistryService) Sync(context.Context, string, models.Reporter) (models.RegistrySyncSummary, error) {
	return f.summary, nil
}

func (f *fakeRegistryService) CategorySummary(context.Context) ([]models.CategoryCount, error) {
	return f.counts, nil
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadDefaults()
	require.NoError(t, err)
	cfg.AppsDir = t.TempDir()
	return cfg
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(context.Background())
}

func TestManifestNormalize_Flags(t *testing.T) {
	cfg := newTestConfig(t)
	svc := &fakeManifestService{
		results: []models.ItemResult{{App: "lottery", Outcome: models.OutcomeUpdated, Detail: "updated"}},
		summary: models.Summary{Updated: 1},
	}
	var out bytes.Buffer
	cmd := ManifestCommands(cfg, svc, observability.NewNopLogger(), console.NewWithGlyphs(&out, false))

	err := execute(t, cmd, "normalize", "--schema", "v2", "--create-missing", "--validate", "--updated-at", "2026-10-19T00:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, models.NormalizeOptions{
		Schema: models.SchemaV2, CreateMissing: true, Validate: true, UpdatedAt: "2026-10-19T00:00:00Z",
	}, svc.normalizeOpts)
	assert.Contains(t, out.String(), "Updating all neo-manifest.json files...")
	assert.Contains(t, out.String(), "  [ok] lottery: updated\n")
	assert.Contains(t, out.String(), "Summary: 1 updated")
}

func TestManifestNormalize_DefaultsAndBadSchema(t *testing.T) {
	cfg := newTestConfig(t)
	svc := &fakeManifestService{}
	cmd := ManifestCommands(cfg, svc, observability.NewNopLogger(), console.NewWithGlyphs(&bytes.Buffer{}, false))

	require.NoError(t, execute(t, cmd, "normalize"))
	assert.Equal(t, models.SchemaV3, svc.normalizeOpts.Schema)
	assert.False(t, svc.normalizeOpts.CreateMissing)

	cmd = ManifestCommands(cfg, svc, observability.NewNopLogger(), console.NewWithGlyphs(&bytes.Buffer{}, false))
	err := execute(t, cmd, "normalize", "--schema", "v9")
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
}

func TestManifestNormalize_InvalidResultsDoNotFail(t *testing.T) {
	cfg := newTestConfig(t)
	svc := &fakeManifestService{summary: models.Summary{Invalid: 2, Failed: 1}}
	cmd := ManifestCommands(cfg, svc, observability.NewNopLogger(), console.NewWithGlyphs(&bytes.Buffer{}, false))

	assert.NoError(t, execute(t, cmd, "normalize", "--validate"))
}

func TestManifestNormalize_RejectsMalformedUpdatedAt(t *testing.T) {
	cfg := newTestConfig(t)
	svc := &fakeManifestService{}
	cmd := ManifestCommands(cfg, svc, observability.NewNopLogger(), console.NewWithGlyphs(&bytes.Buffer{}, false))

	err := execute(t, cmd, "normalize", "--updated-at", "yesterday")
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
	assert.Contains(t, err.Error(), "--updated-at")
	assert.Empty(t, svc.normalizeOpts.UpdatedAt, "normalize must not run")

	cmd = ManifestCommands(cfg, svc, observability.NewNopLogger(), console.NewWithGlyphs(&bytes.Buffer{}, false))
	require.NoError(t, execute(t, cmd, "normalize", "--updated-at", "2026-10-19T08:30:00+02:00"))
	assert.Equal(t, "2026-10-19T08:30:00+02:00", svc.normalizeOpts.UpdatedAt)
}

func TestParseTimestamp(t *testing.T) {
	assert.NoError(t, parseTimestamp("updated-at", ""))
	assert.NoError(t, parseTimestamp("updated-at", "2026-10-19T00:00:00Z"))
	assert.Error(t, parseTimestamp("updated-at", "2026-10-19"))
}

func TestManifestCreate_DefaultApps(t *testing.T) {
	cfg := newTestConfig(t)
	svc := &fakeManifestService{}
	cmd := ManifestCommands(cfg, svc, observability.NewNopLogger(), console.NewWithGlyphs(&bytes.Buffer{}, false))

	require.NoError(t, execute(t, cmd, "create"))
	assert.Equal(t, cfg.Manifest.CreateApps, svc.createApps)
	assert.False(t, svc.createOpts.Force)

	cmd = ManifestCommands(cfg, svc, observability.NewNopLogger(), console.NewWithGlyphs(&bytes.Buffer{}, false))
	require.NoError(t, execute(t, cmd, "create", "--force", "lottery"))
	assert.Equal(t, []string{"lottery"}, svc.createApps)
	assert.True(t, svc.createOpts.Force)
}

func TestManifestValidate_ExitStatus(t *testing.T) {
	cfg := newTestConfig(t)
	logger := observability.NewNopLogger()

	ok := &fakeManifestService{summary: models.Summary{Valid: 3, Skipped: 1}}
	assert.NoError(t, execute(t, ManifestCommands(cfg, ok, logger, console.NewWithGlyphs(&bytes.Buffer{}, false)), "validate"))

	bad := &fakeManifestService{summary: models.Summary{Valid: 2, Invalid: 1}}
	err := execute(t, ManifestCommands(cfg, bad, logger, console.NewWithGlyphs(&bytes.Buffer{}, false)), "validate")
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrValidationFailed))

	broken := &fakeManifestService{err: errors.New("apps dir missing")}
	assert.Error(t, execute(t, ManifestCommands(cfg, broken, logger, console.NewWithGlyphs(&bytes.Buffer{}, false)), "validate"))
}

func TestMigrateChainWarning(t *testing.T) {
	cfg := newTestConfig(t)
	migrator := &fakeMigrator{summary: models.Summary{Updated: 2, Unchanged: 1}}
	var out bytes.Buffer
	cmd := MigrateCommands(cfg, migrator, observability.NewNopLogger(), console.NewWithGlyphs(&out, false))

	require.NoError(t, execute(t, cmd, "chain-warning"))
	assert.Equal(t, cfg.Migrate.UniqueApps(), migrator.apps)
	assert.Contains(t, out.String(), "Migration Complete!")
	assert.Contains(t, out.String(), "Next steps:")
}

func TestMigrateChainWarning_FailuresExitNonZero(t *testing.T) {
	cfg := newTestConfig(t)
	migrator := &fakeMigrator{summary: models.Summary{Updated: 1, Failed: 1}}
	cmd := MigrateCommands(cfg, migrator, observability.NewNopLogger(), console.NewWithGlyphs(&bytes.Buffer{}, false))

	err := execute(t, cmd, "chain-warning", "lottery", "coin-flip")
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrMigrationFailed))
	assert.Equal(t, []string{"lottery", "coin-flip"}, migrator.apps)
}

func TestRegistryCommands(t *testing.T) {
	cfg := newTestConfig(t)
	fake := &fakeRegistryService{
		summary: models.RegistrySyncSummary{Apps: 1, Inserted: 2},
		counts:  []models.CategoryCount{{Category: "games", CategoryName: "Games", Count: 2}},
	}
	closed := 0
	open := func(context.Context) (services.RegistryServiceInterface, func() error, error) {
		return fake, func() error { closed++; return nil }, nil
	}
	var out bytes.Buffer
	logger := observability.NewNopLogger()

	require.NoError(t, execute(t, RegistryCommands(cfg, open, logger, console.NewWithGlyphs(&out, false)), "sync"))
	assert.Contains(t, out.String(), "Registered 1 apps: 2 inserted, 0 updated, 0 failed")

	require.NoError(t, execute(t, RegistryCommands(cfg, open, logger, console.NewWithGlyphs(&out, false)), "summary"))
	assert.Contains(t, out.String(), "games")
	assert.Equal(t, 2, closed)

	fake.summary = models.RegistrySyncSummary{Apps: 1, Inserted: 1, Failed: 1}
	err := execute(t, RegistryCommands(cfg, open, logger, console.NewWithGlyphs(&out, false)), "sync")
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrDatabaseQuery))
}

func TestRegistryCommands_ConnectionError(t *testing.T) {
	cfg := newTestConfig(t)
	open := func(context.Context) (services.RegistryServiceInterface, func() error, error) {
		return nil, nil, contextutils.NewCodedErrorf(contextutils.ErrInvalidConfig, nil, "database URL is not configured")
	}

	err := execute(t, RegistryCommands(cfg, open, observability.NewNopLogger(), console.NewWithGlyphs(&bytes.Buffer{}, false)), "summary")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is not configured")
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, execute(t, VersionCommand(&out)))
	assert.Equal(t, "miniappctl dev (commit dev, built unknown)\n", out.String())
}

func TestAppsOrDefault(t *testing.T) {
	defaults := []string{"a", "b"}
	apps := appsOrDefault(nil, defaults)
	assert.Equal(t, defaults, apps)
	apps[0] = "changed"
	assert.Equal(t, "a", defaults[0])

	assert.Equal(t, []string{"c"}, appsOrDefault([]string{"c"}, defaults))
}
