//go:build integration

package services

import (
	"context"
	"testing"
	"time"

	"miniappctl/internal/database"
	"miniappctl/internal/models"
	"miniappctl/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRegistryDB(t *testing.T) *SQLRegistryStore {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("miniapps_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if terr := pgContainer.Terminate(context.Background()); terr != nil {
			t.Logf("failed to terminate postgres container: %v", terr)
		}
	})

	url, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := observability.NewNopLogger()
	db, err := database.NewManager(logger).InitDB(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewSQLRegistryStore(db, logger)
}

func TestRegistrySync_Integration(t *testing.T) {
	store := setupRegistryDB(t)
	cfg := newTestConfig(t)
	svc := NewRegistryService(cfg, store, observability.NewNopLogger())
	ctx := context.Background()
	appsDir := t.TempDir()

	for app, category := range map[string]string{"coin-flip": "games", "neo-gacha": "games", "neo-swap": "finance"} {
		m := BuildManifest(&cfg.Manifest, app, map[string]interface{}{
			"supported_networks": []interface{}{"neo-n3-mainnet", "neo-n3-testnet"},
		}, category, "")
		data, err := m.Encode(models.SchemaV3)
		require.NoError(t, err)
		writeAppFile(t, appsDir, app, "neo-manifest.json", string(data))
	}

	summary, err := svc.Sync(ctx, appsDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Apps)
	assert.Equal(t, 6, summary.Inserted)
	assert.Empty(t, summary.Errors)

	again, err := svc.Sync(ctx, appsDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, again.Updated)
	assert.Equal(t, 0, again.Inserted)

	counts, err := svc.CategorySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryCount{
		{Category: "games", CategoryName: "Games", Count: 4},
		{Category: "finance", CategoryName: "Finance", Count: 2},
	}, counts)

	var tags, manifest string
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT tags::text, manifest_json->>'id' FROM miniapp_stats WHERE app_id = $1 AND chain_id = $2`,
		"miniapp-coin-flip", "neo-n3-testnet").Scan(&tags, &manifest))
	assert.JSONEq(t, `["games"]`, tags)
	assert.Equal(t, "coin-flip", manifest)
}
