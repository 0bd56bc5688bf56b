package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"miniappctl/internal/models"
	"miniappctl/internal/observability"
	contextutils "miniappctl/internal/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistryStore(t *testing.T) (*SQLRegistryStore, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	cleanup := func() {
		mock.ExpectClose()
		require.NoError(t, db.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	}

	return NewSQLRegistryStore(db, observability.NewNopLogger()), mock, cleanup
}

func sampleStat() *models.MiniappStat {
	return &models.MiniappStat{
		AppID:             "miniapp-coin-flip",
		ChainID:           "neo-n3-mainnet",
		AppShortID:        "coin-flip",
		Name:              "Coin Flip",
		NameZh:            "抛硬币",
		Version:           "1.0.0",
		Category:          "games",
		CategoryName:      "Games",
		Tags:              json.RawMessage(`["games"]`),
		EntryURL:          "https://cdn.r3e.network/miniapps/coin-flip/index.html",
		ContractAddress:   sql.NullString{String: "0x1111111111111111111111111111111111111111", Valid: true},
		SupportedNetworks: json.RawMessage(`["neo-n3-mainnet"]`),
		DefaultNetwork:    "neo-n3-mainnet",
		Permissions:       json.RawMessage(`[]`),
		IsActive:          true,
		ManifestJSON:      json.RawMessage(`{"id":"coin-flip"}`),
	}
}

// upsertArgs matches the upsert placeholders, pinning the key and the JSONB text values
func upsertArgs(rec *models.MiniappStat) []driver.Value {
	args := make([]driver.Value, 34)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	args[0] = rec.AppID
	args[1] = rec.ChainID
	args[11] = string(rec.Tags)
	args[18] = rec.ContractAddress.String
	args[19] = string(rec.SupportedNetworks)
	args[32] = string(rec.ManifestJSON)
	return args
}

func TestNewSQLRegistryStore_NilDependencies(t *testing.T) {
	assert.Panics(t, func() { NewSQLRegistryStore(nil, observability.NewNopLogger()) })

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	assert.Panics(t, func() { NewSQLRegistryStore(db, nil) })
}

func TestSQLRegistryStore_Upsert(t *testing.T) {
	store, mock, cleanup := newTestRegistryStore(t)
	defer cleanup()

	rec := sampleStat()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO miniapp_stats")).
		WithArgs(upsertArgs(rec)...).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (app_id, chain_id) DO UPDATE")).
		WithArgs(upsertArgs(rec)...).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))

	inserted, err := store.Upsert(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.Upsert(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestSQLRegistryStore_UpsertError(t *testing.T) {
	store, mock, cleanup := newTestRegistryStore(t)
	defer cleanup()

	rec := sampleStat()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO miniapp_stats")).
		WithArgs(upsertArgs(rec)...).
		WillReturnError(errors.New("connection reset"))

	_, err := store.Upsert(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrDatabaseQuery))
	assert.Contains(t, err.Error(), "failed to upsert miniapp-coin-flip on neo-n3-mainnet")
}

func TestSQLRegistryStore_CategoryCounts(t *testing.T) {
	store, mock, cleanup := newTestRegistryStore(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"category", "category_name", "count"}).
		AddRow("games", "Games", 3).
		AddRow("tools", nil, 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT category, MAX(category_name), COUNT(*)")).WillReturnRows(rows)

	counts, err := store.CategoryCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.CategoryCount{
		{Category: "games", CategoryName: "Games", Count: 3},
		{Category: "tools", CategoryName: "tools", Count: 1},
	}, counts)
}

func TestSQLRegistryStore_CategoryCountsErrors(t *testing.T) {
	t.Run("query", func(t *testing.T) {
		store, mock, cleanup := newTestRegistryStore(t)
		defer cleanup()

		mock.ExpectQuery("SELECT category").WillReturnError(errors.New("boom"))

		_, err := store.CategoryCounts(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query category counts")
	})

	t.Run("scan", func(t *testing.T) {
		store, mock, cleanup := newTestRegistryStore(t)
		defer cleanup()

		rows := sqlmock.NewRows([]string{"category", "category_name", "count"}).AddRow("games", "Games", "many")
		mock.ExpectQuery("SELECT category").WillReturnRows(rows)

		_, err := store.CategoryCounts(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to scan category count")
	})

	t.Run("rows", func(t *testing.T) {
		store, mock, cleanup := newTestRegistryStore(t)
		defer cleanup()

		rows := sqlmock.NewRows([]string{"category", "category_name", "count"}).
			AddRow("games", "Games", 3).
			RowError(0, errors.New("stream broken"))
		mock.ExpectQuery("SELECT category").WillReturnRows(rows)

		_, err := store.CategoryCounts(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read category counts")
	})
}
