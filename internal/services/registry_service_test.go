package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"miniappctl/internal/models"
	"miniappctl/internal/observability"
	contextutils "miniappctl/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistryStore struct {
	mu       sync.Mutex
	rows     map[string]*models.MiniappStat
	failOn   map[string]error
	counts   []models.CategoryCount
	countErr error
}

func newFakeRegistryStore() *fakeRegistryStore {
	return &fakeRegistryStore{rows: map[string]*models.MiniappStat{}, failOn: map[string]error{}}
}

func (f *fakeRegistryStore) Upsert(_ context.Context, rec *models.MiniappStat) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn[rec.ChainID]; err != nil {
		return false, err
	}
	key := rec.AppID + "@" + rec.ChainID
	_, exists := f.rows[key]
	f.rows[key] = rec
	return !exists, nil
}

func (f *fakeRegistryStore) CategoryCounts(context.Context) ([]models.CategoryCount, error) {
	return f.counts, f.countErr
}

func newTestRegistryService(t *testing.T, store RegistryStoreInterface) *RegistryService {
	t.Helper()
	return NewRegistryService(newTestConfig(t), store, observability.NewNopLogger())
}

func TestNewRegistryService_NilDependencies(t *testing.T) {
	cfg := newTestConfig(t)
	logger := observability.NewNopLogger()
	store := newFakeRegistryStore()

	assert.Panics(t, func() { NewRegistryService(nil, store, logger) })
	assert.Panics(t, func() { NewRegistryService(cfg, nil, logger) })
	assert.Panics(t, func() { NewRegistryService(cfg, store, nil) })
}

func TestRegistryService_ManifestToRecords(t *testing.T) {
	cfg := newTestConfig(t)
	svc := newTestRegistryService(t, newFakeRegistryStore())

	m := BuildManifest(&cfg.Manifest, "coin-flip", map[string]interface{}{
		"contracts": map[string]interface{}{
			"neo-n3-mainnet": "0x1111111111111111111111111111111111111111",
			"neo-n3-testnet": map[string]interface{}{"address": "0x2222222222222222222222222222222222222222"},
		},
		"tags": []interface{}{"dice", "luck"},
	}, "games", "")

	recs := svc.ManifestToRecords(m, []byte(`{"id":"coin-flip"}`), true, false)
	require.Len(t, recs, 2)

	main := recs[0]
	assert.Equal(t, "miniapp-coin-flip", main.AppID)
	assert.Equal(t, "coin-flip", main.AppShortID)
	assert.Equal(t, "neo-n3-mainnet", main.ChainID)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", main.ContractAddress.String)
	assert.Equal(t, "https://cdn.r3e.network/miniapps/coin-flip/index.html", main.EntryURL)
	assert.Equal(t, "https://cdn.r3e.network/miniapps/coin-flip/logo.png", main.LogoURL.String)
	assert.False(t, main.BannerURL.Valid)
	assert.Equal(t, "抛硬币", main.NameZh)
	assert.Equal(t, "Games", main.CategoryName)
	assert.JSONEq(t, `["dice","luck"]`, string(main.Tags))
	assert.JSONEq(t, `["neo-n3-mainnet","neo-n3-testnet"]`, string(main.SupportedNetworks))
	assert.JSONEq(t, `["https://neo.coz.io/mainnet"]`, string(main.StateSourceEndpoints))
	assert.Equal(t, "Coin Flip 抛硬币 Coin Flip miniapp on Neo N3 Coin Flip miniapp on Neo N3 R3E Network dice luck", main.SearchableText)
	assert.True(t, main.IsActive)
	assert.True(t, main.FeatureStateless)
	assert.True(t, main.PlatformAnalytics)

	test := recs[1]
	assert.Equal(t, "neo-n3-testnet", test.ChainID)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", test.ContractAddress.String)
	assert.Equal(t, "neo-n3-mainnet", test.DefaultNetwork)
}

func TestRegistryService_ManifestToRecords_FlatManifest(t *testing.T) {
	svc := newTestRegistryService(t, newFakeRegistryStore())

	var m models.Manifest
	require.NoError(t, json.Unmarshal([]byte(`{
  "id": "miniapp-lottery",
  "name": "Lottery",
  "description": "Draws",
  "contracts": {"primary": "0x3333333333333333333333333333333333333333"}
}`), &m))

	recs := svc.ManifestToRecords(m, nil, false, false)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "miniapp-lottery", rec.AppID)
	assert.Equal(t, "lottery", rec.AppShortID)
	assert.Equal(t, "neo-n3-mainnet", rec.ChainID)
	assert.Equal(t, "neo-n3-mainnet", rec.DefaultNetwork)
	assert.Equal(t, "0x3333333333333333333333333333333333333333", rec.ContractAddress.String)
	assert.Equal(t, "Lottery", rec.NameZh)
	assert.Equal(t, "Draws", rec.DescriptionZh)
	assert.Equal(t, "other", rec.Category)
	assert.Equal(t, "1.0.0", rec.Version)
	assert.JSONEq(t, `[]`, string(rec.Tags))
	assert.False(t, rec.LogoURL.Valid)
}

func TestRegistryService_Sync(t *testing.T) {
	cfg := newTestConfig(t)
	store := newFakeRegistryStore()
	svc := newTestRegistryService(t, store)
	ctx := context.Background()
	appsDir := t.TempDir()

	coin := BuildManifest(&cfg.Manifest, "coin-flip", nil, "games", "")
	data, err := coin.Encode(models.SchemaV3)
	require.NoError(t, err)
	writeAppFile(t, appsDir, "coin-flip", "neo-manifest.json", string(data))
	writeAppFile(t, appsDir, "coin-flip", "static/banner.png", "png")
	writeAppFile(t, appsDir, "lottery", "neo-manifest.json", `{"id": "lottery", "name": "Lottery", "platform": {"comments": false}}`)
	writeAppFile(t, appsDir, "broken", "neo-manifest.json", `{"id": `)
	writeAppFile(t, appsDir, "no-manifest", "README.md", "todo")

	var items []models.ItemResult
	summary, err := svc.Sync(ctx, appsDir, collect(&items))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Apps)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.Skipped)
	require.Len(t, items, 4)
	assert.Equal(t, "broken", items[0].App)
	assert.Equal(t, models.OutcomeSkipped, items[0].Outcome)
	assert.True(t, contextutils.IsError(items[0].Err, contextutils.ErrInvalidJSON))
	assert.Equal(t, "coin-flip@neo-n3-mainnet", items[1].App)
	assert.Equal(t, models.OutcomeCreated, items[1].Outcome)
	assert.Equal(t, models.ItemResult{
		App: "no-manifest", Outcome: models.OutcomeSkipped, Detail: "no neo-manifest.json", Err: items[3].Err,
	}, items[3])
	assert.True(t, contextutils.IsError(items[3].Err, contextutils.ErrFileNotFound))

	coinRow := store.rows["miniapp-coin-flip@neo-n3-mainnet"]
	require.NotNil(t, coinRow)
	assert.Equal(t, "https://cdn.r3e.network/miniapps/coin-flip/banner.png", coinRow.BannerURL.String)
	assert.False(t, coinRow.LogoURL.Valid)
	assert.True(t, json.Valid(coinRow.ManifestJSON))
	assert.NotContains(t, string(coinRow.ManifestJSON), "\n")

	lotteryRow := store.rows["miniapp-lottery@neo-n3-mainnet"]
	require.NotNil(t, lotteryRow)
	assert.False(t, lotteryRow.PlatformComments)
	assert.True(t, lotteryRow.PlatformAnalytics, "platform flags default to on")
	assert.True(t, lotteryRow.PlatformRatings)

	again, err := svc.Sync(ctx, appsDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Inserted)
	assert.Equal(t, 2, again.Updated)
}

func TestRegistryService_SyncReportsUpsertFailures(t *testing.T) {
	cfg := newTestConfig(t)
	store := newFakeRegistryStore()
	store.failOn["neo-n3-testnet"] = errors.New("deadlock detected")
	svc := newTestRegistryService(t, store)
	appsDir := t.TempDir()

	m := BuildManifest(&cfg.Manifest, "neo-swap", map[string]interface{}{
		"supported_networks": []interface{}{"neo-n3-mainnet", "neo-n3-testnet"},
	}, "finance", "")
	data, err := m.Encode(models.SchemaV3)
	require.NoError(t, err)
	writeAppFile(t, appsDir, "neo-swap", "neo-manifest.json", string(data))

	summary, err := svc.Sync(context.Background(), appsDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Apps)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "neo-swap@neo-n3-testnet", summary.Errors[0].App)
	assert.Equal(t, models.OutcomeFailed, summary.Errors[0].Outcome)
	assert.ErrorContains(t, summary.Errors[0].Err, "deadlock detected")
}

func TestRegistryService_SyncMissingAppsDir(t *testing.T) {
	svc := newTestRegistryService(t, newFakeRegistryStore())

	_, err := svc.Sync(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
}

func TestRegistryService_CategorySummary(t *testing.T) {
	store := newFakeRegistryStore()
	store.counts = []models.CategoryCount{{Category: "games", CategoryName: "Games", Count: 4}}
	svc := newTestRegistryService(t, store)

	counts, err := svc.CategorySummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.counts, counts)

	store.countErr = errors.New("down")
	_, err = svc.CategorySummary(context.Background())
	assert.Error(t, err)
}
