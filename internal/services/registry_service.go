package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"strings"

	"miniappctl/internal/config"
	"miniappctl/internal/models"
	"miniappctl/internal/observability"
	"miniappctl/internal/serviceinterfaces"
	contextutils "miniappctl/internal/utils"
)

// RegistryServiceInterface defines the interface for registry sync
type RegistryServiceInterface = serviceinterfaces.RegistryService

// RegistryService registers normalized manifests in the miniapp registry
type RegistryService struct {
	cfg     *config.Config
	store   RegistryStoreInterface
	counter *observability.ItemCounter
	logger  *observability.Logger
}

// NewRegistryService creates a new RegistryService instance
func NewRegistryService(cfg *config.Config, store RegistryStoreInterface, logger *observability.Logger) *RegistryService {
	if cfg == nil {
		panic("NewRegistryService: cfg is nil")
	}
	if store == nil {
		panic("NewRegistryService: store is nil")
	}
	if logger == nil {
		panic("NewRegistryService: logger is nil")
	}
	counter, err := observability.NewItemCounter(nil)
	if err != nil {
		logger.Warn(context.Background(), "Item counter unavailable", map[string]interface{}{"error": err.Error()})
	}
	return &RegistryService{cfg: cfg, store: store, counter: counter, logger: logger}
}

// Sync upserts one row per app and supported network. Items are reported per
// network as "<app>@<network>"; unreadable manifests are reported and skipped.
func (s *RegistryService) Sync(ctx context.Context, appsDir string, report models.Reporter) (summary models.RegistrySyncSummary, err error) {
	ctx, span := observability.TraceRegistryFunction(ctx, "Sync", observability.AttributePath(appsDir))
	defer observability.FinishSpan(span, &err)

	apps, err := DiscoverApps(appsDir, s.cfg.Manifest.ExcludeDirs)
	if err != nil {
		return summary, err
	}

	for _, app := range apps {
		appCtx := contextutils.WithAppID(ctx, app)
		m, raw, err := s.loadManifest(appsDir, app)
		if err != nil {
			res := models.ItemResult{App: app, Outcome: models.OutcomeSkipped, Err: err}
			if contextutils.IsError(err, contextutils.ErrFileNotFound) {
				res.Detail = "no " + s.cfg.Manifest.FileName
				s.logger.Debug(appCtx, "Skipping app without manifest")
			} else {
				res.Detail = err.Error()
				s.logger.Warn(appCtx, "Skipping unreadable manifest", map[string]interface{}{"error": err.Error()})
			}
			summary.Skipped++
			s.counter.Record(appCtx, "registry", string(res.Outcome))
			if report != nil {
				report(res)
			}
			continue
		}
		summary.Apps++

		hasLogo := fileExists(appPath(appsDir, app, "static", "logo.png"))
		hasBanner := fileExists(appPath(appsDir, app, "static", "banner.png"))
		for _, rec := range s.ManifestToRecords(m, raw, hasLogo, hasBanner) {
			res := models.ItemResult{App: app + "@" + rec.ChainID}
			inserted, upsertErr := s.store.Upsert(appCtx, rec)
			switch {
			case upsertErr != nil:
				summary.Failed++
				res = failedResult(res, upsertErr)
				summary.Errors = append(summary.Errors, res)
				s.logger.Error(appCtx, "Registry upsert failed", upsertErr, map[string]interface{}{"chain_id": rec.ChainID})
			case inserted:
				summary.Inserted++
				res.Outcome = models.OutcomeCreated
				res.Detail = "inserted"
			default:
				summary.Updated++
				res.Outcome = models.OutcomeUpdated
				res.Detail = "updated"
			}
			s.counter.Record(appCtx, "registry", string(res.Outcome))
			if report != nil {
				report(res)
			}
		}
	}
	return summary, nil
}

// CategorySummary returns registered row counts per category, largest first
func (s *RegistryService) CategorySummary(ctx context.Context) ([]models.CategoryCount, error) {
	return s.store.CategoryCounts(ctx)
}

func (s *RegistryService) loadManifest(appsDir, app string) (models.Manifest, []byte, error) {
	// Platform integrations are on unless a manifest turns them off
	m := models.Manifest{Platform: models.Platform{Analytics: true, Comments: true, Ratings: true, Transactions: true}}
	data, err := os.ReadFile(appPath(appsDir, app, s.cfg.Manifest.FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, nil, contextutils.NewCodedErrorf(contextutils.ErrFileNotFound, err, "manifest not found")
		}
		return m, nil, contextutils.NewCodedErrorf(contextutils.ErrFileRead, err, "failed to read manifest")
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, nil, contextutils.NewCodedErrorf(contextutils.ErrInvalidJSON, err, "invalid JSON")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return m, nil, contextutils.NewCodedErrorf(contextutils.ErrInvalidJSON, err, "invalid JSON")
	}
	return m, compact.Bytes(), nil
}

// ManifestToRecords maps a manifest to one registry row per supported network
func (s *RegistryService) ManifestToRecords(m models.Manifest, raw []byte, hasLogo, hasBanner bool) []*models.MiniappStat {
	prefix := s.cfg.Registry.AppIDPrefix
	appID := m.ID
	if !strings.HasPrefix(appID, prefix) {
		appID = prefix + appID
	}
	shortID := strings.TrimPrefix(appID, prefix)
	cdn := strings.TrimSuffix(s.cfg.Registry.CDNURL, "/")
	assetBase := cdn + "/miniapps/" + shortID

	networks := m.SupportedNetworks
	if len(networks) == 0 {
		networks = []string{coalesce(m.DefaultNetwork, s.cfg.Manifest.DefaultNetwork)}
	}

	searchable := make([]string, 0, 5+len(m.Tags))
	for _, part := range append([]string{m.Name, m.NameZh, m.Description, m.DescriptionZh, m.Developer.Name}, m.Tags...) {
		if part != "" {
			searchable = append(searchable, part)
		}
	}

	records := make([]*models.MiniappStat, 0, len(networks))
	for _, chainID := range networks {
		rec := &models.MiniappStat{
			AppID:          appID,
			ChainID:        chainID,
			AppShortID:     shortID,
			Name:           m.Name,
			NameZh:         coalesce(m.NameZh, m.Name),
			Description:    m.Description,
			DescriptionZh:  coalesce(m.DescriptionZh, m.Description),
			Version:        coalesce(m.Version, s.cfg.Manifest.DefaultVersion),
			Category:       coalesce(m.Category, s.cfg.Manifest.FallbackCategory),
			CategoryName:   m.CategoryName,
			CategoryNameZh: m.CategoryNameZh,
			Tags:           mustJSON(nonNil(m.Tags)),

			DeveloperName:    m.Developer.Name,
			DeveloperEmail:   m.Developer.Email,
			DeveloperWebsite: m.Developer.Website,

			EntryURL: assetBase + "/index.html",

			ContractAddress:   nullIfEmpty(m.Contracts.Address(chainID)),
			SupportedNetworks: mustJSON(networks),
			DefaultNetwork:    coalesce(m.DefaultNetwork, chainID),
			Permissions:       mustJSON(nonNil(m.Permissions)),

			FeatureStateless:      m.Features.Stateless,
			FeatureOfflineSupport: m.Features.OfflineSupport,
			FeatureDeeplink:       nullIfEmpty(m.Features.Deeplink),

			StateSourceType:      nullIfEmpty(m.StateSource.Type),
			StateSourceEndpoints: mustJSON(nonNil(m.StateSource.Endpoints)),

			PlatformAnalytics:    m.Platform.Analytics,
			PlatformComments:     m.Platform.Comments,
			PlatformRatings:      m.Platform.Ratings,
			PlatformTransactions: m.Platform.Transactions,

			IsActive:       true,
			ManifestJSON:   raw,
			SearchableText: strings.Join(searchable, " "),
		}
		if hasLogo {
			rec.LogoURL = sql.NullString{String: assetBase + "/logo.png", Valid: true}
		}
		if hasBanner {
			rec.BannerURL = sql.NullString{String: assetBase + "/banner.png", Valid: true}
		}
		records = append(records, rec)
	}
	return records
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// mustJSON encodes a string list, which cannot fail
func mustJSON(items []string) json.RawMessage {
	data, _ := json.Marshal(items)
	return data
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
