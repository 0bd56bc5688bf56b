package services

import (
	"context"
	"database/sql"

	"miniappctl/internal/models"
	"miniappctl/internal/observability"
	"miniappctl/internal/serviceinterfaces"
	contextutils "miniappctl/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// RegistryStoreInterface defines the interface for registry persistence
type RegistryStoreInterface = serviceinterfaces.RegistryStore

const upsertMiniappStatQuery = `INSERT INTO miniapp_stats (
	app_id, chain_id, app_short_id,
	name, name_zh, description, description_zh, version,
	category, category_name, category_name_zh, tags,
	developer_name, developer_email, developer_website,
	logo_url, banner_url, entry_url,
	contract_address, contract_hash, supported_networks, default_network,
	permissions,
	feature_stateless, feature_offline_support, feature_deeplink,
	state_source_type, state_source_endpoints,
	platform_analytics, platform_comments, platform_ratings, platform_transactions,
	is_active, manifest_json, searchable_text, updated_at
) VALUES (
	$1, $2, $3,
	$4, $5, $6, $7, $8,
	$9, $10, $11, $12,
	$13, $14, $15,
	$16, $17, $18,
	$19, $19, $20, $21,
	$22,
	$23, $24, $25,
	$26, $27,
	$28, $29, $30, $31,
	$32, $33, $34, NOW()
)
ON CONFLICT (app_id, chain_id) DO UPDATE SET
	app_short_id = EXCLUDED.app_short_id,
	name = EXCLUDED.name,
	name_zh = EXCLUDED.name_zh,
	description = EXCLUDED.description,
	description_zh = EXCLUDED.description_zh,
	version = EXCLUDED.version,
	category = EXCLUDED.category,
	category_name = EXCLUDED.category_name,
	category_name_zh = EXCLUDED.category_name_zh,
	tags = EXCLUDED.tags,
	developer_name = EXCLUDED.developer_name,
	developer_email = EXCLUDED.developer_email,
	developer_website = EXCLUDED.developer_website,
	logo_url = EXCLUDED.logo_url,
	banner_url = EXCLUDED.banner_url,
	entry_url = EXCLUDED.entry_url,
	contract_address = EXCLUDED.contract_address,
	contract_hash = EXCLUDED.contract_hash,
	supported_networks = EXCLUDED.supported_networks,
	default_network = EXCLUDED.default_network,
	permissions = EXCLUDED.permissions,
	feature_stateless = EXCLUDED.feature_stateless,
	feature_offline_support = EXCLUDED.feature_offline_support,
	feature_deeplink = EXCLUDED.feature_deeplink,
	state_source_type = EXCLUDED.state_source_type,
	state_source_endpoints = EXCLUDED.state_source_endpoints,
	platform_analytics = EXCLUDED.platform_analytics,
	platform_comments = EXCLUDED.platform_comments,
	platform_ratings = EXCLUDED.platform_ratings,
	platform_transactions = EXCLUDED.platform_transactions,
	is_active = EXCLUDED.is_active,
	manifest_json = EXCLUDED.manifest_json,
	searchable_text = EXCLUDED.searchable_text,
	updated_at = NOW()
RETURNING (xmax = 0) AS inserted`

const categoryCountsQuery = `SELECT category, MAX(category_name), COUNT(*)
	FROM miniapp_stats
	GROUP BY category
	ORDER BY COUNT(*) DESC, category ASC`

// SQLRegistryStore persists registry rows in the miniapp_stats table
type SQLRegistryStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewSQLRegistryStore creates a new SQLRegistryStore instance
func NewSQLRegistryStore(db *sql.DB, logger *observability.Logger) *SQLRegistryStore {
	if db == nil {
		panic("NewSQLRegistryStore: db is nil")
	}
	if logger == nil {
		panic("NewSQLRegistryStore: logger is nil")
	}
	return &SQLRegistryStore{db: db, logger: logger}
}

// Upsert inserts or updates the row keyed by (app_id, chain_id)
func (s *SQLRegistryStore) Upsert(ctx context.Context, rec *models.MiniappStat) (inserted bool, err error) {
	ctx, span := observability.TraceRegistryFunction(ctx, "Upsert",
		attribute.String("registry.app_id", rec.AppID),
		observability.AttributeChainID(rec.ChainID),
	)
	defer observability.FinishSpan(span, &err)

	// JSONB values are sent as text so lib/pq does not encode them as bytea
	err = s.db.QueryRowContext(ctx, upsertMiniappStatQuery,
		rec.AppID, rec.ChainID, rec.AppShortID,
		rec.Name, rec.NameZh, rec.Description, rec.DescriptionZh, rec.Version,
		rec.Category, nullIfEmpty(rec.CategoryName), nullIfEmpty(rec.CategoryNameZh), string(rec.Tags),
		nullIfEmpty(rec.DeveloperName), nullIfEmpty(rec.DeveloperEmail), nullIfEmpty(rec.DeveloperWebsite),
		rec.LogoURL, rec.BannerURL, rec.EntryURL,
		rec.ContractAddress, string(rec.SupportedNetworks), rec.DefaultNetwork,
		string(rec.Permissions),
		rec.FeatureStateless, rec.FeatureOfflineSupport, rec.FeatureDeeplink,
		rec.StateSourceType, string(rec.StateSourceEndpoints),
		rec.PlatformAnalytics, rec.PlatformComments, rec.PlatformRatings, rec.PlatformTransactions,
		rec.IsActive, string(rec.ManifestJSON), rec.SearchableText,
	).Scan(&inserted)
	if err != nil {
		return false, contextutils.NewCodedErrorf(contextutils.ErrDatabaseQuery, err, "failed to upsert %s on %s", rec.AppID, rec.ChainID)
	}
	return inserted, nil
}

// CategoryCounts groups registered rows by category, largest first
func (s *SQLRegistryStore) CategoryCounts(ctx context.Context) (result0 []models.CategoryCount, err error) {
	ctx, span := observability.TraceRegistryFunction(ctx, "CategoryCounts")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, categoryCountsQuery)
	if err != nil {
		return nil, contextutils.NewCodedErrorf(contextutils.ErrDatabaseQuery, err, "failed to query category counts")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var counts []models.CategoryCount
	for rows.Next() {
		var cc models.CategoryCount
		var name sql.NullString
		if err := rows.Scan(&cc.Category, &name, &cc.Count); err != nil {
			return nil, contextutils.NewCodedErrorf(contextutils.ErrDatabaseQuery, err, "failed to scan category count")
		}
		cc.CategoryName = name.String
		if cc.CategoryName == "" {
			cc.CategoryName = cc.Category
		}
		counts = append(counts, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.NewCodedErrorf(contextutils.ErrDatabaseQuery, err, "failed to read category counts")
	}
	return counts, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
