package models

import (
	"database/sql"
	"encoding/json"
)

// MiniappStat is one miniapp_stats row: a manifest registered on one chain
type MiniappStat struct {
	AppID          string `json:"app_id"`
	ChainID        string `json:"chain_id"`
	AppShortID     string `json:"app_short_id"`
	Name           string `json:"name"`
	NameZh         string `json:"name_zh"`
	Description    string `json:"description"`
	DescriptionZh  string `json:"description_zh"`
	Version        string `json:"version"`
	Category       string `json:"category"`
	CategoryName   string `json:"category_name"`
	CategoryNameZh string `json:"category_name_zh"`
	// JSONB columns are carried pre-encoded
	Tags json.RawMessage `json:"tags"`

	DeveloperName    string `json:"developer_name"`
	DeveloperEmail   string `json:"developer_email"`
	DeveloperWebsite string `json:"developer_website"`

	LogoURL   sql.NullString `json:"logo_url"`
	BannerURL sql.NullString `json:"banner_url"`
	EntryURL  string         `json:"entry_url"`

	ContractAddress   sql.NullString  `json:"contract_address"`
	SupportedNetworks json.RawMessage `json:"supported_networks"`
	DefaultNetwork    string          `json:"default_network"`
	Permissions       json.RawMessage `json:"permissions"`

	FeatureStateless      bool           `json:"feature_stateless"`
	FeatureOfflineSupport bool           `json:"feature_offline_support"`
	FeatureDeeplink       sql.NullString `json:"feature_deeplink"`

	StateSourceType      sql.NullString  `json:"state_source_type"`
	StateSourceEndpoints json.RawMessage `json:"state_source_endpoints"`

	PlatformAnalytics    bool `json:"platform_analytics"`
	PlatformComments     bool `json:"platform_comments"`
	PlatformRatings      bool `json:"platform_ratings"`
	PlatformTransactions bool `json:"platform_transactions"`

	IsActive       bool            `json:"is_active"`
	ManifestJSON   json.RawMessage `json:"manifest_json"`
	SearchableText string          `json:"searchable_text"`
}

// CategoryCount is one line of the registry summary
type CategoryCount struct {
	Category     string
	CategoryName string
	Count        int
}
