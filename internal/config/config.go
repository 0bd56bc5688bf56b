// Package config handles tool configuration loading from embedded defaults,
// an optional YAML file, .env files and environment variables.
package config

import (
	_ "embed"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "miniappctl/internal/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// NameTranslation holds the English and Chinese display names of one miniapp
type NameTranslation struct {
	Name   string `json:"name" yaml:"name" validate:"required"`
	NameZh string `json:"name_zh" yaml:"name_zh" validate:"required"`
}

// CategoryConfig describes one member of the closed category set
type CategoryConfig struct {
	ID     string `json:"id" yaml:"id" validate:"required"`
	Name   string `json:"name" yaml:"name" validate:"required"`
	NameZh string `json:"name_zh" yaml:"name_zh" validate:"required"`
	// Keywords are matched as substrings of the lower-cased app name, in list order
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// NetworkConfig describes a chain a miniapp can be deployed to
type NetworkConfig struct {
	ID        string   `json:"id" yaml:"id" validate:"required"`
	Endpoints []string `json:"endpoints" yaml:"endpoints" validate:"required,min=1,dive,url"`
}

// DeveloperConfig is the developer block written when a manifest has none
type DeveloperConfig struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	Email   string `json:"email" yaml:"email" validate:"required,email"`
	Website string `json:"website" yaml:"website" validate:"required,url"`
}

// URLConfig holds the default relative asset paths of a miniapp
type URLConfig struct {
	Entry  string `json:"entry" yaml:"entry" validate:"required"`
	Icon   string `json:"icon" yaml:"icon" validate:"required"`
	Banner string `json:"banner" yaml:"banner" validate:"required"`
}

// ManifestConfig holds every static table used to build neo-manifest.json files
type ManifestConfig struct {
	FileName           string                     `json:"file_name" yaml:"file_name" validate:"required"`
	SchemaURL          string                     `json:"schema_url" yaml:"schema_url" validate:"required,url"`
	SchemaVersion      string                     `json:"schema_version" yaml:"schema_version" validate:"oneof=v1 v2 v3"`
	DefaultVersion     string                     `json:"default_version" yaml:"default_version" validate:"required"`
	DescriptionSuffix  string                     `json:"description_suffix" yaml:"description_suffix"`
	CreatedAt          string                     `json:"created_at" yaml:"created_at" validate:"required"`
	UpdatedAt          string                     `json:"updated_at" yaml:"updated_at" validate:"required"`
	PlaceholderAddress string                     `json:"placeholder_address" yaml:"placeholder_address" validate:"contract_address"`
	DefaultNetwork     string                     `json:"default_network" yaml:"default_network" validate:"required"`
	DeeplinkScheme     string                     `json:"deeplink_scheme" yaml:"deeplink_scheme" validate:"required"`
	StateSourceType    string                     `json:"state_source_type" yaml:"state_source_type" validate:"required"`
	FallbackCategory   string                     `json:"fallback_category" yaml:"fallback_category" validate:"required"`
	Networks           []NetworkConfig            `json:"networks" yaml:"networks" validate:"required,min=1,dive"`
	Developer          DeveloperConfig            `json:"developer" yaml:"developer"`
	URLs               URLConfig                  `json:"urls" yaml:"urls"`
	Permissions        []string                   `json:"permissions" yaml:"permissions" validate:"required,min=1"`
	Categories         []CategoryConfig           `json:"categories" yaml:"categories" validate:"required,min=1,dive"`
	CategoryAliases    map[string]string          `json:"category_aliases" yaml:"category_aliases"`
	Translations       map[string]NameTranslation `json:"translations" yaml:"translations" validate:"dive"`
	CreateApps         []string                   `json:"create_apps" yaml:"create_apps"`
	ExcludeDirs        []string                   `json:"exclude_dirs" yaml:"exclude_dirs"`
}

// MigrateConfig represents the chain-warning template migration settings
type MigrateConfig struct {
	TargetPath     string        `json:"target_path" yaml:"target_path" validate:"required"`
	PatternTimeout time.Duration `json:"pattern_timeout" yaml:"pattern_timeout"`
	Apps           []string      `json:"apps" yaml:"apps" validate:"dive,app_slug"`
}

// RegistryConfig represents the miniapp registry sync settings
type RegistryConfig struct {
	CDNURL      string `json:"cdn_url" yaml:"cdn_url" validate:"omitempty,url"`
	AppIDPrefix string `json:"app_id_prefix" yaml:"app_id_prefix"`
}

// Config holds all configuration for the tool
type Config struct {
	// Root directory holding one subdirectory per miniapp
	AppsDir  string `json:"apps_dir" yaml:"apps_dir" validate:"required"`
	LogLevel string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`

	Manifest ManifestConfig `json:"manifest" yaml:"manifest"`
	Migrate  MigrateConfig  `json:"migrate" yaml:"migrate"`
	Registry RegistryConfig `json:"registry" yaml:"registry"`
	Database DatabaseConfig `json:"database" yaml:"database"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// CategoryIDs returns the closed category set in configured order
func (m *ManifestConfig) CategoryIDs() []string {
	ids := make([]string, 0, len(m.Categories))
	for _, c := range m.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// Category returns the category entry for id
func (m *ManifestConfig) Category(id string) (CategoryConfig, bool) {
	for _, c := range m.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return CategoryConfig{}, false
}

// NetworkIDs returns the configured network identifiers in configured order
func (m *ManifestConfig) NetworkIDs() []string {
	ids := make([]string, 0, len(m.Networks))
	for _, n := range m.Networks {
		ids = append(ids, n.ID)
	}
	return ids
}

// Endpoints returns the RPC endpoints of network, or nil if it is unknown
func (m *ManifestConfig) Endpoints(network string) []string {
	for _, n := range m.Networks {
		if n.ID == network {
			out := make([]string, len(n.Endpoints))
			copy(out, n.Endpoints)
			return out
		}
	}
	return nil
}

// UniqueApps returns the migration app list with duplicates removed, keeping first occurrence order
func (m *MigrateConfig) UniqueApps() []string {
	seen := make(map[string]bool, len(m.Apps))
	apps := make([]string, 0, len(m.Apps))
	for _, app := range m.Apps {
		if seen[app] {
			continue
		}
		seen[app] = true
		apps = append(apps, app)
	}
	return apps
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`                                  // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol" validate:"omitempty,oneof=grpc http"` // "grpc" or "http"
	Insecure       bool              `json:"insecure" yaml:"insecure"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	ServiceName    string            `json:"service_name" yaml:"service_name"`
	ServiceVersion string            `json:"service_version" yaml:"service_version"`
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"` // Default: false for the CLI
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`
	UseAutoSDK     bool              `json:"use_auto_sdk" yaml:"use_auto_sdk"`
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate" validate:"gte=0,lte=1"`
}

// DatabaseConfig represents registry database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// NewConfig loads the embedded defaults, overlays the YAML config file if one
// is present, then applies .env files and environment variables.
func NewConfig() (result0 *Config, err error) {
	if err := loadDotEnv(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidConfig, "failed to load .env files: %w", err)
	}

	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidConfig, "failed to load config: %w", err)
	}

	config.overrideFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadDefaults returns the embedded default configuration without consulting
// the filesystem or the environment.
func LoadDefaults() (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(defaultsYAML, &config); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidConfig, "failed to parse embedded defaults: %w", err)
	}
	return &config, nil
}

// Validate checks the loaded configuration against its struct rules
func (c *Config) Validate() error {
	problems := contextutils.ValidateStruct(c)
	if len(problems) == 0 {
		return nil
	}
	return contextutils.NewAppError(
		contextutils.ErrorCodeInvalidConfig,
		contextutils.SeverityFatal,
		"Invalid configuration",
		strings.Join(problems, "; "),
	)
}

// loadDotEnv loads .env.local, .env.<MINIAPP_ENV> and .env in that order.
// godotenv never overrides variables that are already set, so earlier files win.
func loadDotEnv() error {
	candidates := []string{".env.local"}
	if env := os.Getenv(EnvNameVar); env != "" {
		candidates = append(candidates, ".env."+env)
	}
	candidates = append(candidates, ".env")

	existing := make([]string, 0, len(candidates))
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnv(c)
}

// overrideStructFromEnv recursively overrides struct fields with environment variables
func overrideStructFromEnv(v interface{}) {
	overrideStructFromEnvWithPrefix(v, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				// Only string slices (MIGRATE_APPS, MANIFEST_CREATE_APPS, ...)
				if field.Type().Elem().Kind() == reflect.String {
					parts := strings.Split(envVal, ",")
					slice := make([]string, 0, len(parts))
					for _, p := range parts {
						if p = strings.TrimSpace(p); p != "" {
							slice = append(slice, p)
						}
					}
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		case reflect.Ptr:
			if !field.IsNil() && field.Elem().Kind() == reflect.Struct {
				overrideStructFromEnvWithPrefix(field.Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the embedded defaults and overlays the config file
func loadConfigWithOverrides() (result0 *Config, err error) {
	config, err := LoadDefaults()
	if err != nil {
		return nil, err
	}

	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		if err := overlayConfigFromFile(config, envPath); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidConfig, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	// The default file is optional
	if _, statErr := os.Stat(DefaultConfigFile); statErr == nil {
		if err := overlayConfigFromFile(config, DefaultConfigFile); err != nil {
			return nil, err
		}
	}
	return config, nil
}

// overlayConfigFromFile decodes path on top of config, replacing only the keys it sets
func overlayConfigFromFile(config *Config, path string) error {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(yamlFile, config)
}
