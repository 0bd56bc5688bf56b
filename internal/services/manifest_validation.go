package services

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"miniappctl/internal/config"
	"miniappctl/internal/models"
	contextutils "miniappctl/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/neo-manifest.schema.json
var manifestSchemaJSON []byte

// ManifestValidator checks manifests structurally against the embedded JSON
// schema and semantically against the configured tables.
type ManifestValidator struct {
	cfg    *config.Config
	schema *gojsonschema.Schema
}

// NewManifestValidator compiles the embedded manifest schema
func NewManifestValidator(cfg *config.Config) (*ManifestValidator, error) {
	if cfg == nil {
		panic("NewManifestValidator: cfg is nil")
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(manifestSchemaJSON))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to compile manifest schema")
	}
	return &ManifestValidator{cfg: cfg, schema: schema}, nil
}

// ValidateBytes validates a manifest file's content for app directory dir.
// Schema problems are returned without running the semantic checks.
func (v *ManifestValidator) ValidateBytes(data []byte, dir string) ([]string, error) {
	if !json.Valid(data) {
		return nil, contextutils.NewCodedErrorf(contextutils.ErrInvalidJSON, nil, "%s is not valid JSON", dir)
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, contextutils.WrapError(err, "schema validation error")
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
		}
		sort.Strings(problems)
		return problems, nil
	}

	var m models.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, contextutils.NewCodedErrorf(contextutils.ErrInvalidJSON, err, "failed to decode %s manifest", dir)
	}
	return v.ValidateManifest(m, dir), nil
}

// ValidateManifest runs the field rules on a decoded manifest. An empty dir skips the id check.
func (v *ManifestValidator) ValidateManifest(m models.Manifest, dir string) []string {
	mc := &v.cfg.Manifest
	problems := contextutils.ValidateStruct(m)

	if !slices.Contains(mc.CategoryIDs(), m.Category) {
		problems = append(problems, fmt.Sprintf("category: %q is not one of %s", m.Category, strings.Join(mc.CategoryIDs(), ", ")))
	}

	if dir != "" && strings.TrimPrefix(m.ID, v.cfg.Registry.AppIDPrefix) != dir {
		problems = append(problems, fmt.Sprintf("id: %q does not match directory %q", m.ID, dir))
	}

	if !strings.HasPrefix(m.Features.Deeplink, mc.DeeplinkScheme) {
		problems = append(problems, fmt.Sprintf("features.deeplink: %q does not use scheme %s", m.Features.Deeplink, mc.DeeplinkScheme))
	}

	networks := mc.NetworkIDs()
	if m.StateSource.Chain != "" && !slices.Contains(networks, m.StateSource.Chain) {
		problems = append(problems, fmt.Sprintf("stateSource.chain: unknown network %q", m.StateSource.Chain))
	}

	if m.Contracts.Networks == nil {
		if m.Contracts.Primary == "" {
			problems = append(problems, "contracts.primary: missing")
		}
		return problems
	}

	for _, id := range m.Contracts.NetworkIDs() {
		if !slices.Contains(networks, id) {
			problems = append(problems, fmt.Sprintf("contracts: unknown network %q", id))
		}
	}
	for _, id := range m.SupportedNetworks {
		if !slices.Contains(networks, id) {
			problems = append(problems, fmt.Sprintf("supported_networks: unknown network %q", id))
		}
	}
	if m.DefaultNetwork != "" {
		if _, ok := m.Contracts.Networks[m.DefaultNetwork]; !ok {
			problems = append(problems, fmt.Sprintf("contracts: no entry for default_network %q", m.DefaultNetwork))
		}
		if len(m.SupportedNetworks) > 0 && !slices.Contains(m.SupportedNetworks, m.DefaultNetwork) {
			problems = append(problems, fmt.Sprintf("supported_networks: missing default_network %q", m.DefaultNetwork))
		}
	}
	return problems
}
