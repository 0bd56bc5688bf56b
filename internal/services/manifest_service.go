package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"

	"miniappctl/internal/config"
	"miniappctl/internal/models"
	"miniappctl/internal/observability"
	"miniappctl/internal/serviceinterfaces"
	contextutils "miniappctl/internal/utils"
)

// ManifestServiceInterface defines the interface for manifest maintenance
type ManifestServiceInterface = serviceinterfaces.ManifestService

// ManifestService normalizes, creates and validates neo-manifest.json files
type ManifestService struct {
	cfg       *config.Config
	validator *ManifestValidator
	counter   *observability.ItemCounter
	logger    *observability.Logger
}

// NewManifestService creates a new ManifestService instance
func NewManifestService(cfg *config.Config, validator *ManifestValidator, logger *observability.Logger) *ManifestService {
	if cfg == nil {
		panic("NewManifestService: cfg is nil")
	}
	if validator == nil {
		panic("NewManifestService: validator is nil")
	}
	if logger == nil {
		panic("NewManifestService: logger is nil")
	}
	counter, err := observability.NewItemCounter(nil)
	if err != nil {
		logger.Warn(context.Background(), "Item counter unavailable", map[string]interface{}{"error": err.Error()})
	}
	return &ManifestService{cfg: cfg, validator: validator, counter: counter, logger: logger}
}

// NormalizeAll normalizes the manifest of every app directory under appsDir in name order
func (s *ManifestService) NormalizeAll(ctx context.Context, appsDir string, opts models.NormalizeOptions, report models.Reporter) (summary models.Summary, err error) {
	ctx, span := observability.TraceManifestFunction(ctx, "NormalizeAll",
		observability.AttributePath(appsDir),
		observability.AttributeSchemaVersion(string(opts.Schema)),
	)
	defer observability.FinishSpan(span, &err)

	apps, err := DiscoverApps(appsDir, s.cfg.Manifest.ExcludeDirs)
	if err != nil {
		return summary, err
	}
	span.SetAttributes(observability.AttributeCount(len(apps)))

	for _, app := range apps {
		res := s.NormalizeApp(ctx, appsDir, app, opts)
		s.record(ctx, "normalize", res)
		summary.Add(res.Outcome)
		if report != nil {
			report(res)
		}
	}
	return summary, nil
}

// NormalizeApp normalizes one app's manifest and writes it back only when the bytes changed
func (s *ManifestService) NormalizeApp(ctx context.Context, appsDir, app string, opts models.NormalizeOptions) (res models.ItemResult) {
	ctx = contextutils.WithAppID(ctx, app)
	ctx, span := observability.TraceManifestFunction(ctx, "Normalize", observability.AttributeAppID(app))
	defer func() { observability.SetOutcome(span, string(res.Outcome)); span.End() }()

	res.App = app
	path := appPath(appsDir, app, s.cfg.Manifest.FileName)

	existing, data, err := readManifestDocument(path)
	missing := contextutils.IsError(err, contextutils.ErrFileNotFound)
	if missing && !opts.CreateMissing {
		res.Outcome = models.OutcomeSkipped
		res.Detail = "no " + s.cfg.Manifest.FileName
		return res
	}
	if err != nil && !missing {
		return failedResult(res, err)
	}

	defaultCategory := s.cfg.Manifest.FallbackCategory
	if missing {
		defaultCategory = DeriveCategory(&s.cfg.Manifest, app)
	}
	m := BuildManifest(&s.cfg.Manifest, app, existing, defaultCategory, opts.UpdatedAt).Project(opts.Schema)

	if opts.Validate {
		if problems := s.validator.ValidateManifest(m, app); len(problems) > 0 {
			res.Outcome = models.OutcomeInvalid
			res.Detail = "normalized manifest is invalid"
			res.Problems = problems
			return res
		}
	}

	out, err := m.Encode(opts.Schema)
	if err != nil {
		return failedResult(res, contextutils.NewCodedErrorf(contextutils.ErrInternalError, err, "failed to encode manifest"))
	}
	if !missing && bytes.Equal(out, data) {
		res.Outcome = models.OutcomeUnchanged
		res.Detail = "already up to date"
		return res
	}

	if err := os.WriteFile(path, out, config.ManifestFileMode); err != nil {
		return failedResult(res, contextutils.NewCodedErrorf(contextutils.ErrFileWrite, err, "failed to write %s", path))
	}
	if missing {
		res.Outcome = models.OutcomeCreated
		res.Detail = "created"
	} else {
		res.Outcome = models.OutcomeUpdated
		res.Detail = "updated"
	}
	s.logger.Debug(ctx, "Manifest written", map[string]interface{}{"path": path, "schema": string(opts.Schema)})
	return res
}

// CreateAll writes a defaults-only manifest, with a keyword-derived category,
// for each listed app directory that lacks one.
func (s *ManifestService) CreateAll(ctx context.Context, appsDir string, apps []string, opts models.CreateOptions, report models.Reporter) (summary models.Summary, err error) {
	ctx, span := observability.TraceManifestFunction(ctx, "CreateAll",
		observability.AttributePath(appsDir),
		observability.AttributeCount(len(apps)),
	)
	defer observability.FinishSpan(span, &err)

	for _, app := range apps {
		res := s.createApp(ctx, appsDir, app, opts)
		s.record(ctx, "create", res)
		summary.Add(res.Outcome)
		if report != nil {
			report(res)
		}
	}
	return summary, nil
}

func (s *ManifestService) createApp(ctx context.Context, appsDir, app string, opts models.CreateOptions) (res models.ItemResult) {
	ctx = contextutils.WithAppID(ctx, app)
	_, span := observability.TraceManifestFunction(ctx, "Create", observability.AttributeAppID(app))
	defer func() { observability.SetOutcome(span, string(res.Outcome)); span.End() }()

	res.App = app
	info, err := os.Stat(appPath(appsDir, app))
	if err != nil || !info.IsDir() {
		res.Outcome = models.OutcomeSkipped
		res.Detail = "directory not found"
		return res
	}

	path := appPath(appsDir, app, s.cfg.Manifest.FileName)
	if _, err := os.Stat(path); err == nil && !opts.Force {
		res.Outcome = models.OutcomeSkipped
		res.Detail = "already has " + s.cfg.Manifest.FileName
		return res
	}

	m := BuildManifest(&s.cfg.Manifest, app, nil, DeriveCategory(&s.cfg.Manifest, app), "").Project(opts.Schema)
	out, err := m.Encode(opts.Schema)
	if err != nil {
		return failedResult(res, contextutils.NewCodedErrorf(contextutils.ErrInternalError, err, "failed to encode manifest"))
	}
	if err := os.WriteFile(path, out, config.ManifestFileMode); err != nil {
		return failedResult(res, contextutils.NewCodedErrorf(contextutils.ErrFileWrite, err, "failed to write %s", path))
	}
	res.Outcome = models.OutcomeCreated
	res.Detail = "created (" + m.Category + ")"
	return res
}

// ValidateAll validates the manifest of every app directory under appsDir
func (s *ManifestService) ValidateAll(ctx context.Context, appsDir string, report models.Reporter) (summary models.Summary, err error) {
	ctx, span := observability.TraceManifestFunction(ctx, "ValidateAll", observability.AttributePath(appsDir))
	defer observability.FinishSpan(span, &err)

	apps, err := DiscoverApps(appsDir, s.cfg.Manifest.ExcludeDirs)
	if err != nil {
		return summary, err
	}

	for _, app := range apps {
		res := s.validateApp(appsDir, app)
		s.record(ctx, "validate", res)
		summary.Add(res.Outcome)
		if report != nil {
			report(res)
		}
	}
	return summary, nil
}

func (s *ManifestService) validateApp(appsDir, app string) models.ItemResult {
	res := models.ItemResult{App: app}
	data, err := os.ReadFile(appPath(appsDir, app, s.cfg.Manifest.FileName))
	if errors.Is(err, fs.ErrNotExist) {
		res.Outcome = models.OutcomeSkipped
		res.Detail = "no " + s.cfg.Manifest.FileName
		return res
	}
	if err != nil {
		return failedResult(res, contextutils.NewCodedErrorf(contextutils.ErrFileRead, err, "failed to read manifest"))
	}

	problems, err := s.validator.ValidateBytes(data, app)
	if err != nil {
		return failedResult(res, err)
	}
	if len(problems) > 0 {
		res.Outcome = models.OutcomeInvalid
		res.Detail = "invalid"
		res.Problems = problems
		return res
	}
	res.Outcome = models.OutcomeValid
	res.Detail = "valid"
	return res
}

func (s *ManifestService) record(ctx context.Context, operation string, res models.ItemResult) {
	s.counter.Record(ctx, operation, string(res.Outcome))
	ctx = contextutils.WithAppID(ctx, res.App)
	switch res.Outcome {
	case models.OutcomeFailed:
		s.logger.Error(ctx, "Manifest "+operation+" failed", res.Err)
	case models.OutcomeInvalid:
		s.logger.Warn(ctx, "Manifest "+operation+" found problems", map[string]interface{}{"problems": res.Problems})
	default:
		s.logger.Debug(ctx, "Manifest "+operation+" finished", map[string]interface{}{"outcome": string(res.Outcome)})
	}
}

func failedResult(res models.ItemResult, err error) models.ItemResult {
	res.Outcome = models.OutcomeFailed
	res.Err = err
	res.Detail = err.Error()
	return res
}

// readManifestDocument reads and decodes a manifest file into a generic object.
// A missing file is reported as ErrFileNotFound.
func readManifestDocument(path string) (map[string]interface{}, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, contextutils.NewCodedErrorf(contextutils.ErrFileNotFound, err, "%s not found", path)
		}
		return nil, nil, contextutils.NewCodedErrorf(contextutils.ErrFileRead, err, "failed to read %s", path)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, data, contextutils.NewCodedErrorf(contextutils.ErrInvalidJSON, err, "invalid JSON")
	}
	return doc, data, nil
}

// BuildManifest merges an existing manifest document with computed defaults
// for app directory dir and returns the full v3 record. Every field keeps its
// existing value when present. defaultCategory is used when the document has
// no category; updatedAt overrides the configured stamp when non-empty.
func BuildManifest(mc *config.ManifestConfig, dir string, doc map[string]interface{}, defaultCategory, updatedAt string) models.Manifest {
	name, nameZh := AppNames(mc, dir)

	category := defaultCategory
	if c, ok := docString(doc, "category"); ok {
		category = ResolveCategory(mc, c)
	}
	label, _ := mc.Category(category)

	m := models.Manifest{
		Schema:         mc.SchemaURL,
		ID:             coalesce(docStringValue(doc, "id"), docStringValue(doc, "app_id"), dir),
		Name:           coalesce(docStringValue(doc, "name"), name),
		NameZh:         coalesce(docStringValue(doc, "name_zh"), nameZh),
		Version:        coalesce(docStringValue(doc, "version"), mc.DefaultVersion),
		Category:       category,
		CategoryName:   label.Name,
		CategoryNameZh: label.NameZh,
		CreatedAt:      coalesce(docStringValue(doc, "createdAt"), mc.CreatedAt),
		UpdatedAt:      coalesce(updatedAt, mc.UpdatedAt),
	}

	defaultDescription := m.Name
	if mc.DescriptionSuffix != "" {
		defaultDescription += " " + mc.DescriptionSuffix
	}
	m.Description = coalesce(docStringValue(doc, "description"), docStringValue(doc, "description_zh"), defaultDescription)
	m.DescriptionZh = coalesce(docStringValue(doc, "description_zh"), m.Description)

	m.Tags = []string{category}
	if tags, ok := docStrings(doc, "tags"); ok {
		m.Tags = tags
	} else if tags, ok := docStrings(doc, "tag"); ok {
		m.Tags = tags
	} else if tag, ok := docString(doc, "tag"); ok {
		m.Tags = []string{tag}
	}

	dev := docObject(doc, "developer")
	m.Developer = models.Developer{
		Name:    coalesce(docStringValue(dev, "name"), mc.Developer.Name),
		Email:   coalesce(docStringValue(dev, "email"), mc.Developer.Email),
		Website: coalesce(docStringValue(dev, "website"), mc.Developer.Website),
	}

	m.DefaultNetwork = coalesce(docStringValue(doc, "default_network"), mc.DefaultNetwork)
	m.Contracts = buildContracts(mc, docObject(doc, "contracts"), m.DefaultNetwork)
	m.SupportedNetworks = m.Contracts.NetworkIDs()
	if networks, ok := docStrings(doc, "supported_networks"); ok {
		m.SupportedNetworks = networks
	}

	urls := docObject(doc, "urls")
	m.URLs = models.URLs{
		Entry:  coalesce(docStringValue(doc, "entry_url"), docStringValue(urls, "entry"), mc.URLs.Entry),
		Icon:   coalesce(docStringValue(doc, "icon"), docStringValue(urls, "icon"), mc.URLs.Icon),
		Banner: coalesce(docStringValue(doc, "banner"), docStringValue(urls, "banner"), mc.URLs.Banner),
	}

	m.Permissions = append([]string{}, mc.Permissions...)
	if perms, ok := docStrings(doc, "permissions"); ok {
		m.Permissions = perms
	}

	features := docObject(doc, "features")
	m.Features = models.Features{
		Stateless:      docBool(features, "stateless", true),
		OfflineSupport: docBool(features, "offlineSupport", false),
		Deeplink:       coalesce(docStringValue(features, "deeplink"), mc.DeeplinkScheme+dir),
	}

	m.StateSource = buildStateSource(mc, docObject(doc, "stateSource"), m.DefaultNetwork)

	platform := docObject(doc, "platform")
	m.Platform = models.Platform{
		Analytics:    docBool(platform, "analytics", true),
		Comments:     docBool(platform, "comments", true),
		Ratings:      docBool(platform, "ratings", true),
		Transactions: docBool(platform, "transactions", true),
	}
	return m
}

// buildContracts reads both contract layouts. The default network always gets
// an entry, taken from the primary address or the placeholder.
func buildContracts(mc *config.ManifestConfig, doc map[string]interface{}, defaultNetwork string) models.Contracts {
	c := models.Contracts{
		Primary:  coalesce(docStringValue(doc, "primary"), mc.PlaceholderAddress),
		Networks: make(map[string]models.ContractRef),
	}
	for key, value := range doc {
		if key == "primary" {
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				c.Networks[key] = models.ContractRef{Address: v}
			}
		case map[string]interface{}:
			if addr, ok := docString(v, "address"); ok {
				c.Networks[key] = models.ContractRef{Address: addr}
			}
		}
	}
	if _, ok := c.Networks[defaultNetwork]; !ok {
		c.Networks[defaultNetwork] = models.ContractRef{Address: c.Primary}
	}
	return c
}

// buildStateSource keeps existing endpoints and otherwise uses the configured ones for the chain
func buildStateSource(mc *config.ManifestConfig, doc map[string]interface{}, defaultNetwork string) models.StateSource {
	ss := models.StateSource{
		Type:  coalesce(docStringValue(doc, "type"), mc.StateSourceType),
		Chain: coalesce(docStringValue(doc, "chain"), defaultNetwork),
	}
	switch endpoints, ok := docStrings(doc, "endpoints"); {
	case ok:
		ss.Endpoints = endpoints
	case mc.Endpoints(ss.Chain) != nil:
		ss.Endpoints = mc.Endpoints(ss.Chain)
	default:
		ss.Endpoints = mc.Endpoints(mc.DefaultNetwork)
	}
	if ss.Endpoints == nil {
		ss.Endpoints = []string{}
	}
	return ss
}

// coalesce returns the first non-empty value
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func docString(doc map[string]interface{}, key string) (string, bool) {
	s, ok := doc[key].(string)
	return s, ok && s != ""
}

func docStringValue(doc map[string]interface{}, key string) string {
	s, _ := docString(doc, key)
	return s
}

func docObject(doc map[string]interface{}, key string) map[string]interface{} {
	obj, _ := doc[key].(map[string]interface{})
	return obj
}

func docBool(doc map[string]interface{}, key string, fallback bool) bool {
	if b, ok := doc[key].(bool); ok {
		return b
	}
	return fallback
}

// docStrings returns a non-empty list whose elements are all strings
func docStrings(doc map[string]interface{}, key string) ([]string, bool) {
	items, ok := doc[key].([]interface{})
	if !ok || len(items) == 0 {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
