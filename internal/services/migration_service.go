package services

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"miniappctl/internal/config"
	"miniappctl/internal/models"
	"miniappctl/internal/observability"
	"miniappctl/internal/serviceinterfaces"
	contextutils "miniappctl/internal/utils"

	"github.com/dlclark/regexp2"
)

// ChainWarningMigratorInterface defines the interface for the template migration
type ChainWarningMigratorInterface = serviceinterfaces.ChainWarningMigrator

const (
	chainWarningComment = "// Chain validation handled by ChainWarning component"

	chainWarningReplacement = `<!-- Chain Warning - Framework Component -->
      <ChainWarning :title="t('wrongChain')" :message="t('wrongChainMessage')" :button-text="t('switchToNeo')" />`

	requireNeoChainImport = `import { requireNeoChain } from "@shared/utils/chain";`
)

// MigrationService rewrites miniapp page sources to use the shared ChainWarning component
type MigrationService struct {
	cfg     *config.Config
	counter *observability.ItemCounter
	logger  *observability.Logger

	templateBlock  *regexp2.Regexp
	componentsLine *regexp2.Regexp
	walletLine     *regexp2.Regexp
	requireImport  *regexp2.Regexp
	chainTypeRef   *regexp2.Regexp
	requireNeoRef  *regexp2.Regexp
}

// NewMigrationService compiles the migration patterns with the configured match timeout
func NewMigrationService(cfg *config.Config, logger *observability.Logger) *MigrationService {
	if cfg == nil {
		panic("NewMigrationService: cfg is nil")
	}
	if logger == nil {
		panic("NewMigrationService: logger is nil")
	}

	timeout := cfg.Migrate.PatternTimeout
	if timeout <= 0 {
		timeout = config.DefaultPatternTimeout
	}
	compile := func(pattern string, opts regexp2.RegexOptions) *regexp2.Regexp {
		re := regexp2.MustCompile(pattern, opts)
		re.MatchTimeout = timeout
		return re
	}

	counter, err := observability.NewItemCounter(nil)
	if err != nil {
		logger.Warn(context.Background(), "Item counter unavailable", map[string]interface{}{"error": err.Error()})
	}

	return &MigrationService{
		cfg:     cfg,
		counter: counter,
		logger:  logger,
		// The block ends at the first closing tag that is followed by one of the known markers
		templateBlock:  compile(`<view v-if="chainType === 'evm'"[^>]*>.*?</view>(\s*)(?=<view v-if=|<!--|<NeoCard|</AppLayout>)`, regexp2.Singleline),
		componentsLine: compile(`import \{ ([^}]+) \} from "@shared/components";`, regexp2.None),
		walletLine:     compile(`const \{ ([^}]+) \} = useWallet\(\) as any;`, regexp2.None),
		requireImport:  compile(`import \{ requireNeoChain \} from "@shared/utils/chain";\s*\n`, regexp2.None),
		chainTypeRef:   compile(`\bchainType\b`, regexp2.None),
		requireNeoRef:  compile(`\brequireNeoChain\b`, regexp2.None),
	}
}

// MigrateAll migrates each listed app in order. Failures are counted and the batch continues.
func (s *MigrationService) MigrateAll(ctx context.Context, appsDir string, apps []string, report models.Reporter) (summary models.Summary, err error) {
	ctx, span := observability.TraceMigrateFunction(ctx, "MigrateAll",
		observability.AttributePath(appsDir),
		observability.AttributeCount(len(apps)),
	)
	defer observability.FinishSpan(span, &err)

	for _, app := range apps {
		res := s.MigrateApp(ctx, appsDir, app)
		s.counter.Record(ctx, "migrate", string(res.Outcome))
		if res.Outcome == models.OutcomeFailed {
			s.logger.Error(contextutils.WithAppID(ctx, app), "Chain warning migration failed", res.Err)
		}
		summary.Add(res.Outcome)
		if report != nil {
			report(res)
		}
	}
	return summary, nil
}

// MigrateApp migrates one app's page source and writes it only when the text changed
func (s *MigrationService) MigrateApp(ctx context.Context, appsDir, app string) (res models.ItemResult) {
	ctx = contextutils.WithAppID(ctx, app)
	_, span := observability.TraceMigrateFunction(ctx, "MigrateFile", observability.AttributeAppID(app))
	defer func() { observability.SetOutcome(span, string(res.Outcome)); span.End() }()

	res.App = app
	path := appPath(appsDir, app, s.cfg.Migrate.TargetPath)
	span.SetAttributes(observability.AttributePath(path))

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		res.Outcome = models.OutcomeSkipped
		res.Detail = "file not found"
		return res
	}
	if err != nil {
		return failedResult(res, contextutils.NewCodedErrorf(contextutils.ErrFileRead, err, "failed to read %s", path))
	}

	start := time.Now()
	migrated, err := s.MigrateText(string(data))
	if err != nil {
		return failedResult(res, err)
	}
	if migrated == string(data) {
		res.Outcome = models.OutcomeUnchanged
		res.Detail = "no changes needed"
		return res
	}

	info, statErr := os.Stat(path)
	mode := config.ManifestFileMode
	if statErr == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, []byte(migrated), mode); err != nil {
		return failedResult(res, contextutils.NewCodedErrorf(contextutils.ErrFileWrite, err, "failed to write %s", path))
	}
	res.Outcome = models.OutcomeUpdated
	res.Detail = "migrated"
	s.logger.Debug(ctx, "Page source migrated", map[string]interface{}{"path": path, "duration_ms": time.Since(start).Milliseconds()})
	return res
}

// MigrateText applies the ChainWarning rewrite pipeline to a page source
func (s *MigrationService) MigrateText(text string) (string, error) {
	text, err := s.replaceTemplateBlock(text)
	if err != nil {
		return "", err
	}

	// Usage checks ignore the statements this pipeline rewrites or removes
	withoutWallet, err := s.walletLine.Replace(text, "", -1, -1)
	if err != nil {
		return "", patternError("useWallet destructuring", err)
	}
	usesChainType, err := s.chainTypeRef.MatchString(withoutWallet)
	if err != nil {
		return "", patternError("chainType usage", err)
	}
	usesRequireNeo, err := s.requireNeoRef.MatchString(strings.ReplaceAll(text, requireNeoChainImport, ""))
	if err != nil {
		return "", patternError("requireNeoChain usage", err)
	}

	text, err = s.componentsLine.ReplaceFunc(text, func(m regexp2.Match) string {
		imports := m.GroupByNumber(1).String()
		if strings.Contains(imports, "ChainWarning") {
			return m.String()
		}
		return `import { ` + imports + `, ChainWarning } from "@shared/components";`
	}, -1, -1)
	if err != nil {
		return "", patternError("components import", err)
	}

	text, err = s.walletLine.ReplaceFunc(text, func(m regexp2.Match) string {
		return pruneWalletBindings(m.String(), m.GroupByNumber(1).String(), usesChainType)
	}, -1, -1)
	if err != nil {
		return "", patternError("useWallet destructuring", err)
	}

	if !usesRequireNeo {
		text, err = s.requireImport.Replace(text, "", -1, -1)
		if err != nil {
			return "", patternError("requireNeoChain import", err)
		}
	}
	return text, nil
}

// replaceTemplateBlock swaps the first inline chain check block for the
// component, keeping the whitespace that separated it from the next marker.
func (s *MigrationService) replaceTemplateBlock(text string) (string, error) {
	m, err := s.templateBlock.FindStringMatch(text)
	if err != nil {
		return "", patternError("template block", err)
	}
	if m == nil {
		return text, nil
	}
	trailing := m.GroupByNumber(1).String()
	runes := []rune(text)
	return string(runes[:m.Index]) + chainWarningReplacement + trailing + string(runes[m.Index+m.Length:]), nil
}

// pruneWalletBindings drops switchToAppChain, and chainType when unused, from a
// useWallet destructuring. The statement is returned untouched when nothing was dropped.
func pruneWalletBindings(statement, bindings string, usesChainType bool) string {
	var kept []string
	droppedChainType := false
	dropped := false
	for _, item := range strings.Split(bindings, ",") {
		item = strings.TrimSpace(item)
		switch {
		case item == "switchToAppChain":
			dropped = true
		case item == "chainType" && !usesChainType:
			dropped = true
			droppedChainType = true
		default:
			kept = append(kept, item)
		}
	}

	if !dropped {
		return statement
	}
	if len(kept) == 0 {
		return chainWarningComment + "\nconst {} = useWallet() as any;"
	}
	pruned := "const { " + strings.Join(kept, ", ") + " } = useWallet() as any;"
	if droppedChainType {
		return chainWarningComment + "\n" + pruned
	}
	return pruned
}

func patternError(step string, err error) error {
	return contextutils.NewCodedErrorf(contextutils.ErrPatternTimeout, err, "%s pattern failed", step)
}
