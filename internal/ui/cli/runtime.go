package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"callctx/internal/core/config"
	domainerrors "callctx/internal/core/errors"
	"callctx/internal/data/history"
	"callctx/internal/engine/callgraph"
	"callctx/internal/engine/parser"
	"callctx/internal/engine/project"
	"callctx/internal/shared/observability"
	"callctx/internal/ui/report"

	"github.com/spf13/cobra"
)

// runtime is the wiring shared by every command of one invocation.
type runtime struct {
	cfg      *config.Config
	paths    config.ResolvedPaths
	project  *project.Project
	analyzer *callgraph.Analyzer

	shutdownTracing func(context.Context) error
	server          *ObservabilityServer
}

// analysisFlags mirror the [analysis] and [output] config keys. Only flags
// the user actually set override the config.
type analysisFlags struct {
	maxDepth        int
	includeTests    bool
	includeComments bool
	projectWide     bool
	classifier      string
	format          string
	out             string
}

func (f *analysisFlags) register(cmd *cobra.Command, withOutput bool) {
	flags := cmd.Flags()
	flags.IntVar(&f.maxDepth, "max-depth", config.DefaultMaxDepth, "Maximum call depth to follow")
	flags.BoolVar(&f.includeTests, "include-tests", false, "Materialize test functions")
	flags.BoolVar(&f.includeComments, "include-comments", true, "Keep comments and docstrings in extracted source")
	flags.BoolVar(&f.projectWide, "project-wide", false, "Register classes from every project file")
	flags.StringVar(&f.classifier, "classifier", config.DefaultClassifier, "Definition classifier: text or grammar")
	if withOutput {
		flags.StringVar(&f.format, "format", config.DefaultFormat, "Output format: "+strings.Join(report.Formats(), ", "))
		flags.StringVar(&f.out, "out", "", "Write output to this file instead of stdout")
	}
}

func (f *analysisFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("max-depth") {
		cfg.Analysis.MaxDepth = f.maxDepth
	}
	if flags.Changed("include-tests") {
		cfg.Analysis.IncludeTests = f.includeTests
	}
	if flags.Changed("include-comments") {
		cfg.Analysis.IncludeComments = f.includeComments
	}
	if flags.Changed("project-wide") {
		cfg.Analysis.ProjectWideClasses = f.projectWide
	}
	if flags.Changed("classifier") {
		cfg.Analysis.Classifier = strings.ToLower(strings.TrimSpace(f.classifier))
	}
	if flags.Changed("format") {
		cfg.Output.Format = strings.ToLower(strings.TrimSpace(f.format))
	}
	if flags.Changed("out") {
		cfg.Output.Path = f.out
	}
}

// loadConfig reads the config file and applies overrides. Validation runs
// again after overrides so flags obey the same rules as the file.
func loadConfig(opts *rootOptions, override func(*config.Config)) (*config.Config, config.ResolvedPaths, error) {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, config.ResolvedPaths{}, err
	}
	if strings.TrimSpace(opts.root) != "" {
		cfg.Paths.ProjectRoot = opts.root
	}
	if override != nil {
		override(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, config.ResolvedPaths{}, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, config.ResolvedPaths{}, domainerrors.Wrap(err, domainerrors.CodeIO, "detect working directory")
	}
	return cfg, config.ResolvePaths(cfg, cwd), nil
}

func newRuntime(ctx context.Context, cfg *config.Config, paths config.ResolvedPaths) (*runtime, error) {
	loader, err := parser.NewGrammarLoader()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load grammars")
	}
	proj, err := project.New(paths.ProjectRoot, parser.NewParser(loader), project.Options{
		ExcludeDirs:  cfg.Exclude.Dirs,
		ExcludeFiles: cfg.Exclude.Files,
		CacheSize:    cfg.Cache.ParsedFiles,
	})
	if err != nil {
		return nil, err
	}
	classifier, err := callgraph.NewClassifier(cfg.Analysis.Classifier)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeValidationError, "select classifier")
	}
	analyzer, err := callgraph.NewAnalyzer(callgraph.Options{
		MaxDepth:           cfg.Analysis.MaxDepth,
		IncludeTests:       cfg.Analysis.IncludeTests,
		IncludeComments:    cfg.Analysis.IncludeComments,
		ProjectWideClasses: cfg.Analysis.ProjectWideClasses,
	}, proj, classifier)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, paths: paths, project: proj, analyzer: analyzer}

	shutdown, err := observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint, versionString)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnavailable, "set up tracing")
	}
	rt.shutdownTracing = shutdown

	if addr := strings.TrimSpace(cfg.Observability.MetricsAddr); addr != "" {
		rt.server = NewObservabilityServer(addr, rt.healthChecks())
		if err := rt.server.Start(ctx); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rt.server != nil {
		if err := rt.server.Stop(ctx); err != nil {
			slog.Warn("failed to stop observability server", "error", err)
		}
	}
	if rt.shutdownTracing != nil {
		if err := rt.shutdownTracing(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
}

func (rt *runtime) healthChecks() map[string]HealthCheck {
	checks := map[string]HealthCheck{
		"project_root": func(context.Context) error {
			_, err := os.Stat(rt.paths.ProjectRoot)
			return err
		},
	}
	if rt.cfg.DB.Enabled {
		checks["history"] = func(context.Context) error {
			_, err := os.Stat(filepath.Dir(rt.paths.DBPath))
			return err
		}
	}
	return checks
}

// seedRef names the definition an analysis starts from.
type seedRef struct {
	file string
	name string
	line int
}

func (s seedRef) label() string {
	if s.name != "" {
		return s.name
	}
	return fmt.Sprintf("line %d", s.line)
}

// analysis is one finished run plus what is needed to render or store it.
type analysis struct {
	result *callgraph.Result
	meta   report.Meta
}

func (a analysis) document() report.Document {
	return report.NewDocument(a.result, a.meta)
}

func (a analysis) runDetail(classifier string, maxDepth int) history.RunDetail {
	return history.NewRunDetail(history.RunMeta{
		Root:       a.meta.Root,
		SeedFile:   a.meta.SeedFile,
		Seed:       a.meta.Seed,
		Classifier: classifier,
		MaxDepth:   maxDepth,
	}, a.result)
}

func (rt *runtime) analyze(ctx context.Context, ref seedRef) (analysis, error) {
	path := ref.file
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return analysis{}, domainerrors.Wrap(err, domainerrors.CodeIO, "resolve seed file")
		}
		path = abs
	}

	file, err := rt.project.Load(path)
	if err != nil {
		return analysis{}, err
	}

	var seed *parser.Element
	if ref.line > 0 {
		seed, err = callgraph.SeedAtLine(file, ref.line, rt.analyzer.Classifier())
	} else {
		seed, err = callgraph.FindSeed(file, ref.name, rt.analyzer.Classifier())
	}
	if err != nil {
		return analysis{}, err
	}

	result, err := rt.analyzer.Analyze(ctx, seed)
	if err != nil {
		return analysis{}, err
	}

	seedName := ref.name
	if result.Seed != nil {
		seedName = result.Seed.QualifiedName
	}
	return analysis{
		result: result,
		meta: report.Meta{
			Seed:        seedName,
			SeedFile:    path,
			Root:        rt.paths.ProjectRoot,
			GeneratedAt: time.Now().UTC(),
		},
	}, nil
}

// emit renders doc in the configured format to the configured output, or
// to stdout when no output path is set.
func (rt *runtime) emit(cmd *cobra.Command, doc report.Document) error {
	content, err := report.Render(rt.cfg.Output.Format, doc, report.Options{
		IncludeSource: true,
		Version:       versionString,
	})
	if err != nil {
		return err
	}
	if rt.paths.OutputPath == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	if err := report.Write(rt.paths.OutputPath, content); err != nil {
		return err
	}
	slog.Info("report written", "path", rt.paths.OutputPath, "format", rt.cfg.Output.Format)
	return nil
}

func (rt *runtime) openHistory() (*history.Store, error) {
	return history.Open(rt.paths.DBPath)
}
