package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"callctx/internal/core/config"
	"callctx/internal/core/watcher"
	"callctx/internal/data/graphdb"
	"callctx/internal/data/history"
	"callctx/internal/engine/project"
	"callctx/internal/shared/observability"
	"callctx/internal/shared/util"
	"callctx/internal/ui/report"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// seedArgs accepts "<file.py> <name>", or "<file.py>" when --line is set.
func seedArgs(line *int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		switch {
		case len(args) == 2:
			return nil
		case len(args) == 1 && *line > 0:
			return nil
		case len(args) == 1:
			return usageError("%s needs a function name or --line", cmd.Name())
		default:
			return usageError("%s takes <file.py> <name|Class.method>", cmd.Name())
		}
	}
}

func refFromArgs(args []string, line int) seedRef {
	ref := seedRef{file: args[0], line: line}
	if len(args) > 1 {
		ref.name = args[1]
	}
	return ref
}

// parseInject splits "README.md:marker".
func parseInject(value string) (string, string, error) {
	idx := strings.LastIndex(value, ":")
	if idx <= 0 || idx == len(value)-1 {
		return "", "", usageError("--inject expects <file.md>:<marker>, got %q", value)
	}
	return value[:idx], value[idx+1:], nil
}

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	var (
		flags  analysisFlags
		line   int
		save   bool
		inject string
	)
	cmd := &cobra.Command{
		Use:   "analyze <file.py> [name|Class.method]",
		Short: "Collect the functions reachable from a seed definition",
		Args:  seedArgs(&line),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, paths, err := loadConfig(root, func(cfg *config.Config) {
				flags.apply(cmd, cfg)
				if save {
					cfg.DB.Enabled = true
				}
			})
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg, paths)
			if err != nil {
				return err
			}
			defer rt.Close()

			run, err := rt.analyze(cmd.Context(), refFromArgs(args, line))
			if err != nil {
				return err
			}
			if cfg.DB.Enabled {
				if err := rt.saveRun(cmd, &run); err != nil {
					return err
				}
			}

			doc := run.document()
			if err := rt.emit(cmd, doc); err != nil {
				return err
			}
			if inject != "" {
				if err := injectMermaid(inject, doc); err != nil {
					return err
				}
			}
			fmt.Fprint(cmd.ErrOrStderr(), renderSummary(doc))
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().IntVar(&line, "line", 0, "Seed on the innermost definition covering this line")
	cmd.Flags().BoolVar(&save, "save", false, "Store the run in the history database")
	cmd.Flags().StringVar(&inject, "inject", "", "Replace a marked section of a markdown file with a mermaid diagram (<file.md>:<marker>)")
	return cmd
}

func injectMermaid(target string, doc report.Document) error {
	path, marker, err := parseInject(target)
	if err != nil {
		return err
	}
	diagram, err := report.Render(report.FormatMermaid, doc, report.Options{})
	if err != nil {
		return err
	}
	return report.InjectDiagram(path, marker, "```mermaid\n"+diagram+"```")
}

func (rt *runtime) saveRun(cmd *cobra.Command, run *analysis) error {
	store, err := rt.openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	saved, err := store.SaveRun(cmd.Context(), run.runDetail(rt.analyzer.Classifier().Name(), rt.cfg.Analysis.MaxDepth))
	if err != nil {
		return err
	}
	run.meta.RunID = saved.ID
	slog.Info("run saved", "run_id", saved.ID, "db", store.Path())
	return nil
}

func newWatchCommand(root *rootOptions) *cobra.Command {
	var (
		flags analysisFlags
		line  int
	)
	cmd := &cobra.Command{
		Use:   "watch <file.py> [name|Class.method]",
		Short: "Rerun an analysis whenever Python sources change",
		Args:  seedArgs(&line),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, paths, err := loadConfig(root, func(cfg *config.Config) { flags.apply(cmd, cfg) })
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg, paths)
			if err != nil {
				return err
			}
			defer rt.Close()

			ref := refFromArgs(args, line)
			limiter := util.NewLimiter(cfg.Watch.MaxRunsPerSecond, 1)
			rerun := func(changed []string) {
				if !limiter.Allow(1) {
					observability.WatchRunsTotal.WithLabelValues("throttled").Inc()
					slog.Debug("rerun throttled", "changed", len(changed))
					return
				}
				rt.project.Invalidate(changed...)
				if err := rt.runOnce(cmd, ref); err != nil {
					observability.WatchRunsTotal.WithLabelValues("error").Inc()
					slog.Error("analysis failed", "error", err)
					return
				}
				observability.WatchRunsTotal.WithLabelValues("ok").Inc()
			}

			if err := rt.runOnce(cmd, ref); err != nil {
				return err
			}

			excludeDirs := append(append([]string{}, project.DefaultExcludedDirs...), cfg.Exclude.Dirs...)
			w, err := watcher.NewWatcher(cfg.Watch.Debounce, excludeDirs, cfg.Exclude.Files, rerun)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.Watch([]string{rt.paths.ProjectRoot}); err != nil {
				return err
			}
			slog.Info("watching for changes", "root", rt.paths.ProjectRoot, "seed", ref.label(), "debounce", cfg.Watch.Debounce)

			<-cmd.Context().Done()
			return nil
		},
	}
	flags.register(cmd, true)
	cmd.Flags().IntVar(&line, "line", 0, "Seed on the innermost definition covering this line")
	return cmd
}

func (rt *runtime) runOnce(cmd *cobra.Command, ref seedRef) error {
	run, err := rt.analyze(cmd.Context(), ref)
	if err != nil {
		return err
	}
	doc := run.document()
	if err := rt.emit(cmd, doc); err != nil {
		return err
	}
	fmt.Fprint(cmd.ErrOrStderr(), renderSummary(doc))
	return nil
}

func newHistoryCommand(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, paths, err := loadConfig(root, nil)
			if err != nil {
				return err
			}
			store, err := history.Open(paths.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRuns(runs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", history.DefaultRunLimit, "Maximum number of runs to list")
	return cmd
}

func newShowCommand(root *rootOptions) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Render a stored run",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError("show takes exactly one run id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, paths, err := loadConfig(root, func(cfg *config.Config) {
				if cmd.Flags().Changed("format") {
					cfg.Output.Format = strings.ToLower(strings.TrimSpace(format))
				}
				if cmd.Flags().Changed("out") {
					cfg.Output.Path = out
				}
			})
			if err != nil {
				return err
			}
			store, err := history.Open(paths.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			detail, err := store.LoadRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rt := &runtime{cfg: cfg, paths: paths}
			return rt.emit(cmd, report.FromRun(detail))
		},
	}
	cmd.Flags().StringVar(&format, "format", config.DefaultFormat, "Output format: "+strings.Join(report.Formats(), ", "))
	cmd.Flags().StringVar(&out, "out", "", "Write output to this file instead of stdout")
	return cmd
}

func newExportCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export call graphs to external stores",
	}
	cmd.AddCommand(newExportNeo4jCommand(root))
	return cmd
}

func newExportNeo4jCommand(root *rootOptions) *cobra.Command {
	var (
		flags analysisFlags
		line  int
	)
	cmd := &cobra.Command{
		Use:   "neo4j <file.py> [name|Class.method]",
		Short: "Push the call graph of a seed into Neo4j",
		Args:  seedArgs(&line),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, paths, err := loadConfig(root, func(cfg *config.Config) { flags.apply(cmd, cfg) })
			if err != nil {
				return err
			}
			rt, err := newRuntime(cmd.Context(), cfg, paths)
			if err != nil {
				return err
			}
			defer rt.Close()

			run, err := rt.analyze(cmd.Context(), refFromArgs(args, line))
			if err != nil {
				return err
			}
			runID := uuid.NewString()
			if cfg.DB.Enabled {
				if err := rt.saveRun(cmd, &run); err != nil {
					return err
				}
				runID = run.meta.RunID
			}

			exporter, err := graphdb.NewExporter(cmd.Context(), graphdb.Config{
				URI:      cfg.Neo4j.URI,
				User:     cfg.Neo4j.User,
				Password: cfg.Neo4j.Password,
				Database: cfg.Neo4j.Database,
			})
			if err != nil {
				return err
			}
			defer exporter.Close(cmd.Context())

			if err := exporter.Export(cmd.Context(), run.result, runID); err != nil {
				return err
			}
			slog.Info("exported call graph", "uri", cfg.Neo4j.URI, "run_id", runID, "functions", run.result.Len())
			return nil
		},
	}
	flags.register(cmd, false)
	cmd.Flags().IntVar(&line, "line", 0, "Seed on the innermost definition covering this line")
	return cmd
}
