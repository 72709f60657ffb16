package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const versionString = "1.0.0"
const defaultConfigPath = "callctx.toml"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type rootOptions struct {
	configPath string
	root       string
	verbose    bool
}

// NewRootCommand builds the callctx command tree. Output goes to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "callctx",
		Short:         "Collect the call context of a Python function",
		Long:          "callctx follows the calls made by a Python function or method, across files and imports, and reports every reachable definition with its source.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(cmd.ErrOrStderr(), opts.verbose)
		},
	}
	cmd.SetOut(out)

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file (defaults apply when missing)")
	flags.StringVar(&opts.root, "root", "", "Project root (overrides paths.project_root)")
	flags.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(
		newAnalyzeCommand(opts),
		newWatchCommand(opts),
		newHistoryCommand(opts),
		newShowCommand(opts),
		newExportCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

// Run executes the CLI and returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(os.Stdout)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err.Error())
			return exitUsage
		}
		slog.Error("callctx failed", "error", err)
		return exitError
	}
	return exitOK
}

var errUsage = errors.New("usage error")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the callctx version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "callctx v%s\n", versionString)
			return nil
		},
	}
}
