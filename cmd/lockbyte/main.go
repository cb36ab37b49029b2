package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lockbyte/internal/app"
	"lockbyte/internal/batch"
	"lockbyte/internal/config"
	"lockbyte/internal/lockbyte"
)

// errIncomplete makes the process exit non-zero after a summary has been
// printed for a run where some files failed or were cancelled.
var errIncomplete = errors.New("not every file was processed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when none exists.
func loadConfig() (*config.Config, *app.Defaults, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.Load(defaults.ConfigPath, defaults.BaseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates a LockByteApp. The caller must defer app.Close().
func newApp(opts app.Options) (*app.LockByteApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.NewLockByteApp(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "lockbyte",
	Short:        "Password-based file encryption",
	SilenceUsage: true,
}

// runBatch prompts for a password, submits the batch and follows it to the
// end. Ctrl-C cancels the run; the summary is still printed.
func runBatch(cmd *cobra.Command, op func(ctx context.Context, a *app.LockByteApp, password string) (*batch.Run, error), confirm bool) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	out := cmd.OutOrStdout()
	showBar := !verbose && isTerminal(int(os.Stdout.Fd()))

	opts := app.Options{Stderr: cmd.ErrOrStderr(), StderrLevel: slog.LevelInfo}
	switch {
	case showBar:
		opts.StderrLevel = slog.LevelWarn
	case verbose:
		opts.Journal = out
		opts.StderrLevel = slog.LevelDebug
	default:
		opts.Journal = out
	}

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	password, err := promptPassword(int(os.Stdin.Fd()), os.Stdin, cmd.ErrOrStderr(), confirm)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := op(ctx, a, password)
	if err != nil {
		return err
	}

	summary := watch(ctx, run, a.Config().Batch.PollInterval.Duration, cmd.ErrOrStderr(), showBar)
	printSummary(out, summary)
	if !summary.OK() {
		return errIncomplete
	}
	return nil
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt PATH...",
	Short: "Encrypt files and folders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetBool("keep")
		return runBatch(cmd, func(ctx context.Context, a *app.LockByteApp, password string) (*batch.Run, error) {
			return a.Encrypt(ctx, args, password, keep)
		}, true)
	},
}

var decryptCmd = &cobra.Command{
	Use:   "decrypt PATH...",
	Short: "Decrypt containers, or every container inside a folder",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(ctx context.Context, a *app.LockByteApp, password string) (*batch.Run, error) {
			return a.Decrypt(ctx, args, password)
		}, false)
	},
}

var openCmd = &cobra.Command{
	Use:   "open PATH",
	Short: "Decrypt PATH if it is a container, encrypt it otherwise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetBool("keep")
		confirm := app.OperationFor(args[0]) == lockbyte.OpEncrypt
		return runBatch(cmd, func(ctx context.Context, a *app.LockByteApp, password string) (*batch.Run, error) {
			return a.Open(ctx, args[0], password, keep)
		}, confirm)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Fprintf(cmd.OutOrStdout(), "Base Dir: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "# Configuration from %s\n\n", defaults.ConfigPath)
		m := &config.Manager{}
		return m.Write(cmd.OutOrStdout(), cfg)
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.GetHistory(cmd.Context(), limit)
		if err != nil {
			return err
		}
		printRuns(cmd.OutOrStdout(), runs, time.Now())
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show RUN_ID",
	Short: "View the per-file outcomes of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(app.Options{})
		if err != nil {
			return err
		}
		defer a.Close()

		run, files, err := a.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printRuns(cmd.OutOrStdout(), []*lockbyte.RunRecord{run}, time.Now())
		printFiles(cmd.OutOrStdout(), files)
		return nil
	},
}

func printRuns(w io.Writer, runs []*lockbyte.RunRecord, now time.Time) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		status := "running"
		if r.FinishedAt != nil {
			status = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s  %-7s  %s  %-10s  ok=%d failed=%d cancelled=%d  %s\n",
			r.ID,
			r.Operation,
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			status,
			r.Succeeded, r.Failed, r.Cancelled,
			r.Target,
		)
	}
}

func printFiles(w io.Writer, files []*lockbyte.FileRecord) {
	for _, f := range files {
		switch {
		case f.Output != "":
			fmt.Fprintf(w, "  %-9s  %s -> %s\n", f.Outcome, f.Path, f.Output)
		case f.ErrorKind != "":
			fmt.Fprintf(w, "  %-9s  %s (%s)\n", f.Outcome, f.Path, f.ErrorKind)
		default:
			fmt.Fprintf(w, "  %-9s  %s\n", f.Outcome, f.Path)
		}
	}
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// history subcommands
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")

	for _, c := range []*cobra.Command{encryptCmd, openCmd} {
		c.Flags().BoolP("keep", "k", false, "Keep the original files after encrypting")
	}
	for _, c := range []*cobra.Command{encryptCmd, decryptCmd, openCmd} {
		c.Flags().BoolP("verbose", "v", false, "Print every progress line instead of a progress bar")
	}

	// root commands
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
}
