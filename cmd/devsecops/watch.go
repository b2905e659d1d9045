package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/lex00/ecs-devsecops-go/internal/config"
	"github.com/lex00/ecs-devsecops-go/internal/lint"
	"github.com/lex00/ecs-devsecops-go/internal/template"
)

// newWatchCmd creates the "watch" subcommand for re-synthesizing on changes.
func newWatchCmd(opts *globalOptions) *cobra.Command {
	var wo watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-synthesize when the config or context file changes",
		Long: `Watch monitors the config file and the VPC context file and re-runs
synth and lint when either changes.

The watch command:
- Runs lint on each change
- Writes the template if lint passes (unless --lint-only)
- Debounces rapid changes to avoid excessive rebuilds

Examples:
    devsecops watch --config devsecops.yaml -o template.json
    devsecops watch -c vpcId=vpc-0123abcd --lint-only
    devsecops watch --config devsecops.yaml --debounce 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts, wo)
		},
	}

	cmd.Flags().BoolVar(&wo.lintOnly, "lint-only", false, "Only run lint, skip writing the template")
	cmd.Flags().DurationVar(&wo.debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	cmd.Flags().StringVarP(&wo.outputFormat, "format", "f", "json", "Output format for the template: json or yaml")
	cmd.Flags().StringVarP(&wo.outputFile, "output", "o", "", "Output file for the template (default: summary only)")

	return cmd
}

type watchOptions struct {
	lintOnly     bool
	debounce     time.Duration
	outputFormat string
	outputFile   string
}

// watchedFiles returns the absolute paths whose changes trigger a rebuild.
func watchedFiles(configPath, contextFile string) ([]string, error) {
	var files []string
	for _, p := range []string{configPath, contextFile} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		files = append(files, abs)
	}
	return files, nil
}

// watchedDirs returns the directories to register with the watcher.
// Directories are watched rather than files so that editors replacing a
// file by rename keep triggering events.
func watchedDirs(files []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range files {
		d := filepath.Dir(f)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}

// relevant reports whether the event changes one of the watched files.
func relevant(event fsnotify.Event, files []string) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	for _, f := range files {
		if name == f {
			return true
		}
	}
	return false
}

// runWatch monitors the files and runs lint/synth on changes.
func runWatch(cmd *cobra.Command, opts *globalOptions, wo watchOptions) error {
	cfg, _, err := opts.load()
	if err != nil {
		return err
	}
	files, err := watchedFiles(opts.configPath, cfg.Network.ContextFile)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	out := cmd.OutOrStdout()
	for _, dir := range watchedDirs(files) {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		fmt.Fprintf(out, "Watching: %s\n", dir)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(out, "Running initial lint/synth...")
	runLintAndSynth(ctx, cmd, opts, wo)

	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)

	fmt.Fprintln(out, "\nWatching for changes... (Ctrl+C to stop)")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, files) {
				continue
			}

			// Debounce: reset timer on each change
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(wo.debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			fmt.Fprintf(out, "\n[%s] Change detected, re-synthesizing...\n", time.Now().Format("15:04:05"))
			runLintAndSynth(ctx, cmd, opts, wo)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Watch error: %v\n", err)

		case <-ctx.Done():
			fmt.Fprintln(out, "\nStopping watch...")
			return nil
		}
	}
}

// runLintAndSynth synthesizes, lints and optionally writes the template.
// Failures are reported and the watch goes on.
func runLintAndSynth(ctx context.Context, cmd *cobra.Command, opts *globalOptions, wo watchOptions) bool {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	s, err := opts.synthesize(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "Synth error: %v\n", err)
		if errors.Is(err, config.ErrMissingVPCID) {
			fmt.Fprintln(errOut, "Set network.vpc_id in the config file to continue.")
		}
		return false
	}

	result := lint.LintTemplate(s.template, lint.Options{})
	for _, f := range result.Issues {
		fmt.Fprintf(out, "%s: %s: %s [%s]\n", f.Resource, f.Severity, f.Message, f.Rule)
	}
	if !result.Success {
		fmt.Fprintln(out, "Lint failed, not writing the template")
		return false
	}
	fmt.Fprintln(out, "Lint passed")

	if wo.lintOnly {
		return true
	}

	data, err := template.Encode(s.template, wo.outputFormat)
	if err != nil {
		fmt.Fprintf(errOut, "Output error: %v\n", err)
		return false
	}
	if wo.outputFile == "" {
		fmt.Fprintln(out, "Synth successful")
		fmt.Fprintf(out, "Generated %d resources\n", len(s.order))
		return true
	}
	if err := os.WriteFile(wo.outputFile, data, 0644); err != nil {
		fmt.Fprintf(errOut, "Failed to write output: %v\n", err)
		return false
	}
	fmt.Fprintf(out, "Synth successful, wrote %s\n", wo.outputFile)
	return true
}
