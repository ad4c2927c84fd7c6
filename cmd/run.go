package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/Lumos-Labs-HQ/orgseed/internal/runlog"
	"github.com/Lumos-Labs-HQ/orgseed/internal/seeder"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	runEntities  []string
	runNoSuspend bool
	runSession   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate and load synthetic records",
	Long: `
Describe the selected entity types, order them by reference, then generate
and load each one in turn. Validation rules on the loaded types are switched
off for the run unless --no-suspend is given, and always switched back on.

Ctrl-C stops the run before its next entity type; the batch in flight is
allowed to finish and rules are restored before exiting.

Examples:
  orgseed run
  orgseed run --entity Account=5 --entity Contact=20
  orgseed run --no-suspend --session nightly-seed`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		counts, err := parseEntityCounts(runEntities)
		if err != nil {
			return err
		}
		configs := cfg.GenerationConfigs(counts)

		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
		store, err := openRemote(cfg)
		if err != nil {
			return err
		}
		snapshots, err := openState(cfg)
		if err != nil {
			return err
		}
		defer snapshots.Close()

		opts := seederOptions(cfg)
		if runNoSuspend {
			opts.SuspendRules = false
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sessions := seeder.NewSessions(store, snapshots, opts)
		run, err := sessions.Start(ctx, runSession, configs, nil)
		if err != nil {
			return err
		}

		select {
		case <-run.Done():
		case <-ctx.Done():
			color.Yellow("\n⚠️  Interrupt received; stopping after the current entity type...")
			run.Cancel()
		}

		summary, runErr := run.Wait()
		if summary != nil {
			printRunSummary(summary, filepath.Join(cfg.LogDir, run.ID))
		}
		if runErr != nil {
			return runErr
		}
		if summary != nil && summary.Rules != nil && summary.Rules.RestoreErr != nil {
			return fmt.Errorf("validation rules were left suspended; run 'orgseed rules restore --session %s'", run.ID)
		}
		return nil
	},
}

// parseEntityCounts reads Name=count pairs. A bare Name keeps its
// configured count.
func parseEntityCounts(pairs []string) (map[string]int, error) {
	counts := make(map[string]int, len(pairs))
	for _, pair := range pairs {
		name, value, hasCount := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid --entity %q: missing entity name", pair)
		}
		n := 0
		if hasCount {
			var err error
			n, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid --entity %q: count must be a non-negative integer", pair)
			}
		}
		counts[name] = n
	}
	return counts, nil
}

func printRunSummary(summary *runlog.Summary, dir string) {
	fmt.Println()
	fmt.Printf("  %-28s %9s %9s %9s %8s\n", "ENTITY", "ATTEMPTED", "CREATED", "FAILED", "RATE")
	for _, r := range summary.Results {
		fmt.Printf("  %-28s %9d %9d %9d %7.2f%%\n", r.EntityType, r.Attempted, r.Created, r.Failed, r.SuccessRatePct)
	}
	t := summary.Totals
	fmt.Printf("  %-28s %9d %9d %9d %7.2f%%\n", "TOTAL", t.Attempted, t.Created, t.Failed, t.SuccessRatePct)

	if len(summary.TopErrors) > 0 {
		fmt.Println()
		color.Yellow("Most frequent errors:")
		for _, e := range summary.TopErrors {
			fmt.Printf("  %4dx %s\n", e.Count, e.Message)
		}
	}

	fmt.Println()
	fmt.Printf("📝 Logs written to %s\n", dir)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVarP(&runEntities, "entity", "e", nil, "Entity type to load as Name=count (repeatable; replaces the config selection)")
	runCmd.Flags().BoolVar(&runNoSuspend, "no-suspend", false, "Leave validation rules active during the run")
	runCmd.Flags().StringVar(&runSession, "session", "", "Session id (default: generated)")
}
