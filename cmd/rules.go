package cmd

import (
	"fmt"

	"github.com/Lumos-Labs-HQ/orgseed/internal/logger"
	"github.com/Lumos-Labs-HQ/orgseed/internal/rules"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	restoreSession string
	restoreAll     bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and restore suspended validation rules",
}

var rulesPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List sessions that left validation rules suspended",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openState(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		sessions, err := store.PendingSessions(ctx)
		if err != nil {
			return fmt.Errorf("failed to list pending sessions: %w", err)
		}
		if len(sessions) == 0 {
			color.Green("✅ No validation rules are waiting to be restored")
			return nil
		}

		for _, session := range sessions {
			snaps, err := store.ListRuleSnapshots(ctx, session)
			if err != nil {
				return fmt.Errorf("failed to read session %s: %w", session, err)
			}
			color.Yellow("🔒 Session %s: %d rule(s) suspended", session, len(snaps))
			for _, snap := range snaps {
				fmt.Printf("   %-48s since %s\n", snap.FullName, snap.SuspendedAt.Local().Format("2006-01-02 15:04:05"))
			}
		}
		fmt.Println()
		fmt.Println("Run 'orgseed rules restore --session <id>' to switch them back on.")
		return nil
	},
}

var rulesRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Reactivate the validation rules a session suspended",
	Long: `
Reactivate every rule recorded in a session's snapshot. Rules that are already
active are left untouched, so the command can be repeated safely.

Examples:
  orgseed rules restore --session 3f0c9a1e-...
  orgseed rules restore --all`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if restoreSession == "" && !restoreAll {
			return fmt.Errorf("specify --session <id> or --all")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		remote, err := openRemote(cfg)
		if err != nil {
			return err
		}
		store, err := openState(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		sessions := []string{restoreSession}
		if restoreAll {
			if sessions, err = store.PendingSessions(ctx); err != nil {
				return fmt.Errorf("failed to list pending sessions: %w", err)
			}
		}

		failed := 0
		for _, session := range sessions {
			manager := rules.NewManager(session, remote, store, logger.Console{})
			report, err := manager.RestoreSession(ctx)
			if err != nil {
				failed++
				color.Red("❌ Session %s: %d rule(s) could not be restored", session, len(report.Failed))
				continue
			}
			color.Green("✅ Session %s: %d restored, %d already active", session, len(report.Restored), len(report.AlreadyActive))
		}

		if failed > 0 {
			return fmt.Errorf("%d session(s) still have suspended rules", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesPendingCmd)
	rulesCmd.AddCommand(rulesRestoreCmd)

	rulesRestoreCmd.Flags().StringVar(&restoreSession, "session", "", "Session whose rules should be restored")
	rulesRestoreCmd.Flags().BoolVar(&restoreAll, "all", false, "Restore every pending session")
}
