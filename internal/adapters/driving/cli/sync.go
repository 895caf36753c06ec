package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ihssane2002/chatbot-entreprise/internal/core/domain"
	"github.com/ihssane2002/chatbot-entreprise/internal/core/ports/driving"
)

// syncPollInterval is how often progress is printed during a sync.
var syncPollInterval = 500 * time.Millisecond

var (
	syncRebuild    bool
	syncStatusOnly bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise the knowledge base with the report directory",
	Long: `Compares every PDF of the report directory with the stored reports.
New and modified reports are extracted again, reports whose file was
deleted are removed, and unchanged ones are skipped. Chunks, tables and
vectors are regenerated only when something changed.

Use --rebuild to regenerate chunks, tables and vectors from the stored
reports, and --status to show the progress of the current or last run.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncRebuild, "rebuild", false, "regenerate chunks, tables and vectors from stored reports")
	syncCmd.Flags().BoolVar(&syncStatusOnly, "status", false, "show the current or last sync and exit")
	syncCmd.MarkFlagsMutuallyExclusive("rebuild", "status")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Sync == nil {
		return errors.New("sync service not configured")
	}

	ctx := cmd.Context()
	if syncStatusOnly {
		return printSyncStatus(ctx, cmd, s.Sync)
	}

	if syncRebuild {
		cmd.Println("Rebuilding the index from stored reports...")
	} else {
		cmd.Println("Synchronising reports...")
	}

	run, err := syncWithProgress(ctx, cmd, s.Sync, syncRebuild)
	if errors.Is(err, domain.ErrSyncInProgress) {
		return errors.New("a sync is already running, try again when it finishes")
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printSyncRun(cmd, run)
	return nil
}

// syncWithProgress runs a sync while displaying progress updates.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	engine driving.SyncEngine,
	rebuild bool,
) (*domain.SyncRun, error) {
	type outcome struct {
		run *domain.SyncRun
		err error
	}

	done := make(chan outcome, 1)
	go func() {
		var o outcome
		if rebuild {
			o.run, o.err = engine.Rebuild(ctx)
		} else {
			o.run, o.err = engine.Sync(ctx)
		}
		done <- o
	}()

	ticker := time.NewTicker(syncPollInterval)
	defer ticker.Stop()

	lastCount, lastPhase := -1, ""
	for {
		select {
		case o := <-done:
			if lastCount >= 0 {
				cmd.Println()
			}
			return o.run, o.err
		case <-ticker.C:
			// Best effort: progress is skipped when status is unavailable.
			status, err := engine.Status(ctx)
			if err != nil || status == nil || !status.Running {
				continue
			}
			if status.DocumentsProcessed == lastCount && status.Phase == lastPhase {
				continue
			}
			lastCount, lastPhase = status.DocumentsProcessed, status.Phase
			cmd.Printf("\rProcessing... %d/%d documents (%s, %d errors)",
				status.DocumentsProcessed, status.DocumentsTotal, status.Phase, status.ErrorCount)
		}
	}
}

func printSyncRun(cmd *cobra.Command, run *domain.SyncRun) {
	cmd.Printf("Sync %s finished in %s\n\n", run.ID, run.Duration().Round(time.Millisecond))

	printNames(cmd, "Added", run.Added)
	printNames(cmd, "Changed", run.Changed)
	printNames(cmd, "Removed", run.Removed)
	cmd.Printf("  %-10s %d\n", "Unchanged:", len(run.Unchanged))

	if len(run.Failed) > 0 {
		cmd.Printf("  %-10s %d\n", "Failed:", len(run.Failed))
		names := make([]string, 0, len(run.Failed))
		for name := range run.Failed {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cmd.Printf("    %s: %s\n", name, run.Failed[name])
		}
	}
	cmd.Println()

	if run.Rebuilt {
		cmd.Printf("Index rebuilt: %d chunks, %d tables, %d vectors.\n", run.Chunks, run.Tables, run.Vectors)
	} else {
		cmd.Println("Nothing changed, index left as is.")
	}
}

func printNames(cmd *cobra.Command, label string, names []string) {
	if len(names) == 0 {
		cmd.Printf("  %-10s 0\n", label+":")
		return
	}
	cmd.Printf("  %-10s %d (%s)\n", label+":", len(names), strings.Join(names, ", "))
}

func printSyncStatus(ctx context.Context, cmd *cobra.Command, engine driving.SyncEngine) error {
	status, err := engine.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync status: %w", err)
	}
	if status != nil && status.Running {
		cmd.Printf("Sync %s running: %s, %d/%d documents, %d errors\n",
			status.RunID, status.Phase, status.DocumentsProcessed, status.DocumentsTotal, status.ErrorCount)
		return nil
	}

	run, err := engine.LastRun(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		cmd.Println("No sync has run yet.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get last sync: %w", err)
	}
	cmd.Printf("Last sync %s at %s\n\n", run.ID, run.StartedAt.Format("2006-01-02 15:04:05"))
	printSyncRun(cmd, run)
	return nil
}
