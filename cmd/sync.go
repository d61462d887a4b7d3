package cmd

import (
	"fmt"
	"time"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-backlog/pkg/journal"
	"github.com/mattsolo1/grove-backlog/pkg/service"
	"github.com/mattsolo1/grove-backlog/pkg/sync"
)

var syncUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.sync")

// NewSyncCmd creates the `sync` command.
func NewSyncCmd(svc **service.Service) *cobra.Command {
	var (
		opts     sync.SyncOptions
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull remote metadata, then push local changes",
		Long: `Run pull followed by push.

The conflict strategy decides how push treats items changed remotely since
the last sync: prefer-local overwrites them, prefer-remote and manual report
them as conflicts. With --dry-run nothing is written remotely or locally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			ctx := cmd.Context()

			if strategy == "" {
				strategy = s.Config.ConflictStrategy
			}
			parsed, err := sync.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			opts.Strategy = parsed
			if !cmd.Flags().Changed("comments") {
				opts.IncludeComments = s.Config.IncludeComments
			}
			if !cmd.Flags().Changed("prs") {
				opts.IncludePRs = s.Config.IncludePRs
			}

			h, err := s.OpenDocument(ctx)
			if err != nil {
				return err
			}
			defer h.Close()

			syncer, err := s.Syncer(h.Doc)
			if err != nil {
				return err
			}

			started := time.Now()
			report, runErr := syncer.Sync(ctx, h.Doc, opts)
			if report == nil {
				return runErr
			}
			all := report.All()
			if !opts.DryRun && len(all) > 0 {
				if err := h.Save(); err != nil {
					return err
				}
			}
			if len(all) > 0 {
				s.Record("sync", opts.DryRun, started, journal.EntriesFromSync(all))
			}

			summary := sync.Summarize(all)
			syncUlog.Info("Sync finished").
				Field("strategy", string(opts.Strategy)).
				Field("dry_run", opts.DryRun).
				Field("pulled", summary.Pulled).
				Field("created", summary.Created).
				Field("updated", summary.Updated).
				Field("conflicts", summary.Conflicts).
				Field("failed", summary.Failed).
				Pretty(formatResults("Pull", report.Pull) + formatResults("Push", report.Push) + formatReport(summary)).
				PrettyOnly().
				Log(ctx)

			if runErr != nil {
				return fmt.Errorf("sync interrupted: %w", runErr)
			}
			return sync.RunError(all)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report what would change without writing")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Conflict strategy: prefer-local, prefer-remote or manual (default from config)")
	cmd.Flags().BoolVar(&opts.IncludeComments, "comments", false, "Also fetch comments (default from config)")
	cmd.Flags().BoolVar(&opts.IncludePRs, "prs", false, "Also fetch linked pull requests (default from config)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "Glob over local ids")

	return cmd
}
