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

var pushUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.push")

// NewPushCmd creates the `push` command.
func NewPushCmd(svc **service.Service) *cobra.Command {
	var opts sync.PushOptions

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Create and update remote work items from the document",
		Long: `Push local work items to the remote service, parents before children.

Unlinked items are created and linked; linked items are updated when their
fields differ. An item whose remote revision moved past the recorded one is
reported as a conflict unless --force is given.

Examples:
  backlog push --dry-run
  backlog push --filter 'pbi-*'
  backlog push --update-only --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			ctx := cmd.Context()

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
			results, runErr := syncer.Push(ctx, h.Doc, opts)
			if !opts.DryRun && len(results) > 0 {
				if err := h.Save(); err != nil {
					return err
				}
			}
			if len(results) > 0 {
				s.Record("push", opts.DryRun, started, journal.EntriesFromSync(results))
			}

			title := "Push"
			if opts.DryRun {
				title = "Push (dry run)"
			}
			report := sync.Summarize(results)
			pushUlog.Info("Push finished").
				Field("dry_run", opts.DryRun).
				Field("created", report.Created).
				Field("updated", report.Updated).
				Field("conflicts", report.Conflicts).
				Field("failed", report.Failed).
				Pretty(formatResults(title, results) + formatReport(report)).
				PrettyOnly().
				Log(ctx)

			if runErr != nil {
				return fmt.Errorf("push interrupted: %w", runErr)
			}
			return sync.RunError(results)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report what would change without writing")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite remote changes made since the last sync")
	cmd.Flags().BoolVar(&opts.CreateOnly, "create-only", false, "Only create unlinked items")
	cmd.Flags().BoolVar(&opts.UpdateOnly, "update-only", false, "Only update linked items")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "Glob over local ids, e.g. 'pbi-*'")
	cmd.MarkFlagsMutuallyExclusive("create-only", "update-only")

	return cmd
}
