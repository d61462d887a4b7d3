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

var pullUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.pull")

// NewPullCmd creates the `pull` command.
func NewPullCmd(svc **service.Service) *cobra.Command {
	var opts sync.PullOptions

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Refresh remote metadata of linked work items",
		Long: `Pull revision, state, assignee and optionally comments and pull requests
for every linked item. Local fields are never overwritten.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			ctx := cmd.Context()
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
			results, runErr := syncer.Pull(ctx, h.Doc, opts)
			if len(results) > 0 {
				if err := h.Save(); err != nil {
					return err
				}
				s.Record("pull", false, started, journal.EntriesFromSync(results))
			}
			if runErr != nil {
				return runErr
			}

			report := sync.Summarize(results)
			pullUlog.Info("Pull finished").
				Field("pulled", report.Pulled).
				Field("failed", report.Failed).
				Pretty(formatResults("Pull", results) + fmt.Sprintf("%d pulled, %d failed", report.Pulled, report.Failed)).
				PrettyOnly().
				Log(ctx)
			return sync.RunError(results)
		},
	}

	cmd.Flags().BoolVar(&opts.IncludeComments, "comments", false, "Also fetch comments (default from config)")
	cmd.Flags().BoolVar(&opts.IncludePRs, "prs", false, "Also fetch linked pull requests (default from config)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "Glob over local ids")

	return cmd
}
