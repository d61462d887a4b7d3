package cmd

import (
	"errors"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-backlog/pkg/diff"
	"github.com/mattsolo1/grove-backlog/pkg/service"
)

var diffUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.diff")

// NewDiffCmd creates the `diff` command.
func NewDiffCmd(svc **service.Service) *cobra.Command {
	var (
		filter string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show field differences between the document and the remote service",
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
			results, err := syncer.Diff(ctx, h.Doc, filter)
			if err != nil {
				return err
			}

			summary := diff.Summarize(results)
			diffUlog.Info("Diff computed").
				Field("new", summary.New).
				Field("modified", summary.Modified).
				Field("conflict", summary.Conflict).
				Field("unchanged", summary.Unchanged).
				Pretty(formatDiff(results, all) + formatDiffSummary(summary)).
				PrettyOnly().
				Log(ctx)

			if summary.HasIssues() {
				return errors.New("remote changes conflict with local edits")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Glob over local ids")
	cmd.Flags().BoolVar(&all, "all", false, "Also list unchanged items")

	return cmd
}
