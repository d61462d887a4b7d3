package cmd

import (
	"fmt"
	"strings"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-backlog/pkg/document"
	"github.com/mattsolo1/grove-backlog/pkg/models"
	"github.com/mattsolo1/grove-backlog/pkg/service"
	"github.com/mattsolo1/grove-backlog/pkg/tree"
)

var statusUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.status")

type typeCounts struct {
	linked   int
	unlinked int
}

func countByType(doc *models.Document) map[string]*typeCounts {
	counts := map[string]*typeCounts{}
	for _, e := range tree.Flatten(doc) {
		c, ok := counts[string(e.Item.Type)]
		if !ok {
			c = &typeCounts{}
			counts[string(e.Item.Type)] = c
		}
		if e.Item.IsLinked() {
			c.linked++
		} else {
			c.unlinked++
		}
	}
	return counts
}

// NewStatusCmd creates the `status` command. It works offline.
func NewStatusCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarize the document and the last recorded run",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			ctx := cmd.Context()

			doc, err := document.Load(s.DocumentPath)
			if err != nil {
				return err
			}

			var b strings.Builder
			b.WriteString(paint(headerStyle, fmt.Sprintf("%s/%s", doc.Project.Organization, doc.Project.Project)))
			b.WriteString(paint(dimStyle, fmt.Sprintf("  %s hierarchy, %s\n", doc.HierarchyType, s.DocumentPath)))

			counts := countByType(doc)
			linked, unlinked := 0, 0
			for _, t := range sortedKeys(counts) {
				c := counts[t]
				linked += c.linked
				unlinked += c.unlinked
				b.WriteString(fmt.Sprintf("  %-14s %3d linked  %3d unlinked\n", t, c.linked, c.unlinked))
			}
			if errs := tree.Validate(doc); len(errs) > 0 {
				b.WriteString(paint(errorStyle, fmt.Sprintf("  %d validation error(s); run 'backlog validate'\n", len(errs))))
			}

			if j, err := s.Journal(); err != nil {
				s.Logger.WithError(err).Debug("journal unavailable")
			} else if run, err := j.Latest(s.DocumentPath); err != nil {
				return fmt.Errorf("read journal: %w", err)
			} else if run == nil {
				b.WriteString(paint(dimStyle, "Last run: never\n"))
			} else {
				line := fmt.Sprintf("Last run: %s at %s, %d items, %d failed, %d conflicts",
					run.Command, run.StartedAt.Local().Format("2006-01-02 15:04"), run.Total, run.Failed, run.Conflicts)
				if run.DryRun {
					line += " (dry run)"
				}
				style := successStyle
				if run.Failed > 0 || run.Conflicts > 0 {
					style = warnStyle
				}
				b.WriteString(paint(style, line) + "\n")
			}

			statusUlog.Info("Backlog status").
				Field("linked", linked).
				Field("unlinked", unlinked).
				Pretty(strings.TrimRight(b.String(), "\n")).
				PrettyOnly().
				Log(ctx)
			return nil
		},
	}
}
