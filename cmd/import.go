package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-backlog/pkg/document"
	"github.com/mattsolo1/grove-backlog/pkg/importer"
	"github.com/mattsolo1/grove-backlog/pkg/journal"
	"github.com/mattsolo1/grove-backlog/pkg/service"
	"github.com/mattsolo1/grove-backlog/pkg/sync"
)

var importUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.import")

func importEntries(results []importer.Result) []journal.Entry {
	entries := make([]journal.Entry, 0, len(results))
	for _, r := range results {
		e := journal.Entry{LocalID: r.LocalID, Action: "import", Success: r.Success, RemoteID: r.RemoteID, Message: r.Title}
		if r.Err != nil {
			e.Error = r.Err.Error()
		}
		entries = append(entries, e)
	}
	return entries
}

func formatImport(out *importer.Outcome) string {
	var b strings.Builder
	for _, r := range out.Results {
		indent := strings.Repeat("  ", r.Depth+1)
		if !r.Success {
			b.WriteString(indent + paint(errorStyle, fmt.Sprintf("#%d %v", r.RemoteID, r.Err)) + "\n")
			continue
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s\n", indent, r.LocalID, paint(dimStyle, string(r.Type)), r.Title))
	}
	return b.String()
}

// NewImportCmd creates the `import` command.
func NewImportCmd(svc **service.Service) *cobra.Command {
	var (
		opts         importer.Options
		organization string
		project      string
		output       string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "import <rootId>",
		Short: "Build a backlog document from an existing remote work item tree",
		Long: `Import the remote work item <rootId> and all of its descendants.

--tag and --type select which direct children of the root are imported;
everything below a selected child is kept.

Examples:
  backlog import 1234 -o checkout.yaml
  backlog import 1234 --tag frontend --comments`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			ctx := cmd.Context()

			rootID, err := strconv.Atoi(args[0])
			if err != nil || rootID <= 0 {
				return fmt.Errorf("invalid root id %q", args[0])
			}
			opts.RootID = rootID

			if output == "" {
				output = s.DocumentPath
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			im, p, err := s.Importer(organization, project)
			if err != nil {
				return err
			}
			opts.Project = p

			started := time.Now()
			out, err := im.Import(ctx, opts)
			if err != nil {
				return err
			}

			unlock, err := document.Lock(ctx, output)
			if err != nil {
				return err
			}
			defer unlock()
			if err := document.Save(output, out.Document); err != nil {
				return err
			}
			s.Record("import", false, started, importEntries(out.Results))

			imported := len(out.Results) - out.Failed()
			importUlog.Success("Import finished").
				Field("root_id", rootID).
				Field("imported", imported).
				Field("failed", out.Failed()).
				Field("output", output).
				Pretty(formatImport(out) + fmt.Sprintf("Imported %d items (%s hierarchy) into %s", imported, out.Document.HierarchyType, output)).
				PrettyOnly().
				Log(ctx)

			if n := out.Failed(); n > 0 {
				return fmt.Errorf("%w: %d items could not be imported", sync.ErrRunFailed, n)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Document to write (default is --file)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing document")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", importer.DefaultMaxDepth, "Maximum tree depth to import")
	cmd.Flags().StringVar(&opts.FilterTag, "tag", "", "Only import direct children carrying this tag")
	cmd.Flags().StringVar(&opts.FilterType, "type", "", "Only import direct children of this type")
	cmd.Flags().BoolVar(&opts.IncludeComments, "comments", false, "Include comments")
	cmd.Flags().BoolVar(&opts.IncludePRs, "prs", false, "Include linked pull requests")
	cmd.Flags().StringVar(&organization, "org", "", "Organization (default from config)")
	cmd.Flags().StringVar(&project, "project", "", "Project (default from config)")

	return cmd
}
