package cmd

import (
	"fmt"
	"strings"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-backlog/pkg/document"
	"github.com/mattsolo1/grove-backlog/pkg/service"
	"github.com/mattsolo1/grove-backlog/pkg/tree"
)

var validateUlog = grovelogging.NewUnifiedLogger("grove-backlog.cmd.validate")

// NewValidateCmd creates the `validate` command.
func NewValidateCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the backlog document for structural errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			doc, err := document.Load(s.DocumentPath)
			if err != nil {
				return err
			}

			errs := tree.Validate(doc)
			if len(errs) == 0 {
				validateUlog.Success("Document valid").
					Field("path", s.DocumentPath).
					Field("items", len(tree.Flatten(doc))).
					Pretty(paint(successStyle, fmt.Sprintf("* %s is valid (%d work items)", s.DocumentPath, len(tree.Flatten(doc))))).
					PrettyOnly().
					Log(cmd.Context())
				return nil
			}

			var b strings.Builder
			for _, e := range errs {
				b.WriteString("  ")
				b.WriteString(paint(errorStyle, e.Error()))
				b.WriteString("\n")
			}
			validateUlog.Info("Document invalid").
				Field("path", s.DocumentPath).
				Field("errors", len(errs)).
				Pretty(fmt.Sprintf("%s has %d problem(s):\n%s", s.DocumentPath, len(errs), b.String())).
				PrettyOnly().
				Log(cmd.Context())
			return fmt.Errorf("%d validation error(s)", len(errs))
		},
	}
}
